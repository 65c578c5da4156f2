package objecttable

import (
	"sync"
	"testing"

	"github.com/oxyreplay/pipewarm/internal/hashid"
)

func TestInsertThenGet(t *testing.T) {
	tbl := New[int]()
	h := hashid.Hash(1)

	ptr, inserted := tbl.Insert(h, 42)
	if !inserted {
		t.Fatal("first Insert should report true")
	}
	if *ptr != 42 {
		t.Fatalf("*ptr = %d, want 42", *ptr)
	}

	got, ok := tbl.Get(h)
	if !ok {
		t.Fatal("Get after Insert should find the entry")
	}
	if got != ptr {
		t.Fatal("Get should return the same stable pointer Insert returned")
	}
}

func TestInsertIsFirstWriterWins(t *testing.T) {
	tbl := New[int]()
	h := hashid.Hash(7)

	first, ok1 := tbl.Insert(h, 1)
	second, ok2 := tbl.Insert(h, 2)

	if !ok1 || ok2 {
		t.Fatalf("ok1=%v ok2=%v, want true,false", ok1, ok2)
	}
	if first != second {
		t.Fatal("second Insert should return the pre-existing pointer")
	}
	if *second != 1 {
		t.Fatalf("*second = %d, want 1 (first writer's value)", *second)
	}
}

func TestGetMissingReportsFalse(t *testing.T) {
	tbl := New[int]()
	if _, ok := tbl.Get(hashid.Hash(99)); ok {
		t.Fatal("Get on an empty table should report false")
	}
}

func TestHasAndLen(t *testing.T) {
	tbl := New[string]()
	if tbl.Has(hashid.Hash(1)) {
		t.Fatal("Has on empty table should be false")
	}
	tbl.Insert(hashid.Hash(1), "a")
	tbl.Insert(hashid.Hash(2), "b")
	if !tbl.Has(hashid.Hash(1)) {
		t.Fatal("Has should be true after Insert")
	}
	if tbl.Len() != 2 {
		t.Fatalf("Len = %d, want 2", tbl.Len())
	}
}

func TestRangeVisitsEveryEntry(t *testing.T) {
	tbl := New[int]()
	want := map[hashid.Hash]int{1: 10, 2: 20, 3: 30}
	for h, v := range want {
		tbl.Insert(h, v)
	}

	got := make(map[hashid.Hash]int)
	tbl.Range(func(h hashid.Hash, v *int) bool {
		got[h] = *v
		return true
	})

	if len(got) != len(want) {
		t.Fatalf("visited %d entries, want %d", len(got), len(want))
	}
	for h, v := range want {
		if got[h] != v {
			t.Errorf("entry %v = %d, want %d", h, got[h], v)
		}
	}
}

func TestRangeStopsWhenFnReturnsFalse(t *testing.T) {
	tbl := New[int]()
	for i := 0; i < 10; i++ {
		tbl.Insert(hashid.Hash(i), i)
	}

	visited := 0
	tbl.Range(func(hashid.Hash, *int) bool {
		visited++
		return false
	})
	if visited != 1 {
		t.Fatalf("visited = %d, want 1", visited)
	}
}

func TestConcurrentInsertIsSafe(t *testing.T) {
	tbl := New[int]()
	var wg sync.WaitGroup
	const n = 100
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tbl.Insert(hashid.Hash(i%10), i)
		}(i)
	}
	wg.Wait()
	if tbl.Len() != 10 {
		t.Fatalf("Len = %d, want 10", tbl.Len())
	}
}
