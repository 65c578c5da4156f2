package replay

import (
	"errors"
	"testing"

	"github.com/oxyreplay/pipewarm/internal/deserializer"
	"github.com/oxyreplay/pipewarm/internal/hashid"
	"github.com/oxyreplay/pipewarm/internal/objecttable"
	"github.com/oxyreplay/pipewarm/internal/workqueue"
)

// testHarness wires a kindState[int, string] (an arbitrary payload type and
// a string stand-in for a driver handle) to a real workqueue.Pool, so that
// classify/resolve exercise the same enqueue-then-drain path the engine
// uses, without needing a driver.
type testHarness struct {
	pool  *workqueue.Pool
	table *objecttable.Table[string]
	state *kindState[int, string]
}

func newHarness(shard ShardRange) *testHarness {
	table := objecttable.New[string]()
	counters := &Counters{}
	return &testHarness{
		pool:  workqueue.New(2),
		table: table,
		state: newKindState[int, string]("graphics", workqueue.GraphicsPipelineItem, table, counters, shard, noopProgressSink{}),
	}
}

func (h *testHarness) close() { h.pool.Shutdown() }

func (h *testHarness) enqueue(item pipelineItem[int], contributesToIndex bool) {
	h.pool.Enqueue(&workqueue.Item{
		Hash:               item.hash,
		Kind:               workqueue.GraphicsPipelineItem,
		ContributesToIndex: contributesToIndex,
		Do: func() error {
			h.table.Insert(item.hash, "handle")
			return nil
		},
	})
}

func noopRewrite(info int, _ *string) int { return info }

// Scenario 2: a derivative chain. The base is in-range and classified
// first; the derivative is parked until the base lands in the table.
func TestResolverDerivedChainInRange(t *testing.T) {
	h := newHarness(Unbounded())
	defer h.close()

	h.state.classify(hashid.Hash(1), 0, hashid.Zero, 100, h.enqueue)
	h.state.classify(hashid.Hash(2), deserializer.FlagDerivative, hashid.Hash(1), 200, h.enqueue)

	if err := h.state.resolve(h.pool, noopRewrite, h.enqueue); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	h.pool.Drain()

	snap := h.state.counters.Snapshot()
	if snap.Total != 2 {
		t.Errorf("Total = %d, want 2", snap.Total)
	}
	if snap.Skipped != 0 {
		t.Errorf("Skipped = %d, want 0", snap.Skipped)
	}
	if !h.table.Has(hashid.Hash(1)) || !h.table.Has(hashid.Hash(2)) {
		t.Error("both base and derivative should be in the table")
	}
}

// Scenario 3: a shard filter excludes a later index. The derivative's own
// index (assigned only at resolve time) falls outside the shard and is
// skipped, even though its base was in range and created.
func TestResolverShardFilterSkipsOutOfRangeDerivative(t *testing.T) {
	h := newHarness(ShardRange{Start: 0, End: 1})
	defer h.close()

	h.state.classify(hashid.Hash(1), 0, hashid.Zero, 100, h.enqueue) // index 0, in range
	h.state.classify(hashid.Hash(2), deserializer.FlagDerivative, hashid.Hash(1), 200, h.enqueue)

	if err := h.state.resolve(h.pool, noopRewrite, h.enqueue); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	h.pool.Drain()

	snap := h.state.counters.Snapshot()
	if snap.Total != 2 {
		t.Errorf("Total = %d, want 2", snap.Total)
	}
	if snap.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1 (the derivative's own index is 1, outside [0,1))", snap.Skipped)
	}
	if !h.table.Has(hashid.Hash(1)) {
		t.Error("in-range base should have been created")
	}
	if h.table.Has(hashid.Hash(2)) {
		t.Error("out-of-range derivative should never reach the table")
	}
}

// Scenario 4: the base itself is out of range, but flagged allow-derivatives,
// so it must be rescued (created without consuming a second index or
// double-counting Total/Skipped) so the in-range derivative can proceed.
func TestResolverRescuesOutOfRangeBase(t *testing.T) {
	h := newHarness(ShardRange{Start: 1, End: 2})
	defer h.close()

	h.state.classify(hashid.Hash(1), deserializer.FlagAllowDerivatives, hashid.Zero, 100, h.enqueue) // index 0, out of range, rescuable
	h.state.classify(hashid.Hash(2), deserializer.FlagDerivative, hashid.Hash(1), 200, h.enqueue)     // parked

	if err := h.state.resolve(h.pool, noopRewrite, h.enqueue); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	h.pool.Drain()

	snap := h.state.counters.Snapshot()
	if snap.Total != 2 {
		t.Errorf("Total = %d, want 2 (one index per item, base's rescue does not consume another)", snap.Total)
	}
	if snap.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1 (only the base's own out-of-range index)", snap.Skipped)
	}
	if !h.table.Has(hashid.Hash(1)) {
		t.Error("rescued base should have been created despite being out of range")
	}
	if !h.table.Has(hashid.Hash(2)) {
		t.Error("derivative should have been created once its base existed")
	}
}

// A derived item whose base never arrives (not in-range, not flagged
// allow-derivatives, so never rescued) must stall rather than loop forever.
func TestResolverStallsWhenBaseNeverArrives(t *testing.T) {
	h := newHarness(Unbounded())
	defer h.close()

	h.state.classify(hashid.Hash(2), deserializer.FlagDerivative, hashid.Hash(99), 200, h.enqueue)

	err := h.state.resolve(h.pool, noopRewrite, h.enqueue)
	var stall *ResolverStall
	if !errors.As(err, &stall) {
		t.Fatalf("resolve err = %v, want *ResolverStall", err)
	}
	if stall.Pending != 1 {
		t.Errorf("Pending = %d, want 1", stall.Pending)
	}
}

// Multiple derivation levels (a derives from b, b derives from c) require
// more than one resolution round; resolve must loop until derived[] drains.
func TestResolverMultiLevelDerivationChain(t *testing.T) {
	h := newHarness(Unbounded())
	defer h.close()

	h.state.classify(hashid.Hash(1), 0, hashid.Zero, 100, h.enqueue)
	h.state.classify(hashid.Hash(3), deserializer.FlagDerivative, hashid.Hash(2), 300, h.enqueue)
	h.state.classify(hashid.Hash(2), deserializer.FlagDerivative, hashid.Hash(1), 200, h.enqueue)

	if err := h.state.resolve(h.pool, noopRewrite, h.enqueue); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	h.pool.Drain()

	for _, h2 := range []hashid.Hash{1, 2, 3} {
		if !h.table.Has(h2) {
			t.Errorf("hash %v should have been created", h2)
		}
	}
	snap := h.state.counters.Snapshot()
	if snap.Total != 3 {
		t.Errorf("Total = %d, want 3", snap.Total)
	}
}
