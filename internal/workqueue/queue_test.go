package workqueue

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDrainWaitsForAllQueuedItems(t *testing.T) {
	p := New(4)
	defer p.Shutdown()

	var completed atomic.Int64
	const n = 200
	for i := 0; i < n; i++ {
		p.Enqueue(&Item{
			Kind: ShaderModuleItem,
			Do: func() error {
				time.Sleep(time.Millisecond)
				completed.Add(1)
				return nil
			},
		})
	}
	p.Drain()

	if got := completed.Load(); got != n {
		t.Fatalf("completed = %d, want %d", got, n)
	}
}

func TestDrainIsRepeatable(t *testing.T) {
	p := New(2)
	defer p.Shutdown()

	p.Drain()

	var ran atomic.Bool
	p.Enqueue(&Item{Kind: ShaderModuleItem, Do: func() error { ran.Store(true); return nil }})
	p.Drain()
	if !ran.Load() {
		t.Fatal("item enqueued after an empty Drain never ran")
	}

	p.Drain()
}

func TestStatsCountsOpsByKind(t *testing.T) {
	p := New(1)
	defer p.Shutdown()

	p.Enqueue(&Item{Kind: ShaderModuleItem, Do: func() error { return nil }})
	p.Enqueue(&Item{Kind: GraphicsPipelineItem, Do: func() error { return nil }})
	p.Enqueue(&Item{Kind: GraphicsPipelineItem, Do: func() error { return errSentinel }})
	p.Drain()
	// Workers publish their per-kind op counts when they exit.
	p.Shutdown()

	stats := p.Stats()
	if stats.ShaderModuleOps != 1 {
		t.Errorf("ShaderModuleOps = %d, want 1", stats.ShaderModuleOps)
	}
	if stats.GraphicsPipeOps != 2 {
		t.Errorf("GraphicsPipeOps = %d, want 2", stats.GraphicsPipeOps)
	}
	if stats.FailedOperations != 1 {
		t.Errorf("FailedOperations = %d, want 1", stats.FailedOperations)
	}
}

func TestEnqueueAfterShutdownIsDiscarded(t *testing.T) {
	p := New(2)
	p.Shutdown()

	var ran atomic.Bool
	p.Enqueue(&Item{Kind: ShaderModuleItem, Do: func() error { ran.Store(true); return nil }})
	// No worker remains to run it; give any stray goroutine a moment anyway.
	time.Sleep(10 * time.Millisecond)
	if ran.Load() {
		t.Fatal("item enqueued after Shutdown should never run")
	}
}

func TestShutdownIsIdempotentAndConcurrentSafe(t *testing.T) {
	p := New(3)
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		go func() {
			p.Shutdown()
			done <- struct{}{}
		}()
	}
	for i := 0; i < 5; i++ {
		<-done
	}
}

var errSentinel = &sentinelError{}

type sentinelError struct{}

func (*sentinelError) Error() string { return "sentinel" }
