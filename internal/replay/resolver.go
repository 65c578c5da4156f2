package replay

import (
	"fmt"
	"sync"

	"github.com/oxyreplay/pipewarm/internal/deserializer"
	"github.com/oxyreplay/pipewarm/internal/hashid"
	"github.com/oxyreplay/pipewarm/internal/objecttable"
	"github.com/oxyreplay/pipewarm/internal/workqueue"
)

// pipelineItem is one pipeline kind's create-info together with the
// derivation metadata the resolver needs, independent of whether Info is a
// GraphicsPipelineInfo or a ComputePipelineInfo.
type pipelineItem[Info any] struct {
	hash  hashid.Hash
	info  Info
	flags deserializer.PipelineFlags
	base  hashid.Hash // captured Hash from BasePipelineHandle, not yet resolved
}

// ResolverStall is returned when the resolver cannot make progress on a
// round: every item remaining in derived[] has a base that is still
// missing from the object table (§4.3 step 2, §7).
type ResolverStall struct {
	Kind    string
	Pending int
}

func (e *ResolverStall) Error() string {
	return fmt.Sprintf("replay: resolver stall on %s: %d derived item(s) have no resolvable base", e.Kind, e.Pending)
}

// kindState holds the classification/derivation bookkeeping for one
// pipeline kind (graphics or compute), generic over its create-info and
// driver handle types. It does not know how to talk to the driver; callers
// supply an enqueue closure that builds the concrete work item.
type kindState[Info any, Handle any] struct {
	kindName string
	kind     workqueue.Kind
	sink     ProgressSink

	mu               sync.Mutex
	nextIndex        int
	derived          []pipelineItem[Info]
	potentialParents map[hashid.Hash]pipelineItem[Info]

	shard    ShardRange
	table    *objecttable.Table[Handle]
	counters *Counters
}

func newKindState[Info any, Handle any](name string, kind workqueue.Kind, table *objecttable.Table[Handle], counters *Counters, shard ShardRange, sink ProgressSink) *kindState[Info, Handle] {
	return &kindState[Info, Handle]{
		kindName:         name,
		kind:             kind,
		sink:             sink,
		potentialParents: make(map[hashid.Hash]pipelineItem[Info]),
		shard:            shard,
		table:            table,
		counters:         counters,
	}
}

// classify implements §4.3 Classification. enqueue submits the concrete
// work item to the worker pool; it is never called for items that end up
// in derived[] or discarded.
func (k *kindState[Info, Handle]) classify(hash hashid.Hash, flags deserializer.PipelineFlags, base hashid.Hash, info Info, enqueue func(item pipelineItem[Info], contributesToIndex bool)) {
	item := pipelineItem[Info]{hash: hash, info: info, flags: flags, base: base}

	if flags.Has(deserializer.FlagDerivative) {
		k.mu.Lock()
		k.derived = append(k.derived, item)
		k.mu.Unlock()
		return
	}

	k.mu.Lock()
	index := k.nextIndex
	k.nextIndex++
	inRange := k.shard.Contains(index)
	if !inRange && flags.Has(deserializer.FlagAllowDerivatives) {
		k.potentialParents[hash] = item
	}
	k.mu.Unlock()

	k.counters.Total.Add(1)
	k.sink.AddTotal(k.kind, 1)
	if inRange {
		enqueue(item, true)
	} else {
		k.counters.Skipped.Add(1)
		k.sink.AddSkipped(k.kind, 1)
	}
}

// rescuePrerequisites implements §4.3 Resolution step 1: for every derived
// item, if its base is sitting in potentialParents (an out-of-range item
// that was never going to be created otherwise), materialize it now. These
// items were already counted in Total/Skipped at their own classify call,
// so they are enqueued with contributesToIndex = false.
func (k *kindState[Info, Handle]) rescuePrerequisites(enqueue func(item pipelineItem[Info], contributesToIndex bool)) {
	k.mu.Lock()
	var rescued []pipelineItem[Info]
	for _, d := range k.derived {
		if parent, ok := k.potentialParents[d.base]; ok {
			rescued = append(rescued, parent)
			delete(k.potentialParents, d.base)
		}
	}
	k.mu.Unlock()

	for _, parent := range rescued {
		enqueue(parent, false)
	}
}

// resolveRound implements §4.3 Resolution steps 2-3 for a single pass:
// drain the pool, partition derived[] into ready/not-ready with an in-place
// filter that keeps the not-ready items in their original order, then
// enqueue every ready item with its base
// rewritten to the live handle now in the object table. Returns the number
// of items it made ready, and a *ResolverStall if none were ready while
// items remain.
func (k *kindState[Info, Handle]) resolveRound(pool *workqueue.Pool, rewriteBase func(info Info, liveBase *Handle) Info, enqueue func(item pipelineItem[Info], contributesToIndex bool)) (int, error) {
	pool.Drain()

	k.mu.Lock()
	var ready []pipelineItem[Info]
	var liveBases []*Handle
	remaining := k.derived[:0]
	for _, d := range k.derived {
		if base, ok := k.table.Get(d.base); ok {
			ready = append(ready, d)
			liveBases = append(liveBases, base)
			continue
		}
		remaining = append(remaining, d)
	}
	k.derived = remaining
	pendingAfter := len(k.derived)
	k.mu.Unlock()

	if len(ready) == 0 {
		if pendingAfter == 0 {
			return 0, nil
		}
		return 0, &ResolverStall{Kind: k.kindName, Pending: pendingAfter}
	}

	for i, d := range ready {
		d.info = rewriteBase(d.info, liveBases[i])

		k.mu.Lock()
		index := k.nextIndex
		k.nextIndex++
		inRange := k.shard.Contains(index)
		k.mu.Unlock()

		k.counters.Total.Add(1)
		k.sink.AddTotal(k.kind, 1)
		if inRange {
			enqueue(d, true)
		} else {
			k.counters.Skipped.Add(1)
			k.sink.AddSkipped(k.kind, 1)
		}
	}
	return len(ready), nil
}

// resolve drives resolveRound to completion: §4.3 step 4, "loop until
// derived[] is empty", one drain() per derivation depth level.
func (k *kindState[Info, Handle]) resolve(pool *workqueue.Pool, rewriteBase func(info Info, liveBase *Handle) Info, enqueue func(item pipelineItem[Info], contributesToIndex bool)) error {
	k.rescuePrerequisites(enqueue)

	for {
		k.mu.Lock()
		empty := len(k.derived) == 0
		k.mu.Unlock()
		if empty {
			return nil
		}

		made, err := k.resolveRound(pool, rewriteBase, enqueue)
		if err != nil {
			return err
		}
		if made == 0 {
			return nil
		}
	}
}
