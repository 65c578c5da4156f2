package supervisor

import (
	"sync/atomic"

	"github.com/oxyreplay/pipewarm/internal/hashid"
	"github.com/oxyreplay/pipewarm/internal/progressblock"
	"github.com/oxyreplay/pipewarm/internal/workqueue"
)

// BlockSink adapts a progressblock.Block to replay.ProgressSink: it tracks
// the current graphics/compute index locally (the engine's own counters
// are process-local) and republishes it, plus the shader-module hash about
// to be risked, into the shared block immediately before the driver call
// (§4.6).
type BlockSink struct {
	block *progressblock.Block

	graphicsIndex atomic.Int64
	computeIndex  atomic.Int64
}

// NewBlockSink wraps block. graphicsStart/computeStart seed the published
// index with the shard's absolute starting pipeline index, matching the
// source's `thread_current_graphics_index = opts.start_graphics_index`: the
// master treats a published index as absolute when deciding where a
// resubmit should resume, so a sink that always counted from zero would
// make every shard not starting at 0 unresumable. A nil block yields a sink
// whose methods are all no-ops, for unsupervised single-process runs.
func NewBlockSink(block *progressblock.Block, graphicsStart, computeStart int64) *BlockSink {
	s := &BlockSink{block: block}
	s.graphicsIndex.Store(graphicsStart)
	s.computeIndex.Store(computeStart)
	return s
}

func (s *BlockSink) BeforeCompile(kind workqueue.Kind, hash hashid.Hash) {
	if s.block == nil {
		return
	}
	switch kind {
	case workqueue.ShaderModuleItem:
		s.block.PublishFaultyModule(hash)
	case workqueue.GraphicsPipelineItem:
		idx := s.graphicsIndex.Add(1) - 1
		s.block.PublishGraphicsIndex(idx)
	case workqueue.ComputePipelineItem:
		idx := s.computeIndex.Add(1) - 1
		s.block.PublishComputeIndex(idx)
	}
}

// AddTotal, AddCompleted, AddSkipped, AddSuccessful, and AddTotalModules
// publish a counter delta to the shared block the instant the engine's own
// in-process counter changes (§4.5, §4.6), rather than waiting for the
// slave to exit cleanly and flush a batch — a crashed slave leaves every
// increment before the crash visible to the master regardless.
func (s *BlockSink) AddTotal(kind workqueue.Kind, delta int64) {
	if s.block == nil {
		return
	}
	switch kind {
	case workqueue.GraphicsPipelineItem:
		s.block.AddGraphicsTotal(delta)
	case workqueue.ComputePipelineItem:
		s.block.AddComputeTotal(delta)
	}
}

func (s *BlockSink) AddCompleted(kind workqueue.Kind, delta int64) {
	if s.block == nil {
		return
	}
	switch kind {
	case workqueue.GraphicsPipelineItem:
		s.block.AddGraphicsCompleted(delta)
	case workqueue.ComputePipelineItem:
		s.block.AddComputeCompleted(delta)
	}
}

func (s *BlockSink) AddSkipped(kind workqueue.Kind, delta int64) {
	if s.block == nil {
		return
	}
	switch kind {
	case workqueue.GraphicsPipelineItem:
		s.block.AddGraphicsSkipped(delta)
	case workqueue.ComputePipelineItem:
		s.block.AddComputeSkipped(delta)
	}
}

func (s *BlockSink) AddSuccessful(kind workqueue.Kind, delta int64) {
	if s.block == nil {
		return
	}
	switch kind {
	case workqueue.GraphicsPipelineItem:
		s.block.AddGraphicsSuccessful(delta)
	case workqueue.ComputePipelineItem:
		s.block.AddComputeSuccessful(delta)
	}
}

func (s *BlockSink) AddTotalModules(delta int64) {
	if s.block == nil {
		return
	}
	s.block.AddTotalModules(delta)
}
