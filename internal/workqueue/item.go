package workqueue

import "github.com/oxyreplay/pipewarm/internal/hashid"

// Kind identifies the tagged kind of a work item. Only the three tags that
// are ever compiled on the worker pool appear here — trivial objects never
// reach the queue.
type Kind int

const (
	// ShaderModuleItem compiles a shader module.
	ShaderModuleItem Kind = iota
	// GraphicsPipelineItem compiles a graphics pipeline.
	GraphicsPipelineItem
	// ComputePipelineItem compiles a compute pipeline.
	ComputePipelineItem
)

// Item is a unit of compilation work submitted to the queue.
//
// CreateInfo holds a copy of the parsed create-info. There is no separate
// output field: the Do closure writes the created (driver-opaque) handle
// into the object table on success, and other in-flight items that
// reference this one by hash observe it through the table.
type Item struct {
	Hash       hashid.Hash
	Kind       Kind
	// ContributesToIndex is false for pipelines compiled only as derivation
	// prerequisites outside the shard's replay range — they must not advance
	// the per-tag completed/skipped counters a second time.
	ContributesToIndex bool
	// CreateInfo is opaque to the queue; only the Do closure below
	// interprets it by capturing the concrete create-info in its closure.
	CreateInfo any
	// Do performs the actual driver call. It is supplied by the replay
	// engine so the queue itself never imports the driver package.
	Do func() error
}
