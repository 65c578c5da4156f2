package deserializer

import (
	"github.com/oxyreplay/pipewarm/internal/hashid"
	"github.com/oxyreplay/pipewarm/internal/restag"
)

// EngineCallbacks is the closed set of creation callbacks the deserializer
// invokes while walking an archive, one per resource tag (§4.2). The replay
// engine implements this interface; the deserializer never constructs
// driver objects itself.
type EngineCallbacks interface {
	SetApplicationInfo(hash hashid.Hash, info AppInfo) error
	CreateSampler(hash hashid.Hash, info SamplerInfo) error
	CreateDescriptorSetLayout(hash hashid.Hash, info DescriptorSetLayoutInfo) error
	CreatePipelineLayout(hash hashid.Hash, info PipelineLayoutInfo) error
	CreateRenderPass(hash hashid.Hash, info RenderPassInfo) error
	CreateShaderModule(hash hashid.Hash, info ShaderModuleInfo) error
	CreateGraphicsPipeline(hash hashid.Hash, info GraphicsPipelineInfo) error
	CreateComputePipeline(hash hashid.Hash, info ComputePipelineInfo) error

	// SyncThreads is called between tag boundaries, notably after
	// ShaderModule (before pipelines) and at the end of the replay,
	// establishing the happens-before edge described in §5.
	SyncThreads()
}

// Deserializer turns one archive blob into a typed create-info and invokes
// the matching EngineCallbacks method. set_resolve_derivative_pipeline_handles
// is deliberately not modeled as a method: pipewarm's reference
// implementation always leaves captured Hashes unresolved in
// BasePipelineHandle, matching the "false" configuration §6 requires so the
// resolver in §4.3 sees Hashes, never live handles.
type Deserializer interface {
	Parse(cb EngineCallbacks, tag restag.Tag, hash hashid.Hash, raw []byte) error
}
