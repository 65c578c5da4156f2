package deserializer

import (
	"encoding/json"
	"fmt"

	"github.com/oxyreplay/pipewarm/internal/hashid"
	"github.com/oxyreplay/pipewarm/internal/restag"
)

// JSON is a reference Deserializer implementation: every archive entry is a
// JSON document whose shape matches the create-info struct for its tag. A
// production archive format is out of scope (§1); this is the "JSON state
// deserializer" the spec names as an external collaborator, made concrete
// enough to exercise the engine end to end.
type JSON struct{}

// NewJSON constructs a JSON deserializer. It holds no state.
func NewJSON() *JSON { return &JSON{} }

var _ Deserializer = (*JSON)(nil)

// Parse decodes raw per tag and invokes the matching EngineCallbacks method.
// A malformed blob is an ArchiveError (§7): it is returned to the caller,
// which logs and skips the entry rather than treating it as fatal.
func (JSON) Parse(cb EngineCallbacks, tag restag.Tag, hash hashid.Hash, raw []byte) error {
	switch tag {
	case restag.AppInfo:
		var info AppInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			return fmt.Errorf("deserializer: AppInfo %s: %w", hash, err)
		}
		return cb.SetApplicationInfo(hash, info)

	case restag.Sampler:
		var info SamplerInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			return fmt.Errorf("deserializer: Sampler %s: %w", hash, err)
		}
		return cb.CreateSampler(hash, info)

	case restag.DescriptorSetLayout:
		var info DescriptorSetLayoutInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			return fmt.Errorf("deserializer: DescriptorSetLayout %s: %w", hash, err)
		}
		return cb.CreateDescriptorSetLayout(hash, info)

	case restag.PipelineLayout:
		var info PipelineLayoutInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			return fmt.Errorf("deserializer: PipelineLayout %s: %w", hash, err)
		}
		return cb.CreatePipelineLayout(hash, info)

	case restag.RenderPass:
		var info RenderPassInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			return fmt.Errorf("deserializer: RenderPass %s: %w", hash, err)
		}
		return cb.CreateRenderPass(hash, info)

	case restag.ShaderModule:
		var info ShaderModuleInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			return fmt.Errorf("deserializer: ShaderModule %s: %w", hash, err)
		}
		return cb.CreateShaderModule(hash, info)

	case restag.GraphicsPipeline:
		var info GraphicsPipelineInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			return fmt.Errorf("deserializer: GraphicsPipeline %s: %w", hash, err)
		}
		return cb.CreateGraphicsPipeline(hash, info)

	case restag.ComputePipeline:
		var info ComputePipelineInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			return fmt.Errorf("deserializer: ComputePipeline %s: %w", hash, err)
		}
		return cb.CreateComputePipeline(hash, info)

	default:
		return fmt.Errorf("deserializer: unknown tag %v for hash %s", tag, hash)
	}
}
