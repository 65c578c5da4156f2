package replay

import (
	"log"

	"github.com/oxyreplay/pipewarm/internal/deserializer"
	"github.com/oxyreplay/pipewarm/internal/driver"
	"github.com/oxyreplay/pipewarm/internal/hashid"
)

// errKindSampler, errKindDescriptorSetLayout, errKindPipelineLayout, and
// errKindRenderPass label recordCreationError entries by tag so an
// aggregated CreationErrors() report reads like the per-call log lines it
// replaces.
const (
	errKindSampler             = "sampler"
	errKindDescriptorSetLayout = "descriptor set layout"
	errKindPipelineLayout      = "pipeline layout"
	errKindRenderPass          = "render pass"
)

// CreateSampler is a trivial, synchronous creation call (§4.2).
func (e *Engine) CreateSampler(hash hashid.Hash, info deserializer.SamplerInfo) error {
	handle, err := e.device.CreateSampler(driver.SamplerDescriptor{
		Label:         info.Label,
		AddressModeU:  addressMode(info.AddressModeU),
		AddressModeV:  addressMode(info.AddressModeV),
		AddressModeW:  addressMode(info.AddressModeW),
		MagFilter:     filterMode(info.MagFilter),
		MinFilter:     filterMode(info.MinFilter),
		MipmapFilter:  mipmapFilterMode(info.MipmapFilter),
		LodMinClamp:   info.LodMinClamp,
		LodMaxClamp:   info.LodMaxClamp,
		Compare:       compareFunction(info.CompareOp),
		MaxAnisotropy: info.MaxAnisotropy,
	})
	if err != nil {
		e.recordCreationError(errKindSampler, hash, err)
		return nil
	}
	e.samplers.Insert(hash, handle)
	return nil
}

// CreateDescriptorSetLayout is a trivial, synchronous creation call.
func (e *Engine) CreateDescriptorSetLayout(hash hashid.Hash, info deserializer.DescriptorSetLayoutInfo) error {
	handle, err := e.device.CreateDescriptorSetLayout(driver.DescriptorSetLayoutDescriptor{
		Label:   info.Label,
		Entries: bindingEntries(info.Bindings),
	})
	if err != nil {
		e.recordCreationError(errKindDescriptorSetLayout, hash, err)
		return nil
	}
	e.setLayouts.Insert(hash, handle)
	return nil
}

// CreatePipelineLayout is a trivial, synchronous creation call. Descriptor
// set layouts referenced by hash must already have an object-table entry:
// they play back earlier in the archive's published tag order (§3).
func (e *Engine) CreatePipelineLayout(hash hashid.Hash, info deserializer.PipelineLayoutInfo) error {
	layouts := make([]driver.DescriptorSetLayoutHandle, 0, len(info.SetLayouts))
	for _, setHash := range info.SetLayouts {
		l, ok := e.setLayouts.Get(setHash)
		if !ok {
			log.Printf("[replay] pipeline layout %s: descriptor set layout %s not found", hash, setHash)
			return nil
		}
		layouts = append(layouts, *l)
	}

	handle, err := e.device.CreatePipelineLayout(driver.PipelineLayoutDescriptor{
		Label:                info.Label,
		DescriptorSetLayouts: layouts,
	})
	if err != nil {
		e.recordCreationError(errKindPipelineLayout, hash, err)
		return nil
	}
	e.pipelineLayouts.Insert(hash, handle)
	return nil
}

// CreateRenderPass is a trivial, synchronous creation call. WebGPU has no
// persistent render-pass object, so this only validates and records the
// attachment description (see internal/driver package doc).
func (e *Engine) CreateRenderPass(hash hashid.Hash, info deserializer.RenderPassInfo) error {
	desc := driver.RenderPassDescriptor{Label: info.Label, SampleCount: info.SampleCount}
	for _, f := range info.ColorFormats {
		desc.ColorFormats = append(desc.ColorFormats, textureFormat(f))
	}
	if info.DepthFormat != "" {
		df := textureFormat(info.DepthFormat)
		desc.DepthFormat = &df
	}

	handle, err := e.device.CreateRenderPass(desc)
	if err != nil {
		e.recordCreationError(errKindRenderPass, hash, err)
		return nil
	}
	e.renderPasses.Insert(hash, handle)
	return nil
}
