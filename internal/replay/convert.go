package replay

import (
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/oxyreplay/pipewarm/internal/deserializer"
)

// The deserializer's create-info structs carry driver enums as plain
// strings (the JSON reference format has no wgpu dependency, per
// deserializer's package doc). These lookups turn captured names back into
// wgpu constants, the same join point the teacher's wgsl_parser.go performs
// for texel formats.

func addressMode(s string) wgpu.AddressMode {
	switch strings.ToLower(s) {
	case "clamp", "clamptoedge":
		return wgpu.AddressModeClampToEdge
	case "mirror", "mirrorrepeat":
		return wgpu.AddressModeMirrorRepeat
	default:
		return wgpu.AddressModeRepeat
	}
}

func filterMode(s string) wgpu.FilterMode {
	if strings.EqualFold(s, "nearest") {
		return wgpu.FilterModeNearest
	}
	return wgpu.FilterModeLinear
}

func mipmapFilterMode(s string) wgpu.MipmapFilterMode {
	if strings.EqualFold(s, "nearest") {
		return wgpu.MipmapFilterModeNearest
	}
	return wgpu.MipmapFilterModeLinear
}

func compareFunction(s string) wgpu.CompareFunction {
	switch strings.ToLower(s) {
	case "never":
		return wgpu.CompareFunctionNever
	case "less":
		return wgpu.CompareFunctionLess
	case "equal":
		return wgpu.CompareFunctionEqual
	case "lessequal", "less_equal":
		return wgpu.CompareFunctionLessEqual
	case "greater":
		return wgpu.CompareFunctionGreater
	case "notequal", "not_equal":
		return wgpu.CompareFunctionNotEqual
	case "greaterequal", "greater_equal":
		return wgpu.CompareFunctionGreaterEqual
	default:
		return wgpu.CompareFunctionAlways
	}
}

func textureFormat(s string) wgpu.TextureFormat {
	switch strings.ToLower(s) {
	case "rgba8unorm":
		return wgpu.TextureFormatRGBA8Unorm
	case "rgba8unormsrgb":
		return wgpu.TextureFormatRGBA8UnormSrgb
	case "rgba8snorm":
		return wgpu.TextureFormatRGBA8Snorm
	case "rgba8uint":
		return wgpu.TextureFormatRGBA8Uint
	case "rgba8sint":
		return wgpu.TextureFormatRGBA8Sint
	case "bgra8unorm":
		return wgpu.TextureFormatBGRA8Unorm
	case "r32uint":
		return wgpu.TextureFormatR32Uint
	case "r32sint":
		return wgpu.TextureFormatR32Sint
	case "r32float":
		return wgpu.TextureFormatR32Float
	case "rg32uint":
		return wgpu.TextureFormatRG32Uint
	case "rg32sint":
		return wgpu.TextureFormatRG32Sint
	case "rg32float":
		return wgpu.TextureFormatRG32Float
	case "rgba32uint":
		return wgpu.TextureFormatRGBA32Uint
	case "rgba32sint":
		return wgpu.TextureFormatRGBA32Sint
	case "rgba32float":
		return wgpu.TextureFormatRGBA32Float
	case "depth24plus":
		return wgpu.TextureFormatDepth24Plus
	case "depth32float":
		return wgpu.TextureFormatDepth32Float
	default:
		return wgpu.TextureFormatRGBA8Unorm
	}
}

func primitiveTopology(s string) wgpu.PrimitiveTopology {
	switch strings.ToLower(s) {
	case "pointlist":
		return wgpu.PrimitiveTopologyPointList
	case "linelist":
		return wgpu.PrimitiveTopologyLineList
	case "linestrip":
		return wgpu.PrimitiveTopologyLineStrip
	case "trianglestrip":
		return wgpu.PrimitiveTopologyTriangleStrip
	default:
		return wgpu.PrimitiveTopologyTriangleList
	}
}

func cullMode(s string) wgpu.CullMode {
	switch strings.ToLower(s) {
	case "front":
		return wgpu.CullModeFront
	case "back":
		return wgpu.CullModeBack
	default:
		return wgpu.CullModeNone
	}
}

func frontFace(s string) wgpu.FrontFace {
	if strings.EqualFold(s, "cw") {
		return wgpu.FrontFaceCW
	}
	return wgpu.FrontFaceCCW
}

func shaderStageVisibility(stages []string) wgpu.ShaderStage {
	var vis wgpu.ShaderStage
	for _, s := range stages {
		switch strings.ToLower(s) {
		case "vertex":
			vis |= wgpu.ShaderStageVertex
		case "fragment":
			vis |= wgpu.ShaderStageFragment
		case "compute":
			vis |= wgpu.ShaderStageCompute
		}
	}
	return vis
}

// bindingEntries builds bind group layout entries from a descriptor-set
// layout's captured bindings, the same buffer/sampler/texture-type split
// the teacher's wgsl_parser_backend.go performs while walking shader source
// instead of a capture.
func bindingEntries(bindings []deserializer.DescriptorSetLayoutBinding) []wgpu.BindGroupLayoutEntry {
	entries := make([]wgpu.BindGroupLayoutEntry, len(bindings))
	for i, b := range bindings {
		entry := wgpu.BindGroupLayoutEntry{
			Binding:    b.Binding,
			Visibility: shaderStageVisibility(b.StageFlags),
		}
		switch strings.ToLower(b.Type) {
		case "uniformbuffer", "uniform_buffer":
			entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		case "storagebuffer", "storage_buffer":
			entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		case "readonlystoragebuffer", "readonly_storage_buffer":
			entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		case "sampler":
			entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
		case "comparisonsampler", "comparison_sampler":
			entry.Sampler.Type = wgpu.SamplerBindingTypeComparison
		case "sampledtexture", "sampled_texture":
			entry.Texture.SampleType = wgpu.TextureSampleTypeFloat
			entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
		default:
			entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		}
		entries[i] = entry
	}
	return entries
}
