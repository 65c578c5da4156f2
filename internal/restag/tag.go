// Package restag defines the closed set of resource tags an archive can
// contain and their fixed playback order.
package restag

// Tag identifies the kind of object a captured blob deserializes into.
type Tag int

const (
	// AppInfo carries application/engine metadata and feature requests. It is
	// always first: the device is constructed from it.
	AppInfo Tag = iota
	// Sampler is a trivial object created synchronously.
	Sampler
	// DescriptorSetLayout is a trivial object created synchronously.
	DescriptorSetLayout
	// PipelineLayout is a trivial object created synchronously.
	PipelineLayout
	// RenderPass is a trivial object created synchronously.
	RenderPass
	// ShaderModule is compiled on the worker pool.
	ShaderModule
	// GraphicsPipeline is compiled on the worker pool, subject to shard
	// filtering and derivation resolution.
	GraphicsPipeline
	// ComputePipeline is compiled on the worker pool, subject to shard
	// filtering and derivation resolution.
	ComputePipeline
)

// playbackOrder is the fixed order in which the deserializer is expected to
// walk tags while parsing an archive: AppInfo first, then the trivial
// objects, then shader modules, then pipelines last.
var playbackOrder = [...]Tag{
	AppInfo,
	Sampler,
	DescriptorSetLayout,
	PipelineLayout,
	RenderPass,
	ShaderModule,
	GraphicsPipeline,
	ComputePipeline,
}

// Order returns the archive's published playback order.
func Order() []Tag {
	out := make([]Tag, len(playbackOrder))
	copy(out, playbackOrder[:])
	return out
}

// IsPipeline reports whether the tag denotes a pipeline kind that is subject
// to shard-range filtering and derivation resolution.
func (t Tag) IsPipeline() bool {
	return t == GraphicsPipeline || t == ComputePipeline
}

// String returns a short human-readable name, used in log lines and error
// messages.
func (t Tag) String() string {
	switch t {
	case AppInfo:
		return "AppInfo"
	case Sampler:
		return "Sampler"
	case DescriptorSetLayout:
		return "DescriptorSetLayout"
	case PipelineLayout:
		return "PipelineLayout"
	case RenderPass:
		return "RenderPass"
	case ShaderModule:
		return "ShaderModule"
	case GraphicsPipeline:
		return "GraphicsPipeline"
	case ComputePipeline:
		return "ComputePipeline"
	default:
		return "Unknown"
	}
}
