package driver

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// SamplerHandle, DescriptorSetLayoutHandle, PipelineLayoutHandle,
// ShaderModuleHandle, GraphicsPipelineHandle, and ComputePipelineHandle wrap
// the native wgpu objects that back each spec resource tag. They are plain
// value types so they can be stored directly in an objecttable.Table without
// an extra pointer indirection.

type SamplerHandle struct{ Native *wgpu.Sampler }

type DescriptorSetLayoutHandle struct{ Native *wgpu.BindGroupLayout }

type PipelineLayoutHandle struct{ Native *wgpu.PipelineLayout }

type ShaderModuleHandle struct{ Native *wgpu.ShaderModule }

// RenderPassHandle has no native wgpu object (see package doc); it stores the
// validated attachment description instead.
type RenderPassHandle struct {
	ColorFormats []wgpu.TextureFormat
	DepthFormat  *wgpu.TextureFormat
	SampleCount  uint32
}

type GraphicsPipelineHandle struct{ Native *wgpu.RenderPipeline }

type ComputePipelineHandle struct{ Native *wgpu.ComputePipeline }

// SamplerDescriptor mirrors the fields of a captured sampler create-info that
// the driver actually needs.
type SamplerDescriptor struct {
	Label         string
	AddressModeU  wgpu.AddressMode
	AddressModeV  wgpu.AddressMode
	AddressModeW  wgpu.AddressMode
	MagFilter     wgpu.FilterMode
	MinFilter     wgpu.FilterMode
	MipmapFilter  wgpu.MipmapFilterMode
	LodMinClamp   float32
	LodMaxClamp   float32
	Compare       wgpu.CompareFunction
	MaxAnisotropy uint16
}

// CreateSampler is a trivial, synchronous creation call (§4.1 table, "5%").
func (d *Device) CreateSampler(desc SamplerDescriptor) (SamplerHandle, error) {
	s, err := d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         desc.Label,
		AddressModeU:  desc.AddressModeU,
		AddressModeV:  desc.AddressModeV,
		AddressModeW:  desc.AddressModeW,
		MagFilter:     desc.MagFilter,
		MinFilter:     desc.MinFilter,
		MipmapFilter:  desc.MipmapFilter,
		LodMinClamp:   desc.LodMinClamp,
		LodMaxClamp:   desc.LodMaxClamp,
		Compare:       desc.Compare,
		MaxAnisotropy: desc.MaxAnisotropy,
	})
	if err != nil {
		return SamplerHandle{}, fmt.Errorf("driver: CreateSampler %q: %w", desc.Label, err)
	}
	return SamplerHandle{Native: s}, nil
}

// DescriptorSetLayoutDescriptor mirrors a captured descriptor-set-layout
// create-info (a WebGPU bind group layout).
type DescriptorSetLayoutDescriptor struct {
	Label   string
	Entries []wgpu.BindGroupLayoutEntry
}

// CreateDescriptorSetLayout is a trivial, synchronous creation call.
func (d *Device) CreateDescriptorSetLayout(desc DescriptorSetLayoutDescriptor) (DescriptorSetLayoutHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	l, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   desc.Label,
		Entries: desc.Entries,
	})
	if err != nil {
		return DescriptorSetLayoutHandle{}, fmt.Errorf("driver: CreateDescriptorSetLayout %q: %w", desc.Label, err)
	}
	return DescriptorSetLayoutHandle{Native: l}, nil
}

// PipelineLayoutDescriptor references already-created descriptor-set-layout
// handles, resolved by the caller from the object table before this is
// built.
type PipelineLayoutDescriptor struct {
	Label              string
	DescriptorSetLayouts []DescriptorSetLayoutHandle
}

// CreatePipelineLayout is a trivial, synchronous creation call.
func (d *Device) CreatePipelineLayout(desc PipelineLayoutDescriptor) (PipelineLayoutHandle, error) {
	natives := make([]*wgpu.BindGroupLayout, len(desc.DescriptorSetLayouts))
	for i, l := range desc.DescriptorSetLayouts {
		if l.Native == nil {
			return PipelineLayoutHandle{}, fmt.Errorf("driver: CreatePipelineLayout %q: descriptor-set layout %d is invalid", desc.Label, i)
		}
		natives[i] = l.Native
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	pl, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: natives,
	})
	if err != nil {
		return PipelineLayoutHandle{}, fmt.Errorf("driver: CreatePipelineLayout %q: %w", desc.Label, err)
	}
	return PipelineLayoutHandle{Native: pl}, nil
}

// RenderPassDescriptor mirrors a captured render-pass create-info.
type RenderPassDescriptor struct {
	Label        string
	ColorFormats []wgpu.TextureFormat
	DepthFormat  *wgpu.TextureFormat
	SampleCount  uint32
}

// CreateRenderPass validates the attachment description. WebGPU has no
// persistent render-pass object (see package doc), so there is no driver
// call to make beyond checking the formats are non-empty; the result is
// stored in the object table like every other tag so derived pipelines can
// still reference it.
func (d *Device) CreateRenderPass(desc RenderPassDescriptor) (RenderPassHandle, error) {
	if len(desc.ColorFormats) == 0 && desc.DepthFormat == nil {
		return RenderPassHandle{}, errors.New("driver: CreateRenderPass requires at least one color or depth attachment")
	}
	sampleCount := desc.SampleCount
	if sampleCount == 0 {
		sampleCount = 1
	}
	return RenderPassHandle{
		ColorFormats: desc.ColorFormats,
		DepthFormat:  desc.DepthFormat,
		SampleCount:  sampleCount,
	}, nil
}

// ShaderModuleDescriptor carries the shader source captured in the archive.
// Captured bytes are interpreted as WGSL source text — the only shader
// source kind the underlying wgpu binding's CreateShaderModule accepts.
type ShaderModuleDescriptor struct {
	Label  string
	Source string
}

// CreateShaderModule is invoked from a worker goroutine, never the engine's
// calling thread (§4.2): shader modules are always queued work items.
func (d *Device) CreateShaderModule(desc ShaderModuleDescriptor) (ShaderModuleHandle, error) {
	m, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: desc.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: desc.Source,
		},
	})
	if err != nil {
		return ShaderModuleHandle{}, fmt.Errorf("driver: CreateShaderModule %q: %w", desc.Label, err)
	}
	return ShaderModuleHandle{Native: m}, nil
}

// GraphicsPipelineDescriptor references already-resolved handles: the
// pipeline layout, vertex/fragment shader modules, and render pass, all
// looked up from the object table by the caller.
type GraphicsPipelineDescriptor struct {
	Label              string
	Layout             PipelineLayoutHandle
	VertexShader       ShaderModuleHandle
	VertexEntryPoint   string
	FragmentShader     ShaderModuleHandle
	FragmentEntryPoint string
	RenderPass         RenderPassHandle
	Topology           wgpu.PrimitiveTopology
	CullMode           wgpu.CullMode
	FrontFace          wgpu.FrontFace
	DepthTestEnabled   bool
	DepthWriteEnabled  bool
}

// CreateGraphicsPipeline is invoked from a worker goroutine (§4.3).
func (d *Device) CreateGraphicsPipeline(desc GraphicsPipelineDescriptor) (GraphicsPipelineHandle, error) {
	if desc.Layout.Native == nil {
		return GraphicsPipelineHandle{}, fmt.Errorf("driver: CreateGraphicsPipeline %q: invalid pipeline layout", desc.Label)
	}
	if desc.VertexShader.Native == nil || desc.FragmentShader.Native == nil {
		return GraphicsPipelineHandle{}, fmt.Errorf("driver: CreateGraphicsPipeline %q: invalid shader module", desc.Label)
	}

	targets := make([]wgpu.ColorTargetState, len(desc.RenderPass.ColorFormats))
	for i, f := range desc.RenderPass.ColorFormats {
		targets[i] = wgpu.ColorTargetState{Format: f, WriteMask: wgpu.ColorWriteMaskAll}
	}

	var depthStencil *wgpu.DepthStencilState
	if desc.RenderPass.DepthFormat != nil {
		depthStencil = &wgpu.DepthStencilState{
			Format:            *desc.RenderPass.DepthFormat,
			DepthWriteEnabled:  desc.DepthWriteEnabled,
		}
		if desc.DepthTestEnabled {
			depthStencil.DepthCompare = wgpu.CompareFunctionLess
		} else {
			depthStencil.DepthCompare = wgpu.CompareFunctionAlways
		}
	}

	created, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: desc.Layout.Native,
		Vertex: wgpu.VertexState{
			Module:     desc.VertexShader.Native,
			EntryPoint: desc.VertexEntryPoint,
		},
		Fragment: &wgpu.FragmentState{
			Module:     desc.FragmentShader.Native,
			EntryPoint: desc.FragmentEntryPoint,
			Targets:    targets,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  desc.Topology,
			CullMode:  desc.CullMode,
			FrontFace: desc.FrontFace,
		},
		DepthStencil: depthStencil,
		Multisample: wgpu.MultisampleState{
			Count:                  orOne(desc.RenderPass.SampleCount),
			Mask:                   0xFFFFFFFF,
			AlphaToCoverageEnabled: false,
		},
	})
	if err != nil {
		return GraphicsPipelineHandle{}, fmt.Errorf("driver: CreateGraphicsPipeline %q: %w", desc.Label, err)
	}
	return GraphicsPipelineHandle{Native: created}, nil
}

// ComputePipelineDescriptor references already-resolved handles.
type ComputePipelineDescriptor struct {
	Label          string
	Layout         PipelineLayoutHandle
	ComputeShader  ShaderModuleHandle
	EntryPoint     string
}

// CreateComputePipeline is invoked from a worker goroutine (§4.3).
func (d *Device) CreateComputePipeline(desc ComputePipelineDescriptor) (ComputePipelineHandle, error) {
	if desc.Layout.Native == nil {
		return ComputePipelineHandle{}, fmt.Errorf("driver: CreateComputePipeline %q: invalid pipeline layout", desc.Label)
	}
	if desc.ComputeShader.Native == nil {
		return ComputePipelineHandle{}, fmt.Errorf("driver: CreateComputePipeline %q: invalid shader module", desc.Label)
	}

	created, err := d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  desc.Label,
		Layout: desc.Layout.Native,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     desc.ComputeShader.Native,
			EntryPoint: desc.EntryPoint,
		},
	})
	if err != nil {
		return ComputePipelineHandle{}, fmt.Errorf("driver: CreateComputePipeline %q: %w", desc.Label, err)
	}
	return ComputePipelineHandle{Native: created}, nil
}

func orOne(n uint32) uint32 {
	if n == 0 {
		return 1
	}
	return n
}
