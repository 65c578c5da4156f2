package replay

import (
	"log"

	"github.com/oxyreplay/pipewarm/internal/deserializer"
	"github.com/oxyreplay/pipewarm/internal/driver"
	"github.com/oxyreplay/pipewarm/internal/hashid"
	"github.com/oxyreplay/pipewarm/internal/workqueue"
)

// rewriteGraphicsBase and rewriteComputeBase exist to mirror §4.3 step 3 ("rewrite basePipelineHandle
// from the captured Hash to the live handle"). WebGPU's
// CreateRenderPipeline/CreateComputePipeline descriptors carry no
// base-pipeline field at all — unlike vkGraphicsPipelineCreateInfo, wgpu
// does not support pipeline derivatives as a compilation hint (see
// DESIGN.md). The live handle is still looked up and passed in so the
// resolver's dependency proof (invariant 3: the base must already have a
// table entry) is real, even though there is nothing left to write it
// into; the live-handle parameter is deliberately unused below.
func rewriteGraphicsBase(info deserializer.GraphicsPipelineInfo, _ *driver.GraphicsPipelineHandle) deserializer.GraphicsPipelineInfo {
	return info
}

func rewriteComputeBase(info deserializer.ComputePipelineInfo, _ *driver.ComputePipelineHandle) deserializer.ComputePipelineInfo {
	return info
}

// CreateGraphicsPipeline classifies and dispatches per §4.3.
func (e *Engine) CreateGraphicsPipeline(hash hashid.Hash, info deserializer.GraphicsPipelineInfo) error {
	e.graphics.classify(hash, info.Flags, info.BasePipelineHandle, info, e.enqueueGraphics)
	return nil
}

// CreateComputePipeline classifies and dispatches per §4.3.
func (e *Engine) CreateComputePipeline(hash hashid.Hash, info deserializer.ComputePipelineInfo) error {
	e.compute.classify(hash, info.Flags, info.BasePipelineHandle, info, e.enqueueCompute)
	return nil
}

// ResolveGraphicsPipelines and ResolveComputePipelines run §4.3 Resolution
// to completion for their kind. The CLI/archive walker calls these once the
// normal pass over the corresponding tag has finished parsing every entry.
func (e *Engine) ResolveGraphicsPipelines() error {
	return e.graphics.resolve(e.pool, rewriteGraphicsBase, e.enqueueGraphics)
}

func (e *Engine) ResolveComputePipelines() error {
	return e.compute.resolve(e.pool, rewriteComputeBase, e.enqueueCompute)
}

func (e *Engine) enqueueGraphics(item pipelineItem[deserializer.GraphicsPipelineInfo], contributesToIndex bool) {
	hash := item.hash
	info := item.info

	e.pool.Enqueue(&workqueue.Item{
		Hash:               hash,
		Kind:               workqueue.GraphicsPipelineItem,
		ContributesToIndex: contributesToIndex,
		CreateInfo:         info,
		Do: func() error {
			e.sink.BeforeCompile(workqueue.GraphicsPipelineItem, hash)

			layout, layoutOK := e.pipelineLayouts.Get(info.Layout)
			renderPass, rpOK := e.renderPasses.Get(info.RenderPass)
			vs, vsOK := e.shaderModules.Get(info.VertexShader)
			fs, fsOK := e.shaderModules.Get(info.FragmentShader)
			ok := layoutOK && rpOK && vsOK && fsOK && vs.Native != nil && fs.Native != nil

			if !ok {
				log.Printf("[replay] graphics pipeline %s: invalid derivative pipeline (missing layout/render-pass/shader)", hash)
				if contributesToIndex {
					e.Graphics.Skipped.Add(1)
					e.sink.AddSkipped(workqueue.GraphicsPipelineItem, 1)
				}
				return nil
			}
			if contributesToIndex {
				e.Graphics.Completed.Add(1)
				e.sink.AddCompleted(workqueue.GraphicsPipelineItem, 1)
			}

			desc := driver.GraphicsPipelineDescriptor{
				Label:              info.Label,
				Layout:             *layout,
				VertexShader:       *vs,
				VertexEntryPoint:   info.VertexEntryPoint,
				FragmentShader:     *fs,
				FragmentEntryPoint: info.FragmentEntryPoint,
				RenderPass:         *renderPass,
				Topology:           primitiveTopology(info.Topology),
				CullMode:           cullMode(info.CullMode),
				FrontFace:          frontFace(info.FrontFace),
				DepthTestEnabled:   info.DepthTestEnabled,
				DepthWriteEnabled:  info.DepthWriteEnabled,
			}
			handle, err := e.device.CreateGraphicsPipeline(desc)
			if err != nil {
				log.Printf("[replay] graphics pipeline %s: %v", hash, err)
				return nil
			}
			// loop_count repeats the compile for throughput measurement; only
			// the first iteration's outcome is recorded (§9).
			for i := 1; i < e.cfg.LoopCount; i++ {
				e.device.CreateGraphicsPipeline(desc)
			}
			e.graphicsPipelines.Insert(hash, handle)
			if contributesToIndex {
				e.Graphics.Successful.Add(1)
				e.sink.AddSuccessful(workqueue.GraphicsPipelineItem, 1)
			}
			return nil
		},
	})
}

func (e *Engine) enqueueCompute(item pipelineItem[deserializer.ComputePipelineInfo], contributesToIndex bool) {
	hash := item.hash
	info := item.info

	e.pool.Enqueue(&workqueue.Item{
		Hash:               hash,
		Kind:               workqueue.ComputePipelineItem,
		ContributesToIndex: contributesToIndex,
		CreateInfo:         info,
		Do: func() error {
			e.sink.BeforeCompile(workqueue.ComputePipelineItem, hash)

			layout, layoutOK := e.pipelineLayouts.Get(info.Layout)
			cs, csOK := e.shaderModules.Get(info.ComputeShader)
			ok := layoutOK && csOK && cs.Native != nil

			if !ok {
				log.Printf("[replay] compute pipeline %s: invalid derivative pipeline (missing layout/shader)", hash)
				if contributesToIndex {
					e.Compute.Skipped.Add(1)
					e.sink.AddSkipped(workqueue.ComputePipelineItem, 1)
				}
				return nil
			}
			if contributesToIndex {
				e.Compute.Completed.Add(1)
				e.sink.AddCompleted(workqueue.ComputePipelineItem, 1)
			}

			desc := driver.ComputePipelineDescriptor{
				Label:         info.Label,
				Layout:        *layout,
				ComputeShader: *cs,
				EntryPoint:    info.EntryPoint,
			}
			handle, err := e.device.CreateComputePipeline(desc)
			if err != nil {
				log.Printf("[replay] compute pipeline %s: %v", hash, err)
				return nil
			}
			// loop_count repeats the compile for throughput measurement; only
			// the first iteration's outcome is recorded (§9).
			for i := 1; i < e.cfg.LoopCount; i++ {
				e.device.CreateComputePipeline(desc)
			}
			e.computePipelines.Insert(hash, handle)
			if contributesToIndex {
				e.Compute.Successful.Add(1)
				e.sink.AddSuccessful(workqueue.ComputePipelineItem, 1)
			}
			return nil
		},
	})
}
