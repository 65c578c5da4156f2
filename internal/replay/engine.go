// Package replay implements the concurrent replay engine (§4.2): the
// deserializer's EngineCallbacks target that classifies parsed create-infos,
// enqueues compilation work, and resolves derived pipelines.
package replay

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"github.com/oxyreplay/pipewarm/internal/deserializer"
	"github.com/oxyreplay/pipewarm/internal/driver"
	"github.com/oxyreplay/pipewarm/internal/hashid"
	"github.com/oxyreplay/pipewarm/internal/objecttable"
	"github.com/oxyreplay/pipewarm/internal/workqueue"
)

// Counters is one pipeline kind's slice of the shared progress block (§3,
// §4.6): total captured, completed (attempted, whether or not it
// succeeded), skipped (index out of shard range, including an out-of-range
// base later rescued for a derivative, or a referenced layout, render pass
// or shader module missing), and successful (a handle actually landed in
// the object table). All use relaxed/atomic ordering, matching the spec's "all
// counters use relaxed ordering" for the cross-process shared block; within
// one process these are the same atomics the progress block mirrors.
type Counters struct {
	Total      atomic.Int64
	Completed  atomic.Int64
	Skipped    atomic.Int64
	Successful atomic.Int64
}

// Snapshot is a point-in-time copy of a Counters, safe to log or publish.
type Snapshot struct {
	Total, Completed, Skipped, Successful int64
}

func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Total:      c.Total.Load(),
		Completed:  c.Completed.Load(),
		Skipped:    c.Skipped.Load(),
		Successful: c.Successful.Load(),
	}
}

// Config configures one engine instance, corresponding to the CLI flags in
// §6 that are not specific to supervision.
type Config struct {
	Device driver.Options

	GraphicsRange ShardRange
	ComputeRange  ShardRange

	Workers int
	// LoopCount repeats each shader/pipeline compile this many times for
	// throughput benchmarking (§4.2, §9). Only the first iteration's result
	// counts toward Successful, matching the source behavior the spec
	// preserves verbatim. Values <= 0 are treated as 1.
	LoopCount int

	// EnablePipelineCache turns on driver pipeline-cache load/save at all;
	// OnDiskCachePath implies it even if left false, matching --on-disk
	// -pipeline-cache's documented implication of --pipeline-cache.
	EnablePipelineCache bool
	OnDiskCachePath     string

	// MaskedShaderModules is pre-seeded from a prior crash's faulty-module
	// ring (§4.5) or from the CLI; any shader module hash in this set is
	// never submitted to the driver.
	MaskedShaderModules map[hashid.Hash]struct{}

	// RobustMode turns on the reverse handle->hash bookkeeping used for
	// crash diagnosis (§4.2): when a slave dies mid-compile, the master
	// wants to know which shader-module hash was live.
	RobustMode bool

	// ProgressSink receives a callback immediately before each risky
	// compile attempt and may publish it to a shared control block
	// (§4.5, §4.6). Nil disables publication.
	ProgressSink ProgressSink
}

// ProgressSink is implemented by the shared progress block (or a no-op for
// unsupervised runs). BeforeCompile is invoked on the worker goroutine,
// immediately before the risky driver call, matching "the ring is written
// by the slave immediately before a risky driver call" (§4.6). The Add*
// methods are invoked at the exact point each in-process counter changes,
// matching the source's `fetch_add(..., memory_order_relaxed)` on its
// control-block counters: a slave that crashes mid-shard still leaves every
// completion before the crash visible in the shared block, rather than
// losing them to a batch publish that never runs.
type ProgressSink interface {
	BeforeCompile(kind workqueue.Kind, hash hashid.Hash)
	AddTotal(kind workqueue.Kind, delta int64)
	AddCompleted(kind workqueue.Kind, delta int64)
	AddSkipped(kind workqueue.Kind, delta int64)
	AddSuccessful(kind workqueue.Kind, delta int64)
	AddTotalModules(delta int64)
}

type noopProgressSink struct{}

func (noopProgressSink) BeforeCompile(workqueue.Kind, hashid.Hash) {}
func (noopProgressSink) AddTotal(workqueue.Kind, int64)            {}
func (noopProgressSink) AddCompleted(workqueue.Kind, int64)        {}
func (noopProgressSink) AddSkipped(workqueue.Kind, int64)          {}
func (noopProgressSink) AddSuccessful(workqueue.Kind, int64)       {}
func (noopProgressSink) AddTotalModules(int64)                     {}

// Engine is the replay engine: one instance per process (or per slave in
// supervised mode), implementing deserializer.EngineCallbacks.
type Engine struct {
	cfg   Config
	pool  *workqueue.Pool
	sink  ProgressSink

	device *driver.Device
	cache  *driver.Cache

	appInfoOnce sync.Once
	appInfo     deserializer.AppInfo

	samplers          *objecttable.Table[driver.SamplerHandle]
	setLayouts        *objecttable.Table[driver.DescriptorSetLayoutHandle]
	pipelineLayouts   *objecttable.Table[driver.PipelineLayoutHandle]
	renderPasses      *objecttable.Table[driver.RenderPassHandle]
	shaderModules     *objecttable.Table[driver.ShaderModuleHandle]
	graphicsPipelines *objecttable.Table[driver.GraphicsPipelineHandle]
	computePipelines  *objecttable.Table[driver.ComputePipelineHandle]

	graphics *kindState[deserializer.GraphicsPipelineInfo, driver.GraphicsPipelineHandle]
	compute  *kindState[deserializer.ComputePipelineInfo, driver.ComputePipelineHandle]

	Graphics Counters
	Compute  Counters

	totalModules atomic.Int64

	reverseMu      sync.Mutex
	reverseShaders map[*driver.ShaderModuleHandle]hashid.Hash

	// errMu guards creationErrs, which accumulates the non-fatal DriverErrors
	// (§7) raised by the trivial object creators. Individual failures are
	// never fatal to the replay — they only leave a table entry missing —
	// but a caller driving a whole shard wants one aggregated diagnostic at
	// the end rather than grepping scrollback, so independent failures are
	// collected with multierror the same way supervisor.Master collects
	// independent slave-crash outcomes.
	errMu        sync.Mutex
	creationErrs *multierror.Error
}

var _ deserializer.EngineCallbacks = (*Engine)(nil)

// NewEngine constructs an engine ready to receive deserializer callbacks.
// The driver device itself is not created here: per §4.2, it is
// constructed lazily on the first SetApplicationInfo call.
func NewEngine(cfg Config) *Engine {
	if cfg.LoopCount <= 0 {
		cfg.LoopCount = 1
	}
	if cfg.MaskedShaderModules == nil {
		cfg.MaskedShaderModules = make(map[hashid.Hash]struct{})
	}
	sink := cfg.ProgressSink
	if sink == nil {
		sink = noopProgressSink{}
	}

	e := &Engine{
		cfg:               cfg,
		pool:              workqueue.New(cfg.Workers),
		sink:              sink,
		samplers:          objecttable.New[driver.SamplerHandle](),
		setLayouts:        objecttable.New[driver.DescriptorSetLayoutHandle](),
		pipelineLayouts:   objecttable.New[driver.PipelineLayoutHandle](),
		renderPasses:      objecttable.New[driver.RenderPassHandle](),
		shaderModules:     objecttable.New[driver.ShaderModuleHandle](),
		graphicsPipelines: objecttable.New[driver.GraphicsPipelineHandle](),
		computePipelines:  objecttable.New[driver.ComputePipelineHandle](),
		reverseShaders:    make(map[*driver.ShaderModuleHandle]hashid.Hash),
	}
	e.graphics = newKindState[deserializer.GraphicsPipelineInfo]("graphics", workqueue.GraphicsPipelineItem, e.graphicsPipelines, &e.Graphics, cfg.GraphicsRange, sink)
	e.compute = newKindState[deserializer.ComputePipelineInfo]("compute", workqueue.ComputePipelineItem, e.computePipelines, &e.Compute, cfg.ComputeRange, sink)
	return e
}

// TotalModules returns the number of shader-module create calls the engine
// has observed, masked or not, matching the shared block's total_modules
// counter (§3).
func (e *Engine) TotalModules() int64 { return e.totalModules.Load() }

// HashForShaderModule returns the hash a live shader module handle was
// created from, for crash diagnosis (§4.2, §9). Only populated when
// Config.RobustMode is set.
func (e *Engine) HashForShaderModule(handle *driver.ShaderModuleHandle) (hashid.Hash, bool) {
	e.reverseMu.Lock()
	defer e.reverseMu.Unlock()
	h, ok := e.reverseShaders[handle]
	return h, ok
}

// recordCreationError logs a non-fatal DriverError (§7) the way every
// trivial creator already does, and also appends it to creationErrs so a
// caller can report the whole shard's failures together at the end.
func (e *Engine) recordCreationError(what string, hash hashid.Hash, err error) {
	log.Printf("[replay] %s %s: %v", what, hash, err)
	e.errMu.Lock()
	e.creationErrs = multierror.Append(e.creationErrs, fmt.Errorf("%s %s: %w", what, hash, err))
	e.errMu.Unlock()
}

// CreationErrors returns every non-fatal trivial-object creation failure
// observed so far, aggregated with multierror, or nil if there were none.
// None of these stopped the replay — they only left an object-table entry
// missing (§7) — this is purely a diagnostic for the caller to log.
func (e *Engine) CreationErrors() error {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.creationErrs.ErrorOrNil()
}

// Close shuts the worker pool down, persists the pipeline cache if one was
// loaded or requested, and destroys the device — the reverse-dependency
// teardown order described in §3 Lifecycle. Objects held in the object
// tables are not released one by one; the only driver release made here is
// the device's, in driver.Device.Close.
func (e *Engine) Close() error {
	e.pool.Shutdown()

	var cacheErr error
	if e.cache != nil && e.cfg.OnDiskCachePath != "" {
		if err := e.cache.Save(e.cfg.OnDiskCachePath); err != nil {
			log.Printf("[replay] saving pipeline cache: %v", err)
			cacheErr = err
		}
	}
	if e.device != nil {
		e.device.Close()
	}
	return cacheErr
}

// Device returns the engine's driver device, valid only after
// SetApplicationInfo has been called.
func (e *Engine) Device() *driver.Device { return e.device }

// Cache returns the engine's in-memory pipeline cache.
func (e *Engine) Cache() *driver.Cache { return e.cache }

// Pool returns the underlying worker pool, so callers can Shutdown it and
// read Stats after the replay completes.
func (e *Engine) Pool() *workqueue.Pool { return e.pool }

// SetApplicationInfo is idempotent: only the first call constructs the
// device and, if configured, loads the on-disk pipeline cache (§4.2).
func (e *Engine) SetApplicationInfo(hash hashid.Hash, info deserializer.AppInfo) error {
	var initErr error
	e.appInfoOnce.Do(func() {
		e.appInfo = info
		dev, err := driver.NewDevice(e.cfg.Device)
		if err != nil {
			initErr = fmt.Errorf("replay: device init: %w", err)
			return
		}
		e.device = dev

		if e.cfg.EnablePipelineCache || e.cfg.OnDiskCachePath != "" {
			e.cache = driver.LoadCache(e.cfg.OnDiskCachePath, dev)
		} else {
			e.cache = driver.NewEmptyCache(dev)
		}
	})
	return initErr
}

// SyncThreads blocks until every work item enqueued so far has completed
// (§4.2, §5): the happens-before edge Walk relies on between the
// ShaderModule tag and the pipeline tags, and at the end of replay.
func (e *Engine) SyncThreads() {
	e.pool.Drain()
}

// CreateShaderModule enqueues a compilation work item, unless hash is
// masked (§4.2): a shader module known to crash the driver is given a null
// handle and treated as a success so downstream pipelines see a completed,
// empty entry rather than retrying forever.
func (e *Engine) CreateShaderModule(hash hashid.Hash, info deserializer.ShaderModuleInfo) error {
	e.totalModules.Add(1)
	e.sink.AddTotalModules(1)

	if _, masked := e.cfg.MaskedShaderModules[hash]; masked {
		e.shaderModules.Insert(hash, driver.ShaderModuleHandle{})
		return nil
	}

	e.pool.Enqueue(&workqueue.Item{
		Hash:               hash,
		Kind:               workqueue.ShaderModuleItem,
		ContributesToIndex: true,
		CreateInfo:         info,
		Do: func() error {
			e.sink.BeforeCompile(workqueue.ShaderModuleItem, hash)

			var handle driver.ShaderModuleHandle
			var err error
			for i := 0; i < e.cfg.LoopCount; i++ {
				handle, err = e.device.CreateShaderModule(driver.ShaderModuleDescriptor{
					Label:  info.Label,
					Source: info.Code,
				})
				// loop_count exists purely to measure repeated-compile
				// throughput; only the first iteration's outcome is ever
				// recorded (§9).
				if i == 0 {
					if err != nil {
						log.Printf("[replay] shader module %s: %v", hash, err)
						return nil
					}
					stored, _ := e.shaderModules.Insert(hash, handle)
					if e.cfg.RobustMode {
						e.reverseMu.Lock()
						e.reverseShaders[stored] = hash
						e.reverseMu.Unlock()
					}
				}
			}
			return nil
		},
	})
	return nil
}
