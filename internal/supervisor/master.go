package supervisor

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/oxyreplay/pipewarm/internal/archive"
	"github.com/oxyreplay/pipewarm/internal/hashid"
	"github.com/oxyreplay/pipewarm/internal/progressblock"
	"github.com/oxyreplay/pipewarm/internal/replay"
	"github.com/oxyreplay/pipewarm/internal/restag"
)

// Config configures a master run (§4.5, §6).
type Config struct {
	ArchivePath string
	BinaryPath  string // defaults to the running executable
	ShmPath     string // backing file for the shared progress block

	Stride    int
	MaxSlaves int
	Timeout   time.Duration // 0 disables the per-slave deadline
	QuietSlave bool

	LoopCount        int
	EnableValidation bool
	DeviceIndex      int
	PipelineCache    bool
	OnDiskCachePath  string
}

// Master spawns, monitors, and resubmits slave processes across shards of
// the archive's pipeline index space (§4.5).
type Master struct {
	cfg   Config
	block *progressblock.Block
	pool  worker.DynamicWorkerPool

	mu            sync.Mutex
	bannedModules map[hashid.Hash]struct{}
	// crashReport aggregates one diagnostic entry per recovered DirtyCrash
	// or Timeout across every shard, the way Engine.CreationErrors
	// aggregates independent trivial-object failures within a process: none
	// of these are fatal to Run, since the residual range always gets
	// resubmitted, but the caller wants the whole round's fault history in
	// one place rather than scraped from slave-process stderr.
	crashReport *multierror.Error
}

// NewMaster creates the shared progress block and the bounded pool of
// concurrent slave slots, mirroring the teacher's computePool setup in
// engine/scene/scene.go (a worker.DynamicWorkerPool sized to the caller's
// concurrency budget, reused across submissions).
func NewMaster(cfg Config) (*Master, error) {
	if cfg.BinaryPath == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("supervisor: resolve executable path: %w", err)
		}
		cfg.BinaryPath = exe
	}
	if cfg.MaxSlaves <= 0 {
		cfg.MaxSlaves = 1
	}
	if cfg.Stride <= 0 {
		cfg.Stride = 64
	}

	block, err := progressblock.Create(cfg.ShmPath)
	if err != nil {
		return nil, err
	}

	return &Master{
		cfg:           cfg,
		block:         block,
		pool:          worker.NewDynamicWorkerPool(cfg.MaxSlaves, 256, time.Second),
		bannedModules: make(map[hashid.Hash]struct{}),
	}, nil
}

// Close tears down the shared progress block.
func (m *Master) Close() error {
	return m.block.Close(m.cfg.ShmPath)
}

// Block returns the shared progress block, for the progress role to poll.
func (m *Master) Block() *progressblock.Block { return m.block }

func partition(total, stride int) []replay.ShardRange {
	if total <= 0 {
		return nil
	}
	var shards []replay.ShardRange
	for start := 0; start < total; start += stride {
		end := start + stride
		if end > total {
			end = total
		}
		shards = append(shards, replay.ShardRange{Start: start, End: end})
	}
	return shards
}

// Run partitions the archive's graphics/compute pipeline index space into
// shards of cfg.Stride and drives each shard to completion, resubmitting
// past crashes, with at most cfg.MaxSlaves running concurrently.
func (m *Master) Run(ctx context.Context, reader archive.Reader) error {
	graphicsHashes, err := reader.HashList(restag.GraphicsPipeline)
	if err != nil {
		return fmt.Errorf("supervisor: reading graphics pipeline index: %w", err)
	}
	computeHashes, err := reader.HashList(restag.ComputePipeline)
	if err != nil {
		return fmt.Errorf("supervisor: reading compute pipeline index: %w", err)
	}

	total := len(graphicsHashes)
	if len(computeHashes) > total {
		total = len(computeHashes)
	}
	shards := partition(total, m.cfg.Stride)
	log.Printf("[master] %d shard(s) of stride %d over %d pipeline indices", len(shards), m.cfg.Stride, total)

	var wg sync.WaitGroup
	for i, shard := range shards {
		wg.Add(1)
		id, sh := i, shard
		m.pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				m.runShard(ctx, sh)
				return nil, nil
			},
		})
	}
	wg.Wait()
	return nil
}

// runShard spawns a slave for shard, resubmitting the residual range after
// any crash or timeout until the shard is exhausted (§4.5).
func (m *Master) runShard(ctx context.Context, shard replay.ShardRange) {
	bo := backoff.NewExponentialBackOff()
	current := shard

	for current.Start < current.End {
		state, lastGraphics, lastCompute, faulty := m.spawnOnce(ctx, current)
		m.recordFaulty(faulty)

		switch state {
		case Completed:
			return
		case CleanExit:
			m.block.AddCleanCrashes(1)
			return
		case DirtyCrash, Timeout:
			m.block.AddDirtyCrashes(1)
			m.recordCrash(current, state)
			lastIndex := lastGraphics
			if lastCompute > lastIndex {
				lastIndex = lastCompute
			}
			resumeFrom := int(lastIndex) + 1
			if resumeFrom <= current.Start {
				resumeFrom = current.Start
			}
			if resumeFrom >= current.End {
				return
			}
			current = replay.ShardRange{Start: resumeFrom, End: current.End}
			time.Sleep(bo.NextBackOff())
		default:
			return
		}
	}
}

// recordCrash appends one diagnostic entry to the master's aggregated
// crash report. Never consulted to decide whether to resubmit — that
// decision is made purely from the shared block's last-published indices.
func (m *Master) recordCrash(shard replay.ShardRange, state SlaveState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.crashReport = multierror.Append(m.crashReport,
		fmt.Errorf("shard [%d,%d): slave %s", shard.Start, shard.End, state))
}

// Report returns every recovered crash observed across every shard,
// aggregated with multierror, or nil if the replay had none. Run always
// resubmits past these and returns nil on its own account; this is a
// diagnostic for the caller to log alongside the final counters.
func (m *Master) Report() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.crashReport.ErrorOrNil()
}

func (m *Master) recordFaulty(hashes []hashid.Hash) {
	if len(hashes) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range hashes {
		if _, already := m.bannedModules[h]; !already {
			m.bannedModules[h] = struct{}{}
			m.block.AddBannedModules(1)
		}
	}
}

// BannedModules returns every shader module hash banned so far, to be
// passed as --mask-shader-module to the next slave for this and other
// shards.
func (m *Master) BannedModules() []hashid.Hash {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]hashid.Hash, 0, len(m.bannedModules))
	for h := range m.bannedModules {
		out = append(out, h)
	}
	return out
}

// spawnOnce runs exactly one slave process over shard and classifies its
// outcome per the §4.5 state machine.
func (m *Master) spawnOnce(ctx context.Context, shard replay.ShardRange) (state SlaveState, lastGraphics, lastCompute int64, faulty []hashid.Hash) {
	runCtx := ctx
	var cancel context.CancelFunc
	if m.cfg.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}

	args := m.slaveArgs(shard)
	cmd := exec.CommandContext(runCtx, m.cfg.BinaryPath, args...)
	if !m.cfg.QuietSlave {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	log.Printf("[master] spawning slave for shard [%d,%d)", shard.Start, shard.End)
	runErr := cmd.Run()

	lastGraphics = m.block.LastGraphicsIndex()
	lastCompute = m.block.LastComputeIndex()
	faulty = m.block.FaultyModules()

	if runCtx.Err() == context.DeadlineExceeded {
		log.Printf("[master] shard [%d,%d) timed out", shard.Start, shard.End)
		return Timeout, lastGraphics, lastCompute, faulty
	}
	if runErr == nil {
		return Completed, lastGraphics, lastCompute, faulty
	}
	var exitErr *exec.ExitError
	if asExitError(runErr, &exitErr) && exitErr.ExitCode() == cleanExitCode {
		return CleanExit, lastGraphics, lastCompute, faulty
	}
	log.Printf("[master] shard [%d,%d) slave exited with error: %v", shard.Start, shard.End, runErr)
	return DirtyCrash, lastGraphics, lastCompute, faulty
}

func asExitError(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if ok {
		*target = ee
	}
	return ok
}

func (m *Master) slaveArgs(shard replay.ShardRange) []string {
	rangeArg := fmt.Sprintf("%d,%d", shard.Start, shard.End)
	args := []string{
		"--slave-process",
		"--graphics-pipeline-range", rangeArg,
		"--compute-pipeline-range", rangeArg,
		"--num-threads", "1",
		"--shm-name", m.cfg.ShmPath,
		"--device-index", fmt.Sprint(m.cfg.DeviceIndex),
		"--loop", fmt.Sprint(m.cfg.LoopCount),
	}
	if m.cfg.EnableValidation {
		args = append(args, "--enable-validation")
	}
	if m.cfg.PipelineCache {
		args = append(args, "--pipeline-cache")
	}
	if m.cfg.OnDiskCachePath != "" {
		args = append(args, "--on-disk-pipeline-cache", m.cfg.OnDiskCachePath)
	}
	for _, h := range m.BannedModules() {
		args = append(args, "--mask-shader-module", h.String())
	}
	args = append(args, m.cfg.ArchivePath)
	return args
}
