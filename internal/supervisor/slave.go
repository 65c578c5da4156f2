package supervisor

import (
	"log"

	"github.com/oxyreplay/pipewarm/internal/archive"
	"github.com/oxyreplay/pipewarm/internal/deserializer"
	"github.com/oxyreplay/pipewarm/internal/driver"
	"github.com/oxyreplay/pipewarm/internal/hashid"
	"github.com/oxyreplay/pipewarm/internal/progressblock"
	"github.com/oxyreplay/pipewarm/internal/replay"
)

// SlaveConfig configures one slave process: a single-threaded replay
// restricted to a shard of the pipeline index space (§4.5).
type SlaveConfig struct {
	ShmPath string

	GraphicsRange ShardArgs
	ComputeRange  ShardArgs

	LoopCount           int
	Device              driver.Options
	EnablePipelineCache bool
	OnDiskCachePath     string
	MaskedShaderModules []hashid.Hash
}

// ShardArgs mirrors the CLI's "S E" pair before it is turned into a
// replay.ShardRange.
type ShardArgs struct {
	Start, End int
}

func (s ShardArgs) toRange() replay.ShardRange {
	return replay.ShardRange{Start: s.Start, End: s.End}
}

// RunSlave attaches to the shared progress block and replays reader's
// archive restricted to the configured shard with exactly one worker
// thread, publishing counters to the block incrementally as work
// completes. The returned int is the exit code the caller should pass to
// os.Exit: 0 on a fully successful replay,
// cleanExitCode on a reported ConfigError/ResolverStall (no driver fault
// implicated), 1 on an attach failure. An actual driver crash never
// reaches this return — the process dies first, and the OS-reported exit
// status is what the master classifies as a DirtyCrash.
func RunSlave(cfg SlaveConfig, reader archive.Reader, des deserializer.Deserializer) int {
	block, err := progressblock.Attach(cfg.ShmPath)
	if err != nil {
		log.Printf("[slave] attach shared progress block: %v", err)
		return 1
	}
	defer func() {
		if cerr := block.Close(""); cerr != nil {
			log.Printf("[slave] unmap shared progress block: %v", cerr)
		}
	}()

	masked := make(map[hashid.Hash]struct{}, len(cfg.MaskedShaderModules))
	for _, h := range cfg.MaskedShaderModules {
		masked[h] = struct{}{}
	}

	engine := replay.NewEngine(replay.Config{
		Device:              cfg.Device,
		GraphicsRange:       cfg.GraphicsRange.toRange(),
		ComputeRange:        cfg.ComputeRange.toRange(),
		Workers:             1,
		LoopCount:           cfg.LoopCount,
		EnablePipelineCache: cfg.EnablePipelineCache,
		OnDiskCachePath:     cfg.OnDiskCachePath,
		MaskedShaderModules: masked,
		RobustMode:          true,
		ProgressSink:        NewBlockSink(block, int64(cfg.GraphicsRange.Start), int64(cfg.ComputeRange.Start)),
	})
	defer engine.Close()

	// Counters are published to block incrementally as each work item
	// finishes (see BlockSink), not batched here: a slave that crashes
	// mid-shard must still leave its pre-crash progress visible.
	walkErr := replay.Walk(reader, des, engine)

	if walkErr != nil {
		log.Printf("[slave] shard replay ended early: %v", walkErr)
		return cleanExitCode
	}
	return 0
}
