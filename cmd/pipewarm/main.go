// Command pipewarm replays a captured archive of graphics-API
// pipeline-creation state against a real driver, pre-warming pipeline
// caches and surfacing driver bugs under optional crash-isolated
// supervision.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/oxyreplay/pipewarm/internal/archive"
	"github.com/oxyreplay/pipewarm/internal/cli"
	"github.com/oxyreplay/pipewarm/internal/deserializer"
	"github.com/oxyreplay/pipewarm/internal/driver"
	"github.com/oxyreplay/pipewarm/internal/hashid"
	"github.com/oxyreplay/pipewarm/internal/replay"
	"github.com/oxyreplay/pipewarm/internal/supervisor"
)

func main() {
	cfg, err := cli.Parse(os.Args[1:])
	if err != nil {
		log.Println(err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var code int
	switch cfg.Mode {
	case cli.ModeMaster:
		code = runMaster(ctx, cfg)
	case cli.ModeSlave:
		code = runSlave(cfg)
	case cli.ModeProgress:
		code = runProgress(ctx, cfg)
	default:
		code = runReplay(cfg)
	}
	os.Exit(code)
}

func maskedSet(hashes []hashid.Hash) map[hashid.Hash]struct{} {
	m := make(map[hashid.Hash]struct{}, len(hashes))
	for _, h := range hashes {
		m[h] = struct{}{}
	}
	return m
}

func runReplay(cfg *cli.Config) int {
	reader := archive.NewDirReader(cfg.ArchivePath)
	des := deserializer.NewJSON()

	engine := replay.NewEngine(replay.Config{
		Device: driver.Options{
			DeviceIndex:      cfg.DeviceIndex,
			EnableValidation: cfg.EnableValidation,
		},
		GraphicsRange:       replay.ShardRange{Start: cfg.GraphicsRange.Start, End: cfg.GraphicsRange.End},
		ComputeRange:        replay.ShardRange{Start: cfg.ComputeRange.Start, End: cfg.ComputeRange.End},
		Workers:             cfg.NumThreads,
		LoopCount:           cfg.Loop,
		EnablePipelineCache: cfg.PipelineCache,
		OnDiskCachePath:     cfg.OnDiskPipelineCache,
		MaskedShaderModules: maskedSet(cfg.MaskShaderModules),
	})
	defer engine.Close()

	if err := replay.Walk(reader, des, engine); err != nil {
		log.Println(err)
		return 1
	}

	g, c := engine.Graphics.Snapshot(), engine.Compute.Snapshot()
	log.Printf("graphics: completed=%d skipped=%d successful=%d total=%d", g.Completed, g.Skipped, g.Successful, g.Total)
	log.Printf("compute: completed=%d skipped=%d successful=%d total=%d", c.Completed, c.Skipped, c.Successful, c.Total)
	log.Printf("shader modules: %d", engine.TotalModules())
	if err := engine.CreationErrors(); err != nil {
		log.Printf("trivial object creation failures:\n%v", err)
	}
	return 0
}

func runMaster(ctx context.Context, cfg *cli.Config) int {
	reader := archive.NewDirReader(cfg.ArchivePath)
	if err := reader.Prepare(); err != nil {
		log.Println(err)
		return 1
	}

	m, err := supervisor.NewMaster(supervisor.Config{
		ArchivePath:      cfg.ArchivePath,
		ShmPath:          cfg.ShmName,
		Stride:           cfg.Stride,
		MaxSlaves:        cfg.MaxSlaves,
		Timeout:          cfg.Timeout,
		QuietSlave:       cfg.QuietSlave,
		LoopCount:        cfg.Loop,
		EnableValidation: cfg.EnableValidation,
		DeviceIndex:      cfg.DeviceIndex,
		PipelineCache:    cfg.PipelineCache,
		OnDiskCachePath:  cfg.OnDiskPipelineCache,
	})
	if err != nil {
		log.Println(err)
		return 1
	}
	defer m.Close()

	if err := m.Run(ctx, reader); err != nil {
		log.Println(err)
		return 1
	}

	c := m.Block().Snapshot()
	log.Printf("graphics: completed=%d skipped=%d successful=%d total=%d", c.GraphicsCompleted, c.GraphicsSkipped, c.GraphicsSuccessful, c.GraphicsTotal)
	log.Printf("compute: completed=%d skipped=%d successful=%d total=%d", c.ComputeCompleted, c.ComputeSkipped, c.ComputeSuccessful, c.ComputeTotal)
	log.Printf("dirty_crashes=%d banned_modules=%d", c.DirtyCrashes, c.BannedModules)
	if err := m.Report(); err != nil {
		log.Printf("recovered crash report:\n%v", err)
	}
	return 0
}

func runSlave(cfg *cli.Config) int {
	reader := archive.NewDirReader(cfg.ArchivePath)
	des := deserializer.NewJSON()

	return supervisor.RunSlave(supervisor.SlaveConfig{
		ShmPath:       cfg.ShmName,
		GraphicsRange: supervisor.ShardArgs{Start: cfg.GraphicsRange.Start, End: cfg.GraphicsRange.End},
		ComputeRange:  supervisor.ShardArgs{Start: cfg.ComputeRange.Start, End: cfg.ComputeRange.End},
		LoopCount:     cfg.Loop,
		Device: driver.Options{
			DeviceIndex:      cfg.DeviceIndex,
			EnableValidation: cfg.EnableValidation,
		},
		EnablePipelineCache: cfg.PipelineCache,
		OnDiskCachePath:     cfg.OnDiskPipelineCache,
		MaskedShaderModules: cfg.MaskShaderModules,
	}, reader, des)
}

func runProgress(ctx context.Context, cfg *cli.Config) int {
	exe, err := os.Executable()
	if err != nil {
		log.Println(err)
		return 1
	}

	masterArgs := []string{
		"--shm-name", cfg.ShmName,
		"--stride", fmt.Sprint(cfg.Stride),
		"--max-slaves", fmt.Sprint(cfg.MaxSlaves),
		"--device-index", fmt.Sprint(cfg.DeviceIndex),
		"--loop", fmt.Sprint(cfg.Loop),
	}
	if cfg.EnableValidation {
		masterArgs = append(masterArgs, "--enable-validation")
	}
	if cfg.PipelineCache {
		masterArgs = append(masterArgs, "--pipeline-cache")
	}
	if cfg.OnDiskPipelineCache != "" {
		masterArgs = append(masterArgs, "--on-disk-pipeline-cache", cfg.OnDiskPipelineCache)
	}
	if cfg.Timeout > 0 {
		masterArgs = append(masterArgs, "--timeout", fmt.Sprint(cfg.Timeout.Seconds()))
	}
	masterArgs = append(masterArgs, cfg.ArchivePath)

	return supervisor.RunProgress(ctx, supervisor.ProgressConfig{
		BinaryPath: exe,
		MasterArgs: masterArgs,
		ShmPath:    cfg.ShmName,
	})
}
