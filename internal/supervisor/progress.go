package supervisor

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"time"

	"github.com/oxyreplay/pipewarm/internal/progressblock"
)

// ProgressConfig configures the progress role: a third supervision mode
// that spawns a master as a subprocess and narrates its run (§4.5).
type ProgressConfig struct {
	BinaryPath   string
	MasterArgs   []string
	ShmPath      string
	PollInterval time.Duration // defaults to 500ms
}

// RunProgress spawns a master subprocess, attaches to its shared progress
// block once the master has created it, and logs a human-readable report
// every PollInterval until the master exits. On completion it enumerates
// whatever faulty module hashes are left in the ring. Returns the master's
// exit code.
func RunProgress(ctx context.Context, cfg ProgressConfig) int {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}

	cmd := exec.CommandContext(ctx, cfg.BinaryPath, append([]string{"--master-process"}, cfg.MasterArgs...)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		log.Printf("[progress] starting master: %v", err)
		return 1
	}

	block, err := attachWithRetry(cfg.ShmPath, 5*time.Second)
	if err != nil {
		log.Printf("[progress] attaching shared progress block: %v", err)
		_ = cmd.Wait()
		return 1
	}
	defer block.Close("")

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logReport(block)
		case err := <-done:
			logReport(block)
			for _, h := range block.FaultyModules() {
				log.Printf("[progress] faulty module: %s", h)
			}
			if err != nil {
				log.Printf("[progress] master exited: %v", err)
				if exitErr, ok := err.(*exec.ExitError); ok {
					return exitErr.ExitCode()
				}
				return 1
			}
			return 0
		}
	}
}

func attachWithRetry(path string, timeout time.Duration) (*progressblock.Block, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		block, err := progressblock.Attach(path)
		if err == nil {
			return block, nil
		}
		lastErr = err
		time.Sleep(50 * time.Millisecond)
	}
	return nil, fmt.Errorf("timed out waiting for %q: %w", path, lastErr)
}

func logReport(block *progressblock.Block) {
	c := block.Snapshot()
	log.Printf("[progress] graphics %d/%d (skipped %d, ok %d) compute %d/%d (skipped %d, ok %d) modules=%d banned=%d clean_crashes=%d dirty_crashes=%d",
		c.GraphicsCompleted, c.GraphicsTotal, c.GraphicsSkipped, c.GraphicsSuccessful,
		c.ComputeCompleted, c.ComputeTotal, c.ComputeSkipped, c.ComputeSuccessful,
		c.TotalModules, c.BannedModules, c.CleanCrashes, c.DirtyCrashes)
}
