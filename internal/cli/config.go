// Package cli parses pipewarm's command-line surface (§6) into a Config,
// following the teacher's flat flag.FlagSet style (see gogpu-gg's
// cmd/ggdemo/main.go) rather than a subcommand framework.
package cli

import (
	"flag"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/oxyreplay/pipewarm/internal/hashid"
)

// Mode selects which of the four run modes (§4.5) this invocation is.
type Mode int

const (
	// ModeReplay is an ordinary single-process replay (no supervision).
	ModeReplay Mode = iota
	ModeMaster
	ModeSlave
	ModeProgress
)

// ConfigError reports invalid CLI arguments or an unreadable archive path
// (§7): fatal, causes an immediate non-zero exit.
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string { return e.msg }

func configErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}

// Range is a parsed "S,E" half-open index range flag.
type Range struct {
	Start, End int
	set        bool
}

// Set reports whether the flag was actually supplied.
func (r Range) Set() bool { return r.set }

// rangeValue implements flag.Value for a flag consuming two integer
// operands supplied together as a single "S,E" token, so the flag package's
// ordinary one-token-per-flag parsing still applies; a space-separated
// "S E" pair is not accepted.
type rangeValue struct{ r *Range }

func (v rangeValue) String() string {
	if v.r == nil || !v.r.set {
		return ""
	}
	return fmt.Sprintf("%d,%d", v.r.Start, v.r.End)
}

func (v rangeValue) Set(s string) error {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return fmt.Errorf("expected START,END")
	}
	start, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return fmt.Errorf("invalid start index: %w", err)
	}
	end, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return fmt.Errorf("invalid end index: %w", err)
	}
	v.r.Start, v.r.End, v.r.set = start, end, true
	return nil
}

// hashListValue implements flag.Value for a repeatable hex-hash flag
// (--mask-shader-module), accumulating into a slice.
type hashListValue struct{ list *[]hashid.Hash }

func (v hashListValue) String() string { return "" }

func (v hashListValue) Set(s string) error {
	s = strings.TrimPrefix(s, "0x")
	n, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return fmt.Errorf("invalid hash %q: %w", s, err)
	}
	*v.list = append(*v.list, hashid.Hash(n))
	return nil
}

// Config is the fully parsed command line (§6).
type Config struct {
	Mode Mode

	ArchivePath string

	DeviceIndex      int
	EnableValidation bool

	PipelineCache       bool
	OnDiskPipelineCache string

	NumThreads int
	Loop       int

	GraphicsRange Range
	ComputeRange  Range

	Timeout    time.Duration
	QuietSlave bool

	ShmName      string
	ShmMutexName string
	ShmemFD      int

	Stride    int
	MaxSlaves int

	MaskShaderModules []hashid.Hash
}

// Parse parses args (typically os.Args[1:]) into a Config, returning a
// *ConfigError for anything invalid.
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("pipewarm", flag.ContinueOnError)

	cfg := &Config{}
	var masterProcess, slaveProcess, progress bool
	var timeoutSec float64

	fs.IntVar(&cfg.DeviceIndex, "device-index", 0, "select physical device")
	fs.BoolVar(&cfg.EnableValidation, "enable-validation", false, "enable driver validation layer")
	fs.BoolVar(&cfg.PipelineCache, "pipeline-cache", false, "enable driver pipeline cache")
	fs.StringVar(&cfg.OnDiskPipelineCache, "on-disk-pipeline-cache", "", "path for cache persistence (implies --pipeline-cache)")
	fs.IntVar(&cfg.NumThreads, "num-threads", 0, "worker count (forced to 1 in slave mode)")
	fs.IntVar(&cfg.Loop, "loop", 1, "repeat each compile N times for benchmarking")
	fs.Var(rangeValue{&cfg.GraphicsRange}, "graphics-pipeline-range", "half-open graphics pipeline shard range, START,END")
	fs.Var(rangeValue{&cfg.ComputeRange}, "compute-pipeline-range", "half-open compute pipeline shard range, START,END")
	fs.BoolVar(&masterProcess, "master-process", false, "run as supervisor")
	fs.BoolVar(&slaveProcess, "slave-process", false, "run as a supervised shard worker")
	fs.BoolVar(&progress, "progress", false, "spawn a master and report progress")
	fs.Float64Var(&timeoutSec, "timeout", 0, "wall-clock deadline per slave, in seconds")
	fs.BoolVar(&cfg.QuietSlave, "quiet-slave", false, "suppress slave stdout/stderr")
	fs.StringVar(&cfg.ShmName, "shm-name", "", "shared progress block attachment name/path")
	fs.StringVar(&cfg.ShmMutexName, "shm-mutex-name", "", "shared progress block mutex name (platform-specific)")
	fs.IntVar(&cfg.ShmemFD, "shmem-fd", -1, "shared progress block file descriptor (platform-specific)")
	fs.IntVar(&cfg.Stride, "stride", 64, "pipeline indices per shard, master mode only")
	fs.IntVar(&cfg.MaxSlaves, "max-slaves", 4, "maximum concurrent slave processes, master mode only")
	fs.Var(hashListValue{&cfg.MaskShaderModules}, "mask-shader-module", "hex hash of a shader module to never submit (repeatable)")

	if err := fs.Parse(args); err != nil {
		return nil, configErrorf("parsing arguments: %v", err)
	}

	rest := fs.Args()
	if len(rest) != 1 {
		return nil, configErrorf("expected exactly one archive path argument, got %d", len(rest))
	}
	cfg.ArchivePath = rest[0]

	switch {
	case masterProcess && slaveProcess, masterProcess && progress, slaveProcess && progress:
		return nil, configErrorf("--master-process, --slave-process, and --progress are mutually exclusive")
	case masterProcess:
		cfg.Mode = ModeMaster
	case slaveProcess:
		cfg.Mode = ModeSlave
		cfg.NumThreads = 1
	case progress:
		cfg.Mode = ModeProgress
	default:
		cfg.Mode = ModeReplay
	}

	if cfg.OnDiskPipelineCache != "" {
		cfg.PipelineCache = true
	}
	if timeoutSec > 0 {
		cfg.Timeout = time.Duration(timeoutSec * float64(time.Second))
	}
	if !cfg.GraphicsRange.set {
		cfg.GraphicsRange = Range{Start: 0, End: math.MaxInt, set: true}
	}
	if !cfg.ComputeRange.set {
		cfg.ComputeRange = Range{Start: 0, End: math.MaxInt, set: true}
	}
	if cfg.Loop <= 0 {
		cfg.Loop = 1
	}

	if cfg.Mode == ModeSlave && cfg.ShmName == "" && cfg.ShmemFD < 0 {
		return nil, configErrorf("--slave-process requires --shm-name or --shmem-fd")
	}
	if cfg.Mode == ModeMaster && cfg.ShmName == "" {
		return nil, configErrorf("--master-process requires --shm-name")
	}

	return cfg, nil
}
