// Package supervisor implements the optional master/slave crash-isolation
// protocol (§4.5): a master process partitions the archive's pipeline
// index space into shards, spawns one single-threaded slave per shard,
// and resumes past crashes by resubmitting the residual range.
package supervisor

// SlaveState is one slave's position in the state machine described in
// §4.5: Spawned -> Running -> (Completed | CleanExit | DirtyCrash |
// Timeout) -> (Finished | Resubmitted).
type SlaveState int

const (
	Spawned SlaveState = iota
	Running
	Completed
	CleanExit
	DirtyCrash
	Timeout
	Finished
	Resubmitted
)

func (s SlaveState) String() string {
	switch s {
	case Spawned:
		return "Spawned"
	case Running:
		return "Running"
	case Completed:
		return "Completed"
	case CleanExit:
		return "CleanExit"
	case DirtyCrash:
		return "DirtyCrash"
	case Timeout:
		return "Timeout"
	case Finished:
		return "Finished"
	case Resubmitted:
		return "Resubmitted"
	default:
		return "Unknown"
	}
}

// Terminal reports whether s is one of the states a slave run settles into
// before the master decides Finished vs Resubmitted.
func (s SlaveState) Terminal() bool {
	return s == Completed || s == CleanExit || s == DirtyCrash || s == Timeout
}

// cleanExitCode is the slave process's exit code for "graceful teardown,
// driver fault not implicated" — e.g. a ConfigError or a deliberately
// reported ResolverStall. Any other non-zero exit, or a signal-terminated
// process, is a DirtyCrash.
const cleanExitCode = 2
