package replay

import "math"

// ShardRange is a contiguous half-open range of pipeline indices assigned to
// one process (§3, §4.3). The zero value is not a valid range; use
// Unbounded for "no sharding configured".
type ShardRange struct {
	Start int
	End   int
}

// Unbounded returns the default shard: every index is in range, matching a
// replay run with no --graphics-pipeline-range / --compute-pipeline-range
// flag.
func Unbounded() ShardRange {
	return ShardRange{Start: 0, End: math.MaxInt}
}

// Contains reports whether index i falls in [Start, End).
func (r ShardRange) Contains(i int) bool {
	return i >= r.Start && i < r.End
}
