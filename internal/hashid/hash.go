// Package hashid defines the 64-bit content hash that addresses every
// replayable object captured in an archive.
package hashid

import "strconv"

// Hash is the opaque 64-bit content identifier of a captured object. It is
// stable across runs: the same captured sampler, shader module, or pipeline
// always hashes to the same value regardless of which process or shard
// replays it.
type Hash uint64

// Zero is the hash value used to mean "no base pipeline" / "unset".
const Zero Hash = 0

// String renders the hash as "0x" followed by lowercase hex without leading
// zeros, the format used in log lines across this repository.
func (h Hash) String() string {
	return "0x" + strconv.FormatUint(uint64(h), 16)
}
