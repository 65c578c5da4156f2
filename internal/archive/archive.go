// Package archive is the external collaborator that owns the on-disk
// capture format (§1, §6). pipewarm depends only on the narrow Reader
// interface; DirReader below is a reference implementation good enough to
// replay a real captured directory tree and to drive the engine in tests.
package archive

import (
	"github.com/oxyreplay/pipewarm/internal/hashid"
	"github.com/oxyreplay/pipewarm/internal/restag"
)

// Encoding selects whether ReadEntry returns the entry's raw on-disk bytes
// or its decompressed content, mirroring the "raw/compressed distinction"
// §6 assigns to read_entry's flags parameter.
type Encoding int

const (
	// Decompressed returns entry content ready for the deserializer.
	Decompressed Encoding = iota
	// Raw returns whatever bytes are stored on disk, compressed or not.
	Raw
)

// Reader is the archive database's reader surface, consumed by the replay
// engine's playback driver (not specified further here; out of scope per
// §1). Implementations need not be safe for concurrent use by more than one
// goroutine issuing overlapping ReadEntry calls for the *same* tag/hash, but
// must support concurrent reads of distinct entries — the replay engine
// itself serializes enumeration but overlaps reads with compilation.
type Reader interface {
	// Prepare opens and validates the archive, returning an error if it
	// cannot be read at all (a ConfigError per §7).
	Prepare() error

	// HashList returns every hash stored under tag, in the archive's
	// published order.
	HashList(tag restag.Tag) ([]hashid.Hash, error)

	// ReadEntry returns the blob for (tag, hash). A missing entry is an
	// error; per §7 an ArchiveError here is logged and the entry skipped by
	// the caller, not fatal to the replay.
	ReadEntry(tag restag.Tag, hash hashid.Hash, enc Encoding) ([]byte, error)
}
