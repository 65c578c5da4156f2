package archive

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/oxyreplay/pipewarm/internal/hashid"
	"github.com/oxyreplay/pipewarm/internal/restag"
)

// DirReader is a reference Reader backed by a directory tree:
//
//	<root>/<TagName>/<hash-hex>.json       (uncompressed entry)
//	<root>/<TagName>/<hash-hex>.json.gz    (gzip-compressed entry)
//
// This mirrors the cache-by-path pattern the teacher's loader.Loader uses
// (a mutex-guarded map populated lazily, keyed by a stable identifier) but
// keyed by (tag, hash) instead of a file path.
type DirReader struct {
	root string

	mu        sync.RWMutex
	hashLists map[restag.Tag][]hashid.Hash
}

var _ Reader = (*DirReader)(nil)

// NewDirReader constructs a reader rooted at root. Prepare must be called
// before HashList or ReadEntry.
func NewDirReader(root string) *DirReader {
	return &DirReader{root: root, hashLists: make(map[restag.Tag][]hashid.Hash)}
}

func tagDirName(tag restag.Tag) string { return tag.String() }

// Prepare verifies the root exists and enumerates every tag's hash list up
// front, so later HashList calls never touch the filesystem.
func (r *DirReader) Prepare() error {
	info, err := os.Stat(r.root)
	if err != nil {
		return fmt.Errorf("archive: cannot open %q: %w", r.root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("archive: %q is not a directory", r.root)
	}

	for _, tag := range restag.Order() {
		dir := filepath.Join(r.root, tagDirName(tag))
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("archive: reading %q: %w", dir, err)
		}

		var hashes []hashid.Hash
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			name := e.Name()
			name = strings.TrimSuffix(name, ".gz")
			name = strings.TrimSuffix(name, ".json")
			v, err := strconv.ParseUint(name, 16, 64)
			if err != nil {
				continue
			}
			hashes = append(hashes, hashid.Hash(v))
		}
		sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })
		r.hashLists[tag] = hashes
	}
	return nil
}

// HashList returns the hashes enumerated for tag during Prepare.
func (r *DirReader) HashList(tag restag.Tag) ([]hashid.Hash, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]hashid.Hash, len(r.hashLists[tag]))
	copy(out, r.hashLists[tag])
	return out, nil
}

// ReadEntry reads and, unless Encoding is Raw, decompresses the blob for
// (tag, hash).
func (r *DirReader) ReadEntry(tag restag.Tag, hash hashid.Hash, enc Encoding) ([]byte, error) {
	base := filepath.Join(r.root, tagDirName(tag), fmt.Sprintf("%016x", uint64(hash)))

	if data, err := os.ReadFile(base + ".json"); err == nil {
		return data, nil
	}

	data, err := os.ReadFile(base + ".json.gz")
	if err != nil {
		return nil, fmt.Errorf("archive: no entry for %s/%s: %w", tag, hash, err)
	}
	if enc == Raw {
		return data, nil
	}

	gz, err := gzip.NewReader(strings.NewReader(string(data)))
	if err != nil {
		return nil, fmt.Errorf("archive: corrupt gzip entry %s/%s: %w", tag, hash, err)
	}
	defer gz.Close()
	out, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("archive: decompressing %s/%s: %w", tag, hash, err)
	}
	return out, nil
}
