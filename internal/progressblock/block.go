// Package progressblock implements the fixed-layout shared-memory control
// block mapped into the supervisor and every slave process (§3, §4.6): POD
// atomic counters plus one mutex-protected bounded ring of faulty shader
// module hashes. All counters use relaxed ordering; the ring's "mutex" is a
// spinlock built on a single atomic int32, since a process-shared
// sync.Mutex cannot be mapped across address spaces the way an in-process
// one can.
//
// The spec's two shared-memory attachment strategies ("named shm handle on
// one platform, inherited file descriptor on the other") both reduce, on
// every platform Go's edsrzf/mmap-go binding supports, to mmap.MapRegion
// over an open *os.File. pipewarm always goes through a regular file at a
// path both the master and its slaves are given on the command line
// (--shm-name), trading true anonymous POSIX shared memory for a simpler,
// portable implementation — see DESIGN.md.
package progressblock

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/edsrzf/mmap-go"
)

// RingCapacity is the bound on the faulty-module-hash ring. The spec's
// source carries this as a stageCount-sized buffer of capacity 6; §9
// Design Notes says to preserve 6 absent a stronger known bound (max
// pipeline stage count is 5 in common use, 6 allows mesh+task shaders).
const RingCapacity = 6

const (
	offGraphicsTotal = iota * 8
	offGraphicsCompleted
	offGraphicsSkipped
	offGraphicsSuccessful
	offComputeTotal
	offComputeCompleted
	offComputeSkipped
	offComputeSuccessful
	offTotalModules
	offBannedModules
	offCleanCrashes
	offDirtyCrashes
	offLastGraphicsIndex
	offLastComputeIndex
	offRingLock // int32, but given an 8-byte slot to keep the ring 8-byte aligned
	offRingCount
	offRingStart // first free slot for the ring's uint64 hashes
)

// Size is the total byte length of the mapped region.
const Size = offRingStart + RingCapacity*8

// Block is a handle to the mapped region, usable from either the process
// that created it or one that attached to an existing one.
type Block struct {
	data mmap.MMap
	file *os.File
	own  bool
}

// Create truncates (or creates) the file at path to Size and maps it
// read-write. The master calls this once before spawning any slaves.
func Create(path string) (*Block, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("progressblock: create %q: %w", path, err)
	}
	if err := f.Truncate(int64(Size)); err != nil {
		f.Close()
		return nil, fmt.Errorf("progressblock: truncate %q: %w", path, err)
	}
	m, err := mmap.MapRegion(f, Size, mmap.RDWR, 0, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("progressblock: map %q: %w", path, err)
	}
	return &Block{data: m, file: f, own: true}, nil
}

// Attach maps an existing block created by Create, used by slaves and the
// progress role.
func Attach(path string) (*Block, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("progressblock: attach %q: %w", path, err)
	}
	m, err := mmap.MapRegion(f, Size, mmap.RDWR, 0, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("progressblock: map %q: %w", path, err)
	}
	return &Block{data: m, file: f}, nil
}

// Close unmaps the region. The owner (Create's caller) also removes the
// backing file; an attacher just unmaps and closes its own descriptor.
func (b *Block) Close(path string) error {
	if err := b.data.Unmap(); err != nil {
		return fmt.Errorf("progressblock: unmap: %w", err)
	}
	if err := b.file.Close(); err != nil {
		return fmt.Errorf("progressblock: close: %w", err)
	}
	if b.own && path != "" {
		_ = os.Remove(path)
	}
	return nil
}

func (b *Block) ptr(off int) *int64 {
	return (*int64)(unsafe.Pointer(&b.data[off]))
}

func (b *Block) add(off int, delta int64) int64 {
	return atomic.AddInt64(b.ptr(off), delta)
}

func (b *Block) load(off int) int64 {
	return atomic.LoadInt64(b.ptr(off))
}

// AddGraphicsTotal, AddGraphicsCompleted, AddGraphicsSkipped, and
// AddGraphicsSuccessful bump the graphics-kind counters by delta, returning
// the new value. Negative deltas are never used but not rejected.
func (b *Block) AddGraphicsTotal(delta int64) int64      { return b.add(offGraphicsTotal, delta) }
func (b *Block) AddGraphicsCompleted(delta int64) int64  { return b.add(offGraphicsCompleted, delta) }
func (b *Block) AddGraphicsSkipped(delta int64) int64    { return b.add(offGraphicsSkipped, delta) }
func (b *Block) AddGraphicsSuccessful(delta int64) int64 { return b.add(offGraphicsSuccessful, delta) }

func (b *Block) AddComputeTotal(delta int64) int64      { return b.add(offComputeTotal, delta) }
func (b *Block) AddComputeCompleted(delta int64) int64  { return b.add(offComputeCompleted, delta) }
func (b *Block) AddComputeSkipped(delta int64) int64    { return b.add(offComputeSkipped, delta) }
func (b *Block) AddComputeSuccessful(delta int64) int64 { return b.add(offComputeSuccessful, delta) }

func (b *Block) AddTotalModules(delta int64) int64  { return b.add(offTotalModules, delta) }
func (b *Block) AddBannedModules(delta int64) int64 { return b.add(offBannedModules, delta) }
func (b *Block) AddCleanCrashes(delta int64) int64  { return b.add(offCleanCrashes, delta) }
func (b *Block) AddDirtyCrashes(delta int64) int64  { return b.add(offDirtyCrashes, delta) }

// PublishGraphicsIndex and PublishComputeIndex record the index about to be
// attempted, immediately before the risky driver call (§4.6): this is what
// the master reads back after observing a slave's termination to compute
// the residual range to resubmit.
func (b *Block) PublishGraphicsIndex(index int64) { atomic.StoreInt64(b.ptr(offLastGraphicsIndex), index) }
func (b *Block) PublishComputeIndex(index int64)  { atomic.StoreInt64(b.ptr(offLastComputeIndex), index) }

func (b *Block) LastGraphicsIndex() int64 { return b.load(offLastGraphicsIndex) }
func (b *Block) LastComputeIndex() int64  { return b.load(offLastComputeIndex) }

// Counters is a point-in-time snapshot of every POD counter in the block,
// suitable for the progress role's ~500ms human-readable reports.
type Counters struct {
	GraphicsTotal, GraphicsCompleted, GraphicsSkipped, GraphicsSuccessful int64
	ComputeTotal, ComputeCompleted, ComputeSkipped, ComputeSuccessful     int64
	TotalModules, BannedModules, CleanCrashes, DirtyCrashes               int64
}

func (b *Block) Snapshot() Counters {
	return Counters{
		GraphicsTotal:      b.load(offGraphicsTotal),
		GraphicsCompleted:  b.load(offGraphicsCompleted),
		GraphicsSkipped:    b.load(offGraphicsSkipped),
		GraphicsSuccessful: b.load(offGraphicsSuccessful),
		ComputeTotal:       b.load(offComputeTotal),
		ComputeCompleted:   b.load(offComputeCompleted),
		ComputeSkipped:     b.load(offComputeSkipped),
		ComputeSuccessful:  b.load(offComputeSuccessful),
		TotalModules:       b.load(offTotalModules),
		BannedModules:      b.load(offBannedModules),
		CleanCrashes:       b.load(offCleanCrashes),
		DirtyCrashes:       b.load(offDirtyCrashes),
	}
}
