package progressblock

import (
	"sync/atomic"
	"unsafe"

	"github.com/oxyreplay/pipewarm/internal/hashid"
)

func (b *Block) lockPtr() *int32 {
	return (*int32)(unsafe.Pointer(&b.data[offRingLock]))
}

func (b *Block) countPtr() *int32 {
	return (*int32)(unsafe.Pointer(&b.data[offRingCount]))
}

func (b *Block) slotPtr(i int) *uint64 {
	return (*uint64)(unsafe.Pointer(&b.data[offRingStart+i*8]))
}

// acquireRingLock spins until it owns the cross-process lock guarding the
// ring. A futex-backed mutex would avoid the busy-wait, but the ring is
// only ever touched right before a risky driver call and read once after a
// slave's termination — contention is never sustained enough to matter.
func (b *Block) acquireRingLock() {
	for !atomic.CompareAndSwapInt32(b.lockPtr(), 0, 1) {
	}
}

func (b *Block) releaseRingLock() {
	atomic.StoreInt32(b.lockPtr(), 0)
}

// PublishFaultyModule records h as a module the current compile attempt is
// about to risk. Called immediately before the driver call, so that if the
// process dies mid-call the master can still recover which hash was live
// (§4.6). Once the ring is full, the oldest entry is overwritten — this
// block exists for post-crash diagnosis, not a durable audit log.
func (b *Block) PublishFaultyModule(h hashid.Hash) {
	b.acquireRingLock()
	defer b.releaseRingLock()

	count := atomic.LoadInt32(b.countPtr())
	slot := int(count) % RingCapacity
	atomic.StoreUint64(b.slotPtr(slot), uint64(h))
	atomic.StoreInt32(b.countPtr(), count+1)
}

// FaultyModules returns every hash currently held in the ring, oldest
// first, read only after observing a slave's termination (§4.6) — readers
// poll; there is no cross-process signal beyond the slave exiting.
func (b *Block) FaultyModules() []hashid.Hash {
	b.acquireRingLock()
	defer b.releaseRingLock()

	count := int(atomic.LoadInt32(b.countPtr()))
	n := count
	if n > RingCapacity {
		n = RingCapacity
	}
	out := make([]hashid.Hash, n)
	start := 0
	if count > RingCapacity {
		start = count % RingCapacity
	}
	for i := 0; i < n; i++ {
		slot := (start + i) % RingCapacity
		out[i] = hashid.Hash(atomic.LoadUint64(b.slotPtr(slot)))
	}
	return out
}
