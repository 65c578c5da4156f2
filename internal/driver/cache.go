package driver

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// UUIDSize is the byte length of the device UUID carried in the cache
// header, matching google/uuid's 16-byte UUID.
const UUIDSize = 16

// cacheVersion is the only header version this binary understands (§6).
const cacheVersion uint32 = 1

// headerLength is 16 (length, version, vendor_id, device_id as 4 LE uint32s)
// + UUIDSize, matching §6's "length = 16 + UUID_SIZE".
const headerLength = 16 + UUIDSize

// Cache is the in-memory representation of the driver's opaque
// pipeline-cache blob plus the header that makes it portable-checked across
// runs (§4.4, §6, invariant 5).
type Cache struct {
	VendorID uint32
	DeviceID uint32
	UUID     uuid.UUID
	// Blob is the opaque payload. wgpu-native does not surface a portable
	// binary pipeline cache the way VkPipelineCache does (see DESIGN.md), so
	// this is a best-effort, backend-owned byte string: empty for a fresh
	// cache, and whatever the backend chooses to persist across runs
	// otherwise. The header contract above it is fully implemented and
	// fully testable independent of what, if anything, is inside Blob.
	Blob []byte
}

// NewEmptyCache returns a Cache pre-populated with dev's identity and no
// payload, used whenever loading from disk is skipped, absent, or rejected.
func NewEmptyCache(dev *Device) *Cache {
	return &Cache{VendorID: dev.vendorID, DeviceID: dev.deviceID, UUID: dev.uuid}
}

// LoadCache reads path and validates its header against dev. On any I/O
// error, a short read, or a header mismatch (wrong version, vendor, device,
// or UUID) it discards the contents and returns a fresh empty cache instead
// of an error — per §4.4, a bad on-disk cache is never fatal.
func LoadCache(path string, dev *Device) *Cache {
	if path == "" {
		return NewEmptyCache(dev)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return NewEmptyCache(dev)
	}
	if len(data) < headerLength {
		return NewEmptyCache(dev)
	}

	length := binary.LittleEndian.Uint32(data[0:4])
	version := binary.LittleEndian.Uint32(data[4:8])
	vendorID := binary.LittleEndian.Uint32(data[8:12])
	deviceID := binary.LittleEndian.Uint32(data[12:16])
	var fileUUID uuid.UUID
	copy(fileUUID[:], data[16:16+UUIDSize])

	if length != headerLength || version != cacheVersion ||
		vendorID != dev.vendorID || deviceID != dev.deviceID || fileUUID != dev.uuid {
		return NewEmptyCache(dev)
	}

	return &Cache{
		VendorID: vendorID,
		DeviceID: deviceID,
		UUID:     fileUUID,
		Blob:     append([]byte(nil), data[headerLength:]...),
	}
}

// Save writes the header followed by c.Blob to path, replacing any existing
// file atomically via a rename from a temp file in the same directory.
// Failures are logged by the caller and never fatal (§4.4): the cache is a
// throughput optimization, not correctness-bearing state.
//
// The source this behavior is ported from performs this write from a
// teardown path that can run signal-adjacent and is not async-signal-safe;
// pipewarm preserves that same non-guarantee rather than promoting it to one
// (§9 Design Notes) — Save is only ever called from ordinary teardown code,
// never from inside a real signal handler, but it still does a plain
// buffered file write that could in principle block.
func (c *Cache) Save(path string) error {
	if path == "" {
		return nil
	}

	header := make([]byte, headerLength)
	binary.LittleEndian.PutUint32(header[0:4], headerLength)
	binary.LittleEndian.PutUint32(header[4:8], cacheVersion)
	binary.LittleEndian.PutUint32(header[8:12], c.VendorID)
	binary.LittleEndian.PutUint32(header[12:16], c.DeviceID)
	copy(header[16:16+UUIDSize], c.UUID[:])

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("driver: open cache temp file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(header); err != nil {
		return fmt.Errorf("driver: write cache header: %w", err)
	}
	if _, err := f.Write(c.Blob); err != nil {
		return fmt.Errorf("driver: write cache blob: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("driver: close cache temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("driver: rename cache temp file: %w", err)
	}
	return nil
}
