package driver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func testDevice() *Device {
	return &Device{
		vendorID: 0x10de,
		deviceID: 0x2684,
		uuid:     uuid.NewSHA1(deviceNamespace, []byte("test-device")),
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dev := testDevice()
	path := filepath.Join(t.TempDir(), "cache.bin")

	c := NewEmptyCache(dev)
	c.Blob = []byte("opaque pipeline cache payload")
	if err := c.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := LoadCache(path, dev)
	if loaded.VendorID != dev.vendorID || loaded.DeviceID != dev.deviceID || loaded.UUID != dev.uuid {
		t.Fatal("loaded header does not match the device it was saved for")
	}
	if string(loaded.Blob) != string(c.Blob) {
		t.Errorf("Blob = %q, want %q", loaded.Blob, c.Blob)
	}
}

func TestLoadCacheEmptyPathReturnsEmptyCache(t *testing.T) {
	dev := testDevice()
	c := LoadCache("", dev)
	if len(c.Blob) != 0 {
		t.Error("empty path should yield an empty cache, not an error")
	}
	if c.VendorID != dev.vendorID {
		t.Error("empty cache should still carry the device identity")
	}
}

func TestLoadCacheMissingFileIsNotFatal(t *testing.T) {
	dev := testDevice()
	c := LoadCache(filepath.Join(t.TempDir(), "does-not-exist.bin"), dev)
	if len(c.Blob) != 0 {
		t.Error("missing file should yield an empty cache, not an error")
	}
}

func TestLoadCacheRejectsDeviceMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.bin")
	dev := testDevice()
	c := NewEmptyCache(dev)
	c.Blob = []byte("payload for dev")
	if err := c.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	otherDev := testDevice()
	otherDev.deviceID = dev.deviceID + 1
	loaded := LoadCache(path, otherDev)
	if len(loaded.Blob) != 0 {
		t.Error("a header that does not match the current device must be discarded")
	}
	if loaded.VendorID != otherDev.vendorID {
		t.Error("a discarded cache should still describe the current device, not the file's")
	}
}

func TestLoadCacheRejectsTruncatedHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.bin")
	if err := os.WriteFile(path, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatal(err)
	}
	dev := testDevice()
	loaded := LoadCache(path, dev)
	if len(loaded.Blob) != 0 {
		t.Error("a too-short file must be treated as absent, not parsed")
	}
}

func TestSaveEmptyPathIsNoop(t *testing.T) {
	c := NewEmptyCache(testDevice())
	if err := c.Save(""); err != nil {
		t.Fatalf("Save(\"\") should be a no-op, got %v", err)
	}
}
