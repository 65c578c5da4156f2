// Package driver binds the replay engine to a real WebGPU device, standing
// in for the Vulkan-flavoured driver API the distilled spec describes.
// Object creation here maps one-for-one onto spec resource tags: samplers,
// descriptor-set layouts (WebGPU bind group layouts), pipeline layouts,
// shader modules, and graphics/compute pipelines.
//
// WebGPU has no persistent render-pass object the way Vulkan does — a render
// pass is just a descriptor an encoder is opened with. CreateRenderPass below
// therefore validates and stores the descriptor rather than handing back a
// native driver object; see DESIGN.md for the reasoning.
package driver

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/google/uuid"
)

// Device owns the instance/adapter/device/queue quadruple and serializes the
// handful of calls that are not already documented thread-safe by the
// underlying binding (CreateBindGroupLayout races on internal layout caches
// in some wgpu-native builds, so writes go through mu like the teacher's
// wgpuRendererBackendImpl does for its own mutable state).
type Device struct {
	mu sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	vendorID uint32
	deviceID uint32
	uuid     uuid.UUID
}

// Options configure device acquisition.
type Options struct {
	// DeviceIndex selects among the adapters the instance enumerates,
	// matching --device-index.
	DeviceIndex int
	// EnableValidation turns on the backend's debug/validation instance
	// flag, matching --enable-validation.
	EnableValidation bool
	// ForceFallbackAdapter requests a software adapter, mirroring the
	// teacher's WithForceSoftwareRenderer option — useful for running the
	// replay fleet on machines with no GPU.
	ForceFallbackAdapter bool
}

// NewDevice enumerates adapters, selects Options.DeviceIndex, and requests a
// logical device and its default queue. This is the only place pipewarm
// talks to the instance/adapter layer of the driver API.
func NewDevice(opts Options) (*Device, error) {
	flags := wgpu.InstanceFlagDefault
	if opts.EnableValidation {
		flags = wgpu.InstanceFlagDebug | wgpu.InstanceFlagValidation
	}

	instance := wgpu.CreateInstance(&wgpu.InstanceDescriptor{Flags: flags})

	adapters := instance.EnumerateAdapters(&wgpu.InstanceEnumerateAdapterOptons{Backends: wgpu.InstanceBackendAll})
	if len(adapters) == 0 {
		adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
			ForceFallbackAdapter: opts.ForceFallbackAdapter,
		})
		if err != nil {
			return nil, fmt.Errorf("driver: no adapters enumerated and fallback request failed: %w", err)
		}
		adapters = []*wgpu.Adapter{adapter}
	}
	if opts.DeviceIndex < 0 || opts.DeviceIndex >= len(adapters) {
		return nil, fmt.Errorf("driver: device index %d out of range (%d adapters available)", opts.DeviceIndex, len(adapters))
	}
	adapter := adapters[opts.DeviceIndex]

	info := adapter.GetInfo()

	d, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "pipewarm replay device",
	})
	if err != nil {
		return nil, fmt.Errorf("driver: device creation failed: %w", err)
	}

	dev := &Device{
		instance: instance,
		adapter:  adapter,
		device:   d,
		queue:    d.GetQueue(),
		vendorID: info.VendorId,
		deviceID: info.DeviceId,
	}
	// wgpu, unlike Vulkan, does not surface a per-device UUID — WebGPU treats
	// adapters as opaque and portable. We derive a stable one from the
	// adapter name and vendor/device identity the adapter does report, so the on-disk
	// cache header (§4.4, §6) still has a real device fingerprint to
	// validate against a future run on the same hardware.
	dev.uuid = uuid.NewSHA1(deviceNamespace, []byte(fmt.Sprintf("%s:%08x:%08x", info.Name, info.VendorId, info.DeviceId)))
	return dev, nil
}

// deviceNamespace roots the deterministic per-device UUID derivation.
var deviceNamespace = uuid.MustParse("7b6e9c3a-df9a-4c6d-9a0e-2f6a2b7a6e10")

// VendorID, DeviceID, and UUID identify the device for pipeline-cache header
// validation (§4.4, §6).
func (d *Device) VendorID() uint32   { return d.vendorID }
func (d *Device) DeviceID() uint32   { return d.deviceID }
func (d *Device) UUID() uuid.UUID    { return d.uuid }

// Close releases the logical device; the instance and adapter are not
// released. Called once, at the very end of teardown (§3 Lifecycle); objects
// created from the device are not released individually beforehand.
func (d *Device) Close() {
	if d.device != nil {
		d.device.Release()
	}
}
