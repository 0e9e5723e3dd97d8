//go:build !nogpu

package wgpu

import (
	"fmt"
	"log"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import the Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/vecadd/backend"
)

func init() {
	backend.Register(backend.BackendWGPU, Open)
}

// Device is a GPU compute device backed by a wgpu HAL adapter.
type Device struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	limits   gputypes.Limits
	name     string
	closed   bool
}

// Open acquires the best available GPU adapter and opens a device on it.
// Discrete and integrated GPUs are preferred over software adapters.
func Open() (backend.Device, error) {
	be, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan backend not available", backend.ErrDeviceUnavailable)
	}
	instance, err := be.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("%w: create instance: %w", backend.ErrDeviceUnavailable, err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("%w: no GPU adapters found", backend.ErrDeviceUnavailable)
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	limits := gputypes.DefaultLimits()
	openDev, err := selected.Adapter.Open(gputypes.Features(0), limits)
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("%w: open adapter: %w", backend.ErrDeviceUnavailable, err)
	}

	log.Printf("wgpu: device opened (%s)", selected.Info.Name)

	return &Device{
		instance: instance,
		device:   openDev.Device,
		queue:    openDev.Queue,
		limits:   limits,
		name:     selected.Info.Name,
	}, nil
}

// Name returns the adapter name.
func (d *Device) Name() string { return d.name }

// Limits returns the device capability limits.
func (d *Device) Limits() backend.Limits {
	return backend.Limits{
		MaxThreadsPerThreadgroup: int(d.limits.MaxComputeInvocationsPerWorkgroup),
		MaxBufferSize:            d.limits.MaxBufferSize,
	}
}

// NewCommandBuffer creates a transient, single-use command buffer.
func (d *Device) NewCommandBuffer() (backend.CommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, backend.ErrDeviceClosed
	}
	return &commandBuffer{device: d}, nil
}

// Close releases the device and instance in reverse acquisition order.
// Close is idempotent. Pipelines and buffers hold their own resources and
// must be released before the device.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true

	if d.device != nil {
		d.device.Destroy()
		d.device = nil
	}
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
	d.queue = nil
	log.Printf("wgpu: device closed")
}
