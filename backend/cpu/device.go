// Package cpu provides the software compute backend. It executes kernels
// on a pool of goroutines, one threadgroup batch per worker, and gives the
// pipeline a device that is available on every machine. Kernel source is
// validated with the same WGSL compiler the GPU backend uses, so a kernel
// that would not compile for the GPU does not compile here either.
package cpu

import (
	"fmt"
	"log"
	"math"
	"runtime"
	"sync"

	"github.com/gogpu/naga"

	"github.com/gogpu/vecadd/backend"
)

// DefaultMaxThreadsPerThreadgroup is the threadgroup size limit the
// software device advertises.
const DefaultMaxThreadsPerThreadgroup = 1024

func init() {
	backend.Register(backend.BackendCPU, func() (backend.Device, error) {
		return NewDevice(0), nil
	})
}

// Device is a software compute device backed by the host CPU.
//
// Device is safe for concurrent use.
type Device struct {
	mu sync.Mutex

	mem     *memoryTracker
	workers int
	closed  bool
}

// NewDevice creates a software device. budgetBytes caps total buffer
// memory; zero means unlimited.
func NewDevice(budgetBytes uint64) *Device {
	return &Device{
		mem:     newMemoryTracker(budgetBytes),
		workers: runtime.NumCPU(),
	}
}

// Name returns the device identifier.
func (d *Device) Name() string {
	return fmt.Sprintf("cpu (%d workers)", d.workers)
}

// Limits returns the device capability limits.
func (d *Device) Limits() backend.Limits {
	maxBuf := d.mem.stats().BudgetBytes
	if maxBuf == 0 {
		maxBuf = math.MaxUint64
	}
	return backend.Limits{
		MaxThreadsPerThreadgroup: DefaultMaxThreadsPerThreadgroup,
		MaxBufferSize:            maxBuf,
	}
}

// MemoryStats returns a snapshot of device memory accounting.
func (d *Device) MemoryStats() MemoryStats {
	return d.mem.stats()
}

// CompileKernel validates the kernel source and resolves its entry point
// to a native implementation. The source is compiled with naga exactly as
// the GPU backend would compile it; a source that fails there is rejected
// here too, before any buffer exists.
func (d *Device) CompileKernel(desc *backend.KernelDescriptor) (backend.Pipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, backend.ErrDeviceClosed
	}

	if desc == nil || desc.Source == "" {
		return nil, fmt.Errorf("%w: empty kernel source", backend.ErrCompileFailed)
	}
	if _, err := naga.Compile(desc.Source); err != nil {
		return nil, fmt.Errorf("%w: %w", backend.ErrCompileFailed, err)
	}

	fn, ok := kernelByName(desc.EntryPoint)
	if !ok {
		return nil, fmt.Errorf("%w: %q", backend.ErrEntryPointNotFound, desc.EntryPoint)
	}

	group := desc.WorkgroupSize
	if group <= 0 || group > DefaultMaxThreadsPerThreadgroup {
		group = DefaultMaxThreadsPerThreadgroup
	}

	return &pipeline{
		entryPoint: desc.EntryPoint,
		fn:         fn,
		maxThreads: group,
		bindings:   append([]backend.Binding(nil), desc.Bindings...),
	}, nil
}

// NewBuffer allocates a host-memory buffer. Host memory is shared storage
// by definition: the device and the host read and write the same slice.
func (d *Device) NewBuffer(desc *backend.BufferDescriptor) (backend.Buffer, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, backend.ErrDeviceClosed
	}
	d.mu.Unlock()

	if desc == nil || desc.Len <= 0 {
		return nil, fmt.Errorf("%w: invalid buffer length", backend.ErrOutOfMemory)
	}
	size := uint64(desc.Len) * 4
	if err := d.mem.reserve(size); err != nil {
		return nil, err
	}

	return &buffer{
		data: make([]float32, desc.Len),
		size: size,
		mem:  d.mem,
	}, nil
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

// Close releases the device. Close is idempotent.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	if s := d.mem.stats(); s.UsedBytes > 0 {
		log.Printf("cpu: device closed with %s still live", s)
	}
}

// pipeline is a compiled kernel: validated source resolved to a native
// function. It is immutable after creation.
type pipeline struct {
	entryPoint string
	fn         KernelFunc
	maxThreads int
	bindings   []backend.Binding

	mu       sync.Mutex
	released bool
}

func (p *pipeline) EntryPoint() string { return p.entryPoint }

func (p *pipeline) MaxThreadsPerThreadgroup() int { return p.maxThreads }

func (p *pipeline) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released = true
}

// buffer is a host-memory buffer with shared-storage semantics.
type buffer struct {
	mu       sync.Mutex
	data     []float32
	size     uint64
	mem      *memoryTracker
	released bool
}

func (b *buffer) Len() int { return len(b.data) }

func (b *buffer) Float32() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return nil
	}
	return b.data
}

func (b *buffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return
	}
	b.released = true
	b.mem.release(b.size)
	b.data = nil
}
