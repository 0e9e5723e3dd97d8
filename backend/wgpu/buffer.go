//go:build !nogpu

package wgpu

import (
	"fmt"
	"math"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/vecadd/backend"
)

// NewBuffer allocates a storage buffer plus a host mirror of the same
// length. The mirror carries the shared-storage contract: read-only
// bindings are uploaded from it at commit, read-write bindings are read
// back into it after the fence signals.
func (d *Device) NewBuffer(desc *backend.BufferDescriptor) (backend.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, backend.ErrDeviceClosed
	}
	if desc == nil || desc.Len <= 0 {
		return nil, fmt.Errorf("%w: invalid buffer length", backend.ErrOutOfMemory)
	}

	size := uint64(desc.Len) * 4
	storage, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  size,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", backend.ErrOutOfMemory, err)
	}

	return &buffer{
		device:  d,
		host:    make([]float32, desc.Len),
		storage: storage,
		size:    size,
	}, nil
}

// buffer is a device storage buffer with a host mirror.
type buffer struct {
	device  *Device
	host    []float32
	storage hal.Buffer
	size    uint64

	mu       sync.Mutex
	released bool
}

func (b *buffer) Len() int { return len(b.host) }

func (b *buffer) Float32() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return nil
	}
	return b.host
}

func (b *buffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return
	}
	b.released = true
	if dev := b.device.device; dev != nil && b.storage != nil {
		dev.DestroyBuffer(b.storage)
	}
	b.storage = nil
	b.host = nil
}

// floatsToBytes serializes float32 values as little-endian words for
// buffer upload.
func floatsToBytes(src []float32) []byte {
	buf := make([]byte, len(src)*4)
	for i, v := range src {
		bits := math.Float32bits(v)
		buf[i*4] = byte(bits)
		buf[i*4+1] = byte(bits >> 8)
		buf[i*4+2] = byte(bits >> 16)
		buf[i*4+3] = byte(bits >> 24)
	}
	return buf
}

// bytesToFloats deserializes little-endian words into dst.
func bytesToFloats(dst []float32, src []byte) {
	n := len(src) / 4
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		bits := uint32(src[i*4]) |
			uint32(src[i*4+1])<<8 |
			uint32(src[i*4+2])<<16 |
			uint32(src[i*4+3])<<24
		dst[i] = math.Float32frombits(bits)
	}
}
