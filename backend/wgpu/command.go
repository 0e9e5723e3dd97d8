//go:build !nogpu

package wgpu

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/vecadd/backend"
)

// fenceTimeout bounds the completion wait. A fence that never signals
// within this window is reported as an execution fault rather than
// hanging the host forever.
const fenceTimeout = 60 * time.Second

// commandState tracks the lifecycle of a command buffer.
type commandState int

const (
	stateRecording commandState = iota
	stateCommitted
	stateCompleted
)

// readback records a pending staging copy for one read-write binding.
type readback struct {
	dst     *buffer
	staging hal.Buffer
}

// commandBuffer records one kernel launch, encodes it as a single compute
// pass, and submits it with a fence. It is single-use.
type commandBuffer struct {
	mu sync.Mutex

	device   *Device
	state    commandState
	pipeline *pipeline
	bound    map[uint32]*buffer

	grid  int
	group int

	bindGroup hal.BindGroup
	cmdBuf    hal.CommandBuffer
	fence     hal.Fence
	readbacks []readback
}

func (c *commandBuffer) checkRecording() error {
	if c.state != stateRecording {
		return backend.ErrNotRecording
	}
	return nil
}

// SetPipeline binds the pipeline for the dispatch.
func (c *commandBuffer) SetPipeline(p backend.Pipeline) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkRecording(); err != nil {
		return fmt.Errorf("set pipeline: %w", err)
	}
	wp, ok := p.(*pipeline)
	if !ok || wp == nil {
		return fmt.Errorf("set pipeline: %w", backend.ErrNoPipeline)
	}
	c.pipeline = wp
	return nil
}

// SetBuffer binds a buffer at the given argument slot.
func (c *commandBuffer) SetBuffer(slot uint32, buf backend.Buffer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkRecording(); err != nil {
		return fmt.Errorf("set buffer: %w", err)
	}
	wb, ok := buf.(*buffer)
	if !ok || wb == nil {
		return fmt.Errorf("set buffer: %w", backend.ErrMissingBinding)
	}
	if wb.Float32() == nil {
		return fmt.Errorf("set buffer: %w", backend.ErrBufferReleased)
	}
	if c.bound == nil {
		c.bound = make(map[uint32]*buffer)
	}
	c.bound[slot] = wb
	return nil
}

// DispatchThreads records a launch of grid threads. The workgroup count is
// derived from the pipeline's shader-baked workgroup size; the ragged
// final group is covered by the kernel's bounds guard.
func (c *commandBuffer) DispatchThreads(grid, group int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkRecording(); err != nil {
		return fmt.Errorf("dispatch threads: %w", err)
	}
	if c.pipeline == nil {
		return fmt.Errorf("dispatch threads: %w", backend.ErrNoPipeline)
	}
	if c.grid != 0 {
		return fmt.Errorf("dispatch threads: %w", backend.ErrDispatchRecorded)
	}
	if grid <= 0 || group <= 0 {
		return fmt.Errorf("%w: grid=%d group=%d", backend.ErrInvalidDispatch, grid, group)
	}
	if group > c.pipeline.workgroupSize {
		return fmt.Errorf("%w: threadgroup %d exceeds pipeline maximum %d",
			backend.ErrInvalidDispatch, group, c.pipeline.workgroupSize)
	}

	c.grid = grid
	c.group = group
	return nil
}

// Commit uploads read-only host mirrors, encodes the compute pass and the
// staging copies for read-write bindings, and submits with a fence.
func (c *commandBuffer) Commit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkRecording(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if c.pipeline == nil {
		return fmt.Errorf("commit: %w", backend.ErrNoPipeline)
	}
	if c.grid == 0 {
		return fmt.Errorf("commit: %w", backend.ErrNoDispatch)
	}

	dev := c.device
	entries := make([]gputypes.BindGroupEntry, len(c.pipeline.bindings))
	for i, binding := range c.pipeline.bindings {
		buf, ok := c.bound[binding.Slot]
		if !ok {
			return fmt.Errorf("commit: %w: slot %d", backend.ErrMissingBinding, binding.Slot)
		}
		host := buf.Float32()
		if host == nil {
			return fmt.Errorf("commit: %w: slot %d", backend.ErrBufferReleased, binding.Slot)
		}
		if binding.Access == backend.AccessReadOnly {
			dev.queue.WriteBuffer(buf.storage, 0, floatsToBytes(host))
		}
		entries[i] = gputypes.BindGroupEntry{
			Binding: binding.Slot,
			Resource: gputypes.BufferBinding{
				Buffer: buf.storage.NativeHandle(),
				Offset: 0,
				Size:   buf.size,
			},
		}
	}

	bindGroup, err := dev.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "vecadd_bind",
		Layout:  c.pipeline.bindLayout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("commit: create bind group: %w", err)
	}
	c.bindGroup = bindGroup

	encoder, err := dev.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "vecadd_encoder"})
	if err != nil {
		return fmt.Errorf("commit: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("vecadd"); err != nil {
		return fmt.Errorf("commit: begin encoding: %w", err)
	}

	groups := (c.grid + c.pipeline.workgroupSize - 1) / c.pipeline.workgroupSize
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "vecadd_pass"})
	pass.SetPipeline(c.pipeline.halPipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.Dispatch(uint32(groups), 1, 1)
	pass.End()

	// Stage read-write bindings for host readback after the fence.
	for _, binding := range c.pipeline.bindings {
		if binding.Access != backend.AccessReadWrite {
			continue
		}
		buf := c.bound[binding.Slot]
		staging, err := dev.device.CreateBuffer(&hal.BufferDescriptor{
			Label: "vecadd_staging",
			Size:  buf.size,
			Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("commit: create staging buffer: %w", err)
		}
		encoder.CopyBufferToBuffer(buf.storage, staging, []hal.BufferCopy{
			{SrcOffset: 0, DstOffset: 0, Size: buf.size},
		})
		c.readbacks = append(c.readbacks, readback{dst: buf, staging: staging})
	}

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("commit: end encoding: %w", err)
	}
	c.cmdBuf = cmdBuf

	fence, err := dev.device.CreateFence()
	if err != nil {
		return fmt.Errorf("commit: create fence: %w", err)
	}
	c.fence = fence

	if err := dev.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("commit: submit: %w", err)
	}

	c.state = stateCommitted
	return nil
}

// Wait blocks on the fence, copies staging contents back into the host
// mirrors of read-write bindings, and frees the transient HAL objects.
func (c *commandBuffer) Wait() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case stateRecording:
		return fmt.Errorf("wait: %w", backend.ErrNotCommitted)
	case stateCompleted:
		return nil
	}

	dev := c.device
	defer c.cleanup()

	ok, err := dev.device.Wait(c.fence, 1, fenceTimeout)
	if err != nil {
		return fmt.Errorf("%w: fence wait: %w", backend.ErrExecutionFault, err)
	}
	if !ok {
		return fmt.Errorf("%w: fence not signaled within %v", backend.ErrExecutionFault, fenceTimeout)
	}

	for _, rb := range c.readbacks {
		host := rb.dst.Float32()
		if host == nil {
			continue
		}
		raw := make([]byte, rb.dst.size)
		if err := dev.queue.ReadBuffer(rb.staging, 0, raw); err != nil {
			return fmt.Errorf("%w: readback: %w", backend.ErrExecutionFault, err)
		}
		bytesToFloats(host, raw)
	}

	return nil
}

// cleanup releases transient HAL objects after the dispatch.
// The caller must hold c.mu.
func (c *commandBuffer) cleanup() {
	c.state = stateCompleted
	dev := c.device.device
	if dev == nil {
		return
	}
	for _, rb := range c.readbacks {
		if rb.staging != nil {
			dev.DestroyBuffer(rb.staging)
		}
	}
	c.readbacks = nil
	if c.fence != nil {
		dev.DestroyFence(c.fence)
		c.fence = nil
	}
	if c.cmdBuf != nil {
		dev.FreeCommandBuffer(c.cmdBuf)
		c.cmdBuf = nil
	}
	if c.bindGroup != nil {
		dev.DestroyBindGroup(c.bindGroup)
		c.bindGroup = nil
	}
}
