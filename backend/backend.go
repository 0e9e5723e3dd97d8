// Package backend defines the compute capability set that vecadd runs on:
// compile a kernel, allocate shared buffers, encode a dispatch, submit it,
// and wait for completion. The core pipeline is agnostic to the concrete
// device behind these interfaces.
//
// Backends must be registered via Register() and are selected via
// Open() or OpenDefault().
package backend

import (
	"errors"
)

// Common backend errors. These form the failure taxonomy of the pipeline:
// every fatal condition a device can produce wraps one of these sentinels,
// so callers can tell failure stages apart without string matching.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrDeviceUnavailable is returned when no compute device can be acquired.
	ErrDeviceUnavailable = errors.New("backend: device unavailable")

	// ErrDeviceClosed is returned when operating on a closed device.
	ErrDeviceClosed = errors.New("backend: device closed")

	// ErrCompileFailed is returned when kernel source does not compile.
	ErrCompileFailed = errors.New("backend: kernel compilation failed")

	// ErrEntryPointNotFound is returned when the kernel source compiles but
	// does not declare the requested entry point.
	ErrEntryPointNotFound = errors.New("backend: kernel entry point not found")

	// ErrOutOfMemory is returned when buffer allocation exceeds device memory.
	ErrOutOfMemory = errors.New("backend: out of device memory")

	// ErrExecutionFault is returned by Wait when the device reports a fault
	// during kernel execution (or never reports completion at all).
	ErrExecutionFault = errors.New("backend: execution fault")

	// ErrInvalidDispatch is returned when dispatch geometry is invalid:
	// a non-positive grid or threadgroup, or a threadgroup exceeding the
	// device limit.
	ErrInvalidDispatch = errors.New("backend: invalid dispatch geometry")

	// ErrBufferReleased is returned when operating on a released buffer.
	ErrBufferReleased = errors.New("backend: buffer has been released")
)

// Command buffer lifecycle errors. A command buffer is single-use: it is
// recorded once, committed once, waited on, and then discarded.
var (
	// ErrNoPipeline is returned when dispatching without a bound pipeline.
	ErrNoPipeline = errors.New("backend: no pipeline bound")

	// ErrMissingBinding is returned at commit when a slot the pipeline
	// declares has no buffer bound.
	ErrMissingBinding = errors.New("backend: buffer binding missing")

	// ErrNoDispatch is returned at commit when no kernel launch was recorded.
	ErrNoDispatch = errors.New("backend: no dispatch recorded")

	// ErrDispatchRecorded is returned when recording a second kernel launch
	// into a command buffer that already holds one.
	ErrDispatchRecorded = errors.New("backend: dispatch already recorded")

	// ErrNotRecording is returned when recording into a committed buffer.
	ErrNotRecording = errors.New("backend: command buffer is not recording")

	// ErrNotCommitted is returned when waiting on an uncommitted buffer.
	ErrNotCommitted = errors.New("backend: command buffer not committed")
)

// Access describes how a kernel accesses a buffer binding.
type Access int

const (
	// AccessReadOnly marks a binding the kernel only reads. Host mirrors of
	// read-only bindings are uploaded to the device at commit.
	AccessReadOnly Access = iota

	// AccessReadWrite marks a binding the kernel writes. Read-write bindings
	// are read back into their host mirrors after a successful wait.
	AccessReadWrite
)

// String returns the string representation of Access.
func (a Access) String() string {
	switch a {
	case AccessReadOnly:
		return "ReadOnly"
	case AccessReadWrite:
		return "ReadWrite"
	default:
		return "Unknown"
	}
}

// Binding declares one buffer argument slot of a kernel.
type Binding struct {
	// Slot is the argument index the buffer is bound at.
	Slot uint32

	// Access is the kernel's access mode for this slot.
	Access Access
}

// KernelDescriptor describes a kernel to compile into a pipeline.
type KernelDescriptor struct {
	// Label is an optional debug name.
	Label string

	// Source is the kernel source text (WGSL). It is treated as an opaque
	// artifact: the backend compiles it, the host never interprets it.
	Source string

	// EntryPoint is the function name host and kernel agreed on.
	EntryPoint string

	// WorkgroupSize is the threadgroup size the kernel was authored for
	// (WGSL bakes it into the source). Zero means the backend chooses.
	WorkgroupSize int

	// Bindings declares the argument slots the kernel expects.
	Bindings []Binding
}

// BufferDescriptor describes a shared host/device buffer of float32 elements.
type BufferDescriptor struct {
	// Label is an optional debug name.
	Label string

	// Len is the element count.
	Len int
}

// Limits reports device capability limits relevant to dispatch sizing.
type Limits struct {
	// MaxThreadsPerThreadgroup is the largest threadgroup the device accepts.
	MaxThreadsPerThreadgroup int

	// MaxBufferSize is the largest single allocation in bytes.
	MaxBufferSize uint64
}

// Device is an opaque handle to compute hardware. It is the sole creator of
// pipelines, buffers, and command buffers; Close releases everything the
// device still owns, exactly once.
//
// Exactly one Device instance drives a vecadd pipeline.
type Device interface {
	// Name returns a human-readable device identifier.
	Name() string

	// Limits returns the device capability limits.
	Limits() Limits

	// CompileKernel compiles kernel source into an immutable pipeline.
	// Compilation failure is fatal to initialization; there is no retry
	// and no degraded mode.
	CompileKernel(desc *KernelDescriptor) (Pipeline, error)

	// NewBuffer allocates a buffer of desc.Len float32 elements with
	// shared-storage semantics: the host view returned by Buffer.Float32
	// is valid immediately, with no explicit copy-in step.
	NewBuffer(desc *BufferDescriptor) (Buffer, error)

	// NewCommandBuffer creates a transient, single-use command buffer.
	NewCommandBuffer() (CommandBuffer, error)

	// Close releases the device and all resources created through it.
	// Close is idempotent.
	Close()
}

// Pipeline is a compiled, device-resident kernel ready for dispatch.
// It is immutable and reused across dispatches.
type Pipeline interface {
	// EntryPoint returns the kernel entry point the pipeline was built from.
	EntryPoint() string

	// MaxThreadsPerThreadgroup returns the largest threadgroup this
	// pipeline supports. It never exceeds the device limit.
	MaxThreadsPerThreadgroup() int

	// Release frees the pipeline. Releasing twice is a no-op.
	Release()
}

// Buffer is a contiguous region of float32 elements visible to both host
// and device. The host may mutate the Float32 view only before a command
// buffer referencing it is committed, and read it only after Wait returns.
// That barrier is the only ordering guarantee; there is no lock.
type Buffer interface {
	// Len returns the element count.
	Len() int

	// Float32 returns the host-visible view of the buffer contents.
	Float32() []float32

	// Release frees the buffer. Releasing twice is a no-op.
	Release()
}

// CommandBuffer records exactly one kernel launch and submits it.
//
// Lifecycle (same shape as a compute pass encoder):
//
//	Recording -> Commit() -> Committed -> Wait() -> Completed
//
// Commit submits asynchronously; Wait is the hard synchronous barrier.
// A command buffer is never reused: after Wait it can only be discarded.
// CommandBuffer is not safe for concurrent use.
type CommandBuffer interface {
	// SetPipeline binds the pipeline for the dispatch.
	SetPipeline(p Pipeline) error

	// SetBuffer binds a buffer at the given argument slot.
	SetBuffer(slot uint32, buf Buffer) error

	// DispatchThreads records a launch of grid threads using threadgroups
	// of at most group threads. The backend computes how many groups cover
	// the grid; a ragged final group is handled by the backend and the
	// kernel's bounds guard, never by caller-side padding.
	DispatchThreads(grid, group int) error

	// Commit submits the recorded launch to the device queue. Submission
	// is asynchronous; Commit returns once the work is queued.
	Commit() error

	// Wait blocks until the device reports completion of the committed
	// work, then makes read-write bindings visible to the host. A device
	// fault during execution is returned wrapping ErrExecutionFault.
	Wait() error
}
