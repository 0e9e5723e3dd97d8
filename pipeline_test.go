package vecadd

import (
	"errors"
	"testing"

	"github.com/gogpu/vecadd/backend"
	"github.com/gogpu/vecadd/backend/cpu"
)

const testLength = 1 << 10

func newTestPipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	opts = append([]Option{
		WithBackend(backend.BackendCPU),
		WithLength(testLength),
	}, opts...)
	p, err := New(opts...)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	t.Cleanup(p.Close)
	return p
}

func TestNew(t *testing.T) {
	p := newTestPipeline(t)

	if p.N() != testLength {
		t.Errorf("N() = %d, want %d", p.N(), testLength)
	}
	if p.Device() == nil {
		t.Fatal("Device() = nil")
	}
	// Buffers are not allocated until PrepareData.
	if p.InputA() != nil || p.InputB() != nil || p.Output() != nil {
		t.Error("buffers allocated before PrepareData")
	}
}

func TestNewDefaultLength(t *testing.T) {
	p, err := New(WithBackend(backend.BackendCPU))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer p.Close()
	if p.N() != DefaultLength {
		t.Errorf("N() = %d, want %d", p.N(), DefaultLength)
	}
}

func TestNewIgnoresInvalidLength(t *testing.T) {
	p := newTestPipeline(t, WithLength(0))
	if p.N() != testLength {
		t.Errorf("N() = %d, want invalid length ignored (%d)", p.N(), testLength)
	}
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := New(WithBackend("no-such-backend"))
	if !errors.Is(err, backend.ErrBackendNotAvailable) {
		t.Errorf("New error = %v, want ErrBackendNotAvailable", err)
	}
}

func TestNewUnknownEntryPoint(t *testing.T) {
	// A kernel whose entry point does not resolve fails New, before any
	// buffer is allocated.
	_, err := New(
		WithBackend(backend.BackendCPU),
		WithKernel(KernelSource, "no_such_entry"),
	)
	if !errors.Is(err, backend.ErrEntryPointNotFound) {
		t.Errorf("New error = %v, want ErrEntryPointNotFound", err)
	}
}

func TestNewBadKernelSource(t *testing.T) {
	_, err := New(
		WithBackend(backend.BackendCPU),
		WithKernel("fn broken(", "broken"),
	)
	if !errors.Is(err, backend.ErrCompileFailed) {
		t.Errorf("New error = %v, want ErrCompileFailed", err)
	}
}

func TestWithDeviceOwnership(t *testing.T) {
	dev := cpu.NewDevice(0)
	defer dev.Close()

	p, err := New(WithDevice(dev), WithLength(16))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	p.Close()

	// The caller's device stays open after the pipeline closes.
	buf, err := dev.NewBuffer(&backend.BufferDescriptor{Len: 4})
	if err != nil {
		t.Errorf("device unusable after pipeline Close: %v", err)
	} else {
		buf.Release()
	}
}

func TestPrepareData(t *testing.T) {
	p := newTestPipeline(t)

	if err := p.PrepareData(); err != nil {
		t.Fatalf("PrepareData error: %v", err)
	}

	a, b, out := p.InputA(), p.InputB(), p.Output()
	if len(a) != testLength || len(b) != testLength || len(out) != testLength {
		t.Fatalf("buffer lengths = %d/%d/%d, want %d", len(a), len(b), len(out), testLength)
	}
	for i, v := range a {
		if v < 0 || v >= 1 {
			t.Fatalf("InputA()[%d] = %g, want in [0, 1)", i, v)
		}
	}
	for i, v := range b {
		if v < 0 || v >= 1 {
			t.Fatalf("InputB()[%d] = %g, want in [0, 1)", i, v)
		}
	}

	// A second PrepareData refills in place rather than reallocating.
	if err := p.PrepareData(); err != nil {
		t.Fatalf("second PrepareData error: %v", err)
	}
	if &p.InputA()[0] != &a[0] {
		t.Error("PrepareData reallocated the input buffer")
	}
}

func TestPrepareDataSeeded(t *testing.T) {
	p1 := newTestPipeline(t, WithSeed(42))
	p2 := newTestPipeline(t, WithSeed(42))

	if err := p1.PrepareData(); err != nil {
		t.Fatalf("PrepareData error: %v", err)
	}
	if err := p2.PrepareData(); err != nil {
		t.Fatalf("PrepareData error: %v", err)
	}

	a1, a2 := p1.InputA(), p2.InputA()
	for i := range a1 {
		if a1[i] != a2[i] {
			t.Fatalf("seeded inputs diverge at %d: %g vs %g", i, a1[i], a2[i])
		}
	}
}

func TestPrepareDataAllocationFailure(t *testing.T) {
	// Budget covers two buffers but not three.
	dev := cpu.NewDevice(2 * testLength * 4)
	defer dev.Close()

	p, err := New(WithDevice(dev), WithLength(testLength))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer p.Close()

	if err := p.PrepareData(); !errors.Is(err, backend.ErrOutOfMemory) {
		t.Errorf("PrepareData error = %v, want ErrOutOfMemory", err)
	}
}

func TestClosedPipeline(t *testing.T) {
	p, err := New(WithBackend(backend.BackendCPU), WithLength(16))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	p.Close()
	p.Close() // idempotent

	if err := p.PrepareData(); !errors.Is(err, ErrClosed) {
		t.Errorf("PrepareData error = %v, want ErrClosed", err)
	}
	if _, err := p.Dispatch(); !errors.Is(err, ErrClosed) {
		t.Errorf("Dispatch error = %v, want ErrClosed", err)
	}
	if err := p.Verify(); !errors.Is(err, ErrClosed) {
		t.Errorf("Verify error = %v, want ErrClosed", err)
	}
}
