package vecadd

import (
	"fmt"
	"math/rand/v2"

	"github.com/gogpu/vecadd/backend"
)

// Pipeline owns a compute device, a compiled kernel, and the three data
// buffers for one elementwise addition workload. It is built once with
// New and reused across any number of PrepareData/Dispatch/Verify cycles.
//
// A Pipeline is not safe for concurrent use.
type Pipeline struct {
	device     backend.Device
	ownsDevice bool
	kernel     backend.Pipeline
	n          int
	rng        *rand.Rand

	a, b, result backend.Buffer
	closed       bool
}

// New opens a device, compiles the addition kernel, and returns a
// pipeline ready for PrepareData. Buffer allocation is deferred to
// PrepareData so that init failures and allocation failures stay
// distinguishable.
func New(opts ...Option) (*Pipeline, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	var (
		dev  backend.Device
		owns bool
		err  error
	)
	switch {
	case o.device != nil:
		dev = o.device
	case o.backend != "":
		dev, err = backend.Open(o.backend)
		owns = true
	default:
		dev, err = backend.OpenDefault()
		owns = true
	}
	if err != nil {
		return nil, fmt.Errorf("vecadd: open device: %w", err)
	}
	Logger().Info("device selected", "name", dev.Name(), "length", o.length)

	kernel, err := dev.CompileKernel(&backend.KernelDescriptor{
		Label:         "vecadd",
		Source:        o.source,
		EntryPoint:    o.entryPoint,
		WorkgroupSize: kernelWorkgroupSize,
		Bindings:      kernelBindings,
	})
	if err != nil {
		if owns {
			dev.Close()
		}
		return nil, fmt.Errorf("vecadd: compile kernel: %w", err)
	}

	p := &Pipeline{
		device:     dev,
		ownsDevice: owns,
		kernel:     kernel,
		n:          o.length,
	}
	if o.hasSeed {
		p.rng = rand.New(rand.NewPCG(o.seed, o.seed))
	}
	return p, nil
}

// N returns the number of elements in each vector.
func (p *Pipeline) N() int { return p.n }

// Device returns the device the pipeline runs on.
func (p *Pipeline) Device() backend.Device { return p.device }

// PrepareData allocates the two input buffers and the output buffer on
// first call, then fills both inputs with random values in [0, 1). On
// later calls the buffers are kept and only refilled, so a pipeline can
// run many rounds without reallocating.
func (p *Pipeline) PrepareData() error {
	if p.closed {
		return ErrClosed
	}
	if p.result == nil {
		if err := p.allocate(); err != nil {
			return err
		}
	}
	p.fill(p.a.Float32())
	p.fill(p.b.Float32())
	return nil
}

// allocate creates the three data buffers, releasing any partial set on
// failure so a later PrepareData can retry cleanly.
func (p *Pipeline) allocate() error {
	var err error
	if p.a, err = p.newBuffer("in_a"); err != nil {
		return err
	}
	if p.b, err = p.newBuffer("in_b"); err != nil {
		p.a.Release()
		p.a = nil
		return err
	}
	if p.result, err = p.newBuffer("result"); err != nil {
		p.b.Release()
		p.a.Release()
		p.a, p.b = nil, nil
		return err
	}
	return nil
}

func (p *Pipeline) newBuffer(label string) (backend.Buffer, error) {
	buf, err := p.device.NewBuffer(&backend.BufferDescriptor{
		Label: label,
		Len:   p.n,
	})
	if err != nil {
		return nil, fmt.Errorf("vecadd: allocate %s: %w", label, err)
	}
	return buf, nil
}

func (p *Pipeline) fill(data []float32) {
	if p.rng != nil {
		for i := range data {
			data[i] = p.rng.Float32()
		}
		return
	}
	for i := range data {
		data[i] = rand.Float32()
	}
}

// InputA returns the host view of the first input, or nil before
// PrepareData has run.
func (p *Pipeline) InputA() []float32 {
	if p.a == nil {
		return nil
	}
	return p.a.Float32()
}

// InputB returns the host view of the second input, or nil before
// PrepareData has run.
func (p *Pipeline) InputB() []float32 {
	if p.b == nil {
		return nil
	}
	return p.b.Float32()
}

// Output returns the host view of the result buffer, or nil before
// PrepareData has run. Its contents are valid after Dispatch returns.
func (p *Pipeline) Output() []float32 {
	if p.result == nil {
		return nil
	}
	return p.result.Float32()
}

// Close releases the buffers, the compiled kernel, and the device when
// the pipeline opened it. Close is idempotent.
func (p *Pipeline) Close() {
	if p.closed {
		return
	}
	p.closed = true
	if p.result != nil {
		p.result.Release()
	}
	if p.b != nil {
		p.b.Release()
	}
	if p.a != nil {
		p.a.Release()
	}
	p.kernel.Release()
	if p.ownsDevice {
		p.device.Close()
	}
}
