package vecadd

import "github.com/gogpu/vecadd/backend"

// DefaultLength is the number of float32 elements processed when no
// WithLength option is supplied.
const DefaultLength = 1 << 24

// Option configures a Pipeline during New.
type Option func(*options)

// options holds the resolved configuration for a Pipeline.
type options struct {
	length     int
	device     backend.Device
	backend    string
	source     string
	entryPoint string
	seed       uint64
	hasSeed    bool
}

func defaultOptions() options {
	return options{
		length:     DefaultLength,
		source:     KernelSource,
		entryPoint: KernelEntryPoint,
	}
}

// WithLength sets the number of elements in each vector.
// Values less than 1 are ignored and the default is kept.
func WithLength(n int) Option {
	return func(o *options) {
		if n >= 1 {
			o.length = n
		}
	}
}

// WithDevice runs the pipeline on an already-open device. The caller
// retains ownership: Close does not close a device supplied this way.
func WithDevice(d backend.Device) Option {
	return func(o *options) {
		o.device = d
	}
}

// WithBackend selects a registered backend by name (for example
// backend.BackendCPU or backend.BackendWGPU) instead of the default
// priority order.
func WithBackend(name string) Option {
	return func(o *options) {
		o.backend = name
	}
}

// WithKernel replaces the built-in addition kernel with a custom WGSL
// source and entry point. The kernel must bind the two inputs at slots
// 0 and 1 and the output at slot 2.
func WithKernel(source, entryPoint string) Option {
	return func(o *options) {
		o.source = source
		o.entryPoint = entryPoint
	}
}

// WithSeed seeds the random input generator deterministically. Without
// it PrepareData draws from the shared global source.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.seed = seed
		o.hasSeed = true
	}
}
