package cpu

import (
	"errors"
	"testing"

	"github.com/gogpu/vecadd/backend"
)

func TestCompileKernel(t *testing.T) {
	d := NewDevice(0)
	defer d.Close()

	p, err := d.CompileKernel(&backend.KernelDescriptor{
		Label:         "add",
		Source:        testKernelSource,
		EntryPoint:    "add_arrays",
		WorkgroupSize: 64,
		Bindings:      testBindings,
	})
	if err != nil {
		t.Fatalf("CompileKernel error: %v", err)
	}
	defer p.Release()

	if p.EntryPoint() != "add_arrays" {
		t.Errorf("EntryPoint() = %q, want add_arrays", p.EntryPoint())
	}
	if p.MaxThreadsPerThreadgroup() != 64 {
		t.Errorf("MaxThreadsPerThreadgroup() = %d, want 64", p.MaxThreadsPerThreadgroup())
	}
}

func TestCompileKernelDefaultsWorkgroupSize(t *testing.T) {
	d := NewDevice(0)
	defer d.Close()

	for _, size := range []int{0, -1, DefaultMaxThreadsPerThreadgroup + 1} {
		p, err := d.CompileKernel(&backend.KernelDescriptor{
			Source:        testKernelSource,
			EntryPoint:    "add_arrays",
			WorkgroupSize: size,
			Bindings:      testBindings,
		})
		if err != nil {
			t.Fatalf("CompileKernel(size=%d) error: %v", size, err)
		}
		if got := p.MaxThreadsPerThreadgroup(); got != DefaultMaxThreadsPerThreadgroup {
			t.Errorf("MaxThreadsPerThreadgroup(size=%d) = %d, want %d",
				size, got, DefaultMaxThreadsPerThreadgroup)
		}
		p.Release()
	}
}

func TestCompileKernelEmptySource(t *testing.T) {
	d := NewDevice(0)
	defer d.Close()

	_, err := d.CompileKernel(&backend.KernelDescriptor{EntryPoint: "add_arrays"})
	if !errors.Is(err, backend.ErrCompileFailed) {
		t.Errorf("CompileKernel(empty source) error = %v, want ErrCompileFailed", err)
	}
}

func TestCompileKernelBadSource(t *testing.T) {
	d := NewDevice(0)
	defer d.Close()

	_, err := d.CompileKernel(&backend.KernelDescriptor{
		Source:     "fn add_arrays( this is not wgsl",
		EntryPoint: "add_arrays",
	})
	if !errors.Is(err, backend.ErrCompileFailed) {
		t.Errorf("CompileKernel(bad source) error = %v, want ErrCompileFailed", err)
	}
}

func TestCompileKernelUnknownEntryPoint(t *testing.T) {
	d := NewDevice(0)
	defer d.Close()

	_, err := d.CompileKernel(&backend.KernelDescriptor{
		Source:     testKernelSource,
		EntryPoint: "no_such_kernel",
	})
	if !errors.Is(err, backend.ErrEntryPointNotFound) {
		t.Errorf("CompileKernel(unknown entry) error = %v, want ErrEntryPointNotFound", err)
	}
}

func TestRegisterKernel(t *testing.T) {
	RegisterKernel("double_test", func(args [][]float32, gid int) {
		out := args[0]
		if gid >= len(out) {
			return
		}
		out[gid] *= 2
	})

	fn, ok := kernelByName("double_test")
	if !ok {
		t.Fatal("kernelByName(double_test) not found after RegisterKernel")
	}
	data := []float32{1, 2, 3}
	for i := range data {
		fn([][]float32{data}, i)
	}
	want := []float32{2, 4, 6}
	for i := range want {
		if data[i] != want[i] {
			t.Errorf("data[%d] = %g, want %g", i, data[i], want[i])
		}
	}
}
