//go:build !nogpu

package wgpu

import (
	"errors"
	"testing"

	"github.com/gogpu/vecadd/backend"
)

const testKernelSource = `
@group(0) @binding(0) var<storage, read> in_a: array<f32>;
@group(0) @binding(1) var<storage, read> in_b: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

@compute @workgroup_size(64)
fn add_arrays(@builtin(global_invocation_id) gid: vec3<u32>) {
    let i = gid.x;
    if (i >= arrayLength(&result)) {
        return;
    }
    result[i] = in_a[i] + in_b[i];
}
`

func TestDeclaresEntryPoint(t *testing.T) {
	tests := []struct {
		name       string
		entryPoint string
		want       bool
	}{
		{"declared", "add_arrays", true},
		{"not declared", "mul_arrays", false},
		{"prefix of declared", "add", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := declaresEntryPoint(testKernelSource, tt.entryPoint); got != tt.want {
				t.Errorf("declaresEntryPoint(%q) = %v, want %v", tt.entryPoint, got, tt.want)
			}
		})
	}
}

func TestFloatBytesRoundTrip(t *testing.T) {
	src := []float32{0, 1, -2.5, 3.25e8}
	dst := make([]float32, len(src))
	bytesToFloats(dst, floatsToBytes(src))
	for i := range src {
		if dst[i] != src[i] {
			t.Errorf("round trip [%d] = %g, want %g", i, dst[i], src[i])
		}
	}
}

// openTestDevice opens a real GPU device, skipping the test on machines
// with no usable adapter.
func openTestDevice(t *testing.T) backend.Device {
	t.Helper()
	dev, err := Open()
	if err != nil {
		if errors.Is(err, backend.ErrDeviceUnavailable) {
			t.Skipf("no GPU device: %v", err)
		}
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(dev.Close)
	return dev
}

func TestDeviceEndToEnd(t *testing.T) {
	dev := openTestDevice(t)

	p, err := dev.CompileKernel(&backend.KernelDescriptor{
		Label:         "add",
		Source:        testKernelSource,
		EntryPoint:    "add_arrays",
		WorkgroupSize: 64,
		Bindings: []backend.Binding{
			{Slot: 0, Access: backend.AccessReadOnly},
			{Slot: 1, Access: backend.AccessReadOnly},
			{Slot: 2, Access: backend.AccessReadWrite},
		},
	})
	if err != nil {
		t.Fatalf("CompileKernel error: %v", err)
	}
	defer p.Release()

	const n = 100 // ragged against the workgroup size
	var bufs [3]backend.Buffer
	for i, label := range []string{"in_a", "in_b", "result"} {
		buf, err := dev.NewBuffer(&backend.BufferDescriptor{Label: label, Len: n})
		if err != nil {
			t.Fatalf("NewBuffer(%s) error: %v", label, err)
		}
		defer buf.Release()
		bufs[i] = buf
	}

	a, b := bufs[0].Float32(), bufs[1].Float32()
	for i := 0; i < n; i++ {
		a[i] = float32(i)
		b[i] = float32(2 * i)
	}

	cmd, err := dev.NewCommandBuffer()
	if err != nil {
		t.Fatalf("NewCommandBuffer error: %v", err)
	}
	if err := cmd.SetPipeline(p); err != nil {
		t.Fatalf("SetPipeline error: %v", err)
	}
	for slot, buf := range bufs {
		if err := cmd.SetBuffer(uint32(slot), buf); err != nil {
			t.Fatalf("SetBuffer(%d) error: %v", slot, err)
		}
	}
	if err := cmd.DispatchThreads(n, p.MaxThreadsPerThreadgroup()); err != nil {
		t.Fatalf("DispatchThreads error: %v", err)
	}
	if err := cmd.Commit(); err != nil {
		t.Fatalf("Commit error: %v", err)
	}
	if err := cmd.Wait(); err != nil {
		t.Fatalf("Wait error: %v", err)
	}

	result := bufs[2].Float32()
	for i := 0; i < n; i++ {
		if want := float32(3 * i); result[i] != want {
			t.Fatalf("result[%d] = %g, want %g", i, result[i], want)
		}
	}
}
