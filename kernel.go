package vecadd

import (
	"github.com/gogpu/vecadd/backend"
)

// KernelEntryPoint is the entry-point name host and kernel agreed on.
const KernelEntryPoint = "add_arrays"

// kernelWorkgroupSize is the threadgroup size the kernel source is
// authored with (the @workgroup_size attribute below).
const kernelWorkgroupSize = 256

// KernelSource is the elementwise-addition kernel. It is treated as an
// opaque artifact with a fixed contract: three float32 array bindings
// (inputs at slots 0 and 1, output at slot 2) and one entry point that
// writes result[i] = in_a[i] + in_b[i] for every index in the grid. The
// bounds guard covers the ragged final threadgroup.
const KernelSource = `
@group(0) @binding(0) var<storage, read> in_a: array<f32>;
@group(0) @binding(1) var<storage, read> in_b: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

@compute @workgroup_size(256)
fn add_arrays(@builtin(global_invocation_id) gid: vec3<u32>) {
    let i = gid.x;
    if (i >= arrayLength(&result)) {
        return;
    }
    result[i] = in_a[i] + in_b[i];
}
`

// kernelBindings is the argument-slot contract of the kernel: A=0, B=1,
// Result=2.
var kernelBindings = []backend.Binding{
	{Slot: 0, Access: backend.AccessReadOnly},
	{Slot: 1, Access: backend.AccessReadOnly},
	{Slot: 2, Access: backend.AccessReadWrite},
}
