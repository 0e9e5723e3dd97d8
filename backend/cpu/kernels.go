package cpu

import (
	"sync"
)

// KernelFunc is the host-native form of a compute kernel: one invocation
// per grid index. args holds the bound buffer views in slot order; gid is
// the global thread index. A KernelFunc must guard its own bounds the same
// way the device kernel does.
type KernelFunc func(args [][]float32, gid int)

// kernel registry. The software device cannot execute compiled shader
// code, so each kernel entry point ships with a native implementation
// keyed by the same entry-point name the shader source declares. Compiling
// a kernel validates the source with the shader compiler and then resolves
// the entry point here; an entry point with no native implementation is
// the software device's "missing entry point" failure.
var (
	kernelsMu sync.RWMutex
	kernels   = make(map[string]KernelFunc)
)

// RegisterKernel registers a native kernel implementation under the given
// entry-point name. If the name is already registered, it is replaced.
func RegisterKernel(entryPoint string, fn KernelFunc) {
	kernelsMu.Lock()
	defer kernelsMu.Unlock()
	kernels[entryPoint] = fn
}

// kernelByName looks up a registered kernel.
func kernelByName(entryPoint string) (KernelFunc, bool) {
	kernelsMu.RLock()
	defer kernelsMu.RUnlock()
	fn, ok := kernels[entryPoint]
	return fn, ok
}

func init() {
	// Elementwise addition, the contract kernel of the vecadd pipeline:
	// result[i] = a[i] + b[i] with a bounds guard on the output length.
	RegisterKernel("add_arrays", func(args [][]float32, gid int) {
		a, b, result := args[0], args[1], args[2]
		if gid >= len(result) {
			return
		}
		result[gid] = a[gid] + b[gid]
	})
}
