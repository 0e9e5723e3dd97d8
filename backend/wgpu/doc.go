// Package wgpu provides the GPU compute backend using the gogpu/wgpu HAL.
// Kernel source is compiled from WGSL to SPIR-V with naga, dispatched as a
// single compute pass, and synchronized with a fence; result buffers are
// copied back through a staging buffer after the fence signals.
//
// Building with the nogpu tag compiles this package empty: the backend is
// never registered and device selection falls through to the cpu backend.
package wgpu
