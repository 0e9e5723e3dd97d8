//go:build !nogpu

package wgpu

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/vecadd/backend"
)

// defaultWorkgroupSize is assumed when the kernel descriptor does not name
// the size its source was authored with.
const defaultWorkgroupSize = 256

// CompileKernel compiles WGSL to SPIR-V with naga and builds the compute
// pipeline: shader module, bind group layout from the declared bindings,
// pipeline layout, and pipeline state for the requested entry point.
func (d *Device) CompileKernel(desc *backend.KernelDescriptor) (backend.Pipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, backend.ErrDeviceClosed
	}
	if desc == nil || desc.Source == "" {
		return nil, fmt.Errorf("%w: empty kernel source", backend.ErrCompileFailed)
	}

	spirvBytes, err := naga.Compile(desc.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", backend.ErrCompileFailed, err)
	}
	if !declaresEntryPoint(desc.Source, desc.EntryPoint) {
		return nil, fmt.Errorf("%w: %q", backend.ErrEntryPointNotFound, desc.EntryPoint)
	}

	// SPIR-V is consumed as little-endian 32-bit words.
	spirv := make([]uint32, len(spirvBytes)/4)
	for i := range spirv {
		spirv[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}

	label := desc.Label
	if label == "" {
		label = desc.EntryPoint
	}

	p := &pipeline{
		device:     d,
		entryPoint: desc.EntryPoint,
		bindings:   append([]backend.Binding(nil), desc.Bindings...),
	}

	p.workgroupSize = desc.WorkgroupSize
	if p.workgroupSize <= 0 {
		p.workgroupSize = defaultWorkgroupSize
	}
	if limit := int(d.limits.MaxComputeInvocationsPerWorkgroup); p.workgroupSize > limit {
		p.workgroupSize = limit
	}

	module, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label + "_shader",
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create shader module: %w", backend.ErrCompileFailed, err)
	}
	p.module = module

	entries := make([]gputypes.BindGroupLayoutEntry, len(desc.Bindings))
	for i, b := range desc.Bindings {
		bufType := gputypes.BufferBindingTypeReadOnlyStorage
		if b.Access == backend.AccessReadWrite {
			bufType = gputypes.BufferBindingTypeStorage
		}
		entries[i] = gputypes.BindGroupLayoutEntry{
			Binding:    b.Slot,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: bufType},
		}
	}
	bindLayout, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   label + "_bind_layout",
		Entries: entries,
	})
	if err != nil {
		p.Release()
		return nil, fmt.Errorf("%w: create bind group layout: %w", backend.ErrCompileFailed, err)
	}
	p.bindLayout = bindLayout

	pipeLayout, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label + "_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		p.Release()
		return nil, fmt.Errorf("%w: create pipeline layout: %w", backend.ErrCompileFailed, err)
	}
	p.pipeLayout = pipeLayout

	halPipeline, err := d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  label + "_pipeline",
		Layout: pipeLayout,
		Compute: hal.ComputeState{
			Module:     module,
			EntryPoint: desc.EntryPoint,
		},
	})
	if err != nil {
		p.Release()
		return nil, fmt.Errorf("%w: create compute pipeline: %w", backend.ErrEntryPointNotFound, err)
	}
	p.halPipeline = halPipeline

	return p, nil
}

// declaresEntryPoint reports whether the WGSL source declares a function
// with the given name. naga validates the module as a whole; this check
// pins the missing-entry-point failure to its own error kind before
// pipeline creation.
func declaresEntryPoint(source, entryPoint string) bool {
	if entryPoint == "" {
		return false
	}
	return strings.Contains(source, "fn "+entryPoint+"(")
}

// pipeline is a compiled compute pipeline and the HAL objects backing it.
type pipeline struct {
	device     *Device
	entryPoint string
	bindings   []backend.Binding

	workgroupSize int

	module      hal.ShaderModule
	bindLayout  hal.BindGroupLayout
	pipeLayout  hal.PipelineLayout
	halPipeline hal.ComputePipeline

	mu       sync.Mutex
	released bool
}

func (p *pipeline) EntryPoint() string { return p.entryPoint }

func (p *pipeline) MaxThreadsPerThreadgroup() int { return p.workgroupSize }

// Release destroys the HAL objects in reverse creation order.
func (p *pipeline) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return
	}
	p.released = true

	dev := p.device.device
	if dev == nil {
		return
	}
	if p.halPipeline != nil {
		dev.DestroyComputePipeline(p.halPipeline)
		p.halPipeline = nil
	}
	if p.pipeLayout != nil {
		dev.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.bindLayout != nil {
		dev.DestroyBindGroupLayout(p.bindLayout)
		p.bindLayout = nil
	}
	if p.module != nil {
		dev.DestroyShaderModule(p.module)
		p.module = nil
	}
}
