package pipeline

import (
	"sync/atomic"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/shaderpipe/binding"
)

// Pipeline is a built render pipeline with the objects it owns: two shader
// modules, one bind group layout per group, and the pipeline layout.
//
// A Pipeline returned by the cache is valid until the next BeginFrame.
// Code that keeps it longer calls Acquire, and Release when done. GPU
// objects are destroyed once the cache and every holder have released
// it, at the following BeginFrame.
type Pipeline struct {
	key        Key
	generation uint64
	owner      *Cache

	render       hal.RenderPipeline
	layout       hal.PipelineLayout
	groupLayouts []hal.BindGroupLayout
	vertex       hal.ShaderModule
	fragment     hal.ShaderModule
	resources    []binding.Resource

	refs      atomic.Int32
	destroyed atomic.Bool
}

// Key returns the cache key the pipeline was built for.
func (p *Pipeline) Key() Key { return p.key }

// Generation returns the asset generation the pipeline was built in.
func (p *Pipeline) Generation() uint64 { return p.generation }

// RenderPipeline returns the hal pipeline to bind for a draw.
func (p *Pipeline) RenderPipeline() hal.RenderPipeline { return p.render }

// Layout returns the pipeline layout.
func (p *Pipeline) Layout() hal.PipelineLayout { return p.layout }

// BindGroupLayouts returns one layout per bind group, indexed by group.
func (p *Pipeline) BindGroupLayouts() []hal.BindGroupLayout { return p.groupLayouts }

// Resources returns the merged bind group entries of both stages.
func (p *Pipeline) Resources() []binding.Resource { return p.resources }

// Acquire adds a reference. It returns p for chaining.
func (p *Pipeline) Acquire() *Pipeline {
	p.refs.Add(1)
	return p
}

// Release drops a reference. Dropping the last one schedules the GPU
// objects for destruction.
func (p *Pipeline) Release() {
	n := p.refs.Add(-1)
	switch {
	case n == 0:
		if p.owner != nil {
			p.owner.enqueueDestroy(p)
		}
	case n < 0:
		panic("pipeline: Release without Acquire")
	}
}

// Refs returns the current reference count.
func (p *Pipeline) Refs() int { return int(p.refs.Load()) }

// Destroyed reports whether the GPU objects have been destroyed.
func (p *Pipeline) Destroyed() bool { return p.destroyed.Load() }

// destroy releases the GPU objects in reverse creation order. It runs at
// most once.
func (p *Pipeline) destroy(device hal.Device) {
	if !p.destroyed.CompareAndSwap(false, true) {
		return
	}
	if p.render != nil {
		device.DestroyRenderPipeline(p.render)
		p.render = nil
	}
	if p.layout != nil {
		device.DestroyPipelineLayout(p.layout)
		p.layout = nil
	}
	for i := len(p.groupLayouts) - 1; i >= 0; i-- {
		if p.groupLayouts[i] != nil {
			device.DestroyBindGroupLayout(p.groupLayouts[i])
		}
	}
	p.groupLayouts = nil
	if p.fragment != nil {
		device.DestroyShaderModule(p.fragment)
		p.fragment = nil
	}
	if p.vertex != nil {
		device.DestroyShaderModule(p.vertex)
		p.vertex = nil
	}
}
