package pipeline

import (
	"errors"
	"io/fs"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/shaderpipe/asset"
	"github.com/gogpu/shaderpipe/synth"
	"github.com/gogpu/shaderpipe/translate"
)

const vnormalAsset = `[varying]
vec3 vnormal;

[vertex]
fn vertex() {
    vnormal = normal;
    clip_position = camera.projection * camera.view * vec4<f32>(position, 1.0);
}

[fragment]
fn fragment() {
    out_color = vec4<f32>(normalize(vnormal) * 0.5 + 0.5, 1.0);
}
`

const texturedAsset = `[varying]
vec2 vuv;

[vertex]
fn vertex() {
    vuv = uv;
    clip_position = camera.projection * camera.view * vec4<f32>(position, 1.0);
}

[fragment]
fn fragment() {
    out_color = textureSample(albedo_texture, albedo_sampler, vuv);
}
`

// undeclaredAsset writes a varying it never declared.
const undeclaredAsset = `[varying]
vec3 vnormal;

[vertex]
fn vertex() {
    vcolor = normal;
    clip_position = camera.projection * camera.view * vec4<f32>(position, 1.0);
}

[fragment]
fn fragment() {
    out_color = vec4<f32>(vnormal, 1.0);
}
`

const missingFragmentAsset = `[varying]
vec3 vnormal;

[vertex]
fn vertex() {
    vnormal = normal;
}
`

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"vnormal.shader":    {Data: []byte(vnormalAsset)},
		"textured.shader":   {Data: []byte(texturedAsset)},
		"undeclared.shader": {Data: []byte(undeclaredAsset)},
		"missing.shader":    {Data: []byte(missingFragmentAsset)},
	}
}

// createNoopDevice creates a noop HAL device for testing.
func createNoopDevice(t *testing.T) hal.Device {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return openDev.Device
}

// countingDevice wraps a device, counts pipeline and shader module
// traffic, and can reject render pipelines.
type countingDevice struct {
	hal.Device

	mu                 sync.Mutex
	pipelinesCreated   int
	pipelinesDestroyed int
	modulesCreated     int
	modulesDestroyed   int
	failPipeline       bool
	onCreatePipeline   func()
}

func newCountingDevice(t *testing.T) *countingDevice {
	return &countingDevice{Device: createNoopDevice(t)}
}

func (d *countingDevice) CreateRenderPipeline(desc *hal.RenderPipelineDescriptor) (hal.RenderPipeline, error) {
	d.mu.Lock()
	d.pipelinesCreated++
	fail := d.failPipeline
	hook := d.onCreatePipeline
	d.onCreatePipeline = nil
	d.mu.Unlock()

	if hook != nil {
		hook()
	}
	if fail {
		return nil, errors.New("unsupported fixed state")
	}
	return d.Device.CreateRenderPipeline(desc)
}

func (d *countingDevice) DestroyRenderPipeline(p hal.RenderPipeline) {
	d.mu.Lock()
	d.pipelinesDestroyed++
	d.mu.Unlock()
	d.Device.DestroyRenderPipeline(p)
}

func (d *countingDevice) CreateShaderModule(desc *hal.ShaderModuleDescriptor) (hal.ShaderModule, error) {
	d.mu.Lock()
	d.modulesCreated++
	d.mu.Unlock()
	return d.Device.CreateShaderModule(desc)
}

func (d *countingDevice) DestroyShaderModule(m hal.ShaderModule) {
	d.mu.Lock()
	d.modulesDestroyed++
	d.mu.Unlock()
	d.Device.DestroyShaderModule(m)
}

func (d *countingDevice) setFail(fail bool) {
	d.mu.Lock()
	d.failPipeline = fail
	d.mu.Unlock()
}

func (d *countingDevice) counts() (created, destroyed int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pipelinesCreated, d.pipelinesDestroyed
}

func newTestCache(t *testing.T, fsys fstest.MapFS, opts ...Option) (*Cache, *countingDevice) {
	t.Helper()
	dev := newCountingDevice(t)
	c, err := NewCache(dev, asset.NewStore(fsys), opts...)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	t.Cleanup(c.Close)
	return c, dev
}

// countingFS counts file opens per name.
type countingFS struct {
	fsys fs.FS

	mu    sync.Mutex
	opens map[string]int
}

func newCountingFS(fsys fs.FS) *countingFS {
	return &countingFS{fsys: fsys, opens: make(map[string]int)}
}

func (c *countingFS) Open(name string) (fs.File, error) {
	c.mu.Lock()
	c.opens[name]++
	c.mu.Unlock()
	return c.fsys.Open(name)
}

func (c *countingFS) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens[name]
}

// countingCompiler counts compilations.
type countingCompiler struct {
	translate.Compiler

	mu    sync.Mutex
	calls int
}

func (c *countingCompiler) CompileStage(src string, stage synth.Stage) (*translate.Output, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.Compiler.CompileStage(src, stage)
}

func (c *countingCompiler) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
