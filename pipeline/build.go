package pipeline

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/shaderpipe/binding"
	"github.com/gogpu/shaderpipe/synth"
	"github.com/gogpu/shaderpipe/translate"
)

// vertexFormats maps reflected attribute types to vertex formats and sizes.
var vertexFormats = map[string]struct {
	format gputypes.VertexFormat
	size   uint64
}{
	"f32":       {gputypes.VertexFormatFloat32, 4},
	"vec2<f32>": {gputypes.VertexFormatFloat32x2, 8},
	"vec3<f32>": {gputypes.VertexFormatFloat32x3, 12},
	"vec4<f32>": {gputypes.VertexFormatFloat32x4, 16},
}

// vertexLayout interleaves the vertex attributes in location order in a
// single buffer. With the engine attributes this is position, normal, uv
// at offsets 0, 12, 24 and a stride of 32.
func vertexLayout(attrs []binding.Entry) ([]gputypes.VertexBufferLayout, error) {
	if len(attrs) == 0 {
		return nil, nil
	}
	out := gputypes.VertexBufferLayout{StepMode: gputypes.VertexStepModeVertex}
	var offset uint64
	for _, a := range attrs {
		vf, ok := vertexFormats[a.Type]
		if !ok {
			return nil, fmt.Errorf("attribute %s: unsupported vertex type %s", a.Name, a.Type)
		}
		out.Attributes = append(out.Attributes, gputypes.VertexAttribute{
			Format:         vf.format,
			Offset:         offset,
			ShaderLocation: a.Slot,
		})
		offset += vf.size
	}
	out.ArrayStride = offset
	return []gputypes.VertexBufferLayout{out}, nil
}

// groupEntries converts merged resources into bind group layout entries,
// one slice per group from 0 to the highest group used. Groups without
// resources get an empty layout so the indices stay stable.
func groupEntries(resources []binding.Resource) ([][]gputypes.BindGroupLayoutEntry, error) {
	var groups [][]gputypes.BindGroupLayoutEntry
	for _, r := range resources {
		for uint32(len(groups)) <= r.Group {
			groups = append(groups, nil)
		}
		e, err := layoutEntry(r)
		if err != nil {
			return nil, err
		}
		groups[r.Group] = append(groups[r.Group], e)
	}
	return groups, nil
}

func layoutEntry(r binding.Resource) (gputypes.BindGroupLayoutEntry, error) {
	e := gputypes.BindGroupLayoutEntry{
		Binding:    r.Slot,
		Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
	}
	switch {
	case r.Visibility == binding.VisibleVertex:
		e.Visibility = gputypes.ShaderStageVertex
	case r.Visibility == binding.VisibleFragment:
		e.Visibility = gputypes.ShaderStageFragment
	}

	switch r.Category {
	case binding.CategoryUniform:
		e.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}
	case binding.CategoryStorage:
		if strings.HasPrefix(r.Type, "texture_storage") {
			return e, fmt.Errorf("%s: storage textures are not supported", r.Name)
		}
		storage := gputypes.BufferBindingTypeReadOnlyStorage
		if r.Writable {
			storage = gputypes.BufferBindingTypeStorage
		}
		e.Buffer = &gputypes.BufferBindingLayout{Type: storage}
	case binding.CategoryTexture:
		e.Texture = &gputypes.TextureBindingLayout{
			SampleType:    sampleType(r.Sample),
			ViewDimension: viewDimension(r.Type),
			Multisampled:  r.Multisampled,
		}
	case binding.CategorySampler:
		sampler := gputypes.SamplerBindingTypeFiltering
		if r.Comparison {
			sampler = gputypes.SamplerBindingTypeComparison
		}
		e.Sampler = &gputypes.SamplerBindingLayout{Type: sampler}
	default:
		return e, fmt.Errorf("%s: %s is not a bind group resource", r.Name, r.Category)
	}
	return e, nil
}

func sampleType(k binding.SampleKind) gputypes.TextureSampleType {
	switch k {
	case binding.SampleDepth:
		return gputypes.TextureSampleTypeDepth
	case binding.SampleSint:
		return gputypes.TextureSampleTypeSint
	case binding.SampleUint:
		return gputypes.TextureSampleTypeUint
	}
	return gputypes.TextureSampleTypeFloat
}

// viewDimension reads the view dimension from the WGSL texture type name.
func viewDimension(typ string) gputypes.TextureViewDimension {
	switch {
	case strings.HasSuffix(typ, "_1d"):
		return gputypes.TextureViewDimension1D
	case strings.HasSuffix(typ, "_2d_array"):
		return gputypes.TextureViewDimension2DArray
	case strings.HasSuffix(typ, "_3d"):
		return gputypes.TextureViewDimension3D
	case strings.HasSuffix(typ, "_cube"):
		return gputypes.TextureViewDimensionCube
	case strings.HasSuffix(typ, "_cube_array"):
		return gputypes.TextureViewDimensionCubeArray
	}
	return gputypes.TextureViewDimension2D
}

// createPipeline creates the GPU objects for two compiled stages. On
// failure every object created so far is destroyed and a *CreationError
// names the step that failed.
func createPipeline(device hal.Device, key Key, vs, fs *translate.CompiledStage, resources []binding.Resource) (*Pipeline, error) { //nolint:funlen // GPU pipeline descriptors are inherently verbose
	p := &Pipeline{key: key, resources: resources}
	fail := func(op string, err error) (*Pipeline, error) {
		p.destroy(device)
		return nil, &CreationError{Key: key, Op: op, Err: err}
	}
	label := key.AssetID

	buffers, err := vertexLayout(vs.Layout.Filter(binding.CategoryAttribute))
	if err != nil {
		return fail("vertex layout", err)
	}
	groups, err := groupEntries(resources)
	if err != nil {
		return fail("bind group layout", err)
	}

	p.vertex, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label + "_vs",
		Source: hal.ShaderSource{SPIRV: vs.Words},
	})
	if err != nil {
		return fail("vertex shader module", err)
	}
	p.fragment, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label + "_fs",
		Source: hal.ShaderSource{SPIRV: fs.Words},
	})
	if err != nil {
		return fail("fragment shader module", err)
	}

	for i, entries := range groups {
		bgl, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("%s_group%d", label, i),
			Entries: entries,
		})
		if err != nil {
			return fail(fmt.Sprintf("bind group layout %d", i), err)
		}
		p.groupLayouts = append(p.groupLayouts, bgl)
	}

	p.layout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label + "_layout",
		BindGroupLayouts: p.groupLayouts,
	})
	if err != nil {
		return fail("pipeline layout", err)
	}

	state := key.State
	var depth *hal.DepthStencilState
	if state.DepthFormat != gputypes.TextureFormatUndefined {
		keep := hal.StencilFaceState{
			Compare:     gputypes.CompareFunctionAlways,
			FailOp:      hal.StencilOperationKeep,
			DepthFailOp: hal.StencilOperationKeep,
			PassOp:      hal.StencilOperationKeep,
		}
		depth = &hal.DepthStencilState{
			Format:            state.DepthFormat,
			DepthWriteEnabled: state.depthWrite(),
			DepthCompare:      state.depthCompare(),
			StencilFront:      keep,
			StencilBack:       keep,
		}
	}

	p.render, err = device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  label,
		Layout: p.layout,
		Vertex: hal.VertexState{
			Module:     p.vertex,
			EntryPoint: synth.VertexEntryPoint,
			Buffers:    buffers,
		},
		Fragment: &hal.FragmentState{
			Module:     p.fragment,
			EntryPoint: synth.FragmentEntryPoint,
			Targets: []gputypes.ColorTargetState{
				{
					Format:    state.ColorFormat,
					Blend:     state.Blend.gpu(),
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		DepthStencil: depth,
		Multisample:  state.multisample(),
		Primitive:    state.primitive(),
	})
	if err != nil {
		return fail("render pipeline", err)
	}

	p.refs.Store(1)
	return p, nil
}
