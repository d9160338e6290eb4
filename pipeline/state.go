package pipeline

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// Topology is the primitive assembly mode.
type Topology uint8

const (
	TopologyTriangles Topology = iota
	TopologyLines
	TopologyPoints
)

func (t Topology) String() string {
	switch t {
	case TopologyTriangles:
		return "triangles"
	case TopologyLines:
		return "lines"
	case TopologyPoints:
		return "points"
	}
	return fmt.Sprintf("Topology(%d)", t)
}

func (t Topology) gpu() gputypes.PrimitiveTopology {
	switch t {
	case TopologyLines:
		return gputypes.PrimitiveTopologyLineList
	case TopologyPoints:
		return gputypes.PrimitiveTopologyPointList
	}
	return gputypes.PrimitiveTopologyTriangleList
}

// BlendMode selects how fragment output combines with the color target.
type BlendMode uint8

const (
	// BlendNone replaces the destination.
	BlendNone BlendMode = iota
	// BlendAlpha is straight alpha: src*a + dst*(1-a).
	BlendAlpha
	// BlendPremultiplied expects color already multiplied by alpha.
	BlendPremultiplied
	// BlendAdditive adds src*a to the destination.
	BlendAdditive
)

func (b BlendMode) String() string {
	switch b {
	case BlendNone:
		return "none"
	case BlendAlpha:
		return "alpha"
	case BlendPremultiplied:
		return "premultiplied"
	case BlendAdditive:
		return "additive"
	}
	return fmt.Sprintf("BlendMode(%d)", b)
}

func (b BlendMode) gpu() *gputypes.BlendState {
	switch b {
	case BlendAlpha:
		return &gputypes.BlendState{
			Color: gputypes.BlendComponent{
				SrcFactor: gputypes.BlendFactorSrcAlpha,
				DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
				Operation: gputypes.BlendOperationAdd,
			},
			Alpha: gputypes.BlendComponent{
				SrcFactor: gputypes.BlendFactorOne,
				DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
				Operation: gputypes.BlendOperationAdd,
			},
		}
	case BlendPremultiplied:
		premul := gputypes.BlendStatePremultiplied()
		return &premul
	case BlendAdditive:
		return &gputypes.BlendState{
			Color: gputypes.BlendComponent{
				SrcFactor: gputypes.BlendFactorSrcAlpha,
				DstFactor: gputypes.BlendFactorOne,
				Operation: gputypes.BlendOperationAdd,
			},
			Alpha: gputypes.BlendComponent{
				SrcFactor: gputypes.BlendFactorZero,
				DstFactor: gputypes.BlendFactorOne,
				Operation: gputypes.BlendOperationAdd,
			},
		}
	}
	return nil
}

// FixedState is the fixed-function configuration of a pipeline. Two
// requests with equal FixedState and equal asset content share a pipeline.
//
// FixedState is comparable and used as part of the cache key.
type FixedState struct {
	Topology      Topology
	CullBackfaces bool
	DepthTest     bool
	DepthWrite    bool
	// DepthAlways keeps the depth attachment but passes every fragment.
	DepthAlways bool
	Blend       BlendMode
	// ColorFormat of the render target. TextureFormatUndefined selects the
	// cache's default format.
	ColorFormat gputypes.TextureFormat
	// DepthFormat of the depth attachment. TextureFormatUndefined builds a
	// pipeline without depth state.
	DepthFormat gputypes.TextureFormat
	// SampleCount is the MSAA sample count; 0 means 1.
	SampleCount uint32
}

// DefaultState returns opaque, depth-tested, back-face-culled triangles.
func DefaultState() FixedState {
	return FixedState{
		Topology:      TopologyTriangles,
		CullBackfaces: true,
		DepthTest:     true,
		DepthWrite:    true,
		Blend:         BlendNone,
		DepthFormat:   gputypes.TextureFormatDepth24PlusStencil8,
		SampleCount:   1,
	}
}

func (s FixedState) String() string {
	return fmt.Sprintf("%s cull=%t depth=%t/%t/%t blend=%s color=%d depthfmt=%d samples=%d",
		s.Topology, s.CullBackfaces, s.DepthTest, s.DepthWrite, s.DepthAlways,
		s.Blend, uint32(s.ColorFormat), uint32(s.DepthFormat), s.SampleCount)
}

func (s FixedState) primitive() gputypes.PrimitiveState {
	cull := gputypes.CullModeNone
	if s.CullBackfaces {
		cull = gputypes.CullModeBack
	}
	return gputypes.PrimitiveState{
		Topology:  s.Topology.gpu(),
		FrontFace: gputypes.FrontFaceCCW,
		CullMode:  cull,
	}
}

func (s FixedState) depthCompare() gputypes.CompareFunction {
	if !s.DepthTest || s.DepthAlways {
		return gputypes.CompareFunctionAlways
	}
	return gputypes.CompareFunctionLess
}

// depthWrite reports whether depth is written. Writes need the depth
// test enabled.
func (s FixedState) depthWrite() bool {
	return s.DepthWrite && s.DepthTest
}

func (s FixedState) multisample() gputypes.MultisampleState {
	return gputypes.MultisampleState{
		Count: max(s.SampleCount, 1),
		Mask:  0xFFFFFFFF,
	}
}
