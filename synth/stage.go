package synth

import (
	"fmt"

	"github.com/gogpu/naga/ir"
)

// Stage is one programmable step of the pipeline.
type Stage uint8

const (
	StageVertex Stage = iota
	StageFragment
)

// Stages lists both stages in pipeline order.
var Stages = [...]Stage{StageVertex, StageFragment}

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	}
	return fmt.Sprintf("Stage(%d)", s)
}

// EntryPoint returns the name of the synthesized entry point.
func (s Stage) EntryPoint() string {
	if s == StageVertex {
		return VertexEntryPoint
	}
	return FragmentEntryPoint
}

// IR returns the matching naga shader stage.
func (s Stage) IR() ir.ShaderStage {
	if s == StageVertex {
		return ir.StageVertex
	}
	return ir.StageFragment
}
