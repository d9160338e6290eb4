package binding

import (
	"fmt"

	"github.com/gogpu/naga/ir"
)

// TypeName returns the WGSL spelling of an IR type.
func TypeName(m *ir.Module, th ir.TypeHandle) string {
	if int(th) >= len(m.Types) {
		return fmt.Sprintf("type#%d", th)
	}
	t := m.Types[th]
	switch inner := t.Inner.(type) {
	case ir.ScalarType:
		return scalarName(inner)
	case ir.VectorType:
		return fmt.Sprintf("vec%d<%s>", inner.Size, scalarName(inner.Scalar))
	case ir.MatrixType:
		return fmt.Sprintf("mat%dx%d<%s>", inner.Columns, inner.Rows, scalarName(inner.Scalar))
	case ir.SamplerType:
		if inner.Comparison {
			return "sampler_comparison"
		}
		return "sampler"
	case ir.ImageType:
		return imageName(inner)
	case ir.ArrayType:
		if inner.Size.Constant != nil {
			return fmt.Sprintf("array<%s, %d>", TypeName(m, inner.Base), *inner.Size.Constant)
		}
		return fmt.Sprintf("array<%s>", TypeName(m, inner.Base))
	case ir.AtomicType:
		return fmt.Sprintf("atomic<%s>", scalarName(inner.Scalar))
	case ir.StructType:
		if t.Name != "" {
			return t.Name
		}
		return "struct"
	}
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("%T", t.Inner)
}

func scalarName(s ir.ScalarType) string {
	switch s.Kind {
	case ir.ScalarSint:
		return "i32"
	case ir.ScalarUint:
		return "u32"
	case ir.ScalarFloat:
		if s.Width == 2 {
			return "f16"
		}
		return "f32"
	case ir.ScalarBool:
		return "bool"
	}
	return fmt.Sprintf("scalar(%d)", s.Kind)
}

func imageName(img ir.ImageType) string {
	var dim string
	switch img.Dim {
	case ir.Dim1D:
		dim = "1d"
	case ir.Dim2D:
		dim = "2d"
	case ir.Dim3D:
		dim = "3d"
	case ir.DimCube:
		dim = "cube"
	}
	if img.Arrayed {
		dim += "_array"
	}
	switch {
	case img.Class == ir.ImageClassDepth:
		return "texture_depth_" + dim
	case img.Class == ir.ImageClassStorage:
		return "texture_storage_" + dim
	case img.Multisampled:
		return "texture_multisampled_" + dim
	}
	return "texture_" + dim
}

func isInteger(m *ir.Module, th ir.TypeHandle) bool {
	if int(th) >= len(m.Types) {
		return false
	}
	switch inner := m.Types[th].Inner.(type) {
	case ir.ScalarType:
		return inner.Kind == ir.ScalarSint || inner.Kind == ir.ScalarUint
	case ir.VectorType:
		return inner.Scalar.Kind == ir.ScalarSint || inner.Scalar.Kind == ir.ScalarUint
	}
	return false
}
