package asset

import (
	"fmt"
	"strings"
)

// ScalarKind is the component kind of a varying type.
type ScalarKind uint8

const (
	ScalarFloat ScalarKind = iota
	ScalarSint
	ScalarUint
)

// VaryingType is one of the closed set of types a varying may have.
type VaryingType uint8

// Varying types. The zero value is invalid.
const (
	TypeInvalid VaryingType = iota
	TypeFloat
	TypeVec2
	TypeVec3
	TypeVec4
	TypeInt
	TypeIVec2
	TypeIVec3
	TypeIVec4
	TypeUint
	TypeUVec2
	TypeUVec3
	TypeUVec4
	TypeMat2
	TypeMat3
	TypeMat4
)

type typeInfo struct {
	wgsl    string
	glsl    string
	kind    ScalarKind
	size    int // components per column
	columns int // 0 for scalars and vectors
}

var typeTable = [...]typeInfo{
	TypeInvalid: {},
	TypeFloat:   {wgsl: "f32", glsl: "float", kind: ScalarFloat, size: 1},
	TypeVec2:    {wgsl: "vec2<f32>", glsl: "vec2", kind: ScalarFloat, size: 2},
	TypeVec3:    {wgsl: "vec3<f32>", glsl: "vec3", kind: ScalarFloat, size: 3},
	TypeVec4:    {wgsl: "vec4<f32>", glsl: "vec4", kind: ScalarFloat, size: 4},
	TypeInt:     {wgsl: "i32", glsl: "int", kind: ScalarSint, size: 1},
	TypeIVec2:   {wgsl: "vec2<i32>", glsl: "ivec2", kind: ScalarSint, size: 2},
	TypeIVec3:   {wgsl: "vec3<i32>", glsl: "ivec3", kind: ScalarSint, size: 3},
	TypeIVec4:   {wgsl: "vec4<i32>", glsl: "ivec4", kind: ScalarSint, size: 4},
	TypeUint:    {wgsl: "u32", glsl: "uint", kind: ScalarUint, size: 1},
	TypeUVec2:   {wgsl: "vec2<u32>", glsl: "uvec2", kind: ScalarUint, size: 2},
	TypeUVec3:   {wgsl: "vec3<u32>", glsl: "uvec3", kind: ScalarUint, size: 3},
	TypeUVec4:   {wgsl: "vec4<u32>", glsl: "uvec4", kind: ScalarUint, size: 4},
	TypeMat2:    {wgsl: "mat2x2<f32>", glsl: "mat2", kind: ScalarFloat, size: 2, columns: 2},
	TypeMat3:    {wgsl: "mat3x3<f32>", glsl: "mat3", kind: ScalarFloat, size: 3, columns: 3},
	TypeMat4:    {wgsl: "mat4x4<f32>", glsl: "mat4", kind: ScalarFloat, size: 4, columns: 4},
}

// typeAliases maps every accepted spelling to its type.
var typeAliases = func() map[string]VaryingType {
	m := make(map[string]VaryingType, 2*len(typeTable))
	for t := TypeFloat; t <= TypeMat4; t++ {
		m[typeTable[t].wgsl] = t
		m[typeTable[t].glsl] = t
	}
	// Short WGSL spellings of the float matrices.
	m["mat2x2f"] = TypeMat2
	m["mat3x3f"] = TypeMat3
	m["mat4x4f"] = TypeMat4
	m["vec2f"] = TypeVec2
	m["vec3f"] = TypeVec3
	m["vec4f"] = TypeVec4
	m["vec2i"] = TypeIVec2
	m["vec3i"] = TypeIVec3
	m["vec4i"] = TypeIVec4
	m["vec2u"] = TypeUVec2
	m["vec3u"] = TypeUVec3
	m["vec4u"] = TypeUVec4
	return m
}()

// ParseVaryingType resolves a WGSL or GLSL type spelling.
// Whitespace inside angle brackets is ignored.
func ParseVaryingType(s string) (VaryingType, error) {
	key := strings.Join(strings.Fields(s), "")
	if t, ok := typeAliases[key]; ok {
		return t, nil
	}
	return TypeInvalid, fmt.Errorf("unsupported varying type %q", s)
}

// String returns the canonical WGSL spelling.
func (t VaryingType) String() string {
	if int(t) >= len(typeTable) || t == TypeInvalid {
		return fmt.Sprintf("VaryingType(%d)", t)
	}
	return typeTable[t].wgsl
}

// GLSL returns the GLSL spelling of the type.
func (t VaryingType) GLSL() string {
	if int(t) >= len(typeTable) {
		return ""
	}
	return typeTable[t].glsl
}

// Valid reports whether t is a member of the closed type set.
func (t VaryingType) Valid() bool {
	return t > TypeInvalid && int(t) < len(typeTable)
}

// Kind returns the scalar component kind.
func (t VaryingType) Kind() ScalarKind {
	return typeTable[t].kind
}

// Size returns the number of components per column (1 for scalars).
func (t VaryingType) Size() int {
	return typeTable[t].size
}

// Columns returns the column count of a matrix type, or 0.
func (t VaryingType) Columns() int {
	return typeTable[t].columns
}

// IsMatrix reports whether t is a matrix type.
func (t VaryingType) IsMatrix() bool {
	return typeTable[t].columns > 0
}

// IsInteger reports whether t has integer components.
// Integer varyings cannot be interpolated and are passed flat.
func (t VaryingType) IsInteger() bool {
	k := typeTable[t].kind
	return t.Valid() && (k == ScalarSint || k == ScalarUint)
}

// Column returns the vector type of one matrix column.
// For non-matrix types it returns t.
func (t VaryingType) Column() VaryingType {
	switch t {
	case TypeMat2:
		return TypeVec2
	case TypeMat3:
		return TypeVec3
	case TypeMat4:
		return TypeVec4
	}
	return t
}

// Varying is a value interpolated from the vertex stage to the fragment stage.
type Varying struct {
	Type VaryingType
	Name string
	// Line is the 1-based line of the declaration in the asset file.
	Line int
}

// Slots returns the number of inter-stage locations the varying occupies.
func (v Varying) Slots() int {
	if v.Type.IsMatrix() {
		return v.Type.Columns()
	}
	return 1
}

// ColumnName returns the inter-stage member name used for column i of a
// matrix varying.
func (v Varying) ColumnName(i int) string {
	return fmt.Sprintf("%s_c%d", v.Name, i)
}
