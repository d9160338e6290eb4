package asset

import (
	"maps"
	"slices"
)

// Engine names injected by the preamble. Assets may read them but never
// redeclare them, so the binding contract cannot be reassigned by content.
var engineNames = map[string]bool{
	"Camera":         true,
	"camera":         true,
	"VertexInput":    true,
	"Varyings":       true,
	"vs_main":        true,
	"fs_main":        true,
	"vertex":         true,
	"fragment":       true,
	"vin":            true,
	"vout":           true,
	"position":       true,
	"normal":         true,
	"uv":             true,
	"clip_position":  true,
	"frag_coord":     true,
	"out_color":      true,
	"albedo_texture": true,
	"albedo_sampler": true,
	"detail_texture": true,
	"detail_sampler": true,
}

// wgslKeywords lists keywords and predeclared type names that cannot be
// used as identifiers.
var wgslKeywords = map[string]bool{
	"alias": true, "break": true, "case": true, "const": true,
	"const_assert": true, "continue": true, "continuing": true, "default": true,
	"diagnostic": true, "discard": true, "else": true, "enable": true,
	"false": true, "fn": true, "for": true, "if": true,
	"let": true, "loop": true, "override": true, "requires": true,
	"return": true, "struct": true, "switch": true, "true": true,
	"var": true, "while": true,

	"bool": true, "f16": true, "f32": true, "i32": true, "u32": true,
	"vec2": true, "vec3": true, "vec4": true,
	"mat2x2": true, "mat2x3": true, "mat2x4": true,
	"mat3x2": true, "mat3x3": true, "mat3x4": true,
	"mat4x2": true, "mat4x3": true, "mat4x4": true,
	"array": true, "atomic": true, "ptr": true,
	"sampler": true, "sampler_comparison": true,
	"texture_1d": true, "texture_2d": true, "texture_2d_array": true,
	"texture_3d": true, "texture_cube": true, "texture_cube_array": true,
	"texture_multisampled_2d": true,
	"texture_storage_1d": true, "texture_storage_2d": true,
	"texture_storage_2d_array": true, "texture_storage_3d": true,
	"texture_depth_2d": true, "texture_depth_2d_array": true,
	"texture_depth_cube": true, "texture_depth_cube_array": true,
	"texture_depth_multisampled_2d": true,

	"function": true, "private": true, "workgroup": true, "uniform": true,
	"storage": true, "read": true, "write": true, "read_write": true,
}

// IsIdentifier reports whether s is a syntactically valid WGSL identifier
// restricted to ASCII.
func IsIdentifier(s string) bool {
	if s == "" || s == "_" {
		return false
	}
	if len(s) >= 2 && s[0] == '_' && s[1] == '_' {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// IsKeyword reports whether s is a WGSL keyword or predeclared type name.
func IsKeyword(s string) bool {
	return wgslKeywords[s]
}

// IsReserved reports whether s is an identifier the engine preamble
// declares.
func IsReserved(s string) bool {
	return engineNames[s]
}

// EngineNames returns the identifiers the preamble declares, sorted.
func EngineNames() []string {
	return slices.Sorted(maps.Keys(engineNames))
}
