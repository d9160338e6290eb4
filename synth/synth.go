package synth

import (
	"fmt"
	"strings"

	"github.com/gogpu/shaderpipe/asset"
)

// StageProgram is a complete WGSL program for one stage.
type StageProgram struct {
	Asset  string
	Stage  Stage
	Source string

	// BodyLine is the 1-based line in Source where the asset body starts.
	BodyLine int
	// BodyLines is the number of lines the body occupies.
	BodyLines int
	// AssetLine is the 1-based line of the body in the asset file.
	AssetLine int
}

// AssetLineOf maps a line of Source back to the asset file.
// It reports false for lines that belong to the generated preamble or
// entry point.
func (p StageProgram) AssetLineOf(line int) (int, bool) {
	if line < p.BodyLine || line >= p.BodyLine+p.BodyLines {
		return 0, false
	}
	return p.AssetLine + (line - p.BodyLine), true
}

// member is one field of the generated Varyings struct.
type member struct {
	name     string
	typ      string
	location int
	flat     bool
}

// Synthesize expands an asset into its vertex and fragment programs.
//
// Both programs share the camera uniform block and a Varyings struct built
// from the single varying list of the asset, so the stages always agree on
// varying names, types and locations. The output is deterministic.
func Synthesize(a *asset.ShaderAsset) (vs, fs StageProgram) {
	members := varyingMembers(a.Varyings)
	return synthesizeVertex(a, members), synthesizeFragment(a, members)
}

// varyingMembers assigns locations in declaration order. Matrix varyings
// take one location per column.
func varyingMembers(varyings []asset.Varying) []member {
	members := make([]member, 0, len(varyings))
	loc := 0
	for _, v := range varyings {
		if v.Type.IsMatrix() {
			col := v.Type.Column().String()
			for i := range v.Type.Columns() {
				members = append(members, member{name: v.ColumnName(i), typ: col, location: loc})
				loc++
			}
			continue
		}
		members = append(members, member{
			name:     v.Name,
			typ:      v.Type.String(),
			location: loc,
			flat:     v.Type.IsInteger(),
		})
		loc++
	}
	return members
}

func synthesizeVertex(a *asset.ShaderAsset, members []member) StageProgram {
	var b strings.Builder
	fmt.Fprintf(&b, "// %s: vertex stage\n\n", a.Name)
	writeCamera(&b)

	b.WriteString("struct VertexInput {\n")
	for _, attr := range Attributes {
		fmt.Fprintf(&b, "    @location(%d) %s: %s,\n", attr.Location, attr.Name, attr.Type)
	}
	b.WriteString("}\n\n")

	writeVaryingsStruct(&b, members)

	for _, attr := range Attributes {
		fmt.Fprintf(&b, "var<private> %s: %s;\n", attr.Name, attr.Type)
	}
	b.WriteString("var<private> clip_position: vec4<f32>;\n")
	writeVaryingGlobals(&b, a.Varyings)

	p := StageProgram{Asset: a.Name, Stage: StageVertex, AssetLine: a.Vertex.Line}
	writeBody(&b, &p, a.Vertex.Text)

	fmt.Fprintf(&b, "@vertex\nfn %s(vin: VertexInput) -> Varyings {\n", VertexEntryPoint)
	for _, attr := range Attributes {
		fmt.Fprintf(&b, "    %s = vin.%s;\n", attr.Name, attr.Name)
	}
	b.WriteString("    vertex();\n")
	b.WriteString("    var vout: Varyings;\n")
	b.WriteString("    vout.clip_position = clip_position;\n")
	for _, v := range a.Varyings {
		if v.Type.IsMatrix() {
			for i := range v.Type.Columns() {
				fmt.Fprintf(&b, "    vout.%s = %s[%d];\n", v.ColumnName(i), v.Name, i)
			}
			continue
		}
		fmt.Fprintf(&b, "    vout.%s = %s;\n", v.Name, v.Name)
	}
	b.WriteString("    return vout;\n}\n")

	p.Source = b.String()
	return p
}

func synthesizeFragment(a *asset.ShaderAsset, members []member) StageProgram {
	var b strings.Builder
	fmt.Fprintf(&b, "// %s: fragment stage\n\n", a.Name)
	writeCamera(&b)

	for _, tp := range TexturePairs {
		fmt.Fprintf(&b, "@group(%d) @binding(%d) var %s: texture_2d<f32>;\n", MaterialGroup, tp.TextureBinding, tp.Texture)
		fmt.Fprintf(&b, "@group(%d) @binding(%d) var %s: sampler;\n", MaterialGroup, tp.SamplerBinding, tp.Sampler)
	}
	b.WriteString("\n")

	writeVaryingsStruct(&b, members)

	b.WriteString("var<private> frag_coord: vec4<f32>;\n")
	b.WriteString("var<private> out_color: vec4<f32>;\n")
	writeVaryingGlobals(&b, a.Varyings)

	p := StageProgram{Asset: a.Name, Stage: StageFragment, AssetLine: a.Fragment.Line}
	writeBody(&b, &p, a.Fragment.Text)

	fmt.Fprintf(&b, "@fragment\nfn %s(vin: Varyings) -> @location(0) vec4<f32> {\n", FragmentEntryPoint)
	b.WriteString("    frag_coord = vin.clip_position;\n")
	for _, v := range a.Varyings {
		if v.Type.IsMatrix() {
			cols := make([]string, v.Type.Columns())
			for i := range cols {
				cols[i] = "vin." + v.ColumnName(i)
			}
			fmt.Fprintf(&b, "    %s = %s(%s);\n", v.Name, v.Type, strings.Join(cols, ", "))
			continue
		}
		fmt.Fprintf(&b, "    %s = vin.%s;\n", v.Name, v.Name)
	}
	b.WriteString("    fragment();\n")
	b.WriteString("    return out_color;\n}\n")

	p.Source = b.String()
	return p
}

func writeCamera(b *strings.Builder) {
	b.WriteString("struct Camera {\n")
	b.WriteString("    view: mat4x4<f32>,\n")
	b.WriteString("    projection: mat4x4<f32>,\n")
	b.WriteString("    position: vec4<f32>,\n")
	b.WriteString("}\n\n")
	fmt.Fprintf(b, "@group(%d) @binding(%d) var<uniform> camera: Camera;\n\n", CameraGroup, CameraBinding)
}

func writeVaryingsStruct(b *strings.Builder, members []member) {
	b.WriteString("struct Varyings {\n")
	b.WriteString("    @builtin(position) clip_position: vec4<f32>,\n")
	for _, m := range members {
		if m.flat {
			fmt.Fprintf(b, "    @location(%d) @interpolate(flat) %s: %s,\n", m.location, m.name, m.typ)
		} else {
			fmt.Fprintf(b, "    @location(%d) %s: %s,\n", m.location, m.name, m.typ)
		}
	}
	b.WriteString("}\n\n")
}

func writeVaryingGlobals(b *strings.Builder, varyings []asset.Varying) {
	for _, v := range varyings {
		fmt.Fprintf(b, "var<private> %s: %s;\n", v.Name, v.Type)
	}
	b.WriteString("\n")
}

func writeBody(b *strings.Builder, p *StageProgram, body string) {
	if body != "" && !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	p.BodyLine = strings.Count(b.String(), "\n") + 1
	p.BodyLines = strings.Count(body, "\n")
	b.WriteString(body)
	b.WriteString("\n")
}
