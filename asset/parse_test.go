package asset

import (
	"errors"
	"strings"
	"testing"
)

const litAsset = `// simple lit material
[varying]
vec3 vnormal;
vec2<f32> vuv; // texture coordinates

[vertex]
fn vertex() {
    vnormal = normal;
    vuv = uv;
    clip_position = camera.projection * camera.view * vec4<f32>(position, 1.0);
}

[fragment]
fn fragment() {
    if (vuv.x > 0.5) {
        out_color = vec4<f32>(vnormal, 1.0);
    } else {
        out_color = vec4<f32>(0.0, 0.0, 0.0, 1.0);
    }
}
`

func TestParseLitAsset(t *testing.T) {
	a, err := Parse("lit.shader", []byte(litAsset))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if a.Name != "lit.shader" {
		t.Errorf("Name = %q, want %q", a.Name, "lit.shader")
	}
	if len(a.Varyings) != 2 {
		t.Fatalf("len(Varyings) = %d, want 2", len(a.Varyings))
	}
	want := []Varying{
		{Type: TypeVec3, Name: "vnormal", Line: 3},
		{Type: TypeVec2, Name: "vuv", Line: 4},
	}
	for i, v := range want {
		if a.Varyings[i] != v {
			t.Errorf("Varyings[%d] = %+v, want %+v", i, a.Varyings[i], v)
		}
	}
	if a.Vertex.Line != 7 {
		t.Errorf("Vertex.Line = %d, want 7", a.Vertex.Line)
	}
	if a.Fragment.Line != 14 {
		t.Errorf("Fragment.Line = %d, want 14", a.Fragment.Line)
	}
	if !strings.HasPrefix(a.Vertex.Text, "fn vertex() {\n") {
		t.Errorf("Vertex.Text = %q, want verbatim body", a.Vertex.Text)
	}
	// Nested braces are kept and the body ends before the next header.
	if strings.Contains(a.Vertex.Text, "[fragment]") {
		t.Error("vertex body must stop at the next header")
	}
	if strings.Count(a.Fragment.Text, "{") != strings.Count(a.Fragment.Text, "}") {
		t.Errorf("fragment braces unbalanced: %q", a.Fragment.Text)
	}
}

func TestParseSectionOrderIrrelevant(t *testing.T) {
	reordered := "[fragment]\nfn fragment() { out_color = vec4<f32>(1.0); }\n" +
		"[vertex]\nfn vertex() { clip_position = vec4<f32>(position, 1.0); }\n" +
		"[varying]\nfloat fade;\n"
	a, err := Parse("reordered", []byte(reordered))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(a.Varyings) != 1 || a.Varyings[0].Name != "fade" {
		t.Errorf("Varyings = %+v, want [fade]", a.Varyings)
	}

	inOrder := "[varying]\nfloat fade;\n" +
		"[vertex]\nfn vertex() { clip_position = vec4<f32>(position, 1.0); }\n" +
		"[fragment]\nfn fragment() { out_color = vec4<f32>(1.0); }\n"
	b, err := Parse("in-order", []byte(inOrder))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if a.ContentHash() != b.ContentHash() {
		t.Errorf("ContentHash differs by section order: %x vs %x", a.ContentHash(), b.ContentHash())
	}
}

func TestParseVaryingOptional(t *testing.T) {
	src := "[vertex]\nfn vertex() {}\n[fragment]\nfn fragment() {}\n"
	a, err := Parse("plain", []byte(src))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(a.Varyings) != 0 {
		t.Errorf("len(Varyings) = %d, want 0", len(a.Varyings))
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		section string
		line    int
		reason  string
	}{
		{
			name:    "missing fragment",
			src:     "[varying]\nvec3 vnormal;\n[vertex]\nfn vertex() {}\n",
			section: SectionFragment,
			reason:  "missing required section [fragment]",
		},
		{
			name:    "missing vertex",
			src:     "[fragment]\nfn fragment() {}\n",
			section: SectionVertex,
			reason:  "missing required section [vertex]",
		},
		{
			name:   "unknown header",
			src:    "[vertex]\nfn vertex() {}\n[geometry]\n[fragment]\nfn fragment() {}\n",
			line:   3,
			reason: "unknown section header [geometry]",
		},
		{
			name:    "duplicate vertex",
			src:     "[vertex]\nfn vertex() {}\n[vertex]\n[fragment]\n",
			section: SectionVertex,
			line:    3,
			reason:  "section declared twice",
		},
		{
			name:    "duplicate varying section",
			src:     "[varying]\n[varying]\n[vertex]\n[fragment]\n",
			section: SectionVarying,
			line:    2,
			reason:  "section declared twice",
		},
		{
			name:    "missing semicolon",
			src:     "[varying]\nvec3 vnormal\n[vertex]\n[fragment]\n",
			section: SectionVarying,
			line:    2,
			reason:  "missing ';'",
		},
		{
			name:    "bad type",
			src:     "[varying]\n\nbvec3 mask;\n[vertex]\n[fragment]\n",
			section: SectionVarying,
			line:    3,
			reason:  "unsupported varying type",
		},
		{
			name:    "missing name",
			src:     "[varying]\nvec3;\n[vertex]\n[fragment]\n",
			section: SectionVarying,
			line:    2,
			reason:  "expected",
		},
		{
			name:    "two per line",
			src:     "[varying]\nvec3 a; vec3 b;\n[vertex]\n[fragment]\n",
			section: SectionVarying,
			line:    2,
			reason:  "only one varying",
		},
		{
			name:    "bad identifier",
			src:     "[varying]\nvec3 2normal;\n[vertex]\n[fragment]\n",
			section: SectionVarying,
			line:    2,
			reason:  "not a valid identifier",
		},
		{
			name:    "keyword",
			src:     "[varying]\nfloat loop;\n[vertex]\n[fragment]\n",
			section: SectionVarying,
			line:    2,
			reason:  "is a keyword",
		},
		{
			name:    "reserved engine name",
			src:     "[varying]\nvec3 normal;\n[vertex]\n[fragment]\n",
			section: SectionVarying,
			line:    2,
			reason:  "reserved by the engine preamble",
		},
		{
			name:    "duplicate varying",
			src:     "[varying]\nvec3 n;\nvec4 n;\n[vertex]\n[fragment]\n",
			section: SectionVarying,
			line:    3,
			reason:  "already declared on line 2",
		},
		{
			name:    "matrix column collision",
			src:     "[varying]\nmat3 tbn;\nvec3 tbn_c1;\n[vertex]\n[fragment]\n",
			section: SectionVarying,
			line:    2,
			reason:  "already taken",
		},
		{
			name:   "text before header",
			src:    "fn stray() {}\n[vertex]\n[fragment]\n",
			line:   1,
			reason: "text outside of a section",
		},
		{
			name:   "invalid utf8",
			src:    "[vertex]\n\xff\xfe\xfd\n[fragment]\n",
			reason: "not valid UTF-8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Parse("bad.shader", []byte(tt.src))
			if err == nil {
				t.Fatalf("Parse succeeded with %+v, want error", a)
			}
			if !errors.Is(err, ErrMalformedAsset) {
				t.Errorf("errors.Is(err, ErrMalformedAsset) = false for %v", err)
			}
			var me *MalformedAssetError
			if !errors.As(err, &me) {
				t.Fatalf("error type = %T, want *MalformedAssetError", err)
			}
			if me.Asset != "bad.shader" {
				t.Errorf("Asset = %q, want %q", me.Asset, "bad.shader")
			}
			if me.Section != tt.section {
				t.Errorf("Section = %q, want %q", me.Section, tt.section)
			}
			if me.Line != tt.line {
				t.Errorf("Line = %d, want %d", me.Line, tt.line)
			}
			if !strings.Contains(me.Reason, tt.reason) {
				t.Errorf("Reason = %q, want it to contain %q", me.Reason, tt.reason)
			}
		})
	}
}

func TestParseCRLFAndBOM(t *testing.T) {
	src := "\xef\xbb\xbf[varying]\r\nvec4 tint;\r\n[vertex]\r\nfn vertex() {}\r\n[fragment]\r\nfn fragment() {}\r\n"
	a, err := Parse("crlf", []byte(src))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(a.Varyings) != 1 || a.Varyings[0].Type != TypeVec4 {
		t.Errorf("Varyings = %+v, want one vec4", a.Varyings)
	}
	if a.Vertex.Text != "fn vertex() {}\n" {
		t.Errorf("Vertex.Text = %q, want %q", a.Vertex.Text, "fn vertex() {}\n")
	}
}

func TestParseUTF16(t *testing.T) {
	src := "[vertex]\nfn vertex() {}\n[fragment]\nfn fragment() {}\n"
	enc := []byte{0xFF, 0xFE}
	for _, r := range src {
		enc = append(enc, byte(r), 0)
	}
	a, err := Parse("utf16", enc)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if a.Fragment.Text != "fn fragment() {}\n" {
		t.Errorf("Fragment.Text = %q", a.Fragment.Text)
	}
}

func TestParseHeaderWithComment(t *testing.T) {
	src := "  [vertex]   // entry\nfn vertex() {}\n[ fragment ]\nfn fragment() {}\n"
	a, err := Parse("comment", []byte(src))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if a.Vertex.Line != 2 || a.Fragment.Line != 4 {
		t.Errorf("body lines = %d, %d, want 2, 4", a.Vertex.Line, a.Fragment.Line)
	}
}

func TestContentHashTracksText(t *testing.T) {
	base := "[varying]\nvec3 v;\n[vertex]\nfn vertex() {}\n[fragment]\nfn fragment() {}\n"
	a, err := Parse("a", []byte(base))
	if err != nil {
		t.Fatal(err)
	}
	renamed, err := Parse("b", []byte(base))
	if err != nil {
		t.Fatal(err)
	}
	if a.ContentHash() != renamed.ContentHash() {
		t.Error("ContentHash must not depend on the asset name")
	}
	// GLSL and WGSL spellings resolve to the same type and hash.
	wgsl, err := Parse("c", []byte(strings.Replace(base, "vec3 v;", "vec3<f32> v;", 1)))
	if err != nil {
		t.Fatal(err)
	}
	if a.ContentHash() != wgsl.ContentHash() {
		t.Error("ContentHash must use the canonical type spelling")
	}
	edited, err := Parse("a", []byte(strings.Replace(base, "fn fragment() {}", "fn fragment() { }", 1)))
	if err != nil {
		t.Fatal(err)
	}
	if a.ContentHash() == edited.ContentHash() {
		t.Error("ContentHash must change when a body changes")
	}
}
