package asset

import (
	"hash/fnv"
	"io"
)

// Body is the verbatim text of one stage section.
type Body struct {
	Text string
	// Line is the 1-based asset line of the first body line.
	Line int
}

// ShaderAsset is one parsed shader asset. It is immutable once returned by
// Parse; callers must not modify its fields.
type ShaderAsset struct {
	Name     string
	Varyings []Varying
	Vertex   Body
	Fragment Body

	hash uint64
}

// ContentHash returns a 64-bit FNV-1a hash of the resolved asset text.
// Two assets with the same varyings and bodies hash equal regardless of
// their name or section order in the file.
func (a *ShaderAsset) ContentHash() uint64 {
	return a.hash
}

func (a *ShaderAsset) computeHash() uint64 {
	h := fnv.New64a()
	for _, v := range a.Varyings {
		_, _ = io.WriteString(h, v.Type.String())
		_, _ = io.WriteString(h, " ")
		_, _ = io.WriteString(h, v.Name)
		_, _ = io.WriteString(h, ";\n")
	}
	_, _ = io.WriteString(h, "[vertex]\n")
	_, _ = io.WriteString(h, a.Vertex.Text)
	_, _ = io.WriteString(h, "[fragment]\n")
	_, _ = io.WriteString(h, a.Fragment.Text)
	return h.Sum64()
}
