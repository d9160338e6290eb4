package synth

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// VaryingDecl is one inter-stage member recovered from program text.
type VaryingDecl struct {
	Location int
	Name     string
	Type     string
	Flat     bool
}

var (
	varyingsStructRe = regexp.MustCompile(`(?s)struct\s+Varyings\s*\{(.*?)\}`)
	memberRe         = regexp.MustCompile(`^@location\((\d+)\)\s*(@interpolate\(flat\)\s*)?([A-Za-z_][A-Za-z0-9_]*)\s*:\s*(.+)$`)
)

// ParseVaryings recovers the located members of the Varyings struct of a
// synthesized program. It is a permissive scan of the text: it does not
// need the rest of the program to be valid WGSL.
func ParseVaryings(src string) ([]VaryingDecl, error) {
	m := varyingsStructRe.FindStringSubmatch(src)
	if m == nil {
		return nil, errors.New("synth: no Varyings struct in program")
	}
	var decls []VaryingDecl
	for field := range strings.SplitSeq(m[1], ",") {
		field = strings.TrimSpace(field)
		if field == "" || strings.HasPrefix(field, "@builtin") {
			continue
		}
		parts := memberRe.FindStringSubmatch(field)
		if parts == nil {
			return nil, fmt.Errorf("synth: unrecognised Varyings member %q", field)
		}
		loc, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("synth: bad location in %q: %w", field, err)
		}
		decls = append(decls, VaryingDecl{
			Location: loc,
			Name:     parts[3],
			Type:     strings.Join(strings.Fields(parts[4]), ""),
			Flat:     parts[2] != "",
		})
	}
	return decls, nil
}

// Consistent reports an error if the vertex and fragment programs disagree
// on any varying.
func Consistent(vs, fs StageProgram) error {
	out, err := ParseVaryings(vs.Source)
	if err != nil {
		return fmt.Errorf("vertex program: %w", err)
	}
	in, err := ParseVaryings(fs.Source)
	if err != nil {
		return fmt.Errorf("fragment program: %w", err)
	}
	if len(out) != len(in) {
		return fmt.Errorf("synth: vertex declares %d varyings, fragment %d", len(out), len(in))
	}
	for i := range out {
		if out[i] != in[i] {
			return fmt.Errorf("synth: varying mismatch: vertex %+v, fragment %+v", out[i], in[i])
		}
	}
	return nil
}
