package asset

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Section names as they appear between brackets in asset text.
const (
	SectionVarying  = "varying"
	SectionVertex   = "vertex"
	SectionFragment = "fragment"
)

// section is one parsed part of an asset. The set of implementations is
// closed: varyingSection, vertexSection and fragmentSection.
type section interface {
	sectionName() string
}

type varyingSection struct {
	varyings []Varying
}

type vertexSection struct {
	body Body
}

type fragmentSection struct {
	body Body
}

func (varyingSection) sectionName() string  { return SectionVarying }
func (vertexSection) sectionName() string   { return SectionVertex }
func (fragmentSection) sectionName() string { return SectionFragment }

// scanState is the state of the line scanner.
type scanState uint8

const (
	seekHeader scanState = iota
	varyingBody
	stageBody
)

// parser turns asset lines into sections.
type parser struct {
	asset      string
	state      scanState
	current    string
	headerLine int
	lines      []string
	varyings   []Varying
	seen       map[string]int // section name -> header line
	sections   []section
}

// Parse converts raw asset bytes into a ShaderAsset.
//
// The text is split into [varying], [vertex] and [fragment] sections in any
// order. [vertex] and [fragment] are required exactly once and [varying] is
// optional. Stage bodies are captured verbatim and are not checked here.
// Every failure is a *MalformedAssetError.
func Parse(name string, data []byte) (*ShaderAsset, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, &MalformedAssetError{Asset: name, Reason: err.Error()}
	}

	p := &parser{
		asset: name,
		seen:  make(map[string]int, 3),
	}
	for i, line := range splitLines(text) {
		if err := p.scan(i+1, line); err != nil {
			return nil, err
		}
	}
	p.flush()
	return p.assemble()
}

func (p *parser) scan(n int, line string) error {
	if header, ok := headerName(line); ok {
		p.flush()
		return p.open(n, header)
	}

	switch p.state {
	case seekHeader:
		if strings.TrimSpace(stripComment(line)) != "" {
			return p.fail("", n, "text outside of a section")
		}
	case varyingBody:
		return p.varying(n, line)
	case stageBody:
		p.lines = append(p.lines, line)
	}
	return nil
}

func (p *parser) open(n int, header string) error {
	switch header {
	case SectionVarying, SectionVertex, SectionFragment:
	default:
		return p.fail("", n, fmt.Sprintf("unknown section header [%s]", header))
	}
	if first, dup := p.seen[header]; dup {
		return p.fail(header, n, fmt.Sprintf("section declared twice (first on line %d)", first))
	}
	p.seen[header] = n
	p.current = header
	p.headerLine = n
	if header == SectionVarying {
		p.state = varyingBody
	} else {
		p.state = stageBody
		p.lines = p.lines[:0]
	}
	return nil
}

// flush closes the current section, if any.
func (p *parser) flush() {
	switch p.state {
	case varyingBody:
		p.sections = append(p.sections, varyingSection{varyings: p.varyings})
	case stageBody:
		body := Body{Text: joinLines(p.lines), Line: p.headerLine + 1}
		if p.current == SectionVertex {
			p.sections = append(p.sections, vertexSection{body: body})
		} else {
			p.sections = append(p.sections, fragmentSection{body: body})
		}
	}
	p.state = seekHeader
	p.current = ""
}

// varying parses one `type name;` line.
func (p *parser) varying(n int, line string) error {
	t := strings.TrimSpace(stripComment(line))
	if t == "" {
		return nil
	}
	decl, rest, ok := strings.Cut(t, ";")
	if !ok {
		return p.fail(SectionVarying, n, "missing ';' after varying declaration")
	}
	if strings.TrimSpace(rest) != "" {
		return p.fail(SectionVarying, n, "only one varying may be declared per line")
	}
	fields := strings.Fields(decl)
	if len(fields) < 2 {
		return p.fail(SectionVarying, n, `expected "<type> <name>;"`)
	}

	name := fields[len(fields)-1]
	typ, err := ParseVaryingType(strings.Join(fields[:len(fields)-1], ""))
	if err != nil {
		return p.fail(SectionVarying, n, err.Error())
	}
	switch {
	case !IsIdentifier(name):
		return p.fail(SectionVarying, n, fmt.Sprintf("%q is not a valid identifier", name))
	case IsKeyword(name):
		return p.fail(SectionVarying, n, fmt.Sprintf("%q is a keyword", name))
	case IsReserved(name):
		return p.fail(SectionVarying, n, fmt.Sprintf("%q is reserved by the engine preamble", name))
	}
	for _, prev := range p.varyings {
		if prev.Name == name {
			return p.fail(SectionVarying, n, fmt.Sprintf("varying %q already declared on line %d", name, prev.Line))
		}
	}

	p.varyings = append(p.varyings, Varying{Type: typ, Name: name, Line: n})
	return nil
}

func (p *parser) assemble() (*ShaderAsset, error) {
	a := &ShaderAsset{Name: p.asset}
	for _, s := range p.sections {
		switch s := s.(type) {
		case varyingSection:
			a.Varyings = s.varyings
		case vertexSection:
			a.Vertex = s.body
		case fragmentSection:
			a.Fragment = s.body
		}
	}

	for _, required := range []string{SectionVertex, SectionFragment} {
		if _, ok := p.seen[required]; !ok {
			return nil, &MalformedAssetError{
				Asset:   p.asset,
				Section: required,
				Reason:  fmt.Sprintf("missing required section [%s]", required),
			}
		}
	}

	if err := p.checkColumns(a.Varyings); err != nil {
		return nil, err
	}

	a.hash = a.computeHash()
	return a, nil
}

// checkColumns rejects matrix varyings whose per-column member names
// collide with another varying or an engine name.
func (p *parser) checkColumns(varyings []Varying) error {
	names := make(map[string]bool, len(varyings))
	for _, v := range varyings {
		names[v.Name] = true
	}
	for _, v := range varyings {
		for i := range v.Type.Columns() {
			col := v.ColumnName(i)
			if names[col] || IsReserved(col) {
				return p.fail(SectionVarying, v.Line,
					fmt.Sprintf("matrix varying %q needs member %q, which is already taken", v.Name, col))
			}
		}
	}
	return nil
}

func (p *parser) fail(section string, line int, reason string) error {
	return &MalformedAssetError{Asset: p.asset, Section: section, Line: line, Reason: reason}
}

// headerName reports whether line is a section header and returns the name
// between the brackets.
func headerName(line string) (string, bool) {
	t := strings.TrimSpace(stripComment(line))
	if len(t) < 3 || t[0] != '[' || t[len(t)-1] != ']' {
		return "", false
	}
	name := strings.TrimSpace(t[1 : len(t)-1])
	if !IsIdentifier(name) {
		return "", false
	}
	return name, true
}

func stripComment(line string) string {
	if i := strings.Index(line, "//"); i >= 0 {
		return line[:i]
	}
	return line
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

var (
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF16LE = []byte{0xFF, 0xFE}
)

// decodeText validates the encoding and strips a byte-order mark.
// UTF-16 input with a BOM is converted to UTF-8.
func decodeText(data []byte) (string, error) {
	utf16 := bytes.HasPrefix(data, bomUTF16BE) || bytes.HasPrefix(data, bomUTF16LE)
	if !utf16 && !utf8.Valid(data) {
		return "", errors.New("text is not valid UTF-8")
	}
	out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	if err != nil {
		return "", fmt.Errorf("decode text: %w", err)
	}
	return string(out), nil
}
