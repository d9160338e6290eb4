package translate

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"
	"github.com/gogpu/naga/wgsl"

	"github.com/gogpu/shaderpipe/synth"
)

// Compiler turns one stage program into an IR module and SPIR-V.
// Implementations must be deterministic: the same text and stage always
// produce byte-identical output.
type Compiler interface {
	CompileStage(src string, stage synth.Stage) (*Output, error)
}

// Output is the result of compiling one stage.
type Output struct {
	Stage    synth.Stage
	Module   *ir.Module
	SPIRV    []byte
	Warnings []Diagnostic
}

// Words returns the SPIR-V binary as little-endian 32-bit words.
func (o *Output) Words() []uint32 {
	return spirvWords(o.SPIRV)
}

// Compilation phases reported by CompileError.
const (
	PhaseParse      = "parse"
	PhaseLower      = "lower"
	PhaseEntryPoint = "entry point"
	PhaseValidate   = "validate"
	PhaseCodegen    = "spirv"
)

// Diagnostic is one compiler message. Line and Column refer to the program
// text and are 0 when the compiler gave no position.
type Diagnostic struct {
	Line    int
	Column  int
	Message string
}

// CompileError is returned by NagaCompiler when a phase fails.
type CompileError struct {
	Phase       string
	Diagnostics []Diagnostic
	Err         error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// NagaCompiler compiles WGSL with the pure Go naga compiler.
//
// The pipeline is: parse WGSL to AST, lower to IR, check the stage entry
// point, validate the IR (optional) and generate SPIR-V.
type NagaCompiler struct {
	validate bool
	debug    bool
	version  spirv.Version
}

// NewNagaCompiler creates a compiler. By default the IR is validated and no
// debug information is emitted.
func NewNagaCompiler(opts ...CompilerOption) *NagaCompiler {
	c := &NagaCompiler{
		validate: true,
		version:  spirv.Version1_3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CompileStage implements Compiler.
func (c *NagaCompiler) CompileStage(src string, stage synth.Stage) (*Output, error) {
	ast, err := naga.Parse(src)
	if err != nil {
		return nil, &CompileError{Phase: PhaseParse, Diagnostics: parseDiagnostics(err), Err: err}
	}

	lowered, err := wgsl.LowerWithWarnings(ast, src)
	if err != nil {
		return nil, &CompileError{Phase: PhaseLower, Diagnostics: lowerDiagnostics(err, src), Err: err}
	}
	module := lowered.Module

	if err := checkEntryPoint(module, stage); err != nil {
		return nil, &CompileError{
			Phase:       PhaseEntryPoint,
			Diagnostics: []Diagnostic{{Message: err.Error()}},
			Err:         err,
		}
	}

	if c.validate {
		verrs, err := naga.Validate(module)
		if err != nil {
			return nil, &CompileError{Phase: PhaseValidate, Diagnostics: []Diagnostic{{Message: err.Error()}}, Err: err}
		}
		if len(verrs) > 0 {
			diags := make([]Diagnostic, len(verrs))
			for i := range verrs {
				diags[i] = Diagnostic{Message: verrs[i].Error()}
			}
			return nil, &CompileError{Phase: PhaseValidate, Diagnostics: diags, Err: &verrs[0]}
		}
	}

	code, err := naga.GenerateSPIRV(module, spirv.Options{Version: c.version, Debug: c.debug})
	if err != nil {
		return nil, &CompileError{Phase: PhaseCodegen, Diagnostics: []Diagnostic{{Message: err.Error()}}, Err: err}
	}

	out := &Output{
		Stage:  stage,
		Module: module,
		SPIRV:  code,
	}
	for _, w := range lowered.Warnings {
		out.Warnings = append(out.Warnings, Diagnostic{
			Line:    w.Span.Start.Line,
			Column:  w.Span.Start.Column,
			Message: w.Message,
		})
	}
	return out, nil
}

// checkEntryPoint requires exactly one entry point, named and staged as
// the synthesizer emits it.
func checkEntryPoint(m *ir.Module, stage synth.Stage) error {
	if len(m.EntryPoints) != 1 {
		return fmt.Errorf("expected 1 entry point, found %d", len(m.EntryPoints))
	}
	ep := m.EntryPoints[0]
	if ep.Name != stage.EntryPoint() || ep.Stage != stage.IR() {
		return fmt.Errorf("entry point %q is not the %s entry point %q", ep.Name, stage, stage.EntryPoint())
	}
	return nil
}

func parseDiagnostics(err error) []Diagnostic {
	var pe wgsl.ParseError
	if errors.As(err, &pe) {
		return []Diagnostic{{Line: pe.Line, Column: pe.Column, Message: pe.Message}}
	}
	return textDiagnostics(err)
}

// position matches "line:col: message", the form of lowering errors, and
// "line N, column M: message", the form of parse errors. Both may follow a
// prefix such as "parse error: ".
var position = regexp.MustCompile(`(?:^|\s)(?:line\s+)?(\d+)(?::|,\s*column\s+)(\d+):\s*(.*)$`)

// moreErrors is the suffix the lowering pass adds when it found several
// errors.
var moreErrors = regexp.MustCompile(`\s*\(and \d+ more errors?\)$`)

// unresolvedName matches a lowering error about an unknown identifier.
var unresolvedName = regexp.MustCompile(`unresolved identifier:?\s*'?(\w+)'?`)

// textDiagnostics recovers positions from an error message, one
// diagnostic per line.
func textDiagnostics(err error) []Diagnostic {
	var diags []Diagnostic
	for _, line := range strings.Split(err.Error(), "\n") {
		line = moreErrors.ReplaceAllString(line, "")
		if strings.TrimSpace(line) == "" {
			continue
		}
		d := Diagnostic{Message: line}
		if m := position.FindStringSubmatch(line); m != nil {
			d.Line, _ = strconv.Atoi(m[1])
			d.Column, _ = strconv.Atoi(m[2])
			d.Message = m[3]
		}
		diags = append(diags, d)
	}
	if len(diags) == 0 {
		diags = append(diags, Diagnostic{Message: err.Error()})
	}
	return diags
}

// lowerDiagnostics positions lowering errors. The lowering pass reports
// the line of the enclosing function, so an unresolved identifier is moved
// to its first use at or after that line.
func lowerDiagnostics(err error, src string) []Diagnostic {
	diags := textDiagnostics(err)
	lines := strings.Split(src, "\n")
	for i := range diags {
		m := unresolvedName.FindStringSubmatch(diags[i].Message)
		if m == nil || diags[i].Line < 1 {
			continue
		}
		if line, col, ok := findIdent(lines, m[1], diags[i].Line); ok {
			diags[i].Line, diags[i].Column = line, col
		}
	}
	return diags
}

// findIdent returns the 1-based position of the first whole-word use of
// name at or after line from.
func findIdent(lines []string, name string, from int) (int, int, bool) {
	for n := from; n <= len(lines); n++ {
		text := lines[n-1]
		for off := 0; ; {
			k := strings.Index(text[off:], name)
			if k < 0 {
				break
			}
			start := off + k
			end := start + len(name)
			if !isIdentByte(text, start-1) && !isIdentByte(text, end) {
				return n, start + 1, true
			}
			off = end
		}
	}
	return 0, 0, false
}

func isIdentByte(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return false
	}
	c := s[i]
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// spirvWords converts a SPIR-V binary to little-endian 32-bit words.
func spirvWords(b []byte) []uint32 {
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	return words
}
