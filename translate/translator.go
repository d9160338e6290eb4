package translate

import (
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gogpu/naga/ir"

	"github.com/gogpu/shaderpipe/binding"
	"github.com/gogpu/shaderpipe/internal/cache"
	"github.com/gogpu/shaderpipe/internal/logging"
	"github.com/gogpu/shaderpipe/synth"
)

// CompiledStage is the bytecode and reflected binding layout of one stage.
// It is immutable and may be shared between pipelines.
type CompiledStage struct {
	Asset    string
	Stage    synth.Stage
	Module   *ir.Module
	SPIRV    []byte
	Words    []uint32
	Layout   binding.Layout
	Warnings []Diagnostic
}

// memoKey identifies a program text without keeping it alive.
type memoKey struct {
	stage synth.Stage
	sum   uint64
	size  int
}

func memoKeyOf(stage synth.Stage, src string) memoKey {
	h := fnv.New64a()
	_, _ = io.WriteString(h, src)
	return memoKey{stage: stage, sum: h.Sum64(), size: len(src)}
}

// Translator compiles stage programs and reflects their bindings.
// Successful results are memoised by program text, so translating the same
// text twice returns the same *CompiledStage.
//
// Translator is safe for concurrent use.
type Translator struct {
	compiler Compiler
	memo     *cache.Cache[memoKey, *CompiledStage]

	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates a Translator. Without WithCompiler it uses a NagaCompiler
// with default options.
func New(opts ...Option) *Translator {
	o := defaultTranslatorOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.compiler == nil {
		o.compiler = NewNagaCompiler()
	}
	return &Translator{
		compiler: o.compiler,
		memo:     cache.New[memoKey, *CompiledStage](o.memoLimit),
	}
}

// Translate compiles one stage program. Compiler failures are returned as
// *TranslationError with diagnostics mapped back to asset lines.
func (t *Translator) Translate(p synth.StageProgram) (*CompiledStage, error) {
	key := memoKeyOf(p.Stage, p.Source)
	if cs, ok := t.memo.Get(key); ok {
		t.hits.Add(1)
		return cs, nil
	}
	t.misses.Add(1)

	start := time.Now()
	out, err := t.compiler.CompileStage(p.Source, p.Stage)
	if err != nil {
		return nil, newTranslationError(p, err)
	}
	layout, err := binding.Reflect(out.Module, p.Stage)
	if err != nil {
		return nil, &TranslationError{Asset: p.Asset, Stage: p.Stage, Message: err.Error(), Err: err}
	}

	cs := &CompiledStage{
		Asset:    p.Asset,
		Stage:    p.Stage,
		Module:   out.Module,
		SPIRV:    out.SPIRV,
		Words:    out.Words(),
		Layout:   layout,
		Warnings: out.Warnings,
	}

	log := logging.L()
	for _, w := range out.Warnings {
		line, _ := p.AssetLineOf(w.Line)
		log.Debug("shader warning", "asset", p.Asset, "stage", p.Stage.String(), "line", line, "msg", w.Message)
	}
	log.Debug("stage compiled",
		"asset", p.Asset,
		"stage", p.Stage.String(),
		"spirv_bytes", len(out.SPIRV),
		"elapsed", time.Since(start))

	t.memo.Set(key, cs)
	return cs, nil
}

// Program is a linked pair of compiled stages.
type Program struct {
	Vertex   *CompiledStage
	Fragment *CompiledStage
	// Resources is the union of both stages' resources in (group, slot)
	// order.
	Resources []binding.Resource
}

// TranslatePair translates both stages of an asset and links their
// layouts.
func (t *Translator) TranslatePair(vs, fs synth.StageProgram) (*Program, error) {
	v, err := t.Translate(vs)
	if err != nil {
		return nil, err
	}
	f, err := t.Translate(fs)
	if err != nil {
		return nil, err
	}
	resources, err := binding.Merge(v.Layout, f.Layout)
	if err != nil {
		return nil, fmt.Errorf("asset %s: %w", vs.Asset, err)
	}
	return &Program{Vertex: v, Fragment: f, Resources: resources}, nil
}

// MemoStats reports memo usage.
type MemoStats struct {
	Hits    uint64
	Misses  uint64
	Entries int
}

// Stats returns memo statistics.
func (t *Translator) Stats() MemoStats {
	return MemoStats{
		Hits:    t.hits.Load(),
		Misses:  t.misses.Load(),
		Entries: t.memo.Len(),
	}
}

// Reset drops every memoised stage.
func (t *Translator) Reset() {
	t.memo.Clear()
}

func newTranslationError(p synth.StageProgram, err error) *TranslationError {
	te := &TranslationError{Asset: p.Asset, Stage: p.Stage, Err: err}

	var ce *CompileError
	if !errors.As(err, &ce) || len(ce.Diagnostics) == 0 {
		te.Message = err.Error()
		return te
	}

	lines := strings.Split(p.Source, "\n")
	var b strings.Builder
	for i, d := range ce.Diagnostics {
		if i > 0 {
			b.WriteString("\n")
		}
		assetLine, inBody := p.AssetLineOf(d.Line)
		if te.Line == 0 && inBody {
			te.Line = assetLine
		}
		writeDiagnostic(&b, p, ce.Phase, d, lines, assetLine, inBody)
	}
	te.Message = b.String()
	return te
}

// writeDiagnostic renders one diagnostic with the offending line and a
// caret, numbered by asset line when the position falls in the body.
func writeDiagnostic(b *strings.Builder, p synth.StageProgram, phase string, d Diagnostic, lines []string, assetLine int, inBody bool) {
	fmt.Fprintf(b, "%s error: %s\n", phase, d.Message)
	if d.Line < 1 || d.Line > len(lines) {
		return
	}
	col := max(d.Column, 1)
	number := d.Line
	if inBody {
		fmt.Fprintf(b, "  --> %s:%d:%d\n", p.Asset, assetLine, col)
		number = assetLine
	} else {
		fmt.Fprintf(b, "  --> %s (generated %s code) line %d:%d\n", p.Asset, p.Stage, d.Line, col)
	}
	text := lines[d.Line-1]
	col = min(col, len(text)+1)
	b.WriteString("     |\n")
	fmt.Fprintf(b, "%5d| %s\n", number, text)
	fmt.Fprintf(b, "     | %s^\n", strings.Repeat(" ", col-1))
}
