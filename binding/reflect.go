package binding

import (
	"errors"
	"fmt"

	"github.com/gogpu/naga/ir"

	"github.com/gogpu/shaderpipe/synth"
)

// ErrNoEntryPoint is returned by Reflect when the module has no entry
// point for the requested stage.
var ErrNoEntryPoint = errors.New("binding: no entry point for stage")

// Reflect walks the IR of one stage and returns its binding layout.
//
// Located entries come from the entry point's arguments and result,
// including the members of struct-typed ones; builtins are skipped.
// Resources come from globals with @group/@binding. A resource is marked
// Used when a function reachable from the entry point references it.
func Reflect(m *ir.Module, stage synth.Stage) (Layout, error) {
	ep, ok := findEntryPoint(m, stage.IR())
	if !ok {
		return Layout{}, fmt.Errorf("%w: %s", ErrNoEntryPoint, stage)
	}
	fn := &ep.Function

	r := reflector{module: m, layout: Layout{Stage: stage}}

	inputs := CategoryVarying
	outputs := CategoryTarget
	if stage == synth.StageVertex {
		inputs = CategoryAttribute
		outputs = CategoryVarying
	}
	for _, arg := range fn.Arguments {
		r.located(inputs, arg.Name, arg.Type, arg.Binding)
	}
	if fn.Result != nil {
		r.located(outputs, "", fn.Result.Type, fn.Result.Binding)
	}

	used := reachableGlobals(m, fn)
	for i, gv := range m.GlobalVariables {
		if gv.Binding == nil {
			continue
		}
		c, ok := r.resourceCategory(gv)
		if !ok {
			continue
		}
		e := Entry{
			Category: c,
			Name:     gv.Name,
			Group:    gv.Binding.Group,
			Slot:     gv.Binding.Binding,
			Type:     TypeName(m, gv.Type),
			Used:     used[ir.GlobalVariableHandle(i)],
		}
		r.resourceTraits(&e, gv)
		r.layout.Entries = append(r.layout.Entries, e)
	}

	r.layout.sort()
	return r.layout, nil
}

type reflector struct {
	module *ir.Module
	layout Layout
}

// located records a located value, or the located members of a struct.
func (r *reflector) located(c Category, name string, th ir.TypeHandle, b *ir.Binding) {
	if b != nil {
		if loc, ok := (*b).(ir.LocationBinding); ok {
			r.layout.Entries = append(r.layout.Entries, r.locatedEntry(c, name, th, loc))
		}
		return
	}
	if int(th) >= len(r.module.Types) {
		return
	}
	st, ok := r.module.Types[th].Inner.(ir.StructType)
	if !ok {
		return
	}
	for _, member := range st.Members {
		if member.Binding == nil {
			continue
		}
		if loc, ok := (*member.Binding).(ir.LocationBinding); ok {
			r.layout.Entries = append(r.layout.Entries, r.locatedEntry(c, member.Name, member.Type, loc))
		}
	}
}

func (r *reflector) locatedEntry(c Category, name string, th ir.TypeHandle, loc ir.LocationBinding) Entry {
	return Entry{
		Category: c,
		Name:     name,
		Slot:     loc.Location,
		Type:     TypeName(r.module, th),
		Flat:     isInteger(r.module, th),
		Used:     true,
	}
}

func (r *reflector) resourceCategory(gv ir.GlobalVariable) (Category, bool) {
	if int(gv.Type) < len(r.module.Types) {
		switch inner := r.module.Types[gv.Type].Inner.(type) {
		case ir.SamplerType:
			return CategorySampler, true
		case ir.ImageType:
			if inner.Class == ir.ImageClassStorage {
				return CategoryStorage, true
			}
			return CategoryTexture, true
		}
	}
	switch gv.Space {
	case ir.SpaceUniform:
		return CategoryUniform, true
	case ir.SpaceStorage:
		return CategoryStorage, true
	}
	return 0, false
}

// resourceTraits fills the sample kind of a texture, the comparison flag
// of a sampler and the access mode of a storage buffer from the IR.
func (r *reflector) resourceTraits(e *Entry, gv ir.GlobalVariable) {
	if gv.Space == ir.SpaceStorage {
		e.Writable = gv.Access == ir.StorageReadWrite
	}
	if int(gv.Type) >= len(r.module.Types) {
		return
	}
	switch inner := r.module.Types[gv.Type].Inner.(type) {
	case ir.SamplerType:
		e.Comparison = inner.Comparison
	case ir.ImageType:
		e.Multisampled = inner.Multisampled
		switch {
		case inner.Class == ir.ImageClassDepth:
			e.Sample = SampleDepth
		case inner.Class != ir.ImageClassSampled:
		case inner.SampledKind == ir.ScalarSint:
			e.Sample = SampleSint
		case inner.SampledKind == ir.ScalarUint:
			e.Sample = SampleUint
		}
	}
}

func findEntryPoint(m *ir.Module, stage ir.ShaderStage) (ir.EntryPoint, bool) {
	for _, ep := range m.EntryPoints {
		if ep.Stage == stage {
			return ep, true
		}
	}
	return ir.EntryPoint{}, false
}

// reachableGlobals returns the globals referenced by the entry point body
// and every module function it calls. The entry point function is not in
// m.Functions, so it seeds the walk directly.
func reachableGlobals(m *ir.Module, root *ir.Function) map[ir.GlobalVariableHandle]bool {
	used := make(map[ir.GlobalVariableHandle]bool)
	visited := make(map[ir.FunctionHandle]bool)
	var stack []ir.FunctionHandle

	scan := func(fn *ir.Function) {
		for _, expr := range fn.Expressions {
			switch k := expr.Kind.(type) {
			case ir.ExprGlobalVariable:
				used[k.Variable] = true
			case ir.ExprCallResult:
				stack = append(stack, k.Function)
			}
		}
		walkCalls(fn.Body, func(callee ir.FunctionHandle) {
			stack = append(stack, callee)
		})
	}

	scan(root)
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[h] || int(h) >= len(m.Functions) {
			continue
		}
		visited[h] = true
		scan(&m.Functions[h])
	}
	return used
}

// walkCalls visits every call statement in a block, including nested
// blocks.
func walkCalls(block []ir.Statement, visit func(ir.FunctionHandle)) {
	for _, stmt := range block {
		switch s := stmt.Kind.(type) {
		case ir.StmtCall:
			visit(s.Function)
		case ir.StmtBlock:
			walkCalls(s.Block, visit)
		case ir.StmtIf:
			walkCalls(s.Accept, visit)
			walkCalls(s.Reject, visit)
		case ir.StmtLoop:
			walkCalls(s.Body, visit)
			walkCalls(s.Continuing, visit)
		case ir.StmtSwitch:
			for _, c := range s.Cases {
				walkCalls(c.Body, visit)
			}
		}
	}
}
