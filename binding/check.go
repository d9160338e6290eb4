package binding

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/shaderpipe/synth"
)

// ErrBindingConflict is matched by every *ConflictError.
var ErrBindingConflict = errors.New("binding: conflict between stages")

// ConflictError reports vertex and fragment layouts that disagree.
type ConflictError struct {
	Name     string
	Reason   string
	Vertex   Entry
	Fragment Entry
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("binding conflict on %q: %s (vertex: %s; fragment: %s)", e.Name, e.Reason, e.Vertex, e.Fragment)
}

// Is reports whether target is ErrBindingConflict.
func (e *ConflictError) Is(target error) bool {
	return target == ErrBindingConflict
}

// StageMask is a set of stages that can see a resource.
type StageMask uint8

const (
	VisibleVertex StageMask = 1 << iota
	VisibleFragment
)

// Has reports whether the mask includes stage s.
func (m StageMask) Has(s synth.Stage) bool {
	if s == synth.StageVertex {
		return m&VisibleVertex != 0
	}
	return m&VisibleFragment != 0
}

// Resource is a bind group entry of the merged pipeline layout.
type Resource struct {
	Entry
	Visibility StageMask
}

// Check verifies that two stage layouts can be linked:
//   - a resource declared by both stages has the same group, slot and
//     category in each;
//   - no (group, slot) is claimed by two different resources;
//   - every fragment input varying matches a vertex output at the same
//     location with the same type.
func Check(vs, fs Layout) error {
	_, err := Merge(vs, fs)
	return err
}

// Merge checks the layouts and returns the union of their resources in
// (group, slot) order, each with the stages that declare it.
func Merge(vs, fs Layout) ([]Resource, error) {
	if err := checkVaryings(vs, fs); err != nil {
		return nil, err
	}

	var merged []Resource
	for _, e := range vs.Resources() {
		merged = append(merged, Resource{Entry: e, Visibility: VisibleVertex})
	}
	for _, f := range fs.Resources() {
		if v, ok := vs.findResource(f.Name); ok {
			if v.Group != f.Group || v.Slot != f.Slot || v.Category != f.Category {
				return nil, &ConflictError{Name: f.Name, Reason: "declared differently in each stage", Vertex: v, Fragment: f}
			}
			i := slices.IndexFunc(merged, func(r Resource) bool { return r.Name == f.Name })
			merged[i].Visibility |= VisibleFragment
			merged[i].Used = merged[i].Used || f.Used
			continue
		}
		if v, ok := vs.findSlot(f.Group, f.Slot); ok {
			return nil, &ConflictError{Name: f.Name, Reason: fmt.Sprintf("slot already used by %q", v.Name), Vertex: v, Fragment: f}
		}
		merged = append(merged, Resource{Entry: f, Visibility: VisibleFragment})
	}

	slices.SortFunc(merged, func(a, b Resource) int { return compareSlot(a.Entry, b.Entry) })
	return merged, nil
}

func checkVaryings(vs, fs Layout) error {
	outputs := vs.Filter(CategoryVarying)
	for _, in := range fs.Filter(CategoryVarying) {
		i := slices.IndexFunc(outputs, func(o Entry) bool { return o.Slot == in.Slot })
		if i < 0 {
			return &ConflictError{Name: in.Name, Reason: fmt.Sprintf("no vertex output at location %d", in.Slot), Fragment: in}
		}
		if out := outputs[i]; out.Type != in.Type {
			return &ConflictError{Name: in.Name, Reason: fmt.Sprintf("type %s does not match vertex output %s", in.Type, out.Type), Vertex: out, Fragment: in}
		}
	}
	return nil
}

func (l Layout) findResource(name string) (Entry, bool) {
	for _, e := range l.Entries {
		if e.Category.IsResource() && e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

func (l Layout) findSlot(group, slot uint32) (Entry, bool) {
	for _, e := range l.Entries {
		if e.Category.IsResource() && e.Group == group && e.Slot == slot {
			return e, true
		}
	}
	return Entry{}, false
}
