package binding

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/gogpu/shaderpipe/synth"
)

// Category classifies a binding.
type Category uint8

const (
	// CategoryAttribute is a vertex stage input at a location.
	CategoryAttribute Category = iota
	// CategoryVarying is an inter-stage value at a location: a vertex
	// output or a fragment input.
	CategoryVarying
	// CategoryTarget is a fragment output at a color attachment location.
	CategoryTarget
	CategoryUniform
	CategoryStorage
	CategoryTexture
	CategorySampler
)

func (c Category) String() string {
	switch c {
	case CategoryAttribute:
		return "attribute"
	case CategoryVarying:
		return "varying"
	case CategoryTarget:
		return "target"
	case CategoryUniform:
		return "uniform"
	case CategoryStorage:
		return "storage"
	case CategoryTexture:
		return "texture"
	case CategorySampler:
		return "sampler"
	}
	return fmt.Sprintf("Category(%d)", c)
}

// IsResource reports whether the category is bound through a bind group
// rather than a location.
func (c Category) IsResource() bool {
	return c >= CategoryUniform
}

// Entry is one reflected binding.
type Entry struct {
	Category Category
	Name     string
	// Group is the bind group of a resource. It is 0 for located entries.
	Group uint32
	// Slot is the @binding of a resource or the @location of an attribute,
	// varying or target.
	Slot uint32
	// Type is the WGSL spelling of the bound type.
	Type string
	// Flat is set for integer varyings, which are not interpolated.
	Flat bool
	// Used reports whether code reachable from the entry point references
	// the resource. Located entries are always used.
	Used bool

	// Sample is the sample kind of a texture.
	Sample SampleKind
	// Multisampled is set for multisampled textures.
	Multisampled bool
	// Comparison is set for comparison samplers.
	Comparison bool
	// Writable is set for read_write storage buffers.
	Writable bool
}

// SampleKind is the component type a texture returns when sampled.
type SampleKind uint8

const (
	SampleFloat SampleKind = iota
	SampleDepth
	SampleSint
	SampleUint
)

func (k SampleKind) String() string {
	switch k {
	case SampleFloat:
		return "float"
	case SampleDepth:
		return "depth"
	case SampleSint:
		return "sint"
	case SampleUint:
		return "uint"
	}
	return fmt.Sprintf("SampleKind(%d)", k)
}

func (e Entry) String() string {
	if e.Category.IsResource() {
		return fmt.Sprintf("%s %s: %s @group(%d) @binding(%d)", e.Category, e.Name, e.Type, e.Group, e.Slot)
	}
	return fmt.Sprintf("%s %s: %s @location(%d)", e.Category, e.Name, e.Type, e.Slot)
}

// Layout is the set of bindings of one stage, sorted by category, group
// and slot.
type Layout struct {
	Stage   synth.Stage
	Entries []Entry
}

// Find returns the entry with the given category and name.
func (l Layout) Find(c Category, name string) (Entry, bool) {
	for _, e := range l.Entries {
		if e.Category == c && e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Filter returns the entries of one category in layout order.
func (l Layout) Filter(c Category) []Entry {
	var out []Entry
	for _, e := range l.Entries {
		if e.Category == c {
			out = append(out, e)
		}
	}
	return out
}

// Resources returns every bind group entry in (group, slot) order.
func (l Layout) Resources() []Entry {
	var out []Entry
	for _, e := range l.Entries {
		if e.Category.IsResource() {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, compareSlot)
	return out
}

func (l *Layout) sort() {
	slices.SortStableFunc(l.Entries, func(a, b Entry) int {
		if a.Category.IsResource() != b.Category.IsResource() {
			if a.Category.IsResource() {
				return 1
			}
			return -1
		}
		if !a.Category.IsResource() && a.Category != b.Category {
			return int(a.Category) - int(b.Category)
		}
		return compareSlot(a, b)
	})
}

func compareSlot(a, b Entry) int {
	if c := cmp.Compare(a.Group, b.Group); c != 0 {
		return c
	}
	return cmp.Compare(a.Slot, b.Slot)
}
