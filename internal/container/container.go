package container

import (
	"github.com/cfadata/cfa/internal/manifest"
)

// Dim is a dimension as stored inside a container (mirrors
// manifest.Dimension's persisted fields only).
type Dim struct {
	Length int64
	Unlimited bool
}

// Var is a variable's in-container representation: its raw row-major
// data plus enough metadata to interpret it.
type Var struct {
	Name string
	ElemType manifest.ElemType
	Dims []string
	Attrs map[string]string
	Shape []int64
	Data []byte
}

// Group is a container's internal group/sub-container: attributes,
// dimensions, variables and nested sub-groups (the latter used for
// the v5 manifest's cfa_<variable> sub-containers).
type Group struct {
	Name string
	Attrs map[string]string
	Dimensions map[string]Dim
	Variables map[string]*Var
	varOrder []string
	Groups map[string]*Group
	groupOrder []string
}

// NewGroup returns an empty, ready-to-use Group.
func NewGroup(name string) *Group {
	return &Group{
		Name: name,
		Attrs: map[string]string{},
		Dimensions: map[string]Dim{},
		Variables: map[string]*Var{},
		Groups: map[string]*Group{},
	}
}

// PutVariable adds or replaces a variable, preserving first-insertion
// order for deterministic encoding.
func (g *Group) PutVariable(v *Var) {
	if _, exists := g.Variables[v.Name]; !exists {
		g.varOrder = append(g.varOrder, v.Name)
	}
	g.Variables[v.Name] = v
}

// PutGroup adds or replaces a sub-group.
func (g *Group) PutGroup(sub *Group) {
	if _, exists := g.Groups[sub.Name]; !exists {
		g.groupOrder = append(g.groupOrder, sub.Name)
	}
	g.Groups[sub.Name] = sub
}

// VariableNames returns variable names in insertion order.
func (g *Group) VariableNames() []string {
	out := make([]string, len(g.varOrder))
	copy(out, g.varOrder)
	return out
}

// GroupNames returns sub-group names in insertion order.
func (g *Group) GroupNames() []string {
	out := make([]string, len(g.groupOrder))
	copy(out, g.groupOrder)
	return out
}

// Container is the top-level decoded/in-progress single-subarray (or
// manifest-substore-bearing) file.
type Container struct {
	Format manifest.ContainerFormat
	Root *Group

	// Compressed, when set, makes Encode gzip-frame the body following
	// the format magic bytes. Decode reads the flag back and un-frames
	// transparently; the magic-byte sniff itself is never compressed.
	Compressed bool
}

// New returns an empty container ready for variables to be added and
// then Encoded.
func New(format manifest.ContainerFormat) *Container {
	return &Container{Format: format, Root: NewGroup("/")}
}

// Clone deep-copies c, used by the resource manager's mode
// reconciliation path: the duplication copies global attributes,
// every group with its attributes, dimensions, variables with their
// attributes and values, recursively.
func (c *Container) Clone() *Container {
	return &Container{Format: c.Format, Root: cloneGroup(c.Root), Compressed: c.Compressed}
}

func cloneGroup(g *Group) *Group {
	cp := NewGroup(g.Name)
	for k, v := range g.Attrs {
		cp.Attrs[k] = v
	}
	for k, d := range g.Dimensions {
		cp.Dimensions[k] = d
	}
	for _, name := range g.varOrder {
		v := g.Variables[name]
		cpv := &Var{
			Name: v.Name,
			ElemType: v.ElemType,
			Dims: append([]string(nil), v.Dims...),
			Attrs: map[string]string{},
			Shape: append([]int64(nil), v.Shape...),
			Data: append([]byte(nil), v.Data...),
		}
		for k, a := range v.Attrs {
			cpv.Attrs[k] = a
		}
		cp.PutVariable(cpv)
	}
	for _, name := range g.groupOrder {
		cp.PutGroup(cloneGroup(g.Groups[name]))
	}
	return cp
}
