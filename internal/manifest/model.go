// Package manifest implements the typed tree of dataset, group,
// dimension, variable, partition and subarray entities, their
// invariants, and the two on-wire layouts (v4 compact, v5 structured).
package manifest

import (
	"fmt"

	"github.com/cfadata/cfa/internal/cfaerr"
	"github.com/cfadata/cfa/internal/planner"
)

// ElemType names the element type of a dimension, variable or
// coordinate, independent of the underlying container's own type tags.
type ElemType string

const (
	Int8 ElemType = "i8"
	Int16 ElemType = "i16"
	Int32 ElemType = "i32"
	Int64 ElemType = "i64"
	Float32 ElemType = "f32"
	Float64 ElemType = "f64"
	String ElemType = "string"
)

// Size returns the element's in-memory size in bytes, or 0 for
// String (variable width, not subject to the planner's byte budget
// the same way fixed-width elements are).
func (t ElemType) Size() int64 {
	switch t {
	case Int8:
		return 1
	case Int16:
		return 2
	case Int32, Float32:
		return 4
	case Int64, Float64:
		return 8
	default:
		return 0
	}
}

// ContainerFormat tags the underlying dense-array container
// generation, mirroring the magic-number sniff rules.
type ContainerFormat int

const (
	FormatUnknown ContainerFormat = iota
	FormatClassic // CDF-1
	FormatClassic64Offset // CDF-2
	FormatClassic64Data // CDF-5
	FormatModernV4 // pre-HDF5-substore generation
	FormatModernV5 // HDF5-backed, supports sub-containers
)

// SupportsSubstore reports whether a container format can host the
// structured v5 sub-container layout; schema v5 requires this.
func (f ContainerFormat) SupportsSubstore() bool {
	return f == FormatModernV5
}

func (f ContainerFormat) String() string {
	switch f {
	case FormatClassic:
		return "classic"
	case FormatClassic64Offset:
		return "64-bit-offset"
	case FormatClassic64Data:
		return "64-bit-data"
	case FormatModernV4:
		return "modern-v4"
	case FormatModernV5:
		return "modern-v5"
	default:
		return "unknown"
	}
}

// SchemaVersion selects the manifest on-wire layout.
type SchemaVersion string

const (
	SchemaV4 SchemaVersion = "v4"
	SchemaV5 SchemaVersion = "v5"
)

// UnlimitedLength is the sentinel dimension length meaning "grows
// without a fixed bound".
const UnlimitedLength int64 = -1

const RootGroupName = "root"

// Dataset is the top-level entity of the store.
type Dataset struct {
	Name string
	Format ContainerFormat
	Schema SchemaVersion
	Metadata *Metadata

	groupOrder []string
	groups map[string]*Group
}

// NewDataset constructs an empty dataset with only the mandatory root
// group, enforcing the format/schema invariant.
func NewDataset(name string, format ContainerFormat, schema SchemaVersion) (*Dataset, error) {
	if schema == SchemaV5 && !format.SupportsSubstore() {
		return nil, cfaerr.UnsupportedOperation(name, fmt.Sprintf("schema v5 requires a substore-capable container format, got %s", format))
	}
	d := &Dataset{
		Name: name,
		Format: format,
		Schema: schema,
		Metadata: NewMetadata(),
		groups: map[string]*Group{},
	}
	root := d.newGroup(RootGroupName)
	d.groups[RootGroupName] = root
	d.groupOrder = append(d.groupOrder, RootGroupName)
	return d, nil
}

func (d *Dataset) newGroup(name string) *Group {
	return &Group{
		Name: name,
		Dataset: d,
		Metadata: NewMetadata(),
		dims: map[string]*Dimension{},
		vars: map[string]*Variable{},
	}
}

// CreateGroup adds a new, empty group. Group names are unique within
// a dataset.
func (d *Dataset) CreateGroup(name string) (*Group, error) {
	if _, exists := d.groups[name]; exists {
		return nil, cfaerr.NameCollision(d.Name, name)
	}
	g := d.newGroup(name)
	d.groups[name] = g
	d.groupOrder = append(d.groupOrder, name)
	return g, nil
}

// Group looks up a group by name.
func (d *Dataset) Group(name string) (*Group, error) {
	g, ok := d.groups[name]
	if !ok {
		return nil, cfaerr.MissingEntity(d.Name, name)
	}
	return g, nil
}

// Root returns the always-present root group.
func (d *Dataset) Root() *Group {
	g, _ := d.groups[RootGroupName]
	return g
}

// ListGroups returns group names in creation order.
func (d *Dataset) ListGroups() []string {
	out := make([]string, len(d.groupOrder))
	copy(out, d.groupOrder)
	return out
}

// RenameGroup renames a group, failing if newName collides with an
// existing one or oldName is "root" (root must always be present
// under its canonical name).
func (d *Dataset) RenameGroup(oldName, newName string) error {
	if oldName == RootGroupName {
		return cfaerr.UnsupportedOperation(d.Name, "cannot rename the root group")
	}
	g, ok := d.groups[oldName]
	if !ok {
		return cfaerr.MissingEntity(d.Name, oldName)
	}
	if _, exists := d.groups[newName]; exists {
		return cfaerr.NameCollision(d.Name, newName)
	}
	delete(d.groups, oldName)
	g.Name = newName
	d.groups[newName] = g
	for i, n := range d.groupOrder {
		if n == oldName {
			d.groupOrder[i] = newName
			break
		}
	}
	return nil
}

// Group owns dimensions and variables.
type Group struct {
	Name string
	Dataset *Dataset
	Metadata *Metadata

	dimOrder []string
	dims map[string]*Dimension

	varOrder []string
	vars map[string]*Variable
}

// CreateDimension adds a dimension, unique within the group.
func (g *Group) CreateDimension(name string, length int64, axis planner.AxisClass, elemType ElemType) (*Dimension, error) {
	if _, exists := g.dims[name]; exists {
		return nil, cfaerr.NameCollision(g.Dataset.Name, name)
	}
	dim := &Dimension{
		Name: name,
		Length: length,
		Axis: axis,
		ElemType: elemType,
		Metadata: NewMetadata(),
		group: g,
	}
	g.dims[name] = dim
	g.dimOrder = append(g.dimOrder, name)
	return dim, nil
}

// Dimension looks up a dimension by name.
func (g *Group) Dimension(name string) (*Dimension, error) {
	d, ok := g.dims[name]
	if !ok {
		return nil, cfaerr.MissingEntity(g.Dataset.Name, name)
	}
	return d, nil
}

// ListDimensions returns dimension names in creation order.
func (g *Group) ListDimensions() []string {
	out := make([]string, len(g.dimOrder))
	copy(out, g.dimOrder)
	return out
}

// RenameDimension renames a dimension within the group.
func (g *Group) RenameDimension(oldName, newName string) error {
	d, ok := g.dims[oldName]
	if !ok {
		return cfaerr.MissingEntity(g.Dataset.Name, oldName)
	}
	if _, exists := g.dims[newName]; exists {
		return cfaerr.NameCollision(g.Dataset.Name, newName)
	}
	delete(g.dims, oldName)
	d.Name = newName
	g.dims[newName] = d
	for i, n := range g.dimOrder {
		if n == oldName {
			g.dimOrder[i] = newName
			break
		}
	}
	return nil
}

// VariableRole distinguishes coordinate from field variables.
type VariableRole int

const (
	RoleField VariableRole = iota
	RoleCoordinate
)

// CreateCoordinateVariable adds a variable sharing its name with dim,
// holding that dimension's coordinate values directly (not
// partitioned).
func (g *Group) CreateCoordinateVariable(dimName string) (*Variable, error) {
	dim, err := g.Dimension(dimName)
	if err != nil {
		return nil, err
	}
	if _, exists := g.vars[dimName]; exists {
		return nil, cfaerr.NameCollision(g.Dataset.Name, dimName)
	}
	v := &Variable{
		Name: dimName,
		Group: g,
		Role: RoleCoordinate,
		ElemType: dim.ElemType,
		Dims: []string{dimName},
		Metadata: NewMetadata(),
	}
	g.vars[dimName] = v
	g.varOrder = append(g.varOrder, dimName)
	return v, nil
}

// CreateFieldVariable adds a rank>=1 field variable referencing dims
// by name, with subarray shape U (explicit, or planner-computed by
// the caller) and master shape implied by the product of dims'
// lengths. It enforces the tiling invariant.
func (g *Group) CreateFieldVariable(name string, elemType ElemType, dims []string, subarrayShape []int64) (*Variable, error) {
	if _, exists := g.vars[name]; exists {
		return nil, cfaerr.NameCollision(g.Dataset.Name, name)
	}
	if len(dims) == 0 {
		return nil, cfaerr.DimensionMismatch(g.Dataset.Name, "field variable must have rank >= 1")
	}
	if len(subarrayShape) != len(dims) {
		return nil, cfaerr.DimensionMismatch(g.Dataset.Name, fmt.Sprintf("subarray shape rank %d != variable rank %d", len(subarrayShape), len(dims)))
	}
	shape := make([]int64, len(dims))
	for i, dn := range dims {
		dim, err := g.Dimension(dn)
		if err != nil {
			return nil, err
		}
		if dim.Length == UnlimitedLength {
			return nil, cfaerr.UnsupportedOperation(g.Dataset.Name, "unlimited dimensions in field variables are not supported")
		}
		shape[i] = dim.Length
	}
	pmShape := planner.PMShape(shape, subarrayShape)
	if err := planner.CheckTiling(shape, subarrayShape, pmShape); err != nil {
		return nil, cfaerr.DimensionMismatch(g.Dataset.Name, err.Error())
	}
	v := &Variable{
		Name: name,
		Group: g,
		Role: RoleField,
		ElemType: elemType,
		Dims: dims,
		Metadata: NewMetadata(),
		Shape: shape,
		SubarrayShape: subarrayShape,
		PMShape: pmShape,
		Partitions: newPartitionTable(pmShape),
	}
	g.vars[name] = v
	g.varOrder = append(g.varOrder, name)
	return v, nil
}

// Variable looks up a variable by name.
func (g *Group) Variable(name string) (*Variable, error) {
	v, ok := g.vars[name]
	if !ok {
		return nil, cfaerr.MissingEntity(g.Dataset.Name, name)
	}
	return v, nil
}

// ListVariables returns variable names in creation order.
func (g *Group) ListVariables() []string {
	out := make([]string, len(g.varOrder))
	copy(out, g.varOrder)
	return out
}

// RenameVariable renames a variable within the group.
func (g *Group) RenameVariable(oldName, newName string) error {
	v, ok := g.vars[oldName]
	if !ok {
		return cfaerr.MissingEntity(g.Dataset.Name, oldName)
	}
	if _, exists := g.vars[newName]; exists {
		return cfaerr.NameCollision(g.Dataset.Name, newName)
	}
	delete(g.vars, oldName)
	v.Name = newName
	g.vars[newName] = v
	for i, n := range g.varOrder {
		if n == oldName {
			g.varOrder[i] = newName
			break
		}
	}
	return nil
}

// Dimension is dimension entity.
type Dimension struct {
	Name string
	Length int64
	Axis planner.AxisClass
	ElemType ElemType
	Metadata *Metadata

	group *Group
}

// Variable is variable entity, covering both roles.
type Variable struct {
	Name string
	Group *Group
	Role VariableRole
	ElemType ElemType
	Dims []string
	Metadata *Metadata
	BasePath string // optional filename-prefix hint

	// Field-variable-only fields; zero values for coordinate variables.
	Shape []int64
	SubarrayShape []int64
	PMShape []int64
	Partitions *PartitionTable
	FillValue interface{}

	// Coordinate-variable-only field: the directly stored values.
	CoordinateValues interface{}
}

// IsField reports whether v is a partitioned field variable.
func (v *Variable) IsField() bool { return v.Role == RoleField }
