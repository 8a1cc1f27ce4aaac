package cfa

import (
	"github.com/cfadata/cfa/internal/manifest"
	"github.com/cfadata/cfa/internal/planner"
)

// CreateGroup adds a new, empty group to the dataset.
func (d *Dataset) CreateGroup(name string) error {
	if err := d.writable(); err != nil {
		return err
	}
	_, err := d.manifest.CreateGroup(name)
	return err
}

// CreateDimension adds a dimension to groupName. axis may be
// planner.AxisUnclassified to let later InferAxisClasses-based
// variable creation resolve it from the dimension's name.
func (d *Dataset) CreateDimension(groupName, name string, length int64, axis planner.AxisClass, elemType manifest.ElemType) error {
	if err := d.writable(); err != nil {
		return err
	}
	g, err := d.manifest.Group(groupName)
	if err != nil {
		return err
	}
	_, err = g.CreateDimension(name, length, axis, elemType)
	return err
}

// CreateCoordinateVariable adds a coordinate variable holding dimName's
// values directly, then seeds it with values (length must equal the
// dimension's length).
func (d *Dataset) CreateCoordinateVariable(groupName, dimName string, values interface{}) error {
	if err := d.writable(); err != nil {
		return err
	}
	g, err := d.manifest.Group(groupName)
	if err != nil {
		return err
	}
	v, err := g.CreateCoordinateVariable(dimName)
	if err != nil {
		return err
	}
	v.CoordinateValues = values
	return nil
}

// CreateFieldVariable adds a rank>=1 partitioned field variable.
// subarrayShape may be nil, in which case it is computed via
// planner.ChooseSubarrayShape against maxSubarraySize, falling back to
// defaultMaxSubarraySize when maxSubarraySize is left at zero.
func (d *Dataset) CreateFieldVariable(groupName, name string, elemType manifest.ElemType, dims []string, subarrayShape []int64, maxSubarraySize int64) error {
	if err := d.writable(); err != nil {
		return err
	}
	g, err := d.manifest.Group(groupName)
	if err != nil {
		return err
	}
	if subarrayShape == nil {
		shape := make([]int64, len(dims))
		hints := make([]planner.DimensionHint, len(dims))
		for i, dn := range dims {
			dim, err := g.Dimension(dn)
			if err != nil {
				return err
			}
			shape[i] = dim.Length
			hints[i] = planner.DimensionHint{Name: dn, ExplicitAxis: dim.Axis}
		}
		classes := planner.InferAxisClasses(hints)
		if maxSubarraySize <= 0 {
			maxSubarraySize = defaultMaxSubarraySize
		}
		subarrayShape = planner.ChooseSubarrayShape(shape, classes, elemType.Size(), maxSubarraySize)
	}
	_, err = g.CreateFieldVariable(name, elemType, dims, subarrayShape)
	return err
}

// defaultMaxSubarraySize is the subarray byte budget CreateFieldVariable
// targets when the caller leaves maxSubarraySize unset.
const defaultMaxSubarraySize = 50 * 1024 * 1024
