package cfa

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/cfadata/cfa/internal/backend"
	"github.com/cfadata/cfa/internal/cfaerr"
	"github.com/cfadata/cfa/internal/container"
	"github.com/cfadata/cfa/internal/manifest"
	"github.com/cfadata/cfa/internal/planner"
	"github.com/cfadata/cfa/internal/resource"
)

// ReadSlab returns the values addressed by req against groupName/varName,
// filling any never-written partition's area with the variable's fill
// value (zero for numeric types when none was set). Touched partitions
// are fetched concurrently; each writes into a disjoint region of the
// result buffer, so no locking is needed across that fan-out.
func (d *Dataset) ReadSlab(ctx context.Context, groupName, varName string, req []planner.AxisRange) (interface{}, []int64, error) {
	v, err := d.fieldVariable(groupName, varName)
	if err != nil {
		return nil, nil, err
	}
	full, err := planner.NormalizeSlab(v.Shape, req, d.locator)
	if err != nil {
		return nil, nil, err
	}
	resultShape := planner.ResultShape(full)
	elemSize := v.ElemType.Size()
	totalElems := product(resultShape)
	totalBytes := totalElems * elemSize

	buf, err := resource.AllocateBuffer(d.mgr.CacheDir(), d.name, totalBytes, d.mgr.FreeMemoryReserve())
	if err != nil {
		return nil, nil, err
	}
	defer buf.Close()

	touches := planner.PlanSlab(v.Shape, v.SubarrayShape, full)
	fillBytes := encodeFillValue(v.ElemType, v.FillValue)

	eg, egCtx := errgroup.WithContext(ctx)
	for _, touch := range touches {
		touch := touch
		eg.Go(func() error {
			rec, defined := v.Partitions.Get(touch.Index)
			if !defined {
				return fillRegionBytes(buf, resultShape, touch.Target, elemSize, fillBytes)
			}
			return d.readPartitionInto(egCtx, rec, touch, v.ElemType, resultShape, buf)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}

	if err := resource.FinalizeBuffer(buf); err != nil {
		return nil, nil, err
	}
	data, err := readAllBytes(buf, totalBytes)
	if err != nil {
		return nil, nil, err
	}
	values, err := decodeTyped(v.ElemType, data, totalElems)
	if err != nil {
		return nil, nil, err
	}
	return values, resultShape, nil
}

func (d *Dataset) readPartitionInto(ctx context.Context, rec manifest.PartitionRecord, touch planner.Touch, elemType manifest.ElemType, resultShape []int64, buf resource.Buffer) error {
	blank := func() *container.Container {
		return container.New(rec.Subarray.Format)
	}
	sc, err := d.mgr.Acquire(ctx, rec.Subarray.File, backend.ModeRead, 0, blank)
	if cfaerr.IsRetryable(err) {
		// A transient backend failure on one subarray is retried once
		// before it is surfaced.
		sc, err = d.mgr.Acquire(ctx, rec.Subarray.File, backend.ModeRead, 0, blank)
	}
	if err != nil {
		return err
	}
	cv, ok := sc.Root.Variables[rec.Subarray.NCVar]
	if !ok {
		return cfaerr.MissingEntity(rec.Subarray.File, rec.Subarray.NCVar)
	}
	return copyBytesRegion(buf, resultShape, touch.Target, cv.Data, rec.Subarray.Shape, touch.Source, elemType.Size())
}

// WriteSlab writes values (a flat, row-major slice matching
// ResultShape(req)) to groupName/varName. Each touched partition is
// written as a whole, newly-built subarray: area outside the request's
// coverage of that partition is set to the fill value rather than
// merged with any prior content, matching "write opens in clobber
// mode" for the per-partition unit this store actually persists.
func (d *Dataset) WriteSlab(ctx context.Context, groupName, varName string, req []planner.AxisRange, values interface{}) error {
	if err := d.writable(); err != nil {
		return err
	}
	v, err := d.fieldVariable(groupName, varName)
	if err != nil {
		return err
	}
	full, err := planner.NormalizeSlab(v.Shape, req, d.locator)
	if err != nil {
		return err
	}
	resultShape := planner.ResultShape(full)
	payload, err := container.EncodeElems(v.ElemType, values)
	if err != nil {
		return err
	}
	elemSize := v.ElemType.Size()
	if int64(len(payload)) != product(resultShape)*elemSize {
		return cfaerr.DimensionMismatch(d.locator, fmt.Sprintf("value count does not match requested slab shape %v", resultShape))
	}

	touches := planner.PlanSlab(v.Shape, v.SubarrayShape, full)
	fillBytes := encodeFillValue(v.ElemType, v.FillValue)

	type result struct {
		touch planner.Touch
		rec   manifest.PartitionRecord
	}
	results := make([]result, len(touches))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, touch := range touches {
		i, touch := i, touch
		eg.Go(func() error {
			rec, err := d.writePartition(egCtx, groupName, v, touch, payload, resultShape, elemSize, fillBytes)
			if err != nil {
				return err
			}
			results[i] = result{touch: touch, rec: rec}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	for _, r := range results {
		v.Partitions.Set(r.rec)
	}
	return nil
}

func (d *Dataset) writePartition(ctx context.Context, groupName string, v *manifest.Variable, touch planner.Touch, payload []byte, resultShape []int64, elemSize int64, fillBytes []byte) (manifest.PartitionRecord, error) {
	subBytes := make([]byte, product(touch.Shape)*elemSize)
	fillRegionRaw(subBytes, touch.Shape, nil, elemSize, fillBytes)
	if err := copyBytesRaw(subBytes, touch.Shape, touch.Source, payload, resultShape, touch.Target, elemSize); err != nil {
		return manifest.PartitionRecord{}, err
	}

	locator := subarrayLocator(d.locator, groupName, v.Name, touch.Index)
	sc, err := d.mgr.Acquire(ctx, locator, backend.ModeWrite, int64(len(subBytes)), func() *container.Container {
		c := container.New(d.manifest.Format)
		c.Compressed = true
		return c
	})
	if err != nil {
		return manifest.PartitionRecord{}, err
	}
	sc.Root.PutVariable(&container.Var{
		Name:     v.Name,
		ElemType: v.ElemType,
		Dims:     v.Dims,
		Attrs:    map[string]string{},
		Shape:    touch.Shape,
		Data:     subBytes,
	})

	location := make([][2]int64, len(touch.Location))
	for i, s := range touch.Location {
		location[i] = [2]int64{s.Lo, s.Hi}
	}
	return manifest.PartitionRecord{
		Index:    touch.Index,
		Location: location,
		Subarray: manifest.SubarrayRef{
			NCVar:  v.Name,
			File:   locator,
			Format: d.manifest.Format,
			Shape:  touch.Shape,
		},
	}, nil
}

func subarrayLocator(datasetLocator, group, variable string, index []int64) string {
	name := planner.SubarrayName(datasetLocator, group, variable, index, "dat")
	return joinLocator(datasetLocator, name)
}

func (d *Dataset) fieldVariable(groupName, varName string) (*manifest.Variable, error) {
	g, err := d.manifest.Group(groupName)
	if err != nil {
		return nil, err
	}
	v, err := g.Variable(varName)
	if err != nil {
		return nil, err
	}
	if !v.IsField() {
		return nil, cfaerr.UnsupportedOperation(d.locator, "variable "+varName+" is a coordinate, not a field variable")
	}
	return v, nil
}

func product(shape []int64) int64 {
	n := int64(1)
	for _, s := range shape {
		n *= s
	}
	return n
}
