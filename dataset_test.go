package cfa_test

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/cfadata/cfa"
	"github.com/cfadata/cfa/internal/config"
	"github.com/cfadata/cfa/internal/manifest"
	"github.com/cfadata/cfa/internal/planner"
)

func testOpts() cfa.Options {
	return cfa.Options{Config: config.Default()}
}

func TestOneDimensionalWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	locator := filepath.Join(t.TempDir(), "temps.cfa")

	ds, err := cfa.Create(ctx, locator, manifest.FormatClassic, manifest.SchemaV4, testOpts())
	if err != nil {
		t.Fatal(err)
	}
	if err := ds.CreateDimension("root", "x", 10, planner.AxisUnclassified, manifest.Float64); err != nil {
		t.Fatal(err)
	}
	if err := ds.CreateFieldVariable("root", "temp", manifest.Float64, []string{"x"}, []int64{4}, 0); err != nil {
		t.Fatal(err)
	}
	values := make([]float64, 10)
	for i := range values {
		values[i] = float64(i)
	}
	if err := ds.WriteSlab(ctx, "root", "temp", nil, values); err != nil {
		t.Fatal(err)
	}
	if err := ds.Close(ctx); err != nil {
		t.Fatal(err)
	}

	ds2, err := cfa.Open(ctx, locator, testOpts())
	if err != nil {
		t.Fatal(err)
	}
	defer ds2.Close(ctx)

	got, shape, err := ds2.ReadSlab(ctx, "root", "temp", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(shape, []int64{10}) {
		t.Fatalf("shape = %v, want [10]", shape)
	}
	if !reflect.DeepEqual(got, values) {
		t.Fatalf("got %v, want %v", got, values)
	}
}

func TestTwoDimensionalCrossPartitionSlab(t *testing.T) {
	ctx := context.Background()
	locator := filepath.Join(t.TempDir(), "grid.cfa")

	ds, err := cfa.Create(ctx, locator, manifest.FormatClassic, manifest.SchemaV4, testOpts())
	if err != nil {
		t.Fatal(err)
	}
	if err := ds.CreateDimension("root", "y", 6, planner.AxisY, manifest.Float32); err != nil {
		t.Fatal(err)
	}
	if err := ds.CreateDimension("root", "x", 6, planner.AxisX, manifest.Float32); err != nil {
		t.Fatal(err)
	}
	// subarray shape 4x4 forces a 2x2 partition matrix over a 6x6 field,
	// so a full-extent write/read necessarily crosses all four partitions.
	if err := ds.CreateFieldVariable("root", "field", manifest.Float32, []string{"y", "x"}, []int64{4, 4}, 0); err != nil {
		t.Fatal(err)
	}

	values := make([]float32, 36)
	for i := range values {
		values[i] = float32(i)
	}
	if err := ds.WriteSlab(ctx, "root", "field", nil, values); err != nil {
		t.Fatal(err)
	}

	got, shape, err := ds.ReadSlab(ctx, "root", "field", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(shape, []int64{6, 6}) {
		t.Fatalf("shape = %v, want [6 6]", shape)
	}
	if !reflect.DeepEqual(got, values) {
		t.Fatalf("got %v, want %v", got, values)
	}
	if err := ds.Close(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestUndefinedPartitionReadsAsFillValue(t *testing.T) {
	ctx := context.Background()
	locator := filepath.Join(t.TempDir(), "sparse.cfa")

	ds, err := cfa.Create(ctx, locator, manifest.FormatClassic, manifest.SchemaV4, testOpts())
	if err != nil {
		t.Fatal(err)
	}
	if err := ds.CreateDimension("root", "x", 12, planner.AxisUnclassified, manifest.Float64); err != nil {
		t.Fatal(err)
	}
	// subarray shape 4 over a 12-length dimension gives 3 partitions;
	// write only the middle one.
	if err := ds.CreateFieldVariable("root", "v", manifest.Float64, []string{"x"}, []int64{4}, 0); err != nil {
		t.Fatal(err)
	}
	middle := []float64{9, 9, 9, 9}
	if err := ds.WriteSlab(ctx, "root", "v", []planner.AxisRange{{Start: 4, Stop: 7, Step: 1}}, middle); err != nil {
		t.Fatal(err)
	}

	got, _, err := ds.ReadSlab(ctx, "root", "v", nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0, 0, 0, 0, 9, 9, 9, 9, 0, 0, 0, 0}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if err := ds.Close(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestStridedReadSpanningPartitions(t *testing.T) {
	ctx := context.Background()
	locator := filepath.Join(t.TempDir(), "strided.cfa")

	ds, err := cfa.Create(ctx, locator, manifest.FormatClassic, manifest.SchemaV4, testOpts())
	if err != nil {
		t.Fatal(err)
	}
	if err := ds.CreateDimension("root", "x", 20, planner.AxisUnclassified, manifest.Float64); err != nil {
		t.Fatal(err)
	}
	// subarray shape 10 over a 20-length dimension forces a 2-partition
	// split, so a step-2 request below must cross both.
	if err := ds.CreateFieldVariable("root", "v", manifest.Float64, []string{"x"}, []int64{10}, 0); err != nil {
		t.Fatal(err)
	}
	values := make([]float64, 20)
	for i := range values {
		values[i] = float64(i)
	}
	if err := ds.WriteSlab(ctx, "root", "v", nil, values); err != nil {
		t.Fatal(err)
	}

	got, shape, err := ds.ReadSlab(ctx, "root", "v", []planner.AxisRange{{Start: 0, Stop: 19, Step: 2}})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(shape, []int64{10}) {
		t.Fatalf("shape = %v, want [10]", shape)
	}
	want := []float64{0, 2, 4, 6, 8, 10, 12, 14, 16, 18}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if err := ds.Close(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestSchemaV5RoundTrip(t *testing.T) {
	ctx := context.Background()
	locator := filepath.Join(t.TempDir(), "structured.cfa")

	ds, err := cfa.Create(ctx, locator, manifest.FormatModernV5, manifest.SchemaV5, testOpts())
	if err != nil {
		t.Fatal(err)
	}
	if err := ds.CreateDimension("root", "t", 8, planner.AxisT, manifest.Int32); err != nil {
		t.Fatal(err)
	}
	if err := ds.CreateFieldVariable("root", "count", manifest.Int32, []string{"t"}, []int64{3}, 0); err != nil {
		t.Fatal(err)
	}
	values := []int32{1, 2, 3, 4, 5, 6, 7, 8}
	if err := ds.WriteSlab(ctx, "root", "count", nil, values); err != nil {
		t.Fatal(err)
	}
	if err := ds.Close(ctx); err != nil {
		t.Fatal(err)
	}

	ds2, err := cfa.Open(ctx, locator, testOpts())
	if err != nil {
		t.Fatal(err)
	}
	defer ds2.Close(ctx)
	got, _, err := ds2.ReadSlab(ctx, "root", "count", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, values) {
		t.Fatalf("got %v, want %v", got, values)
	}
}

func TestReadOnlyDatasetRejectsWrite(t *testing.T) {
	ctx := context.Background()
	locator := filepath.Join(t.TempDir(), "ro.cfa")

	ds, err := cfa.Create(ctx, locator, manifest.FormatClassic, manifest.SchemaV4, testOpts())
	if err != nil {
		t.Fatal(err)
	}
	if err := ds.CreateDimension("root", "x", 4, planner.AxisUnclassified, manifest.Float64); err != nil {
		t.Fatal(err)
	}
	if err := ds.Close(ctx); err != nil {
		t.Fatal(err)
	}

	ds2, err := cfa.Open(ctx, locator, testOpts())
	if err != nil {
		t.Fatal(err)
	}
	defer ds2.Close(ctx)
	if err := ds2.CreateGroup("newgroup"); err == nil {
		t.Fatal("expected an UnsupportedOperation error on a read-only dataset")
	}
}
