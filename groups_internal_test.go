package cfa

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cfadata/cfa/internal/config"
	"github.com/cfadata/cfa/internal/manifest"
	"github.com/cfadata/cfa/internal/planner"
)

// TestCreateFieldVariableDefaultSubarraySize exercises the zero-value
// maxSubarraySize path: a stale, too-small default would split this
// axis into many more (smaller) partitions than the 50MiB budget
// implies.
func TestCreateFieldVariableDefaultSubarraySize(t *testing.T) {
	ctx := context.Background()
	locator := filepath.Join(t.TempDir(), "defaultsize.cfa")

	ds, err := Create(ctx, locator, manifest.FormatClassic, manifest.SchemaV4, Options{Config: config.Default()})
	if err != nil {
		t.Fatal(err)
	}
	const length = 10_000_000 // 10M float64 elements = ~80MB
	if err := ds.CreateDimension("root", "x", length, planner.AxisUnclassified, manifest.Float64); err != nil {
		t.Fatal(err)
	}
	if err := ds.CreateFieldVariable("root", "v", manifest.Float64, []string{"x"}, nil, 0); err != nil {
		t.Fatal(err)
	}
	g, err := ds.manifest.Group("root")
	if err != nil {
		t.Fatal(err)
	}
	v, err := g.Variable("v")
	if err != nil {
		t.Fatal(err)
	}

	wantMaxLen := defaultMaxSubarraySize / 8 // elements per partition at 8 bytes each
	got := v.SubarrayShape[0]
	if got > wantMaxLen {
		t.Fatalf("subarray shape[0] = %d, want <= %d (implied by the %d-byte default)", got, wantMaxLen, defaultMaxSubarraySize)
	}
	if got < wantMaxLen/2 {
		t.Fatalf("subarray shape[0] = %d, suspiciously small for a %d-byte default (stale 4MiB default?)", got, defaultMaxSubarraySize)
	}
	if err := ds.Close(ctx); err != nil {
		t.Fatal(err)
	}
}
