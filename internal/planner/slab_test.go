package planner

import (
	"reflect"
	"testing"
)

func slab(ranges ...[3]int64) []AxisRange {
	out := make([]AxisRange, len(ranges))
	for i, r := range ranges {
		out[i] = AxisRange{Start: r[0], Stop: r[1], Step: r[2]}
	}
	return out
}

func TestPlanSlabCrossPartition(t *testing.T) {
	// Scenario 3 from: y(200,Y), x(200,X), U=[100,100].
	// Reading [0..199, 150..160] touches exactly 4 partitions, and the
	// source/target slices tile back to 200x11 with no overlap.
	S := []int64{200, 200}
	U := []int64{100, 100}
	req := slab([3]int64{0, 199, 1}, [3]int64{150, 160, 1})

	touches := PlanSlab(S, U, req)
	if len(touches) != 4 {
		t.Fatalf("got %d touches, want 4", len(touches))
	}

	covered := make(map[[2]int64]bool)
	for _, touch := range touches {
		for a := touch.Target[0].Lo; a <= touch.Target[0].Hi; a++ {
			for b := touch.Target[1].Lo; b <= touch.Target[1].Hi; b++ {
				key := [2]int64{a, b}
				if covered[key] {
					t.Fatalf("target cell %v covered by more than one partition", key)
				}
				covered[key] = true
			}
		}
	}
	want := int(ResultShape(req)[0] * ResultShape(req)[1])
	if len(covered) != want {
		t.Fatalf("covered %d target cells, want %d", len(covered), want)
	}
}

func TestPlanSlabSinglePartition(t *testing.T) {
	// Scenario 1: 1-D, whole array in one partition.
	S := []int64{100}
	U := []int64{100}
	req := slab([3]int64{0, 99, 1})
	touches := PlanSlab(S, U, req)
	if len(touches) != 1 {
		t.Fatalf("got %d touches, want 1", len(touches))
	}
	tt := touches[0]
	if !reflect.DeepEqual(tt.Index, []int64{0}) {
		t.Fatalf("index = %v, want [0]", tt.Index)
	}
	if tt.Source[0] != (Span{Lo: 0, Hi: 99, Step: 1}) || tt.Target[0] != (Span{Lo: 0, Hi: 99, Step: 1}) {
		t.Fatalf("source/target = %v/%v, want [0,99]/[0,99]", tt.Source, tt.Target)
	}
}

func TestPlanSlabTilingInvariant(t *testing.T) {
	S := []int64{250, 70}
	U := []int64{100, 30}
	full := slab([3]int64{0, S[0] - 1, 1}, [3]int64{0, S[1] - 1, 1})
	touches := PlanSlab(S, U, full)

	covered := make(map[[2]int64]bool)
	for _, touch := range touches {
		for a := touch.Location[0].Lo; a <= touch.Location[0].Hi; a++ {
			for b := touch.Location[1].Lo; b <= touch.Location[1].Hi; b++ {
				key := [2]int64{a, b}
				if covered[key] {
					t.Fatalf("location cell %v covered twice", key)
				}
				covered[key] = true
			}
		}
	}
	if int64(len(covered)) != S[0]*S[1] {
		t.Fatalf("covered %d cells, want %d", len(covered), S[0]*S[1])
	}
}

func TestPlanSlabStridedCrossPartition(t *testing.T) {
	// A stride-2 request over a 20-element axis split into two
	// 10-element partitions: every even index is selected, 5 from
	// each partition, tiling into a 10-element result with no gaps
	// or overlap.
	S := []int64{20}
	U := []int64{10}
	req := slab([3]int64{0, 19, 2})

	touches := PlanSlab(S, U, req)
	if len(touches) != 2 {
		t.Fatalf("got %d touches, want 2", len(touches))
	}

	want := ResultShape(req)[0]
	if want != 10 {
		t.Fatalf("ResultShape = %d, want 10", want)
	}

	covered := make(map[int64]bool)
	for _, touch := range touches {
		target := touch.Target[0]
		source := touch.Source[0]
		if target.Step != 1 {
			t.Fatalf("target step = %d, want 1 (result buffer is always contiguous)", target.Step)
		}
		if source.Step != 2 {
			t.Fatalf("source step = %d, want 2", source.Step)
		}
		if target.Len() != source.Len() {
			t.Fatalf("target/source length mismatch: %d vs %d", target.Len(), source.Len())
		}
		for k := target.Lo; k <= target.Hi; k++ {
			if k < 0 || k >= want {
				t.Fatalf("target index %d out of result bounds [0,%d)", k, want)
			}
			if covered[k] {
				t.Fatalf("target index %d covered by more than one partition", k)
			}
			covered[k] = true
		}
	}
	if int64(len(covered)) != want {
		t.Fatalf("covered %d target cells, want %d", len(covered), want)
	}
}

func TestNormalizeSlabDefaultsTrailingAxes(t *testing.T) {
	S := []int64{10, 20, 30}
	req, err := NormalizeSlab(S, []AxisRange{{Start: 1, Stop: 2, Step: 1}}, "test")
	if err != nil {
		t.Fatal(err)
	}
	if len(req) != 3 {
		t.Fatalf("got %d axes, want 3", len(req))
	}
	if req[1] != (AxisRange{0, 19, 1}) || req[2] != (AxisRange{0, 29, 1}) {
		t.Fatalf("defaults not applied: %+v", req)
	}
}

func TestNormalizeSlabOutOfRange(t *testing.T) {
	S := []int64{10}
	if _, err := NormalizeSlab(S, []AxisRange{{Start: 0, Stop: 10, Step: 1}}, "test"); err == nil {
		t.Fatal("expected IndexOutOfRange error")
	}
}

func TestSubarrayName(t *testing.T) {
	got := SubarrayName("/data/mydataset", "root", "temp", []int64{0, 1}, "nc")
	want := "mydataset/mydataset.temp.0.1.nc"
	if got != want {
		t.Fatalf("SubarrayName = %q, want %q", got, want)
	}

	got = SubarrayName("/data/mydataset", "subgroup", "temp", []int64{2}, "nc")
	want = "mydataset/mydataset.subgroup.temp.2.nc"
	if got != want {
		t.Fatalf("SubarrayName = %q, want %q", got, want)
	}
}

func TestCheckTiling(t *testing.T) {
	if err := CheckTiling([]int64{200, 200}, []int64{100, 100}, []int64{2, 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := CheckTiling([]int64{200}, []int64{100}, []int64{1}); err == nil {
		t.Fatal("expected tiling violation error")
	}
}
