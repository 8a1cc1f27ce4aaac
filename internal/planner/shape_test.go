package planner

import (
	"reflect"
	"testing"
)

func TestChooseSubarrayShape1D(t *testing.T) {
	// Scenario 1 from: dimension t len 100 axis T, float32,
	// max_subarray_size 4096 — the whole array already fits.
	S := []int64{100}
	classes := []AxisClass{AxisT}
	U := ChooseSubarrayShape(S, classes, 4, 4096)
	if got, want := U, []int64{100}; !reflect.DeepEqual(got, want) {
		t.Fatalf("ChooseSubarrayShape = %v, want %v", got, want)
	}
}

func TestChooseSubarrayShape2DBalance(t *testing.T) {
	// Scenario 2 from: y(200,Y), x(200,X), float32, M=40000.
	S := []int64{200, 200}
	classes := []AxisClass{AxisY, AxisX}
	U := ChooseSubarrayShape(S, classes, 4, 40000)
	if got, want := U, []int64{100, 100}; !reflect.DeepEqual(got, want) {
		t.Fatalf("ChooseSubarrayShape = %v, want %v", got, want)
	}
	pm := PMShape(S, U)
	if got, want := pm, []int64{2, 2}; !reflect.DeepEqual(got, want) {
		t.Fatalf("PMShape = %v, want %v", got, want)
	}
}

func TestChooseSubarrayShapeBudget(t *testing.T) {
	// Planner budget property: prod(U)*elemSize <= M always holds.
	cases := []struct {
		S []int64
		classes []AxisClass
		elem int64
		max int64
	}{
		{[]int64{1000}, []AxisClass{AxisT}, 8, 4096},
		{[]int64{50, 50, 50}, []AxisClass{AxisT, AxisY, AxisX}, 4, 10000},
		{[]int64{365, 10, 720, 1440}, []AxisClass{AxisT, AxisZ, AxisY, AxisX}, 4, 50 * 1024 * 1024},
	}
	for _, c := range cases {
		U := ChooseSubarrayShape(c.S, c.classes, c.elem, c.max)
		got := c.elem
		for _, u := range U {
			got *= u
		}
		if got > c.max {
			t.Errorf("shape %v exceeds budget: %d*%v = %d > %d", c.S, c.elem, U, got, c.max)
		}
		for i := range U {
			if U[i] > c.S[i] {
				t.Errorf("axis %d: subarray shape %d exceeds master shape %d", i, U[i], c.S[i])
			}
		}
	}
}

func TestChooseSubarrayShapeDeterministic(t *testing.T) {
	S := []int64{365, 10, 720, 1440}
	classes := []AxisClass{AxisT, AxisZ, AxisY, AxisX}
	first := ChooseSubarrayShape(S, classes, 4, 50*1024*1024)
	for i := 0; i < 5; i++ {
		again := ChooseSubarrayShape(S, classes, 4, 50*1024*1024)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("ChooseSubarrayShape not deterministic: %v vs %v", first, again)
		}
	}
}

func TestInferAxisClassesRankDefaults(t *testing.T) {
	hints := []DimensionHint{{Name: "a"}, {Name: "b"}}
	classes := InferAxisClasses(hints)
	if got, want := classes, []AxisClass{AxisY, AxisX}; !reflect.DeepEqual(got, want) {
		t.Fatalf("InferAxisClasses = %v, want %v", got, want)
	}
}

func TestInferAxisClassesNameHeuristics(t *testing.T) {
	hints := []DimensionHint{{Name: "time"}, {Name: "level"}, {Name: "latitude"}, {Name: "longitude"}}
	classes := InferAxisClasses(hints)
	want := []AxisClass{AxisT, AxisZ, AxisY, AxisX}
	if !reflect.DeepEqual(classes, want) {
		t.Fatalf("InferAxisClasses = %v, want %v", classes, want)
	}
}

func TestInferAxisClassesExplicitWins(t *testing.T) {
	hints := []DimensionHint{{Name: "longitude", ExplicitAxis: AxisT}}
	classes := InferAxisClasses(hints)
	if classes[0] != AxisT {
		t.Fatalf("explicit axis class not honored: %v", classes)
	}
}
