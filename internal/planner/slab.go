package planner

import (
	"fmt"

	"github.com/cfadata/cfa/internal/cfaerr"
)

// AxisRange is one [start, stop, step] triple of a hyperslab request,
// both bounds inclusive.
type AxisRange struct {
	Start, Stop, Step int64
}

// Span is an inclusive [Lo, Hi] integer range stepped by Step: the
// elements it covers are Lo, Lo+Step, Lo+2*Step, ..., up to and
// including Hi. Step<=0 is treated as 1 (a plain contiguous range),
// so zero-value Spans built before striding existed keep behaving the
// way they always did.
type Span struct {
	Lo, Hi, Step int64
}

// Len returns the number of elements the span covers.
func (s Span) Len() int64 {
	step := s.Step
	if step <= 0 {
		step = 1
	}
	return (s.Hi-s.Lo)/step + 1
}

// Touch is one (partition, source-slice, target-slice) tuple produced
// by PlanSlab for a single touched partition.
type Touch struct {
	Index []int64 // partition-matrix index vector
	Location []Span // per-axis location in master-array index space
	Shape []int64 // actual (possibly boundary-shortened) subarray shape
	Source []Span // per-axis slice into the subarray
	Target []Span // per-axis slice into the user buffer (zero-based)
}

// NormalizeSlab fills in defaults ([0, S[i]-1, 1]) for any axes the
// caller left unspecified (a shorter request slice addresses the
// leading axes; trailing axes default), and validates bounds.
func NormalizeSlab(S []int64, req []AxisRange, locator string) ([]AxisRange, error) {
	if len(req) > len(S) {
		return nil, cfaerr.DimensionMismatch(locator, fmt.Sprintf("slab has %d axes, variable has rank %d", len(req), len(S)))
	}
	full := make([]AxisRange, len(S))
	copy(full, req)
	for i := len(req); i < len(S); i++ {
		full[i] = AxisRange{Start: 0, Stop: S[i] - 1, Step: 1}
	}
	for i, r := range full {
		if r.Step <= 0 {
			return nil, cfaerr.IndexOutOfRange(locator, fmt.Sprintf("axis %d: step must be positive, got %d", i, r.Step))
		}
		if r.Start < 0 || r.Stop < r.Start || r.Stop > S[i]-1 {
			return nil, cfaerr.IndexOutOfRange(locator, fmt.Sprintf("axis %d: range [%d,%d] out of bounds for length %d", i, r.Start, r.Stop, S[i]))
		}
	}
	return full, nil
}

// PlanSlab computes the set of touched partitions for a hyperslab
// request against a variable of master shape S and subarray shape U,
// req must already be normalized (NormalizeSlab).
func PlanSlab(S, U []int64, req []AxisRange) []Touch {
	n := len(S)
	pLo := make([]int64, n)
	pHi := make([]int64, n)
	for i, r := range req {
		pLo[i] = r.Start / U[i]
		pHi[i] = r.Stop / U[i]
	}

	var touches []Touch
	idx := make([]int64, n)
	copy(idx, pLo)
	for {
		if t, ok := buildTouch(S, U, req, idx); ok {
			touches = append(touches, t)
		}

		// odometer increment over [pLo[i], pHi[i]]
		i := n - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] <= pHi[i] {
				break
			}
			idx[i] = pLo[i]
		}
		if i < 0 {
			break
		}
	}
	return touches
}

// buildTouch computes one partition's touch. Per axis, the selected
// (strided) elements of req are the sequence start, start+step,
// start+2*step, ...; ok is false when none of that sequence falls
// inside this partition (the partition-index range PlanSlab iterates
// is derived from Start/Stop alone, so a strided request can still
// visit a partition it never actually selects anything from).
func buildTouch(S, U []int64, req []AxisRange, idx []int64) (Touch, bool) {
	n := len(S)
	location := make([]Span, n)
	shape := make([]int64, n)
	source := make([]Span, n)
	target := make([]Span, n)

	for i := range idx {
		lo := idx[i] * U[i]
		hi := lo + U[i] - 1
		if hi > S[i]-1 {
			hi = S[i] - 1
		}
		location[i] = Span{Lo: lo, Hi: hi}
		shape[i] = hi - lo + 1

		start, stop, step := req[i].Start, req[i].Stop, req[i].Step

		// kMin: smallest k with start+k*step >= lo (0 if start already
		// covers it). kMax: largest k with start+k*step <= hi, capped
		// at the sequence's own last index.
		kMin := int64(0)
		if lo > start {
			kMin = (lo - start + step - 1) / step
		}
		kMax := (hi - start) / step
		if kMaxGlobal := (stop - start) / step; kMax > kMaxGlobal {
			kMax = kMaxGlobal
		}
		if kMin > kMax {
			return Touch{}, false
		}

		target[i] = Span{Lo: kMin, Hi: kMax, Step: 1}
		source[i] = Span{Lo: start + kMin*step - lo, Hi: start + kMax*step - lo, Step: step}
	}

	index := make([]int64, n)
	copy(index, idx)

	return Touch{Index: index, Location: location, Shape: shape, Source: source, Target: target}, true
}

// ResultShape returns the shape of the buffer a slab request
// produces: the step-compacted element count per axis. PlanSlab's own
// Touch.Source/Touch.Target spans are built against this same stepped
// sequence, so every touch's target falls inside a buffer of this shape.
func ResultShape(req []AxisRange) []int64 {
	shape := make([]int64, len(req))
	for i, r := range req {
		shape[i] = (r.Stop-r.Start)/r.Step + 1
	}
	return shape
}
