package planner

import "strings"

// AxisClass classifies a dimension along the T/Z/Y/X/N/U axis taxonomy
// axis classes. U (unclassified) must be resolved by InferAxisClasses
// before a shape can be planned.
type AxisClass byte

const (
	AxisUnclassified AxisClass = iota
	AxisT
	AxisZ
	AxisY
	AxisX
	AxisN
)

func (a AxisClass) String() string {
	switch a {
	case AxisT:
		return "T"
	case AxisZ:
		return "Z"
	case AxisY:
		return "Y"
	case AxisX:
		return "X"
	case AxisN:
		return "N"
	default:
		return "U"
	}
}

// DimensionHint carries what a caller may already know about a
// dimension: an explicit axis attribute and/or its name, used by
// InferAxisClasses in that priority order.
type DimensionHint struct {
	Name string
	ExplicitAxis AxisClass // AxisUnclassified if not set explicitly
}

var nameSubstrings = []struct {
	substr string
	class AxisClass
}{
	{"time", AxisT},
	{"level", AxisZ},
	{"lat", AxisY},
	{"lon", AxisX},
}

func classifyName(name string) AxisClass {
	lower := strings.ToLower(name)
	if len(lower) <= 2 {
		switch lower {
		case "t":
			return AxisT
		case "z":
			return AxisZ
		case "y":
			return AxisY
		case "x":
			return AxisX
		}
	}
	for _, ns := range nameSubstrings {
		if strings.Contains(lower, ns.substr) {
			return ns.class
		}
	}
	return AxisUnclassified
}

// ClassifyAxis resolves a single dimension's axis class from its
// explicit attribute or name heuristics only, without the rank-based
// defaulting InferAxisClasses applies across a whole variable's
// dimension list. Used when a dimension is classified in isolation
// (reconstructing it from storage, before any variable references it).
func ClassifyAxis(hint DimensionHint) AxisClass {
	if hint.ExplicitAxis != AxisUnclassified {
		return hint.ExplicitAxis
	}
	return classifyName(hint.Name)
}

// rankDefaults gives the fallback axis-class vector for a rank when
// every dimension classifies as N.
var rankDefaults = map[int][]AxisClass{
	1: {AxisT},
	2: {AxisY, AxisX},
	3: {AxisT, AxisY, AxisX},
	4: {AxisT, AxisZ, AxisY, AxisX},
}

// InferAxisClasses resolves an axis class for every dimension of a
// field variable, following the ordered policy:
// explicit attribute, then name heuristics, then (only if every axis
// has resolved to N, an explicit N included) rank-based defaults.
func InferAxisClasses(hints []DimensionHint) []AxisClass {
	classes := make([]AxisClass, len(hints))
	allN := true
	for i, h := range hints {
		switch {
		case h.ExplicitAxis != AxisUnclassified:
			classes[i] = h.ExplicitAxis
		default:
			classes[i] = classifyName(h.Name)
		}
		if classes[i] == AxisUnclassified {
			classes[i] = AxisN
		}
		if classes[i] != AxisN {
			allN = false
		}
	}
	if allN {
		if defaults, ok := rankDefaults[len(hints)]; ok {
			copy(classes, defaults)
		}
	}
	return classes
}
