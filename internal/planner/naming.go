package planner

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

// SubarrayName computes the deterministic subarray filename:
// <dataset-basename>/<dataset-basename>[.<group>].<variable>.<k0>.<k1>....<ext>.
// group may be empty for the root group, in which case the ".<group>"
// segment is omitted.
func SubarrayName(datasetPath, group, variable string, index []int64, ext string) string {
	base := path.Base(datasetPath)
	var b strings.Builder
	b.WriteString(base)
	if group != "" && group != "root" {
		b.WriteByte('.')
		b.WriteString(group)
	}
	b.WriteByte('.')
	b.WriteString(variable)
	for _, k := range index {
		b.WriteByte('.')
		b.WriteString(strconv.FormatInt(k, 10))
	}
	b.WriteByte('.')
	b.WriteString(ext)
	return path.Join(base, b.String())
}

// PMShape returns the partition-matrix shape implied by a master
// shape and subarray shape: ceil(S[i]/U[i]) per axis.
func PMShape(S, U []int64) []int64 {
	pm := make([]int64, len(S))
	for i := range S {
		pm[i] = ceilDiv(S[i], U[i])
	}
	return pm
}

// CheckTiling validates the field-variable tiling invariant:
// pm_shape[i]*subarray_shape[i] >= master_shape[i] >
// (pm_shape[i]-1)*subarray_shape[i], for every axis.
func CheckTiling(S, U, pm []int64) error {
	if len(S) != len(U) || len(S) != len(pm) {
		return fmt.Errorf("rank mismatch: shape=%d subarray=%d pmshape=%d", len(S), len(U), len(pm))
	}
	for i := range S {
		if pm[i]*U[i] < S[i] {
			return fmt.Errorf("axis %d: pmshape*subarray (%d) < master shape (%d)", i, pm[i]*U[i], S[i])
		}
		if S[i] <= (pm[i]-1)*U[i] {
			return fmt.Errorf("axis %d: master shape (%d) <= (pmshape-1)*subarray (%d)", i, S[i], (pm[i]-1)*U[i])
		}
	}
	return nil
}
