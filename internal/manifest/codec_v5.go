package manifest

import (
	"fmt"

	"github.com/cfadata/cfa/internal/cfaerr"
)

// V5SubContainer is the structured partition layout:
// small parallel arrays living in a sibling sub-container named
// "cfa_<variable>", one entry per defined partition.
type V5SubContainer struct {
	PMShape []int64
	PMDimensions string
	Index [][]int64 // [n][rank]
	Location [][][2]int64 // [n][rank][2]
	NCVar []string // [n]
	File []string // [n]
	Format []string // [n]
	Shape [][]int64 // [n][rank]
}

// SubContainerName returns the sibling sub-container name for
// variable v: cfa_group="cfa_<varname>".
func SubContainerName(variable string) string {
	return "cfa_" + variable
}

// EncodeV5 projects v's defined partitions into the column-oriented
// sub-container layout.
func EncodeV5(v *Variable) *V5SubContainer {
	defined := v.Partitions.Defined()
	sc := &V5SubContainer{
		PMShape: v.PMShape,
		PMDimensions: pmDimensionNames(len(v.PMShape)),
	}
	for _, rec := range defined {
		sc.Index = append(sc.Index, rec.Index)
		sc.Location = append(sc.Location, rec.Location)
		sc.NCVar = append(sc.NCVar, rec.Subarray.NCVar)
		sc.File = append(sc.File, rec.Subarray.File)
		sc.Format = append(sc.Format, formatToTag(rec.Subarray.Format))
		sc.Shape = append(sc.Shape, rec.Subarray.Shape)
	}
	return sc
}

// DecodeV5 rebuilds a PartitionTable from a structured sub-container,
// rejecting missing required columns (shape) the same way DecodeV4
// does for the compact layout.
func DecodeV5(locator string, sc *V5SubContainer) (*PartitionTable, []int64, error) {
	n := len(sc.File)
	if len(sc.Shape) != n {
		return nil, nil, cfaerr.ManifestParse(locator, "cfa sub-container missing required \"shape\" column", nil)
	}
	if len(sc.Index) != n || len(sc.Location) != n || len(sc.NCVar) != n || len(sc.Format) != n {
		return nil, nil, cfaerr.ManifestParse(locator, fmt.Sprintf("cfa sub-container columns have mismatched lengths (n=%d)", n), nil)
	}
	t := newPartitionTable(sc.PMShape)
	for i := 0; i < n; i++ {
		t.Set(PartitionRecord{
			Index: sc.Index[i],
			Location: sc.Location[i],
			Subarray: SubarrayRef{
				NCVar: truncateAtNull(sc.NCVar[i]),
				File: truncateAtNull(sc.File[i]),
				Format: tagToFormat(sc.Format[i]),
				Shape: sc.Shape[i],
			},
		})
	}
	return t, sc.PMShape, nil
}

// truncateAtNull implements "strings stored in fixed-width
// character arrays are truncated on the first null byte when decoded".
func truncateAtNull(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return s[:i]
		}
	}
	return s
}
