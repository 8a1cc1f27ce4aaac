package manifest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cfadata/cfa/internal/cfaerr"
)

// ReservedAttrCFRole, ReservedAttrCFADimensions and ReservedAttrCFAArray
// are the three reserved attributes a v4 field variable carries.
const (
	ReservedAttrCFRole = "cf_role"
	ReservedAttrCFADimensions = "cfa_dimensions"
	ReservedAttrCFAArray = "cfa_array"
	CFRoleValue = "cfa_variable"

	// ReservedAttrCFAGroup is the v5 equivalent.
	ReservedAttrCFAGroup = "cfa_group"

	// ReservedAttrConventions is the dataset-level global attribute
	// that must contain "CFA" to be recognised as partitioned.
	ReservedAttrConventions = "Conventions"
)

type jsonSubarray struct {
	NCVar string `json:"ncvar"`
	File string `json:"file"`
	Format string `json:"format"`
	Shape []int64 `json:"shape"`
}

type jsonPartition struct {
	Index []int64 `json:"index"`
	Location [][2]int64 `json:"location"`
	Subarray jsonSubarray `json:"subarray"`
}

type jsonCFAArray struct {
	PMShape []int64 `json:"pmshape"`
	PMDimensions string `json:"pmdimensions"`
	Base string `json:"base,omitempty"`
	Partitions []jsonPartition `json:"Partitions"`
}

var formatTags = map[ContainerFormat]string{
	FormatClassic: "classic",
	FormatClassic64Offset: "64-bit-offset",
	FormatClassic64Data: "64-bit-data",
	FormatModernV4: "modern-v4",
	FormatModernV5: "modern-v5",
}

var tagFormats = func() map[string]ContainerFormat {
	m := map[string]ContainerFormat{}
	for f, tag := range formatTags {
		m[tag] = f
	}
	return m
}()

func formatToTag(f ContainerFormat) string {
	if tag, ok := formatTags[f]; ok {
		return tag
	}
	return "unknown"
}

func tagToFormat(tag string) ContainerFormat {
	if f, ok := tagFormats[tag]; ok {
		return f
	}
	return FormatUnknown
}

// pmDimensionNames synthesizes the pmdimensions string (space
// separated, one synthetic name per partition-matrix axis) the way
// the CFA convention expects — these are internal index-dimension
// names, distinct from the variable's real dimensions (cfa_dimensions).
func pmDimensionNames(rank int) string {
	names := make([]string, rank)
	for i := range names {
		names[i] = fmt.Sprintf("j_%d", i)
	}
	return strings.Join(names, " ")
}

// EncodeV4 serializes v's partition table to the compact JSON
// document stored in the cfa_array reserved attribute.
// It also returns the cfa_dimensions attribute value. Only defined
// partitions are serialized.
func EncodeV4(v *Variable) (cfaArray []byte, cfaDimensions string, err error) {
	doc := jsonCFAArray{
		PMShape: v.PMShape,
		PMDimensions: pmDimensionNames(len(v.PMShape)),
	}
	if v.BasePath != "" {
		doc.Base = v.BasePath
	}
	for _, rec := range v.Partitions.Defined() {
		doc.Partitions = append(doc.Partitions, jsonPartition{
			Index: rec.Index,
			Location: rec.Location,
			Subarray: jsonSubarray{
				NCVar: rec.Subarray.NCVar,
				File: rec.Subarray.File,
				Format: formatToTag(rec.Subarray.Format),
				Shape: rec.Subarray.Shape,
			},
		})
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, "", err
	}
	return data, strings.Join(v.Dims, " "), nil
}

// DecodeV4 parses a cfa_array JSON document into a fresh
// PartitionTable, tolerating a missing "base" key and rejecting a
// missing "Partitions" key or a partition missing its subarray shape,
// document.
func DecodeV4(locator string, data []byte) (table *PartitionTable, pmShape []int64, base string, err error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, "", cfaerr.ManifestParse(locator, "cfa_array is not valid JSON", err)
	}
	if _, ok := raw["Partitions"]; !ok {
		return nil, nil, "", cfaerr.ManifestParse(locator, "cfa_array missing required key \"Partitions\"", nil)
	}
	var doc jsonCFAArray
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, "", cfaerr.ManifestParse(locator, "cfa_array does not match expected structure", err)
	}
	t := newPartitionTable(doc.PMShape)
	for _, p := range doc.Partitions {
		if len(p.Subarray.Shape) == 0 {
			return nil, nil, "", cfaerr.ManifestParse(locator, "partition missing required subarray shape", nil)
		}
		t.Set(PartitionRecord{
			Index: p.Index,
			Location: p.Location,
			Subarray: SubarrayRef{
				NCVar: p.Subarray.NCVar,
				File: p.Subarray.File,
				Format: tagToFormat(p.Subarray.Format),
				Shape: p.Subarray.Shape,
			},
		})
	}
	return t, doc.PMShape, doc.Base, nil
}

// IsPartitionedV4 reports whether a variable's cf_role attribute
// marks it as a CFA field variable. Coordinate variables never carry
// this attribute and are never treated as partitioned.
func IsPartitionedV4(attrs map[string]string) bool {
	return attrs[ReservedAttrCFRole] == CFRoleValue
}

// ConventionsContainCFA reports whether a Conventions string contains
// the substring "CFA", the read-time recognition test.
func ConventionsContainCFA(conventions string) bool {
	return strings.Contains(conventions, "CFA")
}

// AppendConvention appends "CFA-0.4" or "CFA-0.5" (matching schema)
// to an existing Conventions value.
func AppendConvention(existing string, schema SchemaVersion) string {
	tag := "CFA-0.4"
	if schema == SchemaV5 {
		tag = "CFA-0.5"
	}
	if existing == "" {
		return tag
	}
	return existing + " " + tag
}
