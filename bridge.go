package cfa

import (
	"encoding/json"
	"strings"

	"github.com/cfadata/cfa/internal/cfaerr"
	"github.com/cfadata/cfa/internal/container"
	"github.com/cfadata/cfa/internal/manifest"
	"github.com/cfadata/cfa/internal/planner"
)

// encodeManifestInto rebuilds c's group tree from ds, the way Close
// commits every in-memory manifest mutation to the container that gets
// flushed to the backend. Global attributes carrying the CFA
// recognition marker and, per field variable, the reserved cf_role /
// cfa_dimensions / cfa_array (v4) or cfa_group (v5) attributes, follow
// the convention ConventionsContainCFA/IsPartitionedV4 read back.
func encodeManifestInto(c *container.Container, ds *manifest.Dataset) error {
	root := container.NewGroup("/")
	root.Attrs[manifest.ReservedAttrConventions] = manifest.AppendConvention("", ds.Schema)

	for _, name := range ds.ListGroups() {
		g, err := ds.Group(name)
		if err != nil {
			return err
		}
		cg, err := encodeGroupInto(g, ds.Schema)
		if err != nil {
			return err
		}
		if name == manifest.RootGroupName {
			mergeIntoRoot(root, cg)
		} else {
			root.PutGroup(cg)
		}
	}
	c.Root = root
	return nil
}

// mergeIntoRoot folds the encoded root group's dimensions, variables
// and sub-containers directly into the container's top-level group,
// since the manifest's "root" group and the container's "/" group are
// the same entity.
func mergeIntoRoot(root, encodedRoot *container.Group) {
	for name, d := range encodedRoot.Dimensions {
		root.Dimensions[name] = d
	}
	for _, name := range encodedRoot.VariableNames() {
		root.PutVariable(encodedRoot.Variables[name])
	}
	for _, name := range encodedRoot.GroupNames() {
		root.PutGroup(encodedRoot.Groups[name])
	}
}

func encodeGroupInto(g *manifest.Group, schema manifest.SchemaVersion) (*container.Group, error) {
	cg := container.NewGroup(g.Name)
	for _, dname := range g.ListDimensions() {
		dim, err := g.Dimension(dname)
		if err != nil {
			return nil, err
		}
		length := dim.Length
		unlimited := length == manifest.UnlimitedLength
		if unlimited {
			length = 0
		}
		cg.Dimensions[dname] = container.Dim{Length: length, Unlimited: unlimited}
	}

	for _, vname := range g.ListVariables() {
		v, err := g.Variable(vname)
		if err != nil {
			return nil, err
		}
		cv := &container.Var{Name: v.Name, ElemType: v.ElemType, Dims: v.Dims, Attrs: map[string]string{}}

		if v.Role == manifest.RoleCoordinate {
			dim, err := g.Dimension(v.Name)
			if err != nil {
				return nil, err
			}
			if dim.Axis != planner.AxisUnclassified {
				cv.Attrs["axis"] = dim.Axis.String()
			}
			if v.CoordinateValues != nil {
				data, err := container.EncodeElems(v.ElemType, v.CoordinateValues)
				if err != nil {
					return nil, err
				}
				cv.Data = data
				cv.Shape = []int64{dim.Length}
			}
		} else {
			cv.Shape = v.Shape
			cv.Attrs[manifest.ReservedAttrCFRole] = manifest.CFRoleValue
			switch schema {
			case manifest.SchemaV5:
				cv.Attrs[manifest.ReservedAttrCFAGroup] = manifest.SubContainerName(v.Name)
				cv.Attrs[manifest.ReservedAttrCFADimensions] = strings.Join(v.Dims, " ")
				sub, err := encodeV5SubContainer(v)
				if err != nil {
					return nil, err
				}
				cg.PutGroup(sub)
			default:
				cfaArray, cfaDimensions, err := manifest.EncodeV4(v)
				if err != nil {
					return nil, err
				}
				cv.Attrs[manifest.ReservedAttrCFAArray] = string(cfaArray)
				cv.Attrs[manifest.ReservedAttrCFADimensions] = cfaDimensions
			}
		}
		cg.PutVariable(cv)
	}
	return cg, nil
}

// subContainerAttr is the reserved attribute name the v5 sub-container
// group carries its structured partition columns under. container.Group
// has no typed columnar storage of its own, so the columns travel as a
// JSON blob the way cfa_array already does for v4.
const subContainerAttr = "cfa_subcontainer"

func encodeV5SubContainer(v *manifest.Variable) (*container.Group, error) {
	sub := container.NewGroup(manifest.SubContainerName(v.Name))
	sc := manifest.EncodeV5(v)
	data, err := json.Marshal(sc)
	if err != nil {
		return nil, err
	}
	sub.Attrs[subContainerAttr] = string(data)
	return sub, nil
}

// decodeManifestFromContainer reconstructs a manifest.Dataset from a
// decoded container, the inverse of encodeManifestInto. Real groups
// are every sub-group of root not named "cfa_<variable>" (those are v5
// partition sub-containers, consumed inline when their owning field
// variable is decoded).
func decodeManifestFromContainer(c *container.Container, name string) (*manifest.Dataset, error) {
	conventions := c.Root.Attrs[manifest.ReservedAttrConventions]
	schema := manifest.SchemaV4
	if strings.Contains(conventions, "CFA-0.5") {
		schema = manifest.SchemaV5
	}

	ds, err := manifest.NewDataset(name, c.Format, schema)
	if err != nil {
		return nil, err
	}
	if err := decodeGroupInto(ds.Root(), c.Root, schema); err != nil {
		return nil, err
	}
	for _, subName := range c.Root.GroupNames() {
		if strings.HasPrefix(subName, "cfa_") {
			continue
		}
		g, err := ds.CreateGroup(subName)
		if err != nil {
			return nil, err
		}
		if err := decodeGroupInto(g, c.Root.Groups[subName], schema); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func decodeGroupInto(g *manifest.Group, cg *container.Group, schema manifest.SchemaVersion) error {
	coordElem := map[string]manifest.ElemType{}
	coordAxis := map[string]planner.AxisClass{}
	coordVar := map[string]*container.Var{}

	for _, vname := range cg.VariableNames() {
		cv := cg.Variables[vname]
		if manifest.IsPartitionedV4(cv.Attrs) || cv.Attrs[manifest.ReservedAttrCFAGroup] != "" {
			continue
		}
		coordElem[vname] = cv.ElemType
		coordAxis[vname] = planner.ClassifyAxis(planner.DimensionHint{Name: vname, ExplicitAxis: parseAxis(cv.Attrs["axis"])})
		coordVar[vname] = cv
	}

	for dname, dim := range cg.Dimensions {
		elemType, ok := coordElem[dname]
		if !ok {
			elemType = manifest.Float64
		}
		axis := coordAxis[dname]
		if axis == planner.AxisUnclassified {
			axis = planner.ClassifyAxis(planner.DimensionHint{Name: dname})
		}
		length := dim.Length
		if dim.Unlimited {
			length = manifest.UnlimitedLength
		}
		if _, err := g.CreateDimension(dname, length, axis, elemType); err != nil {
			return err
		}
	}

	for dname, cv := range coordVar {
		variable, err := g.CreateCoordinateVariable(dname)
		if err != nil {
			return err
		}
		if len(cv.Data) > 0 {
			values, err := decodeTyped(cv.ElemType, cv.Data, int64(len(cv.Data))/cv.ElemType.Size())
			if err != nil {
				return err
			}
			variable.CoordinateValues = values
		}
	}

	for _, vname := range cg.VariableNames() {
		cv := cg.Variables[vname]
		if _, isCoord := coordElem[vname]; isCoord {
			continue
		}
		if !manifest.IsPartitionedV4(cv.Attrs) && cv.Attrs[manifest.ReservedAttrCFAGroup] == "" {
			continue
		}
		if err := decodeFieldVariableInto(g, cg, cv, schema); err != nil {
			return err
		}
	}
	return nil
}

func decodeFieldVariableInto(g *manifest.Group, cg *container.Group, cv *container.Var, schema manifest.SchemaVersion) error {
	dims := strings.Fields(cv.Attrs[manifest.ReservedAttrCFADimensions])

	var pmShape []int64
	var partitions *manifest.PartitionTable
	var err error

	if schema == manifest.SchemaV5 {
		sub, ok := cg.Groups[manifest.SubContainerName(cv.Name)]
		if !ok {
			return cfaerr.ManifestParse(g.Dataset.Name, "missing v5 sub-container for variable "+cv.Name, nil)
		}
		var sc manifest.V5SubContainer
		if err := json.Unmarshal([]byte(sub.Attrs[subContainerAttr]), &sc); err != nil {
			return cfaerr.ManifestParse(g.Dataset.Name, "parsing v5 sub-container for "+cv.Name, err)
		}
		partitions, pmShape, err = manifest.DecodeV5(g.Dataset.Name, &sc)
	} else {
		partitions, pmShape, _, err = manifest.DecodeV4(g.Dataset.Name, []byte(cv.Attrs[manifest.ReservedAttrCFAArray]))
	}
	if err != nil {
		return err
	}

	shape := make([]int64, len(dims))
	for i, dn := range dims {
		dim, err := g.Dimension(dn)
		if err != nil {
			return err
		}
		shape[i] = dim.Length
	}
	subarrayShape := make([]int64, len(shape))
	for i := range shape {
		subarrayShape[i] = ceilDiv(shape[i], pmShape[i])
	}

	v, err := g.CreateFieldVariable(cv.Name, cv.ElemType, dims, subarrayShape)
	if err != nil {
		return err
	}
	for _, rec := range partitions.Defined() {
		v.Partitions.Set(rec)
	}
	return nil
}

func parseAxis(s string) planner.AxisClass {
	switch s {
	case "T":
		return planner.AxisT
	case "Z":
		return planner.AxisZ
	case "Y":
		return planner.AxisY
	case "X":
		return planner.AxisX
	case "N":
		return planner.AxisN
	default:
		return planner.AxisUnclassified
	}
}

func ceilDiv(a, b int64) int64 {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}
