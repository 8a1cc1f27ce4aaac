package cfa

import (
	"fmt"

	"github.com/cfadata/cfa/internal/container"
	"github.com/cfadata/cfa/internal/manifest"
	"github.com/cfadata/cfa/internal/planner"
	"github.com/cfadata/cfa/internal/resource"
)

// rowMajorStrides mirrors the manifest package's own private helper:
// per-axis element strides for a row-major shape.
func rowMajorStrides(shape []int64) []int64 {
	strides := make([]int64, len(shape))
	acc := int64(1)
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= shape[i]
	}
	return strides
}

func fullSpan(shape []int64) []planner.Span {
	spans := make([]planner.Span, len(shape))
	for i, s := range shape {
		spans[i] = planner.Span{Lo: 0, Hi: s - 1}
	}
	return spans
}

// forEachRow walks every combination of the outer (all but last) axes
// of region, calling fn once per combination; the caller handles the
// last (contiguous) axis itself as a single run.
func forEachRow(rank int, region []planner.Span, fn func(outer []int64)) {
	n := rank - 1
	if n <= 0 {
		fn(nil)
		return
	}
	lens := make([]int64, n)
	for i := 0; i < n; i++ {
		lens[i] = region[i].Len()
	}
	idx := make([]int64, n)
	for {
		cp := append([]int64(nil), idx...)
		fn(cp)
		i := n - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < lens[i] {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			break
		}
	}
}

// spanStep returns region's configured stride, or 1 for the
// zero-value (unset) case.
func spanStep(s planner.Span) int64 {
	if s.Step <= 0 {
		return 1
	}
	return s.Step
}

// spanAt returns the k-th element region addresses (k=0 is Lo).
func spanAt(s planner.Span, k int64) int64 {
	return s.Lo + k*spanStep(s)
}

func rowOffsetElems(shape []int64, region []planner.Span, outer []int64) int64 {
	strides := rowMajorStrides(shape)
	var off int64
	for i := range outer {
		off += spanAt(region[i], outer[i]) * strides[i]
	}
	last := len(shape) - 1
	off += spanAt(region[last], 0) * strides[last]
	return off
}

// lastAxisElemStride returns the element stride (not byte stride)
// between successive positions along region's last axis, accounting
// for both the shape's row-major stride and the axis's own Step.
func lastAxisElemStride(shape []int64, region []planner.Span) int64 {
	strides := rowMajorStrides(shape)
	last := len(shape) - 1
	return strides[last] * spanStep(region[last])
}

func runLen(region []planner.Span) int64 {
	return region[len(region)-1].Len()
}

// copyBytesRaw copies the overlap region (dstRegion in dst's index
// space, srcRegion in src's, both of equal per-axis length by
// construction) between two flat row-major byte buffers. Either
// region's last axis may be strided (Span.Step > 1); the contiguous
// case (both Step 1) still copies a whole row at once.
func copyBytesRaw(dst []byte, dstShape []int64, dstRegion []planner.Span, src []byte, srcShape []int64, srcRegion []planner.Span, elemSize int64) error {
	rank := len(dstShape)
	if len(srcShape) != rank {
		return fmt.Errorf("copyBytesRaw: rank mismatch %d != %d", rank, len(srcShape))
	}
	count := runLen(dstRegion)
	dStride := lastAxisElemStride(dstShape, dstRegion) * elemSize
	sStride := lastAxisElemStride(srcShape, srcRegion) * elemSize
	var copyErr error
	forEachRow(rank, dstRegion, func(outer []int64) {
		if copyErr != nil {
			return
		}
		dOff := rowOffsetElems(dstShape, dstRegion, outer) * elemSize
		sOff := rowOffsetElems(srcShape, srcRegion, outer) * elemSize
		if dStride == elemSize && sStride == elemSize {
			n := count * elemSize
			if dOff+n > int64(len(dst)) || sOff+n > int64(len(src)) {
				copyErr = fmt.Errorf("copyBytesRaw: region out of bounds")
				return
			}
			copy(dst[dOff:dOff+n], src[sOff:sOff+n])
			return
		}
		for k := int64(0); k < count; k++ {
			d := dOff + k*dStride
			s := sOff + k*sStride
			if d+elemSize > int64(len(dst)) || s+elemSize > int64(len(src)) {
				copyErr = fmt.Errorf("copyBytesRaw: region out of bounds")
				return
			}
			copy(dst[d:d+elemSize], src[s:s+elemSize])
		}
	})
	return copyErr
}

// fillRegionRaw sets every element of dst's region (the whole shape if
// region is nil) to a one-element pattern, repeated.
func fillRegionRaw(dst []byte, dstShape []int64, region []planner.Span, elemSize int64, pattern []byte) {
	if region == nil {
		region = fullSpan(dstShape)
	}
	rank := len(dstShape)
	run := runLen(region)
	rowBytes := make([]byte, run*elemSize)
	for i := int64(0); i < run; i++ {
		copy(rowBytes[i*elemSize:], pattern)
	}
	forEachRow(rank, region, func(outer []int64) {
		off := rowOffsetElems(dstShape, region, outer) * elemSize
		copy(dst[off:off+int64(len(rowBytes))], rowBytes)
	})
}

// copyBytesRegion writes src's dstRegion-matching overlap directly
// into a resource.Buffer, used for the result buffer of ReadSlab
// (which may be disk-backed, hence the WriteAt indirection instead of
// a plain slice). srcRegion's last axis may be strided, in which case
// each element is written individually.
func copyBytesRegion(buf resource.Buffer, dstShape []int64, dstRegion []planner.Span, src []byte, srcShape []int64, srcRegion []planner.Span, elemSize int64) error {
	rank := len(dstShape)
	count := runLen(dstRegion)
	dStride := lastAxisElemStride(dstShape, dstRegion) * elemSize
	sStride := lastAxisElemStride(srcShape, srcRegion) * elemSize
	var writeErr error
	forEachRow(rank, dstRegion, func(outer []int64) {
		if writeErr != nil {
			return
		}
		dOff := rowOffsetElems(dstShape, dstRegion, outer) * elemSize
		sOff := rowOffsetElems(srcShape, srcRegion, outer) * elemSize
		if dStride == elemSize && sStride == elemSize {
			n := count * elemSize
			if sOff+n > int64(len(src)) {
				writeErr = fmt.Errorf("copyBytesRegion: source region out of bounds")
				return
			}
			if _, err := buf.WriteAt(src[sOff:sOff+n], dOff); err != nil {
				writeErr = err
			}
			return
		}
		for k := int64(0); k < count; k++ {
			s := sOff + k*sStride
			if s+elemSize > int64(len(src)) {
				writeErr = fmt.Errorf("copyBytesRegion: source region out of bounds")
				return
			}
			d := dOff + k*dStride
			if _, err := buf.WriteAt(src[s:s+elemSize], d); err != nil {
				writeErr = err
				return
			}
		}
	})
	return writeErr
}

func fillRegionBytes(buf resource.Buffer, dstShape []int64, region []planner.Span, elemSize int64, pattern []byte) error {
	rank := len(dstShape)
	run := runLen(region)
	rowBytes := make([]byte, run*elemSize)
	for i := int64(0); i < run; i++ {
		copy(rowBytes[i*elemSize:], pattern)
	}
	var writeErr error
	forEachRow(rank, region, func(outer []int64) {
		if writeErr != nil {
			return
		}
		off := rowOffsetElems(dstShape, region, outer) * elemSize
		if _, err := buf.WriteAt(rowBytes, off); err != nil {
			writeErr = err
		}
	})
	return writeErr
}

func readAllBytes(buf resource.Buffer, n int64) ([]byte, error) {
	if data := buf.Bytes(); data != nil {
		return data, nil
	}
	out := make([]byte, n)
	if _, err := buf.ReadAt(out, 0); err != nil {
		return nil, err
	}
	return out, nil
}

// encodeFillValue returns the one-element byte pattern a never-written
// partition's area is filled with: the variable's configured fill
// value if set, else the zero value for its element type.
func encodeFillValue(elemType manifest.ElemType, fillValue interface{}) []byte {
	if fillValue == nil {
		return make([]byte, elemType.Size())
	}
	switch elemType {
	case manifest.Float32:
		if v, ok := fillValue.(float32); ok {
			data, _ := container.EncodeElems(elemType, []float32{v})
			return data
		}
	case manifest.Float64:
		if v, ok := fillValue.(float64); ok {
			data, _ := container.EncodeElems(elemType, []float64{v})
			return data
		}
	case manifest.Int32:
		if v, ok := fillValue.(int32); ok {
			data, _ := container.EncodeElems(elemType, []int32{v})
			return data
		}
	case manifest.Int64:
		if v, ok := fillValue.(int64); ok {
			data, _ := container.EncodeElems(elemType, []int64{v})
			return data
		}
	case manifest.Int16:
		if v, ok := fillValue.(int16); ok {
			data, _ := container.EncodeElems(elemType, []int16{v})
			return data
		}
	case manifest.Int8:
		if v, ok := fillValue.(int8); ok {
			data, _ := container.EncodeElems(elemType, []int8{v})
			return data
		}
	}
	return make([]byte, elemType.Size())
}

// decodeTyped unpacks n row-major elements of elemType from data.
func decodeTyped(elemType manifest.ElemType, data []byte, n int64) (interface{}, error) {
	switch elemType {
	case manifest.Float32:
		return container.DecodeFloat32s(data, int(n)), nil
	case manifest.Float64:
		return container.DecodeFloat64s(data, int(n)), nil
	case manifest.Int32:
		return container.DecodeInt32s(data, int(n)), nil
	case manifest.Int64:
		return container.DecodeInt64s(data, int(n)), nil
	case manifest.Int16:
		return container.DecodeInt16s(data, int(n)), nil
	case manifest.Int8:
		return container.DecodeInt8s(data, int(n)), nil
	default:
		return nil, fmt.Errorf("decodeTyped: unsupported element type %q", elemType)
	}
}

func joinLocator(datasetLocator, relative string) string {
	dir := dirOf(datasetLocator)
	if dir == "" {
		return relative
	}
	return dir + "/" + relative
}

func dirOf(locator string) string {
	for i := len(locator) - 1; i >= 0; i-- {
		if locator[i] == '/' {
			return locator[:i]
		}
	}
	return ""
}
