package container

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cfadata/cfa/internal/manifest"
)

// EncodeElems packs a flat, row-major slice of typed values into raw
// bytes for storage in a Var.Data field. Supported element types are
// the fixed-width numeric kinds from manifest.ElemType; String
// elements are handled by EncodeStrings/DecodeStrings instead.
func EncodeElems(elemType manifest.ElemType, values interface{}) ([]byte, error) {
	switch elemType {
	case manifest.Float32:
		vals, ok := values.([]float32)
		if !ok {
			return nil, fmt.Errorf("EncodeElems: want []float32, got %T", values)
		}
		buf := make([]byte, 4*len(vals))
		for i, v := range vals {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
		}
		return buf, nil
	case manifest.Float64:
		vals, ok := values.([]float64)
		if !ok {
			return nil, fmt.Errorf("EncodeElems: want []float64, got %T", values)
		}
		buf := make([]byte, 8*len(vals))
		for i, v := range vals {
			binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
		}
		return buf, nil
	case manifest.Int32:
		vals, ok := values.([]int32)
		if !ok {
			return nil, fmt.Errorf("EncodeElems: want []int32, got %T", values)
		}
		buf := make([]byte, 4*len(vals))
		for i, v := range vals {
			binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
		}
		return buf, nil
	case manifest.Int64:
		vals, ok := values.([]int64)
		if !ok {
			return nil, fmt.Errorf("EncodeElems: want []int64, got %T", values)
		}
		buf := make([]byte, 8*len(vals))
		for i, v := range vals {
			binary.LittleEndian.PutUint64(buf[i*8:], uint64(v))
		}
		return buf, nil
	case manifest.Int16:
		vals, ok := values.([]int16)
		if !ok {
			return nil, fmt.Errorf("EncodeElems: want []int16, got %T", values)
		}
		buf := make([]byte, 2*len(vals))
		for i, v := range vals {
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
		}
		return buf, nil
	case manifest.Int8:
		vals, ok := values.([]int8)
		if !ok {
			return nil, fmt.Errorf("EncodeElems: want []int8, got %T", values)
		}
		buf := make([]byte, len(vals))
		for i, v := range vals {
			buf[i] = byte(v)
		}
		return buf, nil
	default:
		return nil, fmt.Errorf("EncodeElems: unsupported element type %q", elemType)
	}
}

// DecodeFloat32s unpacks a []float32 of n elements from data.
func DecodeFloat32s(data []byte, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

// DecodeFloat64s unpacks a []float64 of n elements from data.
func DecodeFloat64s(data []byte, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return out
}

// DecodeInt32s unpacks a []int32 of n elements from data.
func DecodeInt32s(data []byte, n int) []int32 {
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

// DecodeInt64s unpacks a []int64 of n elements from data.
func DecodeInt64s(data []byte, n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return out
}

// DecodeInt16s unpacks a []int16 of n elements from data.
func DecodeInt16s(data []byte, n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out
}

// DecodeInt8s unpacks a []int8 of n elements from data.
func DecodeInt8s(data []byte, n int) []int8 {
	out := make([]int8, n)
	for i := range out {
		out[i] = int8(data[i])
	}
	return out
}

// EncodeStrings packs a slice of strings into a fixed-width char
// array of width w per entry, null-padded, matching the v5 on-wire
// convention (truncateAtNull on decode).
func EncodeStrings(vals []string, width int) []byte {
	buf := make([]byte, width*len(vals))
	for i, s := range vals {
		n := copy(buf[i*width:(i+1)*width], s)
		_ = n
	}
	return buf
}

// DecodeStrings unpacks n fixed-width strings of width w from data,
// truncating each at its first null byte.
func DecodeStrings(data []byte, n, width int) []string {
	out := make([]string, n)
	for i := range out {
		raw := data[i*width : (i+1)*width]
		end := width
		for j, b := range raw {
			if b == 0 {
				end = j
				break
			}
		}
		out[i] = string(raw[:end])
	}
	return out
}
