package tsf

import (
	"encoding/binary"
	"math"
)

// Missing-value sentinels for the two floating point types. Declared
// here, next to the scalar readers that compare against them, rather
// than with the integer sentinels in types.go.
var (
	float32Missing = math.Float32frombits(0xFF7FFFFF) // -FLT_MAX
	float64Missing = math.Inf(-1)                      // -INF
)

// Value is a typed, already-materialized projection of one field read at
// one record. Only the field named by Type is meaningful; the rest are
// zero. Array fields are never null — an empty slice means size 0, not
// missing.
type Value struct {
	Type ValueType

	Int32   int32
	Int64   int64
	Float32 float32
	Float64 float64
	Bool    bool
	Str     string
	Enum    int32

	Int32s   []int32
	Float32s []float32
	Float64s []float64
	Bools    []bool
	Strs     []string
	Enums    []int32
}

// sizeOf returns the fixed byte width of one scalar element of t, or 0 if
// t is not a fixed-width scalar type.
func sizeOf(t ValueType) int {
	switch t {
	case Int32, Enum:
		return 4
	case Int64:
		return 8
	case Float32:
		return 4
	case Float64:
		return 8
	case Bool:
		return 1
	default:
		return 0
	}
}

// readScalar decodes the fixed-width scalar at the start of buf for value type t,
// reporting whether the bit pattern is the type's missing sentinel.
func readScalar(t ValueType, buf []byte) (Value, bool) {
	switch t {
	case Int32:
		v := int32(binary.LittleEndian.Uint32(buf))
		return Value{Type: Int32, Int32: v}, v == int32Missing
	case Enum:
		v := int32(binary.LittleEndian.Uint32(buf))
		return Value{Type: Enum, Enum: v}, v == int32Missing
	case Int64:
		v := int64(binary.LittleEndian.Uint64(buf))
		return Value{Type: Int64, Int64: v}, v == int64Missing
	case Float32:
		v := math.Float32frombits(binary.LittleEndian.Uint32(buf))
		return Value{Type: Float32, Float32: v}, v == float32Missing
	case Float64:
		v := math.Float64frombits(binary.LittleEndian.Uint64(buf))
		return Value{Type: Float64, Float64: v}, v == float64Missing
	case Bool:
		v := buf[0]
		return Value{Type: Bool, Bool: v != 0}, v == boolMissing
	default:
		return Value{}, false
	}
}

// isNullString reports whether s is TSF's representation of a missing
// string: empty, or the single character "?".
func isNullString(s string) bool {
	return s == "" || s == "?"
}

// cStringAt reads a NUL-terminated string starting at buf[0] and returns
// it along with the byte length consumed, including the terminator.
func cStringAt(buf []byte) (string, int) {
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i]), i + 1
		}
	}
	return string(buf), len(buf)
}

// fixedArrayElemSize returns the per-element byte width used by the
// backing scalar of an array ValueType (e.g. Int32Array elements are
// 4-byte ints).
func fixedArrayElemSize(t ValueType) int {
	switch t {
	case Int32Array, Float32Array, EnumArray:
		return 4
	case Float64Array:
		return 8
	case BoolArray:
		return 1
	default:
		return 0
	}
}

// isPaddedArray reports whether t's array header (a uint16 size) is
// followed by 2 bytes of padding before the 4-byte-aligned payload.
// Padding applies only to arrays of 4-byte scalars.
func isPaddedArray(t ValueType) bool {
	switch t {
	case Int32Array, Float32Array, EnumArray:
		return true
	default:
		return false
	}
}

// arrayHeaderSize returns the number of bytes consumed by an array
// element's size field (plus padding, if any) before its payload begins.
func arrayHeaderSize(t ValueType) int {
	if isPaddedArray(t) {
		return 4 // uint16 size + 2 bytes padding
	}
	return 2 // uint16 size
}

// readArrayLen reads the uint16 element count prefixing an array element
// at buf[0:2].
func readArrayLen(buf []byte) int {
	return int(binary.LittleEndian.Uint16(buf[:2]))
}

// decodeFixedArray builds a Value from a fixed-width array payload of n
// elements, for every array type except StringArray.
func decodeFixedArray(t ValueType, n int, payload []byte) Value {
	switch t {
	case Int32Array:
		out := make([]int32, n)
		for i := range out {
			out[i] = int32(binary.LittleEndian.Uint32(payload[i*4:]))
		}
		return Value{Type: Int32Array, Int32s: out}
	case EnumArray:
		out := make([]int32, n)
		for i := range out {
			out[i] = int32(binary.LittleEndian.Uint32(payload[i*4:]))
		}
		return Value{Type: EnumArray, Enums: out}
	case Float32Array:
		out := make([]float32, n)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:]))
		}
		return Value{Type: Float32Array, Float32s: out}
	case Float64Array:
		out := make([]float64, n)
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(payload[i*8:]))
		}
		return Value{Type: Float64Array, Float64s: out}
	case BoolArray:
		out := make([]bool, n)
		for i := range out {
			out[i] = payload[i] != 0
		}
		return Value{Type: BoolArray, Bools: out}
	default:
		return Value{}
	}
}

// decodeStringArray builds a Value from n NUL-terminated strings packed
// back to back in payload.
func decodeStringArray(n int, payload []byte) Value {
	out := make([]string, n)
	rest := payload
	for i := 0; i < n; i++ {
		s, consumed := cStringAt(rest)
		out[i] = s
		rest = rest[consumed:]
	}
	return Value{Type: StringArray, Strs: out}
}
