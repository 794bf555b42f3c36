// Package tsf is a read-only access library for TSF, a columnar, chunked
// binary catalog format for tabular scientific data. A TSF file is a
// SQLite catalog describing one or more sources; field data live as
// compressed chunked columns in companion tables within the same catalog.
//
// Open a file with Open, iterate a source's fields with QueryTable, and
// always Close the FileHandle once every Iterator borrowed from it has
// been closed.
package tsf

import "strconv"

// ValueType is the closed enumeration of scalar and array element types a
// field's chunks may encode.
type ValueType int

// Value types. Unknown is the zero value and marks an unparseable format
// code.
const (
	Unknown ValueType = iota
	Int32
	Int64
	Float32
	Float64
	Bool
	String
	Enum
	Int32Array
	Float32Array
	Float64Array
	BoolArray
	StringArray
	EnumArray
)

func (v ValueType) String() string {
	switch v {
	case Int32:
		return "Int32"
	case Int64:
		return "Int64"
	case Float32:
		return "Float32"
	case Float64:
		return "Float64"
	case Bool:
		return "Bool"
	case String:
		return "String"
	case Enum:
		return "Enum"
	case Int32Array:
		return "Int32Array"
	case Float32Array:
		return "Float32Array"
	case Float64Array:
		return "Float64Array"
	case BoolArray:
		return "BoolArray"
	case StringArray:
		return "StringArray"
	case EnumArray:
		return "EnumArray"
	default:
		return "Unknown"
	}
}

// IsArray reports whether v is one of the variable-length array types.
// Array values are never null; an empty array is size 0 instead.
func (v ValueType) IsArray() bool {
	switch v {
	case Int32Array, Float32Array, Float64Array, BoolArray, StringArray, EnumArray:
		return true
	default:
		return false
	}
}

// valueTypeFromFormat maps the 3-byte ASCII format code out of a chunk
// header (short and long aliases both accepted) to a ValueType. Returns
// Unknown for anything unrecognized.
func valueTypeFromFormat(format string) ValueType {
	switch format {
	case "?":
		return Bool
	case "i", "i4":
		return Int32
	case "i8":
		return Int64
	case "f", "f4":
		return Float32
	case "f8":
		return Float64
	case "s":
		return String
	case "e":
		return Enum
	case "@i", "@i4":
		return Int32Array
	case "@f", "@f4":
		return Float32Array
	case "@f8":
		return Float64Array
	case "@?":
		return BoolArray
	case "@s":
		return StringArray
	case "@e":
		return EnumArray
	default:
		return Unknown
	}
}

// FieldLayout is the closed enumeration of field layout flavors. All
// fields read by one iteration query must share a layout.
type FieldLayout int

const (
	// LocusAttribute is a column over the locus dimension.
	LocusAttribute FieldLayout = iota
	// EntityAttribute is a column over the entity dimension.
	EntityAttribute
	// Matrix is two-dimensional: one value per (locus, entity) pair.
	Matrix
	// SparseArray is a LocusAttribute variant marked by the sentinel
	// locus index map string "SPARSE_ARRAY".
	SparseArray
)

func (f FieldLayout) String() string {
	switch f {
	case LocusAttribute:
		return "LocusAttribute"
	case EntityAttribute:
		return "EntityAttribute"
	case Matrix:
		return "Matrix"
	case SparseArray:
		return "SparseArray"
	default:
		return "FieldLayout(" + strconv.Itoa(int(f)) + ")"
	}
}

// Missing-value sentinels. Array types have no sentinel: an empty array
// is represented by a zero element count instead.
const (
	boolMissing = 2 // third state in a one-byte bool

	int32Missing = int32(-2147483648) // INT_MIN

	int64Missing = int64(-9223372036854775807) // -INT64_MAX
)

// float32Missing and float64Missing are declared in valueview.go next to
// the IEEE-754 bit patterns they're built from (-FLT_MAX / -Inf).

// idxIsID is the locus/entity index-map sentinel string meaning "no
// indirection: the field's own chunk table is addressed directly by the
// record id".
const idxIsID = "IDX_IS_ID"

// sparseArraySentinel is the locus index-map string that marks a
// LocusAttribute field as a SparseArray instead.
const sparseArraySentinel = "SPARSE_ARRAY"
