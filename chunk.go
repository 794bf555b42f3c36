package tsf

import (
	"bytes"
	"encoding/binary"
	"io"

	kzlib "github.com/klauspost/compress/zlib"

	"github.com/goldenhelix/tsf-go/internal/blosc"
)

// maxReasonableChunkBytes bounds the uncompressed size we'll attempt to
// allocate for one chunk, guarding against a corrupt or hostile size
// field the way pe.File guards COFF symbol/relocation counts with
// MaxDefaultCOFFSymbolsCount.
const maxReasonableChunkBytes = 256 << 20

// chunk is a materialized (decompressed) chunk buffer plus the amortized
// cursor used to scan variable-length elements.
type chunk struct {
	id          int64
	valueType   ValueType
	header      chunkHeader
	data        []byte
	recordCount int32

	// Amortized forward cursor for variable-length element scans: the
	// element index and the byte position in data it corresponds to.
	curOffset int
	curPos    int
}

// decodeChunk parses and decompresses a raw chunk blob fetched from a
// chunk table, producing a chunk ready for positional reads.
func decodeChunk(id int64, raw []byte) (*chunk, error) {
	h, bodyOff, err := parseHeader(raw)
	if err != nil {
		return nil, err
	}
	body := raw[bodyOff:]

	data, empty, err := decompressBody(h, body)
	if err != nil {
		return nil, err
	}

	recordCount := h.n
	if empty {
		recordCount = 0
	}

	return &chunk{
		id:          id,
		valueType:   h.valueType(),
		header:      h,
		data:        data,
		recordCount: recordCount,
	}, nil
}

// decompressBody dispatches on h.compression, returning the decompressed
// payload. empty is true when body was too short for its codec's minimum
// framing — not an error, but a signal that the chunk has zero records
// regardless of what the header's n field claims.
func decompressBody(h chunkHeader, body []byte) (data []byte, empty bool, err error) {
	switch h.compression {
	case compressionZlib:
		if len(body) < 4 {
			return nil, true, nil
		}
		expected := int(binary.BigEndian.Uint32(body[:4]))
		if expected < 0 || expected > maxReasonableChunkBytes {
			return nil, false, ErrOutOfMemory
		}
		data, err := zlibDecompress(body[4:], expected)
		if err != nil {
			return nil, false, err
		}
		return data, false, nil

	case compressionBlosc:
		if len(body) < blosc.HeaderSize {
			return nil, true, nil
		}
		sizes, err := blosc.ReadSizes(body)
		if err != nil {
			return nil, false, ErrCorruptData
		}
		if sizes.NBytes < 0 || sizes.NBytes > maxReasonableChunkBytes {
			return nil, false, ErrOutOfMemory
		}
		data, err := blosc.Decompress(body)
		if err != nil {
			return nil, false, ErrCorruptData
		}
		return data, false, nil

	default:
		return nil, false, ErrUnknownCompression
	}
}

// zlibDecompress inflates a zlib stream into exactly expected bytes,
// translating decoder failures into two distinct errors: CorruptData for
// a malformed stream, ShortBuffer when expected was too small to hold the
// real output.
func zlibDecompress(stream []byte, expected int) ([]byte, error) {
	zr, err := kzlib.NewReader(bytes.NewReader(stream))
	if err != nil {
		return nil, ErrCorruptData
	}
	defer zr.Close()

	out := make([]byte, expected)
	n, err := io.ReadFull(zr, out)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, ErrCorruptData
	}
	if n < expected {
		return nil, ErrCorruptData
	}

	// If more bytes remain after filling out, expected was too small.
	var extra [1]byte
	if m, _ := zr.Read(extra[:]); m > 0 {
		return nil, ErrShortBuffer
	}

	return out, nil
}

// valueAt reads the logical element at offset, decoding it per c.valueType
// and reporting whether the stored bit pattern is that type's missing
// sentinel (always false for array types). Returns ErrOutOfRange if
// offset falls outside the chunk's record count.
func (c *chunk) valueAt(offset int) (Value, bool, error) {
	if offset < 0 || offset >= int(c.recordCount) {
		return Value{}, false, ErrOutOfRange
	}

	switch c.valueType {
	case Int32, Int64, Float32, Float64, Bool, Enum:
		return c.fixedScalarAt(offset)
	case String:
		return c.stringAt(offset)
	case Int32Array, Float32Array, Float64Array, BoolArray, EnumArray:
		return c.fixedArrayAt(offset)
	case StringArray:
		return c.stringArrayAt(offset)
	default:
		return Value{}, false, ErrUnknownFormat
	}
}

func (c *chunk) fixedScalarAt(offset int) (Value, bool, error) {
	size := sizeOf(c.valueType)
	start := offset * size
	if start+size > len(c.data) {
		return Value{}, false, ErrOutOfRange
	}
	v, isNull := readScalar(c.valueType, c.data[start:start+size])
	return v, isNull, nil
}

// stringAt reads a String field, which is either uniformly sized
// (header.typeSize > 0, random access) or a NUL-delimited stream
// (header.typeSize == 0, amortized sequential access only).
func (c *chunk) stringAt(offset int) (Value, bool, error) {
	if c.header.typeSize > 0 {
		width := int(c.header.typeSize)
		start := offset * width
		if start+width > len(c.data) {
			return Value{}, false, ErrOutOfRange
		}
		s, _ := cStringAt(c.data[start : start+width])
		return Value{Type: String, Str: s}, isNullString(s), nil
	}

	c.resyncCursor(offset)
	for c.curOffset < offset {
		if c.curPos >= len(c.data) {
			return Value{}, false, ErrOutOfRange
		}
		_, consumed := cStringAt(c.data[c.curPos:])
		c.curPos += consumed
		c.curOffset++
	}
	if c.curPos > len(c.data) {
		return Value{}, false, ErrOutOfRange
	}
	s, _ := cStringAt(c.data[c.curPos:])
	return Value{Type: String, Str: s}, isNullString(s), nil
}

// fixedArrayAt reads a variable-length array of fixed-width elements
// (numeric, bool, enum) using the amortized forward cursor.
func (c *chunk) fixedArrayAt(offset int) (Value, bool, error) {
	c.resyncCursor(offset)
	hdrSize := arrayHeaderSize(c.valueType)
	elemSize := fixedArrayElemSize(c.valueType)

	for c.curOffset < offset {
		if c.curPos+hdrSize > len(c.data) {
			return Value{}, false, ErrOutOfRange
		}
		n := readArrayLen(c.data[c.curPos:])
		c.curPos += hdrSize + n*elemSize
		c.curOffset++
	}
	if c.curPos+hdrSize > len(c.data) {
		return Value{}, false, ErrOutOfRange
	}
	n := readArrayLen(c.data[c.curPos:])
	payloadStart := c.curPos + hdrSize
	if payloadStart+n*elemSize > len(c.data) {
		return Value{}, false, ErrOutOfRange
	}
	v := decodeFixedArray(c.valueType, n, c.data[payloadStart:payloadStart+n*elemSize])
	return v, false, nil
}

// stringArrayAt reads a variable-length array of NUL-terminated strings.
func (c *chunk) stringArrayAt(offset int) (Value, bool, error) {
	c.resyncCursor(offset)
	const hdrSize = 2

	for c.curOffset < offset {
		if c.curPos+hdrSize > len(c.data) {
			return Value{}, false, ErrOutOfRange
		}
		n := readArrayLen(c.data[c.curPos:])
		pos := c.curPos + hdrSize
		for j := 0; j < n; j++ {
			if pos > len(c.data) {
				return Value{}, false, ErrOutOfRange
			}
			_, consumed := cStringAt(c.data[pos:])
			pos += consumed
		}
		c.curPos = pos
		c.curOffset++
	}
	if c.curPos+hdrSize > len(c.data) {
		return Value{}, false, ErrOutOfRange
	}
	n := readArrayLen(c.data[c.curPos:])
	pos := c.curPos + hdrSize
	for j := 0; j < n; j++ {
		if pos > len(c.data) {
			return Value{}, false, ErrOutOfRange
		}
		_, consumed := cStringAt(c.data[pos:])
		pos += consumed
	}
	v := decodeStringArray(n, c.data[c.curPos+hdrSize:pos])
	return v, false, nil
}

// resyncCursor rewinds the amortized cursor to the start when a read
// requests an offset the cursor has already passed.
func (c *chunk) resyncCursor(offset int) {
	if c.curOffset > offset {
		c.curOffset = 0
		c.curPos = 0
	}
}
