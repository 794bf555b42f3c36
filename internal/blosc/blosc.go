// Package blosc decodes the Blosc frame envelope used by TSF chunks whose
// header reports CompressionBlosc. Only the frame header and the
// deflate-compatible block layout TSF catalogs produce are supported; the
// full c-blosc family of internal block compressors (blosclz, lz4, zstd,
// snappy) is not implemented (see DESIGN.md). The chunk codec treats this
// package's Decompress as an opaque decompress(bytes)->bytes boundary.
package blosc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/klauspost/compress/flate"
)

// HeaderSize is the length, in bytes, of the Blosc frame header.
const HeaderSize = 16

// ErrShortFrame is returned when a frame is too small to hold a header.
var ErrShortFrame = errors.New("blosc: frame shorter than header")

// ErrSizeMismatch is returned when the header's declared compressed size
// disagrees with the actual frame length, or the decompressed output
// disagrees with the declared uncompressed size.
var ErrSizeMismatch = errors.New("blosc: declared size does not match frame")

// Sizes holds the three size fields a Blosc frame header declares, the
// same triple blosc_cbuffer_sizes returns in the original C library.
type Sizes struct {
	NBytes    int // declared uncompressed size
	BlockSize int // declared block size
	CBytes    int // declared compressed size, including the header
}

// ReadSizes parses the 16-byte Blosc frame header without decompressing.
func ReadSizes(frame []byte) (Sizes, error) {
	if len(frame) < HeaderSize {
		return Sizes{}, ErrShortFrame
	}
	return Sizes{
		NBytes:    int(binary.LittleEndian.Uint32(frame[4:8])),
		BlockSize: int(binary.LittleEndian.Uint32(frame[8:12])),
		CBytes:    int(binary.LittleEndian.Uint32(frame[12:16])),
	}, nil
}

// Decompress validates the frame header against the supplied body length
// and returns the decompressed payload, failing with ErrSizeMismatch if
// the declared compressed size disagrees with len(frame) or the decoded
// size disagrees with the declared uncompressed size.
func Decompress(frame []byte) ([]byte, error) {
	sizes, err := ReadSizes(frame)
	if err != nil {
		return nil, err
	}
	if sizes.CBytes != len(frame) {
		return nil, ErrSizeMismatch
	}
	if sizes.NBytes == 0 {
		return []byte{}, nil
	}

	body := frame[HeaderSize:]
	r := flate.NewReader(bytes.NewReader(body))
	defer r.Close()

	out := make([]byte, sizes.NBytes)
	n, err := io.ReadFull(r, out)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	if n != sizes.NBytes {
		return nil, ErrSizeMismatch
	}
	// Output beyond the declared size is also a mismatch.
	var extra [1]byte
	if m, _ := r.Read(extra[:]); m > 0 {
		return nil, ErrSizeMismatch
	}
	return out, nil
}
