package tsf

import "encoding/binary"

// Compression methods encoded in the low two bits of a chunk header's
// third byte.
type compressionMethod byte

const (
	compressionInvalid compressionMethod = 0
	compressionZlib     compressionMethod = 1
	compressionBlosc     compressionMethod = 2
)

// headerSize is the fixed length of a chunk header.
const headerSize = 16

// chunkMagic is the two-byte magic every chunk blob must begin with.
var chunkMagic = [2]byte{0xFA, 0x01}

// chunkHeader is the 16-byte, little-endian chunk header: magic(2) |
// compression+reserved(1) | format(3) | type_size(2) | n(4) | reserved(4).
type chunkHeader struct {
	compression compressionMethod
	format      string // up to 3 bytes, null-padded in storage
	typeSize    int16  // uniform element size; 0 when elements aren't uniform
	n           int32  // number of logical records in the chunk
}

// parseHeader reads the fixed 16-byte header out of raw, returning the
// parsed header and the offset of the compressed body that follows it.
func parseHeader(raw []byte) (chunkHeader, int, error) {
	if len(raw) < headerSize {
		return chunkHeader{}, 0, ErrCorruptHeader
	}
	if raw[0] != chunkMagic[0] || raw[1] != chunkMagic[1] {
		return chunkHeader{}, 0, ErrCorruptHeader
	}

	h := chunkHeader{
		compression: compressionMethod(raw[2] & 0x03),
		typeSize:    int16(binary.LittleEndian.Uint16(raw[6:8])),
		n:           int32(binary.LittleEndian.Uint32(raw[8:12])),
	}

	formatBytes := raw[3:6]
	end := len(formatBytes)
	for end > 0 && formatBytes[end-1] == 0 {
		end--
	}
	h.format = string(formatBytes[:end])

	if valueTypeFromFormat(h.format) == Unknown {
		return chunkHeader{}, 0, ErrUnknownFormat
	}

	return h, headerSize, nil
}

// valueType returns the ValueType the header's format tag encodes. Only
// valid to call once parseHeader has succeeded.
func (h chunkHeader) valueType() ValueType {
	return valueTypeFromFormat(h.format)
}
