package tsf

import "errors"

// Sentinel errors for the catalog and chunk operations below. Open/Prepare
// errors attach to FileHandle.Errmsg rather than surfacing through these
// values; the rest are returned (optionally wrapped with call-site
// context) from the operations that can produce them.
var (
	// ErrOpenFailed indicates the catalog connection could not be
	// established. FileHandle is still returned with Errmsg populated.
	ErrOpenFailed = errors.New("tsf: open failed")

	// ErrPrepareFailed indicates a per-chunk-table prepared statement
	// could not be built.
	ErrPrepareFailed = errors.New("tsf: prepare failed")

	// ErrCorruptHeader indicates a chunk blob is shorter than the
	// 16-byte header or its magic bytes don't match.
	ErrCorruptHeader = errors.New("tsf: corrupt chunk header")

	// ErrUnknownFormat indicates a chunk header's format tag does not
	// map to a known value type.
	ErrUnknownFormat = errors.New("tsf: unknown chunk format code")

	// ErrCorruptData indicates a compressed chunk body failed to
	// decompress to its declared size.
	ErrCorruptData = errors.New("tsf: corrupt chunk data")

	// ErrOutOfMemory indicates the decompressor reported it could not
	// allocate its declared uncompressed size.
	ErrOutOfMemory = errors.New("tsf: decompressor out of memory")

	// ErrShortBuffer indicates the declared uncompressed size was not
	// enough to hold the decompressed bytes.
	ErrShortBuffer = errors.New("tsf: decompression short buffer")

	// ErrUnknownCompression indicates a chunk header's compression
	// method is neither zlib nor Blosc.
	ErrUnknownCompression = errors.New("tsf: unknown compression method")

	// ErrUnsupportedIndirection indicates a field declares a locus
	// index map but its value type is neither Int32 nor Enum.
	ErrUnsupportedIndirection = errors.New("tsf: unsupported indirection value type")

	// ErrInconsistentFieldTypes indicates the fields passed to
	// QueryTable do not all share one FieldLayout.
	ErrInconsistentFieldTypes = errors.New("tsf: inconsistent field layouts")

	// ErrOutOfRange indicates a positional read fell outside a chunk's
	// record count.
	ErrOutOfRange = errors.New("tsf: offset out of range")
)
