package tsf

import (
	"database/sql"
	"fmt"
)

// chunkTable is the immutable metadata and prepared point query for one
// catalog table backing chunked column storage.
type chunkTable struct {
	id           int
	isChunkTable bool
	name         string
	chunkBits    int
	chunkSize    int
	fieldCount   int
	recordCount  int

	stmt *sql.Stmt // SELECT chunk FROM <name> WHERE chunk_id = ?
}

// prepare builds t's point query against db.
func (t *chunkTable) prepare(db *sql.DB) error {
	stmt, err := db.Prepare(fmt.Sprintf("SELECT chunk FROM %s WHERE chunk_id = ?", t.name))
	if err != nil {
		return fmt.Errorf("%w: chunk table %q: %v", ErrPrepareFailed, t.name, err)
	}
	t.stmt = stmt
	return nil
}

// close releases the prepared statement.
func (t *chunkTable) close() error {
	if t.stmt == nil {
		return nil
	}
	return t.stmt.Close()
}

// fetch retrieves the raw compressed blob for chunkID, returning (nil,
// nil) when the catalog has no row for it — an empty iteration result,
// not an error.
func (t *chunkTable) fetch(chunkID int64) ([]byte, error) {
	var blob []byte
	err := t.stmt.QueryRow(chunkID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("chunk table %q: fetch %d: %w", t.name, chunkID, err)
	}
	return blob, nil
}

// readChunk fetches and decodes the chunk at chunkID from t, returning a
// nil chunk (not an error) when the catalog has no row for it.
func (t *chunkTable) readChunk(chunkID int64) (*chunk, error) {
	blob, err := t.fetch(chunkID)
	if err != nil {
		return nil, err
	}
	if blob == nil {
		return nil, nil
	}
	return decodeChunk(chunkID, blob)
}

// composeChunkID builds the 64-bit chunk id for recordID within a chunk
// table addressed with chunkBits bits, and the given column slot (a
// field's table_field_idx, or an entity id for Matrix fields): the high
// bits hold the record range, the low 32 bits hold the column slot.
func composeChunkID(recordID, chunkBits int, columnSlot int32) int64 {
	return int64(recordID>>chunkBits)<<32 | int64(uint32(columnSlot))
}
