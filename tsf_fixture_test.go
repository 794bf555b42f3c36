package tsf

import (
	"bytes"
	"compress/zlib"
	"database/sql"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// fixtureChunk builds a zlib-compressed chunk blob: the 16-byte header
// described in chunkheader.go, followed by a 4-byte big-endian
// uncompressed-size prefix and a standard zlib stream. Standard
// compress/zlib is used here only to generate test fixtures; production
// decoding goes through klauspost/compress/zlib (chunk.go), which reads
// the same wire format.
func fixtureChunk(t *testing.T, format string, typeSize int16, n int32, payload []byte) []byte {
	t.Helper()

	header := make([]byte, headerSize)
	header[0], header[1] = chunkMagic[0], chunkMagic[1]
	header[2] = byte(compressionZlib)
	copy(header[3:6], format)
	binary.LittleEndian.PutUint16(header[6:8], uint16(typeSize))
	binary.LittleEndian.PutUint32(header[8:12], uint32(n))

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(payload); err != nil {
		t.Fatalf("compress fixture payload: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zlib writer: %v", err)
	}

	sizePrefix := make([]byte, 4)
	binary.BigEndian.PutUint32(sizePrefix, uint32(len(payload)))

	out := make([]byte, 0, len(header)+len(sizePrefix)+compressed.Len())
	out = append(out, header...)
	out = append(out, sizePrefix...)
	out = append(out, compressed.Bytes()...)
	return out
}

func int32LEPayload(vals ...int32) []byte {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
	}
	return buf
}

// fixtureField is one field row for newFixtureCatalog, which builds a
// minimal SQLite catalog at a temp path with one source, a chunk_tbl
// backing table, and the given field rows, returning the opened
// FileHandle. chunkRows maps chunk_id to a pre-built blob via
// fixtureChunk.
type fixtureField struct {
	fieldID       int
	tableFieldIdx int
	fieldType     string
	locusIdxMap   string
	entityIdxMap  string
	fieldMeta     string
}

func newFixtureCatalog(t *testing.T, entityDim, locusDim, chunkBits int, fields []fixtureField, chunkRows map[int64][]byte) *FileHandle {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.tsf")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open fixture db: %v", err)
	}

	ddl := []string{
		`CREATE TABLE source (id INTEGER PRIMARY KEY, name TEXT, entity_dim INTEGER, locus_dim INTEGER, uuid TEXT, curated TEXT, docs TEXT, source_meta TEXT)`,
		`CREATE TABLE tbl (id INTEGER PRIMARY KEY, table_uri TEXT, table_format TEXT, table_meta TEXT)`,
		`CREATE TABLE field (field_id INTEGER PRIMARY KEY, source_id INTEGER, table_id INTEGER, locus_idx_map TEXT, entity_idx_map TEXT, field_table_idx INTEGER, field_type TEXT, field_meta TEXT)`,
		`CREATE TABLE idx (field_id INTEGER, idx_type TEXT, query_table_name TEXT, data_table_id INTEGER, idx_meta TEXT)`,
		`CREATE TABLE chunk_tbl (chunk_id INTEGER PRIMARY KEY, chunk BLOB)`,
	}
	for _, stmt := range ddl {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}

	tableMeta := fixtureTableMeta(chunkBits)
	if _, err := db.Exec(`INSERT INTO tbl (id, table_uri, table_format, table_meta) VALUES (1, 'table:chunk_tbl=chunked&', 'chunked', ?)`, tableMeta); err != nil {
		t.Fatalf("insert tbl: %v", err)
	}

	if _, err := db.Exec(
		`INSERT INTO source (id, name, entity_dim, locus_dim, uuid, curated, docs, source_meta) VALUES (1, 'fixture', ?, ?, 'uuid-fixture', '2026-01-01', '{}', '{}')`,
		entityDim, locusDim,
	); err != nil {
		t.Fatalf("insert source: %v", err)
	}

	for _, f := range fields {
		meta := f.fieldMeta
		if meta == "" {
			meta = "{}"
		}
		if _, err := db.Exec(
			`INSERT INTO field (field_id, source_id, table_id, locus_idx_map, entity_idx_map, field_table_idx, field_type, field_meta) VALUES (?, 1, 1, ?, ?, ?, ?, ?)`,
			f.fieldID, f.locusIdxMap, f.entityIdxMap, f.tableFieldIdx, f.fieldType, meta,
		); err != nil {
			t.Fatalf("insert field: %v", err)
		}
	}

	for chunkID, blob := range chunkRows {
		if _, err := db.Exec(`INSERT INTO chunk_tbl (chunk_id, chunk) VALUES (?, ?)`, chunkID, blob); err != nil {
			t.Fatalf("insert chunk %d: %v", chunkID, err)
		}
	}

	if err := db.Close(); err != nil {
		t.Fatalf("close fixture db: %v", err)
	}

	fh := Open(path, nil)
	if fh.Errmsg != "" {
		t.Fatalf("Open fixture: %s", fh.Errmsg)
	}
	return fh
}

func fixtureTableMeta(chunkBits int) string {
	return fmt.Sprintf(`{"chunk_bits": %d, "field_count": 2, "record_count": 64}`, chunkBits)
}
