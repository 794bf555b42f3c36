package tsf

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// newIndirectionFixture builds a catalog with two backing tables: own_tbl
// (the field's own table, holding the real values) and idx_tbl (holding
// Int32 indices that substitute for a record id into own_tbl), wiring a
// LocusAttribute field whose locus_idx_map names idx_tbl by its 1-based
// catalog table id, the same numeric form real TSF catalogs store.
func newIndirectionFixture(t *testing.T) *FileHandle {
	t.Helper()

	path := filepath.Join(t.TempDir(), "indirect.tsf")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open fixture db: %v", err)
	}

	ddl := []string{
		`CREATE TABLE source (id INTEGER PRIMARY KEY, name TEXT, entity_dim INTEGER, locus_dim INTEGER, uuid TEXT, curated TEXT, docs TEXT, source_meta TEXT)`,
		`CREATE TABLE tbl (id INTEGER PRIMARY KEY, table_uri TEXT, table_format TEXT, table_meta TEXT)`,
		`CREATE TABLE field (field_id INTEGER PRIMARY KEY, source_id INTEGER, table_id INTEGER, locus_idx_map TEXT, entity_idx_map TEXT, field_table_idx INTEGER, field_type TEXT, field_meta TEXT)`,
		`CREATE TABLE idx (field_id INTEGER, idx_type TEXT, query_table_name TEXT, data_table_id INTEGER, idx_meta TEXT)`,
		`CREATE TABLE own_tbl (chunk_id INTEGER PRIMARY KEY, chunk BLOB)`,
		`CREATE TABLE idx_tbl (chunk_id INTEGER PRIMARY KEY, chunk BLOB)`,
	}
	for _, stmt := range ddl {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}

	meta := fixtureTableMeta(2) // chunk_bits 2, chunk size 4
	if _, err := db.Exec(`INSERT INTO tbl (id, table_uri, table_meta) VALUES (1, 'table:own_tbl=chunked&', ?)`, meta); err != nil {
		t.Fatalf("insert tbl own_tbl: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO tbl (id, table_uri, table_meta) VALUES (2, 'table:idx_tbl=chunked&', ?)`, meta); err != nil {
		t.Fatalf("insert tbl idx_tbl: %v", err)
	}

	if _, err := db.Exec(
		`INSERT INTO source (id, name, entity_dim, locus_dim, uuid, curated, docs, source_meta) VALUES (1, 'fixture', 2, 4, 'uuid', '2026-01-01', '{}', '{}')`,
	); err != nil {
		t.Fatalf("insert source: %v", err)
	}

	// The field's own table is table_id 1 (own_tbl), column slot 5. Its
	// locus_idx_map is "2:0": table id 2 (idx_tbl), column slot 0.
	if _, err := db.Exec(
		`INSERT INTO field (field_id, source_id, table_id, locus_idx_map, entity_idx_map, field_table_idx, field_type, field_meta) VALUES (1, 1, 1, '2:0', '', 5, 'i4', '{"name":"indirect"}')`,
	); err != nil {
		t.Fatalf("insert field: %v", err)
	}

	// idx_tbl: column slot 0, one chunk covering records 0-3, mapping
	// record 0 -> own_tbl record 2, record 1 -> own_tbl record 0, record
	// 2 -> missing (sentinel), record 3 -> own_tbl record 1.
	idxChunkID := composeChunkID(0, 2, 0)
	idxBlob := fixtureChunk(t, "i4", 4, 4, int32LEPayload(2, 0, int32Missing, 1))
	if _, err := db.Exec(`INSERT INTO idx_tbl (chunk_id, chunk) VALUES (?, ?)`, idxChunkID, idxBlob); err != nil {
		t.Fatalf("insert idx chunk: %v", err)
	}

	// own_tbl: column slot 5 (the field's own slot), one chunk covering
	// records 0-3, values distinguishable by record id.
	ownChunkID := composeChunkID(0, 2, 5)
	ownBlob := fixtureChunk(t, "i4", 4, 4, int32LEPayload(9000, 9001, 9002, 9003))
	if _, err := db.Exec(`INSERT INTO own_tbl (chunk_id, chunk) VALUES (?, ?)`, ownChunkID, ownBlob); err != nil {
		t.Fatalf("insert own chunk: %v", err)
	}

	if err := db.Close(); err != nil {
		t.Fatalf("close fixture db: %v", err)
	}

	fh := Open(path, nil)
	if fh.Errmsg != "" {
		t.Fatalf("Open: %s", fh.Errmsg)
	}
	return fh
}

func TestIndirection_ResolvesThroughIndexChunk(t *testing.T) {
	fh := newIndirectionFixture(t)
	defer fh.Close()

	src := fh.Sources[0]
	if src.Err != "" {
		t.Fatalf("source failed: %s", src.Err)
	}
	f, ok := src.FieldByID(1)
	if !ok {
		t.Fatal("field 1 not found")
	}
	if !f.HasIndirection() {
		t.Fatal("field 1 should have indirection")
	}

	r, err := newChunkResolver(fh, f)
	if err != nil {
		t.Fatalf("newChunkResolver: %v", err)
	}

	tests := []struct {
		record   int
		want     int32
		wantNull bool
	}{
		{0, 9002, false}, // record 0 -> backend record 2
		{1, 9000, false}, // record 1 -> backend record 0
		{2, 0, true},     // record 2 -> missing sentinel in idx chunk
		{3, 9001, false}, // record 3 -> backend record 1
	}
	for _, tt := range tests {
		v, isNull, err := r.valueAt(tt.record, f.TableFieldIdx)
		if err != nil {
			t.Fatalf("valueAt(%d): %v", tt.record, err)
		}
		if isNull != tt.wantNull {
			t.Errorf("valueAt(%d).isNull = %v, want %v", tt.record, isNull, tt.wantNull)
		}
		if !isNull && v.Int32 != tt.want {
			t.Errorf("valueAt(%d) = %d, want %d", tt.record, v.Int32, tt.want)
		}
	}
}

func TestIndirection_UnsupportedValueType(t *testing.T) {
	f := Field{
		ValueType:        Float32,
		locusIdxMapTable: 0,
		locusIdxMapField: 0,
	}
	fh := &FileHandle{chunkTables: []*chunkTable{{}}, opts: nil}
	if _, err := newChunkResolver(fh, f); err != ErrUnsupportedIndirection {
		t.Errorf("newChunkResolver = %v, want ErrUnsupportedIndirection", err)
	}
}
