package tsf

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/goldenhelix/tsf-go/log"
)

// OpenOptions configures Open. A nil *OpenOptions is equivalent to the
// zero value.
type OpenOptions struct {
	// Logger receives structured progress and diagnostic messages while
	// the catalog loads. Defaults to a discarding logger.
	Logger log.Logger

	// MaxBackendChunkCacheSize bounds the number of chunks an indirection
	// read keeps resident at once while collating one index chunk.
	// Defaults to 8 when zero.
	MaxBackendChunkCacheSize int

	// StrictFieldMeta causes Open to fail a source outright (populating
	// its Err) when a field's field_meta JSON cannot be parsed, instead
	// of the default of tolerating it and leaving that field's
	// documentation bag empty.
	StrictFieldMeta bool
}

func (o *OpenOptions) logger() log.Logger {
	if o != nil && o.Logger != nil {
		return o.Logger
	}
	return discardLogger{}
}

func (o *OpenOptions) backendCacheSize() int {
	if o != nil && o.MaxBackendChunkCacheSize > 0 {
		return o.MaxBackendChunkCacheSize
	}
	return 8
}

func (o *OpenOptions) strictFieldMeta() bool {
	return o != nil && o.StrictFieldMeta
}

type discardLogger struct{}

func (discardLogger) Log(log.Level, string) error { return nil }

// FileHandle is an open TSF catalog. The zero value is not usable; obtain
// one from Open and Close it once every Iterator borrowed from it has
// closed.
type FileHandle struct {
	db   *sql.DB
	log  *log.Helper
	opts *OpenOptions

	// Errmsg is non-empty when Open failed to establish the catalog
	// connection or to load the catalog's tables. Sources is then empty.
	Errmsg string

	Sources []Source

	chunkTables []*chunkTable
}

// Open opens the SQLite catalog at path and loads every source's schema.
// Open always returns a non-nil *FileHandle: on failure, Errmsg is set and
// Sources is empty, mirroring pe.New's "always return a usable handle"
// convention so callers can log a diagnostic without a nil check.
func Open(path string, opts *OpenOptions) *FileHandle {
	helper := log.NewHelper(opts.logger())

	fh := &FileHandle{log: helper, opts: opts}

	dsn := fmt.Sprintf("file:%s?mode=ro&_query_only=true", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		fh.Errmsg = fmt.Errorf("%w: %v", ErrOpenFailed, err).Error()
		helper.Errorf("open %s: %v", path, err)
		return fh
	}
	if err := db.Ping(); err != nil {
		fh.Errmsg = fmt.Errorf("%w: %v", ErrOpenFailed, err).Error()
		helper.Errorf("open %s: %v", path, err)
		db.Close()
		return fh
	}
	fh.db = db

	if err := fh.loadCatalog(); err != nil {
		fh.Errmsg = err.Error()
		helper.Errorf("load %s: %v", path, err)
		db.Close()
		fh.db = nil
		return fh
	}

	helper.Infof("opened %s: %d source(s)", path, len(fh.Sources))
	return fh
}

// Close releases the catalog connection and every prepared chunk table
// statement. Close is safe to call on a FileHandle returned with a
// non-empty Errmsg.
func (fh *FileHandle) Close() error {
	for _, t := range fh.chunkTables {
		if err := t.close(); err != nil {
			fh.log.Warnf("close chunk table %s: %v", t.name, err)
		}
	}
	if fh.db == nil {
		return nil
	}
	return fh.db.Close()
}

// loadCatalog reads the tbl, source, idx, and field tables and assembles
// fh.Sources, transcribing tsf_open_file's query sequence.
func (fh *FileHandle) loadCatalog() error {
	if err := fh.loadChunkTables(); err != nil {
		return err
	}

	rows, err := fh.db.Query(`SELECT id, name, entity_dim, locus_dim, uuid, curated, docs, source_meta FROM source`)
	if err != nil {
		return fmt.Errorf("query source: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var (
			id                       int
			name, uuid, dateCurated  string
			entityDim, locusDim      int
			docsJSON, sourceMetaJSON sql.NullString
		)
		if err := rows.Scan(&id, &name, &entityDim, &locusDim, &uuid, &dateCurated, &docsJSON, &sourceMetaJSON); err != nil {
			return fmt.Errorf("scan source: %w", err)
		}

		src := Source{
			ID:          id,
			Name:        name,
			UUID:        uuid,
			DateCurated: dateCurated,
			EntityCount: normalizeDim(entityDim),
			LocusCount:  normalizeDim(locusDim),
		}
		applyDocs(&src, docsJSON.String)
		applySourceMeta(&src, sourceMetaJSON.String)

		if err := fh.loadGidx(&src); err != nil {
			fh.log.Warnf("source %d (%s): gidx: %v", id, name, err)
		}

		fields, err := fh.loadFields(id)
		if err != nil {
			src.Err = err.Error()
			fh.log.Warnf("source %d (%s): %v", id, name, err)
		} else {
			src.Fields = fields
			assignSymbols(src.Fields)
		}

		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate source: %w", err)
	}

	fh.Sources = sources
	return nil
}

// normalizeDim maps the catalog's 0-means-unknown convention to -1.
func normalizeDim(n int) int {
	if n == 0 {
		return -1
	}
	return n
}

// docMeta mirrors the recognized keys of a source's docs JSON blob.
type docMeta struct {
	CuratedBy         string   `json:"curatedBy"`
	SeriesName        string   `json:"seriesName"`
	SourceVersion     string   `json:"sourceVersion"`
	DescriptionHTML   string   `json:"descriptionHtml"`
	SourceCreditHTML  string   `json:"sourceCreditHtml"`
	CurationNotesHTML string   `json:"curationNotesHtml"`
	PrimarySourceUUID string   `json:"primarySourceUuid"`
	HeaderLines       []string `json:"headerLines"`
}

func applyDocs(src *Source, raw string) {
	if raw == "" {
		return
	}
	var d docMeta
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return
	}
	src.CuratedBy = d.CuratedBy
	src.SeriesName = d.SeriesName
	src.SourceVersion = d.SourceVersion
	src.DescriptionHTML = d.DescriptionHTML
	src.CreditHTML = d.SourceCreditHTML
	src.NotesHTML = d.CurationNotesHTML
	src.PrimarySourceUUID = d.PrimarySourceUUID
	if len(d.HeaderLines) > 0 {
		src.HeaderLines = strings.Join(d.HeaderLines, "\n")
	}
}

// sourceMeta mirrors the recognized keys of a source's source_meta JSON
// blob.
type sourceMeta struct {
	FeaturesInGenomicOrder bool `json:"featuresInGenomicOrder"`
}

func applySourceMeta(src *Source, raw string) {
	if raw == "" {
		return
	}
	var m sourceMeta
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return
	}
	src.RecordsInGenomicOrder = m.FeaturesInGenomicOrder
}

// loadGidx looks for an idx_gidx row for src and, if present, fills in its
// genomic index query/data table names and coordinate system id. Absence
// of the idx table entirely, or of a matching row, is not an error.
func (fh *FileHandle) loadGidx(src *Source) error {
	rows, err := fh.db.Query(
		`SELECT query_table_name, data_table_id, idx_meta FROM idx
		 WHERE idx_type = 'idx_gidx' AND field_id IN (SELECT field_id FROM field WHERE source_id = ?)`,
		src.ID,
	)
	if err != nil {
		// The idx table may not exist in an older catalog; that's fine.
		return nil
	}
	defer rows.Close()

	for rows.Next() {
		var (
			queryTable string
			dataTable  int
			metaJSON   sql.NullString
		)
		if err := rows.Scan(&queryTable, &dataTable, &metaJSON); err != nil {
			return fmt.Errorf("scan idx: %w", err)
		}
		src.GidxQueryTable = queryTable
		for _, t := range fh.chunkTables {
			if t.id == dataTable {
				src.GidxDataTable = t.name
			}
		}
		if metaJSON.Valid {
			var m struct {
				CoordSysID string `json:"coordSysId"`
			}
			if json.Unmarshal([]byte(metaJSON.String), &m) == nil {
				src.CoordSysID = m.CoordSysID
			}
		}
		return nil
	}
	return rows.Err()
}

// loadChunkTables reads the tbl table and prepares a chunkTable for each
// row, transcribing the table_uri and table_meta parsing in tsf_open_file.
func (fh *FileHandle) loadChunkTables() error {
	rows, err := fh.db.Query(`SELECT id, table_uri, table_meta FROM tbl`)
	if err != nil {
		return fmt.Errorf("query tbl: %w", err)
	}
	defer rows.Close()

	var tables []*chunkTable
	for rows.Next() {
		var (
			id       int
			uri      string
			metaJSON sql.NullString
		)
		if err := rows.Scan(&id, &uri, &metaJSON); err != nil {
			return fmt.Errorf("scan tbl: %w", err)
		}

		name, err := tableNameFromURI(uri)
		if err != nil {
			return fmt.Errorf("tbl %d: %w", id, err)
		}

		t := &chunkTable{id: id, isChunkTable: true, name: name, chunkBits: 10}
		if metaJSON.Valid {
			var m struct {
				ChunkBits   int `json:"chunk_bits"`
				FieldCount  int `json:"field_count"`
				RecordCount int `json:"record_count"`
			}
			if err := json.Unmarshal([]byte(metaJSON.String), &m); err == nil {
				if m.ChunkBits > 0 {
					t.chunkBits = m.ChunkBits
				}
				t.fieldCount = m.FieldCount
				t.recordCount = m.RecordCount
			}
		}
		t.chunkSize = 1 << uint(t.chunkBits)

		if err := t.prepare(fh.db); err != nil {
			return err
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate tbl: %w", err)
	}

	fh.chunkTables = tables
	return nil
}

// tableNameFromURI extracts the backing table name from a tbl.table_uri
// value of the form "table:<name>=chunked&...".
func tableNameFromURI(uri string) (string, error) {
	eq := strings.IndexByte(uri, '=')
	if eq < 0 {
		return "", fmt.Errorf("malformed table_uri %q", uri)
	}
	rest := uri[:eq]
	colon := strings.LastIndexByte(rest, ':')
	if colon >= 0 {
		rest = rest[colon+1:]
	}
	if rest == "" {
		return "", fmt.Errorf("malformed table_uri %q", uri)
	}
	return rest, nil
}

// loadFields reads every field row for sourceID and resolves each one's
// layout, indirection, and documentation metadata.
func (fh *FileHandle) loadFields(sourceID int) ([]Field, error) {
	rows, err := fh.db.Query(
		`SELECT field_id, table_id, locus_idx_map, entity_idx_map, field_table_idx, field_type, field_meta
		 FROM field WHERE source_id = ?`,
		sourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("query field: %w", err)
	}
	defer rows.Close()

	var fields []Field
	for rows.Next() {
		var (
			fieldID, tableID, tableFieldIdx int
			locusIdxMap, entityIdxMap       string
			fieldType                       string
			metaJSON                        sql.NullString
		)
		if err := rows.Scan(&fieldID, &tableID, &locusIdxMap, &entityIdxMap, &tableFieldIdx, &fieldType, &metaJSON); err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}

		vt := valueTypeFromFormat(fieldType)
		if vt == Unknown {
			return nil, fmt.Errorf("%w: field %d: format %q", ErrUnknownFormat, fieldID, fieldType)
		}

		f := Field{
			ID:            fieldID,
			ValueType:     vt,
			TableFieldIdx: int32(tableFieldIdx),
			chunkTableIdx: fh.chunkTableIndex(tableID),
		}

		f.Layout, f.locusIdxMapTable, f.locusIdxMapField, err = resolveLayout(locusIdxMap, entityIdxMap, len(fh.chunkTables))
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", fieldID, err)
		}

		if metaJSON.Valid {
			if err := applyFieldMeta(&f, metaJSON.String); err != nil && fh.opts.strictFieldMeta() {
				return nil, fmt.Errorf("field %d: field_meta: %w", fieldID, err)
			}
		}
		if f.Name == "" {
			f.Name = fmt.Sprintf("field_%d", fieldID)
		}

		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate field: %w", err)
	}
	return fields, nil
}

func (fh *FileHandle) chunkTableIndex(tableID int) int {
	for i, t := range fh.chunkTables {
		if t.id == tableID {
			return i
		}
	}
	return -1
}

// resolveLayout derives a field's FieldLayout and indirection target from
// its locus_idx_map and entity_idx_map strings.
//
// A map equal to idxIsID means that dimension reads the field's own chunk
// table directly by id: Matrix when both maps are idxIsID, LocusAttribute
// when only locus_idx_map is, EntityAttribute when only entity_idx_map
// is. A
// locus_idx_map of sparseArraySentinel marks a SparseArray. Any other
// locus_idx_map string is an indirection target of the form "<1-based
// table id>:<field idx>", the same table_id encoding loadFields resolves
// for a field's own table.
func resolveLayout(locusIdxMap, entityIdxMap string, chunkTableCount int) (FieldLayout, int, int32, error) {
	if locusIdxMap == sparseArraySentinel {
		return SparseArray, -1, 0, nil
	}

	locusDirect := locusIdxMap == idxIsID
	entityDirect := entityIdxMap == idxIsID

	switch {
	case locusDirect && entityDirect:
		return Matrix, -1, 0, nil
	case locusDirect && !entityDirect:
		return LocusAttribute, -1, 0, nil
	case !locusDirect && entityDirect:
		return EntityAttribute, -1, 0, nil
	}

	idx, field, err := parseIndirection(locusIdxMap)
	if err != nil {
		return 0, -1, 0, err
	}
	if idx < 0 || idx >= chunkTableCount {
		return 0, -1, 0, fmt.Errorf("indirection table id %d out of range", idx+1)
	}
	return LocusAttribute, idx, field, nil
}

// parseIndirection parses an indirection map string of the form "<1-based
// table id>:<field idx>", converting the table id to the 0-based index
// used to address FileHandle.chunkTables directly.
func parseIndirection(s string) (tableIdx int, field int32, err error) {
	colon := strings.IndexByte(s, ':')
	if colon < 0 {
		return 0, 0, fmt.Errorf("malformed index map %q", s)
	}
	tableID, err := strconv.Atoi(s[:colon])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed index map %q", s)
	}
	var n int
	if _, err := fmt.Sscanf(s[colon+1:], "%d", &n); err != nil {
		return 0, 0, fmt.Errorf("malformed index map %q", s)
	}
	return tableID - 1, int32(n), nil
}

// fieldMeta mirrors the recognized keys of a field's field_meta JSON
// blob. Enum is read from either "enum" (object form) or
// "enumLabels"/"enumDocs" (parallel-array form); both are accepted since
// curated catalogs use either depending on when they were written.
type fieldMeta struct {
	Name        string   `json:"name"`
	Symbol      string   `json:"symbol"`
	Doc         string   `json:"doc"`
	URLTemplate string   `json:"urlTemplate"`
	EnumLabels  []string `json:"enumLabels"`
	EnumDocs    []string `json:"enumDocs"`
	Enum        []struct {
		Label string `json:"label"`
		Doc   string `json:"doc"`
	} `json:"enum"`
	Props struct {
		ExtentsMin *float64 `json:"ExtentsMin"`
		ExtentsMax *float64 `json:"ExtentsMax"`
	} `json:"props"`
}

func applyFieldMeta(f *Field, raw string) error {
	var m fieldMeta
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}

	f.Name = m.Name
	f.Symbol = m.Symbol
	f.Doc = m.Doc
	f.URLTemplate = m.URLTemplate

	if len(m.Enum) > 0 {
		f.EnumLabels = make([]string, len(m.Enum))
		f.EnumDocs = make([]string, len(m.Enum))
		for i, e := range m.Enum {
			f.EnumLabels[i] = e.Label
			f.EnumDocs[i] = e.Doc
		}
	} else if len(m.EnumLabels) > 0 {
		f.EnumLabels = m.EnumLabels
		f.EnumDocs = m.EnumDocs
	}

	if m.Props.ExtentsMin != nil {
		f.ExtentsMin = *m.Props.ExtentsMin
		f.HasExtents = true
	}
	if m.Props.ExtentsMax != nil {
		f.ExtentsMax = *m.Props.ExtentsMax
		f.HasExtents = true
	}

	return nil
}

// nonIdentChars matches every run of characters illegal in a Go-and-SQL-safe
// identifier; used to project a display name onto a valid symbol.
var nonIdentChars = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// assignSymbols back-fills every field's Symbol from its Name when absent,
// projecting onto the identifier grammar and disambiguating collisions
// with a numeric suffix.
func assignSymbols(fields []Field) {
	seen := make(map[string]int, len(fields))
	for i := range fields {
		f := &fields[i]
		if f.Symbol == "" {
			f.Symbol = symbolFromName(f.Name)
		}
		base := f.Symbol
		seen[base]++
		if n := seen[base]; n > 1 {
			f.Symbol = fmt.Sprintf("%s%d", base, n)
		}
	}
}

// symbolFromName projects an arbitrary display name onto a legal
// identifier: every character outside [A-Za-z0-9_] is dropped, and the
// result is prefixed with "col" if it doesn't already start with a
// letter or underscore.
func symbolFromName(name string) string {
	sym := nonIdentChars.ReplaceAllString(name, "")
	if sym == "" {
		sym = "col"
	}
	if !isIdentStart(sym[0]) {
		sym = "col" + sym
	}
	return sym
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}
