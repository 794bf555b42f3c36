package tsf

// Field is an immutable, typed column descriptor. All attributes are
// frozen once Open returns.
type Field struct {
	// ID is the catalog's field_id.
	ID int

	ValueType ValueType
	Layout    FieldLayout

	// chunkTableIdx indexes into FileHandle's chunk tables (the position
	// of the table whose id equals the field's table_id), or -1 when no
	// loaded table has that id.
	chunkTableIdx int

	// TableFieldIdx is the column slot within the chunk table: combined
	// with a record id to form a chunk id.
	TableFieldIdx int32

	// locusIdxMapTable/-Field address the indirection map column;
	// locusIdxMapTable is -1 (and locusIdxMapField 0) when the field
	// reads its backend chunk table directly.
	locusIdxMapTable int
	locusIdxMapField int32

	Name        string
	Symbol      string
	Doc         string
	URLTemplate string

	// EnumLabels and EnumDocs are parallel, set only for Enum/EnumArray
	// fields.
	EnumLabels []string
	EnumDocs   []string

	// ExtentsMin/Max are populated for numeric fields from the
	// ExtentsMin/ExtentsMax metadata props; HasExtents reports whether
	// either was present.
	ExtentsMin float64
	ExtentsMax float64
	HasExtents bool
}

// HasIndirection reports whether reading f requires resolving through an
// indirection map rather than reading its chunk table directly.
func (f Field) HasIndirection() bool {
	return f.locusIdxMapTable >= 0
}

// Source is an immutable, logical table descriptor within a TSF file.
type Source struct {
	ID   int
	Name string
	UUID string

	// Err is non-empty when the source failed to parse and is unreadable.
	Err string

	Fields []Field

	// EntityCount/LocusCount are -1 when unknown (stored as 0 in the
	// catalog).
	EntityCount int
	LocusCount  int

	DateCurated string

	CuratedBy       string
	SeriesName      string
	SourceVersion   string
	DescriptionHTML string
	CreditHTML      string
	NotesHTML       string
	HeaderLines     string

	// PrimarySourceUUID marks a supporting source computed off a
	// primary one.
	PrimarySourceUUID string

	// CoordSysID, GidxQueryTable, and GidxDataTable are set only for
	// genomic sources with an idx_gidx row.
	CoordSysID    string
	GidxQueryTable string
	GidxDataTable  string

	RecordsInGenomicOrder bool
}

// FieldByID returns the field with the given catalog field id, or false
// if none matches.
func (s Source) FieldByID(id int) (Field, bool) {
	for _, f := range s.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

// FieldsByLayout returns every field in s sharing the given layout, in
// declaration order.
func (s Source) FieldsByLayout(layout FieldLayout) []Field {
	var out []Field
	for _, f := range s.Fields {
		if f.Layout == layout {
			out = append(out, f)
		}
	}
	return out
}
