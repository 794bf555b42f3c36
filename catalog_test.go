package tsf

import "testing"

func TestOpen_MissingFile(t *testing.T) {
	fh := Open("/nonexistent/path/does-not-exist.tsf", nil)
	if fh == nil {
		t.Fatal("Open returned nil")
	}
	if fh.Errmsg == "" {
		t.Error("Errmsg should be set for a missing catalog file")
	}
	if len(fh.Sources) != 0 {
		t.Errorf("Sources = %v, want empty", fh.Sources)
	}
	if err := fh.Close(); err != nil {
		t.Errorf("Close on a failed Open: %v", err)
	}
}

func TestOpen_LoadsSourceAndFields(t *testing.T) {
	fields := []fixtureField{
		{fieldID: 1, tableFieldIdx: 0, fieldType: "i4", locusIdxMap: "", entityIdxMap: idxIsID, fieldMeta: `{"name":"Sample Weight","symbol":"weight"}`},
		{fieldID: 2, tableFieldIdx: 1, fieldType: "i4", locusIdxMap: idxIsID, entityIdxMap: "", fieldMeta: `{"name":"Allele Count"}`},
	}
	chunks := map[int64][]byte{
		composeChunkID(0, 2, 0): fixtureChunk(t, "i4", 4, 4, int32LEPayload(10, int32Missing, 30, 40)),
		composeChunkID(0, 2, 1): fixtureChunk(t, "i4", 4, 4, int32LEPayload(100, 200, 300, 400)),
	}
	fh := newFixtureCatalog(t, 4, 6, 2, fields, chunks)
	defer fh.Close()

	if len(fh.Sources) != 1 {
		t.Fatalf("Sources = %d, want 1", len(fh.Sources))
	}
	src := fh.Sources[0]
	if src.Err != "" {
		t.Fatalf("source failed to load: %s", src.Err)
	}
	if src.EntityCount != 4 || src.LocusCount != 6 {
		t.Errorf("dims = (%d, %d), want (4, 6)", src.EntityCount, src.LocusCount)
	}
	if len(src.Fields) != 2 {
		t.Fatalf("Fields = %d, want 2", len(src.Fields))
	}

	f0, ok := src.FieldByID(1)
	if !ok {
		t.Fatal("field 1 not found")
	}
	if f0.Layout != EntityAttribute {
		t.Errorf("field 1 layout = %s, want EntityAttribute", f0.Layout)
	}
	if f0.Name != "Sample Weight" || f0.Symbol != "weight" {
		t.Errorf("field 1 name/symbol = %q/%q", f0.Name, f0.Symbol)
	}

	f1, ok := src.FieldByID(2)
	if !ok {
		t.Fatal("field 2 not found")
	}
	if f1.Layout != LocusAttribute {
		t.Errorf("field 2 layout = %s, want LocusAttribute", f1.Layout)
	}
	if f1.Symbol != "AlleleCount" {
		t.Errorf("field 2 symbol = %q, want AlleleCount (back-filled from name)", f1.Symbol)
	}
}

func TestOpen_DimsDefaultToUnknown(t *testing.T) {
	fields := []fixtureField{
		{fieldID: 1, tableFieldIdx: 0, fieldType: "i4", locusIdxMap: "", entityIdxMap: idxIsID},
	}
	fh := newFixtureCatalog(t, 0, 0, 2, fields, nil)
	defer fh.Close()

	src := fh.Sources[0]
	if src.EntityCount != -1 || src.LocusCount != -1 {
		t.Errorf("dims = (%d, %d), want (-1, -1)", src.EntityCount, src.LocusCount)
	}
}

func TestAssignSymbols_Uniqueness(t *testing.T) {
	fields := []Field{
		{ID: 1, Name: "Count"},
		{ID: 2, Name: "Count"},
		{ID: 3, Name: "1st Value"},
	}
	assignSymbols(fields)

	if fields[0].Symbol != "Count" {
		t.Errorf("fields[0].Symbol = %q, want Count", fields[0].Symbol)
	}
	if fields[1].Symbol != "Count2" {
		t.Errorf("fields[1].Symbol = %q, want Count2", fields[1].Symbol)
	}
	if fields[2].Symbol != "col1stValue" {
		// Non-identifier characters (the space) are dropped; the
		// leading digit forces the "col" prefix.
		t.Errorf("fields[2].Symbol = %q, want col1stValue", fields[2].Symbol)
	}
}

func TestTableNameFromURI(t *testing.T) {
	tests := []struct {
		uri     string
		want    string
		wantErr bool
	}{
		{uri: "table:chunk_tbl=chunked&", want: "chunk_tbl"},
		{uri: "chunk_tbl=chunked", want: "chunk_tbl"},
		{uri: "malformed", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := tableNameFromURI(tt.uri)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("tableNameFromURI(%q) = %q, want error", tt.uri, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("tableNameFromURI(%q): %v", tt.uri, err)
			}
			if got != tt.want {
				t.Errorf("tableNameFromURI(%q) = %q, want %q", tt.uri, got, tt.want)
			}
		})
	}
}
