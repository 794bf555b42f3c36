package tsf

import "fmt"

// GidxIterator walks the record ids of a genomic source that overlap a
// query range, then delegates positional reads to a wrapped Iterator. The
// exact overlap algorithm a gidx_query_table/gidx_data_table pair
// implements is left to the caller; GidxIterator only defines the shape
// callers drive, not the search itself.
type GidxIterator struct {
	base *Iterator

	// recordIDs is the ordered set of record ids the range query
	// resolved, supplied by the caller-provided lookup rather than
	// computed here.
	recordIDs []int
	pos       int
}

// GidxLookup resolves the record ids overlapping [start, end) on a
// coordinate system, reading whatever index structure a source's
// GidxQueryTable/GidxDataTable actually encode. TSF does not define this
// algorithm; callers supply their own.
type GidxLookup func(source Source, coordSysID string, start, end int64) ([]int, error)

// NewGidxIterator builds a GidxIterator over base, restricting iteration
// to the record ids lookup resolves for the given range. base must not
// have been advanced yet.
func NewGidxIterator(base *Iterator, source Source, coordSysID string, start, end int64, lookup GidxLookup) (*GidxIterator, error) {
	if source.GidxQueryTable == "" {
		return nil, fmt.Errorf("tsf: source %d has no genomic index", source.ID)
	}
	ids, err := lookup(source, coordSysID, start, end)
	if err != nil {
		return nil, fmt.Errorf("tsf: gidx lookup: %w", err)
	}
	return &GidxIterator{base: base, recordIDs: ids}, nil
}

// Next seeks the wrapped iterator to the next overlapping record id.
func (g *GidxIterator) Next() bool {
	if g.pos >= len(g.recordIDs) {
		return false
	}
	id := g.recordIDs[g.pos]
	g.pos++
	return g.base.Seek(id)
}

// Value delegates to the wrapped Iterator's Value.
func (g *GidxIterator) Value(fieldIdx int) (Value, bool, error) {
	return g.base.Value(fieldIdx)
}

// RecordID delegates to the wrapped Iterator's RecordID.
func (g *GidxIterator) RecordID() int { return g.base.RecordID() }

// Close closes the wrapped Iterator.
func (g *GidxIterator) Close() error { return g.base.Close() }
