package tsf

import "fmt"

// Iterator walks one source's records, projecting a fixed set of fields
// that all share one FieldLayout. Obtain one with QueryTable and Close it
// before closing its FileHandle.
type Iterator struct {
	fh     *FileHandle
	source Source
	fields []Field
	layout FieldLayout

	// entityIDs is the fixed set of entities projected for Matrix
	// fields; unused for every other layout.
	entityIDs []int

	resolvers []*chunkResolver

	curRecordID  int
	curEntityIdx int
	maxRecordID  int // inclusive upper bound; -1 if unknown

	started bool
	closed  bool
}

// QueryTable opens an Iterator over sourceID's fields named by fieldIdxs
// (indices into Source.Fields), all of which must share expectedLayout.
// For Matrix fields, entityIDs names the fixed set of entities read at
// each record; it is ignored for every other layout.
func QueryTable(fh *FileHandle, sourceID int, fieldIdxs []int, entityIDs []int, expectedLayout FieldLayout) (*Iterator, error) {
	var src *Source
	for i := range fh.Sources {
		if fh.Sources[i].ID == sourceID {
			src = &fh.Sources[i]
			break
		}
	}
	if src == nil {
		return nil, fmt.Errorf("tsf: source %d not found", sourceID)
	}
	if src.Err != "" {
		return nil, fmt.Errorf("tsf: source %d: %s", sourceID, src.Err)
	}

	fields := make([]Field, 0, len(fieldIdxs))
	for _, idx := range fieldIdxs {
		if idx < 0 || idx >= len(src.Fields) {
			return nil, fmt.Errorf("tsf: field index %d out of range", idx)
		}
		f := src.Fields[idx]
		if f.Layout != expectedLayout {
			return nil, fmt.Errorf("%w: field %d has layout %s, want %s", ErrInconsistentFieldTypes, f.ID, f.Layout, expectedLayout)
		}
		fields = append(fields, f)
	}

	resolvers := make([]*chunkResolver, len(fields))
	for i, f := range fields {
		r, err := newChunkResolver(fh, f)
		if err != nil {
			return nil, fmt.Errorf("tsf: field %d: %w", f.ID, err)
		}
		resolvers[i] = r
	}

	maxRecordID := -1
	switch expectedLayout {
	case LocusAttribute, Matrix, SparseArray:
		if src.LocusCount >= 0 {
			maxRecordID = src.LocusCount - 1
		}
	case EntityAttribute:
		if src.EntityCount >= 0 {
			maxRecordID = src.EntityCount - 1
		}
	}

	it := &Iterator{
		fh:          fh,
		source:      *src,
		fields:      fields,
		layout:      expectedLayout,
		entityIDs:   entityIDs,
		resolvers:   resolvers,
		maxRecordID: maxRecordID,
	}
	return it, nil
}

// Next advances the iterator to its next position: the next record for
// every layout but Matrix, and the next entity within the current record
// (wrapping to the next record when entities are exhausted) for Matrix.
// It reports false once positions are exhausted.
func (it *Iterator) Next() bool {
	if it.closed {
		return false
	}
	if !it.started {
		it.started = true
		return it.withinBounds()
	}

	if it.layout == Matrix && len(it.entityIDs) > 0 {
		it.curEntityIdx++
		if it.curEntityIdx >= len(it.entityIDs) {
			it.curEntityIdx = 0
			it.curRecordID++
		}
	} else {
		it.curRecordID++
	}
	return it.withinBounds()
}

func (it *Iterator) withinBounds() bool {
	if it.maxRecordID < 0 {
		return true
	}
	return it.curRecordID <= it.maxRecordID
}

// Seek repositions the iterator at record id, resetting the entity index
// to 0 for Matrix iterators. It reports false if id is out of range.
func (it *Iterator) Seek(id int) bool {
	if it.closed || id < 0 {
		return false
	}
	it.curRecordID = id
	it.curEntityIdx = 0
	it.started = true
	return it.withinBounds()
}

// SeekMatrix repositions a Matrix iterator at (id, entityIdx), where
// entityIdx indexes into the entityIDs slice passed to QueryTable.
func (it *Iterator) SeekMatrix(id, entityIdx int) bool {
	if it.closed || it.layout != Matrix {
		return false
	}
	if entityIdx < 0 || entityIdx >= len(it.entityIDs) {
		return false
	}
	it.curRecordID = id
	it.curEntityIdx = entityIdx
	it.started = true
	return it.withinBounds()
}

// Value returns the current position's value for the field at fieldIdx
// (an index into the fieldIdxs slice passed to QueryTable), and whether
// it is the stored missing sentinel.
func (it *Iterator) Value(fieldIdx int) (Value, bool, error) {
	if it.closed {
		return Value{}, false, fmt.Errorf("tsf: iterator closed")
	}
	if fieldIdx < 0 || fieldIdx >= len(it.fields) {
		return Value{}, false, fmt.Errorf("tsf: field index %d out of range", fieldIdx)
	}
	r := it.resolvers[fieldIdx]

	columnSlot := it.fields[fieldIdx].TableFieldIdx
	if it.layout == Matrix {
		if len(it.entityIDs) == 0 {
			return Value{}, true, nil
		}
		columnSlot = int32(it.entityIDs[it.curEntityIdx])
	}
	return r.valueAt(it.curRecordID, columnSlot)
}

// RecordID returns the current locus/entity record id.
func (it *Iterator) RecordID() int { return it.curRecordID }

// EntityID returns the current entity id for a Matrix iterator; it is
// meaningless for any other layout.
func (it *Iterator) EntityID() int {
	if len(it.entityIDs) == 0 {
		return 0
	}
	return it.entityIDs[it.curEntityIdx]
}

// Close marks the iterator unusable. Further calls to Next, Seek, or
// Value return false/an error.
func (it *Iterator) Close() error {
	it.closed = true
	return nil
}
