package tsf

import "encoding/binary"

// chunkResolver fetches the chunk holding recordID's value for field f,
// following its indirection map when one is configured. Direct fields
// read straight from their own chunk table; indirect fields first read an
// index chunk whose values are themselves record ids into the field's own
// table, then read the real value through those substitute record ids.
//
// Each resolver keeps a single cached slot, refilled only when the
// requested chunk id changes, so a sequential scan amortizes one
// decompression (and, for indirect fields, one index-chunk collation)
// per chunk_size records instead of paying it on every call.
type chunkResolver struct {
	fh *FileHandle
	f  Field
	ct *chunkTable // f's own chunk table, backing both direct and indirect reads

	// idxTable is the chunk table holding the indirection map column,
	// set only when f.HasIndirection().
	idxTable *chunkTable

	cachedID int64
	cached   *chunk

	// backendCache is a small, linearly-scanned cache of recently read
	// chunks from ct, consulted while collating one indirect chunk,
	// bounded by maxCache.
	backendCache []*chunk
	maxCache     int
}

func newChunkResolver(fh *FileHandle, f Field) (*chunkResolver, error) {
	if f.chunkTableIdx < 0 || f.chunkTableIdx >= len(fh.chunkTables) {
		return nil, ErrCorruptData
	}
	r := &chunkResolver{
		fh:       fh,
		f:        f,
		ct:       fh.chunkTables[f.chunkTableIdx],
		cachedID: -1,
		maxCache: fh.opts.backendCacheSize(),
	}
	if f.HasIndirection() {
		if f.ValueType != Int32 && f.ValueType != Enum {
			return nil, ErrUnsupportedIndirection
		}
		if f.locusIdxMapTable < 0 || f.locusIdxMapTable >= len(fh.chunkTables) {
			return nil, ErrCorruptData
		}
		r.idxTable = fh.chunkTables[f.locusIdxMapTable]
	}
	return r, nil
}

// valueAt resolves f's value at recordID. columnSlot is f.TableFieldIdx
// for every layout except Matrix, where the caller passes the entity id
// instead: the column slot is the entity id for Matrix fields.
func (r *chunkResolver) valueAt(recordID int, columnSlot int32) (Value, bool, error) {
	chunkID := composeChunkID(recordID, r.ct.chunkBits, columnSlot)
	if chunkID != r.cachedID {
		c, err := r.fillSlot(recordID, columnSlot, chunkID)
		if err != nil {
			return Value{}, false, err
		}
		r.cached = c
		r.cachedID = chunkID
	}
	if r.cached == nil {
		return Value{}, true, nil
	}
	offset := recordID & (r.ct.chunkSize - 1)
	return r.cached.valueAt(offset)
}

// fillSlot builds the chunk backing chunkID: a direct fetch from ct for
// fields with no indirection, or a collated index-chunk read otherwise.
func (r *chunkResolver) fillSlot(recordID int, columnSlot int32, chunkID int64) (*chunk, error) {
	if r.idxTable == nil {
		return r.ct.readChunk(chunkID)
	}
	return r.buildIndirectChunk(recordID, columnSlot, chunkID)
}

// buildIndirectChunk reads the index chunk covering recordID out of
// idxTable (keyed by f.locusIdxMapField), then, for each Int32/Enum value
// it holds, treats that value as a substitute record id into ct (f's own
// table, keyed by columnSlot) and collates the results into one synthetic
// chunk the caller can cache and read positionally like any other.
func (r *chunkResolver) buildIndirectChunk(recordID int, columnSlot int32, chunkID int64) (*chunk, error) {
	idxChunkID := composeChunkID(recordID, r.idxTable.chunkBits, r.f.locusIdxMapField)
	idxChunk, err := r.idxTable.readChunk(idxChunkID)
	if err != nil {
		return nil, err
	}
	if idxChunk == nil {
		return nil, nil
	}

	n := int(idxChunk.recordCount)
	data := make([]byte, n*4)
	for i := 0; i < n; i++ {
		v, isNull, err := idxChunk.valueAt(i)
		if err != nil {
			return nil, err
		}

		idx := int32Missing
		if !isNull {
			if v.Type == Enum {
				idx = v.Enum
			} else {
				idx = v.Int32
			}
		}

		backendVal := int32Missing
		if idx >= 0 {
			backendChunkID := composeChunkID(int(idx), r.ct.chunkBits, columnSlot)
			backendOffset := int(idx) & (r.ct.chunkSize - 1)
			bc, err := r.fetchBackendChunk(backendChunkID)
			if err != nil {
				return nil, err
			}
			if bc != nil {
				bv, bIsNull, err := bc.valueAt(backendOffset)
				if err != nil {
					return nil, err
				}
				if !bIsNull {
					if bv.Type == Enum {
						backendVal = bv.Enum
					} else {
						backendVal = bv.Int32
					}
				}
			}
		}

		binary.LittleEndian.PutUint32(data[i*4:], uint32(backendVal))
	}

	return &chunk{
		id:          chunkID,
		valueType:   Int32,
		data:        data,
		recordCount: idxChunk.recordCount,
	}, nil
}

// fetchBackendChunk returns the chunk at chunkID from ct, consulting and
// updating the bounded linear cache first.
func (r *chunkResolver) fetchBackendChunk(chunkID int64) (*chunk, error) {
	for i, c := range r.backendCache {
		if c.id == chunkID {
			// Move to front (most recently used).
			copy(r.backendCache[1:i+1], r.backendCache[:i])
			r.backendCache[0] = c
			return c, nil
		}
	}

	c, err := r.ct.readChunk(chunkID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, nil
	}

	r.backendCache = append([]*chunk{c}, r.backendCache...)
	if len(r.backendCache) > r.maxCache {
		r.backendCache = r.backendCache[:r.maxCache]
	}
	return c, nil
}
