package store

import (
	"strconv"

	"minepath.ai/internal/nav/geom"
	"minepath.ai/internal/world/chunkfile"
)

// Iterator walks every present cell in the store: chunks in the store's
// own enumeration order (chunk creation order), cells within a chunk in
// row-major order (x outer, y middle, z inner). Each call to Iter
// starts a fresh pass from the first chunk. Empty chunks are skipped,
// never terminate the walk early.
type Iterator struct {
	s     *Store
	keys  []ChunkKey
	ki    int
	cells []int32
	li    int
}

func (s *Store) Iter() *Iterator {
	s.mu.RLock()
	keys := append([]ChunkKey(nil), s.order...)
	s.mu.RUnlock()
	return &Iterator{s: s, keys: keys, li: -1}
}

// Next advances to the next present cell. ok=false means the walk is
// done.
func (it *Iterator) Next() (geom.Vec3i, int32, bool) {
	for {
		if it.cells == nil {
			if it.ki >= len(it.keys) {
				return geom.Vec3i{}, 0, false
			}
			it.s.mu.RLock()
			ch := it.s.chunks[it.keys[it.ki]]
			it.s.mu.RUnlock()
			it.cells = ch.snapshotCells()
			it.li = -1
		}
		it.li++
		if it.li >= len(it.cells) {
			it.cells = nil
			it.ki++
			continue
		}
		v := it.cells[it.li]
		if v == chunkfile.Sentinel {
			continue
		}
		return it.s.cellCoord(it.keys[it.ki], it.li), v, true
	}
}

// GetByIndex returns the i-th present cell (1-based) in iteration
// order. ok=false when fewer than i cells are present.
func (s *Store) GetByIndex(i int) (geom.Vec3i, int32, bool) {
	if i < 1 {
		return geom.Vec3i{}, 0, false
	}
	it := s.Iter()
	n := 0
	for {
		p, v, ok := it.Next()
		if !ok {
			return geom.Vec3i{}, 0, false
		}
		n++
		if n == i {
			return p, v, true
		}
	}
}

// SetByIndex overwrites the value of the i-th present cell (1-based) in
// iteration order. It is a convenience view over the same cells, not a
// separate structure: the write lands in the owning chunk.
func (s *Store) SetByIndex(i int, v int32) error {
	p, _, ok := s.GetByIndex(i)
	if !ok {
		return errOrdinalRange(i)
	}
	return s.Set(p, v)
}

func errOrdinalRange(i int) error {
	return &OrdinalRangeError{Index: i}
}

// OrdinalRangeError reports an ordinal access past the last present
// cell.
type OrdinalRangeError struct {
	Index int
}

func (e *OrdinalRangeError) Error() string {
	return "store: no present cell at ordinal " + strconv.Itoa(e.Index)
}
