// Package store implements the chunked sparse world model: a mapping
// from integer 3-D coordinates to observed block values, partitioned
// into fixed-size dense chunks that are created lazily and persisted
// one file per chunk.
package store

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log"
	"sync"

	"minepath.ai/internal/nav/geom"
	"minepath.ai/internal/world/chunkfile"
)

type ChunkKey struct {
	CX, CY, CZ int
}

func (k ChunkKey) String() string {
	return fmt.Sprintf("(%d,%d,%d)", k.CX, k.CY, k.CZ)
}

// Chunk is a dense block of cells. Absent cells hold the sentinel value.
// Mutation of a chunk is serialized by its own lock; chunks from
// different keys can be written in parallel.
type Chunk struct {
	Key ChunkKey

	mu    sync.RWMutex
	cells []int32
}

// Options configures a Store. ChunkSize components must be positive and
// are immutable after New.
type Options struct {
	ChunkSize [3]int
	CellType  chunkfile.CellType
	DataDir   string
	Log       *log.Logger
}

type Store struct {
	sizeX, sizeY, sizeZ int
	typ                 chunkfile.CellType
	dataDir             string
	log                 *log.Logger

	mu     sync.RWMutex
	chunks map[ChunkKey]*Chunk
	// Chunk enumeration order for the iterator and the ordinal view:
	// creation order, which is stable for the lifetime of the store.
	order []ChunkKey
}

func New(opts Options) (*Store, error) {
	for _, d := range opts.ChunkSize {
		if d <= 0 {
			return nil, fmt.Errorf("store: chunk size must be positive, got %v", opts.ChunkSize)
		}
	}
	typ := opts.CellType
	if typ == 0 {
		typ = chunkfile.CellInt32
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("store: %w: %s", chunkfile.ErrBadType, typ)
	}
	return &Store{
		sizeX:   opts.ChunkSize[0],
		sizeY:   opts.ChunkSize[1],
		sizeZ:   opts.ChunkSize[2],
		typ:     typ,
		dataDir: opts.DataDir,
		log:     opts.Log,
		chunks:  map[ChunkKey]*Chunk{},
	}, nil
}

func (s *Store) ChunkSize() (int, int, int) {
	return s.sizeX, s.sizeY, s.sizeZ
}

func (s *Store) CellType() chunkfile.CellType {
	return s.typ
}

// KeyFor maps a world coordinate to its owning chunk key (floor
// division, so negative coordinates land in negative chunks).
func (s *Store) KeyFor(p geom.Vec3i) ChunkKey {
	return ChunkKey{
		CX: floorDiv(p.X, s.sizeX),
		CY: floorDiv(p.Y, s.sizeY),
		CZ: floorDiv(p.Z, s.sizeZ),
	}
}

// cellIndex maps a world coordinate to its offset within the owning
// chunk: row-major, x outer, y middle, z inner.
func (s *Store) cellIndex(p geom.Vec3i) int {
	lx := mod(p.X, s.sizeX)
	ly := mod(p.Y, s.sizeY)
	lz := mod(p.Z, s.sizeZ)
	return (lx*s.sizeY+ly)*s.sizeZ + lz
}

func (s *Store) cellCoord(key ChunkKey, idx int) geom.Vec3i {
	lz := idx % s.sizeZ
	rest := idx / s.sizeZ
	ly := rest % s.sizeY
	lx := rest / s.sizeY
	return geom.Vec3i{
		X: key.CX*s.sizeX + lx,
		Y: key.CY*s.sizeY + ly,
		Z: key.CZ*s.sizeZ + lz,
	}
}

// getOrCreate returns the chunk owning key, materializing an all-absent
// chunk on first access. Reads materialize too: observing a coordinate
// in a fresh region allocates its chunk even though no cell is set.
// That mirrors the historical behavior and is covered by tests.
func (s *Store) getOrCreate(key ChunkKey) *Chunk {
	s.mu.RLock()
	ch := s.chunks[key]
	s.mu.RUnlock()
	if ch != nil {
		return ch
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ch := s.chunks[key]; ch != nil {
		return ch
	}
	cells := make([]int32, s.sizeX*s.sizeY*s.sizeZ)
	for i := range cells {
		cells[i] = chunkfile.Sentinel
	}
	ch = &Chunk{Key: key, cells: cells}
	s.chunks[key] = ch
	s.order = append(s.order, key)
	return ch
}

// Get returns the observed value at p, or ok=false for an unobserved
// cell. The owning chunk is materialized as a side effect but its cells
// are never mutated.
func (s *Store) Get(p geom.Vec3i) (int32, bool) {
	ch := s.getOrCreate(s.KeyFor(p))
	ch.mu.RLock()
	v := ch.cells[s.cellIndex(p)]
	ch.mu.RUnlock()
	if v == chunkfile.Sentinel {
		return 0, false
	}
	return v, true
}

// Set records an observed value at p. Values below zero are rejected:
// the sentinel -1 is reserved for absent cells and must never be a
// legitimate observation. Values above the cell type's encodable range
// are rejected too, or they would truncate on save and read back as a
// different value.
func (s *Store) Set(p geom.Vec3i, v int32) error {
	if v < 0 {
		return fmt.Errorf("store: value %d at %s collides with the reserved sentinel domain", v, p)
	}
	if max := s.typ.MaxCell(); v > max {
		return fmt.Errorf("store: value %d at %s exceeds cell type %s max %d", v, p, s.typ, max)
	}
	ch := s.getOrCreate(s.KeyFor(p))
	ch.mu.Lock()
	ch.cells[s.cellIndex(p)] = v
	ch.mu.Unlock()
	return nil
}

// Clear marks the cell at p unobserved again.
func (s *Store) Clear(p geom.Vec3i) {
	ch := s.getOrCreate(s.KeyFor(p))
	ch.mu.Lock()
	ch.cells[s.cellIndex(p)] = chunkfile.Sentinel
	ch.mu.Unlock()
}

// ChunkCount reports how many chunks have been materialized.
func (s *Store) ChunkCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// HasChunk reports whether the chunk owning p has been materialized.
func (s *Store) HasChunk(p geom.Vec3i) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.chunks[s.KeyFor(p)]
	return ok
}

// PresentCount returns the number of observed cells across all chunks.
func (s *Store) PresentCount() int {
	s.mu.RLock()
	keys := append([]ChunkKey(nil), s.order...)
	s.mu.RUnlock()

	n := 0
	for _, k := range keys {
		s.mu.RLock()
		ch := s.chunks[k]
		s.mu.RUnlock()
		ch.mu.RLock()
		for _, v := range ch.cells {
			if v != chunkfile.Sentinel {
				n++
			}
		}
		ch.mu.RUnlock()
	}
	return n
}

// snapshotCells copies a chunk's cells under its read lock.
func (ch *Chunk) snapshotCells() []int32 {
	ch.mu.RLock()
	out := append([]int32(nil), ch.cells...)
	ch.mu.RUnlock()
	return out
}

// Digest returns a deterministic hash of the chunk's cells.
func (ch *Chunk) Digest() string {
	h := sha256.New()
	var tmp [4]byte
	ch.mu.RLock()
	for _, v := range ch.cells {
		binary.LittleEndian.PutUint32(tmp[:], uint32(v))
		h.Write(tmp[:])
	}
	ch.mu.RUnlock()
	return hex.EncodeToString(h.Sum(nil))
}

func floorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
