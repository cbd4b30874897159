package store

import (
	"fmt"
	"time"

	snapv1 "minepath.ai/internal/persistence/snapshot"
	"minepath.ai/internal/world/chunkfile"
)

// ExportSnapshot captures every materialized chunk, present and absent
// cells alike.
func (s *Store) ExportSnapshot() snapv1.SnapshotV1 {
	s.mu.RLock()
	keys := append([]ChunkKey(nil), s.order...)
	s.mu.RUnlock()

	snap := snapv1.SnapshotV1{
		Header:    snapv1.Header{Version: 1, SavedUnix: time.Now().Unix()},
		ChunkSize: [3]int{s.sizeX, s.sizeY, s.sizeZ},
		CellType:  byte(s.typ),
		Chunks:    make([]snapv1.ChunkV1, 0, len(keys)),
	}
	for _, k := range keys {
		s.mu.RLock()
		ch := s.chunks[k]
		s.mu.RUnlock()
		snap.Chunks = append(snap.Chunks, snapv1.ChunkV1{
			CX: k.CX, CY: k.CY, CZ: k.CZ,
			Cells: ch.snapshotCells(),
		})
	}
	return snap
}

// RestoreSnapshot rebuilds a store from a snapshot. Unlike per-chunk
// Load, a configuration mismatch here is an error: a snapshot carries
// its own authoritative configuration.
func RestoreSnapshot(snap snapv1.SnapshotV1, dataDir string) (*Store, error) {
	s, err := New(Options{
		ChunkSize: snap.ChunkSize,
		CellType:  chunkfile.CellType(snap.CellType),
		DataDir:   dataDir,
	})
	if err != nil {
		return nil, fmt.Errorf("store: restore: %w", err)
	}
	want := snap.ChunkSize[0] * snap.ChunkSize[1] * snap.ChunkSize[2]
	for _, c := range snap.Chunks {
		if len(c.Cells) != want {
			return nil, fmt.Errorf("store: restore chunk (%d,%d,%d): %d cells, want %d", c.CX, c.CY, c.CZ, len(c.Cells), want)
		}
		ch := s.getOrCreate(ChunkKey{CX: c.CX, CY: c.CY, CZ: c.CZ})
		ch.mu.Lock()
		copy(ch.cells, c.Cells)
		ch.mu.Unlock()
	}
	return s, nil
}
