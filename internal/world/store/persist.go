package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"minepath.ai/internal/nav/geom"
	"minepath.ai/internal/world/chunkfile"
)

// SaveResult describes one chunk file written by Save.
type SaveResult struct {
	Key     ChunkKey
	Path    string
	Present int
	Digest  string
}

// Path returns the file a chunk key persists to.
func (s *Store) Path(key ChunkKey) string {
	return filepath.Join(s.dataDir, chunkfile.Filename(key.CX, key.CY, key.CZ))
}

// Save serializes the entire chunk containing p, present and absent
// cells alike, to its deterministic file. Saving a never-touched region
// materializes the chunk first and writes an all-sentinel file.
func (s *Store) Save(p geom.Vec3i) (SaveResult, error) {
	key := s.KeyFor(p)
	ch := s.getOrCreate(key)
	cells := ch.snapshotCells()

	path := s.Path(key)
	if err := chunkfile.Write(path, s.sizeX, s.sizeY, s.sizeZ, s.typ, cells); err != nil {
		return SaveResult{}, fmt.Errorf("store: save chunk %s: %w", key, err)
	}

	present := 0
	for _, v := range cells {
		if v != chunkfile.Sentinel {
			present++
		}
	}
	return SaveResult{Key: key, Path: path, Present: present, Digest: ch.Digest()}, nil
}

// Load restores the chunk containing p from its file, overwriting the
// chunk's cells in place. A missing file is a silent no-op, and so is a
// file whose header disagrees with the store's configured chunk size or
// cell type. The leniency is deliberate (it tolerates stale data dirs)
// but it masks configuration drift, so every skipped load is logged.
// Malformed or truncated files fail.
func (s *Store) Load(p geom.Vec3i) error {
	key := s.KeyFor(p)
	ch := s.getOrCreate(key)
	path := s.Path(key)

	hdr, cells, err := chunkfile.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("store: load chunk %s: %w", key, err)
	}
	if hdr.SizeX != s.sizeX || hdr.SizeY != s.sizeY || hdr.SizeZ != s.sizeZ || hdr.Type != s.typ {
		if s.log != nil {
			s.log.Printf("load chunk %s: header %dx%dx%d/%s does not match store %dx%dx%d/%s, skipping %s",
				key, hdr.SizeX, hdr.SizeY, hdr.SizeZ, hdr.Type, s.sizeX, s.sizeY, s.sizeZ, s.typ, path)
		}
		return nil
	}

	ch.mu.Lock()
	copy(ch.cells, cells)
	ch.mu.Unlock()
	return nil
}

// SaveAll writes every materialized chunk. Chunk files are independent,
// so the writes fan out; the first failure cancels the rest.
func (s *Store) SaveAll(ctx context.Context) ([]SaveResult, error) {
	s.mu.RLock()
	keys := append([]ChunkKey(nil), s.order...)
	s.mu.RUnlock()

	results := make([]SaveResult, len(keys))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			origin := geom.Vec3i{X: key.CX * s.sizeX, Y: key.CY * s.sizeY, Z: key.CZ * s.sizeZ}
			res, err := s.Save(origin)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// LoadAll scans the data dir for chunk files and loads each one through
// the same lenient per-chunk path as Load.
func (s *Store) LoadAll(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("store: scan %s: %w", s.dataDir, err)
	}

	loaded := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return loaded, err
		}
		if e.IsDir() {
			continue
		}
		var cx, cy, cz int
		if n, _ := fmt.Sscanf(e.Name(), "chunk_%d_%d_%d.bin", &cx, &cy, &cz); n != 3 {
			continue
		}
		origin := geom.Vec3i{X: cx * s.sizeX, Y: cy * s.sizeY, Z: cz * s.sizeZ}
		if err := s.Load(origin); err != nil {
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}
