package store

import (
	"bytes"
	"context"
	"log"
	"os"
	"testing"

	"minepath.ai/internal/nav/geom"
	"minepath.ai/internal/world/chunkfile"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	opts := Options{ChunkSize: [3]int{4, 4, 4}, CellType: chunkfile.CellInt32, DataDir: dir}
	s, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}

	cells := map[geom.Vec3i]int32{
		{X: 0, Y: 0, Z: 0}: 1,
		{X: 3, Y: 1, Z: 2}: 7,
		{X: 1, Y: 3, Z: 3}: 0,
	}
	for p, v := range cells {
		if err := s.Set(p, v); err != nil {
			t.Fatal(err)
		}
	}
	res, err := s.Save(geom.Vec3i{X: 2, Y: 2, Z: 2})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if res.Present != len(cells) {
		t.Errorf("SaveResult.Present = %d, want %d", res.Present, len(cells))
	}

	// Fresh store with identical configuration.
	s2, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	if err := s2.Load(geom.Vec3i{}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	for p, v := range cells {
		got, ok := s2.Get(p)
		if !ok || got != v {
			t.Errorf("after load Get(%s) = %d,%v, want %d,true", p, got, ok, v)
		}
	}
	// Absent cells stay absent.
	if _, ok := s2.Get(geom.Vec3i{X: 2, Y: 0, Z: 0}); ok {
		t.Error("absent cell became present through save/load")
	}
	if s2.PresentCount() != len(cells) {
		t.Errorf("PresentCount = %d, want %d", s2.PresentCount(), len(cells))
	}
}

func TestLoadMissingFileIsNoop(t *testing.T) {
	s := newTestStore(t, [3]int{4, 4, 4})
	if err := s.Set(geom.Vec3i{}, 3); err != nil {
		t.Fatal(err)
	}
	if err := s.Load(geom.Vec3i{}); err != nil {
		t.Fatalf("Load without file: %v", err)
	}
	if v, _ := s.Get(geom.Vec3i{}); v != 3 {
		t.Errorf("cell changed by no-op load: %d", v)
	}
}

func TestLoadDimensionMismatchIsLoggedNoop(t *testing.T) {
	dir := t.TempDir()
	writer, err := New(Options{ChunkSize: [3]int{2, 2, 2}, CellType: chunkfile.CellInt32, DataDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if err := writer.Set(geom.Vec3i{}, 5); err != nil {
		t.Fatal(err)
	}
	if _, err := writer.Save(geom.Vec3i{}); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	reader, err := New(Options{
		ChunkSize: [3]int{4, 4, 4},
		CellType:  chunkfile.CellInt32,
		DataDir:   dir,
		Log:       log.New(&buf, "", 0),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := reader.Set(geom.Vec3i{}, 8); err != nil {
		t.Fatal(err)
	}
	if err := reader.Load(geom.Vec3i{}); err != nil {
		t.Fatalf("mismatched load returned error: %v", err)
	}
	if v, _ := reader.Get(geom.Vec3i{}); v != 8 {
		t.Errorf("mismatched load mutated the chunk: %d", v)
	}
	if buf.Len() == 0 {
		t.Error("mismatched load was not logged")
	}
}

func TestLoadTruncatedFileFails(t *testing.T) {
	dir := t.TempDir()
	opts := Options{ChunkSize: [3]int{2, 2, 2}, CellType: chunkfile.CellInt32, DataDir: dir}
	s, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.Save(geom.Vec3i{})
	if err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(res.Path, raw[:len(raw)-3], 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.Load(geom.Vec3i{}); err == nil {
		t.Fatal("load of truncated chunk file succeeded")
	}
}

func TestSaveAllLoadAll(t *testing.T) {
	dir := t.TempDir()
	opts := Options{ChunkSize: [3]int{4, 4, 4}, CellType: chunkfile.CellInt16, DataDir: dir}
	s, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	points := []geom.Vec3i{{X: 0}, {X: 40}, {X: -40, Y: 9, Z: -3}}
	for i, p := range points {
		if err := s.Set(p, int32(i+1)); err != nil {
			t.Fatal(err)
		}
	}
	results, err := s.SaveAll(context.Background())
	if err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("SaveAll wrote %d chunks, want 3", len(results))
	}

	s2, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	n, err := s2.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if n != 3 {
		t.Errorf("LoadAll loaded %d chunks, want 3", n)
	}
	for i, p := range points {
		if v, ok := s2.Get(p); !ok || v != int32(i+1) {
			t.Errorf("Get(%s) = %d,%v, want %d,true", p, v, ok, i+1)
		}
	}
}
