package store

import (
	"path/filepath"
	"testing"

	"minepath.ai/internal/nav/geom"
	snapv1 "minepath.ai/internal/persistence/snapshot"
)

func TestSnapshotRoundTrip(t *testing.T) {
	s := newTestStore(t, [3]int{4, 4, 4})
	cells := map[geom.Vec3i]int32{
		{X: 0, Y: 1, Z: 2}:    3,
		{X: -9, Y: 20, Z: 40}: 11,
		{X: 7, Y: 7, Z: 7}:    0,
	}
	for p, v := range cells {
		if err := s.Set(p, v); err != nil {
			t.Fatal(err)
		}
	}
	// One read-materialized empty chunk survives the round trip too.
	s.Get(geom.Vec3i{X: 100})

	path := filepath.Join(t.TempDir(), "world.snap")
	if err := snapv1.Write(path, s.ExportSnapshot()); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	snap, err := snapv1.Read(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}

	got, err := RestoreSnapshot(snap, t.TempDir())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	for p, v := range cells {
		if gv, ok := got.Get(p); !ok || gv != v {
			t.Errorf("restored Get(%s) = %d,%v, want %d,true", p, gv, ok, v)
		}
	}
	if got.ChunkCount() != s.ChunkCount() {
		t.Errorf("restored chunk count = %d, want %d", got.ChunkCount(), s.ChunkCount())
	}
	if got.PresentCount() != len(cells) {
		t.Errorf("restored present count = %d, want %d", got.PresentCount(), len(cells))
	}
}

func TestRestoreRejectsMalformedChunk(t *testing.T) {
	snap := snapv1.SnapshotV1{
		ChunkSize: [3]int{2, 2, 2},
		CellType:  'i',
		Chunks:    []snapv1.ChunkV1{{Cells: make([]int32, 3)}},
	}
	if _, err := RestoreSnapshot(snap, t.TempDir()); err == nil {
		t.Fatal("restore of malformed chunk succeeded")
	}
}
