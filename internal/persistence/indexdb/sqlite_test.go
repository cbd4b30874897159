package indexdb

import (
	"path/filepath"
	"testing"
	"time"
)

func openTest(t *testing.T) *SQLiteIndex {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndQueryChunks(t *testing.T) {
	s := openTest(t)
	s.RecordChunk(1, 0, -2, "data/chunk_1_0_-2.bin", 12, "abc")
	s.RecordChunk(0, 0, 0, "data/chunk_0_0_0.bin", 3, "def")
	// Re-saving the same chunk replaces its row.
	s.RecordChunk(1, 0, -2, "data/chunk_1_0_-2.bin", 15, "fff")
	s.Flush()

	rows, err := s.Chunks()
	if err != nil {
		t.Fatalf("Chunks: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].CX != 0 || rows[1].CX != 1 {
		t.Errorf("row order = %+v", rows)
	}
	if rows[1].Present != 15 || rows[1].Digest != "fff" {
		t.Errorf("replaced row = %+v", rows[1])
	}
}

func TestRecordSnapshotAndJob(t *testing.T) {
	s := openTest(t)
	s.RecordSnapshot("data/world.snap", 9)
	s.RecordJob("J1", "route", 14, 17.5, 42*time.Millisecond)
	s.Flush()

	snaps, err := s.Snapshots()
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 || snaps[0].Chunks != 9 {
		t.Errorf("snapshots = %+v", snaps)
	}

	jobs, err := s.Jobs(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 || jobs[0].Kind != "route" || jobs[0].DurationMs != 42 {
		t.Errorf("jobs = %+v", jobs)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	s := openTest(t)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	// Records after close are dropped, not panics.
	s.RecordSnapshot("late", 1)
}
