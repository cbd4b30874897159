// Package indexdb keeps a secondary sqlite index of persisted
// artifacts: one row per saved chunk file, one per snapshot, one per
// served nav job. Writes go through a single writer goroutine so the
// hot paths never block on disk; a full buffer drops the record (the
// chunk files themselves stay the source of truth).
package indexdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqChunk reqKind = iota + 1
	reqSnapshot
	reqJob
	reqSync
)

type req struct {
	kind reqKind

	chunk    ChunkRow
	snapshot SnapshotRow
	job      JobRow
	sync     chan struct{}
}

type ChunkRow struct {
	CX, CY, CZ int
	Path       string
	Present    int
	Digest     string
	SavedAt    string
}

type SnapshotRow struct {
	Path    string
	Chunks  int
	SavedAt string
}

type JobRow struct {
	JobID      string
	Kind       string // "route" or "tour"
	Nodes      int
	Cost       float64
	DurationMs int64
	RecordedAt string
}

func Open(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-style workload; NORMAL is enough
	// durability for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chunks (
			cx INTEGER NOT NULL,
			cy INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			path TEXT NOT NULL,
			present INTEGER NOT NULL,
			digest TEXT NOT NULL,
			saved_at TEXT NOT NULL,
			PRIMARY KEY (cx, cy, cz)
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			path TEXT NOT NULL,
			chunks INTEGER NOT NULL,
			saved_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS jobs (
			job_id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			nodes INTEGER NOT NULL,
			cost REAL NOT NULL,
			duration_ms INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_kind ON jobs(kind, recorded_at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// RecordChunk indexes one saved chunk file. Non-blocking.
func (s *SQLiteIndex) RecordChunk(cx, cy, cz int, path string, present int, digest string) {
	if s == nil || s.closed.Load() {
		return
	}
	r := ChunkRow{CX: cx, CY: cy, CZ: cz, Path: path, Present: present, Digest: digest, SavedAt: now()}
	select {
	case s.ch <- req{kind: reqChunk, chunk: r}:
	default:
	}
}

// RecordSnapshot indexes one written snapshot file. Non-blocking.
func (s *SQLiteIndex) RecordSnapshot(path string, chunks int) {
	if s == nil || s.closed.Load() {
		return
	}
	r := SnapshotRow{Path: path, Chunks: chunks, SavedAt: now()}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
	}
}

// RecordJob indexes one served route/tour job. Non-blocking.
func (s *SQLiteIndex) RecordJob(jobID, kind string, nodes int, cost float64, duration time.Duration) {
	if s == nil || s.closed.Load() {
		return
	}
	r := JobRow{
		JobID: jobID, Kind: kind, Nodes: nodes, Cost: cost,
		DurationMs: duration.Milliseconds(), RecordedAt: now(),
	}
	select {
	case s.ch <- req{kind: reqJob, job: r}:
	default:
	}
}

func (s *SQLiteIndex) loop() {
	insertChunk, _ := s.db.Prepare(`INSERT OR REPLACE INTO chunks(cx,cy,cz,path,present,digest,saved_at) VALUES(?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT INTO snapshots(path,chunks,saved_at) VALUES(?,?,?)`)
	insertJob, _ := s.db.Prepare(`INSERT OR REPLACE INTO jobs(job_id,kind,nodes,cost,duration_ms,recorded_at) VALUES(?,?,?,?,?,?)`)
	defer func() {
		if insertChunk != nil {
			_ = insertChunk.Close()
		}
		if insertSnapshot != nil {
			_ = insertSnapshot.Close()
		}
		if insertJob != nil {
			_ = insertJob.Close()
		}
	}()

	for r := range s.ch {
		switch r.kind {
		case reqChunk:
			if insertChunk != nil {
				_, _ = insertChunk.Exec(r.chunk.CX, r.chunk.CY, r.chunk.CZ, r.chunk.Path, r.chunk.Present, r.chunk.Digest, r.chunk.SavedAt)
			}
		case reqSnapshot:
			if insertSnapshot != nil {
				_, _ = insertSnapshot.Exec(r.snapshot.Path, r.snapshot.Chunks, r.snapshot.SavedAt)
			}
		case reqJob:
			if insertJob != nil {
				_, _ = insertJob.Exec(r.job.JobID, r.job.Kind, r.job.Nodes, r.job.Cost, r.job.DurationMs, r.job.RecordedAt)
			}
		case reqSync:
			close(r.sync)
		}
	}
}

// Flush blocks until every record queued before the call has been
// written. Test and shutdown helper.
func (s *SQLiteIndex) Flush() {
	if s == nil || s.closed.Load() {
		return
	}
	done := make(chan struct{})
	s.ch <- req{kind: reqSync, sync: done}
	<-done
}

// Chunks returns every indexed chunk row ordered by key.
func (s *SQLiteIndex) Chunks() ([]ChunkRow, error) {
	rows, err := s.db.Query(`SELECT cx,cy,cz,path,present,digest,saved_at FROM chunks ORDER BY cx,cy,cz`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ChunkRow
	for rows.Next() {
		var r ChunkRow
		if err := rows.Scan(&r.CX, &r.CY, &r.CZ, &r.Path, &r.Present, &r.Digest, &r.SavedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Snapshots returns indexed snapshots, newest first.
func (s *SQLiteIndex) Snapshots() ([]SnapshotRow, error) {
	rows, err := s.db.Query(`SELECT path,chunks,saved_at FROM snapshots ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SnapshotRow
	for rows.Next() {
		var r SnapshotRow
		if err := rows.Scan(&r.Path, &r.Chunks, &r.SavedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Jobs returns up to limit recent jobs, newest first.
func (s *SQLiteIndex) Jobs(limit int) ([]JobRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`SELECT job_id,kind,nodes,cost,duration_ms,recorded_at FROM jobs ORDER BY recorded_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []JobRow
	for rows.Next() {
		var r JobRow
		if err := rows.Scan(&r.JobID, &r.Kind, &r.Nodes, &r.Cost, &r.DurationMs, &r.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
