package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"minepath.ai/internal/nav/path"
	"minepath.ai/internal/persistence/indexdb"
	snapv1 "minepath.ai/internal/persistence/snapshot"
	"minepath.ai/internal/service"
	"minepath.ai/internal/transport/ws"
	"minepath.ai/internal/tuning"
	"minepath.ai/internal/world/blocks"
	"minepath.ai/internal/world/chunkfile"
	"minepath.ai/internal/world/store"
)

func main() {
	var (
		addr       = flag.String("addr", "", "http listen address (overrides tuning)")
		tuningPath = flag.String("tuning", "configs/tuning.yaml", "path to tuning.yaml")
		dataDir    = flag.String("data", "", "chunk data directory (overrides tuning)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index")
		resume     = flag.Bool("resume", true, "restore from the configured snapshot if present")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[navd] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", *tuningPath)
		tune = tuning.Default()
	}
	if strings.TrimSpace(*addr) != "" {
		tune.ListenAddr = *addr
	}
	if strings.TrimSpace(*dataDir) != "" {
		tune.DataDir = *dataDir
	}

	cat := blocks.Default()
	if tune.BlocksPath != "" {
		cat, err = blocks.Load(tune.BlocksPath)
		if err != nil {
			logger.Fatalf("load blocks: %v", err)
		}
	}

	st, err := openStore(tune, *resume, logger)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.Open(tune.DBPath)
		if err != nil {
			logger.Fatalf("open index db: %v", err)
		}
		defer idx.Close()
	}

	svc, err := service.New(service.Config{
		Store:  st,
		Blocks: cat,
		Index:  idx,
		Costs: path.Costs{
			Move:        tune.Costs.Move,
			Turn:        tune.Costs.Turn,
			TurnAround:  tune.Costs.TurnAround,
			Obstruction: tune.Costs.Obstruction,
		},
		Workers:      tune.NavWorkers,
		Deadline:     time.Duration(tune.RouteDeadlineMs) * time.Millisecond,
		SnapshotPath: tune.SnapshotPath,
		Log:          logger,
	})
	if err != nil {
		logger.Fatalf("service: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/ws", ws.NewServer(svc, logger).Handler())

	srv := &http.Server{
		Addr:              tune.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (chunks=%s db=%s)", tune.ListenAddr, tune.DataDir, tune.DBPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	// Final snapshot on shutdown.
	if tune.SnapshotPath != "" {
		snap := st.ExportSnapshot()
		if err := snapv1.Write(tune.SnapshotPath, snap); err != nil {
			logger.Printf("final snapshot: %v", err)
		} else {
			logger.Printf("snapshot written to %s (%d chunks)", tune.SnapshotPath, len(snap.Chunks))
			if idx != nil {
				idx.RecordSnapshot(tune.SnapshotPath, len(snap.Chunks))
				idx.Flush()
			}
		}
	}
}

// openStore restores the configured snapshot when present, otherwise
// starts fresh and loads whatever chunk files the data dir holds.
func openStore(tune tuning.Tuning, resume bool, logger *log.Logger) (*store.Store, error) {
	if resume && tune.SnapshotPath != "" {
		if _, err := os.Stat(tune.SnapshotPath); err == nil {
			snap, err := snapv1.Read(tune.SnapshotPath)
			if err != nil {
				return nil, err
			}
			st, err := store.RestoreSnapshot(snap, tune.DataDir)
			if err != nil {
				return nil, err
			}
			logger.Printf("resumed from snapshot=%s chunks=%d", tune.SnapshotPath, len(snap.Chunks))
			return st, nil
		}
	}

	typ, err := chunkfile.ParseCellType(tune.CellType)
	if err != nil {
		return nil, err
	}
	st, err := store.New(store.Options{
		ChunkSize: [3]int{tune.ChunkSize[0], tune.ChunkSize[1], tune.ChunkSize[2]},
		CellType:  typ,
		DataDir:   tune.DataDir,
		Log:       logger,
	})
	if err != nil {
		return nil, err
	}
	n, err := st.LoadAll(context.Background())
	if err != nil {
		return nil, err
	}
	if n > 0 {
		logger.Printf("loaded %d chunk files from %s", n, tune.DataDir)
	}
	return st, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
