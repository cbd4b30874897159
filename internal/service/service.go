// Package service executes protocol requests against the world store
// and the planners. The websocket layer stays a thin framing shim.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"minepath.ai/internal/nav/geom"
	"minepath.ai/internal/nav/path"
	"minepath.ai/internal/nav/tour"
	"minepath.ai/internal/persistence/indexdb"
	snapv1 "minepath.ai/internal/persistence/snapshot"
	"minepath.ai/internal/protocol"
	"minepath.ai/internal/world/blocks"
	"minepath.ai/internal/world/store"
)

type Config struct {
	Store  *store.Store
	Blocks blocks.Classifier

	// Index is optional; nil disables job/chunk bookkeeping.
	Index *indexdb.SQLiteIndex

	Costs        path.Costs
	Workers      int
	Deadline     time.Duration
	SnapshotPath string
	Log          *log.Logger
}

type Service struct {
	store  *store.Store
	blocks blocks.Classifier
	idx    *indexdb.SQLiteIndex

	costs    path.Costs
	sem      *semaphore.Weighted
	deadline time.Duration
	snapPath string
	log      *log.Logger
}

func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("service: nil store")
	}
	if cfg.Blocks == nil {
		return nil, errors.New("service: nil classifier")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	deadline := cfg.Deadline
	if deadline <= 0 {
		deadline = 5 * time.Second
	}
	logger := cfg.Log
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		store:    cfg.Store,
		blocks:   cfg.Blocks,
		idx:      cfg.Index,
		costs:    cfg.Costs,
		sem:      semaphore.NewWeighted(int64(workers)),
		deadline: deadline,
		snapPath: cfg.SnapshotPath,
		log:      logger,
	}, nil
}

// Welcome describes the running world to a fresh client.
func (s *Service) Welcome() protocol.WelcomeMsg {
	sx, sy, sz := s.store.ChunkSize()
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       uuid.NewString(),
		ChunkSize:       [3]int{sx, sy, sz},
		CellType:        s.store.CellType().String(),
	}
}

func errMsg(id, code, msg string) protocol.ErrorMsg {
	return protocol.ErrorMsg{Type: protocol.TypeError, ID: id, Code: code, Message: msg}
}

func okMsg(id, detail string) protocol.OKMsg {
	return protocol.OKMsg{Type: protocol.TypeOK, ID: id, Detail: detail}
}

func (s *Service) Observe(m protocol.ObserveMsg) any {
	for _, c := range m.Cells {
		p := protocol.Vec(c.Pos)
		if c.Value == nil {
			s.store.Clear(p)
			continue
		}
		if err := s.store.Set(p, *c.Value); err != nil {
			return errMsg(m.ID, protocol.ErrBadRequest, err.Error())
		}
	}
	return okMsg(m.ID, fmt.Sprintf("%d cells", len(m.Cells)))
}

func (s *Service) Query(m protocol.QueryMsg) any {
	out := protocol.CellsMsg{Type: protocol.TypeCells, ID: m.ID, Cells: make([]protocol.CellRead, 0, len(m.Positions))}
	for _, pos := range m.Positions {
		v, ok := s.store.Get(protocol.Vec(pos))
		cr := protocol.CellRead{Pos: pos}
		if ok {
			val := v
			cr.Value = &val
		}
		out.Cells = append(out.Cells, cr)
	}
	return out
}

func heuristicByName(name string) (path.HeuristicFunc, error) {
	switch name {
	case "", "manhattan":
		return path.ManhattanDiag, nil
	case "euclidean":
		return path.EuclideanDist, nil
	case "zero":
		return path.Zero, nil
	default:
		return nil, fmt.Errorf("unknown heuristic %q", name)
	}
}

func (s *Service) Route(ctx context.Context, m protocol.RouteMsg) any {
	facing, err := protocol.ParseFacing(m.Facing)
	if err != nil {
		return errMsg(m.ID, protocol.ErrBadRequest, err.Error())
	}
	h, err := heuristicByName(m.Heuristic)
	if err != nil {
		return errMsg(m.ID, protocol.ErrBadRequest, err.Error())
	}
	finder, err := path.New(path.Config{
		World:      s.store,
		Classifier: s.blocks,
		Heuristic:  h,
		Costs:      s.costs,
	})
	if err != nil {
		return errMsg(m.ID, protocol.ErrInternal, err.Error())
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return errMsg(m.ID, protocol.ErrBusy, "search slot unavailable")
	}
	defer s.sem.Release(1)

	jobID := uuid.NewString()
	cctx, cancel := context.WithTimeout(ctx, s.deadline)
	defer cancel()

	started := time.Now()
	p, err := finder.Find(cctx, protocol.Vec(m.Goal), protocol.Vec(m.Start), facing)
	elapsed := time.Since(started)
	if err != nil {
		s.recordJob(jobID, "route", 0, math.Inf(1), elapsed)
		switch {
		case errors.Is(err, path.ErrUnreachable):
			return errMsg(m.ID, protocol.ErrUnreachable, err.Error())
		case errors.Is(err, context.DeadlineExceeded):
			return errMsg(m.ID, protocol.ErrTimeout, "route deadline exceeded")
		default:
			return errMsg(m.ID, protocol.ErrInternal, err.Error())
		}
	}
	s.recordJob(jobID, "route", len(p.Nodes), p.Cost, elapsed)

	forward := p.Forward()
	out := protocol.RouteResultMsg{Type: protocol.TypeRouteRes, ID: m.ID, JobID: jobID, Cost: p.Cost, Path: make([][3]int, 0, len(forward))}
	for _, n := range forward {
		out.Path = append(out.Path, protocol.Arr(n))
	}
	return out
}

func (s *Service) Tour(ctx context.Context, m protocol.TourMsg) any {
	nodes := make([]geom.Vec3i, 0, len(m.Nodes))
	for _, n := range m.Nodes {
		nodes = append(nodes, protocol.Vec(n))
	}
	opts := tour.Options{}
	if m.Start != nil {
		v := protocol.Vec(*m.Start)
		opts.Start = &v
	}
	if m.End != nil {
		v := protocol.Vec(*m.End)
		opts.End = &v
	}
	switch m.Metric {
	case "", "euclidean", "manhattan", "path":
	default:
		return errMsg(m.ID, protocol.ErrBadRequest, fmt.Sprintf("unknown metric %q", m.Metric))
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return errMsg(m.ID, protocol.ErrBusy, "search slot unavailable")
	}
	defer s.sem.Release(1)

	jobID := uuid.NewString()
	cctx, cancel := context.WithTimeout(ctx, s.deadline)
	defer cancel()

	// The path metric runs A* inside the solver, so it must live under
	// the same deadline as the solve itself.
	switch m.Metric {
	case "", "euclidean":
		opts.Metric = tour.Euclidean
	case "manhattan":
		opts.Metric = func(a, b geom.Vec3i) float64 { return float64(geom.Manhattan(a, b)) }
	case "path":
		opts.Metric = s.pathMetric(cctx)
	}

	started := time.Now()
	t, err := tour.Solve(cctx, nodes, opts)
	elapsed := time.Since(started)
	if err != nil {
		s.recordJob(jobID, "tour", 0, math.Inf(1), elapsed)
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return errMsg(m.ID, protocol.ErrTimeout, "tour deadline exceeded")
		default:
			return errMsg(m.ID, protocol.ErrBadRequest, err.Error())
		}
	}
	if math.IsInf(t.Cost, 1) {
		s.recordJob(jobID, "tour", len(t.Order), t.Cost, elapsed)
		return errMsg(m.ID, protocol.ErrUnreachable, "some tour legs have no route")
	}
	s.recordJob(jobID, "tour", len(t.Order), t.Cost, elapsed)

	out := protocol.TourResultMsg{Type: protocol.TypeTourRes, ID: m.ID, JobID: jobID, Cost: t.Cost, Order: make([][3]int, 0, len(t.Order))}
	for _, n := range t.Order {
		out.Order = append(out.Order, protocol.Arr(n))
	}
	return out
}

// pathMetric plans each leg with the world-aware finder. Leg costs are
// memoized per request; an unreachable leg costs +Inf.
func (s *Service) pathMetric(ctx context.Context) tour.Metric {
	type pair struct{ a, b geom.Vec3i }
	cache := make(map[pair]float64)
	finder, err := path.New(path.Config{
		World:      s.store,
		Classifier: s.blocks,
		Costs:      s.costs,
	})
	if err != nil {
		return func(a, b geom.Vec3i) float64 { return math.Inf(1) }
	}
	return func(a, b geom.Vec3i) float64 {
		if a == b {
			return 0
		}
		if c, ok := cache[pair{a, b}]; ok {
			return c
		}
		if c, ok := cache[pair{b, a}]; ok {
			return c
		}
		p, err := finder.Find(ctx, b, a, geom.North)
		c := math.Inf(1)
		if err == nil {
			c = p.Cost
		}
		cache[pair{a, b}] = c
		return c
	}
}

func (s *Service) Save(ctx context.Context, m protocol.SaveMsg) any {
	if m.Scope == "all" {
		results, err := s.store.SaveAll(ctx)
		if err != nil {
			return errMsg(m.ID, protocol.ErrIO, err.Error())
		}
		for _, r := range results {
			s.recordChunk(r)
		}
		return okMsg(m.ID, fmt.Sprintf("%d chunks saved", len(results)))
	}
	if m.Pos == nil {
		return errMsg(m.ID, protocol.ErrBadRequest, "pos or scope required")
	}
	r, err := s.store.Save(protocol.Vec(*m.Pos))
	if err != nil {
		return errMsg(m.ID, protocol.ErrIO, err.Error())
	}
	s.recordChunk(r)
	return okMsg(m.ID, r.Path)
}

func (s *Service) Load(ctx context.Context, m protocol.LoadMsg) any {
	if m.Scope == "all" {
		n, err := s.store.LoadAll(ctx)
		if err != nil {
			return errMsg(m.ID, protocol.ErrIO, err.Error())
		}
		return okMsg(m.ID, fmt.Sprintf("%d chunks loaded", n))
	}
	if m.Pos == nil {
		return errMsg(m.ID, protocol.ErrBadRequest, "pos or scope required")
	}
	if err := s.store.Load(protocol.Vec(*m.Pos)); err != nil {
		return errMsg(m.ID, protocol.ErrIO, err.Error())
	}
	return okMsg(m.ID, "")
}

func (s *Service) Snapshot(m protocol.SnapshotMsg) any {
	if s.snapPath == "" {
		return errMsg(m.ID, protocol.ErrBadRequest, "snapshots not configured")
	}
	snap := s.store.ExportSnapshot()
	if err := snapv1.Write(s.snapPath, snap); err != nil {
		return errMsg(m.ID, protocol.ErrIO, err.Error())
	}
	if s.idx != nil {
		s.idx.RecordSnapshot(s.snapPath, len(snap.Chunks))
	}
	return okMsg(m.ID, s.snapPath)
}

func (s *Service) recordJob(jobID, kind string, nodes int, cost float64, d time.Duration) {
	if s.idx == nil {
		return
	}
	s.idx.RecordJob(jobID, kind, nodes, cost, d)
}

func (s *Service) recordChunk(r store.SaveResult) {
	if s.idx == nil {
		return
	}
	s.idx.RecordChunk(r.Key.CX, r.Key.CY, r.Key.CZ, r.Path, r.Present, r.Digest)
}
