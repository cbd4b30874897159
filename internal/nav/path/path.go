// Package path implements A* shortest-path search over the 6-connected
// lattice implied by the world model, with an orientation-aware cost
// model: turning and clearing obstructions both cost extra on top of
// the base move.
package path

import (
	"context"
	"errors"
	"fmt"

	"minepath.ai/internal/nav/geom"
	"minepath.ai/internal/nav/pqueue"
	"minepath.ai/internal/world/blocks"
)

// World is the read surface the pathfinder needs from the spatial
// store. ok=false means the cell was never observed.
type World interface {
	Get(p geom.Vec3i) (int32, bool)
}

// ErrUnreachable reports that the open set emptied before the goal was
// popped: no path exists through the known world.
var ErrUnreachable = errors.New("path: goal unreachable")

const (
	// Open world-height band; neighbors outside it are never
	// generated.
	MinY = 1
	MaxY = 255

	// At or below this elevation the classifier is consulted: cells
	// in the floor category (bedrock) cannot be entered at all.
	FloorProbeMaxY = 5
)

// CostFunc prices the unit move from -> to while facing `facing` on
// arrival at `from`. Must be non-negative.
type CostFunc func(from, to geom.Vec3i, facing geom.Facing) float64

// HeuristicFunc estimates remaining cost from n to goal. It must never
// overestimate for the cost function in use or A* loses optimality.
type HeuristicFunc func(n, goal geom.Vec3i) float64

type Config struct {
	World      World
	Classifier blocks.Classifier

	// Cost and Heuristic default to the orientation-aware cost model
	// and the diagonal-corrected Manhattan heuristic.
	Cost      CostFunc
	Heuristic HeuristicFunc

	Costs Costs
}

type Finder struct {
	world      World
	classifier blocks.Classifier
	cost       CostFunc
	heuristic  HeuristicFunc
}

func New(cfg Config) (*Finder, error) {
	if cfg.World == nil {
		return nil, fmt.Errorf("path: nil world")
	}
	if cfg.Classifier == nil {
		return nil, fmt.Errorf("path: nil classifier")
	}
	f := &Finder{
		world:      cfg.World,
		classifier: cfg.Classifier,
		cost:       cfg.Cost,
		heuristic:  cfg.Heuristic,
	}
	if f.cost == nil {
		f.cost = NewCost(cfg.World, cfg.Classifier, cfg.Costs.withDefaults())
	}
	if f.heuristic == nil {
		f.heuristic = ManhattanDiag
	}
	return f, nil
}

// Path is the result of one search. Nodes is ordered goal-first with
// the node adjacent to the start last; the start itself is excluded.
// Callers that want travel order use Forward.
type Path struct {
	Nodes []geom.Vec3i
	Cost  float64
}

// Forward returns the nodes in travel order (start-adjacent first).
func (p Path) Forward() []geom.Vec3i {
	out := make([]geom.Vec3i, len(p.Nodes))
	for i, n := range p.Nodes {
		out[len(out)-1-i] = n
	}
	return out
}

// Find runs A* from start (facing startFacing) to goal. The context is
// checked between expansions; cancellation surfaces as ctx.Err().
func (f *Finder) Find(ctx context.Context, goal, start geom.Vec3i, startFacing geom.Facing) (Path, error) {
	open := pqueue.New[geom.Vec3i]()
	costSoFar := map[geom.Vec3i]float64{start: 0}
	cameFrom := map[geom.Vec3i]geom.Vec3i{}
	facingAt := map[geom.Vec3i]geom.Facing{start: startFacing}

	open.Put(start, f.heuristic(start, goal))

	for !open.Empty() {
		if err := ctx.Err(); err != nil {
			return Path{}, err
		}
		cur, _ := open.Pop()
		if cur == goal {
			return f.reconstruct(cameFrom, costSoFar, goal, start), nil
		}
		curCost := costSoFar[cur]
		curFacing := facingAt[cur]

		for _, face := range []geom.Facing{geom.North, geom.East, geom.South, geom.West, geom.Up, geom.Down} {
			nb := cur.Add(face.Delta())
			if !f.enterable(nb) {
				continue
			}
			nc := curCost + f.cost(cur, nb, curFacing)
			if old, seen := costSoFar[nb]; seen && nc >= old {
				continue
			}
			costSoFar[nb] = nc
			cameFrom[nb] = cur
			nf, err := geom.OrientationAfterMove(cur, nb, curFacing)
			if err != nil {
				// Neighbors are adjacent by construction.
				return Path{}, err
			}
			facingAt[nb] = nf
			// Stale duplicates of nb may remain queued; they are
			// harmless and pop after this cheaper entry.
			open.Put(nb, nc+f.heuristic(nb, goal))
		}
	}
	return Path{}, fmt.Errorf("%w: %s from %s", ErrUnreachable, goal, start)
}

// enterable applies the hard exclusions: the world-height band, and the
// impassable floor category near the world bottom.
func (f *Finder) enterable(p geom.Vec3i) bool {
	if p.Y < MinY || p.Y > MaxY {
		return false
	}
	if p.Y <= FloorProbeMaxY {
		if v, ok := f.world.Get(p); ok && f.classifier.Classify(v) == blocks.Floor {
			return false
		}
	}
	return true
}

func (f *Finder) reconstruct(cameFrom map[geom.Vec3i]geom.Vec3i, costSoFar map[geom.Vec3i]float64, goal, start geom.Vec3i) Path {
	var nodes []geom.Vec3i
	for n := goal; n != start; n = cameFrom[n] {
		nodes = append(nodes, n)
	}
	return Path{Nodes: nodes, Cost: costSoFar[goal]}
}
