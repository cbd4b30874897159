// Package tour orders a set of target coordinates into an efficient
// visiting sequence: nearest-neighbor construction refined by 2-opt.
// Tours are closed loops unless both anchors are given, in which case
// the result is an open path from Start to End and the wrap-around edge
// is never counted. 2-opt is a first-improvement local search; it never
// worsens a tour but does not guarantee the global optimum.
package tour

import (
	"context"
	"fmt"

	"minepath.ai/internal/nav/geom"
)

// Metric prices one leg. The default is straight-line distance; navd
// can substitute pathfinder-derived costs.
type Metric func(a, b geom.Vec3i) float64

// Euclidean is the default metric.
func Euclidean(a, b geom.Vec3i) float64 {
	return geom.Euclidean(a, b)
}

type Options struct {
	// Start and End anchor an open tour. Both must be set or both
	// nil; anchors not already in the node set are inserted.
	Start, End *geom.Vec3i

	Metric Metric
}

type Tour struct {
	Order []geom.Vec3i
	Cost  float64
}

// Solve builds and refines a tour over nodes. The context is consulted
// between 2-opt passes; cancellation surfaces as ctx.Err().
func Solve(ctx context.Context, nodes []geom.Vec3i, opts Options) (Tour, error) {
	if (opts.Start == nil) != (opts.End == nil) {
		return Tour{}, fmt.Errorf("tour: start and end anchors must be given together")
	}
	metric := opts.Metric
	if metric == nil {
		metric = Euclidean
	}
	open := opts.Start != nil

	// De-duplicate while preserving caller order.
	seen := map[geom.Vec3i]bool{}
	var set []geom.Vec3i
	for _, n := range nodes {
		if !seen[n] {
			seen[n] = true
			set = append(set, n)
		}
	}

	var order []geom.Vec3i
	if open {
		order = constructOpen(set, *opts.Start, *opts.End, metric)
	} else {
		order = constructClosed(set, metric)
	}
	if len(order) == 0 {
		return Tour{}, nil
	}

	order, err := twoOpt(ctx, order, metric, !open)
	if err != nil {
		return Tour{}, err
	}
	return Tour{Order: order, Cost: tourCost(order, metric, !open)}, nil
}

// constructOpen runs nearest-neighbor from the start anchor over the
// interior nodes. The end anchor acts as a boundary marker: it is held
// out of every distance comparison (so its position never biases the
// greedy choice) and spliced back as the final stop.
func constructOpen(set []geom.Vec3i, start, end geom.Vec3i, metric Metric) []geom.Vec3i {
	var interior []geom.Vec3i
	for _, n := range set {
		if n != start && n != end {
			interior = append(interior, n)
		}
	}

	order := make([]geom.Vec3i, 0, len(interior)+2)
	order = append(order, start)
	cur := start
	remaining := append([]geom.Vec3i(nil), interior...)
	for len(remaining) > 0 {
		best := 0
		bestD := metric(cur, remaining[0])
		for i := 1; i < len(remaining); i++ {
			if d := metric(cur, remaining[i]); d < bestD {
				best, bestD = i, d
			}
		}
		cur = remaining[best]
		order = append(order, cur)
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return append(order, end)
}

func constructClosed(set []geom.Vec3i, metric Metric) []geom.Vec3i {
	if len(set) == 0 {
		return nil
	}
	order := make([]geom.Vec3i, 0, len(set))
	order = append(order, set[0])
	cur := set[0]
	remaining := append([]geom.Vec3i(nil), set[1:]...)
	for len(remaining) > 0 {
		best := 0
		bestD := metric(cur, remaining[0])
		for i := 1; i < len(remaining); i++ {
			if d := metric(cur, remaining[i]); d < bestD {
				best, bestD = i, d
			}
		}
		cur = remaining[best]
		order = append(order, cur)
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return order
}

const improveEps = 1e-9

// twoOpt applies first-improvement segment reversals until a full scan
// finds none. Each applied reversal restarts the scan. For open tours
// the fixed endpoints never move and the wrap edge does not exist.
func twoOpt(ctx context.Context, order []geom.Vec3i, metric Metric, closed bool) ([]geom.Vec3i, error) {
	n := len(order)
	if n < 4 {
		return order, nil
	}
	lo, hi := 0, n-1
	if !closed {
		lo, hi = 1, n-2
	}

	improved := true
	for improved {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		improved = false
	scan:
		for i := lo; i < hi; i++ {
			for k := i + 1; k <= hi; k++ {
				if closed && i == 0 && k == n-1 {
					// Reversing the whole cycle is a no-op.
					continue
				}
				if reversalGain(order, i, k, metric, closed) > improveEps {
					reverse(order[i : k+1])
					improved = true
					break scan
				}
			}
		}
	}
	return order, nil
}

// reversalGain is the cost removed by reversing order[i..k]: only the
// two boundary edges change.
func reversalGain(order []geom.Vec3i, i, k int, metric Metric, closed bool) float64 {
	n := len(order)
	var prev, next geom.Vec3i
	if closed {
		prev = order[(i-1+n)%n]
		next = order[(k+1)%n]
	} else {
		prev = order[i-1]
		next = order[k+1]
	}
	before := metric(prev, order[i]) + metric(order[k], next)
	after := metric(prev, order[k]) + metric(order[i], next)
	return before - after
}

func reverse(s []geom.Vec3i) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func tourCost(order []geom.Vec3i, metric Metric, closed bool) float64 {
	total := 0.0
	for i := 1; i < len(order); i++ {
		total += metric(order[i-1], order[i])
	}
	if closed && len(order) > 1 {
		total += metric(order[len(order)-1], order[0])
	}
	return total
}
