package path

import "minepath.ai/internal/nav/geom"

// ManhattanDiag is the Manhattan distance with a +1 correction when
// both horizontal deltas are nonzero: any such path needs at least one
// quarter turn, which the default cost model prices at 1.
func ManhattanDiag(n, goal geom.Vec3i) float64 {
	h := float64(geom.Manhattan(n, goal))
	if n.X != goal.X && n.Z != goal.Z {
		h++
	}
	return h
}

// EuclideanDist is the straight-line heuristic. Looser than
// ManhattanDiag on this lattice but always admissible.
func EuclideanDist(n, goal geom.Vec3i) float64 {
	return geom.Euclidean(n, goal)
}

// Zero turns A* into Dijkstra. Used as the optimality baseline in
// tests.
func Zero(_, _ geom.Vec3i) float64 { return 0 }
