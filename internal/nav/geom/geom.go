// Package geom holds the coordinate and facing primitives shared by the
// spatial store, the pathfinder and the tour optimizer. Everything here
// is a pure value type; Vec3i is usable as a map key.
package geom

import (
	"fmt"
	"math"
)

type Vec3i struct {
	X, Y, Z int
}

func (v Vec3i) Add(o Vec3i) Vec3i {
	return Vec3i{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

func (v Vec3i) Sub(o Vec3i) Vec3i {
	return Vec3i{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

func (v Vec3i) String() string {
	return fmt.Sprintf("(%d,%d,%d)", v.X, v.Y, v.Z)
}

// Manhattan returns the L1 distance between a and b.
func Manhattan(a, b Vec3i) int {
	return absInt(a.X-b.X) + absInt(a.Y-b.Y) + absInt(a.Z-b.Z)
}

// Euclidean returns the straight-line distance between a and b.
func Euclidean(a, b Vec3i) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	dz := float64(a.Z - b.Z)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func absInt(a int) int {
	if a < 0 {
		return -a
	}
	return a
}
