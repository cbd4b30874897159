package path

import (
	"math"

	"minepath.ai/internal/nav/geom"
	"minepath.ai/internal/world/blocks"
)

// Costs is the tunable price table for the default cost model.
type Costs struct {
	Move        float64 // base cost of one step
	Turn        float64 // quarter turn left/right
	TurnAround  float64 // exact reversal of facing
	Obstruction float64 // clearing a non-air destination before stepping in
}

// DefaultCosts keeps the Manhattan heuristic's +1 diagonal correction
// admissible: a forced quarter turn never costs less than 1.
var DefaultCosts = Costs{
	Move:        1,
	Turn:        1,
	TurnAround:  2,
	Obstruction: 1,
}

func (c Costs) withDefaults() Costs {
	if c.Move <= 0 {
		c.Move = DefaultCosts.Move
	}
	if c.Turn <= 0 {
		c.Turn = DefaultCosts.Turn
	}
	if c.TurnAround <= 0 {
		c.TurnAround = DefaultCosts.TurnAround
	}
	if c.Obstruction <= 0 {
		c.Obstruction = DefaultCosts.Obstruction
	}
	return c
}

// NewCost builds the orientation/obstruction-aware cost function: base
// move cost, plus a turning cost when the facing implied by the step
// differs from the current facing, plus a clearing cost when the
// destination cell holds a non-air block. Unobserved cells cost like
// air. Non-adjacent inputs price as +Inf.
func NewCost(world World, classifier blocks.Classifier, costs Costs) CostFunc {
	costs = costs.withDefaults()
	return func(from, to geom.Vec3i, facing geom.Facing) float64 {
		turn, err := geom.RelativeOrientation(from, to, facing, false)
		if err != nil {
			return math.Inf(1)
		}
		c := costs.Move
		switch turn {
		case geom.TurnLeft, geom.TurnRight:
			c += costs.Turn
		case geom.TurnAround:
			c += costs.TurnAround
		}
		if v, ok := world.Get(to); ok && classifier.Classify(v) != blocks.Air {
			c += costs.Obstruction
		}
		return c
	}
}
