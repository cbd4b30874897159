package geom

import (
	"errors"
	"fmt"
)

// Facing is one of the six axis-aligned directions an agent can face.
// The four horizontal facings are ordered clockwise so quarter turns are
// index arithmetic mod 4.
type Facing int

const (
	North Facing = iota // -Z
	East                // +X
	South               // +Z
	West                // -X
	Up                  // +Y
	Down                // -Y
)

var facingNames = [...]string{"NORTH", "EAST", "SOUTH", "WEST", "UP", "DOWN"}

func (f Facing) String() string {
	if f < North || f > Down {
		return fmt.Sprintf("FACING(%d)", int(f))
	}
	return facingNames[f]
}

var facingDeltas = [...]Vec3i{
	North: {Z: -1},
	East:  {X: 1},
	South: {Z: 1},
	West:  {X: -1},
	Up:    {Y: 1},
	Down:  {Y: -1},
}

// Delta returns the unit coordinate offset of a single move in facing f.
func (f Facing) Delta() Vec3i {
	return facingDeltas[f]
}

func (f Facing) IsVertical() bool {
	return f == Up || f == Down
}

func (f Facing) Opposite() Facing {
	switch f {
	case Up:
		return Down
	case Down:
		return Up
	default:
		return (f + 2) % 4
	}
}

// Turn is the minimal single turning action needed to face a neighbor.
type Turn int

const (
	TurnNone Turn = iota
	TurnLeft
	TurnRight
	TurnAround
	TurnVertical
)

var turnNames = [...]string{"NONE", "LEFT", "RIGHT", "AROUND", "VERTICAL"}

func (t Turn) String() string {
	if t < TurnNone || t > TurnVertical {
		return fmt.Sprintf("TURN(%d)", int(t))
	}
	return turnNames[t]
}

// ErrNotAdjacent reports facings requested between nodes that are not
// unit-distance apart along exactly one axis.
var ErrNotAdjacent = errors.New("nodes not adjacent")

// FacingBetween returns the facing of the unit move from -> to. The two
// nodes must differ by exactly 1 along exactly one axis.
func FacingBetween(from, to Vec3i) (Facing, error) {
	d := to.Sub(from)
	for f, fd := range facingDeltas {
		if d == fd {
			return Facing(f), nil
		}
	}
	return North, fmt.Errorf("%w: %s -> %s", ErrNotAdjacent, from, to)
}

// RelativeOrientation returns the minimal turning action needed to face
// `to` from `from` while facing `facing`. Vertical moves never require a
// turn unless respectVertical is set, in which case they report
// TurnVertical.
func RelativeOrientation(from, to Vec3i, facing Facing, respectVertical bool) (Turn, error) {
	target, err := FacingBetween(from, to)
	if err != nil {
		return TurnNone, err
	}
	if target.IsVertical() {
		if respectVertical {
			return TurnVertical, nil
		}
		return TurnNone, nil
	}
	if facing.IsVertical() {
		// An agent facing up/down has no horizontal heading to turn
		// from; treat any horizontal move as a quarter turn.
		return TurnRight, nil
	}
	switch (target - facing + 4) % 4 {
	case 0:
		return TurnNone, nil
	case 1:
		return TurnRight, nil
	case 2:
		return TurnAround, nil
	default:
		return TurnLeft, nil
	}
}

// OrientationAfterMove returns the facing an agent holds after stepping
// from -> to. Vertical steps keep the previous facing.
func OrientationAfterMove(from, to Vec3i, facing Facing) (Facing, error) {
	target, err := FacingBetween(from, to)
	if err != nil {
		return facing, err
	}
	if target.IsVertical() {
		return facing, nil
	}
	return target, nil
}
