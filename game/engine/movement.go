package engine

import "math/rand/v2"

// Axis selects the coordinate a move changes
type Axis int

const (
	AxisRow Axis = iota
	AxisCol
)

// InBounds checks if a coordinate lies on an N×N board
func InBounds(v, boardSize int) bool {
	return v >= 0 && v < boardSize
}

// BounceMove applies delta along axis. When that would leave the board the
// vehicle bounces and moves by -delta instead, so it always moves exactly one
// cell and never stays still.
func BounceMove(pos Position, axis Axis, delta, boardSize int) Position {
	next := pos
	coord := &next.X
	if axis == AxisCol {
		coord = &next.Y
	}

	if InBounds(*coord+delta, boardSize) {
		*coord += delta
	} else {
		*coord -= delta
	}
	return next
}

// RandomMove draws an axis and a ±1 delta uniformly and returns the bounced
// position. pos is not modified.
func RandomMove(rng *rand.Rand, pos Position, boardSize int) Position {
	axis := Axis(rng.IntN(2))
	delta := 1
	if rng.IntN(2) == 0 {
		delta = -1
	}
	return BounceMove(pos, axis, delta, boardSize)
}

// RandomPosition draws a cell uniformly over the board
func RandomPosition(rng *rand.Rand, boardSize int) Position {
	return Position{X: rng.IntN(boardSize), Y: rng.IntN(boardSize)}
}
