package engine

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// SensorModel returns the likelihood of a color match and of a mismatch.
//
// A matching reading can come from two disjoint events: the sensor read the
// true color, or it fell back to a random color that happened to match. The
// generative process in ReadSensor is exactly this mixture, so normalization
// depends on the two staying in sync.
func SensorModel(accuracy float64, numColors int) (pHit, pMiss float64) {
	pHit = accuracy + (1-accuracy)*(1.0/float64(numColors))
	pMiss = 1.0 - pHit
	return pHit, pMiss
}

// ReadSensor produces the observed color for the vehicle at pos. With
// probability accuracy it reports the true color; otherwise it reports a
// uniform random color, which may coincide with the true one.
func ReadSensor(rng *rand.Rand, board [][]int, pos Position, accuracy float64, numColors int) int {
	trial := distuv.Bernoulli{P: accuracy, Src: rng}
	if trial.Rand() == 1 {
		return board[pos.X][pos.Y]
	}
	return rng.IntN(numColors)
}
