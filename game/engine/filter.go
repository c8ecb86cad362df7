package engine

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// neighborOffsets are the four axis-aligned moves of the vehicle
var neighborOffsets = [4]Position{
	{X: -1, Y: 0},
	{X: 1, Y: 0},
	{X: 0, Y: -1},
	{X: 0, Y: 1},
}

// OutDegree returns the number of valid neighbors of a cell: 2 in a corner,
// 3 on an edge, 4 in the interior.
func OutDegree(pos Position, boardSize int) int {
	degree := 0
	for _, off := range neighborOffsets {
		if InBounds(pos.X+off.X, boardSize) && InBounds(pos.Y+off.Y, boardSize) {
			degree++
		}
	}
	return degree
}

// degreeMatrix precomputes OutDegree for every cell
func degreeMatrix(boardSize int) *mat.Dense {
	deg := mat.NewDense(boardSize, boardSize, nil)
	for r := 0; r < boardSize; r++ {
		for c := 0; c < boardSize; c++ {
			deg.Set(r, c, float64(OutDegree(Position{X: r, Y: c}, boardSize)))
		}
	}
	return deg
}

// Predict applies the motion model to prior. Each cell gathers mass from its
// neighbors, every neighbor contributing its prior mass divided by its own
// out-degree. Gathering rather than scattering means each edge is counted
// once. prior is not modified.
func Predict(prior *mat.Dense) *mat.Dense {
	n, _ := prior.Dims()
	deg := degreeMatrix(n)
	predicted := mat.NewDense(n, n, nil)

	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			var mass float64
			for _, off := range neighborOffsets {
				nr, nc := r+off.X, c+off.Y
				if !InBounds(nr, n) || !InBounds(nc, n) {
					continue
				}
				mass += prior.At(nr, nc) / deg.At(nr, nc)
			}
			predicted.Set(r, c, mass)
		}
	}

	return predicted
}

// Likelihood builds the observation likelihood field for a sensor reading:
// pHit on cells whose color equals the reading, pMiss elsewhere.
func Likelihood(board [][]int, reading int, accuracy float64, numColors int) *mat.Dense {
	n := len(board)
	pHit, pMiss := SensorModel(accuracy, numColors)
	likelihood := mat.NewDense(n, n, nil)

	for r, row := range board {
		for c, color := range row {
			if color == reading {
				likelihood.Set(r, c, pHit)
			} else {
				likelihood.Set(r, c, pMiss)
			}
		}
	}

	return likelihood
}

// Correct multiplies predicted by likelihood elementwise and normalizes the
// result. A non-positive total cannot be turned into a distribution and is
// reported as ErrDegeneratePosterior; neither input is modified.
func Correct(predicted, likelihood *mat.Dense) (*mat.Dense, error) {
	n, _ := predicted.Dims()
	posterior := mat.NewDense(n, n, nil)
	posterior.MulElem(predicted, likelihood)

	total := mat.Sum(posterior)
	if !(total > 0) {
		return nil, fmt.Errorf("%w: unnormalized posterior sum is %v", ErrDegeneratePosterior, total)
	}

	posterior.Scale(1/total, posterior)
	return posterior, nil
}

// UpdatePosterior runs one full filter step: predict with the motion model,
// then correct with the likelihood of the observed color.
func UpdatePosterior(prior *mat.Dense, board [][]int, reading int, accuracy float64, numColors int) (*mat.Dense, error) {
	predicted := Predict(prior)
	likelihood := Likelihood(board, reading, accuracy, numColors)
	return Correct(predicted, likelihood)
}

// UniformField returns the N×N field with every cell at 1/N².
func UniformField(boardSize int) *mat.Dense {
	cells := boardSize * boardSize
	data := make([]float64, cells)
	p := 1.0 / float64(cells)
	for i := range data {
		data[i] = p
	}
	return mat.NewDense(boardSize, boardSize, data)
}
