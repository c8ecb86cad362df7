package engine

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const tolerance = 1e-9

func TestOutDegree(t *testing.T) {
	tests := []struct {
		name     string
		pos      Position
		n        int
		expected int
	}{
		{"corner top-left", Position{0, 0}, 4, 2},
		{"corner bottom-right", Position{3, 3}, 4, 2},
		{"top edge", Position{0, 1}, 4, 3},
		{"left edge", Position{2, 0}, 4, 3},
		{"interior", Position{1, 2}, 4, 4},
		{"every cell of 2x2 is a corner", Position{1, 0}, 2, 2},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, OutDegree(test.pos, test.n))
		})
	}
}

func TestPredict_CornerSplitsEvenlyOnTwoByTwo(t *testing.T) {
	prior := mat.NewDense(2, 2, []float64{
		1, 0,
		0, 0,
	})

	predicted := Predict(prior)

	assert.InDelta(t, 0.0, predicted.At(0, 0), tolerance)
	assert.InDelta(t, 0.5, predicted.At(0, 1), tolerance)
	assert.InDelta(t, 0.5, predicted.At(1, 0), tolerance)
	assert.InDelta(t, 0.0, predicted.At(1, 1), tolerance)
}

func TestPredict_EdgeAndInteriorSplit(t *testing.T) {
	// Mass on an edge cell of a 3x3 board goes to its three neighbors
	edge := mat.NewDense(3, 3, nil)
	edge.Set(0, 1, 1)
	predicted := Predict(edge)
	assert.InDelta(t, 1.0/3, predicted.At(0, 0), tolerance)
	assert.InDelta(t, 1.0/3, predicted.At(0, 2), tolerance)
	assert.InDelta(t, 1.0/3, predicted.At(1, 1), tolerance)
	assert.InDelta(t, 0.0, predicted.At(0, 1), tolerance)

	// Mass in the center goes to all four neighbors
	center := mat.NewDense(3, 3, nil)
	center.Set(1, 1, 1)
	predicted = Predict(center)
	for _, p := range []Position{{0, 1}, {1, 0}, {1, 2}, {2, 1}} {
		assert.InDelta(t, 0.25, predicted.At(p.X, p.Y), tolerance, "cell %+v", p)
	}
}

func TestPredict_ConservesMass(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	for n := 2; n <= 7; n++ {
		prior := mat.NewDense(n, n, nil)
		for r := 0; r < n; r++ {
			for c := 0; c < n; c++ {
				prior.Set(r, c, rng.Float64())
			}
		}
		prior.Scale(1/mat.Sum(prior), prior)

		predicted := Predict(prior)
		assert.InDelta(t, 1.0, mat.Sum(predicted), tolerance, "n=%d", n)
	}
}

func TestPredict_DoesNotModifyPrior(t *testing.T) {
	prior := UniformField(3)
	before := mat.DenseCopyOf(prior)
	Predict(prior)
	assert.True(t, mat.Equal(before, prior))
}

func TestSensorModel_Symmetry(t *testing.T) {
	for _, accuracy := range []float64{1e-6, 0.1, 0.5, 0.9, 0.999, 1} {
		for numColors := 1; numColors <= 8; numColors++ {
			pHit, pMiss := SensorModel(accuracy, numColors)
			assert.InDelta(t, 1.0, pHit+pMiss, 1e-12, "acc=%v colors=%d", accuracy, numColors)
			assert.GreaterOrEqual(t, pHit, accuracy)
		}
	}
}

func TestSensorModel_Values(t *testing.T) {
	pHit, pMiss := SensorModel(0.8, 4)
	assert.InDelta(t, 0.85, pHit, 1e-12)
	assert.InDelta(t, 0.15, pMiss, 1e-12)

	pHit, pMiss = SensorModel(1, 4)
	assert.Equal(t, 1.0, pHit)
	assert.Equal(t, 0.0, pMiss)
}

func TestReadSensor_PerfectSensorReportsTrueColor(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 12))
	board := [][]int{
		{0, 1},
		{2, 3},
	}
	for i := 0; i < 200; i++ {
		pos := RandomPosition(rng, 2)
		assert.Equal(t, board[pos.X][pos.Y], ReadSensor(rng, board, pos, 1, 4))
	}
}

func TestReadSensor_NoisySensorStaysInRange(t *testing.T) {
	rng := rand.New(rand.NewPCG(13, 14))
	board := [][]int{{0, 0}, {0, 0}}
	sawOther := false
	for i := 0; i < 500; i++ {
		reading := ReadSensor(rng, board, Position{0, 0}, 0.01, 6)
		require.GreaterOrEqual(t, reading, 0)
		require.Less(t, reading, 6)
		if reading != 0 {
			sawOther = true
		}
	}
	assert.True(t, sawOther, "a 1%% accurate sensor should report other colors")
}

func TestLikelihood(t *testing.T) {
	board := [][]int{
		{0, 1},
		{1, 2},
	}
	likelihood := Likelihood(board, 1, 0.8, 4)
	pHit, pMiss := SensorModel(0.8, 4)

	assert.Equal(t, pMiss, likelihood.At(0, 0))
	assert.Equal(t, pHit, likelihood.At(0, 1))
	assert.Equal(t, pHit, likelihood.At(1, 0))
	assert.Equal(t, pMiss, likelihood.At(1, 1))
}

func TestCorrect_Normalizes(t *testing.T) {
	predicted := mat.NewDense(2, 2, []float64{0.1, 0.2, 0.3, 0.4})
	likelihood := mat.NewDense(2, 2, []float64{1, 0.5, 0.5, 0})

	posterior, err := Correct(predicted, likelihood)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, mat.Sum(posterior), tolerance)
	assert.InDelta(t, 0.1/0.35, posterior.At(0, 0), tolerance)
	assert.InDelta(t, 0.0, posterior.At(1, 1), tolerance)
}

func TestCorrect_DegenerateSum(t *testing.T) {
	predicted := mat.NewDense(2, 2, []float64{0.5, 0, 0, 0.5})
	likelihood := mat.NewDense(2, 2, []float64{0, 1, 1, 0})

	posterior, err := Correct(predicted, likelihood)
	assert.Nil(t, posterior)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDegeneratePosterior))
}

func TestUpdatePosterior_InvariantsOverManySteps(t *testing.T) {
	rng := rand.New(rand.NewPCG(21, 22))
	board := [][]int{
		{0, 1, 2},
		{3, 0, 1},
		{2, 3, 0},
	}
	field := UniformField(3)

	for i := 0; i < 100; i++ {
		reading := rng.IntN(4)
		next, err := UpdatePosterior(field, board, reading, 0.9, 4)
		require.NoError(t, err, "step %d", i)
		assert.InDelta(t, 1.0, mat.Sum(next), tolerance, "step %d", i)
		for _, v := range flatten(next) {
			require.GreaterOrEqual(t, v, 0.0)
		}
		field = next
	}
}

func TestUniformField(t *testing.T) {
	field := UniformField(4)
	r, c := field.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 4, c)
	assert.InDelta(t, 1.0, mat.Sum(field), tolerance)
	assert.Equal(t, 1.0/16, field.At(2, 3))
}
