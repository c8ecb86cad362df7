package engine

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// denseToRows copies a matrix into a row-major [][]float64
func denseToRows(m *mat.Dense) [][]float64 {
	r, _ := m.Dims()
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = mat.Row(nil, i, m)
	}
	return rows
}

// rowsToDense builds a matrix from a square row-major grid
func rowsToDense(rows [][]float64) *mat.Dense {
	n := len(rows)
	m := mat.NewDense(n, n, nil)
	for i, row := range rows {
		m.SetRow(i, row)
	}
	return m
}

// copyBoard returns a deep copy of a board
func copyBoard(board [][]int) [][]int {
	out := make([][]int, len(board))
	for i, row := range board {
		out[i] = append([]int(nil), row...)
	}
	return out
}

// flatten returns the cells of a field in row-major order
func flatten(field *mat.Dense) []float64 {
	r, c := field.Dims()
	data := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		data = append(data, mat.Row(nil, i, field)...)
	}
	return data
}

// MostLikelyCell returns the cell with the highest posterior mass and that mass
func MostLikelyCell(field [][]float64) (Position, float64) {
	if len(field) == 0 {
		return Position{}, 0
	}
	return argmax(rowsToDense(field))
}

// FieldEntropy is the Shannon entropy of the posterior in nats. A uniform
// field on N×N cells has entropy ln(N²); a certain one has 0.
func FieldEntropy(field [][]float64) float64 {
	if len(field) == 0 {
		return 0
	}
	return entropy(rowsToDense(field))
}

func entropy(field *mat.Dense) float64 {
	return stat.Entropy(flatten(field))
}

func argmax(field *mat.Dense) (Position, float64) {
	_, n := field.Dims()
	data := flatten(field)
	idx := floats.MaxIdx(data)
	return Position{X: idx / n, Y: idx % n}, data[idx]
}

// FieldSum adds up every cell of the field
func FieldSum(field [][]float64) float64 {
	var total float64
	for _, row := range field {
		total += floats.Sum(row)
	}
	return total
}

// CertaintyThreshold is the posterior mass above which the estimate counts as
// settled for a given sensor accuracy.
func CertaintyThreshold(accuracy float64) float64 {
	return 1 - (1-accuracy)*5
}

// CountColor counts how many board cells carry the given color
func CountColor(board [][]int, color int) int {
	count := 0
	for _, row := range board {
		for _, c := range row {
			if c == color {
				count++
			}
		}
	}
	return count
}

// ManhattanDistance calculates the Manhattan distance between two positions
func ManhattanDistance(from, to Position) int {
	dx := from.X - to.X
	if dx < 0 {
		dx = -dx
	}
	dy := from.Y - to.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}
