package engine

const (
	// Validation constants
	MinBoardSize          = 2
	MaxBoardSize          = 500
	MinNumColors          = 4
	MaxNumColors          = 8
	DefaultNumColors      = 4
	DefaultBoardSize      = 5
	DefaultSensorAccuracy = 0.999

	// NoReading marks a snapshot that has not been stepped yet.
	NoReading = -1
)

// Position represents a grid cell. X is the row and Y the column, matching
// the {"x": row, "y": col} shape the frontend reads.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Config holds the parameters of one localization game.
type Config struct {
	Name           string  `json:"name" mapstructure:"name"`
	Description    string  `json:"description" mapstructure:"description"`
	BoardSize      int     `json:"board_size" mapstructure:"board_size"`
	SensorAccuracy float64 `json:"sensor_accuracy" mapstructure:"sensor_accuracy"`
	NumColors      int     `json:"num_colors" mapstructure:"num_colors"`

	// Seed fixes the random source. Zero draws a fresh seed.
	Seed uint64 `json:"seed,omitempty" mapstructure:"seed"`
}

// Snapshot is a copy of the engine state handed to callers. Mutating it has
// no effect on the engine.
type Snapshot struct {
	Board            [][]int     `json:"board"`
	ProbabilityField [][]float64 `json:"probability_field"`
	Vehicle          Position    `json:"vehicle_position"`
	SensorReading    int         `json:"sensor_reading"`
	Step             int         `json:"step"`
	NumColors        int         `json:"num_colors"`
	SensorAccuracy   float64     `json:"sensor_accuracy"`
}

// BoardSize returns N for the N×N grid.
func (s *Snapshot) BoardSize() int {
	return len(s.Board)
}

// Estimate summarizes the posterior: the most likely cell and how sure the
// filter is about it.
type Estimate struct {
	Position    Position `json:"position"`
	Probability float64  `json:"probability"`
	Entropy     float64  `json:"entropy"`
	Correct     bool     `json:"correct"`
	Distance    int      `json:"distance"`
	Step        int      `json:"step"`
}
