package engine

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Engine provides the main interface for localization operations
type Engine interface {
	// Simulation
	Step() error
	Restart() error
	RestartWithColors(numColors int) error

	// Read-only views
	Board() [][]int
	ProbabilityField() [][]float64
	VehiclePosition() Position
	SensorReading() int
	StepCount() int
	Snapshot() *Snapshot
	Estimate() Estimate

	// Configuration
	Config() Config
}

// state is one immutable generation of the engine. Steps build a new state
// and swap the pointer; nothing writes into a published state.
type state struct {
	board     [][]int
	field     *mat.Dense
	vehicle   Position
	reading   int
	step      int
	numColors int
}

// LocalizationEngine implements the Engine interface. It is not safe for
// concurrent use; callers serialize access.
type LocalizationEngine struct {
	config Config
	rng    *rand.Rand
	state  *state
}

// NewEngine creates a new engine with the provided configuration. A zero
// Seed draws a random one.
func NewEngine(config *Config) (*LocalizationEngine, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	seed := config.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	return NewEngineWithSource(config, rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewEngineWithSource creates an engine drawing all randomness from src
func NewEngineWithSource(config *Config, src rand.Source) (*LocalizationEngine, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("%w: random source cannot be nil", ErrInvalidConfig)
	}

	e := &LocalizationEngine{
		config: *config,
		rng:    rand.New(src),
	}
	e.state = e.initialize(config.NumColors)
	return e, nil
}

// NewEngineWithDefaults creates an engine with DefaultConfig
func NewEngineWithDefaults() *LocalizationEngine {
	e, err := NewEngine(DefaultConfig())
	if err != nil {
		// DefaultConfig is valid by construction
		panic(err)
	}
	return e
}

// initialize draws a fresh board, a uniform field and a random vehicle position
func (e *LocalizationEngine) initialize(numColors int) *state {
	n := e.config.BoardSize

	board := make([][]int, n)
	for r := range board {
		board[r] = make([]int, n)
		for c := range board[r] {
			board[r][c] = e.rng.IntN(numColors)
		}
	}

	return &state{
		board:     board,
		field:     UniformField(n),
		vehicle:   RandomPosition(e.rng, n),
		reading:   NoReading,
		step:      0,
		numColors: numColors,
	}
}

// Step advances the simulation by one tick: move the vehicle, read the
// sensor, predict and correct the posterior. On error nothing is committed.
func (e *LocalizationEngine) Step() error {
	cur := e.state
	n := e.config.BoardSize

	vehicle := RandomMove(e.rng, cur.vehicle, n)
	reading := ReadSensor(e.rng, cur.board, vehicle, e.config.SensorAccuracy, cur.numColors)

	field, err := UpdatePosterior(cur.field, cur.board, reading, e.config.SensorAccuracy, cur.numColors)
	if err != nil {
		return fmt.Errorf("step %d: %w", cur.step+1, err)
	}

	e.state = &state{
		board:     cur.board,
		field:     field,
		vehicle:   vehicle,
		reading:   reading,
		step:      cur.step + 1,
		numColors: cur.numColors,
	}
	return nil
}

// Restart starts a new game with the current number of colors
func (e *LocalizationEngine) Restart() error {
	e.state = e.initialize(e.state.numColors)
	return nil
}

// RestartWithColors validates numColors and starts a new game with it. An
// invalid value leaves the current game untouched.
func (e *LocalizationEngine) RestartWithColors(numColors int) error {
	if err := ValidateNumColors(numColors); err != nil {
		return err
	}

	e.config.NumColors = numColors
	e.state = e.initialize(numColors)
	return nil
}

// Board returns a copy of the color board
func (e *LocalizationEngine) Board() [][]int {
	return copyBoard(e.state.board)
}

// ProbabilityField returns a copy of the posterior field
func (e *LocalizationEngine) ProbabilityField() [][]float64 {
	return denseToRows(e.state.field)
}

// VehiclePosition returns the true vehicle position
func (e *LocalizationEngine) VehiclePosition() Position {
	return e.state.vehicle
}

// SensorReading returns the color observed on the last step, or NoReading
func (e *LocalizationEngine) SensorReading() int {
	return e.state.reading
}

// StepCount returns the number of steps since the last restart
func (e *LocalizationEngine) StepCount() int {
	return e.state.step
}

// NumColors returns the number of colors on the current board
func (e *LocalizationEngine) NumColors() int {
	return e.state.numColors
}

// Snapshot returns a copy of the whole current state
func (e *LocalizationEngine) Snapshot() *Snapshot {
	s := e.state
	return &Snapshot{
		Board:            copyBoard(s.board),
		ProbabilityField: denseToRows(s.field),
		Vehicle:          s.vehicle,
		SensorReading:    s.reading,
		Step:             s.step,
		NumColors:        s.numColors,
		SensorAccuracy:   e.config.SensorAccuracy,
	}
}

// Estimate returns the most likely vehicle cell under the current posterior
func (e *LocalizationEngine) Estimate() Estimate {
	s := e.state
	pos, p := argmax(s.field)
	return Estimate{
		Position:    pos,
		Probability: p,
		Entropy:     entropy(s.field),
		Correct:     pos == s.vehicle,
		Distance:    ManhattanDistance(pos, s.vehicle),
		Step:        s.step,
	}
}

// Config returns a copy of the engine configuration
func (e *LocalizationEngine) Config() Config {
	return e.config
}
