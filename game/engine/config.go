package engine

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig       = errors.New("invalid config")
	ErrInvalidNumColors    = errors.New("invalid number of colors")
	ErrDegeneratePosterior = errors.New("degenerate posterior")
)

// DefaultConfig returns a 5x5 board with four colors and a 99.9% accurate
// sensor.
func DefaultConfig() *Config {
	return &Config{
		Name:           "default",
		Description:    "5x5 board, four colors, near-perfect sensor",
		BoardSize:      DefaultBoardSize,
		SensorAccuracy: DefaultSensorAccuracy,
		NumColors:      DefaultNumColors,
	}
}

// ValidateConfig checks that a configuration describes a playable board
func ValidateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}

	if config.BoardSize < MinBoardSize || config.BoardSize > MaxBoardSize {
		return fmt.Errorf("%w: board_size must be between %d and %d, got %d",
			ErrInvalidConfig, MinBoardSize, MaxBoardSize, config.BoardSize)
	}

	// NaN fails both comparisons, so test for the valid range instead
	if !(config.SensorAccuracy > 0 && config.SensorAccuracy <= 1) {
		return fmt.Errorf("%w: sensor_accuracy must be in (0, 1], got %v",
			ErrInvalidConfig, config.SensorAccuracy)
	}

	if err := ValidateNumColors(config.NumColors); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return nil
}

// ValidateNumColors reports whether n is an accepted palette size.
func ValidateNumColors(n int) error {
	if n < MinNumColors || n > MaxNumColors {
		return fmt.Errorf("%w: num_colors must be between %d and %d, got %d",
			ErrInvalidNumColors, MinNumColors, MaxNumColors, n)
	}
	return nil
}
