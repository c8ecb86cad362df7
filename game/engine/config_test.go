package engine

import (
	"errors"
	"math"
	"testing"
)

func createTestConfig() *Config {
	return &Config{
		Name:           "Engine Test Config",
		Description:    "Configuration for engine tests",
		BoardSize:      5,
		SensorAccuracy: 0.999,
		NumColors:      4,
		Seed:           42,
	}
}

func TestValidationConstants(t *testing.T) {
	tests := []struct {
		name     string
		actual   int
		expected int
	}{
		{"MinBoardSize", MinBoardSize, 2},
		{"MinNumColors", MinNumColors, 4},
		{"MaxNumColors", MaxNumColors, 8},
		{"DefaultNumColors", DefaultNumColors, 4},
		{"NoReading", NoReading, -1},
	}

	for _, test := range tests {
		if test.actual != test.expected {
			t.Errorf("%s: expected %d, got %d", test.name, test.expected, test.actual)
		}
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"smallest board", func(c *Config) { c.BoardSize = 2 }, false},
		{"board too small", func(c *Config) { c.BoardSize = 1 }, true},
		{"board too large", func(c *Config) { c.BoardSize = MaxBoardSize + 1 }, true},
		{"perfect sensor", func(c *Config) { c.SensorAccuracy = 1 }, false},
		{"zero accuracy", func(c *Config) { c.SensorAccuracy = 0 }, true},
		{"negative accuracy", func(c *Config) { c.SensorAccuracy = -0.5 }, true},
		{"accuracy above one", func(c *Config) { c.SensorAccuracy = 1.01 }, true},
		{"NaN accuracy", func(c *Config) { c.SensorAccuracy = math.NaN() }, true},
		{"eight colors", func(c *Config) { c.NumColors = 8 }, false},
		{"three colors", func(c *Config) { c.NumColors = 3 }, true},
		{"nine colors", func(c *Config) { c.NumColors = 9 }, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			config := createTestConfig()
			test.mutate(config)

			err := ValidateConfig(config)
			if test.wantErr && err == nil {
				t.Fatal("Expected validation error")
			}
			if !test.wantErr && err != nil {
				t.Fatalf("Unexpected validation error: %v", err)
			}
			if test.wantErr && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestValidateConfig_Nil(t *testing.T) {
	if err := ValidateConfig(nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for nil config, got %v", err)
	}
}

func TestValidateNumColors(t *testing.T) {
	for n := 0; n <= 10; n++ {
		err := ValidateNumColors(n)
		valid := n >= 4 && n <= 8
		if valid && err != nil {
			t.Errorf("num_colors=%d: unexpected error %v", n, err)
		}
		if !valid && !errors.Is(err, ErrInvalidNumColors) {
			t.Errorf("num_colors=%d: expected ErrInvalidNumColors, got %v", n, err)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	if err := ValidateConfig(config); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}
	if config.BoardSize != 5 {
		t.Errorf("Expected default board size 5, got %d", config.BoardSize)
	}
	if config.NumColors != 4 {
		t.Errorf("Expected default 4 colors, got %d", config.NumColors)
	}
	if config.SensorAccuracy != 0.999 {
		t.Errorf("Expected default accuracy 0.999, got %v", config.SensorAccuracy)
	}
}
