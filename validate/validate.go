// Command validate provides a small CLI that validates localization
// configuration files in a directory (default ../configs). It checks:
//   - The file parses as JSON, YAML or TOML
//   - Every key is known, so typos do not silently fall back to defaults
//   - board_size, sensor_accuracy and num_colors are within engine limits
//   - Config names are unique across the directory
//
// It also reports which keys fall back to defaults and flags settings that
// make localization slow or expensive.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/wricardo/grid-localization/game/config"
	"github.com/wricardo/grid-localization/game/engine"
)

// knownKeys are the keys an engine config file may carry
var knownKeys = map[string]bool{
	"name":            true,
	"description":     true,
	"board_size":      true,
	"sensor_accuracy": true,
	"num_colors":      true,
	"seed":            true,
}

// requiredKeys fall back to defaults when absent, which is usually a mistake
var requiredKeys = []string{"board_size", "sensor_accuracy", "num_colors"}

const (
	// largeBoard is where the O(N²) per-step update gets noticeable
	largeBoard = 100
	// noisySensor is the accuracy below which settling takes many steps
	noisySensor = 0.5
)

// ValidationResult captures the outcome of validating a single file.
// Errors make the file invalid; Info carries notes and warnings.
type ValidationResult struct {
	File   string
	Name   string
	Valid  bool
	Errors []string
	Info   []string
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) note(format string, args ...interface{}) {
	r.Info = append(r.Info, fmt.Sprintf(format, args...))
}

// validateConfig loads and validates a single configuration file
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
		Info:   []string{},
	}

	if _, err := os.Stat(filePath); err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	// Raw read to see which keys the file actually sets
	raw := viper.New()
	raw.SetConfigFile(filePath)
	if err := raw.ReadInConfig(); err != nil {
		result.fail("Failed to parse file: %v", err)
		return result
	}

	var unknown []string
	for _, key := range raw.AllKeys() {
		if !knownKeys[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		result.fail("Unknown key: %s", key)
	}

	for _, key := range requiredKeys {
		if !raw.IsSet(key) {
			result.note("⚠ %s not set, using default", key)
		}
	}

	cfg, err := config.ReadConfigFile(filePath)
	if err != nil {
		result.fail("%v", err)
		return result
	}
	result.Name = cfg.Name

	if cfg.BoardSize > largeBoard {
		result.note("⚠ Board %dx%d updates %d cells per step", cfg.BoardSize, cfg.BoardSize, cfg.BoardSize*cfg.BoardSize)
	}
	if cfg.SensorAccuracy < noisySensor {
		result.note("⚠ Sensor accuracy %g is low, the estimate will settle slowly", cfg.SensorAccuracy)
	}

	if result.Valid {
		result.note("✓ Name: %s", cfg.Name)
		result.note("✓ Board: %dx%d", cfg.BoardSize, cfg.BoardSize)
		result.note("✓ Colors: %d", cfg.NumColors)
		result.note("✓ Sensor accuracy: %g (certainty threshold %.4f)", cfg.SensorAccuracy, engine.CertaintyThreshold(cfg.SensorAccuracy))
		if cfg.Seed != 0 {
			result.note("✓ Seed: %d (reproducible)", cfg.Seed)
		}
	}

	return result
}

// validateDir validates every supported file in dir and flags duplicate names
func validateDir(dir string) ([]ValidationResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var results []ValidationResult
	seen := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !supported(ext) {
			continue
		}

		result := validateConfig(filepath.Join(dir, entry.Name()))
		if result.Name != "" {
			key := strings.ToLower(result.Name)
			if first, ok := seen[key]; ok {
				result.fail("Duplicate name %q (also in %s)", result.Name, first)
			} else {
				seen[key] = result.File
			}
		}
		results = append(results, result)
	}
	return results, nil
}

func supported(ext string) bool {
	for _, s := range config.SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// main validates the directory given as the first argument (default
// ../configs), printing a concise report and exiting with non-zero status if
// any file is invalid.
func main() {
	configDir := "../configs"
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}

	results, err := validateDir(configDir)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	allValid := true
	for _, result := range results {
		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				fmt.Println("  ❌ " + err)
			}
		}
		for _, info := range result.Info {
			fmt.Println("  " + info)
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if len(results) == 0 {
		fmt.Println("No configuration files found")
		os.Exit(1)
	}
	if allValid {
		fmt.Println("✅ All configurations are valid!")
	} else {
		fmt.Println("❌ Some configurations have errors")
		os.Exit(1)
	}
}
