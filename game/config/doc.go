// Package config provides engine configuration management for the
// localization server.
//
// The config package handles:
//   - Loading engine configurations from JSON, YAML and TOML files
//   - Filling omitted keys with engine defaults
//   - Validation through engine.ValidateConfig
//   - Default configuration selection and config discovery
//
// Configuration Format:
//
// Each file in the config directory describes one engine configuration:
//
//	{
//	  "name": "Default",
//	  "description": "Five by five, four colors",
//	  "board_size": 5,
//	  "sensor_accuracy": 0.999,
//	  "num_colors": 4,
//	  "seed": 0
//	}
//
// A seed of 0 draws a fresh random seed for every engine.
//
// Each file is read with its own viper instance, so files never leak keys
// into one another.
//
// Default Configuration:
//
// The manager uses default.* when present, otherwise the first valid file in
// name order, otherwise the built-in engine defaults.
package config
