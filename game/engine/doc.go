// Package engine provides the core localization logic: a hidden vehicle
// random-walking on a color board and a discrete Bayes filter tracking it.
//
// The engine package implements:
//   - Board and state model (color grid, true position, posterior field)
//   - Vehicle motion simulator with boundary bounce
//   - Noisy color sensor
//   - Transition kernel, observation likelihood and posterior update
//   - Configuration validation and the fixed color palette
//
// Core Types:
//
// The Engine interface defines the contract for simulation operations,
// implemented by LocalizationEngine. Config describes one game (board size,
// sensor accuracy, number of colors, seed). Snapshot is a detached copy of
// the state handed to callers.
//
// Usage:
//
//	eng, err := engine.NewEngine(&engine.Config{
//		BoardSize:      5,
//		SensorAccuracy: 0.999,
//		NumColors:      4,
//		Seed:           42,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if err := eng.Step(); err != nil {
//		log.Fatal(err)
//	}
//	field := eng.ProbabilityField()
//
// Filter:
//
// Each step first moves the vehicle one cell along a random axis, bouncing
// off the border. The sensor then reports the color under the vehicle, or a
// uniformly random color when it fails. The posterior is predicted by letting
// every cell spread its mass evenly over its valid neighbors, multiplied by
// the likelihood of the observed color and renormalized. A step whose
// unnormalized posterior sums to zero fails with ErrDegeneratePosterior and
// leaves the previous state in place.
//
// Concurrency:
//
// A LocalizationEngine assumes exclusive access. Every step publishes a new
// internal state instead of writing into the old one, and all accessors
// return copies.
package engine
