// Command simulate runs localization games offline and reports how quickly
// the filter settles on the vehicle. A game settles once the most likely cell
// holds more mass than the certainty threshold for the sensor accuracy.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"gonum.org/v1/gonum/stat"

	"github.com/wricardo/grid-localization/game/config"
	"github.com/wricardo/grid-localization/game/engine"
	"github.com/wricardo/grid-localization/internal/logging"
	"github.com/wricardo/grid-localization/render"
)

// minThreshold is used when the accuracy-derived threshold is too low to mean anything
const minThreshold = 0.5

// RunResult is the outcome of one simulated game
type RunResult struct {
	Seed     uint64          `json:"seed"`
	Steps    int             `json:"steps"`
	Settled  bool            `json:"settled"`
	Estimate engine.Estimate `json:"estimate"`
	Error    string          `json:"error,omitempty"`
	snapshot *engine.Snapshot
}

// Report aggregates a batch of runs
type Report struct {
	Config      engine.Config `json:"config"`
	Threshold   float64       `json:"threshold"`
	MaxSteps    int           `json:"max_steps"`
	Runs        []RunResult   `json:"runs"`
	Settled     int           `json:"settled"`
	Correct     int           `json:"correct"`
	MeanSteps   float64       `json:"mean_steps"`
	StdDevSteps float64       `json:"stddev_steps"`
}

func main() {
	cmd := &cli.Command{
		Name:  "simulate",
		Usage: "Run localization games offline and report convergence",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "Config file (json, yaml, toml); defaults are used when empty"},
			&cli.IntFlag{Name: "board-size", Usage: "Override board size"},
			&cli.Float64Flag{Name: "accuracy", Usage: "Override sensor accuracy"},
			&cli.IntFlag{Name: "colors", Usage: "Override number of colors"},
			&cli.Uint64Flag{Name: "seed", Usage: "Seed of the first run; runs use seed, seed+1, ..."},
			&cli.IntFlag{Name: "runs", Value: 1, Usage: "Number of games to run"},
			&cli.IntFlag{Name: "max-steps", Value: 1000, Usage: "Give up after this many steps"},
			&cli.Float64Flag{Name: "threshold", Usage: "Certainty threshold (default derived from accuracy)"},
			&cli.StringFlag{Name: "heatmap", Usage: "Write the final field of the first run to this image (png, svg, pdf)"},
			&cli.BoolFlag{Name: "json", Usage: "Print the report as JSON"},
			&cli.StringFlag{Name: "log-level", Value: "WARN", Sources: cli.EnvVars("LOG_LEVEL")},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "simulate:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	logging.Setup(logging.Options{Level: cmd.String("log-level")})

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	threshold := cmd.Float64("threshold")
	if threshold <= 0 {
		threshold = settleThreshold(cfg.SensorAccuracy)
	}

	report, err := simulateBatch(ctx, cfg, cmd.Int("runs"), cmd.Int("max-steps"), threshold)
	if err != nil {
		return err
	}

	if path := cmd.String("heatmap"); path != "" && len(report.Runs) > 0 && report.Runs[0].snapshot != nil {
		if err := render.SaveHeatmap(path, report.Runs[0].snapshot, render.DefaultOptions()); err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("Heatmap written")
	}

	if cmd.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printReport(os.Stdout, report)
	return nil
}

// loadConfig reads --config or the defaults, then applies flag overrides
func loadConfig(cmd *cli.Command) (*engine.Config, error) {
	cfg := engine.DefaultConfig()
	if path := cmd.String("config"); path != "" {
		loaded, err := config.ReadConfigFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if cmd.IsSet("board-size") {
		cfg.BoardSize = cmd.Int("board-size")
	}
	if cmd.IsSet("accuracy") {
		cfg.SensorAccuracy = cmd.Float64("accuracy")
	}
	if cmd.IsSet("colors") {
		cfg.NumColors = cmd.Int("colors")
	}
	if cmd.IsSet("seed") {
		cfg.Seed = cmd.Uint64("seed")
	}

	if err := engine.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// settleThreshold derives the certainty threshold from the sensor accuracy.
// Noisy sensors push it below anything meaningful, so it is floored.
func settleThreshold(accuracy float64) float64 {
	t := engine.CertaintyThreshold(accuracy)
	if t < minThreshold {
		return minThreshold
	}
	return t
}

// simulate plays one game until the estimate settles or maxSteps is reached
func simulate(ctx context.Context, cfg *engine.Config, maxSteps int, threshold float64) RunResult {
	result := RunResult{Seed: cfg.Seed}

	eng, err := engine.NewEngine(cfg)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	for {
		est := eng.Estimate()
		if est.Probability > threshold {
			result.Settled = true
			break
		}
		if eng.StepCount() >= maxSteps || ctx.Err() != nil {
			break
		}
		if err := eng.Step(); err != nil {
			result.Error = err.Error()
			log.Warn().Err(err).Uint64("seed", cfg.Seed).Msg("Run stopped")
			break
		}
	}

	result.Steps = eng.StepCount()
	result.Estimate = eng.Estimate()
	result.snapshot = eng.Snapshot()
	return result
}

// simulateBatch runs games concurrently, one engine per goroutine
func simulateBatch(ctx context.Context, cfg *engine.Config, runs, maxSteps int, threshold float64) (*Report, error) {
	if runs < 1 {
		return nil, fmt.Errorf("runs must be positive, got %d", runs)
	}
	if maxSteps < 0 {
		return nil, fmt.Errorf("max-steps must not be negative, got %d", maxSteps)
	}

	report := &Report{
		Config:    *cfg,
		Threshold: threshold,
		MaxSteps:  maxSteps,
		Runs:      make([]RunResult, runs),
	}

	// Resolve the seed here so every run in the report can be replayed
	base := cfg.Seed
	if base == 0 {
		base = rand.Uint64()
	}
	report.Config.Seed = base

	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		runCfg := *cfg
		runCfg.Seed = base + uint64(i)
		if runCfg.Seed == 0 {
			runCfg.Seed = 1
		}

		wg.Add(1)
		go func(i int, runCfg engine.Config) {
			defer wg.Done()
			report.Runs[i] = simulate(ctx, &runCfg, maxSteps, threshold)
			log.Debug().
				Int("run", i).
				Int("steps", report.Runs[i].Steps).
				Bool("settled", report.Runs[i].Settled).
				Msg("Run finished")
		}(i, runCfg)
	}
	wg.Wait()

	var steps []float64
	for _, r := range report.Runs {
		if r.Settled {
			report.Settled++
			steps = append(steps, float64(r.Steps))
		}
		if r.Estimate.Correct {
			report.Correct++
		}
	}
	if len(steps) > 0 {
		report.MeanSteps, report.StdDevSteps = stat.MeanStdDev(steps, nil)
	}
	return report, nil
}

func printReport(w io.Writer, report *Report) {
	cfg := report.Config
	fmt.Fprintf(w, "Board %dx%d, %d colors, sensor accuracy %g\n",
		cfg.BoardSize, cfg.BoardSize, cfg.NumColors, cfg.SensorAccuracy)
	fmt.Fprintf(w, "Threshold %.4f, max %d steps\n\n", report.Threshold, report.MaxSteps)

	for i, r := range report.Runs {
		status := "unsettled"
		if r.Settled {
			status = "settled"
		}
		verdict := "wrong"
		if r.Estimate.Correct {
			verdict = "correct"
		}
		fmt.Fprintf(w, "run %3d: %-9s after %4d steps at (%d,%d) p=%.4f %s",
			i, status, r.Steps, r.Estimate.Position.X, r.Estimate.Position.Y, r.Estimate.Probability, verdict)
		if r.Error != "" {
			fmt.Fprintf(w, " error: %s", r.Error)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "\nSettled %d/%d, correct %d/%d", report.Settled, len(report.Runs), report.Correct, len(report.Runs))
	if report.Settled > 0 {
		fmt.Fprintf(w, ", steps to settle %.1f ± %.1f", report.MeanSteps, report.StdDevSteps)
	}
	fmt.Fprintln(w)
}
