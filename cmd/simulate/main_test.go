package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/grid-localization/game/engine"
)

func TestSettleThreshold(t *testing.T) {
	assert.InDelta(t, 0.995, settleThreshold(0.999), 1e-12)
	assert.Equal(t, minThreshold, settleThreshold(0.66))
	assert.Equal(t, 1.0, settleThreshold(1))
}

func TestSimulate_PerfectSensorSettles(t *testing.T) {
	cfg := &engine.Config{Name: "perfect", BoardSize: 4, SensorAccuracy: 0.999, NumColors: 8, Seed: 3}

	result := simulate(context.Background(), cfg, 2000, 0.9)

	assert.Empty(t, result.Error)
	if result.Settled {
		assert.Greater(t, result.Estimate.Probability, 0.9)
	} else {
		assert.Equal(t, 2000, result.Steps)
	}
	require.NotNil(t, result.snapshot)
	assert.Equal(t, result.Steps, result.snapshot.Step)
}

func TestSimulate_StopsAtMaxSteps(t *testing.T) {
	cfg := &engine.Config{Name: "noisy", BoardSize: 6, SensorAccuracy: 0.01, NumColors: 4, Seed: 9}

	// An unreachable threshold forces the step limit
	result := simulate(context.Background(), cfg, 25, 1.1)

	assert.False(t, result.Settled)
	assert.Equal(t, 25, result.Steps)
}

func TestSimulate_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := &engine.Config{Name: "canceled", BoardSize: 5, SensorAccuracy: 0.9, NumColors: 4, Seed: 1}
	result := simulate(ctx, cfg, 100, 1.1)

	assert.Equal(t, 0, result.Steps)
}

func TestSimulate_InvalidConfig(t *testing.T) {
	result := simulate(context.Background(), &engine.Config{BoardSize: 1, SensorAccuracy: 0.9, NumColors: 4}, 10, 0.9)
	assert.NotEmpty(t, result.Error)
}

func TestSimulateBatch(t *testing.T) {
	cfg := &engine.Config{Name: "batch", BoardSize: 5, SensorAccuracy: 0.95, NumColors: 6, Seed: 100}

	report, err := simulateBatch(context.Background(), cfg, 8, 300, settleThreshold(cfg.SensorAccuracy))
	require.NoError(t, err)

	require.Len(t, report.Runs, 8)
	for i, r := range report.Runs {
		assert.Equal(t, uint64(100+i), r.Seed)
		assert.LessOrEqual(t, r.Steps, 300)
	}
	assert.LessOrEqual(t, report.Correct, 8)
	assert.LessOrEqual(t, report.Settled, 8)
	if report.Settled > 0 {
		assert.Greater(t, report.MeanSteps, 0.0)
	}
}

func TestSimulateBatch_SameSeedSameReport(t *testing.T) {
	cfg := &engine.Config{Name: "repeat", BoardSize: 5, SensorAccuracy: 0.9, NumColors: 4, Seed: 77}

	a, err := simulateBatch(context.Background(), cfg, 3, 200, 0.8)
	require.NoError(t, err)
	b, err := simulateBatch(context.Background(), cfg, 3, 200, 0.8)
	require.NoError(t, err)

	for i := range a.Runs {
		assert.Equal(t, a.Runs[i].Steps, b.Runs[i].Steps)
		assert.Equal(t, a.Runs[i].Estimate, b.Runs[i].Estimate)
	}
}

func TestSimulateBatch_UnsetSeedIsRecorded(t *testing.T) {
	cfg := &engine.Config{Name: "random", BoardSize: 4, SensorAccuracy: 0.9, NumColors: 4}

	report, err := simulateBatch(context.Background(), cfg, 3, 100, 0.8)
	require.NoError(t, err)

	base := report.Config.Seed
	require.NotZero(t, base)
	for i, r := range report.Runs {
		require.Equal(t, base+uint64(i), r.Seed)

		replayCfg := *cfg
		replayCfg.Seed = r.Seed
		replay := simulate(context.Background(), &replayCfg, 100, 0.8)
		assert.Equal(t, r.Steps, replay.Steps, "run %d", i)
		assert.Equal(t, r.Estimate, replay.Estimate, "run %d", i)
	}
}

func TestSimulateBatch_InvalidArgs(t *testing.T) {
	cfg := engine.DefaultConfig()

	_, err := simulateBatch(context.Background(), cfg, 0, 10, 0.9)
	assert.Error(t, err)

	_, err = simulateBatch(context.Background(), cfg, 1, -1, 0.9)
	assert.Error(t, err)
}

func TestPrintReport(t *testing.T) {
	report := &Report{
		Config:    engine.Config{BoardSize: 5, SensorAccuracy: 0.999, NumColors: 4},
		Threshold: 0.995,
		MaxSteps:  100,
		Runs: []RunResult{
			{Steps: 12, Settled: true, Estimate: engine.Estimate{Position: engine.Position{X: 1, Y: 2}, Probability: 0.998, Correct: true}},
			{Steps: 100, Estimate: engine.Estimate{Probability: 0.4}},
		},
		Settled:   1,
		Correct:   1,
		MeanSteps: 12,
	}

	var buf bytes.Buffer
	printReport(&buf, report)
	out := buf.String()

	assert.Contains(t, out, "Board 5x5, 4 colors, sensor accuracy 0.999")
	assert.Contains(t, out, "settled   after   12 steps at (1,2)")
	assert.Contains(t, out, "unsettled")
	assert.Contains(t, out, "Settled 1/2, correct 1/2, steps to settle 12.0")
}
