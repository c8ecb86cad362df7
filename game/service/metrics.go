package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/wricardo/grid-localization/game/service"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// serviceMetrics holds the OTel instruments recorded by the service.
// The global provider is a no-op unless the binary installs one.
type serviceMetrics struct {
	steps            metric.Int64Counter
	degenerate       metric.Int64Counter
	restarts         metric.Int64Counter
	restartsRejected metric.Int64Counter
	sessions         metric.Int64ObservableGauge
}

func newServiceMetrics(m metric.Meter, sessions SessionManager) (*serviceMetrics, error) {
	sm := &serviceMetrics{}
	var err error

	sm.steps, err = m.Int64Counter(
		"localization.steps",
		metric.WithDescription("Total filter steps committed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating steps counter: %w", err)
	}

	sm.degenerate, err = m.Int64Counter(
		"localization.steps.degenerate",
		metric.WithDescription("Steps rejected because the posterior had no mass"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating degenerate counter: %w", err)
	}

	sm.restarts, err = m.Int64Counter(
		"localization.restarts",
		metric.WithDescription("Total game restarts"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating restarts counter: %w", err)
	}

	sm.restartsRejected, err = m.Int64Counter(
		"localization.restarts.rejected",
		metric.WithDescription("Restarts refused because num_colors was out of range"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rejected restarts counter: %w", err)
	}

	sm.sessions, err = m.Int64ObservableGauge(
		"localization.sessions",
		metric.WithDescription("Current number of sessions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sessions gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(sm.sessions, int64(len(sessions.List())))
			return nil
		},
		sm.sessions,
	)
	if err != nil {
		return nil, fmt.Errorf("registering sessions callback: %w", err)
	}

	return sm, nil
}

// noopServiceMetrics is used when the global meter refuses an instrument
func noopServiceMetrics(sessions SessionManager) *serviceMetrics {
	sm, _ := newServiceMetrics(noop.NewMeterProvider().Meter(instrumentationName), sessions)
	return sm
}

func (sm *serviceMetrics) stepCommitted(ctx context.Context, n int) {
	if n > 0 {
		sm.steps.Add(ctx, int64(n))
	}
}

func (sm *serviceMetrics) stepDegenerate(ctx context.Context) {
	sm.degenerate.Add(ctx, 1)
}

func (sm *serviceMetrics) restarted(ctx context.Context, numColors int) {
	sm.restarts.Add(ctx, 1, metric.WithAttributes(attribute.Int("num_colors", numColors)))
}

func (sm *serviceMetrics) restartRejected(ctx context.Context) {
	sm.restartsRejected.Add(ctx, 1)
}
