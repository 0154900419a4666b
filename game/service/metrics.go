package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/wricardo/autotrack/game/engine"
)

const instrumentationName = "github.com/wricardo/autotrack/game/service"

// serviceMetrics counts simulation activity. Instruments come from the
// global OTel provider unless a meter is given, and are no-ops unless a
// provider is configured.
type serviceMetrics struct {
	ticks  metric.Int64Counter
	events metric.Int64Counter
	edits  metric.Int64Counter
}

func newServiceMetrics(m metric.Meter) (*serviceMetrics, error) {
	if m == nil {
		m = otel.Meter(instrumentationName)
	}
	sm := &serviceMetrics{}

	var err error
	sm.ticks, err = m.Int64Counter(
		"autotrack.ticks",
		metric.WithDescription("Simulation ticks run"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick counter: %w", err)
	}

	sm.events, err = m.Int64Counter(
		"autotrack.events",
		metric.WithDescription("Motion events emitted by type"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating event counter: %w", err)
	}

	sm.edits, err = m.Int64Counter(
		"autotrack.edits",
		metric.WithDescription("Edit tool operations by tool"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating edit counter: %w", err)
	}
	return sm, nil
}

func (sm *serviceMetrics) recordTicks(ctx context.Context, n int, events []engine.Event) {
	sm.ticks.Add(ctx, int64(n))
	for _, ev := range events {
		sm.events.Add(ctx, 1, metric.WithAttributes(attribute.String("type", string(ev.Type))))
	}
}

func (sm *serviceMetrics) recordEdit(ctx context.Context, tool string) {
	sm.edits.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", tool)))
}
