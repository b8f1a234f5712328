package cache

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "studyassist.sessions/cache"

// Lookup outcomes recorded on session_cache.lookups.
const (
	resultHit    = "hit"
	resultStale  = "stale"
	resultLoaded = "loaded"
	resultMiss   = "miss"
	resultError  = "error"
)

type metrics struct {
	lookups       metric.Int64Counter
	flushes       metric.Int64Counter
	invalidations metric.Int64Counter
}

// newMetrics registers the cache instruments on meter (no-op when nil). size backs the entries gauge.
func newMetrics(meter metric.Meter, size func() int) (*metrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(meterName)
	}
	lookups, err := meter.Int64Counter("session_cache.lookups",
		metric.WithDescription("Session validations by outcome."))
	if err != nil {
		return nil, err
	}
	flushes, err := meter.Int64Counter("session_cache.flushes",
		metric.WithDescription("Background activity flushes by outcome."))
	if err != nil {
		return nil, err
	}
	invalidations, err := meter.Int64Counter("session_cache.invalidations",
		metric.WithDescription("Session invalidations by outcome."))
	if err != nil {
		return nil, err
	}
	_, err = meter.Int64ObservableGauge("session_cache.entries",
		metric.WithDescription("Sessions currently cached."),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(size()))
			return nil
		}))
	if err != nil {
		return nil, err
	}
	return &metrics{lookups: lookups, flushes: flushes, invalidations: invalidations}, nil
}

func (m *metrics) lookup(ctx context.Context, result string) {
	m.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *metrics) flush(ctx context.Context, ok bool) {
	m.flushes.Add(ctx, 1, metric.WithAttributes(outcome(ok)))
}

func (m *metrics) invalidation(ctx context.Context, ok bool) {
	m.invalidations.Add(ctx, 1, metric.WithAttributes(outcome(ok)))
}

func outcome(ok bool) attribute.KeyValue {
	if ok {
		return attribute.String("outcome", "ok")
	}
	return attribute.String("outcome", "error")
}
