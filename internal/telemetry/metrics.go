package telemetry

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ServiceMetrics bundles the OpenTelemetry instruments shared by the market
// data, auth, and trading services. Record methods tolerate a nil receiver
// and missing instruments so callers never need to guard.
type ServiceMetrics struct {
	environment string

	ticksEmitted     metric.Int64Counter
	emissionFailures metric.Int64Counter
	pumpDuration     metric.Float64Histogram
	ordersSubmitted  metric.Int64Counter
	orderDuration    metric.Float64Histogram
	sessionsIssued   metric.Int64Counter
	sessionsRevoked  metric.Int64Counter
	loginFailures    metric.Int64Counter
}

// NewServiceMetrics registers the trading-board instruments under the given
// meter scope, typically the service name.
func NewServiceMetrics(scope string) *ServiceMetrics {
	meter := otel.Meter(scope)

	sm := &ServiceMetrics{
		environment:      Environment(),
		ticksEmitted:     nil,
		emissionFailures: nil,
		pumpDuration:     nil,
		ordersSubmitted:  nil,
		orderDuration:    nil,
		sessionsIssued:   nil,
		sessionsRevoked:  nil,
		loginFailures:    nil,
	}

	sm.ticksEmitted, _ = meter.Int64Counter("marketdata.ticks.emitted",
		metric.WithDescription("Number of ticks persisted and published per instrument"),
		metric.WithUnit("{tick}"))
	sm.emissionFailures, _ = meter.Int64Counter("marketdata.emission.failures",
		metric.WithDescription("Number of emissions dropped after exhausting their retry budget"),
		metric.WithUnit("{failure}"))
	sm.pumpDuration, _ = meter.Float64Histogram("marketdata.pump.duration",
		metric.WithDescription("Latency of a persist-then-publish pump cycle"),
		metric.WithUnit("ms"))
	sm.ordersSubmitted, _ = meter.Int64Counter("trading.orders.submitted",
		metric.WithDescription("Number of orders accepted by the trading service"),
		metric.WithUnit("{order}"))
	sm.orderDuration, _ = meter.Float64Histogram("trading.order.duration",
		metric.WithDescription("Latency of order validation, matching, and settlement"),
		metric.WithUnit("ms"))
	sm.sessionsIssued, _ = meter.Int64Counter("auth.sessions.issued",
		metric.WithDescription("Number of sessions issued after registration or login"),
		metric.WithUnit("{session}"))
	sm.sessionsRevoked, _ = meter.Int64Counter("auth.sessions.revoked",
		metric.WithDescription("Number of sessions revoked by logout"),
		metric.WithUnit("{session}"))
	sm.loginFailures, _ = meter.Int64Counter("auth.login.failures",
		metric.WithDescription("Number of rejected login attempts"),
		metric.WithUnit("{failure}"))

	return sm
}

// RecordTick counts a successfully emitted tick for the instrument.
func (sm *ServiceMetrics) RecordTick(ctx context.Context, instrumentID string) {
	if sm == nil || sm.ticksEmitted == nil {
		return
	}
	ctx = ensureContext(ctx)
	attrs := InstrumentAttributes(sm.environment, instrumentID)
	sm.ticksEmitted.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordEmissionFailure counts an emission dropped after retries were exhausted.
func (sm *ServiceMetrics) RecordEmissionFailure(ctx context.Context, instrumentID string) {
	if sm == nil || sm.emissionFailures == nil {
		return
	}
	ctx = ensureContext(ctx)
	attrs := InstrumentAttributes(sm.environment, instrumentID)
	sm.emissionFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPumpDuration records the wall-clock time of one pump cycle.
func (sm *ServiceMetrics) RecordPumpDuration(ctx context.Context, elapsed time.Duration) {
	if sm == nil || sm.pumpDuration == nil {
		return
	}
	ctx = ensureContext(ctx)
	if elapsed < 0 {
		elapsed = 0
	}
	attrs := []attribute.KeyValue{AttrEnvironment.String(sm.environment)}
	sm.pumpDuration.Record(ctx, float64(elapsed.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordOrderSubmitted counts an accepted order with its terminal status.
func (sm *ServiceMetrics) RecordOrderSubmitted(ctx context.Context, instrumentID, side, status string) {
	if sm == nil || sm.ordersSubmitted == nil {
		return
	}
	ctx = ensureContext(ctx)
	sideAttr := strings.ToLower(strings.TrimSpace(side))
	statusAttr := strings.ToUpper(strings.TrimSpace(status))
	attrs := OrderAttributes(sm.environment, instrumentID, sideAttr, statusAttr)
	sm.ordersSubmitted.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordOrderDuration records end-to-end submission latency for an order.
func (sm *ServiceMetrics) RecordOrderDuration(ctx context.Context, instrumentID string, elapsed time.Duration) {
	if sm == nil || sm.orderDuration == nil {
		return
	}
	ctx = ensureContext(ctx)
	if elapsed < 0 {
		elapsed = 0
	}
	attrs := InstrumentAttributes(sm.environment, instrumentID)
	sm.orderDuration.Record(ctx, float64(elapsed.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordSessionIssued counts a session issued by the named operation
// ("register" or "login").
func (sm *ServiceMetrics) RecordSessionIssued(ctx context.Context, operation string) {
	if sm == nil || sm.sessionsIssued == nil {
		return
	}
	ctx = ensureContext(ctx)
	attrs := []attribute.KeyValue{
		AttrEnvironment.String(sm.environment),
		AttrOperation.String(strings.ToLower(strings.TrimSpace(operation))),
	}
	sm.sessionsIssued.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSessionRevoked counts a session revoked by logout.
func (sm *ServiceMetrics) RecordSessionRevoked(ctx context.Context) {
	if sm == nil || sm.sessionsRevoked == nil {
		return
	}
	ctx = ensureContext(ctx)
	attrs := []attribute.KeyValue{AttrEnvironment.String(sm.environment)}
	sm.sessionsRevoked.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordLoginFailure counts a rejected login attempt.
func (sm *ServiceMetrics) RecordLoginFailure(ctx context.Context, reason string) {
	if sm == nil || sm.loginFailures == nil {
		return
	}
	ctx = ensureContext(ctx)
	attrs := []attribute.KeyValue{AttrEnvironment.String(sm.environment)}
	if reason != "" {
		attrs = append(attrs, AttrReason.String(strings.ToLower(reason)))
	}
	sm.loginFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
