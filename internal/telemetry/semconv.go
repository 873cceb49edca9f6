// Package telemetry provides semantic conventions for trading-board observability.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic convention attribute keys for trading-board-specific telemetry.
// Following OpenTelemetry naming conventions: namespace.attribute_name
const (
	AttrInstrument = attribute.Key("instrument.id")

	// Operation attributes
	AttrOperation = attribute.Key("operation")
	AttrResult    = attribute.Key("result")

	// Environment attribute
	AttrEnvironment = attribute.Key("environment")

	// Rejection reason ("invalid_password", "unknown_email", ...)
	AttrReason = attribute.Key("reason")

	// Order attributes
	AttrSide   = attribute.Key("order.side")
	AttrStatus = attribute.Key("order.status")
)

// InstrumentAttributes returns common attributes for per-instrument metrics.
func InstrumentAttributes(environment, instrumentID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrInstrument.String(instrumentID),
	}
}

// OrderAttributes returns attributes for order flow metrics.
func OrderAttributes(environment, instrumentID, side, status string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrInstrument.String(instrumentID),
		AttrSide.String(side),
		AttrStatus.String(status),
	}
}

// OperationResultAttributes returns attributes for operation metrics with
// a result classification ("applied", "failed", "noop", ...).
func OperationResultAttributes(environment, operation, result string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrOperation.String(operation),
		AttrResult.String(result),
	}
}
