package otelhelper

import (
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// NodeErrorCodeKey carries the error code of a failed node.
const NodeErrorCodeKey = "nova.node.error_code"

// SetError marks the span failed and records err on it.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err, trace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, err.Error())
}

// SetNodeFailure marks a node span failed. Node failures are values, not Go
// errors, so the message and code are recorded as given.
func SetNodeFailure(span trace.Span, message, code string) {
	if message == "" {
		message = "node failed"
	}

	SetError(span, errors.New(message), attribute.String(NodeErrorCodeKey, code))
}
