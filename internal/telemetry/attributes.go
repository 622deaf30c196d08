// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for consistent tracing across the application.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	SolverTaskKey     = "solver.task"
	SolverBinaryKey   = "solver.binary"
	SolverCachedKey   = "solver.cached"
	SolverExitCodeKey = "solver.exit_code"

	PanelActionKey = "panel.action"
	PanelSlotKey   = "panel.slot"
	PanelRunIDKey  = "panel.run_id"

	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// SolverAttributes creates attributes for one solver task.
func SolverAttributes(task, binary string, cached bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(SolverTaskKey, task),
		attribute.String(SolverBinaryKey, binary),
		attribute.Bool(SolverCachedKey, cached),
	}
}

// PanelAttributes creates attributes for a panel mutation.
func PanelAttributes(action, runID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(PanelActionKey, action),
		attribute.String(PanelRunIDKey, runID),
	}
}

// RecordError marks the span as failed.
func RecordError(span trace.Span, err error, errType string) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String(ErrorTypeKey, errType))
}
