// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveSolverRun(t *testing.T) {
	before := testutil.ToFloat64(solverRunsTotal.WithLabelValues("eigenrays", "success"))
	ObserveSolverRun("eigenrays", "success", 150*time.Millisecond)
	after := testutil.ToFloat64(solverRunsTotal.WithLabelValues("eigenrays", "success"))
	assert.Equal(t, before+1, after)
}

func TestIncCoercionError(t *testing.T) {
	before := testutil.ToFloat64(coercionErrorsTotal.WithLabelValues("soundspeed"))
	IncCoercionError("soundspeed")
	IncCoercionError("soundspeed")
	assert.Equal(t, before+2, testutil.ToFloat64(coercionErrorsTotal.WithLabelValues("soundspeed")))
}

func TestObserveHTTP_RegisteredFamilies(t *testing.T) {
	ObserveHTTP("GET", "/api/v1/panel", 200, 5*time.Millisecond)
	SetPlaceholderSlots(2)

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	byName := map[string]*dto.MetricFamily{}
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}
	require.Contains(t, byName, "arl_http_requests_total")
	require.Contains(t, byName, "arl_http_request_duration_seconds")
	require.Contains(t, byName, "arl_panel_placeholder_slots")
	assert.Equal(t, 2.0, byName["arl_panel_placeholder_slots"].GetMetric()[0].GetGauge().GetValue())
	assert.Equal(t, dto.MetricType_HISTOGRAM, byName["arl_http_request_duration_seconds"].GetType())
}

func TestCircuitBreakerMetrics(t *testing.T) {
	SetCircuitBreakerState("test_cb", "open")
	assert.Equal(t, 2.0, testutil.ToFloat64(circuitBreakerState.WithLabelValues("test_cb")))
	SetCircuitBreakerState("test_cb", "half-open")
	assert.Equal(t, 1.0, testutil.ToFloat64(circuitBreakerState.WithLabelValues("test_cb")))
	SetCircuitBreakerState("test_cb", "closed")
	assert.Equal(t, 0.0, testutil.ToFloat64(circuitBreakerState.WithLabelValues("test_cb")))

	before := testutil.ToFloat64(circuitBreakerTrips.WithLabelValues("test_cb", "threshold_exceeded"))
	RecordCircuitBreakerTrip("test_cb", "threshold_exceeded")
	assert.Equal(t, before+1, testutil.ToFloat64(circuitBreakerTrips.WithLabelValues("test_cb", "threshold_exceeded")))
}
