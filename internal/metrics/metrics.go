// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics exposes the Prometheus collectors of the daemon.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arl_http_requests_total",
		Help: "HTTP requests by method, route pattern and status code",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arl_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route pattern",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// Solver metrics
	solverRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arl_solver_runs_total",
		Help: "External solver invocations by task and outcome",
	}, []string{"task", "outcome"}) // outcome=success|failure|timeout

	solverRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arl_solver_run_duration_seconds",
		Help:    "Wall time of external solver invocations by task",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"task"})

	solverCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arl_solver_cache_total",
		Help: "Solver result cache lookups by result",
	}, []string{"result"}) // result=hit|miss|error

	// Panel metrics
	panelUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arl_panel_updates_total",
		Help: "Panel mutations by action",
	}, []string{"action"}) // action=update|reset|preset|theme|export

	panelPlaceholders = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arl_panel_placeholder_slots",
		Help: "Layout slots showing a placeholder after the last run",
	})

	coercionErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arl_param_coercion_errors_total",
		Help: "Rejected widget values by parameter key",
	}, []string{"key"})

	wsClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arl_ws_clients",
		Help: "Connected websocket clients",
	})

	// BusDroppedTotal counts panel events not delivered to a subscriber.
	BusDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arl_bus_dropped_total",
		Help: "Panel events dropped by topic and reason",
	}, []string{"topic", "reason"}) // reason=timeout|canceled|context_done

	// Process supervision
	procTerminateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arl_proc_terminate_total",
		Help: "Signals sent to solver process groups by signal and result",
	}, []string{"signal", "result"})

	procWaitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arl_proc_wait_total",
		Help: "Solver process exits observed during termination",
	}, []string{"outcome"})

	// Operational metrics
	configReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arl_config_reloads_total",
		Help: "Configuration reloads by outcome",
	}, []string{"outcome"})

	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arl_circuit_breaker_state",
		Help: "Circuit breaker state by component (0=closed, 1=half-open, 2=open)",
	}, []string{"component"})

	circuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arl_circuit_breaker_trips_total",
		Help: "Circuit breaker transitions to open by component and reason",
	}, []string{"component", "reason"})

	storeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arl_store_errors_total",
		Help: "Persistence failures by store",
	}, []string{"store"}) // store=history|session|cache
)

// ObserveHTTP records one handled request.
func ObserveHTTP(method, route string, status int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveSolverRun records one external solver invocation.
func ObserveSolverRun(task, outcome string, d time.Duration) {
	solverRunsTotal.WithLabelValues(task, outcome).Inc()
	solverRunDuration.WithLabelValues(task).Observe(d.Seconds())
}

// IncSolverCache counts a cache lookup.
func IncSolverCache(result string) {
	solverCacheTotal.WithLabelValues(result).Inc()
}

// IncPanelUpdate counts a panel mutation.
func IncPanelUpdate(action string) {
	panelUpdatesTotal.WithLabelValues(action).Inc()
}

// SetPlaceholderSlots sets the number of failed layout slots.
func SetPlaceholderSlots(n int) {
	panelPlaceholders.Set(float64(n))
}

// IncCoercionError counts a rejected widget value.
func IncCoercionError(key string) {
	coercionErrorsTotal.WithLabelValues(key).Inc()
}

// IncWSClients tracks websocket connects.
func IncWSClients() { wsClients.Inc() }

// DecWSClients tracks websocket disconnects.
func DecWSClients() { wsClients.Dec() }

// IncBusDrop counts an undelivered panel event.
func IncBusDrop(topic, reason string) {
	BusDroppedTotal.WithLabelValues(topic, reason).Inc()
}

// IncProcTerminate counts a termination signal.
func IncProcTerminate(signal, result string) {
	procTerminateTotal.WithLabelValues(signal, result).Inc()
}

// IncProcWait counts a process exit seen while terminating.
func IncProcWait(outcome string) {
	procWaitTotal.WithLabelValues(outcome).Inc()
}

// IncConfigReload counts a configuration reload.
func IncConfigReload(outcome string) {
	configReloadsTotal.WithLabelValues(outcome).Inc()
}

// IncStoreError counts a persistence failure.
func IncStoreError(store string) {
	storeErrorsTotal.WithLabelValues(store).Inc()
}

// SetCircuitBreakerState records the state of a named breaker.
func SetCircuitBreakerState(component, state string) {
	v := 0.0
	switch state {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	circuitBreakerState.WithLabelValues(component).Set(v)
}

// RecordCircuitBreakerTrip counts a breaker opening.
func RecordCircuitBreakerTrip(component, reason string) {
	circuitBreakerTrips.WithLabelValues(component, reason).Inc()
}
