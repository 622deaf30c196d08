// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/ManuGH/arlpanel/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager(t *testing.T) {
	m := NewManager("v1.2.3")
	assert.NotNil(t, m)
	assert.Equal(t, "v1.2.3", m.version)
	assert.Empty(t, m.checkers)
}

func TestManager_Health_NoCheckers(t *testing.T) {
	m := NewManager("v1.0.0")

	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "v1.0.0", resp.Version)
	assert.GreaterOrEqual(t, resp.Uptime, int64(0))
	assert.Nil(t, resp.Checks)
}

func TestManager_Health_WithCheckers(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "healthy", status: StatusHealthy})
	m.RegisterChecker(&mockChecker{name: "degraded", status: StatusDegraded})

	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Nil(t, resp.Checks)

	resp = m.Health(context.Background(), true)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Len(t, resp.Checks, 2)
	assert.Equal(t, StatusHealthy, resp.Checks["healthy"].Status)
	assert.Equal(t, StatusDegraded, resp.Checks["degraded"].Status)
}

func TestManager_Health_UnhealthyWins(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "unhealthy", status: StatusUnhealthy})
	m.RegisterChecker(&mockChecker{name: "degraded", status: StatusDegraded})

	resp := m.Health(context.Background(), true)
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Len(t, resp.Checks, 2)
}

func TestManager_Ready(t *testing.T) {
	m := NewManager("v1.0.0")
	resp := m.Ready(context.Background())
	assert.True(t, resp.Ready)
	assert.Nil(t, resp.Checks)

	m.RegisterChecker(&mockChecker{name: "check1", status: StatusHealthy})
	m.RegisterChecker(&mockChecker{name: "degraded", status: StatusDegraded})
	resp = m.Ready(context.Background())
	assert.True(t, resp.Ready)
	assert.Equal(t, StatusDegraded, resp.Status)

	m.RegisterChecker(&mockChecker{name: "down", status: StatusUnhealthy, err: "boom"})
	resp = m.Ready(context.Background())
	assert.False(t, resp.Ready)
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Equal(t, "boom", resp.Checks["down"].Error)
}

func TestManager_ServeHealth(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "test", status: StatusHealthy})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	m.ServeHealth(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Nil(t, resp.Checks)

	req = httptest.NewRequest(http.MethodGet, "/healthz?verbose=true", nil)
	w = httptest.NewRecorder()
	m.ServeHealth(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Len(t, resp.Checks, 1)
}

func TestManager_ServeHealth_EncodingError(t *testing.T) {
	m := NewManager("v1.0.0")
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := &brokenWriter{header: make(http.Header)}

	m.ServeHealth(w, req)
}

func TestManager_ServeReady(t *testing.T) {
	tests := []struct {
		name           string
		checker        Checker
		expectedStatus int
		expectedReady  bool
	}{
		{"healthy", &mockChecker{name: "test", status: StatusHealthy}, http.StatusOK, true},
		{"degraded", &mockChecker{name: "test", status: StatusDegraded}, http.StatusOK, true},
		{"unhealthy", &mockChecker{name: "test", status: StatusUnhealthy}, http.StatusServiceUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("v1.0.0")
			m.RegisterChecker(tt.checker)

			req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
			w := httptest.NewRecorder()
			m.ServeReady(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var resp ReadinessResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.expectedReady, resp.Ready)
		})
	}
}

func TestManager_CheckGetsDeadline(t *testing.T) {
	m := NewManager("v1.0.0")
	var deadline bool
	m.RegisterChecker(NewFuncChecker("probe", StatusUnhealthy, func(ctx context.Context) error {
		_, deadline = ctx.Deadline()
		return nil
	}))

	resp := m.Ready(context.Background())
	assert.True(t, resp.Ready)
	assert.True(t, deadline)
}

func TestFuncChecker(t *testing.T) {
	ok := NewFuncChecker("cache", StatusDegraded, func(context.Context) error { return nil })
	assert.Equal(t, "cache", ok.Name())
	assert.Equal(t, StatusHealthy, ok.Check(context.Background()).Status)

	bad := NewFuncChecker("cache", StatusDegraded, func(context.Context) error { return errors.New("redis down") })
	res := bad.Check(context.Background())
	assert.Equal(t, StatusDegraded, res.Status)
	assert.Equal(t, "redis down", res.Error)

	unset := NewFuncChecker("cache", StatusUnhealthy, nil)
	assert.Equal(t, StatusHealthy, unset.Check(context.Background()).Status)
}

func TestBinaryChecker(t *testing.T) {
	assert.Equal(t, "solver_binary", NewBinaryChecker("x").Name())

	res := NewBinaryChecker("").Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)

	res = NewBinaryChecker("definitely-not-a-solver-binary").Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.NotEmpty(t, res.Error)

	if runtime.GOOS == "windows" {
		t.Skip("executable bit not used on windows")
	}
	bin := filepath.Join(t.TempDir(), "bellhop.exe")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755))
	res = NewBinaryChecker(bin).Check(context.Background())
	assert.Equal(t, StatusHealthy, res.Status)
	assert.Equal(t, bin, res.Message)
}

func TestDirChecker(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	tests := []struct {
		name   string
		path   string
		status Status
	}{
		{"unset", "", StatusHealthy},
		{"writable", dir, StatusHealthy},
		{"missing", filepath.Join(dir, "missing"), StatusDegraded},
		{"file", file, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewDirChecker("exports", tt.path)
			assert.Equal(t, "exports", c.Name())
			assert.Equal(t, tt.status, c.Check(context.Background()).Status)
		})
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "probe file must be removed")
}

func TestLastRunChecker(t *testing.T) {
	tests := []struct {
		name     string
		finished time.Time
		failed   int
		status   Status
	}{
		{"never run", time.Time{}, 0, StatusHealthy},
		{"all plots", time.Now(), 0, StatusHealthy},
		{"failed plots", time.Now(), 2, StatusDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewLastRunChecker(func() (time.Time, int) { return tt.finished, tt.failed })
			assert.Equal(t, "last_run", c.Name())
			assert.Equal(t, tt.status, c.Check(context.Background()).Status)
		})
	}
}

func TestPerformStartupChecks(t *testing.T) {
	cfg := config.Defaults()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.Panel.ExportDir = filepath.Join(cfg.DataDir, "exports")
	cfg.Solver.Binary = "definitely-not-a-solver-binary"

	require.NoError(t, PerformStartupChecks(context.Background(), cfg))
	assert.DirExists(t, cfg.DataDir)
	assert.DirExists(t, cfg.Panel.ExportDir)
}

func TestPerformStartupChecks_InvalidAddresses(t *testing.T) {
	base := config.Defaults()
	base.DataDir = t.TempDir()
	base.Panel.ExportDir = ""

	cfg := base
	cfg.Server.ListenAddr = "localhost"
	assert.Error(t, PerformStartupChecks(context.Background(), cfg))

	cfg = base
	cfg.Server.MetricsAddr = ":99999"
	assert.Error(t, PerformStartupChecks(context.Background(), cfg))

	cfg = base
	cfg.Cache.RedisAddr = "redis"
	assert.Error(t, PerformStartupChecks(context.Background(), cfg))
}

type mockChecker struct {
	name    string
	status  Status
	message string
	err     string
}

func (m *mockChecker) Name() string {
	return m.name
}

func (m *mockChecker) Check(_ context.Context) CheckResult {
	return CheckResult{
		Status:  m.status,
		Message: m.message,
		Error:   m.err,
	}
}

// brokenWriter is a ResponseWriter that always fails to write
type brokenWriter struct {
	header http.Header
}

func (w *brokenWriter) Header() http.Header {
	return w.header
}

func (w *brokenWriter) Write([]byte) (int, error) {
	return 0, assert.AnError
}

func (w *brokenWriter) WriteHeader(int) {}
