// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ManuGH/arlpanel/internal/config"
	"github.com/ManuGH/arlpanel/internal/health"
	"github.com/ManuGH/arlpanel/internal/panel"
	"github.com/ManuGH/arlpanel/internal/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) config.AppConfig {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.DataDir = dir
	cfg.Storage.HistoryPath = filepath.Join(dir, "db", "history.db")
	cfg.Storage.SessionDir = filepath.Join(dir, "session")
	cfg.Panel.ExportDir = filepath.Join(dir, "exports")
	cfg.Panel.TransmissionLoss.RangePoints = 11
	cfg.Panel.TransmissionLoss.DepthPoints = 7
	cfg.Solver.Binary = "definitely-not-a-solver-binary"
	return cfg
}

func TestNewServices_WiresComponents(t *testing.T) {
	cfg := testConfig(t)
	svc, err := NewServices(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close(context.Background()) })

	assert.NotNil(t, svc.Cache)
	assert.NotNil(t, svc.History)
	assert.NotNil(t, svc.Sessions)
	assert.Equal(t, cfg.Solver.Binary, svc.Solver.Binary())
	assert.Equal(t, []string{"Preset 1", "Preset 2", "Preset 3"}, svc.Panel.Snapshot().Presets)

	ready := svc.Health.Ready(context.Background())
	assert.False(t, ready.Ready)
	assert.Equal(t, health.StatusUnhealthy, ready.Checks["solver_binary"].Status)
	assert.Equal(t, health.StatusHealthy, ready.Checks["history"].Status)
}

func TestNewServices_CacheDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Enabled = false

	svc, err := NewServices(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close(context.Background()) })

	assert.Nil(t, svc.Cache)
}

func TestNewServices_RedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Cache.RedisAddr = mr.Addr()

	svc, err := NewServices(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close(context.Background()) })

	ready := svc.Health.Ready(context.Background())
	assert.Equal(t, health.StatusHealthy, ready.Checks["cache"].Status)
}

func TestNewServices_RedisUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.RedisAddr = "127.0.0.1:1"

	_, err := NewServices(context.Background(), cfg)
	require.Error(t, err)
}

func TestServices_StartRestoresAndRuns(t *testing.T) {
	cfg := testConfig(t)

	store, err := session.Open(cfg.Storage.SessionDir)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), session.State{
		Widgets: map[string]string{"name": "harbour"},
		Theme:   "night_sky",
	}))
	require.NoError(t, store.Close())

	svc, err := NewServices(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close(context.Background()) })

	svc.Start(context.Background())

	st := svc.Panel.Snapshot()
	assert.Equal(t, "night_sky", st.Theme)
	assert.Equal(t, "harbour", st.Widgets["name"])
	require.NotNil(t, st.LastRun)

	// Without a solver binary only the environment and SSP plots render.
	assert.Equal(t, 4, st.Layout.Placeholders())
	assert.False(t, st.Layout[panel.SlotEnv].Placeholder)
	assert.Equal(t, "harbour env", st.Layout[panel.SlotEnv].Title)

	found := false
	for _, line := range st.Log {
		if strings.HasPrefix(line, "Error computing or plotting rays: ") {
			found = true
		}
	}
	assert.True(t, found, "log %v", st.Log)

	runs, err := svc.History.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Failed())

	lastRun := svc.Health.Ready(context.Background()).Checks["last_run"]
	assert.Equal(t, health.StatusDegraded, lastRun.Status)
}
