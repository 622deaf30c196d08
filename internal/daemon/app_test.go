// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/arlpanel/internal/config"
	"github.com/ManuGH/arlpanel/internal/log"
	"go.uber.org/goleak"
)

type fakeManager struct {
	started  chan struct{}
	startErr error

	mu       sync.Mutex
	shutdown int
}

func newFakeManager() *fakeManager {
	return &fakeManager{started: make(chan struct{})}
}

func (m *fakeManager) Start(ctx context.Context) error {
	close(m.started)
	if m.startErr != nil {
		return m.startErr
	}
	<-ctx.Done()
	return nil
}

func (m *fakeManager) Shutdown(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdown++
	return nil
}

func (m *fakeManager) RegisterShutdownHook(string, ShutdownHook) {}

type recordingApplier struct {
	got chan config.AppConfig
}

func (r *recordingApplier) ApplyConfig(cfg config.AppConfig) {
	r.got <- cfg
}

func TestApp_Run_MissingManager(t *testing.T) {
	app := NewApp(log.WithComponent("test"), nil, nil)
	if err := app.Run(context.Background()); !errors.Is(err, ErrMissingManager) {
		t.Fatalf("Run() error = %v, want %v", err, ErrMissingManager)
	}
}

func TestApp_Run_ManagerErrorTriggersShutdown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	mgr := newFakeManager()
	mgr.startErr = errors.New("bind failed")
	app := NewApp(log.WithComponent("test"), mgr, nil)
	app.reloadSignal = nil

	err := app.Run(context.Background())
	if err == nil || err.Error() != "bind failed" {
		t.Fatalf("Run() error = %v, want bind failed", err)
	}
	if mgr.shutdown != 1 {
		t.Fatalf("Shutdown called %d times, want 1", mgr.shutdown)
	}
}

func TestApp_Run_ReloadReachesAppliers(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	write := func(body string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	write("dataDir: " + dir + "\n")

	loader := config.NewLoader(path, "test").WithEnvironment(map[string]string{})
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	holder := config.NewConfigHolder(cfg, loader)

	mgr := newFakeManager()
	applier := &recordingApplier{got: make(chan config.AppConfig, 4)}
	app := NewApp(log.WithComponent("test"), mgr, holder, applier)
	app.reloadSignal = nil

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	select {
	case <-mgr.started:
	case <-time.After(2 * time.Second):
		t.Fatal("manager not started")
	}

	write("dataDir: " + dir + "\npanel:\n  presets:\n    - name: Shallow\n      values:\n        depth: \"15\"\n")
	if err := holder.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	var applied config.AppConfig
	for applied.Panel.Presets == nil || len(applied.Panel.Presets) != 4 {
		select {
		case applied = <-applier.got:
		case <-time.After(2 * time.Second):
			t.Fatal("reloaded config not applied")
		}
	}
	if applied.Panel.Presets[3].Name != "Shallow" {
		t.Fatalf("presets = %+v, want Shallow appended", applied.Panel.Presets)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return")
	}
}
