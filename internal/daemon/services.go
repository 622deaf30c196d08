// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ManuGH/arlpanel/internal/bellhop"
	"github.com/ManuGH/arlpanel/internal/bus"
	"github.com/ManuGH/arlpanel/internal/cache"
	"github.com/ManuGH/arlpanel/internal/config"
	"github.com/ManuGH/arlpanel/internal/health"
	"github.com/ManuGH/arlpanel/internal/history"
	"github.com/ManuGH/arlpanel/internal/log"
	"github.com/ManuGH/arlpanel/internal/panel"
	"github.com/ManuGH/arlpanel/internal/session"
	"github.com/ManuGH/arlpanel/internal/telemetry"
	"github.com/rs/zerolog"
)

// Services holds the long-lived components behind the HTTP API.
type Services struct {
	Config   config.AppConfig
	Cache    cache.Cache // nil when caching is disabled
	History  *history.Store
	Sessions *session.Store
	Solver   *bellhop.Client
	Bus      *bus.MemoryBus
	Panel    *panel.Session
	Health   *health.Manager

	telemetry *telemetry.Provider
	logger    zerolog.Logger
}

// NewServices opens the stores and builds the panel session. On error
// everything opened so far is closed again.
func NewServices(ctx context.Context, cfg config.AppConfig) (_ *Services, err error) {
	svc := &Services{Config: cfg, logger: log.WithComponent("daemon")}
	defer func() {
		if err != nil {
			_ = svc.Close(context.Background())
		}
	}()

	svc.telemetry, err = telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Version,
		ExporterType:   cfg.Telemetry.ExporterType,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	var resultCache bellhop.ResultCache
	if cfg.Cache.Enabled {
		svc.Cache, err = cache.New(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		}, svc.logger)
		if err != nil {
			return nil, fmt.Errorf("cache: %w", err)
		}
		resultCache = svc.Cache
	}

	if cfg.Storage.HistoryPath != "" {
		if err = os.MkdirAll(filepath.Dir(cfg.Storage.HistoryPath), 0o750); err != nil {
			return nil, fmt.Errorf("history dir: %w", err)
		}
		svc.History, err = history.Open(ctx, cfg.Storage.HistoryPath, cfg.Storage.HistoryLimit)
		if err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
	}

	svc.Sessions, err = session.Open(cfg.Storage.SessionDir)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}

	svc.Solver = bellhop.NewClient(bellhop.Config{
		Binary:        cfg.Solver.Binary,
		Timeout:       cfg.Solver.Timeout,
		KillGrace:     cfg.Solver.KillGrace,
		WorkDir:       cfg.Solver.WorkDir,
		KeepWorkDir:   cfg.Solver.KeepWorkDir,
		CacheTTL:      cfg.Cache.TTL,
		RunsPerSecond: cfg.Solver.RunsPerSecond,
		Burst:         cfg.Solver.Burst,
	}, resultCache)

	svc.Bus = bus.NewMemoryBus()

	opts := panel.OptionsFromConfig(cfg)
	opts.Solver = svc.Solver
	opts.Store = svc.Sessions
	opts.Bus = svc.Bus
	if svc.History != nil {
		opts.History = svc.History
	}
	svc.Panel, err = panel.New(opts)
	if err != nil {
		return nil, fmt.Errorf("panel: %w", err)
	}

	svc.Health = health.NewManager(cfg.Version)
	svc.registerChecks()
	return svc, nil
}

func (s *Services) registerChecks() {
	s.Health.RegisterChecker(health.NewBinaryChecker(s.Config.Solver.Binary))
	s.Health.RegisterChecker(health.NewDirChecker("export_dir", s.Config.Panel.ExportDir))
	if s.History != nil {
		s.Health.RegisterChecker(health.NewFuncChecker("history", health.StatusDegraded, s.History.Check))
	}
	if hc, ok := s.Cache.(interface{ HealthCheck(context.Context) error }); ok {
		s.Health.RegisterChecker(health.NewFuncChecker("cache", health.StatusDegraded, hc.HealthCheck))
	}
	s.Health.RegisterChecker(health.NewLastRunChecker(func() (time.Time, int) {
		last := s.Panel.Snapshot().LastRun
		if last == nil {
			return time.Time{}, 0
		}
		failed := 0
		for _, outcome := range last.Outcomes {
			if outcome != history.OutcomeOK {
				failed++
			}
		}
		return last.FinishedAt, failed
	}))
}

// Start restores the persisted widgets and theme and, when configured,
// renders the initial plots.
func (s *Services) Start(ctx context.Context) {
	st, ok, err := s.Sessions.Load(ctx)
	switch {
	case err != nil:
		s.logger.Warn().Err(err).Str("event", "session.load_failed").Msg("failed to load saved panel state")
	case ok:
		s.Panel.Restore(st)
	}

	if s.Config.Panel.RunOnStart {
		sum := s.Panel.RunSimulation(ctx)
		s.logger.Info().
			Str("event", "panel.initial_run").
			Str(log.FieldRunID, sum.ID).
			Msg("initial plots rendered")
	}
}

// Close releases every store. It is safe to call on partially built
// services.
func (s *Services) Close(ctx context.Context) error {
	var errs []error
	if s.Sessions != nil {
		errs = append(errs, s.Sessions.Close())
	}
	if s.History != nil {
		errs = append(errs, s.History.Close())
	}
	if s.Cache != nil {
		errs = append(errs, s.Cache.Close())
	}
	if s.telemetry != nil {
		errs = append(errs, s.telemetry.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
