// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command arlpanel serves the browser control panel for the Bellhop
// acoustic propagation solver.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/arlpanel/internal/api"
	"github.com/ManuGH/arlpanel/internal/config"
	"github.com/ManuGH/arlpanel/internal/daemon"
	"github.com/ManuGH/arlpanel/internal/health"
	xglog "github.com/ManuGH/arlpanel/internal/log"
	"github.com/ManuGH/arlpanel/internal/version"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			os.Exit(runConfigCLI(os.Args[2:]))
		case "healthcheck":
			os.Exit(runHealthcheckCLI(os.Args[2:]))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	// Safe defaults until the config is loaded.
	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: "arlpanel",
		Version: version.Version,
	})
	logger := xglog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := strings.TrimSpace(*configPath)
	if path == "" {
		path = resolveDefaultConfigPath()
	}
	loader := config.NewLoader(path, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", path).
			Msg("failed to load configuration")
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Service: "arlpanel",
		Version: cfg.Version,
	})
	logger = xglog.WithComponent("daemon")
	if path != "" {
		logger.Info().Str("event", "config.loaded").Str("source", "file").Str("path", path).Msg("loaded configuration from file")
	} else {
		logger.Info().Str("event", "config.loaded").Str("source", "env+defaults").Msg("loaded configuration from environment and defaults")
	}

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.check_failed").
			Msg("Startup checks failed. Please verify configuration and permissions.")
	}

	if err := run(ctx, cfg, loader); err != nil {
		logger.Fatal().Err(err).Str("event", "daemon.failed").Msg("daemon stopped with error")
	}
	logger.Info().Str("event", "daemon.stopped").Msg("daemon stopped")
}

func run(ctx context.Context, cfg config.AppConfig, loader *config.Loader) error {
	logger := xglog.WithComponent("daemon")

	svc, err := daemon.NewServices(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}
	svc.Start(ctx)

	server, err := api.New(api.ConfigFromApp(cfg), api.Deps{
		Panel:  svc.Panel,
		Runs:   svc.History,
		Health: svc.Health,
		Bus:    svc.Bus,
	})
	if err != nil {
		_ = svc.Close(context.Background())
		return fmt.Errorf("build api: %w", err)
	}

	mgr, err := daemon.NewManager(cfg.Server, daemon.Deps{
		Logger:         logger,
		APIHandler:     server.Handler(),
		MetricsHandler: promhttp.Handler(),
		MetricsAddr:    cfg.Server.MetricsAddr,
	})
	if err != nil {
		_ = svc.Close(context.Background())
		return fmt.Errorf("build manager: %w", err)
	}
	// Hooks run in reverse: websocket clients go before the stores close.
	mgr.RegisterShutdownHook("services", svc.Close)
	mgr.RegisterShutdownHook("api", server.Close)

	holder := config.NewConfigHolder(cfg, loader)
	app := daemon.NewApp(logger, mgr, holder, svc.Panel)

	logger.Info().
		Str("event", "daemon.start").
		Str("listen", cfg.Server.ListenAddr).
		Str("metrics", cfg.Server.MetricsAddr).
		Str("solver", cfg.Solver.Binary).
		Msg("starting arlpanel")
	return app.Run(ctx)
}
