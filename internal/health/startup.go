// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/ManuGH/arlpanel/internal/config"
	"github.com/ManuGH/arlpanel/internal/log"
	"github.com/rs/zerolog"
)

// PerformStartupChecks validates the environment before the daemon starts
// serving. A missing solver binary is only a warning; the panel then shows
// placeholders until it is installed.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := checkDataDir(logger, cfg.DataDir); err != nil {
		return fmt.Errorf("data directory check failed: %w", err)
	}
	if err := checkListenAddr(logger, "listen", cfg.Server.ListenAddr); err != nil {
		return err
	}
	if err := checkListenAddr(logger, "metrics", cfg.Server.MetricsAddr); err != nil {
		return err
	}
	if cfg.Cache.RedisAddr != "" {
		if _, _, err := net.SplitHostPort(cfg.Cache.RedisAddr); err != nil {
			return fmt.Errorf("invalid redis address %q: %w", cfg.Cache.RedisAddr, err)
		}
	}
	if cfg.Panel.ExportDir != "" {
		if err := os.MkdirAll(cfg.Panel.ExportDir, 0o750); err != nil {
			return fmt.Errorf("create export directory %s: %w", cfg.Panel.ExportDir, err)
		}
	}

	if path, err := exec.LookPath(cfg.Solver.Binary); err != nil {
		logger.Warn().Err(err).Str("binary", cfg.Solver.Binary).Msg("solver binary not found; plots will show placeholders")
	} else {
		logger.Info().Str("binary", path).Msg("solver binary available")
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkDataDir(logger zerolog.Logger, path string) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str("path", path).Msg("data directory is writable")
	return nil
}

func checkListenAddr(logger zerolog.Logger, name, addr string) error {
	if addr == "" {
		return nil
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid %s address %q: %w", name, addr, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("invalid %s port %q in %q", name, port, addr)
	}
	logger.Debug().Str("addr", addr).Msgf("%s address is valid", name)
	return nil
}
