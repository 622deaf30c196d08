// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"strings"

	"github.com/ManuGH/arlpanel/internal/params"
	"github.com/ManuGH/arlpanel/internal/validate"
)

// Validate checks the merged configuration and reports every problem at once.
func Validate(cfg AppConfig) error {
	v := validate.New()

	if _, err := validate.ParseLogLevel(strings.ToLower(cfg.LogLevel)); err != nil {
		v.AddError("logLevel", "invalid log level (must be: debug, info, warn, error)", cfg.LogLevel)
	}
	v.NotEmpty("dataDir", cfg.DataDir)

	validateServer(v, cfg.Server)
	validateSolver(v, cfg.Solver)
	validatePanel(v, cfg.Panel)
	validateCache(v, cfg.Cache)
	validateStorage(v, cfg.Storage)
	validateTelemetry(v, cfg.Telemetry)

	return v.Err()
}

func validateServer(v *validate.Validator, s ServerConfig) {
	v.ListenAddr("server.listenAddr", s.ListenAddr)
	if s.MetricsAddr != "" {
		v.ListenAddr("server.metricsAddr", s.MetricsAddr)
	}
	v.Positive("server.readTimeout", s.ReadTimeout.Seconds())
	v.Positive("server.writeTimeout", s.WriteTimeout.Seconds())
	v.Positive("server.shutdownTimeout", s.ShutdownTimeout.Seconds())
	v.NonNegative("server.idleTimeout", s.IdleTimeout.Seconds())
	v.Range("server.maxHeaderBytes", s.MaxHeaderBytes, 1024, 16<<20)
	v.Range("server.rateLimit", s.RateLimit, 0, 100000)
}

func validateSolver(v *validate.Validator, s SolverConfig) {
	v.NotEmpty("solver.binary", s.Binary)
	v.Positive("solver.timeout", s.Timeout.Seconds())
	v.NonNegative("solver.killGrace", s.KillGrace.Seconds())
	v.Range("solver.nbeams", s.NBeams, 0, 100000)
	v.NonNegative("solver.runsPerSecond", s.RunsPerSecond)
	if s.RunsPerSecond > 0 {
		v.Range("solver.burst", s.Burst, 1, 1000)
	}
}

func validatePanel(v *validate.Validator, p PanelConfig) {
	v.OneOf("panel.defaultTheme", p.DefaultTheme, Themes)
	v.NotEmpty("panel.exportDir", p.ExportDir)

	tl := p.TransmissionLoss
	v.OneOf("panel.transmissionLoss.mode", tl.Mode, TransmissionLossModes)
	v.Positive("panel.transmissionLoss.maxRange", tl.MaxRange)
	v.Positive("panel.transmissionLoss.maxDepth", tl.MaxDepth)
	v.Range("panel.transmissionLoss.rangePoints", tl.RangePoints, 2, 10001)
	v.Range("panel.transmissionLoss.depthPoints", tl.DepthPoints, 2, 10001)
	if tl.ColorMin >= tl.ColorMax {
		v.AddError("panel.transmissionLoss.colorMin",
			fmt.Sprintf("must be below colorMax (%g)", tl.ColorMax), tl.ColorMin)
	}

	seen := make(map[string]bool, len(p.Presets))
	for i, preset := range p.Presets {
		field := fmt.Sprintf("panel.presets[%d]", i)
		if strings.TrimSpace(preset.Name) == "" {
			v.AddError(field+".name", "preset name cannot be empty", preset.Name)
			continue
		}
		if seen[preset.Name] {
			v.AddError(field+".name", "duplicate preset name", preset.Name)
		}
		seen[preset.Name] = true
		if len(preset.Values) == 0 {
			v.AddError(field+".values", "preset must set at least one parameter", preset.Name)
		}
		for key := range preset.Values {
			if !params.Known(key) {
				v.AddError(field+".values", "unknown parameter "+key, key)
			}
		}
	}
}

func validateCache(v *validate.Validator, c CacheConfig) {
	if !c.Enabled {
		return
	}
	v.Positive("cache.ttl", c.TTL.Seconds())
	if c.RedisAddr != "" {
		v.ListenAddr("cache.redisAddr", c.RedisAddr)
		v.Range("cache.redisDB", c.RedisDB, 0, 15)
	}
}

func validateStorage(v *validate.Validator, s StorageConfig) {
	v.NotEmpty("storage.historyPath", s.HistoryPath)
	v.NotEmpty("storage.sessionDir", s.SessionDir)
	v.Range("storage.historyLimit", s.HistoryLimit, 0, 1000000)
}

func validateTelemetry(v *validate.Validator, t TelemetryConfig) {
	if !t.Enabled {
		return
	}
	v.NotEmpty("telemetry.serviceName", t.ServiceName)
	v.OneOf("telemetry.exporterType", t.ExporterType, []string{"grpc", "http"})
	v.NotEmpty("telemetry.endpoint", t.Endpoint)
	v.RangeFloat("telemetry.samplingRate", t.SamplingRate, 0, 1)
}
