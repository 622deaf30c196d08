// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the daemon configuration.
//
// Precedence is defaults, then the YAML file (strict), then ARL_* environment
// variables. The merged result is validated before use.
package config

import "time"

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "ARL_"

// Themes lists the panel themes that can be selected.
var Themes = []string{"caliber", "dark_minimal", "light_minimal", "night_sky", "contrast"}

// TransmissionLossModes lists the accepted transmission loss modes.
var TransmissionLossModes = []string{"coherent", "incoherent", "semicoherent"}

// AppConfig is the complete daemon configuration.
type AppConfig struct {
	Version  string `yaml:"-" env:"-"`
	LogLevel string `yaml:"logLevel" env:"LOG_LEVEL"`
	DataDir  string `yaml:"dataDir" env:"DATA_DIR"`

	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Solver    SolverConfig    `yaml:"solver" envPrefix:"SOLVER_"`
	Panel     PanelConfig     `yaml:"panel" envPrefix:"PANEL_"`
	Cache     CacheConfig     `yaml:"cache" envPrefix:"CACHE_"`
	Storage   StorageConfig   `yaml:"storage" envPrefix:"STORAGE_"`
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"TELEMETRY_"`
}

// ServerConfig configures the HTTP listeners.
type ServerConfig struct {
	ListenAddr      string        `yaml:"listenAddr" env:"LISTEN_ADDR"`
	MetricsAddr     string        `yaml:"metricsAddr" env:"METRICS_ADDR"`
	ReadTimeout     time.Duration `yaml:"readTimeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" env:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idleTimeout" env:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"SHUTDOWN_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"maxHeaderBytes" env:"MAX_HEADER_BYTES"`
	// RateLimit is the number of mutating requests allowed per client and minute.
	RateLimit      int      `yaml:"rateLimit" env:"RATE_LIMIT"`
	AllowedOrigins []string `yaml:"allowedOrigins" env:"ALLOWED_ORIGINS" envSeparator:","`
}

// SolverConfig configures the external Bellhop binary.
type SolverConfig struct {
	Binary    string        `yaml:"binary" env:"BINARY"`
	Timeout   time.Duration `yaml:"timeout" env:"TIMEOUT"`
	KillGrace time.Duration `yaml:"killGrace" env:"KILL_GRACE"`
	// WorkDir holds per-run temporary directories. Empty uses the OS temp dir.
	WorkDir     string `yaml:"workDir" env:"WORK_DIR"`
	KeepWorkDir bool   `yaml:"keepWorkDir" env:"KEEP_WORK_DIR"`
	NBeams      int    `yaml:"nbeams" env:"NBEAMS"`
	// RunsPerSecond throttles solver invocations; 0 disables throttling.
	RunsPerSecond float64 `yaml:"runsPerSecond" env:"RUNS_PER_SECOND"`
	Burst         int     `yaml:"burst" env:"BURST"`
}

// PanelConfig configures the control panel session.
type PanelConfig struct {
	DefaultTheme string `yaml:"defaultTheme" env:"DEFAULT_THEME"`
	ExportDir    string `yaml:"exportDir" env:"EXPORT_DIR"`
	// RunOnStart renders the initial plots when the daemon starts.
	RunOnStart       bool                   `yaml:"runOnStart" env:"RUN_ON_START"`
	TransmissionLoss TransmissionLossConfig `yaml:"transmissionLoss" envPrefix:"TLOSS_"`
	Presets          []PresetConfig         `yaml:"presets" env:"-"`
}

// TransmissionLossConfig is the receiver grid used for the transmission loss plot.
type TransmissionLossConfig struct {
	Mode        string  `yaml:"mode" env:"MODE"`
	MaxRange    float64 `yaml:"maxRange" env:"MAX_RANGE"`
	RangePoints int     `yaml:"rangePoints" env:"RANGE_POINTS"`
	MaxDepth    float64 `yaml:"maxDepth" env:"MAX_DEPTH"`
	DepthPoints int     `yaml:"depthPoints" env:"DEPTH_POINTS"`
	ColorMin    float64 `yaml:"colorMin" env:"COLOR_MIN"`
	ColorMax    float64 `yaml:"colorMax" env:"COLOR_MAX"`
}

// PresetConfig is a named set of widget texts.
type PresetConfig struct {
	Name   string            `yaml:"name"`
	Values map[string]string `yaml:"values"`
}

// CacheConfig configures the solver result cache.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled" env:"ENABLED"`
	TTL           time.Duration `yaml:"ttl" env:"TTL"`
	RedisAddr     string        `yaml:"redisAddr" env:"REDIS_ADDR"`
	RedisPassword string        `yaml:"redisPassword" env:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redisDB" env:"REDIS_DB"`
}

// StorageConfig locates the persistent stores. Relative paths resolve
// against DataDir.
type StorageConfig struct {
	HistoryPath string `yaml:"historyPath" env:"HISTORY_PATH"`
	SessionDir  string `yaml:"sessionDir" env:"SESSION_DIR"`
	// HistoryLimit caps the number of runs kept; 0 keeps everything.
	HistoryLimit int `yaml:"historyLimit" env:"HISTORY_LIMIT"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	ServiceName  string  `yaml:"serviceName" env:"SERVICE_NAME"`
	ExporterType string  `yaml:"exporterType" env:"EXPORTER_TYPE"`
	Endpoint     string  `yaml:"endpoint" env:"ENDPOINT"`
	SamplingRate float64 `yaml:"samplingRate" env:"SAMPLING_RATE"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel: "info",
		DataDir:  "data",
		Server: ServerConfig{
			ListenAddr:      ":5006",
			MetricsAddr:     ":9106",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			IdleTimeout:     2 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
			MaxHeaderBytes:  1 << 20,
			RateLimit:       120,
		},
		Solver: SolverConfig{
			Binary:        "bellhop.exe",
			Timeout:       2 * time.Minute,
			KillGrace:     2 * time.Second,
			NBeams:        0,
			RunsPerSecond: 0,
			Burst:         1,
		},
		Panel: PanelConfig{
			DefaultTheme: "light_minimal",
			ExportDir:    "exports",
			RunOnStart:   true,
			TransmissionLoss: TransmissionLossConfig{
				Mode:        "incoherent",
				MaxRange:    1000,
				RangePoints: 1001,
				MaxDepth:    30,
				DepthPoints: 301,
				ColorMin:    -60,
				ColorMax:    -30,
			},
			Presets: DefaultPresets(),
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     time.Hour,
		},
		Storage: StorageConfig{
			HistoryPath:  "history.db",
			SessionDir:   "session",
			HistoryLimit: 500,
		},
		Telemetry: TelemetryConfig{
			ServiceName:  "arlpanel",
			ExporterType: "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}

// DefaultPresets returns the three built-in seabed presets.
func DefaultPresets() []PresetConfig {
	return []PresetConfig{
		{Name: "Preset 1", Values: map[string]string{"bottom_absorption": "0.1", "bottom_density": "1600", "bottom_soundspeed": "1600"}},
		{Name: "Preset 2", Values: map[string]string{"bottom_absorption": "0.2", "bottom_density": "1700", "bottom_soundspeed": "1650"}},
		{Name: "Preset 3", Values: map[string]string{"bottom_absorption": "0.3", "bottom_density": "1800", "bottom_soundspeed": "1700"}},
	}
}
