// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api is the HTTP surface of the control panel: the embedded UI,
// the JSON API under /api/v1, the websocket push channel and the health
// probes.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/routers"

	"github.com/ManuGH/arlpanel/internal/bus"
	"github.com/ManuGH/arlpanel/internal/config"
	"github.com/ManuGH/arlpanel/internal/history"
	"github.com/ManuGH/arlpanel/internal/log"
	"github.com/ManuGH/arlpanel/internal/panel"
	"github.com/ManuGH/arlpanel/internal/plot"
	"github.com/rs/zerolog"
)

// BaseURL is the prefix of the JSON API.
const BaseURL = "/api/v1"

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Panel is the control panel the handlers drive.
type Panel interface {
	Snapshot() panel.State
	Log() []string
	Theme() string
	Update(ctx context.Context, changes map[string]string) (panel.RunSummary, error)
	RunSimulation(ctx context.Context) panel.RunSummary
	Reset(ctx context.Context) panel.RunSummary
	LoadPreset(ctx context.Context, name string) (panel.RunSummary, error)
	SwitchTheme(ctx context.Context, name string) error
	Presets() []config.PresetConfig
	Themes() []string
	Figure(slot panel.Slot) (*plot.Figure, error)
	Export(ctx context.Context) (panel.ExportResult, error)
}

// RunStore reads the run history.
type RunStore interface {
	List(ctx context.Context, limit int) ([]history.Run, error)
	Get(ctx context.Context, id string) (history.Run, error)
}

// HealthHandlers serves the liveness and readiness probes.
type HealthHandlers interface {
	ServeHealth(w http.ResponseWriter, r *http.Request)
	ServeReady(w http.ResponseWriter, r *http.Request)
}

// Config is the HTTP configuration of the API.
type Config struct {
	AllowedOrigins []string
	// RateLimit is the number of mutating requests per client and minute.
	RateLimit int
}

// ConfigFromApp extracts the API configuration.
func ConfigFromApp(cfg config.AppConfig) Config {
	return Config{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimit:      cfg.Server.RateLimit,
	}
}

// Deps are the collaborators of the API server. Panel is required.
type Deps struct {
	Panel  Panel
	Runs   RunStore
	Health HealthHandlers
	Bus    bus.Bus
}

// Server is the API HTTP handler.
type Server struct {
	cfg    Config
	panel  Panel
	runs   RunStore
	health HealthHandlers

	doc    *openapi3.T
	router routers.Router
	hub    *Hub

	handler   http.Handler
	closeOnce sync.Once
	logger    zerolog.Logger
}

// ErrMissingPanel is returned by New without a panel.
var ErrMissingPanel = errors.New("api: panel is required")

// New builds the server and its routes.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Panel == nil {
		return nil, ErrMissingPanel
	}
	doc, router, err := loadOpenAPI()
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:    cfg,
		panel:  deps.Panel,
		runs:   deps.Runs,
		health: deps.Health,
		doc:    doc,
		router: router,
		hub:    NewHub(deps.Bus, deps.Panel.Snapshot, cfg.AllowedOrigins),
		logger: log.WithComponent("api"),
	}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Close disconnects all websocket clients.
func (s *Server) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		s.logger.Info().Str(log.FieldEvent, "api.close").Msg("closing websocket clients")
		err = s.hub.Close(ctx)
	})
	return err
}
