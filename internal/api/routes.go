// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/arlpanel/internal/api/middleware"
)

func (s *Server) routes() http.Handler {
	r := s.newRouter()
	s.registerPublicRoutes(r)
	r.Route(BaseURL, func(r chi.Router) {
		r.Use(limitBody(maxBodyBytes))
		r.Use(s.validateRequest)
		s.registerReadRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(middleware.MutationRateLimit(s.cfg.RateLimit))
			s.registerWriteRoutes(r)
		})
	})
	return r
}

func (s *Server) newRouter() chi.Router {
	return middleware.NewRouter(middleware.StackConfig{
		EnableCORS:     true,
		AllowedOrigins: s.cfg.AllowedOrigins,

		EnableSecurityHeaders: true,
		CSP:                   middleware.DefaultCSP,

		EnableMetrics:  true,
		TracingService: "arlpanel-api",
		EnableLogging:  true,
	})
}

func (s *Server) registerPublicRoutes(r chi.Router) {
	if s.health != nil {
		r.Get("/healthz", s.health.ServeHealth)
		r.Get("/readyz", s.health.ServeReady)
	}
	r.Get("/ws", s.hub.ServeHTTP)

	ui := uiHandler(middleware.DefaultCSP)
	r.Get("/", ui.ServeHTTP)
	r.Get("/assets/*", ui.ServeHTTP)
}

func (s *Server) registerReadRoutes(r chi.Router) {
	r.Get("/panel", s.handleGetPanel)
	r.Get("/panel/presets", s.handleListPresets)
	r.Get("/panel/themes", s.handleListThemes)
	r.Get("/panel/log", s.handleGetLog)
	r.Get("/plots/{file}", s.handleGetPlot)
	r.Get("/runs", s.handleListRuns)
	r.Get("/runs/{id}", s.handleGetRun)
	r.Get("/openapi.json", s.handleOpenAPI)
}

func (s *Server) registerWriteRoutes(r chi.Router) {
	r.Patch("/panel/widgets", s.handleUpdateWidgets)
	r.Post("/panel/run", s.handleRun)
	r.Post("/panel/reset", s.handleReset)
	r.Post("/panel/presets/{name}", s.handleLoadPreset)
	r.Put("/panel/theme", s.handleSwitchTheme)
	r.Post("/panel/export", s.handleExport)
}

func limitBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}
