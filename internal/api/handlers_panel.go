// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/arlpanel/internal/log"
	"github.com/ManuGH/arlpanel/internal/panel"
)

type presetResponse struct {
	Name   string            `json:"name"`
	Values map[string]string `json:"values"`
}

type themesResponse struct {
	Theme  string   `json:"theme"`
	Themes []string `json:"themes"`
}

type themeRequest struct {
	Theme string `json:"theme"`
}

type logResponse struct {
	Lines []string `json:"lines"`
}

// runContext detaches a simulation from the request so a client that
// goes away does not leave the layout half updated.
func runContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (s *Server) handleGetPanel(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.panel.Snapshot())
}

func (s *Server) handleGetLog(w http.ResponseWriter, _ *http.Request) {
	lines := s.panel.Log()
	if lines == nil {
		lines = []string{}
	}
	writeJSON(w, http.StatusOK, logResponse{Lines: lines})
}

func (s *Server) handleListPresets(w http.ResponseWriter, _ *http.Request) {
	presets := s.panel.Presets()
	out := make([]presetResponse, 0, len(presets))
	for _, p := range presets {
		values := p.Values
		if values == nil {
			values = map[string]string{}
		}
		out = append(out, presetResponse{Name: p.Name, Values: values})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListThemes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.themes())
}

func (s *Server) themes() themesResponse {
	themes := s.panel.Themes()
	if themes == nil {
		themes = []string{}
	}
	return themesResponse{Theme: s.panel.Theme(), Themes: themes}
}

func (s *Server) handleUpdateWidgets(w http.ResponseWriter, r *http.Request) {
	var changes map[string]string
	if err := json.NewDecoder(r.Body).Decode(&changes); err != nil {
		writeProblem(w, r, http.StatusBadRequest, problemBadRequest, "Bad Request", "INVALID_BODY", err.Error())
		return
	}
	sum, err := s.panel.Update(runContext(r), changes)
	if err != nil {
		if errors.Is(err, panel.ErrUnknownKey) {
			writeProblem(w, r, http.StatusUnprocessableEntity, problemUnknownKey, "Unknown Parameter", "UNKNOWN_PARAMETER", err.Error())
			return
		}
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.panel.RunSimulation(runContext(r)))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.panel.Reset(runContext(r)))
}

func (s *Server) handleLoadPreset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	sum, err := s.panel.LoadPreset(runContext(r), name)
	if err != nil {
		if errors.Is(err, panel.ErrUnknownPreset) {
			writeProblem(w, r, http.StatusNotFound, problemNotFound, "Not Found", "UNKNOWN_PRESET", err.Error())
			return
		}
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleSwitchTheme(w http.ResponseWriter, r *http.Request) {
	var req themeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, r, http.StatusBadRequest, problemBadRequest, "Bad Request", "INVALID_BODY", err.Error())
		return
	}
	if err := s.panel.SwitchTheme(r.Context(), req.Theme); err != nil {
		if errors.Is(err, panel.ErrUnknownTheme) {
			writeProblem(w, r, http.StatusNotFound, problemNotFound, "Not Found", "UNKNOWN_THEME", err.Error())
			return
		}
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.themes())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	res, err := s.panel.Export(r.Context())
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().
			Err(err).
			Str(log.FieldEvent, "api.export_failed").
			Msg("export failed")
		writeProblem(w, r, http.StatusInternalServerError, problemExportFailed, "Export Failed", "EXPORT_FAILED", err.Error())
		return
	}
	if res.Files == nil {
		res.Files = []string{}
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Error().
		Err(err).
		Str(log.FieldEvent, "api.internal_error").
		Str(log.FieldPath, r.URL.Path).
		Msg("request failed")
	writeProblem(w, r, http.StatusInternalServerError, problemInternal, "Internal Server Error", "INTERNAL", "")
}
