// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/arlpanel/internal/panel"
	"github.com/ManuGH/arlpanel/internal/plot"
)

var plotFormats = map[string]struct {
	format      plot.Format
	contentType string
}{
	"svg": {plot.FormatSVG, "image/svg+xml"},
	"png": {plot.FormatPNG, "image/png"},
}

// handleGetPlot serves /plots/{slot}, /plots/{slot}.json, /plots/{slot}.svg
// and /plots/{slot}.png.
func (s *Server) handleGetPlot(w http.ResponseWriter, r *http.Request) {
	name, ext, _ := strings.Cut(chi.URLParam(r, "file"), ".")
	slot, err := panel.ParseSlot(name)
	if err != nil {
		writeProblem(w, r, http.StatusNotFound, problemNotFound, "Not Found", "UNKNOWN_SLOT", err.Error())
		return
	}
	fig, err := s.panel.Figure(slot)
	if err != nil || fig == nil {
		writeProblem(w, r, http.StatusNotFound, problemNotFound, "Not Found", "UNKNOWN_SLOT", "no figure in slot "+name)
		return
	}

	if ext == "" || ext == "json" {
		writeJSON(w, http.StatusOK, fig)
		return
	}
	f, ok := plotFormats[ext]
	if !ok {
		writeProblem(w, r, http.StatusNotFound, problemNotFound, "Not Found", "UNKNOWN_FORMAT", "unsupported figure format "+ext)
		return
	}
	var buf bytes.Buffer
	if err := plot.Render(fig, f.format, &buf); err != nil {
		s.internalError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", f.contentType)
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(buf.Bytes())
}
