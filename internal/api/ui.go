// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"
)

//go:embed all:ui
var uiFS embed.FS

// uiHandler serves the embedded control panel page and its assets.
func uiHandler(csp string) http.Handler {
	subFS, err := fs.Sub(uiFS, "ui")
	var fileServer http.Handler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "UI not available", http.StatusInternalServerError)
	})
	if err == nil {
		fileServer = http.FileServer(http.FS(subFS))
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", csp)

		path := r.URL.Path
		if path == "/" || !strings.Contains(path, ".") {
			w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		} else {
			w.Header().Set("Cache-Control", "public, max-age=3600")
		}
		fileServer.ServeHTTP(w, r)
	})
}
