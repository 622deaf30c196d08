// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"net/http"

	"github.com/ManuGH/arlpanel/internal/api/middleware"
	"github.com/ManuGH/arlpanel/internal/log"
)

// Problem types.
const (
	problemBadRequest   = "panel/bad_request"
	problemNotFound     = "panel/not_found"
	problemUnknownKey   = "panel/unknown_parameter"
	problemInternal     = "panel/internal"
	problemExportFailed = "panel/export_failed"
	problemTooLarge     = "panel/body_too_large"
)

// writeProblem writes an RFC 7807 problem details response.
//
//   - type: machine identifier (e.g. "panel/not_found").
//   - title: short human label.
//   - code: stable upper-case code.
//   - detail: explanation of this occurrence.
func writeProblem(w http.ResponseWriter, r *http.Request, status int, problemType, title, code, detail string) {
	reqID := log.RequestIDFromContext(r.Context())
	if reqID == "" {
		reqID = w.Header().Get(middleware.HeaderRequestID)
	}

	res := map[string]any{
		"type":       problemType,
		"title":      title,
		"status":     status,
		"code":       code,
		"request_id": reqID,
		"instance":   r.URL.EscapedPath(),
	}
	if detail != "" {
		res["detail"] = detail
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		log.L().Error().
			Err(err).
			Str("type", problemType).
			Int("status", status).
			Msg("failed to encode problem response")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.L().Error().Err(err).Int("status", status).Msg("failed to encode response")
	}
}
