// Copyright 2024 - 2026, the LinguaFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package routes

import (
	"encoding/json"
	"fmt"
	"net/http"

	"codeberg.org/linguafe/linguafe/config"
)

type rateRequest struct {
	RPS float64 `json:"rps"`
}

// ConfigureRate handles POST /api/settings/rate: it adjusts the outbound
// request rate for all subsequent translation dispatches.
func (s *TranslationService) ConfigureRate(w http.ResponseWriter, r *http.Request) error {
	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return BadRequest(fmt.Sprintf("invalid request body: %v", err))
	}

	if req.RPS <= 0 {
		return BadRequest("rps must be greater than 0")
	}

	s.dispatcher.ConfigureRate(req.RPS)

	return writeJSON(w, map[string]any{"rps": req.RPS})
}

// ClearCache handles POST /api/cache/clear.
func (s *TranslationService) ClearCache(w http.ResponseWriter, r *http.Request) error {
	s.dispatcher.ClearCache()

	return writeJSON(w, map[string]any{"cleared": true})
}

// Health handles GET /health.
func (s *TranslationService) Health(w http.ResponseWriter, r *http.Request) error {
	return writeJSON(w, map[string]string{
		"status":  "ok",
		"version": config.BuildVersion,
		"started": config.Global.Instance.StartingTime,
	})
}
