// Copyright 2024 - 2026, the LinguaFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package routes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"codeberg.org/linguafe/linguafe/core/dispatch"
	"codeberg.org/linguafe/linguafe/core/page"
	"codeberg.org/linguafe/linguafe/server/utils"
)

// payloadFragment adapts one API payload entry to the pipeline's fragment
// interface.
type payloadFragment struct {
	id      string
	content string
	flag    dispatch.Flag
}

func (f *payloadFragment) Content() string        { return f.content }
func (f *payloadFragment) SetContent(text string) { f.content = text }
func (f *payloadFragment) Mark(flag dispatch.Flag) {
	f.flag = flag
}

type translateRequest struct {
	TargetLang string `json:"targetLang"`
	Model      string `json:"model"`
	Fragments  []struct {
		ID     string `json:"id"`
		Markup string `json:"markup"`
	} `json:"fragments"`
}

type translateResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Markup string `json:"markup"`
	Error  string `json:"error,omitempty"`
}

type translateResponse struct {
	Results []translateResult `json:"results"`
}

// Translate handles POST /api/translate: it runs one pipeline pass over the
// posted fragments and reports each one's outcome.
func (s *TranslationService) Translate(w http.ResponseWriter, r *http.Request) error {
	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return BadRequest(fmt.Sprintf("invalid request body: %v", err))
	}

	if len(req.Fragments) == 0 {
		return BadRequest("no fragments supplied")
	}

	frags := make([]dispatch.Fragment, len(req.Fragments))
	for i, f := range req.Fragments {
		frags[i] = &payloadFragment{id: f.ID, content: f.Markup}
	}

	outcomes := s.dispatcher.TranslateFragments(
		r.Context(),
		frags,
		s.settingsFor(req.TargetLang, req.Model),
	)

	resp := translateResponse{Results: make([]translateResult, len(frags))}

	for i, outcome := range outcomes {
		frag := frags[i].(*payloadFragment)

		result := translateResult{
			ID:     frag.id,
			Status: string(outcome.Status),
			Markup: frag.content,
		}

		if outcome.Err != nil {
			result.Error = outcome.Err.Error()
		}

		resp.Results[i] = result
	}

	return writeJSON(w, resp)
}

type translatePageRequest struct {
	TargetLang string `json:"targetLang"`
	Model      string `json:"model"`
	HTML       string `json:"html"`
}

type translatePageResponse struct {
	HTML       string `json:"html"`
	Translated int    `json:"translated"`
	Failed     int    `json:"failed"`
}

// TranslatePage handles POST /api/translate/page: it translates every
// translatable element of a whole document and returns the mutated HTML.
// The target language may also be given as a ?targetLang= query parameter.
func (s *TranslationService) TranslatePage(w http.ResponseWriter, r *http.Request) error {
	var req translatePageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return BadRequest(fmt.Sprintf("invalid request body: %v", err))
	}

	if strings.TrimSpace(req.HTML) == "" {
		return BadRequest("no html supplied")
	}

	if req.TargetLang == "" {
		req.TargetLang = utils.GetQueryParam(r, "targetLang")
	}

	doc, err := page.Parse(strings.NewReader(req.HTML))
	if err != nil {
		return BadRequest(fmt.Sprintf("unparseable html: %v", err))
	}

	outcomes := s.dispatcher.TranslateFragments(
		r.Context(),
		doc.Fragments(),
		s.settingsFor(req.TargetLang, req.Model),
	)

	var translated, failed int

	for _, outcome := range outcomes {
		switch outcome.Status {
		case dispatch.StatusTranslated, dispatch.StatusCached:
			translated++
		case dispatch.StatusFailed:
			failed++
		}
	}

	rendered, err := doc.Render()
	if err != nil {
		return fmt.Errorf("failed to render translated document: %w", err)
	}

	return writeJSON(w, translatePageResponse{
		HTML:       rendered,
		Translated: translated,
		Failed:     failed,
	})
}

func writeJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}

	return nil
}
