// Copyright 2024 - 2026, the LinguaFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package routes implements the HTTP API of the translation service.

All handlers hang off a TranslationService, which owns the per-process
translation session: one cache, one rate queue, one completion client and the
dispatcher tying them together.
*/
package routes

import (
	"fmt"

	"codeberg.org/linguafe/linguafe/config"
	"codeberg.org/linguafe/linguafe/core/completion"
	"codeberg.org/linguafe/linguafe/core/dispatch"
	"codeberg.org/linguafe/linguafe/core/ratequeue"
	"codeberg.org/linguafe/linguafe/core/transcache"
)

// TranslationService owns the translation session shared by all requests.
type TranslationService struct {
	dispatcher *dispatch.Dispatcher

	// base carries the configured defaults; requests may override the
	// target language and model per call.
	base dispatch.Settings
}

// NewTranslationService wires a session from the loaded configuration.
func NewTranslationService(cfg *config.ServerConfig) (*TranslationService, error) {
	cache, err := transcache.New(cfg.Cache.Capacity, cfg.Cache.Compress)
	if err != nil {
		return nil, fmt.Errorf("failed to create translation cache: %w", err)
	}

	client := &completion.Client{
		Endpoint: cfg.Provider.Endpoint,
		APIKey:   cfg.Provider.APIKey,
		Model:    cfg.Provider.Model,
		Profiles: cfg.Provider.Profiles,
	}

	return &TranslationService{
		dispatcher: dispatch.New(cache, ratequeue.New(cfg.Translation.RPS), client),
		base: dispatch.Settings{
			TargetLang:   cfg.Translation.TargetLang,
			SystemPrompt: cfg.Translation.SystemPrompt,
			BatchPrompt:  cfg.Translation.BatchPrompt,
			BatchBudget:  cfg.Translation.BatchBudget,
			Delimiter:    cfg.Translation.Delimiter,
		},
	}, nil
}

// settingsFor applies per-request overrides on top of the configured base.
func (s *TranslationService) settingsFor(targetLang, model string) dispatch.Settings {
	settings := s.base

	if targetLang != "" {
		settings.TargetLang = targetLang
	}

	if model != "" {
		settings.Model = model
	}

	return settings
}
