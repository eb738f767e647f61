// Copyright 2024 - 2026, the LinguaFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"

	"codeberg.org/linguafe/linguafe/server/utils"
)

// validation errors.
var (
	errEndpointRequired      = errors.New("provider.endpoint is required")
	errModelRequired         = errors.New("provider.model is required")
	errNonPositiveRPS        = errors.New("translation.rps must be greater than 0")
	errNonPositiveBudget     = errors.New("translation.batchBudget must be greater than 0")
	errNonPositiveCapacity   = errors.New("cache.capacity must be greater than 0")
	errInvalidLimiterRPS     = errors.New("limiter.rps must be greater than 0 when the limiter is enabled")
	errInvalidLimiterBurst   = errors.New("limiter.burst must be at least 1 when the limiter is enabled")
	errEmptyProfile          = errors.New("provider.profiles must not be empty when set")
	errNoFallbackProfile     = errors.New("provider.profiles needs one profile without match entries as the fallback")
	errInvalidTargetLanguage = errors.New("translation.targetLang is not a recognizable language identifier")
)

// validateAndSet validates the server configuration and populates some fields.
func (cfg *ServerConfig) validateAndSet() error {
	if cfg.Basic.Host == "" {
		cfg.Basic.Host = "localhost"
		log.Info().
			Str("host", cfg.Basic.Host).
			Msg("Binding to default host")
	}

	if cfg.Basic.Port == "" {
		cfg.Basic.Port = "8484"
		log.Info().
			Str("port", cfg.Basic.Port).
			Msg("Using default port")
	}

	if cfg.Provider.Endpoint == "" {
		return errEndpointRequired
	}

	endpointURL, err := utils.ParseURL(cfg.Provider.Endpoint, "provider endpoint")
	if err != nil {
		return fmt.Errorf("invalid provider endpoint: %w", err)
	}

	cfg.Provider.Endpoint = endpointURL.String()

	if cfg.Provider.Model == "" {
		return errModelRequired
	}

	if len(cfg.Provider.Profiles) == 0 {
		return errEmptyProfile
	}

	hasFallback := false

	for _, profile := range cfg.Provider.Profiles {
		if len(profile.Match) == 0 {
			hasFallback = true

			break
		}
	}

	if !hasFallback {
		return errNoFallbackProfile
	}

	if cfg.Translation.RPS <= 0 {
		return errNonPositiveRPS
	}

	if cfg.Translation.BatchBudget <= 0 {
		return errNonPositiveBudget
	}

	if _, err := language.Parse(cfg.Translation.TargetLang); err != nil {
		return fmt.Errorf("%w: %s", errInvalidTargetLanguage, cfg.Translation.TargetLang)
	}

	if cfg.Cache.Capacity <= 0 {
		return errNonPositiveCapacity
	}

	// Skip validating the limiter configuration if it's not enabled
	if !cfg.Limiter.Enabled {
		return nil
	}

	if cfg.Limiter.RPS <= 0 {
		return errInvalidLimiterRPS
	}

	if cfg.Limiter.Burst < 1 {
		return errInvalidLimiterBurst
	}

	return nil
}
