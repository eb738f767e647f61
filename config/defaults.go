// Copyright 2024 - 2026, the LinguaFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"codeberg.org/linguafe/linguafe/core/batch"
	"codeberg.org/linguafe/linguafe/core/completion"
	"codeberg.org/linguafe/linguafe/core/dispatch"
	"codeberg.org/linguafe/linguafe/core/ratequeue"
	"codeberg.org/linguafe/linguafe/core/transcache"
)

const (
	// Default inbound limiter allowance per client.
	defaultLimiterRPS   = 5.0
	defaultLimiterBurst = 10
)

// SetDefaults populates the configuration with default values.
func (cfg *ServerConfig) SetDefaults() {
	cfg.Basic.Host = "localhost"
	cfg.Basic.Port = "8484"

	cfg.Provider.Endpoint = "https://api.openai.com/v1/chat/completions"
	cfg.Provider.Model = "gpt-4o-mini"
	cfg.Provider.Profiles = completion.DefaultProfiles()

	cfg.Translation.TargetLang = "en"
	cfg.Translation.RPS = ratequeue.DefaultRPS
	cfg.Translation.BatchBudget = batch.DefaultBudget
	cfg.Translation.Delimiter = dispatch.DefaultDelimiter
	cfg.Translation.SystemPrompt = dispatch.DefaultSystemPrompt
	cfg.Translation.BatchPrompt = dispatch.DefaultBatchPrompt

	cfg.Cache.Capacity = transcache.DefaultCapacity
	cfg.Cache.Compress = false

	cfg.Limiter.Enabled = false
	cfg.Limiter.RPS = defaultLimiterRPS
	cfg.Limiter.Burst = defaultLimiterBurst

	cfg.Development.SaveResponses = false
	cfg.Development.ResponseSaveLocation = "/tmp/linguafe/responses"

	cfg.Log.Level = "info"
	cfg.Log.Outputs = []string{"/dev/stderr"}
	cfg.Log.Format = "console"
}
