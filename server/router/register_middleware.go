// Copyright 2024 - 2026, the LinguaFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package router

import (
	"codeberg.org/linguafe/linguafe/config"
	"codeberg.org/linguafe/linguafe/server/middleware"
	"codeberg.org/linguafe/linguafe/server/middleware/set_request_context"
)

func (router *Router) RegisterMiddleware() {
	// the first middleware is the most outer / first executed one
	router.Use(middleware.WithServerTiming)
	router.Use(set_request_context.WithRequestContext) // needed for everything else

	if config.Global.Limiter.Enabled {
		limiter := middleware.NewRateLimiter(config.Global.Limiter.RPS, config.Global.Limiter.Burst)

		router.Use(limiter.Middleware)
	}
}
