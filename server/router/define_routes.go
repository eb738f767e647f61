// Copyright 2024 - 2026, the LinguaFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package router

import (
	"codeberg.org/linguafe/linguafe/server/middleware"
	"codeberg.org/linguafe/linguafe/server/routes"
)

func (router *Router) DefineRoutes(service *routes.TranslationService) {
	router.HandleFunc("POST /api/translate", middleware.CatchError(service.Translate))
	router.HandleFunc("POST /api/translate/page", middleware.CatchError(service.TranslatePage))

	router.HandleFunc("POST /api/settings/rate", middleware.CatchError(service.ConfigureRate))
	router.HandleFunc("POST /api/cache/clear", middleware.CatchError(service.ClearCache))

	router.HandleFunc("GET /health", middleware.CatchError(service.Health))
}
