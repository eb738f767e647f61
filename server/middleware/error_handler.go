// Copyright 2024 - 2026, the LinguaFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package middleware

import (
	"encoding/json"
	"errors"
	"maps"
	"net/http"
	"net/http/httptest"

	"github.com/rs/zerolog/log"

	"codeberg.org/linguafe/linguafe/config"
	"codeberg.org/linguafe/linguafe/core/audit"
	"codeberg.org/linguafe/linguafe/core/completion"
	"codeberg.org/linguafe/linguafe/server/request_context"
	"codeberg.org/linguafe/linguafe/server/routes"
)

// CatchError wraps HTTP handlers that return an error, providing centralized
// error handling, response buffering, and request logging.
//
// It operates as follows:
//  1. It times the request for logging purposes.
//  2. It wraps the execution of the given handler, which has the signature
//     `func(w http.ResponseWriter, r *http.Request) error`. The handler's
//     output is buffered using an httptest.ResponseRecorder.
//  3. Any error returned by the handler is stored in the request context.
//
// After the handler runs, it decides on the final response:
//   - If the handler returned an error, the buffered response is discarded
//     and a JSON error payload is written instead. The status code comes from
//     a *routes.StatusError or *completion.APIError when the error carries
//     one, else 500.
//   - Otherwise the buffered response is written to the client as is.
//
// Finally, it logs the completed request details (status, duration, error,
// etc.) via the audit package.
func CatchError(handler func(w http.ResponseWriter, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := request_context.FromRequest(r)

		span := audit.Span{
			Destination: audit.ToUser,
			RequestID:   ctx.RequestID,
			Method:      r.Method,
			URL:         r.URL.String(),
		}

		_ = span.Begin(r.Context())
		defer span.End()

		recorder := httptest.NewRecorder()

		// Execute the handler, capturing its output and any returned error.
		err := handler(recorder, r)

		ctx.RequestError = err

		if err != nil {
			ctx.StatusCode = statusFromError(err)

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(ctx.StatusCode)

			if encodeErr := json.NewEncoder(w).Encode(map[string]string{"error": err.Error()}); encodeErr != nil {
				log.Err(encodeErr).Msg("Failed to write error response body")
			}
		} else {
			if recorder.Code == 0 {
				recorder.Code = http.StatusOK
			}

			ctx.StatusCode = recorder.Code // Ensure ctx.StatusCode reflects the actual code for logging.
			maps.Copy(w.Header(), recorder.Header())
			w.WriteHeader(recorder.Code)

			if _, err := recorder.Body.WriteTo(w); err != nil {
				log.Err(err).Msg("Failed to write response body")
			}
		}

		span.StatusCode = ctx.StatusCode
		span.Error = ctx.RequestError

		// Log the application response if not excluded.
		if !config.Global.ShouldSkipServerLogging(r.URL.Path) {
			span.Log()
		}
	}
}

// statusFromError maps a handler error to an HTTP status code.
func statusFromError(err error) int {
	var statusErr *routes.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code
	}

	// Provider errors keep their upstream status so callers can distinguish
	// rate limiting from hard failures.
	var apiErr *completion.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}

	return http.StatusInternalServerError
}
