// Copyright 2024 - 2026, the LinguaFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package routes

import "net/http"

// StatusError is a handler error carrying the HTTP status code to respond
// with. Handlers return it instead of writing error bodies themselves; the
// error middleware renders the JSON payload.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return e.Message
}

// BadRequest builds a 400 StatusError.
func BadRequest(message string) *StatusError {
	return &StatusError{Code: http.StatusBadRequest, Message: message}
}
