// Copyright 2024 - 2026, the LinguaFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package middleware provides HTTP request handling functionality for LinguaFE.

Route definitions are centralized in the router package; the middlewares here
wrap the whole mux via the Router's chain.
*/
package middleware
