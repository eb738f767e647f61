// Copyright 2024 - 2026, the LinguaFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// staleClientAge is how long an idle client's bucket is kept around.
const staleClientAge = 3 * time.Minute

// RateLimiter throttles inbound API clients with a per-client token bucket.
//
// This is independent of the outbound provider rate queue; it only protects
// the HTTP surface from a single client monopolizing the translation session.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	rps     rate.Limit
	burst   int
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter builds a limiter allowing rps requests per second with the
// given burst per client.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
}

// Middleware rejects requests exceeding the client's allowance with 429.
func (rl *RateLimiter) Middleware(w http.ResponseWriter, r *http.Request, next http.Handler) {
	if !rl.allow(clientKey(r)) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)

		_ = json.NewEncoder(w).Encode(map[string]string{"error": "too many requests"})

		return
	}

	next.ServeHTTP(w, r)
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	client, ok := rl.clients[key]
	if !ok {
		rl.pruneLocked()

		client = &clientLimiter{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.clients[key] = client
	}

	client.lastSeen = time.Now()

	return client.limiter.Allow()
}

// pruneLocked drops buckets of clients not seen recently. Called with the
// mutex held, only when a new client shows up.
func (rl *RateLimiter) pruneLocked() {
	cutoff := time.Now().Add(-staleClientAge)

	for key, client := range rl.clients {
		if client.lastSeen.Before(cutoff) {
			delete(rl.clients, key)
		}
	}
}

// clientKey identifies a client by IP, trusting X-Forwarded-For when present
// since deployments sit behind a reverse proxy.
func clientKey(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
