// Copyright 2024 - 2026, the LinguaFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package completion implements the client for the remote chat-completion
endpoint used to translate placeholder-encoded text.

The endpoint speaks the common chat-completions protocol: a JSON body with a
model identifier and a system/user message pair, answered by a choices array.
Which sampling knobs a given model accepts varies by model family; the
mapping is carried as data in [ParamProfile] values so deployments can adjust
it without code changes.
*/
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"codeberg.org/linguafe/linguafe/core/audit"
	"codeberg.org/linguafe/linguafe/core/idgen"
	"codeberg.org/linguafe/linguafe/server/request_context"
	"codeberg.org/linguafe/linguafe/server/utils"
)

var (
	errCompletionFailed  = errors.New("completion request failed")
	errMalformedResponse = errors.New("completion response missing message content")
)

// APIError represents an error returned from the completion endpoint or
// internal request handling.
type APIError struct {
	// StatusCode is the HTTP status code from the response.
	// Always >= 400 for endpoint errors.
	StatusCode int

	// Message contains the error message from the endpoint response.
	Message string

	// Err is the underlying error cause.
	Err error
}

// Error returns a formatted error message including the status code and
// endpoint message if available.
func (e *APIError) Error() string {
	var b strings.Builder

	b.WriteString(e.Err.Error())

	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}

	b.WriteString(fmt.Sprintf(" (status code: %d)", e.StatusCode))

	return b.String()
}

// Unwrap returns the underlying error for use with errors.Is and errors.As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// ParamProfile describes which sampling parameters one model family accepts.
//
// A profile applies to a model when any Match entry is a case-insensitive
// substring of the model identifier. Profiles are checked in order; a profile
// with no Match entries is the fallback.
type ParamProfile struct {
	Name            string   `yaml:"name"`
	Match           []string `yaml:"match"`
	Temperature     *float64 `yaml:"temperature"`
	MaxTokens       *int     `yaml:"max_tokens"`
	ReasoningEffort string   `yaml:"reasoning_effort"`
	Verbosity       string   `yaml:"verbosity"`
}

// DefaultProfiles returns the built-in model parameter profiles:
// reasoning-family models get effort and verbosity knobs on top of the
// legacy sampling ones.
func DefaultProfiles() []ParamProfile {
	return []ParamProfile{
		{
			Name:            "reasoning",
			Match:           []string{"gpt-5", "o1", "o3", "o4"},
			Temperature:     ptr(1.0),
			MaxTokens:       ptr(4096),
			ReasoningEffort: "low",
			Verbosity:       "low",
		},
		{
			Name:        "legacy",
			Temperature: ptr(0.3),
			MaxTokens:   ptr(4096),
		},
	}
}

func ptr[T any](v T) *T {
	return &v
}

// Client calls one chat-completion endpoint. Construct one per translation
// session and share it; all methods are safe for concurrent use.
type Client struct {
	// Endpoint is the full URL of the chat-completions resource.
	Endpoint string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// Model is the default model identifier, used when a request does not
	// carry its own.
	Model string

	// Profiles maps model families to the parameters they accept.
	// Nil falls back to [DefaultProfiles].
	Profiles []ParamProfile

	// HTTPClient overrides the shared transport, mainly for tests.
	HTTPClient *http.Client
}

// Request is one translation exchange: a system prompt describing the task
// and a user message carrying the encoded text or batch.
type Request struct {
	Model  string
	System string
	User   string

	// Optional overrides applied on top of the matched profile.
	Temperature *float64
	MaxTokens   *int
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model           string        `json:"model"`
	Messages        []chatMessage `json:"messages"`
	Temperature     *float64      `json:"temperature,omitempty"`
	MaxTokens       *int          `json:"max_tokens,omitempty"`
	ReasoningEffort string        `json:"reasoning_effort,omitempty"`
	Verbosity       string        `json:"verbosity,omitempty"`
}

// Complete sends one chat-completion request and returns the message content
// of the first choice.
//
// Non-success responses are surfaced as *APIError carrying the endpoint's own
// error message where one is present in the body.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.Model
	}

	body, err := json.Marshal(c.buildBody(model, req))
	if err != nil {
		return "", fmt.Errorf("failed to encode completion request: %w", err)
	}

	respBody, err := c.send(ctx, body)
	if err != nil {
		return "", err
	}

	content := gjson.GetBytes(respBody, "choices.0.message.content")
	if !content.Exists() {
		return "", fmt.Errorf("%w: %s", errMalformedResponse, respBody)
	}

	return content.String(), nil
}

// buildBody merges the matched parameter profile with per-request overrides.
func (c *Client) buildBody(model string, req Request) chatRequest {
	profile := c.profileFor(model)

	body := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature:     profile.Temperature,
		MaxTokens:       profile.MaxTokens,
		ReasoningEffort: profile.ReasoningEffort,
		Verbosity:       profile.Verbosity,
	}

	if req.Temperature != nil {
		body.Temperature = req.Temperature
	}

	if req.MaxTokens != nil {
		body.MaxTokens = req.MaxTokens
	}

	return body
}

// profileFor returns the first profile matching the model identifier, or the
// first profile without match entries as the fallback.
func (c *Client) profileFor(model string) ParamProfile {
	profiles := c.Profiles
	if profiles == nil {
		profiles = DefaultProfiles()
	}

	lowered := strings.ToLower(model)

	var fallback ParamProfile

	for _, profile := range profiles {
		if len(profile.Match) == 0 {
			if fallback.Name == "" {
				fallback = profile
			}

			continue
		}

		for _, needle := range profile.Match {
			if strings.Contains(lowered, strings.ToLower(needle)) {
				return profile
			}
		}
	}

	return fallback
}

// send executes the HTTP exchange, reads the body for auditing, and handles
// non-success statuses.
func (c *Client) send(ctx context.Context, payload []byte) (_ []byte, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create completion request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	span := audit.Span{
		Destination: audit.ToProvider,
		RequestID:   request_context.FromContext(ctx).RequestID + "-" + idgen.Make(),
		Method:      req.Method,
		URL:         c.Endpoint,
	}

	defer func() { span.Error = err }()

	_ = span.Begin(ctx)
	defer span.End() // in case of error

	client := c.HTTPClient
	if client == nil {
		client = utils.HTTPClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make HTTP request: %w", err)
	}
	defer resp.Body.Close()

	span.StatusCode = resp.StatusCode

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	span.Body = body

	span.End()
	span.Log()

	if resp.StatusCode >= http.StatusBadRequest {
		// Attempt to extract an error message from the JSON body.
		message := gjson.GetBytes(body, "error.message").String()

		if message == "" {
			message = gjson.GetBytes(body, "message").String()
		}

		// Fall back to the HTTP status text if no JSON message is found.
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}

		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    message,
			Err:        errCompletionFailed,
		}
	}

	return body, nil
}
