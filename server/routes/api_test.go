// Copyright 2024 - 2026, the LinguaFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/linguafe/linguafe/config"
	"codeberg.org/linguafe/linguafe/core/dispatch"
)

type chatPayload struct {
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func userContent(t *testing.T, r *http.Request) string {
	t.Helper()

	var payload chatPayload
	require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
	require.NotEmpty(t, payload.Messages)

	return payload.Messages[len(payload.Messages)-1].Content
}

func respond(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()

	body, err := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	require.NoError(t, err)

	_, _ = w.Write(body)
}

// translateSegments prefixes every delimited segment, standing in for the
// remote model.
func translateSegments(text string) string {
	segments := strings.Split(text, dispatch.DefaultDelimiter)
	for i, segment := range segments {
		segments[i] = "TR " + segment
	}

	return strings.Join(segments, dispatch.DefaultDelimiter)
}

func newTestService(t *testing.T, handler http.HandlerFunc) *TranslationService {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	var cfg config.ServerConfig
	cfg.SetDefaults()
	cfg.Provider.Endpoint = server.URL
	cfg.Translation.TargetLang = "de"
	cfg.Translation.RPS = 1000

	service, err := NewTranslationService(&cfg)
	require.NoError(t, err)

	return service
}

func postJSON(t *testing.T, body string) *http.Request {
	t.Helper()

	req := httptest.NewRequest("POST", "/api/translate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	return req
}

func TestTranslate_Success(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64

	service := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		respond(t, w, translateSegments(userContent(t, r)))
	})

	req := postJSON(t, `{
		"fragments": [
			{"id": "a", "markup": "<p>Hello <strong>world</strong>!</p>"},
			{"id": "b", "markup": "<p>Goodbye.</p>"}
		]
	}`)
	rr := httptest.NewRecorder()

	require.NoError(t, service.Translate(rr, req))

	var resp translateResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Len(t, resp.Results, 2)

	assert.Equal(t, "a", resp.Results[0].ID)
	assert.Equal(t, "translated", resp.Results[0].Status)
	assert.Equal(t, "TR <p>Hello <strong>world</strong>!</p>", resp.Results[0].Markup)
	assert.Equal(t, "TR <p>Goodbye.</p>", resp.Results[1].Markup)

	assert.Equal(t, int64(1), calls.Load(), "both fragments should share one batch")
}

func TestTranslate_SecondCallServedFromCache(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64

	service := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		respond(t, w, translateSegments(userContent(t, r)))
	})

	body := `{"fragments": [{"id": "a", "markup": "<p>Hello.</p>"}]}`

	rr := httptest.NewRecorder()
	require.NoError(t, service.Translate(rr, postJSON(t, body)))

	rr = httptest.NewRecorder()
	require.NoError(t, service.Translate(rr, postJSON(t, body)))

	var resp translateResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Len(t, resp.Results, 1)

	assert.Equal(t, "cached", resp.Results[0].Status)
	assert.Equal(t, "TR <p>Hello.</p>", resp.Results[0].Markup)
	assert.Equal(t, int64(1), calls.Load())
}

func TestTranslate_RejectsEmptyPayload(t *testing.T) {
	t.Parallel()

	service := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no provider call expected")
	})

	var statusErr *StatusError

	err := service.Translate(httptest.NewRecorder(), postJSON(t, `{"fragments": []}`))
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.Code)

	err = service.Translate(httptest.NewRecorder(), postJSON(t, `not json`))
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.Code)
}

func TestTranslate_ReportsProviderFailure(t *testing.T) {
	t.Parallel()

	service := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "model overloaded"}}`, http.StatusBadGateway)
	})

	rr := httptest.NewRecorder()
	require.NoError(t, service.Translate(rr, postJSON(t, `{"fragments": [{"id": "a", "markup": "<p>Hi.</p>"}]}`)))

	var resp translateResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Len(t, resp.Results, 1)

	assert.Equal(t, "failed", resp.Results[0].Status)
	assert.NotEmpty(t, resp.Results[0].Error)
	// The original markup is preserved for failed fragments.
	assert.Equal(t, "<p>Hi.</p>", resp.Results[0].Markup)
}

func TestTranslatePage(t *testing.T) {
	t.Parallel()

	service := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		respond(t, w, translateSegments(userContent(t, r)))
	})

	payload, err := json.Marshal(map[string]string{
		"html": `<html><head><title>Doc</title></head><body><p>Hello.</p><p>Goodbye.</p></body></html>`,
	})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	require.NoError(t, service.TranslatePage(rr, postJSON(t, string(payload))))

	var resp translatePageResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))

	assert.Equal(t, 2, resp.Translated)
	assert.Equal(t, 0, resp.Failed)
	assert.Contains(t, resp.HTML, "TR Hello.")
	assert.Contains(t, resp.HTML, "TR Goodbye.")
	assert.Contains(t, resp.HTML, "<title>Doc</title>")
}

func TestTranslatePage_RequiresHTML(t *testing.T) {
	t.Parallel()

	service := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no provider call expected")
	})

	var statusErr *StatusError

	err := service.TranslatePage(httptest.NewRecorder(), postJSON(t, `{"html": "  "}`))
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.Code)
}

func TestConfigureRate(t *testing.T) {
	t.Parallel()

	service := newTestService(t, func(w http.ResponseWriter, r *http.Request) {})

	rr := httptest.NewRecorder()
	require.NoError(t, service.ConfigureRate(rr, postJSON(t, `{"rps": 2.5}`)))
	assert.Contains(t, rr.Body.String(), "2.5")

	var statusErr *StatusError

	err := service.ConfigureRate(httptest.NewRecorder(), postJSON(t, `{"rps": 0}`))
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.Code)
}

func TestClearCache(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64

	service := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		respond(t, w, translateSegments(userContent(t, r)))
	})

	body := `{"fragments": [{"id": "a", "markup": "<p>Hello.</p>"}]}`

	require.NoError(t, service.Translate(httptest.NewRecorder(), postJSON(t, body)))

	rr := httptest.NewRecorder()
	require.NoError(t, service.ClearCache(rr, postJSON(t, `{}`)))
	assert.Contains(t, rr.Body.String(), "true")

	// With the cache gone the same fragment goes back to the provider.
	require.NoError(t, service.Translate(httptest.NewRecorder(), postJSON(t, body)))
	assert.Equal(t, int64(2), calls.Load())
}

// Not parallel: mutates the global instance metadata.
func TestHealth(t *testing.T) {
	config.Global.Instance.StartingTime = "2026-08-29 12:00"

	service := newTestService(t, func(w http.ResponseWriter, r *http.Request) {})

	rr := httptest.NewRecorder()
	require.NoError(t, service.Health(rr, httptest.NewRequest("GET", "/health", nil)))

	assert.Contains(t, rr.Body.String(), `"ok"`)
	assert.Contains(t, rr.Body.String(), config.BuildVersion)
	assert.Contains(t, rr.Body.String(), "2026-08-29 12:00")
}
