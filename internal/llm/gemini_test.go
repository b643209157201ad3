package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/soyeahso/funnelbot/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

func geminiServer(t *testing.T, status int, body string, inspect func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inspect != nil {
			inspect(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestGemini(srv *httptest.Server) *GeminiClient {
	return NewGeminiClient(GeminiConfig{
		APIKey:   "k&ey",
		Model:    "gemini-2.5-flash",
		Endpoint: srv.URL + "/v1beta/",
	}, silentLog())
}

func TestGemini_Success(t *testing.T) {
	var (
		gotPath, gotKey, gotUA string
		gotBody            map[string]any
	)
	srv := geminiServer(t, http.StatusOK,
		`{"candidates":[{"content":{"parts":[{"text":"hola!"},{"text":"ignored"}]},"finishReason":"STOP"}],
		  "usageMetadata":{"promptTokenCount":7,"candidatesTokenCount":2}}`,
		func(r *http.Request) {
			gotPath = r.URL.Path
			gotKey = r.URL.Query().Get("key")
			gotUA = r.Header.Get("User-Agent")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		})

	resp, err := newTestGemini(srv).Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hola!", resp.Content)
	assert.Equal(t, "STOP", resp.FinishReason)
	assert.Equal(t, 7, resp.Usage.InputTokens)
	assert.Equal(t, 2, resp.Usage.OutputTokens)

	assert.Equal(t, "/v1beta/models/gemini-2.5-flash:generateContent", gotPath)
	assert.Equal(t, "k&ey", gotKey)
	assert.Contains(t, gotUA, "funnelbot/")

	want := map[string]any{
		"contents": []any{map[string]any{"parts": []any{map[string]any{"text": "hi"}}}},
	}
	assert.Equal(t, want, gotBody)
}

func TestGemini_ModelOverride(t *testing.T) {
	var gotPath string
	srv := geminiServer(t, http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"x"}]}}]}`,
		func(r *http.Request) { gotPath = r.URL.Path })

	resp, err := newTestGemini(srv).Complete(context.Background(), CompletionRequest{Model: "gemini-pro", Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "gemini-pro", resp.Model)
	assert.Equal(t, "/v1beta/models/gemini-pro:generateContent", gotPath)
}

func TestGemini_APIError(t *testing.T) {
	srv := geminiServer(t, http.StatusBadRequest,
		`{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`, nil)

	_, err := newTestGemini(srv).Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "API key not valid", apiErr.Message)
}

func TestGemini_APIErrorWithoutMessage(t *testing.T) {
	srv := geminiServer(t, http.StatusInternalServerError, `{}`, nil)

	_, err := newTestGemini(srv).Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Empty(t, apiErr.Message)
}

func TestGemini_NoCandidates(t *testing.T) {
	srv := geminiServer(t, http.StatusOK, `{"promptFeedback":{"blockReason":"SAFETY"}}`, nil)

	_, err := newTestGemini(srv).Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestGemini_MalformedBody(t *testing.T) {
	srv := geminiServer(t, http.StatusBadGateway, `<html>bad gateway</html>`, nil)

	_, err := newTestGemini(srv).Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
	assert.NotErrorIs(t, err, ErrNoCandidates)
}

func TestGemini_RateLimitWaitsForContext(t *testing.T) {
	srv := geminiServer(t, http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"x"}]}}]}`, nil)
	g := NewGeminiClient(GeminiConfig{APIKey: "k", Model: "m", Endpoint: srv.URL, RequestsPerMinute: 1}, silentLog())

	_, err := g.Complete(context.Background(), CompletionRequest{Prompt: "first"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = g.Complete(ctx, CompletionRequest{Prompt: "second"})
	assert.Error(t, err)
}

func TestGemini_Name(t *testing.T) {
	assert.Equal(t, "gemini", NewGeminiClient(GeminiConfig{}, silentLog()).Name())
}
