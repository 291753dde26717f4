// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "sk-ant-REDACTED"

func testRequest() MessageRequest {
	return MessageRequest{
		Model:     "claude-3-haiku-20240307",
		MaxTokens: 1000,
		Messages:  []Message{NewUserMessage("Hello")},
	}
}

func newTestClient(url string) *Client {
	c := NewClient(testKey).WithBaseURL(url)
	c.retryBase = time.Millisecond
	return c
}

func writeMessage(w http.ResponseWriter, text string) {
	w.Header().Set("content-type", "application/json")
	fmt.Fprintf(w, `{"id":"msg_01","type":"message","role":"assistant","model":"claude-3-haiku-20240307",`+
		`"content":[{"type":"text","text":%q}],"stop_reason":"end_turn",`+
		`"usage":{"input_tokens":12,"output_tokens":34}}`, text)
}

// =============================================================================
// CLIENT SETUP TESTS
// =============================================================================

func TestNewClient(t *testing.T) {
	c := NewClient("  " + testKey + "\n")

	assert.True(t, c.IsConfigured())
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, DefaultVersion, c.version)
	assert.Equal(t, DefaultMaxRetries, c.maxRetries)
	assert.Nil(t, c.limiter)

	assert.False(t, NewClient("").IsConfigured())
}

func TestAPIKeyMasked(t *testing.T) {
	c := NewClient(testKey)

	masked := c.APIKeyMasked()
	assert.NotContains(t, masked, "sk-ant")
	assert.Contains(t, masked, c.KeyFingerprint())
	assert.Len(t, c.KeyFingerprint(), 8)

	assert.Equal(t, "[not set]", NewClient("").APIKeyMasked())
	assert.Equal(t, "none", NewClient("").KeyFingerprint())
}

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{testKey, true},
		{"sk-ant-short", false},
		{"sk-or-v1-abcdefghijklmnopqrstuvwxyz", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidateAPIKey(tt.key); got != tt.want {
			t.Errorf("ValidateAPIKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestClientMethodChaining(t *testing.T) {
	c := NewClient(testKey).
		WithBaseURL("https://example.com/").
		WithVersion("2024-01-01").
		WithTimeout(5 * time.Second).
		WithMaxRetries(-1).
		WithRateLimit(60)

	assert.Equal(t, "https://example.com", c.baseURL)
	assert.Equal(t, "2024-01-01", c.version)
	assert.Equal(t, 5*time.Second, c.httpClient.Timeout)
	assert.Equal(t, 0, c.maxRetries)
	require.NotNil(t, c.limiter)
	assert.Nil(t, c.WithRateLimit(0).limiter)
}

func TestMessageResponseText(t *testing.T) {
	resp := &MessageResponse{Content: []ContentBlock{
		{Type: "text", Text: "Hello, "},
		{Type: "tool_use"},
		{Type: "text", Text: "world"},
	}}
	assert.Equal(t, "Hello, world", resp.Text())

	var nilResp *MessageResponse
	assert.Equal(t, "", nilResp.Text())
}

// =============================================================================
// COMPLETE TESTS
// =============================================================================

func TestComplete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, testKey, r.Header.Get("x-api-key"))
		assert.Equal(t, DefaultVersion, r.Header.Get("anthropic-version"))
		assert.Equal(t, "application/json", r.Header.Get("content-type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-3-haiku-20240307", body["model"])
		assert.EqualValues(t, 1000, body["max_tokens"])
		assert.NotContains(t, body, "stream", "stream is omitted for blocking calls")

		msgs := body["messages"].([]any)
		require.Len(t, msgs, 1)
		assert.Equal(t, map[string]any{"role": "user", "content": "Hello"}, msgs[0])

		writeMessage(w, "Hi there")
	}))
	defer server.Close()

	resp, err := newTestClient(server.URL).Complete(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, "Hi there", resp.Text())
	assert.Equal(t, "msg_01", resp.ID)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, Usage{InputTokens: 12, OutputTokens: 34}, resp.Usage)
}

func TestComplete_NotConfigured(t *testing.T) {
	_, err := NewClient("").Complete(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestComplete_InvalidRequest(t *testing.T) {
	c := NewClient(testKey)

	tests := []struct {
		name   string
		mutate func(*MessageRequest)
	}{
		{"no model", func(r *MessageRequest) { r.Model = "" }},
		{"zero max tokens", func(r *MessageRequest) { r.MaxTokens = 0 }},
		{"no messages", func(r *MessageRequest) { r.Messages = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest()
			tt.mutate(&req)
			_, err := c.Complete(context.Background(), req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestComplete_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
		errType  string
	}{
		{"bad request", 400, `{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens: too large"}}`, ErrInvalidRequest, "invalid_request_error"},
		{"unauthorized", 401, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`, ErrAuthFailed, "authentication_error"},
		{"forbidden", 403, `{"type":"error","error":{"type":"permission_error","message":"no access"}}`, ErrAuthFailed, "permission_error"},
		{"not found", 404, `{"type":"error","error":{"type":"not_found_error","message":"model: claude-9"}}`, ErrModelNotFound, "not_found_error"},
		{"unparseable body", 401, `<html>denied</html>`, ErrAuthFailed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).Complete(context.Background(), testRequest())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.errType, apiErr.Type)
			assert.NotEmpty(t, apiErr.Message)
		})
	}
}

func TestComplete_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(StatusOverloaded)
			fmt.Fprint(w, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`)
		default:
			writeMessage(w, "finally")
		}
	}))
	defer server.Close()

	resp, err := newTestClient(server.URL).Complete(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "finally", resp.Text())
	assert.EqualValues(t, 3, calls.Load())
}

func TestComplete_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Complete(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.EqualValues(t, 1, calls.Load())
}

func TestComplete_MaxRetriesExceeded(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"type":"error","error":{"type":"api_error","message":"boom"}}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).WithMaxRetries(2).Complete(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 500, apiErr.StatusCode)
	assert.EqualValues(t, 3, calls.Load(), "first attempt plus two retries")
}

func TestComplete_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Consume the body so the server notices the client disconnect.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newTestClient(server.URL).Complete(ctx, testRequest())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestComplete_RateLimitPacesRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, "ok")
	}))
	defer server.Close()

	// 1200 per minute is one request every 50ms.
	c := newTestClient(server.URL).WithRateLimit(1200)

	start := time.Now()
	for i := 0; i < 2; i++ {
		_, err := c.Complete(context.Background(), testRequest())
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

// =============================================================================
// RETRY LOGIC TESTS
// =============================================================================

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"rate limited", ErrRateLimited, true},
		{"overloaded", newAPIError(StatusOverloaded, apiErrorDetail{Type: "overloaded_error"}), true},
		{"server error 500", &APIError{StatusCode: 500}, true},
		{"server error 503", &APIError{StatusCode: 503}, true},
		{"client error 400", newAPIError(400, apiErrorDetail{}), false},
		{"auth failed", ErrAuthFailed, false},
		{"context canceled", context.Canceled, false},
		{"wrapped deadline", fmt.Errorf("request failed: %w", context.DeadlineExceeded), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := isRetryable(tc.err); got != tc.retryable {
				t.Errorf("isRetryable(%v) = %v, expected %v", tc.err, got, tc.retryable)
			}
		})
	}
}

func TestCalculateBackoff(t *testing.T) {
	c := NewClient(testKey)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 500 * time.Millisecond},
		{1, time.Second},
		{2, 2 * time.Second},
		{10, 10 * time.Second},
		{70, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := c.calculateBackoff(tt.attempt); got != tt.want {
			t.Errorf("calculateBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryAfterHeader(t *testing.T) {
	resp := &http.Response{StatusCode: 429, Header: http.Header{}}
	resp.Header.Set("retry-after", "7")

	err := handleErrorResponse(resp, nil)
	assert.Equal(t, 7*time.Second, retryAfter(err))
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.True(t, strings.Contains(err.Error(), "HTTP 429"))
}
