// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Error variables for common Messages API failures.
var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("ANTHROPIC_API_KEY environment variable not set")

	// ErrAuthFailed indicates an invalid, revoked or unauthorized API key.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates the account hit a rate limit.
	ErrRateLimited = errors.New("rate limited")

	// ErrModelNotFound indicates the requested model does not exist.
	ErrModelNotFound = errors.New("model not found")

	// ErrOverloaded indicates the API is temporarily overloaded (HTTP 529).
	ErrOverloaded = errors.New("API overloaded")

	// ErrInvalidRequest indicates a malformed request.
	ErrInvalidRequest = errors.New("invalid request")
)

// StatusOverloaded is the non-standard status the API uses when overloaded.
const StatusOverloaded = 529

// APIError is a decoded Messages API error.
type APIError struct {
	StatusCode int           // HTTP status, 0 for errors delivered inside a stream
	Type       string        // e.g. "invalid_request_error", "overloaded_error"
	Message    string        // Human-readable message from the API
	RetryAfter time.Duration // Parsed retry-after header, if any

	err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString("anthropic API error")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	if e.Type != "" {
		b.WriteString(" " + e.Type)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	return b.String()
}

// Unwrap returns the sentinel error matching the status, if any.
func (e *APIError) Unwrap() error {
	return e.err
}

// apiErrorResponse is the error body shape:
// {"type":"error","error":{"type":"...","message":"..."}}
type apiErrorResponse struct {
	Type  string         `json:"type"`
	Error apiErrorDetail `json:"error"`
}

type apiErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// newAPIError builds an APIError and attaches the sentinel for status or type.
func newAPIError(status int, detail apiErrorDetail) *APIError {
	return &APIError{
		StatusCode: status,
		Type:       detail.Type,
		Message:    detail.Message,
		err:        sentinelFor(status, detail.Type),
	}
}

// sentinelFor maps an HTTP status (or, failing that, an error type) to a sentinel.
func sentinelFor(status int, errType string) error {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return ErrInvalidRequest
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuthFailed
	case http.StatusNotFound:
		return ErrModelNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case StatusOverloaded:
		return ErrOverloaded
	}

	switch errType {
	case "invalid_request_error", "request_too_large":
		return ErrInvalidRequest
	case "authentication_error", "permission_error":
		return ErrAuthFailed
	case "not_found_error":
		return ErrModelNotFound
	case "rate_limit_error":
		return ErrRateLimited
	case "overloaded_error":
		return ErrOverloaded
	}
	return nil
}

// handleErrorResponse converts a non-200 response into an error.
func handleErrorResponse(resp *http.Response, body []byte) error {
	var parsed apiErrorResponse
	detail := apiErrorDetail{Message: strings.TrimSpace(string(body))}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		detail = parsed.Error
	}
	if detail.Message == "" {
		detail.Message = http.StatusText(resp.StatusCode)
	}

	apiErr := newAPIError(resp.StatusCode, detail)
	if secs, err := strconv.Atoi(resp.Header.Get("retry-after")); err == nil && secs > 0 {
		apiErr.RetryAfter = time.Duration(secs) * time.Second
	}
	return apiErr
}

// isRetryable reports whether err is worth another attempt.
func isRetryable(err error) bool {
	// Never retry cancellation
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrOverloaded) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 && apiErr.StatusCode < 600
	}
	return false
}

// retryAfter extracts the server-requested delay from err, or 0.
func retryAfter(err error) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}
