// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package anthropic

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Configuration constants for the Messages API.
const (
	// DefaultBaseURL is the API host. The client appends /v1/messages.
	DefaultBaseURL = "https://api.anthropic.com"

	// DefaultVersion is sent as the anthropic-version header.
	DefaultVersion = "2023-06-01"

	// DefaultTimeout is the default timeout for non-streaming requests.
	DefaultTimeout = 120 * time.Second

	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 3

	// retryBaseDelay is the base delay for exponential backoff.
	retryBaseDelay = 500 * time.Millisecond

	// retryMaxDelay is the maximum delay for exponential backoff.
	retryMaxDelay = 10 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit

	messagesPath       = "/v1/messages"
	instrumentationLib = "github.com/jeranaias/claude-chat/internal/anthropic"
)

var (
	// sharedTransport pools connections for all clients.
	sharedTransport = &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	sharedHTTPClient = &http.Client{
		Transport: sharedTransport,
		Timeout:   DefaultTimeout,
	}

	// sharedStreamingClient has no timeout; streams are bounded by the context.
	sharedStreamingClient = &http.Client{
		Transport: sharedTransport,
	}
)

// =============================================================================
// WIRE TYPES
// =============================================================================

// Role constants for Messages API turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversational turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewUserMessage creates a user turn.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant turn.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// MessageRequest is the body of POST /v1/messages.
type MessageRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []Message `json:"messages"`
	System    string    `json:"system,omitempty"`
	Stream    bool      `json:"stream,omitempty"`
}

// ContentBlock is one block of a response. Only "text" blocks are used.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Usage reports billed tokens for one call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// MessageResponse is a completed message.
type MessageResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Model      string         `json:"model"`
	Content    []ContentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      Usage          `json:"usage"`
}

// Text concatenates the text blocks of the response.
func (r *MessageResponse) Text() string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	for _, block := range r.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the Messages API. It is safe for concurrent use once built.
type Client struct {
	apiKey       string
	baseURL      string
	version      string
	maxRetries   int
	retryBase    time.Duration
	httpClient   *http.Client
	streamClient *http.Client
	limiter      *rate.Limiter
	logger       *slog.Logger

	tracer   trace.Tracer
	duration metric.Float64Histogram
	tokens   metric.Int64Counter
}

// NewClient creates a client using the global OpenTelemetry providers.
func NewClient(apiKey string) *Client {
	c := &Client{
		apiKey:       strings.TrimSpace(apiKey),
		baseURL:      DefaultBaseURL,
		version:      DefaultVersion,
		maxRetries:   DefaultMaxRetries,
		retryBase:    retryBaseDelay,
		httpClient:   sharedHTTPClient,
		streamClient: sharedStreamingClient,
		logger:       slog.Default(),
		tracer:       otel.Tracer(instrumentationLib),
	}

	meter := otel.Meter(instrumentationLib)
	var err error
	c.duration, err = meter.Float64Histogram("claude_chat.request.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Latency of Messages API calls"))
	if err != nil {
		otel.Handle(err)
	}
	c.tokens, err = meter.Int64Counter("claude_chat.tokens",
		metric.WithUnit("{token}"),
		metric.WithDescription("Tokens billed by the Messages API"))
	if err != nil {
		otel.Handle(err)
	}
	return c
}

// WithBaseURL sets a custom API host (no trailing /v1).
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = strings.TrimRight(url, "/")
	return c
}

// WithVersion sets the anthropic-version header.
func (c *Client) WithVersion(version string) *Client {
	c.version = version
	return c
}

// WithTimeout sets the timeout for non-streaming requests.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient = &http.Client{
		Transport: c.httpClient.Transport,
		Timeout:   timeout,
	}
	return c
}

// WithMaxRetries sets the number of retries after the first attempt.
func (c *Client) WithMaxRetries(maxRetries int) *Client {
	if maxRetries < 0 {
		maxRetries = 0
	}
	c.maxRetries = maxRetries
	return c
}

// WithRateLimit paces requests to at most rpm per minute. Zero disables pacing.
func (c *Client) WithRateLimit(rpm int) *Client {
	if rpm <= 0 {
		c.limiter = nil
		return c
	}
	c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
	return c
}

// WithLogger sets the structured logger.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// WithHTTPClient replaces both underlying HTTP clients.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	c.streamClient = hc
	return c
}

// IsConfigured returns true if an API key is set.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// APIKeyMasked returns a printable description of the key.
func (c *Client) APIKeyMasked() string {
	if c.apiKey == "" {
		return "[not set]"
	}
	return fmt.Sprintf("[REDACTED, length=%d, fingerprint=%s]", len(c.apiKey), c.KeyFingerprint())
}

// KeyFingerprint returns the first 8 hex chars of the key's SHA-256.
func (c *Client) KeyFingerprint() string {
	if c.apiKey == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(c.apiKey))
	return hex.EncodeToString(h[:4])
}

// ValidateAPIKey does a cheap shape check on an Anthropic key.
func ValidateAPIKey(apiKey string) bool {
	apiKey = strings.TrimSpace(apiKey)
	return strings.HasPrefix(apiKey, "sk-ant-") && len(apiKey) >= 20
}

// =============================================================================
// MESSAGES
// =============================================================================

// Complete sends a non-streaming request and returns the full message.
func (c *Client) Complete(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	req.Stream = false

	ctx, span := c.startSpan(ctx, "anthropic.messages", req)
	defer span.End()
	start := time.Now()

	resp, err := c.send(ctx, req)
	if err != nil {
		c.finish(ctx, span, req.Model, start, nil, err)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		c.finish(ctx, span, req.Model, start, nil, err)
		return nil, err
	}

	var out MessageResponse
	if err := json.Unmarshal(body, &out); err != nil {
		err = fmt.Errorf("failed to parse response: %w", err)
		c.finish(ctx, span, req.Model, start, nil, err)
		return nil, err
	}

	c.finish(ctx, span, req.Model, start, &out, nil)
	return &out, nil
}

// validateRequest rejects requests the API would refuse anyway.
func validateRequest(req MessageRequest) error {
	switch {
	case strings.TrimSpace(req.Model) == "":
		return fmt.Errorf("%w: model is required", ErrInvalidRequest)
	case req.MaxTokens <= 0:
		return fmt.Errorf("%w: max_tokens must be positive", ErrInvalidRequest)
	case len(req.Messages) == 0:
		return fmt.Errorf("%w: at least one message is required", ErrInvalidRequest)
	}
	return nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

// send posts req, retrying transient failures. The caller owns the body of
// the returned 200 response. Retries never happen once a body is handed out.
func (c *Client) send(ctx context.Context, req MessageRequest) (*http.Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.calculateBackoff(attempt - 1)
			if ra := retryAfter(lastErr); ra > delay {
				delay = min(ra, retryMaxDelay)
			}
			c.logger.Warn("retrying api request",
				"attempt", attempt,
				"delay", delay,
				"error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := c.doRequest(ctx, payload, req.Stream)
		if err == nil {
			return resp, nil
		}
		if !isRetryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// doRequest performs one HTTP round trip. Non-200 responses become errors.
func (c *Client) doRequest(ctx context.Context, payload []byte, stream bool) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq, stream)

	hc := c.httpClient
	if stream {
		hc = c.streamClient
	}

	c.logRequest(httpReq)
	start := time.Now()
	resp, err := hc.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	c.logResponse(resp, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, readErr := readResponse(resp)
		if readErr != nil {
			body = nil
		}
		return nil, handleErrorResponse(resp, body)
	}
	return resp, nil
}

// setHeaders sets the required API headers.
func (c *Client) setHeaders(req *http.Request, stream bool) {
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", c.version)
	req.Header.Set("content-type", "application/json")
	if stream {
		req.Header.Set("accept", "text/event-stream")
	} else {
		req.Header.Set("accept", "application/json")
	}
}

// readResponse reads a size-limited body.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// calculateBackoff returns the delay before retry number attempt (0-based).
func (c *Client) calculateBackoff(attempt int) time.Duration {
	// Exponential backoff: 500ms, 1000ms, 2000ms, etc.
	delay := c.retryBase * time.Duration(1<<uint(attempt))
	if delay > retryMaxDelay || delay <= 0 {
		delay = retryMaxDelay
	}
	return delay
}

// =============================================================================
// LOGGING AND TELEMETRY
// =============================================================================

// logRequest never logs headers or bodies.
func (c *Client) logRequest(req *http.Request) {
	c.logger.Debug("api request",
		"method", req.Method,
		"path", req.URL.Path,
		"key", c.KeyFingerprint())
}

func (c *Client) logResponse(resp *http.Response, duration time.Duration) {
	c.logger.Debug("api response",
		"status", resp.StatusCode,
		"request_id", resp.Header.Get("request-id"),
		"duration", duration)
}

func (c *Client) startSpan(ctx context.Context, name string, req MessageRequest) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gen_ai.system", "anthropic"),
			attribute.String("gen_ai.request.model", req.Model),
			attribute.Int("gen_ai.request.max_tokens", req.MaxTokens),
			attribute.Int("claude_chat.messages", len(req.Messages)),
			attribute.Bool("claude_chat.stream", req.Stream),
		))
}

// finish records the outcome of one call on the span and the meters.
func (c *Client) finish(ctx context.Context, span trace.Span, model string, start time.Time, resp *MessageResponse, err error) {
	elapsed := time.Since(start)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if errors.Is(err, context.Canceled) {
			outcome = "canceled"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Error("api call failed", "model", model, "duration", elapsed, "error", err)
	}

	modelAttr := attribute.String("gen_ai.request.model", model)
	if c.duration != nil {
		c.duration.Record(ctx, elapsed.Seconds(),
			metric.WithAttributes(modelAttr, attribute.String("outcome", outcome)))
	}
	if resp == nil {
		return
	}

	span.SetAttributes(
		attribute.String("gen_ai.response.id", resp.ID),
		attribute.String("gen_ai.response.stop_reason", resp.StopReason),
		attribute.Int("gen_ai.usage.input_tokens", resp.Usage.InputTokens),
		attribute.Int("gen_ai.usage.output_tokens", resp.Usage.OutputTokens),
	)
	if c.tokens != nil {
		c.tokens.Add(ctx, int64(resp.Usage.InputTokens),
			metric.WithAttributes(modelAttr, attribute.String("direction", "input")))
		c.tokens.Add(ctx, int64(resp.Usage.OutputTokens),
			metric.WithAttributes(modelAttr, attribute.String("direction", "output")))
	}
	c.logger.Info("api call complete",
		"model", resp.Model,
		"id", resp.ID,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"duration", elapsed)
}
