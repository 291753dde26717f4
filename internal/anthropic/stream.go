// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// =============================================================================
// STREAMING TYPES
// =============================================================================

// Stream event types sent by the Messages API.
const (
	EventMessageStart      = "message_start"
	EventContentBlockStart = "content_block_start"
	EventContentBlockDelta = "content_block_delta"
	EventContentBlockStop  = "content_block_stop"
	EventMessageDelta      = "message_delta"
	EventMessageStop       = "message_stop"
	EventPing              = "ping"
	EventError             = "error"
)

// TextCallback receives each text delta as it arrives.
type TextCallback func(text string)

// streamEvent is the union of all event payloads this client reads.
type streamEvent struct {
	Type    string           `json:"type"`
	Message *MessageResponse `json:"message,omitempty"`
	Delta   *streamDelta     `json:"delta,omitempty"`
	Usage   *Usage           `json:"usage,omitempty"`
	Error   *apiErrorDetail  `json:"error,omitempty"`
}

type streamDelta struct {
	Type       string `json:"type"`
	Text       string `json:"text"`
	StopReason string `json:"stop_reason"`
}

// StreamError represents an error that occurred during streaming,
// preserving any partial content received before the error.
type StreamError struct {
	Partial string // Content received before error
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// =============================================================================
// SSE READER
// =============================================================================

// SSEReader parses Server-Sent Events from a stream.
type SSEReader struct {
	reader *bufio.Reader
}

// NewSSEReader creates a new SSE reader from an io.Reader.
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{
		reader: bufio.NewReader(r),
	}
}

// ReadEvent reads the next SSE event from the stream.
// Returns the event type, data, and any error.
// Returns io.EOF when the stream ends.
func (s *SSEReader) ReadEvent() (string, []byte, error) {
	var eventType string
	var dataLines [][]byte

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil && !(err == io.EOF && len(line) > 0) {
			if err == io.EOF {
				// If we have data, return it before EOF
				if len(dataLines) > 0 {
					return eventType, bytes.Join(dataLines, []byte("\n")), nil
				}
				return "", nil, io.EOF
			}
			return "", nil, err
		}

		line = bytes.TrimRight(line, "\r\n")

		// Empty line signals end of event
		if len(line) == 0 {
			if len(dataLines) > 0 {
				return eventType, bytes.Join(dataLines, []byte("\n")), nil
			}
			continue
		}

		switch {
		case bytes.HasPrefix(line, []byte("event:")):
			eventType = string(bytes.TrimSpace(line[len("event:"):]))
		case bytes.HasPrefix(line, []byte("data:")):
			data := line[len("data:"):]
			data = bytes.TrimPrefix(data, []byte(" "))
			dataLines = append(dataLines, data)
		}
		// Ignore other fields (id:, retry:, comments starting with :)
	}
}

// =============================================================================
// STREAMING MESSAGES
// =============================================================================

// Stream sends a streaming request, calling onText for every text delta.
// It returns the assembled message once message_stop arrives. Failures after
// the first byte are returned as *StreamError carrying the partial text.
func (c *Client) Stream(ctx context.Context, req MessageRequest, onText TextCallback) (*MessageResponse, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	req.Stream = true

	ctx, span := c.startSpan(ctx, "anthropic.messages.stream", req)
	defer span.End()
	start := time.Now()

	resp, err := c.send(ctx, req)
	if err != nil {
		c.finish(ctx, span, req.Model, start, nil, err)
		return nil, err
	}
	defer resp.Body.Close()

	out, err := c.processStream(ctx, resp.Body, onText)
	if err != nil {
		c.finish(ctx, span, req.Model, start, nil, err)
		return nil, err
	}
	if out.Model == "" {
		out.Model = req.Model
	}
	c.finish(ctx, span, req.Model, start, out, nil)
	return out, nil
}

// processStream reads events until message_stop and assembles the message.
func (c *Client) processStream(ctx context.Context, body io.Reader, onText TextCallback) (*MessageResponse, error) {
	reader := NewSSEReader(body)
	out := &MessageResponse{Type: "message", Role: RoleAssistant}
	var text strings.Builder

	fail := func(err error) (*MessageResponse, error) {
		return nil, &StreamError{Partial: text.String(), Err: err}
	}

	for {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		eventType, data, err := reader.ReadEvent()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fail(ctxErr)
			}
			if errors.Is(err, io.EOF) {
				return fail(io.ErrUnexpectedEOF)
			}
			return fail(fmt.Errorf("failed to read stream: %w", err))
		}

		var event streamEvent
		if err := json.Unmarshal(data, &event); err != nil {
			c.logger.Debug("skipping malformed stream event", "event", eventType, "error", err)
			continue
		}
		if eventType == "" {
			eventType = event.Type
		}

		switch eventType {
		case EventMessageStart:
			if event.Message != nil {
				out.ID = event.Message.ID
				out.Model = event.Message.Model
				out.Usage.InputTokens = event.Message.Usage.InputTokens
				out.Usage.OutputTokens = event.Message.Usage.OutputTokens
			}

		case EventContentBlockDelta:
			if event.Delta == nil || event.Delta.Text == "" {
				continue
			}
			text.WriteString(event.Delta.Text)
			if onText != nil {
				onText(event.Delta.Text)
			}

		case EventMessageDelta:
			if event.Delta != nil && event.Delta.StopReason != "" {
				out.StopReason = event.Delta.StopReason
			}
			if event.Usage != nil {
				out.Usage.OutputTokens = event.Usage.OutputTokens
			}

		case EventMessageStop:
			out.Content = []ContentBlock{{Type: "text", Text: text.String()}}
			return out, nil

		case EventError:
			detail := apiErrorDetail{Type: "api_error", Message: "stream error"}
			if event.Error != nil {
				detail = *event.Error
			}
			return fail(newAPIError(0, detail))

		case EventPing, EventContentBlockStart, EventContentBlockStop:
			// Nothing to do
		}
	}
}
