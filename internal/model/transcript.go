// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/claude-chat/internal/anthropic"
)

// =============================================================================
// TRANSCRIPT TYPE
// =============================================================================

// Transcript is the ordered, append-only message history of one session.
// It is owned by a single session and is not safe for concurrent mutation.
type Transcript struct {
	ID        string
	CreatedAt time.Time
	messages  []Message
}

// NewTranscript creates an empty transcript with a fresh session ID.
func NewTranscript() *Transcript {
	return &Transcript{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		messages:  make([]Message, 0, 8),
	}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// Append adds a message to the end of the transcript.
func (t *Transcript) Append(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	t.messages = append(t.messages, msg)
}

// AddUserMessage appends and returns a user message.
func (t *Transcript) AddUserMessage(content string) Message {
	msg := NewUserMessage(content)
	t.Append(msg)
	return msg
}

// AddAssistantMessage appends and returns an assistant message.
func (t *Transcript) AddAssistantMessage(content string) Message {
	msg := NewAssistantMessage(content)
	t.Append(msg)
	return msg
}

// Messages returns a copy of the messages in order.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	return len(t.messages)
}

// IsEmpty returns true if no messages have been appended.
func (t *Transcript) IsEmpty() bool {
	return len(t.messages) == 0
}

// =============================================================================
// CONVERSION
// =============================================================================

// APIMessages converts the transcript to Messages API turns.
func (t *Transcript) APIMessages() []anthropic.Message {
	out := make([]anthropic.Message, 0, len(t.messages))
	for _, m := range t.messages {
		out = append(out, anthropic.Message{Role: m.Role.String(), Content: m.Content})
	}
	return out
}

// Text renders the flat transcript file body: message blocks joined by a
// blank line.
func (t *Transcript) Text() string {
	blocks := make([]string, len(t.messages))
	for i, m := range t.messages {
		blocks[i] = m.Block()
	}
	return strings.Join(blocks, "\n")
}

// EstimateTokens sums the per-message estimates.
func (t *Transcript) EstimateTokens() int {
	total := 0
	for _, m := range t.messages {
		total += m.EstimateTokens()
	}
	return total
}

// Preview returns the first user message as a one-line title.
func (t *Transcript) Preview() string {
	for _, m := range t.messages {
		if m.Role == RoleUser {
			return m.Preview(50)
		}
	}
	return "New Conversation"
}
