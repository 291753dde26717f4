// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package anthropic is a small client for the Anthropic Messages API.
//
// It covers the two calls the chat client needs: a blocking completion and
// a server-sent-events stream of text deltas. Transient failures (rate
// limits, overload and 5xx responses) are retried with exponential backoff
// before any response body has been read.
//
// # Key Types
//
//   - Client: HTTP client with retry, pacing and tracing
//   - MessageRequest / MessageResponse: wire types for POST /v1/messages
//   - APIError: a decoded error body, wrapping one of the sentinel errors
//   - SSEReader: minimal server-sent-events parser
//
// # Usage
//
//	client := anthropic.NewClient(os.Getenv("ANTHROPIC_API_KEY"))
//	resp, err := client.Complete(ctx, anthropic.MessageRequest{
//	    Model:     "claude-3-haiku-20240307",
//	    MaxTokens: 1000,
//	    Messages:  []anthropic.Message{anthropic.NewUserMessage("Hello")},
//	})
//
// API keys are never logged. Log lines carry a short SHA-256 fingerprint
// of the key instead.
package anthropic
