// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session runs one-shot and multi-turn conversations with Claude.
//
// A Session owns the transcript. Each turn appends the user message, paints
// the thinking indicator while the API call is outstanding, renders the reply
// and appends it. Typing exit or quit ends the loop and offers to save the
// transcript; an API failure ends it with a *SessionError.
//
// # Key Types
//
//   - Session: the conversation state machine
//   - Options: model, token budget and display settings
//   - LineReader: terminal input, one line per call
//
// # Usage
//
//	s := session.New(client, reader, os.Stdout, opts,
//	    session.WithRenderer(formatter),
//	    session.WithStore(history.NewStore("history")))
//	err := s.Ask(ctx, prompt)
package session
