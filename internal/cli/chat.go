// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - One-shot prompts and interactive conversation.
//
// Command: chat
// Short:   Start directly in conversation mode
//
// Examples:
//   claude-chat chat                 Start a conversation
//   claude-chat chat --model opus    Converse with a fixed model
//   claude-chat chat -s --stream     Short answers, written as they arrive
//
// Conversation:
//   exit, quit   End the conversation and offer to save the transcript
//   Ctrl+D       End without saving
//   Up/Down      Recall previous inputs (interactive terminals only)

package cli

import (
	"github.com/spf13/cobra"

	"github.com/jeranaias/claude-chat/internal/session"
)

func newChatCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start directly in conversation mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConversation(cmd, flags, func(s *session.Session) error {
				return s.Run(cmd.Context())
			})
		},
	}
}

// runAsk sends prompt once and offers to continue as a conversation.
func runAsk(cmd *cobra.Command, flags *rootFlags, prompt string) error {
	return runConversation(cmd, flags, func(s *session.Session) error {
		return s.Ask(cmd.Context(), prompt)
	})
}

// runConversation wires a session to the terminal and runs fn with it.
func runConversation(cmd *cobra.Command, flags *rootFlags, fn func(*session.Session) error) error {
	a, err := newApp(cmd, flags)
	if err != nil {
		return err
	}
	defer a.Close()

	input, release := newLineReader(cmd.InOrStdin(), cmd.OutOrStdout())
	defer release()

	s := a.newSession(cmd, flags, input)
	err = fn(s)

	costs := a.costs.GetCurrentSession()
	a.logger.Info("session finished",
		"session_id", costs.ID,
		"title", s.Transcript().Preview(),
		"messages", s.Transcript().Len(),
		"estimated_tokens", s.Transcript().EstimateTokens(),
		"state", s.State().String(),
		"calls", costs.Calls,
		"input_tokens", costs.Tokens.Input,
		"output_tokens", costs.Tokens.Output,
		"cost_usd", costs.TotalCost)
	return err
}
