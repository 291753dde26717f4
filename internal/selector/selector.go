// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package selector picks the model for a prompt and appends response-shape
// instructions to it.
package selector

import (
	"strings"
)

// ShortPromptWords is the word count below which a prompt goes to the fast model.
const ShortPromptWords = 20

// Instruction text appended by ModifyPrompt.
const (
	InstructionsPreamble = "\n\nAdditional instructions: "
	ConciseInstruction   = "Please format your response as a numbered list."
	ShortInstruction     = "Please keep your response to one paragraph or less."
)

// Models names the two model tiers the selector chooses between.
type Models struct {
	Fast    string
	Default string
}

// wordCount returns the number of whitespace-separated words in s.
func wordCount(s string) int {
	return len(strings.Fields(s))
}

// SelectModel returns explicit when it is non-empty. Otherwise it returns the
// fast model for short requests or prompts under ShortPromptWords words, and
// the default model for everything else.
func (m Models) SelectModel(prompt, explicit string, short bool) string {
	if explicit != "" {
		return explicit
	}
	if short || wordCount(prompt) < ShortPromptWords {
		return m.Fast
	}
	return m.Default
}

// ModifyPrompt appends the instruction for each active flag, concise first.
// With neither flag set the prompt is returned unchanged.
func ModifyPrompt(prompt string, concise, short bool) string {
	var instructions []string
	if concise {
		instructions = append(instructions, ConciseInstruction)
	}
	if short {
		instructions = append(instructions, ShortInstruction)
	}
	if len(instructions) == 0 {
		return prompt
	}
	return prompt + InstructionsPreamble + strings.Join(instructions, " ")
}
