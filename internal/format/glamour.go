// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package format

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// MarkdownRenderer renders a whole response as markdown with glamour. It is
// the alternative to Formatter selected by display.renderer = "glamour".
type MarkdownRenderer struct {
	term     *glamour.TermRenderer
	fallback Renderer
}

// NewMarkdownRenderer creates a glamour renderer wrapping at width columns.
// fallback is used when glamour fails on a particular response.
func NewMarkdownRenderer(width int, fallback Renderer) (*MarkdownRenderer, error) {
	if width <= 0 {
		width = 80
	}
	term, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	return &MarkdownRenderer{term: term, fallback: fallback}, nil
}

// Render implements Renderer.
func (m *MarkdownRenderer) Render(text string) string {
	out, err := m.term.Render(text)
	if err != nil {
		if m.fallback != nil {
			return m.fallback.Render(text)
		}
		return text
	}
	return strings.Trim(out, "\n")
}
