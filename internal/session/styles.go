// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles for session chrome.
type Styles struct {
	Prompt  lipgloss.Style
	Heading lipgloss.Style
	Notice  lipgloss.Style
	Success lipgloss.Style
	Failure lipgloss.Style
	Dim     lipgloss.Style
}

// NewStyles builds styles bound to r, so they follow its color profile.
func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Prompt:  r.NewStyle().Foreground(lipgloss.Color("4")).Bold(true),
		Heading: r.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		Notice:  r.NewStyle().Foreground(lipgloss.Color("3")),
		Success: r.NewStyle().Foreground(lipgloss.Color("2")),
		Failure: r.NewStyle().Foreground(lipgloss.Color("1")),
		Dim:     r.NewStyle().Faint(true),
	}
}
