// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package format turns raw model output into styled terminal text.
//
// Two passes are provided. HighlightCode replaces fenced code blocks with
// syntax-highlighted code. EnhanceInline styles lists, emphasis, inline code,
// links and headers while keeping fenced code out of reach of those rules.
// Format runs both, code first, and is what a conversation uses.
package format

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Renderer converts a complete response into display text.
type Renderer interface {
	Render(text string) string
}

// =============================================================================
// FORMATTER
// =============================================================================

// Formatter implements the inline and code-block passes. The zero value is not
// usable; construct with New.
type Formatter struct {
	renderer  *lipgloss.Renderer
	codeStyle string
	palette   palette
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithRenderer sets the lipgloss renderer, and with it the color profile.
func WithRenderer(r *lipgloss.Renderer) Option {
	return func(f *Formatter) {
		f.renderer = r
	}
}

// WithOutput builds a renderer that detects the color profile of w.
func WithOutput(w io.Writer) Option {
	return func(f *Formatter) {
		f.renderer = lipgloss.NewRenderer(w)
	}
}

// WithCodeStyle sets the chroma style used for fenced code.
func WithCodeStyle(name string) Option {
	return func(f *Formatter) {
		if name != "" {
			f.codeStyle = name
		}
	}
}

// New creates a Formatter writing for stdout unless an option says otherwise.
func New(opts ...Option) *Formatter {
	f := &Formatter{codeStyle: "monokai"}
	for _, opt := range opts {
		opt(f)
	}
	if f.renderer == nil {
		f.renderer = lipgloss.NewRenderer(os.Stdout)
	}
	f.palette = newPalette(f.renderer)
	return f
}

// Render implements Renderer.
func (f *Formatter) Render(text string) string {
	return f.Format(text)
}

// Format runs the code-block pass and then the inline pass. Highlighted code
// is held behind placeholders during the inline pass, so its content is never
// touched by the inline rules.
func (f *Formatter) Format(text string) string {
	held := &placeholders{}
	text = codeBlockPattern.ReplaceAllStringFunc(text, func(block string) string {
		return held.hold(f.highlightBlock(block))
	})
	return f.enhance(text, held)
}

// colorless reports whether styling should be skipped entirely.
func (f *Formatter) colorless() bool {
	return f.renderer.ColorProfile() == termenv.Ascii
}

// paint applies style line by line so multi-line spans are not padded into a
// block, and returns s untouched on a colorless terminal.
func (f *Formatter) paint(style lipgloss.Style, s string) string {
	if f.colorless() {
		return s
	}
	if !strings.Contains(s, "\n") {
		return style.Render(s)
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = style.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}

// underlineOn opens an underline that the trailing reset of a painted span
// closes. lipgloss underlines rune by rune, so spans get it here instead.
const underlineOn = termenv.CSI + termenv.UnderlineSeq + "m"

// paintUnderlined paints s like paint and underlines each line as one span.
func (f *Formatter) paintUnderlined(style lipgloss.Style, s string) string {
	if f.colorless() {
		return s
	}
	lines := strings.Split(f.paint(style, s), "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = underlineOn + line
		}
	}
	return strings.Join(lines, "\n")
}

// =============================================================================
// PALETTE
// =============================================================================

type palette struct {
	listMarker lipgloss.Style
	listText   lipgloss.Style
	inlineCode lipgloss.Style
	bold       lipgloss.Style
	italic     lipgloss.Style
	link       lipgloss.Style
	header     lipgloss.Style
}

func newPalette(r *lipgloss.Renderer) palette {
	base := r.NewStyle().TabWidth(lipgloss.NoTabConversion)
	return palette{
		listMarker: base.Foreground(lipgloss.Color("3")).Bold(true),
		listText:   base.Foreground(lipgloss.Color("15")),
		inlineCode: base.Foreground(lipgloss.Color("2")).Background(lipgloss.Color("8")).Bold(true),
		bold:       base.Bold(true),
		italic:     base.Italic(true),
		link:       base.Foreground(lipgloss.Color("4")),
		header:     base.Foreground(lipgloss.Color("15")).Bold(true),
	}
}

// =============================================================================
// PLACEHOLDERS
// =============================================================================

// Placeholder tokens are bracketed by private-use runes so that no inline rule
// can match them and placeholder 1 is never a prefix of placeholder 10.
const (
	placeholderOpen  = "\uE000"
	placeholderClose = "\uE001"
)

type placeholders struct {
	items []string
}

func (p *placeholders) token(i int) string {
	return placeholderOpen + "CODE_BLOCK_PLACEHOLDER_" + strconv.Itoa(i) + placeholderClose
}

// hold stores s and returns the token that stands in for it.
func (p *placeholders) hold(s string) string {
	p.items = append(p.items, s)
	return p.token(len(p.items) - 1)
}

// restore puts every held string back in place of its token. Later items may
// contain tokens of earlier ones, so they are expanded first.
func (p *placeholders) restore(s string) string {
	for i := len(p.items) - 1; i >= 0; i-- {
		s = strings.ReplaceAll(s, p.token(i), p.items[i])
	}
	return s
}
