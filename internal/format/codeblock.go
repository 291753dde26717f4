// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package format

import (
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
)

// =============================================================================
// FENCED CODE BLOCKS
// =============================================================================

// codeBlockPattern matches a fenced block with an optional language tag. The
// body is non-greedy so backticks inside the code cannot close the fence early,
// and an opening fence without a closing one never matches.
var codeBlockPattern = regexp.MustCompile("(?s)```(\\w+)?\\n(.*?)\\n```")

// HighlightCode replaces every fenced block with its highlighted body wrapped
// in newlines. The fences are consumed and text outside them is unchanged.
func (f *Formatter) HighlightCode(text string) string {
	return codeBlockPattern.ReplaceAllStringFunc(text, f.highlightBlock)
}

// highlightBlock renders one matched fence.
func (f *Formatter) highlightBlock(block string) string {
	m := codeBlockPattern.FindStringSubmatch(block)
	if m == nil {
		return block
	}
	language, code := m[1], m[2]
	if highlighted, ok := f.highlight(code, language); ok {
		return "\n" + highlighted + "\n"
	}
	return "\n" + code + "\n"
}

// highlight tries the declared language, then content detection. It reports
// false when neither finds a lexer so the caller can emit the code verbatim.
func (f *Formatter) highlight(code, language string) (string, bool) {
	var lexer chroma.Lexer
	if language != "" {
		lexer = lexers.Get(language)
	}
	if lexer == nil {
		if detected := DetectLanguage(code); detected != "" {
			lexer = lexers.Get(detected)
		}
	}
	if lexer == nil {
		return "", false
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get(f.codeStyle)
	if style == nil {
		style = chromaStyles.Fallback
	}

	formatter := formatters.Get(f.chromaFormatter())
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return "", false
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return "", false
	}

	out := buf.String()
	// Lexers that ensure a trailing newline add one the fence body never had.
	if !strings.HasSuffix(code, "\n") {
		out = trimTrailingNewline(out)
	}
	return out, true
}

// trimTrailingNewline drops the last newline of s when only escape sequences follow it.
func trimTrailingNewline(s string) string {
	idx := strings.LastIndex(s, "\n")
	if idx < 0 || ansi.Strip(s[idx+1:]) != "" {
		return s
	}
	return s[:idx] + s[idx+1:]
}

// chromaFormatter picks the chroma terminal formatter matching the color profile.
func (f *Formatter) chromaFormatter() string {
	switch f.renderer.ColorProfile() {
	case termenv.TrueColor:
		return "terminal16m"
	case termenv.ANSI256:
		return "terminal256"
	case termenv.ANSI:
		return "terminal16"
	default:
		return "noop"
	}
}

// DetectLanguage returns the chroma lexer name guessed from code, or "".
func DetectLanguage(code string) string {
	if lexer := lexers.Analyse(code); lexer != nil {
		return lexer.Config().Name
	}
	return ""
}
