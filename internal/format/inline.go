// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package format

import (
	"regexp"
	"strings"
)

// =============================================================================
// INLINE RULES
// =============================================================================

var (
	numberedPattern   = regexp.MustCompile(`(?m)^(\s*)(\d+\.)(\s+)(.+)$`)
	bulletPattern     = regexp.MustCompile(`(?m)^(\s*)[•\-\*](\s+)(.+)$`)
	inlineCodePattern = regexp.MustCompile("`([^`]+)`")
	boldPattern       = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	linkPattern       = regexp.MustCompile(`\[([^\]]+)\]\(([^\)]+)\)`)
	headerPattern     = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)
)

// EnhanceInline styles lists, inline code, bold, italic, links and headers.
// Fenced code blocks are set aside before any rule runs and restored
// byte-for-byte afterwards.
func (f *Formatter) EnhanceInline(text string) string {
	held := &placeholders{}
	text = codeBlockPattern.ReplaceAllStringFunc(text, held.hold)
	return f.enhance(text, held)
}

// enhance applies the inline rules in order and then restores held text.
func (f *Formatter) enhance(text string, held *placeholders) string {
	p := f.palette

	text = replaceSubmatches(numberedPattern, text, func(g []string) string {
		indent, number, spacing, content := g[1], g[2], g[3], g[4]
		return indent + f.paint(p.listMarker, number) + spacing + f.paint(p.listText, content)
	})

	text = replaceSubmatches(bulletPattern, text, func(g []string) string {
		indent, spacing, content := g[1], g[2], g[3]
		return indent + f.paint(p.listMarker, "•") + spacing + f.paint(p.listText, content)
	})

	// Styled code spans are held too, so emphasis rules cannot reach inside them.
	text = replaceSubmatches(inlineCodePattern, text, func(g []string) string {
		return held.hold(f.paint(p.inlineCode, g[1]))
	})

	text = replaceSubmatches(boldPattern, text, func(g []string) string {
		return f.paint(p.bold, g[1])
	})

	text = f.italicize(text)

	text = replaceSubmatches(linkPattern, text, func(g []string) string {
		return f.paintUnderlined(p.link, g[1])
	})

	text = replaceSubmatches(headerPattern, text, func(g []string) string {
		return "\n" + f.paintUnderlined(p.header, g[2]) + "\n"
	})

	return held.restore(text)
}

// italicize styles *text* spans. Neither delimiter may touch another '*', so
// leftovers of unmatched bold markers are never read as italics.
func (f *Formatter) italicize(s string) string {
	if !strings.Contains(s, "*") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	i := 0
	for i < len(s) {
		if s[i] != '*' || (i > 0 && s[i-1] == '*') || (i+1 < len(s) && s[i+1] == '*') {
			b.WriteByte(s[i])
			i++
			continue
		}
		end := strings.IndexByte(s[i+1:], '*')
		if end <= 0 {
			b.WriteByte(s[i])
			i++
			continue
		}
		closing := i + 1 + end
		if closing+1 < len(s) && s[closing+1] == '*' {
			b.WriteByte(s[i])
			i++
			continue
		}
		b.WriteString(f.paint(f.palette.italic, s[i+1:closing]))
		i = closing + 1
	}
	return b.String()
}

// replaceSubmatches is ReplaceAllStringFunc with access to capture groups.
func replaceSubmatches(re *regexp.Regexp, s string, fn func(groups []string) string) string {
	matches := re.FindAllStringSubmatchIndex(s, -1)
	if matches == nil {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	last := 0
	for _, m := range matches {
		b.WriteString(s[last:m[0]])
		groups := make([]string, len(m)/2)
		for g := range groups {
			if m[2*g] >= 0 {
				groups[g] = s[m[2*g]:m[2*g+1]]
			}
		}
		b.WriteString(fn(groups))
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String()
}
