// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package progress

import (
	"io"
	"time"

	"github.com/rivo/uniseg"
)

// DefaultDelay is the pause between characters when rendering gradually.
const DefaultDelay = 2 * time.Millisecond

// RenderGradually writes text one grapheme cluster at a time with delay
// between clusters, then a newline. Terminal escape sequences are written
// whole without a pause. The bytes written are exactly text plus "\n".
func RenderGradually(w io.Writer, text string, delay time.Duration) {
	if delay <= 0 {
		io.WriteString(w, text+"\n")
		flush(w)
		return
	}

	rest, state := text, -1
	for len(rest) > 0 {
		if n := escapeLen(rest); n > 0 {
			io.WriteString(w, rest[:n])
			rest = rest[n:]
			state = -1
			continue
		}

		var cluster string
		cluster, rest, _, state = uniseg.FirstGraphemeClusterInString(rest, state)
		io.WriteString(w, cluster)
		flush(w)
		time.Sleep(delay)
	}

	io.WriteString(w, "\n")
	flush(w)
}

// escapeLen returns the length of the CSI escape sequence at the start of s,
// or 0 if s does not start with one.
func escapeLen(s string) int {
	if len(s) < 2 || s[0] != 0x1b || s[1] != '[' {
		return 0
	}
	for i := 2; i < len(s); i++ {
		if s[i] >= 0x40 && s[i] <= 0x7e {
			return i + 1
		}
	}
	return 0
}
