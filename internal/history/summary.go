// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/claude-chat/internal/anthropic"
	"github.com/jeranaias/claude-chat/internal/logging"
	"github.com/jeranaias/claude-chat/internal/model"
)

const (
	// SummaryPrompt asks for the filename slug.
	SummaryPrompt = "Please provide a three-word summary of this conversation. " +
		"Use hyphens between words and only alphanumeric characters. " +
		"Example format: useful-python-discussion"

	// FallbackSlug is used whenever a summary cannot be produced.
	FallbackSlug = "general-chat-log"

	summaryMaxTokens = 30
	maxSlugWords     = 3
)

// Completer is the remote call used to summarize.
type Completer interface {
	Complete(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error)
}

// Summarize asks modelID for a three-word slug describing the transcript.
// It never fails: any error or empty answer yields FallbackSlug.
func Summarize(ctx context.Context, c Completer, modelID string, t *model.Transcript) string {
	logger := logging.FromContext(ctx)

	messages := append(t.APIMessages(), anthropic.NewUserMessage(SummaryPrompt))
	resp, err := c.Complete(ctx, anthropic.MessageRequest{
		Model:     modelID,
		MaxTokens: summaryMaxTokens,
		Messages:  messages,
	})
	if err != nil {
		logger.Warn("summary failed, using fallback slug", "error", err)
		return FallbackSlug
	}

	slug := Slugify(resp.Text())
	if slug == "" {
		logger.Warn("summary was empty, using fallback slug", "reply", resp.Text())
		return FallbackSlug
	}
	logger.Debug("conversation summarized", "slug", slug)
	return slug
}

// Slugify lowercases s, splits it on hyphens, folds each segment to ASCII
// letters and digits, drops empty segments and keeps the first three.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	words := make([]string, 0, maxSlugWords)
	for _, segment := range strings.Split(s, "-") {
		word := foldASCII(segment)
		if word == "" {
			continue
		}
		words = append(words, word)
		if len(words) == maxSlugWords {
			break
		}
	}
	return strings.Join(words, "-")
}

// foldASCII decomposes s (so "é" becomes "e" plus a combining mark) and keeps
// only ASCII letters and digits.
func foldASCII(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(notSlugRune)))
	out, _, err := transform.String(t, s)
	if err != nil {
		return ""
	}
	return strings.ToLower(out)
}

func notSlugRune(r rune) bool {
	if r > unicode.MaxASCII {
		return true
	}
	return !(unicode.IsLetter(r) || unicode.IsDigit(r))
}
