// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jeranaias/claude-chat/internal/model"
	"github.com/jeranaias/claude-chat/internal/util"
)

// TimestampLayout prefixes every transcript filename.
const TimestampLayout = "2006-01-02-15:04:05"

// DefaultDir is relative to the working directory.
const DefaultDir = "history"

// =============================================================================
// TRANSCRIPT STORE
// =============================================================================

// Store writes transcripts into a directory.
type Store struct {
	// Dir is the directory for transcripts
	// Default: ./history
	Dir string

	now func() time.Time
}

// NewStore creates a store rooted at dir. The directory is created on Save.
func NewStore(dir string) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	return &Store{Dir: dir, now: time.Now}
}

// =============================================================================
// SAVE OPERATIONS
// =============================================================================

// Save writes the transcript and returns the file path. An existing file
// with the same name is replaced.
func (s *Store) Save(t *model.Transcript, slug string) (string, error) {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return "", &SaveError{Path: s.Dir, Err: err}
	}

	path := filepath.Join(s.Dir, FileName(s.now(), slug))
	if err := util.AtomicWriteFile(path, []byte(t.Text()), 0644); err != nil {
		return "", &SaveError{Path: path, Err: err}
	}
	return path, nil
}

// FileName returns "<timestamp>-<slug>.txt". The slug is re-sanitized so it
// can never escape the directory.
func FileName(at time.Time, slug string) string {
	clean := Slugify(slug)
	if clean == "" {
		clean = FallbackSlug
	}
	return at.Format(TimestampLayout) + "-" + clean + ".txt"
}

// =============================================================================
// ERRORS
// =============================================================================

// SaveError reports a failed transcript write.
type SaveError struct {
	Path string
	Err  error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("failed to write %s: %v", e.Path, e.Err)
}

func (e *SaveError) Unwrap() error {
	return e.Err
}
