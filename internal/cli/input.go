// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/claude-chat/internal/config"
	"github.com/jeranaias/claude-chat/internal/session"
)

// historyFileName is the input history file inside the config directory.
const historyFileName = "chat_history"

// =============================================================================
// INPUT HISTORY
// =============================================================================

// LinerReader provides line editing and persistent input history for
// interactive terminals. Arrow keys navigate previous inputs.
type LinerReader struct {
	line        *liner.State
	historyFile string
}

// NewLinerReader puts the terminal in line-editing mode and loads history
// from historyFile. Close must be called to restore the terminal.
func NewLinerReader(historyFile string) *LinerReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	r := &LinerReader{
		line:        line,
		historyFile: historyFile,
	}
	r.LoadHistory()
	return r
}

// LoadHistory loads input history from file.
func (r *LinerReader) LoadHistory() {
	if f, err := os.Open(r.historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
}

// ReadLine reads a line of input with the given prompt. Ctrl-C is reported
// as session.ErrInterrupted and Ctrl-D as io.EOF.
func (r *LinerReader) ReadLine(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", session.ErrInterrupted
		}
		return "", err
	}

	// y/n answers are not worth recalling
	if trimmed := strings.TrimSpace(input); len(trimmed) > 1 {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists input history with owner-only permissions.
func (r *LinerReader) SaveHistory() {
	if err := os.MkdirAll(filepath.Dir(r.historyFile), 0700); err != nil {
		return
	}

	f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()

	r.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (r *LinerReader) Close() {
	r.SaveHistory()
	r.line.Close()
}

// =============================================================================
// NON-INTERACTIVE INPUT
// =============================================================================

// plainReader reads lines from piped or redirected input.
type plainReader struct {
	in  *bufio.Reader
	out io.Writer
}

func (r *plainReader) ReadLine(prompt string) (string, error) {
	fmt.Fprint(r.out, prompt)
	line, err := r.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// newLineReader picks line editing for an interactive terminal and a plain
// buffered reader otherwise. The returned func releases the terminal.
func newLineReader(in io.Reader, out io.Writer) (session.LineReader, func()) {
	if isTerminal(in) && isTerminal(out) {
		dir, err := config.ConfigDir()
		if err != nil {
			dir = os.TempDir()
		}
		r := NewLinerReader(filepath.Join(dir, historyFileName))
		return r, r.Close
	}
	return &plainReader{in: bufio.NewReader(in), out: out}, func() {}
}
