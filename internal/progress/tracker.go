// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package progress provides the live "thinking" indicator shown while a
// request is outstanding and the typewriter renderer used for replies.
package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// =============================================================================
// SPINNER
// =============================================================================

// Thinking is the default spinner: eight braille glyphs at ten frames a second.
var Thinking = spinner.Spinner{
	Frames: []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"},
	FPS:    time.Second / 10,
}

// DefaultLabel precedes the spinner glyph on the status line.
const DefaultLabel = "Claude is thinking"

// clearWidth is how many columns Stop blanks when clearing the status line.
const clearWidth = 50

// =============================================================================
// TRACKER
// =============================================================================

// Tracker paints a spinner and an elapsed-seconds counter on the current
// terminal line until stopped. A Tracker tracks one outstanding call at a
// time; Start after Stop begins a fresh run.
type Tracker struct {
	out   io.Writer
	label string
	spin  spinner.Spinner
	clock func() time.Time

	mu       sync.Mutex
	quit     chan struct{}
	finished chan struct{}

	done    atomic.Bool
	elapsed atomic.Int64
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithSpinner replaces the glyph set and tick interval.
func WithSpinner(s spinner.Spinner) Option {
	return func(t *Tracker) {
		if len(s.Frames) > 0 && s.FPS > 0 {
			t.spin = s
		}
	}
}

// WithLabel replaces the status text shown before the glyph.
func WithLabel(label string) Option {
	return func(t *Tracker) {
		t.label = label
	}
}

// WithClock replaces the time source used for the elapsed counter.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.clock = now
	}
}

// NewTracker creates a tracker writing to out.
func NewTracker(out io.Writer, opts ...Option) *Tracker {
	t := &Tracker{
		out:   out,
		label: DefaultLabel,
		spin:  Thinking,
		clock: time.Now,
	}
	t.done.Store(true)
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start resets the counter and launches the ticker. Starting a running
// tracker restarts it.
func (t *Tracker) Start() {
	t.Stop()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.elapsed.Store(0)
	t.done.Store(false)
	t.quit = make(chan struct{})
	t.finished = make(chan struct{})
	go t.run(t.clock(), t.quit, t.finished)
}

// Stop marks the tracker done, waits for the ticker to exit, and clears the
// status line. The ticker observes the request within one tick.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	wasRunning := !t.done.Swap(true)
	if wasRunning {
		close(t.quit)
		<-t.finished
		fmt.Fprint(t.out, "\r"+strings.Repeat(" ", clearWidth)+"\r")
		flush(t.out)
	}
}

// elapsedSeconds returns the whole seconds counted by the most recent tick.
func (t *Tracker) elapsedSeconds() int {
	return int(t.elapsed.Load())
}

// running reports whether the ticker is active.
func (t *Tracker) running() bool {
	return !t.done.Load()
}

func (t *Tracker) run(started time.Time, quit <-chan struct{}, finished chan<- struct{}) {
	defer close(finished)

	ticker := time.NewTicker(t.spin.FPS)
	defer ticker.Stop()

	for frame := 0; ; frame++ {
		if t.done.Load() {
			return
		}
		secs := int64(t.clock().Sub(started) / time.Second)
		t.elapsed.Store(secs)
		glyph := t.spin.Frames[frame%len(t.spin.Frames)]
		fmt.Fprintf(t.out, "\r%s %s %ds", t.label, glyph, secs)
		flush(t.out)

		select {
		case <-quit:
			return
		case <-ticker.C:
		}
	}
}

// flush pushes buffered output to the terminal when the writer buffers.
func flush(w io.Writer) {
	switch f := w.(type) {
	case interface{ Flush() error }:
		_ = f.Flush()
	case interface{ Flush() }:
		f.Flush()
	}
}
