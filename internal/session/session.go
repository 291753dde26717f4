// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/claude-chat/internal/anthropic"
	"github.com/jeranaias/claude-chat/internal/format"
	"github.com/jeranaias/claude-chat/internal/history"
	"github.com/jeranaias/claude-chat/internal/logging"
	"github.com/jeranaias/claude-chat/internal/model"
	"github.com/jeranaias/claude-chat/internal/progress"
	"github.com/jeranaias/claude-chat/internal/selector"
)

// User-facing text.
const (
	MsgConversationStarted = "Conversation started. Enter 'exit' or 'quit' at any time to end the conversation."
	MsgEnding              = "Ending conversation."
	MsgSavePrompt          = "Do you want to save this conversation? (y/n): "
	MsgContinuePrompt      = "Would you like to continue the conversation? (y/n): "
	MsgGoodbye             = "Goodbye!"
	PromptLabel            = "You: "

	separatorWidth   = 50
	promptPreviewLen = 50
)

// Separator frames prompts and responses.
var Separator = strings.Repeat("=", separatorWidth)

// ErrInterrupted is returned by a LineReader when the user presses Ctrl-C at a prompt.
var ErrInterrupted = errors.New("input interrupted")

// =============================================================================
// COLLABORATORS
// =============================================================================

// Completer performs one blocking API call.
type Completer interface {
	Complete(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error)
}

// Streamer performs one streaming API call.
type Streamer interface {
	Stream(ctx context.Context, req anthropic.MessageRequest, onText anthropic.TextCallback) (*anthropic.MessageResponse, error)
}

// LineReader reads one line of terminal input. It returns io.EOF at end of
// input and ErrInterrupted on Ctrl-C.
type LineReader interface {
	ReadLine(prompt string) (string, error)
}

// Tracker is the thinking indicator shown while a call is outstanding.
type Tracker interface {
	Start()
	Stop()
}

// Store persists a finished transcript.
type Store interface {
	Save(t *model.Transcript, slug string) (string, error)
}

// UsageRecorder receives token usage for every successful call.
type UsageRecorder interface {
	Record(ctx context.Context, modelID string, usage anthropic.Usage, duration time.Duration) error
}

// =============================================================================
// STATE
// =============================================================================

// State is the session's position in its lifecycle.
type State int

const (
	Idle State = iota
	AwaitingResponse
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingResponse:
		return "awaiting_response"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// SessionError reports the API failure that ended a session.
type SessionError struct {
	Turn  int
	Model string
	Err   error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("conversation ended at turn %d (%s): %v", e.Turn, e.Model, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// =============================================================================
// SESSION
// =============================================================================

// Options control model choice and display.
type Options struct {
	// Model pins every turn to one model. Empty selects per prompt.
	Model string
	// Models supplies the fast and default models for selection and summaries.
	Models    selector.Models
	MaxTokens int

	Concise bool
	Short   bool

	// Stream writes text deltas as they arrive instead of formatting the whole reply.
	Stream bool
	// TypewriterDelay paces rendering; 0 prints the reply at once.
	TypewriterDelay time.Duration
	// ShowUsage prints a token line after each reply.
	ShowUsage bool
}

// Session is a single conversation. It is not safe for concurrent use.
type Session struct {
	opts       Options
	completer  Completer
	streamer   Streamer
	input      LineReader
	out        io.Writer
	renderer   format.Renderer
	newTracker func() Tracker
	store      Store
	usage      UsageRecorder
	logger     *slog.Logger
	styles     *Styles

	transcript *model.Transcript
	state      State
	turns      int
}

// Option configures a Session.
type Option func(*Session)

// WithStreamer enables streaming mode through s.
func WithStreamer(s Streamer) Option {
	return func(sess *Session) { sess.streamer = s }
}

// WithRenderer sets the reply renderer.
func WithRenderer(r format.Renderer) Option {
	return func(sess *Session) { sess.renderer = r }
}

// WithTracker sets the factory for thinking indicators.
func WithTracker(newTracker func() Tracker) Option {
	return func(sess *Session) { sess.newTracker = newTracker }
}

// WithStore sets where transcripts are saved.
func WithStore(store Store) Option {
	return func(sess *Session) { sess.store = store }
}

// WithUsageRecorder records token usage after each call.
func WithUsageRecorder(u UsageRecorder) Option {
	return func(sess *Session) { sess.usage = u }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(sess *Session) { sess.logger = logger }
}

// WithTranscript continues an existing transcript.
func WithTranscript(t *model.Transcript) Option {
	return func(sess *Session) { sess.transcript = t }
}

// WithStyles sets the styles for prompts and notices.
func WithStyles(st Styles) Option {
	return func(sess *Session) { sess.styles = &st }
}

// New creates an idle session.
func New(completer Completer, input LineReader, out io.Writer, opts Options, options ...Option) *Session {
	s := &Session{
		opts:      opts,
		completer: completer,
		input:     input,
		out:       out,
	}
	for _, opt := range options {
		opt(s)
	}

	if s.renderer == nil {
		s.renderer = format.New(format.WithOutput(out))
	}
	if s.newTracker == nil {
		s.newTracker = func() Tracker { return progress.NewTracker(out) }
	}
	if s.store == nil {
		s.store = history.NewStore(history.DefaultDir)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.styles == nil {
		st := NewStyles(lipgloss.NewRenderer(out))
		s.styles = &st
	}
	if s.transcript == nil {
		s.transcript = model.NewTranscript()
	}
	s.logger = s.logger.With("session_id", s.transcript.ID)
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Transcript returns the session's transcript.
func (s *Session) Transcript() *model.Transcript {
	return s.transcript
}

// =============================================================================
// ONE-SHOT
// =============================================================================

// Ask sends a single prompt, renders the reply and offers to continue in a
// conversation with the same model.
func (s *Session) Ask(ctx context.Context, prompt string) error {
	ctx = logging.WithSessionID(ctx, s.transcript.ID)

	// The follow-up conversation keeps the model picked for the first prompt.
	s.opts.Model = s.modelFor(prompt)
	modified := selector.ModifyPrompt(prompt, s.opts.Concise, s.opts.Short)

	s.println("\n" + Separator)
	s.println(s.styles.Prompt.Render("PROMPT") + ":\n")
	s.println(modified)

	if err := s.turn(ctx, modified, s.opts.Model); err != nil {
		return err
	}
	s.println("")

	answer, err := s.input.ReadLine(s.styles.Notice.Render(MsgContinuePrompt))
	if err != nil || !isYes(answer) {
		s.state = Terminated
		return nil
	}
	return s.Run(ctx)
}

// =============================================================================
// CONVERSATION LOOP
// =============================================================================

// Run reads turns until exit, end of input or an API failure.
func (s *Session) Run(ctx context.Context) error {
	ctx = logging.WithSessionID(ctx, s.transcript.ID)
	s.state = Idle

	s.println("\n" + MsgConversationStarted)

	for {
		s.println("")
		line, err := s.input.ReadLine(s.styles.Prompt.Render(PromptLabel))
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, ErrInterrupted) {
				s.logger.Warn("input failed", "error", err)
			}
			s.println("")
			s.println(s.styles.Notice.Render(MsgGoodbye))
			s.state = Terminated
			return nil
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if isExit(input) {
			s.exit(ctx)
			return nil
		}

		// The model is chosen from what the user typed, before instructions are added.
		modelID := s.modelFor(input)
		prompt := selector.ModifyPrompt(input, s.opts.Concise, s.opts.Short)
		if err := s.turn(ctx, prompt, modelID); err != nil {
			return err
		}
	}
}

// turn runs one request/response exchange against modelID.
func (s *Session) turn(ctx context.Context, prompt, modelID string) error {
	s.turns++
	msg := s.transcript.AddUserMessage(prompt)

	s.println("\n" + Separator)
	s.println(s.styles.Heading.Render("CLAUDE'S RESPONSE") + ":\n")

	s.state = AwaitingResponse
	s.logger.Info("turn started", "turn", s.turns, "model", modelID, "prompt", msg.Preview(promptPreviewLen))

	start := time.Now()
	resp, err := s.call(ctx, modelID)
	elapsed := time.Since(start)

	if err != nil {
		s.state = Terminated
		s.println(s.styles.Failure.Render(fmt.Sprintf("Error: %v", err)))
		s.logger.Error("turn failed", "turn", s.turns, "model", modelID, "error", err)
		return &SessionError{Turn: s.turns, Model: modelID, Err: err}
	}

	if reply := s.transcript.AddAssistantMessage(resp.Text()); reply.IsEmpty() {
		s.logger.Warn("empty response", "turn", s.turns, "model", modelID, "stop_reason", resp.StopReason)
	}
	s.recordUsage(ctx, resp, modelID, elapsed)

	if s.opts.ShowUsage {
		s.println(s.styles.Dim.Render(usageLine(resp, modelID)))
	}
	s.println(Separator)
	s.state = Idle
	return nil
}

// call performs the API request with the tracker running and displays the reply.
func (s *Session) call(ctx context.Context, modelID string) (*anthropic.MessageResponse, error) {
	req := anthropic.MessageRequest{
		Model:     modelID,
		MaxTokens: s.opts.MaxTokens,
		Messages:  s.transcript.APIMessages(),
	}

	tracker := s.newTracker()
	tracker.Start()

	if s.opts.Stream && s.streamer != nil {
		resp, err := s.streamer.Stream(ctx, req, func(chunk string) {
			tracker.Stop()
			fmt.Fprint(s.out, chunk)
		})
		tracker.Stop()
		if err != nil {
			s.println("")
			return nil, err
		}
		s.println("")
		return resp, nil
	}

	resp, err := s.completer.Complete(ctx, req)
	tracker.Stop()
	if err != nil {
		return nil, err
	}

	formatted := s.renderer.Render(resp.Text())
	if s.opts.TypewriterDelay > 0 {
		progress.RenderGradually(s.out, formatted, s.opts.TypewriterDelay)
	} else {
		s.println(formatted)
	}
	return resp, nil
}

// exit handles the exit keyword: offer to save, then say goodbye.
func (s *Session) exit(ctx context.Context) {
	s.println("\n" + s.styles.Notice.Render(MsgEnding))

	answer, err := s.input.ReadLine(s.styles.Notice.Render(MsgSavePrompt))
	if err == nil && isYes(answer) {
		s.save(ctx)
	}

	s.println(s.styles.Notice.Render(MsgGoodbye))
	s.state = Terminated
}

// save summarizes and writes the transcript. Failures are reported, not returned.
func (s *Session) save(ctx context.Context) {
	slug := history.FallbackSlug
	if !s.transcript.IsEmpty() {
		slug = history.Summarize(ctx, s.completer, s.opts.Models.Fast, s.transcript)
	}

	path, err := s.store.Save(s.transcript, slug)
	if err != nil {
		s.logger.Error("save failed", "error", err)
		s.println("\n" + s.styles.Failure.Render(fmt.Sprintf("Error saving conversation: %v", err)))
		return
	}
	s.logger.Info("conversation saved", "path", path, "messages", s.transcript.Len())
	s.println("\n" + s.styles.Success.Render("Conversation saved to: "+path))
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Session) modelFor(prompt string) string {
	return s.opts.Models.SelectModel(prompt, s.opts.Model, s.opts.Short)
}

func (s *Session) recordUsage(ctx context.Context, resp *anthropic.MessageResponse, modelID string, elapsed time.Duration) {
	if s.usage == nil {
		return
	}
	if resp.Model != "" {
		modelID = resp.Model
	}
	if err := s.usage.Record(ctx, modelID, resp.Usage, elapsed); err != nil {
		s.logger.Warn("usage not recorded", "error", err)
	}
}

func (s *Session) println(line string) {
	fmt.Fprintln(s.out, line)
}

func usageLine(resp *anthropic.MessageResponse, modelID string) string {
	if resp.Model != "" {
		modelID = resp.Model
	}
	return fmt.Sprintf("%s · in %d · out %d", modelID, resp.Usage.InputTokens, resp.Usage.OutputTokens)
}

// isExit matches exit or quit, ignoring case and surrounding space.
func isExit(input string) bool {
	input = strings.TrimSpace(input)
	return strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit")
}

func isYes(answer string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), "y")
}
