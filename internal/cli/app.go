// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/jeranaias/claude-chat/internal/anthropic"
	"github.com/jeranaias/claude-chat/internal/config"
	"github.com/jeranaias/claude-chat/internal/format"
	"github.com/jeranaias/claude-chat/internal/history"
	"github.com/jeranaias/claude-chat/internal/logging"
	"github.com/jeranaias/claude-chat/internal/model"
	"github.com/jeranaias/claude-chat/internal/progress"
	"github.com/jeranaias/claude-chat/internal/selector"
	"github.com/jeranaias/claude-chat/internal/session"
	"github.com/jeranaias/claude-chat/internal/telemetry"
)

// shutdownTimeout bounds telemetry flushing on exit.
const shutdownTimeout = 5 * time.Second

// =============================================================================
// CONFIGURATION
// =============================================================================

// loadConfig reads the config file and applies flags the user set explicitly.
func loadConfig(cmd *cobra.Command, flags *rootFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadFromPath(flags.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errConfigLoad, err)
	}

	fs := cmd.Flags()
	if fs.Changed("max-tokens") {
		cfg.Models.MaxTokens = flags.maxTokens
	}
	if fs.Changed("renderer") {
		cfg.Display.Renderer = strings.ToLower(flags.renderer)
	}
	if flags.stream {
		cfg.Display.Stream = true
	}
	if flags.noTypewriter {
		cfg.Display.Typewriter = false
	}
	if flags.showUsage {
		cfg.Display.ShowUsage = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// =============================================================================
// APPLICATION WIRING
// =============================================================================

// app holds the long-lived collaborators of one command invocation.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	client    *anthropic.Client
	usage     *telemetry.UsageStore
	costs     *telemetry.CostTracker
	shutdown  telemetry.ShutdownFunc
	logCloser io.Closer
}

// newApp loads configuration and starts logging, telemetry and the usage
// ledger. The API key is checked before anything touches disk.
func newApp(cmd *cobra.Command, flags *rootFlags) (*app, error) {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.API.Key) == "" {
		return nil, anthropic.ErrNotConfigured
	}

	logger, logCloser, err := logging.Setup(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errConfigLoad, err)
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		logCloser: logCloser,
	}

	a.shutdown, err = telemetry.Init(cmd.Context(), cfg.Telemetry, Version)
	if err != nil {
		logger.Warn("telemetry disabled", "error", err)
		a.shutdown = nil
	}

	if cfg.Telemetry.UsageDB != "" {
		a.usage, err = telemetry.OpenUsageStore(cfg.Telemetry.UsageDB)
		if err != nil {
			logger.Warn("usage ledger unavailable", "path", cfg.Telemetry.UsageDB, "error", err)
			a.usage = nil
		}
	}

	if !anthropic.ValidateAPIKey(cfg.API.Key) {
		logger.Warn("API key does not look like an Anthropic key")
	}

	a.client = anthropic.NewClient(cfg.API.Key).
		WithBaseURL(cfg.API.BaseURL).
		WithVersion(cfg.API.Version).
		WithTimeout(cfg.Timeout()).
		WithMaxRetries(cfg.API.MaxRetries).
		WithRateLimit(cfg.API.RequestsPerMinute).
		WithLogger(logger)

	logger.Info("claude-chat started",
		"version", Version,
		"key", a.client.APIKeyMasked(),
		"base_url", cfg.API.BaseURL)
	return a, nil
}

// Close flushes telemetry and closes the ledger and log file.
func (a *app) Close() error {
	var errs []error
	if a.usage != nil {
		errs = append(errs, a.usage.Close())
	}
	if a.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		errs = append(errs, a.shutdown(ctx))
	}
	if a.logCloser != nil {
		errs = append(errs, a.logCloser.Close())
	}
	return errors.Join(errs...)
}

// newSession wires a conversation to the command's input and output.
func (a *app) newSession(cmd *cobra.Command, flags *rootFlags, input session.LineReader) *session.Session {
	out := cmd.OutOrStdout()
	renderer := newRenderer(out)
	transcript := model.NewTranscript()
	a.costs = telemetry.NewCostTracker(a.usage, transcript.ID)

	opts := session.Options{
		Model:           model.ResolveID(flags.model),
		Models:          selector.Models{Fast: a.cfg.Models.Fast, Default: a.cfg.Models.Default},
		MaxTokens:       a.cfg.Models.MaxTokens,
		Concise:         flags.concise,
		Short:           flags.short,
		Stream:          a.cfg.Display.Stream,
		TypewriterDelay: a.cfg.TypewriterDelay(),
		ShowUsage:       a.cfg.Display.ShowUsage,
	}

	return session.New(a.client, input, out, opts,
		session.WithStreamer(a.client),
		session.WithRenderer(a.responseRenderer(out, renderer)),
		session.WithTracker(a.trackerFactory(out)),
		session.WithStore(history.NewStore(a.cfg.History.Dir)),
		session.WithUsageRecorder(a.costs),
		session.WithLogger(a.logger),
		session.WithTranscript(transcript),
		session.WithStyles(session.NewStyles(renderer)),
	)
}

// responseRenderer builds the inline formatter, wrapped in glamour when configured.
func (a *app) responseRenderer(out io.Writer, r *lipgloss.Renderer) format.Renderer {
	inline := format.New(format.WithRenderer(r), format.WithCodeStyle(a.cfg.Display.CodeStyle))
	if a.cfg.Display.Renderer != "glamour" {
		return inline
	}
	md, err := format.NewMarkdownRenderer(GetTerminalWidth(out), inline)
	if err != nil {
		a.logger.Warn("glamour renderer unavailable, using inline formatter", "error", err)
		return inline
	}
	return md
}

// trackerFactory shows the thinking indicator only on a terminal.
func (a *app) trackerFactory(out io.Writer) func() session.Tracker {
	if !isTerminal(out) {
		return func() session.Tracker { return noopTracker{} }
	}
	return func() session.Tracker { return progress.NewTracker(out) }
}

type noopTracker struct{}

func (noopTracker) Start() {}
func (noopTracker) Stop()  {}
