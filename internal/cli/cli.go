// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Root command and flag parsing for claude-chat.
//
// Command: claude-chat [prompt...]
//
// Examples:
//   claude-chat "What is a goroutine?"     Ask once, then offer a conversation
//   claude-chat -c "Ways to speed up CI"   Numbered-list answer
//   claude-chat -s --model opus "Explain"  Short answer from a named model
//   claude-chat chat                       Start directly in conversation mode
//   claude-chat models                     List known models and prices
package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/claude-chat/internal/config"
	"github.com/jeranaias/claude-chat/internal/model"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

const longDescription = `claude-chat - talk to Claude from the terminal

Sends a prompt to the Anthropic Messages API, renders the reply with
terminal styling and highlighted code, and can continue as a multi-turn
conversation that is saved to a transcript file on request.

Short prompts (under 20 words) and --short go to the fast model; longer
prompts go to the default model unless --model is given.

Environment:
  ANTHROPIC_API_KEY          API key (required)
  CLAUDE_CHAT_MODEL_FAST     Fast model override
  CLAUDE_CHAT_MODEL_DEFAULT  Default model override
  CLAUDE_CHAT_HISTORY_DIR    Transcript directory (default: history)
  CLAUDE_CHAT_LOG_LEVEL      debug, info, warn or error
  NO_COLOR / FORCE_COLOR     Disable or force colored output`

// rootFlags holds the flags shared by the root and chat commands.
type rootFlags struct {
	concise      bool
	short        bool
	model        string
	maxTokens    int
	stream       bool
	noTypewriter bool
	renderer     string
	showUsage    bool
	configPath   string
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "claude-chat [prompt...]",
		Short:         "Chat with Claude from the terminal",
		Long:          longDescription,
		Args:          cobra.ArbitraryArgs,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.TrimSpace(strings.Join(args, " "))
			if prompt == "" {
				return ErrMissingArgument("prompt", `claude-chat "What is a goroutine?"`)
			}
			return runAsk(cmd, flags, prompt)
		},
	}
	root.SetVersionTemplate("claude-chat {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.BoolVarP(&flags.concise, "concise", "c", false, "Format the response as a numbered list")
	pf.BoolVarP(&flags.short, "short", "s", false, "Request a short response (paragraph or less)")
	pf.StringVar(&flags.model, "model", "",
		"Model to use: an ID or one of "+strings.Join(model.ModelShortNames(), ", ")+" (auto-selected if unset)")
	pf.IntVar(&flags.maxTokens, "max-tokens", config.DefaultMaxTokens, "Maximum number of tokens in each response")
	pf.BoolVar(&flags.stream, "stream", false, "Write the response as it arrives instead of formatting it")
	pf.BoolVar(&flags.noTypewriter, "no-typewriter", false, "Print responses at once instead of character by character")
	pf.StringVar(&flags.renderer, "renderer", "", "Response renderer: inline or glamour")
	pf.BoolVar(&flags.showUsage, "usage", false, "Show token usage after each response")
	pf.StringVar(&flags.configPath, "config", "", "Path to config file (default ~/.claude-chat/config.toml)")

	root.AddCommand(
		newChatCommand(flags),
		newUsageCommand(flags),
		newModelsCommand(flags),
		newConfigCommand(flags),
		newVersionCommand(),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	// The first interrupt cancels an in-flight request; after that the
	// default handler applies and a second one exits.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		stop()
	}()

	cmd := NewRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		DisplayError(cmd.ErrOrStderr(), err)
		return GetExitCode(err)
	}
	return ExitSuccess
}
