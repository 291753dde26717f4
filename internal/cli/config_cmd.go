// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Config command implementation for claude-chat.
//
// Command: config [subcommand]
// Short:   View and create configuration
//
// Subcommands:
//   show (default)      Display the effective configuration
//   init                Write the default configuration file
//   path                Show configuration file path
//
// Examples:
//   claude-chat config                    Show current config (default)
//   claude-chat config show --json        Config in JSON format
//   claude-chat config init --force       Overwrite with defaults
//   claude-chat config path               Show config file location
//
// The API key is always masked and is never written by init.

package cli

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jeranaias/claude-chat/internal/config"
)

// configKeyWidth aligns values in config show.
const configKeyWidth = 24

func newConfigCommand(flags *rootFlags) *cobra.Command {
	var jsonOutput, force bool

	show := &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd, flags, jsonOutput)
		},
	}
	show.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd, flags, force)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file without asking")

	path := &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := configFilePath(flags)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p)
			return nil
		},
	}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and create configuration",
		Args:  cobra.NoArgs,
		RunE:  show.RunE,
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	cmd.AddCommand(show, initCmd, path)
	return cmd
}

// configFilePath returns --config or the default location.
func configFilePath(flags *rootFlags) (string, error) {
	if flags.configPath != "" {
		return flags.configPath, nil
	}
	p, err := config.ConfigPath()
	if err != nil {
		return "", NewCommandError("config", "path", "cannot locate config directory", err)
	}
	return p, nil
}

func runConfigShow(cmd *cobra.Command, flags *rootFlags, jsonOutput bool) error {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if jsonOutput {
		fmt.Fprintln(out, cfg.String())
		return nil
	}

	path, _ := configFilePath(flags)
	printConfig(out, cfg, path)
	return nil
}

func printConfig(out io.Writer, cfg *config.Config, path string) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, TitleStyle.Render("claude-chat Configuration"))
	fmt.Fprintln(out, RenderSeparator(41))

	section := func(name string) {
		fmt.Fprintln(out)
		fmt.Fprintln(out, SectionStyle.Render("["+name+"]"))
	}
	field := func(key, value string) {
		fmt.Fprintf(out, "  %s%s\n", LabelStyle.Width(configKeyWidth).Render(key+":"), ValueStyle.Render(value))
	}

	section("models")
	field("fast", cfg.Models.Fast)
	field("default", cfg.Models.Default)
	field("max_tokens", strconv.Itoa(cfg.Models.MaxTokens))

	section("api")
	field("key", maskAPIKey(cfg.API.Key))
	field("base_url", cfg.API.BaseURL)
	field("version", cfg.API.Version)
	field("timeout_seconds", strconv.Itoa(cfg.API.TimeoutSeconds))
	field("max_retries", strconv.Itoa(cfg.API.MaxRetries))
	field("requests_per_minute", strconv.Itoa(cfg.API.RequestsPerMinute))

	section("display")
	field("renderer", cfg.Display.Renderer)
	field("code_style", cfg.Display.CodeStyle)
	field("typewriter", strconv.FormatBool(cfg.Display.Typewriter))
	field("typewriter_delay_ms", strconv.Itoa(cfg.Display.TypewriterDelayMs))
	field("stream", strconv.FormatBool(cfg.Display.Stream))
	field("show_usage", strconv.FormatBool(cfg.Display.ShowUsage))

	section("history")
	field("dir", cfg.History.Dir)

	section("logging")
	field("level", cfg.Logging.Level)
	field("file", cfg.Logging.File)

	section("telemetry")
	field("enabled", strconv.FormatBool(cfg.Telemetry.Enabled))
	field("dir", cfg.Telemetry.Dir)
	field("usage_db", cfg.Telemetry.UsageDB)

	fmt.Fprintln(out)
	fmt.Fprintln(out, RenderSeparator(41))
	fmt.Fprintf(out, "Config file: %s\n", DimStyle.Render(path))
	fmt.Fprintln(out)
}

func runConfigInit(cmd *cobra.Command, flags *rootFlags, force bool) error {
	path, err := configFilePath(flags)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if _, statErr := os.Stat(path); statErr == nil {
		ok, err := RequireConfirmation(cmd.InOrStdin(), out, force, "overwrite "+path)
		if err != nil {
			return NewCommandError("config", "init", "file exists", err)
		}
		if !ok {
			ShowCancellationMessage(out)
			return nil
		}
	}

	if err := config.SaveTOML(config.Default(), path); err != nil {
		return NewCommandError("config", "init", "cannot write config", err)
	}
	fmt.Fprintf(out, "%s %s\n", SuccessStyle.Render("Wrote"), path)
	return nil
}

// maskAPIKey shows a SHA-256 fingerprint instead of any part of the key.
func maskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) < 8 {
		return "[invalid key]"
	}
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("sha256:%x...", hash[:4])
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "claude-chat %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
		},
	}
}
