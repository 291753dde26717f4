// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for claude-chat.
//
// Configuration is layered in this order, later layers winning:
//   - Built-in defaults
//   - ~/.claude-chat/config.toml
//   - .env in the working directory
//   - Environment variables
//   - Command-line flags (applied by the cli package)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/claude-chat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete claude-chat configuration.
type Config struct {
	// Version of the config file layout
	Version string `toml:"version" json:"version"`

	Models    ModelsConfig    `toml:"models" json:"models"`
	API       APIConfig       `toml:"api" json:"api"`
	Display   DisplayConfig   `toml:"display" json:"display"`
	History   HistoryConfig   `toml:"history" json:"history"`
	Logging   LoggingConfig   `toml:"logging" json:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry" json:"telemetry"`
}

// ModelsConfig names the model identifiers the selector chooses between.
type ModelsConfig struct {
	// Fast is used for short prompts, --short, and conversation summaries
	Fast string `toml:"fast" json:"fast"`
	// Default is used for everything else
	Default string `toml:"default" json:"default"`
	// MaxTokens is the default response budget
	MaxTokens int `toml:"max_tokens" json:"max_tokens"`
}

// APIConfig contains Anthropic API settings.
type APIConfig struct {
	// Key is normally supplied through ANTHROPIC_API_KEY rather than the file
	Key            string `toml:"key" json:"key"`
	BaseURL        string `toml:"base_url" json:"base_url"`
	Version        string `toml:"version" json:"version"`
	TimeoutSeconds int    `toml:"timeout_seconds" json:"timeout_seconds"`
	MaxRetries     int    `toml:"max_retries" json:"max_retries"`
	// RequestsPerMinute paces outgoing calls (0 = unlimited)
	RequestsPerMinute int `toml:"requests_per_minute" json:"requests_per_minute"`
}

// DisplayConfig controls how responses are rendered.
type DisplayConfig struct {
	// Renderer is "inline" (built-in formatter) or "glamour"
	Renderer string `toml:"renderer" json:"renderer"`
	// CodeStyle is a chroma style name used for fenced code
	CodeStyle string `toml:"code_style" json:"code_style"`
	// TypewriterDelayMs is the per-character delay; 0 prints at once
	TypewriterDelayMs int  `toml:"typewriter_delay_ms" json:"typewriter_delay_ms"`
	Typewriter        bool `toml:"typewriter" json:"typewriter"`
	Stream            bool `toml:"stream" json:"stream"`
	ShowUsage         bool `toml:"show_usage" json:"show_usage"`
}

// HistoryConfig controls transcript persistence.
type HistoryConfig struct {
	// Dir is relative to the working directory unless absolute
	Dir string `toml:"dir" json:"dir"`
}

// LoggingConfig controls the rotating log file.
type LoggingConfig struct {
	Level string `toml:"level" json:"level"`
	// File defaults to <config dir>/logs/claude-chat.log
	File       string `toml:"file" json:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days"`
}

// TelemetryConfig controls tracing, metrics and the usage ledger.
type TelemetryConfig struct {
	// Enabled turns on OpenTelemetry trace and metric export to files
	Enabled bool `toml:"enabled" json:"enabled"`
	// Dir holds trace/metric files; defaults to <config dir>/telemetry
	Dir string `toml:"dir" json:"dir"`
	// UsageDB is the SQLite usage ledger; empty disables recording
	UsageDB string `toml:"usage_db" json:"usage_db"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default model identifiers.
const (
	DefaultFastModel    = "claude-3-haiku-20240307"
	DefaultDefaultModel = "claude-3-sonnet-20240229"
	DefaultMaxTokens    = 1000
	DefaultBaseURL      = "https://api.anthropic.com"
	DefaultAPIVersion   = "2023-06-01"
	DefaultHistoryDir   = "history"
)

// Default returns a configuration populated with built-in defaults.
func Default() *Config {
	dir, err := ConfigDir()
	if err != nil {
		dir = ".claude-chat"
	}
	return &Config{
		Version: "1",
		Models: ModelsConfig{
			Fast:      DefaultFastModel,
			Default:   DefaultDefaultModel,
			MaxTokens: DefaultMaxTokens,
		},
		API: APIConfig{
			BaseURL:        DefaultBaseURL,
			Version:        DefaultAPIVersion,
			TimeoutSeconds: 120,
			MaxRetries:     3,
		},
		Display: DisplayConfig{
			Renderer:          "inline",
			CodeStyle:         "monokai",
			TypewriterDelayMs: 2,
			Typewriter:        true,
		},
		History: HistoryConfig{
			Dir: DefaultHistoryDir,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       filepath.Join(dir, "logs", "claude-chat.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Telemetry: TelemetryConfig{
			Dir:     filepath.Join(dir, "telemetry"),
			UsageDB: filepath.Join(dir, "usage.db"),
		},
	}
}

// Timeout returns the HTTP timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// TypewriterDelay returns the per-character render delay.
func (c *Config) TypewriterDelay() time.Duration {
	if !c.Display.Typewriter {
		return 0
	}
	return time.Duration(c.Display.TypewriterDelayMs) * time.Millisecond
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the claude-chat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".claude-chat"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ensureSecurePermissions tightens a config file to 0600 since it may hold a key.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the default path. A missing file is not an error.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads defaults, overlays the TOML file at path if it exists,
// then applies .env and environment overrides and validates the result.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := LoadTOML(cfg, path); err != nil {
				return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
			}
		}
	}

	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		fmt.Fprintf(os.Stderr, "Warning: unknown config keys ignored: %s\n", strings.Join(keys, ", "))
	}
	return nil
}

// LoadDotEnv loads a .env file from the working directory into the process
// environment. Variables already set are not overwritten, and a missing file
// is not an error.
func LoadDotEnv(filenames ...string) error {
	if err := godotenv.Load(filenames...); err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			return nil
		}
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML writes cfg to path with 0600 permissions. The API key is never written.
func SaveTOML(cfg *Config, path string) error {
	safe := cfg.Clone()
	safe.API.Key = ""

	var b strings.Builder
	b.WriteString("# claude-chat configuration file\n")
	b.WriteString("# The API key is read from ANTHROPIC_API_KEY and is not stored here.\n\n")
	if err := toml.NewEncoder(&b).Encode(safe); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFileWithDir(path, []byte(b.String()), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if strings.TrimSpace(c.Models.Fast) == "" {
		errs = append(errs, ValidationError{Field: "models.fast", Message: "must not be empty"})
	}
	if strings.TrimSpace(c.Models.Default) == "" {
		errs = append(errs, ValidationError{Field: "models.default", Message: "must not be empty"})
	}
	if c.Models.MaxTokens <= 0 {
		errs = append(errs, ValidationError{
			Field:   "models.max_tokens",
			Message: fmt.Sprintf("must be positive, got %d", c.Models.MaxTokens),
		})
	}

	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "api.base_url",
			Message: fmt.Sprintf("invalid URL '%s'", c.API.BaseURL),
		})
	} else if u.Scheme != "https" && u.Scheme != "http" {
		errs = append(errs, ValidationError{
			Field:   "api.base_url",
			Message: fmt.Sprintf("unsupported scheme '%s'", u.Scheme),
		})
	}
	if c.API.TimeoutSeconds < 0 {
		errs = append(errs, ValidationError{Field: "api.timeout_seconds", Message: "must not be negative"})
	}
	if c.API.MaxRetries < 0 || c.API.MaxRetries > 10 {
		errs = append(errs, ValidationError{
			Field:   "api.max_retries",
			Message: fmt.Sprintf("must be between 0 and 10, got %d", c.API.MaxRetries),
		})
	}
	if c.API.RequestsPerMinute < 0 {
		errs = append(errs, ValidationError{Field: "api.requests_per_minute", Message: "must not be negative"})
	}

	switch strings.ToLower(c.Display.Renderer) {
	case "inline", "glamour":
	default:
		errs = append(errs, ValidationError{
			Field:   "display.renderer",
			Message: fmt.Sprintf("invalid renderer '%s', must be one of: inline, glamour", c.Display.Renderer),
		})
	}
	if c.Display.TypewriterDelayMs < 0 || c.Display.TypewriterDelayMs > 1000 {
		errs = append(errs, ValidationError{
			Field:   "display.typewriter_delay_ms",
			Message: fmt.Sprintf("must be between 0 and 1000, got %d", c.Display.TypewriterDelayMs),
		})
	}

	if strings.TrimSpace(c.History.Dir) == "" {
		errs = append(errs, ValidationError{Field: "history.dir", Message: "must not be empty"})
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Logging.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero values left by a partial config file.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Models.Fast == "" {
		c.Models.Fast = d.Models.Fast
	}
	if c.Models.Default == "" {
		c.Models.Default = d.Models.Default
	}
	if c.Models.MaxTokens == 0 {
		c.Models.MaxTokens = d.Models.MaxTokens
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = d.API.BaseURL
	}
	if c.API.Version == "" {
		c.API.Version = d.API.Version
	}
	if c.API.TimeoutSeconds == 0 {
		c.API.TimeoutSeconds = d.API.TimeoutSeconds
	}
	if c.Display.Renderer == "" {
		c.Display.Renderer = d.Display.Renderer
	}
	if c.Display.CodeStyle == "" {
		c.Display.CodeStyle = d.Display.CodeStyle
	}
	if c.History.Dir == "" {
		c.History.Dir = d.History.Dir
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.File == "" {
		c.Logging.File = d.Logging.File
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = d.Logging.MaxSizeMB
	}
	if c.Telemetry.Dir == "" {
		c.Telemetry.Dir = d.Telemetry.Dir
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - ANTHROPIC_API_KEY: api.key
//   - CLAUDE_CHAT_MODEL_FAST: models.fast
//   - CLAUDE_CHAT_MODEL_DEFAULT: models.default
//   - CLAUDE_CHAT_BASE_URL: api.base_url
//   - CLAUDE_CHAT_HISTORY_DIR: history.dir
//   - CLAUDE_CHAT_LOG_LEVEL: logging.level
//   - CLAUDE_CHAT_TELEMETRY: "1" or "true" enables telemetry export
func (c *Config) ApplyEnvOverrides() {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.API.Key = key
	}
	if model := os.Getenv("CLAUDE_CHAT_MODEL_FAST"); model != "" {
		c.Models.Fast = model
	}
	if model := os.Getenv("CLAUDE_CHAT_MODEL_DEFAULT"); model != "" {
		c.Models.Default = model
	}
	if baseURL := os.Getenv("CLAUDE_CHAT_BASE_URL"); baseURL != "" {
		c.API.BaseURL = baseURL
	}
	if dir := os.Getenv("CLAUDE_CHAT_HISTORY_DIR"); dir != "" {
		c.History.Dir = dir
	}
	if level := os.Getenv("CLAUDE_CHAT_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if enabled := os.Getenv("CLAUDE_CHAT_TELEMETRY"); enabled != "" {
		c.Telemetry.Enabled = enabled == "1" || strings.EqualFold(enabled, "true")
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// Clone returns a copy of the config. Config holds no maps or slices, so a
// value copy is a deep copy.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns an indented JSON rendering with the API key masked.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.API.Key != "" {
		safe.API.Key = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
