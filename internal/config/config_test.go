// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultFastModel, cfg.Models.Fast)
	assert.Equal(t, DefaultDefaultModel, cfg.Models.Default)
	assert.Equal(t, 1000, cfg.Models.MaxTokens)
	assert.Equal(t, "history", cfg.History.Dir)
	assert.Equal(t, 2*time.Millisecond, cfg.TypewriterDelay())
	require.NoError(t, cfg.Validate())
}

func TestTypewriterDelay_Disabled(t *testing.T) {
	cfg := Default()
	cfg.Display.Typewriter = false
	if got := cfg.TypewriterDelay(); got != 0 {
		t.Errorf("TypewriterDelay() = %v, want 0", got)
	}
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("CLAUDE_CHAT_MODEL_FAST", "")
	t.Setenv("CLAUDE_CHAT_MODEL_DEFAULT", "")

	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultFastModel, cfg.Models.Fast)
}

func TestLoadFromPath_TOMLOverlay(t *testing.T) {
	t.Setenv("CLAUDE_CHAT_MODEL_FAST", "")
	t.Setenv("CLAUDE_CHAT_HISTORY_DIR", "")

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[models]
fast = "claude-3-5-haiku-latest"
max_tokens = 2048

[display]
renderer = "glamour"
typewriter = false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "claude-3-5-haiku-latest", cfg.Models.Fast)
	assert.Equal(t, DefaultDefaultModel, cfg.Models.Default, "unset keys keep defaults")
	assert.Equal(t, 2048, cfg.Models.MaxTokens)
	assert.Equal(t, "glamour", cfg.Display.Renderer)
	assert.False(t, cfg.Display.Typewriter)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm(), "config file permissions are tightened on load")
}

func TestLoadFromPath_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[models\nfast="), 0600))

	_, err := LoadFromPath(path)
	require.Error(t, err)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("CLAUDE_CHAT_MODEL_FAST", "fast-model")
	t.Setenv("CLAUDE_CHAT_MODEL_DEFAULT", "default-model")
	t.Setenv("CLAUDE_CHAT_HISTORY_DIR", "/tmp/transcripts")
	t.Setenv("CLAUDE_CHAT_LOG_LEVEL", "debug")
	t.Setenv("CLAUDE_CHAT_TELEMETRY", "true")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "sk-ant-test", cfg.API.Key)
	assert.Equal(t, "fast-model", cfg.Models.Fast)
	assert.Equal(t, "default-model", cfg.Models.Default)
	assert.Equal(t, "/tmp/transcripts", cfg.History.Dir)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Telemetry.Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty fast model", func(c *Config) { c.Models.Fast = " " }, "models.fast"},
		{"zero max tokens", func(c *Config) { c.Models.MaxTokens = 0 }, "models.max_tokens"},
		{"bad base url", func(c *Config) { c.API.BaseURL = "not a url" }, "api.base_url"},
		{"ftp base url", func(c *Config) { c.API.BaseURL = "ftp://example.com" }, "api.base_url"},
		{"too many retries", func(c *Config) { c.API.MaxRetries = 11 }, "api.max_retries"},
		{"unknown renderer", func(c *Config) { c.Display.Renderer = "html" }, "display.renderer"},
		{"negative delay", func(c *Config) { c.Display.TypewriterDelayMs = -1 }, "display.typewriter_delay_ms"},
		{"empty history dir", func(c *Config) { c.History.Dir = "" }, "history.dir"},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var verrs ValidateErrors
			require.True(t, errors.As(err, &verrs))
			found := false
			for _, v := range verrs {
				if v.Field == tt.field {
					found = true
				}
			}
			assert.True(t, found, "expected error on %s, got %v", tt.field, err)
		})
	}
}

func TestSaveTOML_OmitsKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.API.Key = "sk-ant-secret"
	require.NoError(t, SaveTOML(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-ant-secret")
	assert.Contains(t, string(data), DefaultFastModel)
	assert.Equal(t, "sk-ant-secret", cfg.API.Key, "caller's config is not modified")
}

func TestString_RedactsKey(t *testing.T) {
	cfg := Default()
	cfg.API.Key = "sk-ant-secret"

	s := cfg.String()
	if strings.Contains(s, "sk-ant-secret") {
		t.Error("String() leaked the API key")
	}
	if !strings.Contains(s, "[REDACTED]") {
		t.Error("String() should mark the key as redacted")
	}
}
