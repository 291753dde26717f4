// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for claude-chat.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - ModelsConfig: Fast and default model identifiers injected into the selector
//   - DisplayConfig: Renderer, code style and typewriter settings
//   - TelemetryConfig: Trace export and the usage ledger
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Command-line flags
//   - Environment variables (ANTHROPIC_API_KEY, CLAUDE_CHAT_*)
//   - .env in the working directory
//   - ~/.claude-chat/config.toml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	fast := cfg.Models.Fast
package config
