// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the claude-chat command tree.
//
// The root command sends a one-shot prompt and offers to continue as a
// conversation; chat starts the conversation directly. Both load the TOML
// config, start the rotating log, telemetry and the usage ledger, and hand a
// wired session.Session to the terminal.
//
// # Commands
//
//   - claude-chat [prompt...]: one-shot prompt
//   - chat: conversation mode
//   - usage: token usage ledger summary
//   - models: known models and prices
//   - config show|init|path: configuration management
//   - version: build information
//
// Errors are returned, displayed once by Execute and mapped to an exit code
// by GetExitCode.
package cli
