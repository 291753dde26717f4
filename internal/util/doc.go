// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across claude-chat.
//
// # Key Functions
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - TruncateWidth, PadRight, StringWidth: display-width aware helpers
//   - OneLine: collapse a multi-line string for previews
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
package util
