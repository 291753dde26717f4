// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history saves finished conversations as flat text transcripts.
//
// Each saved file is named after a timestamp and a short hyphenated slug
// that the fast model produces from the conversation. Files are written once
// and never read back.
//
// # Storage Location
//
// Transcripts are stored in ./history/ by default (relative to the working
// directory), configurable through [history] dir:
//
//	history/2024-03-07-14:05:09-python-list-comprehension.txt
//
// # File Format
//
// One block per message, separated by blank lines:
//
//	You: What is 2+2?
//
//	Claude: 4
package history
