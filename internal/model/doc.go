// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// A Transcript is the append-only list of Messages exchanged in one session.
// The same ordered list is sent to the API, shown to the user and written to
// the history file. Models is a small registry of Claude models and their
// list prices, used to estimate spend in the usage ledger.
package model
