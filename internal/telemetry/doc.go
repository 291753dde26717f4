// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides cost tracking and OpenTelemetry export for claude-chat.
//
// Every successful API call is recorded in a local SQLite usage ledger with
// its token counts and an estimated cost from the model price table.
// Optional tracing and metrics are exported as JSON to rotating files.
//
// # Key Types
//
//   - CostTracker: per-session totals, backed by the ledger
//   - UsageStore: SQLite ledger of individual calls
//   - UsageRecord: one call with tokens, cost and timestamp
//
// # Usage
//
//	store, err := telemetry.OpenUsageStore(path)
//	tracker := telemetry.NewCostTracker(store, sessionID)
//	tracker.Record(ctx, resp.Model, resp.Usage, elapsed)
//
// # Privacy
//
// Usage tracking is local-only and does not transmit any data.
// Prompt and response text is never stored, only token counts and costs.
package telemetry
