// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/jeranaias/claude-chat/internal/anthropic"
	"github.com/jeranaias/claude-chat/internal/model"
)

// =============================================================================
// COST TRACKER
// =============================================================================

// CostTracker keeps running totals for one session and writes every call to
// the ledger. A nil store keeps the totals in memory only.
type CostTracker struct {
	mu      sync.RWMutex
	store   *UsageStore
	session SessionCost
}

// SessionCost tracks costs for a single session.
type SessionCost struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"start_time"`

	Calls  int        `json:"calls"`
	Tokens TokenCount `json:"tokens"`

	// TotalCost is in dollars
	TotalCost float64 `json:"total_cost"`
}

// TokenCount tracks input/output tokens.
type TokenCount struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// =============================================================================
// CONSTRUCTOR
// =============================================================================

// NewCostTracker creates a tracker for sessionID.
func NewCostTracker(store *UsageStore, sessionID string) *CostTracker {
	return &CostTracker{
		store: store,
		session: SessionCost{
			ID:        sessionID,
			StartTime: time.Now(),
		},
	}
}

// =============================================================================
// RECORDING
// =============================================================================

// Record adds one call to the session totals and the ledger. The totals are
// updated even when the ledger write fails.
func (ct *CostTracker) Record(ctx context.Context, modelID string, usage anthropic.Usage, duration time.Duration) error {
	cost := EstimateCost(modelID, usage)

	ct.mu.Lock()
	ct.session.Calls++
	ct.session.Tokens.Input += usage.InputTokens
	ct.session.Tokens.Output += usage.OutputTokens
	ct.session.TotalCost += cost
	sessionID := ct.session.ID
	ct.mu.Unlock()

	if ct.store == nil {
		return nil
	}
	return ct.store.Record(ctx, UsageRecord{
		SessionID:    sessionID,
		Model:        modelID,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		CostUSD:      cost,
		Duration:     duration,
	})
}

// EstimateCost prices usage from the model table. Unknown models cost 0.
func EstimateCost(modelID string, usage anthropic.Usage) float64 {
	info, ok := model.GetModelInfo(modelID)
	if !ok {
		return 0
	}
	return info.Cost(usage.InputTokens, usage.OutputTokens)
}

// =============================================================================
// RETRIEVAL
// =============================================================================

// GetCurrentSession returns a copy of the session totals.
func (ct *CostTracker) GetCurrentSession() SessionCost {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.session
}
