// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// MODEL INFO TYPE
// =============================================================================

// ModelInfo describes a Claude model and its list price.
type ModelInfo struct {
	// ID is the model identifier used in API calls
	ID string `json:"id"`

	// Name is the human-readable display name
	Name string `json:"name"`

	// Family is haiku, sonnet or opus. Unknown IDs are priced by family.
	Family string `json:"family"`

	// InputPerMTok and OutputPerMTok are USD per million tokens
	InputPerMTok  float64 `json:"input_per_mtok"`
	OutputPerMTok float64 `json:"output_per_mtok"`

	// ContextWindow is the maximum context size in tokens
	ContextWindow int `json:"context_window"`
}

// =============================================================================
// MODEL REGISTRY
// =============================================================================

// Models is the registry of known models, keyed by short name.
var Models = map[string]ModelInfo{
	"haiku": {
		ID:            "claude-3-haiku-20240307",
		Name:          "Claude 3 Haiku",
		Family:        "haiku",
		InputPerMTok:  0.25,
		OutputPerMTok: 1.25,
		ContextWindow: 200000,
	},
	"sonnet": {
		ID:            "claude-3-sonnet-20240229",
		Name:          "Claude 3 Sonnet",
		Family:        "sonnet",
		InputPerMTok:  3,
		OutputPerMTok: 15,
		ContextWindow: 200000,
	},
	"opus": {
		ID:            "claude-3-opus-20240229",
		Name:          "Claude 3 Opus",
		Family:        "opus",
		InputPerMTok:  15,
		OutputPerMTok: 75,
		ContextWindow: 200000,
	},
	"haiku-3.5": {
		ID:            "claude-3-5-haiku-20241022",
		Name:          "Claude 3.5 Haiku",
		Family:        "haiku",
		InputPerMTok:  0.80,
		OutputPerMTok: 4,
		ContextWindow: 200000,
	},
	"sonnet-3.5": {
		ID:            "claude-3-5-sonnet-20241022",
		Name:          "Claude 3.5 Sonnet",
		Family:        "sonnet",
		InputPerMTok:  3,
		OutputPerMTok: 15,
		ContextWindow: 200000,
	},
}

// familyDefaults prices IDs that are not in the registry.
var familyDefaults = map[string]string{
	"haiku":  "haiku",
	"sonnet": "sonnet",
	"opus":   "opus",
}

// Cost returns the USD cost of a call with the given token counts.
func (m ModelInfo) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1e6*m.InputPerMTok + float64(outputTokens)/1e6*m.OutputPerMTok
}

// CostString returns the price as "$in/$out per MTok".
func (m ModelInfo) CostString() string {
	if m.InputPerMTok == 0 && m.OutputPerMTok == 0 {
		return "unknown"
	}
	return fmt.Sprintf("$%.2f/$%.2f per MTok", m.InputPerMTok, m.OutputPerMTok)
}

// ContextString returns a formatted context window string.
func (m ModelInfo) ContextString() string {
	if m.ContextWindow >= 1000000 {
		return fmt.Sprintf("%.1fM tokens", float64(m.ContextWindow)/1000000)
	}
	if m.ContextWindow >= 1000 {
		return fmt.Sprintf("%dK tokens", m.ContextWindow/1000)
	}
	return fmt.Sprintf("%d tokens", m.ContextWindow)
}

// =============================================================================
// MODEL LOOKUP FUNCTIONS
// =============================================================================

// GetModelInfo looks up a model by short name or ID. IDs missing from the
// registry fall back to the first family name they contain, keeping their own ID.
func GetModelInfo(nameOrID string) (ModelInfo, bool) {
	// Try direct lookup by short name
	if info, ok := Models[nameOrID]; ok {
		return info, true
	}

	// Try lookup by ID
	for _, info := range Models {
		if info.ID == nameOrID {
			return info, true
		}
	}

	lower := strings.ToLower(nameOrID)
	for _, family := range []string{"haiku", "sonnet", "opus"} {
		if strings.Contains(lower, family) {
			info := Models[familyDefaults[family]]
			info.ID = nameOrID
			info.Name = nameOrID
			return info, true
		}
	}

	return ModelInfo{}, false
}

// ResolveID maps a short name to its model ID. Anything else is returned unchanged.
func ResolveID(nameOrID string) string {
	if info, ok := Models[strings.ToLower(strings.TrimSpace(nameOrID))]; ok {
		return info.ID
	}
	return nameOrID
}

// ModelShortNames returns the registry keys in sorted order.
func ModelShortNames() []string {
	names := make([]string, 0, len(Models))
	for name := range Models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
