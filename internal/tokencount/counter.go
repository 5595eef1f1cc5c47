// Package tokencount estimates the metering cost of chat content.
//
// The estimate must be deterministic: for a fixed input the same cost is
// always produced, independent of caller, time, or environment. The exact
// algorithm is pluggable behind Counter; billing correctness only relies on
// stability, not on matching the provider's tokenizer exactly.
package tokencount

import (
	"encoding/json"
	"unicode/utf8"
)

// Counter estimates token costs for text.
type Counter interface {
	CountText(s string) int
}

// Message is the unit of chat content priced per request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// Cost is the precomputed price of one request. The gate uses the same
// Cost value for the quota check and the usage charge; recomputing between
// the two would risk charging a different amount than was authorized.
type Cost struct {
	Overhead int64
	Messages int64
}

// Total is the amount checked against the cap and charged on admission.
func (c Cost) Total() int64 {
	return c.Overhead + c.Messages
}

// Heuristic approximates BPE tokenization at roughly four bytes per token.
type Heuristic struct{}

// NewHeuristic returns the default cost estimator.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// CountText returns a non-negative, deterministic token estimate.
func (h *Heuristic) CountText(s string) int {
	if s == "" {
		return 0
	}
	runes := utf8.RuneCountInString(s)
	count := (runes + 3) / 4
	if count == 0 {
		count = 1
	}
	return count
}

// RequestCost prices one chat request: fixed overhead (system prompt plus
// the serialized tool schema sent on every call) and the sum of per-message
// content costs.
func RequestCost(counter Counter, systemPrompt string, toolSchema interface{}, messages []Message) (Cost, error) {
	var cost Cost

	cost.Overhead = int64(counter.CountText(systemPrompt))
	if toolSchema != nil {
		raw, err := json.Marshal(toolSchema)
		if err != nil {
			return Cost{}, err
		}
		cost.Overhead += int64(counter.CountText(string(raw)))
	}

	for _, msg := range messages {
		cost.Messages += int64(counter.CountText(msg.Content))
	}

	return cost, nil
}
