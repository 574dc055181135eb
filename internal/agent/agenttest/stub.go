// Package agenttest provides a configurable in-memory agent for tests.
package agenttest

import (
	"context"
	"sync"

	"github.com/serrrfirat/iso-civ-sub000/internal/agent"
	"github.com/serrrfirat/iso-civ-sub000/internal/game"
)

// Stub implements agent.Service with overridable behavior and call
// counting. The zero value returns empty diplomacy, empty plans, nil
// summaries and a fixed narration.
type Stub struct {
	mu sync.Mutex

	DiplomacyFn func(civID string, gs *game.GameState, inbox []game.DiplomacyMessage) ([]game.DiplomacyMessage, error)
	PlanFn      func(civID string, gs *game.GameState, diplomacyContext string) (*agent.PlanDecision, error)
	SummaryFn   func(civID string, gs *game.GameState) (*agent.CultureSummary, error)
	NarrateFn   func(events []string, gs *game.GameState) (string, error)

	DiplomacyCalls []string
	PlanCalls      []string
	SummaryCalls   []string
	NarrateCalls   int
}

// FixedNarration is the default narration returned by the zero-value stub.
const FixedNarration = "Turn passes."

var _ agent.Service = (*Stub)(nil)

// Diplomacy implements agent.Service.
func (s *Stub) Diplomacy(ctx context.Context, civID string, gs *game.GameState, inbox []game.DiplomacyMessage) ([]game.DiplomacyMessage, error) {
	s.mu.Lock()
	s.DiplomacyCalls = append(s.DiplomacyCalls, civID)
	s.mu.Unlock()
	if s.DiplomacyFn != nil {
		return s.DiplomacyFn(civID, gs, inbox)
	}
	return nil, nil
}

// Plan implements agent.Service.
func (s *Stub) Plan(ctx context.Context, civID string, gs *game.GameState, diplomacyContext string) (*agent.PlanDecision, error) {
	s.mu.Lock()
	s.PlanCalls = append(s.PlanCalls, civID)
	s.mu.Unlock()
	if s.PlanFn != nil {
		return s.PlanFn(civID, gs, diplomacyContext)
	}
	return &agent.PlanDecision{}, nil
}

// SummarizeCulture implements agent.Service.
func (s *Stub) SummarizeCulture(ctx context.Context, civID string, gs *game.GameState) (*agent.CultureSummary, error) {
	s.mu.Lock()
	s.SummaryCalls = append(s.SummaryCalls, civID)
	s.mu.Unlock()
	if s.SummaryFn != nil {
		return s.SummaryFn(civID, gs)
	}
	return nil, nil
}

// Narrate implements agent.Service.
func (s *Stub) Narrate(ctx context.Context, events []string, gs *game.GameState) (string, error) {
	s.mu.Lock()
	s.NarrateCalls++
	s.mu.Unlock()
	if s.NarrateFn != nil {
		return s.NarrateFn(events, gs)
	}
	return FixedNarration, nil
}
