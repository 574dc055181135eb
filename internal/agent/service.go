// Package agent defines the boundary to the external agent backend that
// plays each civilization. The turn pipeline only ever sees this interface;
// every method may fail, and failures are deliberately not retried or
// absorbed here — the HTTP boundary falls back to local simulation instead.
package agent

import (
	"context"

	"github.com/serrrfirat/iso-civ-sub000/internal/game"
)

// ArtifactProposal is a cultural artifact proposed during planning, before
// the pipeline stamps it with an id and turn.
type ArtifactProposal struct {
	Kind        string `json:"kind"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// PlanDecision is the planning-phase output for one civilization.
type PlanDecision struct {
	Actions   []game.Action
	Artifacts []ArtifactProposal
	// Constitution/religion naming is only honored on turn 1.
	ConstitutionName string
	ReligionName     string
}

// CultureSummary is the periodic cultural summarization output.
type CultureSummary struct {
	Summary string `json:"summary"`
}

// Service is the asynchronous agent contract. Implementations must treat
// the passed state as read-only.
type Service interface {
	// Diplomacy returns the civilization's outgoing messages given the
	// messages already addressed to it this turn.
	Diplomacy(ctx context.Context, civID string, gs *game.GameState, inbox []game.DiplomacyMessage) ([]game.DiplomacyMessage, error)

	// Plan returns proposed actions and cultural output given a flattened
	// rendering of this turn's diplomacy.
	Plan(ctx context.Context, civID string, gs *game.GameState, diplomacyContext string) (*PlanDecision, error)

	// SummarizeCulture condenses a civilization's artifacts into a prose
	// summary. A nil summary with nil error means "nothing to say".
	SummarizeCulture(ctx context.Context, civID string, gs *game.GameState) (*CultureSummary, error)

	// Narrate produces a single narrative string for the whole turn.
	Narrate(ctx context.Context, events []string, gs *game.GameState) (string, error)
}
