package events

import (
	"time"
)

// Event type constants. The turn pipeline publishes the eight phase
// start/complete pairs plus turn.completed in a fixed order each turn.
const (
	TypeDiplomacyStarted    = "phase.diplomacy.started"
	TypeDiplomacyCompleted  = "phase.diplomacy.completed"
	TypePlanningStarted     = "phase.planning.started"
	TypePlanningCompleted   = "phase.planning.completed"
	TypeResolutionStarted   = "phase.resolution.started"
	TypeResolutionCompleted = "phase.resolution.completed"
	TypeNarrationStarted    = "phase.narration.started"
	TypeNarrationCompleted  = "phase.narration.completed"
	TypeTurnCompleted       = "turn.completed"
	TypeActionRejected      = "action.rejected"
	TypeGameWon             = "game.won"
)

// PhaseEvent is published at the start and end of each turn phase.
type PhaseEvent struct {
	BaseEvent
	Phase string `json:"phase"`
	Turn  int    `json:"turn"`
}

// NewPhaseEvent creates a PhaseEvent with the given type constant.
func NewPhaseEvent(eventType, gameID, phase string, turn int) *PhaseEvent {
	return &PhaseEvent{
		BaseEvent: BaseEvent{
			EventType: eventType,
			Time:      time.Now(),
			Game:      gameID,
		},
		Phase: phase,
		Turn:  turn,
	}
}

// TurnCompletedEvent is published after a turn finalizes.
type TurnCompletedEvent struct {
	BaseEvent
	Turn      int    `json:"turn"`
	Narration string `json:"narration,omitempty"`
	Winner    string `json:"winner,omitempty"`
}

// NewTurnCompletedEvent creates a new TurnCompletedEvent.
func NewTurnCompletedEvent(gameID string, turn int, narration, winner string) *TurnCompletedEvent {
	return &TurnCompletedEvent{
		BaseEvent: BaseEvent{
			EventType: TypeTurnCompleted,
			Time:      time.Now(),
			Game:      gameID,
		},
		Turn:      turn,
		Narration: narration,
		Winner:    winner,
	}
}

// ActionRejectedEvent is published when a proposed action fails validation.
// Rejection is an expected outcome; the event exists for observability, not
// error handling.
type ActionRejectedEvent struct {
	BaseEvent
	CivID  string `json:"civ_id"`
	Action string `json:"action"`
	Reason string `json:"reason"`
	Turn   int    `json:"turn"`
}

// NewActionRejectedEvent creates a new ActionRejectedEvent.
func NewActionRejectedEvent(gameID, civID, action, reason string, turn int) *ActionRejectedEvent {
	return &ActionRejectedEvent{
		BaseEvent: BaseEvent{
			EventType: TypeActionRejected,
			Time:      time.Now(),
			Game:      gameID,
		},
		CivID:  civID,
		Action: action,
		Reason: reason,
		Turn:   turn,
	}
}

// GameWonEvent is published once when a victory condition is met.
type GameWonEvent struct {
	BaseEvent
	Winner    string `json:"winner"`
	Condition string `json:"condition"`
	Turn      int    `json:"turn"`
}

// NewGameWonEvent creates a new GameWonEvent.
func NewGameWonEvent(gameID, winner, condition string, turn int) *GameWonEvent {
	return &GameWonEvent{
		BaseEvent: BaseEvent{
			EventType: TypeGameWon,
			Time:      time.Now(),
			Game:      gameID,
		},
		Winner:    winner,
		Condition: condition,
		Turn:      turn,
	}
}
