package game

import (
	"encoding/json"
	"fmt"
)

// Clone deep-copies the state via the same JSON encoding used for
// persistence. The boundary snapshots a game this way before an
// agent-driven turn so a failed attempt can fall back from a pristine copy.
func (gs *GameState) Clone() (*GameState, error) {
	raw, err := json.Marshal(gs)
	if err != nil {
		return nil, fmt.Errorf("encoding state for clone: %w", err)
	}
	var out GameState
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding state clone: %w", err)
	}
	return &out, nil
}
