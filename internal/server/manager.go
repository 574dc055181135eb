package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/serrrfirat/iso-civ-sub000/internal/agent"
	"github.com/serrrfirat/iso-civ-sub000/internal/game"
	"github.com/serrrfirat/iso-civ-sub000/internal/game/events"
	"github.com/serrrfirat/iso-civ-sub000/internal/game/mapgen"
	"github.com/serrrfirat/iso-civ-sub000/internal/game/ruleset"
	"github.com/serrrfirat/iso-civ-sub000/internal/game/turn"
)

// AdvanceSource identifies which pipeline produced a turn.
type AdvanceSource string

const (
	// SourceAgent means the agent-driven orchestrator produced the turn.
	SourceAgent AdvanceSource = "agent"
	// SourceLocal means the local simulator produced the turn, either
	// because the backend was unavailable or because the agent attempt
	// failed.
	SourceLocal AdvanceSource = "local"
	// SourceNone means nothing happened: the game already has a winner.
	SourceNone AdvanceSource = "none"
)

// AdvanceOutcome reports a completed advance: the resulting state and which
// pipeline produced it. AgentErr carries the discarded agent failure when
// the turn fell back to local simulation.
type AdvanceOutcome struct {
	State    *game.GameState
	Source   AdvanceSource
	AgentErr error
}

// availabilityProber is implemented by agent services that can be probed
// before committing to an agent-driven turn.
type availabilityProber interface {
	Available(ctx context.Context) bool
}

type managedGame struct {
	mu    sync.Mutex
	state *game.GameState
}

// Manager owns the in-memory games and serializes turn advances per game.
// Different games advance concurrently; the same game never does.
type Manager struct {
	mu    sync.Mutex
	games map[string]*managedGame

	store  *Store
	svc    agent.Service
	orch   *turn.Orchestrator
	rs     *ruleset.Ruleset
	logger zerolog.Logger

	// Agent availability is probed once per process; a backend that comes
	// up later is picked up on restart.
	probeOnce sync.Once
	agentUp   bool
}

// NewManager creates a game manager. The bus may be nil.
func NewManager(store *Store, svc agent.Service, rs *ruleset.Ruleset, bus *events.EventBus, logger zerolog.Logger) *Manager {
	return &Manager{
		games:  make(map[string]*managedGame),
		store:  store,
		svc:    svc,
		orch:   turn.New(svc, rs, bus, logger),
		rs:     rs,
		logger: logger.With().Str("component", "game_manager").Logger(),
	}
}

// Create generates a new world from seed and persists it.
func (m *Manager) Create(ctx context.Context, seed int64) (*game.GameState, error) {
	gs, err := mapgen.Generate(seed, m.rs, m.logger)
	if err != nil {
		return nil, fmt.Errorf("generating world: %w", err)
	}
	if err := m.store.Save(ctx, gs); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.games[gs.ID] = &managedGame{state: gs}
	m.mu.Unlock()
	m.logger.Info().Str("game", gs.ID).Int64("seed", seed).Msg("Game created")
	return gs, nil
}

// Ensure returns the game with id, creating it from seed when it does not
// exist yet. The second return reports whether a new game was created.
func (m *Manager) Ensure(ctx context.Context, id string, seed int64) (*game.GameState, bool, error) {
	mg, err := m.resident(ctx, id)
	if err == nil {
		mg.mu.Lock()
		defer mg.mu.Unlock()
		return mg.state, false, nil
	}
	if !errors.Is(err, ErrGameNotFound) {
		return nil, false, err
	}

	gs, err := mapgen.Generate(seed, m.rs, m.logger)
	if err != nil {
		return nil, false, fmt.Errorf("generating world: %w", err)
	}
	gs.ID = id
	if err := m.store.Save(ctx, gs); err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	m.games[id] = &managedGame{state: gs}
	m.mu.Unlock()
	m.logger.Info().Str("game", id).Int64("seed", seed).Msg("Game created on demand")
	return gs, true, nil
}

// Get returns the current state of a game, loading it from the store if it
// is not resident.
func (m *Manager) Get(ctx context.Context, id string) (*game.GameState, error) {
	mg, err := m.resident(ctx, id)
	if err != nil {
		return nil, err
	}
	mg.mu.Lock()
	defer mg.mu.Unlock()
	return mg.state, nil
}

// List returns stored game metadata.
func (m *Manager) List(ctx context.Context) ([]GameRow, error) {
	return m.store.List(ctx)
}

// Delete evicts and removes a game.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.games, id)
	m.mu.Unlock()
	return m.store.Delete(ctx, id)
}

// Advance runs one turn for the game. The resting state is snapshotted
// before the agent attempt; if the orchestrator fails partway, the partial
// mutation is discarded and the turn is re-derived locally from the
// snapshot, so a failed agent call can never leave a half-advanced game.
func (m *Manager) Advance(ctx context.Context, id string) (*AdvanceOutcome, error) {
	mg, err := m.resident(ctx, id)
	if err != nil {
		return nil, err
	}
	mg.mu.Lock()
	defer mg.mu.Unlock()

	base := mg.state
	if base.Winner != "" {
		return &AdvanceOutcome{State: base, Source: SourceNone}, nil
	}

	useAgent := m.agentAvailable(ctx)
	if !useAgent {
		m.logger.Info().Str("game", id).Msg("Agent backend unavailable, deriving turn locally")
	}

	var agentErr error
	if useAgent {
		attempt, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if agentErr = m.orch.Advance(ctx, attempt, base.Seed); agentErr == nil {
			if err := m.store.Save(ctx, attempt); err != nil {
				return nil, err
			}
			mg.state = attempt
			return &AdvanceOutcome{State: attempt, Source: SourceAgent}, nil
		}
		m.logger.Warn().Err(agentErr).Str("game", id).Int("turn", base.Turn).
			Msg("Agent-driven turn failed, falling back to local simulation")
	}

	fallback, err := base.Clone()
	if err != nil {
		return nil, err
	}
	if err := turn.AdvanceLocal(fallback, base.Seed, m.rs, m.logger); err != nil {
		// Local derivation only fails on corrupt state; nothing to fall
		// back to from here.
		return nil, err
	}
	if err := m.store.Save(ctx, fallback); err != nil {
		return nil, err
	}
	mg.state = fallback
	return &AdvanceOutcome{State: fallback, Source: SourceLocal, AgentErr: agentErr}, nil
}

func (m *Manager) agentAvailable(ctx context.Context) bool {
	p, ok := m.svc.(availabilityProber)
	if !ok {
		return true
	}
	m.probeOnce.Do(func() {
		m.agentUp = p.Available(ctx)
		m.logger.Info().Bool("available", m.agentUp).Msg("Agent backend probed")
	})
	return m.agentUp
}

func (m *Manager) resident(ctx context.Context, id string) (*managedGame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mg, ok := m.games[id]; ok {
		return mg, nil
	}
	gs, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	mg := &managedGame{state: gs}
	m.games[id] = mg
	return mg, nil
}
