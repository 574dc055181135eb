// Package turn implements the phased turn-advancement pipeline: diplomacy,
// planning, resolution with periodic cultural summarization, narration, and
// the agent-free local fallback.
package turn

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/serrrfirat/iso-civ-sub000/internal/agent"
	"github.com/serrrfirat/iso-civ-sub000/internal/config"
	"github.com/serrrfirat/iso-civ-sub000/internal/game"
	"github.com/serrrfirat/iso-civ-sub000/internal/game/core"
	"github.com/serrrfirat/iso-civ-sub000/internal/game/events"
	"github.com/serrrfirat/iso-civ-sub000/internal/game/rules"
	"github.com/serrrfirat/iso-civ-sub000/internal/game/ruleset"
)

// UpdateFunc is notified after each pipeline milestone. Consumers must
// treat it as fire-and-forget; the pipeline ignores anything it does.
type UpdateFunc func(gs *game.GameState, tag string)

// Orchestrator drives one game turn through its phases. It owns the passed
// state for the duration of an Advance call; callers must not invoke
// Advance concurrently for the same state.
//
// Agent failures are not caught here: any error propagates to the caller
// with whatever log appends already happened left in place. The boundary is
// expected to discard the attempt and re-derive the turn with AdvanceLocal
// from a pre-turn snapshot.
type Orchestrator struct {
	agent  agent.Service
	rs     *ruleset.Ruleset
	eot    *rules.Processor
	bus    *events.EventBus
	logger zerolog.Logger

	// OnUpdate mirrors the callback shape of the original pipeline; the
	// typed bus events carry the same milestones.
	OnUpdate UpdateFunc
}

// New creates a turn orchestrator. The bus may be nil.
func New(svc agent.Service, rs *ruleset.Ruleset, bus *events.EventBus, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		agent:  svc,
		rs:     rs,
		eot:    rules.NewProcessor(logger, rs),
		bus:    bus,
		logger: logger.With().Str("component", "turn_orchestrator").Logger(),
	}
}

// civPlan pairs a civilization with its proposed actions, in processing
// order. The explicit list (built once at turn start) is the ordering
// contract: who plans first also resolves first.
type civPlan struct {
	civID   string
	actions []game.Action
}

// Advance runs one full turn. If a winner is already set it is a complete
// no-op: no mutation, no notifications.
func (o *Orchestrator) Advance(ctx context.Context, gs *game.GameState, seed int64) error {
	if gs.Winner != "" {
		return nil
	}
	if err := gs.CheckInvariants(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrCorruptState, err)
	}

	turnLogger := o.logger.With().Str("game", gs.ID).Int("turn", gs.Turn).Logger()
	turnLogger.Debug().Msg("Advancing turn")

	order := gs.AliveCivOrder()

	msgs, err := o.diplomacyPhase(ctx, gs, order, turnLogger)
	if err != nil {
		return err
	}
	plans, err := o.planningPhase(ctx, gs, order, msgs, turnLogger)
	if err != nil {
		return err
	}
	flat, err := o.resolutionPhase(ctx, gs, plans, msgs, seed, turnLogger)
	if err != nil {
		return err
	}
	if err := o.narrationPhase(ctx, gs, flat); err != nil {
		return err
	}

	completed := gs.Turn
	gs.Turn++
	gs.Phase = game.PhaseIdle
	if o.bus != nil {
		o.bus.Publish(events.NewTurnCompletedEvent(gs.ID, completed, gs.CurrentNarration, gs.Winner))
	}
	if o.OnUpdate != nil {
		o.OnUpdate(gs, "turn_complete")
	}
	turnLogger.Debug().Int("next_turn", gs.Turn).Msg("Turn finished")
	return nil
}

// diplomacyPhase processes civilizations strictly sequentially: each civ's
// outgoing messages are committed to the shared accumulator before the next
// civ is asked, so later civs see earlier civs' messages. Sequential on
// purpose — concurrent calls would contend in the shared agent backend and
// destroy the intended information asymmetry.
func (o *Orchestrator) diplomacyPhase(ctx context.Context, gs *game.GameState, order []string, logger zerolog.Logger) ([]game.DiplomacyMessage, error) {
	gs.Phase = game.PhaseDiplomacy
	gs.CameraEvents = gs.CameraEvents[:0]
	o.notifyPhase(gs, events.TypeDiplomacyStarted, "diplomacy", "diplomacy_start")

	var turnMsgs []game.DiplomacyMessage
	for _, civID := range order {
		inbox := inboxFor(turnMsgs, civID)
		out, err := o.agent.Diplomacy(ctx, civID, gs, inbox)
		if err != nil {
			return nil, fmt.Errorf("diplomacy phase, civ %s: %w", civID, err)
		}
		for i := range out {
			out[i].FromCivID = civID
			out[i].Turn = gs.Turn
		}
		turnMsgs = append(turnMsgs, out...)
		gs.DiplomacyLog = append(gs.DiplomacyLog, out...)
		logger.Debug().Str("civ", civID).Int("sent", len(out)).Int("inbox", len(inbox)).Msg("Diplomacy processed")
	}

	o.notifyPhase(gs, events.TypeDiplomacyCompleted, "diplomacy", "diplomacy_complete")
	return turnMsgs, nil
}

// planningPhase gathers each living civ's decision, stamping cultural
// artifacts and (turn 1 only) constitution/religion names as it goes.
func (o *Orchestrator) planningPhase(ctx context.Context, gs *game.GameState, order []string, msgs []game.DiplomacyMessage, logger zerolog.Logger) ([]civPlan, error) {
	gs.Phase = game.PhasePlanning
	o.notifyPhase(gs, events.TypePlanningStarted, "planning", "planning_start")

	diploCtx := renderDiplomacy(msgs)
	plans := make([]civPlan, 0, len(order))
	for _, civID := range order {
		dec, err := o.agent.Plan(ctx, civID, gs, diploCtx)
		if err != nil {
			return nil, fmt.Errorf("planning phase, civ %s: %w", civID, err)
		}
		if dec == nil {
			dec = &agent.PlanDecision{}
		}
		civ := gs.Civs[civID]
		if gs.Turn == 1 {
			if dec.ConstitutionName != "" {
				civ.Culture.ConstitutionName = dec.ConstitutionName
			}
			if dec.ReligionName != "" {
				civ.Culture.ReligionName = dec.ReligionName
			}
		}
		for _, prop := range dec.Artifacts {
			art := game.CulturalArtifact{
				ID:          fmt.Sprintf("art_%s_%d_%d", civID, gs.Turn, len(civ.Culture.Artifacts)),
				CivID:       civID,
				Kind:        prop.Kind,
				Title:       prop.Title,
				Description: prop.Description,
				Turn:        gs.Turn,
			}
			civ.Culture.Artifacts = append(civ.Culture.Artifacts, art)
			gs.CulturalEvents = append(gs.CulturalEvents, art)
			gs.AppendTurnEvent(civID, "culture",
				fmt.Sprintf("%s creates %q", civ.Name, art.Title))
		}
		plans = append(plans, civPlan{civID: civID, actions: dec.Actions})
		logger.Debug().Str("civ", civID).Int("actions", len(dec.Actions)).Int("artifacts", len(dec.Artifacts)).Msg("Plan gathered")
	}

	o.notifyPhase(gs, events.TypePlanningCompleted, "planning", "planning_complete")
	return plans, nil
}

// resolutionPhase validates and executes every plan in order, builds one
// CivTurnSummary per civ that was alive at turn start, runs the end-of-turn
// processor exactly once, then (on cadence turns) summarizes culture.
func (o *Orchestrator) resolutionPhase(ctx context.Context, gs *game.GameState, plans []civPlan, msgs []game.DiplomacyMessage, seed int64, logger zerolog.Logger) ([]string, error) {
	gs.Phase = game.PhaseResolution
	o.notifyPhase(gs, events.TypeResolutionStarted, "resolution", "resolution_start")

	gs.CivTurnSummaries = gs.CivTurnSummaries[:0]
	var flat []string
	for _, plan := range plans {
		windowStart := len(gs.TurnEvents)
		for _, act := range plan.actions {
			if act == nil {
				continue
			}
			if err := act.Validate(gs, o.rs); err != nil {
				// Inadmissible actions are dropped, not errors.
				logger.Debug().Err(err).Str("civ", plan.civID).Str("kind", string(act.Kind())).Msg("Dropping invalid action")
				if o.bus != nil {
					o.bus.Publish(events.NewActionRejectedEvent(gs.ID, plan.civID, string(act.Kind()), err.Error(), gs.Turn))
				}
				continue
			}
			flat = append(flat, act.Apply(gs, o.rs, seed)...)
		}
		window := gs.TurnEvents[windowStart:]
		texts := make([]string, len(window))
		for i, ev := range window {
			texts[i] = ev.Text
		}
		gs.CivTurnSummaries = append(gs.CivTurnSummaries, game.CivTurnSummary{
			Turn:      gs.Turn,
			CivID:     plan.civID,
			Diplomacy: messagesFrom(msgs, plan.civID),
			Events:    texts,
		})
	}

	endEvents := o.eot.Run(gs)
	flat = append(flat, endEvents...)
	if gs.Winner != "" && o.bus != nil {
		o.bus.Publish(events.NewGameWonEvent(gs.ID, gs.Winner, "victory", gs.Turn))
	}

	o.notifyPhase(gs, events.TypeResolutionCompleted, "resolution", "resolution_complete")

	if err := o.summarizeCultures(ctx, gs, logger); err != nil {
		return nil, err
	}
	return flat, nil
}

// summarizeCultures runs on cadence turns only. Unlike every other phase
// the agent calls here are issued concurrently: each goroutine writes only
// its own civ's culture summary slot, so there is no shared mutation.
func (o *Orchestrator) summarizeCultures(ctx context.Context, gs *game.GameState, logger zerolog.Logger) error {
	interval := config.Get().Game.Turns.SummarizeInterval
	if gs.Turn%interval != 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, civID := range gs.AliveCivOrder() {
		civ := gs.Civs[civID]
		if len(civ.Culture.Artifacts) == 0 {
			continue
		}
		civID := civID
		g.Go(func() error {
			sum, err := o.agent.SummarizeCulture(gctx, civID, gs)
			if err != nil {
				return fmt.Errorf("cultural summarization, civ %s: %w", civID, err)
			}
			if sum != nil {
				civ.Culture.Summary = sum.Summary
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Debug().Int("turn", gs.Turn).Msg("Cultural summarization complete")
	return nil
}

func (o *Orchestrator) narrationPhase(ctx context.Context, gs *game.GameState, flat []string) error {
	gs.Phase = game.PhaseNarration
	o.notifyPhase(gs, events.TypeNarrationStarted, "narration", "narration_start")

	narration, err := o.agent.Narrate(ctx, flat, gs)
	if err != nil {
		return fmt.Errorf("narration phase: %w", err)
	}
	gs.CurrentNarration = narration

	o.notifyPhase(gs, events.TypeNarrationCompleted, "narration", "narration_complete")
	return nil
}

func (o *Orchestrator) notifyPhase(gs *game.GameState, eventType, phase, tag string) {
	if o.bus != nil {
		o.bus.Publish(events.NewPhaseEvent(eventType, gs.ID, phase, gs.Turn))
	}
	if o.OnUpdate != nil {
		o.OnUpdate(gs, tag)
	}
}

// inboxFor selects the messages already produced this turn that civID can
// see: addressed to it directly or broadcast.
func inboxFor(msgs []game.DiplomacyMessage, civID string) []game.DiplomacyMessage {
	var out []game.DiplomacyMessage
	for _, m := range msgs {
		if m.ToCivID == civID || m.ToCivID == game.BroadcastAddr {
			out = append(out, m)
		}
	}
	return out
}

// messagesFrom selects the messages sent by civID this turn.
func messagesFrom(msgs []game.DiplomacyMessage, civID string) []game.DiplomacyMessage {
	var out []game.DiplomacyMessage
	for _, m := range msgs {
		if m.FromCivID == civID {
			out = append(out, m)
		}
	}
	return out
}

// renderDiplomacy flattens a turn's messages into the text block handed to
// the planning agent.
func renderDiplomacy(msgs []game.DiplomacyMessage) string {
	if len(msgs) == 0 {
		return "No diplomacy this turn."
	}
	out := ""
	for _, m := range msgs {
		line := fmt.Sprintf("[%s -> %s] %s", m.FromCivID, m.ToCivID, m.Text)
		if m.Tone != "" {
			line = fmt.Sprintf("[%s -> %s] (%s) %s", m.FromCivID, m.ToCivID, m.Tone, m.Text)
		}
		out += line + "\n"
	}
	return out
}
