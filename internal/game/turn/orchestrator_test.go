package turn_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serrrfirat/iso-civ-sub000/internal/agent"
	"github.com/serrrfirat/iso-civ-sub000/internal/agent/agenttest"
	"github.com/serrrfirat/iso-civ-sub000/internal/game"
	"github.com/serrrfirat/iso-civ-sub000/internal/game/core"
	"github.com/serrrfirat/iso-civ-sub000/internal/game/events"
	"github.com/serrrfirat/iso-civ-sub000/internal/game/ruleset"
	"github.com/serrrfirat/iso-civ-sub000/internal/game/turn"
	"github.com/serrrfirat/iso-civ-sub000/internal/testutil"
)

func newOrchestrator(t *testing.T, stub *agenttest.Stub, bus *events.EventBus) *turn.Orchestrator {
	t.Helper()
	return turn.New(stub, ruleset.MustLoad(), bus, testutil.NopLogger())
}

func TestAdvanceIncrementsTurnAndRestoresIdle(t *testing.T) {
	stub := &agenttest.Stub{}
	o := newOrchestrator(t, stub, nil)
	gs := testutil.CreateTestState("aurelia", "kethmar")

	require.NoError(t, o.Advance(context.Background(), gs, 1))

	assert.Equal(t, 2, gs.Turn)
	assert.Equal(t, game.PhaseIdle, gs.Phase)
	assert.Equal(t, agenttest.FixedNarration, gs.CurrentNarration)
}

func TestAdvanceNoOpOnceWon(t *testing.T) {
	stub := &agenttest.Stub{}
	o := newOrchestrator(t, stub, nil)
	var tags []string
	o.OnUpdate = func(gs *game.GameState, tag string) { tags = append(tags, tag) }

	gs := testutil.CreateTestState("aurelia", "kethmar")
	gs.Winner = "aurelia"
	gs.Turn = 7

	require.NoError(t, o.Advance(context.Background(), gs, 1))
	require.NoError(t, o.Advance(context.Background(), gs, 1))

	assert.Equal(t, 7, gs.Turn, "won game never advances")
	assert.Empty(t, tags, "no milestones for a finished game")
	assert.Empty(t, stub.DiplomacyCalls)
	assert.Empty(t, stub.PlanCalls)
	assert.Zero(t, stub.NarrateCalls)
}

func TestAdvanceMilestoneOrder(t *testing.T) {
	stub := &agenttest.Stub{}
	o := newOrchestrator(t, stub, nil)
	var tags []string
	o.OnUpdate = func(gs *game.GameState, tag string) { tags = append(tags, tag) }

	gs := testutil.CreateTestState("aurelia")
	require.NoError(t, o.Advance(context.Background(), gs, 1))

	assert.Equal(t, []string{
		"diplomacy_start", "diplomacy_complete",
		"planning_start", "planning_complete",
		"resolution_start", "resolution_complete",
		"narration_start", "narration_complete",
		"turn_complete",
	}, tags)
}

func TestDiplomacyIsSequentialWithGrowingInbox(t *testing.T) {
	stub := &agenttest.Stub{}
	inboxSizes := map[string]int{}
	stub.DiplomacyFn = func(civID string, gs *game.GameState, inbox []game.DiplomacyMessage) ([]game.DiplomacyMessage, error) {
		inboxSizes[civID] = len(inbox)
		return []game.DiplomacyMessage{{ToCivID: game.BroadcastAddr, Text: civID + " greets the world"}}, nil
	}
	o := newOrchestrator(t, stub, nil)
	gs := testutil.CreateTestState("norvind", "aurelia", "kethmar")

	require.NoError(t, o.Advance(context.Background(), gs, 1))

	// Processing order is sorted civ ids; each later civ sees every
	// earlier broadcast.
	assert.Equal(t, []string{"aurelia", "kethmar", "norvind"}, stub.DiplomacyCalls)
	assert.Equal(t, 0, inboxSizes["aurelia"])
	assert.Equal(t, 1, inboxSizes["kethmar"])
	assert.Equal(t, 2, inboxSizes["norvind"])

	require.Len(t, gs.DiplomacyLog, 3)
	for _, m := range gs.DiplomacyLog {
		assert.Equal(t, 1, m.Turn)
		assert.NotEmpty(t, m.FromCivID, "sender stamped by the pipeline")
	}
}

func TestCivTurnSummariesCoverCivsAliveAtTurnStart(t *testing.T) {
	stub := &agenttest.Stub{}
	stub.DiplomacyFn = func(civID string, gs *game.GameState, inbox []game.DiplomacyMessage) ([]game.DiplomacyMessage, error) {
		return []game.DiplomacyMessage{{ToCivID: game.BroadcastAddr, Text: "hello from " + civID}}, nil
	}
	o := newOrchestrator(t, stub, nil)
	gs := testutil.CreateTestState("aurelia", "kethmar", "norvind")
	gs.CivTurnSummaries = []game.CivTurnSummary{{Turn: 0, CivID: "stale"}}

	require.NoError(t, o.Advance(context.Background(), gs, 1))

	require.Len(t, gs.CivTurnSummaries, 3, "previous turn's summaries replaced")
	seen := map[string]bool{}
	for _, s := range gs.CivTurnSummaries {
		seen[s.CivID] = true
		assert.Equal(t, 1, s.Turn)
		require.Len(t, s.Diplomacy, 1, "summary carries the civ's own messages")
		assert.Equal(t, s.CivID, s.Diplomacy[0].FromCivID)
	}
	assert.Len(t, seen, 3)
}

func TestInvalidActionsAreDroppedSilently(t *testing.T) {
	stub := &agenttest.Stub{}
	stub.PlanFn = func(civID string, gs *game.GameState, diplomacyContext string) (*agent.PlanDecision, error) {
		return &agent.PlanDecision{Actions: []game.Action{
			// Not enough gold for a settler, and a move to an occupied tile.
			&game.BuildAction{Civ: civID, City: gs.Civs[civID].CityIDs[0], Item: "settler"},
			&game.MoveUnitAction{Civ: civID, Unit: gs.Civs[civID].UnitIDs[1], To: gs.Cities[gs.Civs[civID].CityIDs[0]].Pos},
		}}, nil
	}
	bus := events.NewEventBus()
	var rejected []*events.ActionRejectedEvent
	bus.SubscribeFunc(events.TypeActionRejected, func(ev events.Event) {
		rejected = append(rejected, ev.(*events.ActionRejectedEvent))
	})
	o := newOrchestrator(t, stub, bus)
	gs := testutil.CreateTestState("aurelia")

	require.NoError(t, o.Advance(context.Background(), gs, 1), "invalid actions never fail the turn")
	assert.Equal(t, 2, gs.Turn)
	assert.Len(t, rejected, 2)
	assert.Empty(t, gs.Cities[gs.Civs["aurelia"].CityIDs[0]].Production)
}

func TestValidActionsResolveInOrder(t *testing.T) {
	stub := &agenttest.Stub{}
	stub.PlanFn = func(civID string, gs *game.GameState, diplomacyContext string) (*agent.PlanDecision, error) {
		scout := gs.Units[gs.Civs[civID].UnitIDs[1]]
		return &agent.PlanDecision{Actions: []game.Action{
			&game.MoveUnitAction{Civ: civID, Unit: scout.ID, To: scout.Pos.Add(core.Cardinals[2])},
		}}, nil
	}
	o := newOrchestrator(t, stub, nil)
	gs := testutil.CreateTestState("aurelia")
	scoutID := gs.Civs["aurelia"].UnitIDs[1]
	before := gs.Units[scoutID].Pos

	require.NoError(t, o.Advance(context.Background(), gs, 1))

	assert.Equal(t, before.Add(core.Cardinals[2]), gs.Units[scoutID].Pos)
	require.Len(t, gs.CivTurnSummaries, 1)
	assert.NotEmpty(t, gs.CivTurnSummaries[0].Events, "movement recorded in the civ's slice")
}

func TestArtifactStamping(t *testing.T) {
	stub := &agenttest.Stub{}
	stub.PlanFn = func(civID string, gs *game.GameState, diplomacyContext string) (*agent.PlanDecision, error) {
		if civID != "aurelia" {
			return &agent.PlanDecision{}, nil
		}
		return &agent.PlanDecision{Artifacts: []agent.ArtifactProposal{
			{Kind: "song", Title: "Hymn of the First Dawn"},
			{Kind: "myth", Title: "The Serpent Below"},
		}}, nil
	}
	o := newOrchestrator(t, stub, nil)
	gs := testutil.CreateTestState("aurelia", "kethmar")

	require.NoError(t, o.Advance(context.Background(), gs, 1))

	arts := gs.Civs["aurelia"].Culture.Artifacts
	require.Len(t, arts, 2)
	assert.Equal(t, "art_aurelia_1_0", arts[0].ID)
	assert.Equal(t, "art_aurelia_1_1", arts[1].ID)
	assert.Equal(t, 1, arts[0].Turn)
	assert.Len(t, gs.CulturalEvents, 2)
	assert.Empty(t, gs.Civs["kethmar"].Culture.Artifacts)

	// Index continues across turns.
	require.NoError(t, o.Advance(context.Background(), gs, 1))
	arts = gs.Civs["aurelia"].Culture.Artifacts
	require.Len(t, arts, 4)
	assert.Equal(t, "art_aurelia_2_2", arts[2].ID)
}

func TestConstitutionAndReligionOnlyOnFirstTurn(t *testing.T) {
	stub := &agenttest.Stub{}
	stub.PlanFn = func(civID string, gs *game.GameState, diplomacyContext string) (*agent.PlanDecision, error) {
		return &agent.PlanDecision{
			ConstitutionName: fmt.Sprintf("Charter of Turn %d", gs.Turn),
			ReligionName:     "The Deep Current",
		}, nil
	}
	o := newOrchestrator(t, stub, nil)
	gs := testutil.CreateTestState("aurelia")

	require.NoError(t, o.Advance(context.Background(), gs, 1))
	assert.Equal(t, "Charter of Turn 1", gs.Civs["aurelia"].Culture.ConstitutionName)
	assert.Equal(t, "The Deep Current", gs.Civs["aurelia"].Culture.ReligionName)

	require.NoError(t, o.Advance(context.Background(), gs, 1))
	assert.Equal(t, "Charter of Turn 1", gs.Civs["aurelia"].Culture.ConstitutionName,
		"later turns cannot rename the constitution")
}

func TestCulturalSummarizationCadence(t *testing.T) {
	stub := &agenttest.Stub{}
	stub.PlanFn = func(civID string, gs *game.GameState, diplomacyContext string) (*agent.PlanDecision, error) {
		if civID == "norvind" {
			return &agent.PlanDecision{}, nil
		}
		return &agent.PlanDecision{Artifacts: []agent.ArtifactProposal{{Kind: "saga", Title: "Of Ice and Salt"}}}, nil
	}
	stub.SummaryFn = func(civID string, gs *game.GameState) (*agent.CultureSummary, error) {
		return &agent.CultureSummary{Summary: "A culture of " + civID}, nil
	}
	o := newOrchestrator(t, stub, nil)
	gs := testutil.CreateTestState("aurelia", "kethmar", "norvind")

	gs.Turn = 4
	require.NoError(t, o.Advance(context.Background(), gs, 1))
	assert.Empty(t, stub.SummaryCalls, "no summarization off cadence")

	// Now turn 5: aurelia and kethmar have artifacts, norvind has none.
	require.NoError(t, o.Advance(context.Background(), gs, 1))
	assert.ElementsMatch(t, []string{"aurelia", "kethmar"}, stub.SummaryCalls)
	assert.Equal(t, "A culture of aurelia", gs.Civs["aurelia"].Culture.Summary)
	assert.Empty(t, gs.Civs["norvind"].Culture.Summary)
}

func TestNilSummaryLeavesExistingSummary(t *testing.T) {
	stub := &agenttest.Stub{}
	stub.PlanFn = func(civID string, gs *game.GameState, diplomacyContext string) (*agent.PlanDecision, error) {
		return &agent.PlanDecision{Artifacts: []agent.ArtifactProposal{{Kind: "song", Title: "Quiet Hymn"}}}, nil
	}
	o := newOrchestrator(t, stub, nil)
	gs := testutil.CreateTestState("aurelia")
	gs.Turn = 5
	gs.Civs["aurelia"].Culture.Summary = "carried over"

	require.NoError(t, o.Advance(context.Background(), gs, 1))

	assert.Equal(t, []string{"aurelia"}, stub.SummaryCalls)
	assert.Equal(t, "carried over", gs.Civs["aurelia"].Culture.Summary,
		"nothing-to-say keeps the previous summary")
}

func TestAgentErrorAbortsTurn(t *testing.T) {
	stub := &agenttest.Stub{}
	boom := errors.New("backend exploded")
	stub.PlanFn = func(civID string, gs *game.GameState, diplomacyContext string) (*agent.PlanDecision, error) {
		return nil, boom
	}
	o := newOrchestrator(t, stub, nil)
	gs := testutil.CreateTestState("aurelia")

	err := o.Advance(context.Background(), gs, 1)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, gs.Turn, "turn counter untouched on failure")
}

func TestCorruptStateFailsFast(t *testing.T) {
	stub := &agenttest.Stub{}
	o := newOrchestrator(t, stub, nil)
	gs := testutil.CreateTestState("aurelia")
	gs.Civs["aurelia"].UnitIDs = append(gs.Civs["aurelia"].UnitIDs, "unit_999")

	err := o.Advance(context.Background(), gs, 1)
	require.ErrorIs(t, err, core.ErrCorruptState)
	assert.Empty(t, stub.DiplomacyCalls, "no agent calls against corrupt state")
}

func TestEndOfTurnRunsExactlyOnce(t *testing.T) {
	stub := &agenttest.Stub{}
	o := newOrchestrator(t, stub, nil)
	gs := testutil.CreateTestState("aurelia")

	require.NoError(t, o.Advance(context.Background(), gs, 1))

	// One city at gold_per_city=2: anything else means double application.
	assert.Equal(t, 2, gs.Civs["aurelia"].Gold)
}

func TestQuietTurnEndToEnd(t *testing.T) {
	// Three civs, an agent with nothing to say: the turn still advances
	// cleanly and every living civ gets a summary.
	stub := &agenttest.Stub{}
	o := newOrchestrator(t, stub, nil)
	gs := testutil.CreateTestState("aurelia", "kethmar", "norvind")

	require.NoError(t, o.Advance(context.Background(), gs, 1))

	assert.Equal(t, 2, gs.Turn)
	assert.Equal(t, game.PhaseIdle, gs.Phase)
	assert.Empty(t, gs.DiplomacyLog)
	assert.Len(t, gs.CivTurnSummaries, 3)
	assert.Equal(t, agenttest.FixedNarration, gs.CurrentNarration)
}

func TestFallbackAfterAgentFailureEndToEnd(t *testing.T) {
	stub := &agenttest.Stub{}
	stub.DiplomacyFn = func(civID string, gs *game.GameState, inbox []game.DiplomacyMessage) ([]game.DiplomacyMessage, error) {
		return nil, errors.New("backend down")
	}
	o := newOrchestrator(t, stub, nil)
	rs := ruleset.MustLoad()

	base := testutil.CreateTestState("aurelia", "kethmar", "norvind")
	snapshot, err := base.Clone()
	require.NoError(t, err)

	require.Error(t, o.Advance(context.Background(), base, 42))

	// The boundary contract: discard the failed attempt and re-derive the
	// turn locally from the pre-turn snapshot.
	require.NoError(t, turn.AdvanceLocal(snapshot, 42, rs, testutil.NopLogger()))
	assert.Equal(t, 2, snapshot.Turn)
	assert.Equal(t, turn.GenericNarration, snapshot.CurrentNarration)
	for _, civID := range snapshot.AliveCivOrder() {
		city := snapshot.Cities[snapshot.Civs[civID].CityIDs[0]]
		assert.Equal(t, "warrior", city.Production, "idle city of %s gained the default order", civID)
	}
}

func TestBusReceivesPhaseAndTurnEvents(t *testing.T) {
	stub := &agenttest.Stub{}
	bus := events.NewEventBus()
	var types []string
	bus.SubscribeFunc(events.TypeTurnCompleted, func(ev events.Event) { types = append(types, ev.Type()) })
	bus.SubscribeFunc(events.TypeDiplomacyStarted, func(ev events.Event) { types = append(types, ev.Type()) })
	o := newOrchestrator(t, stub, bus)
	gs := testutil.CreateTestState("aurelia")

	require.NoError(t, o.Advance(context.Background(), gs, 1))

	assert.Equal(t, []string{events.TypeDiplomacyStarted, events.TypeTurnCompleted}, types)
}
