package turn

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/serrrfirat/iso-civ-sub000/internal/config"
	"github.com/serrrfirat/iso-civ-sub000/internal/game"
	"github.com/serrrfirat/iso-civ-sub000/internal/game/core"
	"github.com/serrrfirat/iso-civ-sub000/internal/game/rules"
	"github.com/serrrfirat/iso-civ-sub000/internal/game/ruleset"
)

// GenericNarration is set as the turn narration whenever a turn is derived
// locally, without the agent backend.
const GenericNarration = "The world turns quietly onward."

// AdvanceLocal derives one turn without any agent involvement: queue the
// default unit in idle cities, wander scouts deterministically, then run the
// normal end-of-turn processing. Identical inputs (state, seed) produce an
// identical turn, which is what makes it a safe fallback after a failed
// agent attempt.
func AdvanceLocal(gs *game.GameState, seed int64, rs *ruleset.Ruleset, logger zerolog.Logger) error {
	if gs.Winner != "" {
		return nil
	}
	if err := gs.CheckInvariants(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrCorruptState, err)
	}

	localLogger := logger.With().
		Str("component", "local_sim").
		Str("game", gs.ID).
		Int("turn", gs.Turn).
		Logger()

	gs.Phase = game.PhaseResolution
	gs.CameraEvents = gs.CameraEvents[:0]
	gs.CivTurnSummaries = gs.CivTurnSummaries[:0]

	cfg := config.Get()
	for _, civID := range gs.AliveCivOrder() {
		civ := gs.Civs[civID]
		windowStart := len(gs.TurnEvents)

		cityIDs := append([]string(nil), civ.CityIDs...)
		sort.Strings(cityIDs)
		for _, cityID := range cityIDs {
			if gs.Cities[cityID].Production != "" {
				continue
			}
			act := &game.BuildAction{Civ: civID, City: cityID, Item: cfg.Game.Turns.DefaultBuildUnit}
			if err := act.Validate(gs, rs); err != nil {
				localLogger.Debug().Err(err).Str("city", cityID).Msg("Skipping default build")
				continue
			}
			act.Apply(gs, rs, seed)
		}

		unitIDs := append([]string(nil), civ.UnitIDs...)
		sort.Strings(unitIDs)
		for _, uid := range unitIDs {
			u := gs.Units[uid]
			if u.TypeID != "scout" || u.MovesLeft <= 0 {
				continue
			}
			dir := ScoutDirection(seed, unitSeq(uid), gs.Turn)
			act := &game.MoveUnitAction{Civ: civID, Unit: uid, To: u.Pos.Add(dir)}
			if err := act.Validate(gs, rs); err != nil {
				// Blocked scouts stay put this turn.
				continue
			}
			act.Apply(gs, rs, seed)
		}

		window := gs.TurnEvents[windowStart:]
		texts := make([]string, len(window))
		for i, ev := range window {
			texts[i] = ev.Text
		}
		gs.CivTurnSummaries = append(gs.CivTurnSummaries, game.CivTurnSummary{
			Turn:   gs.Turn,
			CivID:  civID,
			Events: texts,
		})
	}

	proc := rules.NewProcessor(logger, rs)
	proc.Run(gs)

	gs.CurrentNarration = GenericNarration
	gs.Turn++
	gs.Phase = game.PhaseIdle
	localLogger.Debug().Msg("Local turn derived")
	return nil
}

// ScoutDirection picks the cardinal a scout wanders in. It is a pure
// function of seed, the unit's numeric id suffix and the turn, so replaying
// a turn moves every scout the same way.
func ScoutDirection(seed int64, unitSeq, turn int) core.Direction {
	idx := (seed + int64(unitSeq)*31 + int64(turn)*17) % 4
	if idx < 0 {
		idx += 4
	}
	return core.Cardinals[idx]
}

// unitSeq extracts the numeric suffix of a unit id ("unit_7" -> 7).
func unitSeq(id string) int {
	i := strings.LastIndexByte(id, '_')
	if i < 0 {
		return 0
	}
	n, err := strconv.Atoi(id[i+1:])
	if err != nil {
		return 0
	}
	return n
}
