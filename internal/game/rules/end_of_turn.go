// Package rules implements the passive per-turn updates applied after all
// actions resolve: accrual, growth, production completion, research,
// happiness decay and victory evaluation.
package rules

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/serrrfirat/iso-civ-sub000/internal/common"
	"github.com/serrrfirat/iso-civ-sub000/internal/config"
	"github.com/serrrfirat/iso-civ-sub000/internal/game"
	"github.com/serrrfirat/iso-civ-sub000/internal/game/core"
	"github.com/serrrfirat/iso-civ-sub000/internal/game/ruleset"
)

// Processor applies end-of-turn effects. The turn pipeline calls Run
// exactly once per turn; Run itself does not guard against double
// application (calling it twice would double-apply growth).
type Processor struct {
	logger zerolog.Logger
	rs     *ruleset.Ruleset
}

// NewProcessor creates an end-of-turn processor.
func NewProcessor(logger zerolog.Logger, rs *ruleset.Ruleset) *Processor {
	return &Processor{
		logger: logger.With().Str("component", "end_of_turn").Logger(),
		rs:     rs,
	}
}

// Run applies end-of-turn effects to every living civilization and
// evaluates victory conditions, setting gs.Winner when one is met. It
// returns the human-readable events it produced.
func (p *Processor) Run(gs *game.GameState) []string {
	cfg := config.Get().Game
	var out []string

	for _, civID := range gs.AliveCivOrder() {
		civ := gs.Civs[civID]
		out = append(out, p.accrue(gs, civ, cfg)...)
		out = append(out, p.advanceResearch(gs, civ)...)
		out = append(out, p.runCities(gs, civ, cfg)...)
		p.decayHappiness(gs, civ, cfg)
		p.refreshUnits(gs, civ)
	}

	out = append(out, p.cullDefeated(gs)...)
	out = append(out, p.checkVictory(gs)...)
	return out
}

func (p *Processor) accrue(gs *game.GameState, civ *game.Civilization, cfg config.GameConfig) []string {
	civ.Gold += cfg.Economy.GoldPerCity * len(civ.CityIDs)
	science := cfg.Economy.BaseScience + cfg.Economy.SciencePerCity*len(civ.CityIDs)
	for _, cityID := range civ.CityIDs {
		for _, b := range gs.Cities[cityID].Buildings {
			if def, ok := p.rs.Building(b); ok {
				science += def.Science
			}
		}
	}
	civ.Science += science
	civ.ResearchGot += science
	return nil
}

func (p *Processor) advanceResearch(gs *game.GameState, civ *game.Civilization) []string {
	if civ.ResearchTech == "" {
		civ.ResearchTech = p.rs.NextTech(civ.Techs)
	}
	tech, ok := p.rs.Tech(civ.ResearchTech)
	if !ok {
		return nil
	}
	if civ.ResearchGot < tech.Cost {
		return nil
	}
	civ.ResearchGot -= tech.Cost
	civ.Techs = append(civ.Techs, tech.ID)
	next := p.rs.NextTech(civ.Techs)
	civ.ResearchTech = next
	ev := gs.AppendTurnEvent(civ.ID, "research",
		fmt.Sprintf("%s discovers %s", civ.Name, tech.Name))
	return []string{ev}
}

func (p *Processor) runCities(gs *game.GameState, civ *game.Civilization, cfg config.GameConfig) []string {
	var out []string
	cityIDs := append([]string(nil), civ.CityIDs...)
	sort.Strings(cityIDs)
	for _, cityID := range cityIDs {
		city := gs.Cities[cityID]

		food := cfg.Economy.FoodPerTurn
		for _, b := range city.Buildings {
			if def, ok := p.rs.Building(b); ok {
				food += def.Food
			}
		}
		city.Food += food
		needed := city.Population * cfg.Economy.GrowthFoodPerPop
		if city.Food >= needed {
			city.Food -= needed
			city.Population++
			out = append(out, gs.AppendTurnEvent(civ.ID, "growth",
				fmt.Sprintf("%s grows to population %d", city.Name, city.Population)))
		}

		if city.Production != "" {
			rate := cfg.Production.BaseRate + city.Population*cfg.Production.PerPopRate
			city.ProductionProgress += rate
			out = append(out, p.completeProduction(gs, civ, city)...)
		}
	}
	return out
}

func (p *Processor) completeProduction(gs *game.GameState, civ *game.Civilization, city *game.City) []string {
	if unitDef, ok := p.rs.Unit(city.Production); ok {
		if city.ProductionProgress < unitDef.Cost {
			return nil
		}
		pos, ok := p.spawnTile(gs, city)
		if !ok {
			// Nowhere to place the unit; hold the completed order.
			p.logger.Debug().Str("city", city.ID).Msg("Production complete but no free tile")
			return nil
		}
		u := &game.Unit{
			ID:        gs.NewUnitID(),
			TypeID:    unitDef.ID,
			OwnerID:   civ.ID,
			Pos:       pos,
			HP:        unitDef.HP,
			Strength:  unitDef.Strength,
			Movement:  unitDef.Movement,
			MovesLeft: unitDef.Movement,
		}
		gs.PlaceUnit(u)
		city.Production = ""
		city.ProductionProgress = 0
		ev := gs.AppendTurnEvent(civ.ID, "production",
			fmt.Sprintf("%s completes a %s", city.Name, unitDef.Name))
		return []string{ev}
	}
	if bldDef, ok := p.rs.Building(city.Production); ok {
		if city.ProductionProgress < bldDef.Cost {
			return nil
		}
		city.Buildings = append(city.Buildings, bldDef.ID)
		city.Production = ""
		city.ProductionProgress = 0
		if bldDef.Happiness > 0 {
			civ.Happiness += bldDef.Happiness
		}
		ev := gs.AppendTurnEvent(civ.ID, "production",
			fmt.Sprintf("%s completes the %s", city.Name, bldDef.Name))
		return []string{ev}
	}
	// Orphaned order for an item no longer in the ruleset.
	city.Production = ""
	city.ProductionProgress = 0
	return nil
}

// spawnTile finds a tile for a newly trained unit: the city tile itself, or
// the first free passable neighbor in cardinal order.
func (p *Processor) spawnTile(gs *game.GameState, city *game.City) (core.Coordinate, bool) {
	if gs.Grid.At(city.Pos).UnitID == "" {
		return city.Pos, true
	}
	for _, d := range core.Cardinals {
		c := city.Pos.Add(d)
		if !gs.Grid.Contains(c) {
			continue
		}
		t := gs.Grid.At(c)
		if t.Terrain.Passable() && t.UnitID == "" {
			return c, true
		}
	}
	return core.Coordinate{}, false
}

func (p *Processor) decayHappiness(gs *game.GameState, civ *game.Civilization, cfg config.GameConfig) {
	totalPop := 0
	for _, cityID := range civ.CityIDs {
		totalPop += gs.Cities[cityID].Population
	}
	civ.Happiness -= (totalPop * cfg.Economy.UnhappinessPerPop) / 4
	civ.Happiness = common.Clamp(civ.Happiness, -10, 10)
}

func (p *Processor) refreshUnits(gs *game.GameState, civ *game.Civilization) {
	for _, uid := range civ.UnitIDs {
		u := gs.Units[uid]
		u.MovesLeft = u.Movement
	}
}

// cullDefeated marks civilizations with nothing left on the map as dead.
// Entries are never removed from the civ map, only flagged.
func (p *Processor) cullDefeated(gs *game.GameState) []string {
	var out []string
	for _, civID := range gs.AliveCivOrder() {
		civ := gs.Civs[civID]
		if len(civ.CityIDs) == 0 && len(civ.UnitIDs) == 0 {
			civ.IsAlive = false
			p.logger.Info().Str("civ", civID).Int("turn", gs.Turn).Msg("Civilization eliminated")
			out = append(out, gs.AppendTurnEvent(civID, "elimination",
				fmt.Sprintf("%s has fallen", civ.Name)))
		}
	}
	return out
}

// checkVictory sets gs.Winner when a condition is met: domination (one civ
// left) or highest score once the turn limit is reached.
func (p *Processor) checkVictory(gs *game.GameState) []string {
	if gs.Winner != "" {
		return nil
	}
	alive := gs.AliveCivOrder()
	if len(alive) == 1 && len(gs.Civs) > 1 {
		gs.Winner = alive[0]
		p.logger.Info().Str("winner", gs.Winner).Msg("Domination victory")
		return []string{gs.AppendTurnEvent(gs.Winner, "victory",
			fmt.Sprintf("%s achieves a domination victory", gs.Civs[gs.Winner].Name))}
	}
	if gs.MaxTurns > 0 && gs.Turn >= gs.MaxTurns && len(alive) > 0 {
		best := alive[0]
		bestScore := p.Score(gs, best)
		for _, civID := range alive[1:] {
			if s := p.Score(gs, civID); s > bestScore {
				best, bestScore = civID, s
			}
		}
		gs.Winner = best
		p.logger.Info().Str("winner", gs.Winner).Int("score", bestScore).Msg("Score victory at turn limit")
		return []string{gs.AppendTurnEvent(gs.Winner, "victory",
			fmt.Sprintf("%s wins the age with a score of %d", gs.Civs[gs.Winner].Name, bestScore))}
	}
	return nil
}

// Score computes the end-game score for a civilization.
func (p *Processor) Score(gs *game.GameState, civID string) int {
	civ := gs.Civs[civID]
	score := len(civ.CityIDs)*4 + len(civ.Techs)*5 + len(civ.Culture.Artifacts)*2 + civ.Gold/10
	for _, cityID := range civ.CityIDs {
		score += gs.Cities[cityID].Population * 3
	}
	return score
}
