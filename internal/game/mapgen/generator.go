// Package mapgen creates the initial world: terrain from layered noise,
// capitals with spacing guarantees, natural wonders and starting units.
// Generation is a pure function of the seed and configuration.
package mapgen

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/ojrac/opensimplex-go"
	"github.com/rs/zerolog"

	"github.com/serrrfirat/iso-civ-sub000/internal/config"
	"github.com/serrrfirat/iso-civ-sub000/internal/game"
	"github.com/serrrfirat/iso-civ-sub000/internal/game/core"
	"github.com/serrrfirat/iso-civ-sub000/internal/game/ruleset"
)

const (
	elevationFreq = 0.13
	moistureFreq  = 0.21

	// Wonders keep this Manhattan distance from every capital so a scout
	// has to travel to find one.
	wonderCapitalSpacing = 3

	placementAttempts = 200
)

// Generate builds a fresh game state for every civilization in the ruleset.
func Generate(seed int64, rs *ruleset.Ruleset, logger zerolog.Logger) (*game.GameState, error) {
	cfg := config.Get().Game
	genLogger := logger.With().Str("component", "mapgen").Int64("seed", seed).Logger()

	gs := &game.GameState{
		ID:       "game_" + uuid.NewString(),
		Seed:     seed,
		Turn:     1,
		MaxTurns: cfg.Turns.MaxTurns,
		Phase:    game.PhaseIdle,
		Grid:     terrain(seed, cfg.Map),
		Civs:     make(map[string]*game.Civilization),
		Units:    make(map[string]*game.Unit),
		Cities:   make(map[string]*game.City),
	}

	rng := rand.New(rand.NewSource(seed))

	capitals, err := placeCapitals(gs, rs, rng, cfg.Map)
	if err != nil {
		return nil, err
	}
	placeWonders(gs, rs, rng, capitals)
	if err := placeStartingUnits(gs, rs, capitals); err != nil {
		return nil, err
	}

	genLogger.Info().
		Int("width", gs.Grid.Width()).
		Int("height", gs.Grid.Height()).
		Int("civs", len(gs.Civs)).
		Msg("World generated")
	return gs, nil
}

// terrain rasterizes two noise fields into tiles: elevation decides
// water/land/mountain, moisture decides the land biome.
func terrain(seed int64, mc config.MapConfig) game.Grid {
	elevation := opensimplex.New(seed)
	moisture := opensimplex.New(seed + 1)

	grid := make(game.Grid, mc.Height)
	for y := 0; y < mc.Height; y++ {
		grid[y] = make([]game.Tile, mc.Width)
		for x := 0; x < mc.Width; x++ {
			e := elevation.Eval2(float64(x)*elevationFreq, float64(y)*elevationFreq)
			m := moisture.Eval2(float64(x)*moistureFreq, float64(y)*moistureFreq)
			grid[y][x] = game.Tile{Terrain: classify(e, m, mc)}
		}
	}
	return grid
}

func classify(e, m float64, mc config.MapConfig) game.Terrain {
	switch {
	case e < mc.WaterLevel:
		return game.TerrainWater
	case e > mc.MountainLevel:
		return game.TerrainMountain
	case m < -0.4:
		return game.TerrainDesert
	case m > 0.35:
		return game.TerrainForest
	case m > 0:
		return game.TerrainGrass
	default:
		return game.TerrainPlains
	}
}

// placeCapitals founds one capital per civilization on passable ground,
// keeping min_capital_spacing between capitals. Spacing relaxes one step at
// a time if the map cannot satisfy it, but never below adjacency.
func placeCapitals(gs *game.GameState, rs *ruleset.Ruleset, rng *rand.Rand, mc config.MapConfig) ([]core.Coordinate, error) {
	var capitals []core.Coordinate
	for _, civID := range rs.CivIDs() {
		def, _ := rs.Civilization(civID)

		pos, ok := findCapitalSite(gs, rng, capitals, mc.MinCapitalSpacing)
		if !ok {
			return nil, fmt.Errorf("no capital site for %s on a %dx%d map", civID, mc.Width, mc.Height)
		}
		clearAround(gs, pos)

		civ := &game.Civilization{
			ID:            civID,
			Name:          def.Name,
			Leader:        def.Leader,
			IsAlive:       true,
			Relationships: make(map[string]game.Relation),
		}
		for _, otherID := range rs.CivIDs() {
			if otherID != civID {
				civ.Relationships[otherID] = game.RelationPeace
			}
		}
		gs.Civs[civID] = civ

		city := &game.City{
			ID:         gs.NewCityID(),
			Name:       def.Name,
			OwnerID:    civID,
			Pos:        pos,
			Population: 1,
		}
		gs.Cities[city.ID] = city
		civ.CityIDs = append(civ.CityIDs, city.ID)
		tile := gs.Grid.At(pos)
		tile.CityID = city.ID
		tile.OwnerID = civID

		capitals = append(capitals, pos)
	}
	return capitals, nil
}

func findCapitalSite(gs *game.GameState, rng *rand.Rand, capitals []core.Coordinate, spacing int) (core.Coordinate, bool) {
	for ; spacing >= 2; spacing-- {
		for attempt := 0; attempt < placementAttempts; attempt++ {
			c := core.NewCoordinate(rng.Intn(gs.Grid.Width()), rng.Intn(gs.Grid.Height()))
			t := gs.Grid.At(c)
			if !t.Terrain.Passable() || t.CityID != "" {
				continue
			}
			if tooClose(c, capitals, spacing) {
				continue
			}
			return c, true
		}
	}
	return core.Coordinate{}, false
}

func tooClose(c core.Coordinate, others []core.Coordinate, spacing int) bool {
	for _, o := range others {
		if c.DistanceTo(o) < spacing {
			return true
		}
	}
	return false
}

// clearAround flattens the capital tile and its cardinal neighbors so the
// starting units always have somewhere to stand and move.
func clearAround(gs *game.GameState, pos core.Coordinate) {
	gs.Grid.At(pos).Terrain = game.TerrainGrass
	for _, d := range core.Cardinals {
		c := pos.Add(d)
		if !gs.Grid.Contains(c) {
			continue
		}
		t := gs.Grid.At(c)
		if !t.Terrain.Passable() {
			t.Terrain = game.TerrainPlains
		}
	}
}

// placeWonders scatters every natural wonder on passable, unclaimed ground
// away from the capitals. A wonder that finds no site on a cramped map is
// skipped, not an error.
func placeWonders(gs *game.GameState, rs *ruleset.Ruleset, rng *rand.Rand, capitals []core.Coordinate) {
	for _, wonderID := range rs.WonderIDs() {
		for attempt := 0; attempt < placementAttempts; attempt++ {
			c := core.NewCoordinate(rng.Intn(gs.Grid.Width()), rng.Intn(gs.Grid.Height()))
			t := gs.Grid.At(c)
			if !t.Terrain.Passable() || t.CityID != "" || t.NaturalWonderID != "" {
				continue
			}
			if tooClose(c, capitals, wonderCapitalSpacing) {
				continue
			}
			t.NaturalWonderID = wonderID
			break
		}
	}
}

// placeStartingUnits gives each civilization a warrior on its capital and a
// scout on the first free passable neighbor.
func placeStartingUnits(gs *game.GameState, rs *ruleset.Ruleset, capitals []core.Coordinate) error {
	warriorDef, ok := rs.Unit("warrior")
	if !ok {
		return fmt.Errorf("ruleset missing warrior definition")
	}
	scoutDef, hasScout := rs.Unit("scout")

	for i, civID := range rs.CivIDs() {
		capital := capitals[i]
		gs.PlaceUnit(&game.Unit{
			ID:        gs.NewUnitID(),
			TypeID:    warriorDef.ID,
			OwnerID:   civID,
			Pos:       capital,
			HP:        warriorDef.HP,
			Strength:  warriorDef.Strength,
			Movement:  warriorDef.Movement,
			MovesLeft: warriorDef.Movement,
		})
		if !hasScout {
			continue
		}
		for _, d := range core.Cardinals {
			c := capital.Add(d)
			if !gs.Grid.Contains(c) {
				continue
			}
			t := gs.Grid.At(c)
			if !t.Terrain.Passable() || t.UnitID != "" {
				continue
			}
			gs.PlaceUnit(&game.Unit{
				ID:        gs.NewUnitID(),
				TypeID:    scoutDef.ID,
				OwnerID:   civID,
				Pos:       c,
				HP:        scoutDef.HP,
				Strength:  scoutDef.Strength,
				Movement:  scoutDef.Movement,
				MovesLeft: scoutDef.Movement,
			})
			break
		}
	}
	return nil
}
