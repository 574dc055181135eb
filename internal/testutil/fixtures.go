package testutil

import (
	"fmt"
	"strings"

	"github.com/serrrfirat/iso-civ-sub000/internal/game"
	"github.com/serrrfirat/iso-civ-sub000/internal/game/core"
)

// CreateTestGrid creates an all-grass grid with the given dimensions
func CreateTestGrid(width, height int) game.Grid {
	grid := make(game.Grid, height)
	for y := range grid {
		grid[y] = make([]game.Tile, width)
		for x := range grid[y] {
			grid[y][x] = game.Tile{Terrain: game.TerrainGrass}
		}
	}
	return grid
}

// CreateTestState creates a 16x16 all-grass world with one capital, one
// warrior (on the capital) and one scout (east of it) per civ id. Capitals
// sit along the diagonal at (2,2), (6,6), (10,10), ...
func CreateTestState(civIDs ...string) *game.GameState {
	gs := &game.GameState{
		ID:       "game_test",
		Seed:     42,
		Turn:     1,
		MaxTurns: 50,
		Phase:    game.PhaseIdle,
		Grid:     CreateTestGrid(16, 16),
		Civs:     make(map[string]*game.Civilization),
		Units:    make(map[string]*game.Unit),
		Cities:   make(map[string]*game.City),
	}

	for i, civID := range civIDs {
		civ := &game.Civilization{
			ID:            civID,
			Name:          titleCase(civID),
			IsAlive:       true,
			Relationships: make(map[string]game.Relation),
		}
		for _, otherID := range civIDs {
			if otherID != civID {
				civ.Relationships[otherID] = game.RelationPeace
			}
		}
		gs.Civs[civID] = civ

		pos := core.NewCoordinate(2+i*4, 2+i*4)
		city := &game.City{
			ID:         gs.NewCityID(),
			Name:       fmt.Sprintf("%s Capital", civ.Name),
			OwnerID:    civID,
			Pos:        pos,
			Population: 1,
		}
		gs.Cities[city.ID] = city
		civ.CityIDs = append(civ.CityIDs, city.ID)
		tile := gs.Grid.At(pos)
		tile.CityID = city.ID
		tile.OwnerID = civID

		gs.PlaceUnit(&game.Unit{
			ID:        gs.NewUnitID(),
			TypeID:    "warrior",
			OwnerID:   civID,
			Pos:       pos,
			HP:        20,
			Strength:  8,
			Movement:  1,
			MovesLeft: 1,
		})
		gs.PlaceUnit(&game.Unit{
			ID:        gs.NewUnitID(),
			TypeID:    "scout",
			OwnerID:   civID,
			Pos:       pos.Add(core.Cardinals[1]),
			HP:        12,
			Strength:  4,
			Movement:  2,
			MovesLeft: 2,
		})
	}
	return gs
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// PlaceTestUnit adds a unit of the given type at pos and returns it
func PlaceTestUnit(gs *game.GameState, civID, typeID string, pos core.Coordinate) *game.Unit {
	stats := map[string][4]int{
		"warrior": {20, 8, 1, 1},
		"scout":   {12, 4, 2, 2},
		"archer":  {16, 10, 1, 1},
		"settler": {10, 0, 1, 1},
	}
	s, ok := stats[typeID]
	if !ok {
		s = [4]int{10, 5, 1, 1}
	}
	u := &game.Unit{
		ID:        gs.NewUnitID(),
		TypeID:    typeID,
		OwnerID:   civID,
		Pos:       pos,
		HP:        s[0],
		Strength:  s[1],
		Movement:  s[2],
		MovesLeft: s[3],
	}
	gs.PlaceUnit(u)
	return u
}
