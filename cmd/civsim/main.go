package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/serrrfirat/iso-civ-sub000/internal/game"
	"github.com/serrrfirat/iso-civ-sub000/internal/game/mapgen"
	"github.com/serrrfirat/iso-civ-sub000/internal/game/ruleset"
	"github.com/serrrfirat/iso-civ-sub000/internal/game/turn"
)

// Offline demo: generate a world and run it entirely on the local
// simulator, printing the map every few turns.
func main() {
	seed := flag.Int64("seed", time.Now().UnixNano(), "world seed")
	turns := flag.Int("turns", 20, "turns to simulate")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel)
	rs := ruleset.MustLoad()

	fmt.Printf("World seed: %d\n", *seed)
	gs, err := mapgen.Generate(*seed, rs, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mapgen: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Initial world:\n%s\n", renderGrid(gs))

	for i := 0; i < *turns && gs.Winner == ""; i++ {
		if err := turn.AdvanceLocal(gs, *seed, rs, logger); err != nil {
			fmt.Fprintf(os.Stderr, "turn %d: %v\n", gs.Turn, err)
			os.Exit(1)
		}
		if gs.Turn%5 == 0 || gs.Winner != "" {
			fmt.Printf("After turn %d:\n%s\n", gs.Turn-1, renderGrid(gs))
			for _, civID := range gs.AliveCivOrder() {
				civ := gs.Civs[civID]
				fmt.Printf("  %-10s gold=%-4d cities=%d units=%d techs=%d\n",
					civ.Name, civ.Gold, len(civ.CityIDs), len(civ.UnitIDs), len(civ.Techs))
			}
			fmt.Println()
		}
	}

	if gs.Winner != "" {
		fmt.Printf("Game over! %s wins on turn %d.\n", gs.Civs[gs.Winner].Name, gs.Turn-1)
	} else {
		fmt.Printf("Simulation stopped after %d turns with no winner.\n", *turns)
	}
}

// renderGrid draws the map with ANSI colors: terrain as background dots,
// cities as C, units as the first letter of their type.
func renderGrid(gs *game.GameState) string {
	out := ""
	for y := 0; y < gs.Grid.Height(); y++ {
		for x := 0; x < gs.Grid.Width(); x++ {
			t := gs.Grid[y][x]
			switch {
			case t.CityID != "":
				out += "\x1b[1;33mC\x1b[0m"
			case t.UnitID != "":
				out += fmt.Sprintf("\x1b[1;37m%c\x1b[0m", gs.Units[t.UnitID].TypeID[0])
			case t.NaturalWonderID != "":
				out += "\x1b[1;35m*\x1b[0m"
			default:
				out += terrainGlyph(t.Terrain)
			}
		}
		out += "\n"
	}
	return out
}

func terrainGlyph(t game.Terrain) string {
	switch t {
	case game.TerrainWater:
		return "\x1b[34m~\x1b[0m"
	case game.TerrainMountain:
		return "\x1b[90m^\x1b[0m"
	case game.TerrainForest:
		return "\x1b[32mT\x1b[0m"
	case game.TerrainDesert:
		return "\x1b[33m.\x1b[0m"
	default:
		return "\x1b[92m.\x1b[0m"
	}
}
