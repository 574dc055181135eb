// Package game defines the civilization game state and the actions that
// mutate it. The GameState aggregate is owned by exactly one turn-advance
// call at a time; callers serialize access per game id.
package game

import (
	"fmt"
	"sort"

	"github.com/serrrfirat/iso-civ-sub000/internal/game/core"
)

// Phase is the turn pipeline position of a game. A state at rest is always
// PhaseIdle; the intermediate phases are only ever observable through the
// event bus, never on a returned state.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseDiplomacy  Phase = "diplomacy"
	PhasePlanning   Phase = "planning"
	PhaseResolution Phase = "resolution"
	PhaseNarration  Phase = "narration"
)

// Terrain classifies a tile.
type Terrain string

const (
	TerrainGrass    Terrain = "grass"
	TerrainPlains   Terrain = "plains"
	TerrainForest   Terrain = "forest"
	TerrainDesert   Terrain = "desert"
	TerrainMountain Terrain = "mountain"
	TerrainWater    Terrain = "water"
)

// Passable reports whether land units may enter the terrain.
func (t Terrain) Passable() bool {
	return t != TerrainMountain && t != TerrainWater
}

// Tile is one cell of the grid. Unit/city fields are back-references into
// the root maps, not ownership.
type Tile struct {
	Terrain         Terrain `json:"terrain"`
	Resource        string  `json:"resource,omitempty"`
	NaturalWonderID string  `json:"naturalWonderId,omitempty"`
	Improvement     string  `json:"improvement,omitempty"`
	OwnerID         string  `json:"ownerId,omitempty"`
	CityID          string  `json:"cityId,omitempty"`
	UnitID          string  `json:"unitId,omitempty"`
}

// Grid is the world map, indexed [y][x].
type Grid [][]Tile

// Width returns the horizontal extent of the grid.
func (g Grid) Width() int {
	if len(g) == 0 {
		return 0
	}
	return len(g[0])
}

// Height returns the vertical extent of the grid.
func (g Grid) Height() int { return len(g) }

// Contains reports whether c lies on the grid.
func (g Grid) Contains(c core.Coordinate) bool {
	return c.IsValid(g.Width(), g.Height())
}

// At returns a pointer to the tile at c. The caller must bounds-check first.
func (g Grid) At(c core.Coordinate) *Tile {
	return &g[c.Y][c.X]
}

// Unit is a mobile piece on the grid.
type Unit struct {
	ID        string          `json:"id"`
	TypeID    string          `json:"typeId"`
	OwnerID   string          `json:"ownerId"`
	Pos       core.Coordinate `json:"pos"`
	HP        int             `json:"hp"`
	Strength  int             `json:"strength"`
	Movement  int             `json:"movement"`
	MovesLeft int             `json:"movesLeft"`
}

// City is a settlement on the grid.
type City struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	OwnerID            string          `json:"ownerId"`
	Pos                core.Coordinate `json:"pos"`
	Population         int             `json:"population"`
	Food               int             `json:"food"`
	Production         string          `json:"production,omitempty"`
	ProductionProgress int             `json:"productionProgress"`
	Buildings          []string        `json:"buildings,omitempty"`
}

// Relation is the diplomatic stance between two civilizations.
type Relation string

const (
	RelationPeace    Relation = "peace"
	RelationWar      Relation = "war"
	RelationAlliance Relation = "alliance"
)

// CulturalArtifact is one entry of a civilization's culture log.
type CulturalArtifact struct {
	ID          string `json:"id"`
	CivID       string `json:"civId"`
	Kind        string `json:"kind"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Turn        int    `json:"turn"`
}

// Culture holds the cultural output of a civilization.
type Culture struct {
	Artifacts        []CulturalArtifact `json:"artifacts,omitempty"`
	ConstitutionName string             `json:"constitutionName,omitempty"`
	ReligionName     string             `json:"religionName,omitempty"`
	Summary          string             `json:"summary,omitempty"`
}

// Civilization is one player. Unit/city rosters index into the root maps.
type Civilization struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Leader        string              `json:"leader"`
	IsAlive       bool                `json:"isAlive"`
	UnitIDs       []string            `json:"unitIds"`
	CityIDs       []string            `json:"cityIds"`
	Relationships map[string]Relation `json:"relationships"`
	Gold          int                 `json:"gold"`
	Science       int                 `json:"science"`
	Happiness     int                 `json:"happiness"`
	ResearchTech  string              `json:"researchTech,omitempty"`
	ResearchGot   int                 `json:"researchProgress"`
	Techs         []string            `json:"techs,omitempty"`
	Government    string              `json:"government,omitempty"`
	Culture       Culture             `json:"culture"`
}

// DiplomacyMessage is one utterance of the diplomacy phase. ToCivID is a
// civ id or BroadcastAddr.
type DiplomacyMessage struct {
	Turn      int    `json:"turn"`
	FromCivID string `json:"fromCivId"`
	ToCivID   string `json:"toCivId"`
	Tone      string `json:"tone,omitempty"`
	Text      string `json:"text"`
}

// BroadcastAddr addresses a diplomacy message to every civilization.
const BroadcastAddr = "all"

// TurnEvent is one entry of the per-turn event log.
type TurnEvent struct {
	Turn  int    `json:"turn"`
	CivID string `json:"civId,omitempty"`
	Kind  string `json:"kind"`
	Text  string `json:"text"`
}

// CombatEvent records one resolved combat for the combat log.
type CombatEvent struct {
	Turn       int             `json:"turn"`
	AttackerID string          `json:"attackerId"`
	DefenderID string          `json:"defenderId"`
	At         core.Coordinate `json:"at"`
	Damage     int             `json:"damage"`
	Killed     bool            `json:"killed"`
}

// Notification is a user-facing alert; shape is a UI collaborator concern.
type Notification struct {
	ID    string `json:"id"`
	Turn  int    `json:"turn"`
	CivID string `json:"civId,omitempty"`
	Text  string `json:"text"`
}

// CameraEvent asks the (external) renderer to focus a coordinate.
type CameraEvent struct {
	At     core.Coordinate `json:"at"`
	Reason string          `json:"reason"`
}

// CombatEffect is a transient visual cue; shape is a renderer concern.
type CombatEffect struct {
	At   core.Coordinate `json:"at"`
	Kind string          `json:"kind"`
}

// CivTurnSummary captures one civilization's slice of a turn for replay.
type CivTurnSummary struct {
	Turn      int                `json:"turn"`
	CivID     string             `json:"civId"`
	Diplomacy []DiplomacyMessage `json:"diplomacy,omitempty"`
	Events    []string           `json:"events,omitempty"`
}

// GameState is the root aggregate. It is created once by map generation and
// then mutated in place by successive turn advances; no new root object is
// ever constructed mid-turn.
type GameState struct {
	ID       string `json:"id"`
	Seed     int64  `json:"seed"`
	Turn     int    `json:"turn"`
	MaxTurns int    `json:"maxTurns"`
	Phase    Phase  `json:"phase"`

	Grid   Grid                     `json:"grid"`
	Civs   map[string]*Civilization `json:"civilizations"`
	Units  map[string]*Unit         `json:"units"`
	Cities map[string]*City         `json:"cities"`

	DiplomacyLog  []DiplomacyMessage `json:"diplomacyLog"`
	CombatLog     []CombatEvent      `json:"combatLog"`
	TurnEvents    []TurnEvent        `json:"turnEvents"`
	Notifications []Notification     `json:"notifications"`
	CameraEvents  []CameraEvent      `json:"cameraEvents"`
	CombatEffects []CombatEffect     `json:"combatEffects"`

	CivTurnSummaries []CivTurnSummary   `json:"civTurnSummaries"`
	CulturalEvents   []CulturalArtifact `json:"culturalEvents"`
	CurrentNarration string             `json:"currentNarration,omitempty"`

	// Winner is the empty string until a victory condition is met; once
	// set, the turn never advances again.
	Winner string `json:"winner,omitempty"`

	// NextUnitSeq feeds unit id generation ("unit_<n>"); scout wandering
	// parses the numeric suffix back out, so ids keep this shape.
	NextUnitSeq int `json:"nextUnitSeq"`
	NextCitySeq int `json:"nextCitySeq"`
}

// AliveCivOrder returns the ids of living civilizations in a fixed,
// explicit order (sorted ids). This list decides who speaks first in
// diplomacy and planning; later civs see earlier civs' messages.
func (gs *GameState) AliveCivOrder() []string {
	ids := make([]string, 0, len(gs.Civs))
	for id, civ := range gs.Civs {
		if civ.IsAlive {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// NewUnitID mints the next unit id.
func (gs *GameState) NewUnitID() string {
	gs.NextUnitSeq++
	return fmt.Sprintf("unit_%d", gs.NextUnitSeq)
}

// NewCityID mints the next city id.
func (gs *GameState) NewCityID() string {
	gs.NextCitySeq++
	return fmt.Sprintf("city_%d", gs.NextCitySeq)
}

// PlaceUnit registers a unit in the root map, its owner's roster and its
// tile back-reference.
func (gs *GameState) PlaceUnit(u *Unit) {
	gs.Units[u.ID] = u
	civ := gs.Civs[u.OwnerID]
	civ.UnitIDs = append(civ.UnitIDs, u.ID)
	gs.Grid.At(u.Pos).UnitID = u.ID
}

// RemoveUnit deletes a unit and every reference to it.
func (gs *GameState) RemoveUnit(id string) {
	u, ok := gs.Units[id]
	if !ok {
		return
	}
	if gs.Grid.Contains(u.Pos) && gs.Grid.At(u.Pos).UnitID == id {
		gs.Grid.At(u.Pos).UnitID = ""
	}
	if civ, ok := gs.Civs[u.OwnerID]; ok {
		civ.UnitIDs = removeID(civ.UnitIDs, id)
	}
	delete(gs.Units, id)
}

// TransferCity moves a city to a new owner, updating rosters and the tile.
func (gs *GameState) TransferCity(cityID, newOwnerID string) {
	c, ok := gs.Cities[cityID]
	if !ok {
		return
	}
	if old, ok := gs.Civs[c.OwnerID]; ok {
		old.CityIDs = removeID(old.CityIDs, cityID)
	}
	c.OwnerID = newOwnerID
	civ := gs.Civs[newOwnerID]
	civ.CityIDs = append(civ.CityIDs, cityID)
	gs.Grid.At(c.Pos).OwnerID = newOwnerID
}

// AppendTurnEvent records a turn event and returns its text for the flat
// per-turn event list.
func (gs *GameState) AppendTurnEvent(civID, kind, text string) string {
	gs.TurnEvents = append(gs.TurnEvents, TurnEvent{
		Turn:  gs.Turn,
		CivID: civID,
		Kind:  kind,
		Text:  text,
	})
	return text
}

// CheckInvariants verifies the referential integrity the turn pipeline
// depends on: every rostered or tile-referenced id resolves in its root
// map. A violation means the state is corrupt; callers should fail fast
// rather than hand such a state to the fallback simulator.
func (gs *GameState) CheckInvariants() error {
	for civID, civ := range gs.Civs {
		for _, uid := range civ.UnitIDs {
			if _, ok := gs.Units[uid]; !ok {
				return fmt.Errorf("civ %s references missing unit %s", civID, uid)
			}
		}
		for _, cid := range civ.CityIDs {
			if _, ok := gs.Cities[cid]; !ok {
				return fmt.Errorf("civ %s references missing city %s", civID, cid)
			}
		}
	}
	for y := range gs.Grid {
		for x := range gs.Grid[y] {
			t := &gs.Grid[y][x]
			if t.UnitID != "" {
				if _, ok := gs.Units[t.UnitID]; !ok {
					return fmt.Errorf("tile (%d,%d) references missing unit %s", x, y, t.UnitID)
				}
			}
			if t.CityID != "" {
				if _, ok := gs.Cities[t.CityID]; !ok {
					return fmt.Errorf("tile (%d,%d) references missing city %s", x, y, t.CityID)
				}
			}
		}
	}
	for uid, u := range gs.Units {
		if _, ok := gs.Civs[u.OwnerID]; !ok {
			return fmt.Errorf("unit %s owned by missing civ %s", uid, u.OwnerID)
		}
	}
	for cid, c := range gs.Cities {
		if _, ok := gs.Civs[c.OwnerID]; !ok {
			return fmt.Errorf("city %s owned by missing civ %s", cid, c.OwnerID)
		}
	}
	return nil
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
