package game

import (
	"fmt"
	"hash/fnv"
	"math/rand"

	"github.com/google/uuid"

	"github.com/serrrfirat/iso-civ-sub000/internal/game/core"
	"github.com/serrrfirat/iso-civ-sub000/internal/game/ruleset"
)

// ActionKind discriminates proposed actions.
type ActionKind string

const (
	ActionBuild     ActionKind = "build"
	ActionMoveUnit  ActionKind = "move_unit"
	ActionFoundCity ActionKind = "found_city"
	ActionAttack    ActionKind = "attack"
)

// Action is one proposed move for a civilization. Validate is a pure check
// against the current state; a non-nil error marks the action inadmissible,
// which the turn pipeline treats as a silent drop, never a failure. Apply
// mutates the state in place and returns human-readable event strings for
// the turn log. The seed makes any combat randomness reproducible for the
// same state and seed.
type Action interface {
	CivID() string
	Kind() ActionKind
	Validate(gs *GameState, rs *ruleset.Ruleset) error
	Apply(gs *GameState, rs *ruleset.Ruleset, seed int64) []string
}

// actingCiv resolves the actor and rejects dead civilizations.
func actingCiv(gs *GameState, civID string) (*Civilization, error) {
	civ, ok := gs.Civs[civID]
	if !ok {
		return nil, fmt.Errorf("civ %s: %w", civID, core.ErrNotOwned)
	}
	if !civ.IsAlive {
		return nil, fmt.Errorf("civ %s: %w", civID, core.ErrCivDead)
	}
	return civ, nil
}

// BuildAction orders a city to produce a unit or building.
type BuildAction struct {
	Civ  string `json:"civId"`
	City string `json:"cityId"`
	Item string `json:"item"`
}

func (a *BuildAction) CivID() string    { return a.Civ }
func (a *BuildAction) Kind() ActionKind { return ActionBuild }

func (a *BuildAction) Validate(gs *GameState, rs *ruleset.Ruleset) error {
	civ, err := actingCiv(gs, a.Civ)
	if err != nil {
		return err
	}
	city, ok := gs.Cities[a.City]
	if !ok || city.OwnerID != a.Civ {
		return fmt.Errorf("city %s: %w", a.City, core.ErrNotOwned)
	}
	goldCost, ok := itemGoldCost(rs, a.Item)
	if !ok {
		return fmt.Errorf("item %s: %w", a.Item, core.ErrUnknownItem)
	}
	if bld, ok := rs.Building(a.Item); ok {
		for _, built := range city.Buildings {
			if built == bld.ID {
				return fmt.Errorf("building %s already present: %w", a.Item, core.ErrUnknownItem)
			}
		}
	}
	if civ.Gold < goldCost {
		return fmt.Errorf("item %s costs %d gold: %w", a.Item, goldCost, core.ErrInsufficientGold)
	}
	return nil
}

func (a *BuildAction) Apply(gs *GameState, rs *ruleset.Ruleset, seed int64) []string {
	civ := gs.Civs[a.Civ]
	city := gs.Cities[a.City]
	goldCost, _ := itemGoldCost(rs, a.Item)
	civ.Gold -= goldCost
	city.Production = a.Item
	city.ProductionProgress = 0
	ev := gs.AppendTurnEvent(a.Civ, "production",
		fmt.Sprintf("%s begins producing %s in %s", civ.Name, itemName(rs, a.Item), city.Name))
	return []string{ev}
}

// MoveUnitAction moves a unit within its remaining movement allowance.
type MoveUnitAction struct {
	Civ  string          `json:"civId"`
	Unit string          `json:"unitId"`
	To   core.Coordinate `json:"to"`
}

func (a *MoveUnitAction) CivID() string    { return a.Civ }
func (a *MoveUnitAction) Kind() ActionKind { return ActionMoveUnit }

func (a *MoveUnitAction) Validate(gs *GameState, rs *ruleset.Ruleset) error {
	if _, err := actingCiv(gs, a.Civ); err != nil {
		return err
	}
	u, ok := gs.Units[a.Unit]
	if !ok || u.OwnerID != a.Civ {
		return fmt.Errorf("unit %s: %w", a.Unit, core.ErrNotOwned)
	}
	if u.MovesLeft <= 0 {
		return fmt.Errorf("unit %s: %w", a.Unit, core.ErrNoMovement)
	}
	if !gs.Grid.Contains(a.To) {
		return fmt.Errorf("target %s: %w", a.To, core.ErrInvalidCoordinates)
	}
	dist := u.Pos.DistanceTo(a.To)
	if dist == 0 || dist > u.MovesLeft {
		return fmt.Errorf("target %s at distance %d: %w", a.To, dist, core.ErrOutOfRange)
	}
	tile := gs.Grid.At(a.To)
	if !tile.Terrain.Passable() {
		return fmt.Errorf("target %s is %s: %w", a.To, tile.Terrain, core.ErrImpassable)
	}
	if tile.UnitID != "" {
		return fmt.Errorf("target %s: %w", a.To, core.ErrTileOccupied)
	}
	if tile.CityID != "" {
		if city, ok := gs.Cities[tile.CityID]; ok && city.OwnerID != a.Civ {
			// Entering a hostile city is an attack, not a move.
			return fmt.Errorf("target %s holds an enemy city: %w", a.To, core.ErrTileOccupied)
		}
	}
	return nil
}

func (a *MoveUnitAction) Apply(gs *GameState, rs *ruleset.Ruleset, seed int64) []string {
	civ := gs.Civs[a.Civ]
	u := gs.Units[a.Unit]
	dist := u.Pos.DistanceTo(a.To)

	if gs.Grid.At(u.Pos).UnitID == u.ID {
		gs.Grid.At(u.Pos).UnitID = ""
	}
	u.Pos = a.To
	u.MovesLeft -= dist
	dest := gs.Grid.At(a.To)
	dest.UnitID = u.ID

	events := []string{gs.AppendTurnEvent(a.Civ, "movement",
		fmt.Sprintf("%s %s advances to %s", civ.Name, unitName(rs, u.TypeID), a.To))}

	if dest.NaturalWonderID != "" {
		wonder, _ := rs.NaturalWonder(dest.NaturalWonderID)
		events = append(events, gs.AppendTurnEvent(a.Civ, "discovery",
			fmt.Sprintf("%s discovers %s", civ.Name, wonder.Name)))
		gs.Notifications = append(gs.Notifications, Notification{
			ID:    uuid.NewString(),
			Turn:  gs.Turn,
			CivID: a.Civ,
			Text:  fmt.Sprintf("%s discovered: %s", wonder.Name, wonder.Blurb),
		})
		gs.CameraEvents = append(gs.CameraEvents, CameraEvent{At: a.To, Reason: "wonder_discovered"})
	}
	return events
}

// FoundCityAction consumes a settler to found a new city.
type FoundCityAction struct {
	Civ  string `json:"civId"`
	Unit string `json:"unitId"`
	Name string `json:"name"`
}

func (a *FoundCityAction) CivID() string    { return a.Civ }
func (a *FoundCityAction) Kind() ActionKind { return ActionFoundCity }

func (a *FoundCityAction) Validate(gs *GameState, rs *ruleset.Ruleset) error {
	if _, err := actingCiv(gs, a.Civ); err != nil {
		return err
	}
	u, ok := gs.Units[a.Unit]
	if !ok || u.OwnerID != a.Civ {
		return fmt.Errorf("unit %s: %w", a.Unit, core.ErrNotOwned)
	}
	if u.TypeID != "settler" {
		return fmt.Errorf("unit %s is a %s: %w", a.Unit, u.TypeID, core.ErrUnknownItem)
	}
	tile := gs.Grid.At(u.Pos)
	if tile.CityID != "" {
		return fmt.Errorf("tile %s already holds a city: %w", u.Pos, core.ErrTileOccupied)
	}
	if tile.OwnerID != "" && tile.OwnerID != a.Civ {
		return fmt.Errorf("tile %s: %w", u.Pos, core.ErrNotOwned)
	}
	return nil
}

func (a *FoundCityAction) Apply(gs *GameState, rs *ruleset.Ruleset, seed int64) []string {
	civ := gs.Civs[a.Civ]
	u := gs.Units[a.Unit]
	pos := u.Pos
	gs.RemoveUnit(a.Unit)

	name := a.Name
	if name == "" {
		name = fmt.Sprintf("%s Outpost", civ.Name)
	}
	city := &City{
		ID:         gs.NewCityID(),
		Name:       name,
		OwnerID:    a.Civ,
		Pos:        pos,
		Population: 1,
	}
	gs.Cities[city.ID] = city
	civ.CityIDs = append(civ.CityIDs, city.ID)
	tile := gs.Grid.At(pos)
	tile.CityID = city.ID
	tile.OwnerID = a.Civ

	gs.CameraEvents = append(gs.CameraEvents, CameraEvent{At: pos, Reason: "city_founded"})
	ev := gs.AppendTurnEvent(a.Civ, "expansion",
		fmt.Sprintf("%s founds the city of %s at %s", civ.Name, name, pos))
	return []string{ev}
}

// AttackAction resolves combat against an adjacent enemy unit or city.
type AttackAction struct {
	Civ    string          `json:"civId"`
	Unit   string          `json:"unitId"`
	Target core.Coordinate `json:"target"`
}

func (a *AttackAction) CivID() string    { return a.Civ }
func (a *AttackAction) Kind() ActionKind { return ActionAttack }

func (a *AttackAction) Validate(gs *GameState, rs *ruleset.Ruleset) error {
	if _, err := actingCiv(gs, a.Civ); err != nil {
		return err
	}
	u, ok := gs.Units[a.Unit]
	if !ok || u.OwnerID != a.Civ {
		return fmt.Errorf("unit %s: %w", a.Unit, core.ErrNotOwned)
	}
	if u.MovesLeft <= 0 {
		return fmt.Errorf("unit %s: %w", a.Unit, core.ErrNoMovement)
	}
	if !gs.Grid.Contains(a.Target) {
		return fmt.Errorf("target %s: %w", a.Target, core.ErrInvalidCoordinates)
	}
	if !u.Pos.IsAdjacentTo(a.Target) {
		return fmt.Errorf("target %s: %w", a.Target, core.ErrNotAdjacent)
	}
	tile := gs.Grid.At(a.Target)
	if tile.UnitID != "" {
		if def, ok := gs.Units[tile.UnitID]; ok && def.OwnerID != a.Civ {
			return nil
		}
		return fmt.Errorf("target %s holds a friendly unit: %w", a.Target, core.ErrNoTarget)
	}
	if tile.CityID != "" {
		if city, ok := gs.Cities[tile.CityID]; ok && city.OwnerID != a.Civ {
			return nil
		}
	}
	return fmt.Errorf("target %s: %w", a.Target, core.ErrNoTarget)
}

func (a *AttackAction) Apply(gs *GameState, rs *ruleset.Ruleset, seed int64) []string {
	civ := gs.Civs[a.Civ]
	u := gs.Units[a.Unit]
	u.MovesLeft = 0
	tile := gs.Grid.At(a.Target)
	rng := combatRNG(seed, a.Unit, gs.Turn)

	var events []string
	if tile.UnitID != "" {
		def := gs.Units[tile.UnitID]
		defCiv := gs.Civs[def.OwnerID]
		declareWar(civ, defCiv)

		damage := u.Strength + rng.Intn(6)
		counter := def.Strength/2 + rng.Intn(3)
		def.HP -= damage
		u.HP -= counter
		killed := def.HP <= 0

		gs.CombatLog = append(gs.CombatLog, CombatEvent{
			Turn:       gs.Turn,
			AttackerID: a.Unit,
			DefenderID: def.ID,
			At:         a.Target,
			Damage:     damage,
			Killed:     killed,
		})
		gs.CombatEffects = append(gs.CombatEffects, CombatEffect{At: a.Target, Kind: "melee"})

		events = append(events, gs.AppendTurnEvent(a.Civ, "combat",
			fmt.Sprintf("%s %s strikes the %s %s at %s for %d damage",
				civ.Name, unitName(rs, u.TypeID), defCiv.Name, unitName(rs, def.TypeID), a.Target, damage)))
		if killed {
			gs.RemoveUnit(def.ID)
			events = append(events, gs.AppendTurnEvent(a.Civ, "combat",
				fmt.Sprintf("The %s %s is destroyed", defCiv.Name, unitName(rs, def.TypeID))))
		}
		if u.HP <= 0 {
			gs.RemoveUnit(u.ID)
			events = append(events, gs.AppendTurnEvent(a.Civ, "combat",
				fmt.Sprintf("The %s %s falls in the counterattack", civ.Name, unitName(rs, u.TypeID))))
		}
		return events
	}

	// Undefended city: capture.
	city := gs.Cities[tile.CityID]
	defCiv := gs.Civs[city.OwnerID]
	declareWar(civ, defCiv)
	gs.TransferCity(city.ID, a.Civ)
	gs.CameraEvents = append(gs.CameraEvents, CameraEvent{At: a.Target, Reason: "city_captured"})
	events = append(events, gs.AppendTurnEvent(a.Civ, "conquest",
		fmt.Sprintf("%s captures %s from %s", civ.Name, city.Name, defCiv.Name)))
	return events
}

func declareWar(a, b *Civilization) {
	if a.Relationships == nil {
		a.Relationships = make(map[string]Relation)
	}
	if b.Relationships == nil {
		b.Relationships = make(map[string]Relation)
	}
	a.Relationships[b.ID] = RelationWar
	b.Relationships[a.ID] = RelationWar
}

// combatRNG derives a generator from the turn seed plus stable action
// identity, so a single action's outcome is reproducible regardless of how
// many other actions resolved first.
func combatRNG(seed int64, unitID string, turn int) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(unitID))
	return rand.New(rand.NewSource(seed ^ int64(h.Sum64()) ^ int64(turn)*7919))
}

func itemGoldCost(rs *ruleset.Ruleset, item string) (int, bool) {
	if u, ok := rs.Unit(item); ok {
		return u.GoldCost, true
	}
	if b, ok := rs.Building(item); ok {
		return b.GoldCost, true
	}
	return 0, false
}

func itemName(rs *ruleset.Ruleset, item string) string {
	if u, ok := rs.Unit(item); ok {
		return u.Name
	}
	if b, ok := rs.Building(item); ok {
		return b.Name
	}
	return item
}

func unitName(rs *ruleset.Ruleset, typeID string) string {
	if u, ok := rs.Unit(typeID); ok {
		return u.Name
	}
	return typeID
}
