// Package ruleset exposes the static game data: civilizations, unit and
// building definitions, natural wonders and the tech tree. The data ships
// embedded in the binary and is read-only after Load.
package ruleset

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed data/ruleset.yaml
var rawRuleset []byte

// CivDef describes a playable civilization.
type CivDef struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Leader string `yaml:"leader"`
	Color  string `yaml:"color"`
}

// UnitDef describes a trainable unit type.
type UnitDef struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Cost     int    `yaml:"cost"`
	GoldCost int    `yaml:"gold_cost"`
	Strength int    `yaml:"strength"`
	Movement int    `yaml:"movement"`
	HP       int    `yaml:"hp"`
}

// BuildingDef describes a constructable building.
type BuildingDef struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Cost      int    `yaml:"cost"`
	GoldCost  int    `yaml:"gold_cost"`
	Happiness int    `yaml:"happiness"`
	Food      int    `yaml:"food"`
	Science   int    `yaml:"science"`
}

// WonderDef describes a natural wonder placed during map generation.
type WonderDef struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Blurb string `yaml:"blurb"`
}

// TechDef describes a researchable technology.
type TechDef struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Cost int    `yaml:"cost"`
}

type rulesetFile struct {
	Civilizations  []CivDef      `yaml:"civilizations"`
	Units          []UnitDef     `yaml:"units"`
	Buildings      []BuildingDef `yaml:"buildings"`
	NaturalWonders []WonderDef   `yaml:"natural_wonders"`
	Techs          []TechDef     `yaml:"techs"`
}

// Ruleset is the compiled, indexed form of the embedded data.
type Ruleset struct {
	civs      map[string]CivDef
	units     map[string]UnitDef
	buildings map[string]BuildingDef
	wonders   map[string]WonderDef
	techs     map[string]TechDef

	civOrder    []string
	wonderOrder []string
	techOrder   []string
}

// Load parses the embedded ruleset data.
func Load() (*Ruleset, error) {
	var f rulesetFile
	if err := yaml.Unmarshal(rawRuleset, &f); err != nil {
		return nil, fmt.Errorf("parsing embedded ruleset: %w", err)
	}

	rs := &Ruleset{
		civs:      make(map[string]CivDef, len(f.Civilizations)),
		units:     make(map[string]UnitDef, len(f.Units)),
		buildings: make(map[string]BuildingDef, len(f.Buildings)),
		wonders:   make(map[string]WonderDef, len(f.NaturalWonders)),
		techs:     make(map[string]TechDef, len(f.Techs)),
	}
	for _, c := range f.Civilizations {
		rs.civs[c.ID] = c
		rs.civOrder = append(rs.civOrder, c.ID)
	}
	for _, u := range f.Units {
		rs.units[u.ID] = u
	}
	for _, b := range f.Buildings {
		rs.buildings[b.ID] = b
	}
	for _, w := range f.NaturalWonders {
		rs.wonders[w.ID] = w
		rs.wonderOrder = append(rs.wonderOrder, w.ID)
	}
	for _, t := range f.Techs {
		rs.techs[t.ID] = t
		rs.techOrder = append(rs.techOrder, t.ID)
	}

	if len(rs.civOrder) == 0 {
		return nil, fmt.Errorf("ruleset contains no civilizations")
	}
	if _, ok := rs.units["warrior"]; !ok {
		return nil, fmt.Errorf("ruleset missing the warrior unit")
	}
	return rs, nil
}

// MustLoad is Load for initialization paths where a broken embedded ruleset
// is unrecoverable.
func MustLoad() *Ruleset {
	rs, err := Load()
	if err != nil {
		panic(err)
	}
	return rs
}

// Civilization returns the civ definition for id.
func (rs *Ruleset) Civilization(id string) (CivDef, bool) {
	c, ok := rs.civs[id]
	return c, ok
}

// Unit returns the unit definition for id.
func (rs *Ruleset) Unit(id string) (UnitDef, bool) {
	u, ok := rs.units[id]
	return u, ok
}

// Building returns the building definition for id.
func (rs *Ruleset) Building(id string) (BuildingDef, bool) {
	b, ok := rs.buildings[id]
	return b, ok
}

// NaturalWonder returns the wonder definition for id.
func (rs *Ruleset) NaturalWonder(id string) (WonderDef, bool) {
	w, ok := rs.wonders[id]
	return w, ok
}

// Tech returns the tech definition for id.
func (rs *Ruleset) Tech(id string) (TechDef, bool) {
	t, ok := rs.techs[id]
	return t, ok
}

// CivIDs returns civilization ids in declaration order.
func (rs *Ruleset) CivIDs() []string {
	return append([]string(nil), rs.civOrder...)
}

// WonderIDs returns natural wonder ids in declaration order.
func (rs *Ruleset) WonderIDs() []string {
	return append([]string(nil), rs.wonderOrder...)
}

// TechIDs returns tech ids in declaration (research) order.
func (rs *Ruleset) TechIDs() []string {
	return append([]string(nil), rs.techOrder...)
}

// NextTech returns the first tech not yet in the known set, or "" when the
// tree is exhausted.
func (rs *Ruleset) NextTech(known []string) string {
	have := make(map[string]struct{}, len(known))
	for _, id := range known {
		have[id] = struct{}{}
	}
	for _, id := range rs.techOrder {
		if _, ok := have[id]; !ok {
			return id
		}
	}
	return ""
}
