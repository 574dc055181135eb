package game_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serrrfirat/iso-civ-sub000/internal/game"
	"github.com/serrrfirat/iso-civ-sub000/internal/game/core"
	"github.com/serrrfirat/iso-civ-sub000/internal/testutil"
)

func TestAliveCivOrder(t *testing.T) {
	gs := testutil.CreateTestState("norvind", "aurelia", "kethmar")

	assert.Equal(t, []string{"aurelia", "kethmar", "norvind"}, gs.AliveCivOrder())

	gs.Civs["kethmar"].IsAlive = false
	assert.Equal(t, []string{"aurelia", "norvind"}, gs.AliveCivOrder())
}

func TestUnitIDShape(t *testing.T) {
	gs := testutil.CreateTestState("aurelia")
	assert.Equal(t, "unit_3", gs.NewUnitID())
	assert.Equal(t, "unit_4", gs.NewUnitID())
	assert.Equal(t, "city_2", gs.NewCityID())
}

func TestPlaceAndRemoveUnit(t *testing.T) {
	gs := testutil.CreateTestState("aurelia")
	pos := core.NewCoordinate(8, 8)
	u := testutil.PlaceTestUnit(gs, "aurelia", "archer", pos)

	assert.Equal(t, u.ID, gs.Grid.At(pos).UnitID)
	assert.Contains(t, gs.Civs["aurelia"].UnitIDs, u.ID)

	gs.RemoveUnit(u.ID)
	assert.Empty(t, gs.Grid.At(pos).UnitID)
	assert.NotContains(t, gs.Civs["aurelia"].UnitIDs, u.ID)
	assert.NotContains(t, gs.Units, u.ID)
}

func TestTransferCity(t *testing.T) {
	gs := testutil.CreateTestState("aurelia", "kethmar")
	cityID := gs.Civs["aurelia"].CityIDs[0]

	gs.TransferCity(cityID, "kethmar")

	assert.Empty(t, gs.Civs["aurelia"].CityIDs)
	assert.Contains(t, gs.Civs["kethmar"].CityIDs, cityID)
	city := gs.Cities[cityID]
	assert.Equal(t, "kethmar", city.OwnerID)
	assert.Equal(t, "kethmar", gs.Grid.At(city.Pos).OwnerID)
}

func TestCheckInvariants(t *testing.T) {
	gs := testutil.CreateTestState("aurelia", "kethmar")
	require.NoError(t, gs.CheckInvariants())

	t.Run("dangling roster unit", func(t *testing.T) {
		broken := mustClone(t, gs)
		broken.Civs["aurelia"].UnitIDs = append(broken.Civs["aurelia"].UnitIDs, "unit_999")
		assert.Error(t, broken.CheckInvariants())
	})

	t.Run("dangling tile reference", func(t *testing.T) {
		broken := mustClone(t, gs)
		broken.Grid.At(core.NewCoordinate(0, 0)).CityID = "city_999"
		assert.Error(t, broken.CheckInvariants())
	})

	t.Run("orphaned unit owner", func(t *testing.T) {
		broken := mustClone(t, gs)
		for _, u := range broken.Units {
			u.OwnerID = "atlantis"
			break
		}
		assert.Error(t, broken.CheckInvariants())
	})
}

func TestCloneIsIndependent(t *testing.T) {
	gs := testutil.CreateTestState("aurelia")
	gs.Civs["aurelia"].Gold = 100

	clone := mustClone(t, gs)
	clone.Civs["aurelia"].Gold = 5
	clone.Turn = 9
	clone.Grid.At(core.NewCoordinate(0, 0)).Terrain = game.TerrainWater

	assert.Equal(t, 100, gs.Civs["aurelia"].Gold)
	assert.Equal(t, 1, gs.Turn)
	assert.Equal(t, game.TerrainGrass, gs.Grid.At(core.NewCoordinate(0, 0)).Terrain)
	require.NoError(t, clone.CheckInvariants())
}

func mustClone(t *testing.T, gs *game.GameState) *game.GameState {
	t.Helper()
	clone, err := gs.Clone()
	require.NoError(t, err)
	return clone
}
