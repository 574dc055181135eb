package server

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serrrfirat/iso-civ-sub000/internal/testutil"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "civ_test.db"), testutil.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreSaveAndLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	gs := testutil.CreateTestState("aurelia", "kethmar")
	gs.Turn = 12
	gs.CurrentNarration = "The age of bronze dawns."
	require.NoError(t, store.Save(ctx, gs))

	loaded, err := store.Load(ctx, gs.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, loaded.Turn)
	assert.Equal(t, "The age of bronze dawns.", loaded.CurrentNarration)
	assert.Len(t, loaded.Civs, 2)
	assert.Equal(t, gs.Grid.Width(), loaded.Grid.Width())
	require.NoError(t, loaded.CheckInvariants())
}

func TestStoreUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	gs := testutil.CreateTestState("aurelia")
	require.NoError(t, store.Save(ctx, gs))
	gs.Turn = 2
	gs.Winner = "aurelia"
	require.NoError(t, store.Save(ctx, gs))

	rows, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].Turn)
	assert.Equal(t, "aurelia", rows[0].Winner)
}

func TestStoreLoadMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Load(context.Background(), "game_nope")
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestStoreDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	gs := testutil.CreateTestState("aurelia")
	require.NoError(t, store.Save(ctx, gs))
	require.NoError(t, store.Delete(ctx, gs.ID))

	_, err := store.Load(ctx, gs.ID)
	assert.ErrorIs(t, err, ErrGameNotFound)
	assert.ErrorIs(t, store.Delete(ctx, gs.ID), ErrGameNotFound)
}
