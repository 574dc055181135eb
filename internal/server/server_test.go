package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serrrfirat/iso-civ-sub000/internal/agent/agenttest"
	"github.com/serrrfirat/iso-civ-sub000/internal/game/events"
	"github.com/serrrfirat/iso-civ-sub000/internal/game/ruleset"
	"github.com/serrrfirat/iso-civ-sub000/internal/testutil"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	bus := events.NewEventBus()
	m := NewManager(newTestStore(t), &agenttest.Stub{}, ruleset.MustLoad(), bus, testutil.NopLogger())
	return New("127.0.0.1:0", m, bus, testutil.NopLogger())
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.http.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAdvanceCreatesAndAdvances(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.http.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/game/game_x/advance?seed=7", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Source string `json:"source"`
		State  struct {
			ID   string `json:"id"`
			Turn int    `json:"turn"`
		} `json:"state"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(SourceAgent), resp.Source)
	assert.Equal(t, "game_x", resp.State.ID)
	assert.Equal(t, 2, resp.State.Turn)

	// Second advance continues the same game.
	rec = httptest.NewRecorder()
	srv.http.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/game/game_x/advance", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.State.Turn)
}

func TestAdvanceRejectsBadSeed(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.http.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/game/game_x/advance?seed=banana", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUnknownGame(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.http.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/game/game_missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteGame(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.http.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/game/game_y/advance", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.http.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/game/game_y", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	srv.http.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/game/game_y", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSeedForIsStable(t *testing.T) {
	assert.Equal(t, seedFor("game_abc"), seedFor("game_abc"))
	assert.NotEqual(t, seedFor("game_abc"), seedFor("game_abd"))
}
