package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/serrrfirat/iso-civ-sub000/internal/game/core"
	"github.com/serrrfirat/iso-civ-sub000/internal/game/events"
)

// Server is the HTTP boundary. Routing uses Go 1.22 method patterns.
type Server struct {
	manager *Manager
	hub     *Hub
	logger  zerolog.Logger
	http    *http.Server
}

// New assembles the HTTP server on addr.
func New(addr string, manager *Manager, bus *events.EventBus, logger zerolog.Logger) *Server {
	s := &Server{
		manager: manager,
		hub:     NewHub(bus, logger),
		logger:  logger.With().Str("component", "http_server").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/games", s.handleList)
	mux.HandleFunc("GET /api/game/{id}", s.handleGet)
	mux.HandleFunc("POST /api/game/{id}/advance", s.handleAdvance)
	mux.HandleFunc("DELETE /api/game/{id}", s.handleDelete)
	mux.HandleFunc("GET /api/game/{id}/ws", s.handleWS)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run serves until the context is canceled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.http.Addr).Msg("HTTP server listening")
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	rows, err := s.manager.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	gs, err := s.manager.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gs)
}

// handleAdvance creates the game on first touch, then runs one turn. The
// response reports which pipeline produced it.
func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	seed := seedFor(id)
	if q := r.URL.Query().Get("seed"); q != "" {
		parsed, err := strconv.ParseInt(q, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "seed must be an integer"})
			return
		}
		seed = parsed
	}

	if _, _, err := s.manager.Ensure(r.Context(), id, seed); err != nil {
		s.writeError(w, err)
		return
	}

	outcome, err := s.manager.Advance(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := map[string]interface{}{
		"source": outcome.Source,
		"state":  outcome.State,
	}
	if outcome.AgentErr != nil {
		resp["agentError"] = outcome.AgentErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r, r.PathValue("id"))
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrGameNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrCorruptState):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("Request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// seedFor derives a stable default seed from the game id, so repeatedly
// touching the same id always builds the same world.
func seedFor(id string) int64 {
	h := fnv.New64a()
	fmt.Fprint(h, id)
	return int64(h.Sum64())
}
