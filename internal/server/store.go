// Package server hosts the HTTP boundary: persistence, per-game turn
// serialization with agent/local fallback, the REST surface and the
// websocket event feed.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/serrrfirat/iso-civ-sub000/internal/game"
)

// ErrGameNotFound is returned when a game id resolves to nothing.
var ErrGameNotFound = errors.New("game not found")

const schema = `
CREATE TABLE IF NOT EXISTS games (
	id         TEXT PRIMARY KEY,
	turn       INTEGER NOT NULL,
	winner     TEXT NOT NULL DEFAULT '',
	state      BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
`

// Store persists game states as zstd-compressed JSON blobs in SQLite. The
// denormalized turn/winner columns exist so listings never decompress
// full states.
type Store struct {
	db     *sqlx.DB
	enc    *zstd.Encoder
	dec    *zstd.Decoder
	logger zerolog.Logger
}

// GameRow is the listing view of a stored game.
type GameRow struct {
	ID        string    `db:"id" json:"id"`
	Turn      int       `db:"turn" json:"turn"`
	Winner    string    `db:"winner" json:"winner,omitempty"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewStore opens (or creates) the database at path.
func NewStore(path string, logger zerolog.Logger) (*Store, error) {
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	// modernc.org/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent saves.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}

	return &Store{
		db:     db,
		enc:    enc,
		dec:    dec,
		logger: logger.With().Str("component", "store").Logger(),
	}, nil
}

// Save upserts a game state.
func (s *Store) Save(ctx context.Context, gs *game.GameState) error {
	raw, err := json.Marshal(gs)
	if err != nil {
		return fmt.Errorf("encoding state %s: %w", gs.ID, err)
	}
	blob := s.enc.EncodeAll(raw, nil)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO games (id, turn, winner, state, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			turn = excluded.turn,
			winner = excluded.winner,
			state = excluded.state,
			updated_at = excluded.updated_at`,
		gs.ID, gs.Turn, gs.Winner, blob, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving game %s: %w", gs.ID, err)
	}
	s.logger.Debug().Str("game", gs.ID).Int("turn", gs.Turn).Int("blob_bytes", len(blob)).Msg("Game saved")
	return nil
}

// Load reads a game state by id.
func (s *Store) Load(ctx context.Context, id string) (*game.GameState, error) {
	var blob []byte
	err := s.db.GetContext(ctx, &blob, `SELECT state FROM games WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading game %s: %w", id, err)
	}

	raw, err := s.dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing game %s: %w", id, err)
	}
	var gs game.GameState
	if err := json.Unmarshal(raw, &gs); err != nil {
		return nil, fmt.Errorf("decoding game %s: %w", id, err)
	}
	return &gs, nil
}

// List returns metadata for every stored game, newest first.
func (s *Store) List(ctx context.Context) ([]GameRow, error) {
	rows := []GameRow{}
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, turn, winner, updated_at FROM games ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing games: %w", err)
	}
	return rows, nil
}

// Delete removes a stored game.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM games WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting game %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrGameNotFound, id)
	}
	return nil
}

// Close releases the database and codec resources.
func (s *Store) Close() error {
	s.enc.Close()
	s.dec.Close()
	return s.db.Close()
}
