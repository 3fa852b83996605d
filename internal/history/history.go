// Package history persists a compact log of processed uploads in SQLite.
package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	apperrors "github.com/resultcap/platform/internal/errors"
	"github.com/resultcap/platform/internal/geometry"
	"github.com/resultcap/platform/internal/upload"
)

// DefaultLimit caps Recent when no limit is given.
const DefaultLimit = 50

const schema = `
CREATE TABLE IF NOT EXISTS plays (
	id          TEXT PRIMARY KEY,
	game        TEXT NOT NULL,
	screen_type TEXT NOT NULL,
	song_title  TEXT NOT NULL DEFAULT '',
	button      INTEGER NOT NULL DEFAULT 0,
	pattern     TEXT NOT NULL DEFAULT '',
	score       REAL NOT NULL DEFAULT 0,
	max_combo   INTEGER NOT NULL DEFAULT 0,
	verified    INTEGER NOT NULL DEFAULT 0,
	saved_path  TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_plays_game_created ON plays (game, created_at DESC);
`

// Record is one processed upload.
type Record struct {
	ID         string        `json:"id"`
	Game       geometry.Game `json:"game"`
	ScreenType string        `json:"screenType"`
	SongTitle  string        `json:"songTitle"`
	Button     int           `json:"button"`
	Pattern    string        `json:"pattern"`
	Score      float64       `json:"score"`
	MaxCombo   bool          `json:"maxCombo"`
	Verified   bool          `json:"verified"`
	SavedPath  string        `json:"savedPath,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// FromPlayData builds a record from a backend result.
func FromPlayData(game geometry.Game, pd *upload.PlayData, savedPath string, at time.Time) Record {
	return Record{
		Game:       game,
		ScreenType: pd.Kind().Tag(),
		SongTitle:  pd.SongTitle,
		Button:     pd.Button,
		Pattern:    pd.Pattern,
		Score:      pd.Score,
		MaxCombo:   pd.MaxCombo,
		Verified:   pd.IsVerified,
		SavedPath:  savedPath,
		CreatedAt:  at,
	}
}

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
	path string
}

// Open opens or creates the history database at path. ":memory:" keeps it
// in memory.
func Open(path string) (*DB, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeStorageFailed, "create history directory")
		}
	}

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStorageFailed, "open history database")
	}
	// one connection: SQLite serialises writers and :memory: is per connection
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, apperrors.Wrap(err, apperrors.CodeStorageFailed, "ping history database")
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, apperrors.Wrap(err, apperrors.CodeStorageFailed, "create history schema")
	}
	return &DB{conn: conn, path: path}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// Record stores r, assigning an id and timestamp when missing.
func (db *DB) Record(ctx context.Context, r Record) (Record, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	r.CreatedAt = r.CreatedAt.UTC()

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO plays (id, game, screen_type, song_title, button, pattern, score, max_combo, verified, saved_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Game), r.ScreenType, r.SongTitle, r.Button, r.Pattern, r.Score, r.MaxCombo, r.Verified, r.SavedPath, r.CreatedAt)
	if err != nil {
		return r, apperrors.Wrap(err, apperrors.CodeStorageFailed, "insert play").WithMetadata("game", string(r.Game))
	}
	return r, nil
}

// Recent returns up to limit records for game, newest first.
func (db *DB) Recent(ctx context.Context, game geometry.Game, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, game, screen_type, song_title, button, pattern, score, max_combo, verified, saved_path, created_at
		FROM plays WHERE game = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`, string(game), limit)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStorageFailed, "query plays")
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var g string
		if err := rows.Scan(&r.ID, &g, &r.ScreenType, &r.SongTitle, &r.Button, &r.Pattern, &r.Score, &r.MaxCombo, &r.Verified, &r.SavedPath, &r.CreatedAt); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeStorageFailed, "scan play")
		}
		r.Game = geometry.Game(g)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStorageFailed, "iterate plays")
	}
	return out, nil
}

// Best returns the highest verified score recorded for a chart, or nil.
func (db *DB) Best(ctx context.Context, game geometry.Game, song string, button int, pattern string) (*Record, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, score, max_combo, created_at FROM plays
		WHERE game = ? AND song_title = ? AND button = ? AND pattern = ? AND verified = 1
		ORDER BY score DESC, created_at ASC LIMIT 1`, string(game), song, button, pattern)

	r := Record{Game: game, SongTitle: song, Button: button, Pattern: pattern, Verified: true}
	err := row.Scan(&r.ID, &r.Score, &r.MaxCombo, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStorageFailed, "query best play")
	}
	return &r, nil
}
