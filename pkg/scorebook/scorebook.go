// Package scorebook keeps finished levels and games in a SQLite file.
package scorebook

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/teslashibe/go-putt/internal/log"
	"github.com/teslashibe/go-putt/pkg/game"
)

// ErrNotFound is returned for an unknown session.
var ErrNotFound = errors.New("scorebook: game not found")

// timeLayout is fixed width so stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS games (
	session_id  TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	finished_at TEXT,
	score       INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS levels (
	result_id   TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	level       INTEGER NOT NULL,
	par         INTEGER NOT NULL,
	strokes     INTEGER NOT NULL,
	points      INTEGER NOT NULL,
	forfeit     INTEGER NOT NULL,
	recorded_at TEXT NOT NULL,
	FOREIGN KEY(session_id) REFERENCES games(session_id)
);
CREATE INDEX IF NOT EXISTS levels_session ON levels(session_id);
`

// Game is a stored game with its finished levels in play order.
type Game struct {
	SessionID  string             `json:"session_id"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt *time.Time         `json:"finished_at,omitempty"`
	Score      int                `json:"score"`
	Levels     []game.LevelResult `json:"levels"`
}

// Store is a scorebook backed by database/sql with the pure-Go SQLite
// driver. It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// Open opens or creates the scorebook at path. ":memory:" gives a private
// in-memory database.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open scorebook: %w", err)
	}
	// One connection: SQLite has a single writer, and each connection to
	// ":memory:" would be a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create scorebook schema: %w", err)
	}
	return &Store{
		db:     db,
		logger: log.Or(logger, "scorebook"),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores what a game transition finished: a level result, the
// running score, and the end of the game.
func (s *Store) Record(ctx context.Context, t game.Transition) error {
	if t.SessionID == "" {
		return errors.New("scorebook: transition without session id")
	}
	now := s.now().Format(timeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO games (session_id, started_at, score) VALUES (?, ?, 0)",
		t.SessionID, now); err != nil {
		return fmt.Errorf("insert game: %w", err)
	}

	if r := t.Result; r != nil {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO levels (result_id, session_id, level, par, strokes, points, forfeit, recorded_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			s.newID(), t.SessionID, r.Level, r.Par, r.Strokes, r.Points, r.Forfeit, now); err != nil {
			return fmt.Errorf("insert level: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE games SET score = ? WHERE session_id = ?", t.Score, t.SessionID); err != nil {
		return fmt.Errorf("update score: %w", err)
	}
	if t.To == game.PhaseGameOver {
		if _, err := tx.ExecContext(ctx,
			"UPDATE games SET finished_at = ? WHERE session_id = ?", now, t.SessionID); err != nil {
			return fmt.Errorf("finish game: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if t.Result != nil || t.To == game.PhaseGameOver {
		s.logger.Debug("recorded", "session", t.SessionID, "to", t.To, "score", t.Score)
	}
	return nil
}

// Hook adapts Record to game.Engine.OnTransition. Failures are logged; the
// game carries on without them.
func (s *Store) Hook(ctx context.Context) func(game.Transition) {
	return func(t game.Transition) {
		if err := s.Record(ctx, t); err != nil {
			s.logger.Error("failed to record transition", "session", t.SessionID, "error", err)
		}
	}
}

// Game loads one game with its levels.
func (s *Store) Game(ctx context.Context, sessionID string) (Game, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT session_id, started_at, finished_at, score FROM games WHERE session_id = ?", sessionID)
	g, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Game{}, ErrNotFound
	}
	if err != nil {
		return Game{}, err
	}
	if g.Levels, err = s.levels(ctx, sessionID); err != nil {
		return Game{}, err
	}
	return g, nil
}

// Recent returns up to limit games, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Game, error) {
	return s.list(ctx,
		"SELECT session_id, started_at, finished_at, score FROM games ORDER BY started_at DESC LIMIT ?", limit)
}

// Best returns up to limit finished games by descending score.
func (s *Store) Best(ctx context.Context, limit int) ([]Game, error) {
	return s.list(ctx,
		`SELECT session_id, started_at, finished_at, score FROM games
		 WHERE finished_at IS NOT NULL ORDER BY score DESC, finished_at ASC LIMIT ?`, limit)
}

func (s *Store) list(ctx context.Context, query string, limit int) ([]Game, error) {
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query games: %w", err)
	}
	var games []Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		games = append(games, g)
	}
	// Release the single connection before loading levels.
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range games {
		if games[i].Levels, err = s.levels(ctx, games[i].SessionID); err != nil {
			return nil, err
		}
	}
	return games, nil
}

func (s *Store) levels(ctx context.Context, sessionID string) ([]game.LevelResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT level, par, strokes, points, forfeit FROM levels
		 WHERE session_id = ? ORDER BY recorded_at, rowid`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query levels: %w", err)
	}
	defer rows.Close()

	var out []game.LevelResult
	for rows.Next() {
		var r game.LevelResult
		if err := rows.Scan(&r.Level, &r.Par, &r.Strokes, &r.Points, &r.Forfeit); err != nil {
			return nil, fmt.Errorf("scan level: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGame(sc scanner) (Game, error) {
	var (
		g        Game
		started  string
		finished sql.NullString
	)
	if err := sc.Scan(&g.SessionID, &started, &finished, &g.Score); err != nil {
		return Game{}, err
	}
	var err error
	if g.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return Game{}, fmt.Errorf("parse started_at: %w", err)
	}
	if finished.Valid {
		f, err := time.Parse(timeLayout, finished.String)
		if err != nil {
			return Game{}, fmt.Errorf("parse finished_at: %w", err)
		}
		g.FinishedAt = &f
	}
	return g, nil
}
