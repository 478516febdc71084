package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/reversus-game/reversus-server-go/internal/game"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS match_results (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	match_id    TEXT NOT NULL,
	mode        TEXT NOT NULL,
	winner_ids  TEXT NOT NULL,
	drawn       INTEGER NOT NULL,
	cause       TEXT NOT NULL,
	rounds      INTEGER NOT NULL,
	scores      TEXT NOT NULL,
	positions   TEXT NOT NULL,
	recorded_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS match_results_match_id ON match_results (match_id);
`

// SQLiteStore keeps results in a local SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if logger != nil {
		logger.Info("sqlite history store opened", zap.String("path", path))
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

// Record inserts one result.
func (s *SQLiteStore) Record(ctx context.Context, result game.MatchResult) error {
	rw, err := toRow(result)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO match_results (
		   match_id, mode, winner_ids, drawn, cause, rounds, scores, positions, recorded_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rw.matchID, rw.mode, rw.winners, rw.drawn, rw.cause, rw.rounds, rw.scores, rw.positions,
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert match result: %w", err)
	}
	if s.logger != nil {
		s.logger.Debug("match result recorded", zap.String("match_id", result.MatchID))
	}
	return nil
}

// Recent returns up to limit results, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, match_id, mode, winner_ids, drawn, cause, rounds, scores, positions, recorded_at
		   FROM match_results ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query match results: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e        Entry
			rw       row
			recorded int64
		)
		if err := rows.Scan(&e.ID, &rw.matchID, &rw.mode, &rw.winners, &rw.drawn, &rw.cause,
			&rw.rounds, &rw.scores, &rw.positions, &recorded); err != nil {
			return nil, fmt.Errorf("scan match result: %w", err)
		}
		if e.Result, err = rw.result(); err != nil {
			return nil, err
		}
		e.RecordedAt = time.UnixMilli(recorded).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
