package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/reversus-game/reversus-server-go/internal/game"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS match_results (
	id          BIGSERIAL PRIMARY KEY,
	match_id    TEXT NOT NULL,
	mode        TEXT NOT NULL,
	winner_ids  JSONB NOT NULL,
	drawn       BOOLEAN NOT NULL,
	cause       TEXT NOT NULL,
	rounds      INTEGER NOT NULL,
	scores      JSONB NOT NULL,
	positions   JSONB NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS match_results_match_id ON match_results (match_id);
`

// PostgresStore keeps results in PostgreSQL.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// OpenPostgres connects a pool to dsn and creates the results table.
func OpenPostgres(ctx context.Context, dsn string, maxConns int32, logger *zap.Logger) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if logger != nil {
		stats := pool.Stat()
		logger.Info("postgres history store opened",
			zap.Int32("max_conns", stats.MaxConns()),
			zap.Int32("total_conns", stats.TotalConns()),
		)
	}
	return &PostgresStore{pool: pool, logger: logger}, nil
}

// Record inserts one result.
func (s *PostgresStore) Record(ctx context.Context, result game.MatchResult) error {
	rw, err := toRow(result)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO match_results (
			match_id, mode, winner_ids, drawn, cause, rounds, scores, positions
		) VALUES ($1, $2, $3::jsonb, $4, $5, $6, $7::jsonb, $8::jsonb)
	`,
		rw.matchID, rw.mode, rw.winners, rw.drawn, rw.cause, rw.rounds, rw.scores, rw.positions,
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
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, match_id, mode, winner_ids::text, drawn, cause, rounds,
		       scores::text, positions::text, recorded_at
		  FROM match_results ORDER BY id DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query match results: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e        Entry
			rw       row
			recorded time.Time
		)
		if err := rows.Scan(&e.ID, &rw.matchID, &rw.mode, &rw.winners, &rw.drawn, &rw.cause,
			&rw.rounds, &rw.scores, &rw.positions, &recorded); err != nil {
			return nil, fmt.Errorf("scan match result: %w", err)
		}
		if e.Result, err = rw.result(); err != nil {
			return nil, err
		}
		e.RecordedAt = recorded.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
