// Package history stores finished match results.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/reversus-game/reversus-server-go/internal/config"
	"github.com/reversus-game/reversus-server-go/internal/game"
	"github.com/reversus-game/reversus-server-go/internal/game/modes"
)

// Entry is one stored match result.
type Entry struct {
	ID         int64
	RecordedAt time.Time
	Result     game.MatchResult
}

// Recorder persists match results and lists the most recent ones.
type Recorder interface {
	Record(ctx context.Context, result game.MatchResult) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// Open builds the recorder selected by cfg.Driver.
func Open(ctx context.Context, cfg config.HistoryConfig, logger *zap.Logger) (Recorder, error) {
	switch cfg.Driver {
	case "postgres":
		store, err := OpenPostgres(ctx, cfg.DSN, cfg.MaxConns, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "sqlite":
		store, err := OpenSQLite(ctx, cfg.DSN, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "none", "":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown history driver %q", cfg.Driver)
	}
}

// Nop discards every result.
type Nop struct{}

func (Nop) Record(context.Context, game.MatchResult) error { return nil }
func (Nop) Recent(context.Context, int) ([]Entry, error)   { return nil, nil }
func (Nop) Close() error                                   { return nil }

// row is the column form shared by both stores.
type row struct {
	matchID   string
	mode      string
	winners   string
	drawn     bool
	cause     string
	rounds    int
	scores    string
	positions string
}

func toRow(r game.MatchResult) (row, error) {
	winners, err := json.Marshal(r.WinnerIDs)
	if err != nil {
		return row{}, fmt.Errorf("encode winners: %w", err)
	}
	scores, err := json.Marshal(r.FinalScores)
	if err != nil {
		return row{}, fmt.Errorf("encode scores: %w", err)
	}
	positions, err := json.Marshal(r.Positions)
	if err != nil {
		return row{}, fmt.Errorf("encode positions: %w", err)
	}
	return row{
		matchID:   r.MatchID,
		mode:      string(r.Mode),
		winners:   string(winners),
		drawn:     r.Drawn,
		cause:     r.Cause,
		rounds:    r.Rounds,
		scores:    string(scores),
		positions: string(positions),
	}, nil
}

func (rw row) result() (game.MatchResult, error) {
	r := game.MatchResult{
		MatchID: rw.matchID,
		Mode:    modes.Mode(rw.mode),
		Drawn:   rw.drawn,
		Cause:   rw.cause,
		Rounds:  rw.rounds,
	}
	if err := json.Unmarshal([]byte(rw.winners), &r.WinnerIDs); err != nil {
		return r, fmt.Errorf("decode winners: %w", err)
	}
	if err := json.Unmarshal([]byte(rw.scores), &r.FinalScores); err != nil {
		return r, fmt.Errorf("decode scores: %w", err)
	}
	if err := json.Unmarshal([]byte(rw.positions), &r.Positions); err != nil {
		return r, fmt.Errorf("decode positions: %w", err)
	}
	return r, nil
}
