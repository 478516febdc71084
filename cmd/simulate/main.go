// Command simulate plays matches with random legal moves. It is a soak test
// for the rules engine and exercises the configured history store.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/reversus-game/reversus-server-go/internal/config"
	"github.com/reversus-game/reversus-server-go/internal/game"
	"github.com/reversus-game/reversus-server-go/internal/game/modes"
	"github.com/reversus-game/reversus-server-go/internal/history"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	modeFlag   = flag.String("mode", "solo", "match mode: solo, duo, boss, survival, tournament, endurance")
	players    = flag.Int("players", 3, "number of seats (ignored for duo and tournament)")
	matches    = flag.Int("matches", 10, "number of matches to play")
	seed       = flag.Uint64("seed", 1, "seed for both the decks and the move picker")
	maxSteps   = flag.Int("max-steps", 20000, "abandon a match after this many actions")
	verify     = flag.Bool("verify-replays", true, "reload each saved replay and check it against the match result")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()
	recorder, err := history.Open(ctx, cfg.History, logger)
	if err != nil {
		logger.Fatal("failed to open match history", zap.Error(err))
	}
	defer recorder.Close()

	engine := game.NewEngine(logger.WithOptions(zap.IncreaseLevel(zap.WarnLevel)))
	engine.SetResultRecorder(recorder)
	var replays *game.ReplayRecorder
	if cfg.Server.ReplayDir != "" {
		replays = game.NewReplayRecorder(logger, cfg.Server.ReplayDir)
		engine.SetReplayRecorder(replays)
	}

	picker := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	rules := cfg.Rules.GameRules()

	start := time.Now()
	wins := make(map[string]int)
	for i := 0; i < *matches; i++ {
		rules.Seed = *seed + uint64(i)
		matchCfg := game.MatchConfig{
			Mode:  modes.Mode(*modeFlag),
			Seats: seatsFor(modes.Mode(*modeFlag), *players),
			Rules: rules,
		}
		result, steps, err := play(ctx, engine, matchCfg, picker)
		if err != nil {
			logger.Fatal("match failed", zap.Int("match", i), zap.Error(err))
		}
		if replays != nil && *verify {
			if err := verifyReplay(replays, result); err != nil {
				logger.Fatal("replay check failed", zap.String("match_id", result.MatchID), zap.Error(err))
			}
		}
		for _, id := range result.WinnerIDs {
			wins[id]++
		}
		logger.Info("match finished",
			zap.Int("match", i),
			zap.String("cause", result.Cause),
			zap.Strings("winners", result.WinnerIDs),
			zap.Int("rounds", result.Rounds),
			zap.Int("actions", steps),
		)
	}

	logger.Info("simulation complete",
		zap.Int("matches", *matches),
		zap.Duration("elapsed", time.Since(start)),
		zap.Any("wins", wins),
	)

	recent, err := recorder.Recent(ctx, 5)
	if err != nil {
		logger.Warn("failed to read history", zap.Error(err))
		return
	}
	for _, entry := range recent {
		logger.Info("history",
			zap.Int64("id", entry.ID),
			zap.String("match_id", entry.Result.MatchID),
			zap.Time("recorded_at", entry.RecordedAt),
		)
	}
}

func play(ctx context.Context, engine *game.Engine, cfg game.MatchConfig, picker *rand.Rand) (*game.MatchResult, int, error) {
	id, err := engine.CreateMatch(cfg)
	if err != nil {
		return nil, 0, err
	}
	defer engine.RemoveMatch(id)

	for step := 0; step < *maxSteps; step++ {
		actions, err := engine.LegalActions(id)
		if err != nil {
			return nil, step, err
		}
		if len(actions) == 0 {
			s, err := engine.Snapshot(id)
			if err != nil {
				return nil, step, err
			}
			if s.Result == nil {
				return nil, step, fmt.Errorf("match %s stalled in phase %s", id, s.Phase)
			}
			return s.Result, step, nil
		}
		if _, err := engine.Apply(ctx, id, actions[picker.IntN(len(actions))]); err != nil {
			return nil, step, fmt.Errorf("step %d: %w", step, err)
		}
	}

	if err := engine.Abandon(ctx, id); err != nil {
		return nil, *maxSteps, err
	}
	s, err := engine.Snapshot(id)
	if err != nil {
		return nil, *maxSteps, err
	}
	return s.Result, *maxSteps, nil
}

// verifyReplay reads back the replay saved when the match was removed and
// checks that it ends on the same result.
func verifyReplay(replays *game.ReplayRecorder, result *game.MatchResult) error {
	replay, err := replays.Load(result.MatchID)
	if err != nil {
		return err
	}
	final := replay.Final()
	if final == nil || final.Result == nil {
		return fmt.Errorf("replay of %s has no result", result.MatchID)
	}
	if !slices.Equal(final.Result.WinnerIDs, result.WinnerIDs) {
		return fmt.Errorf("replay winners %v, match winners %v", final.Result.WinnerIDs, result.WinnerIDs)
	}
	if got := len(replay.Summaries()); got > result.Rounds {
		return fmt.Errorf("replay holds %d rounds, match resolved %d", got, result.Rounds)
	}
	return nil
}

func seatsFor(mode modes.Mode, n int) []game.Seat {
	switch mode {
	case modes.ModeDuo:
		return []game.Seat{
			{ID: "p1", Name: "P1", Team: "red"},
			{ID: "p2", Name: "P2", Team: "blue"},
			{ID: "p3", Name: "P3", Team: "red"},
			{ID: "p4", Name: "P4", Team: "blue"},
		}
	case modes.ModeTournament:
		n = 2
	}
	seats := make([]game.Seat, n)
	for i := range seats {
		id := fmt.Sprintf("p%d", i+1)
		seats[i] = game.Seat{ID: id, Name: fmt.Sprintf("P%d", i+1)}
	}
	switch mode {
	case modes.ModeBoss, modes.ModeEndurance:
		seats[0].Lead = true
		seats[0].AI = true
	case modes.ModeSurvival:
		for i := 1; i < len(seats); i++ {
			seats[i].AI = true
		}
	}
	return seats
}
