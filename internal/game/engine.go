package game

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reversus-game/reversus-server-go/internal/game/rules"
)

// ResultRecorder persists finished matches.
type ResultRecorder interface {
	Record(ctx context.Context, result MatchResult) error
}

// ErrMatchNotFound is returned for an unknown match id.
var ErrMatchNotFound = errors.New("match not found")

// ErrTooManyMatches is returned when the engine is at capacity.
var ErrTooManyMatches = errors.New("too many active matches")

type hostedMatch struct {
	mu       sync.Mutex
	match    *Match
	bus      *rules.EventBus
	recorded bool
}

// Engine hosts many matches. Each match is locked independently; actions
// are bookmarked and rolled back if they break an invariant.
type Engine struct {
	logger     *zap.Logger
	mu         sync.RWMutex
	matches    map[string]*hostedMatch
	recorder   ResultRecorder
	replays    *ReplayRecorder
	maxMatches int
}

// NewEngine creates an engine with no persistence attached.
func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{
		logger:  logger,
		matches: make(map[string]*hostedMatch),
	}
}

// SetResultRecorder attaches the collaborator that stores match results.
func (e *Engine) SetResultRecorder(r ResultRecorder) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recorder = r
}

// SetReplayRecorder enables replay capture for new matches.
func (e *Engine) SetReplayRecorder(r *ReplayRecorder) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.replays = r
}

// SetMaxMatches caps the number of hosted matches. Zero means unlimited.
func (e *Engine) SetMaxMatches(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.maxMatches = n
}

// CreateMatch builds a match from cfg and returns its id.
func (e *Engine) CreateMatch(cfg MatchConfig) (string, error) {
	id := uuid.NewString()
	m, err := NewMatch(id, cfg, e.logger)
	if err != nil {
		return "", fmt.Errorf("create match: %w", err)
	}
	m.drain(true)

	e.mu.Lock()
	if e.maxMatches > 0 && len(e.matches) >= e.maxMatches {
		e.mu.Unlock()
		return "", ErrTooManyMatches
	}
	e.matches[id] = &hostedMatch{match: m, bus: rules.NewEventBus()}
	replays := e.replays
	e.mu.Unlock()

	if replays != nil {
		replays.Begin(m.Snapshot())
	}
	if e.logger != nil {
		e.logger.Info("match created",
			zap.String("match_id", id),
			zap.String("mode", string(cfg.Mode)),
			zap.Int("players", len(cfg.Seats)),
		)
	}
	return id, nil
}

func (e *Engine) hosted(matchID string) (*hostedMatch, error) {
	e.mu.RLock()
	h, ok := e.matches[matchID]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMatchNotFound, matchID)
	}
	return h, nil
}

// Apply runs one action against a match. Rejections leave the match
// untouched; an invariant violation restores the pre-action state.
func (e *Engine) Apply(ctx context.Context, matchID string, action Action) (*ActionResult, error) {
	h, err := e.hosted(matchID)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	bookmark := h.match.Clone()
	res, err := h.match.Apply(action)
	if err != nil {
		var rej *RejectionError
		if errors.As(err, &rej) {
			h.mu.Unlock()
			return nil, err
		}
		h.match = bookmark
		h.mu.Unlock()
		if e.logger != nil {
			e.logger.Error("action broke match state, restored bookmark",
				zap.String("match_id", matchID),
				zap.String("action", string(action.Type)),
				zap.String("player_id", action.PlayerID),
				zap.Error(err),
			)
		}
		return nil, fmt.Errorf("action failed and state restored: %w", err)
	}

	var snapshot *Snapshot
	if res.Summary != nil || res.Result != nil {
		snapshot = h.match.Snapshot()
	}
	finished := res.Result != nil && !h.recorded
	if finished {
		h.recorded = true
	}
	bus := h.bus
	h.mu.Unlock()

	bus.PublishBatch(res.Events)
	e.afterAction(ctx, matchID, res, snapshot, finished)
	return res, nil
}

func (e *Engine) afterAction(ctx context.Context, matchID string, res *ActionResult, snapshot *Snapshot, finished bool) {
	e.mu.RLock()
	replays := e.replays
	recorder := e.recorder
	e.mu.RUnlock()

	if replays != nil && snapshot != nil {
		replays.Record(snapshot)
		if finished {
			replays.Finish(matchID)
		}
	}
	if !finished {
		return
	}
	if recorder != nil {
		if err := recorder.Record(ctx, *res.Result); err != nil && e.logger != nil {
			e.logger.Error("failed to record match result",
				zap.String("match_id", matchID),
				zap.Error(err),
			)
		}
	}
}

// Snapshot returns the current state of a match.
func (e *Engine) Snapshot(matchID string) (*Snapshot, error) {
	h, err := e.hosted(matchID)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.match.Snapshot(), nil
}

// LegalActions lists the actions a match is currently waiting for.
func (e *Engine) LegalActions(matchID string) ([]Action, error) {
	h, err := e.hosted(matchID)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.match.LegalActions(), nil
}

// Subscribe registers a listener for a match's events.
func (e *Engine) Subscribe(matchID string, listener rules.Listener) (int, error) {
	h, err := e.hosted(matchID)
	if err != nil {
		return 0, err
	}
	return h.bus.Subscribe(listener), nil
}

// Unsubscribe removes a listener registered with Subscribe.
func (e *Engine) Unsubscribe(matchID string, handle int) {
	if h, err := e.hosted(matchID); err == nil {
		h.bus.Unsubscribe(handle)
	}
}

// Abandon ends a match without a winner, for example on shutdown.
func (e *Engine) Abandon(ctx context.Context, matchID string) error {
	h, err := e.hosted(matchID)
	if err != nil {
		return err
	}
	h.mu.Lock()
	if h.match.IsOver() {
		h.mu.Unlock()
		return nil
	}
	res, err := h.match.Abandon()
	if err != nil {
		h.mu.Unlock()
		return err
	}
	snapshot := h.match.Snapshot()
	h.recorded = true
	bus := h.bus
	h.mu.Unlock()

	bus.PublishBatch(res.Events)
	e.afterAction(ctx, matchID, res, snapshot, true)
	return nil
}

// RemoveMatch drops a match, saving its replay if one was recorded.
func (e *Engine) RemoveMatch(matchID string) {
	e.mu.Lock()
	_, ok := e.matches[matchID]
	delete(e.matches, matchID)
	replays := e.replays
	e.mu.Unlock()
	if !ok {
		return
	}

	if replays != nil {
		if err := replays.Flush(matchID); err != nil && e.logger != nil {
			e.logger.Warn("failed to save replay",
				zap.String("match_id", matchID),
				zap.Error(err),
			)
		}
	}
	if e.logger != nil {
		e.logger.Debug("match removed", zap.String("match_id", matchID))
	}
}

// MatchIDs lists hosted matches in sorted order.
func (e *Engine) MatchIDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.matches))
	for id := range e.matches {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MatchCount returns the number of hosted matches.
func (e *Engine) MatchCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.matches)
}
