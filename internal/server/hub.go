package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/reversus-game/reversus-server-go/internal/game"
	"github.com/reversus-game/reversus-server-go/internal/game/rules"
)

const tracerName = "github.com/reversus-game/reversus-server-go/internal/server"

var (
	// ErrHubClosed is returned once Shutdown has started.
	ErrHubClosed = errors.New("hub is shutting down")
	// ErrBadSeatToken is returned when a seat claim does not match.
	ErrBadSeatToken = errors.New("seat token does not match")
)

// Ticket is handed to whoever creates a match: one secret per seat.
type Ticket struct {
	MatchID    string            `json:"match_id"`
	SeatTokens map[string]string `json:"seat_tokens"`
}

// Update is what subscribers receive after every accepted action.
type Update struct {
	Snapshot *game.Snapshot
	Result   *game.ActionResult
}

type command struct {
	ctx    context.Context
	action game.Action
	reply  chan commandReply
}

type commandReply struct {
	res *game.ActionResult
	err error
}

// matchActor owns one match. Every action on the match goes through its
// inbox, so actions are applied one at a time in arrival order. The actor
// exits once the match has a result.
type matchActor struct {
	id       string
	inbox    chan command
	done     chan struct{}
	stopOnce sync.Once
	tokens   map[string][]byte

	subMu      sync.Mutex
	subs       map[string]chan Update
	subsClosed bool
}

func (a *matchActor) stop() {
	a.stopOnce.Do(func() { close(a.done) })
}

// Hub runs one actor goroutine per hosted match.
type Hub struct {
	engine      *game.Engine
	logger      *zap.Logger
	tracer      trace.Tracer
	turnTimeout time.Duration
	tokenCost   int

	mu     sync.RWMutex
	actors map[string]*matchActor
	closed bool
	wg     sync.WaitGroup

	// onServing is told whether the hub still accepts matches.
	onServing func(bool)
}

// NewHub creates a hub on top of engine. A zero turnTimeout disables the
// turn timer.
func NewHub(engine *game.Engine, turnTimeout time.Duration, logger *zap.Logger) *Hub {
	return &Hub{
		engine:      engine,
		logger:      logger,
		tracer:      otel.Tracer(tracerName),
		turnTimeout: turnTimeout,
		tokenCost:   bcrypt.DefaultCost,
		actors:      make(map[string]*matchActor),
	}
}

// CreateMatch starts a match and its actor. The returned tokens are the only
// copy; the hub keeps bcrypt hashes.
func (h *Hub) CreateMatch(ctx context.Context, cfg game.MatchConfig) (*Ticket, error) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return nil, ErrHubClosed
	}

	_, span := h.tracer.Start(ctx, "hub.create_match",
		trace.WithAttributes(
			attribute.String("mode", string(cfg.Mode)),
			attribute.Int("seats", len(cfg.Seats)),
		))
	defer span.End()

	id, err := h.engine.CreateMatch(cfg)
	if err != nil {
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("match_id", id))

	ticket := &Ticket{MatchID: id, SeatTokens: make(map[string]string, len(cfg.Seats))}
	a := &matchActor{
		id:     id,
		inbox:  make(chan command),
		done:   make(chan struct{}),
		tokens: make(map[string][]byte, len(cfg.Seats)),
		subs:   make(map[string]chan Update),
	}
	for _, seat := range cfg.Seats {
		token := uuid.NewString()
		hash, err := bcrypt.GenerateFromPassword([]byte(token), h.tokenCost)
		if err != nil {
			h.engine.RemoveMatch(id)
			return nil, fmt.Errorf("hash seat token: %w", err)
		}
		a.tokens[seat.ID] = hash
		ticket.SeatTokens[seat.ID] = token
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		h.engine.RemoveMatch(id)
		return nil, ErrHubClosed
	}
	h.actors[id] = a
	h.wg.Add(1)
	h.mu.Unlock()

	go h.run(a)

	if h.logger != nil {
		h.logger.Info("match actor started",
			zap.String("match_id", id),
			zap.Duration("turn_timeout", h.turnTimeout),
		)
	}
	return ticket, nil
}

func (h *Hub) actor(matchID string) (*matchActor, error) {
	h.mu.RLock()
	a, ok := h.actors[matchID]
	h.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", game.ErrMatchNotFound, matchID)
	}
	return a, nil
}

// ClaimSeat checks token against the seat's stored hash.
func (h *Hub) ClaimSeat(matchID, seatID, token string) error {
	a, err := h.actor(matchID)
	if err != nil {
		return err
	}
	hash, ok := a.tokens[seatID]
	if !ok {
		return fmt.Errorf("%w: unknown seat %s", ErrBadSeatToken, seatID)
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(token)) != nil {
		return ErrBadSeatToken
	}
	return nil
}

// Submit queues an action on the match actor and waits for its result.
func (h *Hub) Submit(ctx context.Context, matchID string, action game.Action) (*game.ActionResult, error) {
	a, err := h.actor(matchID)
	if err != nil {
		return nil, err
	}
	cmd := command{ctx: ctx, action: action, reply: make(chan commandReply, 1)}
	select {
	case a.inbox <- cmd:
	case <-a.done:
		return nil, h.stoppedErr(matchID)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-cmd.reply:
		return r.res, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// stoppedErr explains why an actor no longer takes commands.
func (h *Hub) stoppedErr(matchID string) error {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return ErrHubClosed
	}
	return fmt.Errorf("%w: %s has finished", game.ErrMatchNotFound, matchID)
}

// Snapshot returns the current state of a match.
func (h *Hub) Snapshot(matchID string) (*game.Snapshot, error) {
	return h.engine.Snapshot(matchID)
}

// Subscribe registers for updates on a match. The returned cancel function
// must be called to release the subscription.
func (h *Hub) Subscribe(matchID string) (<-chan Update, func(), error) {
	a, err := h.actor(matchID)
	if err != nil {
		return nil, nil, err
	}
	key := uuid.NewString()
	ch := make(chan Update, 16)
	a.subMu.Lock()
	if a.subsClosed {
		a.subMu.Unlock()
		return nil, nil, h.stoppedErr(matchID)
	}
	a.subs[key] = ch
	a.subMu.Unlock()

	cancel := func() {
		a.subMu.Lock()
		if c, ok := a.subs[key]; ok {
			delete(a.subs, key)
			close(c)
		}
		a.subMu.Unlock()
	}
	return ch, cancel, nil
}

func (a *matchActor) broadcast(u Update) {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	for _, ch := range a.subs {
		select {
		case ch <- u:
		default:
			// slow subscriber, drop
		}
	}
}

func (a *matchActor) closeSubscribers() {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	a.subsClosed = true
	for key, ch := range a.subs {
		close(ch)
		delete(a.subs, key)
	}
}

// turnKey identifies whose move the match is waiting for.
func turnKey(s *game.Snapshot) string {
	return fmt.Sprintf("%s/%d/%s/%d", s.Phase, s.Round, s.CurrentPlayer, s.TurnNumber)
}

func waiting(s *game.Snapshot) bool {
	if s.Result != nil {
		return false
	}
	return s.Phase == rules.PhasePlaying.String() || s.Phase == rules.PhaseInitialDraw.String()
}

func (h *Hub) run(a *matchActor) {
	defer h.wg.Done()
	defer a.closeSubscribers()

	var (
		timer   *time.Timer
		timeout <-chan time.Time
		lastKey string
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
		}
		timer, timeout = nil, nil
	}
	armTimer := func() {
		s, err := h.engine.Snapshot(a.id)
		if err != nil || !waiting(s) || h.turnTimeout <= 0 {
			stopTimer()
			return
		}
		if key := turnKey(s); key != lastKey || timer == nil {
			stopTimer()
			lastKey = key
			timer = time.NewTimer(h.turnTimeout)
			timeout = timer.C
		}
	}
	armTimer()
	defer stopTimer()

	for {
		select {
		case <-a.done:
			return
		case cmd := <-a.inbox:
			res, err := h.apply(cmd.ctx, a, cmd.action)
			cmd.reply <- commandReply{res: res, err: err}
			if finished(res) {
				h.retire(a)
				return
			}
			armTimer()
		case <-timeout:
			timer, timeout = nil, nil
			if h.logger != nil {
				h.logger.Info("turn timer expired", zap.String("match_id", a.id), zap.String("turn", lastKey))
			}
			res, err := h.apply(context.Background(), a, game.Action{Type: game.ActionTimeout})
			if err != nil && h.logger != nil {
				h.logger.Warn("timeout action failed", zap.String("match_id", a.id), zap.Error(err))
			}
			if finished(res) {
				h.retire(a)
				return
			}
			lastKey = ""
			armTimer()
		}
	}
}

func finished(res *game.ActionResult) bool {
	return res != nil && res.Result != nil
}

// retire releases a finished match: the actor leaves the hub, the engine
// drops the match and saves its replay. Subscribers are closed when run
// returns, after they have received the final update.
func (h *Hub) retire(a *matchActor) {
	h.mu.Lock()
	if h.actors[a.id] == a {
		delete(h.actors, a.id)
	}
	h.mu.Unlock()
	a.stop()
	h.engine.RemoveMatch(a.id)
	if h.logger != nil {
		h.logger.Info("match actor retired", zap.String("match_id", a.id))
	}
}

// apply runs one action inside a span and broadcasts the new state.
func (h *Hub) apply(ctx context.Context, a *matchActor, action game.Action) (*game.ActionResult, error) {
	ctx, span := h.tracer.Start(ctx, "match.apply",
		trace.WithAttributes(
			attribute.String("match_id", a.id),
			attribute.String("action", string(action.Type)),
			attribute.String("player_id", action.PlayerID),
		))
	defer span.End()

	res, err := h.engine.Apply(ctx, a.id, action)
	if err != nil {
		var rej *game.RejectionError
		if errors.As(err, &rej) {
			span.SetAttributes(attribute.String("rejection", rej.Code))
		} else {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
		}
		return nil, err
	}
	span.SetAttributes(
		attribute.Bool("applied", res.Applied),
		attribute.Int("events", len(res.Events)),
	)

	snapshot, err := h.engine.Snapshot(a.id)
	if err == nil {
		a.broadcast(Update{Snapshot: snapshot, Result: res})
	}
	return res, nil
}

// SetTokenCost changes the bcrypt cost used for new seat tokens.
func (h *Hub) SetTokenCost(cost int) {
	h.tokenCost = cost
}

// SetServingHook registers a callback told when the hub stops accepting
// matches.
func (h *Hub) SetServingHook(fn func(bool)) {
	h.onServing = fn
	if fn != nil {
		fn(true)
	}
}

// MatchIDs lists the matches with a running actor.
func (h *Hub) MatchIDs() []string {
	return h.engine.MatchIDs()
}

// Shutdown abandons every unfinished match and stops all actors.
func (h *Hub) Shutdown(ctx context.Context) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	actors := make([]*matchActor, 0, len(h.actors))
	for _, a := range h.actors {
		actors = append(actors, a)
	}
	h.mu.Unlock()

	if h.onServing != nil {
		h.onServing(false)
	}
	for _, a := range actors {
		// a match that finished meanwhile has already been removed
		err := h.engine.Abandon(ctx, a.id)
		if err != nil && !errors.Is(err, game.ErrMatchNotFound) && h.logger != nil {
			h.logger.Warn("failed to abandon match", zap.String("match_id", a.id), zap.Error(err))
		}
		a.stop()
	}
	h.wg.Wait()
	for _, a := range actors {
		h.engine.RemoveMatch(a.id)
	}
	if h.logger != nil {
		h.logger.Info("hub stopped", zap.Int("matches", len(actors)))
	}
}
