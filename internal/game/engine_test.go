package game

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/reversus-game/reversus-server-go/internal/game/cards"
	"github.com/reversus-game/reversus-server-go/internal/game/modes"
	"github.com/reversus-game/reversus-server-go/internal/game/rules"
)

type fakeRecorder struct {
	mu      sync.Mutex
	results []MatchResult
	err     error
}

func (f *fakeRecorder) Record(_ context.Context, r MatchResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, r)
	return f.err
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(zaptest.NewLogger(t))
}

// valueInHand returns any value card held by the current player.
func valueInHand(t *testing.T, e *Engine, matchID string) (string, string) {
	t.Helper()
	s, err := e.Snapshot(matchID)
	require.NoError(t, err)
	for _, p := range s.Players {
		if p.ID != s.CurrentPlayer {
			continue
		}
		for _, c := range p.Hand {
			if c.Kind == cards.KindValue {
				return p.ID, c.ID
			}
		}
	}
	t.Fatal("current player holds no value card")
	return "", ""
}

func TestEngineCreateAndApply(t *testing.T) {
	e := newTestEngine(t)
	id, err := e.CreateMatch(testConfig(modes.ModeSolo, seats("A", "B")))
	require.NoError(t, err)
	assert.Equal(t, []string{id}, e.MatchIDs())

	var got []rules.Event
	_, err = e.Subscribe(id, func(ev rules.Event) { got = append(got, ev) })
	require.NoError(t, err)

	player, card := valueInHand(t, e, id)
	res, err := e.Apply(context.Background(), id, Action{Type: ActionPlayValue, PlayerID: player, CardID: card})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	require.NotEmpty(t, got)
	assert.Equal(t, rules.EventValueCardPlayed, got[0].Type)

	s, err := e.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, player, s.CurrentPlayer)
}

func TestEngineUnknownMatch(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Apply(context.Background(), "nope", Action{Type: ActionEndTurn})
	assert.ErrorIs(t, err, ErrMatchNotFound)
	_, err = e.Snapshot("nope")
	assert.ErrorIs(t, err, ErrMatchNotFound)
	_, err = e.LegalActions("nope")
	assert.ErrorIs(t, err, ErrMatchNotFound)
}

func TestEngineLegalActionsApply(t *testing.T) {
	e := newTestEngine(t)
	id, err := e.CreateMatch(testConfig(modes.ModeSolo, seats("A", "B")))
	require.NoError(t, err)

	actions, err := e.LegalActions(id)
	require.NoError(t, err)
	require.NotEmpty(t, actions)
	for _, a := range actions {
		assert.Equal(t, "A", a.PlayerID)
	}
	_, err = e.Apply(context.Background(), id, actions[0])
	assert.NoError(t, err)
}

func TestEngineRejectionLeavesMatchUntouched(t *testing.T) {
	e := newTestEngine(t)
	id, err := e.CreateMatch(testConfig(modes.ModeSolo, seats("A", "B")))
	require.NoError(t, err)
	before, err := e.Snapshot(id)
	require.NoError(t, err)

	_, err = e.Apply(context.Background(), id, Action{Type: ActionEndTurn, PlayerID: "B"})
	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, CodeNotYourTurn, rej.Code)

	after, err := e.Snapshot(id)
	require.NoError(t, err)
	want, _ := before.Checksum()
	ok, err := after.VerifyChecksum(want)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEngineRestoresBookmarkOnInvariantViolation(t *testing.T) {
	e := newTestEngine(t)
	id, err := e.CreateMatch(testConfig(modes.ModeSolo, seats("A", "B")))
	require.NoError(t, err)
	player, card := valueInHand(t, e, id)

	// duplicate an effect card so the post-action check fails
	h, err := e.hosted(id)
	require.NoError(t, err)
	p := h.match.players["B"]
	for _, c := range p.Hand {
		if c.Kind == cards.KindEffect {
			p.Hand = append(p.Hand, c)
			break
		}
	}

	_, err = e.Apply(context.Background(), id, Action{Type: ActionPlayValue, PlayerID: player, CardID: card})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvariantViolation))

	s, err := e.Snapshot(id)
	require.NoError(t, err)
	held := false
	for _, c := range s.Players[0].Hand {
		if c.ID == card {
			held = true
		}
	}
	assert.True(t, held, "the played card is back in hand")
	assert.Empty(t, s.Players[0].Played)
}

func TestEngineRecordsResultOnce(t *testing.T) {
	e := newTestEngine(t)
	rec := &fakeRecorder{}
	e.SetResultRecorder(rec)
	id, err := e.CreateMatch(testConfig(modes.ModeSolo, seats("A", "B")))
	require.NoError(t, err)

	res, err := e.Apply(context.Background(), id, Action{Type: ActionConcede, PlayerID: "A"})
	require.NoError(t, err)
	require.NotNil(t, res.Result)

	_, err = e.Apply(context.Background(), id, Action{Type: ActionConcede, PlayerID: "B"})
	require.Error(t, err)
	require.NoError(t, e.Abandon(context.Background(), id))

	require.Len(t, rec.results, 1)
	assert.Equal(t, id, rec.results[0].MatchID)
	assert.Equal(t, []string{"B"}, rec.results[0].WinnerIDs)
}

func TestEngineRecorderFailureDoesNotFailAction(t *testing.T) {
	e := newTestEngine(t)
	e.SetResultRecorder(&fakeRecorder{err: errors.New("db down")})
	id, err := e.CreateMatch(testConfig(modes.ModeSolo, seats("A", "B")))
	require.NoError(t, err)

	res, err := e.Apply(context.Background(), id, Action{Type: ActionConcede, PlayerID: "B"})
	require.NoError(t, err)
	assert.NotNil(t, res.Result)
}

func TestEngineAbandon(t *testing.T) {
	e := newTestEngine(t)
	rec := &fakeRecorder{}
	e.SetResultRecorder(rec)
	id, err := e.CreateMatch(testConfig(modes.ModeSolo, seats("A", "B")))
	require.NoError(t, err)

	require.NoError(t, e.Abandon(context.Background(), id))
	s, err := e.Snapshot(id)
	require.NoError(t, err)
	require.NotNil(t, s.Result)
	assert.True(t, s.Result.Drawn)
	require.Len(t, rec.results, 1)
	assert.Equal(t, modes.CauseAbandoned, rec.results[0].Cause)
}

func TestEngineCapacity(t *testing.T) {
	e := newTestEngine(t)
	e.SetMaxMatches(1)
	_, err := e.CreateMatch(testConfig(modes.ModeSolo, seats("A", "B")))
	require.NoError(t, err)
	_, err = e.CreateMatch(testConfig(modes.ModeSolo, seats("A", "B")))
	assert.ErrorIs(t, err, ErrTooManyMatches)
	assert.Equal(t, 1, e.MatchCount())
}

func TestEngineRejectsBadConfig(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.CreateMatch(MatchConfig{Mode: modes.ModeSolo, Seats: seats("A")})
	assert.Error(t, err)
	assert.Zero(t, e.MatchCount())
}

func TestEngineReplayLifecycle(t *testing.T) {
	e := newTestEngine(t)
	dir := t.TempDir()
	replays := NewReplayRecorder(zaptest.NewLogger(t), dir)
	e.SetReplayRecorder(replays)

	id, err := e.CreateMatch(testConfig(modes.ModeSolo, seats("A", "B")))
	require.NoError(t, err)
	_, err = e.Apply(context.Background(), id, Action{Type: ActionConcede, PlayerID: "A"})
	require.NoError(t, err)

	replay, ok := replays.Replay(id)
	require.True(t, ok)
	assert.Equal(t, 2, replay.Len())
	assert.False(t, replays.Recording(id))

	e.RemoveMatch(id)
	assert.Zero(t, e.MatchCount())
	_, ok = replays.Replay(id)
	assert.False(t, ok)
	loaded, err := replays.Load(id)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
	assert.Equal(t, []string{"B"}, loaded.Final().Result.WinnerIDs)
}
