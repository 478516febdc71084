package game

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/reversus-game/reversus-server-go/internal/game/cards"
	"github.com/reversus-game/reversus-server-go/internal/game/modes"
)

func seats(ids ...string) []Seat {
	out := make([]Seat, len(ids))
	for i, id := range ids {
		out[i] = Seat{ID: id, Name: id}
	}
	return out
}

// testValueDeck and testEffectDeck are large enough to stage any hand.
var (
	testValueDeck = cards.Composition{
		{Value: 2, Count: 10},
		{Value: 4, Count: 10},
		{Value: 6, Count: 10},
		{Value: 8, Count: 10},
		{Value: 10, Count: 10},
	}
	testEffectDeck = cards.Composition{
		{Name: cards.Mais, Count: 6},
		{Name: cards.Menos, Count: 6},
		{Name: cards.Sobe, Count: 6},
		{Name: cards.Desce, Count: 6},
		{Name: cards.Pula, Count: 6},
		{Name: cards.Reversus, Count: 6},
		{Name: cards.ReversusTotal, Count: 4},
	}
)

func testConfig(mode modes.Mode, roster []Seat) MatchConfig {
	return MatchConfig{
		Mode:             mode,
		Seats:            roster,
		Rules:            Rules{Seed: 42},
		StartingPlayerID: roster[0].ID,
		ValueDeck:        testValueDeck,
		EffectDeck:       testEffectDeck,
	}
}

// newTestMatch creates a seeded match that skips the initial draw and
// empties every hand; the first seat starts.
func newTestMatch(t *testing.T, mode modes.Mode, roster []Seat) *Match {
	t.Helper()
	return newMatchFrom(t, testConfig(mode, roster))
}

func newMatchFrom(t *testing.T, cfg MatchConfig) *Match {
	t.Helper()
	m, err := NewMatch("test-match", cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	m.drain(true)
	for _, id := range m.order {
		stage(t, m, id)
	}
	return m
}

// stage replaces a player's deck cards in hand with the listed cards. A
// numeric spec is a value card, anything else an effect name. Returned cards
// go back to their discard piles so the card count is preserved.
func stage(t *testing.T, m *Match, playerID string, specs ...string) []*cards.Card {
	t.Helper()
	p := m.players[playerID]
	var keep []*cards.Card
	for _, c := range p.Hand {
		switch {
		case cards.IsNarrative(c.Name):
			keep = append(keep, c)
		case c.Kind == cards.KindValue:
			m.valueDeck.Discard(c)
		default:
			m.effectDeck.Discard(c)
		}
	}
	p.Hand = keep

	var staged []*cards.Card
	for _, spec := range specs {
		var (
			card *cards.Card
			ok   bool
		)
		if v, err := strconv.Atoi(spec); err == nil {
			card, ok = m.valueDeck.Take(func(c *cards.Card) bool { return c.Value == v })
		} else {
			name := spec
			card, ok = m.effectDeck.Take(func(c *cards.Card) bool { return c.Name == name })
		}
		require.True(t, ok, "no %s card left to stage", spec)
		p.Hand = append(p.Hand, card)
		staged = append(staged, card)
	}
	require.NoError(t, m.Verify())
	return staged
}

// handCard returns the id of the first card in hand with the given name.
func handCard(t *testing.T, m *Match, playerID, name string) string {
	t.Helper()
	for _, c := range m.players[playerID].Hand {
		if c.Name == name {
			return c.ID
		}
	}
	t.Fatalf("%s holds no %s", playerID, name)
	return ""
}

func playValue(t *testing.T, m *Match, playerID, name string) {
	t.Helper()
	_, err := m.PlayValueCard(playerID, handCard(t, m, playerID, name))
	require.NoError(t, err)
}

func playEffect(t *testing.T, m *Match, playerID, name, targetID string, opts EffectOptions) *ActionResult {
	t.Helper()
	res, err := m.PlayEffectCard(playerID, handCard(t, m, playerID, name), targetID, opts)
	require.NoError(t, err)
	return res
}

func endTurn(t *testing.T, m *Match, playerID string) *ActionResult {
	t.Helper()
	res, err := m.EndTurn(playerID)
	require.NoError(t, err)
	return res
}

// playOutRound ends turns until the round resolves and returns its summary.
// A player holding more than one value card plays the first of them.
func playOutRound(t *testing.T, m *Match) *RoundSummary {
	t.Helper()
	for i := 0; i < 128; i++ {
		id := m.CurrentPlayer()
		p := m.players[id]
		if !p.PlayedValueThisTurn && p.countHand(cards.KindValue, true) > 1 {
			_, err := m.PlayValueCard(id, lowestValueCard(p))
			require.NoError(t, err)
		}
		res := endTurn(t, m, id)
		if res.Summary != nil {
			return res.Summary
		}
	}
	t.Fatal("round never resolved")
	return nil
}

func hasLog(res *ActionResult, kind string) bool {
	for _, l := range res.Logs {
		if l.Kind == kind {
			return true
		}
	}
	return false
}
