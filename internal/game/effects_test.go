package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reversus-game/reversus-server-go/internal/game/cards"
	"github.com/reversus-game/reversus-server-go/internal/game/modes"
)

func TestGlobalInversionFlipsActiveAndFutureEffects(t *testing.T) {
	m := newTestMatch(t, modes.ModeSolo, seats("A", "B", "C"))
	stage(t, m, "A", cards.Mais)
	stage(t, m, "B", cards.ReversusTotal)
	stage(t, m, "C", cards.Mais)

	playEffect(t, m, "A", cards.Mais, "A", EffectOptions{})
	assert.Equal(t, cards.Mais, m.players["A"].Effects.Score)
	endTurn(t, m, "A")

	playEffect(t, m, "B", cards.ReversusTotal, "B", EffectOptions{IsGlobalReversusTotal: true})
	assert.True(t, m.GlobalInversion())
	assert.Equal(t, cards.Menos, m.players["A"].Effects.Score)
	endTurn(t, m, "B")

	playEffect(t, m, "C", cards.Mais, "C", EffectOptions{})
	assert.Equal(t, cards.Menos, m.players["C"].Effects.Score)
}

func TestGlobalInversionToggleRestoresNames(t *testing.T) {
	m := newTestMatch(t, modes.ModeSolo, seats("A", "B", "C"))
	stage(t, m, "A", cards.Mais, cards.ReversusTotal)
	stage(t, m, "B", cards.Sobe)
	stage(t, m, "C", cards.ReversusTotal)

	playEffect(t, m, "A", cards.Mais, "A", EffectOptions{})
	endTurn(t, m, "A")
	playEffect(t, m, "B", cards.Sobe, "C", EffectOptions{})
	endTurn(t, m, "B")
	playEffect(t, m, "C", cards.ReversusTotal, "C", EffectOptions{IsGlobalReversusTotal: true})
	assert.Equal(t, cards.Menos, m.players["A"].Effects.Score)
	assert.Equal(t, cards.Desce, m.players["C"].Effects.Movement)
	endTurn(t, m, "C")

	playEffect(t, m, "A", cards.ReversusTotal, "A", EffectOptions{IsGlobalReversusTotal: true})
	assert.False(t, m.GlobalInversion())
	assert.Equal(t, cards.Mais, m.players["A"].Effects.Score)
	assert.Equal(t, cards.Sobe, m.players["C"].Effects.Movement)
}

func TestLockedAxisBlocksReversus(t *testing.T) {
	m := newTestMatch(t, modes.ModeSolo, seats("A", "B", "C"))
	stage(t, m, "A", cards.ReversusTotal)
	stage(t, m, "B")
	stage(t, m, "C", cards.Reversus)

	playEffect(t, m, "A", cards.ReversusTotal, "B", EffectOptions{LockedEffect: cards.Sobe})
	b := m.players["B"]
	require.Len(t, b.Played, 1)
	assert.True(t, b.Played[0].IsLocked)
	assert.Equal(t, cards.Sobe, b.Played[0].LockedEffect)
	assert.Equal(t, cards.Sobe, b.Effects.Movement)
	endTurn(t, m, "A")
	endTurn(t, m, "B")

	res := playEffect(t, m, "C", cards.Reversus, "B", EffectOptions{EffectTypeToReverse: cards.AxisMovement})
	assert.False(t, res.Applied)
	assert.True(t, hasLog(res, LogBlocked))
	assert.Equal(t, cards.Sobe, b.Effects.Movement)
	assert.Equal(t, cards.Sobe, b.Played[0].LockedEffect)
	assert.False(t, m.players["C"].PlayedEffectThisTurn)
	handCard(t, m, "C", cards.Reversus)
}

func TestLockedAxisIgnoresGlobalInversion(t *testing.T) {
	m := newTestMatch(t, modes.ModeSolo, seats("A", "B"))
	stage(t, m, "A", cards.ReversusTotal)
	stage(t, m, "B", cards.ReversusTotal)

	playEffect(t, m, "A", cards.ReversusTotal, "B", EffectOptions{LockedEffect: cards.Desce})
	endTurn(t, m, "A")
	playEffect(t, m, "B", cards.ReversusTotal, "B", EffectOptions{IsGlobalReversusTotal: true})
	assert.True(t, m.GlobalInversion())
	assert.Equal(t, cards.Desce, m.players["B"].Effects.Movement)
}

func TestNamedLockReplacesExistingLock(t *testing.T) {
	m := newTestMatch(t, modes.ModeSolo, seats("A", "B", "C"))
	stage(t, m, "A", cards.ReversusTotal)
	stage(t, m, "B")
	stage(t, m, "C", cards.ReversusTotal)

	playEffect(t, m, "A", cards.ReversusTotal, "B", EffectOptions{LockedEffect: cards.Sobe})
	endTurn(t, m, "A")
	endTurn(t, m, "B")

	res := playEffect(t, m, "C", cards.ReversusTotal, "B", EffectOptions{LockedEffect: cards.Desce})
	assert.True(t, res.Applied)
	b := m.players["B"]
	require.Len(t, b.Played, 2)
	assert.Equal(t, cards.Desce, b.Effects.Movement)
	assert.Equal(t, cards.Sobe, b.Played[0].LockedEffect)
	assert.True(t, b.Played[1].IsLocked)
	assert.Equal(t, cards.Desce, b.Played[1].LockedEffect)
	assert.True(t, b.axisLocked(cards.AxisMovement))
}

func TestInvertingLockIsBlockedByLock(t *testing.T) {
	m := newTestMatch(t, modes.ModeSolo, seats("A", "B", "C"))
	stage(t, m, "A", cards.ReversusTotal)
	stage(t, m, "B")
	stage(t, m, "C", cards.ReversusTotal)

	playEffect(t, m, "A", cards.ReversusTotal, "B", EffectOptions{LockedEffect: cards.Mais})
	endTurn(t, m, "A")
	endTurn(t, m, "B")

	res := playEffect(t, m, "C", cards.ReversusTotal, "B", EffectOptions{EffectTypeToReverse: cards.AxisScore})
	assert.False(t, res.Applied)
	assert.True(t, hasLog(res, LogBlocked))
	assert.Equal(t, cards.Mais, m.players["B"].Effects.Score)
	assert.Len(t, m.players["B"].Played, 1)
	handCard(t, m, "C", cards.ReversusTotal)
}

func TestDoubleReversusIsInvolutive(t *testing.T) {
	m := newTestMatch(t, modes.ModeSolo, seats("A", "B", "C"))
	stage(t, m, "A", cards.Sobe)
	stage(t, m, "B", cards.Reversus)
	stage(t, m, "C", cards.Reversus)

	playEffect(t, m, "A", cards.Sobe, "C", EffectOptions{})
	endTurn(t, m, "A")
	playEffect(t, m, "B", cards.Reversus, "C", EffectOptions{EffectTypeToReverse: cards.AxisMovement})
	assert.Equal(t, cards.Desce, m.players["C"].Effects.Movement)
	endTurn(t, m, "B")
	playEffect(t, m, "C", cards.Reversus, "C", EffectOptions{EffectTypeToReverse: cards.AxisMovement})
	assert.Equal(t, cards.Sobe, m.players["C"].Effects.Movement)
	assert.Len(t, m.players["C"].Played, 3)
}

func TestReversusClearsPula(t *testing.T) {
	m := newTestMatch(t, modes.ModeSolo, seats("A", "B", "C"))
	stage(t, m, "A", cards.Pula)
	stage(t, m, "B", cards.Reversus)
	stage(t, m, "C", cards.Reversus)

	playEffect(t, m, "A", cards.Pula, "B", EffectOptions{})
	b := m.players["B"]
	assert.Equal(t, cards.Pula, b.Effects.Movement)
	assert.Equal(t, 4, b.PulaDestination)
	endTurn(t, m, "A")

	playEffect(t, m, "B", cards.Reversus, "B", EffectOptions{EffectTypeToReverse: cards.AxisMovement})
	assert.Empty(t, b.Effects.Movement)
	assert.Zero(t, b.PulaDestination)
	endTurn(t, m, "B")

	res := playEffect(t, m, "C", cards.Reversus, "B", EffectOptions{EffectTypeToReverse: cards.AxisMovement})
	assert.False(t, res.Applied)
}

func TestPulaWithoutFreePathIsSoftFailure(t *testing.T) {
	m := newTestMatch(t, modes.ModeSolo, seats("A", "B", "C", "D"))
	m.paths = m.paths[:4]
	stage(t, m, "A", cards.Pula)

	res := playEffect(t, m, "A", cards.Pula, "B", EffectOptions{})
	assert.False(t, res.Applied)
	assert.True(t, hasLog(res, LogBlocked))
	assert.Empty(t, m.players["B"].Effects.Movement)
	assert.False(t, m.players["A"].PlayedEffectThisTurn)
	handCard(t, m, "A", cards.Pula)
}

func TestPulaToOccupiedPathIsSoftFailure(t *testing.T) {
	m := newTestMatch(t, modes.ModeSolo, seats("A", "B", "C"))
	stage(t, m, "A", cards.Pula)

	res := playEffect(t, m, "A", cards.Pula, "B", EffectOptions{PulaDestinationPathID: 3})
	assert.False(t, res.Applied)
	assert.Empty(t, m.players["B"].Effects.Movement)
}

func TestImunidadeAbsorbsOneNegativeEffect(t *testing.T) {
	m := newTestMatch(t, modes.ModeSolo, seats("A", "B", "C"))
	stage(t, m, "A", cards.Menos)
	stage(t, m, "B")
	stage(t, m, "C", cards.Desce)
	_, err := m.AddFieldEffect(FieldImunidade, "B")
	require.NoError(t, err)

	res := playEffect(t, m, "A", cards.Menos, "B", EffectOptions{})
	assert.True(t, res.Applied)
	assert.Empty(t, m.players["B"].Effects.Score)
	assert.True(t, m.players["A"].PlayedEffectThisTurn)
	assert.Empty(t, m.players["A"].Hand)
	assert.True(t, m.fieldEffect("B", FieldImunidade).Used)
	endTurn(t, m, "A")
	endTurn(t, m, "B")

	playEffect(t, m, "C", cards.Desce, "B", EffectOptions{})
	assert.Equal(t, cards.Desce, m.players["B"].Effects.Movement)
}

func TestImmuneSeatIgnoresNegativeEffects(t *testing.T) {
	roster := seats("A", "boss")
	roster[1].Lead = true
	roster[1].Immune = true
	m := newTestMatch(t, modes.ModeBoss, roster)
	stage(t, m, "A", cards.Desce)

	res := playEffect(t, m, "A", cards.Desce, "boss", EffectOptions{})
	assert.True(t, res.Applied)
	assert.Empty(t, m.players["boss"].Effects.Movement)
}

func TestSortePulaDrawsExtraEffect(t *testing.T) {
	m := newTestMatch(t, modes.ModeSolo, seats("A", "B"))
	stage(t, m, "A", cards.Pula)
	_, err := m.AddFieldEffect(FieldSorte, "A")
	require.NoError(t, err)

	playEffect(t, m, "A", cards.Pula, "A", EffectOptions{})
	assert.Len(t, m.players["A"].Hand, 1)
	assert.Equal(t, cards.KindEffect, m.players["A"].Hand[0].Kind)
}

func TestVersatrixReturnsWithCooldown(t *testing.T) {
	roster := seats("A", "B")
	roster[0].Versatrix = true
	m := newTestMatch(t, modes.ModeSolo, roster)
	stage(t, m, "B")
	before := len(m.players["B"].Hand)

	playEffect(t, m, "A", cards.Versatrix, "B", EffectOptions{})
	assert.Len(t, m.players["B"].Hand, before+2)
	a := m.players["A"]
	id := handCard(t, m, "A", cards.Versatrix)
	for _, c := range a.Hand {
		if c.ID == id {
			assert.Equal(t, 3, c.Cooldown)
		}
	}

	a.PlayedEffectThisTurn = false
	_, err := m.PlayEffectCard("A", id, "B", EffectOptions{})
	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, CodeCardOnCooldown, rej.Code)
}

func TestTournamentSideChannelStealAndReclaim(t *testing.T) {
	m := newTestMatch(t, modes.ModeTournament, seats("A", "B"))
	stage(t, m, "A", cards.Sobe, cards.Reversus)
	stage(t, m, "B", cards.Pula)

	playEffect(t, m, "A", cards.Sobe, "A", EffectOptions{})
	require.NotNil(t, m.players["A"].SideChannel)
	assert.Empty(t, m.players["A"].Effects.Movement)
	endTurn(t, m, "A")

	playEffect(t, m, "B", cards.Pula, "A", EffectOptions{})
	assert.Nil(t, m.players["A"].SideChannel)
	require.NotNil(t, m.players["B"].SideChannel)
	assert.Equal(t, SideEffect{Effect: cards.Sobe, CasterID: "A"}, *m.players["B"].SideChannel)
	endTurn(t, m, "B")

	playEffect(t, m, "A", cards.Reversus, "B", EffectOptions{})
	assert.Nil(t, m.players["B"].SideChannel)
	require.NotNil(t, m.players["A"].SideChannel)
	assert.Equal(t, cards.Sobe, m.players["A"].SideChannel.Effect)
}

func TestTournamentReversusInvertsSideChannel(t *testing.T) {
	m := newTestMatch(t, modes.ModeTournament, seats("A", "B"))
	stage(t, m, "A", cards.Sobe)
	stage(t, m, "B", cards.Reversus)

	playEffect(t, m, "A", cards.Sobe, "B", EffectOptions{})
	endTurn(t, m, "A")
	playEffect(t, m, "B", cards.Reversus, "B", EffectOptions{})
	assert.Equal(t, SideEffect{Effect: cards.Desce, CasterID: "A"}, *m.players["B"].SideChannel)
}

func TestTournamentMaisIsNoOp(t *testing.T) {
	m := newTestMatch(t, modes.ModeTournament, seats("A", "B"))
	stage(t, m, "A", cards.Mais)

	res := playEffect(t, m, "A", cards.Mais, "A", EffectOptions{})
	assert.True(t, res.Applied)
	assert.Empty(t, m.players["A"].Effects.Score)
	assert.Empty(t, m.players["A"].Hand)
}

func TestEachAxisHoldsOneModifier(t *testing.T) {
	m := newTestMatch(t, modes.ModeSolo, seats("A", "B"))
	stage(t, m, "A", cards.Mais)
	stage(t, m, "B", cards.Menos)

	playEffect(t, m, "A", cards.Mais, "B", EffectOptions{})
	endTurn(t, m, "A")
	playEffect(t, m, "B", cards.Menos, "B", EffectOptions{})
	assert.Equal(t, cards.Menos, m.players["B"].Effects.Score)
	assert.Empty(t, m.players["B"].Effects.Movement)
}
