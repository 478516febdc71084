package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reversus-game/reversus-server-go/internal/game/modes"
)

func TestChecksumIsDeterministic(t *testing.T) {
	first := newTestMatch(t, modes.ModeSolo, seats("A", "B", "C"))
	second := newTestMatch(t, modes.ModeSolo, seats("A", "B", "C"))

	a, err := first.Snapshot().Checksum()
	require.NoError(t, err)
	b, err := second.Snapshot().Checksum()
	require.NoError(t, err)
	assert.Equal(t, a.Hash, b.Hash, "same seed and seats must produce the same state")
	assert.Equal(t, SnapshotVersion, a.Version)

	for i := 0; i < 5; i++ {
		again, err := first.Snapshot().Checksum()
		require.NoError(t, err)
		assert.Equal(t, a.Hash, again.Hash)
	}
}

func TestChecksumTracksState(t *testing.T) {
	m := newTestMatch(t, modes.ModeSolo, seats("A", "B"))
	before, err := m.Snapshot().Checksum()
	require.NoError(t, err)

	endTurn(t, m, "A")
	after, err := m.Snapshot().Checksum()
	require.NoError(t, err)
	assert.NotEqual(t, before.Hash, after.Hash)

	ok, err := m.Snapshot().VerifyChecksum(after)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = m.Snapshot().VerifyChecksum(before)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChecksumIgnoresLog(t *testing.T) {
	m := newTestMatch(t, modes.ModeSolo, seats("A", "B"))
	s := m.Snapshot()
	want, err := s.Checksum()
	require.NoError(t, err)

	s.Log = append(s.Log, LogEntry{Seq: 999, Text: "noise"})
	got, err := s.Checksum()
	require.NoError(t, err)
	assert.Equal(t, want.Hash, got.Hash)
}

func TestSnapshotRoundtrip(t *testing.T) {
	m := newTestMatch(t, modes.ModeBoss, bossRoster("A", "B"))
	stage(t, m, "boss", "6", "Mais")
	playValue(t, m, "boss", "6")
	playEffect(t, m, "boss", "Mais", "boss", EffectOptions{})
	s := m.Snapshot()

	require.NoError(t, ValidateRoundtrip(s))

	data, err := s.SerializeToBytes()
	require.NoError(t, err)
	decoded, err := DeserializeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, s.MatchID, decoded.MatchID)
	assert.Equal(t, s.Phase, decoded.Phase)
	require.Len(t, decoded.Players, 3)
	assert.Equal(t, 10, decoded.Players[0].Hearts)
	assert.Equal(t, "Mais", decoded.Players[0].Effects.Score)
}

func TestSnapshotIsACopy(t *testing.T) {
	m := newTestMatch(t, modes.ModeSolo, seats("A", "B"))
	stage(t, m, "A", "6")
	s := m.Snapshot()
	s.Players[0].Hand = nil
	s.Players[0].Position = 9

	assert.Len(t, m.players["A"].Hand, 1)
	assert.Equal(t, 1, m.players["A"].Position)
}

func TestDeserializeRejectsGarbage(t *testing.T) {
	_, err := DeserializeSnapshot([]byte("not a snapshot"))
	assert.Error(t, err)
}
