package game

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/reversus-game/reversus-server-go/internal/game/modes"
)

// playedReplay records the opening state and two resolved rounds of a solo
// match.
func playedReplay(t *testing.T) (*Match, *Replay) {
	t.Helper()
	m := newTestMatch(t, modes.ModeSolo, seats("A", "B"))
	r := NewReplay(m.ID(), modes.ModeSolo)
	require.NoError(t, r.Append(m.Snapshot()))
	for i := 0; i < 2 && !m.IsOver(); i++ {
		playOutRound(t, m)
		require.NoError(t, r.Append(m.Snapshot()))
	}
	return m, r
}

func checksums(t *testing.T, r *Replay) []string {
	t.Helper()
	out := make([]string, r.Len())
	for i, s := range r.States {
		sum, err := s.Checksum()
		require.NoError(t, err)
		out[i] = sum.Hash
	}
	return out
}

// writeRawReplay hand-assembles a replay stream so tests can disagree with
// the checksums Encode would write.
func writeRawReplay(t *testing.T, header replayHeader, states ...*Snapshot) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	enc := gob.NewEncoder(zw)
	require.NoError(t, enc.Encode(&header))
	for _, s := range states {
		require.NoError(t, enc.Encode(s))
	}
	require.NoError(t, zw.Close())
	return &buf
}

func TestReplayOfPlayedMatch(t *testing.T) {
	m, r := playedReplay(t)
	require.GreaterOrEqual(t, r.Len(), 2)

	var buf bytes.Buffer
	require.NoError(t, r.Encode(&buf))
	loaded, err := DecodeReplay(&buf)
	require.NoError(t, err)

	assert.Equal(t, m.ID(), loaded.MatchID)
	assert.Equal(t, modes.ModeSolo, loaded.Mode)
	assert.Equal(t, checksums(t, r), checksums(t, loaded))
	assert.Equal(t, r.Final().Phase, loaded.Final().Phase)
	assert.Equal(t, r.Final().Round, loaded.Final().Round)

	summaries := loaded.Summaries()
	require.Len(t, summaries, r.Len()-1)
	assert.Equal(t, 1, summaries[0].Round)
}

func TestReplayAppendChecksMatchAndRound(t *testing.T) {
	r := NewReplay("m1", modes.ModeSolo)
	require.NoError(t, r.Append(&Snapshot{MatchID: "m1", Round: 3}))

	assert.Error(t, r.Append(&Snapshot{MatchID: "m2", Round: 3}))
	assert.Error(t, r.Append(&Snapshot{MatchID: "m1", Round: 2}))
	require.NoError(t, r.Append(&Snapshot{MatchID: "m1", Round: 3}))
	assert.Equal(t, 2, r.Len())
	assert.Nil(t, NewReplay("empty", modes.ModeSolo).Final())
}

func TestReplaySummariesSkipRepeats(t *testing.T) {
	first := &RoundSummary{Round: 1}
	second := &RoundSummary{Round: 2}
	r := &Replay{MatchID: "m1", States: []*Snapshot{
		{MatchID: "m1", Round: 1},
		{MatchID: "m1", Round: 2, LastSummary: first},
		{MatchID: "m1", Round: 3, LastSummary: second},
		{MatchID: "m1", Round: 3, LastSummary: second},
	}}
	assert.Equal(t, []*RoundSummary{first, second}, r.Summaries())
}

func TestReplayFileRoundTrip(t *testing.T) {
	_, r := playedReplay(t)
	dir := filepath.Join(t.TempDir(), "nested", "replays")

	path, err := SaveReplayFile(dir, r)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, r.MatchID+".replay"), path)

	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)

	loaded, err := LoadReplayFile(dir, r.MatchID)
	require.NoError(t, err)
	assert.Equal(t, checksums(t, r), checksums(t, loaded))
	for i := range r.States {
		assert.Equal(t, r.States[i].Phase, loaded.States[i].Phase, "state %d", i)
		assert.Equal(t, r.States[i].TurnNumber, loaded.States[i].TurnNumber, "state %d", i)
	}
}

func TestLoadReplayFileMissing(t *testing.T) {
	_, err := LoadReplayFile(t.TempDir(), "nope")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDecodeReplayRejectsTamperedState(t *testing.T) {
	_, r := playedReplay(t)
	sums := checksums(t, r)

	tampered := *r.States[1]
	tampered.Round += 5
	header := replayHeader{
		MatchID:   r.MatchID,
		Mode:      r.Mode,
		Version:   SnapshotVersion,
		SavedAt:   time.Now().UTC(),
		Checksums: sums[:2],
	}
	_, err := DecodeReplay(writeRawReplay(t, header, r.States[0], &tampered))
	assert.ErrorIs(t, err, ErrReplayCorrupt)

	// the same stream with the untouched state decodes
	loaded, err := DecodeReplay(writeRawReplay(t, header, r.States[0], r.States[1]))
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
}

func TestDecodeReplayRejectsOtherVersion(t *testing.T) {
	header := replayHeader{MatchID: "m1", Version: SnapshotVersion + 1}
	_, err := DecodeReplay(writeRawReplay(t, header))
	assert.ErrorIs(t, err, ErrReplayVersion)
}

func TestDecodeReplayRejectsGarbage(t *testing.T) {
	_, err := DecodeReplay(bytes.NewReader([]byte("not a replay")))
	assert.ErrorIs(t, err, ErrReplayCorrupt)

	header := replayHeader{MatchID: "m1", Version: SnapshotVersion, Checksums: []string{"abc"}}
	_, err = DecodeReplay(writeRawReplay(t, header))
	assert.ErrorIs(t, err, ErrReplayCorrupt)
}

func TestReplayRecorderLifecycle(t *testing.T) {
	dir := t.TempDir()
	rr := NewReplayRecorder(zaptest.NewLogger(t), dir)
	assert.Equal(t, dir, rr.Dir())

	m := newTestMatch(t, modes.ModeSolo, seats("A", "B"))
	rr.Begin(m.Snapshot())
	assert.True(t, rr.Recording(m.ID()))

	playOutRound(t, m)
	rr.Record(m.Snapshot())
	rr.Record(&Snapshot{MatchID: "someone-else", Round: 9})
	_, ok := rr.Replay("someone-else")
	assert.False(t, ok)

	_, err := m.Concede("A")
	require.NoError(t, err)
	rr.Record(m.Snapshot())
	rr.Finish(m.ID())
	assert.False(t, rr.Recording(m.ID()))

	rr.Record(m.Snapshot())
	live, ok := rr.Replay(m.ID())
	require.True(t, ok)
	assert.Equal(t, 3, live.Len())
	want := checksums(t, live)

	require.NoError(t, rr.Flush(m.ID()))
	_, ok = rr.Replay(m.ID())
	assert.False(t, ok)
	require.NoError(t, rr.Flush(m.ID()), "flushing twice is a no-op")

	loaded, err := rr.Load(m.ID())
	require.NoError(t, err)
	assert.Equal(t, want, checksums(t, loaded))
	require.NotNil(t, loaded.Final().Result)
	assert.Equal(t, []string{"B"}, loaded.Final().Result.WinnerIDs)
}

func TestReplayRecorderDiscard(t *testing.T) {
	dir := t.TempDir()
	rr := NewReplayRecorder(zaptest.NewLogger(t), dir)

	m := newTestMatch(t, modes.ModeSolo, seats("A", "B"))
	rr.Begin(m.Snapshot())
	rr.Discard(m.ID())
	assert.False(t, rr.Recording(m.ID()))

	require.NoError(t, rr.Flush(m.ID()))
	_, err := rr.Load(m.ID())
	assert.ErrorIs(t, err, os.ErrNotExist)
}
