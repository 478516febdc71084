package game

import (
	"compress/gzip"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/reversus-game/reversus-server-go/internal/game/modes"
)

var (
	// ErrReplayCorrupt is returned when a saved state no longer matches the
	// checksum written next to it.
	ErrReplayCorrupt = errors.New("replay is corrupt")
	// ErrReplayVersion is returned for replays written with another snapshot
	// layout.
	ErrReplayVersion = errors.New("unsupported replay version")
)

// Replay is the recorded history of one match: the opening state, a snapshot
// after every resolved round and the closing state.
type Replay struct {
	MatchID string
	Mode    modes.Mode
	States  []*Snapshot
	mu      sync.RWMutex
}

// NewReplay creates an empty replay for a match.
func NewReplay(matchID string, mode modes.Mode) *Replay {
	return &Replay{MatchID: matchID, Mode: mode}
}

// Append adds a state. States from another match, or from an earlier round
// than the last one recorded, are refused.
func (r *Replay) Append(s *Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.MatchID != r.MatchID {
		return fmt.Errorf("snapshot of %s in replay of %s", s.MatchID, r.MatchID)
	}
	if n := len(r.States); n > 0 && s.Round < r.States[n-1].Round {
		return fmt.Errorf("round %d recorded after round %d", s.Round, r.States[n-1].Round)
	}
	r.States = append(r.States, s)
	return nil
}

// Len returns the number of recorded states.
func (r *Replay) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.States)
}

// Final returns the last recorded state, or nil for an empty replay.
func (r *Replay) Final() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.States) == 0 {
		return nil
	}
	return r.States[len(r.States)-1]
}

// Summaries returns the round summaries in the order the rounds resolved.
func (r *Replay) Summaries() []*RoundSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*RoundSummary
	seen := -1
	for _, s := range r.States {
		if s.LastSummary == nil || s.LastSummary.Round == seen {
			continue
		}
		seen = s.LastSummary.Round
		out = append(out, s.LastSummary)
	}
	return out
}

// replayHeader opens a saved replay. Checksums holds one hash per state.
type replayHeader struct {
	MatchID   string
	Mode      modes.Mode
	Version   int
	SavedAt   time.Time
	Checksums []string
}

// Encode writes the replay as gzipped gob: a header carrying each state's
// checksum, then the states.
func (r *Replay) Encode(w io.Writer) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	header := replayHeader{
		MatchID:   r.MatchID,
		Mode:      r.Mode,
		Version:   SnapshotVersion,
		SavedAt:   time.Now().UTC(),
		Checksums: make([]string, len(r.States)),
	}
	for i, s := range r.States {
		sum, err := s.Checksum()
		if err != nil {
			return fmt.Errorf("checksum state %d: %w", i, err)
		}
		header.Checksums[i] = sum.Hash
	}

	zw := gzip.NewWriter(w)
	enc := gob.NewEncoder(zw)
	if err := enc.Encode(&header); err != nil {
		return fmt.Errorf("encode replay header: %w", err)
	}
	for i, s := range r.States {
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encode state %d: %w", i, err)
		}
	}
	return zw.Close()
}

// DecodeReplay reads a replay written by Encode and checks every state
// against its checksum.
func DecodeReplay(rd io.Reader) (*Replay, error) {
	zr, err := gzip.NewReader(rd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReplayCorrupt, err)
	}
	defer zr.Close()
	dec := gob.NewDecoder(zr)

	var header replayHeader
	if err := dec.Decode(&header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrReplayCorrupt, err)
	}
	if header.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: %d", ErrReplayVersion, header.Version)
	}

	replay := NewReplay(header.MatchID, header.Mode)
	for i, want := range header.Checksums {
		s := new(Snapshot)
		if err := dec.Decode(s); err != nil {
			return nil, fmt.Errorf("%w: state %d: %v", ErrReplayCorrupt, i, err)
		}
		ok, err := s.VerifyChecksum(&Checksum{Hash: want, Version: header.Version})
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: state %d of %s", ErrReplayCorrupt, i, header.MatchID)
		}
		if err := replay.Append(s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrReplayCorrupt, err)
		}
	}
	return replay, nil
}

func replayPath(dir, matchID string) string {
	return filepath.Join(dir, matchID+".replay")
}

// SaveReplayFile writes r to <dir>/<match id>.replay. The file is written
// under a temporary name and renamed, so readers never see a partial replay.
func SaveReplayFile(dir string, r *Replay) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create replay directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, r.MatchID+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create replay file: %w", err)
	}
	if err := r.Encode(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close replay file: %w", err)
	}
	path := replayPath(dir, r.MatchID)
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("rename replay file: %w", err)
	}
	return path, nil
}

// LoadReplayFile reads the replay of matchID from dir.
func LoadReplayFile(dir, matchID string) (*Replay, error) {
	f, err := os.Open(replayPath(dir, matchID))
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	defer f.Close()
	return DecodeReplay(f)
}

// ReplayRecorder captures replays for the matches an engine hosts. A replay
// is live from Begin until Finish, held in memory until Flush writes it to
// disk, and dropped by Flush or Discard.
type ReplayRecorder struct {
	logger *zap.Logger
	dir    string

	mu   sync.Mutex
	live map[string]*Replay
	done map[string]*Replay
}

// NewReplayRecorder creates a recorder that saves into dir.
func NewReplayRecorder(logger *zap.Logger, dir string) *ReplayRecorder {
	return &ReplayRecorder{
		logger: logger,
		dir:    dir,
		live:   make(map[string]*Replay),
		done:   make(map[string]*Replay),
	}
}

// Dir is where flushed replays are written.
func (rr *ReplayRecorder) Dir() string { return rr.dir }

// Begin starts a replay with the match's opening state.
func (rr *ReplayRecorder) Begin(opening *Snapshot) {
	r := NewReplay(opening.MatchID, opening.Mode)
	_ = r.Append(opening)

	rr.mu.Lock()
	rr.live[opening.MatchID] = r
	delete(rr.done, opening.MatchID)
	rr.mu.Unlock()

	if rr.logger != nil {
		rr.logger.Debug("replay started",
			zap.String("match_id", opening.MatchID),
			zap.String("mode", string(opening.Mode)),
		)
	}
}

// Record appends s to the live replay of its match. States for matches that
// are not being recorded are ignored.
func (rr *ReplayRecorder) Record(s *Snapshot) {
	rr.mu.Lock()
	r := rr.live[s.MatchID]
	rr.mu.Unlock()
	if r == nil {
		return
	}
	if err := r.Append(s); err != nil && rr.logger != nil {
		rr.logger.Warn("replay state refused", zap.String("match_id", s.MatchID), zap.Error(err))
	}
}

// Finish closes a replay to further states.
func (rr *ReplayRecorder) Finish(matchID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	if r, ok := rr.live[matchID]; ok {
		delete(rr.live, matchID)
		rr.done[matchID] = r
	}
}

// Recording reports whether matchID still accepts states.
func (rr *ReplayRecorder) Recording(matchID string) bool {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	_, ok := rr.live[matchID]
	return ok
}

// Replay returns the in-memory replay of matchID, live or finished.
func (rr *ReplayRecorder) Replay(matchID string) (*Replay, bool) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	if r, ok := rr.live[matchID]; ok {
		return r, true
	}
	r, ok := rr.done[matchID]
	return r, ok
}

// Flush writes the replay of matchID to disk and forgets it. A match that
// was never recorded is not an error.
func (rr *ReplayRecorder) Flush(matchID string) error {
	rr.mu.Lock()
	r, ok := rr.done[matchID]
	if !ok {
		r, ok = rr.live[matchID]
	}
	delete(rr.live, matchID)
	delete(rr.done, matchID)
	rr.mu.Unlock()
	if !ok {
		return nil
	}

	path, err := SaveReplayFile(rr.dir, r)
	if err != nil {
		return fmt.Errorf("save replay of %s: %w", matchID, err)
	}
	if rr.logger != nil {
		rr.logger.Info("replay saved",
			zap.String("match_id", matchID),
			zap.Int("states", r.Len()),
			zap.String("path", path),
		)
	}
	return nil
}

// Discard forgets a replay without saving it.
func (rr *ReplayRecorder) Discard(matchID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	delete(rr.live, matchID)
	delete(rr.done, matchID)
}

// Load reads a flushed replay back from disk.
func (rr *ReplayRecorder) Load(matchID string) (*Replay, error) {
	return LoadReplayFile(rr.dir, matchID)
}
