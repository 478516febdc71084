package game

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/reversus-game/reversus-server-go/internal/game/cards"
	"github.com/reversus-game/reversus-server-go/internal/game/modes"
)

// SnapshotVersion is bumped when the snapshot layout changes.
const SnapshotVersion = 1

// Pile is one deck's draw and discard piles. The top of the draw pile is last.
type Pile struct {
	Draw    []cards.Card `json:"draw"`
	Discard []cards.Card `json:"discard"`
	Minted  int          `json:"minted"`
}

// Snapshot is a serialisable copy of the entire match state. Redacting hands
// for a particular viewer is up to the caller.
type Snapshot struct {
	Version         int           `json:"version"`
	MatchID         string        `json:"match_id"`
	Mode            modes.Mode    `json:"mode"`
	Phase           string        `json:"phase"`
	Round           int           `json:"round"`
	CurrentPlayer   string        `json:"current_player,omitempty"`
	RoundStarter    string        `json:"round_starter,omitempty"`
	Passes          int           `json:"consecutive_passes"`
	PassLimit       int           `json:"pass_limit"`
	TurnNumber      int           `json:"turn_number"`
	GlobalInversion bool          `json:"global_inversion"`
	Rules           Rules         `json:"rules"`
	Players         []Player      `json:"players"`
	Paths           []Path        `json:"paths"`
	FieldEffects    []FieldEffect `json:"field_effects,omitempty"`
	ValueDeck       Pile          `json:"value_deck"`
	EffectDeck      Pile          `json:"effect_deck"`
	AwaitingDraw    []string      `json:"awaiting_draw,omitempty"`
	LastSummary     *RoundSummary `json:"last_summary,omitempty"`
	Result          *MatchResult  `json:"result,omitempty"`
	Log             []LogEntry    `json:"log,omitempty"`
}

// Checksum is the digest of a snapshot's canonical rendering.
type Checksum struct {
	Hash    string `json:"hash"`
	Version int    `json:"version"`
}

// Snapshot captures the full match state.
func (m *Match) Snapshot() *Snapshot {
	s := &Snapshot{
		Version:         SnapshotVersion,
		MatchID:         m.id,
		Mode:            m.mode,
		Phase:           m.phase.Current().String(),
		Round:           m.round,
		CurrentPlayer:   m.CurrentPlayer(),
		RoundStarter:    m.turns.RoundStarter(),
		Passes:          m.turns.Passes(),
		PassLimit:       m.turns.PassLimit(),
		TurnNumber:      m.turns.TurnNumber(),
		GlobalInversion: m.globalInversion,
		Rules:           m.settings,
		Paths:           append([]Path(nil), m.paths...),
		FieldEffects:    append([]FieldEffect(nil), m.fieldEffects...),
		ValueDeck:       pileOf(m.valueDeck),
		EffectDeck:      pileOf(m.effectDeck),
		AwaitingDraw:    append([]string(nil), m.awaitingDraw...),
		Log:             append([]LogEntry(nil), m.log...),
	}
	for _, id := range m.order {
		s.Players = append(s.Players, *m.players[id].clone())
	}
	if m.summary != nil {
		sum := m.summary.clone()
		s.LastSummary = &sum
	}
	if m.result != nil {
		r := *m.result
		s.Result = &r
	}
	return s
}

func pileOf(d *cards.Deck) Pile {
	p := Pile{Minted: d.Minted()}
	for _, c := range d.DrawPile() {
		p.Draw = append(p.Draw, *c)
	}
	for _, c := range d.DiscardPile() {
		p.Discard = append(p.Discard, *c)
	}
	return p
}

// Checksum returns a SHA-256 digest of the snapshot's game state. The log and
// the order of map iteration do not affect it.
func (s *Snapshot) Checksum() (*Checksum, error) {
	hash := sha256.New()
	if _, err := hash.Write([]byte(s.canonical())); err != nil {
		return nil, fmt.Errorf("failed to compute hash: %w", err)
	}
	return &Checksum{
		Hash:    hex.EncodeToString(hash.Sum(nil)),
		Version: s.Version,
	}, nil
}

// VerifyChecksum reports whether the snapshot still matches expected.
func (s *Snapshot) VerifyChecksum(expected *Checksum) (bool, error) {
	computed, err := s.Checksum()
	if err != nil {
		return false, fmt.Errorf("failed to compute checksum: %w", err)
	}
	return computed.Hash == expected.Hash, nil
}

// canonical renders the state in a fixed textual form.
func (s *Snapshot) canonical() string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "MATCH:%s|%s|%s|%d|%s|%s|%d|%d|%d|%t\n",
		s.MatchID, s.Mode, s.Phase, s.Round, s.CurrentPlayer, s.RoundStarter,
		s.Passes, s.PassLimit, s.TurnNumber, s.GlobalInversion)
	fmt.Fprintf(&buf, "RULES:%d|%d|%d|%d|%d|%d|%d|%d|%d|%d\n",
		s.Rules.ValueHandSize, s.Rules.EffectHandSize, s.Rules.WinningPosition, s.Rules.PathCount,
		s.Rules.StartingHearts, s.Rules.BossHearts, s.Rules.WinsRequired, s.Rules.SurvivalRounds,
		s.Rules.NarrativeCooldown, s.Rules.Seed)

	// Seat order matters for turn rotation, so players keep it.
	for _, p := range s.Players {
		fmt.Fprintf(&buf, "PLAYER:%s|%s|%s|%t|%t|%t|%d|%d|%d|%t|%d|%d|%t|%t\n",
			p.ID, p.Name, p.Team, p.AI, p.Lead, p.Immune,
			p.PathID, p.Position, p.Hearts, p.IsEliminated, p.MatchPoints,
			p.PulaDestination, p.PlayedValueThisTurn, p.PlayedEffectThisTurn)
		fmt.Fprintf(&buf, "  EFFECTS:%s|%s\n", p.Effects.Score, p.Effects.Movement)
		fmt.Fprintf(&buf, "  RESTO:%s|%s|%s\n", restoKey(p.Resto), restoKey(p.NextResto), restoKey(p.InitialDraw))
		if p.SideChannel != nil {
			fmt.Fprintf(&buf, "  SIDE:%s|%s\n", p.SideChannel.Effect, p.SideChannel.CasterID)
		}

		hand := make([]string, len(p.Hand))
		for i, c := range p.Hand {
			hand[i] = cardKey(*c)
		}
		sort.Strings(hand)
		fmt.Fprintf(&buf, "  HAND:%s\n", strings.Join(hand, ","))

		// Play order matters for Reversus lookups.
		for i, entry := range p.Played {
			fmt.Fprintf(&buf, "  PLAYED:%d|%s|%s|%s|%s|%t|%s\n",
				i, cardKey(*entry.Card), entry.CasterID, entry.ImpliedAxis, entry.EffectName,
				entry.IsLocked, entry.LockedEffect)
		}
	}

	for _, path := range s.Paths {
		fmt.Fprintf(&buf, "PATH:%d|%s\n", path.ID, path.Color)
	}
	for _, fe := range s.FieldEffects {
		fmt.Fprintf(&buf, "FIELD:%s|%s|%s|%t\n", fe.Name, fe.Polarity, fe.AppliesTo, fe.Used)
	}

	// Draw order is part of the state: it decides the next card dealt.
	writePile(&buf, "VALUE", s.ValueDeck)
	writePile(&buf, "EFFECT", s.EffectDeck)

	buf.WriteString("AWAITING:")
	buf.WriteString(strings.Join(s.AwaitingDraw, ","))
	buf.WriteString("\n")

	if s.LastSummary != nil {
		ids := make([]string, 0, len(s.LastSummary.Scores))
		for id := range s.LastSummary.Scores {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(&buf, "SCORE:%d|%s=%d\n", s.LastSummary.Round, id, s.LastSummary.Scores[id])
		}
	}
	if s.Result != nil {
		fmt.Fprintf(&buf, "RESULT:%s|%t|%s|%d\n",
			strings.Join(s.Result.WinnerIDs, ","), s.Result.Drawn, s.Result.Cause, s.Result.Rounds)
	}
	return buf.String()
}

func writePile(buf *bytes.Buffer, name string, p Pile) {
	draw := make([]string, len(p.Draw))
	for i, c := range p.Draw {
		draw[i] = cardKey(c)
	}
	discard := make([]string, len(p.Discard))
	for i, c := range p.Discard {
		discard[i] = cardKey(c)
	}
	fmt.Fprintf(buf, "%s_DRAW:%s\n", name, strings.Join(draw, ","))
	fmt.Fprintf(buf, "%s_DISCARD:%s\n", name, strings.Join(discard, ","))
	fmt.Fprintf(buf, "%s_MINTED:%d\n", name, p.Minted)
}

func cardKey(c cards.Card) string {
	if c.Cooldown > 0 {
		return fmt.Sprintf("%s=%s/%d", c.ID, c.Name, c.Cooldown)
	}
	return c.ID + "=" + c.Name
}

func restoKey(r *Resto) string {
	if r == nil {
		return "-"
	}
	return fmt.Sprintf("%s/%d", r.CardID, r.Value)
}

// SerializeToBytes encodes the snapshot with gob.
func (s *Snapshot) SerializeToBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeSnapshot decodes a snapshot produced by SerializeToBytes.
func DeserializeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &s, nil
}

// ValidateRoundtrip checks that a snapshot survives gob encoding unchanged.
func ValidateRoundtrip(s *Snapshot) error {
	before, err := s.Checksum()
	if err != nil {
		return err
	}
	data, err := s.SerializeToBytes()
	if err != nil {
		return fmt.Errorf("failed to serialize: %w", err)
	}
	decoded, err := DeserializeSnapshot(data)
	if err != nil {
		return fmt.Errorf("failed to deserialize: %w", err)
	}
	after, err := decoded.Checksum()
	if err != nil {
		return err
	}
	if before.Hash != after.Hash {
		return fmt.Errorf("checksum mismatch: original=%s, deserialized=%s", before.Hash, after.Hash)
	}
	return nil
}
