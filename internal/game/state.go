package game

import (
	"errors"
	"fmt"

	"github.com/reversus-game/reversus-server-go/internal/game/cards"
	"github.com/reversus-game/reversus-server-go/internal/game/modes"
)

// ErrInvariantViolation marks a programming error detected in match state.
var ErrInvariantViolation = errors.New("invariant violation")

// Rules are the numeric constants of a match.
type Rules struct {
	ValueHandSize     int    `json:"value_hand_size"`
	EffectHandSize    int    `json:"effect_hand_size"`
	WinningPosition   int    `json:"winning_position"`
	PathCount         int    `json:"path_count"`
	StartingHearts    int    `json:"starting_hearts"`
	BossHearts        int    `json:"boss_hearts"`
	WinsRequired      int    `json:"wins_required"`
	SurvivalRounds    int    `json:"survival_rounds"`
	NarrativeCooldown int    `json:"narrative_cooldown"`
	Seed              uint64 `json:"seed"`
}

// DefaultRules returns the standard table rules.
func DefaultRules() Rules {
	return Rules{
		ValueHandSize:     3,
		EffectHandSize:    2,
		WinningPosition:   10,
		PathCount:         6,
		StartingHearts:    3,
		BossHearts:        10,
		WinsRequired:      2,
		SurvivalRounds:    8,
		NarrativeCooldown: 3,
	}
}

// withDefaults fills zero fields from DefaultRules.
func (r Rules) withDefaults() Rules {
	d := DefaultRules()
	if r.ValueHandSize <= 0 {
		r.ValueHandSize = d.ValueHandSize
	}
	if r.EffectHandSize <= 0 {
		r.EffectHandSize = d.EffectHandSize
	}
	if r.WinningPosition <= 1 {
		r.WinningPosition = d.WinningPosition
	}
	if r.PathCount <= 0 {
		r.PathCount = d.PathCount
	}
	if r.StartingHearts <= 0 {
		r.StartingHearts = d.StartingHearts
	}
	if r.BossHearts <= 0 {
		r.BossHearts = d.BossHearts
	}
	if r.WinsRequired <= 0 {
		r.WinsRequired = d.WinsRequired
	}
	if r.SurvivalRounds <= 0 {
		r.SurvivalRounds = d.SurvivalRounds
	}
	if r.NarrativeCooldown <= 0 {
		r.NarrativeCooldown = d.NarrativeCooldown
	}
	return r
}

// Seat is one roster entry of the match configuration.
type Seat struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Team string `json:"team,omitempty"`
	AI   bool   `json:"ai,omitempty"`
	// Lead marks the boss or champion in one-vs-many modes.
	Lead bool `json:"lead,omitempty"`
	// Immune ignores negative effects from other players for the whole match.
	Immune bool `json:"immune,omitempty"`
	// Versatrix grants the narrative one-shot card at creation.
	Versatrix bool `json:"versatrix,omitempty"`
}

// Placement puts a seat's pawn on a path.
type Placement struct {
	PathID   int `json:"path_id"`
	Position int `json:"position"`
}

// BoardLayout pre-seeds paths and pawn placement.
type BoardLayout struct {
	Paths      []Path               `json:"paths"`
	Placements map[string]Placement `json:"placements"`
}

// MatchConfig is consumed once at match creation.
type MatchConfig struct {
	Mode  modes.Mode `json:"mode"`
	Seats []Seat     `json:"seats"`
	Rules Rules      `json:"rules"`
	// StartingPlayerID pre-assigns turn order and skips the initial draw.
	StartingPlayerID    string       `json:"starting_player_id,omitempty"`
	NarrativeScoreCards bool         `json:"narrative_score_cards,omitempty"`
	Layout              *BoardLayout `json:"layout,omitempty"`
	Script              *BossScript  `json:"script,omitempty"`
	// ValueDeck and EffectDeck replace the standard compositions when non-nil.
	ValueDeck  cards.Composition `json:"value_deck,omitempty"`
	EffectDeck cards.Composition `json:"effect_deck,omitempty"`
}

// Path is one lane of the board. At most one pawn occupies a path.
type Path struct {
	ID    int    `json:"id"`
	Color string `json:"color,omitempty"`
}

var defaultPathColors = []string{"red", "blue", "green", "yellow", "purple", "orange", "white", "black"}

// Field effect names.
const (
	FieldRestoMaior = "Resto Maior"
	FieldRestoMenor = "Resto Menor"
	FieldCastigo    = "Castigo"
	FieldParada     = "Parada"
	FieldDesafio    = "Desafio"
	FieldImunidade  = "Imunidade"
	FieldPenalidade = "Penalidade"
	FieldImpulso    = "Impulso"
	FieldSorte      = "Sorte"
)

// Polarity says whether a field effect helps or hurts.
type Polarity string

const (
	PolarityPositive Polarity = "positive"
	PolarityNegative Polarity = "negative"
)

var fieldPolarity = map[string]Polarity{
	FieldRestoMaior: PolarityPositive,
	FieldRestoMenor: PolarityNegative,
	FieldCastigo:    PolarityNegative,
	FieldParada:     PolarityNegative,
	FieldDesafio:    PolarityPositive,
	FieldImunidade:  PolarityPositive,
	FieldPenalidade: PolarityNegative,
	FieldImpulso:    PolarityPositive,
	FieldSorte:      PolarityPositive,
}

// FieldEffect is a round-scoped modifier bound to one player.
type FieldEffect struct {
	Name      string   `json:"name"`
	Polarity  Polarity `json:"polarity"`
	AppliesTo string   `json:"applies_to"`
	// Used marks a one-shot field effect (Imunidade) as consumed.
	Used bool `json:"used,omitempty"`
}

// NewFieldEffect builds a field effect with its fixed polarity.
func NewFieldEffect(name, playerID string) (FieldEffect, error) {
	pol, ok := fieldPolarity[name]
	if !ok {
		return FieldEffect{}, fmt.Errorf("unknown field effect %q", name)
	}
	return FieldEffect{Name: name, Polarity: pol, AppliesTo: playerID}, nil
}

// Effects holds the two per-round modifier slots. Each holds at most one name.
type Effects struct {
	Score    string `json:"score,omitempty"`
	Movement string `json:"movement,omitempty"`
}

// Get returns the slot for an axis.
func (e Effects) Get(axis cards.Axis) string {
	switch axis {
	case cards.AxisScore:
		return e.Score
	case cards.AxisMovement:
		return e.Movement
	}
	return ""
}

func (e *Effects) set(axis cards.Axis, name string) {
	switch axis {
	case cards.AxisScore:
		e.Score = name
	case cards.AxisMovement:
		e.Movement = name
	}
}

// Resto is the reserved numeric card used as the Mais/Menos operand. It
// records the value of a card that lives in the value discard pile.
type Resto struct {
	CardID string `json:"card_id"`
	Value  int    `json:"value"`
}

// SideEffect is the tournament-mode Sobe/Desce record held by a player.
type SideEffect struct {
	Effect   string `json:"effect"`
	CasterID string `json:"caster_id"`
}

// Player is one seat's mutable state.
type Player struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Team      string             `json:"team,omitempty"`
	AI        bool               `json:"ai,omitempty"`
	Lead      bool               `json:"lead,omitempty"`
	Immune    bool               `json:"immune,omitempty"`
	Hand      []*cards.Card      `json:"hand"`
	Played    []cards.PlayedCard `json:"played"`
	Resto     *Resto             `json:"resto,omitempty"`
	NextResto *Resto             `json:"next_resto,omitempty"`
	Effects   Effects            `json:"effects"`
	PathID    int                `json:"path_id"`
	Position  int                `json:"position"`
	// Hearts is only meaningful in heart-based modes.
	Hearts               int         `json:"hearts,omitempty"`
	IsEliminated         bool        `json:"is_eliminated,omitempty"`
	MatchPoints          int         `json:"match_points,omitempty"`
	SideChannel          *SideEffect `json:"side_channel,omitempty"`
	PulaDestination      int         `json:"pula_destination,omitempty"`
	PlayedValueThisTurn  bool        `json:"played_value_card_this_turn,omitempty"`
	PlayedEffectThisTurn bool        `json:"played_effect_card_this_turn,omitempty"`
	// InitialDraw is the last card drawn for initiative.
	InitialDraw *Resto `json:"initial_draw,omitempty"`
}

func (p *Player) handIndex(cardID string) int {
	for i, c := range p.Hand {
		if c.ID == cardID {
			return i
		}
	}
	return -1
}

func (p *Player) removeFromHand(idx int) *cards.Card {
	card := p.Hand[idx]
	p.Hand = append(p.Hand[:idx], p.Hand[idx+1:]...)
	return card
}

func (p *Player) countHand(kind cards.Kind, includeNarrative bool) int {
	n := 0
	for _, c := range p.Hand {
		if c.Kind != kind {
			continue
		}
		if !includeNarrative && cards.IsNarrative(c.Name) {
			continue
		}
		n++
	}
	return n
}

// latestImplying returns the most recent played effect entry that speaks for axis.
func (p *Player) latestImplying(axis cards.Axis) *cards.PlayedCard {
	for i := len(p.Played) - 1; i >= 0; i-- {
		entry := &p.Played[i]
		if entry.Card.Kind == cards.KindEffect && entry.ImpliedAxis == axis {
			return entry
		}
	}
	return nil
}

// axisLocked reports whether the current modifier on axis came from a locked card.
func (p *Player) axisLocked(axis cards.Axis) bool {
	entry := p.latestImplying(axis)
	return entry != nil && entry.IsLocked
}

func (p *Player) playedValues() []int {
	var out []int
	for _, entry := range p.Played {
		if entry.Card.Kind == cards.KindValue {
			out = append(out, entry.Card.Value)
		}
	}
	return out
}

func (p *Player) clone() *Player {
	cp := *p
	cp.Hand = make([]*cards.Card, len(p.Hand))
	for i, c := range p.Hand {
		cp.Hand[i] = c.Clone()
	}
	cp.Played = make([]cards.PlayedCard, len(p.Played))
	for i, entry := range p.Played {
		cp.Played[i] = entry.Clone()
	}
	if p.Resto != nil {
		r := *p.Resto
		cp.Resto = &r
	}
	if p.NextResto != nil {
		r := *p.NextResto
		cp.NextResto = &r
	}
	if p.SideChannel != nil {
		s := *p.SideChannel
		cp.SideChannel = &s
	}
	if p.InitialDraw != nil {
		d := *p.InitialDraw
		cp.InitialDraw = &d
	}
	return &cp
}

// LogEntry is one line of the deterministic game log.
type LogEntry struct {
	Seq      int    `json:"seq"`
	Round    int    `json:"round"`
	Kind     string `json:"kind"`
	PlayerID string `json:"player_id,omitempty"`
	Text     string `json:"text"`
}

// Log entry kinds.
const (
	LogAction     = "action"
	LogEffect     = "effect"
	LogBlocked    = "blocked"
	LogSystem     = "system"
	LogResolution = "resolution"
)

// RoundSummary is what the resolver decided for one round.
type RoundSummary struct {
	Round       int            `json:"round"`
	Scores      map[string]int `json:"scores"`
	WinnerIDs   []string       `json:"winner_ids"`
	HeartLosers []string       `json:"heart_losers,omitempty"`
	Steps       map[string]int `json:"steps,omitempty"`
}

// MatchResult is emitted once when the match ends, for persistence collaborators.
type MatchResult struct {
	MatchID     string         `json:"match_id"`
	Mode        modes.Mode     `json:"mode"`
	WinnerIDs   []string       `json:"winner_ids"`
	Drawn       bool           `json:"drawn"`
	FinalScores map[string]int `json:"final_scores"`
	Positions   map[string]int `json:"positions"`
	Cause       string         `json:"cause"`
	Rounds      int            `json:"rounds"`
}
