package cards

import "fmt"

// Kind separates the two card pools.
type Kind int

const (
	KindValue Kind = iota
	KindEffect
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "VALUE"
	case KindEffect:
		return "EFFECT"
	default:
		return fmt.Sprintf("KIND_%d", int(k))
	}
}

// Axis is one of the two per-round modifier slots a card can influence.
type Axis int

const (
	AxisNeither Axis = iota
	AxisScore
	AxisMovement
)

var axisNames = map[Axis]string{
	AxisNeither:  "NEITHER",
	AxisScore:    "SCORE",
	AxisMovement: "MOVEMENT",
}

func (a Axis) String() string {
	if name, ok := axisNames[a]; ok {
		return name
	}
	return fmt.Sprintf("AXIS_%d", int(a))
}

// ParseAxis maps the wire names "score" and "movement" to an Axis.
func ParseAxis(s string) (Axis, bool) {
	switch s {
	case "score", "SCORE":
		return AxisScore, true
	case "movement", "MOVEMENT":
		return AxisMovement, true
	default:
		return AxisNeither, false
	}
}

// Effect card names.
const (
	Mais          = "Mais"
	Menos         = "Menos"
	Sobe          = "Sobe"
	Desce         = "Desce"
	Pula          = "Pula"
	Reversus      = "Reversus"
	ReversusTotal = "Reversus Total"
	MaisDez       = "Mais Dez"
	MenosDez      = "Menos Dez"
	Versatrix     = "Carta da Versatrix"
)

// inverse is the involutive map used by Reversus and the global inversion.
// Pula and Reversus have no opposite.
var inverse = map[string]string{
	Mais:     Menos,
	Menos:    Mais,
	Sobe:     Desce,
	Desce:    Sobe,
	MaisDez:  MenosDez,
	MenosDez: MaisDez,
}

// Invert returns the opposite of name. ok is false for names without one.
func Invert(name string) (string, bool) {
	opposite, ok := inverse[name]
	return opposite, ok
}

// AxisOf classifies an effect name by the slot it writes.
func AxisOf(name string) Axis {
	switch name {
	case Mais, Menos, MaisDez, MenosDez:
		return AxisScore
	case Sobe, Desce, Pula:
		return AxisMovement
	default:
		return AxisNeither
	}
}

// IsNegative reports whether an effect hurts the player it lands on.
func IsNegative(name string) bool {
	switch name {
	case Menos, Desce, MenosDez, Pula:
		return true
	}
	return false
}

// IsPositive reports whether an effect benefits the player it lands on.
func IsPositive(name string) bool {
	switch name {
	case Mais, Sobe, MaisDez:
		return true
	}
	return false
}

// IsNarrative reports whether name is a one-shot story card that never enters a deck.
func IsNarrative(name string) bool {
	return name == Versatrix
}

// Card is a single physical card. IDs are unique within a match.
type Card struct {
	ID    string `json:"id"`
	Kind  Kind   `json:"kind"`
	Name  string `json:"name"`
	Value int    `json:"value,omitempty"`
	// Axis is fixed at creation from the card name.
	Axis Axis `json:"axis"`
	// Cooldown counts rounds until a narrative card can be played again.
	Cooldown int `json:"cooldown,omitempty"`
}

// NewValueCard creates a numeric card.
func NewValueCard(id string, value int) *Card {
	return &Card{
		ID:    id,
		Kind:  KindValue,
		Name:  fmt.Sprintf("%d", value),
		Value: value,
		Axis:  AxisNeither,
	}
}

// NewEffectCard creates a symbolic card and classifies its axis.
func NewEffectCard(id, name string) *Card {
	return &Card{
		ID:   id,
		Kind: KindEffect,
		Name: name,
		Axis: AxisOf(name),
	}
}

// Clone returns a copy of the card.
func (c *Card) Clone() *Card {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// PlayedCard is a card committed to a player's play area this round.
type PlayedCard struct {
	Card *Card `json:"card"`
	// CasterID is the player who put the card here.
	CasterID string `json:"caster_id"`
	// ImpliedAxis is the slot this entry currently speaks for. Primitive cards
	// use their static axis; Reversus uses the axis it reversed; a locked
	// Reversus Total uses the axis of LockedEffect.
	ImpliedAxis Axis `json:"implied_axis"`
	// EffectName is the name actually applied after any inversion.
	EffectName   string `json:"effect_name,omitempty"`
	IsLocked     bool   `json:"is_locked,omitempty"`
	LockedEffect string `json:"locked_effect,omitempty"`
}

// Clone returns a deep copy of the entry.
func (p PlayedCard) Clone() PlayedCard {
	p.Card = p.Card.Clone()
	return p
}
