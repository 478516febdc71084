package cards

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// ErrEmptyComposition is returned when a deck would be built from nothing.
var ErrEmptyComposition = errors.New("cards: empty deck composition")

// Entry is one line of a static deck composition.
type Entry struct {
	Name  string
	Value int
	Count int
}

// Composition is the static recipe a deck is built (and rebuilt) from.
type Composition []Entry

// Size returns the number of cards the composition produces.
func (c Composition) Size() int {
	total := 0
	for _, e := range c {
		if e.Count > 0 {
			total += e.Count
		}
	}
	return total
}

// ValueComposition is the standard numeric pool.
func ValueComposition() Composition {
	return Composition{
		{Value: 2, Count: 12},
		{Value: 4, Count: 10},
		{Value: 6, Count: 8},
		{Value: 8, Count: 6},
		{Value: 10, Count: 4},
	}
}

// EffectComposition is the standard symbolic pool, optionally extended with
// the narrative score cards.
func EffectComposition(narrativeScore bool) Composition {
	comp := Composition{
		{Name: Mais, Count: 4},
		{Name: Menos, Count: 4},
		{Name: Sobe, Count: 4},
		{Name: Desce, Count: 4},
		{Name: Pula, Count: 4},
		{Name: Reversus, Count: 4},
		{Name: ReversusTotal, Count: 1},
	}
	if narrativeScore {
		comp = append(comp, Entry{Name: MaisDez, Count: 1}, Entry{Name: MenosDez, Count: 1})
	}
	return comp
}

// Minter hands out match-unique card IDs.
type Minter struct {
	Next int `json:"next"`
}

// ID returns a fresh ID for a card of the given kind.
func (m *Minter) ID(kind Kind) string {
	m.Next++
	switch kind {
	case KindValue:
		return fmt.Sprintf("v-%d", m.Next)
	default:
		return fmt.Sprintf("e-%d", m.Next)
	}
}

// NarrativeID returns a fresh ID for a story card.
func (m *Minter) NarrativeID() string {
	m.Next++
	return fmt.Sprintf("n-%d", m.Next)
}

// Refill reports what a draw had to do to find a card.
type Refill int

const (
	RefillNone Refill = iota
	// RefillReshuffled means the discard pile was shuffled into a new draw pile.
	RefillReshuffled
	// RefillRecreated means both piles were empty and a fresh deck was minted.
	RefillRecreated
)

// Deck owns one pool's draw and discard piles.
type Deck struct {
	kind        Kind
	composition Composition
	draw        []*Card
	discard     []*Card
	rng         *rand.Rand
	minter      *Minter
	minted      int
}

// NewDeck builds and shuffles a deck from its composition.
func NewDeck(kind Kind, composition Composition, rng *rand.Rand, minter *Minter) (*Deck, error) {
	if composition.Size() == 0 {
		return nil, fmt.Errorf("%s deck: %w", kind, ErrEmptyComposition)
	}
	if rng == nil || minter == nil {
		return nil, fmt.Errorf("%s deck: rng and minter are required", kind)
	}
	d := &Deck{
		kind:        kind,
		composition: composition,
		rng:         rng,
		minter:      minter,
	}
	d.draw = d.build()
	d.shuffle(d.draw)
	return d, nil
}

func (d *Deck) build() []*Card {
	out := make([]*Card, 0, d.composition.Size())
	for _, e := range d.composition {
		for i := 0; i < e.Count; i++ {
			id := d.minter.ID(d.kind)
			if d.kind == KindValue {
				out = append(out, NewValueCard(id, e.Value))
			} else {
				out = append(out, NewEffectCard(id, e.Name))
			}
		}
	}
	d.minted += len(out)
	return out
}

func (d *Deck) shuffle(pile []*Card) {
	d.rng.Shuffle(len(pile), func(i, j int) { pile[i], pile[j] = pile[j], pile[i] })
}

// Kind returns the pool this deck serves.
func (d *Deck) Kind() Kind {
	return d.kind
}

// Draw removes the top card. An empty draw pile is refilled from the discard
// pile; if that is empty too, a fresh deck is minted from the composition.
func (d *Deck) Draw() (*Card, Refill) {
	refill := RefillNone
	if len(d.draw) == 0 {
		if len(d.discard) > 0 {
			d.draw = d.discard
			d.discard = nil
			d.shuffle(d.draw)
			refill = RefillReshuffled
		} else {
			d.draw = d.build()
			d.shuffle(d.draw)
			refill = RefillRecreated
		}
	}
	idx := len(d.draw) - 1
	card := d.draw[idx]
	d.draw = d.draw[:idx]
	return card, refill
}

// Discard puts cards on the discard pile.
func (d *Deck) Discard(cards ...*Card) {
	for _, c := range cards {
		if c != nil {
			d.discard = append(d.discard, c)
		}
	}
}

// Len returns the number of cards left to draw.
func (d *Deck) Len() int {
	return len(d.draw)
}

// DiscardLen returns the size of the discard pile.
func (d *Deck) DiscardLen() int {
	return len(d.discard)
}

// Minted returns how many cards this deck has ever created.
func (d *Deck) Minted() int {
	return d.minted
}

// DrawPile returns a copy of the draw pile, top card last.
func (d *Deck) DrawPile() []*Card {
	return append([]*Card(nil), d.draw...)
}

// DiscardPile returns a copy of the discard pile.
func (d *Deck) DiscardPile() []*Card {
	return append([]*Card(nil), d.discard...)
}

// Clone deep-copies the deck onto another rng and minter.
func (d *Deck) Clone(rng *rand.Rand, minter *Minter) *Deck {
	cp := &Deck{
		kind:        d.kind,
		composition: append(Composition(nil), d.composition...),
		rng:         rng,
		minter:      minter,
		minted:      d.minted,
		draw:        make([]*Card, len(d.draw)),
		discard:     make([]*Card, len(d.discard)),
	}
	for i, c := range d.draw {
		cp.draw[i] = c.Clone()
	}
	for i, c := range d.discard {
		cp.discard[i] = c.Clone()
	}
	return cp
}

// Take removes the first card matching pred from the draw pile, falling back
// to the discard pile. It lets a board script or a test stage a known card.
func (d *Deck) Take(pred func(*Card) bool) (*Card, bool) {
	for _, pile := range []*[]*Card{&d.draw, &d.discard} {
		for i, c := range *pile {
			if pred(c) {
				*pile = append((*pile)[:i], (*pile)[i+1:]...)
				return c, true
			}
		}
	}
	return nil, false
}
