package game

import (
	"github.com/reversus-game/reversus-server-go/internal/game/cards"
	"github.com/reversus-game/reversus-server-go/internal/game/rules"
)

// lockable are the effects an individual Reversus Total may set.
var lockable = []string{cards.Mais, cards.Menos, cards.Sobe, cards.Desce}

// LegalActions lists the actions the match is waiting for. Every entry
// passes the rejection checks; some may still be soft failures.
func (m *Match) LegalActions() []Action {
	if m.result != nil {
		return nil
	}
	switch m.phase.Current() {
	case rules.PhaseInitialDraw:
		out := make([]Action, 0, len(m.awaitingDraw))
		for _, id := range m.awaitingDraw {
			out = append(out, Action{Type: ActionDrawInitial, PlayerID: id})
		}
		return out
	case rules.PhasePlaying:
	default:
		return nil
	}

	id := m.turns.Current()
	p := m.players[id]
	var out []Action
	if !p.PlayedValueThisTurn {
		for _, c := range p.Hand {
			if c.Kind == cards.KindValue {
				out = append(out, Action{Type: ActionPlayValue, PlayerID: id, CardID: c.ID})
			}
		}
	}
	if !p.PlayedEffectThisTurn {
		for _, c := range p.Hand {
			if c.Kind != cards.KindEffect || c.Cooldown > 0 {
				continue
			}
			for _, target := range m.activeIDs() {
				for _, opts := range m.optionVariants(c.Name) {
					out = append(out, Action{
						Type:     ActionPlayEffect,
						PlayerID: id,
						CardID:   c.ID,
						TargetID: target,
						Options:  opts,
					})
				}
			}
		}
	}
	if p.PlayedValueThisTurn || p.countHand(cards.KindValue, true) <= 1 {
		out = append(out, Action{Type: ActionEndTurn, PlayerID: id})
	}
	return out
}

func (m *Match) optionVariants(name string) []EffectOptions {
	if m.policy.SideChannel() {
		return []EffectOptions{{}}
	}
	switch name {
	case cards.Reversus:
		return []EffectOptions{
			{EffectTypeToReverse: cards.AxisScore},
			{EffectTypeToReverse: cards.AxisMovement},
		}
	case cards.ReversusTotal:
		out := []EffectOptions{{IsGlobalReversusTotal: true}}
		for _, effect := range lockable {
			out = append(out, EffectOptions{LockedEffect: effect})
		}
		return out
	}
	return []EffectOptions{{}}
}
