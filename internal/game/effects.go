package game

import (
	"github.com/reversus-game/reversus-server-go/internal/game/cards"
	"github.com/reversus-game/reversus-server-go/internal/game/rules"
)

type effectOutcome int

const (
	// outcomeApplied: the card took effect and leaves the caster's hand.
	outcomeApplied effectOutcome = iota
	// outcomeAbsorbed: immunity ate the effect; the card is spent.
	outcomeAbsorbed
	// outcomeSoftFail: rule conflict, nothing changed, the card stays in hand.
	outcomeSoftFail
)

// applyEffect resolves an effect card in a fixed order: the tournament side
// channel, immunity, the global inversion, then dispatch by name.
func (m *Match) applyEffect(caster, target *Player, card *cards.Card, opts EffectOptions) effectOutcome {
	if m.policy.SideChannel() && !cards.IsNarrative(card.Name) {
		m.applySideChannel(caster, target, card)
		return outcomeApplied
	}

	if caster.ID != target.ID && cards.IsNegative(card.Name) && m.absorb(caster, target, card) {
		return outcomeAbsorbed
	}

	name := card.Name
	if m.globalInversion && name != cards.ReversusTotal {
		if inv, ok := cards.Invert(name); ok {
			m.logf(LogEffect, caster.ID, "global inversion turns %s into %s", name, inv)
			name = inv
		}
	}

	switch name {
	case cards.Mais, cards.Menos, cards.MaisDez, cards.MenosDez, cards.Sobe, cards.Desce:
		axis := cards.AxisOf(name)
		target.Effects.set(axis, name)
		if axis == cards.AxisMovement {
			target.PulaDestination = 0
		}
		m.commit(caster, target, card, axis, name)
		m.applied(caster, target, card, name)
		return outcomeApplied

	case cards.Pula:
		return m.applyPula(caster, target, card, opts)

	case cards.Reversus:
		return m.applyReversus(caster, target, card, opts.EffectTypeToReverse)

	case cards.ReversusTotal:
		if opts.IsGlobalReversusTotal {
			m.toggleGlobalInversion(caster, target, card)
			return outcomeApplied
		}
		return m.applyLock(caster, target, card, opts)

	case cards.Versatrix:
		for i := 0; i < 2; i++ {
			drawn := m.drawEffect()
			target.Hand = append(target.Hand, drawn)
			m.emit(rules.NewEvent(rules.EventCardDrawn, target.ID, "", drawn.ID))
		}
		m.logf(LogEffect, caster.ID, "%s plays %s: %s draws two effect cards", caster.Name, card.Name, target.Name)
		m.emit(rules.NewEvent(rules.EventEffectPlayed, caster.ID, target.ID, card.ID))
		return outcomeApplied
	}

	m.logf(LogBlocked, caster.ID, "%s has no effect", card.Name)
	return outcomeSoftFail
}

// commit moves the card into the target's play area.
func (m *Match) commit(caster, target *Player, card *cards.Card, axis cards.Axis, name string) *cards.PlayedCard {
	target.Played = append(target.Played, cards.PlayedCard{
		Card:        card,
		CasterID:    caster.ID,
		ImpliedAxis: axis,
		EffectName:  name,
	})
	return &target.Played[len(target.Played)-1]
}

func (m *Match) applied(caster, target *Player, card *cards.Card, name string) {
	m.logf(LogEffect, caster.ID, "%s plays %s on %s: %s", caster.Name, card.Name, target.Name, name)
	m.emit(rules.NewEvent(rules.EventEffectPlayed, caster.ID, target.ID, card.ID))
	ev := rules.NewEvent(rules.EventEffectApplied, caster.ID, target.ID, card.ID)
	ev.Data = name
	m.emit(ev)
}

func (m *Match) blocked(caster, target *Player, card *cards.Card, format string, args ...interface{}) effectOutcome {
	m.logf(LogBlocked, caster.ID, format, args...)
	ev := rules.NewEvent(rules.EventEffectBlocked, caster.ID, target.ID, card.ID)
	ev.Data = card.Name
	m.emit(ev)
	return outcomeSoftFail
}

// absorb reports whether the target's immunity consumes a negative effect.
func (m *Match) absorb(caster, target *Player, card *cards.Card) bool {
	source := ""
	switch {
	case target.Immune:
		source = "immunity"
	default:
		fe := m.fieldEffect(target.ID, FieldImunidade)
		if fe == nil || fe.Used {
			return false
		}
		fe.Used = true
		source = FieldImunidade
	}
	m.logf(LogBlocked, caster.ID, "%s's %s absorbs %s from %s", target.Name, source, card.Name, caster.Name)
	ev := rules.NewEvent(rules.EventImmunityUsed, caster.ID, target.ID, card.ID)
	ev.Data = source
	m.emit(ev)
	return true
}

func (m *Match) applyPula(caster, target *Player, card *cards.Card, opts EffectOptions) effectOutcome {
	dest := opts.PulaDestinationPathID
	if dest == 0 {
		dest = m.freePath(target.ID)
	} else if dest == target.PathID || m.pathOccupant(dest, target.ID) != "" {
		dest = 0
	}
	if dest == 0 {
		return m.blocked(caster, target, card, "%s plays Pula on %s but there is no free path", caster.Name, target.Name)
	}

	target.Effects.Movement = cards.Pula
	target.PulaDestination = dest
	m.commit(caster, target, card, cards.AxisMovement, cards.Pula)
	m.applied(caster, target, card, cards.Pula)

	if caster.ID == target.ID && m.hasField(target.ID, FieldSorte) {
		drawn := m.drawEffect()
		target.Hand = append(target.Hand, drawn)
		m.logf(LogEffect, target.ID, "%s's %s draws an extra effect card", target.Name, FieldSorte)
		m.emit(rules.NewEvent(rules.EventCardDrawn, target.ID, "", drawn.ID))
	}
	return outcomeApplied
}

func (m *Match) applyReversus(caster, target *Player, card *cards.Card, axis cards.Axis) effectOutcome {
	current := target.Effects.Get(axis)
	entry := target.latestImplying(axis)
	if current == "" || entry == nil {
		return m.blocked(caster, target, card, "%s plays Reversus on %s but there is no %s effect to reverse", caster.Name, target.Name, axis)
	}
	if entry.IsLocked {
		return m.blocked(caster, target, card, "%s plays Reversus on %s but %s %s is locked", caster.Name, target.Name, axis, current)
	}

	next := ""
	if current == cards.Pula {
		target.PulaDestination = 0
	} else {
		inv, ok := cards.Invert(current)
		if !ok {
			return m.blocked(caster, target, card, "%s cannot be reversed", current)
		}
		next = inv
	}
	target.Effects.set(axis, next)
	m.commit(caster, target, card, axis, next)

	m.logf(LogEffect, caster.ID, "%s reverses %s's %s: %s becomes %s", caster.Name, target.Name, axis, current, displayName(next))
	m.emit(rules.NewEvent(rules.EventEffectPlayed, caster.ID, target.ID, card.ID))
	ev := rules.NewEvent(rules.EventEffectReversed, caster.ID, target.ID, card.ID)
	ev.Data = next
	ev.Metadata["axis"] = axis.String()
	ev.Metadata["from"] = current
	m.emit(ev)
	return outcomeApplied
}

// toggleGlobalInversion flips the match-wide inversion and retroactively
// inverts every unlocked modifier of every active player.
func (m *Match) toggleGlobalInversion(caster, target *Player, card *cards.Card) {
	m.globalInversion = !m.globalInversion
	for _, id := range m.order {
		p := m.players[id]
		if p.IsEliminated {
			continue
		}
		for _, axis := range []cards.Axis{cards.AxisScore, cards.AxisMovement} {
			cur := p.Effects.Get(axis)
			if cur == "" || p.axisLocked(axis) {
				continue
			}
			if inv, ok := cards.Invert(cur); ok {
				p.Effects.set(axis, inv)
			}
		}
	}
	m.commit(caster, target, card, cards.AxisNeither, cards.ReversusTotal)

	state := "off"
	if m.globalInversion {
		state = "on"
	}
	m.logf(LogEffect, caster.ID, "%s plays global Reversus Total: inversion is %s", caster.Name, state)
	m.emit(rules.NewEvent(rules.EventEffectPlayed, caster.ID, target.ID, card.ID))
	ev := rules.NewEvent(rules.EventGlobalInversion, caster.ID, "", card.ID)
	ev.Data = state
	m.emit(ev)
}

// applyLock sets one effect on the target and freezes that axis. A named
// effect replaces an existing lock; the inverting form is an inversion and a
// lock blocks it like any Reversus.
func (m *Match) applyLock(caster, target *Player, card *cards.Card, opts EffectOptions) effectOutcome {
	effect := opts.LockedEffect
	axis := cards.AxisOf(effect)
	if effect == "" {
		axis = opts.EffectTypeToReverse
		if target.axisLocked(axis) {
			return m.blocked(caster, target, card, "%s plays Reversus Total on %s but %s is already locked", caster.Name, target.Name, axis)
		}
		cur := target.Effects.Get(axis)
		inv, ok := cards.Invert(cur)
		if !ok {
			return m.blocked(caster, target, card, "%s plays Reversus Total on %s but there is no %s effect to lock", caster.Name, target.Name, axis)
		}
		effect = inv
	}

	target.Effects.set(axis, effect)
	if axis == cards.AxisMovement {
		target.PulaDestination = 0
	}
	entry := m.commit(caster, target, card, axis, effect)
	entry.IsLocked = true
	entry.LockedEffect = effect

	m.logf(LogEffect, caster.ID, "%s locks %s's %s to %s", caster.Name, target.Name, axis, effect)
	m.emit(rules.NewEvent(rules.EventEffectPlayed, caster.ID, target.ID, card.ID))
	ev := rules.NewEvent(rules.EventEffectLocked, caster.ID, target.ID, card.ID)
	ev.Data = effect
	ev.Metadata["axis"] = axis.String()
	m.emit(ev)
	return outcomeApplied
}

// applySideChannel handles Sobe, Desce, Pula and Reversus in tournament
// mode, where they act on a separate record instead of the movement slot.
func (m *Match) applySideChannel(caster, target *Player, card *cards.Card) {
	m.commit(caster, target, card, cards.AxisNeither, card.Name)
	m.emit(rules.NewEvent(rules.EventEffectPlayed, caster.ID, target.ID, card.ID))

	switch card.Name {
	case cards.Sobe, cards.Desce:
		target.SideChannel = &SideEffect{Effect: card.Name, CasterID: caster.ID}
		m.logf(LogEffect, caster.ID, "%s gives %s a side %s", caster.Name, target.Name, card.Name)
		ev := rules.NewEvent(rules.EventEffectApplied, caster.ID, target.ID, card.ID)
		ev.Data = card.Name
		m.emit(ev)

	case cards.Pula:
		rec := target.SideChannel
		if rec == nil || target.ID == caster.ID {
			m.logf(LogBlocked, caster.ID, "%s plays Pula on %s but there is nothing to steal", caster.Name, target.Name)
			return
		}
		caster.SideChannel = rec
		target.SideChannel = nil
		m.logf(LogEffect, caster.ID, "%s steals %s's side %s", caster.Name, target.Name, rec.Effect)
		ev := rules.NewEvent(rules.EventEffectStolen, caster.ID, target.ID, card.ID)
		ev.Data = rec.Effect
		m.emit(ev)

	case cards.Reversus:
		rec := target.SideChannel
		if rec == nil {
			m.logf(LogBlocked, caster.ID, "%s plays Reversus on %s but there is no side effect", caster.Name, target.Name)
			return
		}
		if rec.CasterID == caster.ID && target.ID != caster.ID {
			caster.SideChannel = rec
			target.SideChannel = nil
			m.logf(LogEffect, caster.ID, "%s reclaims side %s from %s", caster.Name, rec.Effect, target.Name)
			ev := rules.NewEvent(rules.EventEffectStolen, caster.ID, target.ID, card.ID)
			ev.Data = rec.Effect
			m.emit(ev)
			return
		}
		inv, _ := cards.Invert(rec.Effect)
		from := rec.Effect
		rec.Effect = inv
		m.logf(LogEffect, caster.ID, "%s reverses %s's side %s to %s", caster.Name, target.Name, from, inv)
		ev := rules.NewEvent(rules.EventEffectReversed, caster.ID, target.ID, card.ID)
		ev.Data = inv
		ev.Metadata["from"] = from
		m.emit(ev)

	default:
		m.logf(LogBlocked, caster.ID, "%s has no effect in %s mode", card.Name, m.mode)
	}
}

func displayName(name string) string {
	if name == "" {
		return "none"
	}
	return name
}
