package game

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/reversus-game/reversus-server-go/internal/game/cards"
	"github.com/reversus-game/reversus-server-go/internal/game/modes"
	"github.com/reversus-game/reversus-server-go/internal/game/rules"
	"github.com/reversus-game/reversus-server-go/internal/game/scoring"
)

// beginFirstRound deals the opening hands and hands the turn to starter.
func (m *Match) beginFirstRound(starter string) error {
	if err := m.transition(rules.PhasePlaying); err != nil {
		return err
	}
	m.round = 1
	if m.script != nil {
		m.runScript()
	}
	m.replenishHands()
	if err := m.turns.SetCurrent(starter); err != nil {
		return err
	}
	m.logf(LogSystem, "", "round %d begins, %s starts", m.round, m.players[starter].Name)
	m.emit(rules.NewEventWithAmount(rules.EventRoundStarted, starter, "", "", m.round))
	m.emit(rules.NewEvent(rules.EventTurnStarted, starter, "", ""))
	return nil
}

// replenishHands tops every active hand up to the per-kind caps. Narrative
// cards do not count towards the effect cap.
func (m *Match) replenishHands() {
	for _, id := range m.order {
		p := m.players[id]
		if p.IsEliminated {
			continue
		}
		for p.countHand(cards.KindValue, false) < m.settings.ValueHandSize {
			card := m.drawValue()
			p.Hand = append(p.Hand, card)
			m.emit(rules.NewEvent(rules.EventCardDrawn, id, "", card.ID))
		}
		for p.countHand(cards.KindEffect, false) < m.settings.EffectHandSize {
			card := m.drawEffect()
			p.Hand = append(p.Hand, card)
			m.emit(rules.NewEvent(rules.EventCardDrawn, id, "", card.ID))
		}
	}
}

// roundScore computes one player's score with this round's field effects.
func (m *Match) roundScore(p *Player) int {
	in := scoring.ScoreInput{
		ValueCards:     p.playedValues(),
		ScoreEffect:    p.Effects.Score,
		DoubleNegative: m.hasField(p.ID, FieldCastigo),
	}
	if p.Resto != nil {
		in.Resto = p.Resto.Value
	}
	switch {
	case m.hasField(p.ID, FieldRestoMaior):
		in.PinnedResto = scoring.PinnedRestoHigh
	case m.hasField(p.ID, FieldRestoMenor):
		in.PinnedResto = scoring.PinnedRestoLow
	}
	if m.policy.SideChannel() && p.SideChannel != nil {
		in.SideChannel = p.SideChannel.Effect
	}
	return scoring.Score(in)
}

// resolveRound scores the round, applies the mode's consequences and either
// ends the match or starts the next round. The end condition is checked
// after every mutation that could trigger it.
func (m *Match) resolveRound() error {
	if err := m.transition(rules.PhaseResolution); err != nil {
		return err
	}

	active := m.activeIDs()
	scores := make(map[string]int, len(active))
	best := 0
	for i, id := range active {
		s := m.roundScore(m.players[id])
		scores[id] = s
		if i == 0 || s > best {
			best = s
		}
	}
	m.lastScores = scores

	standings := m.standings(scores)
	var top, activeStandings []modes.Standing
	for _, s := range standings {
		if s.Eliminated {
			continue
		}
		activeStandings = append(activeStandings, s)
		if s.Score == best {
			top = append(top, s)
		}
	}
	winners := m.policy.RoundWinners(top)
	isWinner := make(map[string]bool, len(winners))
	for _, id := range winners {
		isWinner[id] = true
	}

	summary := RoundSummary{
		Round:     m.round,
		Scores:    scores,
		WinnerIDs: append([]string(nil), winners...),
		Steps:     make(map[string]int),
	}
	if len(winners) == 0 {
		m.logf(LogResolution, "", "round %d: no winner at %d", m.round, best)
	} else {
		m.logf(LogResolution, "", "round %d won by %v with %d", m.round, winners, best)
	}

	if m.policy.Family() == modes.FamilyTournament {
		for _, id := range winners {
			p := m.players[id]
			p.MatchPoints++
			m.emit(rules.NewEventWithAmount(rules.EventMatchPoint, id, "", "", p.MatchPoints))
		}
	}

	ended := m.finishResolution(&summary, func() bool {
		if m.policy.MovesPawns() {
			m.movePawns(active, isWinner, len(winners) > 0, summary.Steps)
			if m.checkEnd() {
				return true
			}
		}
		if m.policy.LossConsequence() == modes.ConsequenceHeart {
			summary.HeartLosers = m.policy.HeartLosers(activeStandings)
			for _, id := range summary.HeartLosers {
				if m.loseHeart(m.players[id]) && m.checkEnd() {
					return true
				}
			}
		}
		m.resolved++
		return m.checkEnd()
	})
	if ended {
		return nil
	}
	return m.startNextRound()
}

// finishResolution runs the consequence steps and publishes the summary
// whether or not they ended the match.
func (m *Match) finishResolution(summary *RoundSummary, consequences func() bool) bool {
	ended := consequences()
	m.summary = summary
	s := summary.clone()
	m.pendingSummary = &s
	ev := rules.NewEvent(rules.EventRoundResolved, "", "", "")
	ev.Data = joinIDs(summary.WinnerIDs)
	m.emit(ev)
	if m.logger != nil {
		m.logger.Debug("round resolved",
			zap.String("match_id", m.id),
			zap.Int("round", summary.Round),
			zap.Strings("winners", summary.WinnerIDs),
			zap.Bool("match_over", ended),
		)
	}
	return ended
}

// movePawns applies Pula relocation and numeric movement.
func (m *Match) movePawns(active []string, isWinner map[string]bool, hadWinner bool, steps map[string]int) {
	for _, id := range active {
		p := m.players[id]
		if p.Effects.Movement == cards.Pula {
			m.relocate(p)
			continue
		}
		nonWinnerSteps := 0
		if m.hasField(id, FieldPenalidade) {
			nonWinnerSteps--
		}
		if m.hasField(id, FieldImpulso) {
			nonWinnerSteps++
		}
		n := scoring.Steps(scoring.MoveInput{
			Winner:          isWinner[id],
			TaggedNonWinner: hadWinner && !isWinner[id],
			MovementEffect:  p.Effects.Movement,
			Blocked:         m.hasField(id, FieldParada),
			CleanWinBonus:   m.hasField(id, FieldDesafio),
			UsedPositive:    cards.IsPositive(p.Effects.Score) || cards.IsPositive(p.Effects.Movement),
			DoubleNegative:  m.hasField(id, FieldCastigo),
			NonWinnerSteps:  nonWinnerSteps,
		})
		from := p.Position
		p.Position = scoring.Clamp(p.Position+n, 1, m.settings.WinningPosition)
		if moved := p.Position - from; moved != 0 {
			steps[id] = moved
			m.logf(LogResolution, id, "%s moves from %d to %d", p.Name, from, p.Position)
			m.emit(rules.NewEventWithAmount(rules.EventPawnMoved, id, "", "", moved))
		}
	}
}

func (m *Match) relocate(p *Player) {
	dest := p.PulaDestination
	if dest == 0 || m.pathOccupant(dest, p.ID) != "" {
		m.logf(LogBlocked, p.ID, "%s cannot jump: path %d is taken", p.Name, dest)
		return
	}
	from := p.PathID
	p.PathID = dest
	m.logf(LogResolution, p.ID, "%s jumps from path %d to path %d", p.Name, from, dest)
	m.emit(rules.NewEventWithAmount(rules.EventPathChanged, p.ID, "", "", dest))
}

// loseHeart takes one life and reports whether the player was eliminated.
func (m *Match) loseHeart(p *Player) bool {
	if p.Hearts > 0 {
		p.Hearts--
	}
	m.logf(LogResolution, p.ID, "%s loses a heart (%d left)", p.Name, p.Hearts)
	m.emit(rules.NewEventWithAmount(rules.EventHeartLost, p.ID, "", "", p.Hearts))
	if p.Hearts > 0 {
		return false
	}
	m.eliminate(p, "out of hearts")
	return true
}

// startNextRound clears the round, runs any board script, refills hands and
// opens the next round.
func (m *Match) startNextRound() error {
	for _, id := range m.order {
		p := m.players[id]
		for _, entry := range p.Played {
			if entry.Card.Kind == cards.KindValue {
				m.valueDeck.Discard(entry.Card)
			} else {
				m.effectDeck.Discard(entry.Card)
			}
		}
		p.Played = nil
		if p.NextResto != nil {
			p.Resto = p.NextResto
			p.NextResto = nil
		}
		p.Effects = Effects{}
		p.SideChannel = nil
		p.PulaDestination = 0
		p.PlayedValueThisTurn = false
		p.PlayedEffectThisTurn = false
		for _, c := range p.Hand {
			if c.Cooldown > 0 {
				c.Cooldown--
			}
		}
	}
	m.fieldEffects = nil
	m.globalInversion = false
	m.round++

	if m.script != nil {
		m.runScript()
		if m.checkEnd() {
			return nil
		}
	}

	m.replenishHands()
	starter := m.turns.StartNextRound()
	if err := m.transition(rules.PhasePlaying); err != nil {
		return err
	}
	m.logf(LogSystem, "", "round %d begins, %s starts", m.round, m.players[starter].Name)
	m.emit(rules.NewEventWithAmount(rules.EventRoundStarted, starter, "", "", m.round))
	m.emit(rules.NewEvent(rules.EventTurnStarted, starter, "", ""))
	return nil
}

func (s RoundSummary) clone() RoundSummary {
	cp := s
	cp.Scores = make(map[string]int, len(s.Scores))
	for k, v := range s.Scores {
		cp.Scores[k] = v
	}
	cp.Steps = make(map[string]int, len(s.Steps))
	for k, v := range s.Steps {
		cp.Steps[k] = v
	}
	cp.WinnerIDs = append([]string(nil), s.WinnerIDs...)
	cp.HeartLosers = append([]string(nil), s.HeartLosers...)
	return cp
}

func joinIDs(ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
