package game

import (
	"fmt"

	"github.com/reversus-game/reversus-server-go/internal/game/modes"
	"github.com/reversus-game/reversus-server-go/internal/game/rules"
)

// BossScript drives a scripted boss encounter. At every round start it
// rotates the path colors, forces a field effect on the trailing human and,
// once Duration rounds have been played, ends the match.
type BossScript struct {
	Name string `json:"name"`
	// Duration is the number of rounds the party must survive. Zero means
	// the encounter only ends through hearts.
	Duration     int      `json:"duration"`
	RotateColors bool     `json:"rotate_colors"`
	FieldEffects []string `json:"field_effects"`
}

func (s BossScript) validate() error {
	if s.Duration < 0 {
		return fmt.Errorf("script %q: negative duration", s.Name)
	}
	for _, name := range s.FieldEffects {
		if _, ok := fieldPolarity[name]; !ok {
			return fmt.Errorf("script %q: unknown field effect %q", s.Name, name)
		}
	}
	return nil
}

func (s BossScript) clone() BossScript {
	s.FieldEffects = append([]string(nil), s.FieldEffects...)
	return s
}

// runScript performs one scripted round-start step.
func (m *Match) runScript() {
	s := m.script
	if s.Duration > 0 && m.round > s.Duration {
		var survivors []string
		for _, id := range m.activeIDs() {
			if !m.players[id].Lead {
				survivors = append(survivors, id)
			}
		}
		m.logf(LogSystem, "", "%s is over after %d rounds", s.Name, s.Duration)
		m.finish(modes.Outcome{WinnerIDs: survivors, Drawn: len(survivors) == 0, Cause: modes.CauseScriptComplete})
		return
	}

	if s.RotateColors && len(m.paths) > 1 {
		first := m.paths[0].Color
		for i := 0; i < len(m.paths)-1; i++ {
			m.paths[i].Color = m.paths[i+1].Color
		}
		m.paths[len(m.paths)-1].Color = first
		m.logf(LogSystem, "", "the board rotates its colors")
		m.emit(rules.NewEventWithAmount(rules.EventBoardRotated, "", "", "", m.round))
	}

	if len(s.FieldEffects) > 0 {
		name := s.FieldEffects[m.scriptStep%len(s.FieldEffects)]
		if target := m.trailingHuman(); target != "" {
			fe, err := NewFieldEffect(name, target)
			if err == nil {
				m.bindFieldEffect(fe)
				m.logf(LogEffect, target, "%s forces %s on %s", s.Name, name, m.players[target].Name)
			}
		}
	}
	m.scriptStep++
}

// trailingHuman returns the active non-boss human with the lowest position.
func (m *Match) trailingHuman() string {
	best := ""
	for _, id := range m.order {
		p := m.players[id]
		if p.IsEliminated || p.AI || p.Lead {
			continue
		}
		if best == "" || p.Position < m.players[best].Position {
			best = id
		}
	}
	return best
}
