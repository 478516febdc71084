package rules

import (
	"fmt"
	"strings"
)

// Phase represents the phase of a match.
type Phase int

const (
	PhaseSetup Phase = iota
	PhaseInitialDraw
	PhasePlaying
	PhaseResolution
	PhaseGameOver
)

var phaseNames = map[Phase]string{
	PhaseSetup:       "SETUP",
	PhaseInitialDraw: "INITIAL_DRAW",
	PhasePlaying:     "PLAYING",
	PhaseResolution:  "RESOLUTION",
	PhaseGameOver:    "GAME_OVER",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

// transitions is the closed set of legal phase changes.
var transitions = map[Phase][]Phase{
	PhaseSetup:       {PhaseInitialDraw, PhasePlaying},
	PhaseInitialDraw: {PhasePlaying, PhaseGameOver},
	PhasePlaying:     {PhaseResolution, PhaseGameOver},
	PhaseResolution:  {PhasePlaying, PhaseGameOver},
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to Phase) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PhaseMachine guards the match phase against illegal transitions.
type PhaseMachine struct {
	phase Phase
}

// NewPhaseMachine starts in PhaseSetup.
func NewPhaseMachine() *PhaseMachine {
	return &PhaseMachine{phase: PhaseSetup}
}

// Current returns the current phase.
func (pm *PhaseMachine) Current() Phase {
	return pm.phase
}

// Transition moves to the next phase or fails without changing anything.
func (pm *PhaseMachine) Transition(to Phase) error {
	if !CanTransition(pm.phase, to) {
		return fmt.Errorf("illegal phase transition %s -> %s", pm.phase, to)
	}
	pm.phase = to
	return nil
}

// TurnOrder tracks the acting player, the seat rotation and the pass counter.
type TurnOrder struct {
	seats        []string
	current      int
	roundStarter int
	eliminated   map[string]bool
	passes       int
	turnNumber   int
}

// NewTurnOrder creates a rotation over seats starting at first.
func NewTurnOrder(seats []string, first string) *TurnOrder {
	to := &TurnOrder{
		seats:      make([]string, len(seats)),
		eliminated: make(map[string]bool),
		turnNumber: 1,
	}
	for i, s := range seats {
		to.seats[i] = strings.TrimSpace(s)
	}
	to.current = to.indexOf(first)
	if to.current < 0 {
		to.current = 0
	}
	to.roundStarter = to.current
	return to
}

func (to *TurnOrder) indexOf(id string) int {
	id = strings.TrimSpace(id)
	for i, s := range to.seats {
		if s == id {
			return i
		}
	}
	return -1
}

// Seats returns the seat order.
func (to *TurnOrder) Seats() []string {
	return append([]string(nil), to.seats...)
}

// Current returns the player whose turn it is.
func (to *TurnOrder) Current() string {
	if len(to.seats) == 0 {
		return ""
	}
	return to.seats[to.current]
}

// TurnNumber returns the number of turns started this match (1-based).
func (to *TurnOrder) TurnNumber() int {
	return to.turnNumber
}

// SetCurrent hands the turn to id and makes it the round starter.
func (to *TurnOrder) SetCurrent(id string) error {
	idx := to.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("unknown seat %q", id)
	}
	if to.eliminated[id] {
		return fmt.Errorf("seat %q is eliminated", id)
	}
	to.current = idx
	to.roundStarter = idx
	return nil
}

// Eliminate removes a player from the rotation.
func (to *TurnOrder) Eliminate(id string) {
	if to.indexOf(id) >= 0 {
		to.eliminated[id] = true
	}
}

// IsEliminated reports whether id has left the rotation.
func (to *TurnOrder) IsEliminated(id string) bool {
	return to.eliminated[id]
}

// ActiveCount returns the number of players still in the rotation.
func (to *TurnOrder) ActiveCount() int {
	n := 0
	for _, s := range to.seats {
		if !to.eliminated[s] {
			n++
		}
	}
	return n
}

// nextActiveFrom returns the index of the first active seat after idx, wrapping.
func (to *TurnOrder) nextActiveFrom(idx int) int {
	for i := 1; i <= len(to.seats); i++ {
		next := (idx + i) % len(to.seats)
		if !to.eliminated[to.seats[next]] {
			return next
		}
	}
	return -1
}

// Advance hands the turn to the next non-eliminated seat, wrapping.
func (to *TurnOrder) Advance() string {
	next := to.nextActiveFrom(to.current)
	if next < 0 {
		return ""
	}
	to.current = next
	to.turnNumber++
	return to.seats[next]
}

// StartNextRound gives the first turn of a new round to the seat after the
// previous round's starter.
func (to *TurnOrder) StartNextRound() string {
	next := to.nextActiveFrom(to.roundStarter)
	if next < 0 {
		return ""
	}
	to.current = next
	to.roundStarter = next
	to.passes = 0
	to.turnNumber++
	return to.seats[next]
}

// PassLimit is the number of consecutive passes that ends a round: two full
// sweeps of the active players.
func (to *TurnOrder) PassLimit() int {
	return 2 * to.ActiveCount()
}

// Passes returns the current consecutive pass count.
func (to *TurnOrder) Passes() int {
	return to.passes
}

// RecordPass counts a pass and reports whether the round must resolve.
func (to *TurnOrder) RecordPass() bool {
	if to.passes < to.PassLimit() {
		to.passes++
	}
	return to.passes >= to.PassLimit()
}

// ResetPasses is called after a successful value card play.
func (to *TurnOrder) ResetPasses() {
	to.passes = 0
}

// Clone returns an independent copy of the rotation.
func (to *TurnOrder) Clone() *TurnOrder {
	cp := *to
	cp.seats = append([]string(nil), to.seats...)
	cp.eliminated = make(map[string]bool, len(to.eliminated))
	for k, v := range to.eliminated {
		cp.eliminated[k] = v
	}
	return &cp
}

// RoundStarter returns the seat that opened the current round.
func (to *TurnOrder) RoundStarter() string {
	if len(to.seats) == 0 {
		return ""
	}
	return to.seats[to.roundStarter]
}
