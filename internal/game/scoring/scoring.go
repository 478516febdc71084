// Package scoring turns a player's round into a score and a number of steps.
package scoring

import "github.com/reversus-game/reversus-server-go/internal/game/cards"

const (
	// NarrativeBonus is the fixed magnitude of Mais Dez / Menos Dez.
	NarrativeBonus = 10
	// SideChannelBonus is the fixed magnitude of a tournament Sobe/Desce.
	SideChannelBonus = 5
	// CleanWinSteps replaces the normal single step on a clean win.
	CleanWinSteps = 3
	// PinnedRestoHigh and PinnedRestoLow are the resto values forced by field effects.
	PinnedRestoHigh = 10
	PinnedRestoLow  = 2
)

// ScoreInput is everything that contributes to a round score.
type ScoreInput struct {
	ValueCards  []int
	Resto       int
	ScoreEffect string
	// PinnedResto overrides the resto face value when non-zero.
	PinnedResto int
	// DoubleNegative doubles the magnitude of a negative score modifier.
	DoubleNegative bool
	// SideChannel is the tournament Sobe/Desce record, if any.
	SideChannel string
}

// RestoValue returns the operand Mais/Menos use.
func (in ScoreInput) RestoValue() int {
	if in.PinnedResto != 0 {
		return in.PinnedResto
	}
	return in.Resto
}

// Score computes the round score.
func Score(in ScoreInput) int {
	total := 0
	for _, v := range in.ValueCards {
		total += v
	}

	negFactor := 1
	if in.DoubleNegative {
		negFactor = 2
	}

	switch in.ScoreEffect {
	case cards.Mais:
		total += in.RestoValue()
	case cards.Menos:
		total -= in.RestoValue() * negFactor
	case cards.MaisDez:
		total += NarrativeBonus
	case cards.MenosDez:
		total -= NarrativeBonus * negFactor
	}

	switch in.SideChannel {
	case cards.Sobe:
		total += SideChannelBonus
	case cards.Desce:
		total -= SideChannelBonus
	}
	return total
}

// MoveInput is everything that contributes to a pawn's numeric movement.
type MoveInput struct {
	Winner bool
	// TaggedNonWinner is set only when the round had a winner and this
	// player was not among them.
	TaggedNonWinner bool
	MovementEffect  string
	// Blocked stops the winner's step.
	Blocked bool
	// CleanWinBonus enables the triple step for a win without positive modifiers.
	CleanWinBonus bool
	UsedPositive  bool
	// DoubleNegative doubles Desce.
	DoubleNegative bool
	// NonWinnerSteps is the mode/field penalty (negative) or bonus applied to
	// tagged non-winners.
	NonWinnerSteps int
}

// Steps returns the signed number of steps to move. A Pula-flagged player
// relocates instead and never moves numerically.
func Steps(in MoveInput) int {
	if in.MovementEffect == cards.Pula {
		return 0
	}
	steps := 0
	if in.Winner && !in.Blocked {
		if in.CleanWinBonus && !in.UsedPositive {
			steps += CleanWinSteps
		} else {
			steps++
		}
	}
	switch in.MovementEffect {
	case cards.Sobe:
		steps++
	case cards.Desce:
		if in.DoubleNegative {
			steps -= 2
		} else {
			steps--
		}
	}
	if in.TaggedNonWinner {
		steps += in.NonWinnerSteps
	}
	return steps
}

// Clamp keeps a position on the board.
func Clamp(position, min, max int) int {
	if position < min {
		return min
	}
	if position > max {
		return max
	}
	return position
}
