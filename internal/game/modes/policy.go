// Package modes holds the per-mode decisions the round resolver consults:
// tie handling, what losing a round costs, and when the match is over.
package modes

import (
	"fmt"
	"sort"
)

// Mode is the match mode selected at creation.
type Mode string

const (
	ModeSolo       Mode = "solo"
	ModeDuo        Mode = "duo"
	ModeBoss       Mode = "boss"
	ModeSurvival   Mode = "survival"
	ModeTournament Mode = "tournament"
	ModeEndurance  Mode = "endurance"
)

// Family groups modes that share resolution rules.
type Family string

const (
	FamilyRace       Family = "race"
	FamilyTeam       Family = "team"
	FamilyHearts     Family = "hearts"
	FamilyTournament Family = "tournament"
	FamilyEndurance  Family = "endurance"
)

// Consequence is what a round costs the players who did badly.
type Consequence int

const (
	ConsequenceMovement Consequence = iota
	ConsequenceHeart
	ConsequenceNone
)

// Match end causes.
const (
	CauseGoalReached      = "goal_reached"
	CauseHearts           = "hearts"
	CauseTournament       = "tournament"
	CauseSurvivalComplete = "survival_complete"
	CauseScriptComplete   = "script_complete"
	CauseAbandoned        = "abandoned"
	CauseLastStanding     = "last_standing"
)

// Standing is the policy's read-only view of one player.
type Standing struct {
	PlayerID    string
	Team        string
	Score       int
	Position    int
	Hearts      int
	MatchPoints int
	Eliminated  bool
	Human       bool
	// Lead marks the lone side of a one-vs-many mode (boss or champion).
	Lead bool
}

// Settings are the numeric knobs policies need.
type Settings struct {
	WinningPosition int
	WinsRequired    int
	RoundLimit      int
}

// Outcome describes how a match ended.
type Outcome struct {
	WinnerIDs []string
	Drawn     bool
	Cause     string
}

// Policy is consulted by the resolver at fixed decision points.
type Policy interface {
	Mode() Mode
	Family() Family
	// RoundWinners applies the mode's tie handling to the players sharing
	// the round's top score. An empty result means nobody won.
	RoundWinners(top []Standing) []string
	LossConsequence() Consequence
	// HeartLosers returns the players who lose a life this round.
	HeartLosers(active []Standing) []string
	MovesPawns() bool
	// SideChannel reports whether Sobe/Desce/Pula/Reversus use the
	// tournament side channel instead of the movement slot.
	SideChannel() bool
	// CheckEnd evaluates the win condition after any mutation that could end
	// the match. resolved counts rounds whose consequences, hearts included,
	// have been fully applied.
	CheckEnd(standings []Standing, resolved int) (Outcome, bool)
}

// For returns the policy for a mode.
func For(mode Mode, settings Settings) (Policy, error) {
	if settings.WinningPosition <= 0 {
		settings.WinningPosition = 10
	}
	if settings.WinsRequired <= 0 {
		settings.WinsRequired = 2
	}
	switch mode {
	case ModeSolo:
		return racePolicy{settings: settings}, nil
	case ModeDuo:
		return teamPolicy{settings: settings}, nil
	case ModeBoss:
		return heartsPolicy{}, nil
	case ModeSurvival:
		return survivalPolicy{settings: settings}, nil
	case ModeTournament:
		return tournamentPolicy{settings: settings}, nil
	case ModeEndurance:
		return endurancePolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
}

// soleWinner is the free-for-all tie rule: any multi-way tie is no winner.
func soleWinner(top []Standing) []string {
	if len(top) != 1 {
		return nil
	}
	return []string{top[0].PlayerID}
}

// sameTeamWinners keeps a tie only if every tied player shares one team.
func sameTeamWinners(top []Standing) []string {
	if len(top) == 0 {
		return nil
	}
	team := top[0].Team
	if team == "" && len(top) > 1 {
		return nil
	}
	ids := make([]string, 0, len(top))
	for _, s := range top {
		if s.Team != team {
			return nil
		}
		ids = append(ids, s.PlayerID)
	}
	return ids
}

// LowestScorers returns every active player tied for the lowest score. When
// all active players share one score nobody is singled out.
func LowestScorers(active []Standing) []string {
	if len(active) < 2 {
		return nil
	}
	low, high := active[0].Score, active[0].Score
	for _, s := range active[1:] {
		if s.Score < low {
			low = s.Score
		}
		if s.Score > high {
			high = s.Score
		}
	}
	if low == high {
		return nil
	}
	var ids []string
	for _, s := range active {
		if s.Score == low {
			ids = append(ids, s.PlayerID)
		}
	}
	return ids
}

func activeOnly(standings []Standing) []Standing {
	out := make([]Standing, 0, len(standings))
	for _, s := range standings {
		if !s.Eliminated {
			out = append(out, s)
		}
	}
	return out
}

func ids(standings []Standing) []string {
	out := make([]string, 0, len(standings))
	for _, s := range standings {
		out = append(out, s.PlayerID)
	}
	sort.Strings(out)
	return out
}

func reachedGoal(standings []Standing, goal int) []Standing {
	var out []Standing
	for _, s := range activeOnly(standings) {
		if s.Position >= goal {
			out = append(out, s)
		}
	}
	return out
}

// lastStanding ends any mode where only one player remains.
func lastStanding(standings []Standing) (Outcome, bool) {
	active := activeOnly(standings)
	switch len(active) {
	case 0:
		return Outcome{Drawn: true, Cause: CauseLastStanding}, true
	case 1:
		return Outcome{WinnerIDs: []string{active[0].PlayerID}, Cause: CauseLastStanding}, true
	}
	return Outcome{}, false
}
