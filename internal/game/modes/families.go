package modes

// racePolicy is the 2-4 player free-for-all: first pawn to the goal wins.
type racePolicy struct {
	settings Settings
}

func (racePolicy) Mode() Mode                           { return ModeSolo }
func (racePolicy) Family() Family                       { return FamilyRace }
func (racePolicy) RoundWinners(top []Standing) []string { return soleWinner(top) }
func (racePolicy) LossConsequence() Consequence         { return ConsequenceMovement }
func (racePolicy) HeartLosers([]Standing) []string      { return nil }
func (racePolicy) MovesPawns() bool                     { return true }
func (racePolicy) SideChannel() bool                    { return false }

func (p racePolicy) CheckEnd(standings []Standing, _ int) (Outcome, bool) {
	if reached := reachedGoal(standings, p.settings.WinningPosition); len(reached) > 0 {
		return Outcome{WinnerIDs: ids(reached), Cause: CauseGoalReached}, true
	}
	return lastStanding(standings)
}

// teamPolicy is 2v2: a tie is a team win only when the tied players share a
// team, and a pawn reaching the goal wins for its whole team.
type teamPolicy struct {
	settings Settings
}

func (teamPolicy) Mode() Mode                           { return ModeDuo }
func (teamPolicy) Family() Family                       { return FamilyTeam }
func (teamPolicy) RoundWinners(top []Standing) []string { return sameTeamWinners(top) }
func (teamPolicy) LossConsequence() Consequence         { return ConsequenceMovement }
func (teamPolicy) HeartLosers([]Standing) []string      { return nil }
func (teamPolicy) MovesPawns() bool                     { return true }
func (teamPolicy) SideChannel() bool                    { return false }

func (p teamPolicy) CheckEnd(standings []Standing, _ int) (Outcome, bool) {
	reached := reachedGoal(standings, p.settings.WinningPosition)
	if len(reached) == 0 {
		return lastStanding(standings)
	}
	teams := make(map[string]bool)
	for _, s := range reached {
		teams[s.Team] = true
	}
	if len(teams) > 1 {
		return Outcome{Drawn: true, Cause: CauseGoalReached}, true
	}
	team := reached[0].Team
	var winners []Standing
	for _, s := range standings {
		if s.Team == team {
			winners = append(winners, s)
		}
	}
	return Outcome{WinnerIDs: ids(winners), Cause: CauseGoalReached}, true
}

// heartsPolicy is the scripted boss encounter: lowest scorers lose hearts and
// the match ends when one side is wiped out.
type heartsPolicy struct{}

func (heartsPolicy) Mode() Mode                                { return ModeBoss }
func (heartsPolicy) Family() Family                            { return FamilyHearts }
func (heartsPolicy) RoundWinners(top []Standing) []string      { return soleWinner(top) }
func (heartsPolicy) LossConsequence() Consequence              { return ConsequenceHeart }
func (heartsPolicy) HeartLosers(active []Standing) []string    { return LowestScorers(active) }
func (heartsPolicy) MovesPawns() bool                          { return true }
func (heartsPolicy) SideChannel() bool                         { return false }
func (heartsPolicy) CheckEnd(s []Standing, _ int) (Outcome, bool) { return sidesWipedOut(s) }

// endurancePolicy is the one-vs-many ladder: a champion with a large heart
// pool against several challengers.
type endurancePolicy struct{}

func (endurancePolicy) Mode() Mode                                { return ModeEndurance }
func (endurancePolicy) Family() Family                            { return FamilyEndurance }
func (endurancePolicy) RoundWinners(top []Standing) []string      { return soleWinner(top) }
func (endurancePolicy) LossConsequence() Consequence              { return ConsequenceHeart }
func (endurancePolicy) HeartLosers(active []Standing) []string    { return LowestScorers(active) }
func (endurancePolicy) MovesPawns() bool                          { return true }
func (endurancePolicy) SideChannel() bool                         { return false }
func (endurancePolicy) CheckEnd(s []Standing, _ int) (Outcome, bool) { return sidesWipedOut(s) }

// sidesWipedOut ends a lead-vs-party match when either side has no active
// player left.
func sidesWipedOut(standings []Standing) (Outcome, bool) {
	var lead, party []Standing
	for _, s := range activeOnly(standings) {
		if s.Lead {
			lead = append(lead, s)
		} else {
			party = append(party, s)
		}
	}
	switch {
	case len(lead) == 0 && len(party) == 0:
		return Outcome{Drawn: true, Cause: CauseHearts}, true
	case len(lead) == 0:
		return Outcome{WinnerIDs: ids(party), Cause: CauseHearts}, true
	case len(party) == 0:
		return Outcome{WinnerIDs: ids(lead), Cause: CauseHearts}, true
	}
	return Outcome{}, false
}

// survivalPolicy is the timed team-survival mode: the human team must keep at
// least one member alive for RoundLimit rounds.
type survivalPolicy struct {
	settings Settings
}

func (survivalPolicy) Mode() Mode                             { return ModeSurvival }
func (survivalPolicy) Family() Family                         { return FamilyHearts }
func (survivalPolicy) RoundWinners(top []Standing) []string   { return sameTeamWinners(top) }
func (survivalPolicy) LossConsequence() Consequence           { return ConsequenceHeart }
func (survivalPolicy) HeartLosers(active []Standing) []string { return LowestScorers(active) }
func (survivalPolicy) MovesPawns() bool                       { return true }
func (survivalPolicy) SideChannel() bool                      { return false }

func (p survivalPolicy) CheckEnd(standings []Standing, resolved int) (Outcome, bool) {
	var humans, others []Standing
	for _, s := range activeOnly(standings) {
		if s.Human {
			humans = append(humans, s)
		} else {
			others = append(others, s)
		}
	}
	switch {
	case len(humans) == 0 && len(others) == 0:
		return Outcome{Drawn: true, Cause: CauseHearts}, true
	case len(humans) == 0:
		return Outcome{WinnerIDs: ids(others), Cause: CauseHearts}, true
	case len(others) == 0:
		return Outcome{WinnerIDs: ids(humans), Cause: CauseHearts}, true
	case p.settings.RoundLimit > 0 && resolved >= p.settings.RoundLimit:
		return Outcome{WinnerIDs: ids(humans), Cause: CauseSurvivalComplete}, true
	}
	return Outcome{}, false
}

// tournamentPolicy is the 1v1 best-of-three: each round win is a match
// point, pawns do not move.
type tournamentPolicy struct {
	settings Settings
}

func (tournamentPolicy) Mode() Mode                           { return ModeTournament }
func (tournamentPolicy) Family() Family                       { return FamilyTournament }
func (tournamentPolicy) RoundWinners(top []Standing) []string { return soleWinner(top) }
func (tournamentPolicy) LossConsequence() Consequence         { return ConsequenceNone }
func (tournamentPolicy) HeartLosers([]Standing) []string      { return nil }
func (tournamentPolicy) MovesPawns() bool                     { return false }
func (tournamentPolicy) SideChannel() bool                    { return true }

func (p tournamentPolicy) CheckEnd(standings []Standing, _ int) (Outcome, bool) {
	var winners []Standing
	for _, s := range activeOnly(standings) {
		if s.MatchPoints >= p.settings.WinsRequired {
			winners = append(winners, s)
		}
	}
	if len(winners) > 0 {
		return Outcome{WinnerIDs: ids(winners), Cause: CauseTournament}, true
	}
	return lastStanding(standings)
}
