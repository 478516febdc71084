package game

import (
	"fmt"

	"github.com/reversus-game/reversus-server-go/internal/game/cards"
	"github.com/reversus-game/reversus-server-go/internal/game/modes"
	"github.com/reversus-game/reversus-server-go/internal/game/rules"
)

// Rejection codes.
const (
	CodeMatchOver           = "match_over"
	CodeWrongPhase          = "wrong_phase"
	CodeUnknownPlayer       = "unknown_player"
	CodePlayerEliminated    = "player_eliminated"
	CodeNotYourTurn         = "not_your_turn"
	CodeAlreadyDrawn        = "already_drawn"
	CodeCardNotInHand       = "card_not_in_hand"
	CodeWrongCardKind       = "wrong_card_kind"
	CodeValueAlreadyPlayed  = "value_already_played"
	CodeEffectAlreadyPlayed = "effect_already_played"
	CodeMustPlayValueCard   = "must_play_value_card"
	CodeTargetEliminated    = "target_eliminated"
	CodeCardOnCooldown      = "card_on_cooldown"
	CodeInvalidOptions      = "invalid_options"
)

// RejectionError is returned for an illegal action. The match is untouched.
type RejectionError struct {
	Code     string
	PlayerID string
	Message  string
}

func (e *RejectionError) Error() string {
	if e.PlayerID == "" {
		return fmt.Sprintf("rejected (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("rejected %s (%s): %s", e.PlayerID, e.Code, e.Message)
}

func reject(code, playerID, format string, args ...interface{}) *RejectionError {
	return &RejectionError{Code: code, PlayerID: playerID, Message: fmt.Sprintf(format, args...)}
}

// EffectOptions disambiguates an effect card play.
type EffectOptions struct {
	// EffectTypeToReverse picks the axis for Reversus and for an individual
	// Reversus Total without LockedEffect.
	EffectTypeToReverse cards.Axis `json:"effect_type_to_reverse,omitempty"`
	// PulaDestinationPathID is the path a Pula target relocates to. Zero picks
	// the first free path.
	PulaDestinationPathID int  `json:"pula_destination_path_id,omitempty"`
	IsGlobalReversusTotal bool `json:"is_global_reversus_total,omitempty"`
	// LockedEffect is the effect an individual Reversus Total sets and locks.
	LockedEffect string `json:"locked_effect,omitempty"`
}

// ActionResult is what every accepted action returns. Applied is false for
// soft failures that only produced log entries.
type ActionResult struct {
	Applied bool          `json:"applied"`
	Logs    []LogEntry    `json:"logs"`
	Events  []rules.Event `json:"events"`
	// Summary is set when the action caused a round resolution.
	Summary *RoundSummary `json:"summary,omitempty"`
	Result  *MatchResult  `json:"result,omitempty"`
}

func (m *Match) actor(playerID string) (*Player, error) {
	if m.result != nil {
		return nil, reject(CodeMatchOver, playerID, "match is over")
	}
	p, ok := m.players[playerID]
	if !ok {
		return nil, reject(CodeUnknownPlayer, playerID, "player is not seated")
	}
	if p.IsEliminated {
		return nil, reject(CodePlayerEliminated, playerID, "player is eliminated")
	}
	return p, nil
}

func (m *Match) turnOwner(playerID string) (*Player, error) {
	p, err := m.actor(playerID)
	if err != nil {
		return nil, err
	}
	if m.phase.Current() != rules.PhasePlaying {
		return nil, reject(CodeWrongPhase, playerID, "phase is %s", m.phase.Current())
	}
	if m.turns.Current() != playerID {
		return nil, reject(CodeNotYourTurn, playerID, "it is %s's turn", m.turns.Current())
	}
	return p, nil
}

// finishAction drains the pending output and verifies the aggregate.
func (m *Match) finishAction(applied bool) (*ActionResult, error) {
	res := m.drain(applied)
	if err := m.Verify(); err != nil {
		return res, err
	}
	return res, nil
}

// DrawInitial draws one initiative card for playerID. When every pending
// player has drawn, the highest card starts; tied leaders draw again.
func (m *Match) DrawInitial(playerID string) (*ActionResult, error) {
	p, err := m.actor(playerID)
	if err != nil {
		return nil, err
	}
	if m.phase.Current() != rules.PhaseInitialDraw {
		return nil, reject(CodeWrongPhase, playerID, "phase is %s", m.phase.Current())
	}
	idx := indexOf(m.awaitingDraw, playerID)
	if idx < 0 {
		return nil, reject(CodeAlreadyDrawn, playerID, "initiative card already drawn")
	}

	card := m.drawValue()
	m.valueDeck.Discard(card)
	p.InitialDraw = &Resto{CardID: card.ID, Value: card.Value}
	m.awaitingDraw = append(m.awaitingDraw[:idx], m.awaitingDraw[idx+1:]...)
	m.logf(LogAction, playerID, "%s draws %d for initiative", p.Name, card.Value)
	m.emit(rules.NewEventWithAmount(rules.EventCardDrawn, playerID, "", card.ID, card.Value))

	if len(m.awaitingDraw) == 0 {
		if err := m.settleInitiative(); err != nil {
			return m.drain(true), err
		}
	}
	return m.finishAction(true)
}

// settleInitiative picks the starter among the current draw pool or sends
// the tied leaders back to draw.
func (m *Match) settleInitiative() error {
	best := -1
	var leaders []string
	for _, id := range m.drawPool {
		v := m.players[id].InitialDraw.Value
		switch {
		case v > best:
			best = v
			leaders = []string{id}
		case v == best:
			leaders = append(leaders, id)
		}
	}
	if len(leaders) > 1 {
		m.drawPool = leaders
		m.awaitingDraw = append([]string(nil), leaders...)
		m.logf(LogSystem, "", "initiative tied at %d, %d players draw again", best, len(leaders))
		return nil
	}

	starter := leaders[0]
	for _, id := range m.order {
		p := m.players[id]
		if p.InitialDraw != nil {
			r := *p.InitialDraw
			p.Resto = &r
		}
		p.InitialDraw = nil
	}
	m.drawPool = nil
	m.logf(LogSystem, starter, "%s wins initiative with %d", m.players[starter].Name, best)
	m.emit(rules.NewEventWithAmount(rules.EventInitiative, starter, "", "", best))
	return m.beginFirstRound(starter)
}

// PlayValueCard commits one value card from the current player's hand.
func (m *Match) PlayValueCard(playerID, cardID string) (*ActionResult, error) {
	p, err := m.turnOwner(playerID)
	if err != nil {
		return nil, err
	}
	if p.PlayedValueThisTurn {
		return nil, reject(CodeValueAlreadyPlayed, playerID, "a value card was already played this turn")
	}
	idx := p.handIndex(cardID)
	if idx < 0 {
		return nil, reject(CodeCardNotInHand, playerID, "card %s is not in hand", cardID)
	}
	if p.Hand[idx].Kind != cards.KindValue {
		return nil, reject(CodeWrongCardKind, playerID, "card %s is not a value card", cardID)
	}

	card := p.removeFromHand(idx)
	p.Played = append(p.Played, cards.PlayedCard{Card: card, CasterID: playerID})
	p.PlayedValueThisTurn = true
	p.NextResto = &Resto{CardID: card.ID, Value: card.Value}
	m.turns.ResetPasses()
	m.logf(LogAction, playerID, "%s plays %d", p.Name, card.Value)
	m.emit(rules.NewEventWithAmount(rules.EventValueCardPlayed, playerID, "", card.ID, card.Value))
	return m.finishAction(true)
}

// PlayEffectCard plays an effect card from the current player's hand onto
// targetID. Soft rule conflicts return Applied=false and leave the card in
// hand.
func (m *Match) PlayEffectCard(playerID, cardID, targetID string, opts EffectOptions) (*ActionResult, error) {
	p, err := m.turnOwner(playerID)
	if err != nil {
		return nil, err
	}
	if p.PlayedEffectThisTurn {
		return nil, reject(CodeEffectAlreadyPlayed, playerID, "an effect card was already played this turn")
	}
	idx := p.handIndex(cardID)
	if idx < 0 {
		return nil, reject(CodeCardNotInHand, playerID, "card %s is not in hand", cardID)
	}
	card := p.Hand[idx]
	if card.Kind != cards.KindEffect {
		return nil, reject(CodeWrongCardKind, playerID, "card %s is not an effect card", cardID)
	}
	if card.Cooldown > 0 {
		return nil, reject(CodeCardOnCooldown, playerID, "%s is on cooldown for %d rounds", card.Name, card.Cooldown)
	}
	target, ok := m.players[targetID]
	if !ok {
		return nil, reject(CodeUnknownPlayer, playerID, "target %q is not seated", targetID)
	}
	if target.IsEliminated {
		return nil, reject(CodeTargetEliminated, playerID, "target %s is eliminated", targetID)
	}
	if err := m.validateOptions(playerID, card, opts); err != nil {
		return nil, err
	}

	outcome := m.applyEffect(p, target, card, opts)
	switch outcome {
	case outcomeApplied:
		p.removeFromHand(idx)
		if cards.IsNarrative(card.Name) {
			card.Cooldown = m.settings.NarrativeCooldown
			p.Hand = append(p.Hand, card)
		}
		p.PlayedEffectThisTurn = true
	case outcomeAbsorbed:
		m.effectDeck.Discard(p.removeFromHand(idx))
		p.PlayedEffectThisTurn = true
	}
	return m.finishAction(outcome != outcomeSoftFail)
}

func (m *Match) validateOptions(playerID string, card *cards.Card, opts EffectOptions) error {
	sideChannel := m.policy.SideChannel()
	switch card.Name {
	case cards.Reversus:
		if sideChannel {
			return nil
		}
		if opts.EffectTypeToReverse != cards.AxisScore && opts.EffectTypeToReverse != cards.AxisMovement {
			return reject(CodeInvalidOptions, playerID, "Reversus needs an axis to reverse")
		}
	case cards.ReversusTotal:
		if sideChannel || opts.IsGlobalReversusTotal {
			return nil
		}
		if opts.LockedEffect != "" {
			axis := cards.AxisOf(opts.LockedEffect)
			if axis == cards.AxisNeither || opts.LockedEffect == cards.Pula {
				return reject(CodeInvalidOptions, playerID, "%q cannot be locked", opts.LockedEffect)
			}
			return nil
		}
		if opts.EffectTypeToReverse != cards.AxisScore && opts.EffectTypeToReverse != cards.AxisMovement {
			return reject(CodeInvalidOptions, playerID, "individual Reversus Total needs an axis or an effect to lock")
		}
	case cards.Pula:
		if sideChannel || opts.PulaDestinationPathID == 0 {
			return nil
		}
		if !m.pathExists(opts.PulaDestinationPathID) {
			return reject(CodeInvalidOptions, playerID, "path %d does not exist", opts.PulaDestinationPathID)
		}
	}
	return nil
}

// EndTurn finishes the current player's turn. Ending without a value card is
// a pass, allowed only while the player holds at most one value card. Enough
// consecutive passes resolve the round.
func (m *Match) EndTurn(playerID string) (*ActionResult, error) {
	p, err := m.turnOwner(playerID)
	if err != nil {
		return nil, err
	}
	pass := !p.PlayedValueThisTurn
	if pass && p.countHand(cards.KindValue, true) > 1 {
		return nil, reject(CodeMustPlayValueCard, playerID, "a value card must be played while holding more than one")
	}

	p.PlayedValueThisTurn = false
	p.PlayedEffectThisTurn = false
	resolve := false
	if pass {
		resolve = m.turns.RecordPass()
		m.logf(LogAction, playerID, "%s passes", p.Name)
		m.emit(rules.NewEventWithAmount(rules.EventPassed, playerID, "", "", m.turns.Passes()))
	}
	m.emit(rules.NewEvent(rules.EventTurnEnded, playerID, "", ""))

	if resolve {
		if err := m.resolveRound(); err != nil {
			return m.drain(true), err
		}
	} else {
		next := m.turns.Advance()
		m.emit(rules.NewEvent(rules.EventTurnStarted, next, "", ""))
	}
	return m.finishAction(true)
}

// AddFieldEffect binds a round-scoped field effect to a player. It is the
// entry point for board-trigger collaborators.
func (m *Match) AddFieldEffect(name, playerID string) (*ActionResult, error) {
	p, err := m.actor(playerID)
	if err != nil {
		return nil, err
	}
	if ph := m.phase.Current(); ph != rules.PhasePlaying {
		return nil, reject(CodeWrongPhase, playerID, "phase is %s", ph)
	}
	fe, err := NewFieldEffect(name, playerID)
	if err != nil {
		return nil, reject(CodeInvalidOptions, playerID, "%v", err)
	}
	m.bindFieldEffect(fe)
	m.logf(LogEffect, playerID, "field effect %s now applies to %s", name, p.Name)
	return m.finishAction(true)
}

func (m *Match) bindFieldEffect(fe FieldEffect) {
	if existing := m.fieldEffect(fe.AppliesTo, fe.Name); existing != nil {
		*existing = fe
	} else {
		m.fieldEffects = append(m.fieldEffects, fe)
	}
	ev := rules.NewEvent(rules.EventFieldEffect, fe.AppliesTo, "", "")
	ev.Data = fe.Name
	ev.Metadata["polarity"] = string(fe.Polarity)
	m.emit(ev)
}

// Concede removes a player from the match. Their pawn leaves the board and
// the turn passes on if it was theirs.
func (m *Match) Concede(playerID string) (*ActionResult, error) {
	p, err := m.actor(playerID)
	if err != nil {
		return nil, err
	}
	wasCurrent := m.phase.Current() == rules.PhasePlaying && m.turns.Current() == playerID
	p.PlayedValueThisTurn = false
	p.PlayedEffectThisTurn = false
	m.eliminate(p, "conceded")

	if m.checkEnd() {
		return m.finishAction(true)
	}
	if m.endIfAlone(modes.CauseAbandoned) {
		return m.finishAction(true)
	}

	switch m.phase.Current() {
	case rules.PhaseInitialDraw:
		if i := indexOf(m.awaitingDraw, playerID); i >= 0 {
			m.awaitingDraw = append(m.awaitingDraw[:i], m.awaitingDraw[i+1:]...)
		}
		if i := indexOf(m.drawPool, playerID); i >= 0 {
			m.drawPool = append(m.drawPool[:i], m.drawPool[i+1:]...)
		}
		if len(m.drawPool) == 0 {
			m.drawPool = m.activeIDs()
			m.awaitingDraw = m.activeIDs()
			m.logf(LogSystem, "", "initiative restarts among the remaining players")
		} else if len(m.awaitingDraw) == 0 {
			if err := m.settleInitiative(); err != nil {
				return m.drain(true), err
			}
		}
	case rules.PhasePlaying:
		if m.turns.Passes() >= m.turns.PassLimit() {
			if err := m.resolveRound(); err != nil {
				return m.drain(true), err
			}
		} else if wasCurrent {
			next := m.turns.Advance()
			m.emit(rules.NewEvent(rules.EventTurnStarted, next, "", ""))
		}
	}
	return m.finishAction(true)
}

// Abandon ends the match without a winner.
func (m *Match) Abandon() (*ActionResult, error) {
	if m.result != nil {
		return nil, reject(CodeMatchOver, "", "match is over")
	}
	m.finish(modes.Outcome{Drawn: true, Cause: modes.CauseAbandoned})
	return m.finishAction(true)
}

// endIfAlone finishes the match when fewer than two players remain.
func (m *Match) endIfAlone(cause string) bool {
	active := m.activeIDs()
	if len(active) >= 2 {
		return false
	}
	m.finish(modes.Outcome{WinnerIDs: active, Drawn: len(active) == 0, Cause: cause})
	return true
}

func (m *Match) eliminate(p *Player, reason string) {
	p.IsEliminated = true
	m.turns.Eliminate(p.ID)
	m.logf(LogSystem, p.ID, "%s is eliminated (%s)", p.Name, reason)
	ev := rules.NewEvent(rules.EventPlayerEliminated, p.ID, "", "")
	ev.Data = reason
	m.emit(ev)
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

// ActionType names an inbound action.
type ActionType string

const (
	ActionDrawInitial ActionType = "draw_initial"
	ActionPlayValue   ActionType = "play_value_card"
	ActionPlayEffect  ActionType = "play_effect_card"
	ActionEndTurn     ActionType = "end_turn"
	ActionFieldEffect ActionType = "field_effect"
	ActionConcede     ActionType = "concede"
	// ActionTimeout is issued by the server when the acting player's turn
	// timer expires.
	ActionTimeout ActionType = "timeout"
)

// Action is the transport-neutral form of every inbound action.
type Action struct {
	Type        ActionType    `json:"type"`
	PlayerID    string        `json:"player_id,omitempty"`
	CardID      string        `json:"card_id,omitempty"`
	TargetID    string        `json:"target_id,omitempty"`
	Options     EffectOptions `json:"options"`
	FieldEffect string        `json:"field_effect,omitempty"`
}

// Apply dispatches an action to its entry point.
func (m *Match) Apply(a Action) (*ActionResult, error) {
	switch a.Type {
	case ActionDrawInitial:
		return m.DrawInitial(a.PlayerID)
	case ActionPlayValue:
		return m.PlayValueCard(a.PlayerID, a.CardID)
	case ActionPlayEffect:
		return m.PlayEffectCard(a.PlayerID, a.CardID, a.TargetID, a.Options)
	case ActionEndTurn:
		return m.EndTurn(a.PlayerID)
	case ActionFieldEffect:
		return m.AddFieldEffect(a.FieldEffect, a.PlayerID)
	case ActionConcede:
		return m.Concede(a.PlayerID)
	case ActionTimeout:
		return m.TimeoutTurn()
	default:
		return nil, reject(CodeInvalidOptions, a.PlayerID, "unknown action %q", a.Type)
	}
}

// TimeoutTurn acts for whoever the match is waiting on. During the initial
// draw it draws for every pending player. While playing it ends the current
// turn through EndTurn, first playing the lowest value card when a pass
// would be illegal.
func (m *Match) TimeoutTurn() (*ActionResult, error) {
	if m.result != nil {
		return nil, reject(CodeMatchOver, "", "match is over")
	}
	switch m.phase.Current() {
	case rules.PhaseInitialDraw:
		combined := &ActionResult{Applied: true}
		for _, id := range append([]string(nil), m.awaitingDraw...) {
			if m.phase.Current() != rules.PhaseInitialDraw {
				break
			}
			res, err := m.DrawInitial(id)
			combined.merge(res)
			if err != nil {
				return combined, err
			}
		}
		return combined, nil

	case rules.PhasePlaying:
		current := m.turns.Current()
		p := m.players[current]
		combined := &ActionResult{Applied: true}
		if !p.PlayedValueThisTurn && p.countHand(cards.KindValue, true) > 1 {
			res, err := m.PlayValueCard(current, lowestValueCard(p))
			combined.merge(res)
			if err != nil {
				return combined, err
			}
		}
		m.logf(LogSystem, current, "%s ran out of time", p.Name)
		res, err := m.EndTurn(current)
		combined.merge(res)
		return combined, err
	}
	return nil, reject(CodeWrongPhase, "", "phase is %s", m.phase.Current())
}

func lowestValueCard(p *Player) string {
	id, best := "", 0
	for _, c := range p.Hand {
		if c.Kind != cards.KindValue {
			continue
		}
		if id == "" || c.Value < best {
			id, best = c.ID, c.Value
		}
	}
	return id
}

func (r *ActionResult) merge(other *ActionResult) {
	if other == nil {
		return
	}
	r.Logs = append(r.Logs, other.Logs...)
	r.Events = append(r.Events, other.Events...)
	if other.Summary != nil {
		r.Summary = other.Summary
	}
	if other.Result != nil {
		r.Result = other.Result
	}
}
