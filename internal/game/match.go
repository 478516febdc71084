package game

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/reversus-game/reversus-server-go/internal/game/cards"
	"github.com/reversus-game/reversus-server-go/internal/game/modes"
	"github.com/reversus-game/reversus-server-go/internal/game/rules"
)

// Match is the single-writer aggregate for one game. It is not safe for
// concurrent use; Engine and the server hub serialise access to it.
type Match struct {
	id       string
	mode     modes.Mode
	policy   modes.Policy
	settings Rules

	phase *rules.PhaseMachine
	turns *rules.TurnOrder

	players map[string]*Player
	order   []string
	paths   []Path

	minter          *cards.Minter
	src             *rand.PCG
	rng             *rand.Rand
	valueDeck       *cards.Deck
	effectDeck      *cards.Deck
	narrativeMinted int

	fieldEffects    []FieldEffect
	globalInversion bool
	awaitingDraw    []string
	drawPool        []string

	round      int
	// resolved counts rounds whose consequences have been fully applied.
	resolved   int
	logSeq     int
	eventSeq   int
	log        []LogEntry
	lastScores map[string]int
	summary    *RoundSummary
	result     *MatchResult

	script     *BossScript
	scriptStep int

	pendingLogs    []LogEntry
	pendingEvents  []rules.Event
	pendingSummary *RoundSummary

	logger *zap.Logger
}

// maxLogEntries caps the retained domain log.
const maxLogEntries = 1000

// NewMatch validates the configuration and builds the initial state. When
// cfg.StartingPlayerID is set the initial draw is skipped and the first
// round is dealt immediately.
func NewMatch(id string, cfg MatchConfig, logger *zap.Logger) (*Match, error) {
	settings := cfg.Rules.withDefaults()
	if settings.Seed == 0 {
		settings.Seed = randomSeed()
	}

	if err := validateSeats(cfg, settings); err != nil {
		return nil, err
	}

	roundLimit := 0
	if cfg.Mode == modes.ModeSurvival {
		roundLimit = settings.SurvivalRounds
	}
	policy, err := modes.For(cfg.Mode, modes.Settings{
		WinningPosition: settings.WinningPosition,
		WinsRequired:    settings.WinsRequired,
		RoundLimit:      roundLimit,
	})
	if err != nil {
		return nil, err
	}

	src := rand.NewPCG(settings.Seed, settings.Seed^0x9e3779b97f4a7c15)
	m := &Match{
		id:         id,
		mode:       cfg.Mode,
		policy:     policy,
		settings:   settings,
		phase:      rules.NewPhaseMachine(),
		players:    make(map[string]*Player, len(cfg.Seats)),
		minter:     &cards.Minter{},
		src:        src,
		rng:        rand.New(src),
		lastScores: make(map[string]int),
		logger:     logger,
	}

	valueComp := cards.ValueComposition()
	if cfg.ValueDeck != nil {
		valueComp = cfg.ValueDeck
	}
	effectComp := cards.EffectComposition(cfg.NarrativeScoreCards)
	if cfg.EffectDeck != nil {
		effectComp = cfg.EffectDeck
	}
	m.valueDeck, err = cards.NewDeck(cards.KindValue, valueComp, m.rng, m.minter)
	if err != nil {
		return nil, err
	}
	m.effectDeck, err = cards.NewDeck(cards.KindEffect, effectComp, m.rng, m.minter)
	if err != nil {
		return nil, err
	}

	if err := m.layoutBoard(cfg); err != nil {
		return nil, err
	}
	m.seatPlayers(cfg)

	if cfg.Script != nil {
		if cfg.Mode != modes.ModeBoss {
			return nil, fmt.Errorf("board script requires %s mode", modes.ModeBoss)
		}
		if err := cfg.Script.validate(); err != nil {
			return nil, err
		}
		script := cfg.Script.clone()
		m.script = &script
	}

	m.turns = rules.NewTurnOrder(m.order, cfg.StartingPlayerID)
	m.emit(rules.NewEvent(rules.EventMatchStarted, "", "", ""))
	m.logf(LogSystem, "", "match started in %s mode with %d players", m.mode, len(m.order))

	if cfg.StartingPlayerID != "" {
		if _, ok := m.players[cfg.StartingPlayerID]; !ok {
			return nil, fmt.Errorf("starting player %q is not seated", cfg.StartingPlayerID)
		}
		for _, pid := range m.order {
			card := m.drawValue()
			m.players[pid].Resto = &Resto{CardID: card.ID, Value: card.Value}
			m.valueDeck.Discard(card)
		}
		if err := m.beginFirstRound(cfg.StartingPlayerID); err != nil {
			return nil, err
		}
	} else {
		if err := m.transition(rules.PhaseInitialDraw); err != nil {
			return nil, err
		}
		m.awaitingDraw = append([]string(nil), m.order...)
		m.drawPool = append([]string(nil), m.order...)
	}

	if err := m.Verify(); err != nil {
		return nil, err
	}
	if m.logger != nil {
		m.logger.Debug("match created",
			zap.String("match_id", id),
			zap.String("mode", string(m.mode)),
			zap.Int("players", len(m.order)),
			zap.Uint64("seed", settings.Seed),
		)
	}
	return m, nil
}

func randomSeed() uint64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 1
	}
	seed := binary.LittleEndian.Uint64(b[:])
	if seed == 0 {
		seed = 1
	}
	return seed
}

func validateSeats(cfg MatchConfig, settings Rules) error {
	if len(cfg.Seats) < 2 {
		return fmt.Errorf("need at least 2 seats, got %d", len(cfg.Seats))
	}
	seen := make(map[string]bool, len(cfg.Seats))
	teams := make(map[string]int)
	leads := 0
	for _, seat := range cfg.Seats {
		id := strings.TrimSpace(seat.ID)
		if id == "" {
			return fmt.Errorf("seat id is required")
		}
		if seen[id] {
			return fmt.Errorf("duplicate seat id %q", id)
		}
		seen[id] = true
		if seat.Team != "" {
			teams[seat.Team]++
		}
		if seat.Lead {
			leads++
		}
	}
	if cfg.Layout == nil && len(cfg.Seats) > settings.PathCount {
		return fmt.Errorf("%d seats do not fit on %d paths", len(cfg.Seats), settings.PathCount)
	}

	switch cfg.Mode {
	case modes.ModeSolo:
		if len(cfg.Seats) > 4 {
			return fmt.Errorf("solo mode seats 2 to 4 players")
		}
	case modes.ModeDuo:
		if len(cfg.Seats) != 4 || len(teams) != 2 {
			return fmt.Errorf("duo mode needs 4 seats on 2 teams")
		}
		for team, n := range teams {
			if n != 2 {
				return fmt.Errorf("team %q has %d players, want 2", team, n)
			}
		}
	case modes.ModeTournament:
		if len(cfg.Seats) != 2 {
			return fmt.Errorf("tournament mode is 1v1")
		}
	case modes.ModeBoss:
		if leads != 1 {
			return fmt.Errorf("boss mode needs exactly one lead seat, got %d", leads)
		}
	case modes.ModeEndurance:
		if leads > 1 {
			return fmt.Errorf("endurance mode allows one champion, got %d", leads)
		}
	case modes.ModeSurvival:
		humans := 0
		for _, seat := range cfg.Seats {
			if !seat.AI {
				humans++
			}
		}
		if humans == 0 || humans == len(cfg.Seats) {
			return fmt.Errorf("survival mode needs both human and AI seats")
		}
	}
	return nil
}

func (m *Match) layoutBoard(cfg MatchConfig) error {
	if cfg.Layout != nil && len(cfg.Layout.Paths) > 0 {
		seen := make(map[int]bool)
		for _, p := range cfg.Layout.Paths {
			if p.ID <= 0 || seen[p.ID] {
				return fmt.Errorf("invalid or duplicate path id %d", p.ID)
			}
			seen[p.ID] = true
		}
		if len(cfg.Layout.Paths) < len(cfg.Seats) {
			return fmt.Errorf("%d seats do not fit on %d paths", len(cfg.Seats), len(cfg.Layout.Paths))
		}
		m.paths = append([]Path(nil), cfg.Layout.Paths...)
		return nil
	}
	for i := 0; i < m.settings.PathCount; i++ {
		m.paths = append(m.paths, Path{ID: i + 1, Color: defaultPathColors[i%len(defaultPathColors)]})
	}
	return nil
}

func (m *Match) seatPlayers(cfg MatchConfig) {
	heartMode := m.policy.LossConsequence() == modes.ConsequenceHeart
	lead := ""
	if cfg.Mode == modes.ModeEndurance {
		lead = cfg.Seats[0].ID
		for _, seat := range cfg.Seats {
			if seat.Lead {
				lead = seat.ID
			}
		}
	}

	for i, seat := range cfg.Seats {
		id := strings.TrimSpace(seat.ID)
		p := &Player{
			ID:       id,
			Name:     seat.Name,
			Team:     seat.Team,
			AI:       seat.AI,
			Lead:     seat.Lead || id == lead,
			Immune:   seat.Immune,
			PathID:   m.paths[i].ID,
			Position: 1,
		}
		if p.Name == "" {
			p.Name = id
		}
		if cfg.Layout != nil {
			if pl, ok := cfg.Layout.Placements[id]; ok {
				p.PathID = pl.PathID
				if pl.Position > 0 {
					p.Position = pl.Position
				}
			}
		}
		if heartMode {
			p.Hearts = m.settings.StartingHearts
			if p.Lead {
				p.Hearts = m.settings.BossHearts
			}
		}
		if seat.Versatrix {
			p.Hand = append(p.Hand, cards.NewEffectCard(m.minter.NarrativeID(), cards.Versatrix))
			m.narrativeMinted++
		}
		m.players[id] = p
		m.order = append(m.order, id)
	}
}

// ID returns the match identifier.
func (m *Match) ID() string {
	return m.id
}

// Mode returns the match mode.
func (m *Match) Mode() modes.Mode {
	return m.mode
}

// Phase returns the current phase.
func (m *Match) Phase() rules.Phase {
	return m.phase.Current()
}

// Round returns the 1-based round number, 0 before the first deal.
func (m *Match) Round() int {
	return m.round
}

// CurrentPlayer returns the acting player, or "" outside the playing phase.
func (m *Match) CurrentPlayer() string {
	if m.phase.Current() != rules.PhasePlaying {
		return ""
	}
	return m.turns.Current()
}

// Passes returns the consecutive pass counter.
func (m *Match) Passes() int {
	return m.turns.Passes()
}

// GlobalInversion reports whether a global Reversus Total is active.
func (m *Match) GlobalInversion() bool {
	return m.globalInversion
}

// Player returns a copy of one player's state.
func (m *Match) Player(id string) (*Player, bool) {
	p, ok := m.players[id]
	if !ok {
		return nil, false
	}
	return p.clone(), true
}

// PlayerIDs returns the seat order.
func (m *Match) PlayerIDs() []string {
	return append([]string(nil), m.order...)
}

// AwaitingDraw returns the players who still owe an initiative draw.
func (m *Match) AwaitingDraw() []string {
	return append([]string(nil), m.awaitingDraw...)
}

// Result returns the match result once the match is over.
func (m *Match) Result() (*MatchResult, bool) {
	if m.result == nil {
		return nil, false
	}
	cp := *m.result
	return &cp, true
}

// LastSummary returns the most recent round summary.
func (m *Match) LastSummary() *RoundSummary {
	return m.summary
}

// Log returns the retained domain log.
func (m *Match) Log() []LogEntry {
	return append([]LogEntry(nil), m.log...)
}

// IsOver reports whether the match has ended.
func (m *Match) IsOver() bool {
	return m.result != nil
}

func (m *Match) activeIDs() []string {
	out := make([]string, 0, len(m.order))
	for _, id := range m.order {
		if !m.players[id].IsEliminated {
			out = append(out, id)
		}
	}
	return out
}

func (m *Match) transition(to rules.Phase) error {
	from := m.phase.Current()
	if err := m.phase.Transition(to); err != nil {
		return fmt.Errorf("%w: %v", ErrInvariantViolation, err)
	}
	ev := rules.NewEvent(rules.EventPhaseChanged, "", "", "")
	ev.Data = to.String()
	ev.Metadata["from"] = from.String()
	m.emit(ev)
	return nil
}

func (m *Match) logf(kind, playerID, format string, args ...interface{}) {
	m.logSeq++
	entry := LogEntry{
		Seq:      m.logSeq,
		Round:    m.round,
		Kind:     kind,
		PlayerID: playerID,
		Text:     fmt.Sprintf(format, args...),
	}
	m.log = append(m.log, entry)
	if len(m.log) > maxLogEntries {
		m.log = m.log[len(m.log)-maxLogEntries:]
	}
	m.pendingLogs = append(m.pendingLogs, entry)
}

func (m *Match) emit(ev rules.Event) {
	m.eventSeq++
	ev.Seq = m.eventSeq
	ev.Round = m.round
	m.pendingEvents = append(m.pendingEvents, ev)
}

// drain hands out the logs and events produced since the last call.
func (m *Match) drain(applied bool) *ActionResult {
	res := &ActionResult{
		Applied: applied,
		Logs:    m.pendingLogs,
		Events:  m.pendingEvents,
		Summary: m.pendingSummary,
		Result:  m.result,
	}
	m.pendingLogs = nil
	m.pendingEvents = nil
	m.pendingSummary = nil
	return res
}

func (m *Match) drawValue() *cards.Card {
	card, refill := m.valueDeck.Draw()
	m.noteRefill(cards.KindValue, refill)
	return card
}

func (m *Match) drawEffect() *cards.Card {
	card, refill := m.effectDeck.Draw()
	m.noteRefill(cards.KindEffect, refill)
	return card
}

func (m *Match) noteRefill(kind cards.Kind, refill cards.Refill) {
	switch refill {
	case cards.RefillReshuffled:
		m.logf(LogSystem, "", "%s discard pile reshuffled into the deck", kind)
		ev := rules.NewEvent(rules.EventDeckReshuffled, "", "", "")
		ev.Data = kind.String()
		m.emit(ev)
	case cards.RefillRecreated:
		m.logf(LogSystem, "", "%s deck exhausted, a fresh deck was created", kind)
		ev := rules.NewEvent(rules.EventDeckRecreated, "", "", "")
		ev.Data = kind.String()
		m.emit(ev)
		if m.logger != nil {
			m.logger.Warn("deck recreated",
				zap.String("match_id", m.id),
				zap.String("deck", kind.String()),
			)
		}
	}
}

// fieldEffect returns the first field effect with name bound to playerID.
func (m *Match) fieldEffect(playerID, name string) *FieldEffect {
	for i := range m.fieldEffects {
		fe := &m.fieldEffects[i]
		if fe.AppliesTo == playerID && fe.Name == name {
			return fe
		}
	}
	return nil
}

func (m *Match) hasField(playerID, name string) bool {
	return m.fieldEffect(playerID, name) != nil
}

// pathOccupant returns the active player on pathID other than except.
func (m *Match) pathOccupant(pathID int, except string) string {
	for _, id := range m.order {
		p := m.players[id]
		if id == except || p.IsEliminated {
			continue
		}
		if p.PathID == pathID {
			return id
		}
	}
	return ""
}

func (m *Match) pathExists(pathID int) bool {
	for _, p := range m.paths {
		if p.ID == pathID {
			return true
		}
	}
	return false
}

// freePath returns the lowest free path id other than the target's own.
func (m *Match) freePath(targetID string) int {
	own := m.players[targetID].PathID
	ids := make([]int, 0, len(m.paths))
	for _, p := range m.paths {
		ids = append(ids, p.ID)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if id != own && m.pathOccupant(id, targetID) == "" {
			return id
		}
	}
	return 0
}

// standings builds the policy view of every player using the latest scores.
func (m *Match) standings(scores map[string]int) []modes.Standing {
	out := make([]modes.Standing, 0, len(m.order))
	for _, id := range m.order {
		p := m.players[id]
		out = append(out, modes.Standing{
			PlayerID:    id,
			Team:        p.Team,
			Score:       scores[id],
			Position:    p.Position,
			Hearts:      p.Hearts,
			MatchPoints: p.MatchPoints,
			Eliminated:  p.IsEliminated,
			Human:       !p.AI,
			Lead:        p.Lead,
		})
	}
	return out
}

// checkEnd consults the policy and finishes the match if it is over.
func (m *Match) checkEnd() bool {
	if m.result != nil {
		return true
	}
	outcome, done := m.policy.CheckEnd(m.standings(m.lastScores), m.resolved)
	if !done {
		return false
	}
	m.finish(outcome)
	return true
}

func (m *Match) finish(outcome modes.Outcome) {
	if m.phase.Current() != rules.PhaseGameOver {
		// Verify reports a result outside game_over, so Engine.Apply rolls back.
		if err := m.transition(rules.PhaseGameOver); err != nil && m.logger != nil {
			m.logger.Error("match ended outside a playable phase",
				zap.String("match_id", m.id),
				zap.String("phase", m.phase.Current().String()),
				zap.Error(err),
			)
		}
	}
	positions := make(map[string]int, len(m.order))
	scores := make(map[string]int, len(m.order))
	for _, id := range m.order {
		positions[id] = m.players[id].Position
		scores[id] = m.lastScores[id]
	}
	m.result = &MatchResult{
		MatchID:     m.id,
		Mode:        m.mode,
		WinnerIDs:   append([]string(nil), outcome.WinnerIDs...),
		Drawn:       outcome.Drawn || len(outcome.WinnerIDs) == 0,
		FinalScores: scores,
		Positions:   positions,
		Cause:       outcome.Cause,
		Rounds:      m.round,
	}
	ev := rules.NewEvent(rules.EventMatchEnded, "", "", "")
	ev.Data = outcome.Cause
	ev.Metadata["winners"] = strings.Join(outcome.WinnerIDs, ",")
	m.emit(ev)
	if m.result.Drawn {
		m.logf(LogSystem, "", "match ended in a draw (%s)", outcome.Cause)
	} else {
		m.logf(LogSystem, "", "match won by %s (%s)", strings.Join(outcome.WinnerIDs, ", "), outcome.Cause)
	}
	if m.logger != nil {
		m.logger.Info("match ended",
			zap.String("match_id", m.id),
			zap.Strings("winners", outcome.WinnerIDs),
			zap.String("cause", outcome.Cause),
			zap.Int("rounds", m.round),
		)
	}
}

// Verify checks the structural invariants of the aggregate.
func (m *Match) Verify() error {
	phase := m.phase.Current()
	if m.result != nil && phase != rules.PhaseGameOver {
		return fmt.Errorf("%w: match has a result in phase %s", ErrInvariantViolation, phase)
	}
	if phase == rules.PhasePlaying {
		cur := m.turns.Current()
		p, ok := m.players[cur]
		if !ok || p.IsEliminated {
			return fmt.Errorf("%w: current player %q is not active", ErrInvariantViolation, cur)
		}
	}
	if phase == rules.PhasePlaying && m.turns.Passes() > m.turns.PassLimit() {
		return fmt.Errorf("%w: %d passes exceed limit %d", ErrInvariantViolation, m.turns.Passes(), m.turns.PassLimit())
	}

	seen := make(map[string]string)
	total := 0
	track := func(where string, c *cards.Card) error {
		if c == nil {
			return fmt.Errorf("%w: nil card in %s", ErrInvariantViolation, where)
		}
		if prev, dup := seen[c.ID]; dup {
			return fmt.Errorf("%w: card %s is in %s and %s", ErrInvariantViolation, c.ID, prev, where)
		}
		seen[c.ID] = where
		total++
		return nil
	}
	for _, deck := range []*cards.Deck{m.valueDeck, m.effectDeck} {
		for _, c := range deck.DrawPile() {
			if err := track(deck.Kind().String()+" deck", c); err != nil {
				return err
			}
		}
		for _, c := range deck.DiscardPile() {
			if err := track(deck.Kind().String()+" discard", c); err != nil {
				return err
			}
		}
	}
	for _, id := range m.order {
		p := m.players[id]
		for _, c := range p.Hand {
			if err := track(id+" hand", c); err != nil {
				return err
			}
		}
		for _, entry := range p.Played {
			if err := track(id+" played", entry.Card); err != nil {
				return err
			}
		}
		if err := validSlot(cards.AxisScore, p.Effects.Score); err != nil {
			return fmt.Errorf("%w: player %s: %v", ErrInvariantViolation, id, err)
		}
		if err := validSlot(cards.AxisMovement, p.Effects.Movement); err != nil {
			return fmt.Errorf("%w: player %s: %v", ErrInvariantViolation, id, err)
		}
	}
	minted := m.valueDeck.Minted() + m.effectDeck.Minted() + m.narrativeMinted
	if total != minted {
		return fmt.Errorf("%w: %d cards tracked, %d minted", ErrInvariantViolation, total, minted)
	}
	return nil
}

func validSlot(axis cards.Axis, name string) error {
	if name == "" {
		return nil
	}
	if cards.AxisOf(name) != axis {
		return fmt.Errorf("%q is not a %s modifier", name, axis)
	}
	return nil
}

// Clone returns an independent deep copy, used as an undo bookmark.
func (m *Match) Clone() *Match {
	src := *m.src
	cp := *m
	cp.src = &src
	cp.rng = rand.New(cp.src)
	minter := *m.minter
	cp.minter = &minter
	cp.valueDeck = m.valueDeck.Clone(cp.rng, cp.minter)
	cp.effectDeck = m.effectDeck.Clone(cp.rng, cp.minter)
	cp.phase = rules.NewPhaseMachine()
	*cp.phase = *m.phase
	cp.turns = m.turns.Clone()
	cp.players = make(map[string]*Player, len(m.players))
	for id, p := range m.players {
		cp.players[id] = p.clone()
	}
	cp.order = append([]string(nil), m.order...)
	cp.paths = append([]Path(nil), m.paths...)
	cp.fieldEffects = append([]FieldEffect(nil), m.fieldEffects...)
	cp.awaitingDraw = append([]string(nil), m.awaitingDraw...)
	cp.drawPool = append([]string(nil), m.drawPool...)
	cp.log = append([]LogEntry(nil), m.log...)
	cp.lastScores = make(map[string]int, len(m.lastScores))
	for k, v := range m.lastScores {
		cp.lastScores[k] = v
	}
	if m.summary != nil {
		s := m.summary.clone()
		cp.summary = &s
	}
	if m.result != nil {
		r := *m.result
		cp.result = &r
	}
	if m.script != nil {
		s := m.script.clone()
		cp.script = &s
	}
	cp.pendingLogs = append([]LogEntry(nil), m.pendingLogs...)
	cp.pendingEvents = append([]rules.Event(nil), m.pendingEvents...)
	if m.pendingSummary != nil {
		s := m.pendingSummary.clone()
		cp.pendingSummary = &s
	}
	return &cp
}
