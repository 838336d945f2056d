// Package match runs one elimination duel between two students. Each match
// is a single goroutine owning all of its state: HP, active spells and the
// round timer are only ever touched from the run loop, which makes every HP
// update totally ordered from the clients' point of view.
package match

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"quiz-arena/internal/game"
	"quiz-arena/internal/protocol"
	"quiz-arena/internal/store"
)

var ErrMatchOver = errors.New("match_over")
var ErrMatchBusy = errors.New("match_busy")

// Sender delivers events to individual students. The websocket gateway
// implements it.
type Sender interface {
	Send(studentID, event string, payload any)
}

// Result is handed to the session registry when a match concludes.
type Result struct {
	MatchID     string
	SessionCode string
	WinnerID    string
	LoserID     string
	Outcome     game.Outcome
	Rounds      int
	Summaries   [2]game.Summary
}

type msgKind int

const (
	kindReady msgKind = iota
	kindMove
	kindCast
	kindHit
	kindDisconnect
	kindReconnect
	kindStop
)

type envelope struct {
	kind      msgKind
	studentID string
	x         float64
	spellType game.SpellType
	direction game.Direction
	spellID   string
	targetID  string
}

type Match struct {
	ID    string
	code  string
	rules game.Rules

	sender Sender
	onEnd  func(Result)

	players [2]*game.PlayerState
	spells  map[string]*game.Spell
	state   game.State
	round   int

	roundTimer *time.Timer
	deadline   time.Time
	paused     bool
	remaining  time.Duration
	graceTimer *time.Timer
	graceSeat  int

	inbox chan envelope
	done  chan struct{}
}

// New creates a match between two already-initialized player states. Seat 0
// is player1. Start must be called to run it.
func New(sessionCode string, p1, p2 *game.PlayerState, rules game.Rules, sender Sender, onEnd func(Result)) *Match {
	p1.HP = rules.StartingHP
	p2.HP = rules.StartingHP
	p1.X = rules.ArenaWidth * 0.25
	p2.X = rules.ArenaWidth * 0.75
	return &Match{
		ID:        "match_" + store.NewID(),
		code:      sessionCode,
		rules:     rules,
		sender:    sender,
		onEnd:     onEnd,
		players:   [2]*game.PlayerState{p1, p2},
		spells:    map[string]*game.Spell{},
		state:     game.StateAwaitingReady,
		graceSeat: -1,
		inbox:     make(chan envelope, 64),
		done:      make(chan struct{}),
	}
}

// Start announces the match to both players and launches the run loop. Each
// player learns the opponent's identity and damage stat so they can send
// round-ready without further prompting.
func (m *Match) Start() {
	for seat, p := range m.players {
		opp := m.players[1-seat]
		m.sender.Send(p.StudentID, protocol.EvtMatchFound, protocol.MatchFound{
			MatchID:    m.ID,
			Round:      1,
			StartingHP: m.rules.StartingHP,
			Opponent: protocol.OpponentInfo{
				StudentID: opp.StudentID,
				Nickname:  opp.Nickname,
				Character: opp.Character,
				Damage:    opp.Damage,
			},
		})
	}
	go m.run()
}

func (m *Match) Ready(studentID string) error {
	return m.post(envelope{kind: kindReady, studentID: studentID})
}

func (m *Match) Move(studentID string, x float64) error {
	return m.post(envelope{kind: kindMove, studentID: studentID, x: x})
}

func (m *Match) Cast(studentID string, typ game.SpellType, dir game.Direction) error {
	return m.post(envelope{kind: kindCast, studentID: studentID, spellType: typ, direction: dir})
}

func (m *Match) Hit(studentID, spellID, targetID string) error {
	return m.post(envelope{kind: kindHit, studentID: studentID, spellID: spellID, targetID: targetID})
}

func (m *Match) Disconnected(studentID string) error {
	return m.post(envelope{kind: kindDisconnect, studentID: studentID})
}

func (m *Match) Reconnected(studentID string) error {
	return m.post(envelope{kind: kindReconnect, studentID: studentID})
}

// Stop aborts the match without a result (session teardown).
func (m *Match) Stop() {
	_ = m.post(envelope{kind: kindStop})
}

// post never blocks while holding the caller's locks: the inbox is buffered
// and a full inbox is reported as busy rather than waited on.
func (m *Match) post(env envelope) error {
	select {
	case <-m.done:
		return ErrMatchOver
	default:
	}
	select {
	case m.inbox <- env:
		return nil
	case <-m.done:
		return ErrMatchOver
	default:
		return ErrMatchBusy
	}
}

func (m *Match) run() {
	var result *Result
	defer func() {
		m.stopTimers()
		close(m.done)
		if result != nil && m.onEnd != nil {
			m.onEnd(*result)
		}
	}()

	for {
		var roundC, graceC <-chan time.Time
		if m.roundTimer != nil {
			roundC = m.roundTimer.C
		}
		if m.graceTimer != nil {
			graceC = m.graceTimer.C
		}

		select {
		case env := <-m.inbox:
			if env.kind == kindStop {
				return
			}
			result = m.handle(env)
		case <-roundC:
			m.roundTimer = nil
			result = m.endRoundByTimer()
		case <-graceC:
			m.graceTimer = nil
			result = m.forfeit(m.graceSeat)
		}

		if m.state == game.StateMatchEnd {
			return
		}
	}
}

func (m *Match) handle(env envelope) *Result {
	seat := m.seatOf(env.studentID)
	if seat < 0 && env.kind != kindStop {
		return nil
	}
	switch env.kind {
	case kindReady:
		m.handleReady(seat)
	case kindMove:
		m.handleMove(seat, env.x)
	case kindCast:
		m.handleCast(seat, env.spellType, env.direction)
	case kindHit:
		return m.handleHit(seat, env.spellID, env.targetID)
	case kindDisconnect:
		m.handleDisconnect(seat)
	case kindReconnect:
		m.handleReconnect(seat)
	}
	return nil
}

// handleReady is idempotent: a retried round-ready from the same player
// never double-starts the timer.
func (m *Match) handleReady(seat int) {
	if m.state != game.StateAwaitingReady {
		return
	}
	m.players[seat].Ready = true
	if m.players[0].Ready && m.players[1].Ready {
		m.startRound()
	}
}

func (m *Match) startRound() {
	m.round++
	m.players[0].Ready = false
	m.players[1].Ready = false
	m.state = game.StateRoundInProgress
	m.paused = false
	m.armRoundTimer(m.rules.RoundDuration)
	log.Debug().Str("match_id", m.ID).Int("round", m.round).Msg("round_start")
	for _, p := range m.players {
		m.sender.Send(p.StudentID, protocol.EvtRoundStart, protocol.RoundStart{
			MatchID:    m.ID,
			Round:      m.round,
			DurationMS: m.rules.RoundDuration.Milliseconds(),
			Player1Hp:  m.players[0].HP,
			Player2Hp:  m.players[1].HP,
		})
	}
}

func (m *Match) handleMove(seat int, x float64) {
	if m.state != game.StateRoundInProgress || m.paused {
		m.sendError(seat, game.ErrRoundNotStarted)
		return
	}
	if x < 0 {
		x = 0
	}
	if x > m.rules.ArenaWidth {
		x = m.rules.ArenaWidth
	}
	p := m.players[seat]
	p.X = x
	m.sender.Send(m.players[1-seat].StudentID, protocol.EvtOpponentMove, protocol.OpponentMove{
		MatchID:   m.ID,
		StudentID: p.StudentID,
		X:         x,
	})
}

func (m *Match) handleCast(seat int, typ game.SpellType, dir game.Direction) {
	if m.state != game.StateRoundInProgress || m.paused {
		m.sendError(seat, game.ErrRoundNotStarted)
		return
	}
	caster := m.players[seat]
	now := time.Now()
	if err := game.ValidateCast(caster, typ, now, m.rules); err != nil {
		m.sendError(seat, err)
		return
	}
	caster.LastCastAt = now
	sp := &game.Spell{
		ID:        "spell_" + store.NewID(),
		CasterID:  caster.StudentID,
		Type:      typ,
		Direction: dir,
		Origin:    caster.X,
		CreatedAt: now,
	}
	m.spells[sp.ID] = sp
	// Both players receive the canonical spell; the caster's client uses it
	// to reconcile its local prediction.
	for _, p := range m.players {
		m.sender.Send(p.StudentID, protocol.EvtSpellCast, protocol.SpellCastEvt{MatchID: m.ID, Spell: *sp})
	}
}

func (m *Match) handleHit(seat int, spellID, targetID string) *Result {
	if m.state != game.StateRoundInProgress || m.paused {
		m.sendError(seat, game.ErrRoundNotStarted)
		return nil
	}
	sp, ok := m.spells[spellID]
	if !ok {
		// Already consumed or never existed: reject, never queue.
		m.sendError(seat, game.ErrStaleSpell)
		return nil
	}
	casterSeat := m.seatOf(sp.CasterID)
	targetSeat := m.seatOf(targetID)
	if casterSeat < 0 || targetSeat < 0 {
		m.sendError(seat, game.ErrInvalidTarget)
		return nil
	}
	caster, target := m.players[casterSeat], m.players[targetSeat]
	if err := game.ValidateHit(*sp, caster, target, time.Now(), m.rules); err != nil {
		m.sendError(seat, err)
		return nil
	}

	// Consuming the spell first makes a replayed hit claim a stale one.
	delete(m.spells, spellID)
	game.ApplyHit(caster, target)
	for _, p := range m.players {
		m.sender.Send(p.StudentID, protocol.EvtSpellHit, protocol.SpellHitEvt{
			MatchID:   m.ID,
			SpellID:   spellID,
			Player1Hp: m.players[0].HP,
			Player2Hp: m.players[1].HP,
		})
	}

	if target.HP <= 0 {
		m.stopRoundTimer()
		m.broadcastRoundEnd()
		return m.finish(1-targetSeat, game.OutcomeKnockout)
	}
	return nil
}

func (m *Match) endRoundByTimer() *Result {
	if m.state != game.StateRoundInProgress {
		return nil
	}
	m.state = game.StateRoundEnd
	m.broadcastRoundEnd()
	m.clearSpells()

	if m.round >= m.rules.MaxRounds {
		winner := 0
		if m.players[1].HP > m.players[0].HP {
			winner = 1
		}
		return m.finish(winner, game.OutcomeTimeout)
	}
	// Next round: carried-over HP, fresh ready handshake.
	m.state = game.StateAwaitingReady
	return nil
}

func (m *Match) broadcastRoundEnd() {
	for _, p := range m.players {
		m.sender.Send(p.StudentID, protocol.EvtRoundEnd, protocol.RoundEnd{
			MatchID:   m.ID,
			Round:     m.round,
			Player1Hp: m.players[0].HP,
			Player2Hp: m.players[1].HP,
		})
	}
}

func (m *Match) handleDisconnect(seat int) {
	if m.graceTimer != nil {
		// A grace window is already open; whoever left first forfeits when
		// it expires.
		return
	}
	m.graceSeat = seat
	m.graceTimer = time.NewTimer(m.rules.ReconnectGrace)
	if m.state == game.StateRoundInProgress && !m.paused {
		m.remaining = time.Until(m.deadline)
		if m.remaining < 0 {
			m.remaining = 0
		}
		m.stopRoundTimer()
		m.paused = true
	}
	log.Info().Str("match_id", m.ID).Str("student_id", m.players[seat].StudentID).
		Dur("grace", m.rules.ReconnectGrace).Msg("reconnect_grace_started")
}

func (m *Match) handleReconnect(seat int) {
	resumed := false
	if m.graceTimer != nil && m.graceSeat == seat {
		m.graceTimer.Stop()
		m.graceTimer = nil
		m.graceSeat = -1
		if m.paused {
			m.paused = false
			m.armRoundTimer(m.remaining)
			resumed = true
		}
	}

	// The replay does not depend on a grace window being open: a client
	// that swapped sockets without the gateway ever reporting a disconnect
	// still needs to learn where the match stands.
	p := m.players[seat]
	opp := m.players[1-seat]
	m.sender.Send(p.StudentID, protocol.EvtMatchFound, protocol.MatchFound{
		MatchID:    m.ID,
		Round:      m.round,
		StartingHP: m.rules.StartingHP,
		Opponent: protocol.OpponentInfo{
			StudentID: opp.StudentID,
			Nickname:  opp.Nickname,
			Character: opp.Character,
			Damage:    opp.Damage,
		},
	})
	switch {
	case resumed:
		for _, pl := range m.players {
			m.sender.Send(pl.StudentID, protocol.EvtRoundStart, protocol.RoundStart{
				MatchID:    m.ID,
				Round:      m.round,
				DurationMS: m.remaining.Milliseconds(),
				Player1Hp:  m.players[0].HP,
				Player2Hp:  m.players[1].HP,
			})
		}
	case m.state == game.StateRoundInProgress && !m.paused:
		m.sender.Send(p.StudentID, protocol.EvtRoundStart, protocol.RoundStart{
			MatchID:    m.ID,
			Round:      m.round,
			DurationMS: time.Until(m.deadline).Milliseconds(),
			Player1Hp:  m.players[0].HP,
			Player2Hp:  m.players[1].HP,
		})
	}
	log.Info().Str("match_id", m.ID).Str("student_id", p.StudentID).Msg("reconnected")
}

// forfeit ends the match in the remaining player's favor. Distinct outcome:
// the loser was not knocked out.
func (m *Match) forfeit(seat int) *Result {
	if seat < 0 || seat > 1 {
		return nil
	}
	log.Info().Str("match_id", m.ID).Str("student_id", m.players[seat].StudentID).Msg("forfeit")
	return m.finish(1-seat, game.OutcomeForfeit)
}

func (m *Match) finish(winnerSeat int, outcome game.Outcome) *Result {
	m.state = game.StateMatchEnd
	m.stopTimers()
	m.clearSpells()

	var summaries [2]game.Summary
	for seat, p := range m.players {
		placement := 2
		if seat == winnerSeat {
			placement = 1
		}
		summaries[seat] = game.Summary{
			StudentID:      p.StudentID,
			Nickname:       p.Nickname,
			Correct:        p.Correct,
			DamageDealt:    p.DamageDealt,
			DamageReceived: p.DamageReceived,
			Placement:      placement,
		}
	}
	winner := m.players[winnerSeat]
	loser := m.players[1-winnerSeat]
	for _, p := range m.players {
		m.sender.Send(p.StudentID, protocol.EvtMatchEnd, protocol.MatchEnd{
			MatchID:  m.ID,
			WinnerID: winner.StudentID,
			Outcome:  string(outcome),
			Results:  summaries[:],
		})
	}
	log.Info().Str("match_id", m.ID).Str("winner", winner.StudentID).
		Str("outcome", string(outcome)).Int("rounds", m.round).Msg("match_end")

	return &Result{
		MatchID:     m.ID,
		SessionCode: m.code,
		WinnerID:    winner.StudentID,
		LoserID:     loser.StudentID,
		Outcome:     outcome,
		Rounds:      m.round,
		Summaries:   summaries,
	}
}

func (m *Match) seatOf(studentID string) int {
	for i, p := range m.players {
		if p.StudentID == studentID {
			return i
		}
	}
	return -1
}

func (m *Match) armRoundTimer(d time.Duration) {
	m.roundTimer = time.NewTimer(d)
	m.deadline = time.Now().Add(d)
}

func (m *Match) stopRoundTimer() {
	if m.roundTimer != nil {
		m.roundTimer.Stop()
		m.roundTimer = nil
	}
}

func (m *Match) stopTimers() {
	m.stopRoundTimer()
	if m.graceTimer != nil {
		m.graceTimer.Stop()
		m.graceTimer = nil
	}
}

func (m *Match) clearSpells() {
	for id := range m.spells {
		delete(m.spells, id)
	}
}

func (m *Match) sendError(seat int, err error) {
	if seat < 0 {
		return
	}
	m.sender.Send(m.players[seat].StudentID, protocol.EvtError, protocol.ErrorMsg{Message: err.Error()})
}

// PlayerIDs returns both students, seat order.
func (m *Match) PlayerIDs() [2]string {
	return [2]string{m.players[0].StudentID, m.players[1].StudentID}
}

// Done reports match termination to the session registry's sweepers.
func (m *Match) Done() <-chan struct{} {
	return m.done
}
