package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"quiz-arena/internal/game"
	"quiz-arena/internal/match"
	"quiz-arena/internal/protocol"
	"quiz-arena/internal/queue"
	"quiz-arena/internal/store"
)

// Phase is where one student currently is in the session flow.
type Phase string

const (
	PhaseCharacterSelect Phase = "character-selection"
	PhaseLobby           Phase = "lobby"
	PhaseCards           Phase = "cards-in-progress"
	PhaseCardsComplete   Phase = "cards-complete"
	PhaseQueued          Phase = "queued"
	PhaseInMatch         Phase = "in-match"
	PhaseEliminated      Phase = "eliminated"
	PhaseChampion        Phase = "champion"
)

// Characters selectable in the lobby. Late joiners get the first unused one.
var Characters = []string{
	"wizard", "witch", "sorcerer", "warlock", "druid", "sage",
	"alchemist", "bard", "oracle", "monk", "summoner", "enchanter",
}

type studentState struct {
	studentID string
	nickname  string
	character string
	phase     Phase
	connected bool

	damage   int
	correct  int
	answered map[string]bool // questionID -> was correct
}

// Session is the authoritative state for one session code. One mutex guards
// everything below it; match runtimes run outside the lock and report back
// through matchEnded.
type Session struct {
	Code string

	reg       *Registry
	questions []store.Question
	byQID     map[string]store.Question

	mu         sync.Mutex
	closed     bool
	started    bool // card phase has begun; new joins fast-forward
	students   map[string]*studentState
	characters map[string]string // character -> studentID
	rosterNick map[string]string // pre-registered nicknames
	queue      *queue.Queue
	matches    map[string]*match.Match
	matchOf    map[string]*match.Match
}

func newSession(reg *Registry, code string, questions []store.Question, roster []store.Student) *Session {
	byQID := make(map[string]store.Question, len(questions))
	for _, q := range questions {
		byQID[q.ID] = q
	}
	nick := make(map[string]string, len(roster))
	for _, st := range roster {
		nick[st.StudentID] = st.Nickname
	}
	return &Session{
		Code:       code,
		reg:        reg,
		questions:  questions,
		byQID:      byQID,
		students:   map[string]*studentState{},
		characters: map[string]string{},
		rosterNick: nick,
		queue:      queue.New(),
		matches:    map[string]*match.Match{},
		matchOf:    map[string]*match.Match{},
	}
}

func (s *Session) send(studentID, event string, payload any) {
	if s.reg.sender == nil {
		return
	}
	s.reg.sender.Send(s.Code, studentID, event, payload)
}

// broadcast must be called with the lock held: it walks the student map.
func (s *Session) broadcast(event string, payload any) {
	for id, st := range s.students {
		if st.connected {
			s.send(id, event, payload)
		}
	}
}

// Join registers a student, or resumes an existing one after a reconnect.
// Before the card phase starts, new students land in character selection;
// afterwards they are late joiners: an unused character is auto-assigned
// and they go straight to the cards.
func (s *Session) Join(studentID, nickname string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	if st, ok := s.students[studentID]; ok {
		st.connected = true
		s.resumeLocked(st)
		return nil
	}

	if nickname == "" {
		nickname = s.rosterNick[studentID]
	}
	if nickname == "" {
		nickname = studentID
	}
	st := &studentState{
		studentID: studentID,
		nickname:  nickname,
		phase:     PhaseCharacterSelect,
		connected: true,
		damage:    s.reg.cfg.BaseDamage,
		answered:  map[string]bool{},
	}
	s.students[studentID] = st
	s.reg.persist("add_student", func(ctx context.Context) error {
		return s.reg.db.AddStudent(ctx, store.Student{
			StudentID:   studentID,
			SessionCode: s.Code,
			Nickname:    nickname,
		})
	})
	log.Info().Str("session_code", s.Code).Str("student_id", studentID).
		Bool("late", s.started).Msg("student joined")

	if s.started {
		s.fastForwardLocked(st)
		return nil
	}
	s.send(studentID, protocol.EvtCharacterSelection, protocol.CharacterSelection{
		Characters: Characters,
		Taken:      s.takenLocked(),
	})
	return nil
}

// resumeLocked replays enough state for a reconnecting client to continue.
func (s *Session) resumeLocked(st *studentState) {
	switch st.phase {
	case PhaseCharacterSelect:
		s.send(st.studentID, protocol.EvtCharacterSelection, protocol.CharacterSelection{
			Characters: Characters,
			Taken:      s.takenLocked(),
		})
	case PhaseLobby:
		s.send(st.studentID, protocol.EvtLobbyUpdate, protocol.LobbyUpdate{Members: s.lobbyLocked()})
	case PhaseCards:
		s.send(st.studentID, protocol.EvtStartCardPhase, protocol.StartCardPhase{
			Questions: s.questionViews(),
			Damage:    st.damage,
		})
	case PhaseCardsComplete:
		s.send(st.studentID, protocol.EvtCardsComplete, protocol.CardsComplete{
			Damage:  st.damage,
			Correct: st.correct,
		})
	case PhaseQueued:
		s.send(st.studentID, protocol.EvtQueueJoined, protocol.QueueJoined{
			Position: s.queue.Position(st.studentID),
		})
	case PhaseInMatch:
		if m := s.matchOf[st.studentID]; m != nil {
			// The coordinator replays match-found and the round state.
			_ = m.Reconnected(st.studentID)
		}
	}
	log.Debug().Str("session_code", s.Code).Str("student_id", st.studentID).
		Str("phase", string(st.phase)).Msg("student resumed")
}

// fastForwardLocked is the late-joiner path: auto-assign a character and
// emit the full question set, skipping the lobby.
func (s *Session) fastForwardLocked(st *studentState) {
	for _, c := range Characters {
		if _, taken := s.characters[c]; !taken {
			s.characters[c] = st.studentID
			st.character = c
			break
		}
	}
	if st.character == "" {
		// More students than characters: reuse the first. Display-only.
		st.character = Characters[0]
	}
	st.phase = PhaseCards
	s.send(st.studentID, protocol.EvtCharacterSelected, protocol.CharacterChosen{
		StudentID: st.studentID,
		Character: st.character,
	})
	s.send(st.studentID, protocol.EvtStartCardPhase, protocol.StartCardPhase{
		Questions: s.questionViews(),
		Damage:    st.damage,
	})
}

// CharacterSelected records a pick. A duplicate pick of someone else's
// character is rejected; re-picking your own is a no-op.
func (s *Session) CharacterSelected(studentID, character string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.studentLocked(studentID)
	if err != nil {
		return err
	}
	if st.phase != PhaseCharacterSelect {
		return ErrInvalidPhase
	}
	if !validCharacter(character) {
		return ErrUnknownCharacter
	}
	if owner, taken := s.characters[character]; taken {
		if owner == studentID {
			return nil
		}
		return ErrCharacterTaken
	}
	if st.character != "" {
		delete(s.characters, st.character)
	}
	st.character = character
	s.characters[character] = studentID
	s.broadcast(protocol.EvtCharacterSelected, protocol.CharacterChosen{
		StudentID: studentID,
		Character: character,
	})
	return nil
}

// JoinLobby moves a student with a chosen character into the lobby.
func (s *Session) JoinLobby(studentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.studentLocked(studentID)
	if err != nil {
		return err
	}
	if st.phase != PhaseCharacterSelect || st.character == "" {
		return ErrInvalidPhase
	}
	st.phase = PhaseLobby
	s.send(studentID, protocol.EvtLobbyJoined, protocol.LobbyJoined{
		StudentID: studentID,
		Character: st.character,
	})
	s.broadcast(protocol.EvtLobbyUpdate, protocol.LobbyUpdate{Members: s.lobbyLocked()})
	return nil
}

// StartCards begins the card phase for everyone currently joined (the
// teacher triggers this over HTTP). Students without a character get one
// auto-assigned. Everyone joining afterwards is a late joiner.
func (s *Session) StartCards() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.started {
		return nil
	}
	s.started = true
	s.reg.persist("mark_session", func(ctx context.Context) error {
		return s.reg.db.MarkSessionStatus(ctx, s.Code, "in_progress")
	})
	for _, st := range s.students {
		switch st.phase {
		case PhaseLobby:
			st.phase = PhaseCards
			s.send(st.studentID, protocol.EvtStartCardPhase, protocol.StartCardPhase{
				Questions: s.questionViews(),
				Damage:    st.damage,
			})
		case PhaseCharacterSelect:
			s.fastForwardLocked(st)
		}
	}
	log.Info().Str("session_code", s.Code).Int("students", len(s.students)).Msg("card phase started")
	return nil
}

// CardAnswered grades one answer. Re-answering an already-graded question
// is idempotent: the original result is replayed and damage does not move.
func (s *Session) CardAnswered(studentID, questionID string, option int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.studentLocked(studentID)
	if err != nil {
		return err
	}
	if st.phase != PhaseCards {
		return ErrInvalidPhase
	}
	q, ok := s.byQID[questionID]
	if !ok {
		return ErrUnknownQuestion
	}

	wasCorrect, seen := st.answered[questionID]
	if !seen {
		wasCorrect = option == q.CorrectOption
		st.answered[questionID] = wasCorrect
		if wasCorrect {
			st.correct++
			st.damage += s.reg.cfg.DamagePerCorrect
		}
	}
	s.send(studentID, protocol.EvtCardResult, protocol.CardResult{
		QuestionID:    questionID,
		IsCorrect:     wasCorrect,
		CurrentDamage: st.damage,
	})

	if len(st.answered) == len(s.questions) {
		st.phase = PhaseCardsComplete
		s.send(studentID, protocol.EvtCardsComplete, protocol.CardsComplete{
			Damage:  st.damage,
			Correct: st.correct,
		})
		// Completion feeds matchmaking directly; enter-queue from the
		// client is accepted but redundant.
		s.enqueueLocked(st)
	}
	return nil
}

// EnterQueue is idempotent: an already-queued student just gets their
// position again.
func (s *Session) EnterQueue(studentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.studentLocked(studentID)
	if err != nil {
		return err
	}
	switch st.phase {
	case PhaseQueued:
		s.send(studentID, protocol.EvtQueueJoined, protocol.QueueJoined{
			Position: s.queue.Position(studentID),
		})
		return nil
	case PhaseCardsComplete:
		s.enqueueLocked(st)
		return nil
	default:
		return ErrInvalidPhase
	}
}

func (s *Session) enqueueLocked(st *studentState) {
	if !s.queue.Enqueue(st.studentID) {
		return
	}
	st.phase = PhaseQueued
	s.send(st.studentID, protocol.EvtQueueJoined, protocol.QueueJoined{
		Position: s.queue.Position(st.studentID),
	})
	s.tryPairLocked()
}

// tryPairLocked drains the queue two at a time. The earlier entrant is
// seat 0 (player1), which also decides HP ties at timeout.
func (s *Session) tryPairLocked() {
	for {
		id1, id2, ok := s.queue.Pair()
		if !ok {
			return
		}
		st1, st2 := s.students[id1], s.students[id2]
		m := match.New(s.Code, s.playerState(st1), s.playerState(st2), s.reg.rules,
			matchSender{code: s.Code, reg: s.reg}, s.matchEnded)
		s.matches[m.ID] = m
		s.matchOf[id1] = m
		s.matchOf[id2] = m
		st1.phase = PhaseInMatch
		st2.phase = PhaseInMatch
		log.Info().Str("session_code", s.Code).Str("match_id", m.ID).
			Str("player1", id1).Str("player2", id2).Msg("match paired")
		m.Start()
		// A student who dropped while queued keeps their spot and can be
		// paired here. The coordinator has to hear about the disconnect or
		// the match would wait on a ready that never comes.
		for _, st := range [2]*studentState{st1, st2} {
			if !st.connected {
				_ = m.Disconnected(st.studentID)
			}
		}
	}
}

func (s *Session) playerState(st *studentState) *game.PlayerState {
	return &game.PlayerState{
		StudentID: st.studentID,
		Nickname:  st.nickname,
		Character: st.character,
		Damage:    st.damage,
		Correct:   st.correct,
	}
}

// matchEnded runs on the coordinator goroutine after the match closes. The
// loser is eliminated; a surviving winner goes back into the queue. When no
// matches remain and only the sole queued survivor is left standing, the
// tournament is over.
func (s *Session) matchEnded(res match.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.matches, res.MatchID)
	delete(s.matchOf, res.WinnerID)
	delete(s.matchOf, res.LoserID)

	s.queue.Eliminate(res.LoserID)
	if loser := s.students[res.LoserID]; loser != nil {
		loser.phase = PhaseEliminated
	}
	s.persistResult(res)

	winner := s.students[res.WinnerID]
	if winner == nil || s.closed {
		return
	}
	winner.phase = PhaseCardsComplete
	s.enqueueLocked(winner)

	if len(s.matches) > 0 || s.queue.Len() != 1 {
		return
	}
	// Someone still working through the cards keeps the bracket open.
	for _, st := range s.students {
		switch st.phase {
		case PhaseCharacterSelect, PhaseLobby, PhaseCards, PhaseCardsComplete:
			return
		}
	}
	champ, ok := s.queue.Peek()
	if !ok || champ != res.WinnerID {
		return
	}
	s.crownLocked(winner, res)
}

func (s *Session) crownLocked(winner *studentState, res match.Result) {
	winner.phase = PhaseChampion
	var summary game.Summary
	for _, sum := range res.Summaries {
		if sum.StudentID == winner.studentID {
			summary = sum
		}
	}
	s.broadcast(protocol.EvtTournamentEnd, protocol.TournamentEnd{
		SessionCode: s.Code,
		WinnerID:    winner.studentID,
		Winner:      summary,
	})
	s.reg.persist("tournament_result", func(ctx context.Context) error {
		if err := s.reg.db.RecordTournamentResult(ctx, s.Code, winner.studentID, winner.nickname); err != nil {
			return err
		}
		return s.reg.db.MarkSessionStatus(ctx, s.Code, "finished")
	})
	log.Info().Str("session_code", s.Code).Str("winner", winner.studentID).Msg("tournament end")
}

func (s *Session) persistResult(res match.Result) {
	s.reg.persist("match_result", func(ctx context.Context) error {
		return s.reg.db.RecordMatchResult(ctx, store.MatchResult{
			ID:          res.MatchID,
			SessionCode: res.SessionCode,
			WinnerID:    res.WinnerID,
			LoserID:     res.LoserID,
			Outcome:     string(res.Outcome),
			Rounds:      res.Rounds,
			Player1:     toPlayerResult(res.Summaries[0]),
			Player2:     toPlayerResult(res.Summaries[1]),
			EndedAt:     time.Now().UTC(),
		})
	})
}

func toPlayerResult(sum game.Summary) store.PlayerResult {
	return store.PlayerResult{
		StudentID:      sum.StudentID,
		Correct:        sum.Correct,
		DamageDealt:    sum.DamageDealt,
		DamageReceived: sum.DamageReceived,
		Placement:      sum.Placement,
	}
}

// Match routing. The gateway resolves the student's current match and
// forwards; a stale matchId is rejected rather than silently dropped.

func (s *Session) matchFor(studentID, matchID string) (*match.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.matchOf[studentID]
	if m == nil || m.ID != matchID {
		return nil, ErrUnknownMatch
	}
	return m, nil
}

func (s *Session) RoundReady(studentID, matchID string) error {
	m, err := s.matchFor(studentID, matchID)
	if err != nil {
		return err
	}
	return m.Ready(studentID)
}

func (s *Session) PlayerMove(studentID, matchID string, x float64) error {
	m, err := s.matchFor(studentID, matchID)
	if err != nil {
		return err
	}
	return m.Move(studentID, x)
}

func (s *Session) SpellCast(studentID, matchID, spellType, direction string) error {
	m, err := s.matchFor(studentID, matchID)
	if err != nil {
		return err
	}
	typ := game.SpellType(spellType)
	if !game.ValidSpellType(typ) {
		return game.ErrUnknownSpell
	}
	dir := game.DirRight
	if direction == string(game.DirLeft) {
		dir = game.DirLeft
	}
	return m.Cast(studentID, typ, dir)
}

func (s *Session) SpellHit(studentID, matchID, spellID, hitPlayerID string) error {
	m, err := s.matchFor(studentID, matchID)
	if err != nil {
		return err
	}
	return m.Hit(studentID, spellID, hitPlayerID)
}

// Disconnect marks the student gone. In a match this opens the reconnect
// grace window; in the queue the student keeps their spot until the window
// would matter (pairing still works if they return in time).
func (s *Session) Disconnect(studentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.students[studentID]
	if st == nil {
		return
	}
	st.connected = false
	if m := s.matchOf[studentID]; m != nil {
		_ = m.Disconnected(studentID)
	}
	if st.phase == PhaseLobby {
		s.broadcast(protocol.EvtLobbyUpdate, protocol.LobbyUpdate{Members: s.lobbyLocked()})
	}
	log.Debug().Str("session_code", s.Code).Str("student_id", studentID).Msg("student disconnected")
}

// Standing is one row of the session standings endpoint.
type Standing struct {
	StudentID string `json:"studentId"`
	Nickname  string `json:"nickname"`
	Character string `json:"character"`
	Phase     Phase  `json:"phase"`
	Damage    int    `json:"damage"`
	Correct   int    `json:"correctAnswers"`
	Connected bool   `json:"connected"`
}

func (s *Session) Standings() []Standing {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Standing, 0, len(s.students))
	for _, st := range s.students {
		out = append(out, Standing{
			StudentID: st.studentID,
			Nickname:  st.nickname,
			Character: st.character,
			Phase:     st.phase,
			Damage:    st.damage,
			Correct:   st.correct,
			Connected: st.connected,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out
}

func (s *Session) shutdown() {
	s.mu.Lock()
	s.closed = true
	matches := make([]*match.Match, 0, len(s.matches))
	for _, m := range s.matches {
		matches = append(matches, m)
	}
	s.mu.Unlock()
	for _, m := range matches {
		m.Stop()
	}
}

func (s *Session) studentLocked(studentID string) (*studentState, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	st, ok := s.students[studentID]
	if !ok {
		return nil, ErrUnknownStudent
	}
	return st, nil
}

func (s *Session) takenLocked() map[string]string {
	taken := make(map[string]string, len(s.characters))
	for c, id := range s.characters {
		taken[c] = id
	}
	return taken
}

func (s *Session) lobbyLocked() []protocol.LobbyMember {
	members := make([]protocol.LobbyMember, 0, len(s.students))
	for _, st := range s.students {
		if st.phase != PhaseLobby {
			continue
		}
		status := "ready"
		if !st.connected {
			status = "away"
		}
		members = append(members, protocol.LobbyMember{
			StudentID: st.studentID,
			Nickname:  st.nickname,
			Character: st.character,
			Status:    status,
		})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].StudentID < members[j].StudentID })
	return members
}

func (s *Session) questionViews() []protocol.QuestionView {
	views := make([]protocol.QuestionView, len(s.questions))
	for i, q := range s.questions {
		views[i] = protocol.QuestionView{ID: q.ID, Prompt: q.Prompt, Options: q.Options}
	}
	return views
}

func validCharacter(c string) bool {
	for _, known := range Characters {
		if known == c {
			return true
		}
	}
	return false
}

// matchSender narrows the session-wide sender to one session code for the
// match coordinator.
type matchSender struct {
	code string
	reg  *Registry
}

func (ms matchSender) Send(studentID, event string, payload any) {
	if ms.reg.sender == nil {
		return
	}
	ms.reg.sender.Send(ms.code, studentID, event, payload)
}
