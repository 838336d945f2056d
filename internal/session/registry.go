// Package session owns the per-session lifecycle: character selection, the
// lobby, the card phase, the matchmaking queue and tournament bookkeeping.
// Match runtime lives in the match package; the registry wires finished
// matches back into the queue until one champion remains.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"quiz-arena/internal/config"
	"quiz-arena/internal/game"
	"quiz-arena/internal/store"
)

// Sender delivers one event to one student of one session. The websocket
// gateway implements it; broadcasts are loops over connected students.
type Sender interface {
	Send(sessionCode, studentID, event string, payload any)
}

// Storage is the slice of the store the registry needs. *store.Store
// satisfies it.
type Storage interface {
	CreateSession(ctx context.Context, code string) error
	MarkSessionStatus(ctx context.Context, code, status string) error
	AddStudent(ctx context.Context, st store.Student) error
	Roster(ctx context.Context, code string) ([]store.Student, error)
	Questions(ctx context.Context, code string) ([]store.Question, error)
	RecordMatchResult(ctx context.Context, r store.MatchResult) error
	RecordTournamentResult(ctx context.Context, code, winnerID, nickname string) error
}

type Registry struct {
	cfg    config.ServerConfig
	rules  game.Rules
	sender Sender
	db     Storage

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(cfg config.ServerConfig, db Storage, sender Sender) *Registry {
	r := &Registry{
		cfg: cfg,
		rules: game.Rules{
			StartingHP:     cfg.StartingHP,
			MaxRounds:      cfg.MaxRounds,
			RoundDuration:  cfg.RoundDuration(),
			ReconnectGrace: cfg.ReconnectGrace(),
			SpellCooldown:  cfg.SpellCooldown(),
			SpellTTL:       cfg.SpellTTL(),
			SpellSpeed:     cfg.SpellSpeed,
			HitTolerance:   cfg.HitTolerance,
			ArenaWidth:     cfg.ArenaWidth,
		},
		sender:   sender,
		db:       db,
		sessions: map[string]*Session{},
	}
	return r
}

// Create loads the question bank and roster and opens the session for
// joins. An unavailable question bank is fatal: the session does not start.
// An empty roster is not: students may register ad hoc when they join.
func (r *Registry) Create(ctx context.Context, code string) (*Session, error) {
	r.mu.Lock()
	if _, ok := r.sessions[code]; ok {
		r.mu.Unlock()
		return nil, ErrSessionExists
	}
	r.mu.Unlock()

	if err := r.db.CreateSession(ctx, code); err != nil {
		return nil, err
	}
	questions, err := r.db.Questions(ctx, code)
	if err != nil {
		log.Error().Err(err).Str("session_code", code).Msg("question bank unavailable")
		return nil, ErrQuestionBank
	}
	if len(questions) > r.cfg.CardCount {
		questions = questions[:r.cfg.CardCount]
	}

	roster, err := r.db.Roster(ctx, code)
	if err != nil && err != store.ErrNotFound {
		log.Error().Err(err).Str("session_code", code).Msg("roster unavailable")
		return nil, ErrRoster
	}

	s := newSession(r, code, questions, roster)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[code]; ok {
		return nil, ErrSessionExists
	}
	r.sessions[code] = s
	log.Info().Str("session_code", code).Int("questions", len(questions)).
		Int("roster", len(roster)).Msg("session created")
	return s, nil
}

// SetSender wires the gateway in after construction; the gateway needs the
// registry to route inbound frames and the registry needs the gateway to
// push events back out.
func (r *Registry) SetSender(sender Sender) {
	r.sender = sender
}

func (r *Registry) Get(code string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[code]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close tears a session down: aborts running matches and drops it from the
// registry. Used by admin shutdown.
func (r *Registry) Close(code string) error {
	r.mu.Lock()
	s, ok := r.sessions[code]
	delete(r.sessions, code)
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.shutdown()
	return nil
}

func (r *Registry) Codes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	codes := make([]string, 0, len(r.sessions))
	for code := range r.sessions {
		codes = append(codes, code)
	}
	return codes
}

// persist runs a store write off the hot path. Persistence failures are
// logged, never surfaced to gameplay.
func (r *Registry) persist(what string, f func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := f(ctx); err != nil {
			log.Error().Err(err).Str("op", what).Msg("persist failed")
		}
	}()
}
