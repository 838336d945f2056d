package game

import "time"

// State is the phase of a single match.
type State string

const (
	StateAwaitingReady   State = "awaiting_ready"
	StateRoundInProgress State = "round_in_progress"
	StateRoundEnd        State = "round_end"
	StateMatchEnd        State = "match_end"
)

// Outcome distinguishes how a match concluded. A forfeit is not a knockout:
// the loser disconnected, they were not reduced to zero HP.
type Outcome string

const (
	OutcomeKnockout Outcome = "knockout"
	OutcomeTimeout  Outcome = "timeout"
	OutcomeForfeit  Outcome = "forfeit"
)

type SpellType string

const (
	SpellFire SpellType = "fire"
	SpellIce  SpellType = "ice"
	SpellBolt SpellType = "bolt"
)

func ValidSpellType(t SpellType) bool {
	switch t {
	case SpellFire, SpellIce, SpellBolt:
		return true
	}
	return false
}

type Direction string

const (
	DirLeft  Direction = "left"
	DirRight Direction = "right"
)

func (d Direction) sign() float64 {
	if d == DirLeft {
		return -1
	}
	return 1
}

// Spell is a canonical, server-issued spell instance.
type Spell struct {
	ID        string    `json:"id"`
	CasterID  string    `json:"casterId"`
	Type      SpellType `json:"type"`
	Direction Direction `json:"direction"`
	Origin    float64   `json:"origin"`
	CreatedAt time.Time `json:"createdAt"`
}

// PlayerState is one player's mutable in-match state. Only the match
// coordinator mutates it.
type PlayerState struct {
	StudentID string
	Nickname  string
	Character string
	Damage    int
	Correct   int

	HP             int
	X              float64
	Ready          bool
	DamageDealt    int
	DamageReceived int
	LastCastAt     time.Time
}

// Summary is one player's aggregate for match-end and tournament-end events.
type Summary struct {
	StudentID      string `json:"studentId"`
	Nickname       string `json:"nickname"`
	Correct        int    `json:"correctAnswers"`
	DamageDealt    int    `json:"damageDealt"`
	DamageReceived int    `json:"damageReceived"`
	Placement      int    `json:"placement"`
}

// Rules are the fixed parameters of every match in a session.
type Rules struct {
	StartingHP     int
	MaxRounds      int
	RoundDuration  time.Duration
	ReconnectGrace time.Duration

	SpellCooldown time.Duration
	SpellTTL      time.Duration
	SpellSpeed    float64
	HitTolerance  float64
	ArenaWidth    float64
}

func DefaultRules() Rules {
	return Rules{
		StartingHP:     200,
		MaxRounds:      3,
		RoundDuration:  60 * time.Second,
		ReconnectGrace: 30 * time.Second,
		SpellCooldown:  500 * time.Millisecond,
		SpellTTL:       5 * time.Second,
		SpellSpeed:     300,
		HitTolerance:   48,
		ArenaWidth:     800,
	}
}
