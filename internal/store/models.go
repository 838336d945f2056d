package store

import "time"

type Session struct {
	Code      string
	Status    string
	CreatedAt time.Time
}

type Student struct {
	StudentID   string
	SessionCode string
	Nickname    string
}

type Question struct {
	ID            string
	SessionCode   string
	Prompt        string
	Options       []string
	CorrectOption int
	Ord           int
}

// PlayerResult holds one player's side of a finished match.
type PlayerResult struct {
	StudentID      string
	Correct        int
	DamageDealt    int
	DamageReceived int
	Placement      int
}

type MatchResult struct {
	ID          string
	SessionCode string
	WinnerID    string
	LoserID     string
	Outcome     string
	Rounds      int
	Player1     PlayerResult
	Player2     PlayerResult
	EndedAt     time.Time
}

type TournamentResult struct {
	SessionCode string
	WinnerID    string
	Nickname    string
	EndedAt     time.Time
}
