// Package protocol defines the websocket message vocabulary shared by the
// gateway, the session registry, the match coordinator and client bots.
// Every frame is a JSON object carrying a "type" field plus the payload
// fields of one of the structs below.
package protocol

import "quiz-arena/internal/game"

// Client -> server message types.
const (
	MsgJoinSession       = "join-session"
	MsgCharacterSelected = "character-selected"
	MsgJoinLobby         = "join-lobby"
	MsgCardAnswered      = "card-answered"
	MsgEnterQueue        = "enter-queue"
	MsgRoundReady        = "round-ready"
	MsgPlayerMove        = "player-move"
	MsgSpellCast         = "spell-cast"
	MsgSpellHit          = "spell-hit"
)

// Server -> client event types.
const (
	EvtCharacterSelection = "character-selection"
	EvtCharacterSelected  = "character-selected"
	EvtLobbyUpdate        = "lobby-update"
	EvtLobbyJoined        = "lobby-joined"
	EvtStartCardPhase     = "start-card-phase"
	EvtCardResult         = "card-result"
	EvtCardsComplete      = "cards-complete"
	EvtQueueJoined        = "queue-joined"
	EvtMatchFound         = "match-found"
	EvtRoundStart         = "round-start"
	EvtOpponentMove       = "opponent-move"
	EvtSpellCast          = "spell-cast"
	EvtSpellHit           = "spell-hit"
	EvtRoundEnd           = "round-end"
	EvtMatchEnd           = "match-end"
	EvtTournamentEnd      = "tournament-end"
	EvtError              = "error"
)

// Client -> server payloads.

type JoinSession struct {
	SessionCode string `json:"sessionCode"`
	StudentID   string `json:"studentId"`
	Nickname    string `json:"nickname,omitempty"`
}

type CharacterSelected struct {
	Character string `json:"character"`
}

type CardAnswered struct {
	QuestionID string `json:"questionId"`
	Option     int    `json:"option"`
}

type RoundReady struct {
	MatchID string `json:"matchId"`
}

type PlayerMove struct {
	MatchID string  `json:"matchId"`
	X       float64 `json:"x"`
}

type SpellCast struct {
	MatchID   string `json:"matchId"`
	SpellType string `json:"spellType"`
	Direction string `json:"direction"`
}

type SpellHit struct {
	MatchID     string `json:"matchId"`
	SpellID     string `json:"spellId"`
	HitPlayerID string `json:"hitPlayerId"`
}

// Server -> client payloads.

type CharacterSelection struct {
	Characters []string          `json:"characters"`
	Taken      map[string]string `json:"taken"` // character -> studentId
}

type CharacterChosen struct {
	StudentID string `json:"studentId"`
	Character string `json:"character"`
}

type LobbyMember struct {
	StudentID string `json:"studentId"`
	Nickname  string `json:"nickname"`
	Character string `json:"character"`
	Status    string `json:"status"`
}

type LobbyUpdate struct {
	Members []LobbyMember `json:"members"`
}

type LobbyJoined struct {
	StudentID string `json:"studentId"`
	Character string `json:"character"`
}

// QuestionView is a question stripped of its answer key.
type QuestionView struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

type StartCardPhase struct {
	Questions []QuestionView `json:"questions"`
	Damage    int            `json:"damage"`
}

type CardResult struct {
	QuestionID    string `json:"questionId"`
	IsCorrect     bool   `json:"isCorrect"`
	CurrentDamage int    `json:"currentDamage"`
}

type CardsComplete struct {
	Damage  int `json:"damage"`
	Correct int `json:"correct"`
}

type QueueJoined struct {
	Position int `json:"position"`
}

type OpponentInfo struct {
	StudentID string `json:"studentId"`
	Nickname  string `json:"nickname"`
	Character string `json:"character"`
	Damage    int    `json:"damage"`
}

type MatchFound struct {
	MatchID    string       `json:"matchId"`
	Round      int          `json:"round"`
	StartingHP int          `json:"startingHp"`
	Opponent   OpponentInfo `json:"opponent"`
}

type RoundStart struct {
	MatchID    string `json:"matchId"`
	Round      int    `json:"round"`
	DurationMS int64  `json:"duration"`
	Player1Hp  int    `json:"player1Hp"`
	Player2Hp  int    `json:"player2Hp"`
}

type OpponentMove struct {
	MatchID   string  `json:"matchId"`
	StudentID string  `json:"studentId"`
	X         float64 `json:"x"`
}

type SpellCastEvt struct {
	MatchID string     `json:"matchId"`
	Spell   game.Spell `json:"spell"`
}

type SpellHitEvt struct {
	MatchID   string `json:"matchId"`
	SpellID   string `json:"spellId"`
	Player1Hp int    `json:"player1Hp"`
	Player2Hp int    `json:"player2Hp"`
}

type RoundEnd struct {
	MatchID   string `json:"matchId"`
	Round     int    `json:"round"`
	Player1Hp int    `json:"player1Hp"`
	Player2Hp int    `json:"player2Hp"`
}

type MatchEnd struct {
	MatchID  string         `json:"matchId"`
	WinnerID string         `json:"winnerId"`
	Outcome  string         `json:"outcome"`
	Results  []game.Summary `json:"results"`
}

type TournamentEnd struct {
	SessionCode string       `json:"sessionCode"`
	WinnerID    string       `json:"winnerId"`
	Winner      game.Summary `json:"winner"`
}

type ErrorMsg struct {
	Message string `json:"message"`
}
