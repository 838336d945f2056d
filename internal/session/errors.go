package session

import "errors"

// Error messages double as wire error codes in the error envelope.
var (
	ErrSessionNotFound  = errors.New("session_not_found")
	ErrSessionExists    = errors.New("session_exists")
	ErrSessionClosed    = errors.New("session_closed")
	ErrUnknownStudent   = errors.New("unknown_student")
	ErrCharacterTaken   = errors.New("character_taken")
	ErrUnknownCharacter = errors.New("unknown_character")
	ErrInvalidPhase     = errors.New("invalid_phase")
	ErrUnknownQuestion  = errors.New("unknown_question")
	ErrUnknownMatch     = errors.New("unknown_match")

	// ErrQuestionBank aborts session start: a session without a question
	// bank cannot run its card phase.
	ErrQuestionBank = errors.New("question_bank_unavailable")
	ErrRoster       = errors.New("roster_unavailable")
)
