package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

func (s *Store) CreateSession(ctx context.Context, code string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO sessions (code, status) VALUES ($1, 'active')
		 ON CONFLICT (code) DO UPDATE SET status = 'active'`, code)
	return err
}

func (s *Store) MarkSessionStatus(ctx context.Context, code, status string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE sessions SET status = $1 WHERE code = $2`, status, code)
	return err
}

func (s *Store) GetSession(ctx context.Context, code string) (*Session, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT code, status, created_at FROM sessions WHERE code = $1`, code)
	var sess Session
	if err := row.Scan(&sess.Code, &sess.Status, &sess.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sess, nil
}

func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT code, status, created_at FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.Code, &sess.Status, &sess.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *Store) AddStudent(ctx context.Context, st Student) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO students (session_code, student_id, nickname) VALUES ($1,$2,$3)
		 ON CONFLICT (session_code, student_id) DO UPDATE SET nickname = $3`,
		st.SessionCode, st.StudentID, st.Nickname)
	return err
}

// Roster returns the authorized students for a session code.
func (s *Store) Roster(ctx context.Context, code string) ([]Student, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT student_id, nickname FROM students WHERE session_code = $1 ORDER BY nickname`, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Student
	for rows.Next() {
		st := Student{SessionCode: code}
		if err := rows.Scan(&st.StudentID, &st.Nickname); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func (s *Store) AddQuestion(ctx context.Context, q Question) (string, error) {
	id := q.ID
	if id == "" {
		id = NewID()
	}
	opts, err := json.Marshal(q.Options)
	if err != nil {
		return "", err
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO questions (id, session_code, prompt, options, correct_option, ord)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		id, q.SessionCode, q.Prompt, opts, q.CorrectOption, q.Ord)
	return id, err
}

// Questions returns the fixed question set for a session, with the answer key.
func (s *Store) Questions(ctx context.Context, code string) ([]Question, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, prompt, options, correct_option, ord FROM questions
		 WHERE session_code = $1 ORDER BY ord`, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Question
	for rows.Next() {
		q := Question{SessionCode: code}
		var opts []byte
		if err := rows.Scan(&q.ID, &q.Prompt, &opts, &q.CorrectOption, &q.Ord); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(opts, &q.Options); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func (s *Store) RecordMatchResult(ctx context.Context, r MatchResult) error {
	id := r.ID
	if id == "" {
		id = NewID()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO match_results
		   (id, session_code, winner_id, loser_id, outcome, rounds,
		    p1_id, p1_correct, p1_damage_dealt, p1_damage_received, p1_placement,
		    p2_id, p2_correct, p2_damage_dealt, p2_damage_received, p2_placement)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		id, r.SessionCode, r.WinnerID, r.LoserID, r.Outcome, r.Rounds,
		r.Player1.StudentID, r.Player1.Correct, r.Player1.DamageDealt, r.Player1.DamageReceived, r.Player1.Placement,
		r.Player2.StudentID, r.Player2.Correct, r.Player2.DamageDealt, r.Player2.DamageReceived, r.Player2.Placement)
	return err
}

func (s *Store) ListRecentMatches(ctx context.Context, code string, limit int) ([]MatchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, session_code, winner_id, loser_id, outcome, rounds,
		        p1_id, p1_correct, p1_damage_dealt, p1_damage_received, p1_placement,
		        p2_id, p2_correct, p2_damage_dealt, p2_damage_received, p2_placement,
		        ended_at
		 FROM match_results WHERE session_code = $1 ORDER BY ended_at DESC LIMIT $2`,
		code, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MatchResult
	for rows.Next() {
		var r MatchResult
		if err := rows.Scan(&r.ID, &r.SessionCode, &r.WinnerID, &r.LoserID, &r.Outcome, &r.Rounds,
			&r.Player1.StudentID, &r.Player1.Correct, &r.Player1.DamageDealt, &r.Player1.DamageReceived, &r.Player1.Placement,
			&r.Player2.StudentID, &r.Player2.Correct, &r.Player2.DamageDealt, &r.Player2.DamageReceived, &r.Player2.Placement,
			&r.EndedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) RecordTournamentResult(ctx context.Context, code, winnerID, nickname string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO tournament_results (session_code, winner_id, nickname)
		 VALUES ($1,$2,$3)
		 ON CONFLICT (session_code) DO UPDATE SET winner_id = $2, nickname = $3, ended_at = now()`,
		code, winnerID, nickname)
	return err
}

func (s *Store) GetTournamentResult(ctx context.Context, code string) (*TournamentResult, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT session_code, winner_id, nickname, ended_at FROM tournament_results WHERE session_code = $1`, code)
	var r TournamentResult
	if err := row.Scan(&r.SessionCode, &r.WinnerID, &r.Nickname, &r.EndedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}
