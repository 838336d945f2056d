package store_test

import (
	"context"
	"testing"

	"quiz-arena/internal/store"
	"quiz-arena/internal/testutil"
)

func TestRosterRoundTrip(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if err := st.CreateSession(ctx, "MATH01"); err != nil {
		t.Fatalf("create session: %v", err)
	}
	for _, s := range []store.Student{
		{SessionCode: "MATH01", StudentID: "s-1", Nickname: "Ada"},
		{SessionCode: "MATH01", StudentID: "s-2", Nickname: "Blaise"},
	} {
		if err := st.AddStudent(ctx, s); err != nil {
			t.Fatalf("add student %s: %v", s.StudentID, err)
		}
	}

	roster, err := st.Roster(ctx, "MATH01")
	if err != nil {
		t.Fatalf("roster: %v", err)
	}
	if len(roster) != 2 {
		t.Fatalf("roster size = %d, want 2", len(roster))
	}
	if roster[0].Nickname != "Ada" {
		t.Fatalf("roster[0] = %+v, want Ada first", roster[0])
	}

	if _, err := st.Roster(ctx, "NOPE"); err != store.ErrNotFound {
		t.Fatalf("empty roster err = %v, want ErrNotFound", err)
	}
}

func TestQuestionsKeepAnswerKeyAndOrder(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if err := st.CreateSession(ctx, "MATH01"); err != nil {
		t.Fatalf("create session: %v", err)
	}
	for i, prompt := range []string{"2+2?", "3*3?", "10/2?"} {
		q := store.Question{
			SessionCode:   "MATH01",
			Prompt:        prompt,
			Options:       []string{"1", "4", "9", "5"},
			CorrectOption: i % 4,
			Ord:           3 - i, // inserted out of order on purpose
		}
		if _, err := st.AddQuestion(ctx, q); err != nil {
			t.Fatalf("add question: %v", err)
		}
	}

	qs, err := st.Questions(ctx, "MATH01")
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(qs) != 3 {
		t.Fatalf("len = %d, want 3", len(qs))
	}
	for i := 1; i < len(qs); i++ {
		if qs[i].Ord < qs[i-1].Ord {
			t.Fatalf("questions not ordered by ord: %+v", qs)
		}
	}
	if len(qs[0].Options) != 4 {
		t.Fatalf("options not round-tripped: %+v", qs[0])
	}
}

func TestMatchAndTournamentResults(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if err := st.CreateSession(ctx, "MATH01"); err != nil {
		t.Fatalf("create session: %v", err)
	}
	r := store.MatchResult{
		SessionCode: "MATH01",
		WinnerID:    "s-1",
		LoserID:     "s-2",
		Outcome:     "knockout",
		Rounds:      2,
		Player1:     store.PlayerResult{StudentID: "s-1", Correct: 3, DamageDealt: 200, Placement: 1},
		Player2:     store.PlayerResult{StudentID: "s-2", Correct: 1, DamageReceived: 200, Placement: 2},
	}
	if err := st.RecordMatchResult(ctx, r); err != nil {
		t.Fatalf("record match: %v", err)
	}

	matches, err := st.ListRecentMatches(ctx, "MATH01", 10)
	if err != nil {
		t.Fatalf("list matches: %v", err)
	}
	if len(matches) != 1 || matches[0].WinnerID != "s-1" || matches[0].Outcome != "knockout" {
		t.Fatalf("unexpected matches: %+v", matches)
	}

	if err := st.RecordTournamentResult(ctx, "MATH01", "s-1", "Ada"); err != nil {
		t.Fatalf("record tournament: %v", err)
	}
	// Upsert keeps a single row per session.
	if err := st.RecordTournamentResult(ctx, "MATH01", "s-1", "Ada"); err != nil {
		t.Fatalf("record tournament again: %v", err)
	}
	tr, err := st.GetTournamentResult(ctx, "MATH01")
	if err != nil {
		t.Fatalf("get tournament: %v", err)
	}
	if tr.WinnerID != "s-1" || tr.Nickname != "Ada" {
		t.Fatalf("unexpected tournament result: %+v", tr)
	}
}
