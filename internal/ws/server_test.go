package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quiz-arena/internal/config"
	"quiz-arena/internal/protocol"
	"quiz-arena/internal/session"
	"quiz-arena/internal/store"
)

type stubStorage struct{}

func (stubStorage) CreateSession(context.Context, string) error { return nil }

func (stubStorage) MarkSessionStatus(context.Context, string, string) error { return nil }

func (stubStorage) AddStudent(context.Context, store.Student) error { return nil }

func (stubStorage) RecordMatchResult(context.Context, store.MatchResult) error { return nil }

func (stubStorage) RecordTournamentResult(context.Context, string, string, string) error {
	return nil
}

func (stubStorage) Roster(context.Context, string) ([]store.Student, error) {
	return nil, store.ErrNotFound
}

func (stubStorage) Questions(context.Context, string) ([]store.Question, error) {
	return []store.Question{
		{ID: "q1", Prompt: "2+2?", Options: []string{"3", "4"}, CorrectOption: 1, Ord: 1},
	}, nil
}

func newTestGateway(t *testing.T) (*httptest.Server, *session.Registry) {
	t.Helper()
	cfg := config.ServerConfig{
		CardCount:         1,
		BaseDamage:        5,
		DamagePerCorrect:  5,
		StartingHP:        200,
		MaxRounds:         3,
		RoundDurationSec:  60,
		ReconnectGraceSec: 30,
		SpellCooldownMS:   500,
		SpellTTLSec:       5,
		SpellSpeed:        300,
		HitTolerance:      48,
		ArenaWidth:        800,
	}
	reg := session.NewRegistry(cfg, stubStorage{}, nil)
	srv := NewServer(reg)
	ts := httptest.NewServer(http.HandlerFunc(srv.HandleWS))
	t.Cleanup(ts.Close)
	return ts, reg
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn, wantType string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	_ = conn.SetReadDeadline(deadline)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read waiting for %s: %v", wantType, err)
		}
		var m map[string]any
		if err := json.Unmarshal(msg, &m); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if m["type"] == wantType {
			return m
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, v map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestJoinUnknownSessionRejected(t *testing.T) {
	ts, _ := newTestGateway(t)
	conn := dial(t, ts)
	send(t, conn, map[string]any{"type": "join-session", "sessionCode": "NOPE", "studentId": "s1"})
	frame := readFrame(t, conn, "error")
	if frame["message"] != "session_not_found" {
		t.Fatalf("message = %v, want session_not_found", frame["message"])
	}
}

func TestActionBeforeJoinRejected(t *testing.T) {
	ts, _ := newTestGateway(t)
	conn := dial(t, ts)
	send(t, conn, map[string]any{"type": "enter-queue"})
	frame := readFrame(t, conn, "error")
	if frame["message"] != "join_required" {
		t.Fatalf("message = %v, want join_required", frame["message"])
	}
}

func TestJoinAndCharacterConflictOverWire(t *testing.T) {
	ts, reg := newTestGateway(t)
	if _, err := reg.Create(context.Background(), "ABC123"); err != nil {
		t.Fatalf("create session: %v", err)
	}

	c1 := dial(t, ts)
	send(t, c1, map[string]any{"type": "join-session", "sessionCode": "ABC123", "studentId": "s1", "nickname": "ana"})
	sel := readFrame(t, c1, protocol.EvtCharacterSelection)
	if _, ok := sel["characters"].([]any); !ok {
		t.Fatalf("characters missing: %v", sel)
	}

	send(t, c1, map[string]any{"type": "character-selected", "character": "wizard"})
	readFrame(t, c1, protocol.EvtCharacterSelected)

	c2 := dial(t, ts)
	send(t, c2, map[string]any{"type": "join-session", "sessionCode": "ABC123", "studentId": "s2"})
	readFrame(t, c2, protocol.EvtCharacterSelection)
	send(t, c2, map[string]any{"type": "character-selected", "character": "wizard"})
	frame := readFrame(t, c2, "error")
	if frame["message"] != "character_taken" {
		t.Fatalf("message = %v, want character_taken", frame["message"])
	}
}

// A socket is bound to one (session, student) pair for its lifetime; a
// re-join under another identity must not rebind it.
func TestRejoinWithDifferentIdentityRejected(t *testing.T) {
	ts, reg := newTestGateway(t)
	if _, err := reg.Create(context.Background(), "ABC123"); err != nil {
		t.Fatalf("create session: %v", err)
	}

	conn := dial(t, ts)
	send(t, conn, map[string]any{"type": "join-session", "sessionCode": "ABC123", "studentId": "s1"})
	readFrame(t, conn, protocol.EvtCharacterSelection)

	send(t, conn, map[string]any{"type": "join-session", "sessionCode": "OTHER1", "studentId": "s1"})
	frame := readFrame(t, conn, "error")
	if frame["message"] != "already_joined" {
		t.Fatalf("message = %v, want already_joined", frame["message"])
	}

	// The original binding still routes.
	send(t, conn, map[string]any{"type": "character-selected", "character": "wizard"})
	readFrame(t, conn, protocol.EvtCharacterSelected)
}

func TestEncodeInjectsType(t *testing.T) {
	frame, err := encode(protocol.EvtQueueJoined, protocol.QueueJoined{Position: 2})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(frame, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["type"] != protocol.EvtQueueJoined || m["position"] != float64(2) {
		t.Fatalf("frame = %v", m)
	}
}
