package config

import "testing"

func TestLoadBotDefaults(t *testing.T) {
	cfg, err := LoadBot()
	if err != nil {
		t.Fatalf("LoadBot() error = %v", err)
	}
	if cfg.WSURL != "ws://localhost:8080/ws" {
		t.Fatalf("WSURL = %q, want ws://localhost:8080/ws", cfg.WSURL)
	}
	if cfg.StudentID != "bot" {
		t.Fatalf("StudentID = %q, want bot", cfg.StudentID)
	}
}

func TestLoadBotOverrides(t *testing.T) {
	t.Setenv("WS_URL", "ws://127.0.0.1:9000/ws")
	t.Setenv("SESSION_CODE", "ABC123")
	t.Setenv("STUDENT_ID", "s-77")

	cfg, err := LoadBot()
	if err != nil {
		t.Fatalf("LoadBot() error = %v", err)
	}
	if cfg.WSURL != "ws://127.0.0.1:9000/ws" {
		t.Fatalf("WSURL = %q", cfg.WSURL)
	}
	if cfg.SessionCode != "ABC123" || cfg.StudentID != "s-77" {
		t.Fatalf("unexpected bot config: %+v", cfg)
	}
}
