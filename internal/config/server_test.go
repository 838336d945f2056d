package config

import (
	"testing"
	"time"
)

func TestLoadServerDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost:5432/arena?sslmode=disable")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.CardCount != 3 {
		t.Fatalf("CardCount = %d, want 3", cfg.CardCount)
	}
	if cfg.BaseDamage != 5 || cfg.DamagePerCorrect != 5 {
		t.Fatalf("damage defaults = %d/%d, want 5/5", cfg.BaseDamage, cfg.DamagePerCorrect)
	}
	if cfg.StartingHP != 200 {
		t.Fatalf("StartingHP = %d, want 200", cfg.StartingHP)
	}
	if cfg.ReconnectGrace() != 30*time.Second {
		t.Fatalf("ReconnectGrace = %v, want 30s", cfg.ReconnectGrace())
	}
}

func TestLoadServerRequiresPostgresDSN(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")

	_, err := LoadServer()
	if err == nil {
		t.Fatal("LoadServer() expected error, got nil")
	}
}

func TestLoadServerParseTypes(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost:5432/arena?sslmode=disable")
	t.Setenv("ROUND_DURATION_SECONDS", "15")
	t.Setenv("SPELL_SPEED", "450.5")
	t.Setenv("MAX_ROUNDS", "5")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if cfg.RoundDuration() != 15*time.Second {
		t.Fatalf("RoundDuration = %v, want 15s", cfg.RoundDuration())
	}
	if cfg.SpellSpeed != 450.5 {
		t.Fatalf("SpellSpeed = %v, want 450.5", cfg.SpellSpeed)
	}
	if cfg.MaxRounds != 5 {
		t.Fatalf("MaxRounds = %d, want 5", cfg.MaxRounds)
	}
}
