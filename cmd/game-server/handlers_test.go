package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"quiz-arena/internal/config"
	"quiz-arena/internal/mcpserver"
	"quiz-arena/internal/session"
	"quiz-arena/internal/testutil"
	"quiz-arena/internal/ws"
)

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{
		CardCount:        3,
		BaseDamage:       5,
		DamagePerCorrect: 5,
		StartingHP:       200,
		MaxRounds:        3,
		RoundDurationSec: 60,
	}
}

func TestSessionEndpoints(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()

	cfg := testServerConfig()
	registry := session.NewRegistry(cfg, st, nil)
	gateway := ws.NewServer(registry)
	router := newRouter(st, cfg, registry, gateway, mcpserver.New(st, registry))
	srv := httptest.NewServer(router)
	defer srv.Close()

	body := `{
		"sessionCode": "HTTP01",
		"questions": [
			{"prompt": "2+2?", "options": ["3", "4"], "correctOption": 1},
			{"prompt": "capital of France?", "options": ["Paris", "Lyon"], "correctOption": 0}
		],
		"roster": [{"studentId": "s1", "nickname": "ana"}]
	}`
	resp, err := http.Post(srv.URL+"/api/sessions", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	resp.Body.Close()

	// Duplicate create conflicts.
	resp, err = http.Post(srv.URL+"/api/sessions", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("create again: %v", err)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate create status = %d, want 409", resp.StatusCode)
	}
	resp.Body.Close()

	// A session without questions cannot start.
	resp, err = http.Post(srv.URL+"/api/sessions", "application/json",
		strings.NewReader(`{"sessionCode": "NOQ001"}`))
	if err != nil {
		t.Fatalf("create noq: %v", err)
	}
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("questionless create status = %d, want 422", resp.StatusCode)
	}
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/sessions/HTTP01/standings")
	if err != nil {
		t.Fatalf("standings: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("standings status = %d", resp.StatusCode)
	}
	var standings struct {
		SessionCode string `json:"sessionCode"`
		Standings   []any  `json:"standings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&standings); err != nil {
		t.Fatalf("decode standings: %v", err)
	}
	resp.Body.Close()
	if standings.SessionCode != "HTTP01" {
		t.Fatalf("standings payload = %+v", standings)
	}

	resp, err = http.Post(srv.URL+"/api/sessions/HTTP01/start", "application/json", nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/sessions/HTTP01/results")
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("results status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/sessions/HTTP01/tournament")
	if err != nil {
		t.Fatalf("tournament: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("tournament status = %d, want 404 before a winner", resp.StatusCode)
	}
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAdminAuthGatesMutations(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()

	cfg := testServerConfig()
	cfg.AdminAPIKey = "sekrit"
	registry := session.NewRegistry(cfg, st, nil)
	gateway := ws.NewServer(registry)
	router := newRouter(st, cfg, registry, gateway, mcpserver.New(st, registry))
	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/sessions", "application/json",
		strings.NewReader(`{"sessionCode": "AUTH01"}`))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated create status = %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()

	// Reads stay open.
	resp, err = http.Get(srv.URL + "/api/sessions")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}
