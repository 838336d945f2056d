package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"quiz-arena/internal/session"
	"quiz-arena/internal/store"
)

type createSessionRequest struct {
	SessionCode string `json:"sessionCode"`
	Questions   []struct {
		Prompt        string   `json:"prompt"`
		Options       []string `json:"options"`
		CorrectOption int      `json:"correctOption"`
	} `json:"questions"`
	Roster []struct {
		StudentID string `json:"studentId"`
		Nickname  string `json:"nickname"`
	} `json:"roster"`
}

// createSessionHandler seeds the question bank and roster, then opens the
// session for websocket joins.
func createSessionHandler(st *store.Store, registry *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionCode == "" {
			writeHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		if err := st.CreateSession(r.Context(), req.SessionCode); err != nil {
			writeHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		for i, q := range req.Questions {
			_, err := st.AddQuestion(r.Context(), store.Question{
				SessionCode:   req.SessionCode,
				Prompt:        q.Prompt,
				Options:       q.Options,
				CorrectOption: q.CorrectOption,
				Ord:           i + 1,
			})
			if err != nil {
				writeHTTPError(w, http.StatusInternalServerError, "internal_error")
				return
			}
		}
		for _, s := range req.Roster {
			err := st.AddStudent(r.Context(), store.Student{
				StudentID:   s.StudentID,
				SessionCode: req.SessionCode,
				Nickname:    s.Nickname,
			})
			if err != nil {
				writeHTTPError(w, http.StatusInternalServerError, "internal_error")
				return
			}
		}

		if _, err := registry.Create(r.Context(), req.SessionCode); err != nil {
			switch {
			case errors.Is(err, session.ErrSessionExists):
				writeHTTPError(w, http.StatusConflict, err.Error())
			case errors.Is(err, session.ErrQuestionBank), errors.Is(err, session.ErrRoster):
				writeHTTPError(w, http.StatusUnprocessableEntity, err.Error())
			default:
				writeHTTPError(w, http.StatusInternalServerError, "internal_error")
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"sessionCode": req.SessionCode})
	}
}

func startSessionHandler(registry *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := registry.Get(chi.URLParam(r, "code"))
		if err != nil {
			writeHTTPError(w, http.StatusNotFound, err.Error())
			return
		}
		if err := sess.StartCards(); err != nil {
			writeHTTPError(w, http.StatusConflict, err.Error())
			return
		}
		writeJSON(w, map[string]any{"ok": true})
	}
}

func closeSessionHandler(registry *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := registry.Close(chi.URLParam(r, "code")); err != nil {
			writeHTTPError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, map[string]any{"ok": true})
	}
}

func listSessionsHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, err := st.ListSessions(r.Context())
		if err != nil {
			writeHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		writeJSON(w, map[string]any{"sessions": sessions})
	}
}

func standingsHandler(registry *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := registry.Get(chi.URLParam(r, "code"))
		if err != nil {
			writeHTTPError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, map[string]any{
			"sessionCode": sess.Code,
			"standings":   sess.Standings(),
		})
	}
}

func resultsHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		matches, err := st.ListRecentMatches(r.Context(), chi.URLParam(r, "code"), limit)
		if err != nil {
			writeHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		writeJSON(w, map[string]any{"matches": matches})
	}
}

func tournamentHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := st.GetTournamentResult(r.Context(), chi.URLParam(r, "code"))
		if errors.Is(err, store.ErrNotFound) {
			writeHTTPError(w, http.StatusNotFound, "not_found")
			return
		}
		if err != nil {
			writeHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		writeJSON(w, result)
	}
}

func healthHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			writeJSON(w, map[string]any{"ok": false, "db": "down"})
			return
		}
		writeJSON(w, map[string]any{"ok": true, "db": "up"})
	}
}

// adminAuthMiddleware gates mutating session endpoints. With no key
// configured the endpoints are open, which is the classroom default.
func adminAuthMiddleware(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey != "" && r.Header.Get("X-Admin-Key") != adminKey {
				writeHTTPError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
