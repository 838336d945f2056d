package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"quiz-arena/internal/config"
	"quiz-arena/internal/logging"
	"quiz-arena/internal/mcpserver"
	"quiz-arena/internal/session"
	"quiz-arena/internal/store"
	"quiz-arena/internal/ws"
)

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)
	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatal().Err(err).Msg("load server config failed")
	}

	st, err := store.New(cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	if err := st.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("db ping failed")
	}

	registry := session.NewRegistry(cfg, st, nil)
	gateway := ws.NewServer(registry)
	mcpSrv := mcpserver.New(st, registry)

	r := newRouter(st, cfg, registry, gateway, mcpSrv)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
	log.Fatal().Err(server.ListenAndServe()).Msg("server stopped")
}

func newRouter(st *store.Store, cfg config.ServerConfig, registry *session.Registry, gateway *ws.Server, mcpSrv *mcpserver.Server) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(apiLogMiddleware()).Get("/healthz", healthHandler(st))
	r.Get("/ws", gateway.HandleWS)
	r.Handle("/mcp", mcpSrv.Handler())
	r.Handle("/mcp/*", mcpSrv.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(apiLogMiddleware())
		r.Get("/sessions", listSessionsHandler(st))
		r.Get("/sessions/{code}/standings", standingsHandler(registry))
		r.Get("/sessions/{code}/results", resultsHandler(st))
		r.Get("/sessions/{code}/tournament", tournamentHandler(st))

		r.Group(func(r chi.Router) {
			r.Use(adminAuthMiddleware(cfg.AdminAPIKey))
			r.Post("/sessions", createSessionHandler(st, registry))
			r.Post("/sessions/{code}/start", startSessionHandler(registry))
			r.Delete("/sessions/{code}", closeSessionHandler(registry))
		})
	})
	return r
}
