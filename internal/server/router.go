package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/petrorag/petrorag/internal/api/handlers"
	"github.com/petrorag/petrorag/internal/api/middleware"
)

type RouterConfig struct {
	QueryHandler *handlers.QueryHandler
	Logger       *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1 << 20

	r.Use(middleware.RequestID)
	r.Use(middleware.SessionID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", cfg.QueryHandler.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/query", cfg.QueryHandler.Query)
		r.Post("/clear-memory", cfg.QueryHandler.ClearMemory)
	})

	return r
}
