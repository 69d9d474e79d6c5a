// Package web exposes the catalog query and scrape control HTTP API.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"coopgames/internal/model"
	"coopgames/internal/scheduler"
)

// Store is the persistence surface the handlers read from.
type Store interface {
	QueryGames(ctx context.Context, criteria model.FilterCriteria, weights model.ScoringWeights, page model.Pagination) ([]model.Game, int, error)
	CountGames(ctx context.Context) (int, error)
}

// Scraping controls and reports on the background pipeline.
type Scraping interface {
	Status() scheduler.Status
	TriggerScrape(ctx context.Context) error
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	store    Store
	scraping Scraping
	log      *slog.Logger
}

// New creates a Server.
func New(store Store, scraping Scraping, log *slog.Logger) *Server {
	return &Server{store: store, scraping: scraping, log: log}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/games", s.handleGames)
	r.Get("/scrape/status", s.handleScrapeStatus)
	r.Post("/scrape/start", s.handleScrapeStart)
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, map[string]string{"detail": msg})
}
