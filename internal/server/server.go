// Package server exposes the practice engine as a JSON API for a browser
// front end.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/abhisek/satprep/internal/config"
	"github.com/abhisek/satprep/internal/session"
	"github.com/abhisek/satprep/internal/store"
	"github.com/abhisek/satprep/internal/tutor"
)

// Deps are the collaborators the API drives. Tutor may be nil.
type Deps struct {
	Engine    *session.Engine
	Persister *session.Persister
	Stats     store.StatsRepo
	Tutor     *tutor.Service
	Logger    *slog.Logger
}

// Server routes HTTP requests to the engine.
type Server struct {
	cfg    config.ServerConfig
	deps   Deps
	logger *slog.Logger
	router chi.Router
}

// New builds the router.
func New(cfg config.ServerConfig, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{cfg: cfg, deps: deps, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, s.logRequests, middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/signals", s.handleSignals)

		r.Route("/session", func(r chi.Router) {
			r.Post("/start", s.handleStart)
			r.Post("/resume", s.handleResume)
			r.Post("/select", s.handleSelect)
			r.Post("/check", s.action((*session.Engine).Check))
			r.Post("/next", s.action((*session.Engine).Next))
			r.Post("/previous", s.action((*session.Engine).Previous))
			r.Post("/goto", s.handleGoTo)
			r.Post("/exit", s.action((*session.Engine).Exit))
			r.Post("/explain", s.handleExplain)
			r.Get("/summary", s.handleSummary)
			r.Delete("/", s.handleReset)
		})

		r.Get("/history", s.handleHistory)
		r.Get("/stats", s.handleStats)
		r.Get("/stats/export", s.handleExport)
	})

	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
