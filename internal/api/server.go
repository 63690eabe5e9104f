// Package api provides the translation helps REST API server.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/FocuswithJustin/JuniperHelps/core/alignment"
	"github.com/FocuswithJustin/JuniperHelps/internal/bookpkg"
	"github.com/FocuswithJustin/JuniperHelps/internal/logging"
	"github.com/FocuswithJustin/JuniperHelps/internal/resource"
	"github.com/FocuswithJustin/JuniperHelps/internal/server"
	"github.com/FocuswithJustin/JuniperHelps/internal/service"
)

// Helps is what the server needs from the helps service.
type Helps interface {
	service.Provider
	Package(ctx context.Context, book string) (*bookpkg.Package, error)
	VerseAlignment(ctx context.Context, book string, textType resource.Type, chapter int, verse string) (*alignment.Result, error)
	Language() string
	Organization() string
}

// Server serves the helps API.
type Server struct {
	cfg     Config
	helps   Helps
	hub     *Hub
	jobs    *JobStore
	limiter *RateLimiter
	logger  *slog.Logger
	started time.Time
}

// NewServer creates a server. hub may be nil, in which case /ws is not
// routed and jobs report no progress.
func NewServer(cfg Config, helps Helps, hub *Hub, logger *slog.Logger) (*Server, error) {
	if err := ValidateAuthConfig(cfg.Auth); err != nil {
		return nil, fmt.Errorf("invalid auth config: %w", err)
	}
	if cfg.WebSocket == (WebSocketConfig{}) {
		cfg.WebSocket = DefaultWebSocketConfig()
	}
	s := &Server{
		cfg:     cfg,
		helps:   helps,
		hub:     hub,
		jobs:    NewJobStore(),
		logger:  logging.Component(logger, "api"),
		started: time.Now(),
	}
	if cfg.RateLimitRequests > 0 {
		s.limiter = NewRateLimiter(RateLimiterConfig{
			RequestsPerMinute: cfg.RateLimitRequests,
			BurstSize:         cfg.RateLimitBurst,
		})
	}
	return s, nil
}

// Close releases background resources.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Close()
	}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /books", s.handleBooks)
	mux.HandleFunc("GET /books/{book}/text", s.handleText)
	mux.HandleFunc("GET /books/{book}/notes", s.handleNotes)
	mux.HandleFunc("GET /books/{book}/wordlinks", s.handleWordLinks)
	mux.HandleFunc("GET /books/{book}/questions", s.handleQuestions)
	mux.HandleFunc("GET /books/{book}/package", s.handlePackage)
	mux.HandleFunc("GET /books/{book}/align", s.handleAlign)
	mux.HandleFunc("GET /words/{id...}", s.handleWord)
	mux.HandleFunc("GET /academy/{id...}", s.handleAcademy)
	mux.HandleFunc("GET /passage", s.handlePassage)
	mux.HandleFunc("GET /jobs", s.handleListJobs)
	mux.HandleFunc("POST /jobs", s.handleCreateJob)
	mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	mux.HandleFunc("DELETE /jobs/{id}", s.handleCancelJob)
	if s.hub != nil {
		mux.HandleFunc("GET /ws", s.handleWebSocket)
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
	})

	return mux
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = server.SecurityHeaders(server.APICSPConfig(), s.routes())

	if s.cfg.Auth.Enabled {
		handler = AuthMiddleware(s.cfg.Auth, s.logger, handler)
		logging.SecurityEvent("authentication_configured", "api", "enabled", true)
	} else {
		logging.SecurityEvent("authentication_configured", "api", "enabled", false,
			"note", "all requests allowed")
	}

	if s.limiter != nil {
		handler = s.limiter.Middleware(handler)
		s.logger.Info("rate limiting enabled",
			"requests_per_minute", s.cfg.RateLimitRequests,
			"burst_size", s.limiter.config.BurstSize)
	}

	handler = server.CORSMiddleware(server.CORSConfig{AllowedOrigins: s.cfg.AllowedOrigins}, handler)
	if len(s.cfg.AllowedOrigins) > 0 {
		logging.SecurityEvent("cors_configured", "api", "mode", "restricted",
			"allowed_origins_count", len(s.cfg.AllowedOrigins))
	} else {
		logging.SecurityEvent("cors_configured", "api", "mode", "permissive",
			"note", "allowing all origins")
	}

	return logging.CombinedMiddleware(s.logger, handler)
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully. The hub, when set, runs for the same lifetime.
func (s *Server) ListenAndServe(ctx context.Context) error {
	defer s.Close()

	if s.hub != nil {
		go s.hub.Run(ctx)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logging.ServerStartup("rest_api", "http", s.cfg.Port,
		"language", s.helps.Language(),
		"organization", s.helps.Organization(),
		"websocket", s.hub != nil)

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
