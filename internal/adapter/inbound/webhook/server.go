package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/jonny/hookaudit/internal/adapter/inbound/webhook/middleware"
)

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// RateLimit is the number of requests per minute allowed per client; 0 disables it.
	RateLimit    int
	TrustProxy   bool
	MaxBodyBytes int64
	// APITokens maps bearer tokens to the actor they authenticate.
	APITokens map[string]string
}

// Server wraps an HTTP server with graceful shutdown support.
type Server struct {
	cfg     ServerConfig
	handler *Handler
	api     *APIHandler
	logger  *slog.Logger
	srv     *http.Server
}

// NewServer creates a new Server. api may be nil to disable the query API.
func NewServer(cfg ServerConfig, handler *Handler, api *APIHandler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		handler: handler,
		api:     api,
		logger:  logger,
	}
}

// SetupRoutes builds the router with all middleware applied. The rate
// limiter's background cleanup stops when ctx is done.
// Route layout:
//
//	GET  /health                  - Health check
//	POST /webhook                 - Webhook receiver
//	POST /api/audit/events        - Authenticated submission
//	GET  /api/audit/records       - Paged record listing
//	GET  /api/audit/records/{id}  - Single record
//	GET  /api/audit/kinds         - Known record kinds
func (s *Server) SetupRoutes(ctx context.Context) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RequestContext)
	r.Use(middleware.NewLoggingMiddleware(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders)

	limiter := middleware.NewRateLimiter(ctx, s.cfg.RateLimit, s.cfg.TrustProxy)
	body := middleware.BodyReader(s.cfg.MaxBodyBytes)

	r.Get("/health", HealthHandler())

	r.With(
		middleware.OptionalTokenAuth(s.cfg.APITokens),
		limiter,
		body,
	).Method(http.MethodPost, "/webhook", s.handler)

	if s.api != nil {
		r.Route("/api/audit", func(r chi.Router) {
			r.Use(middleware.TokenAuth(s.cfg.APITokens))
			r.Use(limiter)
			r.Use(body)
			s.api.Register(r)
		})
	}

	return r
}

// Start starts the HTTP server and blocks until ctx is cancelled, then performs
// a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.SetupRoutes(ctx),
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("webhook server listening", "port", s.cfg.Port)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("webhook server shutdown error: %w", err)
		}
		s.logger.Info("webhook server stopped")
		return nil
	case err := <-errCh:
		return err
	}
}
