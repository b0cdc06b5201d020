package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/relaystack/configrelay/internal/config"
	apierrors "github.com/relaystack/configrelay/internal/errors"
	"github.com/relaystack/configrelay/internal/middleware"
	"github.com/relaystack/configrelay/internal/store"
)

// Server wires everything together.
type Server struct {
	cfg    config.Config
	logger *slog.Logger
	router chi.Router
	store  *store.Store
	server *http.Server
}

// NewServer constructs the HTTP server with routing and dependencies.
func NewServer(cfg config.Config, logger *slog.Logger) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logger,
		router: chi.NewRouter(),
		store:  store.New(logger),
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.customLogger)
	r.Use(s.recoverer)
	r.Use(chimw.Compress(5))

	r.Get("/health", s.handleHealth)

	// Gate order is fixed: rate limit, then key validation, then the
	// advisory header check.
	rateLimiter := middleware.NewRateLimiter(s.cfg.Gate, s.logger)
	auth := middleware.NewAPIKeyAuth(s.cfg.Gate, s.logger)
	appHeaders := middleware.NewAppHeaders(s.logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimiter.Handler)
		r.Use(auth.Handler)
		r.Use(appHeaders.Handler)

		r.Get("/config", s.handleConfig)
		r.Get("/config/version", s.handleConfigVersion)
		r.Get("/config/{environment}", s.handleConfig)
		r.Get("/v{version}/config", s.handleConfig)
		r.Get("/v{version}/config/{environment}", s.handleConfig)

		r.With(auth.RequireAdmin).Post("/config/features", s.handleUpdateFeatures)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.handleError(w, r, apierrors.NotFoundf("no route for %s %s", r.Method, r.URL.Path))
	})
}

// customLogger is a lightweight request-log middleware.
func (s *Server) customLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			duration := time.Since(start)
			s.logger.Debug("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", duration),
				slog.String("platform", middleware.Platform(r.Context())))
		}()

		next.ServeHTTP(ww, r)
	})
}

// recoverer turns handler panics into the structured 500 body. In production
// the raw panic value stays in the logs only.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Any("panic", rec))
				msg := "an unexpected error occurred"
				if !s.cfg.Production() {
					msg = formatPanic(rec)
				}
				s.handleError(w, r, apierrors.InternalServerError(msg))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Router exposes the HTTP router for testing and server setup.
func (s *Server) Router() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening",
			slog.String("addr", s.cfg.Addr),
			slog.String("environment", s.cfg.Environment))
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"version":     s.cfg.ServerVersion,
		"environment": s.cfg.Environment,
	})
}

// handleError writes the structured error body for an APIError, falling back
// to a generic 500 for anything else.
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr, ok := apierrors.AsAPIError(err)
	if !ok {
		msg := "an unexpected error occurred"
		if !s.cfg.Production() {
			msg = err.Error()
		}
		apiErr = apierrors.InternalServerError(msg)
	}

	status := apiErr.StatusCode()
	if status >= 500 {
		s.logger.Error(apiErr.Message,
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("err", apiErr.Err))
	}

	payload := map[string]any{
		"error":     apiErr.Code,
		"message":   apiErr.Message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if apiErr.RetryAfter > 0 {
		payload["retryAfter"] = apiErr.RetryAfter
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

func formatPanic(rec any) string {
	if err, ok := rec.(error); ok {
		return err.Error()
	}
	if msg, ok := rec.(string); ok {
		return msg
	}
	return "an unexpected error occurred"
}
