package middleware

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/relaystack/configrelay/internal/config"
	apierrors "github.com/relaystack/configrelay/internal/errors"
)

type contextKey string

const (
	// APIKeyContextKey carries the validated key for downstream audit logging.
	APIKeyContextKey contextKey = "apiKey"
	// PlatformContextKey carries the platform the key belongs to.
	PlatformContextKey contextKey = "platform"
)

// APIKeyAuth validates the static per-platform API key on inbound requests.
// Comparison is exact match against the configured set; the rate limiter in
// front of this check is the only brute-force protection.
type APIKeyAuth struct {
	config config.GateConfig
	logger *slog.Logger
}

// NewAPIKeyAuth creates the API-key validation middleware.
func NewAPIKeyAuth(cfg config.GateConfig, logger *slog.Logger) *APIKeyAuth {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIKeyAuth{config: cfg, logger: logger}
}

// Handler rejects requests without a recognized key and attaches the
// validated key and platform to the request context.
func (a *APIKeyAuth) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := ExtractAPIKey(r)
		if key == "" {
			a.logger.Warn("request without API key",
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))
			writeAPIError(w, apierrors.Unauthorized("API key required"))
			return
		}

		platform, ok := a.config.PlatformFor(key)
		if !ok {
			a.logger.Warn("request with invalid API key",
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))
			writeAPIError(w, apierrors.Unauthorized("invalid API key"))
			return
		}

		a.logger.Debug("API key accepted", slog.String("platform", platform))

		ctx := context.WithValue(r.Context(), APIKeyContextKey, key)
		ctx = context.WithValue(ctx, PlatformContextKey, platform)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin gates the feature-flag mutation endpoint. It assumes the
// API-key check already passed; a bad or missing admin key is a 403,
// distinct from the 401 used for platform-key failures.
func (a *APIKeyAuth) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		candidate := r.Header.Get("X-Admin-Key")
		if a.config.AdminKey == "" ||
			subtle.ConstantTimeCompare([]byte(candidate), []byte(a.config.AdminKey)) != 1 {
			a.logger.Warn("admin key rejected",
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))
			writeAPIError(w, apierrors.Forbidden("admin access denied"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ExtractAPIKey pulls the candidate key from the dedicated header, a bearer
// authorization header, or the apiKey query parameter, in that order.
func ExtractAPIKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		const prefix = "Bearer "
		if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
			return auth[len(prefix):]
		}
	}
	return r.URL.Query().Get("apiKey")
}

// Platform returns the platform name attached by the auth middleware.
func Platform(ctx context.Context) string {
	platform, _ := ctx.Value(PlatformContextKey).(string)
	return platform
}
