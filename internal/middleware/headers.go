package middleware

import (
	"log/slog"
	"net/http"
)

// AppHeaders is the advisory header check: it logs when clients omit their
// identity headers but never blocks a request.
type AppHeaders struct {
	logger *slog.Logger
}

// NewAppHeaders creates the advisory header middleware.
func NewAppHeaders(logger *slog.Logger) *AppHeaders {
	if logger == nil {
		logger = slog.Default()
	}
	return &AppHeaders{logger: logger}
}

// Handler warns about missing X-App-Id / X-App-Version headers.
func (h *AppHeaders) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-App-Id") == "" {
			h.logger.Warn("missing X-App-Id header",
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))
		}
		if r.Header.Get("X-App-Version") == "" {
			h.logger.Warn("missing X-App-Version header",
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))
		}
		if platform := r.Header.Get("X-Platform"); platform != "" {
			h.logger.Debug("client platform", slog.String("platform", platform))
		}
		next.ServeHTTP(w, r)
	})
}
