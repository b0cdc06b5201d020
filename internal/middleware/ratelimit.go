package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/relaystack/configrelay/internal/config"
	apierrors "github.com/relaystack/configrelay/internal/errors"
)

// RateLimiter implements a fixed-window rate limiter. Counters reset at fixed
// boundaries, so a client can burst up to 2x the limit straddling a boundary;
// that is the accepted trade-off of the scheme, not a bug.
type RateLimiter struct {
	config  config.GateConfig
	logger  *slog.Logger
	mu      sync.Mutex
	entries *expirable.LRU[string, *rateLimitEntry]
	now     func() time.Time
}

// rateLimitEntry tracks one client identity within the current window.
type rateLimitEntry struct {
	count         int
	windowResetAt time.Time
}

// NewRateLimiter creates a new rate limiter instance. Entries are held in a
// bounded LRU and expire on their own once idle for two windows, so the table
// cannot grow without bound.
func NewRateLimiter(cfg config.GateConfig, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	size := cfg.RateLimitClients
	if size <= 0 {
		size = 10000
	}
	return &RateLimiter{
		config:  cfg,
		logger:  logger,
		entries: expirable.NewLRU[string, *rateLimitEntry](size, nil, 2*cfg.RateLimitWindow),
		now:     time.Now,
	}
}

// Handler returns the middleware handler function.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.config.RateLimitEnabled {
			next.ServeHTTP(w, r)
			return
		}

		clientKey := rl.clientKey(r)
		allowed, remaining, resetAt := rl.allow(clientKey)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.config.RateLimitRequests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			retryAfter := int(math.Ceil(resetAt.Sub(rl.now()).Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			rl.logger.Warn("rate limit exceeded",
				slog.String("client", clientKey),
				slog.Int("retry_after", retryAfter))
			writeAPIError(w, apierrors.RateLimited("rate limit exceeded, try again later", retryAfter))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// allow performs the fixed-window bookkeeping for one request. A single lock
// serializes the read-modify-write; handlers run in parallel and a lost
// increment would under-count.
func (rl *RateLimiter) allow(clientKey string) (allowed bool, remaining int, resetAt time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	max := rl.config.RateLimitRequests

	entry, ok := rl.entries.Get(clientKey)
	if !ok || now.After(entry.windowResetAt) {
		entry = &rateLimitEntry{
			count:         1,
			windowResetAt: now.Add(rl.config.RateLimitWindow),
		}
		rl.entries.Add(clientKey, entry)
		return true, max - 1, entry.windowResetAt
	}

	if entry.count >= max {
		return false, 0, entry.windowResetAt
	}

	entry.count++
	return true, max - entry.count, entry.windowResetAt
}

// clientKey combines the source IP with the client-declared app id. Clients
// that do not declare an app id share the "unknown" bucket per IP.
func (rl *RateLimiter) clientKey(r *http.Request) string {
	appID := r.Header.Get("X-App-Id")
	if appID == "" {
		appID = "unknown"
	}
	return clientIP(r) + ":" + appID
}

// clientIP extracts the source IP. RealIP middleware has already folded
// forwarding headers into RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
