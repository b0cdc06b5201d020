// Package client is the Go consumer for the ConfigRelay service. It fetches
// the configuration document, revalidates with ETags, retries transient
// failures and holds on to the last-known-good document so application code
// keeps working through outages.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/matryer/try"
)

const defaultMaxAttempts = 3

// Client talks to one ConfigRelay deployment. It is safe for concurrent use.
type Client struct {
	baseURL     string
	apiKey      string
	adminKey    string
	appID       string
	appVersion  string
	platform    string
	apiVersion  string
	environment string
	maxAttempts int
	httpClient  *http.Client
	logger      *slog.Logger

	mu     sync.RWMutex
	cached *Config
	etag   string
}

// New builds a Client for baseURL authenticated with apiKey.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	u, err := url.ParseRequestURI(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, baseURL)
	}

	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		maxAttempts: defaultMaxAttempts,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetConfig fetches the configuration document. Transient failures are
// retried; if every attempt fails and a last-known-good document is held, it
// is returned instead of the error. Auth failures always surface.
func (c *Client) GetConfig(ctx context.Context) (Config, error) {
	var cfg Config
	err := try.Do(func(attempt int) (bool, error) {
		var ferr error
		cfg, ferr = c.fetchConfig(ctx)
		if ferr == nil {
			return false, nil
		}

		var rle *RateLimitError
		if errors.As(ferr, &rle) && attempt < c.maxAttempts {
			if c.waitForRetry(ctx, rle.RetryAfter) {
				return true, ferr
			}
			return false, ferr
		}

		return attempt < c.maxAttempts && retriable(ferr), ferr
	})
	if err != nil {
		if cached, ok := c.CachedConfig(); ok && fallbackEligible(err) {
			c.logger.Warn("config fetch failed, serving last-known-good",
				slog.Any("err", err))
			return cached, nil
		}
		return Config{}, err
	}
	return cfg, nil
}

// GetVersion fetches the lightweight version/checksum descriptor.
func (c *Client) GetVersion(ctx context.Context) (VersionInfo, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/config/version", nil)
	if err != nil {
		return VersionInfo{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return VersionInfo{}, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return VersionInfo{}, c.responseError(resp)
	}

	var info VersionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return VersionInfo{}, &DecodingError{Err: err}
	}
	return info, nil
}

// UpdateFeatures merges flags into the server's default document. Requires
// WithAdminKey. Returns the resulting full flag map.
func (c *Client) UpdateFeatures(ctx context.Context, flags map[string]bool) (map[string]bool, error) {
	if c.adminKey == "" {
		return nil, ErrForbidden
	}

	body, err := json.Marshal(map[string]any{"features": flags})
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/config/features", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Key", c.adminKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.responseError(resp)
	}

	var out struct {
		Features map[string]bool `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &DecodingError{Err: err}
	}
	return out.Features, nil
}

// CachedConfig returns the last-known-good document, if one is held.
func (c *Client) CachedConfig() (Config, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cached == nil {
		return Config{}, false
	}
	return *c.cached, true
}

func (c *Client) fetchConfig(ctx context.Context) (Config, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.configPath(), nil)
	if err != nil {
		return Config{}, err
	}

	c.mu.RLock()
	if c.etag != "" {
		req.Header.Set("If-None-Match", c.etag)
	}
	c.mu.RUnlock()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Config{}, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var cfg Config
		if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
			return Config{}, &DecodingError{Err: err}
		}
		c.mu.Lock()
		c.cached = &cfg
		c.etag = resp.Header.Get("ETag")
		c.mu.Unlock()
		return cfg, nil

	case http.StatusNotModified:
		if cached, ok := c.CachedConfig(); ok {
			return cached, nil
		}
		// A 304 without a held document means our ETag state is stale.
		c.mu.Lock()
		c.etag = ""
		c.mu.Unlock()
		return Config{}, &ServerError{Status: resp.StatusCode, Message: "not modified without cached document"}

	default:
		return Config{}, c.responseError(resp)
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	if c.appID != "" {
		req.Header.Set("X-App-Id", c.appID)
	}
	if c.appVersion != "" {
		req.Header.Set("X-App-Version", c.appVersion)
	}
	if c.platform != "" {
		req.Header.Set("X-Platform", c.platform)
	}
	return req, nil
}

func (c *Client) configPath() string {
	switch {
	case c.apiVersion != "" && c.environment != "":
		return "/api/v" + c.apiVersion + "/config/" + c.environment
	case c.apiVersion != "":
		return "/api/v" + c.apiVersion + "/config"
	case c.environment != "":
		return "/api/config/" + c.environment
	default:
		return "/api/config"
	}
}

// responseError maps a non-2xx response onto the client error taxonomy.
func (c *Client) responseError(resp *http.Response) error {
	var body struct {
		Error      string `json:"error"`
		Message    string `json:"message"`
		RetryAfter int    `json:"retryAfter"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusTooManyRequests:
		retryAfter := body.RetryAfter
		if retryAfter == 0 {
			retryAfter, _ = strconv.Atoi(resp.Header.Get("Retry-After"))
		}
		return &RateLimitError{RetryAfter: retryAfter}
	default:
		msg := body.Message
		if msg == "" {
			msg = resp.Status
		}
		return &ServerError{Status: resp.StatusCode, Message: msg}
	}
}

// waitForRetry sleeps out a rate-limit hint when the context deadline allows
// it. Reports whether the caller should retry.
func (c *Client) waitForRetry(ctx context.Context, retryAfter int) bool {
	wait := time.Duration(retryAfter) * time.Second
	if wait <= 0 {
		wait = time.Second
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < wait {
		return false
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
