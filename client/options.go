package client

import (
	"log/slog"
	"net/http"
	"time"
)

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithAppIdentity sets the advisory X-App-Id / X-App-Version / X-Platform
// headers sent with every request.
func WithAppIdentity(appID, appVersion, platform string) Option {
	return func(c *Client) {
		c.appID = appID
		c.appVersion = appVersion
		c.platform = platform
	}
}

// WithAPIVersion pins requests to a specific configuration version.
func WithAPIVersion(version string) Option {
	return func(c *Client) {
		c.apiVersion = version
	}
}

// WithEnvironment requests a named environment profile (e.g. "test").
func WithEnvironment(environment string) Option {
	return func(c *Client) {
		c.environment = environment
	}
}

// WithAdminKey enables UpdateFeatures calls.
func WithAdminKey(key string) Option {
	return func(c *Client) {
		c.adminKey = key
	}
}

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMaxRetries bounds the attempts for transient failures.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}
