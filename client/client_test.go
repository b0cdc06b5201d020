package client

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "https://config.example.com"

const testConfigBody = `{
	"aws": {"cognito": {"userPoolId": "us-east-1_abc", "appClientId": "client123"}},
	"api": {"websocketEndpoint": "wss://ws.example.com"},
	"bot": {"botId": "bot-1", "foundationModel": "anthropic.claude-3-sonnet-20240229-v1:0"},
	"features": {"darkMode": false, "analytics": true, "newCheckout": false},
	"version": "1",
	"_metadata": {"timestamp": "2024-01-01T00:00:00Z", "requestId": "req-1-abc", "serverVersion": "1.2.0", "environment": "production"}
}`

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	c, err := New(testBaseURL, "ios-key", opts...)
	require.NoError(t, err)
	httpmock.ActivateNonDefault(c.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func jsonResponder(status int, body string, headers map[string]string) httpmock.Responder {
	return func(req *http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(status, body)
		resp.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			resp.Header.Set(k, v)
		}
		return resp, nil
	}
}

func TestNew_InvalidURL(t *testing.T) {
	for _, base := range []string{"", "not a url", "/relative/only"} {
		_, err := New(base, "key")
		assert.ErrorIs(t, err, ErrInvalidURL, "base %q", base)
	}
}

func TestGetConfig_Success(t *testing.T) {
	c := newTestClient(t, WithAppIdentity("com.example.app", "3.0.0", "ios"))

	httpmock.RegisterResponder("GET", testBaseURL+"/api/config",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "ios-key", req.Header.Get("X-API-Key"))
			assert.Equal(t, "com.example.app", req.Header.Get("X-App-Id"))
			assert.Equal(t, "3.0.0", req.Header.Get("X-App-Version"))
			assert.Equal(t, "ios", req.Header.Get("X-Platform"))
			return jsonResponder(200, testConfigBody, map[string]string{"ETag": `"abc"`})(req)
		})

	cfg, err := c.GetConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "us-east-1_abc", cfg.AWS.Cognito.UserPoolID)
	assert.Equal(t, "wss://ws.example.com", cfg.API.WebSocketEndpoint)
	assert.True(t, cfg.Feature("analytics"))
	assert.False(t, cfg.Feature("someUnknownFlag"))

	cached, ok := c.CachedConfig()
	require.True(t, ok)
	assert.Equal(t, cfg.Bot.BotID, cached.Bot.BotID)
}

func TestGetConfig_ETagRevalidation(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder("GET", testBaseURL+"/api/config",
		func(req *http.Request) (*http.Response, error) {
			if req.Header.Get("If-None-Match") == `"abc"` {
				return httpmock.NewStringResponse(http.StatusNotModified, ""), nil
			}
			return jsonResponder(200, testConfigBody, map[string]string{"ETag": `"abc"`})(req)
		})

	first, err := c.GetConfig(context.Background())
	require.NoError(t, err)

	second, err := c.GetConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.Bot.BotID, second.Bot.BotID)

	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestGetConfig_FallbackToLastKnownGood(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder("GET", testBaseURL+"/api/config",
		jsonResponder(200, testConfigBody, nil))
	_, err := c.GetConfig(context.Background())
	require.NoError(t, err)

	httpmock.RegisterResponder("GET", testBaseURL+"/api/config",
		jsonResponder(500, `{"error":"INTERNAL_SERVER_ERROR","message":"boom"}`, nil))

	cfg, err := c.GetConfig(context.Background())
	require.NoError(t, err, "last-known-good must mask the failure")
	assert.Equal(t, "bot-1", cfg.Bot.BotID)
}

func TestGetConfig_ServerErrorWithoutCache(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder("GET", testBaseURL+"/api/config",
		jsonResponder(500, `{"error":"INTERNAL_SERVER_ERROR","message":"boom"}`, nil))

	_, err := c.GetConfig(context.Background())
	var srvErr *ServerError
	require.ErrorAs(t, err, &srvErr)
	assert.Equal(t, 500, srvErr.Status)
	assert.Equal(t, "boom", srvErr.Message)

	// 5xx responses are retried up to the attempt budget.
	assert.Equal(t, defaultMaxAttempts, httpmock.GetTotalCallCount())
}

func TestGetConfig_UnauthorizedNeverFallsBack(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder("GET", testBaseURL+"/api/config",
		jsonResponder(200, testConfigBody, nil))
	_, err := c.GetConfig(context.Background())
	require.NoError(t, err)

	httpmock.RegisterResponder("GET", testBaseURL+"/api/config",
		jsonResponder(401, `{"error":"UNAUTHORIZED","message":"invalid API key"}`, nil))

	_, err = c.GetConfig(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	// A single attempt: auth failures are not retried.
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestGetConfig_RateLimited(t *testing.T) {
	c := newTestClient(t, WithMaxRetries(1))

	httpmock.RegisterResponder("GET", testBaseURL+"/api/config",
		jsonResponder(429, `{"error":"RATE_LIMITED","message":"rate limit exceeded","retryAfter":30}`,
			map[string]string{"Retry-After": "30"}))

	_, err := c.GetConfig(context.Background())
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, 30, rle.RetryAfter)
}

func TestGetConfig_DecodingError(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder("GET", testBaseURL+"/api/config",
		jsonResponder(200, `{broken`, nil))

	_, err := c.GetConfig(context.Background())
	var decErr *DecodingError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, 1, httpmock.GetTotalCallCount(), "malformed bodies are not retried")
}

func TestGetConfig_VersionedPaths(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		path string
	}{
		{"default", nil, "/api/config"},
		{"versioned", []Option{WithAPIVersion("3")}, "/api/v3/config"},
		{"environment", []Option{WithEnvironment("test")}, "/api/config/test"},
		{"both", []Option{WithAPIVersion("3"), WithEnvironment("test")}, "/api/v3/config/test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.opts...)
			httpmock.RegisterResponder("GET", testBaseURL+tt.path,
				jsonResponder(200, testConfigBody, nil))

			_, err := c.GetConfig(context.Background())
			require.NoError(t, err)
		})
	}
}

func TestGetVersion(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder("GET", testBaseURL+"/api/config/version",
		jsonResponder(200, `{"version":"1","timestamp":"2024-01-01T00:00:00Z","checksum":"deadbeef"}`, nil))

	info, err := c.GetVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1", info.Version)
	assert.Equal(t, "deadbeef", info.Checksum)
}

func TestUpdateFeatures(t *testing.T) {
	c := newTestClient(t, WithAdminKey("admin-secret"))

	httpmock.RegisterResponder("POST", testBaseURL+"/api/config/features",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "admin-secret", req.Header.Get("X-Admin-Key"))
			assert.Equal(t, "ios-key", req.Header.Get("X-API-Key"))
			return jsonResponder(200,
				`{"message":"feature flags updated","features":{"newCheckout":true,"analytics":true}}`, nil)(req)
		})

	features, err := c.UpdateFeatures(context.Background(), map[string]bool{"newCheckout": true})
	require.NoError(t, err)
	assert.True(t, features["newCheckout"])
	assert.True(t, features["analytics"])
}

func TestUpdateFeatures_RequiresAdminKey(t *testing.T) {
	c := newTestClient(t)

	_, err := c.UpdateFeatures(context.Background(), map[string]bool{"a": true})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}

func TestUpdateFeatures_ForbiddenFromServer(t *testing.T) {
	c := newTestClient(t, WithAdminKey("wrong"))

	httpmock.RegisterResponder("POST", testBaseURL+"/api/config/features",
		jsonResponder(403, `{"error":"FORBIDDEN","message":"admin access denied"}`, nil))

	_, err := c.UpdateFeatures(context.Background(), map[string]bool{"a": true})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestGetConfig_NetworkErrorRetries(t *testing.T) {
	c := newTestClient(t)

	calls := 0
	httpmock.RegisterResponder("GET", testBaseURL+"/api/config",
		func(req *http.Request) (*http.Response, error) {
			calls++
			if calls < 2 {
				return nil, errors.New("connection refused")
			}
			return jsonResponder(200, testConfigBody, nil)(req)
		})

	cfg, err := c.GetConfig(context.Background())
	require.NoError(t, err, "a transient network failure is retried")
	assert.Equal(t, "bot-1", cfg.Bot.BotID)
	assert.Equal(t, 2, calls)
}

func TestWaitForRetry_RespectsDeadline(t *testing.T) {
	c, err := New(testBaseURL, "key")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// A 30s hint cannot fit a 50ms deadline.
	assert.False(t, c.waitForRetry(ctx, 30))
}
