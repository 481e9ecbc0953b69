package http

import (
	"Athena/backend/go/internal/config"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// helper function to create a mock config for testing
func newTestConfig() config.ServerConfig {
	return config.ServerConfig{
		Middleware: config.MiddlewareConfig{
			RateLimiter: config.RateLimiterConfig{
				Enabled:  true,
				Rate:     10,
				Capacity: 5,
				MaxKeys:  100,
			},
			CircuitBreaker: config.CircuitBreakerConfig{
				Enabled:          true,
				FailureThreshold: 2, // Open after 2 consecutive failures
				SuccessThreshold: 2,
				Timeout:          "10s",
			},
		},
	}
}

func ok(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestNewServer_WithAddress(t *testing.T) {
	srv, err := NewServer(newTestConfig(), http.HandlerFunc(ok), WithAddress(":9999"))
	require.NoError(t, err)
	assert.Equal(t, ":9999", srv.Addr())

	srv, err = NewServer(config.ServerConfig{}, http.HandlerFunc(ok))
	require.NoError(t, err)
	assert.Equal(t, ":8080", srv.Addr())
}

func TestRateLimiterMiddleware(t *testing.T) {
	cfg := newTestConfig()
	cfg.Middleware.RateLimiter.Capacity = 2
	cfg.Middleware.RateLimiter.Rate = 1

	srv, err := NewServer(cfg, http.HandlerFunc(ok))
	require.NoError(t, err)
	testServer := httptest.NewServer(srv.Handler())
	defer testServer.Close()

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, get(t, testServer.URL).StatusCode, "request %d", i+1)
	}
	assert.Equal(t, http.StatusTooManyRequests, get(t, testServer.URL).StatusCode)
}

func TestPerClientRateLimiterMiddleware(t *testing.T) {
	cfg := newTestConfig()
	cfg.Middleware.RateLimiter.Capacity = 1
	cfg.Middleware.RateLimiter.Rate = 0.001
	cfg.Middleware.RateLimiter.PerClient = true

	srv, err := NewServer(cfg, http.HandlerFunc(ok))
	require.NoError(t, err)

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, send("10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:5678"))
	assert.Equal(t, http.StatusOK, send("10.0.0.2:1234"))
}

func TestCircuitBreakerMiddleware(t *testing.T) {
	cfg := newTestConfig()
	cfg.Middleware.RateLimiter.Enabled = false

	srv, err := NewServer(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}))
	require.NoError(t, err)
	testServer := httptest.NewServer(srv.Handler())
	defer testServer.Close()

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusInternalServerError, get(t, testServer.URL+"/fail").StatusCode)
	}

	resp := get(t, testServer.URL+"/fail")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "circuit breaker is open")
}
