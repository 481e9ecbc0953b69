package http

import (
	"Athena/backend/go/internal/config"
	"Athena/backend/go/pkg/circuitbreaker"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Doer is satisfied by *http.Client and *Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a custom HTTP client that wraps the standard http.Client
// and provides built-in support for circuit breaking.
type Client struct {
	httpClient *http.Client
	breaker    circuitbreaker.CircuitBreaker
}

// NewClient creates a new Client. When the breaker is disabled requests go
// straight to an http.Client with the given timeout.
func NewClient(cfg config.CircuitBreakerConfig, timeout time.Duration) (*Client, error) {
	c := NewPlainClient(timeout)
	if !cfg.Enabled {
		return c, nil
	}

	breaker, err := createCircuitBreaker(cfg, nil)
	if err != nil {
		return nil, err
	}
	c.breaker = breaker
	return c, nil
}

// NewPlainClient creates a Client without a breaker, for callers outside
// the backend module that have no breaker configuration.
func NewPlainClient(timeout time.Duration) *Client {
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

// Do executes an HTTP request with circuit breaker protection.
// Status codes >= 500 count as failures; the response body is closed and an
// error describing the status is returned instead of the response.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.httpClient.Do(req)
	}

	var resp *http.Response
	err := c.breaker.Execute(func() error {
		r, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		if r.StatusCode >= http.StatusInternalServerError {
			snippet, _ := io.ReadAll(io.LimitReader(r.Body, 512))
			r.Body.Close()
			return fmt.Errorf("server error: received status code %d: %s", r.StatusCode, snippet)
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// State reports the breaker state, or Closed when no breaker is configured.
func (c *Client) State() circuitbreaker.State {
	if c.breaker == nil {
		return circuitbreaker.Closed
	}
	return c.breaker.State()
}
