package http

import (
	"Athena/backend/go/internal/config"
	"Athena/backend/go/pkg/circuitbreaker"
	"Athena/backend/go/pkg/httpmiddleware"
	"Athena/backend/go/pkg/logger"
	"Athena/backend/go/pkg/ratelimiter"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Middleware defines a function to wrap an http.Handler.
type Middleware func(http.Handler) http.Handler

// Server is a custom HTTP server that wraps the standard http.Server
// and applies the configured middleware in front of the handler.
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// ServerOption defines a function for configuring a Server.
type ServerOption func(*Server)

// WithAddress sets the address for the server to listen on.
func WithAddress(addr string) ServerOption {
	return func(s *Server) {
		s.httpServer.Addr = addr
	}
}

// WithLogger sets the logger used for lifecycle and middleware messages.
func WithLogger(log *logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = log
	}
}

// NewServer creates a Server serving handler, wrapped by rate limiting and
// circuit breaking middleware when enabled in cfg.
func NewServer(cfg config.ServerConfig, handler http.Handler, opts ...ServerOption) (*Server, error) {
	srv := &Server{
		httpServer: &http.Server{
			Addr:              cfg.Address,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: logger.Discard(),
	}
	for _, opt := range opts {
		opt(srv)
	}
	if srv.httpServer.Addr == "" {
		srv.httpServer.Addr = ":8080"
	}

	var middlewares []Middleware

	if rl := cfg.Middleware.RateLimiter; rl.Enabled {
		mw, err := createRateLimiter(rl)
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
		srv.log.WithFields(map[string]interface{}{
			"rate":       rl.Rate,
			"capacity":   rl.Capacity,
			"per_client": rl.PerClient,
		}).Info("Enabling Rate Limiter middleware")
		middlewares = append(middlewares, mw)
	}

	if cfg.Middleware.CircuitBreaker.Enabled {
		breaker, err := createCircuitBreaker(cfg.Middleware.CircuitBreaker, srv.log)
		if err != nil {
			return nil, fmt.Errorf("failed to create circuit breaker: %w", err)
		}
		srv.log.Info("Enabling Circuit Breaker middleware")
		middlewares = append(middlewares, httpmiddleware.CircuitBreak(breaker))
	}

	// The first configured middleware is the outermost.
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	srv.httpServer.Handler = handler
	return srv, nil
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ListenAndServe starts the HTTP server. It returns nil after Shutdown.
func (s *Server) ListenAndServe() error {
	s.log.With("address", s.httpServer.Addr).Info("Starting server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// createRateLimiter builds either one shared token bucket or a bucket per client.
func createRateLimiter(cfg config.RateLimiterConfig) (Middleware, error) {
	if cfg.Rate <= 0 || cfg.Capacity <= 0 {
		return nil, fmt.Errorf("rate and capacity must be positive")
	}
	if cfg.PerClient {
		limiter, err := ratelimiter.NewKeyedTokenBucket(cfg.Rate, cfg.Capacity, cfg.MaxKeys)
		if err != nil {
			return nil, err
		}
		return httpmiddleware.RateLimitPerClient(limiter), nil
	}
	return httpmiddleware.RateLimit(ratelimiter.NewTokenBucket(cfg.Rate, cfg.Capacity)), nil
}

// createCircuitBreaker initializes a circuit breaker based on the configuration.
func createCircuitBreaker(cfg config.CircuitBreakerConfig, log *logger.Logger) (circuitbreaker.CircuitBreaker, error) {
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid circuit breaker timeout duration: %w", err)
	}
	if log == nil {
		log = logger.Discard()
	}
	return circuitbreaker.New(cfg.FailureThreshold, cfg.SuccessThreshold, timeout,
		circuitbreaker.WithStateChange(func(from, to circuitbreaker.State) {
			log.WithFields(map[string]interface{}{"from": from.String(), "to": to.String()}).Warn("circuit breaker state changed")
		}),
	), nil
}
