package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"TrendWatch/backend/go/internal/config"
	"TrendWatch/backend/go/pkg/circuitbreaker"
	"TrendWatch/backend/go/pkg/httpmiddleware"
	"TrendWatch/backend/go/pkg/logger"
	"TrendWatch/backend/go/pkg/ratelimiter"
)

// Server wraps http.Server with the rate limiting and circuit breaking
// middlewares configured under "middleware".
type Server struct {
	httpServer      *http.Server
	handler         http.Handler
	shutdownTimeout time.Duration
	log             *logger.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAddress sets the listen address, overriding server.address.
func WithAddress(addr string) ServerOption {
	return func(s *Server) {
		s.httpServer.Addr = addr
	}
}

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(l *logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// NewServer builds a Server around handler (typically a gin engine).
func NewServer(cfg *config.AppConfig, handler http.Handler, opts ...ServerOption) (*Server, error) {
	var mws []httpmiddleware.Middleware

	if cfg.Middleware.RateLimiter.Enabled {
		limiter, err := createRateLimiter(cfg.Middleware.RateLimiter)
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
		mws = append(mws, httpmiddleware.RateLimit(limiter))
	}
	if cfg.Middleware.CircuitBreaker.Enabled {
		breaker, err := createCircuitBreaker(cfg.Middleware.CircuitBreaker, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create circuit breaker: %w", err)
		}
		mws = append(mws, httpmiddleware.CircuitBreak(breaker))
	}

	wrapped := httpmiddleware.Chain(handler, mws...)
	srv := &Server{
		httpServer: &http.Server{
			Addr:              cfg.Server.Address,
			Handler:           wrapped,
			ReadHeaderTimeout: 10 * time.Second,
		},
		handler:         wrapped,
		shutdownTimeout: cfg.ShutdownTimeout(),
		log:             logger.Discard(),
	}
	for _, opt := range opts {
		opt(srv)
	}
	if srv.httpServer.Addr == "" {
		srv.httpServer.Addr = ":8080"
	}
	if srv.shutdownTimeout <= 0 {
		srv.shutdownTimeout = 5 * time.Second
	}
	return srv, nil
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Run serves on the configured address until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.WithPayload(map[string]interface{}{"address": ln.Addr().String()}).Info("HTTP server listening")
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	s.log.Info("HTTP server shutting down")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// createRateLimiter initializes a rate limiter based on the configuration.
func createRateLimiter(cfg config.RateLimiterConfig) (ratelimiter.RateLimiter, error) {
	switch cfg.Algorithm {
	case "", "tokenBucket":
		conf := cfg.TokenBucket
		if conf.Rate <= 0 || conf.Capacity <= 0 {
			return nil, fmt.Errorf("tokenBucket rate and capacity must be positive")
		}
		return ratelimiter.NewTokenBucket(conf.Rate, conf.Capacity), nil
	case "fixedWindow":
		conf := cfg.FixedWindow
		window, err := time.ParseDuration(conf.Window)
		if err != nil {
			return nil, fmt.Errorf("invalid fixedWindow duration: %w", err)
		}
		return ratelimiter.NewFixedWindowCounter(conf.Limit, window), nil
	default:
		return nil, fmt.Errorf("unknown rate limiter algorithm: %s", cfg.Algorithm)
	}
}

// createCircuitBreaker initializes a circuit breaker based on the configuration.
// Transitions are logged when log is non-nil.
func createCircuitBreaker(cfg config.CircuitBreakerConfig, log *logger.Logger) (*circuitbreaker.Breaker, error) {
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid circuit breaker timeout duration: %w", err)
	}
	settings := circuitbreaker.Settings{
		FailureThreshold: cfg.FailureThreshold,
		SuccessThreshold: cfg.SuccessThreshold,
		OpenTimeout:      timeout,
	}
	if log != nil {
		settings.OnStateChange = func(from, to circuitbreaker.State) {
			log.WithPayload(map[string]interface{}{"from": from.String(), "to": to.String()}).Warn("circuit breaker state changed")
		}
	}
	return circuitbreaker.New(settings), nil
}
