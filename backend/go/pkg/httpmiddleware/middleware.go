package httpmiddleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"TrendWatch/backend/go/pkg/circuitbreaker"
	"TrendWatch/backend/go/pkg/ratelimiter"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares so that the first one is outermost.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// RateLimit rejects requests with 429 once the limiter runs dry.
func RateLimit(limiter ratelimiter.RateLimiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// CircuitBreak records 5xx responses as failures and answers 503 while the circuit is open.
// It protects the storage behind the query API from being hammered while it is down.
func CircuitBreak(breaker *circuitbreaker.Breaker) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			err := breaker.Execute(func() error {
				next.ServeHTTP(rw, r)
				if rw.status >= http.StatusInternalServerError {
					return fmt.Errorf("server error: status code %d", rw.status)
				}
				return nil
			})
			if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
				writeError(w, http.StatusServiceUnavailable, "service unavailable: circuit breaker is open")
			}
		})
	}
}
