package http

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"TrendWatch/backend/go/internal/config"
	"TrendWatch/backend/go/pkg/circuitbreaker"
	"TrendWatch/backend/go/pkg/logger"
)

// Client wraps http.Client with an optional circuit breaker.
type Client struct {
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
}

// NewClient creates a Client. The breaker is only installed when cfg.Enabled is set.
func NewClient(cfg config.CircuitBreakerConfig, timeout time.Duration, log *logger.Logger) (*Client, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{httpClient: &http.Client{Timeout: timeout}}
	if !cfg.Enabled {
		return c, nil
	}
	breaker, err := createCircuitBreaker(cfg, log)
	if err != nil {
		return nil, err
	}
	c.breaker = breaker
	return c, nil
}

// Do executes req. Status codes >= 500 are returned as errors and count as breaker failures;
// their bodies are drained and closed.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	call := func() error {
		r, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		if r.StatusCode >= http.StatusInternalServerError {
			_, _ = io.Copy(io.Discard, r.Body)
			_ = r.Body.Close()
			return fmt.Errorf("server error: received status code %d", r.StatusCode)
		}
		resp = r
		return nil
	}

	if c.breaker == nil {
		if err := call(); err != nil {
			return nil, err
		}
		return resp, nil
	}
	if err := c.breaker.Execute(call); err != nil {
		return nil, err
	}
	return resp, nil
}
