package httpclient

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"
)

// Config holds retry, timeout and header configuration.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Timeout     time.Duration
	UserAgent   string
}

// DefaultConfig returns sensible defaults for a read-only catalog API.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
		Timeout:     15 * time.Second,
		UserAgent:   "cinelist",
	}
}

// Client wraps http.Client with retries for safe (GET/HEAD) requests.
type Client struct {
	http   *http.Client
	config Config
	logger *slog.Logger
}

// New creates a Client. A zero MaxAttempts means a single attempt.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Client{
		http:   &http.Client{Timeout: cfg.Timeout},
		config: cfg,
		logger: logger,
	}
}

// Do executes req. GET and HEAD requests are retried on 429, 5xx gateway
// errors and transport errors; other methods are sent once.
// The caller must close the response body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.config.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	attempts := c.config.MaxAttempts
	if !isSafe(req.Method) {
		attempts = 1
	}

	var lastErr error
	var lastResp *http.Response
	for attempt := range attempts {
		if attempt > 0 {
			if err := c.wait(req.Context(), attempt, lastResp, req.URL.Path); err != nil {
				return nil, err
			}
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctxErr := req.Context().Err(); ctxErr != nil {
				return nil, ctxErr
			}
			lastErr, lastResp = err, nil
			continue
		}

		if !retryable(resp.StatusCode) || attempt == attempts-1 {
			return resp, nil
		}
		lastErr = fmt.Errorf("HTTP %d from %s", resp.StatusCode, req.URL.Path)
		lastResp = resp
		_ = resp.Body.Close()
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", attempts, lastErr)
}

func (c *Client) wait(ctx context.Context, attempt int, lastResp *http.Response, path string) error {
	delay := max(c.backoff(attempt), retryAfter(lastResp))
	delay = min(delay, c.config.MaxDelay)

	c.logger.Debug("retrying request",
		slog.Int("attempt", attempt+1),
		slog.String("delay", delay.String()),
		slog.String("path", path),
	)

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retryAfter parses a Retry-After header given in seconds.
func retryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	seconds, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func isSafe(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

// retryable reports whether a response status is worth another attempt.
func retryable(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// backoff doubles BaseDelay per attempt and adds up to 20% jitter.
func (c *Client) backoff(attempt int) time.Duration {
	delay := float64(c.config.BaseDelay) * math.Pow(2, float64(attempt-1))
	delay = math.Min(delay, float64(c.config.MaxDelay))
	jitter := delay * 0.2 * rand.Float64() // #nosec G404
	return time.Duration(delay + jitter)
}
