package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/roadwatch-io/roadwatch/internal/roadmap"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "roadwatch/1.0"
)

// Config holds fetcher settings. The pipeline constructs it from the
// validated pipeline configuration; values arrive already clamped.
type Config struct {
	// APIURL is the upstream feed endpoint.
	APIURL string

	// Timeout bounds a single request, connection through body read.
	Timeout time.Duration

	// RetryCount is the number of additional attempts after the first
	// failure. Total attempts = RetryCount + 1.
	RetryCount int

	// RateLimit caps sustained requests per second against the upstream.
	// Zero or negative disables the limiter.
	RateLimit float64
}

// Client fetches and validates the roadmap feed.
//
// A token-bucket limiter sits in front of every request so that retries can
// never hammer the upstream faster than the configured rate, independent of
// the backoff schedule.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger

	// Backoff schedule, overridable in tests.
	backoffBase time.Duration
	backoffCap  time.Duration
}

// NewClient creates a fetch client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &Client{
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		limiter:     rate.NewLimiter(limit, 1),
		logger:      logger,
		backoffBase: backoffBase,
		backoffCap:  backoffCap,
	}
}

// FetchOnce issues a single GET against the upstream feed and returns the
// validated items. All-or-nothing: no partial results are ever returned.
//
// Failure taxonomy:
//   - ErrTimeout (wrapped) when the request exceeds the configured timeout
//   - *HTTPError on a non-2xx status
//   - *ParseError when the body is not valid JSON
//   - *roadmap.ShapeError when the payload fails structural validation
func (c *Client) FetchOnce(ctx context.Context) ([]roadmap.Item, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, c.cfg.Timeout)
		}

		return nil, fmt.Errorf("request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)

		return nil, &HTTPError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, c.cfg.Timeout)
		}

		return nil, fmt.Errorf("read response body: %w", err)
	}

	var probe any
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, &ParseError{Err: err}
	}

	items, err := roadmap.DecodeItems(body)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("fetched roadmap feed",
		slog.Int("items", len(items)),
		slog.Int("bytes", len(body)),
		slog.Duration("elapsed", time.Since(start)),
	)

	return items, nil
}

// isTimeout reports whether err is a deadline failure, whether it surfaced
// from the transport, during the body read, or as a bare context error.
func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded)
}
