// Package fetch provides the retrying HTTP client shared by all upstream calls.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sethvargo/go-retry"
)

const maxBodySize = 20 * 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client performs GET requests with bounded exponential-backoff retry.
// Each call is retried independently; there is no circuit breaker.
type Client struct {
	client  HTTPClient
	retries uint64
	backoff time.Duration
	log     *slog.Logger
}

// New creates a Client retrying up to retries times, sleeping backoff,
// 2*backoff, 4*backoff, ... between attempts.
func New(client HTTPClient, retries uint64, backoff time.Duration, log *slog.Logger) *Client {
	return &Client{
		client:  client,
		retries: retries,
		backoff: backoff,
		log:     log,
	}
}

// Get fetches rawURL with the given query parameters and returns the body.
// Network errors and non-2xx statuses are retried; exhausting retries
// returns the last error wrapped.
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	var body []byte
	attempt := 0

	b := retry.WithMaxRetries(c.retries, retry.NewExponential(c.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if err := c.tryGet(ctx, rawURL, params, &body); err != nil {
			c.log.Warn("request failed", "url", rawURL, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	return body, nil
}

func (c *Client) tryGet(ctx context.Context, rawURL string, params url.Values, body *[]byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if params != nil {
		req.URL.RawQuery = params.Encode()
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	*body = data
	return nil
}
