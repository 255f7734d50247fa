// Package fetch provides the shared HTTP client used to talk to article APIs.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/latebit/wikinet/internal/ratelimit"
)

// DefaultUserAgent identifies wikinet to API operators.
const DefaultUserAgent = "wikinet/0.1 (https://github.com/latebit/wikinet)"

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %s", e.Status)
}

// Options configures client behavior.
type Options struct {
	HTTPClient     *http.Client
	Limiter        *ratelimit.Limiter
	UserAgent      string
	RequestTimeout time.Duration
	MaxRetries     int
	BaseBackoff    time.Duration
}

func (o *Options) applyDefaults() {
	if o.RequestTimeout == 0 {
		o.RequestTimeout = 30 * time.Second
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: o.RequestTimeout}
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.BaseBackoff == 0 {
		o.BaseBackoff = 100 * time.Millisecond
	}
}

// Client performs paced, retried GET requests that decode JSON.
type Client struct {
	opts Options
}

// NewClient creates a new client with the given options.
func NewClient(opts Options) *Client {
	opts.applyDefaults()
	return &Client{opts: opts}
}

// GetJSON issues GET endpoint?query and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	u.RawQuery = query.Encode()
	target := u.String()

	return c.doWithRetry(ctx, u.Host, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.opts.HTTPClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			_, _ = io.Copy(io.Discard, resp.Body)
			return &StatusError{Code: resp.StatusCode, Status: resp.Status}
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
}

// doWithRetry retries transient failures with exponential backoff + jitter.
func (c *Client) doWithRetry(ctx context.Context, host string, fn func() error) error {
	maxRetries := c.opts.MaxRetries
	baseBackoff := c.opts.BaseBackoff

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if c.opts.Limiter != nil {
			if err := c.opts.Limiter.Wait(ctx, host); err != nil {
				return err
			}
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if attempt < maxRetries-1 && ctx.Err() == nil && isTransientError(err) {
			backoff := baseBackoff * time.Duration(1<<uint(attempt))
			jitter := time.Duration(rand.Int63n(int64(backoff/2) + 1))
			if err := sleep(ctx, backoff+jitter); err != nil {
				return err
			}
			continue
		}

		return err
	}

	return lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	if isTimeoutError(err) {
		return true
	}
	errStr := err.Error()
	switch {
	case errors.Is(err, io.ErrUnexpectedEOF), strings.HasSuffix(errStr, "EOF"):
		return true
	case strings.Contains(errStr, "connection refused"):
		return true
	case strings.Contains(errStr, "connection reset"):
		return true
	}
	return false
}

func isTimeoutError(err error) bool {
	type timeoutError interface {
		Timeout() bool
	}
	var te timeoutError
	return errors.As(err, &te) && te.Timeout()
}
