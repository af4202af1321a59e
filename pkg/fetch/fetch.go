package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"
)

// FetchError is the terminal error of a retrying fetch: the last observed
// error and HTTP status after the retry budget was exhausted.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Client performs HTTP GETs with a per-attempt deadline and linear backoff
// between attempts. A 429, or a 403 carrying a Retry-After value, overrides
// the linear delay with the server-supplied one.
type Client struct {
	http        *http.Client
	backoffBase time.Duration
	logger      *log.Logger
}

// NewClient creates a retrying fetch client. The backoff base is the unit of
// the linear delay (base x attempt number). Per-attempt timeouts come from
// the individual calls, so the underlying client carries none of its own.
func NewClient(httpClient *http.Client, backoffBase time.Duration, logger *log.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		}
	}
	if backoffBase <= 0 {
		backoffBase = time.Second
	}
	return &Client{
		http:        httpClient,
		backoffBase: backoffBase,
		logger:      logger,
	}
}

// FetchText fetches a URL and returns the response body as text.
func (c *Client) FetchText(ctx context.Context, url string, timeout time.Duration, attempts int) (string, error) {
	body, err := c.fetch(ctx, url, timeout, attempts)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// FetchJSON fetches a URL and decodes the response body into v. The returned
// FetchError keeps the URL and last status for diagnostics.
func (c *Client) FetchJSON(ctx context.Context, url string, timeout time.Duration, attempts int, v any) error {
	body, err := c.fetch(ctx, url, timeout, attempts)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &FetchError{URL: url, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

// fetch runs the retry loop. Each call gets its own fresh retry budget.
func (c *Client) fetch(ctx context.Context, url string, timeout time.Duration, attempts int) ([]byte, error) {
	if attempts < 1 {
		attempts = 1
	}

	var (
		lastErr    error
		lastStatus int
	)

	for attempt := 1; attempt <= attempts; attempt++ {
		body, status, retryAfter, err := c.attempt(ctx, url, timeout)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if status != 0 {
			lastStatus = status
		}

		if attempt == attempts {
			break
		}

		// Linear backoff unless the server told us exactly how long to wait.
		delay := c.backoffBase * time.Duration(attempt)
		if retryAfter > 0 {
			delay = retryAfter
		}
		if c.logger != nil {
			c.logger.Printf("fetch attempt %d/%d for %s failed (%v), retrying in %v",
				attempt, attempts, url, err, delay)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, &FetchError{URL: url, Status: lastStatus, Err: ctx.Err()}
		}
	}

	return nil, &FetchError{URL: url, Status: lastStatus, Err: lastErr}
}

// attempt performs a single bounded request. retryAfter is non-zero only for
// rate-limit responses (429, or 403 with a Retry-After header).
func (c *Client) attempt(ctx context.Context, url string, timeout time.Duration) (body []byte, status int, retryAfter time.Duration, err error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, 0, 0, fmt.Errorf("request timed out after %v", timeout)
		}
		return nil, 0, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden {
			retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		}
		return nil, resp.StatusCode, retryAfter, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, 0, fmt.Errorf("reading response: %w", err)
	}
	return body, resp.StatusCode, 0, nil
}

// parseRetryAfter reads an integer-seconds Retry-After value. Malformed or
// absent values yield zero, which falls back to linear backoff.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
