package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	maxAttempts = 3
	baseDelay   = 1 * time.Second
	multiplier  = 2
	delayCap    = 300 * time.Second
)

// FetchError is a transport failure or non-success response after the
// retry budget is spent. Callers branch on it to decide between graceful
// degradation and surfacing a run failure.
type FetchError struct {
	URL        string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d after %d attempts", e.URL, e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("fetch %s: %v after %d attempts", e.URL, e.Err, e.Attempts)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Controller obtains the raw listing document over the network with
// bounded retries and exponential backoff, and decodes the response bytes
// using the source's declared character encoding before anything
// downstream sees them.
type Controller struct {
	client    *http.Client
	userAgent string
	encoding  string // expected charset when the response declares none

	// sleep is swapped out in tests to observe the backoff schedule.
	sleep func(ctx context.Context, d time.Duration)
}

// contextSleep waits out the backoff delay but returns as soon as the
// run is cancelled.
func contextSleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func NewController(client *http.Client, userAgent, encoding string) *Controller {
	if client == nil {
		client = &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				MaxIdleConnsPerHost: 5,
			},
		}
	}
	return &Controller{
		client:    client,
		userAgent: userAgent,
		encoding:  encoding,
		sleep:     contextSleep,
	}
}

// Fetch retrieves and decodes the document. Attempt n (n ≥ 2) is preceded
// by a delay of min(baseDelay × multiplier^(n-2), delayCap).
func (c *Controller) Fetch(ctx context.Context, url string) (string, error) {
	var lastErr *FetchError

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := backoffDelay(attempt)
			slog.Debug("Retrying fetch", "url", url, "attempt", attempt, "delay", delay.String())
			c.sleep(ctx, delay)
			if ctx.Err() != nil {
				break
			}
		}

		text, err := c.fetchOnce(ctx, url)
		if err == nil {
			return text, nil
		}

		lastErr = err
		lastErr.Attempts = attempt
		slog.Warn("Fetch attempt failed", "url", url, "attempt", attempt, "error", err)

		if ctx.Err() != nil {
			break
		}
	}

	return "", lastErr
}

func (c *Controller) fetchOnce(ctx context.Context, url string) (string, *FetchError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &FetchError{URL: url, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html, text/plain")
	// Intermediaries must not serve a stale listing.
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &FetchError{URL: url, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if len(raw) == 0 {
		return "", &FetchError{URL: url, Err: fmt.Errorf("empty response body")}
	}

	text, err := decode(raw, resp.Header.Get("Content-Type"), c.encoding)
	if err != nil {
		return "", &FetchError{URL: url, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	return text, nil
}

func backoffDelay(attempt int) time.Duration {
	delay := baseDelay
	for i := 2; i < attempt; i++ {
		delay *= multiplier
	}
	if delay > delayCap {
		delay = delayCap
	}
	return delay
}
