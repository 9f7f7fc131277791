package fetch

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// Policy controls the retry behavior of a Client.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Timeout     time.Duration
	// Jitter returns a random duration in [0, max). It exists so tests can
	// pin it; when nil, no jitter is added.
	Jitter func(max time.Duration) time.Duration
}

// DefaultPolicy matches the behavior the catalog sources are rate-limited
// against: 5 attempts, exponential backoff from 1s capped at 30s, with full
// jitter, and a 10s timeout per attempt.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Timeout:     10 * time.Second,
		Jitter: func(max time.Duration) time.Duration {
			return time.Duration(rand.Int63n(int64(max)))
		},
	}
}

// Delay returns how long to wait before retry attempt k (1-based), doubling
// the base delay each attempt up to MaxDelay, plus jitter.
func (p Policy) Delay(attempt int) time.Duration {
	delay := p.BaseDelay << (attempt - 1)
	if delay > p.MaxDelay || delay <= 0 {
		delay = p.MaxDelay
	}
	if p.Jitter != nil && delay > 0 {
		delay += p.Jitter(delay)
	}
	return delay
}

// RequestError is returned for responses that indicate the request itself is
// wrong and retrying won't help, like a 404 or a 400.
type RequestError struct {
	URL        string
	StatusCode int
}

func (err *RequestError) Error() string {
	return "request to " + err.URL + " failed with status " + http.StatusText(err.StatusCode)
}

// ExhaustedError is returned once every retry attempt has failed. Last holds
// the error from the final attempt.
type ExhaustedError struct {
	URL      string
	Attempts int
	Last     error
}

func (err *ExhaustedError) Error() string {
	return "request to " + err.URL + " failed after retries: " + err.Last.Error()
}

func (err *ExhaustedError) Unwrap() error {
	return err.Last
}

// Client is an HTTP GET client that retries transient failures with
// exponential backoff. Responses with 4xx statuses (other than 429) fail
// immediately; timeouts, connection errors, 429s, and 5xx statuses are
// retried until the policy's attempts are exhausted.
type Client struct {
	policy Policy
	http   *http.Client
}

func New(policy Policy) *Client {
	return &Client{
		policy: policy,
		http:   &http.Client{},
	}
}

// Get fetches the given URL with the query params appended and returns the
// response body.
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	log := logger.FromContext(ctx)

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	target := u.String()

	var lastErr error
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.policy.Delay(attempt - 1)
			log.Info("retrying request", logger.Data{"url": target, "attempt": attempt, "delay": delay.String()})
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, errors.WithStack(ctx.Err())
			}
		}

		body, err := c.attempt(ctx, target)
		if err == nil {
			return body, nil
		}

		var re *RequestError
		if errors.As(err, &re) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, errors.WithStack(ctx.Err())
		}
		lastErr = err
	}

	return nil, &ExhaustedError{URL: target, Attempts: c.policy.MaxAttempts, Last: lastErr}
}

func (c *Client) attempt(ctx context.Context, target string) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.policy.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer resp.Body.Close()

	if retryableStatus(resp.StatusCode) {
		return nil, errors.Errorf("transient status %d from %s", resp.StatusCode, target)
	}
	if resp.StatusCode >= 400 {
		return nil, &RequestError{URL: target, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return body, nil
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
