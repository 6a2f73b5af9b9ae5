package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	jitterBaseMs = 100
	jitterSpanMs = 200
)

// Config holds the resilience knobs for outbound calls.
type Config struct {
	Timeout         time.Duration
	Retries         int
	CircuitFailures int
	CircuitReset    time.Duration
}

// StatusError is returned when the remote answered with a non-2xx status.
// It counts as a failure for both retry and circuit-breaker purposes.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Client wraps outbound HTTP calls with a per-host circuit breaker and a
// bounded retry with uniform jitter between attempts. The breaker is
// consulted once per logical call, not once per attempt.
type Client struct {
	http    *http.Client
	breaker *Breaker
	retries int
}

func New(cfg Config) *Client {
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: NewBreaker(cfg.CircuitFailures, cfg.CircuitReset),
		retries: cfg.Retries,
	}
}

// GetJSON performs a GET and decodes the response body into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, out any) error {
	return c.do(ctx, http.MethodGet, rawURL, nil, nil, out)
}

// PostJSON performs a POST with a JSON body and optional extra headers, and
// decodes the response body into out when out is non-nil.
func (c *Client) PostJSON(ctx context.Context, rawURL string, body any, headers map[string]string, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("httpclient: failed to marshal request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, rawURL, payload, headers, out)
}

func (c *Client) do(ctx context.Context, method, rawURL string, payload []byte, headers map[string]string, out any) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("httpclient: invalid url %q: %w", rawURL, err)
	}
	host := u.Host

	if err := c.breaker.Allow(host); err != nil {
		log.Warn().Str("host", host).Msg("call rejected, circuit open")
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				c.breaker.RecordFailure(host)
				return ctx.Err()
			case <-time.After(jitter()):
			}
		}

		if lastErr = c.attempt(ctx, method, rawURL, payload, headers, out); lastErr == nil {
			c.breaker.RecordSuccess(host)
			return nil
		}
	}

	c.breaker.RecordFailure(host)
	log.Warn().Err(lastErr).Str("host", host).Int("attempts", c.retries+1).Msg("outbound call failed, retries exhausted")
	return lastErr
}

func (c *Client) attempt(ctx context.Context, method, rawURL string, payload []byte, headers map[string]string, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return fmt.Errorf("httpclient: failed to build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, URL: rawURL}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("httpclient: failed to decode response: %w", err)
	}
	return nil
}

// jitter draws a uniform delay from the 100-300ms window, spreading out
// concurrent retriers.
func jitter() time.Duration {
	return time.Duration(jitterBaseMs+rand.IntN(jitterSpanMs+1)) * time.Millisecond
}
