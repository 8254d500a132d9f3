// Package httpclient implements the retrying GET used to reach every
// upstream (api.flutter.dev, api.dart.dev, pub.dev). It is grounded in the teacher's fetcher.go retry loop,
// generalized from doubling backoff to the full-jitter formula in the
// Python prototype's error_handling.py calculate_backoff_delay.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/j4ng5y/flutter-docs-mcp-server/internal/breaker"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/ratelimit"
)

// Policy controls retry/backoff/timeout behavior. Fields mirror
// spec.md §4.C and are overridable from env (internal/config).
type Policy struct {
	MaxRetries    int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	ConnectTimeout time.Duration
	TotalTimeout  time.Duration
	UserAgent     string
}

// DefaultPolicy matches spec.md §4.C's defaults exactly.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     3,
		BaseDelay:      1 * time.Second,
		MaxDelay:       16 * time.Second,
		ConnectTimeout: 10 * time.Second,
		TotalTimeout:   30 * time.Second,
		UserAgent:      "flutter-docs-mcp-server/1.0",
	}
}

// StatusError is returned for a non-retryable HTTP status so callers
// can map it to the spec.md §7 error taxonomy (404 -> NotFound, other
// 4xx -> InvalidInput/passthrough).
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpclient: %s returned HTTP %d", e.URL, e.Status)
}

// ServerError wraps a 5xx response that survived all retries; it
// counts as a circuit-breaker failure per spec.md §4.B.
type ServerError struct {
	URL    string
	Status int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("httpclient: %s returned HTTP %d after retries", e.URL, e.Status)
}

// RateLimitedError is returned when retries are exhausted on a 429.
// It does not trip the circuit breaker per spec.md §4.B.
type RateLimitedError struct {
	URL string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("httpclient: %s rate limited after retries", e.URL)
}

// Client performs rate-limited, circuit-broken, retrying GET requests.
type Client struct {
	http     *http.Client
	policy   Policy
	limiters *ratelimit.Registry
	breakers *breaker.Registry
	log      zerolog.Logger
}

// New builds a Client sharing the process-wide rate limiter and
// circuit breaker registries (per spec.md §5, singletons threaded
// through an explicit Core handle rather than leaking globally).
func New(policy Policy, limiters *ratelimit.Registry, breakers *breaker.Registry, log zerolog.Logger) *Client {
	return &Client{
		http: &http.Client{
			Timeout: policy.TotalTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: policy.ConnectTimeout}).DialContext,
			},
		},
		policy:   policy,
		limiters: limiters,
		breakers: breakers,
		log:      log,
	}
}

// Get fetches url, honoring the per-host rate limiter and circuit
// breaker, retrying on connection errors, timeouts, 5xx, and 429 with
// full-jitter exponential backoff. canonicalID is attached as a
// header for upstream observability, per spec.md §4.C.
func (c *Client) Get(ctx context.Context, rawURL, canonicalID string) ([]byte, error) {
	host, err := hostOf(rawURL)
	if err != nil {
		return nil, fmt.Errorf("httpclient: parse %s: %w", rawURL, err)
	}

	if err := c.breakers.Allow(host); err != nil {
		return nil, fmt.Errorf("httpclient: %s circuit open: %w", host, err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := fullJitterDelay(c.policy.BaseDelay, c.policy.MaxDelay, attempt-1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if err := c.limiters.Wait(ctx, host); err != nil {
			return nil, fmt.Errorf("httpclient: rate limiter wait: %w", err)
		}

		body, status, err := c.doOnce(ctx, rawURL, canonicalID)
		if err != nil {
			lastErr = err
			c.log.Warn().Err(err).Str("url", rawURL).Int("attempt", attempt).Msg("request attempt failed")
			continue
		}

		switch {
		case status >= 200 && status < 300:
			c.breakers.RecordSuccess(host)
			return body, nil
		case status == 429:
			lastErr = &RateLimitedError{URL: rawURL}
			continue
		case status >= 500:
			lastErr = &ServerError{URL: rawURL, Status: status}
			continue
		case status >= 400:
			// 4xx other than 429 never retries and never trips the breaker.
			return nil, &StatusError{URL: rawURL, Status: status}
		default:
			return nil, &StatusError{URL: rawURL, Status: status}
		}
	}

	if se, ok := lastErr.(*ServerError); ok {
		c.breakers.RecordFailure(host)
		return nil, se
	}
	if _, ok := lastErr.(*RateLimitedError); ok {
		return nil, lastErr
	}
	c.breakers.RecordFailure(host)
	return nil, fmt.Errorf("httpclient: %s exhausted retries: %w", rawURL, lastErr)
}

func (c *Client) doOnce(ctx context.Context, rawURL, canonicalID string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.policy.UserAgent)
	req.Header.Set("X-Canonical-Id", canonicalID)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read body: %w", err)
	}
	return body, resp.StatusCode, nil
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return u.Host, nil
}

// fullJitterDelay implements AWS's "full jitter" backoff: a uniform
// random draw in [0, base*2^attempt], capped at max.
func fullJitterDelay(base, maxDelay time.Duration, attempt int) time.Duration {
	ceiling := base << attempt // base * 2^attempt
	if ceiling <= 0 || ceiling > maxDelay {
		ceiling = maxDelay
	}
	return time.Duration(rand.Int63n(int64(ceiling) + 1))
}
