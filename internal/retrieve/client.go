// internal/retrieve/client.go - Overpass HTTP client
package retrieve

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/valpere/tilemani/internal"
	"github.com/valpere/tilemani/internal/config"
	"golang.org/x/time/rate"
)

// Request outcomes reported to the Observer
const (
	OutcomeOK       = "ok"
	OutcomeCached   = "cached"
	OutcomeRetry    = "retry"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
)

// Observer receives one outcome per request attempt
type Observer func(outcome string)

// StatusError is returned for non-200 responses
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

// RemarkError is returned when Overpass answers 200 with a runtime error remark
type RemarkError struct {
	Remark string
}

func (e *RemarkError) Error() string {
	return "overpass remark: " + e.Remark
}

// Client posts Overpass QL queries. Requests pass through the response cache,
// a rate limiter and a circuit breaker; failed attempts are retried with
// quadratic backoff.
type Client struct {
	http       *http.Client
	endpoint   string
	userAgent  string
	maxRetries int
	retryDelay time.Duration
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	cache      *Cache
	logger     zerolog.Logger
	observer   Observer
}

// NewClient creates an Overpass client. cache may be nil.
func NewClient(cfg *config.Config, cache *Cache, logger zerolog.Logger) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: cfg.Network.KeepAlive,
		}).DialContext,
		MaxIdleConns:        cfg.Network.MaxIdleConns,
		IdleConnTimeout:     cfg.Network.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	if cfg.Network.ProxyURL != "" {
		if proxyURL, err := url.Parse(cfg.Network.ProxyURL); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	limit := rate.Inf
	if cfg.Retrieval.RateLimit > 0 {
		limit = rate.Limit(cfg.Retrieval.RateLimit)
	}

	c := &Client{
		http: &http.Client{
			Timeout:   cfg.Retrieval.Timeout,
			Transport: transport,
		},
		endpoint:   cfg.Retrieval.OverpassURL,
		userAgent:  cfg.Network.UserAgent,
		maxRetries: cfg.Retrieval.MaxRetries,
		retryDelay: cfg.Retrieval.RetryDelay,
		limiter:    rate.NewLimiter(limit, 1),
		cache:      cache,
		logger:     logger.With().Str("component", "overpass").Logger(),
	}

	failures := cfg.Retrieval.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "overpass",
		MaxRequests: 1,
		Timeout:     cfg.Retrieval.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// client errors and cancellations say nothing about server health
			var se *StatusError
			if errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests {
				return true
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})

	return c
}

// SetObserver installs a per-attempt outcome hook
func (c *Client) SetObserver(o Observer) {
	c.observer = o
}

func (c *Client) observe(outcome string) {
	if c.observer != nil {
		c.observer(outcome)
	}
}

// Query runs an Overpass QL query and returns the raw response body
func (c *Client) Query(ctx context.Context, query string) ([]byte, error) {
	if c.cache != nil {
		if data, ok := c.cache.Get(query); ok {
			c.observe(OutcomeCached)
			c.logger.Debug().Str("key", c.cache.Key(query)).Msg("Overpass cache hit")
			return data, nil
		}
	}

	data, err := c.breaker.Execute(func() ([]byte, error) {
		return c.queryWithRetry(ctx, query)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.observe(OutcomeRejected)
		}
		return nil, internal.NewError(internal.ErrorCodeRetrieval, "overpass query failed", err)
	}

	if c.cache != nil {
		if err := c.cache.Put(query, data); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache overpass response")
		}
	}
	return data, nil
}

func (c *Client) queryWithRetry(ctx context.Context, query string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * c.retryDelay
			c.logger.Debug().Int("attempt", attempt).Dur("backoff", backoff).Err(lastErr).Msg("Retrying overpass query")
			if err := sleep(ctx, backoff); err != nil {
				return nil, err
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		data, err := c.post(ctx, query)
		if err == nil {
			c.observe(OutcomeOK)
			return data, nil
		}
		lastErr = err

		if ctx.Err() != nil || !shouldRetry(err) {
			c.observe(OutcomeFailed)
			return nil, err
		}
		if attempt == c.maxRetries {
			break
		}
		c.observe(OutcomeRetry)
	}

	c.observe(OutcomeFailed)
	return nil, fmt.Errorf("failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *Client) post(ctx context.Context, query string) ([]byte, error) {
	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if strings.Contains(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	if remark := runtimeRemark(data); remark != "" {
		return nil, &RemarkError{Remark: remark}
	}

	return data, nil
}

// runtimeRemark extracts an Overpass "runtime error" remark from an XML body
func runtimeRemark(data []byte) string {
	start := bytes.Index(data, []byte("<remark>"))
	if start < 0 {
		return ""
	}
	rest := data[start+len("<remark>"):]
	end := bytes.Index(rest, []byte("</remark>"))
	if end < 0 {
		return ""
	}
	remark := strings.TrimSpace(string(rest[:end]))
	if !strings.Contains(remark, "runtime error") {
		return ""
	}
	return remark
}

// shouldRetry retries network errors, 5xx, 429 and Overpass runtime remarks
func shouldRetry(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		if se.StatusCode == http.StatusTooManyRequests {
			return true
		}
		return se.StatusCode >= 500
	}

	return true
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
