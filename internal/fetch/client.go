// Package fetch implements the retrying, connection-pooled HTTP client
// used to retrieve article pages.
package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/kittagency/ydun-scraper/internal/audit"
	"github.com/kittagency/ydun-scraper/internal/scraper"
)

// Config controls client behavior.
type Config struct {
	// UserAgent identifies the bot: name, version, purpose, and contact.
	UserAgent string
	// Timeout bounds a single request attempt (default 10s).
	Timeout time.Duration
	// PoolSize caps reusable per-host connections (default 20).
	PoolSize int
	// MaxRetries caps additional attempts on transient failures
	// (default 3).
	MaxRetries int
	// BackoffInitial and BackoffMax shape the retry backoff curve.
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

const defaultPoolSize = 20

// Client fetches single URLs through a shared pooled transport. The
// transport is created once and reused by every attempt; it is never
// mutated after construction.
type Client struct {
	cfg       Config
	base      *colly.Collector
	transport *http.Transport
	retry     *RetryPolicy
	emitter   audit.Emitter
	logger    *zap.Logger
}

// New builds a Client. Admission control (robots, opt-out) is handled
// upstream by the gatekeeper, so the collector's own robots handling is
// disabled.
func New(cfg Config, emitter audit.Emitter, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = defaultPoolSize
	}
	if emitter == nil {
		emitter = audit.NopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
	)
	c.IgnoreRobotsTxt = true
	transport := newHTTPTransport(cfg.PoolSize)
	c.WithTransport(transport)

	return &Client{
		cfg:       cfg,
		base:      c,
		transport: transport,
		retry:     NewRetryPolicy(cfg.MaxRetries, cfg.BackoffInitial, cfg.BackoffMax),
		emitter:   emitter,
		logger:    logger,
	}
}

// Fetch executes an HTTP GET with retries on classified transient
// conditions. The returned error, when non-nil, is an *Error carrying the
// failure kind.
func (c *Client) Fetch(ctx context.Context, url string) (scraper.FetchResponse, error) {
	domain := scraper.Domain(url)
	var lastErr *Error
	for attempt := 1; attempt <= c.retry.MaxAttempts(); attempt++ {
		resp, ferr := c.attempt(ctx, url)
		if ferr == nil {
			resp.Attempts = attempt
			c.emitter.Emit(audit.Event{
				TS:     time.Now().UTC(),
				Stage:  audit.StageFetchDone,
				Domain: domain,
				URL:    url,
				Bytes:  int64(len(resp.Body)),
				Dur:    resp.Duration,
			})
			return resp, nil
		}
		lastErr = ferr
		if !c.retry.ShouldRetry(ferr, attempt) {
			break
		}
		backoff := c.retry.Backoff(attempt)
		c.logger.Info("retrying fetch",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Int("status", ferr.Status),
			zap.Duration("backoff", backoff),
			zap.Error(ferr.Err))
		c.emitter.Emit(audit.Event{
			TS:      time.Now().UTC(),
			Stage:   audit.StageFetchRetry,
			Domain:  domain,
			URL:     url,
			Attempt: attempt,
			Reason:  ferr.Error(),
		})
		if err := sleepCtx(ctx, backoff); err != nil {
			return scraper.FetchResponse{}, classify(0, err)
		}
	}
	return scraper.FetchResponse{}, lastErr
}

// attempt runs one request on a fresh collector clone so per-attempt hook
// state never leaks between tries.
func (c *Client) attempt(ctx context.Context, url string) (scraper.FetchResponse, *Error) {
	collector := c.base.Clone()
	collector.UserAgent = c.cfg.UserAgent
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(c.cfg.Timeout)
	collector.WithTransport(c.transport)

	var (
		result scraper.FetchResponse
		status int
		cbErr  error
	)
	start := time.Now()

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("X-Purpose", "text-and-data-mining")
	})
	collector.OnResponse(func(r *colly.Response) {
		result = scraper.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		cbErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return scraper.FetchResponse{}, classify(0, fmt.Errorf("fetch canceled: %w", ctx.Err()))
	case visitErr := <-done:
		if cbErr != nil {
			return scraper.FetchResponse{}, classify(status, cbErr)
		}
		if visitErr != nil {
			return scraper.FetchResponse{}, classify(status, visitErr)
		}
		return result, nil
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func newHTTPTransport(poolSize int) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   poolSize,
		IdleConnTimeout:       90 * time.Second,
	}
}
