package gatekeeper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

// robotsVerdict is the explicit result of a robots.txt evaluation. The
// mapping of Err != nil to "treat as allowed" happens at the call site in
// Decide, not here.
type robotsVerdict struct {
	Allowed    bool
	CrawlDelay time.Duration
	Err        error
}

// robotsEvaluator fetches and caches robots.txt per host and evaluates
// allow/disallow plus crawl-delay for the configured agent.
type robotsEvaluator struct {
	client    *http.Client
	cache     sync.Map
	userAgent string
	logger    *zap.Logger
}

func newRobotsEvaluator(userAgent string, timeout time.Duration, logger *zap.Logger) *robotsEvaluator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &robotsEvaluator{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		logger:    logger,
	}
}

// Evaluate returns the robots verdict for parsed. A verdict with Err set
// means the rules could not be determined; Allowed and CrawlDelay carry
// zero values in that case.
func (r *robotsEvaluator) Evaluate(ctx context.Context, parsed *url.URL) robotsVerdict {
	data, err := r.load(ctx, parsed)
	if err != nil {
		return robotsVerdict{Err: err}
	}
	group := data.FindGroup(r.userAgent)
	if group == nil {
		return robotsVerdict{Allowed: true}
	}
	return robotsVerdict{
		Allowed:    group.Test(parsed.Path),
		CrawlDelay: group.CrawlDelay,
	}
}

func (r *robotsEvaluator) load(ctx context.Context, parsed *url.URL) (*robotstxt.RobotsData, error) {
	hostKey := strings.ToLower(parsed.Host)
	if data, ok := r.cache.Load(hostKey); ok {
		cached, assertOK := data.(*robotstxt.RobotsData)
		if !assertOK {
			return nil, fmt.Errorf("robots cache type mismatch: %T", data)
		}
		return cached, nil
	}

	robotsURL := *parsed
	robotsURL.Path = path.Join("/", "robots.txt")
	robotsURL.RawQuery = ""
	robotsURL.Fragment = ""
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("new robots request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			r.logger.Debug("failed to close robots response body", zap.Error(cerr))
		}
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read robots body: %w", err)
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots: %w", err)
	}
	r.cache.Store(hostKey, data)
	return data, nil
}
