package batch

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kittagency/ydun-scraper/internal/policy/ratelimit"
	"github.com/kittagency/ydun-scraper/internal/scraper"
)

type fakeGate struct {
	blocked     map[string]string
	metaBlocked map[string]string
	decisions   atomic.Int32
}

func (g *fakeGate) Decide(_ context.Context, url string) scraper.Decision {
	g.decisions.Add(1)
	if reason, ok := g.blocked[url]; ok {
		return scraper.Decision{URL: url, Allowed: false, Reason: reason}
	}
	return scraper.Decision{URL: url, Allowed: true, Reason: "no opt-out signals detected", CrawlDelay: time.Millisecond}
}

func (g *fakeGate) CheckContent(url string, _ []byte) scraper.Decision {
	if reason, ok := g.metaBlocked[url]; ok {
		return scraper.Decision{URL: url, Allowed: false, Reason: reason}
	}
	return scraper.Decision{URL: url, Allowed: true}
}

type fakeLimiter struct {
	acquires atomic.Int32
}

func (l *fakeLimiter) Acquire(ctx context.Context, _ string, _ time.Duration) error {
	l.acquires.Add(1)
	return ctx.Err()
}

type fakeFetcher struct {
	failing map[string]error
	delay   time.Duration
	fetches atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (scraper.FetchResponse, error) {
	f.fetches.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return scraper.FetchResponse{}, ctx.Err()
		}
	}
	if err, ok := f.failing[url]; ok {
		return scraper.FetchResponse{}, err
	}
	return scraper.FetchResponse{
		URL:        url,
		StatusCode: 200,
		Body:       []byte("<html><body><p>" + url + "</p></body></html>"),
		Attempts:   1,
	}, nil
}

type fakeExtractor struct {
	failing  map[string]bool
	extracts atomic.Int32
}

type extractionErr struct{}

func (extractionErr) Error() string           { return "extraction failed: no usable content found" }
func (extractionErr) Kind() scraper.ErrorKind { return scraper.ErrorKindExtractionFailed }

func (e *fakeExtractor) Extract(url string, _ []byte) (scraper.Fields, string, error) {
	e.extracts.Add(1)
	if e.failing[url] {
		return scraper.Fields{}, "", extractionErr{}
	}
	return scraper.Fields{Title: "title of " + url, Content: "content of " + url}, "readability", nil
}

// fakeClock returns its base time on the first call and base+step on
// every later one, making batch durations deterministic.
type fakeClock struct {
	calls atomic.Int32
	base  time.Time
	step  time.Duration
}

func (c *fakeClock) Now() time.Time {
	if c.calls.Add(1) == 1 {
		return c.base
	}
	return c.base.Add(c.step)
}

func newTestOrchestrator(t *testing.T, gate *fakeGate, limiter *fakeLimiter, fetcher *fakeFetcher, extractor *fakeExtractor) *Orchestrator {
	t.Helper()
	o, err := New(Config{Concurrency: 3}, gate, limiter, fetcher, extractor, nil, nil, zap.NewNop())
	require.NoError(t, err)
	return o
}

func TestNew_RequiresDependencies(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, nil, &fakeLimiter{}, &fakeFetcher{}, &fakeExtractor{}, nil, nil, zap.NewNop())
	require.Error(t, err)
}

func TestRun_OneResultPerURLInOrder(t *testing.T) {
	t.Parallel()

	urls := []string{
		"https://a.example.com/1",
		"https://b.example.com/2",
		"https://c.example.com/3",
		"https://a.example.com/4",
		"https://b.example.com/5",
	}
	o := newTestOrchestrator(t, &fakeGate{}, &fakeLimiter{}, &fakeFetcher{}, &fakeExtractor{})

	res := o.Run(context.Background(), urls, RunOptions{})
	require.Len(t, res.Results, len(urls))
	require.NotEmpty(t, res.BatchID)
	for i, r := range res.Results {
		require.Equal(t, urls[i], r.URL)
		require.True(t, r.Success)
		require.Equal(t, "readability", r.MethodUsed)
		require.Equal(t, len(r.Content), r.ContentLength)
	}
	require.Equal(t, len(urls), res.Stats.Total)
	require.Equal(t, len(urls), res.Stats.Succeeded)
	require.InDelta(t, 1.0, res.Stats.SuccessRate, 0.001)
}

func TestRun_PolicyBlockSkipsFetchAndExtraction(t *testing.T) {
	t.Parallel()

	gate := &fakeGate{blocked: map[string]string{
		"https://blocked.example.com/a": "robots.txt disallows bot",
	}}
	fetcher := &fakeFetcher{}
	extractor := &fakeExtractor{}
	limiter := &fakeLimiter{}
	o := newTestOrchestrator(t, gate, limiter, fetcher, extractor)

	res := o.Run(context.Background(), []string{
		"https://blocked.example.com/a",
		"https://open.example.com/b",
	}, RunOptions{})

	blocked := res.Results[0]
	require.False(t, blocked.Success)
	require.Equal(t, scraper.ErrorKindPolicyBlocked, blocked.ErrorKind)
	require.Contains(t, blocked.Error, "robots.txt")

	require.True(t, res.Results[1].Success)
	// Blocked URLs never reach the limiter, fetcher, or extractor.
	require.Equal(t, int32(1), limiter.acquires.Load())
	require.Equal(t, int32(1), fetcher.fetches.Load())
	require.Equal(t, int32(1), extractor.extracts.Load())
}

func TestRun_MetaOptOutBlocksAfterFetch(t *testing.T) {
	t.Parallel()

	gate := &fakeGate{metaBlocked: map[string]string{
		"https://reserved.example.com/a": "HTML meta: tdm-reservation = 1",
	}}
	extractor := &fakeExtractor{}
	o := newTestOrchestrator(t, gate, &fakeLimiter{}, &fakeFetcher{}, extractor)

	res := o.Run(context.Background(), []string{"https://reserved.example.com/a"}, RunOptions{})
	require.Equal(t, scraper.ErrorKindPolicyBlocked, res.Results[0].ErrorKind)
	require.Contains(t, res.Results[0].Error, "tdm-reservation")
	require.Zero(t, extractor.extracts.Load())
}

func TestRun_FailureIsolation(t *testing.T) {
	t.Parallel()

	netErr := errors.New("dial tcp: connection refused")
	fetcher := &fakeFetcher{failing: map[string]error{
		"https://down.example.com/a": netErr,
	}}
	extractor := &fakeExtractor{failing: map[string]bool{
		"https://thin.example.com/b": true,
	}}
	o := newTestOrchestrator(t, &fakeGate{}, &fakeLimiter{}, fetcher, extractor)

	res := o.Run(context.Background(), []string{
		"https://down.example.com/a",
		"https://thin.example.com/b",
		"https://fine.example.com/c",
	}, RunOptions{})

	require.Equal(t, scraper.ErrorKindNetworkError, res.Results[0].ErrorKind)
	require.Equal(t, scraper.ErrorKindExtractionFailed, res.Results[1].ErrorKind)
	require.True(t, res.Results[2].Success)
	require.Equal(t, 1, res.Stats.Succeeded)
	require.Equal(t, 2, res.Stats.Failed)
}

func TestRun_SanitizesWrappedURLs(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, &fakeGate{}, &fakeLimiter{}, &fakeFetcher{}, &fakeExtractor{})
	res := o.Run(context.Background(), []string{
		"<![CDATA[https://feed.example.com/article]]>",
	}, RunOptions{})
	require.Equal(t, "https://feed.example.com/article", res.Results[0].URL)
	require.True(t, res.Results[0].Success)
}

func TestRun_CancellationMarksRemaining(t *testing.T) {
	t.Parallel()

	urls := make([]string, 12)
	for i := range urls {
		urls[i] = "https://slow.example.com/" + strings.Repeat("x", i+1)
	}
	fetcher := &fakeFetcher{delay: 50 * time.Millisecond}
	o := newTestOrchestrator(t, &fakeGate{}, &fakeLimiter{}, fetcher, &fakeExtractor{})

	ctx, cancel := context.WithTimeout(context.Background(), 75*time.Millisecond)
	defer cancel()
	res := o.Run(ctx, urls, RunOptions{Concurrency: 2})

	require.Len(t, res.Results, len(urls))
	var timedOut int
	for _, r := range res.Results {
		require.NotEmpty(t, r.URL)
		if r.ErrorKind == scraper.ErrorKindTimeout {
			timedOut++
		}
	}
	require.Greater(t, timedOut, 0)
	require.Equal(t, res.Stats.Succeeded+res.Stats.Failed, res.Stats.Total)
}

func TestRun_ConcurrencyClampedToConfiguredMax(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, &fakeGate{}, &fakeLimiter{}, &fakeFetcher{}, &fakeExtractor{})
	require.Equal(t, 3, o.workerCount(RunOptions{Concurrency: 50}, 100))
	require.Equal(t, 2, o.workerCount(RunOptions{Concurrency: 2}, 100))
	require.Equal(t, 3, o.workerCount(RunOptions{}, 100))
	require.Equal(t, 1, o.workerCount(RunOptions{}, 1))
}

func TestRun_EmptyInput(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, &fakeGate{}, &fakeLimiter{}, &fakeFetcher{}, &fakeExtractor{})
	res := o.Run(context.Background(), nil, RunOptions{})
	require.Empty(t, res.Results)
	require.Zero(t, res.Stats.Total)
}

func TestRun_DurationComesFromClock(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{
		base: time.Date(2026, 3, 14, 8, 30, 0, 0, time.UTC),
		step: 2 * time.Second,
	}
	o, err := New(Config{Concurrency: 3}, &fakeGate{}, &fakeLimiter{}, &fakeFetcher{}, &fakeExtractor{},
		clk, nil, zap.NewNop())
	require.NoError(t, err)

	res := o.Run(context.Background(), []string{
		"https://a.example.com/1",
		"https://b.example.com/2",
	}, RunOptions{})

	require.InDelta(t, 2.0, res.Stats.DurationSeconds, 0.001)
	require.InDelta(t, 1.0, res.Stats.URLsPerSecond, 0.001)
}

func TestRun_SameDomainRequestsSpaced(t *testing.T) {
	t.Parallel()

	delay := 60 * time.Millisecond
	limiter := ratelimit.New(ratelimit.Config{DefaultDelay: delay}, nil, nil)
	o, err := New(Config{Concurrency: 3}, &fakeGate{}, limiter, &fakeFetcher{}, &fakeExtractor{},
		nil, nil, zap.NewNop())
	require.NoError(t, err)

	urls := []string{
		"https://news.example.com/1",
		"https://news.example.com/2",
		"https://news.example.com/3",
		"https://news.example.com/4",
		"https://news.example.com/5",
	}
	start := time.Now()
	res := o.Run(context.Background(), urls, RunOptions{})
	elapsed := time.Since(start)

	for _, r := range res.Results {
		require.True(t, r.Success)
	}
	// Five requests to one domain leave four spacing gaps regardless of
	// worker count.
	require.GreaterOrEqual(t, elapsed, 4*delay-20*time.Millisecond,
		"same-domain requests finished too quickly: %v", elapsed)
}

func TestComputeStats(t *testing.T) {
	t.Parallel()

	results := []scraper.ExtractionResult{
		{Success: true, ContentLength: 100},
		{Success: true, ContentLength: 300},
		{ErrorKind: scraper.ErrorKindNetworkError},
		{ErrorKind: scraper.ErrorKindPolicyBlocked},
	}
	stats := computeStats(results, 2*time.Second)
	require.Equal(t, 4, stats.Total)
	require.Equal(t, 2, stats.Succeeded)
	require.Equal(t, 2, stats.Failed)
	require.InDelta(t, 0.5, stats.SuccessRate, 0.001)
	require.Equal(t, 200, stats.AvgContentLength)
	require.InDelta(t, 2.0, stats.DurationSeconds, 0.001)
	require.InDelta(t, 2.0, stats.URLsPerSecond, 0.001)
}
