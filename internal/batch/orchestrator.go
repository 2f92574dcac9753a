// Package batch runs a set of URLs through sanitization, compliance
// checks, rate limiting, fetch, and extraction, producing one result per
// input URL.
package batch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kittagency/ydun-scraper/internal/audit"
	"github.com/kittagency/ydun-scraper/internal/clock/system"
	"github.com/kittagency/ydun-scraper/internal/scraper"
)

// Config controls orchestrator defaults.
type Config struct {
	// Concurrency is the default worker count (default 3) and the upper
	// bound for per-run overrides.
	Concurrency int
	// PerURLTimeout bounds the full pipeline for a single URL; zero means
	// no per-URL deadline beyond the batch context.
	PerURLTimeout time.Duration
}

const defaultConcurrency = 3

// RunOptions tune a single Run call within the configured bounds.
type RunOptions struct {
	// Concurrency overrides the worker count; values above the configured
	// maximum are clamped, non-positive values use the default.
	Concurrency int
	// PerURLTimeout overrides the per-URL deadline for this run.
	PerURLTimeout time.Duration
}

// Orchestrator drives the scrape pipeline over a batch of URLs with a
// bounded worker pool. Every input URL yields exactly one result in input
// order, and one URL's failure never affects the others.
type Orchestrator struct {
	cfg       Config
	gate      scraper.Gatekeeper
	limiter   scraper.Limiter
	fetcher   scraper.Fetcher
	extractor scraper.Extractor
	clock     scraper.Clock
	emitter   audit.Emitter
	logger    *zap.Logger
}

// New builds an Orchestrator. The pipeline dependencies are required; a
// nil clock falls back to the real UTC clock.
func New(cfg Config, gate scraper.Gatekeeper, limiter scraper.Limiter,
	fetcher scraper.Fetcher, extractor scraper.Extractor, clk scraper.Clock,
	emitter audit.Emitter, logger *zap.Logger) (*Orchestrator, error) {

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if gate == nil || limiter == nil || fetcher == nil || extractor == nil {
		return nil, errors.New("orchestrator requires gatekeeper, limiter, fetcher, and extractor")
	}
	if clk == nil {
		clk = system.New()
	}
	if emitter == nil {
		emitter = audit.NopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:       cfg,
		gate:      gate,
		limiter:   limiter,
		fetcher:   fetcher,
		extractor: extractor,
		clock:     clk,
		emitter:   emitter,
		logger:    logger,
	}, nil
}

// Run processes urls concurrently and returns per-URL results in input
// order plus aggregate statistics. Cancellation of ctx stops new work;
// URLs not yet processed are reported as timed out.
func (o *Orchestrator) Run(ctx context.Context, urls []string, opts RunOptions) scraper.BatchResult {
	batchID := uuid.New()
	start := o.clock.Now()

	workers := o.workerCount(opts, len(urls))
	perURLTimeout := o.cfg.PerURLTimeout
	if opts.PerURLTimeout > 0 {
		perURLTimeout = opts.PerURLTimeout
	}

	o.logger.Info("batch started",
		zap.String("batch_id", batchID.String()),
		zap.Int("urls", len(urls)),
		zap.Int("concurrency", workers))
	o.emitter.Emit(audit.Event{
		BatchID: audit.UUIDToBytes(batchID),
		TS:      start,
		Stage:   audit.StageBatchStart,
	})

	results := make([]scraper.ExtractionResult, len(urls))
	indexes := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indexes {
				results[idx] = o.processOne(ctx, batchID, urls[idx], perURLTimeout)
			}
		}()
	}

feed:
	for idx := range urls {
		select {
		case indexes <- idx:
		case <-ctx.Done():
			// Mark everything not yet handed out; workers finish what
			// they already hold.
			for rest := idx; rest < len(urls); rest++ {
				select {
				case indexes <- rest:
				default:
					results[rest] = canceledResult(urls[rest], ctx.Err())
				}
			}
			break feed
		}
	}
	close(indexes)
	wg.Wait()

	elapsed := o.clock.Now().Sub(start)
	stats := computeStats(results, elapsed)

	o.logger.Info("batch finished",
		zap.String("batch_id", batchID.String()),
		zap.Int("succeeded", stats.Succeeded),
		zap.Int("failed", stats.Failed),
		zap.Duration("elapsed", elapsed))
	o.emitter.Emit(audit.Event{
		BatchID: audit.UUIDToBytes(batchID),
		TS:      o.clock.Now(),
		Stage:   audit.StageBatchDone,
		Dur:     elapsed,
	})

	return scraper.BatchResult{
		BatchID: batchID.String(),
		Results: results,
		Stats:   stats,
	}
}

func (o *Orchestrator) workerCount(opts RunOptions, total int) int {
	workers := o.cfg.Concurrency
	if opts.Concurrency > 0 {
		workers = opts.Concurrency
		if workers > o.cfg.Concurrency {
			workers = o.cfg.Concurrency
		}
	}
	if total > 0 && workers > total {
		workers = total
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

// processOne runs the full pipeline for a single URL. Failures are
// captured in the result, never propagated.
func (o *Orchestrator) processOne(ctx context.Context, batchID uuid.UUID, rawURL string, timeout time.Duration) scraper.ExtractionResult {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return canceledResult(rawURL, err)
	}

	url := scraper.SanitizeURL(rawURL)
	if url != rawURL {
		o.emitter.Emit(audit.Event{
			BatchID: audit.UUIDToBytes(batchID),
			TS:      o.clock.Now(),
			Stage:   audit.StageSanitize,
			Domain:  scraper.Domain(url),
			URL:     url,
		})
	}
	result := scraper.ExtractionResult{URL: url}

	decision := o.gate.Decide(ctx, url)
	if !decision.Allowed {
		result.ErrorKind = scraper.ErrorKindPolicyBlocked
		result.Error = decision.Reason
		return result
	}

	domain := scraper.Domain(url)
	if err := o.limiter.Acquire(ctx, domain, decision.CrawlDelay); err != nil {
		result.ErrorKind = scraper.KindOf(err)
		result.Error = err.Error()
		return result
	}

	resp, err := o.fetcher.Fetch(ctx, url)
	if err != nil {
		result.ErrorKind = scraper.KindOf(err)
		result.Error = err.Error()
		return result
	}

	if content := o.gate.CheckContent(url, resp.Body); !content.Allowed {
		result.ErrorKind = scraper.ErrorKindPolicyBlocked
		result.Error = content.Reason
		return result
	}

	fields, method, err := o.extractor.Extract(url, resp.Body)
	if err != nil {
		result.ErrorKind = scraper.KindOf(err)
		result.Error = err.Error()
		return result
	}

	result.Success = true
	result.Title = fields.Title
	result.Content = fields.Content
	result.Author = fields.Author
	result.PublishedAt = fields.PublishedAt
	result.MethodUsed = method
	result.ContentLength = len(fields.Content)

	o.emitter.Emit(audit.Event{
		BatchID: audit.UUIDToBytes(batchID),
		TS:      o.clock.Now(),
		Stage:   audit.StageExtractDone,
		Domain:  domain,
		URL:     url,
		Bytes:   int64(result.ContentLength),
		Method:  method,
	})
	return result
}

func canceledResult(rawURL string, err error) scraper.ExtractionResult {
	msg := "batch canceled before processing"
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	return scraper.ExtractionResult{
		URL:       scraper.SanitizeURL(rawURL),
		ErrorKind: scraper.ErrorKindTimeout,
		Error:     msg,
	}
}

func computeStats(results []scraper.ExtractionResult, elapsed time.Duration) scraper.BatchStats {
	stats := scraper.BatchStats{Total: len(results)}
	var contentSum int
	for _, r := range results {
		if r.Success {
			stats.Succeeded++
			contentSum += r.ContentLength
		} else {
			stats.Failed++
		}
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Succeeded) / float64(stats.Total)
	}
	if stats.Succeeded > 0 {
		stats.AvgContentLength = contentSum / stats.Succeeded
	}
	stats.DurationSeconds = elapsed.Seconds()
	if stats.DurationSeconds > 0 {
		stats.URLsPerSecond = float64(stats.Total) / stats.DurationSeconds
	}
	return stats
}
