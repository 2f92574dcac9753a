// Package gatekeeper decides allow/block and crawl-delay per URL from
// robots exclusion rules and machine-readable opt-out signals.
package gatekeeper

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/kittagency/ydun-scraper/internal/audit"
	"github.com/kittagency/ydun-scraper/internal/scraper"
)

// Config controls Gatekeeper behavior.
type Config struct {
	UserAgent string
	// DefaultCrawlDelay is used whenever robots rules do not supply one,
	// or cannot be determined at all (default 1s).
	DefaultCrawlDelay time.Duration
	// ProbeTimeout bounds the robots fetch and the HEAD probe (default 10s
	// and 5s respectively when zero).
	ProbeTimeout time.Duration
}

// Gatekeeper evaluates compliance checks in a fixed order: robots rules
// first, then opt-out signals. Check failures fail open: a rule set that
// cannot be determined never blocks, it yields allowed with the default
// crawl-delay and a logged failure.
type Gatekeeper struct {
	robots       *robotsEvaluator
	probe        *http.Client
	userAgent    string
	defaultDelay time.Duration
	emitter      audit.Emitter
	logger       *zap.Logger
}

// New creates a Gatekeeper.
func New(cfg Config, emitter audit.Emitter, logger *zap.Logger) *Gatekeeper {
	if cfg.DefaultCrawlDelay <= 0 {
		cfg.DefaultCrawlDelay = time.Second
	}
	probeTimeout := cfg.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	if emitter == nil {
		emitter = audit.NopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gatekeeper{
		robots:       newRobotsEvaluator(cfg.UserAgent, cfg.ProbeTimeout, logger),
		probe:        &http.Client{Timeout: probeTimeout},
		userAgent:    cfg.UserAgent,
		defaultDelay: cfg.DefaultCrawlDelay,
		emitter:      emitter,
		logger:       logger,
	}
}

// Decide produces the pre-fetch compliance decision for a URL: robots
// exclusion rules, then response-header opt-out signals. Every decision,
// allowed or not, lands in the audit trail with its reason.
func (g *Gatekeeper) Decide(ctx context.Context, rawURL string) scraper.Decision {
	decision := scraper.Decision{
		URL:        rawURL,
		Allowed:    true,
		CrawlDelay: g.defaultDelay,
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		// Nothing to evaluate against; the fetch will surface the failure.
		decision.Reason = "no origin to evaluate; allowed by default"
		g.record(decision)
		return decision
	}

	verdict := g.robots.Evaluate(ctx, parsed)
	switch {
	case verdict.Err != nil:
		// Fail open: undeterminable rules allow with the default delay.
		g.logger.Warn("robots evaluation failed; allowing access",
			zap.String("url", rawURL), zap.Error(verdict.Err))
		decision.Reason = "robots.txt unavailable; allowed by default"
	case !verdict.Allowed:
		decision.Allowed = false
		decision.Reason = "robots.txt disallows " + g.userAgent
		g.record(decision)
		return decision
	default:
		if verdict.CrawlDelay > 0 {
			decision.CrawlDelay = verdict.CrawlDelay
		}
	}

	signal := g.headerSignal(ctx, rawURL)
	if signal.Err != nil {
		// Probe failure is "no signal found", never a block.
		g.logger.Debug("opt-out header probe failed",
			zap.String("url", rawURL), zap.Error(signal.Err))
	}
	if signal.Found {
		decision.Allowed = false
		decision.Reason = signal.Reason
		g.record(decision)
		return decision
	}

	if decision.Reason == "" {
		decision.Reason = "no opt-out signals detected"
	}
	g.record(decision)
	return decision
}

// CheckContent inspects fetched HTML for meta-tag opt-out signals. Parse
// failures are treated as "no signal found".
func (g *Gatekeeper) CheckContent(rawURL string, html []byte) scraper.Decision {
	decision := scraper.Decision{
		URL:        rawURL,
		Allowed:    true,
		Reason:     "no opt-out signals detected",
		CrawlDelay: g.defaultDelay,
	}
	signal := metaSignal(html)
	if signal.Err != nil {
		g.logger.Debug("meta opt-out inspection failed",
			zap.String("url", rawURL), zap.Error(signal.Err))
		g.record(decision)
		return decision
	}
	if signal.Found {
		decision.Allowed = false
		decision.Reason = signal.Reason
	}
	g.record(decision)
	return decision
}

func (g *Gatekeeper) record(d scraper.Decision) {
	if d.Allowed {
		g.logger.Info("mining allowed",
			zap.String("url", d.URL),
			zap.String("reason", d.Reason),
			zap.Duration("crawl_delay", d.CrawlDelay))
	} else {
		g.logger.Warn("mining blocked",
			zap.String("url", d.URL),
			zap.String("reason", d.Reason))
	}
	g.emitter.Emit(audit.Event{
		TS:      time.Now().UTC(),
		Stage:   audit.StageDecision,
		Domain:  scraper.Domain(d.URL),
		URL:     d.URL,
		Allowed: d.Allowed,
		Reason:  d.Reason,
	})
}
