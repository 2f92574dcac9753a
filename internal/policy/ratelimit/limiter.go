// Package ratelimit enforces minimum request spacing per origin domain.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kittagency/ydun-scraper/internal/audit"
)

// Config holds rate limiter configuration.
type Config struct {
	// DefaultDelay is the spacing floor applied when a caller supplies no
	// crawl-delay, or one below the floor.
	DefaultDelay time.Duration
}

// Limiter manages per-domain request spacing. State is created lazily on
// first request to a domain and persists for the process lifetime; it is
// owned by whoever constructs the Limiter and passed by handle, never
// exposed as a package-level global.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*domainLimiter
	floor    time.Duration
	emitter  audit.Emitter
	logger   *zap.Logger
}

type domainLimiter struct {
	lim   *rate.Limiter
	delay time.Duration
}

// New creates a Limiter.
func New(cfg Config, emitter audit.Emitter, logger *zap.Logger) *Limiter {
	floor := cfg.DefaultDelay
	if floor <= 0 {
		floor = time.Second
	}
	if emitter == nil {
		emitter = audit.NopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{
		limiters: make(map[string]*domainLimiter),
		floor:    floor,
		emitter:  emitter,
		logger:   logger,
	}
}

// Acquire blocks until at least delay has elapsed since the previous grant
// for domain, then records the grant. Callers on different domains never
// block each other; concurrent callers on the same domain are serialized
// by the limiter's reservation bookkeeping, not by holding the map lock
// across the wait.
func (l *Limiter) Acquire(ctx context.Context, domain string, delay time.Duration) error {
	if delay < l.floor {
		delay = l.floor
	}
	dl := l.limiterFor(domain, delay)

	start := time.Now()
	if err := dl.lim.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		l.logger.Debug("rate limit wait",
			zap.String("domain", domain),
			zap.Duration("waited", waited),
			zap.Duration("delay", delay))
		l.emitter.Emit(audit.Event{
			TS:     time.Now().UTC(),
			Stage:  audit.StageRateWait,
			Domain: domain,
			Dur:    waited,
		})
	}
	return nil
}

// limiterFor returns the domain's limiter, creating or retuning it under a
// short critical section covering only the map access.
func (l *Limiter) limiterFor(domain string, delay time.Duration) *domainLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	dl, ok := l.limiters[domain]
	if !ok {
		dl = &domainLimiter{
			lim:   rate.NewLimiter(rate.Every(delay), 1),
			delay: delay,
		}
		l.limiters[domain] = dl
		return dl
	}
	if dl.delay != delay {
		dl.lim.SetLimit(rate.Every(delay))
		dl.delay = delay
	}
	return dl
}

// Delay reports the spacing currently enforced for a domain, falling back
// to the floor for unknown domains.
func (l *Limiter) Delay(domain string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if dl, ok := l.limiters[domain]; ok {
		return dl.delay
	}
	return l.floor
}
