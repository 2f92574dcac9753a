// Package extract turns fetched HTML into structured article fields using
// an ordered list of strategies with fallback.
package extract

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kittagency/ydun-scraper/internal/scraper"
)

// ErrNoContent is returned by a strategy that parsed the document but
// found no usable article body.
var ErrNoContent = errors.New("no usable content found")

// Strategy is one way of pulling article fields out of HTML.
type Strategy interface {
	// Name identifies the strategy in results and metrics.
	Name() string
	Extract(url string, html []byte) (scraper.Fields, error)
}

// Pipeline tries each strategy in order and returns the first non-empty
// result. A strategy that errors or yields an empty body hands off to the
// next one; the per-strategy failure is logged, not surfaced, unless
// every strategy fails.
type Pipeline struct {
	strategies []Strategy
	logger     *zap.Logger
}

// NewPipeline builds a pipeline over the given strategies, tried in order.
func NewPipeline(logger *zap.Logger, strategies ...Strategy) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{strategies: strategies, logger: logger}
}

// Extract runs the strategies and returns the fields plus the name of the
// strategy that produced them.
func (p *Pipeline) Extract(url string, html []byte) (scraper.Fields, string, error) {
	var lastErr error
	for _, s := range p.strategies {
		fields, err := s.Extract(url, html)
		if err != nil {
			p.logger.Debug("extraction strategy failed",
				zap.String("strategy", s.Name()),
				zap.String("url", url),
				zap.Error(err))
			lastErr = fmt.Errorf("%s: %w", s.Name(), err)
			continue
		}
		if strings.TrimSpace(fields.Content) == "" {
			p.logger.Debug("extraction strategy returned empty content",
				zap.String("strategy", s.Name()),
				zap.String("url", url))
			lastErr = fmt.Errorf("%s: %w", s.Name(), ErrNoContent)
			continue
		}
		return fields, s.Name(), nil
	}
	if lastErr == nil {
		lastErr = ErrNoContent
	}
	return scraper.Fields{}, "", &Error{Err: lastErr}
}

// Error wraps a pipeline failure with its classification.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return "extraction failed: " + e.Err.Error()
}

// Unwrap exposes the last strategy error.
func (e *Error) Unwrap() error { return e.Err }

// Kind implements scraper.KindedError.
func (e *Error) Kind() scraper.ErrorKind { return scraper.ErrorKindExtractionFailed }
