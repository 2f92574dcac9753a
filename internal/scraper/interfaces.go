package scraper

import (
	"context"
	"errors"
	"time"
)

// Gatekeeper decides whether a URL may be mined. Decide runs before the
// fetch (robots rules, then response-header opt-out signals); CheckContent
// runs after the fetch against the retrieved HTML (meta-tag signals).
type Gatekeeper interface {
	Decide(ctx context.Context, url string) Decision
	CheckContent(url string, html []byte) Decision
}

// Limiter spaces out requests per domain. Acquire blocks until at least
// delay has elapsed since the previous grant for the same domain.
type Limiter interface {
	Acquire(ctx context.Context, domain string, delay time.Duration) error
}

// Fetcher retrieves a URL body. Errors implement KindedError where a
// classification is known.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResponse, error)
}

// Extractor converts fetched HTML into structured fields, returning the
// name of the strategy that produced them.
type Extractor interface {
	Extract(url string, html []byte) (Fields, string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// KindedError is implemented by errors that carry an ErrorKind.
type KindedError interface {
	error
	Kind() ErrorKind
}

// KindOf maps an error to its ErrorKind, defaulting to a network failure
// when no classification is attached.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}
	var kinded KindedError
	if errors.As(err, &kinded) {
		return kinded.Kind()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorKindTimeout
	}
	return ErrorKindNetworkError
}
