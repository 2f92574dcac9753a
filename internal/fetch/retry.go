package fetch

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/kittagency/ydun-scraper/internal/scraper"
)

// Error is a classified fetch failure. Status is zero when no HTTP
// response was received. Transient marks network failures worth another
// attempt (connection resets, timed-out dials); stable ones like DNS
// "no such host" leave it false.
type Error struct {
	ErrKind   scraper.ErrorKind
	Status    int
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.ErrKind)
	}
	return e.Err.Error()
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.Err }

// Kind implements scraper.KindedError.
func (e *Error) Kind() scraper.ErrorKind { return e.ErrKind }

// Transient server conditions worth another attempt.
var retryableStatus = map[int]bool{
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// classify maps a raw fetch failure to its error kind. Retryable server
// statuses become ServerError (surfaced once retries are exhausted); other
// HTTP statuses are ProtocolError and never retried.
func classify(status int, err error) *Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{ErrKind: scraper.ErrorKindTimeout, Status: status, Err: err}
	}
	if status != 0 {
		if retryableStatus[status] {
			return &Error{ErrKind: scraper.ErrorKindServerError, Status: status, Err: err}
		}
		return &Error{ErrKind: scraper.ErrorKindProtocolError, Status: status, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{ErrKind: scraper.ErrorKindNetworkError, Transient: true, Err: err}
	}
	if errors.Is(err, syscall.ECONNRESET) || strings.Contains(err.Error(), "connection reset") {
		return &Error{ErrKind: scraper.ErrorKindNetworkError, Transient: true, Err: err}
	}
	msg := err.Error()
	if strings.Contains(msg, "protocol scheme") || strings.Contains(msg, "invalid URL") ||
		strings.Contains(msg, "malformed") {
		return &Error{ErrKind: scraper.ErrorKindProtocolError, Err: err}
	}
	return &Error{ErrKind: scraper.ErrorKindNetworkError, Err: err}
}

// RetryPolicy implements jittered exponential backoff for transient
// failures. Requests are GET-only, so retrying is always idempotent.
type RetryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewRetryPolicy builds a policy; non-positive arguments fall back to
// defaults of 3 retries, 250ms base, and 5s cap.
func NewRetryPolicy(maxRetries int, baseDelay, maxDelay time.Duration) *RetryPolicy {
	if maxRetries < 0 {
		maxRetries = 3
	}
	if baseDelay <= 0 {
		baseDelay = 250 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}
	return &RetryPolicy{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
	}
}

// MaxAttempts is the total attempt budget including the first try.
func (p *RetryPolicy) MaxAttempts() int { return p.maxRetries + 1 }

// ShouldRetry decides whether the classified error warrants another
// attempt after the given 1-based attempt number.
func (p *RetryPolicy) ShouldRetry(ferr *Error, attempt int) bool {
	if ferr == nil || attempt >= p.MaxAttempts() {
		return false
	}
	switch ferr.ErrKind {
	case scraper.ErrorKindServerError:
		return retryableStatus[ferr.Status]
	case scraper.ErrorKindNetworkError:
		// Only resets and timed-out dials may recover; stable failures
		// such as unresolvable hosts never do.
		return ferr.Transient
	default:
		return false
	}
}

// Backoff returns the wait duration before the next attempt.
func (p *RetryPolicy) Backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	jitter := randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
