// Package scraper defines core types shared across subsystems.
package scraper

import (
	"net/http"
	"time"
)

// ErrorKind classifies why a URL failed to produce content.
type ErrorKind string

// Error kinds surfaced in per-URL results.
const (
	ErrorKindNone             ErrorKind = ""
	ErrorKindPolicyBlocked    ErrorKind = "policy_blocked"
	ErrorKindNetworkError     ErrorKind = "network_error"
	ErrorKindServerError      ErrorKind = "server_error"
	ErrorKindProtocolError    ErrorKind = "protocol_error"
	ErrorKindExtractionFailed ErrorKind = "extraction_failed"
	ErrorKindTimeout          ErrorKind = "timeout"
)

// Decision is the outcome of a compliance check for one URL. It is produced
// once and never mutated afterwards.
type Decision struct {
	URL        string
	Allowed    bool
	Reason     string
	CrawlDelay time.Duration
}

// FetchResponse is returned by a Fetcher for a successfully retrieved page.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	Attempts   int
}

// Fields holds the structured article data produced by an extraction
// strategy. Author and PublishedAt are best-effort and may be empty.
type Fields struct {
	Title       string
	Content     string
	Author      string
	PublishedAt string
}

// ExtractionResult is the per-URL outcome of a batch run. Exactly one is
// produced for every input URL regardless of outcome.
type ExtractionResult struct {
	URL           string    `json:"url"`
	Success       bool      `json:"success"`
	Title         string    `json:"title,omitempty"`
	Content       string    `json:"content,omitempty"`
	Author        string    `json:"author,omitempty"`
	PublishedAt   string    `json:"published_at,omitempty"`
	MethodUsed    string    `json:"method_used,omitempty"`
	ContentLength int       `json:"content_length,omitempty"`
	ErrorKind     ErrorKind `json:"error_kind,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// BatchStats aggregates the outcome of a whole batch.
type BatchStats struct {
	Total            int     `json:"total"`
	Succeeded        int     `json:"succeeded"`
	Failed           int     `json:"failed"`
	SuccessRate      float64 `json:"success_rate"`
	AvgContentLength int     `json:"avg_content_length"`
	DurationSeconds  float64 `json:"duration_seconds"`
	URLsPerSecond    float64 `json:"urls_per_second"`
}

// BatchResult carries one ExtractionResult per input URL, indexed by the
// original input position, plus aggregate statistics.
type BatchResult struct {
	BatchID string             `json:"batch_id"`
	Results []ExtractionResult `json:"results"`
	Stats   BatchStats         `json:"stats"`
}
