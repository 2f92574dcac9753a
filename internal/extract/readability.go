package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/kittagency/ydun-scraper/internal/scraper"
)

// Readability is the primary strategy. It distills the page down to the
// main article node and reads title, byline, and publication time from
// the document metadata.
type Readability struct{}

// NewReadability returns the primary extraction strategy.
func NewReadability() *Readability { return &Readability{} }

// Name implements Strategy.
func (*Readability) Name() string { return "readability" }

// Extract implements Strategy.
func (*Readability) Extract(rawURL string, html []byte) (scraper.Fields, error) {
	var fields scraper.Fields

	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return fields, fmt.Errorf("parse url: %w", err)
	}

	parser := readability.NewParser()
	article, err := parser.Parse(bytes.NewReader(html), pageURL)
	if err != nil {
		return fields, fmt.Errorf("parse document: %w", err)
	}

	fields.Title = strings.TrimSpace(article.Title)
	fields.Content = strings.TrimSpace(article.TextContent)
	fields.Author = strings.TrimSpace(article.Byline)
	if article.PublishedTime != nil {
		fields.PublishedAt = article.PublishedTime.Format(time.RFC3339)
	}
	if fields.Content == "" {
		return fields, ErrNoContent
	}
	return fields, nil
}
