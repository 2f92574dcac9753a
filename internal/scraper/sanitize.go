package scraper

import (
	"net/url"
	"strings"
)

// Feed pipelines occasionally deliver URLs still wrapped in the CDATA
// sections they were embedded in, sometimes several layers deep.
const (
	cdataOpen  = "<![CDATA["
	cdataClose = "]]>"
)

// SanitizeURL strips CDATA wrapper layers and surrounding whitespace from a
// raw URL string. It is idempotent, never fails, and leaves well-formed
// URLs (and empty input) unchanged.
func SanitizeURL(raw string) string {
	cleaned := strings.TrimSpace(raw)
	for strings.Contains(cleaned, cdataOpen) || strings.Contains(cleaned, cdataClose) {
		cleaned = strings.ReplaceAll(cleaned, cdataOpen, "")
		cleaned = strings.ReplaceAll(cleaned, cdataClose, "")
		cleaned = strings.TrimSpace(cleaned)
	}
	return cleaned
}

// Domain extracts the lowercase host used as the rate-limiting and policy
// key for a URL. Unparseable input yields an empty string.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
