package gatekeeper

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// W3C TDMRep opt-out markers. Header names are matched case-insensitively
// by net/http canonicalization; meta names by exact attribute value.
const (
	headerOptOut      = "X-TDM-Opt-Out"
	headerReservation = "TDM-Reservation"
	metaReservation   = "tdm-reservation"
)

// optOutSignal is the explicit result of one opt-out check. Found=false
// with Err set means the check could not complete; the caller decides that
// this maps to "no signal", it never blocks by itself.
type optOutSignal struct {
	Found  bool
	Reason string
	Err    error
}

// headerSignal probes the URL with a HEAD request and inspects the
// response headers for reservation markers.
func (g *Gatekeeper) headerSignal(ctx context.Context, rawURL string) optOutSignal {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return optOutSignal{Err: fmt.Errorf("new head request: %w", err)}
	}
	req.Header.Set("User-Agent", g.userAgent)
	resp, err := g.probe.Do(req)
	if err != nil {
		return optOutSignal{Err: fmt.Errorf("head probe: %w", err)}
	}
	defer resp.Body.Close()

	if resp.Header.Get(headerOptOut) != "" {
		return optOutSignal{
			Found:  true,
			Reason: fmt.Sprintf("HTTP header: %s present", headerOptOut),
		}
	}
	if v := resp.Header.Get(headerReservation); v != "" {
		return optOutSignal{
			Found:  true,
			Reason: fmt.Sprintf("HTTP header: %s = %s", headerReservation, v),
		}
	}
	return optOutSignal{}
}

// metaSignal inspects fetched HTML for reservation meta tags.
func metaSignal(html []byte) optOutSignal {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return optOutSignal{Err: fmt.Errorf("parse html: %w", err)}
	}

	reservation := doc.Find(`meta[name="` + metaReservation + `"]`).First()
	if content, ok := reservation.Attr("content"); ok && content == "1" {
		return optOutSignal{
			Found:  true,
			Reason: fmt.Sprintf("HTML meta: %s = 1", metaReservation),
		}
	}

	robotsMeta := doc.Find(`meta[name="robots"]`).First()
	if content, ok := robotsMeta.Attr("content"); ok {
		lowered := strings.ToLower(content)
		if strings.Contains(lowered, "noai") || strings.Contains(lowered, "noimageai") {
			return optOutSignal{
				Found:  true,
				Reason: fmt.Sprintf("HTML meta robots: %s", lowered),
			}
		}
	}
	return optOutSignal{}
}
