package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/kittagency/ydun-scraper/internal/scraper"
)

// minParagraphLen filters boilerplate fragments (nav labels, captions)
// out of the harvested body text.
const minParagraphLen = 25

// Heuristic is the fallback strategy: a goquery pass that harvests
// paragraph text from the most article-like container. It trades
// precision for recall and only runs when readability comes up empty.
type Heuristic struct{}

// NewHeuristic returns the fallback extraction strategy.
func NewHeuristic() *Heuristic { return &Heuristic{} }

// Name implements Strategy.
func (*Heuristic) Name() string { return "heuristic" }

// Extract implements Strategy.
func (*Heuristic) Extract(_ string, html []byte) (scraper.Fields, error) {
	var fields scraper.Fields

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return fields, fmt.Errorf("parse document: %w", err)
	}

	fields.Title = pageTitle(doc)
	fields.Author = metaContent(doc,
		`meta[name="author"]`,
		`meta[property="article:author"]`)
	fields.PublishedAt = metaContent(doc,
		`meta[property="article:published_time"]`,
		`meta[name="date"]`,
		`meta[name="publish-date"]`)

	fields.Content = harvestParagraphs(doc)
	if fields.Content == "" {
		return fields, ErrNoContent
	}
	return fields, nil
}

func pageTitle(doc *goquery.Document) string {
	if og := metaContent(doc, `meta[property="og:title"]`); og != "" {
		return og
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).First().Attr("content"); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// harvestParagraphs walks containers from most to least specific and
// returns the text of the first one holding substantial paragraphs.
func harvestParagraphs(doc *goquery.Document) string {
	for _, container := range []string{"article", "main", `div[itemprop="articleBody"]`, "body"} {
		sel := doc.Find(container).First()
		if sel.Length() == 0 {
			continue
		}
		var parts []string
		sel.Find("p").Each(func(_ int, p *goquery.Selection) {
			text := strings.TrimSpace(p.Text())
			if len(text) >= minParagraphLen {
				parts = append(parts, text)
			}
		})
		if len(parts) > 0 {
			return strings.Join(parts, "\n\n")
		}
	}
	return ""
}
