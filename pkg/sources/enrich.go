package sources

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/samvad-hq/samvad-newsdesk/internal/domain"
)

// OGEnricher fills missing subtitle, summary and thumbnail from an item's OpenGraph tags.
// Fields already taken from the listing are never overwritten.
type OGEnricher struct{}

// NewOGEnricher returns the default item enricher.
func NewOGEnricher() OGEnricher { return OGEnricher{} }

func (OGEnricher) EnrichItem(ctx context.Context, client HTTPClient, src Source, item domain.RawArticle) (domain.RawArticle, error) {
	body, err := fetchPage(ctx, client, src, item.URL)
	if err != nil {
		return item, err
	}
	if len(body) > maxHeadBytes {
		body = body[:maxHeadBytes]
	}

	meta, err := parseMeta(body)
	if err != nil {
		return item, err
	}

	if item.Subtitle == "" && meta.Description != "" {
		item.Subtitle = meta.Description
	}
	if item.Summary == "" && meta.Description != "" {
		item.Summary = TruncateSummary(meta.Description, SummaryMaxRunes)
	}
	if item.Thumbnail == "" && meta.ImageURL != "" {
		item.Thumbnail = resolveURL(meta.ImageURL, item.URL)
	}
	if item.PublishedDate == nil && meta.PublishedAt != "" {
		if t, ok := ParseDate(meta.PublishedAt); ok {
			item.PublishedDate = timePtr(t)
		}
	}
	return item, nil
}

// pageMeta is what an article page says about itself in its <head>.
type pageMeta struct {
	Title       string
	Description string
	ImageURL    string
	PublishedAt string
}

func parseMeta(body []byte) (pageMeta, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return pageMeta{}, fmt.Errorf("read article head: %w", err)
	}
	head := doc.Find("head")
	if head.Length() == 0 {
		head = doc.Selection
	}

	// content returns the first non-blank content attribute among selectors.
	content := func(selectors ...string) string {
		for _, sel := range selectors {
			v, _ := head.Find(sel).First().Attr("content")
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
		return ""
	}

	meta := pageMeta{
		Title:       content(`meta[property="og:title"]`, `meta[name="twitter:title"]`),
		Description: CleanText(content(`meta[property="og:description"]`, `meta[name="twitter:description"]`, `meta[name="description"]`)),
		ImageURL:    content(`meta[property="og:image"]`, `meta[property="og:image:url"]`, `meta[name="twitter:image"]`),
		PublishedAt: content(`meta[property="article:published_time"]`, `meta[name="date"]`),
	}
	if meta.Title == "" {
		meta.Title = CleanText(head.Find("title").First().Text())
	}
	return meta, nil
}
