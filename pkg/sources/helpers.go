package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/samvad-hq/samvad-newsdesk/internal/domain"
	"github.com/samvad-hq/samvad-newsdesk/pkg/httpclient"
)

const (
	maxHeadBytes      = 1 << 20  // enrichment only reads <head>
	maxListingBytes   = 16 << 20 // listings and feeds are parsed whole
	SummaryMaxRunes   = 200
	summaryEllipsis   = "…"
	maxSnippetLength  = 512
	articlePathMarker = "/p/"
)

// CleanText collapses runs of whitespace into single spaces.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TruncateSummary cuts text to at most max runes on a word boundary and appends an ellipsis.
func TruncateSummary(text string, max int) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	cut := string([]rune(text)[:max])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return cut + summaryEllipsis
}

var dateLayouts = []struct {
	layout  string
	hasYear bool
}{
	{"Jan 2, 2006", true},
	{"Jan 2", false},
	{"January 2, 2006", true},
	{"January 2", false},
	{"2006-01-02", true},
	{"2 Jan 2006", true},
	{"2 January 2006", true},
}

// ParseDate understands RFC 3339 plus the date formats newsletters print. Dates without
// a year take the current UTC year.
func ParseDate(raw string) (time.Time, bool) {
	return parseDateAt(raw, time.Now().UTC())
}

func parseDateAt(raw string, now time.Time) (time.Time, bool) {
	raw = CleanText(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), true
	}
	for _, l := range dateLayouts {
		t, err := time.Parse(l.layout, raw)
		if err != nil {
			continue
		}
		if !l.hasYear {
			t = time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		}
		return t.UTC(), true
	}
	return time.Time{}, false
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

func timePtr(t time.Time) *time.Time { return &t }

// resolveURL makes href absolute against base; non-http results are dropped.
func resolveURL(href, base string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if !ref.IsAbs() {
		baseURL, err := url.Parse(base)
		if err != nil {
			return ""
		}
		ref = baseURL.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	return ref.String()
}

// stripQuery drops the query string and fragment so repeated links compare equal.
func stripQuery(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		return raw[:i]
	}
	return raw
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func responseSnippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxSnippetLength {
		return s[:maxSnippetLength] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}

// fetchPage downloads target with the source's headers. Transport errors, timeouts and
// non-200 statuses are all SourceUnreachable. Bodies are never truncated here; one
// above maxListingBytes is a ParseFailure.
func fetchPage(ctx context.Context, client HTTPClient, src Source, target string) ([]byte, error) {
	resp, err := client.Get(ctx, target, Headers(src))
	if err != nil {
		if httpclient.IsTimeout(err) {
			return nil, domain.Unreachable(src.ID, fmt.Sprintf("request to %s timed out", target), err)
		}
		return nil, domain.Unreachable(src.ID, fmt.Sprintf("request to %s failed", target), err)
	}

	body := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		return nil, domain.Unreachable(src.ID,
			fmt.Sprintf("%s returned status %d body: %s", target, resp.StatusCode(), responseSnippet(body)), nil)
	}
	if ct := resp.ContentType(); !markupContentType(ct) {
		return nil, domain.ParseFailure(src.ID, fmt.Sprintf("%s returned content type %q", target, ct), nil)
	}
	if len(body) > maxListingBytes {
		return nil, domain.ParseFailure(src.ID,
			fmt.Sprintf("%s is %d bytes, exceeds %d byte limit", target, len(body), maxListingBytes), nil)
	}
	return body, nil
}

// markupContentType accepts HTML, XML and feed media types. An absent header is accepted.
func markupContentType(ct string) bool {
	if ct == "" || ct == "text/plain" {
		return true
	}
	return strings.Contains(ct, "html") || strings.Contains(ct, "xml")
}

// singlePageListing fetches just the source's listing_url.
type singlePageListing struct{}

func (singlePageListing) FetchListing(ctx context.Context, client HTTPClient, src Source) ([]Page, error) {
	body, err := fetchPage(ctx, client, src, src.ListingURL)
	if err != nil {
		return nil, err
	}
	return []Page{{URL: src.ListingURL, Body: body}}, nil
}

func parseHTML(page Page) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html %s: %w", page.URL, err)
	}
	return doc, nil
}

// spacedText is Text() with a space between adjacent nodes.
func spacedText(s *goquery.Selection) string {
	var parts []string
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			parts = append(parts, c.Text())
			return
		}
		parts = append(parts, spacedText(c))
	})
	return CleanText(strings.Join(parts, " "))
}

func isArticleLink(href string) bool {
	return strings.Contains(href, articlePathMarker)
}

// pause waits for d or until ctx is done.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
