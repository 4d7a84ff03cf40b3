package sources

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/samvad-hq/samvad-newsdesk/internal/domain"
	"github.com/samvad-hq/samvad-newsdesk/internal/logger"
)

const (
	redditSubredditToken = "{subreddit}"
	redditMinTitle       = 10
	redditDefaultEntries = 20
	redditUnknownAuthor  = "unknown"

	ConfigSubredditsKey = "subreddits"
	ConfigMaxEntriesKey = "max_entries"
)

var defaultSubreddits = []string{"artificial", "MachineLearning", "singularity"}

// redditVariant reads one Atom feed per subreddit. listing_url carries a {subreddit}
// placeholder. The listing fails only when every feed fails.
type redditVariant struct {
	log logger.Logger
}

// NewRedditVariant returns the subreddit feed variant.
func NewRedditVariant(log logger.Logger) Variant {
	return redditVariant{log: logger.OrNop(log)}
}

func (redditVariant) Type() string { return TypeReddit }

func (v redditVariant) FetchListing(ctx context.Context, client HTTPClient, src Source) ([]Page, error) {
	subs := ConfigStrings(src, ConfigSubredditsKey, defaultSubreddits)
	pages := make([]Page, 0, len(subs))
	var errs []error

	for i, sub := range subs {
		if i > 0 {
			if err := pause(ctx, src.RequestDelay()); err != nil {
				return nil, err
			}
		}
		target := strings.ReplaceAll(src.ListingURL, redditSubredditToken, sub)
		body, err := fetchPage(ctx, client, src, target)
		if err != nil {
			errs = append(errs, err)
			v.log.WarnObj("subreddit feed failed", "feed_error", map[string]any{
				"source_id": src.ID,
				"subreddit": sub,
				"error":     err.Error(),
			})
			continue
		}
		pages = append(pages, Page{URL: target, Label: sub, Body: body})
	}

	if len(pages) == 0 {
		return nil, domain.Unreachable(src.ID, "every subreddit feed failed", errors.Join(errs...))
	}
	return pages, nil
}

func (v redditVariant) ExtractItems(src Source, pages []Page) ([]domain.RawArticle, error) {
	limit := ConfigInt(src, ConfigMaxEntriesKey, redditDefaultEntries)
	parser := gofeed.NewParser()

	var (
		items  []domain.RawArticle
		errs   []error
		parsed int
	)
	for _, page := range pages {
		feed, err := parser.Parse(bytes.NewReader(page.Body))
		if err != nil {
			errs = append(errs, fmt.Errorf("parse feed %s: %w", page.URL, err))
			continue
		}
		parsed++

		for i, entry := range feed.Items {
			if i >= limit {
				break
			}
			if item, ok := redditItem(page.Label, entry); ok {
				items = append(items, item)
			}
		}
	}

	if parsed == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	for _, err := range errs {
		v.log.WarnObj("subreddit feed unparsable", "feed_error", map[string]any{
			"source_id": src.ID,
			"error":     err.Error(),
		})
	}
	return items, nil
}

func redditItem(sub string, entry *gofeed.Item) (domain.RawArticle, bool) {
	title := CleanText(entry.Title)
	if runeLen(title) < redditMinTitle {
		return domain.RawArticle{}, false
	}
	link := strings.TrimSpace(entry.Link)
	if link == "" {
		return domain.RawArticle{}, false
	}

	item := domain.RawArticle{
		Title:  title,
		URL:    stripQuery(link),
		Author: "u/" + redditAuthor(entry),
		Tags:   []string{"AI", "Reddit", "r/" + sub},
	}

	switch {
	case entry.UpdatedParsed != nil:
		item.PublishedDate = timePtr(entry.UpdatedParsed.UTC())
	case entry.PublishedParsed != nil:
		item.PublishedDate = timePtr(entry.PublishedParsed.UTC())
	}

	item.Subtitle = "r/" + sub
	if flair := redditFlair(sub, entry.Categories); flair != "" {
		item.Subtitle += " · " + flair
	}

	content := firstNonEmpty(entry.Content, entry.Description)
	if content != "" {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(content)); err == nil {
			if src, ok := doc.Find("img[src]").First().Attr("src"); ok && strings.HasPrefix(src, "http") {
				item.Thumbnail = src
			}
			item.Summary = TruncateSummary(spacedText(doc.Selection), SummaryMaxRunes)
		}
	}
	if item.Summary == "" {
		item.Summary = item.Subtitle
	}
	return item, true
}

func redditAuthor(entry *gofeed.Item) string {
	var name string
	if len(entry.Authors) > 0 && entry.Authors[0] != nil {
		name = entry.Authors[0].Name
	}
	name = strings.TrimPrefix(strings.TrimSpace(name), "/u/")
	name = strings.TrimPrefix(name, "u/")
	if name == "" {
		return redditUnknownAuthor
	}
	return name
}

// redditFlair skips the category that only repeats the subreddit name.
func redditFlair(sub string, categories []string) string {
	for _, c := range categories {
		c = strings.TrimSpace(c)
		if c == "" || strings.EqualFold(c, sub) || strings.EqualFold(c, "r/"+sub) {
			continue
		}
		return c
	}
	return ""
}
