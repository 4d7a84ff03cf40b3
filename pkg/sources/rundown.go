package sources

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/samvad-hq/samvad-newsdesk/internal/domain"
)

const (
	rundownAuthor    = "Rowan Cheung"
	rundownMinTitle  = 10
	rundownPlusToken = "PLUS:"
)

// rundownVariant parses a homepage that links every post under /p/ without dates.
type rundownVariant struct {
	singlePageListing
}

// NewRundownVariant returns the homepage variant.
func NewRundownVariant() Variant { return rundownVariant{} }

func (rundownVariant) Type() string { return TypeRundown }

func (rundownVariant) ExtractItems(src Source, pages []Page) ([]domain.RawArticle, error) {
	author := ConfigString(src, ConfigAuthorKey, rundownAuthor)
	var items []domain.RawArticle

	for _, page := range pages {
		doc, err := parseHTML(page)
		if err != nil {
			return nil, err
		}

		seen := make(map[string]struct{})
		doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
			href, _ := link.Attr("href")
			if !isArticleLink(href) {
				return
			}
			full := stripQuery(resolveURL(href, page.URL))
			if full == "" {
				return
			}
			if _, dup := seen[full]; dup {
				return
			}
			seen[full] = struct{}{}

			text := CleanText(link.Text())
			if runeLen(text) < rundownMinTitle {
				return
			}
			title, subtitle := splitPlus(text)

			items = append(items, domain.RawArticle{
				Title:     title,
				URL:       full,
				Subtitle:  subtitle,
				Author:    author,
				Thumbnail: cardThumbnail(link, page.URL),
				Summary:   firstNonEmpty(subtitle, TruncateSummary(text, SummaryMaxRunes)),
				Tags:      []string{"AI", "Newsletter"},
			})
		})
	}
	return items, nil
}

// splitPlus separates "Headline PLUS: more stories" into title and subtitle.
func splitPlus(text string) (string, string) {
	idx := strings.Index(text, rundownPlusToken)
	if idx < 0 {
		return text, ""
	}
	title := CleanText(text[:idx])
	rest := CleanText(text[idx+len(rundownPlusToken):])
	if title == "" {
		return text, ""
	}
	return title, CleanText(rundownPlusToken + " " + rest)
}

func cardThumbnail(link *goquery.Selection, base string) string {
	card := link.Closest("div, article, li")
	if card.Length() == 0 {
		return ""
	}
	src, ok := card.Find("img[src]").First().Attr("src")
	if !ok || strings.Contains(strings.ToLower(src), "logo") {
		return ""
	}
	return resolveURL(src, base)
}
