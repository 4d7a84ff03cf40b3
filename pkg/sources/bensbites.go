package sources

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/samvad-hq/samvad-newsdesk/internal/domain"
)

const (
	bensBitesAuthor   = "Ben Tossell"
	bensBitesMinTitle = 5
	bensBitesMinSub   = 10
	// how far above a <time> element to look for its post links
	bensBitesMaxClimb = 5
)

// bensBitesVariant parses a Substack-style archive where each post has a <time datetime>
// next to one or more /p/ links.
type bensBitesVariant struct {
	singlePageListing
}

// NewBensBitesVariant returns the archive-page variant.
func NewBensBitesVariant() Variant { return bensBitesVariant{} }

func (bensBitesVariant) Type() string { return TypeBensBites }

func (bensBitesVariant) ExtractItems(src Source, pages []Page) ([]domain.RawArticle, error) {
	author := ConfigString(src, ConfigAuthorKey, bensBitesAuthor)
	var items []domain.RawArticle

	for _, page := range pages {
		doc, err := parseHTML(page)
		if err != nil {
			return nil, err
		}

		seen := make(map[string]struct{})
		doc.Find("time").Each(func(_ int, timeEl *goquery.Selection) {
			stamp, ok := timeEl.Attr("datetime")
			if !ok || strings.TrimSpace(stamp) == "" {
				return
			}
			published := parsePostTime(stamp, timeEl.Text())

			links := postLinks(timeEl)
			if links == nil {
				return
			}

			links.EachWithBreak(func(_ int, link *goquery.Selection) bool {
				href, _ := link.Attr("href")
				full := stripQuery(resolveURL(href, page.URL))
				if full == "" {
					return true
				}
				if _, dup := seen[full]; dup {
					return true
				}
				title := CleanText(link.Text())
				if runeLen(title) < bensBitesMinTitle {
					return true
				}
				seen[full] = struct{}{}

				subtitle := siblingSubtitle(links, title)
				items = append(items, domain.RawArticle{
					Title:         title,
					URL:           full,
					Subtitle:      subtitle,
					Author:        author,
					PublishedDate: published,
					Summary:       subtitle,
					Tags:          []string{"AI", "Newsletter"},
				})
				// one article per time element
				return false
			})
		})
	}
	return items, nil
}

func parsePostTime(stamp, text string) *time.Time {
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(stamp)); err == nil {
		return timePtr(t.UTC())
	}
	if t, ok := ParseDate(text); ok {
		return timePtr(t)
	}
	return nil
}

// postLinks climbs from the time element to the nearest container holding /p/ links.
func postLinks(timeEl *goquery.Selection) *goquery.Selection {
	wrapper := timeEl.Closest("div, article, section, tr")
	for i := 0; i < bensBitesMaxClimb && wrapper.Length() > 0; i++ {
		links := wrapper.Find("a[href]").FilterFunction(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			return isArticleLink(href)
		})
		if links.Length() > 0 {
			return links
		}
		wrapper = wrapper.Parent()
	}
	return nil
}

func siblingSubtitle(links *goquery.Selection, title string) string {
	var subtitle string
	links.EachWithBreak(func(_ int, other *goquery.Selection) bool {
		text := CleanText(other.Text())
		if text != "" && text != title && runeLen(text) > bensBitesMinSub {
			subtitle = text
			return false
		}
		return true
	})
	return subtitle
}
