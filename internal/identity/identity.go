// Package identity derives stable article ids and filters already-stored articles.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-newsdesk/internal/domain"
)

const idHexLen = 16

// Canonicalize reduces an absolute URL to scheme://host/path with query, fragment and
// trailing slashes removed. Scheme and host are lowercased.
func Canonicalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q is not absolute", raw)
	}

	path := strings.TrimRight(u.EscapedPath(), "/")
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + path, nil
}

// HashCanonical hashes an already-canonical URL.
func HashCanonical(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])[:idHexLen]
}

// Identify returns the article id for a raw article's URL.
func Identify(raw domain.RawArticle) (string, error) {
	canonical, err := Canonicalize(raw.URL)
	if err != nil {
		return "", err
	}
	return HashCanonical(canonical), nil
}

// IDSet is the set of ids already present in the store.
type IDSet map[string]struct{}

// Has reports membership; a nil set is empty.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Origin carries the source fields stamped onto every article of one run.
type Origin struct {
	Source        string
	SourceDisplay string
	ScrapedAt     time.Time
}

// Rejected describes a raw article that could not become an Article.
type Rejected struct {
	URL    string
	Reason string
}

// Result is the outcome of Filter.
type Result struct {
	Articles   []domain.Article
	Duplicates int
	Rejected   []Rejected
}

// Filter converts raws into new Articles, dropping anything whose id is in existing or
// already appeared earlier in raws. It performs no I/O and never mutates existing.
func Filter(origin Origin, raws []domain.RawArticle, existing IDSet) Result {
	res := Result{Articles: make([]domain.Article, 0, len(raws))}
	batch := make(map[string]struct{}, len(raws))

	for _, raw := range raws {
		title := strings.TrimSpace(raw.Title)
		if title == "" {
			res.Rejected = append(res.Rejected, Rejected{URL: raw.URL, Reason: "missing title"})
			continue
		}
		canonical, err := Canonicalize(raw.URL)
		if err != nil {
			res.Rejected = append(res.Rejected, Rejected{URL: raw.URL, Reason: err.Error()})
			continue
		}
		id := HashCanonical(canonical)
		if existing.Has(id) {
			res.Duplicates++
			continue
		}
		if _, dup := batch[id]; dup {
			res.Duplicates++
			continue
		}
		batch[id] = struct{}{}

		res.Articles = append(res.Articles, toArticle(id, canonical, title, origin, raw))
	}

	return res
}

func toArticle(id, canonical, title string, origin Origin, raw domain.RawArticle) domain.Article {
	tags := make([]string, 0, len(raw.Tags))
	for _, tag := range raw.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}

	var published *time.Time
	if raw.PublishedDate != nil && !raw.PublishedDate.IsZero() {
		p := raw.PublishedDate.UTC()
		published = &p
	}

	return domain.Article{
		ID:            id,
		Title:         title,
		Subtitle:      domain.StringPtr(strings.TrimSpace(raw.Subtitle)),
		URL:           canonical,
		Source:        origin.Source,
		SourceDisplay: origin.SourceDisplay,
		Author:        domain.StringPtr(strings.TrimSpace(raw.Author)),
		PublishedDate: published,
		ScrapedAt:     origin.ScrapedAt.UTC(),
		Thumbnail:     domain.StringPtr(strings.TrimSpace(raw.Thumbnail)),
		Summary:       domain.StringPtr(strings.TrimSpace(raw.Summary)),
		Tags:          tags,
	}
}
