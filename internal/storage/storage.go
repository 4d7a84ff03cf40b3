package storage

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-newsdesk/internal/domain"
	"github.com/samvad-hq/samvad-newsdesk/internal/identity"
)

// Package storage owns articles, bookmarks and per-source scrape state.

// Store is the single writer of persisted pipeline state.
type Store interface {
	Close() error

	// ArticleIDs returns the ids of every stored article.
	ArticleIDs() (identity.IDSet, error)
	// Append inserts articles whose ids are not stored yet and returns the inserted ones.
	// A batch repeating an id fails with domain.ErrDuplicateID and stores nothing.
	Append(articles []domain.Article) ([]domain.Article, error)
	GetArticle(id string) (domain.Article, error)
	ListArticles(filter ArticleFilter) ([]domain.Article, error)
	CountArticles() (int, error)
	// DeleteArticle removes the article and its bookmark in one transaction.
	DeleteArticle(id string) error

	// Save bookmarks an existing article; created is false when it was already saved.
	Save(articleID string) (saved domain.SavedArticle, created bool, err error)
	// Unsave removes a bookmark; removed is false when none existed.
	Unsave(articleID string) (removed bool, err error)
	SavedArticles() ([]domain.SavedArticle, error)

	EnsureScrapeState(source string) (domain.ScrapeState, error)
	GetScrapeState(source string) (domain.ScrapeState, error)
	SetScrapeState(state domain.ScrapeState) error
	ScrapeStates() ([]domain.ScrapeState, error)

	// Generation changes whenever the stored article set changes.
	Generation() (uint64, error)
}

// ArticleFilter narrows ListArticles. Zero value lists everything.
type ArticleFilter struct {
	Source    string
	SavedOnly bool
}

// Options controls concrete store behaviour.
type Options struct {
	OpenTimeout time.Duration
	Now         func() time.Time
}

const defaultOpenTimeout = time.Second

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = defaultOpenTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return opts
}

// SortArticles orders by published_date desc with nulls last, then scraped_at desc, then id.
func SortArticles(articles []domain.Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		a, b := articles[i], articles[j]
		switch {
		case a.PublishedDate != nil && b.PublishedDate == nil:
			return true
		case a.PublishedDate == nil && b.PublishedDate != nil:
			return false
		case a.PublishedDate != nil && b.PublishedDate != nil && !a.PublishedDate.Equal(*b.PublishedDate):
			return a.PublishedDate.After(*b.PublishedDate)
		}
		if !a.ScrapedAt.Equal(b.ScrapedAt) {
			return a.ScrapedAt.After(b.ScrapedAt)
		}
		return a.ID < b.ID
	})
}

func validateArticle(a domain.Article) error {
	if a.ID == "" {
		return fmt.Errorf("article id is empty")
	}
	if strings.TrimSpace(a.Title) == "" {
		return fmt.Errorf("article %s: title is required", a.ID)
	}
	if strings.TrimSpace(a.Source) == "" {
		return fmt.Errorf("article %s: source is required", a.ID)
	}
	canonical, err := identity.Canonicalize(a.URL)
	if err != nil {
		return fmt.Errorf("article %s: %w", a.ID, err)
	}
	if canonical != a.URL {
		return fmt.Errorf("article %s: url %q is not canonical", a.ID, a.URL)
	}
	if identity.HashCanonical(canonical) != a.ID {
		return fmt.Errorf("article %s: id does not match url %q", a.ID, a.URL)
	}
	return nil
}
