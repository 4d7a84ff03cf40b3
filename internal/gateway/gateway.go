// Package gateway translates external calls into store and scheduler operations
// and shapes their responses. It is transport agnostic; internal/api and
// cmd/newsctl both drive it.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-newsdesk/internal/cache"
	"github.com/samvad-hq/samvad-newsdesk/internal/domain"
	"github.com/samvad-hq/samvad-newsdesk/internal/logger"
	"github.com/samvad-hq/samvad-newsdesk/internal/scheduler"
	"github.com/samvad-hq/samvad-newsdesk/internal/storage"
)

// ErrInvalidRequest marks a call rejected by parameter validation.
var ErrInvalidRequest = errors.New("invalid request")

const neverScraped = "never"

// Runner is the scheduler surface the gateway needs.
type Runner interface {
	Trigger(ctx context.Context, ids []string, force bool) ([]scheduler.RunResult, error)
	States() ([]domain.ScrapeState, error)
}

// Service implements the ingestion gateway operations.
type Service struct {
	store      storage.Store
	projection *cache.Projection
	runner     Runner
	log        logger.Logger
	now        func() time.Time
}

// NewService wires the gateway. A nil projection reads the store directly.
func NewService(store storage.Store, projection *cache.Projection, runner Runner, log logger.Logger) *Service {
	if projection == nil {
		projection = cache.NewProjection(store, nil, log)
	}
	return &Service{
		store:      store,
		projection: projection,
		runner:     runner,
		log:        logger.OrNop(log),
		now:        time.Now,
	}
}

// ListQuery filters List.
type ListQuery struct {
	Source string
	Saved  bool
}

// SourceSummary is the per-source line of the list response.
type SourceSummary struct {
	Name        string              `json:"name"`
	Status      domain.ScrapeStatus `json:"status"`
	LastScraped string              `json:"last_scraped"`
}

// ListResponse is returned by List.
type ListResponse struct {
	Articles    []domain.Article `json:"articles"`
	SavedIDs    []string         `json:"saved_ids"`
	LastUpdated time.Time        `json:"last_updated"`
	Sources     []SourceSummary  `json:"sources"`
}

// SavedResponse is returned by Saved.
type SavedResponse struct {
	Articles []domain.Article `json:"articles"`
	SavedIDs []string         `json:"saved_ids"`
}

// SaveResponse is returned by Save.
type SaveResponse struct {
	Status    string    `json:"status"`
	ArticleID string    `json:"article_id"`
	SavedAt   time.Time `json:"saved_at"`
}

// UnsaveResponse is returned by Unsave.
type UnsaveResponse struct {
	Status    string `json:"status"`
	ArticleID string `json:"article_id"`
}

// TriggerResponse is returned by Trigger.
type TriggerResponse struct {
	Status        string                `json:"status"`
	NewArticles   int                   `json:"new_articles"`
	TotalArticles int                   `json:"total_articles"`
	Sources       []scheduler.RunResult `json:"sources"`
}

// StatusResponse is returned by Status.
type StatusResponse struct {
	TotalArticles int                           `json:"total_articles"`
	Sources       map[string]domain.ScrapeState `json:"sources"`
	LastUpdated   time.Time                     `json:"last_updated"`
}

// List returns articles with read-time is_new, bookmarks and per-source state.
// Source failures never surface here; they are visible only through Sources.
func (s *Service) List(ctx context.Context, q ListQuery) (ListResponse, error) {
	now := s.now().UTC()
	articles, err := s.projection.Articles(ctx, strings.TrimSpace(q.Source))
	if err != nil {
		return ListResponse{}, fmt.Errorf("list articles: %w", err)
	}
	savedIDs, savedSet, err := s.savedIDs()
	if err != nil {
		return ListResponse{}, err
	}
	if q.Saved {
		articles = keepSaved(articles, savedSet)
	}

	states, err := s.runner.States()
	if err != nil {
		return ListResponse{}, fmt.Errorf("load scrape states: %w", err)
	}
	summaries := make([]SourceSummary, 0, len(states))
	for _, st := range states {
		last := neverScraped
		if st.LastScrapedAt != nil {
			last = st.LastScrapedAt.UTC().Format(time.RFC3339)
		}
		summaries = append(summaries, SourceSummary{Name: st.Source, Status: st.Status, LastScraped: last})
	}

	return ListResponse{
		Articles:    markNew(articles, now),
		SavedIDs:    savedIDs,
		LastUpdated: now,
		Sources:     summaries,
	}, nil
}

// Saved returns only bookmarked articles.
func (s *Service) Saved(ctx context.Context) (SavedResponse, error) {
	articles, err := s.projection.Articles(ctx, "")
	if err != nil {
		return SavedResponse{}, fmt.Errorf("list articles: %w", err)
	}
	savedIDs, savedSet, err := s.savedIDs()
	if err != nil {
		return SavedResponse{}, err
	}
	return SavedResponse{
		Articles: markNew(keepSaved(articles, savedSet), s.now().UTC()),
		SavedIDs: savedIDs,
	}, nil
}

// Save bookmarks an article. Unknown ids fail with domain.ErrNotFound.
func (s *Service) Save(_ context.Context, articleID string) (SaveResponse, error) {
	articleID = strings.TrimSpace(articleID)
	if articleID == "" {
		return SaveResponse{}, fmt.Errorf("article_id is required: %w", ErrInvalidRequest)
	}
	entry, created, err := s.store.Save(articleID)
	if err != nil {
		return SaveResponse{}, err
	}
	status := "already_saved"
	if created {
		status = "saved"
	}
	return SaveResponse{Status: status, ArticleID: articleID, SavedAt: entry.SavedAt}, nil
}

// Unsave removes a bookmark; removing a missing bookmark still succeeds.
func (s *Service) Unsave(_ context.Context, articleID string) (UnsaveResponse, error) {
	articleID = strings.TrimSpace(articleID)
	if articleID == "" {
		return UnsaveResponse{}, fmt.Errorf("article_id is required: %w", ErrInvalidRequest)
	}
	if _, err := s.store.Unsave(articleID); err != nil {
		return UnsaveResponse{}, err
	}
	return UnsaveResponse{Status: "unsaved", ArticleID: articleID}, nil
}

// Trigger starts scrapes for source, or for every source when source is empty.
// Cooldown skips are reported per source, never as an error.
func (s *Service) Trigger(ctx context.Context, source string, force bool) (TriggerResponse, error) {
	var ids []string
	if source = strings.TrimSpace(source); source != "" {
		ids = []string{source}
	}
	results, err := s.runner.Trigger(ctx, ids, force)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownSource) {
			return TriggerResponse{}, fmt.Errorf("unknown source %q: %w", source, ErrInvalidRequest)
		}
		return TriggerResponse{}, err
	}

	added := 0
	for _, r := range results {
		added += r.NewArticles
	}
	total, err := s.store.CountArticles()
	if err != nil {
		return TriggerResponse{}, fmt.Errorf("count articles: %w", err)
	}
	s.log.InfoObj("manual scrape finished", "scrape_trigger", map[string]any{
		"source":       source,
		"force":        force,
		"new_articles": added,
	})
	return TriggerResponse{Status: "complete", NewArticles: added, TotalArticles: total, Sources: results}, nil
}

// Status reports totals and the scrape state of every registered source.
func (s *Service) Status(_ context.Context) (StatusResponse, error) {
	total, err := s.store.CountArticles()
	if err != nil {
		return StatusResponse{}, fmt.Errorf("count articles: %w", err)
	}
	states, err := s.runner.States()
	if err != nil {
		return StatusResponse{}, fmt.Errorf("load scrape states: %w", err)
	}
	byName := make(map[string]domain.ScrapeState, len(states))
	for _, st := range states {
		byName[st.Source] = st
	}
	return StatusResponse{TotalArticles: total, Sources: byName, LastUpdated: s.now().UTC()}, nil
}

// DeleteArticle removes an article together with its bookmark.
func (s *Service) DeleteArticle(_ context.Context, articleID string) error {
	articleID = strings.TrimSpace(articleID)
	if articleID == "" {
		return fmt.Errorf("article_id is required: %w", ErrInvalidRequest)
	}
	if err := s.store.DeleteArticle(articleID); err != nil {
		return err
	}
	s.log.InfoObj("article deleted", "article_id", articleID)
	return nil
}

func (s *Service) savedIDs() ([]string, map[string]struct{}, error) {
	entries, err := s.store.SavedArticles()
	if err != nil {
		return nil, nil, fmt.Errorf("load bookmarks: %w", err)
	}
	ids := make([]string, 0, len(entries))
	set := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ArticleID)
		set[e.ArticleID] = struct{}{}
	}
	return ids, set, nil
}

func keepSaved(articles []domain.Article, saved map[string]struct{}) []domain.Article {
	out := make([]domain.Article, 0, len(saved))
	for _, a := range articles {
		if _, ok := saved[a.ID]; ok {
			out = append(out, a)
		}
	}
	return out
}

// markNew copies articles with is_new computed for now; cached slices stay untouched.
func markNew(articles []domain.Article, now time.Time) []domain.Article {
	out := make([]domain.Article, len(articles))
	for i, a := range articles {
		out[i] = a.WithIsNew(now)
	}
	return out
}
