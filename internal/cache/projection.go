package cache

import (
	"context"
	"fmt"

	"github.com/samvad-hq/samvad-newsdesk/internal/domain"
	"github.com/samvad-hq/samvad-newsdesk/internal/logger"
	"github.com/samvad-hq/samvad-newsdesk/internal/storage"
)

// Projection serves sorted article lists from the cache, falling back to the store.
// Cache failures are logged and never fail a read.
type Projection struct {
	store storage.Store
	cache Cache
	log   logger.Logger
}

// NewProjection wires a projection; a nil cache disables caching.
func NewProjection(store storage.Store, c Cache, log logger.Logger) *Projection {
	if c == nil {
		c = None{}
	}
	return &Projection{store: store, cache: c, log: logger.OrNop(log)}
}

// Articles returns stored articles for source ("" for all) in list order.
func (p *Projection) Articles(ctx context.Context, source string) ([]domain.Article, error) {
	// generation is read first so a cached list is never older than its key
	gen, err := p.store.Generation()
	if err != nil {
		return nil, fmt.Errorf("read article generation: %w", err)
	}
	key := Key{Generation: gen, Source: source}

	cached, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		p.log.WarnObj("article cache read failed", "cache_error", map[string]any{
			"key":   key.String(),
			"error": err.Error(),
		})
	}
	if ok {
		return cached, nil
	}

	articles, err := p.store.ListArticles(storage.ArticleFilter{Source: source})
	if err != nil {
		return nil, err
	}
	if err := p.cache.Set(ctx, key, articles); err != nil {
		p.log.WarnObj("article cache write failed", "cache_error", map[string]any{
			"key":   key.String(),
			"error": err.Error(),
		})
	}
	return articles, nil
}
