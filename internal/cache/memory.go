package cache

import (
	"context"
	"sync"

	"github.com/samvad-hq/samvad-newsdesk/internal/domain"
)

// Memory keeps projections for the latest generation only.
type Memory struct {
	mu         sync.RWMutex
	generation uint64
	entries    map[string][]domain.Article
}

// NewMemory returns an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string][]domain.Article)}
}

func (m *Memory) Get(_ context.Context, key Key) ([]domain.Article, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if key.Generation != m.generation {
		return nil, false, nil
	}
	articles, ok := m.entries[key.Source]
	if !ok {
		return nil, false, nil
	}
	return cloneArticles(articles), true, nil
}

func (m *Memory) Set(_ context.Context, key Key, articles []domain.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case key.Generation < m.generation:
		return nil
	case key.Generation > m.generation:
		m.generation = key.Generation
		m.entries = make(map[string][]domain.Article)
	}
	m.entries[key.Source] = cloneArticles(articles)
	return nil
}

func (m *Memory) Close() error { return nil }
