// Package cache holds read-through projections of the sorted article list.
//
// Entries are keyed by the store generation, so any append or delete makes
// every older entry unreachable without explicit invalidation.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-newsdesk/internal/domain"
)

// Supported backends.
const (
	TypeMemory = "memory"
	TypeRedis  = "redis"
	TypeNone   = "none"
)

const keyPrefix = "newsdesk:articles"

// Key addresses one projection.
type Key struct {
	Generation uint64
	Source     string
}

func (k Key) String() string {
	source := k.Source
	if source == "" {
		source = "all"
	}
	return fmt.Sprintf("%s:%d:%s", keyPrefix, k.Generation, source)
}

// Cache stores article projections.
type Cache interface {
	Get(ctx context.Context, key Key) ([]domain.Article, bool, error)
	Set(ctx context.Context, key Key, articles []domain.Article) error
	Close() error
}

// Options configures a cache backend.
type Options struct {
	TTL           time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// New builds the configured backend.
func New(typ string, opts Options) (Cache, error) {
	switch strings.ToLower(strings.TrimSpace(typ)) {
	case TypeMemory, "":
		return NewMemory(), nil
	case TypeRedis:
		return NewRedis(opts)
	case TypeNone:
		return None{}, nil
	default:
		return nil, fmt.Errorf("unsupported cache type %q", typ)
	}
}

// None never stores anything.
type None struct{}

func (None) Get(context.Context, Key) ([]domain.Article, bool, error) { return nil, false, nil }
func (None) Set(context.Context, Key, []domain.Article) error         { return nil }
func (None) Close() error                                             { return nil }

func cloneArticles(in []domain.Article) []domain.Article {
	out := make([]domain.Article, len(in))
	copy(out, in)
	return out
}
