package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/samvad-hq/samvad-newsdesk/internal/domain"
	"github.com/samvad-hq/samvad-newsdesk/internal/identity"
	"github.com/samvad-hq/samvad-newsdesk/internal/logger"
	"github.com/samvad-hq/samvad-newsdesk/internal/storage"
)

func sampleArticles(t *testing.T, urls ...string) []domain.Article {
	t.Helper()
	raws := make([]domain.RawArticle, 0, len(urls))
	for _, u := range urls {
		raws = append(raws, domain.RawArticle{Title: "Headline " + u, URL: u})
	}
	res := identity.Filter(identity.Origin{Source: "bens_bites", SourceDisplay: "Ben's Bites", ScrapedAt: time.Now().UTC()}, raws, nil)
	if len(res.Articles) != len(urls) {
		t.Fatalf("fixtures rejected: %+v", res.Rejected)
	}
	return res.Articles
}

func TestMemoryDropsOlderGenerations(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	articles := sampleArticles(t, "https://x.com/p/a")

	if err := c.Set(ctx, Key{Generation: 1}, articles); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, ok, _ := c.Get(ctx, Key{Generation: 1}); !ok || len(got) != 1 {
		t.Fatalf("expected hit for generation 1")
	}

	if err := c.Set(ctx, Key{Generation: 2, Source: "bens_bites"}, nil); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok, _ := c.Get(ctx, Key{Generation: 1}); ok {
		t.Fatalf("generation 1 must be unreachable after generation 2")
	}
	// a slow writer for an old generation must not clobber newer entries
	_ = c.Set(ctx, Key{Generation: 1}, articles)
	if _, ok, _ := c.Get(ctx, Key{Generation: 2, Source: "bens_bites"}); !ok {
		t.Fatalf("stale Set evicted the current generation")
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	_ = c.Set(ctx, Key{Generation: 1}, sampleArticles(t, "https://x.com/p/a"))

	got, _, _ := c.Get(ctx, Key{Generation: 1})
	got[0].Title = "mutated"
	again, _, _ := c.Get(ctx, Key{Generation: 1})
	if again[0].Title == "mutated" {
		t.Fatalf("cached slice must not alias caller memory")
	}
}

func TestRedisRoundTripWithTTL(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	c := NewRedisWithClient(client, time.Minute)
	t.Cleanup(func() { c.Close() })

	ctx := context.Background()
	key := Key{Generation: 7, Source: "the_rundown"}
	if _, ok, err := c.Get(ctx, key); ok || err != nil {
		t.Fatalf("expected clean miss, ok=%v err=%v", ok, err)
	}

	articles := sampleArticles(t, "https://x.com/p/a", "https://x.com/p/b")
	if err := c.Set(ctx, key, articles); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !srv.Exists("newsdesk:articles:7:the_rundown") {
		t.Fatalf("expected key %s in redis, have %v", key, srv.Keys())
	}

	got, ok, err := c.Get(ctx, key)
	if err != nil || !ok || len(got) != 2 || got[0].ID != articles[0].ID {
		t.Fatalf("unexpected hit: ok=%v err=%v got=%+v", ok, err, got)
	}

	srv.FastForward(2 * time.Minute)
	if _, ok, _ := c.Get(ctx, key); ok {
		t.Fatalf("entry should expire after ttl")
	}
}

func TestNewRedisRequiresAddress(t *testing.T) {
	if _, err := New(TypeRedis, Options{}); err == nil {
		t.Fatalf("expected missing address error")
	}
	if _, err := New("memcached", Options{}); err == nil {
		t.Fatalf("expected unsupported type error")
	}
}

type countingStore struct {
	storage.Store
	lists int
}

func (s *countingStore) ListArticles(filter storage.ArticleFilter) ([]domain.Article, error) {
	s.lists++
	return s.Store.ListArticles(filter)
}

func TestProjectionInvalidatesOnAppend(t *testing.T) {
	base, err := storage.NewStore("bbolt", filepath.Join(t.TempDir(), "p.db"), storage.Options{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { base.Close() })
	store := &countingStore{Store: base}
	proj := NewProjection(store, NewMemory(), logger.Nop{})
	ctx := context.Background()

	fixtures := sampleArticles(t, "https://x.com/p/a", "https://x.com/p/b")
	if _, err := store.Append(fixtures[:1]); err != nil {
		t.Fatalf("Append: %v", err)
	}

	for i := 0; i < 3; i++ {
		got, err := proj.Articles(ctx, "")
		if err != nil || len(got) != 1 {
			t.Fatalf("Articles: len=%d err=%v", len(got), err)
		}
	}
	if store.lists != 1 {
		t.Fatalf("expected one store read for repeated lists, got %d", store.lists)
	}

	if _, err := store.Append(fixtures[1:]); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, err := proj.Articles(ctx, "")
	if err != nil || len(got) != 2 {
		t.Fatalf("append must be visible immediately: len=%d err=%v", len(got), err)
	}
	if store.lists != 2 {
		t.Fatalf("expected a fresh store read after append, got %d", store.lists)
	}
}
