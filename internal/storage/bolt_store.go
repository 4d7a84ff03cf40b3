package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/samvad-hq/samvad-newsdesk/internal/domain"
	"github.com/samvad-hq/samvad-newsdesk/internal/identity"
)

const (
	articleBucket     = "articles"
	savedBucket       = "saved"
	scrapeStateBucket = "scrape_state"
	metaBucket        = "meta"

	generationKey   = "article_generation"
	generationBytes = 8
)

var allBuckets = []string{articleBucket, savedBucket, scrapeStateBucket, metaBucket}

// boltStore implements a Store backed by BoltDB. bbolt permits one read-write
// transaction at a time, so every check-then-write below is atomic.
type boltStore struct {
	db  *bolt.DB
	now func() time.Time
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string, opts Options) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: opts.OpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	return &boltStore{db: db, now: opts.Now}, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *boltStore) ArticleIDs() (identity.IDSet, error) {
	ids := identity.IDSet{}
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket, err := bucketOf(tx, articleBucket)
		if err != nil {
			return err
		}
		return bucket.ForEach(func(k, _ []byte) error {
			ids[string(k)] = struct{}{}
			return nil
		})
	})
	return ids, err
}

func (b *boltStore) Append(articles []domain.Article) ([]domain.Article, error) {
	if len(articles) == 0 {
		return nil, nil
	}

	batch := make(map[string]struct{}, len(articles))
	for _, a := range articles {
		if err := validateArticle(a); err != nil {
			return nil, err
		}
		if _, dup := batch[a.ID]; dup {
			return nil, fmt.Errorf("append %s: %w", a.ID, domain.ErrDuplicateID)
		}
		batch[a.ID] = struct{}{}
	}

	var inserted []domain.Article
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := bucketOf(tx, articleBucket)
		if err != nil {
			return err
		}
		for _, a := range articles {
			key := []byte(a.ID)
			// first write wins; a concurrent run may have stored this id since filtering
			if bucket.Get(key) != nil {
				continue
			}
			a.IsNew = false
			if a.Tags == nil {
				a.Tags = []string{}
			}
			raw, err := json.Marshal(a)
			if err != nil {
				return fmt.Errorf("encode article %s: %w", a.ID, err)
			}
			if err := bucket.Put(key, raw); err != nil {
				return err
			}
			inserted = append(inserted, a)
		}
		if len(inserted) == 0 {
			return nil
		}
		return bumpGeneration(tx)
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

func (b *boltStore) GetArticle(id string) (domain.Article, error) {
	var article domain.Article
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket, err := bucketOf(tx, articleBucket)
		if err != nil {
			return err
		}
		raw := bucket.Get([]byte(id))
		if raw == nil {
			return fmt.Errorf("article %s: %w", id, domain.ErrNotFound)
		}
		return json.Unmarshal(raw, &article)
	})
	return article, err
}

func (b *boltStore) ListArticles(filter ArticleFilter) ([]domain.Article, error) {
	articles := make([]domain.Article, 0)
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket, err := bucketOf(tx, articleBucket)
		if err != nil {
			return err
		}
		saved, err := bucketOf(tx, savedBucket)
		if err != nil {
			return err
		}
		return bucket.ForEach(func(k, v []byte) error {
			if filter.SavedOnly && saved.Get(k) == nil {
				return nil
			}
			var a domain.Article
			if err := json.Unmarshal(v, &a); err != nil {
				return fmt.Errorf("decode article %s: %w", k, err)
			}
			if filter.Source != "" && a.Source != filter.Source {
				return nil
			}
			articles = append(articles, a)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	SortArticles(articles)
	return articles, nil
}

func (b *boltStore) CountArticles() (int, error) {
	var n int
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket, err := bucketOf(tx, articleBucket)
		if err != nil {
			return err
		}
		n = bucket.Stats().KeyN
		return nil
	})
	return n, err
}

func (b *boltStore) DeleteArticle(id string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		articles, err := bucketOf(tx, articleBucket)
		if err != nil {
			return err
		}
		saved, err := bucketOf(tx, savedBucket)
		if err != nil {
			return err
		}
		key := []byte(id)
		if articles.Get(key) == nil {
			return fmt.Errorf("article %s: %w", id, domain.ErrNotFound)
		}
		if err := articles.Delete(key); err != nil {
			return err
		}
		if err := saved.Delete(key); err != nil {
			return fmt.Errorf("cascade bookmark %s: %w", id, err)
		}
		return bumpGeneration(tx)
	})
}

func (b *boltStore) Save(articleID string) (domain.SavedArticle, bool, error) {
	var (
		entry   domain.SavedArticle
		created bool
	)
	err := b.db.Update(func(tx *bolt.Tx) error {
		articles, err := bucketOf(tx, articleBucket)
		if err != nil {
			return err
		}
		saved, err := bucketOf(tx, savedBucket)
		if err != nil {
			return err
		}
		key := []byte(articleID)
		if articles.Get(key) == nil {
			return fmt.Errorf("article %s: %w", articleID, domain.ErrNotFound)
		}
		if raw := saved.Get(key); raw != nil {
			return json.Unmarshal(raw, &entry)
		}

		entry = domain.SavedArticle{ArticleID: articleID, SavedAt: b.now().UTC()}
		raw, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		created = true
		return saved.Put(key, raw)
	})
	if err != nil {
		return domain.SavedArticle{}, false, err
	}
	return entry, created, nil
}

func (b *boltStore) Unsave(articleID string) (bool, error) {
	var removed bool
	err := b.db.Update(func(tx *bolt.Tx) error {
		saved, err := bucketOf(tx, savedBucket)
		if err != nil {
			return err
		}
		key := []byte(articleID)
		if saved.Get(key) == nil {
			return nil
		}
		removed = true
		return saved.Delete(key)
	})
	return removed, err
}

func (b *boltStore) SavedArticles() ([]domain.SavedArticle, error) {
	entries := make([]domain.SavedArticle, 0)
	err := b.db.View(func(tx *bolt.Tx) error {
		saved, err := bucketOf(tx, savedBucket)
		if err != nil {
			return err
		}
		return saved.ForEach(func(k, v []byte) error {
			var entry domain.SavedArticle
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("decode bookmark %s: %w", k, err)
			}
			entries = append(entries, entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].SavedAt.After(entries[j].SavedAt)
	})
	return entries, nil
}

func (b *boltStore) EnsureScrapeState(source string) (domain.ScrapeState, error) {
	if source == "" {
		return domain.ScrapeState{}, fmt.Errorf("source is empty")
	}
	var state domain.ScrapeState
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := bucketOf(tx, scrapeStateBucket)
		if err != nil {
			return err
		}
		if raw := bucket.Get([]byte(source)); raw != nil {
			return json.Unmarshal(raw, &state)
		}
		state = domain.NewScrapeState(source)
		return putState(bucket, state)
	})
	return state, err
}

func (b *boltStore) GetScrapeState(source string) (domain.ScrapeState, error) {
	var state domain.ScrapeState
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket, err := bucketOf(tx, scrapeStateBucket)
		if err != nil {
			return err
		}
		raw := bucket.Get([]byte(source))
		if raw == nil {
			return fmt.Errorf("scrape state %s: %w", source, domain.ErrUnknownSource)
		}
		return json.Unmarshal(raw, &state)
	})
	return state, err
}

func (b *boltStore) SetScrapeState(state domain.ScrapeState) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := bucketOf(tx, scrapeStateBucket)
		if err != nil {
			return err
		}
		if bucket.Get([]byte(state.Source)) == nil {
			return fmt.Errorf("scrape state %s: %w", state.Source, domain.ErrUnknownSource)
		}
		if state.Status != domain.StatusError {
			state.ErrorMessage = nil
		}
		return putState(bucket, state)
	})
}

func (b *boltStore) ScrapeStates() ([]domain.ScrapeState, error) {
	states := make([]domain.ScrapeState, 0)
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket, err := bucketOf(tx, scrapeStateBucket)
		if err != nil {
			return err
		}
		return bucket.ForEach(func(k, v []byte) error {
			var state domain.ScrapeState
			if err := json.Unmarshal(v, &state); err != nil {
				return fmt.Errorf("decode scrape state %s: %w", k, err)
			}
			states = append(states, state)
			return nil
		})
	})
	return states, err
}

func (b *boltStore) Generation() (uint64, error) {
	var gen uint64
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket, err := bucketOf(tx, metaBucket)
		if err != nil {
			return err
		}
		gen = decodeGeneration(bucket.Get([]byte(generationKey)))
		return nil
	})
	return gen, err
}

func bucketOf(tx *bolt.Tx, name string) (*bolt.Bucket, error) {
	bucket := tx.Bucket([]byte(name))
	if bucket == nil {
		return nil, fmt.Errorf("%s bucket missing", name)
	}
	return bucket, nil
}

func putState(bucket *bolt.Bucket, state domain.ScrapeState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode scrape state %s: %w", state.Source, err)
	}
	return bucket.Put([]byte(state.Source), raw)
}

func bumpGeneration(tx *bolt.Tx) error {
	bucket, err := bucketOf(tx, metaBucket)
	if err != nil {
		return err
	}
	next := decodeGeneration(bucket.Get([]byte(generationKey))) + 1
	buf := make([]byte, generationBytes)
	binary.BigEndian.PutUint64(buf, next)
	return bucket.Put([]byte(generationKey), buf)
}

// decodeGeneration treats a missing or malformed value as generation zero.
func decodeGeneration(value []byte) uint64 {
	if len(value) != generationBytes {
		return 0
	}
	return binary.BigEndian.Uint64(value)
}
