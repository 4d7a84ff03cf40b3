package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/samvad-hq/samvad-newsdesk/internal/domain"
)

const (
	defaultTTL        = time.Hour
	connectionTimeout = 5 * time.Second
)

// Redis stores projections as JSON values with a TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects and pings the configured server.
func NewRedis(opts Options) (*Redis, error) {
	if opts.RedisAddr == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.RedisAddr,
		Password: opts.RedisPassword,
		DB:       opts.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedisWithClient(client, opts.TTL), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, key Key) ([]domain.Article, bool, error) {
	raw, err := r.client.Get(ctx, key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	var articles []domain.Article
	if err := json.Unmarshal(raw, &articles); err != nil {
		return nil, false, fmt.Errorf("decode cached articles %s: %w", key, err)
	}
	return articles, true, nil
}

func (r *Redis) Set(ctx context.Context, key Key, articles []domain.Article) error {
	raw, err := json.Marshal(articles)
	if err != nil {
		return fmt.Errorf("encode cached articles: %w", err)
	}
	if err := r.client.Set(ctx, key.String(), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
