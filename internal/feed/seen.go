package feed

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/unclebandit/endorsenyc-backend/internal/model"
)

// DefaultSeenTTL outlives the 24h fetch window so an item is forwarded once.
const DefaultSeenTTL = 48 * time.Hour

// SeenStore remembers which item links were already forwarded for classification.
type SeenStore interface {
	// MarkNew records link and reports whether it had not been seen before.
	MarkNew(ctx context.Context, link string) (bool, error)
	// Forget drops link so the next cycle treats it as new again.
	Forget(ctx context.Context, link string) error
}

type RedisSeenStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisSeenStore(client *redis.Client, ttl time.Duration) *RedisSeenStore {
	if ttl <= 0 {
		ttl = DefaultSeenTTL
	}
	return &RedisSeenStore{client: client, ttl: ttl, prefix: "endorse:seen:"}
}

// NewRedisSeenStoreFromURL connects to redisURL and pings it.
func NewRedisSeenStoreFromURL(ctx context.Context, redisURL string, ttl time.Duration) (*RedisSeenStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return NewRedisSeenStore(client, ttl), nil
}

func (s *RedisSeenStore) key(link string) string {
	sum := sha1.Sum([]byte(link))
	return s.prefix + hex.EncodeToString(sum[:])
}

func (s *RedisSeenStore) MarkNew(ctx context.Context, link string) (bool, error) {
	return s.client.SetNX(ctx, s.key(link), 1, s.ttl).Result()
}

func (s *RedisSeenStore) Forget(ctx context.Context, link string) error {
	return s.client.Del(ctx, s.key(link)).Err()
}

func (s *RedisSeenStore) Close() error {
	return s.client.Close()
}

// NopSeenStore treats every link as new.
type NopSeenStore struct{}

func (NopSeenStore) MarkNew(context.Context, string) (bool, error) { return true, nil }
func (NopSeenStore) Forget(context.Context, string) error          { return nil }

// Unseen drops items whose link was already forwarded. Items without a link, and
// items the store fails on, are kept.
func Unseen(ctx context.Context, store SeenStore, items []model.FeedItem, log *zap.Logger) []model.FeedItem {
	if store == nil {
		return items
	}
	out := make([]model.FeedItem, 0, len(items))
	for _, it := range items {
		if it.Link == "" {
			out = append(out, it)
			continue
		}
		fresh, err := store.MarkNew(ctx, it.Link)
		if err != nil {
			log.Warn("seen store unavailable, keeping item", zap.String("link", it.Link), zap.Error(err))
			out = append(out, it)
			continue
		}
		if fresh {
			out = append(out, it)
		}
	}
	return out
}

// Release forgets the links of items that could not be forwarded, so a retried
// fetch picks them up again. It returns the first store error.
func Release(ctx context.Context, store SeenStore, items []model.FeedItem) error {
	if store == nil {
		return nil
	}
	var first error
	for _, it := range items {
		if it.Link == "" {
			continue
		}
		if err := store.Forget(ctx, it.Link); err != nil && first == nil {
			first = err
		}
	}
	return first
}
