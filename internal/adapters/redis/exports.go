package redisad

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"app_reviews/internal/adapters/observability"
)

// ExportStore keeps published export buffers under a TTL.
type ExportStore struct{ c *redis.Client }

func New(addr, pass string, db int) *ExportStore {
	return NewFromClient(redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}))
}

func NewFromClient(c *redis.Client) *ExportStore { return &ExportStore{c: c} }

func (s *ExportStore) Ping(ctx context.Context) error { return s.c.Ping(ctx).Err() }

func (s *ExportStore) Close() error { return s.c.Close() }

func (s *ExportStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.ObserveExport("redis", "miss")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	observability.ObserveExport("redis", "hit")
	return v, true, nil
}

// Put overwrites any earlier buffer for key. A zero ttl keeps it forever.
func (s *ExportStore) Put(ctx context.Context, key string, b []byte, ttl time.Duration) error {
	observability.ObserveExport("redis", "put")
	return s.c.Set(ctx, key, b, ttl).Err()
}
