package cache

import (
	"context"
	"time"
)

// Store holds memoized Signal Engine outcomes as encoded bytes.
// A ttl of zero means the entry never expires on its own.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Reset(ctx context.Context) error
	Name() string
}
