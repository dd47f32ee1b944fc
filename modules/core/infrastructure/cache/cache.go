package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss distinguishes "not cached" from backend failures. Backend
// failures must fall through to durable storage, never surface as not-found.
var ErrCacheMiss = errors.New("cache miss")

type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
