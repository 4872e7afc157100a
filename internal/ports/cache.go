package ports

import (
	"context"
	"time"
)

// Cache is a simple string-keyed cache, backed by Redis in production and
// an in-memory map as a fallback when Redis is unreachable. The server
// constructs and closes it; the store, controllers and solver capability
// do not read from or write to it.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping() error
	Close() error
}
