// Package cache provides the byte stores used by the response cache handler.
package cache

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("value not found in the cache")

// Cache is a TTL key/value store shared by all transactions.
// Implementations must be safe for concurrent use.
type Cache interface {
	Set(ctx context.Context, key string, data []byte, expiration time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Healthcheck(ctx context.Context) error
	Close() error
}
