// Package sessions maps opaque tokens to user ids in a TTL key-value store.
// Expiry is enforced by the store at read time; nothing sweeps in the
// background.
package sessions

import (
	"context"
	"time"
)

// Store is a TTL cache. Get on a missing or expired key returns
// common.ErrorNotFound.
type Store interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}
