// Package blobstore persists raw file bytes under generated keys.
package blobstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store is a byte store keyed by path-like strings ("users/2026/10/14/<uuid>").
type Store interface {
	// Create writes data under a new key and fails with
	// common.ErrorAlreadyExists if key is taken.
	Create(ctx context.Context, key string, data []byte) error
	// Put writes data under key, replacing any previous content. It is used
	// for derivatives, which may be regenerated on job redelivery.
	Put(ctx context.Context, key string, data []byte) error
	// Get returns common.ErrorNotFound when key was never written.
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// NewStorageKey returns a collision-resistant key partitioned by date.
func NewStorageKey() string {
	d := time.Now()
	return fmt.Sprintf("users/%d/%d/%d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

// DerivativeKey names the resized copy of key at the given width.
func DerivativeKey(key string, size int) string {
	return fmt.Sprintf("%s_%d", key, size)
}
