// Package db defines the key-value store contract backing the embedding
// cache, decoupled from any concrete driver.
package db

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound signals a cache miss.
var ErrKeyNotFound = errors.New("db: key not found")

// Store is the key-value contract consumed by the embedding cache.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores a value. A zero ttl stores without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close()
}

// Error wraps an underlying store error with the command name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
