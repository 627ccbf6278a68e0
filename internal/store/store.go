package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get, TTL and LIndex when the key or index
// does not exist.
var ErrNotFound = errors.New("store: key not found")

// Store is the key-value coordination surface shared by all processes.
// Any backend offering atomic set-if-absent-with-expiry and basic list
// primitives is substitutable; production uses Redis, tests use Mem.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX sets key to value only if it does not exist, with the given
	// expiry. Returns true if the key was set.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
	TTL(ctx context.Context, key string) (time.Duration, error)

	RPush(ctx context.Context, key, value string) error
	LIndex(ctx context.Context, key string, index int64) (string, error)
	LLen(ctx context.Context, key string) (int64, error)
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	// LRem removes up to count occurrences of value from the list
	// (count 0 removes all).
	LRem(ctx context.Context, key string, count int64, value string) error
}
