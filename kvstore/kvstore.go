// Package kvstore provides the persisted key-value storage abstraction used
// for durable client state such as the session record.
package kvstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("key not found")

// Pair is a single key-value entry for batch writes.
type Pair struct {
	Key   string
	Value string
}

// Store defines the interface for durable string-keyed storage.
// All operations are safe for concurrent use. MultiSet and MultiRemove
// apply their entries atomically: either every entry is written/removed
// or none are. Remove and MultiRemove succeed silently when a key is
// already absent.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	MultiSet(ctx context.Context, pairs []Pair) error
	MultiRemove(ctx context.Context, keys []string) error
}
