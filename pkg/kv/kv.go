// Package kv provides a small key-value store abstraction with a
// BadgerDB-backed implementation for persistence and an in-memory one for
// tests. Keys are flat strings; related records share a common prefix
// (e.g. "agent:<id>") and are enumerated with List.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("kv: not found")

// Entry is a key-value pair returned by List.
type Entry struct {
	Key   string
	Value []byte
}

// Store is a minimal key-value store.
type Store interface {
	// Get retrieves the value for a key. Returns ErrNotFound if not present.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a key-value pair, overwriting any existing value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns all entries whose key starts with prefix, in
	// lexicographic key order. An empty prefix returns everything.
	List(ctx context.Context, prefix string) ([]Entry, error)

	// Close releases any resources held by the store.
	Close() error
}
