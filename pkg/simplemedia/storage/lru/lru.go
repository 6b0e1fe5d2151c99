// Package lru wraps a BlobStore with an in-process hot cache of recently
// read or written derivatives.
package lru

import (
	"context"
	"errors"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// DefaultMaxEntryBytes bounds the size of a single cached value.
const DefaultMaxEntryBytes = 4 << 20

// Store is a read-through, write-through cache in front of another store.
// Only keys under the derivative namespace are cached: derivative keys are
// immutable, originals are not guaranteed to be.
type Store struct {
	next          simplemedia.BlobStore
	cache         *lru.Cache[string, []byte]
	maxEntryBytes int
}

// New creates a cache holding at most entries values of at most
// maxEntryBytes each. A maxEntryBytes of zero uses DefaultMaxEntryBytes.
func New(next simplemedia.BlobStore, entries, maxEntryBytes int) (*Store, error) {
	if next == nil {
		return nil, errors.New("next store is required")
	}
	cache, err := lru.New[string, []byte](entries)
	if err != nil {
		return nil, err
	}
	if maxEntryBytes <= 0 {
		maxEntryBytes = DefaultMaxEntryBytes
	}
	return &Store{next: next, cache: cache, maxEntryBytes: maxEntryBytes}, nil
}

func (s *Store) cacheable(key string, data []byte) bool {
	return strings.HasPrefix(key, simplemedia.NamespaceCache+"/") && len(data) <= s.maxEntryBytes
}

// Get serves key from memory when present, otherwise from the next store.
// Returned slices are shared and must not be modified.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if data, ok := s.cache.Get(key); ok {
		return data, nil
	}
	data, err := s.next.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if s.cacheable(key, data) {
		s.cache.Add(key, data)
	}
	return data, nil
}

// Put writes to the next store and caches the value once the write succeeded
func (s *Store) Put(ctx context.Context, key string, data []byte, mimeType string) (string, error) {
	addr, err := s.next.Put(ctx, key, data, mimeType)
	if err != nil {
		return "", err
	}
	if s.cacheable(key, data) {
		s.cache.Add(key, data)
	}
	return addr, nil
}

// List is not cached
func (s *Store) List(ctx context.Context, prefix string) ([]simplemedia.ListItem, error) {
	return s.next.List(ctx, prefix)
}

// Len returns the number of cached entries
func (s *Store) Len() int {
	return s.cache.Len()
}
