package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

type object struct {
	data     []byte
	mimeType string
	modified time.Time
}

// Backend is an in-memory implementation of the simplemedia.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects: make(map[string]object),
	}
}

// Get returns the bytes stored under key
func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, ok := b.objects[key]
	if !ok {
		return nil, &simplemedia.StorageError{Backend: "memory", Key: key, Op: "get", Err: simplemedia.ErrNotFound}
	}
	out := make([]byte, len(obj.data))
	copy(out, obj.data)
	return out, nil
}

// Put stores a copy of data under key, replacing any previous value
func (b *Backend) Put(ctx context.Context, key string, data []byte, mimeType string) (string, error) {
	stored := make([]byte, len(data))
	copy(stored, data)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = object{data: stored, mimeType: mimeType, modified: time.Now().UTC()}
	return "memory://" + key, nil
}

// List groups the keys below prefix into directories and files
func (b *Backend) List(ctx context.Context, prefix string) ([]simplemedia.ListItem, error) {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	dirs := map[string]bool{}
	var items []simplemedia.ListItem
	for key, obj := range b.objects {
		rest, ok := strings.CutPrefix(key, prefix)
		if !ok || rest == "" {
			continue
		}
		if name, _, nested := strings.Cut(rest, "/"); nested {
			if !dirs[name] {
				dirs[name] = true
				items = append(items, simplemedia.ListItem{Name: name, IsDirectory: true})
			}
			continue
		}
		size := int64(len(obj.data))
		modified := obj.modified
		items = append(items, simplemedia.ListItem{Name: rest, Size: &size, Modified: &modified})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

// MimeType returns the content type recorded for key
func (b *Backend) MimeType(key string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, ok := b.objects[key]
	return obj.mimeType, ok
}

// Len returns the number of stored objects
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}
