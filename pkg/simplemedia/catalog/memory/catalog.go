package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// Catalog implements simplemedia.Catalog using in-memory storage
type Catalog struct {
	mu      sync.RWMutex
	records map[string]*simplemedia.AssetRecord
}

// New creates a new in-memory catalog
func New() *Catalog {
	return &Catalog{records: make(map[string]*simplemedia.AssetRecord)}
}

// Record stores rec. An existing record for the same asset id is kept.
func (c *Catalog) Record(ctx context.Context, rec *simplemedia.AssetRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.records[rec.AssetID]; exists {
		return nil
	}
	recCopy := *rec
	c.records[rec.AssetID] = &recCopy
	return nil
}

func (c *Catalog) Get(ctx context.Context, assetID string) (*simplemedia.AssetRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, exists := c.records[assetID]
	if !exists {
		return nil, fmt.Errorf("%w: asset %s", simplemedia.ErrNotFound, assetID)
	}
	recCopy := *rec
	return &recCopy, nil
}
