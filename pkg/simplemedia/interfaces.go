package simplemedia

import (
	"context"
	"time"
)

// BlobStore defines the interface for blob storage backends. Keys are
// slash-separated paths relative to the storage root.
type BlobStore interface {
	// Get returns the bytes stored under key, or an error matching ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores data under key and returns the backend's address for it.
	Put(ctx context.Context, key string, data []byte, mimeType string) (string, error)

	// List returns the immediate children of prefix. A missing prefix lists
	// as empty.
	List(ctx context.Context, prefix string) ([]ListItem, error)
}

// Converter turns the bytes of one media class into an image, or into a
// final rendition that skips the transform stage.
type Converter interface {
	Convert(ctx context.Context, src []byte, req ConvertRequest) (*Rendition, error)
}

// ConverterFunc adapts a function to Converter.
type ConverterFunc func(ctx context.Context, src []byte, req ConvertRequest) (*Rendition, error)

func (f ConverterFunc) Convert(ctx context.Context, src []byte, req ConvertRequest) (*Rendition, error) {
	return f(ctx, src, req)
}

// Transformer resizes and re-encodes an image.
type Transformer interface {
	Transform(ctx context.Context, src []byte, opts Options) ([]byte, string, error)
}

// Catalog keeps a record per uploaded original.
type Catalog interface {
	Record(ctx context.Context, rec *AssetRecord) error
	Get(ctx context.Context, assetID string) (*AssetRecord, error)
}

// Observer receives request outcomes for metrics.
type Observer interface {
	ObserveRequest(class MediaClass, status CacheStatus, elapsed time.Duration)
	ObserveError(kind string)
}
