package simplemedia

import (
	"context"
	"time"
)

// NoopObserver is a no-operation implementation of Observer
type NoopObserver struct{}

// NewNoopObserver creates a new no-operation observer
func NewNoopObserver() Observer {
	return &NoopObserver{}
}

// ObserveRequest does nothing
func (n *NoopObserver) ObserveRequest(class MediaClass, status CacheStatus, elapsed time.Duration) {}

// ObserveError does nothing
func (n *NoopObserver) ObserveError(kind string) {}

// passthroughImage hands image sources to the transform stage unchanged.
var passthroughImage = ConverterFunc(func(ctx context.Context, src []byte, req ConvertRequest) (*Rendition, error) {
	return &Rendition{Data: src}, nil
})
