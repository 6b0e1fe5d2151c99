package simplemedia

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrUnauthorized indicates a missing or invalid identity where one is required
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates a bad signature or a caller touching another owner's namespace
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidPreset indicates an unknown preset name
	ErrInvalidPreset = errors.New("invalid preset")

	// ErrInvalidRequest indicates malformed request parameters
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotFound indicates a missing origin, key or catalog record
	ErrNotFound = errors.New("not found")

	// ErrAccessDenied indicates a storage key that resolves outside the storage root
	ErrAccessDenied = errors.New("access denied")

	// ErrProcessing indicates a converter or the transform engine failed
	ErrProcessing = errors.New("processing failed")

	// ErrUploadFailed indicates an original could not be persisted
	ErrUploadFailed = errors.New("upload failed")
)

// StorageError represents an error related to storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s on %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ProcessingError wraps a failure while deriving an asset. It matches
// ErrProcessing with errors.Is.
type ProcessingError struct {
	AssetID string
	Stage   string
	Err     error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing %s failed at %s: %v", e.AssetID, e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

func (e *ProcessingError) Is(target error) bool {
	return target == ErrProcessing
}

// Error kinds returned by ErrorKind.
const (
	KindUnauthorized   = "unauthorized"
	KindForbidden      = "forbidden"
	KindInvalidPreset  = "invalid_preset"
	KindInvalidRequest = "invalid_request"
	KindNotFound       = "not_found"
	KindProcessing     = "processing"
	KindUploadFailed   = "upload_failed"
	KindInternal       = "internal"
)

// ErrorKind classifies err into a short stable label used for HTTP error codes
// and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrAccessDenied):
		return KindForbidden
	case errors.Is(err, ErrInvalidPreset):
		return KindInvalidPreset
	case errors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrProcessing):
		return KindProcessing
	case errors.Is(err, ErrUploadFailed):
		return KindUploadFailed
	}
	return KindInternal
}
