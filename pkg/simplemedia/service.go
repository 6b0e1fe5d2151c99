package simplemedia

import "context"

// Service is the main interface of the media library.
type Service interface {
	// Upload stores a new original and returns its id with a sample signed URL.
	Upload(ctx context.Context, req UploadRequest) (*UploadResult, error)

	// Retrieve serves the derivative described by req, producing and caching
	// it on first request.
	Retrieve(ctx context.Context, req RetrieveRequest) (*Derivative, error)

	// List returns the immediate children of a storage path.
	List(ctx context.Context, req ListRequest) (*ListResult, error)

	// Info returns the catalog record of an uploaded original.
	Info(ctx context.Context, assetID string, caller Identity) (*AssetRecord, error)

	// SignURL issues a signed retrieval URL.
	SignURL(ctx context.Context, req SignRequest) (string, error)
}

// UploadRequest contains parameters for storing a new original.
type UploadRequest struct {
	Data        []byte
	ContentType string
	Private     bool
	Folder      string
	Caller      Identity
}

// UploadResult describes a stored original.
type UploadResult struct {
	AssetID   string `json:"asset_id"`
	URL       string `json:"url"`
	IsPrivate bool   `json:"is_private"`
	Owner     string `json:"owner"`
	MimeType  string `json:"mime_type"`
	Size      int64  `json:"size"`
}

// RetrieveRequest contains the parameters of a derivative request. Zero
// values of the Query fields were not supplied.
type RetrieveRequest struct {
	AssetID   string
	Query     Query
	Preset    string
	Media     MediaParam
	Signature string
	Caller    Identity
}

// Derivative is a served derivative.
type Derivative struct {
	Data        []byte
	MimeType    string
	CacheStatus CacheStatus
	Key         string
}

// ListRequest contains parameters for listing a storage path.
type ListRequest struct {
	Path   string
	Caller Identity
}

// ListResult is a storage listing.
type ListResult struct {
	Path  string     `json:"path"`
	Items []ListItem `json:"items"`
}

// SignRequest contains parameters for issuing a signed URL. Media is only
// encoded for classes addressed by time or page.
type SignRequest struct {
	AssetID string
	Query   Query
	Preset  string
	Media   *MediaParam
}
