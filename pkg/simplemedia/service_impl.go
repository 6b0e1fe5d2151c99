package simplemedia

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/tendant/simple-media/pkg/simplemedia/presigned"
)

// Defaults applied when no option overrides them.
const (
	DefaultQuality = 80
)

// service implements the Service interface
type service struct {
	store          BlobStore
	signer         *presigned.Signer
	presets        Presets
	defaultQuality int
	converters     map[MediaClass]Converter
	transformer    Transformer
	catalog        Catalog
	observer       Observer
	logger         *slog.Logger
	newID          func() string
	now            func() time.Time

	singleFlight bool
	flight       singleflight.Group
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithBlobStore sets the storage gateway holding originals and derivatives
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.store = store
	}
}

// WithSigner sets the signer used to verify and issue URLs
func WithSigner(signer *presigned.Signer) Option {
	return func(s *service) {
		s.signer = signer
	}
}

// WithPresets sets the named presets
func WithPresets(presets Presets) Option {
	return func(s *service) {
		s.presets = presets
	}
}

// WithDefaultQuality sets the quality used when neither preset nor query sets one
func WithDefaultQuality(q int) Option {
	return func(s *service) {
		if q > 0 {
			s.defaultQuality = q
		}
	}
}

// WithConverter registers the converter for one media class
func WithConverter(class MediaClass, conv Converter) Option {
	return func(s *service) {
		s.converters[class] = conv
	}
}

// WithConverters registers several converters at once
func WithConverters(convs map[MediaClass]Converter) Option {
	return func(s *service) {
		for class, conv := range convs {
			s.converters[class] = conv
		}
	}
}

// WithTransformer sets the image transform engine
func WithTransformer(t Transformer) Option {
	return func(s *service) {
		s.transformer = t
	}
}

// WithCatalog sets the asset catalog written on upload
func WithCatalog(c Catalog) Option {
	return func(s *service) {
		s.catalog = c
	}
}

// WithObserver sets the metrics observer
func WithObserver(o Observer) Option {
	return func(s *service) {
		s.observer = o
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *service) {
		s.logger = l
	}
}

// WithSingleFlight toggles collapsing of concurrent misses for the same key
func WithSingleFlight(enabled bool) Option {
	return func(s *service) {
		s.singleFlight = enabled
	}
}

// WithIDGenerator overrides the generator of upload ids
func WithIDGenerator(fn func() string) Option {
	return func(s *service) {
		s.newID = fn
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		presets:        Presets{},
		defaultQuality: DefaultQuality,
		converters:     map[MediaClass]Converter{ClassImage: passthroughImage},
		observer:       NewNoopObserver(),
		logger:         slog.Default(),
		newID:          uuid.NewString,
		now:            time.Now,
		singleFlight:   true,
	}

	for _, option := range options {
		option(s)
	}

	if s.store == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if s.signer == nil || !s.signer.IsEnabled() {
		return nil, fmt.Errorf("signer with a secret key is required")
	}
	if s.transformer == nil {
		return nil, fmt.Errorf("transformer is required")
	}

	return s, nil
}

// Upload operations

func (s *service) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	base := NamespaceOriginals
	owner := PublicOwner
	if req.Private {
		prefix, err := PrivatePrefix(req.Caller)
		if err != nil {
			return nil, err
		}
		base = prefix
		owner = string(req.Caller)
	}

	folder, err := SanitizeFolder(req.Folder)
	if err != nil {
		return nil, err
	}
	if !req.Private && IsPrivate(folder+"/") {
		return nil, fmt.Errorf("%w: public folder %q is reserved", ErrInvalidRequest, folder)
	}

	ext := ExtensionForMimeType(req.ContentType)
	key := path.Join(base, folder, s.newID()+ext)

	if _, err := s.store.Put(ctx, key, req.Data, req.ContentType); err != nil {
		s.logger.Error("failed to store original", "key", key, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	assetID := key
	if !req.Private {
		assetID = AssetIDForKey(key)
	}

	if s.catalog != nil {
		rec := &AssetRecord{
			AssetID:   assetID,
			Key:       key,
			Owner:     owner,
			Private:   req.Private,
			MimeType:  req.ContentType,
			Size:      int64(len(req.Data)),
			CreatedAt: s.now().UTC(),
		}
		if err := s.catalog.Record(ctx, rec); err != nil {
			s.logger.Warn("failed to record asset", "asset_id", assetID, "error", err)
		}
	}

	signReq := SignRequest{AssetID: assetID}
	if ClassifyExtension(assetID) == ClassVideo {
		signReq.Media = &MediaParam{Time: 1}
	}
	sampleURL, err := s.SignURL(ctx, signReq)
	if err != nil {
		return nil, err
	}

	s.logger.Info("asset uploaded", "asset_id", assetID, "private", req.Private, "size", len(req.Data))

	return &UploadResult{
		AssetID:   assetID,
		URL:       sampleURL,
		IsPrivate: req.Private,
		Owner:     owner,
		MimeType:  req.ContentType,
		Size:      int64(len(req.Data)),
	}, nil
}

// Signing

func (s *service) SignURL(ctx context.Context, req SignRequest) (string, error) {
	if err := ValidateAssetID(req.AssetID); err != nil {
		return "", err
	}
	assetID := strings.TrimPrefix(req.AssetID, "/")
	opts, err := ResolveOptions(req.Query, req.Preset, s.presets, s.defaultQuality)
	if err != nil {
		return "", err
	}
	params, err := signatureParams(assetID, opts, req.Preset)
	if err != nil {
		return "", err
	}

	query := url.Values{}
	if req.Query.Width > 0 {
		query.Set("width", strconv.Itoa(req.Query.Width))
	}
	if req.Query.Height > 0 {
		query.Set("height", strconv.Itoa(req.Query.Height))
	}
	if req.Query.Format != "" {
		query.Set("format", req.Query.Format.String())
	}
	if req.Query.Quality > 0 {
		query.Set("quality", strconv.Itoa(req.Query.Quality))
	}
	if req.Preset != "" {
		query.Set("preset", req.Preset)
	}
	if req.Media != nil {
		switch ClassifyExtension(assetID) {
		case ClassVideo:
			query.Set("time", formatSeconds(req.Media.Time))
		case ClassDocument:
			query.Set("page", strconv.Itoa(req.Media.Page))
		}
	}

	return s.signer.SignURL(params, query)
}

// signatureParams binds the resolved options to the asset and, for private
// assets, to the owner encoded in the id.
func signatureParams(assetID string, opts Options, preset string) (presigned.Params, error) {
	p := presigned.Params{
		AssetID: assetID,
		Width:   opts.Width,
		Height:  opts.Height,
		Format:  opts.Format.String(),
		Quality: opts.Quality,
		Preset:  preset,
	}
	if IsPrivate(assetID) {
		owner, err := OwnerOf(assetID)
		if err != nil {
			return presigned.Params{}, err
		}
		p.Owner = string(owner)
	}
	return p, nil
}

// Derivation pipeline

func (s *service) Retrieve(ctx context.Context, req RetrieveRequest) (*Derivative, error) {
	start := s.now()
	class := ClassifyExtension(req.AssetID)

	d, err := s.retrieve(ctx, req, class)
	if err != nil {
		s.observer.ObserveError(ErrorKind(err))
		return nil, err
	}
	s.observer.ObserveRequest(class, d.CacheStatus, s.now().Sub(start))
	return d, nil
}

func (s *service) retrieve(ctx context.Context, req RetrieveRequest, class MediaClass) (*Derivative, error) {
	if err := ValidateAssetID(req.AssetID); err != nil {
		return nil, err
	}
	assetID := strings.TrimPrefix(req.AssetID, "/")
	if req.Media.Time < 0 {
		return nil, fmt.Errorf("%w: time must not be negative", ErrInvalidRequest)
	}

	if err := AuthorizeRead(assetID, req.Caller); err != nil {
		return nil, err
	}

	opts, err := ResolveOptions(req.Query, req.Preset, s.presets, s.defaultQuality)
	if err != nil {
		return nil, err
	}

	params, err := signatureParams(assetID, opts, req.Preset)
	if err != nil {
		return nil, err
	}
	if err := s.signer.Verify(params, req.Signature); err != nil {
		if errors.Is(err, presigned.ErrMissingSignature) {
			return nil, fmt.Errorf("%w: signature is required", ErrInvalidRequest)
		}
		return nil, fmt.Errorf("%w: %v", ErrForbidden, err)
	}

	media := req.Media
	if media.Page < 1 {
		media.Page = DefaultMediaParam.Page
	}
	key := DerivativeKey(assetID, class, opts, media)

	data, err := s.store.Get(ctx, key)
	if err == nil {
		return &Derivative{
			Data:        data,
			MimeType:    derivativeMimeType(assetID, class, opts),
			CacheStatus: CacheHit,
			Key:         key,
		}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if !s.singleFlight {
		return s.derive(ctx, assetID, class, opts, media, key)
	}

	// The shared computation must outlive any single caller's cancellation.
	detached := context.WithoutCancel(ctx)
	v, err, _ := s.flight.Do(key, func() (interface{}, error) {
		return s.derive(detached, assetID, class, opts, media, key)
	})
	if err != nil {
		return nil, err
	}
	d := *v.(*Derivative)
	return &d, nil
}

func (s *service) derive(ctx context.Context, assetID string, class MediaClass, opts Options, media MediaParam, key string) (*Derivative, error) {
	src, err := s.store.Get(ctx, OriginKey(assetID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: asset %s", ErrNotFound, assetID)
		}
		return nil, err
	}

	conv, ok := s.converters[class]
	if !ok {
		conv = passthroughImage
	}
	rend, err := conv.Convert(ctx, src, ConvertRequest{AssetID: assetID, Class: class, Options: opts, Media: media})
	if err != nil {
		s.logger.Error("conversion failed", "asset_id", assetID, "class", class.String(), "error", err)
		return nil, &ProcessingError{AssetID: assetID, Stage: class.String(), Err: err}
	}

	data, mimeType := rend.Data, rend.MimeType
	if !rend.Final {
		data, mimeType, err = s.transformer.Transform(ctx, rend.Data, opts)
		if err != nil {
			s.logger.Error("transform failed", "asset_id", assetID, "error", err)
			return nil, &ProcessingError{AssetID: assetID, Stage: "transform", Err: err}
		}
	}

	if _, err := s.store.Put(ctx, key, data, mimeType); err != nil {
		s.logger.Warn("failed to store derivative", "key", key, "error", err)
	}

	return &Derivative{Data: data, MimeType: mimeType, CacheStatus: CacheMiss, Key: key}, nil
}

// derivativeMimeType is the content type of a cached derivative. Passthrough
// derivatives keep the type of their source.
func derivativeMimeType(assetID string, class MediaClass, opts Options) string {
	if class == ClassPassthrough {
		return MimeTypeForExtension(Extension(assetID))
	}
	return opts.Format.MimeType()
}

// Listing and catalog

func (s *service) List(ctx context.Context, req ListRequest) (*ListResult, error) {
	p := strings.Trim(req.Path, "/")
	if p == "" {
		p = NamespaceOriginals
	}

	segs := strings.Split(p, "/")
	for _, seg := range segs {
		if seg == ".." || seg == "." {
			return nil, fmt.Errorf("%w: path %q leaves the storage root", ErrAccessDenied, p)
		}
	}
	if err := AuthorizeList(segs, req.Caller); err != nil {
		return nil, err
	}

	items, err := s.store.List(ctx, p)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []ListItem{}
	}
	return &ListResult{Path: p, Items: items}, nil
}

func (s *service) Info(ctx context.Context, assetID string, caller Identity) (*AssetRecord, error) {
	if err := ValidateAssetID(assetID); err != nil {
		return nil, err
	}
	assetID = strings.TrimPrefix(assetID, "/")
	if err := AuthorizeRead(assetID, caller); err != nil {
		return nil, err
	}
	if s.catalog == nil {
		return nil, fmt.Errorf("%w: catalog is not configured", ErrNotFound)
	}
	return s.catalog.Get(ctx, assetID)
}
