package simplemedia_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/webp"

	"github.com/tendant/simple-media/pkg/simplemedia"
	catalogmemory "github.com/tendant/simple-media/pkg/simplemedia/catalog/memory"
	"github.com/tendant/simple-media/pkg/simplemedia/presigned"
	memorystorage "github.com/tendant/simple-media/pkg/simplemedia/storage/memory"
	"github.com/tendant/simple-media/pkg/simplemedia/transform"
)

const testSecret = "test-secret-key-for-simple-media-0123456789"

// countingStore records calls so tests can assert that rejected requests
// never reach storage.
type countingStore struct {
	simplemedia.BlobStore
	gets, puts atomic.Int32
	failPut    bool
}

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.gets.Add(1)
	return s.BlobStore.Get(ctx, key)
}

func (s *countingStore) Put(ctx context.Context, key string, data []byte, mimeType string) (string, error) {
	s.puts.Add(1)
	if s.failPut {
		return "", errors.New("disk full")
	}
	return s.BlobStore.Put(ctx, key, data, mimeType)
}

type recordingObserver struct {
	mu       sync.Mutex
	statuses []simplemedia.CacheStatus
	kinds    []string
}

func (o *recordingObserver) ObserveRequest(class simplemedia.MediaClass, status simplemedia.CacheStatus, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, status)
}

func (o *recordingObserver) ObserveError(kind string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.kinds = append(o.kinds, kind)
}

func setupTestService(t *testing.T, opts ...simplemedia.Option) (simplemedia.Service, *countingStore) {
	t.Helper()
	store := &countingStore{BlobStore: memorystorage.New()}
	base := []simplemedia.Option{
		simplemedia.WithBlobStore(store),
		simplemedia.WithSigner(presigned.New(presigned.WithSecretKey(testSecret), presigned.WithURLPrefix("/v1"))),
		simplemedia.WithTransformer(transform.New()),
		simplemedia.WithCatalog(catalogmemory.New()),
		simplemedia.WithPresets(simplemedia.Presets{
			"thumb": {Width: 150, Height: 150, Format: simplemedia.FormatWEBP, Quality: 70},
		}),
		simplemedia.WithIDGenerator(func() string { return "photo" }),
	}
	svc, err := simplemedia.New(append(base, opts...)...)
	require.NoError(t, err)
	return svc, store
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}))
	return buf.Bytes()
}

func signature(t *testing.T, svc simplemedia.Service, req simplemedia.SignRequest) string {
	t.Helper()
	raw, err := svc.SignURL(context.Background(), req)
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	sig := u.Query().Get("signature")
	require.Len(t, sig, presigned.SignatureLength)
	return sig
}

func TestServiceCreation(t *testing.T) {
	signer := presigned.New(presigned.WithSecretKey(testSecret))
	tests := []struct {
		name        string
		options     []simplemedia.Option
		expectError bool
	}{
		{
			name:        "no options should fail",
			expectError: true,
		},
		{
			name: "signer without secret should fail",
			options: []simplemedia.Option{
				simplemedia.WithBlobStore(memorystorage.New()),
				simplemedia.WithSigner(presigned.New()),
				simplemedia.WithTransformer(transform.New()),
			},
			expectError: true,
		},
		{
			name: "store, signer and transformer should succeed",
			options: []simplemedia.Option{
				simplemedia.WithBlobStore(memorystorage.New()),
				simplemedia.WithSigner(signer),
				simplemedia.WithTransformer(transform.New()),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := simplemedia.New(tt.options...)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func TestUploadThenRetrieve(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	up, err := svc.Upload(ctx, simplemedia.UploadRequest{
		Data:        jpegBytes(t, 1920, 1080),
		ContentType: "image/jpeg",
	})
	require.NoError(t, err)
	assert.Equal(t, "photo.jpg", up.AssetID)
	assert.Equal(t, simplemedia.PublicOwner, up.Owner)
	assert.False(t, up.IsPrivate)
	assert.Contains(t, up.URL, "/v1/assets/photo.jpg?signature=")

	query := simplemedia.Query{Width: 300}
	req := simplemedia.RetrieveRequest{
		AssetID:   up.AssetID,
		Query:     query,
		Signature: signature(t, svc, simplemedia.SignRequest{AssetID: up.AssetID, Query: query}),
	}

	first, err := svc.Retrieve(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, simplemedia.CacheMiss, first.CacheStatus)
	assert.Equal(t, "image/webp", first.MimeType)
	assert.Equal(t, "cache/photo.jpg/w300_hauto_q80.webp", first.Key)

	cfg, err := webp.DecodeConfig(bytes.NewReader(first.Data))
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.Width)
	assert.InDelta(t, 169, cfg.Height, 1)

	second, err := svc.Retrieve(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, simplemedia.CacheHit, second.CacheStatus)
	assert.Equal(t, "image/webp", second.MimeType)
	assert.Equal(t, first.Data, second.Data)
}

func TestUploadIntoFolderAndList(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	up, err := svc.Upload(ctx, simplemedia.UploadRequest{
		Data:        jpegBytes(t, 10, 10),
		ContentType: "image/jpeg",
		Folder:      "/trips/",
	})
	require.NoError(t, err)
	assert.Equal(t, "trips/photo.jpg", up.AssetID)

	res, err := svc.List(ctx, simplemedia.ListRequest{})
	require.NoError(t, err)
	assert.Equal(t, "originals", res.Path)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "trips", res.Items[0].Name)
	assert.True(t, res.Items[0].IsDirectory)

	res, err = svc.List(ctx, simplemedia.ListRequest{Path: "originals/empty"})
	require.NoError(t, err)
	assert.NotNil(t, res.Items)
	assert.Empty(t, res.Items)

	_, err = svc.Upload(ctx, simplemedia.UploadRequest{Data: []byte("x"), ContentType: "image/png", Folder: "../escape"})
	assert.ErrorIs(t, err, simplemedia.ErrInvalidRequest)
}

func TestPrivateOwnership(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, simplemedia.UploadRequest{Data: []byte("x"), ContentType: "image/jpeg", Private: true})
	assert.ErrorIs(t, err, simplemedia.ErrUnauthorized)

	up, err := svc.Upload(ctx, simplemedia.UploadRequest{
		Data:        jpegBytes(t, 64, 64),
		ContentType: "image/jpeg",
		Private:     true,
		Caller:      "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, "users/alice/photo.jpg", up.AssetID)
	assert.Equal(t, "alice", up.Owner)
	assert.True(t, up.IsPrivate)

	sig := signature(t, svc, simplemedia.SignRequest{AssetID: up.AssetID})

	for _, caller := range []simplemedia.Identity{"bob", simplemedia.Anonymous} {
		_, err := svc.Retrieve(ctx, simplemedia.RetrieveRequest{AssetID: up.AssetID, Signature: sig, Caller: caller})
		assert.ErrorIs(t, err, simplemedia.ErrForbidden, "caller %q", caller)
	}

	d, err := svc.Retrieve(ctx, simplemedia.RetrieveRequest{AssetID: up.AssetID, Signature: sig, Caller: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "cache/users/alice/photo.jpg/wauto_hauto_q80.webp", d.Key)

	rec, err := svc.Info(ctx, up.AssetID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.Owner)
	assert.True(t, rec.Private)
	_, err = svc.Info(ctx, up.AssetID, "bob")
	assert.ErrorIs(t, err, simplemedia.ErrForbidden)
}

func TestListAuthorization(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	tests := []struct {
		path    string
		caller  simplemedia.Identity
		wantErr error
	}{
		{"users", "alice", simplemedia.ErrForbidden},
		{"users/alice", "bob", simplemedia.ErrForbidden},
		{"users/alice", simplemedia.Anonymous, simplemedia.ErrForbidden},
		{"users/alice", "alice", nil},
		{"cache", "alice", simplemedia.ErrForbidden},
		{"cache/users", "alice", simplemedia.ErrForbidden},
		{"cache/users/alice", "bob", simplemedia.ErrForbidden},
		{"cache/users/alice", simplemedia.Anonymous, simplemedia.ErrForbidden},
		{"cache/users/alice/photo.jpg", simplemedia.Anonymous, simplemedia.ErrForbidden},
		{"cache/users/alice", "alice", nil},
		{"cache/photo.jpg", simplemedia.Anonymous, nil},
		{"../secret", "alice", simplemedia.ErrAccessDenied},
		{"originals/../users", "alice", simplemedia.ErrAccessDenied},
	}
	for _, tt := range tests {
		_, err := svc.List(ctx, simplemedia.ListRequest{Path: tt.path, Caller: tt.caller})
		if tt.wantErr == nil {
			assert.NoError(t, err, tt.path)
			continue
		}
		assert.ErrorIs(t, err, tt.wantErr, tt.path)
	}
}

func TestListHidesPrivateDerivatives(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	up, err := svc.Upload(ctx, simplemedia.UploadRequest{
		Data:        jpegBytes(t, 32, 32),
		ContentType: "image/jpeg",
		Private:     true,
		Caller:      "alice",
	})
	require.NoError(t, err)
	sig := signature(t, svc, simplemedia.SignRequest{AssetID: up.AssetID})
	_, err = svc.Retrieve(ctx, simplemedia.RetrieveRequest{AssetID: up.AssetID, Signature: sig, Caller: "alice"})
	require.NoError(t, err)

	for _, caller := range []simplemedia.Identity{"bob", simplemedia.Anonymous} {
		for _, p := range []string{"cache/users/alice", "cache/users/alice/photo.jpg", "/cache/users/alice/"} {
			res, err := svc.List(ctx, simplemedia.ListRequest{Path: p, Caller: caller})
			assert.ErrorIs(t, err, simplemedia.ErrForbidden, "%s as %q", p, caller)
			assert.Nil(t, res)
		}
	}

	res, err := svc.List(ctx, simplemedia.ListRequest{Path: "cache/users/alice/photo.jpg", Caller: "alice"})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "wauto_hauto_q80.webp", res.Items[0].Name)
}

func TestUploadRejectsPublicFolderInPrivateNamespace(t *testing.T) {
	svc, store := setupTestService(t)

	_, err := svc.Upload(context.Background(), simplemedia.UploadRequest{
		Data:        jpegBytes(t, 8, 8),
		ContentType: "image/jpeg",
		Folder:      "users/alice",
	})
	assert.ErrorIs(t, err, simplemedia.ErrInvalidRequest)
	assert.Equal(t, int32(0), store.puts.Load())
}

func TestRetrieveRejectsBadSignatureBeforeStorage(t *testing.T) {
	svc, store := setupTestService(t)
	ctx := context.Background()

	sig := signature(t, svc, simplemedia.SignRequest{AssetID: "photo.jpg", Query: simplemedia.Query{Width: 300}})
	store.gets.Store(0)

	_, err := svc.Retrieve(ctx, simplemedia.RetrieveRequest{
		AssetID: "photo.jpg", Query: simplemedia.Query{Width: 301}, Signature: sig,
	})
	assert.ErrorIs(t, err, simplemedia.ErrForbidden)

	_, err = svc.Retrieve(ctx, simplemedia.RetrieveRequest{
		AssetID: "photo.jpg", Query: simplemedia.Query{Width: 300}, Signature: "0000000000000000",
	})
	assert.ErrorIs(t, err, simplemedia.ErrForbidden)

	_, err = svc.Retrieve(ctx, simplemedia.RetrieveRequest{AssetID: "photo.jpg", Query: simplemedia.Query{Width: 300}})
	assert.ErrorIs(t, err, simplemedia.ErrInvalidRequest)

	_, err = svc.Retrieve(ctx, simplemedia.RetrieveRequest{AssetID: "photo.jpg", Preset: "huge", Signature: sig})
	assert.ErrorIs(t, err, simplemedia.ErrInvalidPreset)

	_, err = svc.Retrieve(ctx, simplemedia.RetrieveRequest{AssetID: "../../etc/passwd", Signature: sig})
	assert.ErrorIs(t, err, simplemedia.ErrAccessDenied)

	assert.Equal(t, int32(0), store.gets.Load())
}

func TestRetrievePresetSignature(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, simplemedia.UploadRequest{Data: jpegBytes(t, 400, 300), ContentType: "image/jpeg"})
	require.NoError(t, err)

	sig := signature(t, svc, simplemedia.SignRequest{AssetID: "photo.jpg", Preset: "thumb"})
	d, err := svc.Retrieve(ctx, simplemedia.RetrieveRequest{AssetID: "photo.jpg", Preset: "thumb", Signature: sig})
	require.NoError(t, err)
	assert.Equal(t, "cache/photo.jpg/w150_h150_q70.webp", d.Key)

	// A preset signature does not cover an explicit override.
	_, err = svc.Retrieve(ctx, simplemedia.RetrieveRequest{
		AssetID: "photo.jpg", Preset: "thumb", Query: simplemedia.Query{Width: 151}, Signature: sig,
	})
	assert.ErrorIs(t, err, simplemedia.ErrForbidden)
}

func TestRetrieveMissingOriginal(t *testing.T) {
	svc, _ := setupTestService(t)

	sig := signature(t, svc, simplemedia.SignRequest{AssetID: "missing.jpg"})
	_, err := svc.Retrieve(context.Background(), simplemedia.RetrieveRequest{AssetID: "missing.jpg", Signature: sig})
	assert.ErrorIs(t, err, simplemedia.ErrNotFound)
}

func TestRetrieveProcessingError(t *testing.T) {
	obs := &recordingObserver{}
	svc, store := setupTestService(t, simplemedia.WithObserver(obs))
	ctx := context.Background()

	_, err := svc.Upload(ctx, simplemedia.UploadRequest{Data: []byte("not an image"), ContentType: "image/png"})
	require.NoError(t, err)
	puts := store.puts.Load()

	sig := signature(t, svc, simplemedia.SignRequest{AssetID: "photo.png"})
	_, err = svc.Retrieve(ctx, simplemedia.RetrieveRequest{AssetID: "photo.png", Signature: sig})
	require.Error(t, err)
	assert.ErrorIs(t, err, simplemedia.ErrProcessing)

	var pe *simplemedia.ProcessingError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "transform", pe.Stage)
	assert.Equal(t, puts, store.puts.Load(), "failed derivatives are not stored")
	assert.Equal(t, []string{"processing"}, obs.kinds)
}

func TestRetrievePassthroughKeepsMimeType(t *testing.T) {
	svc, _ := setupTestService(t, simplemedia.WithConverter(simplemedia.ClassPassthrough,
		simplemedia.ConverterFunc(func(ctx context.Context, src []byte, req simplemedia.ConvertRequest) (*simplemedia.Rendition, error) {
			return &simplemedia.Rendition{Data: src, MimeType: "text/csv", Final: true}, nil
		})))
	ctx := context.Background()

	csv := []byte("a,b\n1,2\n")
	up, err := svc.Upload(ctx, simplemedia.UploadRequest{Data: csv, ContentType: "text/csv"})
	require.NoError(t, err)
	assert.Equal(t, "photo.csv", up.AssetID)

	sig := signature(t, svc, simplemedia.SignRequest{AssetID: up.AssetID})
	req := simplemedia.RetrieveRequest{AssetID: up.AssetID, Signature: sig}

	miss, err := svc.Retrieve(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, simplemedia.CacheMiss, miss.CacheStatus)
	assert.Equal(t, "text/csv", miss.MimeType)
	assert.Equal(t, csv, miss.Data)

	hit, err := svc.Retrieve(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, simplemedia.CacheHit, hit.CacheStatus)
	assert.Equal(t, "text/csv", hit.MimeType)
	assert.Equal(t, csv, hit.Data)
}

func TestRetrieveCollapsesConcurrentMisses(t *testing.T) {
	var calls atomic.Int32
	page := func(ctx context.Context, src []byte, req simplemedia.ConvertRequest) (*simplemedia.Rendition, error) {
		calls.Add(1)
		time.Sleep(200 * time.Millisecond)
		img := image.NewRGBA(image.Rect(0, 0, 40, 20))
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
		return &simplemedia.Rendition{Data: buf.Bytes(), MimeType: "image/png"}, nil
	}
	svc, _ := setupTestService(t, simplemedia.WithConverter(simplemedia.ClassDocument, simplemedia.ConverterFunc(page)))
	ctx := context.Background()

	up, err := svc.Upload(ctx, simplemedia.UploadRequest{Data: []byte("%PDF-1.4"), ContentType: "application/pdf"})
	require.NoError(t, err)
	assert.Equal(t, "photo.pdf", up.AssetID)

	sig := signature(t, svc, simplemedia.SignRequest{AssetID: up.AssetID})
	req := simplemedia.RetrieveRequest{AssetID: up.AssetID, Media: simplemedia.MediaParam{Page: 2}, Signature: sig}

	const workers = 8
	start := make(chan struct{})
	results := make([]*simplemedia.Derivative, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = svc.Retrieve(ctx, req)
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "cache/photo.pdf/p2_wauto_hauto_q80.webp", results[i].Key)
		assert.Equal(t, results[0].Data, results[i].Data)
	}
}

func TestUploadVideoSampleURLCarriesTime(t *testing.T) {
	svc, _ := setupTestService(t)

	up, err := svc.Upload(context.Background(), simplemedia.UploadRequest{Data: []byte("mp4"), ContentType: "video/mp4"})
	require.NoError(t, err)
	assert.Equal(t, "photo.mp4", up.AssetID)

	u, err := url.Parse(up.URL)
	require.NoError(t, err)
	assert.Equal(t, "1.0", u.Query().Get("time"))
}

func TestUploadStorageFailure(t *testing.T) {
	svc, store := setupTestService(t)
	store.failPut = true

	_, err := svc.Upload(context.Background(), simplemedia.UploadRequest{Data: []byte("x"), ContentType: "image/png"})
	assert.ErrorIs(t, err, simplemedia.ErrUploadFailed)
}

func TestInfoUnknownAsset(t *testing.T) {
	svc, _ := setupTestService(t)

	_, err := svc.Info(context.Background(), "missing.jpg", simplemedia.Anonymous)
	assert.ErrorIs(t, err, simplemedia.ErrNotFound)
}
