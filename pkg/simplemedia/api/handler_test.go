package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/webp"

	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/auth"
	catalogmemory "github.com/tendant/simple-media/pkg/simplemedia/catalog/memory"
	"github.com/tendant/simple-media/pkg/simplemedia/presigned"
	memorystorage "github.com/tendant/simple-media/pkg/simplemedia/storage/memory"
	"github.com/tendant/simple-media/pkg/simplemedia/transform"
)

const (
	testSecret       = "api-test-secret-0123456789abcdef"
	testMaxDimension = 4096
)

type testServer struct {
	router  http.Handler
	service simplemedia.Service
	auth    *auth.Authenticator
}

// setupHandlerTest wires a Handler over in-memory storage and catalog.
func setupHandlerTest(t *testing.T) *testServer {
	t.Helper()
	return setupHandlerTestWithLogger(t, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func setupHandlerTestWithLogger(t *testing.T, logger *slog.Logger) *testServer {
	t.Helper()

	svc, err := simplemedia.New(
		simplemedia.WithBlobStore(memorystorage.New()),
		simplemedia.WithSigner(presigned.New(presigned.WithSecretKey(testSecret), presigned.WithURLPrefix("/v1"))),
		simplemedia.WithTransformer(transform.New()),
		simplemedia.WithCatalog(catalogmemory.New()),
		simplemedia.WithPresets(simplemedia.Presets{
			"thumb": {Width: 150, Height: 150, Format: simplemedia.FormatWEBP, Quality: 70},
		}),
	)
	require.NoError(t, err)

	authenticator, err := auth.New(testSecret)
	require.NoError(t, err)

	h := NewHandler(svc, authenticator, testMaxDimension, logger)
	router := NewRouter(h, RouterConfig{
		APIPrefix:   "/v1",
		Environment: "testing",
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "# metrics")
		}),
	})

	return &testServer{router: router, service: svc, auth: authenticator}
}

func (s *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) token(t *testing.T, subject string) string {
	t.Helper()
	tok, err := s.auth.IssueToken(subject, time.Minute)
	require.NoError(t, err)
	return tok
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, target, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func (s *testServer) upload(t *testing.T, target, token string) simplemedia.UploadResult {
	t.Helper()
	req := uploadRequest(t, target, "photo.png", "image/png", testPNG(t, 640, 360))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := s.do(t, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var result simplemedia.UploadResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	return result
}

func TestHealth(t *testing.T) {
	s := setupHandlerTest(t)

	w := s.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "testing", body["environment"])

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "# metrics")
}

func TestUploadAndRetrieve(t *testing.T) {
	s := setupHandlerTest(t)

	result := s.upload(t, "/v1/assets/upload?folder=/trips/", "")
	assert.True(t, strings.HasPrefix(result.AssetID, "trips/"), result.AssetID)
	assert.True(t, strings.HasSuffix(result.AssetID, ".png"), result.AssetID)
	assert.False(t, result.IsPrivate)
	assert.Equal(t, "image/png", result.MimeType)

	signed, err := s.service.SignURL(context.Background(), simplemedia.SignRequest{
		AssetID: result.AssetID,
		Query:   simplemedia.Query{Width: 300, Format: simplemedia.FormatWEBP, Quality: 80},
	})
	require.NoError(t, err)

	first := s.do(t, httptest.NewRequest(http.MethodGet, signed, nil))
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	assert.Equal(t, "image/webp", first.Header().Get("Content-Type"))
	assert.Equal(t, "MISS", first.Header().Get(CacheStatusHeader))
	assert.Equal(t, simplemedia.CacheControl, first.Header().Get("Cache-Control"))

	cfg, err := webp.DecodeConfig(bytes.NewReader(first.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.Width)
	assert.Equal(t, 169, cfg.Height)

	second := s.do(t, httptest.NewRequest(http.MethodGet, signed, nil))
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get(CacheStatusHeader))
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())

	// The sample URL returned by the upload is itself valid.
	sample := s.do(t, httptest.NewRequest(http.MethodGet, result.URL, nil))
	assert.Equal(t, http.StatusOK, sample.Code, sample.Body.String())
}

func TestRetrieveErrors(t *testing.T) {
	s := setupHandlerTest(t)
	result := s.upload(t, "/v1/assets/upload", "")

	tests := []struct {
		name   string
		query  string
		status int
		code   string
	}{
		{name: "missing signature", query: "width=100", status: http.StatusBadRequest, code: "invalid_request"},
		{name: "bad signature", query: "width=100&signature=0000000000000000", status: http.StatusForbidden, code: "forbidden"},
		{name: "unknown preset", query: "preset=huge&signature=0000000000000000", status: http.StatusBadRequest, code: "invalid_preset"},
		{name: "bad width", query: "width=abc&signature=x", status: http.StatusBadRequest, code: "invalid_request"},
		{name: "too wide", query: "width=5000&signature=x", status: http.StatusBadRequest, code: "invalid_request"},
		{name: "zero quality", query: "quality=0&signature=x", status: http.StatusBadRequest, code: "invalid_request"},
		{name: "quality over 100", query: "quality=101&signature=x", status: http.StatusBadRequest, code: "invalid_request"},
		{name: "bad format", query: "format=gif&signature=x", status: http.StatusBadRequest, code: "invalid_request"},
		{name: "negative time", query: "time=-1&signature=x", status: http.StatusBadRequest, code: "invalid_request"},
		{name: "zero page", query: "page=0&signature=x", status: http.StatusBadRequest, code: "invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/v1/assets/" + result.AssetID + "?" + tt.query
			w := s.do(t, httptest.NewRequest(http.MethodGet, target, nil))
			assert.Equal(t, tt.status, w.Code)
			detail := decodeError(t, w)
			assert.Equal(t, tt.code, detail.Code)
			if tt.status == http.StatusForbidden {
				assert.Equal(t, "access denied", detail.Message)
			}
		})
	}
}

func TestRetrieveMissingOrigin(t *testing.T) {
	s := setupHandlerTest(t)

	signed, err := s.service.SignURL(context.Background(), simplemedia.SignRequest{AssetID: "nowhere.jpg"})
	require.NoError(t, err)

	w := s.do(t, httptest.NewRequest(http.MethodGet, signed, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decodeError(t, w).Code)
}

func TestPrivateUpload(t *testing.T) {
	s := setupHandlerTest(t)

	t.Run("requires identity", func(t *testing.T) {
		req := uploadRequest(t, "/v1/assets/upload?private=true", "photo.png", "image/png", testPNG(t, 8, 8))
		w := s.do(t, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "unauthorized", decodeError(t, w).Code)
	})

	t.Run("rejects invalid token", func(t *testing.T) {
		req := uploadRequest(t, "/v1/assets/upload?private=true", "photo.png", "image/png", testPNG(t, 8, 8))
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		w := s.do(t, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
	})

	t.Run("owner reads, others are denied", func(t *testing.T) {
		alice := s.token(t, "alice")
		result := s.upload(t, "/v1/assets/upload?private=true", alice)
		assert.True(t, strings.HasPrefix(result.AssetID, "users/alice/"), result.AssetID)
		assert.True(t, result.IsPrivate)
		assert.Equal(t, "alice", result.Owner)

		req := httptest.NewRequest(http.MethodGet, result.URL, nil)
		req.Header.Set("Authorization", "Bearer "+alice)
		w := s.do(t, req)
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

		req = httptest.NewRequest(http.MethodGet, result.URL, nil)
		req.Header.Set("Authorization", "Bearer "+s.token(t, "bob"))
		w = s.do(t, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "access denied", decodeError(t, w).Message)
	})
}

func TestUploadValidation(t *testing.T) {
	s := setupHandlerTest(t)

	t.Run("missing file field", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/assets/upload", strings.NewReader(""))
		req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
		w := s.do(t, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad private flag", func(t *testing.T) {
		req := uploadRequest(t, "/v1/assets/upload?private=maybe", "photo.png", "image/png", testPNG(t, 4, 4))
		w := s.do(t, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("content type from file name", func(t *testing.T) {
		req := uploadRequest(t, "/v1/assets/upload", "notes.txt", "", []byte("hello"))
		w := s.do(t, req)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var result simplemedia.UploadResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.Equal(t, "text/plain", result.MimeType)
		assert.True(t, strings.HasSuffix(result.AssetID, ".txt"))
	})
}

func TestList(t *testing.T) {
	s := setupHandlerTest(t)
	alice := s.token(t, "alice")
	public := s.upload(t, "/v1/assets/upload", "")
	s.upload(t, "/v1/assets/upload?private=true&folder=albums", alice)

	t.Run("public root", func(t *testing.T) {
		w := s.do(t, httptest.NewRequest(http.MethodGet, "/v1/assets/list", nil))
		require.Equal(t, http.StatusOK, w.Code)
		var result simplemedia.ListResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.Equal(t, simplemedia.NamespaceOriginals, result.Path)
		require.Len(t, result.Items, 1)
		assert.Equal(t, public.AssetID, result.Items[0].Name)
		assert.False(t, result.Items[0].IsDirectory)
	})

	t.Run("own namespace", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/assets/list/users/alice", nil)
		req.Header.Set("Authorization", "Bearer "+alice)
		w := s.do(t, req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var result simplemedia.ListResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		require.Len(t, result.Items, 1)
		assert.Equal(t, "albums", result.Items[0].Name)
		assert.True(t, result.Items[0].IsDirectory)
	})

	t.Run("other namespace", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/assets/list/users/alice", nil)
		req.Header.Set("Authorization", "Bearer "+s.token(t, "bob"))
		w := s.do(t, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("anonymous private listing", func(t *testing.T) {
		w := s.do(t, httptest.NewRequest(http.MethodGet, "/v1/assets/list/users", nil))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("private derivatives", func(t *testing.T) {
		for _, target := range []string{
			"/v1/assets/list/cache",
			"/v1/assets/list/cache/users",
			"/v1/assets/list/cache/users/alice",
		} {
			w := s.do(t, httptest.NewRequest(http.MethodGet, target, nil))
			assert.Equal(t, http.StatusForbidden, w.Code, target)

			req := httptest.NewRequest(http.MethodGet, target, nil)
			req.Header.Set("Authorization", "Bearer "+s.token(t, "bob"))
			w = s.do(t, req)
			assert.Equal(t, http.StatusForbidden, w.Code, target)
			assert.Equal(t, "access denied", decodeError(t, w).Message)
		}

		req := httptest.NewRequest(http.MethodGet, "/v1/assets/list/cache/users/alice", nil)
		req.Header.Set("Authorization", "Bearer "+alice)
		w := s.do(t, req)
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})
}

func TestInfo(t *testing.T) {
	s := setupHandlerTest(t)
	result := s.upload(t, "/v1/assets/upload", "")

	w := s.do(t, httptest.NewRequest(http.MethodGet, "/v1/assets/info/"+result.AssetID, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var rec simplemedia.AssetRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, result.AssetID, rec.AssetID)
	assert.Equal(t, "image/png", rec.MimeType)
	assert.Equal(t, result.Size, rec.Size)

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/v1/assets/info/unknown.png", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServerErrorsUseHandlerLogger(t *testing.T) {
	var logs bytes.Buffer
	s := setupHandlerTestWithLogger(t, slog.New(slog.NewJSONHandler(&logs, nil)))

	req := uploadRequest(t, "/v1/assets/upload", "broken.png", "image/png", []byte("not a png"))
	w := s.do(t, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var result simplemedia.UploadResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))

	w = s.do(t, httptest.NewRequest(http.MethodGet, result.URL, nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, simplemedia.KindProcessing, decodeError(t, w).Code)
	assert.Contains(t, logs.String(), `"msg":"request failed"`)
	assert.Contains(t, logs.String(), result.AssetID)
}

func TestParseRetrieveQuery(t *testing.T) {
	q := url.Values{}
	q.Set("width", "300")
	q.Set("format", "JPG")
	q.Set("quality", "75")
	q.Set("preset", "thumb")
	q.Set("time", "2.5")
	q.Set("page", "3")
	q.Set("signature", "abc")

	req, err := parseRetrieveQuery(q, testMaxDimension)
	require.NoError(t, err)
	assert.Equal(t, simplemedia.Query{Width: 300, Format: simplemedia.FormatJPEG, Quality: 75}, req.Query)
	assert.Equal(t, "thumb", req.Preset)
	assert.Equal(t, "abc", req.Signature)
	assert.Equal(t, simplemedia.MediaParam{Time: 2.5, Page: 3}, req.Media)

	req, err = parseRetrieveQuery(url.Values{}, testMaxDimension)
	require.NoError(t, err)
	assert.Equal(t, simplemedia.Query{}, req.Query)
	assert.Equal(t, simplemedia.DefaultMediaParam, req.Media)
}

func TestUploadContentType(t *testing.T) {
	pngData := testPNG(t, 2, 2)

	assert.Equal(t, "image/jpeg", uploadContentType("image/jpeg", "a.png", pngData))
	assert.Equal(t, "image/png", uploadContentType("", "a.png", nil))
	assert.Equal(t, "image/png", uploadContentType("application/octet-stream", "blob", pngData))
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{simplemedia.ErrUnauthorized, http.StatusUnauthorized},
		{simplemedia.ErrForbidden, http.StatusForbidden},
		{simplemedia.ErrAccessDenied, http.StatusForbidden},
		{simplemedia.ErrInvalidPreset, http.StatusBadRequest},
		{simplemedia.ErrInvalidRequest, http.StatusBadRequest},
		{simplemedia.ErrNotFound, http.StatusNotFound},
		{&simplemedia.ProcessingError{AssetID: "a.jpg", Stage: "transform", Err: fmt.Errorf("bad data")}, http.StatusInternalServerError},
		{simplemedia.ErrUploadFailed, http.StatusInternalServerError},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, StatusForError(tt.err), tt.err.Error())
	}
}
