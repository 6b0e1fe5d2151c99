package api

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/auth"
)

// CacheStatusHeader reports whether a derivative came from cache.
const CacheStatusHeader = "X-Media-Cache"

// DefaultMaxUploadBytes bounds the multipart body of an upload.
const DefaultMaxUploadBytes int64 = 64 << 20

// Handler serves the asset endpoints.
type Handler struct {
	service        simplemedia.Service
	auth           *auth.Authenticator
	maxDimension   int
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewHandler creates a Handler. A nil authenticator treats every caller as
// anonymous; a nil logger uses slog.Default().
func NewHandler(service simplemedia.Service, authenticator *auth.Authenticator, maxDimension int, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service:        service,
		auth:           authenticator,
		maxDimension:   maxDimension,
		maxUploadBytes: DefaultMaxUploadBytes,
		logger:         logger,
	}
}

// Routes returns the asset routes, meant to be mounted at "<prefix>/assets".
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	if h.auth != nil {
		r.Use(h.auth.Middleware(h.writeError))
	}

	r.Post("/upload", h.Upload)
	r.Get("/list", h.List)
	r.Get("/list/*", h.List)
	r.Get("/info/*", h.Info)
	r.Get("/*", h.Retrieve)

	return r
}

// Upload stores the multipart field "file" as a new original.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: multipart field \"file\" is required: %v", simplemedia.ErrInvalidRequest, err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: failed to read upload: %v", simplemedia.ErrInvalidRequest, err))
		return
	}

	private := false
	if v := r.URL.Query().Get("private"); v != "" {
		private, err = strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, r, fmt.Errorf("%w: private must be a boolean", simplemedia.ErrInvalidRequest))
			return
		}
	}

	result, err := h.service.Upload(r.Context(), simplemedia.UploadRequest{
		Data:        data,
		ContentType: uploadContentType(header.Header.Get("Content-Type"), header.Filename, data),
		Private:     private,
		Folder:      r.URL.Query().Get("folder"),
		Caller:      auth.IdentityFromContext(r.Context()),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, result)
}

// uploadContentType prefers the declared part type, then the file name,
// then content sniffing.
func uploadContentType(declared, filename string, data []byte) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if ext := simplemedia.Extension(filename); ext != "" {
		if mt := simplemedia.MimeTypeForExtension(ext); mt != "application/octet-stream" {
			return mt
		}
	}
	return http.DetectContentType(data)
}

// Retrieve serves a derivative of the asset named by the rest of the path.
func (h *Handler) Retrieve(w http.ResponseWriter, r *http.Request) {
	req, err := parseRetrieveQuery(r.URL.Query(), h.maxDimension)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	req.AssetID = wildcard(r)
	req.Caller = auth.IdentityFromContext(r.Context())

	d, err := h.service.Retrieve(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", d.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(d.Data)))
	w.Header().Set("Cache-Control", simplemedia.CacheControl)
	w.Header().Set(CacheStatusHeader, string(d.CacheStatus))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(d.Data); err != nil {
		h.logger.Debug("failed to write derivative", "key", d.Key, "error", err)
	}
}

// List returns the immediate children of a storage path.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.List(r.Context(), simplemedia.ListRequest{
		Path:   wildcard(r),
		Caller: auth.IdentityFromContext(r.Context()),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

// Info returns the upload record of an asset.
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.Info(r.Context(), wildcard(r), auth.IdentityFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, rec)
}

// wildcard returns the decoded value of the trailing route wildcard.
func wildcard(r *http.Request) string {
	v := chi.URLParam(r, "*")
	if r.URL.RawPath == "" {
		return v
	}
	if decoded, err := url.PathUnescape(v); err == nil {
		return decoded
	}
	return v
}

// parseRetrieveQuery reads the derivative parameters of a retrieve request.
// Parameters that are absent stay zero.
func parseRetrieveQuery(q url.Values, maxDimension int) (simplemedia.RetrieveRequest, error) {
	req := simplemedia.RetrieveRequest{
		Preset:    q.Get("preset"),
		Signature: q.Get("signature"),
		Media:     simplemedia.DefaultMediaParam,
	}

	var err error
	if req.Query.Width, err = positiveInt(q, "width"); err != nil {
		return req, err
	}
	if req.Query.Height, err = positiveInt(q, "height"); err != nil {
		return req, err
	}
	if req.Query.Quality, err = positiveInt(q, "quality"); err != nil {
		return req, err
	}
	if v := q.Get("format"); v != "" {
		if req.Query.Format, err = simplemedia.ParseFormat(v); err != nil {
			return req, err
		}
	}
	if v := q.Get("time"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil || t < 0 || math.IsNaN(t) || math.IsInf(t, 0) {
			return req, fmt.Errorf("%w: time must be a non-negative number of seconds", simplemedia.ErrInvalidRequest)
		}
		req.Media.Time = t
	}
	if req.Media.Page, err = positiveInt(q, "page"); err != nil {
		return req, err
	}
	if req.Media.Page == 0 {
		req.Media.Page = simplemedia.DefaultMediaParam.Page
	}

	if err := req.Query.Validate(maxDimension); err != nil {
		return req, err
	}
	return req, nil
}

// positiveInt parses q[name]. Absent is zero; anything below 1 is rejected.
func positiveInt(q url.Values, name string) (int, error) {
	v := q.Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", simplemedia.ErrInvalidRequest, name)
	}
	return n, nil
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failure.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusForError maps a service error to an HTTP status.
func StatusForError(err error) int {
	switch simplemedia.ErrorKind(err) {
	case simplemedia.KindUnauthorized:
		return http.StatusUnauthorized
	case simplemedia.KindForbidden:
		return http.StatusForbidden
	case simplemedia.KindInvalidPreset, simplemedia.KindInvalidRequest:
		return http.StatusBadRequest
	case simplemedia.KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusForError(err)
	kind := simplemedia.ErrorKind(err)
	message := err.Error()

	switch status {
	case http.StatusForbidden:
		// Never tell the caller which check failed.
		message = "access denied"
	case http.StatusInternalServerError:
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	default:
		h.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}

	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: ErrorDetail{Code: kind, Message: message}})
}
