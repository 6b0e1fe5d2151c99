package simplemedia

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
)

// Format is an output image encoding.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatWEBP Format = "webp"
)

// DefaultFormat is used when neither the request nor a preset names a format.
const DefaultFormat = FormatWEBP

// ParseFormat parses a format name case-insensitively. "jpg" is accepted as
// an alias for jpeg.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "webp":
		return FormatWEBP, nil
	}
	return "", fmt.Errorf("%w: unsupported format %q", ErrInvalidRequest, s)
}

// IsValid reports whether f is one of the supported encodings.
func (f Format) IsValid() bool {
	switch f {
	case FormatJPEG, FormatPNG, FormatWEBP:
		return true
	}
	return false
}

func (f Format) String() string { return string(f) }

// MimeType returns the content type of images encoded in f.
func (f Format) MimeType() string { return "image/" + string(f) }

// Options are fully resolved processing options. A zero Width or Height
// means "auto": the dimension follows the source aspect ratio.
type Options struct {
	Width   int
	Height  int
	Format  Format
	Quality int
}

// CacheKey renders the options as the file name of a derivative, e.g.
// "w300_hauto_q80.webp".
func (o Options) CacheKey() string {
	return fmt.Sprintf("w%s_h%s_q%d.%s", dimension(o.Width), dimension(o.Height), o.Quality, o.Format)
}

func dimension(v int) string {
	if v <= 0 {
		return "auto"
	}
	return strconv.Itoa(v)
}

// MediaParam addresses a point inside time-based or paged media.
type MediaParam struct {
	// Time is the offset in seconds for video frames.
	Time float64
	// Page is the 1-based page for documents.
	Page int
}

// DefaultMediaParam is applied when a request does not address a point.
var DefaultMediaParam = MediaParam{Time: 0, Page: 1}

// MediaClass groups source formats that share one conversion strategy.
type MediaClass int

const (
	ClassImage MediaClass = iota
	ClassVideo
	ClassAudio
	ClassDocument
	ClassRaw
	ClassText
	ClassOffice
	ClassFont
	ClassModel3D
	ClassArchive
	ClassBIM
	ClassPassthrough
)

var classNames = map[MediaClass]string{
	ClassImage:       "image",
	ClassVideo:       "video",
	ClassAudio:       "audio",
	ClassDocument:    "document",
	ClassRaw:         "raw",
	ClassText:        "text",
	ClassOffice:      "office",
	ClassFont:        "font",
	ClassModel3D:     "3d",
	ClassArchive:     "archive",
	ClassBIM:         "bim",
	ClassPassthrough: "passthrough",
}

func (c MediaClass) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return "unknown"
}

// AllClasses lists every media class in dispatch order.
func AllClasses() []MediaClass {
	return []MediaClass{
		ClassImage, ClassVideo, ClassAudio, ClassDocument, ClassRaw, ClassText,
		ClassOffice, ClassFont, ClassModel3D, ClassArchive, ClassBIM, ClassPassthrough,
	}
}

var extensionClasses = map[string]MediaClass{
	".mp4": ClassVideo, ".webm": ClassVideo, ".mov": ClassVideo, ".avi": ClassVideo,
	".mp3": ClassAudio, ".wav": ClassAudio, ".ogg": ClassAudio, ".flac": ClassAudio,
	".pdf": ClassDocument,
	".cr2": ClassRaw, ".nef": ClassRaw, ".dng": ClassRaw, ".arw": ClassRaw,
	".json": ClassText, ".xml": ClassText, ".md": ClassText,
	".docx": ClassOffice, ".pptx": ClassOffice, ".xlsx": ClassOffice,
	".ttf": ClassFont, ".otf": ClassFont,
	".stl": ClassModel3D, ".obj": ClassModel3D, ".glb": ClassModel3D, ".gltf": ClassModel3D,
	".zip": ClassArchive, ".tar": ClassArchive, ".gz": ClassArchive, ".tgz": ClassArchive,
	".ifc": ClassBIM,
	".svg": ClassPassthrough, ".txt": ClassPassthrough, ".csv": ClassPassthrough,
}

// Extension returns the lower-cased extension of the final path segment of
// name, including the dot.
func Extension(name string) string {
	return strings.ToLower(path.Ext(name))
}

// ClassifyExtension maps an asset id to its media class by extension. Any
// extension not listed is treated as a raster image.
func ClassifyExtension(name string) MediaClass {
	if class, ok := extensionClasses[Extension(name)]; ok {
		return class
	}
	return ClassImage
}

// mediaPrefix is prepended to the derivative file name for classes whose
// derivative depends on a point inside the source.
func (c MediaClass) mediaPrefix(m MediaParam) string {
	switch c {
	case ClassVideo:
		return "t" + formatSeconds(m.Time) + "_"
	case ClassDocument:
		page := m.Page
		if page < 1 {
			page = 1
		}
		return "p" + strconv.Itoa(page) + "_"
	}
	return ""
}

// formatSeconds always keeps a fractional part: 1 -> "1.0", 2.5 -> "2.5".
func formatSeconds(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Identity is an authenticated caller id. The empty Identity is anonymous.
type Identity string

// Anonymous is the identity of unauthenticated callers.
const Anonymous Identity = ""

// IsAnonymous reports whether no caller is authenticated.
func (i Identity) IsAnonymous() bool { return i == Anonymous }

// Rendition is the output of a converter. When Final is set the bytes are
// served as-is and the transform stage is skipped.
type Rendition struct {
	Data     []byte
	MimeType string
	Final    bool
}

// ConvertRequest carries what a converter needs besides the source bytes.
type ConvertRequest struct {
	AssetID string
	Class   MediaClass
	Options Options
	Media   MediaParam
}

// CacheStatus tells whether a derivative was served from cache.
type CacheStatus string

const (
	CacheHit  CacheStatus = "HIT"
	CacheMiss CacheStatus = "MISS"
)

// CacheControl is sent with every derivative. Derivative keys encode all
// inputs, so a key's bytes never change.
const CacheControl = "public, max-age=31536000, immutable"

// ListItem is one entry of a storage listing.
type ListItem struct {
	Name        string     `json:"name"`
	IsDirectory bool       `json:"is_directory"`
	Size        *int64     `json:"size,omitempty"`
	Modified    *time.Time `json:"modified,omitempty"`
}

// AssetRecord is the catalog entry written for every upload.
type AssetRecord struct {
	AssetID   string    `json:"asset_id"`
	Key       string    `json:"key"`
	Owner     string    `json:"owner"`
	Private   bool      `json:"private"`
	MimeType  string    `json:"mime_type"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}
