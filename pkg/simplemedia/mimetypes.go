package simplemedia

import (
	"mime"
	"strings"
)

var extensionMimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".svg":  "image/svg+xml",
	".txt":  "text/plain",
	".csv":  "text/csv",
	".md":   "text/markdown",
	".json": "application/json",
	".xml":  "application/xml",
	".pdf":  "application/pdf",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ttf":  "font/ttf",
	".otf":  "font/otf",
	".stl":  "model/stl",
	".obj":  "model/obj",
	".glb":  "model/gltf-binary",
	".gltf": "model/gltf+json",
	".zip":  "application/zip",
	".tar":  "application/x-tar",
	".gz":   "application/gzip",
	".tgz":  "application/gzip",
	".ifc":  "application/x-step",
	".cr2":  "image/x-canon-cr2",
	".nef":  "image/x-nikon-nef",
	".dng":  "image/x-adobe-dng",
	".arw":  "image/x-sony-arw",
}

// MimeTypeForExtension returns the content type for a file extension
// including the dot, falling back to application/octet-stream.
func MimeTypeForExtension(ext string) string {
	ext = strings.ToLower(ext)
	if mt, ok := extensionMimeTypes[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		return mt
	}
	return "application/octet-stream"
}

// ExtensionForMimeType picks the file extension stored uploads get for a
// declared content type. Unknown types get ".bin".
func ExtensionForMimeType(mimeType string) string {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(mimeType))
	}
	switch mt {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "application/gzip", "application/x-gzip":
		return ".gz"
	case "text/plain":
		return ".txt"
	}
	for ext, known := range extensionMimeTypes {
		if known == mt && ext != ".jpeg" && ext != ".tif" && ext != ".tgz" {
			return ext
		}
	}
	if exts, err := mime.ExtensionsByType(mt); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
