package simplemedia

import (
	"fmt"
	"path"
	"strings"
)

// Storage namespaces.
const (
	NamespaceOriginals = "originals"
	NamespaceUsers     = "users"
	NamespaceCache     = "cache"
)

// PublicOwner is recorded as the owner of public uploads.
const PublicOwner = "public"

// IsPrivate reports whether assetID lives in the per-user namespace.
func IsPrivate(assetID string) bool {
	first, _, _ := strings.Cut(strings.TrimPrefix(assetID, "/"), "/")
	return first == NamespaceUsers
}

// OwnerOf returns the owner encoded in a private asset id of the form
// "users/<owner>/<name>".
func OwnerOf(assetID string) (Identity, error) {
	parts := strings.Split(strings.TrimPrefix(assetID, "/"), "/")
	if len(parts) < 3 || parts[0] != NamespaceUsers || parts[1] == "" {
		return Anonymous, fmt.Errorf("%w: malformed private asset id %q", ErrInvalidRequest, assetID)
	}
	return Identity(parts[1]), nil
}

// AuthorizeRead checks that caller may read assetID. Public assets are
// readable by anyone. Private assets need an identity equal to their owner;
// anonymous callers are refused like any other non-owner.
func AuthorizeRead(assetID string, caller Identity) error {
	if !IsPrivate(assetID) {
		return nil
	}
	owner, err := OwnerOf(assetID)
	if err != nil {
		return err
	}
	if caller.IsAnonymous() || owner != caller {
		return fmt.Errorf("%w: asset belongs to another user", ErrForbidden)
	}
	return nil
}

// AuthorizeList checks that caller may browse the storage path p, given as
// cleaned slash-separated segments. Private namespaces, "users/<owner>" and
// the derivatives under "cache/users/<owner>", are only visible to their
// owner. The bare "users", "cache" and "cache/users" roots would reveal
// other owners and are refused.
func AuthorizeList(segs []string, caller Identity) error {
	if len(segs) == 0 {
		return nil
	}
	if segs[0] == NamespaceCache {
		if len(segs) == 1 {
			return fmt.Errorf("%w: not authorized to browse %s", ErrForbidden, NamespaceCache)
		}
		segs = segs[1:]
	}
	if segs[0] != NamespaceUsers {
		return nil
	}
	if len(segs) < 2 || caller.IsAnonymous() || Identity(segs[1]) != caller {
		return fmt.Errorf("%w: not authorized to browse %s", ErrForbidden, strings.Join(segs, "/"))
	}
	return nil
}

// PrivatePrefix returns the storage prefix for caller's private uploads.
func PrivatePrefix(caller Identity) (string, error) {
	if caller.IsAnonymous() {
		return "", fmt.Errorf("%w: private upload requires authentication", ErrUnauthorized)
	}
	return path.Join(NamespaceUsers, string(caller)), nil
}

// OriginKey returns the storage key of an asset's original.
func OriginKey(assetID string) string {
	assetID = strings.TrimPrefix(assetID, "/")
	if IsPrivate(assetID) {
		return assetID
	}
	return NamespaceOriginals + "/" + assetID
}

// DerivativeKey returns the deterministic cache key of a derivative:
// "cache/<asset id>/<media prefix><options cache key>".
func DerivativeKey(assetID string, class MediaClass, opts Options, media MediaParam) string {
	assetID = strings.TrimPrefix(assetID, "/")
	return NamespaceCache + "/" + assetID + "/" + class.mediaPrefix(media) + opts.CacheKey()
}

// AssetIDForKey converts a storage key of an original back to its asset id.
func AssetIDForKey(key string) string {
	if rest, ok := strings.CutPrefix(key, NamespaceOriginals+"/"); ok {
		return rest
	}
	return key
}

// SanitizeFolder normalises an upload folder. Leading and trailing slashes
// are dropped and any ".." or "." segment is rejected.
func SanitizeFolder(folder string) (string, error) {
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	if folder == "" {
		return "", nil
	}
	for _, seg := range strings.Split(folder, "/") {
		if seg == "" || seg == "." || seg == ".." || strings.Contains(seg, "\\") {
			return "", fmt.Errorf("%w: invalid folder %q", ErrInvalidRequest, folder)
		}
	}
	return folder, nil
}

// ValidateAssetID rejects empty ids and ids with traversal segments.
func ValidateAssetID(assetID string) error {
	assetID = strings.TrimPrefix(assetID, "/")
	if assetID == "" || strings.HasSuffix(assetID, "/") {
		return fmt.Errorf("%w: asset id is required", ErrInvalidRequest)
	}
	for _, seg := range strings.Split(assetID, "/") {
		switch seg {
		case "..", ".":
			return fmt.Errorf("%w: asset id %q leaves the storage root", ErrAccessDenied, assetID)
		case "":
			return fmt.Errorf("%w: invalid asset id %q", ErrInvalidRequest, assetID)
		}
	}
	return nil
}
