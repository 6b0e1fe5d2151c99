package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

const tempPrefix = ".tmp-"

// Backend is a filesystem implementation of the simplemedia.BlobStore interface.
// Every key is resolved below BaseDir; keys that escape it are refused.
type Backend struct {
	baseDir string
}

// Config options for the filesystem backend
type Config struct {
	BaseDir string // Base directory for storing files
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	abs, err := filepath.Abs(config.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{baseDir: abs}, nil
}

// resolve maps key to a path below the base directory.
func (b *Backend) resolve(op, key string) (string, error) {
	if filepath.IsAbs(key) || strings.HasPrefix(key, "/") || strings.HasPrefix(key, `\`) || filepath.VolumeName(key) != "" {
		return "", b.denied(op, key)
	}

	full := filepath.Join(b.baseDir, filepath.FromSlash(key))
	rel, err := filepath.Rel(b.baseDir, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", b.denied(op, key)
	}
	return full, nil
}

func (b *Backend) denied(op, key string) error {
	return &simplemedia.StorageError{Backend: "fs", Key: key, Op: op, Err: simplemedia.ErrAccessDenied}
}

// Get reads the file stored under key
func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	p, err := b.resolve("get", key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || isDirErr(p) {
			return nil, &simplemedia.StorageError{Backend: "fs", Key: key, Op: "get", Err: simplemedia.ErrNotFound}
		}
		return nil, &simplemedia.StorageError{Backend: "fs", Key: key, Op: "get", Err: err}
	}
	return data, nil
}

func isDirErr(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

// Put writes data to a temporary file next to the target and renames it into
// place, so readers see either the old file or the complete new one.
func (b *Backend) Put(ctx context.Context, key string, data []byte, mimeType string) (string, error) {
	p, err := b.resolve("put", key)
	if err != nil {
		return "", err
	}
	if p == b.baseDir {
		return "", &simplemedia.StorageError{Backend: "fs", Key: key, Op: "put", Err: simplemedia.ErrInvalidRequest}
	}

	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", &simplemedia.StorageError{Backend: "fs", Key: key, Op: "put", Err: err}
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return "", &simplemedia.StorageError{Backend: "fs", Key: key, Op: "put", Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", &simplemedia.StorageError{Backend: "fs", Key: key, Op: "put", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", &simplemedia.StorageError{Backend: "fs", Key: key, Op: "put", Err: err}
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return "", &simplemedia.StorageError{Backend: "fs", Key: key, Op: "put", Err: err}
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return "", &simplemedia.StorageError{Backend: "fs", Key: key, Op: "put", Err: err}
	}

	return key, nil
}

// List returns the entries of the directory at prefix
func (b *Backend) List(ctx context.Context, prefix string) ([]simplemedia.ListItem, error) {
	p, err := b.resolve("list", strings.Trim(prefix, "/"))
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []simplemedia.ListItem{}, nil
		}
		return nil, &simplemedia.StorageError{Backend: "fs", Key: prefix, Op: "list", Err: err}
	}

	items := make([]simplemedia.ListItem, 0, len(entries))
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), tempPrefix) {
			continue
		}
		if entry.IsDir() {
			items = append(items, simplemedia.ListItem{Name: entry.Name(), IsDirectory: true})
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		size := info.Size()
		modified := info.ModTime().UTC()
		items = append(items, simplemedia.ListItem{Name: entry.Name(), Size: &size, Modified: &modified})
	}
	return items, nil
}
