package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// Config options for the MinIO backend
type Config struct {
	Endpoint     string // host:port of the MinIO server
	Bucket       string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	Region       string
	CreateBucket bool
}

// Backend is a MinIO implementation of the simplemedia.BlobStore interface
type Backend struct {
	client *minio.Client
	bucket string
}

// New connects to MinIO and optionally creates the bucket
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	if cfg.CreateBucket {
		exists, err := client.BucketExists(ctx, cfg.Bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
		}
		if !exists {
			if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
				return nil, fmt.Errorf("failed to create bucket: %w", err)
			}
		}
	}

	return &Backend{client: client, bucket: cfg.Bucket}, nil
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
}

// Get downloads the object stored under key
func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, b.wrap("get", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, b.wrap("get", key, err)
	}
	return data, nil
}

func (b *Backend) wrap(op, key string, err error) error {
	if isNotFound(err) {
		err = simplemedia.ErrNotFound
	}
	return &simplemedia.StorageError{Backend: "minio", Key: key, Op: op, Err: err}
}

// Put uploads data under key
func (b *Backend) Put(ctx context.Context, key string, data []byte, mimeType string) (string, error) {
	_, err := b.client.PutObject(ctx, b.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: mimeType,
	})
	if err != nil {
		return "", b.wrap("put", key, err)
	}
	return fmt.Sprintf("minio://%s/%s", b.bucket, key), nil
}

// List returns the objects and pseudo-directories directly below prefix
func (b *Backend) List(ctx context.Context, prefix string) ([]simplemedia.ListItem, error) {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}

	items := []simplemedia.ListItem{}
	for obj := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, b.wrap("list", prefix, obj.Err)
		}
		name := strings.TrimPrefix(obj.Key, prefix)
		if name == "" {
			continue
		}
		if strings.HasSuffix(name, "/") {
			items = append(items, simplemedia.ListItem{Name: strings.TrimSuffix(name, "/"), IsDirectory: true})
			continue
		}
		size := obj.Size
		modified := obj.LastModified.UTC()
		items = append(items, simplemedia.ListItem{Name: name, Size: &size, Modified: &modified})
	}
	return items, nil
}
