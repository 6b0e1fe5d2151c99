package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/auth"
	catalogmemory "github.com/tendant/simple-media/pkg/simplemedia/catalog/memory"
	catalogpg "github.com/tendant/simple-media/pkg/simplemedia/catalog/postgres"
	"github.com/tendant/simple-media/pkg/simplemedia/convert"
	"github.com/tendant/simple-media/pkg/simplemedia/presigned"
	fsstorage "github.com/tendant/simple-media/pkg/simplemedia/storage/fs"
	lrustorage "github.com/tendant/simple-media/pkg/simplemedia/storage/lru"
	memorystorage "github.com/tendant/simple-media/pkg/simplemedia/storage/memory"
	miniostorage "github.com/tendant/simple-media/pkg/simplemedia/storage/minio"
	s3storage "github.com/tendant/simple-media/pkg/simplemedia/storage/s3"
	"github.com/tendant/simple-media/pkg/simplemedia/transform"
)

// BuildService creates a Service instance from the server configuration.
// Extra options are applied last, e.g. a logger or an observer. The
// returned cleanup releases the catalog database pool.
func (c *ServerConfig) BuildService(ctx context.Context, extra ...simplemedia.Option) (simplemedia.Service, func(), error) {
	store, err := c.BuildStore(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build storage backend: %w", err)
	}

	catalog, cleanup, err := c.BuildCatalog(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build catalog: %w", err)
	}

	options := []simplemedia.Option{
		simplemedia.WithBlobStore(store),
		simplemedia.WithSigner(c.BuildSigner()),
		simplemedia.WithPresets(c.Presets),
		simplemedia.WithDefaultQuality(c.DefaultQuality),
		simplemedia.WithTransformer(transform.New()),
		simplemedia.WithConverters(convert.Defaults(convert.Config{
			FFmpegPath:   c.FFmpegPath,
			PdftoppmPath: c.PdftoppmPath,
		})),
		simplemedia.WithCatalog(catalog),
		simplemedia.WithSingleFlight(c.SingleFlight),
	}
	options = append(options, extra...)

	svc, err := simplemedia.New(options...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return svc, cleanup, nil
}

// BuildSigner creates the URL signer. Generated URLs carry the API prefix.
func (c *ServerConfig) BuildSigner() *presigned.Signer {
	return presigned.New(
		presigned.WithSecretKey(c.EffectiveSecretKey()),
		presigned.WithURLPrefix(c.APIPrefix),
	)
}

// BuildAuthenticator creates the bearer token authenticator.
func (c *ServerConfig) BuildAuthenticator() (*auth.Authenticator, error) {
	return auth.New(c.EffectiveSecretKey())
}

// BuildStore creates the configured BlobStore, wrapped in an LRU when a hot
// cache is enabled.
func (c *ServerConfig) BuildStore(ctx context.Context) (simplemedia.BlobStore, error) {
	var store simplemedia.BlobStore
	sc := c.Storage

	switch sc.Type {
	case "memory":
		store = memorystorage.New()

	case "fs":
		backend, err := fsstorage.New(fsstorage.Config{BaseDir: sc.BaseDir})
		if err != nil {
			return nil, err
		}
		store = backend

	case "s3":
		backend, err := s3storage.New(ctx, s3storage.Config{
			Region:                 sc.Region,
			Bucket:                 sc.Bucket,
			AccessKeyID:            sc.AccessKeyID,
			SecretAccessKey:        sc.SecretAccessKey,
			Endpoint:               sc.Endpoint,
			UsePathStyle:           sc.UsePathStyle,
			CreateBucketIfNotExist: sc.CreateBucket,
		})
		if err != nil {
			return nil, err
		}
		store = backend

	case "minio":
		backend, err := miniostorage.New(ctx, miniostorage.Config{
			Endpoint:     sc.Endpoint,
			Bucket:       sc.Bucket,
			AccessKey:    sc.AccessKeyID,
			SecretKey:    sc.SecretAccessKey,
			UseSSL:       sc.UseSSL,
			Region:       sc.Region,
			CreateBucket: sc.CreateBucket,
		})
		if err != nil {
			return nil, err
		}
		store = backend

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", sc.Type)
	}

	if c.HotCacheEntries > 0 {
		cached, err := lrustorage.New(store, c.HotCacheEntries, 0)
		if err != nil {
			return nil, err
		}
		return cached, nil
	}
	return store, nil
}

// BuildCatalog creates the upload catalog. The cleanup function is never nil.
func (c *ServerConfig) BuildCatalog(ctx context.Context) (simplemedia.Catalog, func(), error) {
	switch c.DatabaseType {
	case "memory":
		return catalogmemory.New(), func() {}, nil
	case "postgres":
		catalog, pool, err := catalogpg.Connect(ctx, c.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return catalog, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// LogSummary logs the effective configuration without secrets.
func (c *ServerConfig) LogSummary(logger *slog.Logger) {
	logger.Info("configuration loaded",
		"environment", c.Environment,
		"port", c.Port,
		"api_prefix", c.APIPrefix,
		"storage", c.Storage.Type,
		"database", c.DatabaseType,
		"hot_cache_entries", c.HotCacheEntries,
		"presets", c.Presets.Names(),
		"single_flight", c.SingleFlight,
	)
	if c.SecretKey == "" {
		logger.Warn("no secret key configured, using the development secret")
	}
}
