package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"strconv"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/tendant/simple-media/pkg/simplemedia/presets"
)

// envConfig mirrors the environment variables read by WithEnv. Unset
// variables leave the current value untouched.
type envConfig struct {
	Port            string `env:"MEDIA_PORT" env-description:"HTTP listen port (default 8080)"`
	Environment     string `env:"MEDIA_ENVIRONMENT" env-description:"development, testing or production"`
	APIPrefix       string `env:"MEDIA_API_PREFIX" env-description:"path prefix of the asset routes (default /v1)"`
	SecretKey       string `env:"MEDIA_SECRET_KEY" env-description:"secret for URL signatures and bearer tokens"`
	StorageURL      string `env:"MEDIA_STORAGE_URL" env-description:"memory://, file:///path, s3://bucket?... or minio://bucket?endpoint=..."`
	DatabaseURL     string `env:"MEDIA_DATABASE_URL" env-description:"catalog database: memory or postgres://..."`
	DefaultQuality  int    `env:"MEDIA_DEFAULT_QUALITY" env-description:"quality when neither preset nor query sets one (default 80)"`
	MaxDimension    int    `env:"MEDIA_MAX_DIMENSION" env-description:"largest accepted width or height (default 4096)"`
	PresetsFile     string `env:"MEDIA_PRESETS_FILE" env-description:"YAML or JSON presets file"`
	Presets         string `env:"MEDIA_PRESETS" env-description:"inline YAML or JSON presets"`
	FFmpegPath      string `env:"MEDIA_FFMPEG_PATH" env-description:"ffmpeg executable"`
	PdftoppmPath    string `env:"MEDIA_PDFTOPPM_PATH" env-description:"pdftoppm executable"`
	HotCacheEntries int    `env:"MEDIA_HOT_CACHE_ENTRIES" env-description:"in-process LRU entries, 0 disables"`
	LogLevel        string `env:"MEDIA_LOG_LEVEL" env-description:"debug, info, warn or error"`
	SingleFlight    string `env:"MEDIA_SINGLE_FLIGHT" env-description:"collapse concurrent misses (default true)"`

	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" env-description:"object store access key"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" env-description:"object store secret key"`
	AWSRegion          string `env:"AWS_REGION" env-description:"object store region"`
}

// WithEnv applies MEDIA_* environment variable overrides.
//
//	MEDIA_STORAGE_URL - one of:
//	                    "memory://" (default)
//	                    "file:///path/to/data"
//	                    "s3://bucket?region=us-east-1&endpoint=http://localhost:9000&path_style=true"
//	                    "minio://bucket?endpoint=localhost:9000&ssl=false"
//	MEDIA_DATABASE_URL - "memory" (default) or "postgres://..."
//
// Object store credentials come from AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY
// and AWS_REGION.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		var env envConfig
		if err := cleanenv.ReadEnv(&env); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}

		setString(&c.Port, env.Port)
		setString(&c.Environment, env.Environment)
		setString(&c.APIPrefix, env.APIPrefix)
		setString(&c.SecretKey, env.SecretKey)
		setString(&c.FFmpegPath, env.FFmpegPath)
		setString(&c.PdftoppmPath, env.PdftoppmPath)
		setString(&c.LogLevel, env.LogLevel)
		setInt(&c.DefaultQuality, env.DefaultQuality)
		setInt(&c.MaxDimension, env.MaxDimension)
		setInt(&c.HotCacheEntries, env.HotCacheEntries)

		if env.SingleFlight != "" {
			v, err := strconv.ParseBool(env.SingleFlight)
			if err != nil {
				return fmt.Errorf("invalid boolean for MEDIA_SINGLE_FLIGHT: %w", err)
			}
			c.SingleFlight = v
		}

		if err := applyDatabaseEnv(env.DatabaseURL, c); err != nil {
			return err
		}

		if env.StorageURL != "" {
			sc, err := ParseStorageURL(env.StorageURL)
			if err != nil {
				return err
			}
			c.Storage = sc
		}
		if c.Storage.Type == "s3" || c.Storage.Type == "minio" {
			setString(&c.Storage.AccessKeyID, env.AWSAccessKeyID)
			setString(&c.Storage.SecretAccessKey, env.AWSSecretAccessKey)
			if c.Storage.Region == "" {
				c.Storage.Region = env.AWSRegion
			}
		}

		if env.PresetsFile != "" {
			if err := WithPresetsFile(env.PresetsFile)(c); err != nil {
				return err
			}
		}
		if env.Presets != "" {
			p, err := presets.Parse([]byte(env.Presets))
			if err != nil {
				return fmt.Errorf("MEDIA_PRESETS: %w", err)
			}
			c.Presets = presets.Merge(c.Presets, p)
		}

		return nil
	}
}

// EnvUsage writes a description of every environment variable to w.
func EnvUsage(w io.Writer) error {
	var env envConfig
	cleanenv.FUsage(w, &env, nil)()
	return nil
}

// applyDatabaseEnv applies database configuration from environment
func applyDatabaseEnv(dbURL string, c *ServerConfig) error {
	switch {
	case dbURL == "":
		return nil
	case dbURL == "memory":
		c.DatabaseType = "memory"
		c.DatabaseURL = ""
	case strings.HasPrefix(dbURL, "postgresql://"), strings.HasPrefix(dbURL, "postgres://"):
		c.DatabaseType = "postgres"
		c.DatabaseURL = dbURL
	default:
		return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory' or 'postgresql://...')", dbURL)
	}
	return nil
}

// ParseStorageURL parses a storage URL into a StorageConfig.
func ParseStorageURL(storageURL string) (StorageConfig, error) {
	switch {
	case storageURL == "" || storageURL == "memory" || storageURL == "memory://":
		return StorageConfig{Type: "memory"}, nil

	case strings.HasPrefix(storageURL, "file://"):
		path := strings.TrimPrefix(storageURL, "file://")
		if path == "" {
			return StorageConfig{}, fmt.Errorf("filesystem path cannot be empty in STORAGE_URL")
		}
		return StorageConfig{Type: "fs", BaseDir: path}, nil

	case strings.HasPrefix(storageURL, "s3://"), strings.HasPrefix(storageURL, "minio://"):
		u, err := url.Parse(storageURL)
		if err != nil {
			return StorageConfig{}, fmt.Errorf("invalid STORAGE_URL: %w", err)
		}
		if u.Host == "" {
			return StorageConfig{}, fmt.Errorf("bucket name cannot be empty in STORAGE_URL")
		}
		q := u.Query()
		sc := StorageConfig{
			Type:     u.Scheme,
			Bucket:   u.Host,
			Region:   q.Get("region"),
			Endpoint: q.Get("endpoint"),
		}
		if sc.UsePathStyle, err = queryBool(q, "path_style", false); err != nil {
			return StorageConfig{}, err
		}
		if sc.UseSSL, err = queryBool(q, "ssl", false); err != nil {
			return StorageConfig{}, err
		}
		if sc.CreateBucket, err = queryBool(q, "create_bucket", false); err != nil {
			return StorageConfig{}, err
		}
		return sc, nil
	}

	return StorageConfig{}, fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', 's3://...' or 'minio://...')", storageURL)
}

func queryBool(q url.Values, key string, def bool) (bool, error) {
	raw := q.Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid boolean for %s in STORAGE_URL: %w", key, err)
	}
	return v, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
