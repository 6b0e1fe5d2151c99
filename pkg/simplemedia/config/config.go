package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/presets"
)

// DevelopmentSecretKey signs URLs and tokens when no secret is configured
// in development or testing. It must never be used in production.
const DevelopmentSecretKey = "simple-media-development-secret-change-me"

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:           "8080",
		Environment:    "development",
		APIPrefix:      "/v1",
		Storage:        StorageConfig{Type: "memory"},
		DatabaseType:   "memory",
		DefaultQuality: simplemedia.DefaultQuality,
		MaxDimension:   4096,
		Presets:        presets.Defaults(),
		FFmpegPath:     "ffmpeg",
		PdftoppmPath:   "pdftoppm",
		LogLevel:       "info",
		SingleFlight:   true,
	}
}

// ServerConfig represents server configuration for the simple-media service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing
	APIPrefix   string

	// SecretKey signs derivative URLs and bearer tokens
	SecretKey string

	Storage StorageConfig

	// HotCacheEntries enables an in-process LRU in front of storage when > 0
	HotCacheEntries int

	// Database configuration for the upload catalog
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"

	DefaultQuality int
	MaxDimension   int
	Presets        simplemedia.Presets

	// External tools used by converters
	FFmpegPath   string
	PdftoppmPath string

	LogLevel     string
	SingleFlight bool
}

// StorageConfig selects and configures the blob store
type StorageConfig struct {
	Type string // "memory", "fs", "s3", "minio"

	BaseDir string // fs

	Bucket          string // s3, minio
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool // s3
	UseSSL          bool // minio
	CreateBucket    bool
}

// IsDevelopment reports whether the configuration may fall back to
// development defaults.
func (c *ServerConfig) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "testing"
}

// EffectiveSecretKey returns the configured secret, or the development
// secret when none is configured outside production.
func (c *ServerConfig) EffectiveSecretKey() string {
	if c.SecretKey == "" && c.IsDevelopment() {
		return DevelopmentSecretKey
	}
	return c.SecretKey
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.SecretKey == "" && !c.IsDevelopment() {
		return fmt.Errorf("secret_key is required in %s environment", c.Environment)
	}

	if c.APIPrefix != "" && !strings.HasPrefix(c.APIPrefix, "/") {
		return fmt.Errorf("api_prefix must start with '/', got %q", c.APIPrefix)
	}

	if c.DefaultQuality < 1 || c.DefaultQuality > 100 {
		return fmt.Errorf("default_quality must be between 1 and 100, got %d", c.DefaultQuality)
	}

	if c.MaxDimension <= 0 {
		return fmt.Errorf("max_dimension must be positive, got %d", c.MaxDimension)
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	if c.HotCacheEntries < 0 {
		return errors.New("hot_cache_entries must not be negative")
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}

	switch c.Storage.Type {
	case "memory":
	case "fs":
		if c.Storage.BaseDir == "" {
			return errors.New("filesystem storage requires a base directory")
		}
	case "s3":
		if c.Storage.Bucket == "" {
			return errors.New("s3 storage requires a bucket")
		}
	case "minio":
		if c.Storage.Bucket == "" || c.Storage.Endpoint == "" {
			return errors.New("minio storage requires a bucket and an endpoint")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}

	return nil
}
