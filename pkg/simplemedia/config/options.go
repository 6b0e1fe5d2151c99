package config

import (
	"fmt"

	"github.com/joho/godotenv"

	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/presets"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithAPIPrefix sets the path prefix of the asset routes
func WithAPIPrefix(prefix string) Option {
	return func(c *ServerConfig) error {
		c.APIPrefix = prefix
		return nil
	}
}

// WithSecretKey sets the signing secret
func WithSecretKey(key string) Option {
	return func(c *ServerConfig) error {
		c.SecretKey = key
		return nil
	}
}

// WithStorageURL configures the blob store from a storage URL such as
// "file:///var/lib/media" or "s3://bucket?region=eu-west-1".
func WithStorageURL(storageURL string) Option {
	return func(c *ServerConfig) error {
		sc, err := ParseStorageURL(storageURL)
		if err != nil {
			return err
		}
		c.Storage = sc
		return nil
	}
}

// WithFilesystemStorage stores everything under baseDir
func WithFilesystemStorage(baseDir string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.Storage = StorageConfig{Type: "fs", BaseDir: baseDir}
		return nil
	}
}

// WithDatabase configures the catalog database
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		if dbType != "memory" && dbType != "postgres" {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", dbType)
		}
		if dbType == "postgres" && url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithDefaultQuality sets the quality used when neither preset nor query sets one
func WithDefaultQuality(q int) Option {
	return func(c *ServerConfig) error {
		c.DefaultQuality = q
		return nil
	}
}

// WithMaxDimension bounds requested widths and heights
func WithMaxDimension(px int) Option {
	return func(c *ServerConfig) error {
		c.MaxDimension = px
		return nil
	}
}

// WithPresets adds or replaces presets
func WithPresets(p simplemedia.Presets) Option {
	return func(c *ServerConfig) error {
		c.Presets = presets.Merge(c.Presets, p)
		return nil
	}
}

// WithPresetsFile adds or replaces presets from a YAML or JSON file
func WithPresetsFile(path string) Option {
	return func(c *ServerConfig) error {
		p, err := presets.LoadFile(path)
		if err != nil {
			return err
		}
		c.Presets = presets.Merge(c.Presets, p)
		return nil
	}
}

// WithHotCache enables an in-process LRU of the given number of entries
func WithHotCache(entries int) Option {
	return func(c *ServerConfig) error {
		c.HotCacheEntries = entries
		return nil
	}
}

// WithToolPaths sets the ffmpeg and pdftoppm executables
func WithToolPaths(ffmpeg, pdftoppm string) Option {
	return func(c *ServerConfig) error {
		if ffmpeg != "" {
			c.FFmpegPath = ffmpeg
		}
		if pdftoppm != "" {
			c.PdftoppmPath = pdftoppm
		}
		return nil
	}
}

// WithLogLevel sets the log level (debug, info, warn, error)
func WithLogLevel(level string) Option {
	return func(c *ServerConfig) error {
		if _, err := parseLevel(level); err != nil {
			return err
		}
		c.LogLevel = level
		return nil
	}
}

// WithSingleFlight toggles collapsing of concurrent misses
func WithSingleFlight(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.SingleFlight = enabled
		return nil
	}
}

// WithDotEnv loads variables from the given files, ".env" by default, into
// the process environment. Missing files are ignored and variables already
// set are kept. Place it before WithEnv.
func WithDotEnv(paths ...string) Option {
	return func(c *ServerConfig) error {
		if len(paths) == 0 {
			paths = []string{".env"}
		}
		for _, p := range paths {
			if err := godotenv.Load(p); err != nil && !isNotExist(err) {
				return fmt.Errorf("failed to load %s: %w", p, err)
			}
		}
		return nil
	}
}
