// Package postgres stores the upload catalog in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

const schema = `
CREATE TABLE IF NOT EXISTS media_assets (
	asset_id   TEXT PRIMARY KEY,
	object_key TEXT NOT NULL,
	owner      TEXT NOT NULL,
	private    BOOLEAN NOT NULL DEFAULT FALSE,
	mime_type  TEXT NOT NULL,
	size       BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
)`

// Catalog implements simplemedia.Catalog using PostgreSQL
type Catalog struct {
	db DBTX
}

// New creates a new PostgreSQL catalog
func New(db DBTX) *Catalog {
	return &Catalog{db: db}
}

// Connect opens a connection pool for databaseURL and ensures the schema.
// The caller closes the pool.
func Connect(ctx context.Context, databaseURL string) (*Catalog, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	c := New(pool)
	if err := c.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return c, pool, nil
}

// EnsureSchema creates the media_assets table if it does not exist.
func (c *Catalog) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.Exec(ctx, schema); err != nil {
		return handlePostgresError("ensure schema", err)
	}
	return nil
}

func (c *Catalog) Record(ctx context.Context, rec *simplemedia.AssetRecord) error {
	query := `
		INSERT INTO media_assets (
			asset_id, object_key, owner, private, mime_type, size, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (asset_id) DO NOTHING`

	_, err := c.db.Exec(ctx, query,
		rec.AssetID, rec.Key, rec.Owner, rec.Private, rec.MimeType, rec.Size, rec.CreatedAt)
	if err != nil {
		return handlePostgresError("record asset", err)
	}
	return nil
}

func (c *Catalog) Get(ctx context.Context, assetID string) (*simplemedia.AssetRecord, error) {
	query := `
		SELECT asset_id, object_key, owner, private, mime_type, size, created_at
		FROM media_assets WHERE asset_id = $1`

	var rec simplemedia.AssetRecord
	err := c.db.QueryRow(ctx, query, assetID).Scan(
		&rec.AssetID, &rec.Key, &rec.Owner, &rec.Private,
		&rec.MimeType, &rec.Size, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: asset %s", simplemedia.ErrNotFound, assetID)
		}
		return nil, handlePostgresError("get asset", err)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return &rec, nil
}

func handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}
