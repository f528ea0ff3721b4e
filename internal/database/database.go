package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"qqbridge/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS media_assets (
	remote_ref    TEXT PRIMARY KEY,
	resolved_url  TEXT NOT NULL,
	local_path    TEXT NOT NULL,
	public_link   TEXT NOT NULL,
	content_type  TEXT NOT NULL DEFAULT '',
	size          INTEGER NOT NULL DEFAULT 0,
	downloaded_at TIMESTAMP NOT NULL
);
`

// Database is the on-disk index for the media cache. One row per
// distinct remote_ref; rows are never deleted (retention is unbounded
// by design).
type Database struct {
	db *sql.DB
}

func New(dbPath string) (*Database, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// SaveAsset records a resolved asset. Inserting the same remote_ref
// twice keeps the first row; the cache holds at most one copy per ref.
func (d *Database) SaveAsset(ctx context.Context, asset *models.MediaAsset) error {
	query := `
		INSERT INTO media_assets (
			remote_ref, resolved_url, local_path, public_link,
			content_type, size, downloaded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(remote_ref) DO NOTHING
	`

	_, err := d.db.ExecContext(ctx, query,
		asset.RemoteRef,
		asset.ResolvedURL,
		asset.LocalPath,
		asset.PublicLink,
		asset.ContentType,
		asset.Size,
		asset.DownloadedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save media asset: %w", err)
	}
	return nil
}

// GetAsset returns the stored asset for a remote_ref, or nil on a miss.
func (d *Database) GetAsset(ctx context.Context, remoteRef string) (*models.MediaAsset, error) {
	query := `
		SELECT remote_ref, resolved_url, local_path, public_link,
		       content_type, size, downloaded_at
		FROM media_assets WHERE remote_ref = ?
	`

	var asset models.MediaAsset
	err := d.db.QueryRowContext(ctx, query, remoteRef).Scan(
		&asset.RemoteRef,
		&asset.ResolvedURL,
		&asset.LocalPath,
		&asset.PublicLink,
		&asset.ContentType,
		&asset.Size,
		&asset.DownloadedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query media asset: %w", err)
	}
	return &asset, nil
}

// CountAssets returns the number of cached assets.
func (d *Database) CountAssets(ctx context.Context) (int64, error) {
	var count int64
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM media_assets`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count media assets: %w", err)
	}
	return count, nil
}
