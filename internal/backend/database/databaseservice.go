package database

import (
	"context"
	"database/sql"
)

type DatabaseService interface {
	CreateDatabase() (*sql.DB, error)
	DoesDatabaseExist() bool
	Close() error

	// LookupSite returns the site mapped to identifier. found is false when no
	// mapping row exists.
	LookupSite(ctx context.Context, identifier string) (site string, found bool, err error)
	// SeedMappings inserts mapping rows, skipping identifiers that already exist.
	SeedMappings(ctx context.Context, entries []MappingEntry) (int, error)
	GetMappings(ctx context.Context) ([]MappingEntry, error)

	AppendUpload(ctx context.Context, entry UploadLogEntry) (int64, error)
	// ListUploads returns the site's log rows newest first. limit <= 0 means no limit.
	ListUploads(ctx context.Context, site string, limit int) ([]UploadLogEntry, error)
}
