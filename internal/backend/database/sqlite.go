package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS mapping (
	id TEXT PRIMARY KEY,
	website TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS imageslog (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	website TEXT NOT NULL,
	filename TEXT NOT NULL,
	uploaded_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_imageslog_website_uploaded_at ON imageslog(website, uploaded_at);
`

type SQLiteDatabase struct {
	db               *sql.DB
	connectionString string
}

// pragmas applied to every pooled connection of a file database. Writers
// wait for the lock instead of failing with SQLITE_BUSY and WAL keeps
// readers from blocking on a writer.
var filePragmas = []struct {
	key   string
	param string
}{
	{key: "busy_timeout", param: "_pragma=busy_timeout(5000)"},
	{key: "journal_mode", param: "_pragma=journal_mode(WAL)"},
	{key: "_txlock", param: "_txlock=immediate"},
}

func NewSQLiteDatabase(connectionString string) (DatabaseService, error) {
	dsn := connectionString
	if !isInMemory(connectionString) {
		dsn = fileDSN(connectionString)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// every connection to ":memory:" is a separate database
	if isInMemory(connectionString) {
		db.SetMaxOpenConns(1)
	}

	return &SQLiteDatabase{
		db:               db,
		connectionString: connectionString,
	}, nil
}

func isInMemory(connectionString string) bool {
	return connectionString == ":memory:" || strings.Contains(connectionString, "mode=memory")
}

// fileDSN appends the connection pragmas a file database needs, leaving
// parameters the caller already set untouched.
func fileDSN(connectionString string) string {
	var missing []string
	for _, pragma := range filePragmas {
		if !strings.Contains(connectionString, pragma.key) {
			missing = append(missing, pragma.param)
		}
	}
	if len(missing) == 0 {
		return connectionString
	}

	separator := "?"
	if strings.Contains(connectionString, "?") {
		separator = "&"
	}
	return connectionString + separator + strings.Join(missing, "&")
}

func (s *SQLiteDatabase) CreateDatabase() (*sql.DB, error) {
	if _, err := s.db.Exec(schema); err != nil {
		return nil, err
	}

	return s.db, nil
}

func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteDatabase) DoesDatabaseExist() bool {
	// In SQLite, the database file is created when you connect to it.
	// So we can assume it exists if we can successfully ping the database.
	err := s.db.Ping()
	return err == nil
}

func (s *SQLiteDatabase) LookupSite(ctx context.Context, identifier string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx, "SELECT website FROM mapping WHERE id = ?", identifier)
	var site string
	if err := row.Scan(&site); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return site, true, nil
}

func (s *SQLiteDatabase) SeedMappings(ctx context.Context, entries []MappingEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback() // no-op after a successful commit
	}()

	stmt, err := tx.PrepareContext(ctx, "INSERT OR IGNORE INTO mapping (id, website) VALUES (?, ?)")
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = stmt.Close()
	}()

	inserted := 0
	for _, entry := range entries {
		if entry.Identifier == "" || entry.Site == "" {
			return 0, fmt.Errorf("mapping entry requires id and website, got %q -> %q", entry.Identifier, entry.Site)
		}
		res, err := stmt.ExecContext(ctx, entry.Identifier, entry.Site)
		if err != nil {
			return 0, fmt.Errorf("failed to insert mapping %s: %w", entry.Identifier, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

func (s *SQLiteDatabase) GetMappings(ctx context.Context) ([]MappingEntry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, website FROM mapping ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close() // Explicitly ignore error as we're already returning an error from the function
	}()

	var entries []MappingEntry
	for rows.Next() {
		var entry MappingEntry
		if err := rows.Scan(&entry.Identifier, &entry.Site); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *SQLiteDatabase) AppendUpload(ctx context.Context, entry UploadLogEntry) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO imageslog (website, filename, uploaded_at) VALUES (?, ?, ?)",
		entry.Site, entry.Filename, entry.UploadedAt.UTC().UnixMicro())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteDatabase) ListUploads(ctx context.Context, site string, limit int) ([]UploadLogEntry, error) {
	query := "SELECT id, website, filename, uploaded_at FROM imageslog WHERE website = ? ORDER BY uploaded_at DESC, id DESC"
	args := []any{site}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	entries := make([]UploadLogEntry, 0)
	for rows.Next() {
		var entry UploadLogEntry
		var uploadedAt int64
		if err := rows.Scan(&entry.ID, &entry.Site, &entry.Filename, &uploadedAt); err != nil {
			return nil, err
		}
		entry.UploadedAt = time.UnixMicro(uploadedAt).UTC()
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
