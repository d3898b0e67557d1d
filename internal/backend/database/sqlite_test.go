package database

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestDB(t *testing.T) DatabaseService {
	t.Helper()

	ds, err := NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteDatabase error: %v", err)
	}
	_, err = ds.CreateDatabase()
	if err != nil {
		t.Fatalf("CreateDatabase error: %v", err)
	}
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

func seed(t *testing.T, ds DatabaseService, entries ...MappingEntry) {
	t.Helper()
	if _, err := ds.SeedMappings(context.Background(), entries); err != nil {
		t.Fatalf("SeedMappings error: %v", err)
	}
}

func TestSQLite_DoesDatabaseExist(t *testing.T) {
	ds := newTestDB(t)
	if !ds.DoesDatabaseExist() {
		t.Fatalf("expected DoesDatabaseExist to return true")
	}
}

func TestSQLite_CreateDatabase_Idempotent(t *testing.T) {
	ds := newTestDB(t)
	if _, err := ds.CreateDatabase(); err != nil {
		t.Fatalf("second CreateDatabase error: %v", err)
	}
}

func TestSQLite_LookupSite(t *testing.T) {
	ds := newTestDB(t)
	seed(t, ds,
		MappingEntry{Identifier: "605004", Site: "pondicherry.com"},
		MappingEntry{Identifier: "605106", Site: "cuddalore.com"},
	)

	tests := []struct {
		name       string
		identifier string
		wantSite   string
		wantFound  bool
	}{
		{name: "known", identifier: "605004", wantSite: "pondicherry.com", wantFound: true},
		{name: "second known", identifier: "605106", wantSite: "cuddalore.com", wantFound: true},
		{name: "unknown", identifier: "999999"},
		{name: "no trimming", identifier: " 605004"},
		{name: "empty", identifier: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site, found, err := ds.LookupSite(context.Background(), tt.identifier)
			if err != nil {
				t.Fatalf("LookupSite error: %v", err)
			}
			if found != tt.wantFound {
				t.Fatalf("expected found=%v, got %v", tt.wantFound, found)
			}
			if site != tt.wantSite {
				t.Errorf("expected site %q, got %q", tt.wantSite, site)
			}
		})
	}
}

func TestSQLite_SeedMappings_SkipsExisting(t *testing.T) {
	ds := newTestDB(t)
	ctx := context.Background()

	n, err := ds.SeedMappings(ctx, []MappingEntry{
		{Identifier: "605004", Site: "pondicherry.com"},
		{Identifier: "627003", Site: "tirunelveli.com"},
	})
	if err != nil {
		t.Fatalf("SeedMappings error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 inserted, got %d", n)
	}

	n, err = ds.SeedMappings(ctx, []MappingEntry{
		{Identifier: "605004", Site: "other.com"},
		{Identifier: "605106", Site: "cuddalore.com"},
	})
	if err != nil {
		t.Fatalf("SeedMappings #2 error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 inserted, got %d", n)
	}

	site, _, err := ds.LookupSite(ctx, "605004")
	if err != nil {
		t.Fatalf("LookupSite error: %v", err)
	}
	if site != "pondicherry.com" {
		t.Errorf("existing mapping must not change, got %q", site)
	}

	mappings, err := ds.GetMappings(ctx)
	if err != nil {
		t.Fatalf("GetMappings error: %v", err)
	}
	if len(mappings) != 3 {
		t.Fatalf("expected 3 mappings, got %d", len(mappings))
	}
	if mappings[0].Identifier != "605004" || mappings[2].Identifier != "627003" {
		t.Errorf("expected mappings ordered by id, got %v", mappings)
	}
}

func TestSQLite_SeedMappings_RejectsIncompleteEntry(t *testing.T) {
	ds := newTestDB(t)
	_, err := ds.SeedMappings(context.Background(), []MappingEntry{
		{Identifier: "1", Site: "a.com"},
		{Identifier: "2"},
	})
	if err == nil {
		t.Fatal("expected error for entry without website")
	}

	// the whole batch is rolled back
	mappings, err := ds.GetMappings(context.Background())
	if err != nil {
		t.Fatalf("GetMappings error: %v", err)
	}
	if len(mappings) != 0 {
		t.Fatalf("expected no mappings after failed seed, got %d", len(mappings))
	}
}

func TestSQLite_ListUploads_NewestFirst(t *testing.T) {
	ds := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for i, name := range []string{"a.png", "b.png", "c.png"} {
		_, err := ds.AppendUpload(ctx, UploadLogEntry{
			Site:       "pondicherry.com",
			Filename:   name,
			UploadedAt: base.Add(time.Duration(i) * time.Microsecond),
		})
		if err != nil {
			t.Fatalf("AppendUpload %s error: %v", name, err)
		}
	}
	if _, err := ds.AppendUpload(ctx, UploadLogEntry{Site: "cuddalore.com", Filename: "x.png", UploadedAt: base}); err != nil {
		t.Fatalf("AppendUpload error: %v", err)
	}

	entries, err := ds.ListUploads(ctx, "pondicherry.com", 0)
	if err != nil {
		t.Fatalf("ListUploads error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	want := []string{"c.png", "b.png", "a.png"}
	for i, entry := range entries {
		if entry.Filename != want[i] {
			t.Errorf("entry %d: expected %s, got %s", i, want[i], entry.Filename)
		}
		if entry.Site != "pondicherry.com" {
			t.Errorf("entry %d: unexpected site %s", i, entry.Site)
		}
	}
	if !entries[0].UploadedAt.Equal(base.Add(2 * time.Microsecond)) {
		t.Errorf("expected microsecond precision round trip, got %v", entries[0].UploadedAt)
	}

	limited, err := ds.ListUploads(ctx, "pondicherry.com", 2)
	if err != nil {
		t.Fatalf("ListUploads(limit) error: %v", err)
	}
	if len(limited) != 2 || limited[0].Filename != "c.png" {
		t.Fatalf("expected two newest entries, got %v", limited)
	}
}

func TestSQLite_ListUploads_SameTimestampOrderedByID(t *testing.T) {
	ds := newTestDB(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	first, err := ds.AppendUpload(ctx, UploadLogEntry{Site: "s", Filename: "1.png", UploadedAt: at})
	if err != nil {
		t.Fatalf("AppendUpload error: %v", err)
	}
	second, err := ds.AppendUpload(ctx, UploadLogEntry{Site: "s", Filename: "2.png", UploadedAt: at})
	if err != nil {
		t.Fatalf("AppendUpload error: %v", err)
	}

	entries, err := ds.ListUploads(ctx, "s", 0)
	if err != nil {
		t.Fatalf("ListUploads error: %v", err)
	}
	if entries[0].ID != second || entries[1].ID != first {
		t.Fatalf("expected id %d before %d, got %v", second, first, entries)
	}
}

func TestSQLite_ListUploads_UnknownSiteIsEmpty(t *testing.T) {
	ds := newTestDB(t)
	entries, err := ds.ListUploads(context.Background(), "nowhere.com", 0)
	if err != nil {
		t.Fatalf("ListUploads error: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", entries)
	}
}

func TestNewDatabase_FileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.db")
	ds, err := NewDatabase("sqlite", path)
	if err != nil {
		t.Fatalf("NewDatabase error: %v", err)
	}
	seed(t, ds, MappingEntry{Identifier: "605004", Site: "pondicherry.com"})
	if err := ds.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	reopened, err := NewDatabase("sqlite", path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })

	site, found, err := reopened.LookupSite(context.Background(), "605004")
	if err != nil || !found || site != "pondicherry.com" {
		t.Fatalf("expected persisted mapping, got %q found=%v err=%v", site, found, err)
	}
}

func TestFileDSN(t *testing.T) {
	const all = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	tests := []struct {
		in   string
		want string
	}{
		{in: "mapping.db", want: "mapping.db?" + all},
		{in: "file:/data/mapping.db", want: "file:/data/mapping.db?" + all},
		{in: "file:mapping.db?cache=shared", want: "file:mapping.db?cache=shared&" + all},
		{
			in:   "mapping.db?_pragma=busy_timeout(100)",
			want: "mapping.db?_pragma=busy_timeout(100)&_pragma=journal_mode(WAL)&_txlock=immediate",
		},
		{in: "mapping.db?" + all, want: "mapping.db?" + all},
	}

	for _, tt := range tests {
		if got := fileDSN(tt.in); got != tt.want {
			t.Errorf("fileDSN(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSQLite_ConcurrentAccessFileBacked(t *testing.T) {
	ds, err := NewDatabase("sqlite", filepath.Join(t.TempDir(), "mapping.db"))
	if err != nil {
		t.Fatalf("NewDatabase error: %v", err)
	}
	t.Cleanup(func() { _ = ds.Close() })
	seed(t, ds, MappingEntry{Identifier: "605004", Site: "pondicherry.com"})

	const workers = 16
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	errs := make(chan error, workers*3)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, found, err := ds.LookupSite(ctx, "605004"); err != nil || !found {
				errs <- fmt.Errorf("worker %d lookup: found=%v err=%v", i, found, err)
			}
			if _, err := ds.AppendUpload(ctx, UploadLogEntry{Site: "pondicherry.com", Filename: fmt.Sprintf("%02d.png", i), UploadedAt: at}); err != nil {
				errs <- fmt.Errorf("worker %d append: %w", i, err)
			}
			if _, err := ds.SeedMappings(ctx, []MappingEntry{{Identifier: fmt.Sprintf("9%05d", i), Site: "other.example"}}); err != nil {
				errs <- fmt.Errorf("worker %d seed: %w", i, err)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	entries, err := ds.ListUploads(ctx, "pondicherry.com", 0)
	if err != nil {
		t.Fatalf("ListUploads error: %v", err)
	}
	if len(entries) != workers {
		t.Fatalf("expected %d log rows, got %d", workers, len(entries))
	}
	mappings, err := ds.GetMappings(ctx)
	if err != nil {
		t.Fatalf("GetMappings error: %v", err)
	}
	if len(mappings) != workers+1 {
		t.Fatalf("expected %d mappings, got %d", workers+1, len(mappings))
	}
}

func TestNewDatabase_UnsupportedType(t *testing.T) {
	if _, err := NewDatabase("postgres", "whatever"); err == nil {
		t.Fatal("expected error for unsupported database type")
	}
}
