package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	config := "database:\n  connectionString: " + filepath.Join(dir, "mapping.db") +
		"\nstorage:\n  root: " + filepath.Join(dir, "storage") + "\n"
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(config), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func run(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestSeedDefaultsAndLookup(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := run(t, configPath, "seed", "--defaults")
	if err != nil {
		t.Fatalf("seed failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Inserted 3 of 3 mappings") {
		t.Errorf("unexpected output %q", out)
	}

	// seeding again is idempotent
	out, err = run(t, configPath, "seed", "--defaults")
	if err != nil {
		t.Fatalf("second seed failed: %v", err)
	}
	if !strings.Contains(out, "Inserted 0 of 3 mappings") {
		t.Errorf("unexpected output %q", out)
	}

	out, err = run(t, configPath, "lookup", "605004")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if strings.TrimSpace(out) != "pondicherry.com" {
		t.Errorf("expected pondicherry.com, got %q", out)
	}

	if _, err := run(t, configPath, "lookup", "999999"); err == nil {
		t.Error("expected lookup of unknown identifier to fail")
	}

	out, err = run(t, configPath, "mappings")
	if err != nil {
		t.Fatalf("mappings failed: %v", err)
	}
	if !strings.Contains(out, "627003\ttirunelveli.com") {
		t.Errorf("expected tirunelveli mapping in %q", out)
	}
}

func TestSeedEntriesAndFile(t *testing.T) {
	configPath := writeTestConfig(t)
	seedPath := filepath.Join(t.TempDir(), "mappings.yaml")
	seed := "mappings:\n  - id: \"100001\"\n    website: a.example\n  - id: \"100002\"\n    website: b.example\n"
	if err := os.WriteFile(seedPath, []byte(seed), 0644); err != nil {
		t.Fatalf("failed to write seed file: %v", err)
	}

	out, err := run(t, configPath, "seed", "--entry", "200001=c.example", "--file", seedPath)
	if err != nil {
		t.Fatalf("seed failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Inserted 3 of 3 mappings") {
		t.Errorf("unexpected output %q", out)
	}

	out, err = run(t, configPath, "lookup", "100002")
	if err != nil || strings.TrimSpace(out) != "b.example" {
		t.Errorf("expected b.example, got %q (%v)", out, err)
	}
}

func TestSeedRequiresInput(t *testing.T) {
	if _, err := run(t, writeTestConfig(t), "seed"); err == nil {
		t.Fatal("expected error without mappings")
	}
}

func TestParseEntry(t *testing.T) {
	tests := []struct {
		entry   string
		wantID  string
		wantErr bool
	}{
		{entry: "605004=pondicherry.com", wantID: "605004"},
		{entry: " 605004 = pondicherry.com ", wantID: "605004"},
		{entry: "605004", wantErr: true},
		{entry: "=pondicherry.com", wantErr: true},
		{entry: "605004=", wantErr: true},
	}

	for _, tt := range tests {
		mapping, err := parseEntry(tt.entry)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseEntry(%q): expected error", tt.entry)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseEntry(%q): %v", tt.entry, err)
			continue
		}
		if mapping.Identifier != tt.wantID || mapping.Site != "pondicherry.com" {
			t.Errorf("parseEntry(%q) = %+v", tt.entry, mapping)
		}
	}
}

func TestAudit(t *testing.T) {
	configPath := writeTestConfig(t)
	storageRoot := filepath.Join(filepath.Dir(configPath), "storage")

	out, err := run(t, configPath, "audit", "--site", "pondicherry.com")
	if err != nil {
		t.Fatalf("audit of empty site failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "OK") {
		t.Errorf("expected OK, got %q", out)
	}

	if err := os.MkdirAll(filepath.Join(storageRoot, "pondicherry.com"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(storageRoot, "pondicherry.com", "stray.png"), []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, err = run(t, configPath, "audit", "--site", "pondicherry.com")
	if err == nil {
		t.Fatal("expected audit to report inconsistency")
	}
	if !strings.Contains(out, "unlogged file: stray.png") {
		t.Errorf("expected unlogged file in output %q", out)
	}

	if _, err := run(t, configPath, "audit"); err == nil {
		t.Error("expected error without --site")
	}
}
