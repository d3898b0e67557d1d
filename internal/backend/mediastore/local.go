package mediastore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalFilesystemStore keeps one directory per site below root.
type LocalFilesystemStore struct {
	root string
}

func NewLocalFilesystemStore(root string) (*LocalFilesystemStore, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root must not be empty")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalFilesystemStore{root: root}, nil
}

// Root returns the directory holding the site directories.
func (s *LocalFilesystemStore) Root() string {
	return s.root
}

// validName reports whether name can be used as exactly one path element.
func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return false
	}
	return filepath.Base(name) == name
}

func (s *LocalFilesystemStore) siteDir(site string) (string, error) {
	if !validName(site) {
		return "", fmt.Errorf("site %q: %w", site, ErrInvalidName)
	}
	return filepath.Join(s.root, site), nil
}

func (s *LocalFilesystemStore) Path(site, filename string) (string, error) {
	dir, err := s.siteDir(site)
	if err != nil {
		return "", err
	}
	if !validName(filename) {
		return "", fmt.Errorf("filename %q: %w", filename, ErrInvalidName)
	}
	return filepath.Join(dir, filename), nil
}

func (s *LocalFilesystemStore) EnsureSite(site string) error {
	dir, err := s.siteDir(site)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create site directory %s: %w", dir, err)
	}
	return nil
}

// Create writes data to a new file. It never overwrites: an existing file yields ErrExists.
func (s *LocalFilesystemStore) Create(site, filename string, data io.Reader) (int64, error) {
	path, err := s.Path(site, filename)
	if err != nil {
		return 0, err
	}

	file, err := os.OpenFile(filepath.Clean(path), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return 0, fmt.Errorf("%s: %w", path, ErrExists)
		}
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	size, err := io.Copy(file, data)
	if cerr := file.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, fmt.Errorf("failed to write data: %w", err)
	}
	return size, nil
}

func (s *LocalFilesystemStore) Open(site, filename string) (io.ReadCloser, error) {
	path, err := s.Path(site, filename)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s/%s: %w", site, filename, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

func (s *LocalFilesystemStore) Remove(site, filename string) error {
	path, err := s.Path(site, filename)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Clean(path)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	return nil
}

// List returns the regular files of a site directory in descending lexical order.
// A missing directory yields an empty list.
func (s *LocalFilesystemStore) List(site string) ([]string, error) {
	dir, err := s.siteDir(site)
	if err != nil {
		return nil, err
	}
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	names := make([]string, 0, len(dirEntries))
	for _, entry := range dirEntries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}
