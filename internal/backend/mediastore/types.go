package mediastore

import (
	"errors"
	"io"
)

var (
	// ErrExists is returned by Create when the target file is already present.
	ErrExists = errors.New("file already exists")
	// ErrNotFound is returned when a stored image does not exist.
	ErrNotFound = errors.New("file not found")
	// ErrInvalidName is returned for site or file names that are not a single path element.
	ErrInvalidName = errors.New("invalid path element")
)

// MediaStore abstracts the byte storage for uploaded images, addressed by site and filename.
type MediaStore interface {
	EnsureSite(site string) error
	Create(site, filename string, data io.Reader) (int64, error)
	Open(site, filename string) (io.ReadCloser, error)
	Remove(site, filename string) error
	List(site string) ([]string, error)
	Path(site, filename string) (string, error)
}
