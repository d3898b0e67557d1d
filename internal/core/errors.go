package core

import (
	"errors"
	"net/http"
)

var (
	ErrMissingIdentifier   = errors.New("location identifier is required")
	ErrMissingFile         = errors.New("image file is required")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("image file is too large")
	ErrUnknownIdentifier   = errors.New("invalid identifier: no matching website found")
	ErrInvalidPath         = errors.New("invalid site or file name")
	ErrImageNotFound       = errors.New("image not found")
)

// HTTPStatus maps service errors to the status code surfaced to clients.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrMissingIdentifier),
		errors.Is(err, ErrMissingFile),
		errors.Is(err, ErrUnsupportedFileType),
		errors.Is(err, ErrInvalidPath):
		return http.StatusBadRequest
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrUnknownIdentifier), errors.Is(err, ErrImageNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage returns a message safe to show to users. Internal failures are not detailed.
func UserMessage(err error) string {
	for _, known := range []error{
		ErrMissingIdentifier,
		ErrMissingFile,
		ErrUnsupportedFileType,
		ErrFileTooLarge,
		ErrUnknownIdentifier,
		ErrInvalidPath,
		ErrImageNotFound,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "internal error, please try again later"
}
