package common

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

const (
	IdentifierField = "id"
	ImageField      = "image"
)

// MultipartUpload is the raw content of an upload form.
type MultipartUpload struct {
	Identifier string
	Filename   string
	Data       []byte
}

// ReadMultipartUpload reads the identifier and image fields of a multipart form.
// A missing image is not an error; Filename and Data are left empty. At most
// maxBytes+1 bytes are read so oversized uploads can still be detected.
func ReadMultipartUpload(ctx echo.Context, maxBytes int64) (*MultipartUpload, error) {
	upload := &MultipartUpload{Identifier: ctx.FormValue(IdentifierField)}

	file, err := ctx.FormFile(ImageField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return upload, nil
		}
		return nil, fmt.Errorf("failed to get uploaded file: %w", err)
	}

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file %s: %w", file.Filename, err)
	}
	defer func() {
		_ = src.Close()
	}()

	var reader io.Reader = src
	if maxBytes > 0 {
		reader = io.LimitReader(src, maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file %s: %w", file.Filename, err)
	}

	upload.Filename = file.Filename
	upload.Data = data
	return upload, nil
}
