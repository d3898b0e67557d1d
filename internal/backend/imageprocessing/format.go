package imageprocessing

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrImageTooLarge is returned when the decoded image would exceed the pixel limit.
var ErrImageTooLarge = errors.New("image dimensions exceed the pixel limit")

// DetectFormat decodes only the image header and returns the registered format name
// ("png", "jpeg", "gif", "bmp", "webp", "tiff").
func DetectFormat(data []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode image header: %w", err)
	}
	return format, nil
}

// FormatForExtension maps a file extension (without dot, any case) to the decoder format name.
func FormatForExtension(ext string) string {
	switch ext = strings.ToLower(ext); ext {
	case "jpg", "jpeg", "jpe":
		return "jpeg"
	case "tif", "tiff":
		return "tiff"
	default:
		return ext
	}
}

// MatchesExtension reports whether data decodes as an image of the family named by ext.
func MatchesExtension(data []byte, ext string) bool {
	format, err := DetectFormat(data)
	if err != nil {
		return false
	}
	return format == FormatForExtension(ext)
}

// CheckPixelLimit reads only the image header and rejects images whose
// width*height exceeds maxPixels. A limit <= 0 disables the check.
func CheckPixelLimit(data []byte, maxPixels int64) error {
	if maxPixels <= 0 {
		return nil
	}
	config, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to decode image header: %w", err)
	}
	if pixels := int64(config.Width) * int64(config.Height); pixels > maxPixels {
		return fmt.Errorf("%w: %dx%d is %d pixels, limit %d",
			ErrImageTooLarge, config.Width, config.Height, pixels, maxPixels)
	}
	return nil
}
