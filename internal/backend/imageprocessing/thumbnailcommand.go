package imageprocessing

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// ThumbnailParams holds the bounding box of a thumbnail. A nil side is derived
// from the other one, preserving the aspect ratio.
type ThumbnailParams struct {
	Width  *int
	Height *int
}

func NewThumbnailParamsFromMap(params map[string]any) (*ThumbnailParams, error) {
	_, hasWidth := params["width"]
	_, hasHeight := params["height"]
	if !hasWidth && !hasHeight {
		return nil, fmt.Errorf("at least one of 'height' or 'width' must be specified")
	}

	result := &ThumbnailParams{}
	if hasWidth {
		width := GetIntParam(params, "width", 0)
		if width <= 0 {
			return nil, fmt.Errorf("width must be positive, got %d", width)
		}
		result.Width = &width
	}
	if hasHeight {
		height := GetIntParam(params, "height", 0)
		if height <= 0 {
			return nil, fmt.Errorf("height must be positive, got %d", height)
		}
		result.Height = &height
	}
	return result, nil
}

// ThumbnailCommand downsizes a PNG to fit the configured box. Images already
// inside the box are returned unchanged.
type ThumbnailCommand struct {
	name   string
	params *ThumbnailParams
}

func NewThumbnailCommand(params map[string]any) (Command, error) {
	typedParams, err := NewThumbnailParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return &ThumbnailCommand{name: "ThumbnailCommand", params: typedParams}, nil
}

func (c *ThumbnailCommand) Name() string {
	return c.name
}

func (c *ThumbnailCommand) GetParams() *ThumbnailParams {
	return c.params
}

func (c *ThumbnailCommand) Execute(imageData []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode PNG image: %w", err)
	}

	bounds := img.Bounds()
	width, height := c.targetSize(bounds.Dx(), bounds.Dy())
	if width >= bounds.Dx() && height >= bounds.Dy() {
		return imageData, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// targetSize fits (w, h) into the configured box without upscaling; results are at least 1px.
func (c *ThumbnailCommand) targetSize(w, h int) (int, int) {
	if w <= 0 || h <= 0 {
		return w, h
	}
	scale := 1.0
	if c.params.Width != nil {
		scale = min(scale, float64(*c.params.Width)/float64(w))
	}
	if c.params.Height != nil {
		scale = min(scale, float64(*c.params.Height)/float64(h))
	}
	return max(1, int(float64(w)*scale)), max(1, int(float64(h)*scale))
}

func init() {
	if err := DefaultRegistry.Register("ThumbnailCommand", NewThumbnailCommand); err != nil {
		panic(fmt.Sprintf("failed to register ThumbnailCommand: %v", err))
	}
}
