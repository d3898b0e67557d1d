package imageprocessing

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// CropParams is the aspect ratio, width:height, of the cropped region.
type CropParams struct {
	Width  int
	Height int
}

func NewCropParamsFromMap(params map[string]any) (*CropParams, error) {
	if err := ValidateRequiredParams(params, []string{"width", "height"}); err != nil {
		return nil, err
	}
	width := GetIntParam(params, "width", 0)
	height := GetIntParam(params, "height", 0)
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("crop ratio must be positive, got %d:%d", width, height)
	}
	return &CropParams{Width: width, Height: height}, nil
}

// CropCommand center-crops a PNG to the largest region with the configured
// aspect ratio, so gallery tiles line up regardless of the source shape.
type CropCommand struct {
	name   string
	params *CropParams
}

func NewCropCommand(params map[string]any) (Command, error) {
	typedParams, err := NewCropParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return &CropCommand{name: "CropCommand", params: typedParams}, nil
}

func (c *CropCommand) Name() string {
	return c.name
}

func (c *CropCommand) GetParams() *CropParams {
	return c.params
}

func (c *CropCommand) Execute(imageData []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode PNG image: %w", err)
	}

	bounds := img.Bounds()
	region := c.cropRegion(bounds)
	if region == bounds {
		return imageData, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, region.Dx(), region.Dy()))
	draw.Draw(dst, dst.Bounds(), img, region.Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("failed to encode cropped image: %w", err)
	}
	return buf.Bytes(), nil
}

// cropRegion returns the centered sub-rectangle of bounds with the configured ratio.
func (c *CropCommand) cropRegion(bounds image.Rectangle) image.Rectangle {
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return bounds
	}

	cropW, cropH := w, h
	// compare w/h with ratio without floating point
	if w*c.params.Height > h*c.params.Width {
		cropW = max(1, h*c.params.Width/c.params.Height)
	} else {
		cropH = max(1, w*c.params.Height/c.params.Width)
	}

	x0 := bounds.Min.X + (w-cropW)/2
	y0 := bounds.Min.Y + (h-cropH)/2
	return image.Rect(x0, y0, x0+cropW, y0+cropH)
}

func init() {
	if err := DefaultRegistry.Register("CropCommand", NewCropCommand); err != nil {
		panic(fmt.Sprintf("failed to register CropCommand: %v", err))
	}
}
