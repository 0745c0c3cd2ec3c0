package guide

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// ErrCannotCrop is returned when no valid crop rectangle exists for the
// given preview and image geometry. Callers fall back to the uncropped
// original rather than guessing.
var ErrCannotCrop = fmt.Errorf("guide: cannot crop")

// CropRect is a square pixel rectangle in source-image coordinates.
type CropRect struct {
	Left int
	Top  int
	Side int
}

// Width returns the rectangle width in pixels
func (r CropRect) Width() int { return r.Side }

// Height returns the rectangle height in pixels
func (r CropRect) Height() int { return r.Side }

// Right returns the exclusive right edge
func (r CropRect) Right() int { return r.Left + r.Side }

// Bottom returns the exclusive bottom edge
func (r CropRect) Bottom() int { return r.Top + r.Side }

// Bounds returns the rectangle as an image.Rectangle
func (r CropRect) Bounds() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Left+r.Side, r.Top+r.Side)
}

// Valid reports whether the rectangle is a positive-area square fully
// contained in an imgW x imgH source image.
func (r CropRect) Valid(imgW, imgH int) bool {
	return r.Side > 0 && r.Left >= 0 && r.Top >= 0 &&
		r.Left+r.Side <= imgW && r.Top+r.Side <= imgH
}

// Mapper converts the on-screen capture guide into source-pixel crop
// rectangles under cover fitting.
type Mapper struct {
	config Config
}

// Config holds configuration for guide mapping
type Config struct {
	// GuideSide is the on-screen diameter of the square capture guide,
	// in the same logical units as the preview viewport
	GuideSide float64
}

// New creates a new Mapper with default configuration
func New() *Mapper {
	return &Mapper{
		config: Config{
			GuideSide: 250,
		},
	}
}

// NewWithConfig creates a new Mapper with custom configuration
func NewWithConfig(config Config) *Mapper {
	return &Mapper{config: config}
}

// MapToSource computes the source-pixel square corresponding to what the
// user saw inside the capture guide. The preview is assumed to render the
// source with cover fitting: uniform scale, centered, overflow cropped.
// This math is one contract with the preview's rendering transform; the
// two must never drift apart.
func (m *Mapper) MapToSource(previewW, previewH float64, imgW, imgH int) (CropRect, error) {
	if previewW <= 0 || previewH <= 0 || imgW <= 0 || imgH <= 0 {
		return CropRect{}, fmt.Errorf("%w: preview %gx%g image %dx%d",
			ErrCannotCrop, previewW, previewH, imgW, imgH)
	}

	fw, fh := float64(imgW), float64(imgH)

	// Cover-fit scale and centered rendering offsets. The offset on the
	// cover-cropped axis is <= 0.
	scale := math.Max(previewW/fw, previewH/fh)
	renderedW := fw * scale
	renderedH := fh * scale
	offsetX := (previewW - renderedW) / 2
	offsetY := (previewH - renderedH) / 2

	// The guide square never exceeds the smaller viewport dimension.
	side := math.Min(m.config.GuideSide, math.Min(previewW, previewH))

	// Guide corners in preview space, centered in the viewport.
	x0 := (previewW - side) / 2
	y0 := (previewH - side) / 2
	x1 := x0 + side
	y1 := y0 + side

	// Map to source space and clamp into the image.
	sx0 := clamp((x0-offsetX)/scale, 0, fw)
	sy0 := clamp((y0-offsetY)/scale, 0, fh)
	sx1 := clamp((x1-offsetX)/scale, 0, fw)
	sy1 := clamp((y1-offsetY)/scale, 0, fh)

	mappedW := sx1 - sx0
	mappedH := sy1 - sy0
	if mappedW <= 0 || mappedH <= 0 {
		return CropRect{}, fmt.Errorf("%w: guide maps outside image", ErrCannotCrop)
	}

	// Clamping can clip one axis more than the other. Re-square on the
	// mapped center, shifting rather than shrinking, unless the image
	// itself is smaller than the square.
	srcSide := math.Min(mappedW, mappedH)
	srcSide = math.Min(srcSide, math.Min(fw, fh))
	cx := (sx0 + sx1) / 2
	cy := (sy0 + sy1) / 2
	left := clamp(cx-srcSide/2, 0, fw-srcSide)
	top := clamp(cy-srcSide/2, 0, fh-srcSide)

	rect := CropRect{
		Left: int(math.Round(left)),
		Top:  int(math.Round(top)),
		Side: int(math.Round(srcSide)),
	}

	// Rounding can collapse a sub-pixel square or push an edge one pixel
	// past the image; keep at least one pixel and shift back in.
	if rect.Side < 1 {
		rect.Side = 1
	}
	if rect.Side > imgW {
		rect.Side = imgW
	}
	if rect.Side > imgH {
		rect.Side = imgH
	}
	if rect.Left+rect.Side > imgW {
		rect.Left = imgW - rect.Side
	}
	if rect.Top+rect.Side > imgH {
		rect.Top = imgH - rect.Side
	}
	if rect.Left < 0 {
		rect.Left = 0
	}
	if rect.Top < 0 {
		rect.Top = 0
	}

	if !rect.Valid(imgW, imgH) {
		return CropRect{}, fmt.Errorf("%w: degenerate rectangle %+v", ErrCannotCrop, rect)
	}
	return rect, nil
}

// Crop copies the sub-rectangle out of img into a new image. The source is
// never mutated; orientation must already be baked in before mapping.
func (m *Mapper) Crop(img image.Image, rect CropRect) (image.Image, error) {
	bounds := img.Bounds()
	if !rect.Valid(bounds.Dx(), bounds.Dy()) {
		return nil, fmt.Errorf("%w: rect %+v outside %dx%d",
			ErrCannotCrop, rect, bounds.Dx(), bounds.Dy())
	}

	target := rect.Bounds().Add(bounds.Min)
	cropped := imaging.Crop(img, target)
	if cropped.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty crop result", ErrCannotCrop)
	}
	return cropped, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
