package processing

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"
)

// Orientation is the capture device's EXIF-style orientation tag (1-8).
// Guide mapping assumes pixel data is right-side-up, so orientation must
// be baked in before any geometry runs.
type Orientation int

const (
	// OrientNormal is the identity orientation
	OrientNormal Orientation = 1
	// OrientFlipH mirrors horizontally
	OrientFlipH Orientation = 2
	// OrientRotate180 rotates 180 degrees
	OrientRotate180 Orientation = 3
	// OrientFlipV mirrors vertically
	OrientFlipV Orientation = 4
	// OrientTranspose mirrors along the top-left diagonal
	OrientTranspose Orientation = 5
	// OrientRotate270 rotates 270 degrees clockwise
	OrientRotate270 Orientation = 6
	// OrientTransverse mirrors along the bottom-left diagonal
	OrientTransverse Orientation = 7
	// OrientRotate90 rotates 90 degrees clockwise
	OrientRotate90 Orientation = 8
)

// Processor handles frame decoding, orientation bake-in and crop output
type Processor struct {
	config Config
}

// Config holds configuration for the processor
type Config struct {
	// JPEGQuality is the fixed re-encode quality for crops (1-100)
	JPEGQuality int
}

// NewProcessor creates a processor with default configuration
func NewProcessor() *Processor {
	return &Processor{
		config: Config{
			JPEGQuality: 92,
		},
	}
}

// NewProcessorWithConfig creates a processor with custom configuration
func NewProcessorWithConfig(config Config) *Processor {
	return &Processor{config: config}
}

// DecodeBytes decodes a raw frame with WebP fallback
func (p *Processor) DecodeBytes(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	return nil, fmt.Errorf("processing: unknown or unsupported frame format")
}

// LoadImage loads an image from a file path with WebP support
func (p *Processor) LoadImage(path string) (image.Image, error) {
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.HasSuffix(strings.ToLower(path), ".webp") {
		if img, err := webp.Decode(f); err == nil {
			return img, nil
		}
		if _, err := f.Seek(0, 0); err == nil {
			if img, _, err := image.Decode(f); err == nil {
				return img, nil
			}
		}
	} else if img, _, err := image.Decode(f); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("processing: unknown format for %s", path)
}

// NormalizeOrientation bakes the device orientation into the pixel data,
// returning an image whose top-left pixel is the visual top-left.
func (p *Processor) NormalizeOrientation(img image.Image, orient Orientation) image.Image {
	switch orient {
	case OrientFlipH:
		return imaging.FlipH(img)
	case OrientRotate180:
		return imaging.Rotate180(img)
	case OrientFlipV:
		return imaging.FlipV(img)
	case OrientTranspose:
		return imaging.Transpose(img)
	case OrientRotate270:
		return imaging.Rotate270(img)
	case OrientTransverse:
		return imaging.Transverse(img)
	case OrientRotate90:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// EncodeJPEG re-encodes an image at the fixed crop quality
func (p *Processor) EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.config.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("processing: jpeg encode failed: %w", err)
	}
	return buf.Bytes(), nil
}

// SaveRaw writes undecodable frame bytes under dir with a fresh identity.
// Used when the capture flow falls back to the uncropped original.
func (p *Processor) SaveRaw(data []byte, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("processing: create output dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("frame_%s.jpg", uuid.NewString()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("processing: save frame: %w", err)
	}
	return path, nil
}

// SaveCrop writes a cropped image under dir with a fresh identity. Each
// crop gets a new path: platforms cache image bytes by path, and reusing
// one would serve stale bytes after a re-crop of the same source.
func (p *Processor) SaveCrop(img image.Image, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("processing: create output dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("crop_%s.jpg", uuid.NewString()))
	if err := imaging.Save(img, path, imaging.JPEGQuality(p.config.JPEGQuality)); err != nil {
		return "", fmt.Errorf("processing: save crop: %w", err)
	}
	return path, nil
}
