package blur

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// CannotEvaluate is returned by Score when an image has no interior pixels
// (either dimension below 3). Callers must treat it as "not blurry".
const CannotEvaluate = -1.0

// Scorer computes a variance-of-Laplacian focus metric for captured frames
type Scorer struct {
	config Config
}

// Config holds thresholds for the focus and brightness gates
type Config struct {
	// Threshold separates sharp from blurry; scores strictly below are blurry
	Threshold float64
	// BrightnessFloor is the minimum acceptable mean luminance (0-255)
	BrightnessFloor float64
}

// New creates a new Scorer with default configuration
func New() *Scorer {
	return &Scorer{
		config: Config{
			Threshold:       70,
			BrightnessFloor: 40,
		},
	}
}

// NewWithConfig creates a new Scorer with custom configuration
func NewWithConfig(config Config) *Scorer {
	return &Scorer{config: config}
}

// Threshold returns the configured blur threshold
func (s *Scorer) Threshold() float64 {
	return s.config.Threshold
}

// Score computes the variance of the discrete 4-neighbor Laplacian over all
// interior pixels of the grayscale image. Higher means sharper. Images too
// small to have an interior return CannotEvaluate.
func (s *Scorer) Score(img image.Image) float64 {
	gray := toGray(img)
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if width < 3 || height < 3 {
		return CannotEvaluate
	}

	var sum float64
	for y := 1; y < height-1; y++ {
		row := gray.Pix[y*gray.Stride:]
		above := gray.Pix[(y-1)*gray.Stride:]
		below := gray.Pix[(y+1)*gray.Stride:]
		for x := 1; x < width-1; x++ {
			lap := float64(above[x]) + float64(below[x]) +
				float64(row[x-1]) + float64(row[x+1]) -
				4*float64(row[x])
			sum += lap * lap
		}
	}

	interior := float64((width - 2) * (height - 2))
	return sum / interior
}

// IsBlurry applies the decision policy to a score. The CannotEvaluate
// sentinel is never blurry since there was no safe interior to judge.
func (s *Scorer) IsBlurry(score float64) bool {
	if score < 0 {
		return false
	}
	return score < s.config.Threshold
}

// Brightness returns the mean luminance of the image on a 0-255 scale.
func (s *Scorer) Brightness(img image.Image) float64 {
	gray := toGray(img)
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return 0
	}

	var sum float64
	for y := 0; y < height; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+width]
		for _, v := range row {
			sum += float64(v)
		}
	}
	return sum / float64(width*height)
}

// IsBrightEnough reports whether mean luminance clears the configured floor.
func (s *Scorer) IsBrightEnough(brightness float64) bool {
	return brightness >= s.config.BrightnessFloor
}

// ScoreBytes decodes a raw frame and scores it. Decode failure fails open:
// the sentinel is returned together with the decode error so the frame is
// treated as sharp and capture is never blocked by a scorer fault.
func (s *Scorer) ScoreBytes(data []byte) (float64, error) {
	img, err := decodeFrame(data)
	if err != nil {
		return CannotEvaluate, err
	}
	return s.Score(img), nil
}

func decodeFrame(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return webp.Decode(bytes.NewReader(data))
}

func toGray(img image.Image) *image.Gray {
	if gray, ok := img.(*image.Gray); ok {
		return gray
	}
	// imaging.Grayscale keeps NRGBA; collapse to a single luminance plane
	nrgba := imaging.Grayscale(img)
	bounds := nrgba.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		src := nrgba.Pix[y*nrgba.Stride:]
		dst := gray.Pix[y*gray.Stride:]
		for x := 0; x < bounds.Dx(); x++ {
			dst[x] = src[x*4]
		}
	}
	return gray
}
