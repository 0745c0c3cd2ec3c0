// Package captureengine provides capture-quality gating and annotation
// geometry for a mobile clinical-photography workflow.
//
// The engine decides whether a captured skin-lesion frame is usable (blur
// scoring), converts the on-screen capture guide into exact pixel
// coordinates on the full-resolution source image (cover-fit geometry),
// and maintains a consistent, undoable multi-layer annotation state per
// image. It never performs network I/O itself; the prediction backend is
// an external collaborator behind the submit.Uploader interface.
//
// Basic usage:
//
//	package main
//
//	import (
//		"fmt"
//		"log"
//
//		captureengine "github.com/dermoscan/capture-engine"
//	)
//
//	func main() {
//		engine := captureengine.New()
//
//		frame, err := engine.LoadImage("frame.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		eval := engine.EvaluateCapture(frame)
//		fmt.Printf("blur score %.1f accepted=%v\n", eval.BlurScore, eval.Accepted)
//
//		cropped, err := engine.CropToGuide(frame, 400, 800)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		path, err := engine.SaveCrop(cropped, "out")
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Println("wrote", path)
//	}
//
// The package consists of four main components:
//
// 1. Blur (pkg/blur): variance-of-Laplacian focus scoring and brightness
// 2. Guide (pkg/guide): cover-fit preview-to-source crop mapping
// 3. Annotation (pkg/annotation): per-image stroke/box state with undo/redo
// 4. Session (pkg/session): per-case capture orchestration and image cap
//
// The blur gate is advisory: a low score prompts the user to retake, it
// never hard-fails the flow. The guide mapping is one synchronized
// contract with the preview's cover-fit rendering transform; crop output
// always lands on a fresh file identity so platform image caches can
// never serve stale bytes.
package captureengine

import (
	"image"
	"log/slog"

	"github.com/dermoscan/capture-engine/pkg/blur"
	"github.com/dermoscan/capture-engine/pkg/guide"
	"github.com/dermoscan/capture-engine/pkg/processing"
	"github.com/dermoscan/capture-engine/pkg/session"
	"github.com/dermoscan/capture-engine/pkg/submit"
)

// Version of the capture engine library
const Version = "1.0.0"

// Engine provides a high-level interface over the capture-quality and
// annotation geometry components.
type Engine struct {
	scorer    *blur.Scorer
	mapper    *guide.Mapper
	processor *processing.Processor
}

// New creates a new Engine with default configuration
func New() *Engine {
	return &Engine{
		scorer:    blur.New(),
		mapper:    guide.New(),
		processor: processing.NewProcessor(),
	}
}

// NewWithConfig creates a new Engine with custom configuration
func NewWithConfig(blurConfig blur.Config, guideConfig guide.Config, processingConfig processing.Config) *Engine {
	return &Engine{
		scorer:    blur.NewWithConfig(blurConfig),
		mapper:    guide.NewWithConfig(guideConfig),
		processor: processing.NewProcessorWithConfig(processingConfig),
	}
}

// Evaluation is the advisory quality verdict for a frame
type Evaluation struct {
	BrightEnough bool    `json:"brightEnough"`
	BlurScore    float64 `json:"blurScore"`
	Accepted     bool    `json:"accepted"`
}

// LoadImage loads an image from file
func (e *Engine) LoadImage(path string) (image.Image, error) {
	return e.processor.LoadImage(path)
}

// DecodeFrame decodes a raw frame buffer
func (e *Engine) DecodeFrame(data []byte) (image.Image, error) {
	return e.processor.DecodeBytes(data)
}

// EvaluateCapture scores a decoded frame against the blur and brightness
// gates. The verdict is advisory; callers prompt for a retake rather than
// rejecting the source image.
func (e *Engine) EvaluateCapture(img image.Image) Evaluation {
	score := e.scorer.Score(img)
	brightness := e.scorer.Brightness(img)
	return Evaluation{
		BrightEnough: e.scorer.IsBrightEnough(brightness),
		BlurScore:    score,
		Accepted:     !e.scorer.IsBlurry(score),
	}
}

// MapGuide computes the source-pixel crop rectangle for a frame rendered
// under cover fitting in a previewW x previewH viewport.
func (e *Engine) MapGuide(img image.Image, previewW, previewH float64) (guide.CropRect, error) {
	bounds := img.Bounds()
	return e.mapper.MapToSource(previewW, previewH, bounds.Dx(), bounds.Dy())
}

// CropToGuide maps the capture guide onto the frame and returns the
// cropped square as a new image. Fails closed on degenerate geometry;
// callers fall back to the uncropped original.
func (e *Engine) CropToGuide(img image.Image, previewW, previewH float64) (image.Image, error) {
	rect, err := e.MapGuide(img, previewW, previewH)
	if err != nil {
		return nil, err
	}
	return e.mapper.Crop(img, rect)
}

// SaveCrop writes a cropped image under dir with a fresh file identity
func (e *Engine) SaveCrop(img image.Image, dir string) (string, error) {
	return e.processor.SaveCrop(img, dir)
}

// NewSession creates a capture session for one case, sharing the engine's
// scorer, mapper and processor. A nil uploader keeps payloads local.
func (e *Engine) NewSession(caseID string, uploader submit.Uploader, config session.Config, logger *slog.Logger) *session.Session {
	return session.New(caseID, e.scorer, e.mapper, e.processor, uploader, config, logger)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
