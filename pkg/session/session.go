package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dermoscan/capture-engine/pkg/annotation"
	"github.com/dermoscan/capture-engine/pkg/blur"
	"github.com/dermoscan/capture-engine/pkg/guide"
	"github.com/dermoscan/capture-engine/pkg/processing"
	"github.com/dermoscan/capture-engine/pkg/submit"
)

// ErrMaxImages signals that the per-case image cap was reached. It is a
// recoverable, user-facing condition, not a fatal error.
var ErrMaxImages = fmt.Errorf("session: maximum image count reached")

// ErrSessionDone signals an operation on an already-saved case
var ErrSessionDone = fmt.Errorf("session: case already saved")

// ErrSaveInFlight signals a save while another save is still uploading
var ErrSaveInFlight = fmt.Errorf("session: save already in progress")

// State is the per-case capture lifecycle
type State int

const (
	// StateEmpty means no image has been accepted yet
	StateEmpty State = iota
	// StateCapturing means a capture pass is available or in flight
	StateCapturing
	// StateReviewing means at least one accepted image awaits review
	StateReviewing
	// StateDone means the case was saved and submitted
	StateDone
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateCapturing:
		return "capturing"
	case StateReviewing:
		return "reviewing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// FrameSource is the camera collaborator: it yields one raw frame per call
// together with the device orientation it was captured under.
type FrameSource interface {
	Frame(ctx context.Context) ([]byte, processing.Orientation, error)
}

// CapturedImage is one accepted image within a case
type CapturedImage struct {
	Path      string
	Width     int
	Height    int
	BlurScore float64
}

// Evaluation is the advisory quality verdict for a raw frame
type Evaluation struct {
	BrightEnough bool
	BlurScore    float64
	Accepted     bool
}

// CaptureResult reports the outcome of one capture pass
type CaptureResult struct {
	// Accepted is true when the frame passed the blur gate and was stored
	Accepted bool
	// Retake is true when the frame was blurry and the user should retry
	Retake bool
	// Skipped is true when another capture was already in flight
	Skipped   bool
	BlurScore float64
	Index     int
	Image     CapturedImage
}

// Config holds per-case capture limits and output placement
type Config struct {
	MaxImages int
	OutputDir string
}

// DefaultConfig returns the engine's standard capture limits
func DefaultConfig() Config {
	return Config{
		MaxImages: 8,
		OutputDir: "captures",
	}
}

// Session drives the capture sequence for one case: frame in, blur gate,
// guide crop, stored image, annotation arena. One capture is in flight at
// a time; a second take-photo request while one is pending is a no-op.
type Session struct {
	caseID    string
	scorer    *blur.Scorer
	mapper    *guide.Mapper
	processor *processing.Processor
	uploader  submit.Uploader
	config    Config
	logger    *slog.Logger

	mu      sync.Mutex
	pending bool
	saving  bool
	state   State
	images  []CapturedImage
	store   *annotation.Store
	primary int
}

// New creates a capture session for one case. A nil uploader keeps saved
// payloads local; a nil logger uses the default.
func New(caseID string, scorer *blur.Scorer, mapper *guide.Mapper, processor *processing.Processor, uploader submit.Uploader, config Config, logger *slog.Logger) *Session {
	if config.MaxImages < 1 {
		config.MaxImages = DefaultConfig().MaxImages
	}
	if config.OutputDir == "" {
		config.OutputDir = DefaultConfig().OutputDir
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		caseID:    caseID,
		scorer:    scorer,
		mapper:    mapper,
		processor: processor,
		uploader:  uploader,
		config:    config,
		logger:    logger,
		state:     StateEmpty,
		store:     annotation.NewStore(config.MaxImages),
	}
}

// CaseID returns the opaque case identifier
func (s *Session) CaseID() string {
	return s.caseID
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Images returns the ordered list of accepted images. Index 0 is always
// the first accepted image; the order is preserved into submission.
func (s *Session) Images() []CapturedImage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CapturedImage, len(s.images))
	copy(out, s.images)
	return out
}

// Annotations returns the per-image annotation arena owned by this session
func (s *Session) Annotations() *annotation.Store {
	return s.store
}

// EvaluateCapture scores a raw frame without storing it. Decode failure
// fails open: the frame is treated as sharp and bright so a scorer fault
// never blocks capture.
func (s *Session) EvaluateCapture(data []byte) Evaluation {
	img, err := s.processor.DecodeBytes(data)
	if err != nil {
		s.logger.Warn("frame decode failed, failing open", "case", s.caseID, "err", err)
		return Evaluation{BrightEnough: true, BlurScore: blur.CannotEvaluate, Accepted: true}
	}

	score := s.scorer.Score(img)
	brightness := s.scorer.Brightness(img)
	return Evaluation{
		BrightEnough: s.scorer.IsBrightEnough(brightness),
		BlurScore:    score,
		Accepted:     !s.scorer.IsBlurry(score),
	}
}

// Capture runs one capture pass: request a frame, gate on blur, crop to
// the guide, store the result. A blurry frame is not stored; the result
// asks for a retake. Returns ErrMaxImages when the case already holds the
// maximum number of images.
func (s *Session) Capture(ctx context.Context, source FrameSource, previewW, previewH float64) (CaptureResult, error) {
	s.mu.Lock()
	if s.state == StateDone {
		s.mu.Unlock()
		return CaptureResult{}, ErrSessionDone
	}
	if s.pending {
		s.mu.Unlock()
		return CaptureResult{Skipped: true}, nil
	}
	if len(s.images) >= s.config.MaxImages {
		s.mu.Unlock()
		return CaptureResult{}, ErrMaxImages
	}
	s.pending = true
	s.state = StateCapturing
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.pending = false
		s.mu.Unlock()
	}()

	data, orient, err := source.Frame(ctx)
	if err != nil {
		return CaptureResult{}, fmt.Errorf("session: frame request failed: %w", err)
	}

	captured, result, err := s.processFrame(data, orient, previewW, previewH)
	if err != nil {
		return CaptureResult{}, err
	}
	if result.Retake {
		return result, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.images) >= s.config.MaxImages {
		return CaptureResult{}, ErrMaxImages
	}
	s.images = append(s.images, captured)
	s.state = StateReviewing
	result.Accepted = true
	result.Index = len(s.images) - 1
	result.Image = captured
	s.logger.Info("capture accepted",
		"case", s.caseID, "index", result.Index,
		"score", captured.BlurScore, "path", captured.Path)
	return result, nil
}

// processFrame runs the gate and geometry outside the session lock.
func (s *Session) processFrame(data []byte, orient processing.Orientation, previewW, previewH float64) (CapturedImage, CaptureResult, error) {
	img, err := s.processor.DecodeBytes(data)
	if err != nil {
		// Blur gate fails open and cropping fails closed: store the
		// uncropped original rather than guessing geometry.
		s.logger.Warn("frame decode failed, storing original", "case", s.caseID, "err", err)
		path, werr := s.processor.SaveRaw(data, s.config.OutputDir)
		if werr != nil {
			return CapturedImage{}, CaptureResult{}, werr
		}
		captured := CapturedImage{Path: path, BlurScore: blur.CannotEvaluate}
		return captured, CaptureResult{BlurScore: blur.CannotEvaluate}, nil
	}

	// Orientation must be right-side-up before the guide math runs.
	img = s.processor.NormalizeOrientation(img, orient)

	score := s.scorer.Score(img)
	if s.scorer.IsBlurry(score) {
		s.logger.Info("capture rejected as blurry",
			"case", s.caseID, "score", score, "threshold", s.scorer.Threshold())
		return CapturedImage{}, CaptureResult{Retake: true, BlurScore: score}, nil
	}

	bounds := img.Bounds()
	out := img
	rect, err := s.mapper.MapToSource(previewW, previewH, bounds.Dx(), bounds.Dy())
	if err != nil {
		s.logger.Warn("guide mapping failed, storing original", "case", s.caseID, "err", err)
	} else if cropped, err := s.mapper.Crop(img, rect); err != nil {
		s.logger.Warn("crop failed, storing original", "case", s.caseID, "err", err)
	} else {
		out = cropped
	}

	path, err := s.processor.SaveCrop(out, s.config.OutputDir)
	if err != nil {
		return CapturedImage{}, CaptureResult{}, fmt.Errorf("session: store capture: %w", err)
	}

	captured := CapturedImage{
		Path:      path,
		Width:     out.Bounds().Dx(),
		Height:    out.Bounds().Dy(),
		BlurScore: score,
	}
	return captured, CaptureResult{BlurScore: score}, nil
}

// ContinueCapturing returns the case to the capturing state after review
func (s *Session) ContinueCapturing() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDone {
		return ErrSessionDone
	}
	if len(s.images) >= s.config.MaxImages {
		return ErrMaxImages
	}
	s.state = StateCapturing
	return nil
}

// SetPrimaryIndex selects which image is primary for prediction display.
// Out-of-range input clamps into [0, N-1]; with no images it is 0. The
// clamp is deliberately lenient but logged, since a malformed upstream
// index would otherwise fail silently.
func (s *Session) SetPrimaryIndex(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clamped := clampIndex(i, len(s.images))
	if clamped != i {
		s.logger.Warn("primary index clamped",
			"case", s.caseID, "requested", i, "clamped", clamped, "images", len(s.images))
	}
	s.primary = clamped
}

// PrimaryIndex returns the selected prediction index, clamped against the
// current image count.
func (s *Session) PrimaryIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clampIndex(s.primary, len(s.images))
}

// Save attaches the class label, snapshots every image's annotations and
// hands the payload to the submission collaborator. The session is done
// afterwards; further captures are rejected. Only one save may be in
// flight at a time, so a payload is never submitted twice.
func (s *Session) Save(ctx context.Context, label string) (submit.Ack, error) {
	if !annotation.ValidLabel(label) {
		return submit.Ack{}, fmt.Errorf("session: unknown class label %q", label)
	}

	s.mu.Lock()
	if s.state == StateDone {
		s.mu.Unlock()
		return submit.Ack{}, ErrSessionDone
	}
	if s.saving {
		s.mu.Unlock()
		return submit.Ack{}, ErrSaveInFlight
	}
	if len(s.images) == 0 {
		s.mu.Unlock()
		return submit.Ack{}, fmt.Errorf("session: no images to save")
	}
	s.saving = true

	payload := submit.Payload{
		CaseID:       s.caseID,
		Label:        label,
		PrimaryIndex: clampIndex(s.primary, len(s.images)),
		Images:       make([]submit.ImagePayload, len(s.images)),
	}
	for i, img := range s.images {
		payload.Images[i] = submit.ImagePayload{
			Index:       i,
			Path:        img.Path,
			BlurScore:   img.BlurScore,
			Annotations: s.store.Snapshot(i),
		}
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.saving = false
		s.mu.Unlock()
	}()

	ack := submit.Ack{CaseID: s.caseID}
	if s.uploader != nil {
		var err error
		ack, err = s.uploader.Upload(ctx, payload)
		if err != nil {
			return submit.Ack{}, fmt.Errorf("session: upload failed: %w", err)
		}
	}

	s.mu.Lock()
	s.state = StateDone
	s.mu.Unlock()
	s.logger.Info("case saved", "case", s.caseID, "images", len(payload.Images), "label", label)
	return ack, nil
}

func clampIndex(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
