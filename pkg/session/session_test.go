package session

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dermoscan/capture-engine/pkg/annotation"
	"github.com/dermoscan/capture-engine/pkg/blur"
	"github.com/dermoscan/capture-engine/pkg/guide"
	"github.com/dermoscan/capture-engine/pkg/processing"
	"github.com/dermoscan/capture-engine/pkg/submit"
)

// encodeFrame renders an image to JPEG bytes the way a camera would
func encodeFrame(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

// sharpFrame is a block checkerboard that survives JPEG with a Laplacian
// variance far above the gate threshold
func sharpFrame(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if (x/4+y/4)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return encodeFrame(t, img)
}

// flatFrame is a uniform mid-gray frame that scores ~0
func flatFrame(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	return encodeFrame(t, img)
}

type stubSource struct {
	data   []byte
	orient processing.Orientation
	err    error
}

func (s *stubSource) Frame(ctx context.Context) ([]byte, processing.Orientation, error) {
	return s.data, s.orient, s.err
}

type recordingUploader struct {
	payload submit.Payload
	called  bool
}

func (u *recordingUploader) Upload(ctx context.Context, payload submit.Payload) (submit.Ack, error) {
	u.payload = payload
	u.called = true
	return submit.Ack{CaseID: payload.CaseID}, nil
}

func newTestSession(t *testing.T, uploader submit.Uploader) *Session {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := Config{MaxImages: 8, OutputDir: t.TempDir()}
	return New("case-test", blur.New(), guide.New(), processing.NewProcessor(), uploader, cfg, logger)
}

func TestCaptureAccepted(t *testing.T) {
	sess := newTestSession(t, nil)
	require.Equal(t, StateEmpty, sess.State())

	src := &stubSource{data: sharpFrame(t, 400, 400), orient: processing.OrientNormal}
	result, err := sess.Capture(context.Background(), src, 400, 800)
	require.NoError(t, err)

	require.True(t, result.Accepted)
	require.False(t, result.Retake)
	require.Equal(t, 0, result.Index)
	require.Greater(t, result.BlurScore, 70.0)
	require.Equal(t, StateReviewing, sess.State())

	images := sess.Images()
	require.Len(t, images, 1)
	require.FileExists(t, images[0].Path)
	require.Equal(t, images[0].Width, images[0].Height, "stored crop must be square")
}

func TestCaptureBlurryRequestsRetake(t *testing.T) {
	sess := newTestSession(t, nil)

	src := &stubSource{data: flatFrame(t, 400, 400)}
	result, err := sess.Capture(context.Background(), src, 400, 800)
	require.NoError(t, err)

	require.False(t, result.Accepted)
	require.True(t, result.Retake)
	require.Less(t, result.BlurScore, 70.0)
	require.Empty(t, sess.Images())
}

func TestCaptureMaxImages(t *testing.T) {
	sess := newTestSession(t, nil)
	src := &stubSource{data: sharpFrame(t, 200, 200)}

	for i := 0; i < 8; i++ {
		result, err := sess.Capture(context.Background(), src, 400, 800)
		require.NoError(t, err)
		require.True(t, result.Accepted)
		require.Equal(t, i, result.Index)
	}

	// The 9th attempt is rejected as a user-facing condition, not dropped
	_, err := sess.Capture(context.Background(), src, 400, 800)
	require.ErrorIs(t, err, ErrMaxImages)
	require.Len(t, sess.Images(), 8)
}

func TestCaptureDecodeFailureStoresOriginal(t *testing.T) {
	sess := newTestSession(t, nil)

	raw := []byte("definitely not an image")
	src := &stubSource{data: raw}
	result, err := sess.Capture(context.Background(), src, 400, 800)
	require.NoError(t, err)

	// Blur fails open, crop fails closed: the original bytes are kept
	require.True(t, result.Accepted)
	require.Equal(t, blur.CannotEvaluate, result.BlurScore)

	images := sess.Images()
	require.Len(t, images, 1)
	stored, err := os.ReadFile(images[0].Path)
	require.NoError(t, err)
	require.Equal(t, raw, stored)
}

func TestCaptureOrientationBakedIn(t *testing.T) {
	sess := newTestSession(t, nil)

	// A 100x300 frame captured sideways is upright before mapping
	src := &stubSource{data: sharpFrame(t, 100, 300), orient: processing.OrientRotate90}
	result, err := sess.Capture(context.Background(), src, 400, 800)
	require.NoError(t, err)
	require.True(t, result.Accepted)
	require.LessOrEqual(t, result.Image.Width, 100)
	require.Equal(t, result.Image.Width, result.Image.Height)
}

func TestCaptureSerializedTakePhoto(t *testing.T) {
	sess := newTestSession(t, nil)

	// The frame source issues a second take-photo while the first is in
	// flight; it must be a no-op, not queued.
	src := &reentrantSource{t: t, sess: sess}
	result, err := sess.Capture(context.Background(), src, 400, 800)
	require.NoError(t, err)
	require.True(t, result.Accepted)
	require.True(t, src.innerSkipped)
	require.Len(t, sess.Images(), 1)
}

type reentrantSource struct {
	t            *testing.T
	sess         *Session
	innerSkipped bool
}

func (r *reentrantSource) Frame(ctx context.Context) ([]byte, processing.Orientation, error) {
	inner, err := r.sess.Capture(ctx, &stubSource{data: sharpFrame(r.t, 64, 64)}, 400, 800)
	require.NoError(r.t, err)
	r.innerSkipped = inner.Skipped
	return sharpFrame(r.t, 200, 200), processing.OrientNormal, nil
}

func TestPrimaryIndexClamp(t *testing.T) {
	sess := newTestSession(t, nil)

	// No images: always 0
	sess.SetPrimaryIndex(5)
	require.Equal(t, 0, sess.PrimaryIndex())

	src := &stubSource{data: sharpFrame(t, 200, 200)}
	for i := 0; i < 3; i++ {
		_, err := sess.Capture(context.Background(), src, 400, 800)
		require.NoError(t, err)
	}

	sess.SetPrimaryIndex(1)
	require.Equal(t, 1, sess.PrimaryIndex())

	sess.SetPrimaryIndex(99)
	require.Equal(t, 2, sess.PrimaryIndex())

	sess.SetPrimaryIndex(-4)
	require.Equal(t, 0, sess.PrimaryIndex())
}

func TestSave(t *testing.T) {
	uploader := &recordingUploader{}
	sess := newTestSession(t, uploader)

	src := &stubSource{data: sharpFrame(t, 200, 200)}
	for i := 0; i < 2; i++ {
		_, err := sess.Capture(context.Background(), src, 400, 800)
		require.NoError(t, err)
	}

	store := sess.Annotations()
	pen := store.StartStroke(0, annotation.Point{X: 1, Y: 2}, 0xFF0000, 3, false)
	store.CommitStroke(pen)
	store.AddBox(1, annotation.Box{Left: 10, Top: 10, Width: 20, Height: 20})
	sess.SetPrimaryIndex(1)

	ack, err := sess.Save(context.Background(), "melanoma")
	require.NoError(t, err)
	require.Equal(t, "case-test", ack.CaseID)
	require.Equal(t, StateDone, sess.State())

	require.True(t, uploader.called)
	require.Equal(t, "melanoma", uploader.payload.Label)
	require.Equal(t, 1, uploader.payload.PrimaryIndex)
	require.Len(t, uploader.payload.Images, 2)
	require.Equal(t, 0, uploader.payload.Images[0].Index)
	require.Len(t, uploader.payload.Images[0].Annotations.Strokes, 1)
	require.Len(t, uploader.payload.Images[1].Annotations.Boxes, 1)

	// A saved case accepts no further work
	_, err = sess.Capture(context.Background(), src, 400, 800)
	require.ErrorIs(t, err, ErrSessionDone)
	_, err = sess.Save(context.Background(), "nevus")
	require.ErrorIs(t, err, ErrSessionDone)
}

type blockingUploader struct {
	entered chan struct{}
	release chan struct{}
}

func (u *blockingUploader) Upload(ctx context.Context, payload submit.Payload) (submit.Ack, error) {
	close(u.entered)
	<-u.release
	return submit.Ack{CaseID: payload.CaseID}, nil
}

func TestSaveSingleFlight(t *testing.T) {
	uploader := &blockingUploader{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	sess := newTestSession(t, uploader)

	src := &stubSource{data: sharpFrame(t, 200, 200)}
	_, err := sess.Capture(context.Background(), src, 400, 800)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := sess.Save(context.Background(), "nevus")
		done <- err
	}()
	<-uploader.entered

	// A second save while the upload is still in flight is rejected, so
	// the payload can never be submitted twice
	_, err = sess.Save(context.Background(), "nevus")
	require.ErrorIs(t, err, ErrSaveInFlight)

	close(uploader.release)
	require.NoError(t, <-done)
	require.Equal(t, StateDone, sess.State())

	_, err = sess.Save(context.Background(), "nevus")
	require.ErrorIs(t, err, ErrSessionDone)
}

func TestSaveValidation(t *testing.T) {
	sess := newTestSession(t, nil)

	// Unknown label
	_, err := sess.Save(context.Background(), "definitely_not_a_diagnosis")
	require.Error(t, err)

	// Valid label but nothing captured
	_, err = sess.Save(context.Background(), "nevus")
	require.Error(t, err)
}

func TestEvaluateCapture(t *testing.T) {
	sess := newTestSession(t, nil)

	eval := sess.EvaluateCapture(sharpFrame(t, 200, 200))
	require.True(t, eval.Accepted)
	require.Greater(t, eval.BlurScore, 70.0)
	require.True(t, eval.BrightEnough)

	eval = sess.EvaluateCapture(flatFrame(t, 200, 200))
	require.False(t, eval.Accepted)

	// Decode failure fails open
	eval = sess.EvaluateCapture([]byte("garbage"))
	require.True(t, eval.Accepted)
	require.True(t, eval.BrightEnough)
	require.Equal(t, blur.CannotEvaluate, eval.BlurScore)
}

func TestContinueCapturing(t *testing.T) {
	sess := newTestSession(t, nil)

	src := &stubSource{data: sharpFrame(t, 200, 200)}
	_, err := sess.Capture(context.Background(), src, 400, 800)
	require.NoError(t, err)
	require.Equal(t, StateReviewing, sess.State())

	require.NoError(t, sess.ContinueCapturing())
	require.Equal(t, StateCapturing, sess.State())
}
