package app

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"tube-counter/internal/domain/entity"
	"tube-counter/internal/infrastructure/overlay"
	"tube-counter/internal/infrastructure/storage"
)

type fakeDetector struct {
	detections []entity.Detection
	err        error
	calls      int
	thresholds []float64
}

func (f *fakeDetector) Detect(ctx context.Context, img image.Image, threshold float64) ([]entity.Detection, error) {
	f.calls++
	f.thresholds = append(f.thresholds, threshold)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]entity.Detection, len(f.detections))
	copy(out, f.detections)
	return out, nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	data, err := overlay.EncodePNG(image.NewRGBA(image.Rect(0, 0, w, h)))
	require.NoError(t, err)
	return data
}

func newCountingService(det *fakeDetector) *CountingService {
	sessions := NewSessionService(storage.NewMemorySessionRepository())
	return NewCountingService(sessions, det, overlay.NewRenderer("", zerolog.Nop()), overlay.Codec{}, zerolog.Nop())
}

func upload(data []byte) entity.Event {
	return entity.Event{Kind: entity.EventUpload, Upload: &entity.Upload{Name: "tubes.png", Data: data}}
}

func click(x, y float64, seq int64) entity.Event {
	return entity.Event{Kind: entity.EventClick, Click: &entity.Click{X: x, Y: y, Seq: seq}}
}

func TestCountingService_Scenario(t *testing.T) {
	det := &fakeDetector{detections: []entity.Detection{
		{CenterX: 10, CenterY: 10, Width: 8, Height: 8},
		{CenterX: 50, CenterY: 50, Width: 8, Height: 8},
	}}
	svc := newCountingService(det)
	ctx := context.Background()

	out, err := svc.Dispatch(ctx, "s", upload(pngBytes(t, 300, 300)))
	require.NoError(t, err)
	require.Equal(t, entity.Markers{{X: 10, Y: 10}, {X: 50, Y: 50}}, out.Session.Markers)
	require.NotNil(t, out.Rendered)
	require.Equal(t, []float64{0.5}, det.thresholds)

	out, err = svc.Dispatch(ctx, "s", click(10, 10, 1))
	require.NoError(t, err)
	require.Equal(t, entity.Markers{{X: 50, Y: 50}}, out.Session.Markers)

	out, err = svc.Dispatch(ctx, "s", click(200, 200, 2))
	require.NoError(t, err)
	require.Equal(t, entity.Markers{{X: 50, Y: 50}, {X: 200, Y: 200}}, out.Session.Markers)

	out, err = svc.Dispatch(ctx, "s", entity.Event{Kind: entity.EventUndo})
	require.NoError(t, err)
	require.Equal(t, entity.Markers{{X: 50, Y: 50}}, out.Session.Markers)

	out, err = svc.Dispatch(ctx, "s", entity.Event{Kind: entity.EventClear})
	require.NoError(t, err)
	require.Empty(t, out.Session.Markers)
	require.Equal(t, 0, out.Count())
	require.Equal(t, 1, det.calls)
}

func TestCountingService_SameImageKeepsEdits(t *testing.T) {
	det := &fakeDetector{detections: []entity.Detection{{CenterX: 10, CenterY: 10}}}
	svc := newCountingService(det)
	ctx := context.Background()
	data := pngBytes(t, 100, 100)

	_, err := svc.Dispatch(ctx, "s", upload(data))
	require.NoError(t, err)
	_, err = svc.Dispatch(ctx, "s", click(80, 80, 1))
	require.NoError(t, err)

	out, err := svc.Dispatch(ctx, "s", upload(data))
	require.NoError(t, err)
	require.False(t, out.Applied)
	require.Equal(t, 2, out.Count())
	require.Equal(t, 1, det.calls)
}

func TestCountingService_NewImageReplacesEdits(t *testing.T) {
	det := &fakeDetector{detections: []entity.Detection{{CenterX: 10, CenterY: 10}}}
	svc := newCountingService(det)
	ctx := context.Background()

	_, err := svc.Dispatch(ctx, "s", upload(pngBytes(t, 100, 100)))
	require.NoError(t, err)
	_, err = svc.Dispatch(ctx, "s", click(80, 80, 1))
	require.NoError(t, err)

	det.detections = []entity.Detection{{CenterX: 30, CenterY: 30}}
	out, err := svc.Dispatch(ctx, "s", upload(pngBytes(t, 120, 100)))
	require.NoError(t, err)
	require.Equal(t, entity.Markers{{X: 30, Y: 30}}, out.Session.Markers)
	require.Nil(t, out.Session.LastClick)
	require.Equal(t, 2, det.calls)
}

func TestCountingService_RescanReplacesEdits(t *testing.T) {
	det := &fakeDetector{detections: []entity.Detection{{CenterX: 10, CenterY: 10}}}
	svc := newCountingService(det)
	ctx := context.Background()

	_, err := svc.Dispatch(ctx, "s", upload(pngBytes(t, 100, 100)))
	require.NoError(t, err)
	_, err = svc.Dispatch(ctx, "s", click(80, 80, 1))
	require.NoError(t, err)

	settings := entity.DefaultDisplaySettings()
	settings.Sensitivity = 25
	_, err = svc.Dispatch(ctx, "s", entity.Event{Kind: entity.EventSettings, Settings: &settings})
	require.NoError(t, err)

	out, err := svc.Dispatch(ctx, "s", entity.Event{Kind: entity.EventRescan})
	require.NoError(t, err)
	require.Equal(t, entity.Markers{{X: 10, Y: 10}}, out.Session.Markers)
	require.Equal(t, []float64{0.5, 0.25}, det.thresholds)
}

func TestCountingService_DuplicateClickIgnored(t *testing.T) {
	svc := newCountingService(&fakeDetector{})
	ctx := context.Background()

	_, err := svc.Dispatch(ctx, "s", upload(pngBytes(t, 100, 100)))
	require.NoError(t, err)

	out, err := svc.Dispatch(ctx, "s", click(40, 40, 1))
	require.NoError(t, err)
	require.True(t, out.Applied)

	out, err = svc.Dispatch(ctx, "s", click(40, 40, 1))
	require.NoError(t, err)
	require.False(t, out.Applied)
	require.Equal(t, 1, out.Count())
}

func TestCountingService_DetectionFailureLeavesSession(t *testing.T) {
	det := &fakeDetector{detections: []entity.Detection{{CenterX: 10, CenterY: 10}}}
	svc := newCountingService(det)
	ctx := context.Background()

	_, err := svc.Dispatch(ctx, "s", upload(pngBytes(t, 100, 100)))
	require.NoError(t, err)

	boom := errors.New("inference crashed")
	det.err = boom
	_, err = svc.Dispatch(ctx, "s", upload(pngBytes(t, 50, 50)))
	require.ErrorIs(t, err, boom)

	out, err := svc.Dispatch(ctx, "s", entity.Event{Kind: entity.EventRender})
	require.NoError(t, err)
	require.Equal(t, entity.Markers{{X: 10, Y: 10}}, out.Session.Markers)
	require.Equal(t, 100, out.Rendered.Bounds().Dx())
}

func TestCountingService_EditsWithoutImage(t *testing.T) {
	svc := newCountingService(&fakeDetector{})
	ctx := context.Background()

	_, err := svc.Dispatch(ctx, "s", click(1, 1, 1))
	require.ErrorIs(t, err, entity.ErrNoImage)
	_, err = svc.Dispatch(ctx, "s", entity.Event{Kind: entity.EventRescan})
	require.ErrorIs(t, err, entity.ErrNoImage)

	out, err := svc.Dispatch(ctx, "s", entity.Event{Kind: entity.EventRender})
	require.NoError(t, err)
	require.Nil(t, out.Rendered)
}

func TestCountingService_RejectsUnsupportedUpload(t *testing.T) {
	svc := newCountingService(&fakeDetector{})

	_, err := svc.Dispatch(context.Background(), "s", upload([]byte("plain text")))
	require.ErrorIs(t, err, overlay.ErrUnsupportedFormat)
}

func TestCountingService_SessionsAreIndependent(t *testing.T) {
	det := &fakeDetector{detections: []entity.Detection{{CenterX: 10, CenterY: 10}}}
	svc := newCountingService(det)
	ctx := context.Background()

	_, err := svc.Dispatch(ctx, "a", upload(pngBytes(t, 100, 100)))
	require.NoError(t, err)

	out, err := svc.Dispatch(ctx, "b", entity.Event{Kind: entity.EventRender})
	require.NoError(t, err)
	require.Equal(t, entity.StateNoImage, out.Session.State)
}

func TestCountingService_Reset(t *testing.T) {
	det := &fakeDetector{detections: []entity.Detection{{CenterX: 10, CenterY: 10}}}
	svc := newCountingService(det)
	ctx := context.Background()

	_, err := svc.Dispatch(ctx, "s", upload(pngBytes(t, 100, 100)))
	require.NoError(t, err)

	out, err := svc.Reset(ctx, "s")
	require.NoError(t, err)
	require.Equal(t, entity.StateNoImage, out.Session.State)
	require.Nil(t, out.Rendered)

	_, err = svc.Dispatch(ctx, "s", entity.Event{Kind: entity.EventUndo})
	require.ErrorIs(t, err, entity.ErrNoImage)
}
