package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	app "tube-counter/internal/application"
	"tube-counter/internal/domain/entity"
	"tube-counter/internal/infrastructure/overlay"
	"tube-counter/internal/infrastructure/storage"
)

type fakeDetector struct {
	detections []entity.Detection
	err        error
}

func (f *fakeDetector) Detect(ctx context.Context, img image.Image, threshold float64) ([]entity.Detection, error) {
	return f.detections, f.err
}

func newTestServer(det *fakeDetector, rateLimit int) *Server {
	sessions := app.NewSessionService(storage.NewMemorySessionRepository())
	counting := app.NewCountingService(sessions, det, overlay.NewRenderer("", zerolog.Nop()), overlay.Codec{}, zerolog.Nop())
	return NewServer(counting, Options{Addr: ":0", UploadLimitMB: 1, RateLimit: rateLimit}, zerolog.Nop())
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	data, err := overlay.EncodePNG(image.NewRGBA(image.Rect(0, 0, w, h)))
	require.NoError(t, err)
	return data
}

func uploadRequest(t *testing.T, path, name string, data []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, path string, v any) *http.Request {
	t.Helper()
	var body bytes.Buffer
	if v != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(v))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// client хранит cookie сессии между запросами.
type client struct {
	t      *testing.T
	h      http.Handler
	cookie *http.Cookie
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == sessionCookie {
			c.cookie = ck
		}
	}
	return rec
}

func (c *client) view(req *http.Request) sessionView {
	c.t.Helper()
	rec := c.do(req)
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())
	var v sessionView
	require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestServer_CountingFlow(t *testing.T) {
	det := &fakeDetector{detections: []entity.Detection{
		{CenterX: 10, CenterY: 10},
		{CenterX: 50, CenterY: 50},
	}}
	c := &client{t: t, h: newTestServer(det, 0).Handler()}

	v := c.view(httptest.NewRequest(http.MethodGet, "/api/session", nil))
	require.Equal(t, entity.StateNoImage, v.State)
	require.Equal(t, msgUploadFirst, v.Message)
	require.Empty(t, v.Image)
	require.NotNil(t, c.cookie)

	v = c.view(uploadRequest(t, "/api/session/upload", "tubes.png", pngBytes(t, 300, 300)))
	require.Equal(t, entity.StateImageLoaded, v.State)
	require.Equal(t, 2, v.Count)
	require.Equal(t, "tubes.png", v.ImageName)
	require.Equal(t, msgHelper, v.Message)
	require.True(t, strings.HasPrefix(v.Image, "data:image/png;base64,"))

	v = c.view(jsonRequest(t, http.MethodPost, "/api/session/click", entity.Click{X: 11, Y: 9, Seq: 1}))
	require.Equal(t, 1, v.Count)
	require.True(t, v.Applied)

	v = c.view(jsonRequest(t, http.MethodPost, "/api/session/click", entity.Click{X: 11, Y: 9, Seq: 1}))
	require.Equal(t, 1, v.Count)
	require.False(t, v.Applied)

	v = c.view(jsonRequest(t, http.MethodPost, "/api/session/click", entity.Click{X: 200, Y: 200, Seq: 2}))
	require.Equal(t, entity.Markers{{X: 50, Y: 50}, {X: 200, Y: 200}}, v.Markers)

	v = c.view(jsonRequest(t, http.MethodPost, "/api/session/undo", nil))
	require.Equal(t, 1, v.Count)

	v = c.view(jsonRequest(t, http.MethodPost, "/api/session/clear", nil))
	require.Equal(t, 0, v.Count)

	v = c.view(jsonRequest(t, http.MethodPost, "/api/session/rescan", nil))
	require.Equal(t, 2, v.Count)

	rec := c.do(httptest.NewRequest(http.MethodGet, "/api/session/image", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	v = c.view(jsonRequest(t, http.MethodPost, "/api/session/reset", nil))
	require.Equal(t, entity.StateNoImage, v.State)
	require.Equal(t, 0, v.Count)
}

func TestServer_Settings(t *testing.T) {
	c := &client{t: t, h: newTestServer(&fakeDetector{}, 0).Handler()}

	settings := entity.DisplaySettings{Sensitivity: 30, MarkerSize: 20, Color: "#3b82f6", Banded: true}
	v := c.view(jsonRequest(t, http.MethodPut, "/api/session/settings", settings))
	require.Equal(t, settings, v.Settings)

	settings.MarkerSize = 99
	rec := c.do(jsonRequest(t, http.MethodPut, "/api/session/settings", settings))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	v = c.view(httptest.NewRequest(http.MethodGet, "/api/session", nil))
	require.Equal(t, 20, v.Settings.MarkerSize)
}

func TestServer_EditsWithoutImage(t *testing.T) {
	c := &client{t: t, h: newTestServer(&fakeDetector{}, 0).Handler()}

	rec := c.do(jsonRequest(t, http.MethodPost, "/api/session/click", entity.Click{X: 1, Y: 1}))
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = c.do(jsonRequest(t, http.MethodPost, "/api/session/undo", nil))
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = c.do(httptest.NewRequest(http.MethodGet, "/api/session/image", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_UploadValidation(t *testing.T) {
	c := &client{t: t, h: newTestServer(&fakeDetector{}, 0).Handler()}

	rec := c.do(uploadRequest(t, "/api/session/upload", "tubes.gif", pngBytes(t, 10, 10)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(uploadRequest(t, "/api/session/upload", "tubes.png", []byte("not an image")))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(jsonRequest(t, http.MethodPost, "/api/session/upload", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_DetectionFailure(t *testing.T) {
	det := &fakeDetector{err: errors.New("onnx runtime exploded")}
	c := &client{t: t, h: newTestServer(det, 0).Handler()}

	rec := c.do(uploadRequest(t, "/api/session/upload", "tubes.png", pngBytes(t, 10, 10)))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "onnx")

	v := c.view(httptest.NewRequest(http.MethodGet, "/api/session", nil))
	require.Equal(t, entity.StateNoImage, v.State)
}

func TestServer_SessionsAreSeparate(t *testing.T) {
	h := newTestServer(&fakeDetector{detections: []entity.Detection{{CenterX: 5, CenterY: 5}}}, 0).Handler()
	a := &client{t: t, h: h}
	b := &client{t: t, h: h}

	a.view(uploadRequest(t, "/api/session/upload", "a.png", pngBytes(t, 20, 20)))

	v := b.view(httptest.NewRequest(http.MethodGet, "/api/session", nil))
	require.Equal(t, entity.StateNoImage, v.State)
	require.NotEqual(t, a.cookie.Value, b.cookie.Value)
}

func TestServer_Detect(t *testing.T) {
	det := &fakeDetector{detections: []entity.Detection{{CenterX: 12, CenterY: 34}}}
	h := newTestServer(det, 0).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/detect?sensitivity=40", "x.jpg", pngBytes(t, 50, 50)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"count":1,"points":[{"x":12,"y":34}]}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/detect?sensitivity=0", "x.png", pngBytes(t, 50, 50)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/detect?sensitivity=abc", "x.png", pngBytes(t, 50, 50)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_RateLimit(t *testing.T) {
	h := newTestServer(&fakeDetector{}, 1).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/detect", "x.png", pngBytes(t, 10, 10)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/detect", "x.png", pngBytes(t, 10, 10)))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestServer_IndexAndHealth(t *testing.T) {
	h := newTestServer(&fakeDetector{}, 0).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Total Tubes")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
