package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"tube-counter/internal/domain/entity"
)

// DetectResponse ответ сервиса детекции
type DetectResponse struct {
	Count  int           `json:"count,omitempty"`
	Points []DetectPoint `json:"points"`
}

// DetectPoint центр найденной трубки в пикселях исходного изображения
type DetectPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// RemoteDetector отправляет изображение во внешний сервис с моделью
// (POST /detect?sensitivity=N, поле формы file).
type RemoteDetector struct {
	url    *url.URL
	client *http.Client
}

// NewRemoteDetector создаёт клиента сервиса детекции.
func NewRemoteDetector(_url string, client *http.Client) (*RemoteDetector, error) {
	u, err := url.Parse(_url)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid url: %q", _url)
	}

	if client == nil {
		client = http.DefaultClient
	}

	return &RemoteDetector{url: u, client: client}, nil
}

// Detect отправляет изображение в PNG и возвращает центры в порядке ответа.
func (d *RemoteDetector) Detect(ctx context.Context, img image.Image, threshold float64) ([]entity.Detection, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "image.png")
	if err != nil {
		return nil, fmt.Errorf("create form: %w", err)
	}
	if err := png.Encode(part, img); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	if err = writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	sensitivity := int(math.Round(threshold * 100))
	u := d.url.JoinPath("/detect")
	q := u.Query()
	q.Set("sensitivity", strconv.Itoa(sensitivity))
	u.RawQuery = q.Encode()

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	request.Header.Set("Content-Type", writer.FormDataContentType())

	response, err := d.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		resp, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
		return nil, fmt.Errorf("server response status code: %d, body: %s", response.StatusCode, resp)
	}

	var resp DetectResponse
	if err = json.NewDecoder(response.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response body: %w", err)
	}

	dets := make([]entity.Detection, 0, len(resp.Points))
	for _, p := range resp.Points {
		dets = append(dets, entity.Detection{CenterX: p.X, CenterY: p.Y})
	}
	return dets, nil
}
