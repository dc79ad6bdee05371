package overlay

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"tube-counter/internal/domain/port"
)

// ErrUnsupportedFormat загружен файл не PNG и не JPEG
var ErrUnsupportedFormat = errors.New("unsupported image format, expected PNG or JPEG")

// Codec разбирает загруженные изображения
type Codec struct{}

// Decode разбирает загруженный файл. Принимаются только PNG и JPEG.
func (Codec) Decode(data []byte) (image.Image, string, error) {
	return Decode(data)
}

// Decode разбирает загруженный файл. Принимаются только PNG и JPEG.
func Decode(data []byte) (image.Image, string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if format != "png" && format != "jpeg" {
		return nil, "", fmt.Errorf("%w: got %s", ErrUnsupportedFormat, format)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", format, err)
	}
	return img, format, nil
}

// EncodePNG кодирует изображение в PNG (для веб-интерфейса)
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeJPEG кодирует изображение в JPEG (для Telegram)
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Проверка реализации интерфейса
var _ port.ImageDecoder = Codec{}
