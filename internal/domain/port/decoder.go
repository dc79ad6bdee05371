package port

import "image"

// ImageDecoder разбирает загруженный файл изображения
type ImageDecoder interface {
	// Decode возвращает изображение и его формат ("png" или "jpeg")
	Decode(data []byte) (image.Image, string, error)
}
