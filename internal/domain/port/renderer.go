package port

import (
	"image"

	"tube-counter/internal/domain/entity"
)

// OverlayRenderer рисует пронумерованные маркеры поверх изображения
type OverlayRenderer interface {
	// Render возвращает новое изображение; исходное не изменяется
	Render(img image.Image, markers entity.Markers, settings entity.DisplaySettings) (image.Image, error)
}
