package port

import (
	"context"
	"image"

	"tube-counter/internal/domain/entity"
)

// TubeDetector интерфейс модели, находящей срезы трубок
type TubeDetector interface {
	// Detect один раз прогоняет модель по всему изображению с порогом
	// уверенности threshold (0.01..1.0) и возвращает рамки в порядке модели
	Detect(ctx context.Context, img image.Image, threshold float64) ([]entity.Detection, error)
}
