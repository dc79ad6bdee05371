//go:build !gocv
// +build !gocv

package vision

import (
	"context"
	"image"

	"tube-counter/internal/domain/entity"
)

// Enabled собран ли пакет с OpenCV
const Enabled = false

// YOLODetector заглушка детектора (без OpenCV).
type YOLODetector struct {
	cfg       YOLOConfig
	modelPath string
}

// NewYOLODetector проверяет файл весов и создаёт детектор-заглушку.
func NewYOLODetector(cfg YOLOConfig) (*YOLODetector, error) {
	abs, err := resolveModelPath(cfg.ModelPath)
	if err != nil {
		return nil, err
	}
	return &YOLODetector{cfg: cfg, modelPath: abs}, nil
}

// Detect возвращает ошибку, если сборка без тега gocv.
func (d *YOLODetector) Detect(ctx context.Context, img image.Image, threshold float64) ([]entity.Detection, error) {
	_ = ctx
	_ = img
	_ = threshold
	return nil, ErrDetectorDisabled
}

// Close ничего не делает.
func (d *YOLODetector) Close() error {
	return nil
}
