package app

import (
	"context"
	"errors"
	"fmt"
	"image"

	"tube-counter/internal/domain/entity"
	"tube-counter/internal/domain/port"
)

// SensitivityToThreshold переводит чувствительность 1..100 в порог уверенности 0.01..1.0.
func SensitivityToThreshold(sensitivity int) (float64, error) {
	if sensitivity < entity.MinSensitivity || sensitivity > entity.MaxSensitivity {
		return 0, fmt.Errorf("%w: got %d", entity.ErrInvalidSensitivity, sensitivity)
	}
	return float64(sensitivity) / 100.0, nil
}

// DetectMarkers один раз вызывает модель и превращает рамки в маркеры по их центрам.
// Порядок маркеров совпадает с порядком модели. Ошибка модели не перехватывается.
func DetectMarkers(ctx context.Context, detector port.TubeDetector, img image.Image, sensitivity int) (entity.Markers, error) {
	if detector == nil {
		return nil, errors.New("detector is not configured")
	}

	threshold, err := SensitivityToThreshold(sensitivity)
	if err != nil {
		return nil, err
	}

	detections, err := detector.Detect(ctx, img, threshold)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	markers := make(entity.Markers, 0, len(detections))
	for _, d := range detections {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		markers = append(markers, d.Center())
	}
	return markers, nil
}
