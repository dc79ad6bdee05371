package entity

import (
	"fmt"
	"math"
)

// Detection один найденный моделью срез трубки (центр и размер рамки)
type Detection struct {
	CenterX    float64 // координата X центра рамки
	CenterY    float64 // координата Y центра рамки
	Width      float64 // ширина рамки в пикселях
	Height     float64 // высота рамки в пикселях
	Confidence float64 // уверенность модели
}

// Center возвращает центр рамки как маркер
func (d Detection) Center() Marker {
	return Marker{X: d.CenterX, Y: d.CenterY}
}

// Validate проверяет, что координаты центра конечны.
func (d Detection) Validate() error {
	if !isFinite(d.CenterX) || !isFinite(d.CenterY) {
		return fmt.Errorf("%w: center (%v, %v)", ErrInvalidDetection, d.CenterX, d.CenterY)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
