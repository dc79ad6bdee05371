package entity

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

const (
	MinSensitivity = 1
	MaxSensitivity = 100
	MinMarkerSize  = 5
	MaxMarkerSize  = 50

	DefaultSensitivity = 50
	DefaultMarkerSize  = 15
	DefaultColor       = "#22c55e"

	// BandSize число маркеров одного цвета в режиме палитры
	BandSize = 20
)

// BandPalette цвета полос: зелёный, синий, фиолетовый, оранжевый, красный, бирюзовый, розовый, жёлтый.
var BandPalette = []color.NRGBA{
	{R: 34, G: 197, B: 94, A: 230},
	{R: 59, G: 130, B: 246, A: 230},
	{R: 168, G: 85, B: 247, A: 230},
	{R: 249, G: 115, B: 22, A: 230},
	{R: 239, G: 68, B: 68, A: 230},
	{R: 20, G: 184, B: 166, A: 230},
	{R: 236, G: 72, B: 153, A: 230},
	{R: 234, G: 179, B: 8, A: 230},
}

// DisplaySettings параметры детекции и отрисовки текущей сессии
type DisplaySettings struct {
	Sensitivity int    `json:"sensitivity"` // чувствительность 1..100
	MarkerSize  int    `json:"markerSize"`  // радиус маркера в пикселях
	Color       string `json:"color"`       // цвет маркера, #rrggbb
	Banded      bool   `json:"banded"`      // раскрашивать маркеры полосами по 20
}

// DefaultDisplaySettings настройки новой сессии
func DefaultDisplaySettings() DisplaySettings {
	return DisplaySettings{
		Sensitivity: DefaultSensitivity,
		MarkerSize:  DefaultMarkerSize,
		Color:       DefaultColor,
	}
}

// Validate проверяет диапазоны всех полей.
func (s DisplaySettings) Validate() error {
	if s.Sensitivity < MinSensitivity || s.Sensitivity > MaxSensitivity {
		return fmt.Errorf("%w: got %d", ErrInvalidSensitivity, s.Sensitivity)
	}
	if s.MarkerSize < MinMarkerSize || s.MarkerSize > MaxMarkerSize {
		return fmt.Errorf("%w: got %d", ErrInvalidMarkerSize, s.MarkerSize)
	}
	if _, err := ParseHexColor(s.Color); err != nil {
		return err
	}
	return nil
}

// Radius радиус маркера для отрисовки и попадания
func (s DisplaySettings) Radius() float64 {
	return float64(s.MarkerSize)
}

// MarkerColor возвращает цвет маркера с индексом i.
func (s DisplaySettings) MarkerColor(i int) color.Color {
	if s.Banded {
		return BandPalette[(i/BandSize)%len(BandPalette)]
	}
	c, err := ParseHexColor(s.Color)
	if err != nil {
		c, _ = ParseHexColor(DefaultColor)
	}
	return c
}

// ParseHexColor разбирает строку вида "#22c55e" (решётка необязательна).
func ParseHexColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}
