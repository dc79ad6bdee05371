package vision

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	// ErrModelNotFound файл весов модели отсутствует
	ErrModelNotFound = errors.New("model file not found")
	// ErrDetectorDisabled сборка без тега gocv
	ErrDetectorDisabled = errors.New("gocv build tag is not enabled")
)

// YOLOConfig параметры локальной модели
type YOLOConfig struct {
	ModelPath    string  // путь к ONNX-весам
	InputSize    int     // сторона квадратного входа сети, обычно 640
	NMSThreshold float32 // порог IoU для подавления пересекающихся рамок
}

// DefaultYOLOConfig возвращает параметры по умолчанию для YOLOv8.
func DefaultYOLOConfig(modelPath string) YOLOConfig {
	return YOLOConfig{
		ModelPath:    modelPath,
		InputSize:    640,
		NMSThreshold: 0.7,
	}
}

// resolveModelPath проверяет наличие файла весов и возвращает абсолютный путь.
// Ошибка содержит путь, по которому искали файл.
func resolveModelPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if _, err := os.Stat(path); err != nil {
		return abs, fmt.Errorf("%w: looked for %s", ErrModelNotFound, abs)
	}
	return abs, nil
}
