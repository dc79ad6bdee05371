//go:build gocv
// +build gocv

package vision

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"tube-counter/internal/domain/entity"
)

// Enabled собран ли пакет с OpenCV
const Enabled = true

// YOLODetector запускает ONNX-модель YOLOv8 через модуль DNN OpenCV.
type YOLODetector struct {
	cfg       YOLOConfig
	modelPath string
	net       gocv.Net
	mu        sync.Mutex
}

// NewYOLODetector загружает веса модели. Отсутствующий файл — ошибка с абсолютным путём.
func NewYOLODetector(cfg YOLOConfig) (*YOLODetector, error) {
	abs, err := resolveModelPath(cfg.ModelPath)
	if err != nil {
		return nil, err
	}
	if cfg.InputSize <= 0 {
		cfg.InputSize = 640
	}

	net := gocv.ReadNetFromONNX(abs)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load model from %s", abs)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("set backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("set target: %w", err)
	}

	return &YOLODetector{cfg: cfg, modelPath: abs, net: net}, nil
}

// Detect прогоняет сеть по изображению и возвращает рамки после NMS
// в порядке убывания уверенности.
func (d *YOLODetector) Detect(ctx context.Context, img image.Image, threshold float64) ([]entity.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert image: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	size := image.Pt(d.cfg.InputSize, d.cfg.InputSize)
	blob := gocv.BlobFromImage(mat, 1.0/255.0, size, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	// Сеть не потокобезопасна.
	d.mu.Lock()
	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	d.mu.Unlock()
	defer out.Close()

	return d.decode(out, mat.Cols(), mat.Rows(), float32(threshold))
}

// decode разбирает выход YOLOv8 формы [1, 4+classes, anchors]:
// cx, cy, w, h во входных координатах сети и оценки по классам.
func (d *YOLODetector) decode(out gocv.Mat, width, height int, threshold float32) ([]entity.Detection, error) {
	dims := out.Size()
	if len(dims) != 3 || dims[1] < 5 {
		return nil, fmt.Errorf("unexpected model output shape %v", dims)
	}
	attrs, anchors := dims[1], dims[2]

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read model output: %w", err)
	}

	sx := float32(width) / float32(d.cfg.InputSize)
	sy := float32(height) / float32(d.cfg.InputSize)

	var (
		boxes  []image.Rectangle
		scores []float32
		dets   []entity.Detection
	)
	for i := 0; i < anchors; i++ {
		var best float32
		for c := 4; c < attrs; c++ {
			if s := data[c*anchors+i]; s > best {
				best = s
			}
		}
		if best < threshold {
			continue
		}

		cx := data[i] * sx
		cy := data[anchors+i] * sy
		w := data[2*anchors+i] * sx
		h := data[3*anchors+i] * sy

		boxes = append(boxes, image.Rect(int(cx-w/2), int(cy-h/2), int(cx+w/2), int(cy+h/2)))
		scores = append(scores, best)
		dets = append(dets, entity.Detection{
			CenterX:    float64(cx),
			CenterY:    float64(cy),
			Width:      float64(w),
			Height:     float64(h),
			Confidence: float64(best),
		})
	}
	if len(boxes) == 0 {
		return []entity.Detection{}, nil
	}

	keep := gocv.NMSBoxes(boxes, scores, threshold, d.cfg.NMSThreshold)
	result := make([]entity.Detection, 0, len(keep))
	for _, idx := range keep {
		result = append(result, dets[idx])
	}
	return result, nil
}

// Close освобождает сеть.
func (d *YOLODetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
