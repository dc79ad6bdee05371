package overlay

import (
	"image"
	"image/color"
	"os"
	"strconv"

	"github.com/fogleman/gg"
	"github.com/rs/zerolog"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"tube-counter/internal/domain/entity"
	"tube-counter/internal/domain/port"
)

const outlineWidth = 2

// Renderer рисует пронумерованные диски поверх копии изображения.
type Renderer struct {
	font *opentype.Font // nil — используется растровый шрифт
	log  zerolog.Logger
}

// NewRenderer создаёт рендерер. Если fontPath пуст, берётся встроенный Go Regular;
// если файл шрифта не читается, подписи рисуются растровым basicfont.
func NewRenderer(fontPath string, log zerolog.Logger) *Renderer {
	r := &Renderer{log: log}

	data := goregular.TTF
	if fontPath != "" {
		b, err := os.ReadFile(fontPath)
		if err != nil {
			log.Debug().Err(err).Str("font", fontPath).Msg("Font not available, using bitmap font")
			return r
		}
		data = b
	}

	f, err := opentype.Parse(data)
	if err != nil {
		log.Debug().Err(err).Str("font", fontPath).Msg("Font not parsed, using bitmap font")
		return r
	}
	r.font = f
	return r
}

// Render рисует маркеры в порядке их индексов. Исходное изображение не изменяется.
func (r *Renderer) Render(img image.Image, markers entity.Markers, settings entity.DisplaySettings) (image.Image, error) {
	dc := gg.NewContextForImage(img)
	dc.SetFontFace(r.face(settings.MarkerSize))

	radius := settings.Radius()
	for i, m := range markers {
		dc.DrawCircle(m.X, m.Y, radius)
		dc.SetColor(settings.MarkerColor(i))
		dc.FillPreserve()
		dc.SetColor(color.White)
		dc.SetLineWidth(outlineWidth)
		dc.Stroke()

		dc.SetColor(color.White)
		dc.DrawStringAnchored(strconv.Itoa(i+1), m.X, m.Y, 0.5, 0.5)
	}

	return dc.Image(), nil
}

// face создаёт шрифт для подписей; лицо opentype нельзя делить между горутинами,
// поэтому оно создаётся на каждый вызов.
func (r *Renderer) face(size int) font.Face {
	if r.font == nil {
		return basicfont.Face7x13
	}
	face, err := opentype.NewFace(r.font, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		r.log.Debug().Err(err).Int("size", size).Msg("Font face failed, using bitmap font")
		return basicfont.Face7x13
	}
	return face
}

// Проверка реализации интерфейса
var _ port.OverlayRenderer = (*Renderer)(nil)
