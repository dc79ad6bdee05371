package entity

import (
	"fmt"
	"time"
)

// SessionState состояние сессии подсчёта
type SessionState string

const (
	StateNoImage     SessionState = "no_image"     // изображение не загружено
	StateImageLoaded SessionState = "image_loaded" // изображение загружено, идёт правка
)

// Session состояние одной сессии подсчёта. Передаётся в обработчик события
// и возвращается из него; фронтенд только хранит её между действиями.
type Session struct {
	ID        string          // идентификатор сессии (cookie или chat ID)
	State     SessionState    // текущее состояние
	Identity  ImageIdentity   // отпечаток загруженного изображения
	ImageName string          // имя файла, только для отображения
	Image     []byte          // исходные байты изображения
	Markers   Markers         // маркеры текущего изображения
	LastClick *Click          // последний обработанный клик
	Settings  DisplaySettings // настройки детекции и отрисовки
	UpdatedAt time.Time       // время последнего изменения
}

// NewSession создаёт пустую сессию с настройками по умолчанию
func NewSession(id string) *Session {
	return &Session{
		ID:       id,
		State:    StateNoImage,
		Markers:  Markers{},
		Settings: DefaultDisplaySettings(),
	}
}

// HasImage загружено ли изображение
func (s *Session) HasImage() bool {
	return s.State == StateImageLoaded
}

// NeedsDetection решает, нужно ли заново распознавать изображение:
// новое изображение или явный запрос на повторное распознавание.
func (s *Session) NeedsDetection(identity ImageIdentity, rescan bool) bool {
	if !s.HasImage() {
		return true
	}
	return rescan || s.Identity != identity
}

// LoadImage полностью заменяет маркеры результатом распознавания и
// сбрасывает запомненный клик.
func (s *Session) LoadImage(name string, data []byte, identity ImageIdentity, markers Markers) {
	s.State = StateImageLoaded
	s.ImageName = name
	s.Image = data
	s.Identity = identity
	s.ReplaceMarkers(markers)
}

// ReplaceMarkers заменяет маркеры целиком (повторное распознавание).
func (s *Session) ReplaceMarkers(markers Markers) {
	if markers == nil {
		markers = Markers{}
	}
	s.Markers = markers
	s.LastClick = nil
}

// ApplyClick применяет клик, если он отличается от последнего обработанного.
// Возвращает false для повторно доставленного клика.
func (s *Session) ApplyClick(c Click) (bool, error) {
	if !s.HasImage() {
		return false, ErrNoImage
	}
	if !isFinite(c.X) || !isFinite(c.Y) {
		return false, fmt.Errorf("%w: (%v, %v)", ErrInvalidClick, c.X, c.Y)
	}
	if s.LastClick != nil && *s.LastClick == c {
		return false, nil
	}
	s.LastClick = &c
	s.Markers.Toggle(c.Point(), s.Settings.Radius())
	return true, nil
}

// UndoLast удаляет последний маркер
func (s *Session) UndoLast() error {
	if !s.HasImage() {
		return ErrNoImage
	}
	s.Markers.UndoLast()
	return nil
}

// ClearMarkers удаляет все маркеры
func (s *Session) ClearMarkers() error {
	if !s.HasImage() {
		return ErrNoImage
	}
	s.Markers.Clear()
	return nil
}

// UpdateSettings меняет настройки; маркеры при этом не трогаются.
func (s *Session) UpdateSettings(settings DisplaySettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.Settings = settings
	return nil
}

// Count итоговое число трубок
func (s *Session) Count() int {
	return s.Markers.Len()
}

// Clone глубокая копия сессии. Байты изображения не копируются: они не меняются.
func (s *Session) Clone() *Session {
	out := *s
	out.Markers = s.Markers.Clone()
	if s.LastClick != nil {
		c := *s.LastClick
		out.LastClick = &c
	}
	return &out
}
