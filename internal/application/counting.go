package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog"

	"tube-counter/internal/domain/entity"
	"tube-counter/internal/domain/port"
)

// CountingOutput состояние сессии после действия и картинка с маркерами.
type CountingOutput struct {
	Session  *entity.Session
	Rendered image.Image // nil, если изображение не загружено
	Applied  bool        // false для повторно доставленного клика или no-op загрузки
}

// Count итоговое число трубок
func (o *CountingOutput) Count() int {
	return o.Session.Count()
}

// CountingService применяет действия оператора к сессии: одно событие,
// один переход, затем перерисовка.
type CountingService struct {
	sessions *SessionService
	detector port.TubeDetector
	renderer port.OverlayRenderer
	decoder  port.ImageDecoder
	locks    *keyedLocker
	log      zerolog.Logger
	now      func() time.Time
}

// NewCountingService создаёт сервис подсчёта трубок.
func NewCountingService(sessions *SessionService, detector port.TubeDetector, renderer port.OverlayRenderer, decoder port.ImageDecoder, log zerolog.Logger) *CountingService {
	return &CountingService{
		sessions: sessions,
		detector: detector,
		renderer: renderer,
		decoder:  decoder,
		locks:    newKeyedLocker(),
		log:      log,
		now:      time.Now,
	}
}

// Dispatch применяет событие к сессии sessionID, сохраняет её и перерисовывает.
// При ошибке сохранённая сессия не меняется.
func (s *CountingService) Dispatch(ctx context.Context, sessionID string, ev entity.Event) (*CountingOutput, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	log := s.log.With().Str("session", sessionID).Str("event", string(ev.Kind)).Logger()

	var img image.Image
	applied := true

	switch ev.Kind {
	case entity.EventUpload:
		if ev.Upload == nil {
			return nil, errors.New("upload event without file")
		}
		img, applied, err = s.upload(ctx, session, ev.Upload, log)

	case entity.EventRescan:
		img, err = s.rescan(ctx, session, log)

	case entity.EventClick:
		if ev.Click == nil {
			return nil, errors.New("click event without coordinates")
		}
		applied, err = session.ApplyClick(*ev.Click)

	case entity.EventUndo:
		err = session.UndoLast()

	case entity.EventClear:
		err = session.ClearMarkers()

	case entity.EventSettings:
		if ev.Settings == nil {
			return nil, errors.New("settings event without settings")
		}
		err = session.UpdateSettings(*ev.Settings)

	case entity.EventRender:
		applied = false

	default:
		return nil, fmt.Errorf("unknown event %q", ev.Kind)
	}
	if err != nil {
		return nil, err
	}

	if applied {
		session.UpdatedAt = s.now()
		if err := s.sessions.Save(ctx, session); err != nil {
			return nil, fmt.Errorf("save session: %w", err)
		}
		log.Debug().Int("count", session.Count()).Msg("Session updated")
	}

	rendered, err := s.render(session, img)
	if err != nil {
		return nil, err
	}

	return &CountingOutput{Session: session.Clone(), Rendered: rendered, Applied: applied}, nil
}

// Reset забывает изображение и маркеры сессии; выполняется в очереди её событий.
func (s *CountingService) Reset(ctx context.Context, sessionID string) (*CountingOutput, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.sessions.Reset(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("reset session: %w", err)
	}
	s.log.Debug().Str("session", sessionID).Msg("Session reset")
	return &CountingOutput{Session: session, Applied: true}, nil
}

// Detect распознаёт изображение без сессии (для внешних клиентов).
func (s *CountingService) Detect(ctx context.Context, data []byte, sensitivity int) (entity.Markers, error) {
	img, _, err := s.decoder.Decode(data)
	if err != nil {
		return nil, err
	}
	return DetectMarkers(ctx, s.detector, img, sensitivity)
}

// upload загружает новое изображение. То же изображение повторно не распознаётся,
// чтобы ручные правки сохранялись.
func (s *CountingService) upload(ctx context.Context, session *entity.Session, up *entity.Upload, log zerolog.Logger) (image.Image, bool, error) {
	img, format, err := s.decoder.Decode(up.Data)
	if err != nil {
		return nil, false, err
	}

	identity := entity.NewImageIdentity(up.Data)
	if !session.NeedsDetection(identity, false) {
		log.Debug().Str("image", identity.Short()).Msg("Same image, keeping markers")
		return img, false, nil
	}

	started := s.now()
	markers, err := DetectMarkers(ctx, s.detector, img, session.Settings.Sensitivity)
	if err != nil {
		return nil, false, err
	}

	session.LoadImage(up.Name, up.Data, identity, markers)
	log.Info().
		Str("image", identity.Short()).
		Str("name", up.Name).
		Str("format", format).
		Int("count", len(markers)).
		Dur("took", s.now().Sub(started)).
		Msg("Image detected")
	return img, true, nil
}

// rescan заново распознаёт текущее изображение, маркеры заменяются целиком.
func (s *CountingService) rescan(ctx context.Context, session *entity.Session, log zerolog.Logger) (image.Image, error) {
	if !session.HasImage() {
		return nil, entity.ErrNoImage
	}

	img, _, err := s.decoder.Decode(session.Image)
	if err != nil {
		return nil, err
	}

	markers, err := DetectMarkers(ctx, s.detector, img, session.Settings.Sensitivity)
	if err != nil {
		return nil, err
	}

	session.ReplaceMarkers(markers)
	log.Info().Str("image", session.Identity.Short()).Int("count", len(markers)).Msg("Image rescanned")
	return img, nil
}

func (s *CountingService) render(session *entity.Session, img image.Image) (image.Image, error) {
	if !session.HasImage() {
		return nil, nil
	}
	if img == nil {
		var err error
		img, _, err = s.decoder.Decode(session.Image)
		if err != nil {
			return nil, fmt.Errorf("decode stored image: %w", err)
		}
	}

	out, err := s.renderer.Render(img, session.Markers, session.Settings)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return out, nil
}
