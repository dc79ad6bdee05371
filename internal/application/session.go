package app

import (
	"context"

	"tube-counter/internal/domain/entity"
	"tube-counter/internal/domain/port"
)

type SessionService struct {
	repo port.SessionRepository
}

func NewSessionService(repo port.SessionRepository) *SessionService {
	return &SessionService{repo: repo}
}

func (s *SessionService) Get(ctx context.Context, id string) (*entity.Session, error) {
	return s.repo.Get(ctx, id)
}

func (s *SessionService) Save(ctx context.Context, session *entity.Session) error {
	return s.repo.Save(ctx, session)
}

// Reset забывает изображение и маркеры, настройки возвращаются к значениям по умолчанию.
func (s *SessionService) Reset(ctx context.Context, id string) (*entity.Session, error) {
	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}
