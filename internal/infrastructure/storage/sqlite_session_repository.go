package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tube-counter/internal/domain/entity"
	"tube-counter/internal/domain/port"
)

// sessionRecord строка таблицы sessions
type sessionRecord struct {
	ID        string `gorm:"primaryKey"`
	State     string
	Identity  string `gorm:"index"`
	ImageName string
	Image     []byte
	Markers   datatypes.JSON
	LastClick datatypes.JSON
	Settings  datatypes.JSON
	UpdatedAt time.Time
}

func (sessionRecord) TableName() string {
	return "sessions"
}

// SQLiteSessionRepository хранит сессии в SQLite, чтобы правки переживали перезапуск
type SQLiteSessionRepository struct {
	db  *gorm.DB
	log zerolog.Logger
}

// NewSQLiteSessionRepository открывает базу по пути path (пустой путь — база в памяти)
// и создаёт таблицу.
func NewSQLiteSessionRepository(path string, log zerolog.Logger) (*SQLiteSessionRepository, error) {
	dsn := path
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", dsn, err)
	}

	if err := db.AutoMigrate(&sessionRecord{}); err != nil {
		return nil, fmt.Errorf("migrate sessions: %w", err)
	}

	log.Info().Str("path", dsn).Msg("Using SQLite session store")
	return &SQLiteSessionRepository{db: db, log: log}, nil
}

// Get возвращает сессию по ID, создаёт новую если не найдена
func (r *SQLiteSessionRepository) Get(ctx context.Context, id string) (*entity.Session, error) {
	var rec sessionRecord
	err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entity.NewSession(id), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	return fromRecord(&rec)
}

// Save сохраняет состояние сессии
func (r *SQLiteSessionRepository) Save(ctx context.Context, session *entity.Session) error {
	rec, err := toRecord(session)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Save(rec).Error; err != nil {
		return fmt.Errorf("save session %s: %w", session.ID, err)
	}
	return nil
}

// Delete удаляет сессию
func (r *SQLiteSessionRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Delete(&sessionRecord{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// Close закрывает соединение с базой
func (r *SQLiteSessionRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRecord(s *entity.Session) (*sessionRecord, error) {
	markers, err := json.Marshal(s.Markers)
	if err != nil {
		return nil, fmt.Errorf("encode markers: %w", err)
	}
	settings, err := json.Marshal(s.Settings)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	lastClick := datatypes.JSON("null")
	if s.LastClick != nil {
		b, err := json.Marshal(s.LastClick)
		if err != nil {
			return nil, fmt.Errorf("encode last click: %w", err)
		}
		lastClick = datatypes.JSON(b)
	}

	updated := s.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	return &sessionRecord{
		ID:        s.ID,
		State:     string(s.State),
		Identity:  string(s.Identity),
		ImageName: s.ImageName,
		Image:     s.Image,
		Markers:   datatypes.JSON(markers),
		LastClick: lastClick,
		Settings:  datatypes.JSON(settings),
		UpdatedAt: updated,
	}, nil
}

func fromRecord(rec *sessionRecord) (*entity.Session, error) {
	s := &entity.Session{
		ID:        rec.ID,
		State:     entity.SessionState(rec.State),
		Identity:  entity.ImageIdentity(rec.Identity),
		ImageName: rec.ImageName,
		Image:     rec.Image,
		Markers:   entity.Markers{},
		Settings:  entity.DefaultDisplaySettings(),
		UpdatedAt: rec.UpdatedAt,
	}

	if len(rec.Markers) > 0 {
		if err := json.Unmarshal(rec.Markers, &s.Markers); err != nil {
			return nil, fmt.Errorf("decode markers: %w", err)
		}
		if s.Markers == nil {
			s.Markers = entity.Markers{}
		}
	}
	if len(rec.Settings) > 0 {
		if err := json.Unmarshal(rec.Settings, &s.Settings); err != nil {
			return nil, fmt.Errorf("decode settings: %w", err)
		}
	}
	if len(rec.LastClick) > 0 {
		if err := json.Unmarshal(rec.LastClick, &s.LastClick); err != nil {
			return nil, fmt.Errorf("decode last click: %w", err)
		}
	}

	return s, nil
}

// Проверка реализации интерфейса
var _ port.SessionRepository = (*SQLiteSessionRepository)(nil)
