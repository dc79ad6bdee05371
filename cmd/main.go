package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"tube-counter/config"
	"tube-counter/internal/api/telegram"
	"tube-counter/internal/api/web"
	"tube-counter/internal/container"
	"tube-counter/internal/domain/port"
	"tube-counter/internal/infrastructure/overlay"
	"tube-counter/internal/infrastructure/storage"
	"tube-counter/internal/infrastructure/vision"
	"tube-counter/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("info", true)
		bootLog.Fatal().Err(err).Msg("Failed to load config")
	}

	log := logging.New(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Хранилище сессий
	sessionRepo, closeRepo := newSessionRepository(cfg, log)
	defer closeRepo()

	// Модель загружается один раз при старте
	detector, closeDetector := newDetector(cfg, log)
	defer closeDetector()

	renderer := overlay.NewRenderer(cfg.FontPath, log)

	// Собираем сервисы приложения
	appContainer := container.New(sessionRepo, detector, renderer, overlay.Codec{}, log)

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, appContainer.CountingService, appContainer.SessionService, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create bot")
		}
		go func() {
			log.Info().Msg("Bot is running")
			if err := bot.Run(ctx); err != nil {
				log.Error().Err(err).Msg("Bot error")
			}
		}()
	}

	server := web.NewServer(appContainer.CountingService, web.Options{
		Addr:          cfg.HTTPAddr,
		UploadLimitMB: cfg.UploadLimitMB,
		RateLimit:     cfg.RateLimit,
	}, log)

	if err := server.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("HTTP server error")
	}
	log.Info().Msg("Stopped")
}

func newSessionRepository(cfg *config.Config, log zerolog.Logger) (port.SessionRepository, func()) {
	if cfg.StorageKind != "sqlite" {
		return storage.NewMemorySessionRepository(), func() {}
	}

	repo, err := storage.NewSQLiteSessionRepository(cfg.SQLitePath, log)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.SQLitePath).Msg("Failed to open session store")
	}
	return repo, func() {
		if err := repo.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close session store")
		}
	}
}

func newDetector(cfg *config.Config, log zerolog.Logger) (port.TubeDetector, func()) {
	if cfg.DetectorKind == "remote" {
		detector, err := vision.NewRemoteDetector(cfg.RemoteURL, &http.Client{Timeout: cfg.DetectorTimeout})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create remote detector")
		}
		log.Info().Str("url", cfg.RemoteURL).Msg("Using remote detector")
		return detector, func() {}
	}

	yoloCfg := vision.DefaultYOLOConfig(cfg.ModelPath)
	yoloCfg.InputSize = cfg.InputSize
	yoloCfg.NMSThreshold = float32(cfg.NMSThreshold)

	detector, err := vision.NewYOLODetector(yoloCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load model")
	}
	if !vision.Enabled {
		log.Warn().Msg("Built without gocv tag: detection is disabled, use DETECTOR_KIND=remote")
	}
	log.Info().Str("model", cfg.ModelPath).Msg("Model loaded")

	return detector, func() {
		if err := detector.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close detector")
		}
	}
}
