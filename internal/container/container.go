package container

import (
	"github.com/rs/zerolog"

	app "tube-counter/internal/application"
	"tube-counter/internal/domain/port"
)

type Container struct {
	SessionService  *app.SessionService
	CountingService *app.CountingService
}

func New(sessionRepo port.SessionRepository, detector port.TubeDetector, renderer port.OverlayRenderer, decoder port.ImageDecoder, log zerolog.Logger) *Container {
	sessionService := app.NewSessionService(sessionRepo)
	countingService := app.NewCountingService(sessionService, detector, renderer, decoder, log)

	return &Container{
		SessionService:  sessionService,
		CountingService: countingService,
	}
}
