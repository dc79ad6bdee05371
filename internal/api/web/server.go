package web

import (
	"context"
	"embed"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	app "tube-counter/internal/application"
	"tube-counter/internal/domain/entity"
)

//go:embed static/index.html
var staticFiles embed.FS

// Options параметры HTTP-сервера
type Options struct {
	Addr          string
	UploadLimitMB int
	RateLimit     int // загрузок в минуту с одного IP, 0 — без ограничения
}

// Server веб-интерфейс подсчёта трубок
type Server struct {
	counting *app.CountingService
	opts     Options
	log      zerolog.Logger
	engine   *gin.Engine
	http     *http.Server
}

// NewServer создаёт сервер и регистрирует маршруты.
func NewServer(counting *app.CountingService, opts Options, log zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		counting: counting,
		opts:     opts,
		log:      log,
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery(), requestLogger(log))
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/", s.handleIndex)
	s.engine.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	limited := rateLimit(s.opts.RateLimit)

	api := s.engine.Group("/api/session", s.withSession)
	api.GET("", s.handleView)
	api.GET("/image", s.handleImage)
	api.POST("/upload", limited, s.handleUpload)
	api.POST("/click", s.handleClick)
	api.POST("/undo", s.handleAction(entity.EventUndo))
	api.POST("/clear", s.handleAction(entity.EventClear))
	api.POST("/rescan", limited, s.handleAction(entity.EventRescan))
	api.PUT("/settings", s.handleSettings)
	api.POST("/reset", s.handleReset)

	s.engine.POST("/detect", limited, s.handleDetect)
}

// Handler возвращает http.Handler (для тестов и встраивания)
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run слушает адрес до отмены ctx.
func (s *Server) Run(ctx context.Context) error {
	s.http = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.opts.Addr).Msg("HTTP server is running")
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

// requestLogger пишет каждый запрос в zerolog.
func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ev := log.Debug()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = log.Error()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("HTTP request")
	}
}

// rateLimit оборачивает httprate для gin.
func rateLimit(perMinute int) gin.HandlerFunc {
	if perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := httprate.LimitByIP(perMinute, time.Minute)
	return func(c *gin.Context) {
		passed := false
		limiter(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
		})).ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
			return
		}
		c.Next()
	}
}
