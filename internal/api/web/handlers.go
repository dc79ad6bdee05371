package web

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	app "tube-counter/internal/application"
	"tube-counter/internal/domain/entity"
	"tube-counter/internal/infrastructure/overlay"
)

const (
	sessionCookie = "tube_session"
	sessionKey    = "sessionID"

	msgHelper      = "Tap image to add missing tubes or remove incorrect ones."
	msgUploadFirst = "Please upload a photo to start counting."
	msgFailed      = "Detection failed. Please try again."
)

var allowedExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// sessionView ответ API с состоянием сессии
type sessionView struct {
	State     entity.SessionState    `json:"state"`
	ImageName string                 `json:"imageName,omitempty"`
	Count     int                    `json:"count"`
	Markers   entity.Markers         `json:"markers"`
	Settings  entity.DisplaySettings `json:"settings"`
	Image     string                 `json:"image,omitempty"` // data:image/png;base64,...
	Applied   bool                   `json:"applied"`
	Message   string                 `json:"message"`
}

type errorView struct {
	Error string `json:"error"`
}

// withSession достаёт ID сессии из cookie или выдаёт новый.
func (s *Server) withSession(c *gin.Context) {
	id, err := c.Cookie(sessionCookie)
	if err != nil || id == "" {
		id = uuid.NewString()
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(sessionCookie, id, 7*24*3600, "/", "", false, true)
	}
	c.Set(sessionKey, id)
	c.Next()
}

func (s *Server) handleIndex(c *gin.Context) {
	page, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		c.String(http.StatusInternalServerError, "page is missing")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

func (s *Server) handleView(c *gin.Context) {
	s.dispatch(c, entity.Event{Kind: entity.EventRender})
}

// handleImage отдаёт текущую картинку с маркерами в PNG.
func (s *Server) handleImage(c *gin.Context) {
	out, err := s.counting.Dispatch(c.Request.Context(), c.GetString(sessionKey), entity.Event{Kind: entity.EventRender})
	if err != nil {
		s.fail(c, err)
		return
	}
	if out.Rendered == nil {
		c.JSON(http.StatusNotFound, errorView{Error: msgUploadFirst})
		return
	}

	data, err := overlay.EncodePNG(out.Rendered)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", data)
}

func (s *Server) handleUpload(c *gin.Context) {
	name, data, ok := s.readUpload(c)
	if !ok {
		return
	}
	s.dispatch(c, entity.Event{Kind: entity.EventUpload, Upload: &entity.Upload{Name: name, Data: data}})
}

func (s *Server) handleClick(c *gin.Context) {
	var click entity.Click
	if err := c.ShouldBindJSON(&click); err != nil {
		c.JSON(http.StatusBadRequest, errorView{Error: "invalid click: " + err.Error()})
		return
	}
	s.dispatch(c, entity.Event{Kind: entity.EventClick, Click: &click})
}

func (s *Server) handleAction(kind entity.EventKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.dispatch(c, entity.Event{Kind: kind})
	}
}

func (s *Server) handleSettings(c *gin.Context) {
	var settings entity.DisplaySettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, errorView{Error: "invalid settings: " + err.Error()})
		return
	}
	s.dispatch(c, entity.Event{Kind: entity.EventSettings, Settings: &settings})
}

func (s *Server) handleReset(c *gin.Context) {
	out, err := s.counting.Reset(c.Request.Context(), c.GetString(sessionKey))
	if err != nil {
		s.fail(c, err)
		return
	}

	view, err := toView(out)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// handleDetect распознаёт изображение без сессии: POST /detect?sensitivity=N, поле file.
func (s *Server) handleDetect(c *gin.Context) {
	sensitivity := entity.DefaultSensitivity
	if raw := c.Query("sensitivity"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorView{Error: "sensitivity must be an integer"})
			return
		}
		sensitivity = v
	}

	_, data, ok := s.readUpload(c)
	if !ok {
		return
	}

	markers, err := s.counting.Detect(c.Request.Context(), data, sensitivity)
	if err != nil {
		s.fail(c, err)
		return
	}

	points := make([]entity.Marker, len(markers))
	copy(points, markers)
	c.JSON(http.StatusOK, gin.H{"count": len(points), "points": points})
}

// readUpload читает поле формы file и проверяет расширение и размер.
func (s *Server) readUpload(c *gin.Context) (string, []byte, bool) {
	limit := int64(s.opts.UploadLimitMB) << 20
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+1<<20)

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorView{Error: "Failed to read form file"})
		return "", nil, false
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(header.Filename))] {
		c.JSON(http.StatusBadRequest, errorView{Error: "Only PNG and JPEG images are accepted"})
		return "", nil, false
	}
	if header.Size > limit {
		c.JSON(http.StatusRequestEntityTooLarge, errorView{Error: "Image is too large"})
		return "", nil, false
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorView{Error: "Failed to open form file"})
		return "", nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorView{Error: "Failed to read form file"})
		return "", nil, false
	}
	return header.Filename, data, true
}

func (s *Server) dispatch(c *gin.Context, ev entity.Event) {
	out, err := s.counting.Dispatch(c.Request.Context(), c.GetString(sessionKey), ev)
	if err != nil {
		s.fail(c, err)
		return
	}

	view, err := toView(out)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func toView(out *app.CountingOutput) (*sessionView, error) {
	view := &sessionView{
		State:     out.Session.State,
		ImageName: out.Session.ImageName,
		Count:     out.Count(),
		Markers:   out.Session.Markers,
		Settings:  out.Session.Settings,
		Applied:   out.Applied,
		Message:   msgUploadFirst,
	}
	if out.Rendered != nil {
		data, err := overlay.EncodePNG(out.Rendered)
		if err != nil {
			return nil, err
		}
		view.Image = "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
		view.Message = msgHelper
	}
	return view, nil
}

// fail переводит ошибку в HTTP-ответ. Ошибки модели показываются общим сообщением.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, entity.ErrNoImage):
		c.JSON(http.StatusConflict, errorView{Error: msgUploadFirst})
	case errors.Is(err, overlay.ErrUnsupportedFormat),
		errors.Is(err, entity.ErrInvalidSensitivity),
		errors.Is(err, entity.ErrInvalidMarkerSize),
		errors.Is(err, entity.ErrInvalidColor),
		errors.Is(err, entity.ErrInvalidClick):
		c.JSON(http.StatusBadRequest, errorView{Error: err.Error()})
	default:
		s.log.Error().Err(err).Str("session", c.GetString(sessionKey)).Str("path", c.Request.URL.Path).Msg("Request failed")
		c.JSON(http.StatusInternalServerError, errorView{Error: msgFailed})
	}
}
