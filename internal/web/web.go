package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/eleven-am/lecture-transcriber/internal/audio"
	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Renderer executes the embedded page templates for echo.
type Renderer struct {
	templates *template.Template
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{templates: tmpl}, nil
}

func (r *Renderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

type Config struct {
	StaticDir  string
	Window     time.Duration
	SampleRate int
}

type pageData struct {
	Title       string
	MaxUploadMB int
	Formats     string
	WindowMs    int64
	SampleRate  int
}

type Handler struct {
	cfg    Config
	logger *slog.Logger
}

func NewHandler(cfg Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.DefaultFormat.SampleRate
	}
	return &Handler{cfg: cfg, logger: logger.With("handler", "web")}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.page("index.html", "Home"))
	e.GET("/upload", h.page("upload.html", "Upload"))
	e.GET("/live", h.page("live.html", "Live"))
	if h.cfg.StaticDir != "" {
		e.Static("/static", h.cfg.StaticDir)
	}
}

func (h *Handler) page(name, title string) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := c.Render(http.StatusOK, name, pageData{
			Title:       title,
			MaxUploadMB: audio.MaxUploadSizeMB,
			Formats:     audio.SupportedFormats(),
			WindowMs:    h.cfg.Window.Milliseconds(),
			SampleRate:  h.cfg.SampleRate,
		})
		if err != nil {
			h.logger.Error("render failed", "page", name, "error", err)
		}
		return err
	}
}
