package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/eleven-am/lecture-transcriber/internal/web"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

var defaultCORSConfig = middleware.CORSConfig{
	AllowOrigins: []string{"*"},
	AllowMethods: []string{
		http.MethodGet,
		http.MethodHead,
		http.MethodPost,
		http.MethodOptions,
	},
	AllowHeaders: []string{
		"Accept",
		"Authorization",
		"Content-Type",
		"X-Requested-With",
	},
	MaxAge: 86400,
}

// uploadPaths carry whole audio files and get their own body ceiling so the
// upload handler can answer oversized files with a 400 naming the real size.
var uploadPaths = map[string]bool{
	"/transcribe":                  true,
	"/api/v1/audio/transcriptions": true,
}

func isUpload(c echo.Context) bool {
	return uploadPaths[c.Request().URL.Path]
}

func NewEchoServer(cfg *Config) (*echo.Echo, error) {
	renderer, err := web.NewRenderer()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(defaultCORSConfig))
	e.Use(middleware.BodyLimitWithConfig(middleware.BodyLimitConfig{
		Skipper: isUpload,
		Limit:   cfg.Server.BodyLimit,
	}))
	e.Use(middleware.BodyLimitWithConfig(middleware.BodyLimitConfig{
		Skipper: func(c echo.Context) bool { return !isUpload(c) },
		Limit:   cfg.Server.UploadBodyLimit,
	}))
	return e, nil
}

func StartServer(lc fx.Lifecycle, e *echo.Echo, cfg *Config, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info("http server starting", "addr", cfg.Server.Addr)
				if err := e.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server error", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return e.Shutdown(ctx)
		},
	})
}

var ServerModule = fx.Options(
	fx.Provide(NewEchoServer),
	fx.Invoke(StartServer),
)

func Run() {
	fx.New(
		fx.Provide(LoadConfig),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger}
		}),
		InfrastructureModule,
		StoresModule,
		ServerModule,
		HealthModule,
		LiveModule,
		HandlersModule,
	).Run()
}
