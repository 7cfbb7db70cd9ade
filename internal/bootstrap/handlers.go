package bootstrap

import (
	"log/slog"

	"github.com/eleven-am/lecture-transcriber/internal/metrics"
	"github.com/eleven-am/lecture-transcriber/internal/session"
	"github.com/eleven-am/lecture-transcriber/internal/web"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

func ProvideSessionHandler(store *session.Store, logger *slog.Logger) *session.Handler {
	return session.NewHandler(store, logger)
}

func ProvideWebHandler(cfg *Config, logger *slog.Logger) *web.Handler {
	return web.NewHandler(web.Config{
		StaticDir: cfg.Server.StaticDir,
		Window:    cfg.Live.Window,
	}, logger)
}

type HandlerParams struct {
	fx.In

	SessionHandler *session.Handler
	WebHandler     *web.Handler
	Metrics        *metrics.Metrics
}

func RegisterRoutes(e *echo.Echo, params HandlerParams) {
	api := e.Group("/api/v1")
	params.SessionHandler.RegisterRoutes(api)

	e.GET("/metrics", echo.WrapHandler(params.Metrics.Handler()))
	params.WebHandler.RegisterRoutes(e)
}

var HandlersModule = fx.Options(
	fx.Provide(
		ProvideSessionHandler,
		ProvideWebHandler,
	),
	fx.Invoke(RegisterRoutes),
)
