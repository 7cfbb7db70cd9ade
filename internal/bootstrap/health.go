package bootstrap

import (
	"github.com/eleven-am/lecture-transcriber/internal/health"
	"github.com/eleven-am/lecture-transcriber/internal/realtime"
	"github.com/eleven-am/lecture-transcriber/internal/session"
	"github.com/eleven-am/lecture-transcriber/internal/transcription"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

const version = "1.0.0"

func ProvideHealthHandler(
	store *session.Store,
	mgr *realtime.Manager,
	sttConfig transcription.Config,
) *health.Handler {
	return health.NewHandler(store, mgr, sttConfig, version)
}

func RegisterHealthRoutes(e *echo.Echo, h *health.Handler) {
	e.Use(h.Middleware())
	h.RegisterRoutes(e)
}

var HealthModule = fx.Options(
	fx.Provide(ProvideHealthHandler),
	fx.Invoke(RegisterHealthRoutes),
)
