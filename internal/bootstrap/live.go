package bootstrap

import (
	"context"
	"log/slog"

	"github.com/eleven-am/lecture-transcriber/internal/audio"
	"github.com/eleven-am/lecture-transcriber/internal/metrics"
	"github.com/eleven-am/lecture-transcriber/internal/realtime"
	"github.com/eleven-am/lecture-transcriber/internal/transcription"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type ManagerParams struct {
	fx.In

	Lifecycle   fx.Lifecycle
	Config      *Config
	Transcriber transcription.Transcriber
	Recorder    realtime.Recorder
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

func ProvideRealtimeManager(params ManagerParams) *realtime.Manager {
	mgr := realtime.NewManager(realtime.ManagerConfig{
		Config:      params.Config.RealtimeConfig(),
		Transcriber: params.Transcriber,
		Recorder:    params.Recorder,
		Metrics:     params.Metrics,
		Log:         params.Logger,
	})

	params.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, params.Config.Server.ShutdownTimeout)
			defer cancel()
			return mgr.Shutdown(ctx)
		},
	})
	return mgr
}

func ProvideRealtimeHandler(mgr *realtime.Manager, cfg *Config, logger *slog.Logger) *realtime.Handler {
	return realtime.NewHandler(mgr, cfg.WSOptions(), logger)
}

func ProvideAudioHandler(transcriber transcription.Transcriber, m *metrics.Metrics, logger *slog.Logger) *audio.Handler {
	return audio.NewHandler(transcriber, m, logger)
}

type LiveRouteParams struct {
	fx.In

	Handler      *realtime.Handler
	AudioHandler *audio.Handler
}

func RegisterLiveRoutes(e *echo.Echo, params LiveRouteParams) {
	params.Handler.RegisterRoutes(e)
	params.AudioHandler.RegisterRoutes(e)
}

var LiveModule = fx.Options(
	fx.Provide(
		ProvideRealtimeManager,
		ProvideRealtimeHandler,
		ProvideAudioHandler,
	),
	fx.Invoke(RegisterLiveRoutes),
)
