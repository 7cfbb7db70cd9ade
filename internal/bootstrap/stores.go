package bootstrap

import (
	"log/slog"

	"github.com/eleven-am/lecture-transcriber/internal/realtime"
	"github.com/eleven-am/lecture-transcriber/internal/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

func ProvideSessionStore(redisClient *redis.Client) *session.Store {
	return session.NewStore(redisClient)
}

func ProvideRecorder(store *session.Store, logger *slog.Logger) realtime.Recorder {
	return session.NewRecorder(store, logger)
}

var StoresModule = fx.Options(
	fx.Provide(
		ProvideSessionStore,
		ProvideRecorder,
	),
)
