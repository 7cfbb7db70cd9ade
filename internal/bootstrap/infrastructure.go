package bootstrap

import (
	"log/slog"
	"os"
	"strings"

	"github.com/eleven-am/lecture-transcriber/internal/metrics"
	"github.com/eleven-am/lecture-transcriber/internal/transcription"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ProvideLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)}

	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if cfg.Log.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func ProvideRedisClient(cfg *Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func ProvideMetrics() *metrics.Metrics {
	return metrics.New()
}

func ProvideSTTConfig(cfg *Config) transcription.Config {
	return cfg.TranscriptionConfig()
}

func ProvideTranscriber(cfg transcription.Config, logger *slog.Logger) (transcription.Transcriber, error) {
	client, err := transcription.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("speech backend configured", "endpoint", client.Endpoint())
	return client, nil
}

var InfrastructureModule = fx.Options(
	fx.Provide(
		ProvideLogger,
		ProvideRedisClient,
		ProvideMetrics,
		ProvideSTTConfig,
		ProvideTranscriber,
	),
)
