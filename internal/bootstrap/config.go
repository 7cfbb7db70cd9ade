package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/eleven-am/lecture-transcriber/internal/audio"
	"github.com/eleven-am/lecture-transcriber/internal/realtime"
	"github.com/eleven-am/lecture-transcriber/internal/transcription"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

const configFileEnv = "CONFIG_FILE"

// Config is layered: defaults, then the optional YAML file named by
// CONFIG_FILE, then the environment.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Log           LogConfig           `yaml:"log"`
	Redis         RedisConfig         `yaml:"redis"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Live          LiveConfig          `yaml:"live"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"SERVER_ADDR, overwrite, default=:8080"`
	StaticDir       string        `yaml:"static_dir" env:"STATIC_DIR, overwrite, default=./static"`
	BodyLimit       string        `yaml:"body_limit" env:"BODY_LIMIT, overwrite, default=30M"`
	UploadBodyLimit string        `yaml:"upload_body_limit" env:"UPLOAD_BODY_LIMIT, overwrite, default=1G"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT, overwrite, default=15s"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL, overwrite, default=info"`
	Format string `yaml:"format" env:"LOG_FORMAT, overwrite, default=json"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR, overwrite, default=localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD, overwrite"`
	DB       int    `yaml:"db" env:"REDIS_DB, overwrite"`
}

type TranscriptionConfig struct {
	BaseURL string        `yaml:"base_url" env:"TRANSCRIPTION_BASE_URL, overwrite, default=https://api.openai.com/v1"`
	APIKey  string        `yaml:"api_key" env:"TRANSCRIPTION_API_KEY, overwrite"`
	Model   string        `yaml:"model" env:"TRANSCRIPTION_MODEL, overwrite, default=whisper-1"`
	Timeout time.Duration `yaml:"timeout" env:"TRANSCRIPTION_TIMEOUT, overwrite, default=60s"`
}

type LiveConfig struct {
	Window        time.Duration `yaml:"window" env:"LIVE_WINDOW, overwrite, default=3s"`
	Language      string        `yaml:"language" env:"LIVE_LANGUAGE, overwrite, default=en"`
	MaxInFlight   int           `yaml:"max_in_flight" env:"LIVE_MAX_IN_FLIGHT, overwrite, default=3"`
	MaxQueued     int           `yaml:"max_queued" env:"LIVE_MAX_QUEUED, overwrite, default=16"`
	MaxSessions   int           `yaml:"max_sessions" env:"LIVE_MAX_SESSIONS, overwrite"`
	MaxFrameBytes int64         `yaml:"max_frame_bytes" env:"LIVE_MAX_FRAME_BYTES, overwrite, default=1048576"`
	SendBuffer    int           `yaml:"send_buffer" env:"LIVE_SEND_BUFFER, overwrite, default=64"`
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return loadConfig(context.Background(), envconfig.OsLookuper())
}

func loadConfig(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config

	if path, ok := lookuper.Lookup(configFileEnv); ok && path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log format must be json or text, got %q", c.Log.Format)
	}
	if c.Transcription.BaseURL == "" {
		return errors.New("transcription base url is required")
	}
	if c.Transcription.Timeout <= 0 {
		return fmt.Errorf("transcription timeout must be positive, got %s", c.Transcription.Timeout)
	}
	if err := c.Live.Validate(); err != nil {
		return fmt.Errorf("live: %w", err)
	}
	return nil
}

func (l LiveConfig) Validate() error {
	if l.Window <= 0 {
		return fmt.Errorf("window must be positive, got %s", l.Window)
	}
	if l.MaxInFlight < 1 {
		return fmt.Errorf("max in flight must be at least 1, got %d", l.MaxInFlight)
	}
	if l.MaxQueued < 0 {
		return fmt.Errorf("max queued must not be negative, got %d", l.MaxQueued)
	}
	if l.MaxSessions < 0 {
		return fmt.Errorf("max sessions must not be negative, got %d", l.MaxSessions)
	}
	if l.MaxFrameBytes <= 0 {
		return fmt.Errorf("max frame bytes must be positive, got %d", l.MaxFrameBytes)
	}
	if (realtime.Config{Window: l.Window, Format: audio.DefaultFormat}).Threshold() <= 0 {
		return fmt.Errorf("window %s is shorter than one sample", l.Window)
	}
	return nil
}

func (c *Config) RealtimeConfig() realtime.Config {
	return realtime.Config{
		Window:      c.Live.Window,
		Format:      audio.DefaultFormat,
		Language:    c.Live.Language,
		Model:       c.Transcription.Model,
		MaxInFlight: c.Live.MaxInFlight,
		MaxQueued:   c.Live.MaxQueued,
		MaxSessions: c.Live.MaxSessions,
	}
}

func (c *Config) WSOptions() realtime.WSOptions {
	return realtime.WSOptions{
		MaxFrameBytes: c.Live.MaxFrameBytes,
		SendBuffer:    c.Live.SendBuffer,
	}
}

func (c *Config) TranscriptionConfig() transcription.Config {
	return transcription.Config{
		BaseURL: c.Transcription.BaseURL,
		APIKey:  c.Transcription.APIKey,
		Model:   c.Transcription.Model,
		Timeout: c.Transcription.Timeout,
	}
}
