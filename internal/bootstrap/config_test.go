package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/eleven-am/lecture-transcriber/internal/audio"
	"github.com/google/go-cmp/cmp"
	"github.com/sethvargo/go-envconfig"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(context.Background(), envconfig.MapLookuper(nil))
	if err != nil {
		t.Fatalf("loadConfig error: %v", err)
	}

	want := Config{
		Server: ServerConfig{
			Addr:            ":8080",
			StaticDir:       "./static",
			BodyLimit:       "30M",
			UploadBodyLimit: "1G",
			ShutdownTimeout: 15 * time.Second,
		},
		Log:   LogConfig{Level: "info", Format: "json"},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Transcription: TranscriptionConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "whisper-1",
			Timeout: 60 * time.Second,
		},
		Live: LiveConfig{
			Window:        3 * time.Second,
			Language:      "en",
			MaxInFlight:   3,
			MaxQueued:     16,
			MaxFrameBytes: 1 << 20,
			SendBuffer:    64,
		},
	}
	if diff := cmp.Diff(want, *cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := writeConfigFile(t, `
server:
  addr: ":9090"
log:
  level: debug
  format: text
transcription:
  base_url: http://whisper.internal/v1
  timeout: 2m
live:
  window: 5s
  max_in_flight: 2
`)

	cfg, err := loadConfig(context.Background(), envconfig.MapLookuper(map[string]string{
		"CONFIG_FILE":           path,
		"LIVE_MAX_IN_FLIGHT":    "4",
		"TRANSCRIPTION_API_KEY": "sk-env",
	}))
	if err != nil {
		t.Fatalf("loadConfig error: %v", err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Errorf("expected file addr, got %s", cfg.Server.Addr)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("unexpected log config %+v", cfg.Log)
	}
	if cfg.Transcription.BaseURL != "http://whisper.internal/v1" || cfg.Transcription.Timeout != 2*time.Minute {
		t.Errorf("unexpected transcription config %+v", cfg.Transcription)
	}
	if cfg.Transcription.APIKey != "sk-env" {
		t.Errorf("expected api key from env, got %q", cfg.Transcription.APIKey)
	}
	if cfg.Live.Window != 5*time.Second {
		t.Errorf("expected file window, got %s", cfg.Live.Window)
	}
	if cfg.Live.MaxInFlight != 4 {
		t.Errorf("env should overwrite file value, got %d", cfg.Live.MaxInFlight)
	}
	if cfg.Live.MaxQueued != 16 {
		t.Errorf("unset values should keep defaults, got %d", cfg.Live.MaxQueued)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"missing file", map[string]string{"CONFIG_FILE": "/nonexistent/config.yaml"}, "failed to read config file"},
		{"bad duration", map[string]string{"LIVE_WINDOW": "soon"}, "process env"},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}, "log format"},
		{"negative in flight", map[string]string{"LIVE_MAX_IN_FLIGHT": "-1"}, "max in flight"},
		{"negative queue", map[string]string{"LIVE_MAX_QUEUED": "-2"}, "max queued"},
		{"negative sessions", map[string]string{"LIVE_MAX_SESSIONS": "-1"}, "max sessions"},
		{"negative frame limit", map[string]string{"LIVE_MAX_FRAME_BYTES": "-1"}, "max frame bytes"},
		{"window below one sample", map[string]string{"LIVE_WINDOW": "1ns"}, "shorter than one sample"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(context.Background(), envconfig.MapLookuper(tt.env))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadConfig_BadYAML(t *testing.T) {
	path := writeConfigFile(t, "live: [unterminated")
	_, err := loadConfig(context.Background(), envconfig.MapLookuper(map[string]string{"CONFIG_FILE": path}))
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestConfig_Derived(t *testing.T) {
	cfg, err := loadConfig(context.Background(), envconfig.MapLookuper(map[string]string{
		"LIVE_MAX_SESSIONS":     "10",
		"TRANSCRIPTION_API_KEY": "sk-test",
	}))
	if err != nil {
		t.Fatalf("loadConfig error: %v", err)
	}

	rt := cfg.RealtimeConfig()
	if rt.Format != audio.DefaultFormat || rt.MaxSessions != 10 || rt.Model != "whisper-1" || rt.Language != "en" {
		t.Errorf("unexpected realtime config %+v", rt)
	}
	if rt.Threshold() != 96000 {
		t.Errorf("expected 96000 byte threshold, got %d", rt.Threshold())
	}

	tc := cfg.TranscriptionConfig()
	if tc.APIKey != "sk-test" || tc.Timeout != time.Minute {
		t.Errorf("unexpected transcription config %+v", tc)
	}

	ws := cfg.WSOptions()
	if ws.MaxFrameBytes != 1<<20 || ws.SendBuffer != 64 {
		t.Errorf("unexpected ws options %+v", ws)
	}
}
