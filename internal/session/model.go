package session

import (
	"strconv"
	"time"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
	StatusError  Status = "error"
)

// Session is the operational record of one live connection. It never holds
// transcript text.
type Session struct {
	ID           string     `json:"id"`
	RemoteAddr   string     `json:"remote_addr"`
	Status       Status     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	LastActiveAt time.Time  `json:"last_active_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	Windows      int64      `json:"windows"`
	Results      int64      `json:"results"`
	Errors       int64      `json:"errors"`
	Dropped      int64      `json:"dropped"`
	AudioBytes   int64      `json:"audio_bytes"`
	Error        string     `json:"error,omitempty"`
}

func (s *Session) RedisKey() string {
	return SessionRedisKey(s.ID)
}

func SessionRedisKey(id string) string {
	return "session:" + id
}

// Metrics are the counters of one UTC hour.
type Metrics struct {
	Date       string `json:"date"`
	Hour       int    `json:"hour"`
	Sessions   int64  `json:"sessions"`
	Windows    int64  `json:"windows"`
	Results    int64  `json:"results"`
	Errors     int64  `json:"errors"`
	Dropped    int64  `json:"dropped"`
	AudioBytes int64  `json:"audio_bytes"`
}

const (
	FieldSessions   = "sessions"
	FieldWindows    = "windows"
	FieldResults    = "results"
	FieldErrors     = "errors"
	FieldDropped    = "dropped"
	FieldAudioBytes = "audio_bytes"
)

func MetricsRedisKey(date string, hour int) string {
	return "live:metrics:" + date + ":" + strconv.Itoa(hour)
}
