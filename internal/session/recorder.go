package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/eleven-am/lecture-transcriber/internal/realtime"
	"github.com/eleven-am/lecture-transcriber/internal/shared"
)

// Recorder persists live session lifecycles to the store.
type Recorder struct {
	store  *Store
	logger *slog.Logger
}

var _ realtime.Recorder = (*Recorder)(nil)

func NewRecorder(store *Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger.With("component", "session_recorder")}
}

func (r *Recorder) SessionStarted(ctx context.Context, id, remoteAddr string) error {
	if err := r.store.CreateSession(ctx, &Session{ID: id, RemoteAddr: remoteAddr}); err != nil {
		return fmt.Errorf("create session record: %w", err)
	}
	return r.store.IncrementMetric(ctx, FieldSessions, 1)
}

func (r *Recorder) SessionEnded(ctx context.Context, id string, stats realtime.Stats, cause error) error {
	status := StatusEnded
	if cause != nil {
		status = StatusError
	}

	err := r.store.EndSession(ctx, id, status, func(s *Session) {
		s.Windows = int64(stats.Windows)
		s.Results = int64(stats.Results)
		s.Errors = int64(stats.Errors)
		s.Dropped = int64(stats.Dropped)
		s.AudioBytes = int64(stats.AudioBytes)
		if cause != nil {
			s.Error = cause.Error()
		}
	})
	if errors.Is(err, shared.ErrNotFound) {
		r.logger.Warn("session record missing at end", "session_id", id)
	} else if err != nil {
		return fmt.Errorf("end session record: %w", err)
	}

	return r.store.IncrementMetrics(ctx, map[string]int64{
		FieldWindows:    int64(stats.Windows),
		FieldResults:    int64(stats.Results),
		FieldErrors:     int64(stats.Errors),
		FieldDropped:    int64(stats.Dropped),
		FieldAudioBytes: int64(stats.AudioBytes),
	})
}
