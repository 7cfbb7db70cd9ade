package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/lecture-transcriber/internal/metrics"
	"github.com/eleven-am/lecture-transcriber/internal/shared"
	"github.com/eleven-am/lecture-transcriber/internal/transcription"
)

const recorderTimeout = 5 * time.Second

var (
	ErrManagerClosed   = errors.New("live session manager is shut down")
	ErrTooManySessions = errors.New("too many live sessions")
)

// Recorder is told when sessions start and end. Calls happen on the
// connection goroutine outside the frame loop.
type Recorder interface {
	SessionStarted(ctx context.Context, id, remoteAddr string) error
	SessionEnded(ctx context.Context, id string, stats Stats, cause error) error
}

type ManagerConfig struct {
	Config

	Transcriber transcription.Transcriber
	Recorder    Recorder
	Metrics     *metrics.Metrics
	Log         *slog.Logger
}

type Manager struct {
	cfg ManagerConfig
	log *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool

	// active tracks sessions from registration until their dispatches drain.
	active sync.WaitGroup
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	cfg.Config = cfg.Config.withDefaults()
	return &Manager{
		cfg:      cfg,
		log:      cfg.Log.With("component", "live"),
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Config() Config {
	return m.cfg.Config
}

// Start runs a session on conn until it closes. The session is removed from
// the registry as soon as its loop exits; its dispatches finish in the
// background.
func (m *Manager) Start(ctx context.Context, conn Conn, remoteAddr string) error {
	s := NewSession(SessionConfig{
		Config:      m.cfg.Config,
		ID:          shared.NewID("live_"),
		RemoteAddr:  remoteAddr,
		Conn:        conn,
		Transcriber: m.cfg.Transcriber,
		Metrics:     m.cfg.Metrics,
		Log:         m.log,
	})

	if err := m.register(s); err != nil {
		_ = conn.Close()
		return err
	}

	m.cfg.Metrics.SessionOpened()
	m.record(ctx, func(rctx context.Context) error {
		return m.cfg.Recorder.SessionStarted(rctx, s.ID(), remoteAddr)
	})

	runErr := s.Run(ctx)

	m.unregister(s.ID())
	m.cfg.Metrics.SessionClosed(time.Since(s.StartedAt()))
	m.record(ctx, func(rctx context.Context) error {
		return m.cfg.Recorder.SessionEnded(rctx, s.ID(), s.Stats(), runErr)
	})

	go func() {
		defer m.active.Done()
		_ = s.Wait(context.Background())
	}()

	return runErr
}

func (m *Manager) register(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrManagerClosed
	}
	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		return ErrTooManySessions
	}
	m.sessions[s.ID()] = s
	m.active.Add(1)
	return nil
}

func (m *Manager) unregister(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

func (m *Manager) record(ctx context.Context, fn func(context.Context) error) {
	if m.cfg.Recorder == nil {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recorderTimeout)
	defer cancel()
	if err := fn(rctx); err != nil {
		m.log.Warn("failed to record live session", "error", err)
	}
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Full reports whether a new session would be refused.
func (m *Manager) Full() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed || (m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions)
}

// Shutdown refuses new sessions, closes every open one and waits for all
// outstanding dispatches or ctx, whichever comes first.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()

	m.log.Info("closing live sessions", "count", len(open))
	for _, s := range open {
		s.Close()
	}

	done := make(chan struct{})
	go func() {
		m.active.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
