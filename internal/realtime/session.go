package realtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eleven-am/lecture-transcriber/internal/audio"
	"github.com/eleven-am/lecture-transcriber/internal/metrics"
	"github.com/eleven-am/lecture-transcriber/internal/shared"
	"github.com/eleven-am/lecture-transcriber/internal/transcription"
)

type State int32

const (
	StateOpen State = iota
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Stats are the running counters of one session.
type Stats struct {
	Frames     uint64
	AudioBytes uint64
	Windows    uint64
	Results    uint64
	Errors     uint64
	Dropped    uint64
}

type SessionConfig struct {
	Config

	ID          string
	RemoteAddr  string
	Conn        Conn
	Transcriber transcription.Transcriber
	Metrics     *metrics.Metrics
	Log         *slog.Logger
}

// Session is the control loop for one live connection. The accumulator and
// sequence counter belong to the Run goroutine; results are delivered from
// dispatch goroutines.
type Session struct {
	id         string
	remoteAddr string
	cfg        Config
	conn       Conn
	acc        *audio.Accumulator
	dispatcher *Dispatcher
	metrics    *metrics.Metrics
	log        *slog.Logger

	seq uint64

	ctx    context.Context
	cancel context.CancelFunc

	// sendMu orders result delivery against the Open->Draining transition:
	// once the write lock has been taken no further Send is attempted.
	sendMu sync.RWMutex
	state  atomic.Int32

	frames, audioBytes, windows atomic.Uint64
	results, errs, dropped      atomic.Uint64

	startedAt time.Time
	done      chan struct{}
}

func NewSession(cfg SessionConfig) *Session {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.ID == "" {
		cfg.ID = shared.NewID("live_")
	}
	pipeline := cfg.Config.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:         cfg.ID,
		remoteAddr: cfg.RemoteAddr,
		cfg:        pipeline,
		conn:       cfg.Conn,
		acc:        audio.NewAccumulator(audio.ThresholdFor(pipeline.Format, pipeline.Window)),
		metrics:    cfg.Metrics,
		log:        cfg.Log.With("session_id", cfg.ID),
		ctx:        ctx,
		cancel:     cancel,
		startedAt:  time.Now(),
		done:       make(chan struct{}),
	}
	s.dispatcher = NewDispatcher(DispatcherConfig{
		Transcriber: cfg.Transcriber,
		Format:      pipeline.Format,
		Language:    pipeline.Language,
		Model:       pipeline.Model,
		MaxInFlight: pipeline.MaxInFlight,
		MaxQueued:   pipeline.MaxQueued,
		Sink:        s.deliver,
		Metrics:     cfg.Metrics,
		Log:         s.log,
	})
	return s
}

func (s *Session) ID() string           { return s.id }
func (s *Session) RemoteAddr() string   { return s.remoteAddr }
func (s *Session) StartedAt() time.Time { return s.startedAt }

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) Stats() Stats {
	return Stats{
		Frames:     s.frames.Load(),
		AudioBytes: s.audioBytes.Load(),
		Windows:    s.windows.Load(),
		Results:    s.results.Load(),
		Errors:     s.errs.Load(),
		Dropped:    s.dropped.Load(),
	}
}

// InFlight counts dispatched windows that have not produced a result yet.
func (s *Session) InFlight() int {
	return s.dispatcher.InFlight()
}

// Done is closed once the session reaches StateClosed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Run reads frames until the transport fails or the session is closed, then
// tears the session down. It does not wait for in-flight dispatches; use
// Wait for that. A clean disconnect returns nil. Run must be called once.
func (s *Session) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, s.Close)
	defer stop()
	defer s.teardown()

	s.log.Info("live session opened", "remote_addr", s.remoteAddr, "threshold_bytes", s.acc.Threshold())
	s.send(ReadyMessage(s.id, s.cfg.Window.Milliseconds()))

	for {
		frame, err := s.conn.ReadFrame()
		if err != nil {
			closing := s.ctx.Err() != nil
			s.drain()
			if closing || errors.Is(err, io.EOF) || errors.Is(err, ErrConnectionClosed) {
				return nil
			}
			return err
		}
		s.handleFrame(frame)
	}
}

func (s *Session) handleFrame(f Frame) {
	if !f.Binary {
		s.handleControl(f.Data)
		return
	}

	s.frames.Add(1)
	s.audioBytes.Add(uint64(len(f.Data)))
	s.metrics.FrameReceived(len(f.Data))

	s.acc.Append(f.Data)
	if window, ok := s.acc.TakeIfReady(); ok {
		s.dispatch(window)
	}
}

func (s *Session) handleControl(data []byte) {
	kind, err := ParseControl(data)
	if err != nil {
		s.log.Debug("rejected text frame", "error", err)
		s.send(ErrorMessage(0, err.Error()))
		return
	}

	if kind == ControlFlush {
		if window, ok := s.acc.Flush(); ok {
			s.dispatch(window)
		}
	}
}

func (s *Session) dispatch(data []byte) {
	s.seq++
	s.windows.Add(1)
	s.metrics.WindowCreated(len(data))
	s.log.Debug("window ready", "seq", s.seq, "bytes", len(data))
	s.dispatcher.Submit(s.ctx, Window{Seq: s.seq, Data: data})
}

// deliver is the dispatcher sink.
func (s *Session) deliver(r Result) {
	if r.Err != nil {
		s.send(ErrorMessage(r.Seq, r.Err.Error()))
		return
	}
	s.send(TranscriptionMessage(r.Seq, r.Text))
}

// send writes msg if the session is still open and reports whether it was
// handed to the transport. Counters are updated under the read lock so they
// are final once the session has drained.
func (s *Session) send(msg *ServerMessage) bool {
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()

	if s.State() != StateOpen || s.ctx.Err() != nil {
		s.dropped.Add(1)
		s.metrics.ResultDropped()
		return false
	}
	if err := s.conn.Send(s.ctx, msg); err != nil {
		s.dropped.Add(1)
		s.metrics.ResultDropped()
		s.log.Debug("send failed", "type", msg.Type, "seq", msg.Seq, "error", err)
		return false
	}

	switch {
	case msg.Type == MessageTypeTranscription:
		s.results.Add(1)
		s.metrics.ResultDelivered(string(msg.Type))
	case msg.Type == MessageTypeError && msg.Seq > 0:
		s.errs.Add(1)
		s.metrics.ResultDelivered(string(msg.Type))
	}
	return true
}

// drain moves Open to Draining. Cancelling first unblocks any Send waiting
// on a full transport buffer so the write lock can be taken.
func (s *Session) drain() {
	s.cancel()
	s.sendMu.Lock()
	s.state.CompareAndSwap(int32(StateOpen), int32(StateDraining))
	s.sendMu.Unlock()
}

// Close ends the session from outside the loop. Safe to call more than once
// and from any goroutine.
func (s *Session) Close() {
	s.drain()
	_ = s.conn.Close()
}

func (s *Session) teardown() {
	s.drain()
	_ = s.conn.Close()

	if pending := s.acc.Len(); pending > 0 {
		s.log.Debug("discarding buffered audio", "bytes", pending)
	}
	s.state.Store(int32(StateClosed))
	close(s.done)

	stats := s.Stats()
	s.log.Info("live session closed",
		"duration_ms", time.Since(s.startedAt).Milliseconds(),
		"windows", stats.Windows,
		"results", stats.Results,
		"errors", stats.Errors,
		"dropped", stats.Dropped,
		"in_flight", s.dispatcher.InFlight())
}

// Wait blocks until every dispatch started by this session has finished.
func (s *Session) Wait(ctx context.Context) error {
	return s.dispatcher.Wait(ctx)
}
