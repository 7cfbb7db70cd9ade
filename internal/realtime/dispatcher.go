package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eleven-am/lecture-transcriber/internal/audio"
	"github.com/eleven-am/lecture-transcriber/internal/metrics"
	"github.com/eleven-am/lecture-transcriber/internal/transcription"
	"golang.org/x/sync/semaphore"
)

var ErrQueueFull = errors.New("dispatch queue full")

// Window is one accumulated span of PCM, immutable once created.
type Window struct {
	Seq  uint64
	Data []byte
}

// Result is the outcome of one dispatched window. Exactly one of Text or Err
// is meaningful.
type Result struct {
	Seq     uint64
	Text    string
	Err     error
	Latency time.Duration
}

type DispatcherConfig struct {
	Transcriber transcription.Transcriber
	Format      audio.Format
	Language    string
	Model       string
	MaxInFlight int
	MaxQueued   int
	// Sink receives every result, from the dispatching goroutine.
	Sink    func(Result)
	Metrics *metrics.Metrics
	Log     *slog.Logger
}

// Dispatcher runs each submitted window on its own goroutine. At most
// MaxInFlight backend calls run at once; up to MaxQueued more wait in FIFO
// order for a slot and anything beyond that is rejected with ErrQueueFull.
type Dispatcher struct {
	cfg     DispatcherConfig
	sem     *semaphore.Weighted
	pending atomic.Int64
	limit   int64
	wg      sync.WaitGroup
	log     *slog.Logger
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = DefaultMaxInFlight
	}
	if cfg.MaxQueued < 0 {
		cfg.MaxQueued = 0
	}
	if cfg.Format == (audio.Format{}) {
		cfg.Format = audio.DefaultFormat
	}
	if cfg.Sink == nil {
		cfg.Sink = func(Result) {}
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Dispatcher{
		cfg:   cfg,
		sem:   semaphore.NewWeighted(int64(cfg.MaxInFlight)),
		limit: int64(cfg.MaxInFlight + cfg.MaxQueued),
		log:   cfg.Log,
	}
}

// Submit returns immediately. ctx bounds both the wait for a slot and the
// backend call.
func (d *Dispatcher) Submit(ctx context.Context, w Window) {
	d.wg.Add(1)
	if d.pending.Add(1) > d.limit {
		d.pending.Add(-1)
		go func() {
			defer d.wg.Done()
			d.log.Warn("dispatch queue full, rejecting window", "seq", w.Seq, "bytes", len(w.Data))
			d.cfg.Sink(Result{Seq: w.Seq, Err: ErrQueueFull})
		}()
		return
	}
	go d.run(ctx, w)
}

func (d *Dispatcher) run(ctx context.Context, w Window) {
	defer d.wg.Done()
	defer d.pending.Add(-1)

	if err := d.sem.Acquire(ctx, 1); err != nil {
		d.cfg.Sink(Result{Seq: w.Seq, Err: err})
		return
	}
	defer d.sem.Release(1)

	d.cfg.Metrics.DispatchStarted()
	defer d.cfg.Metrics.DispatchFinished()

	start := time.Now()
	text, err := d.transcribe(ctx, w)
	latency := time.Since(start)
	d.cfg.Metrics.ObserveTranscription("live", latency, err)

	if err != nil {
		d.log.Warn("window transcription failed", "seq", w.Seq, "latency_ms", latency.Milliseconds(), "error", err)
		d.cfg.Sink(Result{Seq: w.Seq, Err: err, Latency: latency})
		return
	}
	d.log.Debug("window transcribed", "seq", w.Seq, "latency_ms", latency.Milliseconds(), "chars", len(text))
	d.cfg.Sink(Result{Seq: w.Seq, Text: text, Latency: latency})
}

func (d *Dispatcher) transcribe(ctx context.Context, w Window) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transcriber panic: %v", r)
		}
	}()

	framed, err := audio.Wrap(w.Data, d.cfg.Format)
	if err != nil {
		return "", fmt.Errorf("frame window: %w", err)
	}

	res, err := d.cfg.Transcriber.Transcribe(ctx, transcription.Request{
		Audio:    framed,
		Filename: fmt.Sprintf("window-%d.wav", w.Seq),
		Format:   "wav",
		Language: d.cfg.Language,
		Model:    d.cfg.Model,
	})
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// InFlight counts windows that are running or waiting for a slot.
func (d *Dispatcher) InFlight() int {
	return int(d.pending.Load())
}

// Wait blocks until every submitted window has produced its result or ctx
// is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
