// Package metrics holds the Prometheus collectors for the live and upload
// transcription paths.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is nil-safe: every recording method on a nil *Metrics is a no-op,
// so components can be built without a registry in tests.
type Metrics struct {
	registry *prometheus.Registry

	ActiveSessions   prometheus.Gauge
	SessionsStarted  prometheus.Counter
	SessionDuration  prometheus.Histogram
	FramesReceived   prometheus.Counter
	AudioBytes       prometheus.Counter
	WindowsCreated   prometheus.Counter
	WindowBytes      prometheus.Histogram
	DispatchInFlight prometheus.Gauge
	ResultsDelivered *prometheus.CounterVec
	ResultsDropped   prometheus.Counter

	TranscriptionDuration *prometheus.HistogramVec
	TranscriptionFailures *prometheus.CounterVec

	Uploads *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,

		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "live_sessions_active",
			Help: "Current number of open live transcription sessions",
		}),
		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "live_sessions_started_total",
			Help: "Total number of live sessions accepted",
		}),
		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "live_session_duration_seconds",
			Help:    "Wall-clock lifetime of live sessions",
			Buckets: []float64{1, 10, 30, 60, 300, 900, 1800, 3600, 7200},
		}),
		FramesReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "live_frames_received_total",
			Help: "Total number of binary audio frames received",
		}),
		AudioBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "live_audio_bytes_received_total",
			Help: "Total bytes of PCM received on live sessions",
		}),
		WindowsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "live_windows_created_total",
			Help: "Total number of audio windows handed to the dispatcher",
		}),
		WindowBytes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "live_window_bytes",
			Help:    "Size of dispatched audio windows",
			Buckets: prometheus.ExponentialBuckets(16000, 2, 8),
		}),
		DispatchInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "live_dispatch_in_flight",
			Help: "Dispatched windows not yet finished across all sessions",
		}),
		ResultsDelivered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "live_results_delivered_total",
			Help: "Results written to clients, by type",
		}, []string{"type"}),
		ResultsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "live_results_dropped_total",
			Help: "Results discarded because their session had closed",
		}),

		TranscriptionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "transcription_request_duration_seconds",
			Help:    "Latency of speech backend calls",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 60},
		}, []string{"path"}),
		TranscriptionFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "transcription_failures_total",
			Help: "Failed speech backend calls",
		}, []string{"path"}),

		Uploads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "upload_requests_total",
			Help: "One-shot upload requests by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
	m.SessionsStarted.Inc()
}

func (m *Metrics) SessionClosed(lifetime time.Duration) {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
	m.SessionDuration.Observe(lifetime.Seconds())
}

func (m *Metrics) FrameReceived(n int) {
	if m == nil {
		return
	}
	m.FramesReceived.Inc()
	m.AudioBytes.Add(float64(n))
}

func (m *Metrics) WindowCreated(n int) {
	if m == nil {
		return
	}
	m.WindowsCreated.Inc()
	m.WindowBytes.Observe(float64(n))
}

func (m *Metrics) DispatchStarted() {
	if m == nil {
		return
	}
	m.DispatchInFlight.Inc()
}

func (m *Metrics) DispatchFinished() {
	if m == nil {
		return
	}
	m.DispatchInFlight.Dec()
}

func (m *Metrics) ResultDelivered(kind string) {
	if m == nil {
		return
	}
	m.ResultsDelivered.WithLabelValues(kind).Inc()
}

func (m *Metrics) ResultDropped() {
	if m == nil {
		return
	}
	m.ResultsDropped.Inc()
}

func (m *Metrics) ObserveTranscription(path string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.TranscriptionDuration.WithLabelValues(path).Observe(took.Seconds())
	if err != nil {
		m.TranscriptionFailures.WithLabelValues(path).Inc()
	}
}

func (m *Metrics) UploadHandled(outcome string) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(outcome).Inc()
}
