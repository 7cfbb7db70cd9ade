package realtime

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/eleven-am/lecture-transcriber/internal/shared"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	manager  *Manager
	opts     WSOptions
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewHandler(mgr *Manager, opts WSOptions, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		manager: mgr,
		opts:    opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log.With("handler", "live"),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/transcribe", h.HandleWebSocket)
	e.GET("/api/v1/live/:id", h.HandleStatus)
}

type SessionStatus struct {
	ID         string    `json:"id"`
	State      string    `json:"state"`
	RemoteAddr string    `json:"remote_addr"`
	StartedAt  time.Time `json:"started_at"`
	InFlight   int       `json:"in_flight"`
	Frames     uint64    `json:"frames"`
	AudioBytes uint64    `json:"audio_bytes"`
	Windows    uint64    `json:"windows"`
	Results    uint64    `json:"results"`
	Errors     uint64    `json:"errors"`
	Dropped    uint64    `json:"dropped"`
}

// HandleStatus reports the running counters of a connected live session.
// Finished sessions are served from the session store instead.
func (h *Handler) HandleStatus(c echo.Context) error {
	s, ok := h.manager.Get(c.Param("id"))
	if !ok {
		return shared.NotFound("session_not_found", "Live session not found")
	}
	st := s.Stats()
	return c.JSON(http.StatusOK, SessionStatus{
		ID:         s.ID(),
		State:      s.State().String(),
		RemoteAddr: s.RemoteAddr(),
		StartedAt:  s.StartedAt(),
		InFlight:   s.InFlight(),
		Frames:     st.Frames,
		AudioBytes: st.AudioBytes,
		Windows:    st.Windows,
		Results:    st.Results,
		Errors:     st.Errors,
		Dropped:    st.Dropped,
	})
}

// HandleWebSocket upgrades the request and runs a live session on it until
// the client goes away.
func (h *Handler) HandleWebSocket(c echo.Context) error {
	if h.manager.Full() {
		return shared.NewAPIError("too_many_sessions", "Live transcription is at capacity, try again later").
			ToHTTP(http.StatusServiceUnavailable)
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return nil
	}

	conn := NewWSConnection(ws, h.log, h.opts)
	remote := c.RealIP()

	err = h.manager.Start(c.Request().Context(), conn, remote)
	switch {
	case err == nil:
	case errors.Is(err, ErrManagerClosed), errors.Is(err, ErrTooManySessions):
		h.log.Info("live session refused", "remote_addr", remote, "error", err)
	default:
		h.log.Warn("live session ended with error", "remote_addr", remote, "error", err)
	}
	return nil
}
