package session

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/eleven-am/lecture-transcriber/internal/shared"
	"github.com/labstack/echo/v4"
)

const (
	defaultMetricsHours = 24
	maxMetricsHours     = 168
)

type Handler struct {
	store  *Store
	logger *slog.Logger
}

func NewHandler(store *Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:  store,
		logger: logger.With("handler", "sessions"),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/sessions/:id", h.GetSession)
	g.GET("/metrics", h.GetMetrics)
}

func (h *Handler) GetSession(c echo.Context) error {
	id := c.Param("id")

	sess, err := h.store.GetSession(c.Request().Context(), id)
	if errors.Is(err, shared.ErrNotFound) {
		return shared.NotFound("session_not_found", "session not found")
	}
	if err != nil {
		h.logger.Error("failed to get session", "error", err, "session_id", id)
		return shared.InternalError("get_failed", "failed to get session")
	}
	return c.JSON(http.StatusOK, sess)
}

type MetricsListResponse struct {
	Hours   int        `json:"hours"`
	Metrics []*Metrics `json:"metrics"`
}

func (h *Handler) GetMetrics(c echo.Context) error {
	hours := defaultMetricsHours
	if v := c.QueryParam("hours"); v != "" {
		if hr, err := strconv.Atoi(v); err == nil && hr > 0 && hr <= maxMetricsHours {
			hours = hr
		}
	}

	metrics, err := h.store.GetMetrics(c.Request().Context(), hours)
	if err != nil {
		h.logger.Error("failed to get metrics", "error", err)
		return shared.InternalError("get_metrics_failed", "failed to get metrics")
	}
	if metrics == nil {
		metrics = []*Metrics{}
	}

	return c.JSON(http.StatusOK, MetricsListResponse{
		Hours:   hours,
		Metrics: metrics,
	})
}
