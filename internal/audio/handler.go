package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/eleven-am/lecture-transcriber/internal/metrics"
	"github.com/eleven-am/lecture-transcriber/internal/shared"
	"github.com/eleven-am/lecture-transcriber/internal/transcription"
	"github.com/labstack/echo/v4"
)

const (
	uploadLanguage       = "en"
	transcriptionTimeout = 5 * time.Minute
)

type Handler struct {
	transcriber transcription.Transcriber
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func NewHandler(transcriber transcription.Transcriber, m *metrics.Metrics, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		transcriber: transcriber,
		metrics:     m,
		logger:      logger.With("handler", "upload"),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/transcribe", h.HandleTranscribe)
	e.POST("/api/v1/audio/transcriptions", h.HandleTranscribe)
}

type TranscribeResponse struct {
	Filename      string  `json:"filename"`
	Transcription string  `json:"transcription"`
	FileSizeMB    float64 `json:"file_size_mb"`
}

// HandleTranscribe validates a single uploaded audio file and transcribes it
// in one backend call. response_format=text returns the bare transcript.
func (h *Handler) HandleTranscribe(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		h.metrics.UploadHandled("rejected")
		return shared.BadRequest("missing_file", "File is required")
	}

	src, err := file.Open()
	if err != nil {
		h.metrics.UploadHandled("error")
		return shared.InternalError("file_error", "Failed to open file")
	}
	defer src.Close()

	// Reads stop one byte past the ceiling; the size check uses file.Size.
	data, err := io.ReadAll(io.LimitReader(src, maxUploadBytes+1))
	if err != nil {
		h.metrics.UploadHandled("error")
		return shared.InternalError("file_error", "Failed to read file")
	}

	upload, err := ValidateUpload(file.Filename, data, file.Size)
	if err != nil {
		h.logger.Info("upload rejected", "filename", file.Filename, "error", err)
		h.metrics.UploadHandled("rejected")
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), transcriptionTimeout)
	defer cancel()

	start := time.Now()
	result, err := h.transcriber.Transcribe(ctx, transcription.Request{
		Audio:    upload.Data,
		Filename: "audio." + upload.Extension,
		Format:   upload.Extension,
		Language: uploadLanguage,
	})
	h.metrics.ObserveTranscription("upload", time.Since(start), err)
	if err != nil {
		h.logger.Error("transcription failed", "filename", file.Filename, "mime_type", upload.MIMEType, "error", err)
		h.metrics.UploadHandled("failed")
		return shared.InternalError("transcription_failed", fmt.Sprintf("Transcription Failed: %v", err))
	}

	h.logger.Info("upload transcribed",
		"filename", file.Filename,
		"mime_type", upload.MIMEType,
		"size_mb", shared.Round2(upload.SizeMB),
		"latency_ms", time.Since(start).Milliseconds())
	h.metrics.UploadHandled("ok")

	if c.FormValue("response_format") == "text" {
		return c.String(http.StatusOK, result.Text)
	}
	return c.JSON(http.StatusOK, TranscribeResponse{
		Filename:      file.Filename,
		Transcription: result.Text,
		FileSizeMB:    shared.Round2(upload.SizeMB),
	})
}
