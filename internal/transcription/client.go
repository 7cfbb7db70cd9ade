package transcription

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultModel       = openai.Whisper1
	defaultTimeout     = 60 * time.Second
	transcriptionsPath = "/audio/transcriptions"
)

// Client talks to an OpenAI-compatible /audio/transcriptions endpoint.
// Every call is a single attempt.
type Client struct {
	api        *openai.Client
	endpoint   string
	model      string
	language   string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("transcription base url is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = baseURL
	apiCfg.HTTPClient = httpClient

	return &Client{
		api:        openai.NewClientWithConfig(apiCfg),
		endpoint:   baseURL + transcriptionsPath,
		model:      model,
		language:   cfg.Language,
		httpClient: httpClient,
		logger:     logger.With("component", "transcription"),
	}, nil
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) Transcribe(ctx context.Context, req Request) (*Result, error) {
	if len(req.Audio) == 0 {
		return nil, errors.New("no audio to transcribe")
	}

	filename := req.Filename
	if filename == "" {
		format := req.Format
		if format == "" {
			format = "wav"
		}
		filename = "audio." + format
	}
	model := req.Model
	if model == "" {
		model = c.model
	}
	language := req.Language
	if language == "" {
		language = c.language
	}

	start := time.Now()
	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    model,
		FilePath: filename,
		Reader:   bytes.NewReader(req.Audio),
		Language: language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return nil, mapError(err)
	}

	c.logger.Debug("transcription complete",
		"bytes", len(req.Audio),
		"latency_ms", time.Since(start).Milliseconds())

	return &Result{
		Text:     strings.TrimSpace(resp.Text),
		Language: resp.Language,
		Duration: resp.Duration,
	}, nil
}

// mapError turns non-2xx answers into *APIError and wraps everything else.
func mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		msg := strings.TrimSpace(string(reqErr.Body))
		if msg == "" {
			msg = reqErr.HTTPStatus
		}
		return &APIError{StatusCode: reqErr.HTTPStatusCode, Message: msg}
	}

	return fmt.Errorf("transcription request: %w", err)
}
