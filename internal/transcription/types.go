package transcription

import (
	"fmt"
	"time"
)

type Request struct {
	Audio    []byte
	Filename string
	Format   string
	Language string
	Model    string
}

type Result struct {
	Text     string
	Language string
	Duration float64
}

type Config struct {
	BaseURL  string
	APIKey   string
	Model    string
	Language string
	Timeout  time.Duration
}

// APIError is a non-2xx answer from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("transcription backend returned %d: %s", e.StatusCode, e.Message)
}

// RateLimited reports whether the backend asked us to slow down.
func (e *APIError) RateLimited() bool {
	return e.StatusCode == 429
}
