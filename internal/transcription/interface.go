package transcription

import "context"

// Transcriber is the remote speech-to-text backend. Implementations must be
// safe for concurrent use; the live path calls Transcribe from many
// goroutines at once.
type Transcriber interface {
	Transcribe(ctx context.Context, req Request) (*Result, error)
}
