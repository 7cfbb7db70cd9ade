package realtime

import (
	"time"

	"github.com/eleven-am/lecture-transcriber/internal/audio"
)

const (
	DefaultWindow      = 3 * time.Second
	DefaultMaxInFlight = 3
	DefaultMaxQueued   = 16
	DefaultLanguage    = "en"
)

// Config holds the per-session pipeline settings shared by every live
// connection.
type Config struct {
	Window      time.Duration
	Format      audio.Format
	Language    string
	Model       string
	MaxInFlight int
	// MaxQueued is how many windows may wait for a dispatch slot before new
	// ones are rejected. Zero disables queueing.
	MaxQueued int
	// MaxSessions caps concurrent live connections. Zero means unlimited.
	MaxSessions int
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.Format == (audio.Format{}) {
		c.Format = audio.DefaultFormat
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = DefaultMaxInFlight
	}
	if c.MaxQueued < 0 {
		c.MaxQueued = 0
	}
	return c
}

// Threshold is the byte size a window must exceed before it is dispatched.
func (c Config) Threshold() int {
	c = c.withDefaults()
	return audio.ThresholdFor(c.Format, c.Window)
}
