package realtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/eleven-am/lecture-transcriber/internal/transcription"
)

const testTimeout = 2 * time.Second

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seqOf recovers the window sequence number from the upload filename.
func seqOf(t *testing.T, req transcription.Request) uint64 {
	t.Helper()
	var seq uint64
	if _, err := fmt.Sscanf(req.Filename, "window-%d.wav", &seq); err != nil {
		t.Fatalf("unexpected filename %q: %v", req.Filename, err)
	}
	return seq
}

type funcTranscriber func(ctx context.Context, req transcription.Request) (*transcription.Result, error)

func (f funcTranscriber) Transcribe(ctx context.Context, req transcription.Request) (*transcription.Result, error) {
	return f(ctx, req)
}

type backendReply struct {
	text string
	err  error
}

type backendCall struct {
	req   transcription.Request
	reply chan backendReply
}

// gatedTranscriber parks every call until the test answers it. With
// ignoreCancel set it keeps waiting after the request context is done, like
// a backend call that cannot be aborted.
type gatedTranscriber struct {
	calls        chan backendCall
	ignoreCancel bool
}

func newGatedTranscriber() *gatedTranscriber {
	return &gatedTranscriber{calls: make(chan backendCall, 64)}
}

func (g *gatedTranscriber) Transcribe(ctx context.Context, req transcription.Request) (*transcription.Result, error) {
	call := backendCall{req: req, reply: make(chan backendReply, 1)}
	g.calls <- call

	if g.ignoreCancel {
		r := <-call.reply
		if r.err != nil {
			return nil, r.err
		}
		return &transcription.Result{Text: r.text}, nil
	}

	select {
	case r := <-call.reply:
		if r.err != nil {
			return nil, r.err
		}
		return &transcription.Result{Text: r.text}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *gatedTranscriber) next(t *testing.T) backendCall {
	t.Helper()
	select {
	case c := <-g.calls:
		return c
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for backend call")
		return backendCall{}
	}
}

// fakeConn feeds frames from a channel and records every message handed to
// Send, including attempts made after Close.
type fakeConn struct {
	frames  chan Frame
	readErr error

	mu             sync.Mutex
	sent           []*ServerMessage
	sentAfterClose int
	closed         bool
	notify         chan struct{}

	done      chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan Frame, 64),
		notify: make(chan struct{}, 256),
		done:   make(chan struct{}),
	}
}

func (c *fakeConn) ReadFrame() (Frame, error) {
	select {
	case f, ok := <-c.frames:
		if !ok {
			if c.readErr != nil {
				return Frame{}, c.readErr
			}
			return Frame{}, io.EOF
		}
		return f, nil
	case <-c.done:
		return Frame{}, ErrConnectionClosed
	}
}

func (c *fakeConn) Send(_ context.Context, msg *ServerMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.sentAfterClose++
		return ErrConnectionClosed
	}
	c.sent = append(c.sent, msg)
	select {
	case c.notify <- struct{}{}:
	default:
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
	})
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) messages() []*ServerMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*ServerMessage(nil), c.sent...)
}

func (c *fakeConn) afterClose() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sentAfterClose
}

// waitMessages blocks until at least n messages were sent.
func (c *fakeConn) waitMessages(t *testing.T, n int) []*ServerMessage {
	t.Helper()
	deadline := time.After(testTimeout)
	for {
		if msgs := c.messages(); len(msgs) >= n {
			return msgs
		}
		select {
		case <-c.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d messages, have %d", n, len(c.messages()))
			return nil
		}
	}
}

func binary(n int, b byte) Frame {
	data := make([]byte, n)
	for i := range data {
		data[i] = b
	}
	return Frame{Binary: true, Data: data}
}

func text(s string) Frame {
	return Frame{Data: []byte(s)}
}
