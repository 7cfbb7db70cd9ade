package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait            = 10 * time.Second
	pongWait             = 60 * time.Second
	pingPeriod           = (pongWait * 9) / 10
	defaultMaxFrameBytes = 1 << 20
	defaultSendBuffer    = 64
)

var ErrConnectionClosed = errors.New("connection closed")

// Conn is the transport a session reads frames from and writes results to.
// ReadFrame is only ever called from the session loop; Send may be called
// from any goroutine.
type Conn interface {
	ReadFrame() (Frame, error)
	Send(ctx context.Context, msg *ServerMessage) error
	Close() error
}

type WSOptions struct {
	// MaxFrameBytes bounds a single inbound message, which in turn bounds how
	// far one chunk can overshoot the window threshold.
	MaxFrameBytes int64
	SendBuffer    int
}

// WSConnection adapts a gorilla connection to Conn. All writes go through a
// single writer goroutine.
type WSConnection struct {
	ws     *websocket.Conn
	logger *slog.Logger
	send   chan *ServerMessage

	done      chan struct{}
	closeOnce sync.Once
}

func NewWSConnection(ws *websocket.Conn, logger *slog.Logger, opts WSOptions) *WSConnection {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxFrameBytes <= 0 {
		opts.MaxFrameBytes = defaultMaxFrameBytes
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}

	c := &WSConnection{
		ws:     ws,
		logger: logger,
		send:   make(chan *ServerMessage, opts.SendBuffer),
		done:   make(chan struct{}),
	}

	ws.SetReadLimit(opts.MaxFrameBytes)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.writePump()
	return c
}

// ReadFrame blocks for the next data message. A clean close by the peer is
// reported as io.EOF.
func (c *WSConnection) ReadFrame() (Frame, error) {
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return Frame{}, ErrConnectionClosed
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return Frame{}, io.EOF
			}
			return Frame{}, err
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))

		switch msgType {
		case websocket.BinaryMessage:
			return Frame{Binary: true, Data: data}, nil
		case websocket.TextMessage:
			return Frame{Data: data}, nil
		}
	}
}

// Send queues msg for the writer. It never touches the socket after Close.
func (c *WSConnection) Send(ctx context.Context, msg *ServerMessage) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the writer and closes the socket. Queued messages are dropped.
func (c *WSConnection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		err = c.ws.Close()
	})
	return err
}

func (c *WSConnection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case msg := <-c.send:
			select {
			case <-c.done:
				return
			default:
			}
			data, err := json.Marshal(msg)
			if err != nil {
				c.logger.Error("failed to marshal message", "error", err)
				continue
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Warn("websocket write error", "error", err)
				_ = c.Close()
				return
			}

		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}
