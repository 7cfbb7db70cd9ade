package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
)

type MessageType string

const (
	MessageTypeReady         MessageType = "ready"
	MessageTypeTranscription MessageType = "transcription"
	MessageTypeError         MessageType = "error"

	ControlFlush MessageType = "flush"
)

// ServerMessage is every JSON text frame the server writes. Seq is zero for
// messages not tied to a window.
type ServerMessage struct {
	Type      MessageType `json:"type"`
	Seq       uint64      `json:"seq,omitempty"`
	Text      string      `json:"text,omitempty"`
	Message   string      `json:"message,omitempty"`
	SessionID string      `json:"session_id,omitempty"`
	WindowMs  int64       `json:"window_ms,omitempty"`
}

// MarshalJSON always emits text on transcriptions, even when the backend
// heard nothing.
func (m ServerMessage) MarshalJSON() ([]byte, error) {
	if m.Type == MessageTypeTranscription {
		return json.Marshal(struct {
			Type MessageType `json:"type"`
			Seq  uint64      `json:"seq,omitempty"`
			Text string      `json:"text"`
		}{m.Type, m.Seq, m.Text})
	}
	type plain ServerMessage
	return json.Marshal(plain(m))
}

func ReadyMessage(sessionID string, windowMs int64) *ServerMessage {
	return &ServerMessage{Type: MessageTypeReady, SessionID: sessionID, WindowMs: windowMs}
}

func TranscriptionMessage(seq uint64, text string) *ServerMessage {
	return &ServerMessage{Type: MessageTypeTranscription, Seq: seq, Text: text}
}

func ErrorMessage(seq uint64, message string) *ServerMessage {
	return &ServerMessage{Type: MessageTypeError, Seq: seq, Message: message}
}

// Frame is one inbound WebSocket message.
type Frame struct {
	Binary bool
	Data   []byte
}

type clientMessage struct {
	Type MessageType `json:"type"`
}

var ErrUnknownControl = errors.New("unsupported control message")

// ParseControl decodes a text frame sent by the client.
func ParseControl(data []byte) (MessageType, error) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", fmt.Errorf("malformed control message: %w", err)
	}
	switch msg.Type {
	case ControlFlush:
		return msg.Type, nil
	case "":
		return "", fmt.Errorf("%w: missing type", ErrUnknownControl)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownControl, msg.Type)
	}
}
