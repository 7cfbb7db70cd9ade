package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

func newLiveServer(t *testing.T, m *Manager) string {
	t.Helper()
	e := echo.New()
	NewHandler(m, WSOptions{MaxFrameBytes: 64 * 1024}, discardLogger()).RegisterRoutes(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/transcribe"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readMessage(t *testing.T, ws *websocket.Conn) ServerMessage {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(testTimeout))
	msgType, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if msgType != websocket.TextMessage {
		t.Fatalf("expected text message, got type %d", msgType)
	}
	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return msg
}

func TestHandler_LiveTranscription(t *testing.T) {
	m := newTestManager(ManagerConfig{})
	ws := dial(t, newLiveServer(t, m))

	ready := readMessage(t, ws)
	if ready.Type != MessageTypeReady || ready.SessionID == "" || ready.WindowMs != 10 {
		t.Fatalf("unexpected ready message %+v", ready)
	}

	if err := ws.WriteMessage(websocket.BinaryMessage, make([]byte, 200)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ws.WriteMessage(websocket.BinaryMessage, make([]byte, 200)); err != nil {
		t.Fatalf("write: %v", err)
	}
	got := readMessage(t, ws)
	if got.Type != MessageTypeTranscription || got.Seq != 1 || got.Text != "400 bytes" {
		t.Errorf("unexpected transcription %+v", got)
	}

	if err := ws.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	got = readMessage(t, ws)
	if got.Type != MessageTypeError || got.Seq != 0 {
		t.Errorf("expected untagged error, got %+v", got)
	}

	_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	waitCount(t, m, 0)
}

func getStatus(t *testing.T, url string) SessionStatus {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var status SessionStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return status
}

func TestHandler_SessionStatus(t *testing.T) {
	m := newTestManager(ManagerConfig{})
	e := echo.New()
	NewHandler(m, WSOptions{MaxFrameBytes: 64 * 1024}, discardLogger()).RegisterRoutes(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	ws := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/transcribe")
	ready := readMessage(t, ws)

	if err := ws.WriteMessage(websocket.BinaryMessage, make([]byte, 500)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := readMessage(t, ws); got.Type != MessageTypeTranscription {
		t.Fatalf("unexpected message %+v", got)
	}

	var status SessionStatus
	deadline := time.Now().Add(testTimeout)
	for {
		status = getStatus(t, srv.URL+"/api/v1/live/"+ready.SessionID)
		if status.Results == 1 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if status.ID != ready.SessionID || status.State != "open" {
		t.Errorf("unexpected status %+v", status)
	}
	if status.Frames != 1 || status.AudioBytes != 500 || status.Windows != 1 || status.Results != 1 {
		t.Errorf("unexpected counters %+v", status)
	}
	if status.StartedAt.IsZero() {
		t.Error("started_at not set")
	}

	missing, err := http.Get(srv.URL + "/api/v1/live/live_unknown")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown session, got %d", missing.StatusCode)
	}
}

func TestHandler_FrameOverLimitClosesSession(t *testing.T) {
	m := newTestManager(ManagerConfig{})
	ws := dial(t, newLiveServer(t, m))
	readMessage(t, ws)
	waitCount(t, m, 1)

	_ = ws.WriteMessage(websocket.BinaryMessage, make([]byte, 128*1024))
	waitCount(t, m, 0)
}

func TestHandler_RejectsWhenFull(t *testing.T) {
	m := newTestManager(ManagerConfig{Config: Config{MaxSessions: 1}})
	url := newLiveServer(t, m)

	dial(t, url)
	waitCount(t, m, 1)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected second dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %+v", resp)
	}
	resp.Body.Close()
}

func TestWSConnection_SendAfterClose(t *testing.T) {
	serverConn := make(chan *WSConnection, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConn <- NewWSConnection(ws, discardLogger(), WSOptions{})
	}))
	defer srv.Close()

	client := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http"))
	conn := <-serverConn

	if err := conn.Send(context.Background(), TranscriptionMessage(1, "hi")); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if got := readMessage(t, client); got.Text != "hi" || got.Seq != 1 {
		t.Errorf("unexpected message %+v", got)
	}

	if err := conn.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
	if err := conn.Send(context.Background(), TranscriptionMessage(2, "late")); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("expected ErrConnectionClosed, got %v", err)
	}
	if _, err := conn.ReadFrame(); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("expected ErrConnectionClosed from ReadFrame, got %v", err)
	}

	_ = client.SetReadDeadline(time.Now().Add(testTimeout))
	if _, _, err := client.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected normal close frame, got %v", err)
	}
}
