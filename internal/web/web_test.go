package web

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func newTestServer(t *testing.T, staticDir string) *echo.Echo {
	t.Helper()
	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer error: %v", err)
	}
	e := echo.New()
	e.Renderer = renderer
	NewHandler(Config{StaticDir: staticDir, Window: 3 * time.Second}, nil).RegisterRoutes(e)
	return e
}

func TestPages(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{"/", []string{"Lecture Transcription System", "25MB max", "3000ms windows"}},
		{"/upload", []string{`id="upload-form"`, `fetch("/transcribe"`}},
		{"/live", []string{"/ws/transcribe", "16000", `type: "flush"`}},
	}

	e := newTestServer(t, "")
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, echo.MIMETextHTML) {
				t.Errorf("expected html content type, got %s", ct)
			}
			body := rec.Body.String()
			for _, want := range tt.want {
				if !strings.Contains(body, want) {
					t.Errorf("body missing %q", want)
				}
			}
		})
	}
}

func TestStatic(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "style.css"), []byte("body{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	e := newTestServer(t, dir)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/style.css", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "body{}" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}
