package publish

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/johnjansen/tinysse/internal/bus"
	"github.com/johnjansen/tinysse/internal/scripting"
)

func newHandler(t *testing.T, scriptSrc string) *Handler {
	t.Helper()
	cfg := scripting.Config{}
	if scriptSrc != "" {
		dir := t.TempDir()
		path := dir + "/script.lua"
		if err := os.WriteFile(path, []byte(scriptSrc), 0o644); err != nil {
			t.Fatalf("writing script: %v", err)
		}
		cfg.ScriptPath = path
	}
	h, err := scripting.New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("scripting.New: %v", err)
	}
	t.Cleanup(h.Close)
	b := bus.New(16, zerolog.Nop())
	return &Handler{Bus: b, Host: h, MaxBodySize: 1 << 20, Log: zerolog.Nop()}
}

func TestPublishJSONAccepted(t *testing.T) {
	h := newHandler(t, "")
	req := httptest.NewRequest(http.MethodPost, "/publish", strings.NewReader(`{"data":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if h.Bus.Len() != 1 {
		t.Fatalf("expected 1 item enqueued, got %d", h.Bus.Len())
	}
}

func TestPublishUnsupportedMediaType(t *testing.T) {
	h := newHandler(t, "")
	req := httptest.NewRequest(http.MethodPost, "/publish", strings.NewReader(`not json`))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", rec.Code)
	}
}

func TestPublishPayloadTooLarge(t *testing.T) {
	h := newHandler(t, "")
	h.MaxBodySize = 4
	req := httptest.NewRequest(http.MethodPost, "/publish", strings.NewReader(`{"data":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestPublishRejectedByHook(t *testing.T) {
	h := newHandler(t, `
function publish(pe)
	return nil
end
`)
	req := httptest.NewRequest(http.MethodPost, "/publish", strings.NewReader(`{"data":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if body["error"] == "" {
		t.Fatalf("expected non-empty error message")
	}
}

func TestPublishFormEncoded(t *testing.T) {
	h := newHandler(t, "")
	req := httptest.NewRequest(http.MethodPost, "/publish", strings.NewReader(`data=hi&comment=one&comment=two`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
}
