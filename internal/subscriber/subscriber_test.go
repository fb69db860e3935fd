package subscriber

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/johnjansen/tinysse/internal/bus"
	"github.com/johnjansen/tinysse/internal/message"
	"github.com/johnjansen/tinysse/internal/scripting"
)

func newHost(t *testing.T, scriptSrc string) *scripting.Host {
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
	return h
}

func TestHandshakeAndLiveMessage(t *testing.T) {
	b := bus.New(16, zerolog.Nop())
	h := newHost(t, "")
	handler := &Handler{Bus: b, Host: h, KeepAlive: time.Hour, KeepAliveText: "ping", Log: zerolog.Nop()}

	req := httptest.NewRequest(http.MethodGet, "/subscribe", nil)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		handler.ServeHTTP(rec, req)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)

	var m message.Message
	m.SetData("hello")
	b.Publish(message.PublishEnvelope{Msg: m})

	time.Sleep(50 * time.Millisecond)

	body := rec.Body.String()
	if !strings.Contains(body, ": ok") {
		t.Fatalf("expected handshake comment, got: %q", body)
	}
	if !strings.Contains(body, "data: hello") {
		t.Fatalf("expected live message delivered, got: %q", body)
	}
}

func TestSubscribeRejectedByHook(t *testing.T) {
	b := bus.New(16, zerolog.Nop())
	h := newHost(t, `
function subscribe(se)
	return nil
end
`)
	handler := &Handler{Bus: b, Host: h, KeepAlive: time.Hour, KeepAliveText: "ping", Log: zerolog.Nop()}

	req := httptest.NewRequest(http.MethodGet, "/subscribe", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestIdleTimeoutEmitsFinalEvent(t *testing.T) {
	b := bus.New(16, zerolog.Nop())
	h := newHost(t, "")
	handler := &Handler{
		Bus: b, Host: h,
		KeepAlive: time.Hour, KeepAliveText: "ping",
		IdleTimeout: 20 * time.Millisecond, TimeoutRetry: 2 * time.Second,
		Log: zerolog.Nop(),
	}

	req := httptest.NewRequest(http.MethodGet, "/subscribe", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, ": timeout") {
		t.Fatalf("expected timeout comment, got: %q", body)
	}
	if !strings.Contains(body, "retry: 2000") {
		t.Fatalf("expected retry hint from configured timeout_retry, got: %q", body)
	}
}
