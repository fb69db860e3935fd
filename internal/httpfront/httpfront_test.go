package httpfront

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/johnjansen/tinysse/internal/bus"
	"github.com/johnjansen/tinysse/internal/config"
	"github.com/johnjansen/tinysse/internal/scripting"
)

func newTestApp(t *testing.T) (*config.Config, http.Handler) {
	t.Helper()
	cfg, err := config.Load(nil)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	host, err := scripting.New(scripting.Config{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("scripting.New: %v", err)
	}
	t.Cleanup(host.Close)
	b := bus.New(cfg.Capacity, zerolog.Nop())
	app := New(cfg, b, host, zerolog.Nop())
	return cfg, app
}

func TestPublishRouteMounted(t *testing.T) {
	cfg, app := newTestApp(t)
	req := httptest.NewRequest(http.MethodPost, cfg.PubPath, strings.NewReader(`{"data":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	app.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 from %s, got %d: %s", cfg.PubPath, rec.Code, rec.Body.String())
	}
}

func TestCORSHeadersAppliedWhenConfigured(t *testing.T) {
	cfg, err := config.Load([]string{"--cors-allow-origin", "https://example.com"})
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	host, err := scripting.New(scripting.Config{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("scripting.New: %v", err)
	}
	defer host.Close()
	b := bus.New(cfg.Capacity, zerolog.Nop())
	app := New(cfg, b, host, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, cfg.PubPath, strings.NewReader(`{"data":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	app.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://example.com" {
		t.Fatalf("expected CORS header set, got %q", got)
	}
}
