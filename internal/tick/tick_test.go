package tick

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/johnjansen/tinysse/internal/message"
	"github.com/johnjansen/tinysse/internal/scripting"
)

func newHostWithScript(t *testing.T, src string) *scripting.Host {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "script.lua")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("writing script: %v", err)
	}
	h, err := scripting.New(scripting.Config{ScriptPath: path}, zerolog.Nop())
	if err != nil {
		t.Fatalf("scripting.New: %v", err)
	}
	t.Cleanup(h.Close)
	return h
}

// readTickCount round-trips the script's recorded tick count through the
// publish hook, since Host exposes no direct global-read accessor.
func readTickCount(t *testing.T, h *scripting.Host) int64 {
	t.Helper()
	var m message.Message
	m.SetData("x")
	result, ok, err := h.Publish(message.PublishEnvelope{Msg: m})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !ok {
		t.Fatalf("expected publish to be accepted")
	}
	n, err := strconv.ParseInt(result.Msg.Data, 10, 64)
	if err != nil {
		t.Fatalf("parsing tick count %q: %v", result.Msg.Data, err)
	}
	return n
}

func TestFirstTickFiresImmediately(t *testing.T) {
	h := newHostWithScript(t, `
ticks = 0
function tick(count)
	ticks = count
end
function publish(pe)
	pe.msg.data = tostring(ticks)
	return pe
end
`)
	d := New(h, time.Hour, zerolog.Nop())
	done := make(chan struct{})
	go d.Run(done)
	defer close(done)

	time.Sleep(30 * time.Millisecond)

	if n := readTickCount(t, h); n != 1 {
		t.Fatalf("expected first tick count 1, got %d", n)
	}
}

func TestTickOverrunCatchesUpOnceWithoutBursting(t *testing.T) {
	h := newHostWithScript(t, `
ticks = 0
function tick(count)
	ticks = count
	if count == 1 then
		sleep(60)
	end
end
function publish(pe)
	pe.msg.data = tostring(ticks)
	return pe
end
`)
	d := New(h, 20*time.Millisecond, zerolog.Nop())
	done := make(chan struct{})
	go d.Run(done)
	defer close(done)

	// Tick 1 fires immediately and sleeps 60ms inside the worker, well
	// past the 20ms interval. By 90ms, tick 2 should have fired exactly
	// once as an immediate catch-up, not several times in a row.
	time.Sleep(90 * time.Millisecond)
	n := readTickCount(t, h)
	if n < 2 {
		t.Fatalf("expected at least 2 ticks by now, got %d", n)
	}
	if n > 3 {
		t.Fatalf("expected no burst of catch-up ticks, got count %d", n)
	}
}
