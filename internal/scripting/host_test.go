package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/johnjansen/tinysse/internal/message"
)

func writeScript(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "script.lua")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("writing script: %v", err)
	}
	return path
}

func TestPublishHookRewrite(t *testing.T) {
	script := writeScript(t, `
function publish(pe)
	pe.msg.data = pe.msg.data .. "!"
	return pe
end
`)
	h, err := New(Config{ScriptPath: script}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer h.Close()

	var m message.Message
	m.SetData("hi")
	pe := message.PublishEnvelope{Msg: m}

	result, ok, err := h.Publish(pe)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !ok {
		t.Fatalf("expected publish to be accepted")
	}
	if result.Msg.Data != "hi!" {
		t.Fatalf("expected rewritten data, got %q", result.Msg.Data)
	}
}

func TestPublishHookReject(t *testing.T) {
	script := writeScript(t, `
function publish(pe)
	return nil
end
`)
	h, err := New(Config{ScriptPath: script}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer h.Close()

	var m message.Message
	m.SetData("hi")
	_, ok, err := h.Publish(message.PublishEnvelope{Msg: m})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if ok {
		t.Fatalf("expected publish to be rejected")
	}
}

func TestNoHookIsIdentity(t *testing.T) {
	script := writeScript(t, `-- no hooks defined`)
	h, err := New(Config{ScriptPath: script}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer h.Close()

	var m message.Message
	m.SetData("unchanged")
	result, ok, err := h.Publish(message.PublishEnvelope{Msg: m})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !ok || result.Msg.Data != "unchanged" {
		t.Fatalf("expected identity passthrough, got ok=%v data=%q", ok, result.Msg.Data)
	}
}

func TestCatchupOptional(t *testing.T) {
	script := writeScript(t, `-- no catchup hook`)
	h, err := New(Config{ScriptPath: script}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer h.Close()

	_, present, err := h.Catchup(message.SubscribeEnvelope{}, "1")
	if err != nil {
		t.Fatalf("Catchup: %v", err)
	}
	if present {
		t.Fatalf("expected catchup hook to be absent")
	}
}

func TestCatchupReplay(t *testing.T) {
	script := writeScript(t, `
function catchup(se, last_event_id)
	return {
		{id = "2", data = "two"},
		{id = "3", data = "three"},
	}
end
`)
	h, err := New(Config{ScriptPath: script}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer h.Close()

	msgs, present, err := h.Catchup(message.SubscribeEnvelope{}, "1")
	if err != nil {
		t.Fatalf("Catchup: %v", err)
	}
	if !present {
		t.Fatalf("expected catchup hook present")
	}
	if len(msgs) != 2 || msgs[0].ID != "2" || msgs[1].ID != "3" {
		t.Fatalf("unexpected catchup sequence: %+v", msgs)
	}
}

func TestTimeoutOverride(t *testing.T) {
	script := writeScript(t, `
function timeout(se, elapsed_ms)
	return 999
end
`)
	h, err := New(Config{ScriptPath: script}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer h.Close()

	ms, ok, err := h.Timeout(message.SubscribeEnvelope{}, 100)
	if err != nil {
		t.Fatalf("Timeout: %v", err)
	}
	if !ok || ms != 999 {
		t.Fatalf("expected override 999, got ok=%v ms=%d", ok, ms)
	}
}

func TestConcurrentHookCallsAreSerialized(t *testing.T) {
	script := writeScript(t, `
counter = 0
function publish(pe)
	counter = counter + 1
	pe.msg.data = tostring(counter)
	return pe
end
`)
	h, err := New(Config{ScriptPath: script}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer h.Close()

	const n = 20
	results := make(chan string, n)
	for i := 0; i < n; i++ {
		go func() {
			var m message.Message
			m.SetData("x")
			result, _, err := h.Publish(message.PublishEnvelope{Msg: m})
			if err != nil {
				results <- ""
				return
			}
			results <- result.Msg.Data
		}()
	}
	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		v := <-results
		if seen[v] {
			t.Fatalf("counter value %q observed twice: hooks were not serialized", v)
		}
		seen[v] = true
	}
}
