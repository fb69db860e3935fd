// Package scripting hosts the user's Lua script: a single *lua.LState
// driven by one dedicated worker goroutine, so that the script host
// processes at most one hook invocation at a time by construction.
// Concurrent request handlers submit hook invocations as jobs; the worker
// drains them strictly in arrival order — an explicit continuation queue
// in front of an interpreter with no native async support.
//
// A fully coroutine-based scheduler (where an awaiting sleep/http/sqlite
// call yields the interpreter back to run a second hook concurrently) was
// considered and rejected for this build: gopher-lua's coroutine support
// is not itself goroutine-safe, and layering a resume/yield scheduler on
// top adds real complexity for a benefit that is a nice-to-have, not a
// hard requirement. The invariant that actually must hold — only one hook
// executes at any instant — holds exactly with a single worker goroutine;
// an await inside a hook (sleep, http, sqlite, mutex) simply blocks that
// worker until it completes, and other callers' hook invocations queue up
// behind it. This trade-off is recorded in DESIGN.md.
package scripting

import (
	_ "embed"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/johnjansen/tinysse/internal/logging"
	"github.com/johnjansen/tinysse/internal/message"

	"github.com/rs/zerolog"
)

//go:embed prelude/prelude.lua
var preludeSource string

// Config configures how the host is built.
type Config struct {
	ScriptPath   string
	ScriptData   string
	UnsafeScript bool
	CLI          map[string]interface{} // passed to startup(cli) and also set as the `cli` global
}

// Host owns the Lua interpreter and serializes all access to it.
type Host struct {
	log   zerolog.Logger
	l     *lua.LState
	jobs  chan job
	hooks map[string]*lua.LFunction

	wg     sync.WaitGroup
	stopCh chan struct{}
}

type job struct {
	fn   func()
	done chan struct{}
}

var hookNames = []string{
	"startup", "tick", "publish", "subscribe", "catchup",
	"message", "unsubscribe", "timeout",
}

// New constructs the interpreter, preloads the standard library
// capabilities, loads the fixed prelude and then the user script (if
// any), and resolves hook references once so the hot path never performs
// a global lookup.
func New(cfg Config, log zerolog.Logger) (*Host, error) {
	l := lua.NewState(lua.Options{SkipOpenLibs: true})

	// Safe mode (default): base, table, string, math, coroutine only — no
	// filesystem, process, or native-module loading surface. Unsafe mode
	// additionally opens io/os/package/debug/channel. This reinterprets
	// original_source's "allow loading native .so modules" flag in terms
	// gopher-lua (a pure-Go VM with no native module loader) actually has:
	// restricting OS/filesystem/process access.
	lua.OpenBase(l)
	lua.OpenTable(l)
	lua.OpenString(l)
	lua.OpenMath(l)
	lua.OpenCoroutine(l)
	if cfg.UnsafeScript {
		lua.OpenIo(l)
		lua.OpenOs(l)
		lua.OpenPackage(l)
		lua.OpenDebug(l)
		lua.OpenChannel(l)
	}

	h := &Host{
		log:    log,
		l:      l,
		jobs:   make(chan job, 256),
		hooks:  make(map[string]*lua.LFunction),
		stopCh: make(chan struct{}),
	}

	h.preloadCapabilities(log)

	if err := l.DoString(preludeSource); err != nil {
		return nil, fmt.Errorf("scripting: loading prelude: %w", err)
	}

	if cfg.ScriptPath != "" {
		if err := l.DoFile(cfg.ScriptPath); err != nil {
			return nil, fmt.Errorf("scripting: loading script %s: %w", cfg.ScriptPath, err)
		}
	}

	cliTable := l.NewTable()
	for k, v := range cfg.CLI {
		cliTable.RawSetString(k, goToLua(l, v))
	}
	cliTable.RawSetString("script_data", lua.LString(cfg.ScriptData))
	l.SetGlobal("cli", cliTable)

	h.resolveHooks()

	h.wg.Add(1)
	go h.run()

	return h, nil
}

func (h *Host) resolveHooks() {
	for _, name := range hookNames {
		v := h.l.GetGlobal(name)
		if fn, ok := v.(*lua.LFunction); ok {
			h.hooks[name] = fn
		}
	}
}

func (h *Host) has(name string) bool {
	_, ok := h.hooks[name]
	return ok
}

// run is the single worker goroutine. It is the only goroutine ever
// permitted to touch h.l.
func (h *Host) run() {
	defer h.wg.Done()
	for {
		select {
		case j := <-h.jobs:
			j.fn()
			close(j.done)
		case <-h.stopCh:
			return
		}
	}
}

// submit schedules fn to run on the worker goroutine and blocks until it
// completes.
func (h *Host) submit(fn func()) {
	done := make(chan struct{})
	h.jobs <- job{fn: fn, done: done}
	<-done
}

// Close stops the worker goroutine. No further hook calls may be made
// afterward.
func (h *Host) Close() {
	close(h.stopCh)
	h.wg.Wait()
}

// call invokes a resolved Lua function with args and returns its first
// return value, or (nil, false) if the hook returned Lua nil/false.
func (h *Host) call(name string, args ...lua.LValue) (lua.LValue, bool, error) {
	fn, ok := h.hooks[name]
	if !ok {
		return nil, false, nil
	}
	var ret lua.LValue
	var callErr error
	h.submit(func() {
		callErr = h.l.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...)
		if callErr != nil {
			return
		}
		ret = h.l.Get(-1)
		h.l.Pop(1)
	})
	if callErr != nil {
		return nil, false, callErr
	}
	if ret == lua.LNil || ret == nil || ret == lua.LFalse {
		return nil, false, nil
	}
	return ret, true, nil
}

// Startup runs the startup() hook once, before serving begins.
func (h *Host) Startup() error {
	if !h.has("startup") {
		return nil
	}
	var callErr error
	h.submit(func() {
		callErr = h.l.CallByParam(lua.P{Fn: h.hooks["startup"], NRet: 0, Protect: true}, h.l.GetGlobal("cli"))
	})
	return callErr
}

// Tick invokes tick(count); errors are the caller's (the tick driver's)
// responsibility to log and swallow.
func (h *Host) Tick(count int64) error {
	if !h.has("tick") {
		return nil
	}
	_, _, err := h.call("tick", lua.LNumber(count))
	return err
}

// Publish invokes publish(pe). If no publish hook is registered, behaves
// as if it returned the input unchanged. ok is false when the
// script rejected the message (nil/false return).
func (h *Host) Publish(pe message.PublishEnvelope) (message.PublishEnvelope, bool, error) {
	if !h.has("publish") {
		return pe, true, nil
	}
	var result message.PublishEnvelope
	var accepted bool
	var callErr error
	h.submit(func() {
		arg := publishEnvelopeToLua(h.l, pe)
		callErr = h.l.CallByParam(lua.P{Fn: h.hooks["publish"], NRet: 1, Protect: true}, arg)
		if callErr != nil {
			return
		}
		ret := h.l.Get(-1)
		h.l.Pop(1)
		if ret == lua.LNil || ret == lua.LFalse {
			return
		}
		tbl, ok := ret.(*lua.LTable)
		if !ok {
			return
		}
		result = publishEnvelopeFromLua(tbl, pe)
		accepted = true
	})
	if callErr != nil {
		return message.PublishEnvelope{}, false, callErr
	}
	return result, accepted, nil
}

// Subscribe invokes subscribe(se). Absence of the hook behaves as accept
// unchanged, per the same "optional hook" contract as publish.
func (h *Host) Subscribe(se message.SubscribeEnvelope) (message.SubscribeEnvelope, bool, error) {
	if !h.has("subscribe") {
		return se, true, nil
	}
	var result message.SubscribeEnvelope
	var accepted bool
	var callErr error
	h.submit(func() {
		arg := subscribeEnvelopeToLua(h.l, se)
		callErr = h.l.CallByParam(lua.P{Fn: h.hooks["subscribe"], NRet: 1, Protect: true}, arg)
		if callErr != nil {
			return
		}
		ret := h.l.Get(-1)
		h.l.Pop(1)
		if ret == lua.LNil || ret == lua.LFalse {
			return
		}
		tbl, ok := ret.(*lua.LTable)
		if !ok {
			return
		}
		result = subscribeEnvelopeFromLua(tbl, se)
		accepted = true
	})
	if callErr != nil {
		return message.SubscribeEnvelope{}, false, callErr
	}
	return result, accepted, nil
}

// Catchup invokes catchup(se, last_event_id), if present. present is false
// when the hook is not registered at all, which the subscriber engine
// treats as "no catch-up" rather than an error.
func (h *Host) Catchup(se message.SubscribeEnvelope, lastEventID string) (msgs []message.Message, present bool, err error) {
	if !h.has("catchup") {
		return nil, false, nil
	}
	present = true
	var callErr error
	h.submit(func() {
		args := []lua.LValue{subscribeEnvelopeToLua(h.l, se), lua.LString(lastEventID)}
		callErr = h.l.CallByParam(lua.P{Fn: h.hooks["catchup"], NRet: 1, Protect: true}, args...)
		if callErr != nil {
			return
		}
		ret := h.l.Get(-1)
		h.l.Pop(1)
		if ret == lua.LNil {
			return
		}
		tbl, ok := ret.(*lua.LTable)
		if !ok {
			return
		}
		tbl.ForEach(func(_ lua.LValue, val lua.LValue) {
			if mtbl, ok := val.(*lua.LTable); ok {
				msgs = append(msgs, messageFromLua(mtbl))
			}
		})
	})
	if callErr != nil {
		return nil, true, callErr
	}
	return msgs, true, nil
}

// Message invokes message(pe, se) for one subscriber's view of one
// published item. ok is false when the hook drops the message (nil
// return or empty resulting message is left to the caller to check).
func (h *Host) Message(pe message.PublishEnvelope, se message.SubscribeEnvelope) (message.PublishEnvelope, bool, error) {
	if !h.has("message") {
		return pe, true, nil
	}
	var result message.PublishEnvelope
	var accepted bool
	var callErr error
	h.submit(func() {
		args := []lua.LValue{publishEnvelopeToLua(h.l, pe), subscribeEnvelopeToLua(h.l, se)}
		callErr = h.l.CallByParam(lua.P{Fn: h.hooks["message"], NRet: 1, Protect: true}, args...)
		if callErr != nil {
			return
		}
		ret := h.l.Get(-1)
		h.l.Pop(1)
		if ret == lua.LNil || ret == lua.LFalse {
			return
		}
		tbl, ok := ret.(*lua.LTable)
		if !ok {
			return
		}
		result = publishEnvelopeFromLua(tbl, pe)
		accepted = true
	})
	if callErr != nil {
		return message.PublishEnvelope{}, false, callErr
	}
	return result, accepted, nil
}

// Unsubscribe invokes unsubscribe(se). Errors are the caller's
// responsibility to log and suppress.
func (h *Host) Unsubscribe(se message.SubscribeEnvelope) error {
	if !h.has("unsubscribe") {
		return nil
	}
	var callErr error
	h.submit(func() {
		arg := subscribeEnvelopeToLua(h.l, se)
		callErr = h.l.CallByParam(lua.P{Fn: h.hooks["unsubscribe"], NRet: 0, Protect: true}, arg)
	})
	return callErr
}

// Timeout invokes timeout(se, elapsed_ms). If it returns a number,
// overrideMS is that value and ok is true; otherwise the caller falls
// back to the configured timeout_retry.
func (h *Host) Timeout(se message.SubscribeEnvelope, elapsedMS int64) (overrideMS int64, ok bool, err error) {
	if !h.has("timeout") {
		return 0, false, nil
	}
	var callErr error
	h.submit(func() {
		args := []lua.LValue{subscribeEnvelopeToLua(h.l, se), lua.LNumber(elapsedMS)}
		callErr = h.l.CallByParam(lua.P{Fn: h.hooks["timeout"], NRet: 1, Protect: true}, args...)
		if callErr != nil {
			return
		}
		ret := h.l.Get(-1)
		h.l.Pop(1)
		if n, isNum := ret.(lua.LNumber); isNum {
			overrideMS = int64(n)
			ok = true
		}
	})
	if callErr != nil {
		return 0, false, callErr
	}
	return overrideMS, ok, nil
}

// HasHook reports whether the named hook is registered.
func (h *Host) HasHook(name string) bool { return h.has(name) }
