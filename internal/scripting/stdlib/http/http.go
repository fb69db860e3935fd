// Package http implements the script-visible `http` capability: a
// default client plus agent(opts) reusable clients whose default options
// are deep-merged (via dario.cat/mergo) under later per-call options.
// Grounded on original_source/src/userdata/http.rs.
package http

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"dario.cat/mergo"
	lua "github.com/yuin/gopher-lua"
)

const userAgent = "tinysse/1"

// Register installs the `http` global table with get/head/post/put/patch/
// delete/options/request/agent.
func Register(l *lua.LState) {
	tbl := l.NewTable()
	def := newAgent(nil)
	installMethods(l, tbl, def)
	l.SetFuncs(tbl, map[string]lua.LGFunction{
		"agent": func(L *lua.LState) int {
			var opts *lua.LTable
			if t, ok := L.Get(1).(*lua.LTable); ok {
				opts = t
			}
			a := newAgent(opts)
			atbl := L.NewTable()
			installMethods(L, atbl, a)
			L.Push(atbl)
			return 1
		},
	})
	l.SetGlobal("http", tbl)
}

type agent struct {
	client *http.Client
	opts   map[string]interface{}
}

func newAgent(opts *lua.LTable) *agent {
	a := &agent{client: &http.Client{}}
	if opts != nil {
		a.opts = tableToMap(opts)
	}
	return a
}

func installMethods(l *lua.LState, tbl *lua.LTable, a *agent) {
	methodFn := func(method string) lua.LGFunction {
		return func(L *lua.LState) int {
			url := L.CheckString(1)
			var opts map[string]interface{}
			if t, ok := L.Get(2).(*lua.LTable); ok {
				opts = tableToMap(t)
			}
			return a.doRequest(L, method, url, opts)
		}
	}
	l.SetFuncs(tbl, map[string]lua.LGFunction{
		"get":     methodFn(http.MethodGet),
		"head":    methodFn(http.MethodHead),
		"post":    methodFn(http.MethodPost),
		"put":     methodFn(http.MethodPut),
		"patch":   methodFn(http.MethodPatch),
		"delete":  methodFn(http.MethodDelete),
		"options": methodFn(http.MethodOptions),
		"request": func(L *lua.LState) int {
			method := L.CheckString(1)
			url := L.CheckString(2)
			var opts map[string]interface{}
			if t, ok := L.Get(3).(*lua.LTable); ok {
				opts = tableToMap(t)
			}
			return a.doRequest(L, method, url, opts)
		},
	})
}

// doRequest merges a's default opts under the per-call opts (per-call
// wins) via mergo, then performs the HTTP round trip.
func (a *agent) doRequest(L *lua.LState, method, rawURL string, callOpts map[string]interface{}) int {
	merged := map[string]interface{}{}
	if a.opts != nil {
		for k, v := range a.opts {
			merged[k] = v
		}
	}
	if callOpts != nil {
		if err := mergo.Merge(&merged, callOpts, mergo.WithOverride); err != nil {
			L.RaiseError("http: merging options: %v", err)
			return 0
		}
	}

	var body io.Reader
	if b, ok := merged["body"].(string); ok {
		body = strings.NewReader(b)
	}

	fullURL := rawURL
	if argsRaw, ok := merged["args"].(map[string]interface{}); ok {
		fullURL = appendQuery(rawURL, argsRaw)
	}

	req, err := http.NewRequest(method, fullURL, body)
	if err != nil {
		L.RaiseError("http: %v", err)
		return 0
	}
	req.Header.Set("User-Agent", userAgent)

	if headers, ok := merged["headers"].(map[string]interface{}); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.Header.Set(k, s)
			}
		}
	}

	client := *a.client
	if timeoutMS, ok := merged["timeout"].(float64); ok {
		client.Timeout = time.Duration(timeoutMS) * time.Millisecond
	}

	resp, err := client.Do(req)
	if err != nil {
		L.RaiseError("http: %v", err)
		return 0
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		L.RaiseError("http: reading response body: %v", err)
		return 0
	}

	out := L.NewTable()
	out.RawSetString("status", lua.LNumber(resp.StatusCode))
	headers := L.NewTable()
	for k := range resp.Header {
		headers.RawSetString(k, lua.LString(resp.Header.Get(k)))
	}
	out.RawSetString("headers", headers)
	out.RawSetString("body", lua.LString(raw))
	L.Push(out)
	return 1
}

func appendQuery(rawURL string, args map[string]interface{}) string {
	var buf bytes.Buffer
	buf.WriteString(rawURL)
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	for k, v := range args {
		switch vv := v.(type) {
		case []interface{}:
			for _, e := range vv {
				buf.WriteString(sep)
				buf.WriteString(k)
				buf.WriteString("=")
				buf.WriteString(toStr(e))
				sep = "&"
			}
		default:
			buf.WriteString(sep)
			buf.WriteString(k)
			buf.WriteString("=")
			buf.WriteString(toStr(v))
			sep = "&"
		}
	}
	return buf.String()
}

func toStr(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	default:
		return ""
	}
}

// tableToMap converts a Lua options table into a Go map suitable for
// mergo, recursing into nested sub-tables (headers, args, ...) at any depth.
func tableToMap(t *lua.LTable) map[string]interface{} {
	m := map[string]interface{}{}
	t.ForEach(func(k, v lua.LValue) {
		key, ok := k.(lua.LString)
		if !ok {
			return
		}
		m[string(key)] = luaValueToGo(v)
	})
	return m
}

func luaValueToGo(v lua.LValue) interface{} {
	switch t := v.(type) {
	case lua.LString:
		return string(t)
	case lua.LNumber:
		return float64(t)
	case lua.LBool:
		return bool(t)
	case *lua.LTable:
		n := t.Len()
		if n > 0 {
			arr := make([]interface{}, 0, n)
			for i := 1; i <= n; i++ {
				arr = append(arr, luaValueToGo(t.RawGetInt(i)))
			}
			return arr
		}
		m := map[string]interface{}{}
		t.ForEach(func(k, val lua.LValue) {
			if ks, ok := k.(lua.LString); ok {
				m[string(ks)] = luaValueToGo(val)
			}
		})
		return m
	default:
		return nil
	}
}
