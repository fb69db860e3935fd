package scripting

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/johnjansen/tinysse/internal/message"
)

// goToLua projects a small set of Go scalar types into Lua values; used
// for the cli table and for scalar meta values. Any other type becomes nil.
func goToLua(l *lua.LState, v interface{}) lua.LValue {
	switch t := v.(type) {
	case string:
		return lua.LString(t)
	case bool:
		return lua.LBool(t)
	case int:
		return lua.LNumber(t)
	case int64:
		return lua.LNumber(t)
	case float64:
		return lua.LNumber(t)
	default:
		return lua.LNil
	}
}

func messageToLua(l *lua.LState, m message.Message) *lua.LTable {
	tbl := l.NewTable()
	if m.HasID() {
		tbl.RawSetString("id", lua.LString(m.ID))
	}
	if m.HasEvent() {
		tbl.RawSetString("event", lua.LString(m.Event))
	}
	if m.HasData() {
		tbl.RawSetString("data", lua.LString(m.Data))
	}
	if len(m.Comment) > 0 {
		ctbl := l.NewTable()
		for _, c := range m.Comment {
			ctbl.Append(lua.LString(c))
		}
		tbl.RawSetString("comment", ctbl)
	}
	if m.Retry != nil {
		tbl.RawSetString("retry", lua.LNumber(*m.Retry))
	}
	return tbl
}

func messageFromLua(tbl *lua.LTable) message.Message {
	var m message.Message
	if v := tbl.RawGetString("id"); v != lua.LNil {
		m.SetID(lua.LVAsString(v))
	}
	if v := tbl.RawGetString("event"); v != lua.LNil {
		m.SetEvent(lua.LVAsString(v))
	}
	if v := tbl.RawGetString("data"); v != lua.LNil {
		m.SetData(lua.LVAsString(v))
	}
	if v := tbl.RawGetString("comment"); v != lua.LNil {
		if ctbl, ok := v.(*lua.LTable); ok {
			ctbl.ForEach(func(_ lua.LValue, val lua.LValue) {
				m.Comment = append(m.Comment, lua.LVAsString(val))
			})
		}
	}
	if v := tbl.RawGetString("retry"); v != lua.LNil {
		if n, ok := v.(lua.LNumber); ok {
			r := int64(n)
			m.Retry = &r
		}
	}
	return m
}

func requestToLua(l *lua.LState, r message.Request) *lua.LTable {
	tbl := l.NewTable()
	addr := l.NewTable()
	addr.RawSetString("ip", lua.LString(r.Addr.IP))
	addr.RawSetString("port", lua.LNumber(r.Addr.Port))
	tbl.RawSetString("addr", addr)
	tbl.RawSetString("method", lua.LString(r.Method))
	tbl.RawSetString("uri", lua.LString(r.URI))
	tbl.RawSetString("path", lua.LString(r.Path))
	tbl.RawSetString("query", lua.LString(r.Query))
	headers := l.NewTable()
	for k, v := range r.Headers {
		headers.RawSetString(k, lua.LString(v))
	}
	tbl.RawSetString("headers", headers)
	return tbl
}

// metaFromLua collects every key of tbl not in exclude into a Meta bag,
// mirroring original_source/src/req.rs's "leftover table keys" round trip
// for PubReq/SubReq meta.
func metaFromLua(tbl *lua.LTable, exclude map[string]bool) message.Meta {
	meta := message.Meta{}
	tbl.ForEach(func(k lua.LValue, v lua.LValue) {
		key, ok := k.(lua.LString)
		if !ok || exclude[string(key)] {
			return
		}
		meta[string(key)] = luaToGo(v)
	})
	return meta
}

func luaToGo(v lua.LValue) interface{} {
	switch t := v.(type) {
	case lua.LString:
		return string(t)
	case lua.LNumber:
		return float64(t)
	case lua.LBool:
		return bool(t)
	case *lua.LTable:
		// Best-effort: treat as array if it has a contiguous integer key
		// sequence starting at 1, else as a string-keyed map.
		arr := []interface{}{}
		isArray := true
		n := t.Len()
		for i := 1; i <= n; i++ {
			val := t.RawGetInt(i)
			if val == lua.LNil {
				isArray = false
				break
			}
			arr = append(arr, luaToGo(val))
		}
		if isArray && n > 0 {
			return arr
		}
		m := map[string]interface{}{}
		t.ForEach(func(k, val lua.LValue) {
			if ks, ok := k.(lua.LString); ok {
				m[string(ks)] = luaToGo(val)
			}
		})
		return m
	default:
		return nil
	}
}

// metaValueToLua is the inverse of luaToGo: it projects a meta value a
// hook previously stored (possibly a []interface{} or map[string]interface{}
// produced by luaToGo) back into Lua, so nested meta survives the
// publish/subscribe -> message/unsubscribe round trip instead of collapsing
// to nil.
func metaValueToLua(l *lua.LState, v interface{}) lua.LValue {
	switch t := v.(type) {
	case []interface{}:
		tbl := l.NewTable()
		for _, e := range t {
			tbl.Append(metaValueToLua(l, e))
		}
		return tbl
	case map[string]interface{}:
		tbl := l.NewTable()
		for k, val := range t {
			tbl.RawSetString(k, metaValueToLua(l, val))
		}
		return tbl
	default:
		return goToLua(l, v)
	}
}

func publishEnvelopeToLua(l *lua.LState, pe message.PublishEnvelope) *lua.LTable {
	tbl := l.NewTable()
	tbl.RawSetString("req", requestToLua(l, pe.Req))
	tbl.RawSetString("msg", messageToLua(l, pe.Msg))
	for k, v := range pe.Meta {
		tbl.RawSetString(k, metaValueToLua(l, v))
	}
	return tbl
}

var peReservedKeys = map[string]bool{"req": true, "msg": true}

func publishEnvelopeFromLua(tbl *lua.LTable, base message.PublishEnvelope) message.PublishEnvelope {
	pe := base
	if v, ok := tbl.RawGetString("msg").(*lua.LTable); ok {
		pe.Msg = messageFromLua(v)
	}
	pe.Meta = metaFromLua(tbl, peReservedKeys)
	return pe
}

func subscribeEnvelopeToLua(l *lua.LState, se message.SubscribeEnvelope) *lua.LTable {
	tbl := l.NewTable()
	tbl.RawSetString("req", requestToLua(l, se.Req))
	if se.LastEventID != nil {
		tbl.RawSetString("last_event_id", lua.LString(*se.LastEventID))
	}
	for k, v := range se.Meta {
		tbl.RawSetString(k, metaValueToLua(l, v))
	}
	return tbl
}

var seReservedKeys = map[string]bool{"req": true, "last_event_id": true}

func subscribeEnvelopeFromLua(tbl *lua.LTable, base message.SubscribeEnvelope) message.SubscribeEnvelope {
	se := base
	se.Meta = metaFromLua(tbl, seReservedKeys)
	return se
}
