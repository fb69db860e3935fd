// Package url implements the script-visible `url` capability: structured
// URL encode/decode plus form quote/unquote. Grounded on
// original_source/src/userdata/url.rs. Built directly on net/url — no
// pack library offers anything beyond stdlib for this contract.
package url

import (
	"fmt"
	"net/url"
	"strconv"

	lua "github.com/yuin/gopher-lua"
)

// Register installs the `url` global table.
func Register(l *lua.LState) {
	tbl := l.NewTable()
	l.SetFuncs(tbl, map[string]lua.LGFunction{
		"encode":  luaEncode,
		"decode":  luaDecode,
		"quote":   luaQuote,
		"unquote": luaUnquote,
	})
	mt := l.NewTable()
	mt.RawSetString("__call", l.NewFunction(func(L *lua.LState) int {
		L.Remove(1)
		return luaEncode(L)
	}))
	l.SetMetatable(tbl, mt)
	l.SetGlobal("url", tbl)
}

func luaEncode(L *lua.LState) int {
	parts := L.CheckTable(1)
	scheme := str(parts.RawGetString("scheme"))
	host := str(parts.RawGetString("host"))
	if scheme == "" || host == "" {
		L.RaiseError("url.encode: scheme and host are required")
		return 0
	}
	u := &url.URL{Scheme: scheme, Host: host}
	if username := str(parts.RawGetString("username")); username != "" {
		if password := str(parts.RawGetString("password")); password != "" {
			u.User = url.UserPassword(username, password)
		} else {
			u.User = url.User(username)
		}
	}
	if port := str(parts.RawGetString("port")); port != "" {
		u.Host = host + ":" + port
	}
	if path := str(parts.RawGetString("path")); path != "" {
		u.Path = path
	}
	if fragment := str(parts.RawGetString("fragment")); fragment != "" {
		u.Fragment = fragment
	}
	if argsTbl, ok := parts.RawGetString("args").(*lua.LTable); ok {
		q := argsToValues(argsTbl)
		u.RawQuery = q.Encode()
	} else if query := str(parts.RawGetString("query")); query != "" {
		u.RawQuery = query
	}
	L.Push(lua.LString(u.String()))
	return 1
}

func luaDecode(L *lua.LState) int {
	raw := L.CheckString(1)
	u, err := url.Parse(raw)
	if err != nil {
		L.RaiseError("url.decode: %v", err)
		return 0
	}
	out := L.NewTable()
	out.RawSetString("scheme", lua.LString(u.Scheme))
	if u.User != nil {
		out.RawSetString("username", lua.LString(u.User.Username()))
		if pw, ok := u.User.Password(); ok {
			out.RawSetString("password", lua.LString(pw))
		}
	}
	host := u.Hostname()
	out.RawSetString("host", lua.LString(host))
	if port := u.Port(); port != "" {
		out.RawSetString("port", lua.LString(port))
	}
	out.RawSetString("path", lua.LString(u.Path))
	out.RawSetString("query", lua.LString(u.RawQuery))
	out.RawSetString("args", valuesToArgs(L, u.Query()))
	out.RawSetString("fragment", lua.LString(u.Fragment))
	L.Push(out)
	return 1
}

func luaQuote(L *lua.LState) int {
	tbl := L.CheckTable(1)
	q := argsToValues(tbl)
	L.Push(lua.LString(q.Encode()))
	return 1
}

func luaUnquote(L *lua.LState) int {
	raw := L.CheckString(1)
	values, err := url.ParseQuery(raw)
	if err != nil {
		L.RaiseError("url.unquote: %v", err)
		return 0
	}
	L.Push(valuesToArgs(L, values))
	return 1
}

func argsToValues(tbl *lua.LTable) url.Values {
	q := url.Values{}
	tbl.ForEach(func(k, v lua.LValue) {
		key, ok := k.(lua.LString)
		if !ok {
			return
		}
		switch vv := v.(type) {
		case *lua.LTable:
			vv.ForEach(func(_, elem lua.LValue) {
				q.Add(string(key), str(elem))
			})
		default:
			q.Add(string(key), str(v))
		}
	})
	return q
}

func valuesToArgs(L *lua.LState, values url.Values) *lua.LTable {
	out := L.NewTable()
	for k, vs := range values {
		arr := L.NewTable()
		for _, v := range vs {
			arr.Append(lua.LString(v))
		}
		out.RawSetString(k, arr)
	}
	return out
}

func str(v lua.LValue) string {
	switch t := v.(type) {
	case lua.LString:
		return string(t)
	case lua.LNumber:
		return strconv.FormatFloat(float64(t), 'f', -1, 64)
	case *lua.LNilType:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
