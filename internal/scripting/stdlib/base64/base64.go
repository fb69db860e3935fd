// Package base64 implements the script-visible `base64` capability plus
// its `urlsafe` sub-object, grounded on
// original_source/src/userdata/base64.rs. Built directly on
// encoding/base64 — no pack library offers anything beyond stdlib for
// this contract.
package base64

import (
	stdb64 "encoding/base64"

	lua "github.com/yuin/gopher-lua"
)

// Register installs the `base64` global table, with a `urlsafe`
// sub-object sharing the same encode/decode/call surface.
func Register(l *lua.LState) {
	tbl := buildTable(l, stdb64.StdEncoding)
	urlsafe := buildTable(l, stdb64.URLEncoding)
	tbl.RawSetString("urlsafe", urlsafe)
	l.SetGlobal("base64", tbl)
}

func buildTable(l *lua.LState, enc *stdb64.Encoding) *lua.LTable {
	tbl := l.NewTable()
	l.SetFuncs(tbl, map[string]lua.LGFunction{
		"encode": func(L *lua.LState) int {
			s := L.CheckString(1)
			L.Push(lua.LString(enc.EncodeToString([]byte(s))))
			return 1
		},
		"decode": func(L *lua.LState) int {
			s := L.CheckString(1)
			out, err := enc.DecodeString(s)
			if err != nil {
				L.RaiseError("base64.decode: %v", err)
				return 0
			}
			L.Push(lua.LString(out))
			return 1
		},
	})
	mt := l.NewTable()
	mt.RawSetString("__call", l.NewFunction(func(L *lua.LState) int {
		L.Remove(1)
		s := L.CheckString(1)
		L.Push(lua.LString(enc.EncodeToString([]byte(s))))
		return 1
	}))
	l.SetMetatable(tbl, mt)
	return tbl
}
