// Package uuid implements the script-visible `uuid` capability: v4/v7
// generation, callable for v4. Grounded on
// original_source/src/userdata/uuid.rs. Uses github.com/google/uuid.
package uuid

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/google/uuid"
)

// Register installs the `uuid` global table.
func Register(l *lua.LState) {
	tbl := l.NewTable()
	l.SetFuncs(tbl, map[string]lua.LGFunction{
		"v4": luaV4,
		"v7": luaV7,
	})

	mt := l.NewTable()
	mt.RawSetString("__call", l.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(uuid.New().String()))
		return 1
	}))
	l.SetMetatable(tbl, mt)

	l.SetGlobal("uuid", tbl)
}

func luaV4(L *lua.LState) int {
	L.Push(lua.LString(uuid.New().String()))
	return 1
}

func luaV7(L *lua.LState) int {
	id, err := uuid.NewV7()
	if err != nil {
		L.RaiseError("uuid.v7: %v", err)
		return 0
	}
	L.Push(lua.LString(id.String()))
	return 1
}
