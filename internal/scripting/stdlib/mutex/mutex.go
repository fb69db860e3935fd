// Package mutex implements the script-visible `mutex` capability: calling
// mutex() constructs a lock value; calling that value with a function
// takes the lock for the callback's duration. Grounded on
// original_source/src/userdata/mutex.rs.
//
// Because every hook invocation is already serialized onto the single
// interpreter worker goroutine (see internal/scripting/host.go), this
// lock can never actually contend with itself from script code — but the
// API surface is preserved faithfully so scripts written against the
// documented contract behave the same.
package mutex

import (
	"sync"

	lua "github.com/yuin/gopher-lua"
)

const udataTypeName = "tinysse.mutex"

// Register installs the callable `mutex` global constructor.
func Register(l *lua.LState) {
	mt := l.NewTypeMetatable(udataTypeName)
	l.SetField(mt, "__call", l.NewFunction(callMutex))

	ctor := l.NewTable()
	cmt := l.NewTable()
	cmt.RawSetString("__call", l.NewFunction(func(L *lua.LState) int {
		L.Remove(1)
		ud := L.NewUserData()
		ud.Value = &sync.Mutex{}
		L.SetMetatable(ud, L.GetTypeMetatable(udataTypeName))
		L.Push(ud)
		return 1
	}))
	l.SetMetatable(ctor, cmt)
	l.SetGlobal("mutex", ctor)
}

func callMutex(L *lua.LState) int {
	ud, ok := L.Get(1).(*lua.LUserData)
	if !ok {
		L.RaiseError("mutex: expected a mutex value")
		return 0
	}
	m, ok := ud.Value.(*sync.Mutex)
	if !ok {
		L.RaiseError("mutex: corrupt userdata")
		return 0
	}
	fn, ok := L.Get(2).(*lua.LFunction)
	if !ok {
		L.RaiseError("mutex: expected a function")
		return 0
	}
	m.Lock()
	defer m.Unlock()

	if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}); err != nil {
		L.RaiseError("mutex: %v", err)
		return 0
	}
	ret := L.Get(-1)
	L.Pop(1)
	L.Push(ret)
	return 1
}
