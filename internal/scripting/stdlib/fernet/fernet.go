// Package fernet implements the script-visible `fernet` capability:
// genkey() plus a callable constructor yielding encrypt/decrypt. Grounded
// on original_source/src/userdata/fernet.rs. Uses github.com/fernet/fernet-go,
// the direct ecosystem counterpart of the Rust `fernet` crate — no pack
// repo implements Fernet itself.
package fernet

import (
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/fernet/fernet-go"
)

const keyTypeName = "tinysse.fernet.key"

// noTTL is passed to fernet.VerifyAndDecrypt when the script omits the
// optional ttl argument: decrypt(token, ttl?) with ttl absent means no
// expiry check, matching the Rust fernet crate's no-ttl decrypt. A literal
// zero duration instead makes VerifyAndDecrypt reject every token as
// already expired, so an effectively unbounded TTL stands in for "none".
const noTTL = 100 * 365 * 24 * time.Hour

// Register installs the `fernet` global: genkey() plus a callable
// constructor.
func Register(l *lua.LState) {
	mt := l.NewTypeMetatable(keyTypeName)
	l.SetField(mt, "__index", l.SetFuncs(l.NewTable(), map[string]lua.LGFunction{
		"encrypt": keyEncrypt,
		"decrypt": keyDecrypt,
	}))

	tbl := l.NewTable()
	l.SetFuncs(tbl, map[string]lua.LGFunction{
		"genkey": luaGenkey,
	})
	cmt := l.NewTable()
	cmt.RawSetString("__call", l.NewFunction(luaConstruct))
	l.SetMetatable(tbl, cmt)
	l.SetGlobal("fernet", tbl)
}

func luaGenkey(L *lua.LState) int {
	var k fernet.Key
	if err := k.Generate(); err != nil {
		L.RaiseError("fernet.genkey: %v", err)
		return 0
	}
	L.Push(lua.LString(k.Encode()))
	return 1
}

func luaConstruct(L *lua.LState) int {
	L.Remove(1) // drop the fernet table itself (self from __call)
	var key *fernet.Key
	if L.GetTop() >= 1 {
		keyStr := L.CheckString(1)
		k, err := fernet.DecodeKey(keyStr)
		if err != nil {
			L.RaiseError("fernet: invalid key: %v", err)
			return 0
		}
		key = k
	} else {
		var k fernet.Key
		if err := k.Generate(); err != nil {
			L.RaiseError("fernet: %v", err)
			return 0
		}
		key = &k
	}
	ud := L.NewUserData()
	ud.Value = key
	L.SetMetatable(ud, L.GetTypeMetatable(keyTypeName))
	L.Push(ud)
	return 1
}

func checkKey(L *lua.LState) *fernet.Key {
	ud, ok := L.Get(1).(*lua.LUserData)
	if !ok {
		L.RaiseError("fernet: expected a key value")
		return nil
	}
	k, ok := ud.Value.(*fernet.Key)
	if !ok {
		L.RaiseError("fernet: corrupt key userdata")
		return nil
	}
	return k
}

func keyEncrypt(L *lua.LState) int {
	key := checkKey(L)
	if key == nil {
		return 0
	}
	plaintext := L.CheckString(2)
	token, err := fernet.EncryptAndSign([]byte(plaintext), key)
	if err != nil {
		L.RaiseError("fernet.encrypt: %v", err)
		return 0
	}
	L.Push(lua.LString(string(token)))
	return 1
}

func keyDecrypt(L *lua.LState) int {
	key := checkKey(L)
	if key == nil {
		return 0
	}
	token := L.CheckString(2)
	ttl := noTTL
	if L.GetTop() >= 3 {
		ttl = time.Duration(L.CheckNumber(3)) * time.Millisecond
	}
	msg := fernet.VerifyAndDecrypt([]byte(token), ttl, []*fernet.Key{key})
	if msg == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(string(msg)))
	return 1
}
