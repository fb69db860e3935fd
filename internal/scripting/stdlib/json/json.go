// Package json implements the script-visible `json` capability: encode,
// decode, an array marker, a null sentinel, and print/pprint shortcuts.
// Grounded on original_source/src/userdata/json.rs; built directly on
// encoding/json since no pack repo offers a JSON replacement library
// beyond what the standard library already does for this contract.
package json

import (
	"encoding/json"
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

const arrayMarkerField = "__tinysse_array__"

// Register installs the `json` global table.
func Register(l *lua.LState) {
	tbl := l.NewTable()
	l.SetFuncs(tbl, map[string]lua.LGFunction{
		"encode": luaEncode,
		"decode": luaDecode,
		"array":  luaArray,
		"print":  luaPrint,
		"pprint": luaPprint,
	})
	tbl.RawSetString("null", lua.LNil)

	mt := l.NewTable()
	mt.RawSetString("__call", l.NewFunction(func(L *lua.LState) int {
		// drop the table itself (arg 1) then delegate to encode
		L.Remove(1)
		return luaEncode(L)
	}))
	l.SetMetatable(tbl, mt)

	l.SetGlobal("json", tbl)
}

func luaArray(L *lua.LState) int {
	tbl := L.OptTable(1, L.NewTable())
	tbl.RawSetString(arrayMarkerField, lua.LTrue)
	L.Push(tbl)
	return 1
}

func luaEncode(L *lua.LState) int {
	v := L.CheckAny(1)
	pretty := L.OptBool(2, false)
	goVal := toGo(v)
	var out []byte
	var err error
	if pretty {
		out, err = json.MarshalIndent(goVal, "", "  ")
	} else {
		out, err = json.Marshal(goVal)
	}
	if err != nil {
		L.RaiseError("json.encode: %v", err)
		return 0
	}
	L.Push(lua.LString(out))
	return 1
}

func luaDecode(L *lua.LState) int {
	text := L.CheckString(1)
	var v interface{}
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		L.RaiseError("json.decode: %v", err)
		return 0
	}
	L.Push(fromGo(L, v))
	return 1
}

func luaPrint(L *lua.LState) int {
	v := L.CheckAny(1)
	out, _ := json.Marshal(toGo(v))
	fmt.Println(string(out))
	return 0
}

func luaPprint(L *lua.LState) int {
	v := L.CheckAny(1)
	out, _ := json.MarshalIndent(toGo(v), "", "  ")
	fmt.Println(string(out))
	return 0
}

// toGo converts a Lua value into a JSON-marshalable Go value. Tables
// marked via json.array(), or with a contiguous 1..n integer key
// sequence, become slices; everything else with string keys becomes a
// map.
func toGo(v lua.LValue) interface{} {
	switch t := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(t)
	case lua.LNumber:
		return float64(t)
	case lua.LString:
		return string(t)
	case *lua.LTable:
		if t.RawGetString(arrayMarkerField) != lua.LNil {
			arr := []interface{}{}
			t.ForEach(func(k, val lua.LValue) {
				if _, isNum := k.(lua.LNumber); isNum {
					arr = append(arr, toGo(val))
				}
			})
			return arr
		}
		n := t.Len()
		if n > 0 {
			arr := make([]interface{}, 0, n)
			isArray := true
			for i := 1; i <= n; i++ {
				vi := t.RawGetInt(i)
				if vi == lua.LNil {
					isArray = false
					break
				}
				arr = append(arr, toGo(vi))
			}
			if isArray {
				return arr
			}
		}
		m := map[string]interface{}{}
		t.ForEach(func(k, val lua.LValue) {
			ks, ok := k.(lua.LString)
			if !ok || string(ks) == arrayMarkerField {
				return
			}
			m[string(ks)] = toGo(val)
		})
		return m
	default:
		return nil
	}
}

func fromGo(L *lua.LState, v interface{}) lua.LValue {
	switch t := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(t)
	case float64:
		return lua.LNumber(t)
	case string:
		return lua.LString(t)
	case []interface{}:
		tbl := L.NewTable()
		for _, e := range t {
			tbl.Append(fromGo(L, e))
		}
		tbl.RawSetString(arrayMarkerField, lua.LTrue)
		return tbl
	case map[string]interface{}:
		tbl := L.NewTable()
		for k, val := range t {
			tbl.RawSetString(k, fromGo(L, val))
		}
		return tbl
	default:
		return lua.LNil
	}
}
