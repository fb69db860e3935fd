// Package template implements the script-visible `template` capability:
// a one-shot renderstring(src, ctx) and library(opts) environments with
// named template storage. Grounded on
// original_source/src/userdata/template.rs. Uses github.com/gobuffalo/plush/v4,
// already pulled in indirectly by the buffalo/render stack —
// the same engine any .plush.html views in this codebase would use.
package template

import (
	"html"
	"os"
	"path/filepath"

	"github.com/gobuffalo/plush/v4"
	lua "github.com/yuin/gopher-lua"
)

const envTypeName = "tinysse.template.env"

// Register installs the `template` global table.
func Register(l *lua.LState) {
	mt := l.NewTypeMetatable(envTypeName)
	l.SetField(mt, "__index", l.SetFuncs(l.NewTable(), map[string]lua.LGFunction{
		"render":       envRender,
		"renderstring": envRenderString,
		"add":          envAdd,
		"remove":       envRemove,
		"clear":        envClear,
	}))

	tbl := l.NewTable()
	l.SetFuncs(tbl, map[string]lua.LGFunction{
		"renderstring": luaRenderString,
		"library":      luaLibrary,
	})
	l.SetGlobal("template", tbl)
}

type env struct {
	templates  map[string]string
	autoescape string // "html" | "json" | "none"
	trimBlocks bool
}

func luaRenderString(L *lua.LState) int {
	src := L.CheckString(1)
	var ctxTbl *lua.LTable
	if t, ok := L.Get(2).(*lua.LTable); ok {
		ctxTbl = t
	}
	out, err := render(src, ctxTbl, "html")
	if err != nil {
		L.RaiseError("template.renderstring: %v", err)
		return 0
	}
	L.Push(lua.LString(out))
	return 1
}

func luaLibrary(L *lua.LState) int {
	opts, _ := L.Get(1).(*lua.LTable)
	e := &env{templates: map[string]string{}, autoescape: "html"}

	if opts != nil {
		if v, ok := opts.RawGetString("autoescape").(lua.LString); ok {
			e.autoescape = string(v)
		}
		if v, ok := opts.RawGetString("trim_blocks").(lua.LBool); ok {
			e.trimBlocks = bool(v)
		}
		if dir, ok := opts.RawGetString("directory").(lua.LString); ok && dir != "" {
			entries, err := os.ReadDir(string(dir))
			if err == nil {
				for _, ent := range entries {
					if ent.IsDir() {
						continue
					}
					data, err := os.ReadFile(filepath.Join(string(dir), ent.Name()))
					if err == nil {
						e.templates[ent.Name()] = string(data)
					}
				}
			}
		}
		if tmplTbl, ok := opts.RawGetString("templates").(*lua.LTable); ok {
			tmplTbl.ForEach(func(k, v lua.LValue) {
				name, okk := k.(lua.LString)
				src, oks := v.(lua.LString)
				if okk && oks {
					e.templates[string(name)] = string(src)
				}
			})
		}
	}

	ud := L.NewUserData()
	ud.Value = e
	L.SetMetatable(ud, L.GetTypeMetatable(envTypeName))
	L.Push(ud)
	return 1
}

func checkEnv(L *lua.LState) *env {
	ud, ok := L.Get(1).(*lua.LUserData)
	if !ok {
		L.RaiseError("template: expected an environment value")
		return nil
	}
	e, ok := ud.Value.(*env)
	if !ok {
		L.RaiseError("template: corrupt environment userdata")
		return nil
	}
	return e
}

func envRender(L *lua.LState) int {
	e := checkEnv(L)
	if e == nil {
		return 0
	}
	name := L.CheckString(2)
	src, ok := e.templates[name]
	if !ok {
		L.RaiseError("template.render: unknown template %q", name)
		return 0
	}
	var ctxTbl *lua.LTable
	if t, ok := L.Get(3).(*lua.LTable); ok {
		ctxTbl = t
	}
	out, err := render(src, ctxTbl, e.autoescape)
	if err != nil {
		L.RaiseError("template.render: %v", err)
		return 0
	}
	L.Push(lua.LString(out))
	return 1
}

func envRenderString(L *lua.LState) int {
	e := checkEnv(L)
	if e == nil {
		return 0
	}
	src := L.CheckString(2)
	var ctxTbl *lua.LTable
	if t, ok := L.Get(3).(*lua.LTable); ok {
		ctxTbl = t
	}
	out, err := render(src, ctxTbl, e.autoescape)
	if err != nil {
		L.RaiseError("template.renderstring: %v", err)
		return 0
	}
	L.Push(lua.LString(out))
	return 1
}

func envAdd(L *lua.LState) int {
	e := checkEnv(L)
	if e == nil {
		return 0
	}
	name := L.CheckString(2)
	src := L.CheckString(3)
	e.templates[name] = src
	return 0
}

func envRemove(L *lua.LState) int {
	e := checkEnv(L)
	if e == nil {
		return 0
	}
	name := L.CheckString(2)
	delete(e.templates, name)
	return 0
}

func envClear(L *lua.LState) int {
	e := checkEnv(L)
	if e == nil {
		return 0
	}
	e.templates = map[string]string{}
	return 0
}

func render(src string, ctxTbl *lua.LTable, autoescape string) (string, error) {
	ctx := plush.NewContext()
	if ctxTbl != nil {
		ctxTbl.ForEach(func(k, v lua.LValue) {
			key, ok := k.(lua.LString)
			if !ok {
				return
			}
			ctx.Set(string(key), luaScalarToGo(v, autoescape))
		})
	}
	return plush.Render(src, ctx)
}

// luaScalarToGo converts a Lua context value for Plush, HTML-escaping
// string leaves when autoescape is "html" (Plush's own default behavior
// for its helpers does not escape arbitrary Go values passed through
// context, so this restores the HTML-autoescaping-by-default contract
// requires).
func luaScalarToGo(v lua.LValue, autoescape string) interface{} {
	switch t := v.(type) {
	case lua.LString:
		if autoescape == "html" {
			return html.EscapeString(string(t))
		}
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
				arr = append(arr, luaScalarToGo(t.RawGetInt(i), autoescape))
			}
			return arr
		}
		m := map[string]interface{}{}
		t.ForEach(func(k, val lua.LValue) {
			if ks, ok := k.(lua.LString); ok {
				m[string(ks)] = luaScalarToGo(val, autoescape)
			}
		})
		return m
	default:
		return nil
	}
}
