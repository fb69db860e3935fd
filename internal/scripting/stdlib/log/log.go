// Package log implements the script-visible `log` capability, proxying
// onto the server's own zerolog logger so operator-configured level
// filtering also governs script logs. Grounded on
// original_source/src/userdata/log.rs.
package log

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/rs/zerolog"
)

const (
	levelError = "ERROR"
	levelWarn  = "WARN"
	levelInfo  = "INFO"
	levelDebug = "DEBUG"
	levelTrace = "TRACE"
)

// Register installs the `log` global table backed by logger.
func Register(l *lua.LState, logger zerolog.Logger) {
	tbl := l.NewTable()
	tbl.RawSetString("ERROR", lua.LString(levelError))
	tbl.RawSetString("WARN", lua.LString(levelWarn))
	tbl.RawSetString("INFO", lua.LString(levelInfo))
	tbl.RawSetString("DEBUG", lua.LString(levelDebug))
	tbl.RawSetString("TRACE", lua.LString(levelTrace))

	emit := func(level, msg string) {
		switch level {
		case levelError:
			logger.Error().Msg(msg)
		case levelWarn:
			logger.Warn().Msg(msg)
		case levelDebug:
			logger.Debug().Msg(msg)
		case levelTrace:
			logger.Trace().Msg(msg)
		default:
			logger.Info().Msg(msg)
		}
	}

	l.SetFuncs(tbl, map[string]lua.LGFunction{
		"log": func(L *lua.LState) int {
			emit(L.CheckString(1), L.CheckString(2))
			return 0
		},
		"logf": func(L *lua.LState) int {
			emit(L.CheckString(1), formatFrom(L, 2))
			return 0
		},
		"error": func(L *lua.LState) int { emit(levelError, L.CheckString(1)); return 0 },
		"warn":  func(L *lua.LState) int { emit(levelWarn, L.CheckString(1)); return 0 },
		"info":  func(L *lua.LState) int { emit(levelInfo, L.CheckString(1)); return 0 },
		"debug": func(L *lua.LState) int { emit(levelDebug, L.CheckString(1)); return 0 },
		"trace": func(L *lua.LState) int { emit(levelTrace, L.CheckString(1)); return 0 },
		"errorf": func(L *lua.LState) int { emit(levelError, formatFrom(L, 1)); return 0 },
		"warnf":  func(L *lua.LState) int { emit(levelWarn, formatFrom(L, 1)); return 0 },
		"infof":  func(L *lua.LState) int { emit(levelInfo, formatFrom(L, 1)); return 0 },
		"debugf": func(L *lua.LState) int { emit(levelDebug, formatFrom(L, 1)); return 0 },
		"tracef": func(L *lua.LState) int { emit(levelTrace, formatFrom(L, 1)); return 0 },
	})

	l.SetGlobal("log", tbl)
}

// formatFrom calls Lua's string.format(args[from:]) and returns the
// result, matching original_source's use of Lua's own formatter for the
// *f variants.
func formatFrom(L *lua.LState, from int) string {
	top := L.GetTop()
	if from > top {
		return ""
	}
	fnVal := L.GetGlobal("string").(*lua.LTable).RawGetString("format")
	fn, ok := fnVal.(*lua.LFunction)
	if !ok {
		return fallbackFormat(L, from, top)
	}
	args := make([]lua.LValue, 0, top-from+1)
	for i := from; i <= top; i++ {
		args = append(args, L.Get(i))
	}
	if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...); err != nil {
		return fallbackFormat(L, from, top)
	}
	ret := L.Get(-1)
	L.Pop(1)
	return lua.LVAsString(ret)
}

func fallbackFormat(L *lua.LState, from, top int) string {
	s := ""
	for i := from; i <= top; i++ {
		if i > from {
			s += " "
		}
		s += fmt.Sprintf("%v", L.Get(i))
	}
	return s
}
