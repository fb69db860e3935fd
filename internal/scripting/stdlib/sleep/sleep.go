// Package sleep implements the script-visible `sleep(ms)` capability,
// grounded on original_source/src/userdata/sleep.rs. It blocks the
// interpreter's single worker goroutine for the given duration — the
// cooperative-yield trade-off documented in internal/scripting/host.go.
package sleep

import (
	"time"

	lua "github.com/yuin/gopher-lua"
)

// Register installs the callable `sleep` global.
func Register(l *lua.LState) {
	l.SetGlobal("sleep", l.NewFunction(func(L *lua.LState) int {
		ms := L.CheckNumber(1)
		time.Sleep(time.Duration(float64(ms)) * time.Millisecond)
		return 0
	}))
}
