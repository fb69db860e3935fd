package scripting

import (
	"github.com/rs/zerolog"

	"github.com/johnjansen/tinysse/internal/scripting/stdlib/base64"
	"github.com/johnjansen/tinysse/internal/scripting/stdlib/fernet"
	stdhttp "github.com/johnjansen/tinysse/internal/scripting/stdlib/http"
	stdjson "github.com/johnjansen/tinysse/internal/scripting/stdlib/json"
	stdlog "github.com/johnjansen/tinysse/internal/scripting/stdlib/log"
	"github.com/johnjansen/tinysse/internal/scripting/stdlib/mutex"
	"github.com/johnjansen/tinysse/internal/scripting/stdlib/sleep"
	"github.com/johnjansen/tinysse/internal/scripting/stdlib/sqlite"
	"github.com/johnjansen/tinysse/internal/scripting/stdlib/template"
	"github.com/johnjansen/tinysse/internal/scripting/stdlib/url"
	"github.com/johnjansen/tinysse/internal/scripting/stdlib/uuid"
)

// preloadCapabilities installs every built-in capability object named in
// the capability surface as a global in the interpreter, before the prelude
// or user script is
// loaded.
func (h *Host) preloadCapabilities(log zerolog.Logger) {
	l := h.l
	stdjson.Register(l)
	uuid.Register(l)
	base64.Register(l)
	url.Register(l)
	stdlog.Register(l, log)
	sleep.Register(l)
	mutex.Register(l)
	stdhttp.Register(l)
	sqlite.Register(l)
	fernet.Register(l)
	template.Register(l)
}
