// Package logging wraps zerolog with the level vocabulary this server and
// its scripts share: ERROR, WARN, INFO, DEBUG, TRACE.
package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// ParseLevel maps ERROR/WARN/INFO/DEBUG/TRACE level names onto zerolog.Level, defaulting to
// Info on an unrecognized value.
func ParseLevel(name string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "ERROR":
		return zerolog.ErrorLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "INFO":
		return zerolog.InfoLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "TRACE":
		return zerolog.TraceLevel
	default:
		return zerolog.InfoLevel
	}
}

// New builds the process-wide logger, writing to stderr with the given
// minimum level.
func New(levelName string) zerolog.Logger {
	level := ParseLevel(levelName)
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}
