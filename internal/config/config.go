// Package config loads the server's startup configuration: flags
// parsed with pflag, falling back to TINYSSE_* environment variables via
// envy, mirroring the envy.Get("HOST", "...") env-default idiom used
// throughout this codebase.
package config

import (
	"fmt"
	"time"

	"github.com/gobuffalo/envy"
	"github.com/spf13/pflag"
)

// Config holds every recognized startup option.
type Config struct {
	Listen      string
	LogLevel    string
	KeepAlive   time.Duration
	KeepAliveText string
	Timeout       time.Duration
	TimeoutRetry  time.Duration
	Capacity      int

	Script      string
	ScriptData  string
	ScriptTick  time.Duration
	UnsafeScript bool

	MaxBodySize int64

	PubPath string
	SubPath string

	ServeStaticDir  string
	ServeStaticPath string

	CORSAllowOrigin      string
	CORSAllowMethods     string
	CORSAllowHeaders     string
	CORSAllowCredentials bool
	CORSMaxAge           time.Duration
}

// envDefault returns the TINYSSE_<key> environment value, or def if unset.
func envDefault(key, def string) string {
	return envy.Get("TINYSSE_"+key, def)
}

// Load parses args (normally os.Args[1:]) against the flag set, with
// TINYSSE_* environment variables supplying defaults per field, following
// original_source/src/cli.rs's flag/env naming.
func Load(args []string) (*Config, error) {
	envy.Load()

	fs := pflag.NewFlagSet("tinysse", pflag.ContinueOnError)

	listen := fs.String("listen", envDefault("LISTEN", "127.0.0.1:1983"), "socket address to listen on")
	logLevel := fs.String("log-level", envDefault("LOG_LEVEL", "INFO"), "ERROR|WARN|INFO|DEBUG|TRACE")
	keepAlive := fs.Duration("keep-alive", mustDuration(envDefault("KEEP_ALIVE", "15s")), "keep-alive comment interval")
	keepAliveText := fs.String("keep-alive-text", envDefault("KEEP_ALIVE_TEXT", "keep-alive"), "keep-alive comment body")
	timeout := fs.Duration("timeout", mustDuration(envDefault("TIMEOUT", "5m")), "idle timeout, 0 disables")
	timeoutRetry := fs.Duration("timeout-retry", mustDuration(envDefault("TIMEOUT_RETRY", "0s")), "default reconnect delay on timeout")
	capacity := fs.Int("capacity", mustInt(envDefault("CAPACITY", "32")), "bus capacity")
	script := fs.String("script", envDefault("SCRIPT", ""), "path to user script")
	scriptData := fs.String("script-data", envDefault("SCRIPT_DATA", ""), "opaque string exposed to startup as cli.script_data")
	scriptTick := fs.Duration("script-tick", mustDuration(envDefault("SCRIPT_TICK", "500ms")), "tick interval")
	unsafeScript := fs.Bool("unsafe-script", mustBool(envDefault("UNSAFE_SCRIPT", "false")), "allow native-module loading")
	maxBodySize := fs.Int64("max-body-size", mustInt64(envDefault("MAX_BODY_SIZE", "1048576")), "publish body cap, bytes")
	pubPath := fs.String("pub-path", envDefault("PUB_PATH", "/publish"), "publish route")
	subPath := fs.String("sub-path", envDefault("SUB_PATH", "/subscribe"), "subscribe route")
	serveStaticDir := fs.String("serve-static-dir", envDefault("SERVE_STATIC_DIR", ""), "directory to serve statically, empty disables")
	serveStaticPath := fs.String("serve-static-path", envDefault("SERVE_STATIC_PATH", "/static"), "static mount path")
	corsAllowOrigin := fs.String("cors-allow-origin", envDefault("CORS_ALLOW_ORIGIN", ""), "CORS allow-origin, empty disables CORS")
	corsAllowMethods := fs.String("cors-allow-methods", envDefault("CORS_ALLOW_METHODS", "GET,POST"), "CORS allow-methods")
	corsAllowHeaders := fs.String("cors-allow-headers", envDefault("CORS_ALLOW_HEADERS", "Content-Type,Last-Event-ID"), "CORS allow-headers")
	corsAllowCredentials := fs.Bool("cors-allow-credentials", mustBool(envDefault("CORS_ALLOW_CREDENTIALS", "false")), "CORS allow-credentials")
	corsMaxAge := fs.Duration("cors-max-age", mustDuration(envDefault("CORS_MAX_AGE", "0s")), "CORS max-age")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return &Config{
		Listen:               *listen,
		LogLevel:             *logLevel,
		KeepAlive:            *keepAlive,
		KeepAliveText:        *keepAliveText,
		Timeout:              *timeout,
		TimeoutRetry:         *timeoutRetry,
		Capacity:             *capacity,
		Script:               *script,
		ScriptData:           *scriptData,
		ScriptTick:           *scriptTick,
		UnsafeScript:         *unsafeScript,
		MaxBodySize:          *maxBodySize,
		PubPath:              *pubPath,
		SubPath:              *subPath,
		ServeStaticDir:       *serveStaticDir,
		ServeStaticPath:      *serveStaticPath,
		CORSAllowOrigin:      *corsAllowOrigin,
		CORSAllowMethods:     *corsAllowMethods,
		CORSAllowHeaders:     *corsAllowHeaders,
		CORSAllowCredentials: *corsAllowCredentials,
		CORSMaxAge:           *corsMaxAge,
	}, nil
}

// CLI projects the full configuration into the plain record exposed to
// script startup as the `cli` global: durations cross as integer
// milliseconds, paths and other settings as strings/bools. script_data
// is attached separately by the script host.
func (c *Config) CLI() map[string]interface{} {
	return map[string]interface{}{
		"listen":                 c.Listen,
		"log_level":              c.LogLevel,
		"keep_alive":             c.KeepAlive.Milliseconds(),
		"keep_alive_text":        c.KeepAliveText,
		"timeout":                c.Timeout.Milliseconds(),
		"timeout_retry":          c.TimeoutRetry.Milliseconds(),
		"capacity":               c.Capacity,
		"script":                 c.Script,
		"script_tick":            c.ScriptTick.Milliseconds(),
		"unsafe_script":          c.UnsafeScript,
		"max_body_size":          c.MaxBodySize,
		"pub_path":               c.PubPath,
		"sub_path":               c.SubPath,
		"serve_static_dir":       c.ServeStaticDir,
		"serve_static_path":      c.ServeStaticPath,
		"cors_allow_origin":      c.CORSAllowOrigin,
		"cors_allow_methods":     c.CORSAllowMethods,
		"cors_allow_headers":     c.CORSAllowHeaders,
		"cors_allow_credentials": c.CORSAllowCredentials,
		"cors_max_age":           c.CORSMaxAge.Milliseconds(),
	}
}

func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		panic(fmt.Sprintf("config: invalid duration default %q: %v", s, err))
	}
	return d
}

func mustInt(s string) int {
	var v int
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		panic(fmt.Sprintf("config: invalid int default %q: %v", s, err))
	}
	return v
}

func mustInt64(s string) int64 {
	var v int64
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		panic(fmt.Sprintf("config: invalid int64 default %q: %v", s, err))
	}
	return v
}

func mustBool(s string) bool {
	switch s {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}
