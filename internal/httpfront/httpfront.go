// Package httpfront wires the publish and subscribe handlers, static
// asset mount, and CORS header shaping onto a Buffalo application.
// Grounded on buffkit.go's Wire() (route mounting, app.Use middleware
// ordering, app.ServeFiles for static assets) and examples/main.go's
// App() (buffalo.New(buffalo.Options{...}) construction).
package httpfront

import (
	"net/http"
	"os"
	"strconv"

	"github.com/gobuffalo/buffalo"
	"github.com/rs/zerolog"

	"github.com/johnjansen/tinysse/internal/bus"
	"github.com/johnjansen/tinysse/internal/config"
	"github.com/johnjansen/tinysse/internal/publish"
	"github.com/johnjansen/tinysse/internal/scripting"
	"github.com/johnjansen/tinysse/internal/subscriber"
)

// New builds the Buffalo application: publish/subscribe routes at the
// configured paths, an optional static mount, and CORS headers applied
// only when cors_allow_origin is non-empty.
func New(cfg *config.Config, b *bus.Bus, host *scripting.Host, log zerolog.Logger) *buffalo.App {
	app := buffalo.New(buffalo.Options{
		Env:         "production",
		SessionName: "_tinysse_session",
	})

	if cfg.CORSAllowOrigin != "" {
		app.Use(corsMiddleware(cfg))
	}

	pubHandler := &publish.Handler{
		Bus:         b,
		Host:        host,
		MaxBodySize: cfg.MaxBodySize,
		Log:         log,
	}
	app.POST(cfg.PubPath, wrap(pubHandler))

	subHandler := &subscriber.Handler{
		Bus:           b,
		Host:          host,
		KeepAlive:     cfg.KeepAlive,
		KeepAliveText: cfg.KeepAliveText,
		IdleTimeout:   cfg.Timeout,
		TimeoutRetry:  cfg.TimeoutRetry,
		Log:           log,
	}
	app.GET(cfg.SubPath, wrap(subHandler))

	if cfg.ServeStaticDir != "" {
		if _, err := os.Stat(cfg.ServeStaticDir); err == nil {
			app.ServeFiles(cfg.ServeStaticPath, http.Dir(cfg.ServeStaticDir))
		} else {
			log.Warn().Str("dir", cfg.ServeStaticDir).Msg("serve_static_dir does not exist, skipping static mount")
		}
	}

	return app
}

// wrap adapts a plain http.Handler (Publish/Subscribe) to a buffalo.Handler,
// the same c.Response()/c.Request() pattern ssr.Broker.ServeHTTP uses.
func wrap(h http.Handler) buffalo.Handler {
	return func(c buffalo.Context) error {
		h.ServeHTTP(c.Response(), c.Request())
		return nil
	}
}

func corsMiddleware(cfg *config.Config) buffalo.MiddlewareFunc {
	return func(next buffalo.Handler) buffalo.Handler {
		return func(c buffalo.Context) error {
			w := c.Response()
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", cfg.CORSAllowMethods)
			w.Header().Set("Access-Control-Allow-Headers", cfg.CORSAllowHeaders)
			if cfg.CORSAllowCredentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			if cfg.CORSMaxAge > 0 {
				w.Header().Set("Access-Control-Max-Age", strconv.Itoa(int(cfg.CORSMaxAge.Seconds())))
			}
			if c.Request().Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return nil
			}
			return next(c)
		}
	}
}
