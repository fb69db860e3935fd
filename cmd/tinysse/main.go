// Command tinysse runs the server: load configuration, build the bus and
// script host, start the tick driver, and serve HTTP until a SIGINT or
// SIGTERM arrives. Grounded on examples/main.go's App()/ListenAndServe
// shutdown shape and grifts.go's signal.Notify(syscall.SIGTERM,
// syscall.SIGINT) graceful-stop idiom.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/johnjansen/tinysse/internal/bus"
	"github.com/johnjansen/tinysse/internal/config"
	"github.com/johnjansen/tinysse/internal/httpfront"
	"github.com/johnjansen/tinysse/internal/logging"
	"github.com/johnjansen/tinysse/internal/scripting"
	"github.com/johnjansen/tinysse/internal/tick"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tinysse:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	log := logging.New(cfg.LogLevel)

	b := bus.New(cfg.Capacity, log)
	defer b.Close()

	host, err := scripting.New(scripting.Config{
		ScriptPath:   cfg.Script,
		ScriptData:   cfg.ScriptData,
		UnsafeScript: cfg.UnsafeScript,
		CLI:          cfg.CLI(),
	}, log)
	if err != nil {
		return fmt.Errorf("starting script host: %w", err)
	}
	defer host.Close()

	if err := host.Startup(); err != nil {
		return fmt.Errorf("running startup hook: %w", err)
	}

	tickDone := make(chan struct{})
	driver := tick.New(host, cfg.ScriptTick, log)
	go driver.Run(tickDone)
	defer close(tickDone)

	app := httpfront.New(cfg, b, host, log)

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: app,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("listen", cfg.Listen).Msg("tinysse listening")
		serveErr <- srv.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("serving: %w", err)
		}
	case <-sigChan:
		log.Info().Msg("shutting down")
		if err := srv.Close(); err != nil {
			log.Error().Err(err).Msg("error closing server")
		}
	}

	return nil
}
