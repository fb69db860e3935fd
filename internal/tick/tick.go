// Package tick drives the periodic tick(count) hook independently of
// HTTP traffic. Grounded on sse/session.go's cleanupLoop ticker
// pattern (time.NewTicker + select + stop channel), generalized to
// invoke the script host instead of session cleanup.
package tick

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/johnjansen/tinysse/internal/scripting"
)

// Driver periodically invokes the tick hook. The first tick fires
// immediately at Run's call time; count increments monotonically. If a
// tick handler overruns its interval, the next tick fires immediately
// after completion rather than bursting to catch up.
type Driver struct {
	host     *scripting.Host
	interval time.Duration
	log      zerolog.Logger
}

// New builds a Driver with the configured tick interval.
func New(host *scripting.Host, interval time.Duration, log zerolog.Logger) *Driver {
	return &Driver{host: host, interval: interval, log: log}
}

// Run blocks, invoking tick(count) on every interval, until ctx-like done
// fires. It is meant to be run in its own goroutine.
func (d *Driver) Run(done <-chan struct{}) {
	var count int64 = 1
	next := time.Now().Add(d.interval)
	d.fire(count)
	if now := time.Now(); next.Before(now) {
		next = now
	}

	for {
		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
			count++
			d.fire(count)
			next = next.Add(d.interval)
			if now := time.Now(); next.Before(now) {
				// The handler overran its interval; catch up once,
				// immediately, rather than bursting through every
				// interval that was missed.
				next = now
			}
		case <-done:
			timer.Stop()
			return
		}
	}
}

func (d *Driver) fire(count int64) {
	if err := d.host.Tick(count); err != nil {
		d.log.Error().Err(err).Int64("count", count).Msg("tick hook failed")
	}
}
