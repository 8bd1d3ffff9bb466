// Package clock abstracts wall-clock time and repeating timers so the
// cache sweep and auto-save loops can be driven by virtual time in tests.
package clock

import "time"

// Ticker delivers ticks on C and stops delivering after Stop.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock is the time source handed to anything that schedules work.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Real returns a Clock backed by the system clock.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (rt *realTicker) C() <-chan time.Time { return rt.t.C }
func (rt *realTicker) Stop()               { rt.t.Stop() }
