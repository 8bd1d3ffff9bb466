package clock

import (
	"sync"
	"time"
)

// Repeater runs fn on a fixed interval until Stop is called. It replaces
// the fire-and-forget setInterval pattern with something a caller can
// actually cancel and a test can drive deterministically.
type Repeater struct {
	ticker Ticker
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// NewRepeater starts the loop immediately. fn runs on the repeater's
// goroutine; runs never overlap because the next tick is not read until
// fn returns.
func NewRepeater(c Clock, interval time.Duration, fn func()) *Repeater {
	r := &Repeater{
		ticker: c.NewTicker(interval),
		done:   make(chan struct{}),
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-r.done:
				return
			case <-r.ticker.C():
				fn()
			}
		}
	}()
	return r
}

// Stop cancels the loop and waits for an in-flight fn to finish. Safe to
// call more than once.
func (r *Repeater) Stop() {
	r.once.Do(func() {
		r.ticker.Stop()
		close(r.done)
	})
	r.wg.Wait()
}
