// Package autosave periodically persists an in-progress form draft so a
// crashed tab or dead battery costs at most one interval of typing.
package autosave

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"log"
	"sync"
	"time"

	"flamecert/api/internal/clock"
	"flamecert/api/internal/draft"
)

// DefaultInterval is how often the engine checks for unsaved changes.
const DefaultInterval = 30 * time.Second

const saveTimeout = 10 * time.Second

// Snapshot returns the current form state. It is called from the engine's
// timer goroutine and must be safe to call concurrently with form edits.
type Snapshot func() map[string]any

// Status is a point-in-time view of the engine for UI indicators.
type Status struct {
	Saving    bool
	Unsaved   bool
	LastSaved time.Time
}

// Engine drives periodic draft saves for one form. Saves are serialized:
// a tick that lands while a save is in flight is skipped, not queued.
type Engine struct {
	store    *draft.Store
	formType draft.FormType
	snapshot Snapshot
	clock    clock.Clock
	interval time.Duration

	mu        sync.Mutex
	repeater  *clock.Repeater
	saving    bool
	savedFP   string
	lastSaved time.Time
	closed    bool
}

// Options tune the engine. Zero values take defaults.
type Options struct {
	Interval time.Duration
	Clock    clock.Clock
}

// New builds an engine for one form. The snapshot taken now becomes the
// baseline: an untouched form is considered saved, so nothing is written
// until the user actually changes something. Call Start to begin ticking.
func New(store *draft.Store, formType draft.FormType, snapshot Snapshot, opts Options) *Engine {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	e := &Engine{
		store:    store,
		formType: formType,
		snapshot: snapshot,
		clock:    opts.Clock,
		interval: opts.Interval,
	}
	e.savedFP = fingerprint(snapshot())
	return e
}

// Start begins the periodic save loop. Calling Start twice is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.repeater != nil || e.closed {
		return
	}
	e.repeater = clock.NewRepeater(e.clock, e.interval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if err := e.SaveNow(ctx); err != nil {
			log.Printf("autosave: %s: %v", e.formType, err)
		}
	})
}

// SaveNow persists the current snapshot if it differs from the last saved
// state. A failed save leaves the baseline untouched so the next tick
// retries the same changes.
func (e *Engine) SaveNow(ctx context.Context) error {
	e.mu.Lock()
	if e.closed || e.saving {
		e.mu.Unlock()
		return nil
	}
	data := e.snapshot()
	fp := fingerprint(data)
	if fp == e.savedFP {
		e.mu.Unlock()
		return nil
	}
	e.saving = true
	e.mu.Unlock()

	err := e.store.Save(ctx, e.formType, data)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.saving = false
	if err != nil {
		return err
	}
	e.savedFP = fp
	e.lastSaved = e.clock.Now()
	return nil
}

// Reset rebases the saved fingerprint on the current snapshot without
// writing anything. Call it after a draft is restored or discarded so the
// engine does not immediately re-save what the user just decided about.
func (e *Engine) Reset() {
	fp := fingerprint(e.snapshot())
	e.mu.Lock()
	e.savedFP = fp
	e.mu.Unlock()
}

// Status reports whether a save is in flight, whether the current snapshot
// differs from the last saved one, and when the last save landed.
func (e *Engine) Status() Status {
	fp := fingerprint(e.snapshot())
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		Saving:    e.saving,
		Unsaved:   fp != e.savedFP,
		LastSaved: e.lastSaved,
	}
}

// Close stops the timer and flushes any unsaved changes exactly once.
// Further calls are no-ops.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	rep := e.repeater
	e.repeater = nil
	e.mu.Unlock()

	if rep != nil {
		rep.Stop()
	}

	// Final flush, bypassing the closed guard in SaveNow.
	e.mu.Lock()
	data := e.snapshot()
	fp := fingerprint(data)
	if fp == e.savedFP {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	if err := e.store.Save(ctx, e.formType, data); err != nil {
		return err
	}
	e.mu.Lock()
	e.savedFP = fp
	e.lastSaved = e.clock.Now()
	e.mu.Unlock()
	return nil
}

// fingerprint hashes the JSON encoding of the snapshot. Map keys marshal
// in sorted order, so equal form states hash equal.
func fingerprint(data map[string]any) string {
	raw, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	sum := sha1.Sum(raw)
	return hex.EncodeToString(sum[:])
}
