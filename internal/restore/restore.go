// Package restore runs the one-shot prompt shown when a user opens a form
// that has a saved draft: restore it, discard it, or dismiss the prompt
// and keep the draft for next time.
package restore

import (
	"context"
	"fmt"
	"sync"

	"flamecert/api/internal/draft"
)

// Phase is the flow's current state.
type Phase string

const (
	PhaseChecking     Phase = "checking"
	PhaseNoDraftFound Phase = "no_draft_found"
	PhaseDraftFound   Phase = "draft_found"
	PhaseRestored     Phase = "restored"
	PhaseDiscarded    Phase = "discarded"
	PhaseDismissed    Phase = "dismissed"
)

// Flow is a single-use state machine. Check moves it from Checking to
// NoDraftFound or DraftFound; from DraftFound exactly one of Restore,
// Discard, or Dismiss resolves it. A resolved flow rejects further
// decisions.
type Flow struct {
	store    *draft.Store
	formType draft.FormType

	mu    sync.Mutex
	phase Phase
	data  map[string]any
}

func NewFlow(store *draft.Store, formType draft.FormType) *Flow {
	return &Flow{store: store, formType: formType, phase: PhaseChecking}
}

// Check looks up the draft slot. A lookup error leaves the flow in
// Checking so the caller can retry.
func (f *Flow) Check(ctx context.Context) (Phase, error) {
	f.mu.Lock()
	if f.phase != PhaseChecking {
		phase := f.phase
		f.mu.Unlock()
		return phase, nil
	}
	f.mu.Unlock()

	data, err := f.store.Load(ctx, f.formType)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		return f.phase, err
	}
	if f.phase != PhaseChecking {
		// A concurrent Check resolved first.
		return f.phase, nil
	}
	if data == nil {
		f.phase = PhaseNoDraftFound
	} else {
		f.phase = PhaseDraftFound
		f.data = data
	}
	return f.phase, nil
}

// Restore hands back the draft data and resolves the flow. The draft slot
// is left in place; it is the caller's job to delete it on submission.
func (f *Flow) Restore() (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.phase != PhaseDraftFound {
		return nil, fmt.Errorf("cannot restore in phase %q", f.phase)
	}
	f.phase = PhaseRestored
	return f.data, nil
}

// Discard deletes the draft slot and resolves the flow. A failed delete
// keeps the flow in DraftFound so the user can try again.
func (f *Flow) Discard(ctx context.Context) error {
	f.mu.Lock()
	if f.phase != PhaseDraftFound {
		phase := f.phase
		f.mu.Unlock()
		return fmt.Errorf("cannot discard in phase %q", phase)
	}
	f.mu.Unlock()

	err := f.store.Delete(ctx, f.formType)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		return err
	}
	f.phase = PhaseDiscarded
	f.data = nil
	return nil
}

// Dismiss closes the prompt without touching the slot. The draft is
// offered again next time.
func (f *Flow) Dismiss() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.phase != PhaseDraftFound {
		return fmt.Errorf("cannot dismiss in phase %q", f.phase)
	}
	f.phase = PhaseDismissed
	return nil
}

// Phase returns the current phase.
func (f *Flow) Phase() Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase
}

// Draft returns the found draft data while the flow is in DraftFound or
// Restored, nil otherwise.
func (f *Flow) Draft() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.phase == PhaseDraftFound || f.phase == PhaseRestored {
		return f.data
	}
	return nil
}
