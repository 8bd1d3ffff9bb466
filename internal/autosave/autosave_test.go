package autosave

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"flamecert/api/internal/clock"
	"flamecert/api/internal/draft"
)

type fakeBackend struct {
	mu       sync.Mutex
	upserts  int
	attempts int
	failing  bool
	last     map[string]any
}

func (b *fakeBackend) UpsertDraft(_ context.Context, _, _ string, formData map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts++
	if b.failing {
		return errors.New("backend down")
	}
	b.upserts++
	b.last = formData
	return nil
}

func (b *fakeBackend) GetDraft(context.Context, string, string) (map[string]any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last, nil
}

func (b *fakeBackend) DeleteDraft(context.Context, string, string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = nil
	return nil
}

func (b *fakeBackend) upsertCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.upserts
}

func (b *fakeBackend) setFailing(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failing = v
}

// mutableForm is a snapshot source tests can edit between ticks.
type mutableForm struct {
	mu   sync.Mutex
	data map[string]any
}

func (f *mutableForm) set(key string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
}

func (f *mutableForm) snapshot() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]any, len(f.data))
	for k, v := range f.data {
		out[k] = v
	}
	return out
}

func newTestEngine(t *testing.T, backend *fakeBackend) (*Engine, *mutableForm, *clock.Fake) {
	t.Helper()
	fc := clock.NewFake(time.Unix(1_700_000_000, 0))
	form := &mutableForm{data: map[string]any{"name": ""}}
	store := draft.New(backend, "user-1")
	eng := New(store, draft.FormGasSafety, form.snapshot, Options{
		Interval: 30 * time.Second,
		Clock:    fc,
	})
	return eng, form, fc
}

// waitUpserts polls the backend until the count reaches want. Ticks are
// delivered to the repeater goroutine asynchronously.
func waitUpserts(t *testing.T, backend *fakeBackend, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if backend.upsertCount() >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("backend upserts = %d, want %d", backend.upsertCount(), want)
}

func TestTickSavesChangedForm(t *testing.T) {
	backend := &fakeBackend{}
	eng, form, fc := newTestEngine(t, backend)
	eng.Start()
	defer eng.Close(context.Background())

	form.set("name", "Acme Lettings")
	fc.Advance(30 * time.Second)
	waitUpserts(t, backend, 1)

	backend.mu.Lock()
	got := backend.last["name"]
	backend.mu.Unlock()
	if got != "Acme Lettings" {
		t.Errorf("saved name = %v, want Acme Lettings", got)
	}
}

func TestUnchangedFormIsNotResaved(t *testing.T) {
	backend := &fakeBackend{}
	eng, form, fc := newTestEngine(t, backend)
	eng.Start()
	defer eng.Close(context.Background())

	form.set("name", "Acme")
	fc.Advance(30 * time.Second)
	waitUpserts(t, backend, 1)

	// Two more ticks with no edits in between.
	fc.Advance(60 * time.Second)
	time.Sleep(20 * time.Millisecond)
	if got := backend.upsertCount(); got != 1 {
		t.Errorf("unchanged form re-saved, upserts = %d", got)
	}
}

func TestUntouchedFormNeverSaves(t *testing.T) {
	backend := &fakeBackend{}
	eng, _, fc := newTestEngine(t, backend)
	eng.Start()
	defer eng.Close(context.Background())

	fc.Advance(5 * time.Minute)
	time.Sleep(20 * time.Millisecond)
	if got := backend.upsertCount(); got != 0 {
		t.Errorf("untouched form saved %d times", got)
	}
}

func TestFailedSaveRetriesNextTick(t *testing.T) {
	backend := &fakeBackend{}
	eng, form, fc := newTestEngine(t, backend)
	eng.Start()
	defer eng.Close(context.Background())

	backend.setFailing(true)
	form.set("name", "Acme")
	fc.Advance(30 * time.Second)

	// The failed save retries with backoff before giving up. Wait for the
	// attempt to land and for SaveNow to finish before the next tick.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		backend.mu.Lock()
		attempted := backend.attempts > 0
		backend.mu.Unlock()
		if attempted && !eng.Status().Saving {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if got := backend.upsertCount(); got != 0 {
		t.Fatalf("failing backend recorded %d upserts", got)
	}
	if st := eng.Status(); !st.Unsaved {
		t.Error("expected Unsaved after failed save")
	}

	backend.setFailing(false)
	fc.Advance(30 * time.Second)
	waitUpserts(t, backend, 1)
}

func TestCloseFlushesUnsavedChangesOnce(t *testing.T) {
	backend := &fakeBackend{}
	eng, form, _ := newTestEngine(t, backend)
	eng.Start()

	form.set("name", "Acme")
	if err := eng.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if got := backend.upsertCount(); got != 1 {
		t.Errorf("Close flushed %d times, want 1", got)
	}

	// Second close must not save again.
	if err := eng.Close(context.Background()); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if got := backend.upsertCount(); got != 1 {
		t.Errorf("second Close flushed again, upserts = %d", got)
	}
}

func TestCloseWithNothingUnsavedWritesNothing(t *testing.T) {
	backend := &fakeBackend{}
	eng, _, _ := newTestEngine(t, backend)
	eng.Start()

	if err := eng.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if got := backend.upsertCount(); got != 0 {
		t.Errorf("clean Close wrote %d drafts", got)
	}
}

func TestSaveNowAndStatus(t *testing.T) {
	backend := &fakeBackend{}
	eng, form, fc := newTestEngine(t, backend)
	defer eng.Close(context.Background())

	if st := eng.Status(); st.Unsaved || st.Saving {
		t.Errorf("fresh engine status = %+v", st)
	}

	form.set("name", "Acme")
	if st := eng.Status(); !st.Unsaved {
		t.Error("expected Unsaved after edit")
	}

	if err := eng.SaveNow(context.Background()); err != nil {
		t.Fatalf("SaveNow failed: %v", err)
	}
	st := eng.Status()
	if st.Unsaved {
		t.Error("expected saved state after SaveNow")
	}
	if !st.LastSaved.Equal(fc.Now()) {
		t.Errorf("LastSaved = %v, want %v", st.LastSaved, fc.Now())
	}
}

func TestResetRebasesWithoutSaving(t *testing.T) {
	backend := &fakeBackend{}
	eng, form, _ := newTestEngine(t, backend)
	defer eng.Close(context.Background())

	form.set("name", "Acme")
	eng.Reset()

	if st := eng.Status(); st.Unsaved {
		t.Error("expected no unsaved changes after Reset")
	}
	if err := eng.SaveNow(context.Background()); err != nil {
		t.Fatalf("SaveNow failed: %v", err)
	}
	if got := backend.upsertCount(); got != 0 {
		t.Errorf("Reset state still saved %d times", got)
	}
}
