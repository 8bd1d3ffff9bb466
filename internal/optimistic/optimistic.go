// Package optimistic applies list mutations locally before the server
// confirms them, and reverses them when it does not. The UI renders from
// Items() and never waits on the network for its own edits.
package optimistic

import (
	"context"
	"fmt"
	"sync"

	"flamecert/api/internal/util"
)

// Record is any list element with a stable identifier. WithRecordID must
// return a copy; the engine never mutates records in place.
type Record[T any] interface {
	RecordID() string
	WithRecordID(id string) T
}

// pending captures what it takes to undo one staged effect. Each variant
// stores exactly the state its rollback needs and nothing else.
type pending[T Record[T]] interface {
	isPending()
}

// pendingCreate remembers the temporary id of the inserted placeholder.
type pendingCreate[T Record[T]] struct {
	tempID string
}

// pendingChange remembers the exact record that was replaced.
type pendingChange[T Record[T]] struct {
	original T
}

// pendingRemoval remembers the removed record and where it sat.
type pendingRemoval[T Record[T]] struct {
	original T
	index    int
}

func (pendingCreate[T]) isPending()  {}
func (pendingChange[T]) isPending()  {}
func (pendingRemoval[T]) isPending() {}

// List holds the optimistic view of one record collection. All methods
// are safe for concurrent use.
type List[T Record[T]] struct {
	mu      sync.Mutex
	items   []T
	pending map[string]pending[T]
}

// NewList seeds the view with the server's current records.
func NewList[T Record[T]](initial []T) *List[T] {
	items := make([]T, len(initial))
	copy(items, initial)
	return &List[T]{
		items:   items,
		pending: make(map[string]pending[T]),
	}
}

// Items returns a snapshot of the current view, staged effects included.
func (l *List[T]) Items() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

// PendingCount reports how many effects are staged but unconfirmed.
func (l *List[T]) PendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Replace swaps in a fresh server snapshot and drops all staged effects.
func (l *List[T]) Replace(items []T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = make([]T, len(items))
	copy(l.items, items)
	l.pending = make(map[string]pending[T])
}

// Create appends the draft under a temporary id before action runs. On
// success the placeholder is swapped for the server's record; on failure
// it is removed and the list looks as if nothing happened.
func (l *List[T]) Create(ctx context.Context, draft T, action func(context.Context) (T, error)) (T, error) {
	l.mu.Lock()
	updateID := l.stageCreateLocked(draft)
	l.mu.Unlock()

	rec, err := action(ctx)
	return l.resolve(updateID, rec, err)
}

// Update replaces the record with id in place before action runs. On
// failure the exact original record comes back.
func (l *List[T]) Update(ctx context.Context, id string, updated T, action func(context.Context) (T, error)) (T, error) {
	l.mu.Lock()
	updateID, err := l.stageUpdateLocked(id, updated)
	l.mu.Unlock()
	if err != nil {
		var zero T
		return zero, err
	}

	rec, actionErr := action(ctx)
	return l.resolve(updateID, rec, actionErr)
}

// Delete removes the record with id before action runs. On failure it is
// reinserted at its old position.
func (l *List[T]) Delete(ctx context.Context, id string, action func(context.Context) error) error {
	l.mu.Lock()
	updateID, err := l.stageDeleteLocked(id)
	l.mu.Unlock()
	if err != nil {
		return err
	}

	actionErr := action(ctx)
	var zero T
	_, err = l.resolve(updateID, zero, actionErr)
	return err
}

// resolve confirms or rolls back one staged effect. The pending entry is
// consumed, so an effect resolves at most once.
func (l *List[T]) resolve(updateID string, rec T, actionErr error) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.pending[updateID]
	if !ok {
		// Already resolved, e.g. Replace dropped the staged state.
		var zero T
		return zero, actionErr
	}
	delete(l.pending, updateID)

	if actionErr != nil {
		l.rollbackLocked(p)
		var zero T
		return zero, actionErr
	}
	l.confirmLocked(p, rec)
	return rec, nil
}

func (l *List[T]) stageCreateLocked(draft T) string {
	updateID := util.NewID("upd")
	tempID := util.NewID("tmp")
	l.items = append(l.items, draft.WithRecordID(tempID))
	l.pending[updateID] = pendingCreate[T]{tempID: tempID}
	return updateID
}

func (l *List[T]) stageUpdateLocked(id string, updated T) (string, error) {
	idx := l.indexLocked(id)
	if idx < 0 {
		return "", fmt.Errorf("no record %q", id)
	}
	updateID := util.NewID("upd")
	l.pending[updateID] = pendingChange[T]{original: l.items[idx]}
	l.items[idx] = updated.WithRecordID(id)
	return updateID, nil
}

func (l *List[T]) stageDeleteLocked(id string) (string, error) {
	idx := l.indexLocked(id)
	if idx < 0 {
		return "", fmt.Errorf("no record %q", id)
	}
	updateID := util.NewID("upd")
	l.pending[updateID] = pendingRemoval[T]{original: l.items[idx], index: idx}
	l.items = append(l.items[:idx], l.items[idx+1:]...)
	return updateID, nil
}

func (l *List[T]) confirmLocked(p pending[T], rec T) {
	switch v := p.(type) {
	case pendingCreate[T]:
		if idx := l.indexLocked(v.tempID); idx >= 0 {
			l.items[idx] = rec
		}
	case pendingChange[T]:
		if idx := l.indexLocked(v.original.RecordID()); idx >= 0 {
			l.items[idx] = rec
		}
	case pendingRemoval[T]:
		// The removal already happened at stage time.
	}
}

func (l *List[T]) rollbackLocked(p pending[T]) {
	switch v := p.(type) {
	case pendingCreate[T]:
		if idx := l.indexLocked(v.tempID); idx >= 0 {
			l.items = append(l.items[:idx], l.items[idx+1:]...)
		}
	case pendingChange[T]:
		if idx := l.indexLocked(v.original.RecordID()); idx >= 0 {
			l.items[idx] = v.original
		}
	case pendingRemoval[T]:
		idx := v.index
		if idx > len(l.items) {
			idx = len(l.items)
		}
		l.items = append(l.items[:idx], append([]T{v.original}, l.items[idx:]...)...)
	}
}

func (l *List[T]) indexLocked(id string) int {
	for i, item := range l.items {
		if item.RecordID() == id {
			return i
		}
	}
	return -1
}
