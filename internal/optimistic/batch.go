package optimistic

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

type opKind int

const (
	opCreate opKind = iota + 1
	opUpdate
	opDelete
)

// BatchOp is one element of an all-or-nothing batch. Build with CreateOp,
// UpdateOp, or DeleteOp.
type BatchOp[T Record[T]] struct {
	kind   opKind
	id     string
	record T
	mutate func(context.Context) (T, error)
	remove func(context.Context) error
}

func CreateOp[T Record[T]](draft T, action func(context.Context) (T, error)) BatchOp[T] {
	return BatchOp[T]{kind: opCreate, record: draft, mutate: action}
}

func UpdateOp[T Record[T]](id string, updated T, action func(context.Context) (T, error)) BatchOp[T] {
	return BatchOp[T]{kind: opUpdate, id: id, record: updated, mutate: action}
}

func DeleteOp[T Record[T]](id string, action func(context.Context) error) BatchOp[T] {
	return BatchOp[T]{kind: opDelete, id: id, remove: action}
}

// Batch stages every op's effect up front so the view flips in one step,
// then runs the actions concurrently. Confirmation waits for the whole
// batch: if any action fails, every staged effect is rolled back in
// reverse staging order, the succeeded ones included.
func (l *List[T]) Batch(ctx context.Context, ops []BatchOp[T]) error {
	l.mu.Lock()
	staged := make([]string, 0, len(ops))
	for _, op := range ops {
		var updateID string
		var err error
		switch op.kind {
		case opCreate:
			updateID = l.stageCreateLocked(op.record)
		case opUpdate:
			updateID, err = l.stageUpdateLocked(op.id, op.record)
		case opDelete:
			updateID, err = l.stageDeleteLocked(op.id)
		default:
			err = fmt.Errorf("batch op missing kind")
		}
		if err != nil {
			l.rollbackStagedLocked(staged)
			l.mu.Unlock()
			return err
		}
		staged = append(staged, updateID)
	}
	l.mu.Unlock()

	results := make([]T, len(ops))
	g, gctx := errgroup.WithContext(ctx)
	for i, op := range ops {
		g.Go(func() error {
			if op.kind == opDelete {
				return op.remove(gctx)
			}
			rec, err := op.mutate(gctx)
			if err != nil {
				return err
			}
			results[i] = rec
			return nil
		})
	}
	err := g.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.rollbackStagedLocked(staged)
		return err
	}
	for i, updateID := range staged {
		if p, ok := l.pending[updateID]; ok {
			delete(l.pending, updateID)
			l.confirmLocked(p, results[i])
		}
	}
	return nil
}

func (l *List[T]) rollbackStagedLocked(staged []string) {
	for i := len(staged) - 1; i >= 0; i-- {
		if p, ok := l.pending[staged[i]]; ok {
			delete(l.pending, staged[i])
			l.rollbackLocked(p)
		}
	}
}
