package optimistic

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestBatchConfirmsAllOnSuccess(t *testing.T) {
	l := seedList()

	ops := []BatchOp[testClient]{
		CreateOp(testClient{Name: "Delta"}, func(context.Context) (testClient, error) {
			return testClient{ID: "c4", Name: "Delta"}, nil
		}),
		UpdateOp("c1", testClient{Name: "Acme Ltd"}, func(context.Context) (testClient, error) {
			return testClient{ID: "c1", Name: "Acme Ltd"}, nil
		}),
		DeleteOp[testClient]("c3", func(context.Context) error {
			return nil
		}),
	}
	if err := l.Batch(context.Background(), ops); err != nil {
		t.Fatalf("Batch failed: %v", err)
	}

	got := ids(l.Items())
	if len(got) != 3 || got[0] != "c1" || got[1] != "c2" || got[2] != "c4" {
		t.Errorf("items = %v", got)
	}
	if l.Items()[0].Name != "Acme Ltd" {
		t.Errorf("update not confirmed: %+v", l.Items()[0])
	}
	if l.PendingCount() != 0 {
		t.Errorf("pending = %d", l.PendingCount())
	}
}

func TestBatchStagesAllEffectsBeforeActions(t *testing.T) {
	l := seedList()

	var mu sync.Mutex
	var observed [][]string
	observe := func() {
		mu.Lock()
		observed = append(observed, ids(l.Items()))
		mu.Unlock()
	}

	ops := []BatchOp[testClient]{
		CreateOp(testClient{Name: "Delta"}, func(context.Context) (testClient, error) {
			observe()
			return testClient{ID: "c4", Name: "Delta"}, nil
		}),
		DeleteOp[testClient]("c2", func(context.Context) error {
			observe()
			return nil
		}),
	}
	if err := l.Batch(context.Background(), ops); err != nil {
		t.Fatalf("Batch failed: %v", err)
	}

	// Every action must already see both the insert and the removal.
	for _, snapshot := range observed {
		if len(snapshot) != 3 {
			t.Errorf("action saw %v, want create and delete both staged", snapshot)
		}
		for _, id := range snapshot {
			if id == "c2" {
				t.Errorf("action saw %v, delete not staged", snapshot)
			}
		}
	}
}

func TestBatchRollsBackEverythingOnPartialFailure(t *testing.T) {
	l := seedList()

	ops := []BatchOp[testClient]{
		CreateOp(testClient{Name: "Delta"}, func(context.Context) (testClient, error) {
			return testClient{ID: "c4", Name: "Delta"}, nil
		}),
		UpdateOp("c1", testClient{Name: "Acme Ltd"}, func(context.Context) (testClient, error) {
			return testClient{ID: "c1", Name: "Acme Ltd"}, nil
		}),
		DeleteOp[testClient]("c3", func(context.Context) error {
			return errors.New("server rejected")
		}),
	}
	err := l.Batch(context.Background(), ops)
	if err == nil {
		t.Fatal("expected batch error")
	}

	// All or nothing: the succeeded create and update are undone too.
	items := l.Items()
	got := ids(items)
	if len(got) != 3 || got[0] != "c1" || got[1] != "c2" || got[2] != "c3" {
		t.Errorf("items after rollback = %v", got)
	}
	if items[0].Name != "Acme" {
		t.Errorf("update not rolled back: %+v", items[0])
	}
	if l.PendingCount() != 0 {
		t.Errorf("pending = %d", l.PendingCount())
	}
}

func TestBatchStagingFailureUndoesEarlierStages(t *testing.T) {
	l := seedList()

	ops := []BatchOp[testClient]{
		DeleteOp[testClient]("c1", func(context.Context) error {
			t.Error("action must not run when staging fails")
			return nil
		}),
		UpdateOp("missing", testClient{Name: "x"}, func(context.Context) (testClient, error) {
			t.Error("action must not run when staging fails")
			return testClient{}, nil
		}),
	}
	if err := l.Batch(context.Background(), ops); err == nil {
		t.Fatal("expected staging error")
	}

	got := ids(l.Items())
	if len(got) != 3 || got[0] != "c1" {
		t.Errorf("items = %v, want untouched list", got)
	}
	if l.PendingCount() != 0 {
		t.Errorf("pending = %d", l.PendingCount())
	}
}

func TestEmptyBatchIsNoop(t *testing.T) {
	l := seedList()
	if err := l.Batch(context.Background(), nil); err != nil {
		t.Fatalf("empty batch failed: %v", err)
	}
	if got := ids(l.Items()); len(got) != 3 {
		t.Errorf("items = %v", got)
	}
}
