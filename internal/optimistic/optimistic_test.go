package optimistic

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type testClient struct {
	ID   string
	Name string
}

func (c testClient) RecordID() string { return c.ID }

func (c testClient) WithRecordID(id string) testClient {
	c.ID = id
	return c
}

func ids(items []testClient) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func seedList() *List[testClient] {
	return NewList([]testClient{
		{ID: "c1", Name: "Acme"},
		{ID: "c2", Name: "Brown & Sons"},
		{ID: "c3", Name: "Coastline"},
	})
}

func TestCreateAppliesBeforeActionRuns(t *testing.T) {
	l := seedList()

	var seenDuringAction int
	rec, err := l.Create(context.Background(), testClient{Name: "Delta"}, func(context.Context) (testClient, error) {
		seenDuringAction = len(l.Items())
		return testClient{ID: "c4", Name: "Delta"}, nil
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if seenDuringAction != 4 {
		t.Errorf("list had %d items while action ran, want 4", seenDuringAction)
	}
	if rec.ID != "c4" {
		t.Errorf("returned record id = %q", rec.ID)
	}

	items := l.Items()
	if len(items) != 4 || items[3].ID != "c4" {
		t.Errorf("final items = %v", ids(items))
	}
	if l.PendingCount() != 0 {
		t.Errorf("pending = %d after confirm", l.PendingCount())
	}
}

func TestCreatePlaceholderHasTempID(t *testing.T) {
	l := seedList()

	l.Create(context.Background(), testClient{Name: "Delta"}, func(context.Context) (testClient, error) {
		items := l.Items()
		last := items[len(items)-1]
		if !strings.HasPrefix(last.ID, "tmp_") {
			t.Errorf("placeholder id = %q, want tmp_ prefix", last.ID)
		}
		return testClient{ID: "c4", Name: "Delta"}, nil
	})
}

func TestFailedCreateRemovesPlaceholder(t *testing.T) {
	l := seedList()

	_, err := l.Create(context.Background(), testClient{Name: "Delta"}, func(context.Context) (testClient, error) {
		return testClient{}, errors.New("server rejected")
	})
	if err == nil {
		t.Fatal("expected create error")
	}

	items := l.Items()
	if len(items) != 3 {
		t.Errorf("items = %v, want original 3", ids(items))
	}
	if l.PendingCount() != 0 {
		t.Errorf("pending = %d after rollback", l.PendingCount())
	}
}

func TestUpdateAppliesAndConfirms(t *testing.T) {
	l := seedList()

	var nameDuringAction string
	rec, err := l.Update(context.Background(), "c2", testClient{Name: "Brown Bros"}, func(context.Context) (testClient, error) {
		for _, it := range l.Items() {
			if it.ID == "c2" {
				nameDuringAction = it.Name
			}
		}
		return testClient{ID: "c2", Name: "Brown Bros"}, nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if nameDuringAction != "Brown Bros" {
		t.Errorf("name while action ran = %q, want optimistic value", nameDuringAction)
	}
	if rec.Name != "Brown Bros" {
		t.Errorf("returned record = %+v", rec)
	}
}

func TestFailedUpdateRestoresExactOriginal(t *testing.T) {
	l := seedList()

	_, err := l.Update(context.Background(), "c2", testClient{Name: "Brown Bros"}, func(context.Context) (testClient, error) {
		return testClient{}, errors.New("server rejected")
	})
	if err == nil {
		t.Fatal("expected update error")
	}

	items := l.Items()
	if items[1].ID != "c2" || items[1].Name != "Brown & Sons" {
		t.Errorf("record after rollback = %+v, want exact original", items[1])
	}
}

func TestUpdateUnknownIDFails(t *testing.T) {
	l := seedList()
	_, err := l.Update(context.Background(), "c9", testClient{Name: "x"}, func(context.Context) (testClient, error) {
		t.Error("action must not run for unknown id")
		return testClient{}, nil
	})
	if err == nil {
		t.Fatal("expected error for unknown id")
	}
}

func TestDeleteRemovesAndConfirms(t *testing.T) {
	l := seedList()

	var lenDuringAction int
	err := l.Delete(context.Background(), "c2", func(context.Context) error {
		lenDuringAction = len(l.Items())
		return nil
	})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if lenDuringAction != 2 {
		t.Errorf("list had %d items while action ran, want 2", lenDuringAction)
	}
	got := ids(l.Items())
	if len(got) != 2 || got[0] != "c1" || got[1] != "c3" {
		t.Errorf("items = %v", got)
	}
}

func TestFailedDeleteReinsertsAtOldPosition(t *testing.T) {
	l := seedList()

	err := l.Delete(context.Background(), "c2", func(context.Context) error {
		return errors.New("server rejected")
	})
	if err == nil {
		t.Fatal("expected delete error")
	}

	got := ids(l.Items())
	if len(got) != 3 || got[1] != "c2" {
		t.Errorf("items after rollback = %v, want c2 back at index 1", got)
	}
}

func TestReplaceDropsStagedEffects(t *testing.T) {
	l := seedList()

	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Create(context.Background(), testClient{Name: "Delta"}, func(context.Context) (testClient, error) {
			<-release
			return testClient{ID: "c4", Name: "Delta"}, nil
		})
	}()

	// Wait until the placeholder shows up, then replace the snapshot.
	deadline := time.Now().Add(2 * time.Second)
	for len(l.Items()) != 4 {
		if time.Now().After(deadline) {
			t.Fatal("placeholder never appeared")
		}
		time.Sleep(time.Millisecond)
	}
	l.Replace([]testClient{{ID: "c1", Name: "Acme"}})
	close(release)
	<-done

	got := ids(l.Items())
	if len(got) != 1 || got[0] != "c1" {
		t.Errorf("items = %v, want replaced snapshot untouched", got)
	}
}
