package draft

import (
	"context"
	"testing"
)

// countingBackend records calls so tests can assert the meaningful-data
// gate produces zero backend traffic.
type countingBackend struct {
	upserts int
	gets    int
	deletes int
	stored  map[string]map[string]any
}

func newCountingBackend() *countingBackend {
	return &countingBackend{stored: make(map[string]map[string]any)}
}

func (b *countingBackend) UpsertDraft(_ context.Context, userID, formType string, formData map[string]any) error {
	b.upserts++
	b.stored[userID+":"+formType] = formData
	return nil
}

func (b *countingBackend) GetDraft(_ context.Context, userID, formType string) (map[string]any, error) {
	b.gets++
	return b.stored[userID+":"+formType], nil
}

func (b *countingBackend) DeleteDraft(_ context.Context, userID, formType string) error {
	b.deletes++
	delete(b.stored, userID+":"+formType)
	return nil
}

func TestSaveSkipsEmptyForm(t *testing.T) {
	backend := newCountingBackend()
	store := New(backend, "user-1")

	err := store.Save(context.Background(), FormGasSafety, map[string]any{
		"name":  "",
		"email": "   ",
		"appliances": []any{
			map[string]any{"location": "", "type": ""},
		},
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if backend.upserts != 0 {
		t.Errorf("empty form produced %d upserts, want 0", backend.upserts)
	}
}

func TestSaveMeaningfulFormUpsertsOnce(t *testing.T) {
	backend := newCountingBackend()
	store := New(backend, "user-1")

	err := store.Save(context.Background(), FormGasSafety, map[string]any{"name": "Acme"})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if backend.upserts != 1 {
		t.Errorf("expected exactly 1 upsert, got %d", backend.upserts)
	}
}

func TestSaveRejectsUnknownFormType(t *testing.T) {
	store := New(newCountingBackend(), "user-1")
	if err := store.Save(context.Background(), FormType("mystery"), map[string]any{"a": "b"}); err == nil {
		t.Error("expected error for unknown form type")
	}
}

func TestLoadMissingDraftIsNilNotError(t *testing.T) {
	store := New(newCountingBackend(), "user-1")
	formData, err := store.Load(context.Background(), FormInvoice)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if formData != nil {
		t.Errorf("expected nil for missing draft, got %v", formData)
	}
}

func TestHasReflectsExistence(t *testing.T) {
	backend := newCountingBackend()
	store := New(backend, "user-1")
	ctx := context.Background()

	ok, err := store.Has(ctx, FormInvoice)
	if err != nil || ok {
		t.Errorf("expected no draft, got ok=%v err=%v", ok, err)
	}

	if err := store.Save(ctx, FormInvoice, map[string]any{"clientName": "Acme"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	ok, err = store.Has(ctx, FormInvoice)
	if err != nil || !ok {
		t.Errorf("expected draft present, got ok=%v err=%v", ok, err)
	}
}

func TestMeaningfulPredicate(t *testing.T) {
	cases := []struct {
		name string
		data map[string]any
		want bool
	}{
		{"empty map", map[string]any{}, false},
		{"blank strings", map[string]any{"a": "", "b": "  "}, false},
		{"trimmed string", map[string]any{"a": " x "}, true},
		{"zero number", map[string]any{"n": float64(0)}, false},
		{"nonzero number", map[string]any{"n": float64(2)}, true},
		{"false bool", map[string]any{"b": false}, false},
		{"true bool", map[string]any{"b": true}, true},
		{"nil value", map[string]any{"x": nil}, false},
		{"empty slice", map[string]any{"xs": []any{}}, false},
		{"slice of empty objects", map[string]any{"xs": []any{map[string]any{"f": ""}}}, false},
		{"slice with filled object", map[string]any{"xs": []any{map[string]any{"f": "kitchen"}}}, true},
		{"nested empty object", map[string]any{"o": map[string]any{"f": ""}}, false},
		{"nested filled object", map[string]any{"o": map[string]any{"f": "v"}}, true},
	}
	for _, tc := range cases {
		if got := Meaningful(tc.data); got != tc.want {
			t.Errorf("%s: Meaningful=%v, want %v", tc.name, got, tc.want)
		}
	}
}
