package draft

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) *RedisStore {
	t.Helper()
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://"+s.Addr(), time.Hour)
	if err != nil {
		t.Fatalf("failed to create redis draft store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRedisDraftRoundTrip(t *testing.T) {
	store := setupTestRedis(t)
	ctx := context.Background()

	formData := map[string]any{"name": "Acme Lettings", "appliances": []any{map[string]any{"location": "kitchen"}}}
	if err := store.UpsertDraft(ctx, "user-1", "gas_safety", formData); err != nil {
		t.Fatalf("UpsertDraft failed: %v", err)
	}

	got, err := store.GetDraft(ctx, "user-1", "gas_safety")
	if err != nil {
		t.Fatalf("GetDraft failed: %v", err)
	}
	if got == nil || got["name"] != "Acme Lettings" {
		t.Errorf("expected round-tripped draft, got %v", got)
	}
}

func TestRedisGetMissingDraftIsNil(t *testing.T) {
	store := setupTestRedis(t)

	got, err := store.GetDraft(context.Background(), "user-1", "invoice")
	if err != nil {
		t.Fatalf("GetDraft failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing draft, got %v", got)
	}
}

func TestRedisUpsertOverwritesSlot(t *testing.T) {
	store := setupTestRedis(t)
	ctx := context.Background()

	if err := store.UpsertDraft(ctx, "user-1", "invoice", map[string]any{"v": "first"}); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if err := store.UpsertDraft(ctx, "user-1", "invoice", map[string]any{"v": "second"}); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	got, err := store.GetDraft(ctx, "user-1", "invoice")
	if err != nil {
		t.Fatalf("GetDraft failed: %v", err)
	}
	if got["v"] != "second" {
		t.Errorf("expected last write to win, got %v", got["v"])
	}
}

func TestRedisDeleteDraft(t *testing.T) {
	store := setupTestRedis(t)
	ctx := context.Background()

	if err := store.UpsertDraft(ctx, "user-1", "gas_safety", map[string]any{"name": "x"}); err != nil {
		t.Fatalf("UpsertDraft failed: %v", err)
	}
	if err := store.DeleteDraft(ctx, "user-1", "gas_safety"); err != nil {
		t.Fatalf("DeleteDraft failed: %v", err)
	}
	got, err := store.GetDraft(ctx, "user-1", "gas_safety")
	if err != nil {
		t.Fatalf("GetDraft failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil after delete, got %v", got)
	}

	// deleting a missing slot is fine
	if err := store.DeleteDraft(ctx, "user-1", "gas_safety"); err != nil {
		t.Errorf("delete of missing draft failed: %v", err)
	}
}

func TestRedisDraftsAreIsolatedPerUserAndForm(t *testing.T) {
	store := setupTestRedis(t)
	ctx := context.Background()

	_ = store.UpsertDraft(ctx, "user-1", "gas_safety", map[string]any{"who": "one"})
	_ = store.UpsertDraft(ctx, "user-2", "gas_safety", map[string]any{"who": "two"})
	_ = store.UpsertDraft(ctx, "user-1", "invoice", map[string]any{"who": "inv"})

	got, _ := store.GetDraft(ctx, "user-1", "gas_safety")
	if got["who"] != "one" {
		t.Errorf("user-1 gas_safety = %v, want one", got["who"])
	}
	got, _ = store.GetDraft(ctx, "user-2", "gas_safety")
	if got["who"] != "two" {
		t.Errorf("user-2 gas_safety = %v, want two", got["who"])
	}
	got, _ = store.GetDraft(ctx, "user-1", "invoice")
	if got["who"] != "inv" {
		t.Errorf("user-1 invoice = %v, want inv", got["who"])
	}
}

func TestRedisRetentionExpiresDrafts(t *testing.T) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://"+s.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("failed to create redis draft store: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	if err := store.UpsertDraft(ctx, "user-1", "invoice", map[string]any{"v": "x"}); err != nil {
		t.Fatalf("UpsertDraft failed: %v", err)
	}
	s.FastForward(2 * time.Minute)

	got, err := store.GetDraft(ctx, "user-1", "invoice")
	if err != nil {
		t.Fatalf("GetDraft failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected draft aged out, got %v", got)
	}
}
