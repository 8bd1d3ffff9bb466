package cache

import (
	"fmt"
	"testing"
	"time"

	"flamecert/api/internal/clock"
)

func newTestCache(t *testing.T, maxSize int) (*Cache[string], *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(time.Unix(1_700_000_000, 0))
	c := New[string](Options{DefaultTTL: time.Minute, MaxSize: maxSize, Clock: fake})
	return c, fake
}

func TestGetReturnsFreshValue(t *testing.T) {
	c, fake := newTestCache(t, 10)
	c.Set("k", "v", 10*time.Second)

	fake.Advance(9 * time.Second)
	got, ok := c.Get("k")
	if !ok || got != "v" {
		t.Errorf("expected fresh hit before ttl, got %q ok=%v", got, ok)
	}
}

func TestGetExpiresAtTTL(t *testing.T) {
	c, fake := newTestCache(t, 10)
	c.Set("k", "v", 10*time.Second)

	// exactly at ttl the entry is already expired
	fake.Advance(10 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss at ttl boundary")
	}
	// lazy eviction removed it entirely
	if _, ok := c.GetStale("k"); ok {
		t.Error("expected entry deleted after lazy eviction")
	}
}

func TestGetStaleIgnoresExpiry(t *testing.T) {
	c, fake := newTestCache(t, 10)
	c.Set("k", "v", 10*time.Second)

	fake.Advance(time.Hour)
	got, ok := c.GetStale("k")
	if !ok || got != "v" {
		t.Errorf("expected stale value, got %q ok=%v", got, ok)
	}
	// GetStale never evicts
	if _, ok := c.GetStale("k"); !ok {
		t.Error("stale read must not evict")
	}
}

func TestPeekReportsFreshnessWithoutEvicting(t *testing.T) {
	c, fake := newTestCache(t, 10)
	c.Set("k", "v", 10*time.Second)

	got, fresh, ok := c.Peek("k")
	if !ok || !fresh || got != "v" {
		t.Errorf("expected fresh peek, got %q fresh=%v ok=%v", got, fresh, ok)
	}

	fake.Advance(time.Hour)
	got, fresh, ok = c.Peek("k")
	if !ok || fresh || got != "v" {
		t.Errorf("expected stale peek, got %q fresh=%v ok=%v", got, fresh, ok)
	}
	// the expired entry survives the peek
	if _, ok := c.GetStale("k"); !ok {
		t.Error("peek must not evict an expired entry")
	}
}

func TestHasEvictsExpired(t *testing.T) {
	c, fake := newTestCache(t, 10)
	c.Set("k", "v", time.Second)

	if !c.Has("k") {
		t.Error("expected Has=true while fresh")
	}
	fake.Advance(2 * time.Second)
	if c.Has("k") {
		t.Error("expected Has=false after expiry")
	}
	if _, ok := c.GetStale("k"); ok {
		t.Error("Has on an expired key should evict it")
	}
}

func TestMaxSizeEvictsOldestInsertion(t *testing.T) {
	c, _ := newTestCache(t, 3)
	for i := 0; i < 4; i++ {
		c.Set(fmt.Sprintf("k%d", i), "v", time.Minute)
	}

	if c.Len() != 3 {
		t.Errorf("expected size capped at 3, got %d", c.Len())
	}
	if _, ok := c.GetStale("k0"); ok {
		t.Error("expected first-inserted key evicted")
	}
	for i := 1; i < 4; i++ {
		if _, ok := c.Get(fmt.Sprintf("k%d", i)); !ok {
			t.Errorf("expected k%d retained", i)
		}
	}
}

func TestOverwriteKeepsEvictionPosition(t *testing.T) {
	c, _ := newTestCache(t, 2)
	c.Set("a", "1", time.Minute)
	c.Set("b", "2", time.Minute)
	// rewriting "a" must not make it newest
	c.Set("a", "3", time.Minute)
	c.Set("c", "4", time.Minute)

	if _, ok := c.GetStale("a"); ok {
		t.Error("expected a evicted as oldest insertion despite overwrite")
	}
	if got, _ := c.Get("b"); got != "2" {
		t.Errorf("expected b retained, got %q", got)
	}
}

func TestCleanupSweepsExpired(t *testing.T) {
	c, fake := newTestCache(t, 10)
	c.Set("old", "v", time.Second)
	c.Set("new", "v", time.Hour)

	fake.Advance(time.Minute)
	c.Cleanup()

	if c.Len() != 1 {
		t.Errorf("expected 1 entry after cleanup, got %d", c.Len())
	}
	if _, ok := c.GetStale("old"); ok {
		t.Error("expected expired entry swept")
	}
	if _, ok := c.Get("new"); !ok {
		t.Error("expected live entry kept")
	}
}

func TestDeleteAndClear(t *testing.T) {
	c, _ := newTestCache(t, 10)
	c.Set("a", "1", time.Minute)
	c.Set("b", "2", time.Minute)

	c.Delete("a")
	if _, ok := c.GetStale("a"); ok {
		t.Error("expected a deleted")
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("expected empty cache after Clear, got %d", c.Len())
	}
}

func TestDefaultTTLApplied(t *testing.T) {
	c, fake := newTestCache(t, 10)
	c.Set("k", "v", 0) // 0 -> default of one minute

	fake.Advance(59 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Error("expected hit inside default ttl")
	}
	fake.Advance(2 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss past default ttl")
	}
}
