package clock

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestFakeAdvanceDeliversDueTicks(t *testing.T) {
	fake := NewFake(time.Unix(1000, 0))
	ticker := fake.NewTicker(10 * time.Second)

	fake.Advance(25 * time.Second)

	var ticks int
	for {
		select {
		case <-ticker.C():
			ticks++
			continue
		default:
		}
		break
	}
	if ticks != 2 {
		t.Errorf("expected 2 ticks after 25s with 10s interval, got %d", ticks)
	}
}

func TestFakeStoppedTickerDoesNotFire(t *testing.T) {
	fake := NewFake(time.Unix(1000, 0))
	ticker := fake.NewTicker(time.Second)
	ticker.Stop()

	fake.Advance(5 * time.Second)

	select {
	case <-ticker.C():
		t.Error("stopped ticker delivered a tick")
	default:
	}
}

func TestRepeaterRunsAndStops(t *testing.T) {
	fake := NewFake(time.Unix(0, 0))
	var runs atomic.Int32
	fired := make(chan struct{}, 16)

	r := NewRepeater(fake, time.Minute, func() {
		runs.Add(1)
		fired <- struct{}{}
	})

	fake.Advance(3 * time.Minute)
	for i := 0; i < 3; i++ {
		select {
		case <-fired:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for run %d", i+1)
		}
	}

	r.Stop()
	got := runs.Load()
	fake.Advance(10 * time.Minute)
	if runs.Load() != got {
		t.Errorf("repeater ran after Stop: %d -> %d", got, runs.Load())
	}
	// Stop again must not panic or deadlock.
	r.Stop()
}
