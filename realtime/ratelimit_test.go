package realtime

import (
	"testing"
	"time"
)

func TestRateLimiterCooldown(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := newRateLimiter(func() time.Time { return now })

	if ok, _ := r.Allow(); !ok {
		t.Fatalf("first send blocked")
	}
	r.Record()

	if ok, reason := r.Allow(); ok || reason != "Message cooldown active" {
		t.Fatalf("Allow inside cooldown = %v %q", ok, reason)
	}
	now = now.Add(999 * time.Millisecond)
	if ok, _ := r.Allow(); ok {
		t.Fatalf("Allow at 999ms succeeded")
	}
	now = now.Add(time.Millisecond)
	if ok, _ := r.Allow(); !ok {
		t.Fatalf("Allow at 1000ms blocked")
	}
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := newRateLimiter(func() time.Time { return now })

	for i := 0; i < 30; i++ {
		if ok, reason := r.Allow(); !ok {
			t.Fatalf("send %d blocked: %s", i, reason)
		}
		r.Record()
		now = now.Add(1500 * time.Millisecond)
	}
	if ok, reason := r.Allow(); ok || reason != "Rate limit exceeded" {
		t.Fatalf("31st send = %v %q", ok, reason)
	}

	// the first sends age past the window edge
	now = now.Add(16 * time.Second)
	if ok, _ := r.Allow(); !ok {
		t.Fatalf("send blocked after window slide")
	}
}

func TestRateLimiterAllowDoesNotRecord(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := newRateLimiter(func() time.Time { return now })

	// repeated Allow calls without Record never consume quota
	for i := 0; i < 100; i++ {
		if ok, _ := r.Allow(); !ok {
			t.Fatalf("Allow %d blocked without any Record", i)
		}
	}
}
