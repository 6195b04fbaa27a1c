package realtime

import (
	"testing"
	"time"
)

func TestRosterUpsertKeepsFields(t *testing.T) {
	r := newRoster(RosterConf{})
	defer r.Close()

	r.Upsert("u1", "alice", "a.png")
	r.MarkOffline("u1")
	r.Upsert("u1", "", "") // rejoin without profile fields

	got := r.Snapshot()
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	p := got[0]
	if p.Username != "alice" || p.Avatar != "a.png" {
		t.Fatalf("profile fields lost on rejoin: %+v", p)
	}
	if !p.IsOnline {
		t.Fatalf("rejoin did not flip online")
	}
}

func TestRosterSweepEvictsStaleOffline(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := newRoster(RosterConf{
		OfflineTTL: 10 * time.Minute,
		Clock:      func() time.Time { return now },
	})
	defer r.Close()

	r.Upsert("gone", "bob", "")
	r.Upsert("fresh", "carol", "")
	r.Upsert("online", "dave", "")
	r.MarkOffline("gone")
	r.MarkOffline("fresh")

	// gone is 11 minutes stale, fresh only 5
	r.sweepOnce(now.Add(11 * time.Minute))

	got := r.Snapshot()
	if len(got) != 2 {
		t.Fatalf("len = %d after sweep, want 2", len(got))
	}
	for _, p := range got {
		if p.UserID == "gone" {
			t.Fatalf("stale offline entry survived sweep")
		}
	}
}

func TestRosterSweepSkipsOnline(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := newRoster(RosterConf{Clock: func() time.Time { return now }})
	defer r.Close()

	r.Upsert("u1", "alice", "")
	r.sweepOnce(now.Add(24 * time.Hour))
	if r.Len() != 1 {
		t.Fatalf("online entry evicted")
	}
}
