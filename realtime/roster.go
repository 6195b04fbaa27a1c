package realtime

import (
	"sort"
	"sync"
	"time"
)

// RosterConf configures the participant roster.
type RosterConf struct {
	OfflineTTL time.Duration    // evict offline entries after this (default 10m)
	SweepEvery time.Duration    // sweep period (default 1m)
	Clock      func() time.Time // injectable clock for tests; nil => time.Now
}

func (c *RosterConf) norm() {
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.OfflineTTL <= 0 {
		c.OfflineTTL = 10 * time.Minute
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = time.Minute
	}
}

// roster is the presence map for the current room. Participants flip to
// offline on leave rather than being removed; a sweeper evicts entries that
// stay offline past OfflineTTL so long-lived high-churn rooms stay bounded.
type roster struct {
	mu     sync.RWMutex
	byUser map[string]*Participant

	conf     RosterConf
	stopOnce sync.Once
	stopCh   chan struct{}
}

func newRoster(conf RosterConf) *roster {
	conf.norm()
	r := &roster{
		byUser: make(map[string]*Participant),
		conf:   conf,
		stopCh: make(chan struct{}),
	}
	go r.sweeper()
	return r
}

func (r *roster) Close() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// Upsert marks a user online, creating the record on first sight. Empty
// fields on repeat joins keep the previous values.
func (r *roster) Upsert(userID, username, avatar string) {
	if userID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byUser[userID]
	if !ok {
		r.byUser[userID] = &Participant{
			UserID:   userID,
			Username: username,
			Avatar:   avatar,
			IsOnline: true,
		}
		return
	}
	if username != "" {
		p.Username = username
	}
	if avatar != "" {
		p.Avatar = avatar
	}
	p.IsOnline = true
}

func (r *roster) MarkOffline(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byUser[userID]; ok {
		p.IsOnline = false
		p.LastSeenAt = r.conf.Clock()
	}
}

func (r *roster) Snapshot() []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Participant, 0, len(r.byUser))
	for _, p := range r.byUser {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (r *roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

func (r *roster) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser = make(map[string]*Participant)
}

func (r *roster) sweeper() {
	t := time.NewTicker(r.conf.SweepEvery)
	defer t.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case now := <-t.C:
			r.sweepOnce(now)
		}
	}
}

func (r *roster) sweepOnce(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range r.byUser {
		if !p.IsOnline && !p.LastSeenAt.IsZero() && now.Sub(p.LastSeenAt) > r.conf.OfflineTTL {
			delete(r.byUser, id)
		}
	}
}
