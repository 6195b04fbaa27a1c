package realtime

import "sync"

// messageBuffer keeps the newest capacity messages, strict FIFO eviction.
type messageBuffer struct {
	mu    sync.Mutex
	cap   int
	items []ChatMessage
}

func newMessageBuffer(capacity int) *messageBuffer {
	return &messageBuffer{cap: capacity, items: make([]ChatMessage, 0, capacity)}
}

func (b *messageBuffer) Append(m ChatMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, m)
	if len(b.items) > b.cap {
		// evict oldest; copy keeps the backing array from growing unbounded
		n := copy(b.items, b.items[len(b.items)-b.cap:])
		b.items = b.items[:n]
	}
}

func (b *messageBuffer) Snapshot() []ChatMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ChatMessage, len(b.items))
	copy(out, b.items)
	return out
}

func (b *messageBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

func (b *messageBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = b.items[:0]
}

// notificationBuffer keeps the newest capacity notifications, newest first.
// IsRead is the only field mutated in place.
type notificationBuffer struct {
	mu    sync.Mutex
	cap   int
	items []Notification
}

func newNotificationBuffer(capacity int) *notificationBuffer {
	return &notificationBuffer{cap: capacity, items: make([]Notification, 0, capacity)}
}

func (b *notificationBuffer) Prepend(n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, Notification{})
	copy(b.items[1:], b.items)
	b.items[0] = n
	if len(b.items) > b.cap {
		b.items = b.items[:b.cap] // oldest sits at the tail
	}
}

// MarkRead flips one notification to read. Reports whether it was unread.
func (b *notificationBuffer) MarkRead(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.items {
		if b.items[i].ID == id {
			if b.items[i].IsRead {
				return false
			}
			b.items[i].IsRead = true
			return true
		}
	}
	return false
}

func (b *notificationBuffer) MarkAllRead() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.items {
		b.items[i].IsRead = true
	}
}

func (b *notificationBuffer) Snapshot() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Notification, len(b.items))
	copy(out, b.items)
	return out
}

func (b *notificationBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

func (b *notificationBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = b.items[:0]
}
