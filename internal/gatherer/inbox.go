package gatherer

import (
	"context"
	"sync"
	"time"

	"github.com/dukerupert/whathappened/internal/model"
)

// DefaultInboxCapacity bounds the number of pending notifications per user.
const DefaultInboxCapacity = 1000

// Name is recorded as the gatherer of notifications delivered through an
// Inbox.
const Name = "inbox"

// Inbox buffers pushed notifications per user until the user's next read.
// When a user's buffer is full the oldest entry is discarded.
type Inbox struct {
	mu       sync.Mutex
	pending  map[string][]model.Notification
	capacity int
}

func NewInbox(capacity int) *Inbox {
	if capacity <= 0 {
		capacity = DefaultInboxCapacity
	}
	return &Inbox{
		pending:  make(map[string][]model.Notification),
		capacity: capacity,
	}
}

// Push queues n for user.
func (i *Inbox) Push(user string, n model.Notification) {
	if n.Gatherer == "" {
		n.Gatherer = Name
	}
	n.User = user

	i.mu.Lock()
	defer i.mu.Unlock()

	q := append(i.pending[user], n)
	if len(q) > i.capacity {
		q = q[len(q)-i.capacity:]
	}
	i.pending[user] = q
}

// Pending returns the number of queued notifications for user.
func (i *Inbox) Pending(user string) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.pending[user])
}

// NewNotifications drains the user's queue and returns the entries at or
// after since. Older entries are discarded.
func (i *Inbox) NewNotifications(_ context.Context, user string, since time.Time) ([]model.Notification, error) {
	i.mu.Lock()
	q := i.pending[user]
	delete(i.pending, user)
	i.mu.Unlock()

	var out []model.Notification
	for _, n := range q {
		if n.When.Before(since) {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}
