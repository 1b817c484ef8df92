package events

import (
	"log/slog"
	"sync"
)

// Event is published when a user's subscriptions change.
type Event interface {
	// Kind is "subscribed" or "blacklisted".
	Kind() string
	// Path is the location the subscription applies to.
	Path() string
	// Owner is the user whose store emitted the event.
	Owner() string
}

type Subscribed struct {
	Where string
	User  string
}

func (e Subscribed) Kind() string  { return "subscribed" }
func (e Subscribed) Path() string  { return e.Where }
func (e Subscribed) Owner() string { return e.User }

type Blacklisted struct {
	Where string
	User  string
}

func (e Blacklisted) Kind() string  { return "blacklisted" }
func (e Blacklisted) Path() string  { return e.Where }
func (e Blacklisted) Owner() string { return e.User }

// Listener receives published events on the publisher's goroutine.
type Listener func(Event)

// Dispatcher delivers events synchronously to every registered listener.
type Dispatcher struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]Listener
	logger    *slog.Logger
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		listeners: make(map[int]Listener),
		logger:    logger,
	}
}

// Subscribe registers l and returns a func that removes it again.
func (d *Dispatcher) Subscribe(l Listener) func() {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.listeners[id] = l
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.listeners, id)
			d.mu.Unlock()
		})
	}
}

// Publish calls every listener with e. A panicking listener is logged and
// skipped. Publishing on a nil Dispatcher is a no-op.
func (d *Dispatcher) Publish(e Event) {
	if d == nil {
		return
	}

	d.mu.RLock()
	ls := make([]Listener, 0, len(d.listeners))
	for _, l := range d.listeners {
		ls = append(ls, l)
	}
	d.mu.RUnlock()

	for _, l := range ls {
		d.deliver(l, e)
	}
}

func (d *Dispatcher) deliver(l Listener, e Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event listener panic", "kind", e.Kind(), "where", e.Path(), "panic", r)
		}
	}()
	l(e)
}

// ListenerCount returns the number of registered listeners.
func (d *Dispatcher) ListenerCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.listeners)
}
