package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/whathappened/internal/model"
)

// RetentionWindow is how far back notifications are kept, and how far back
// a first-time caller should look for new ones.
const RetentionWindow = 7 * 24 * time.Hour

// HotLimit is the number of notifications in the hot summary.
const HotLimit = 5

// Backend stores and retrieves notifications and subscriptions for one
// user. Operations never fail outward: reads degrade to empty results and
// writes are dropped when the backend is unavailable.
type Backend interface {
	// Initialize starts a storage session. It is a no-op when a session is
	// already open or no user is bound.
	Initialize(ctx context.Context) error
	// Terminate finishes the session. It is a no-op when none is open.
	Terminate() error
	// ValidateBackend opens a session, performs one read and closes it.
	ValidateBackend(ctx context.Context) bool

	// SetUser rebinds the backend while no session is open.
	SetUser(user string)
	User() string

	StoreNotification(ctx context.Context, n model.Notification)
	RemoveNotification(ctx context.Context, n model.Notification)

	HotNotifications(ctx context.Context) []model.Notification
	AllNotifications(ctx context.Context) []model.Notification
	UnseenNotifications(ctx context.Context) []model.Notification
	// SetSeen marks notifications at path as seen, or all of them when path
	// is empty.
	SetSeen(ctx context.Context, path string)
	UnseenCount(ctx context.Context) int
	LastNotificationTime(ctx context.Context) time.Time
	// Clean removes notifications older than RetentionWindow.
	Clean(ctx context.Context)

	SaveSubscription(ctx context.Context, s *model.Subscription)
	Subscription(ctx context.Context, where string) *model.Subscription
	Subscriptions(ctx context.Context) []model.Subscription
}

// WithSession runs fn inside an initialized session of b and terminates
// the session on every exit path.
func WithSession(ctx context.Context, b Backend, fn func(Backend) error) (err error) {
	if err := b.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	defer func() {
		if terr := b.Terminate(); terr != nil {
			err = errors.Join(err, fmt.Errorf("terminate storage: %w", terr))
		}
	}()
	return fn(b)
}
