package store

import (
	"context"
	"time"

	"github.com/dukerupert/whathappened/internal/model"
)

// NullBackend satisfies Backend without storing anything. It stands in
// when no user is bound or the sqlite backend is unusable.
type NullBackend struct{}

var _ Backend = NullBackend{}

func (NullBackend) Initialize(context.Context) error { return nil }

func (NullBackend) Terminate() error { return nil }

func (NullBackend) ValidateBackend(context.Context) bool { return true }

func (NullBackend) SetUser(string) {}

func (NullBackend) User() string { return "" }

func (NullBackend) StoreNotification(context.Context, model.Notification) {}

func (NullBackend) RemoveNotification(context.Context, model.Notification) {}

func (NullBackend) HotNotifications(context.Context) []model.Notification { return nil }

func (NullBackend) AllNotifications(context.Context) []model.Notification { return nil }

func (NullBackend) UnseenNotifications(context.Context) []model.Notification { return nil }

func (NullBackend) SetSeen(context.Context, string) {}

func (NullBackend) UnseenCount(context.Context) int { return 0 }

// LastNotificationTime returns now: with nothing stored there is nothing
// to catch up on.
func (NullBackend) LastNotificationTime(context.Context) time.Time { return time.Now() }

func (NullBackend) Clean(context.Context) {}

func (NullBackend) SaveSubscription(context.Context, *model.Subscription) {}

func (NullBackend) Subscription(context.Context, string) *model.Subscription { return nil }

func (NullBackend) Subscriptions(context.Context) []model.Subscription { return nil }
