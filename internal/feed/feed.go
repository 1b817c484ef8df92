package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukerupert/whathappened/internal/gatherer"
	"github.com/dukerupert/whathappened/internal/model"
	"github.com/dukerupert/whathappened/internal/store"
)

// Opener hands out a closed backend for a user.
type Opener interface {
	Open(ctx context.Context, user string) store.Backend
}

// Hot is the summary shown on every page: the hot notifications and the
// number still unseen.
type Hot struct {
	Notifications []model.Notification `json:"notifications"`
	UnseenCount   int                  `json:"unseen_count"`
}

// Service runs the per-request workflow: pull new notifications from the
// gatherer into the user's store, then read from it. Every call uses its
// own storage session.
type Service struct {
	opener   Opener
	gatherer gatherer.Gatherer
	logger   *slog.Logger
}

func NewService(opener Opener, g gatherer.Gatherer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{opener: opener, gatherer: g, logger: logger}
}

func (s *Service) session(ctx context.Context, user string, fn func(store.Backend) error) error {
	b := s.opener.Open(ctx, user)
	if err := store.WithSession(ctx, b, fn); err != nil {
		return fmt.Errorf("storage session for %q: %w", user, err)
	}
	return nil
}

// update stores whatever the gatherer reports since the newest stored
// notification, skipping locations the user has blacklisted.
func (s *Service) update(ctx context.Context, b store.Backend) {
	if s.gatherer == nil || b.User() == "" {
		return
	}
	since := b.LastNotificationTime(ctx)
	ns, err := s.gatherer.NewNotifications(ctx, b.User(), since)
	if err != nil {
		s.logger.Warn("gather notifications", "user", b.User(), "error", err)
		return
	}
	if len(ns) == 0 {
		return
	}
	subs := b.Subscriptions(ctx)
	for _, n := range ns {
		if !Wanted(subs, n.Where) {
			continue
		}
		if n.User == "" {
			n.User = b.User()
		}
		b.StoreNotification(ctx, n)
	}
}

// Hot updates the user's store and returns the hot summary.
func (s *Service) Hot(ctx context.Context, user string) (Hot, error) {
	var hot Hot
	err := s.session(ctx, user, func(b store.Backend) error {
		s.update(ctx, b)
		hot.Notifications = b.HotNotifications(ctx)
		hot.UnseenCount = b.UnseenCount(ctx)
		return nil
	})
	return hot, err
}

// All updates the user's store and returns every notification. The
// returned notifications carry their seen state from before the call;
// afterwards all of them are marked seen.
func (s *Service) All(ctx context.Context, user string) ([]model.Notification, error) {
	var all []model.Notification
	err := s.session(ctx, user, func(b store.Backend) error {
		s.update(ctx, b)
		all = b.AllNotifications(ctx)
		b.SetSeen(ctx, "")
		return nil
	})
	return all, err
}

func (s *Service) Unseen(ctx context.Context, user string) ([]model.Notification, error) {
	var unseen []model.Notification
	err := s.session(ctx, user, func(b store.Backend) error {
		unseen = b.UnseenNotifications(ctx)
		return nil
	})
	return unseen, err
}

// MarkSeen marks the notifications at path as seen, or all of them when
// path is empty.
func (s *Service) MarkSeen(ctx context.Context, user, path string) error {
	return s.session(ctx, user, func(b store.Backend) error {
		b.SetSeen(ctx, path)
		return nil
	})
}

func (s *Service) SaveSubscription(ctx context.Context, user string, sub model.Subscription) error {
	return s.session(ctx, user, func(b store.Backend) error {
		b.SaveSubscription(ctx, &sub)
		return nil
	})
}

func (s *Service) Subscription(ctx context.Context, user, where string) (*model.Subscription, error) {
	var sub *model.Subscription
	err := s.session(ctx, user, func(b store.Backend) error {
		sub = b.Subscription(ctx, where)
		return nil
	})
	return sub, err
}

func (s *Service) Subscriptions(ctx context.Context, user string) ([]model.Subscription, error) {
	var subs []model.Subscription
	err := s.session(ctx, user, func(b store.Backend) error {
		subs = b.Subscriptions(ctx)
		return nil
	})
	return subs, err
}

// Wanted reports whether a notification at where should be stored. The
// subscription with the longest where that prefixes the path decides; a
// path no subscription covers is wanted.
func Wanted(subs []model.Subscription, where string) bool {
	var best *model.Subscription
	for i := range subs {
		sub := &subs[i]
		if sub.Wants == nil || !strings.HasPrefix(where, sub.Where) {
			continue
		}
		if best == nil || len(sub.Where) > len(best.Where) {
			best = sub
		}
	}
	return best == nil || best.Wanted()
}
