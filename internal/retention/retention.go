package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/dukerupert/whathappened/internal/store"
)

// DefaultCron runs the cleanup daily at 03:00 UTC.
const DefaultCron = "0 3 * * *"

// Stores enumerates the users with a store and opens their backends.
type Stores interface {
	Users() ([]string, error)
	Open(ctx context.Context, user string) store.Backend
}

// Scheduler removes expired notifications from every user store on a cron
// schedule.
type Scheduler struct {
	mu     sync.Mutex
	stores Stores
	cron   string
	logger *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler validates cron and returns a stopped scheduler. An empty
// cron selects DefaultCron.
func NewScheduler(stores Stores, cron string, logger *slog.Logger) (*Scheduler, error) {
	if cron == "" {
		cron = DefaultCron
	}
	if !gronx.IsValid(cron) {
		return nil, fmt.Errorf("invalid retention cron expression: %q", cron)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{stores: stores, cron: cron, logger: logger}, nil
}

// Start runs the schedule in a goroutine until ctx is canceled or Stop is
// called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.loop(ctx)
	}()
	s.logger.Info("retention scheduler started", "cron", s.cron)
}

// Stop cancels the schedule and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	for {
		next, err := gronx.NextTickAfter(s.cron, time.Now().UTC(), false)
		if err != nil {
			s.logger.Error("retention next tick", "cron", s.cron, "error", err)
			next = time.Now().Add(time.Minute)
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("retention scheduler stopped")
			return
		case <-timer.C:
		}

		if _, err := RunOnce(ctx, s.stores, s.logger); err != nil {
			s.logger.Error("retention pass", "error", err)
		}
	}
}

// RunOnce cleans every user store once and returns the number of stores
// visited. A store that cannot be opened is logged and skipped.
func RunOnce(ctx context.Context, stores Stores, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	users, err := stores.Users()
	if err != nil {
		return 0, fmt.Errorf("list user stores: %w", err)
	}

	cleaned := 0
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return cleaned, err
		}
		b := stores.Open(ctx, user)
		err := store.WithSession(ctx, b, func(b store.Backend) error {
			b.Clean(ctx)
			return nil
		})
		if err != nil {
			logger.Warn("retention skipped store", "user", user, "error", err)
			continue
		}
		cleaned++
	}
	logger.Info("retention pass complete", "stores", cleaned)
	return cleaned, nil
}
