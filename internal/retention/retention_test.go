package retention

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/whathappened/internal/model"
	"github.com/dukerupert/whathappened/internal/store"
)

func seed(t *testing.T, f *store.Factory, user string, ages ...time.Duration) {
	t.Helper()
	ctx := context.Background()
	err := store.WithSession(ctx, f.Open(ctx, user), func(b store.Backend) error {
		for i, age := range ages {
			when := time.Now().Add(-age)
			where := "/" + user + "/" + string(rune('a'+i))
			b.StoreNotification(ctx, model.NewNotification(model.ActionCreated, where, when, []string{"bob"}, user, "history", false, nil))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed %s: %v", user, err)
	}
}

func count(t *testing.T, f *store.Factory, user string) int {
	t.Helper()
	ctx := context.Background()
	var n int
	err := store.WithSession(ctx, f.Open(ctx, user), func(b store.Backend) error {
		n = len(b.AllNotifications(ctx))
		return nil
	})
	if err != nil {
		t.Fatalf("count %s: %v", user, err)
	}
	return n
}

func TestRunOnce(t *testing.T) {
	f := store.NewFactory(t.TempDir(), nil, slog.Default())
	week := 7 * 24 * time.Hour
	seed(t, f, "alice", week+time.Hour, time.Hour)
	seed(t, f, "bob", 2*week, week+time.Minute)

	n, err := RunOnce(context.Background(), f, slog.Default())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if n != 2 {
		t.Errorf("cleaned = %d, want 2", n)
	}
	if got := count(t, f, "alice"); got != 1 {
		t.Errorf("alice = %d, want 1", got)
	}
	if got := count(t, f, "bob"); got != 0 {
		t.Errorf("bob = %d, want 0", got)
	}
}

func TestRunOnceMissingDirectory(t *testing.T) {
	f := store.NewFactory(t.TempDir()+"/missing", nil, slog.Default())

	if _, err := RunOnce(context.Background(), f, nil); err == nil {
		t.Error("expected error for missing storage directory")
	}
}

func TestRunOnceCanceled(t *testing.T) {
	f := store.NewFactory(t.TempDir(), nil, slog.Default())
	seed(t, f, "alice", time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := RunOnce(ctx, f, nil)
	if err == nil {
		t.Error("expected context error")
	}
	if n != 0 {
		t.Errorf("cleaned = %d, want 0", n)
	}
}

func TestNewSchedulerValidatesCron(t *testing.T) {
	f := store.NewFactory(t.TempDir(), nil, nil)

	if _, err := NewScheduler(f, "not a cron", nil); err == nil {
		t.Error("expected error for invalid cron")
	}
	s, err := NewScheduler(f, "", nil)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	if s.cron != DefaultCron {
		t.Errorf("cron = %q, want %q", s.cron, DefaultCron)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s, err := NewScheduler(store.NewFactory(t.TempDir(), nil, nil), "0 0 1 1 *", nil)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	s.Start(context.Background())
	s.Start(context.Background())

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	// Stop on a stopped scheduler is a no-op.
	s.Stop()
}
