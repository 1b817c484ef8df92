package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/dukerupert/whathappened/internal/events"
	"github.com/dukerupert/whathappened/internal/metrics"
)

// Factory hands out a backend per request, falling back to NullBackend
// whenever the sqlite backend cannot be used. A user's store is validated
// on its first successful open only.
type Factory struct {
	dir       string
	events    *events.Dispatcher
	logger    *slog.Logger
	validated sync.Map
}

func NewFactory(dir string, ev *events.Dispatcher, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{dir: dir, events: ev, logger: logger}
}

// Dir returns the base directory of the per-user store files.
func (f *Factory) Dir() string {
	return f.dir
}

// Open returns a closed, validated backend for user.
func (f *Factory) Open(ctx context.Context, user string) Backend {
	if user == "" {
		return NullBackend{}
	}
	b, err := NewSQLiteBackend(f.dir, user, f.events, f.logger)
	if err != nil {
		metrics.BackendFallbacks.Inc()
		f.logger.Warn("using null storage backend", "user", user, "error", err)
		return NullBackend{}
	}
	if _, ok := f.validated.Load(user); ok {
		return b
	}
	if !b.ValidateBackend(ctx) {
		metrics.BackendFallbacks.Inc()
		f.logger.Warn("using null storage backend", "user", user, "reason", "validation failed")
		return NullBackend{}
	}
	f.validated.Store(user, struct{}{})
	return b
}

// Users lists the users that have a store file, sorted.
func (f *Factory) Users() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("read storage directory: %w", err)
	}
	var users []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		user, ok := strings.CutSuffix(e.Name(), FileSuffix)
		if !ok || !ValidUser(user) {
			continue
		}
		users = append(users, user)
	}
	sort.Strings(users)
	return users, nil
}
