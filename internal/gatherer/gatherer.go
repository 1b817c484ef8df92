package gatherer

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukerupert/whathappened/internal/model"
)

// Gatherer collects a user's notifications that happened at or after
// since.
type Gatherer interface {
	NewNotifications(ctx context.Context, user string, since time.Time) ([]model.Notification, error)
}

// Func adapts a plain function to Gatherer.
type Func func(ctx context.Context, user string, since time.Time) ([]model.Notification, error)

func (f Func) NewNotifications(ctx context.Context, user string, since time.Time) ([]model.Notification, error) {
	return f(ctx, user, since)
}

// Multi concatenates the results of several gatherers. A failing member is
// logged and skipped so the others still contribute.
type Multi struct {
	gatherers []Gatherer
	logger    *slog.Logger
}

func NewMulti(logger *slog.Logger, gatherers ...Gatherer) *Multi {
	if logger == nil {
		logger = slog.Default()
	}
	return &Multi{gatherers: gatherers, logger: logger}
}

// Add registers another gatherer.
func (m *Multi) Add(g Gatherer) {
	m.gatherers = append(m.gatherers, g)
}

func (m *Multi) NewNotifications(ctx context.Context, user string, since time.Time) ([]model.Notification, error) {
	var out []model.Notification
	for i, g := range m.gatherers {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		ns, err := g.NewNotifications(ctx, user, since)
		if err != nil {
			m.logger.Warn("gatherer failed", "index", i, "user", user, "error", err)
			continue
		}
		out = append(out, ns...)
	}
	return out, nil
}
