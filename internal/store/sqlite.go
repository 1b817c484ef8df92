package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/whathappened/internal/database"
	"github.com/dukerupert/whathappened/internal/events"
	"github.com/dukerupert/whathappened/internal/metrics"
	"github.com/dukerupert/whathappened/internal/model"
)

// FileSuffix is appended to the user identifier to name its store file.
const FileSuffix = ".sqlite"

// SQLiteBackend keeps one SQLite file per user under a base directory.
type SQLiteBackend struct {
	dir    string
	user   string
	db     *sqlx.DB
	events *events.Dispatcher
	logger *slog.Logger
	now    func() time.Time
}

var _ Backend = (*SQLiteBackend)(nil)

// NewSQLiteBackend returns a closed backend for user. It fails when dir is
// not an existing directory.
func NewSQLiteBackend(dir, user string, ev *events.Dispatcher, logger *slog.Logger) (*SQLiteBackend, error) {
	if dir == "" {
		return nil, errors.New("storage directory not configured")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("storage directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage directory %s is not a directory", dir)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteBackend{
		dir:    dir,
		user:   user,
		events: ev,
		logger: logger,
		now:    time.Now,
	}, nil
}

// ValidUser reports whether user can name a store file.
func ValidUser(user string) bool {
	if user == "" || user == "." || user == ".." {
		return false
	}
	return !strings.ContainsAny(user, "/\\\x00")
}

func (b *SQLiteBackend) path() string {
	return filepath.Join(b.dir, b.user+FileSuffix)
}

func (b *SQLiteBackend) Initialize(ctx context.Context) error {
	if b.db != nil || b.user == "" {
		return nil
	}
	if !ValidUser(b.user) {
		return fmt.Errorf("invalid user identifier %q", b.user)
	}
	db, err := database.Open(ctx, b.path())
	if err != nil {
		return fmt.Errorf("open store for %s: %w", b.user, err)
	}
	b.db = db
	return nil
}

func (b *SQLiteBackend) Terminate() error {
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	if err != nil {
		return fmt.Errorf("close store for %s: %w", b.user, err)
	}
	return nil
}

func (b *SQLiteBackend) ValidateBackend(ctx context.Context) bool {
	if err := b.validate(ctx); err != nil {
		metrics.ValidationFailures.Inc()
		b.logger.Error("storage backend validation failed", "user", b.user, "error", err)
		return false
	}
	return true
}

func (b *SQLiteBackend) validate(ctx context.Context) (err error) {
	wasOpen := b.db != nil
	if err := b.Initialize(ctx); err != nil {
		return err
	}
	if !wasOpen {
		defer func() {
			if terr := b.Terminate(); terr != nil {
				err = errors.Join(err, terr)
			}
		}()
	}
	if b.db == nil {
		return nil
	}
	_, err = b.queryNotifications(ctx, hotQuery)
	return err
}

// SetUser is ignored while a session is open: the open handle belongs to
// the previous user's file.
func (b *SQLiteBackend) SetUser(user string) {
	if b.db != nil {
		return
	}
	b.user = user
}

func (b *SQLiteBackend) User() string {
	return b.user
}

// StoreNotification merges n into an unseen notification with the same
// what, where and info, or records it as a new one. Failures are logged
// and dropped.
func (b *SQLiteBackend) StoreNotification(ctx context.Context, n model.Notification) {
	if b.db == nil {
		return
	}
	who := uniqueActors(n.Who)
	if len(who) == 0 {
		metrics.NotificationsStored.WithLabelValues(metrics.OutcomeDropped).Inc()
		b.logger.Debug("dropping notification without actors", "user", b.user, "id", n.ID())
		return
	}
	info, err := n.InfoJSON()
	if err != nil {
		metrics.NotificationsStored.WithLabelValues(metrics.OutcomeDropped).Inc()
		b.logger.Warn("dropping notification", "user", b.user, "id", n.ID(), "error", err)
		return
	}

	var outcome string
	err = withRetry(ctx, func(ctx context.Context) error {
		var err error
		outcome, err = b.store(ctx, n, who, info)
		return err
	})
	switch {
	case err == nil:
		metrics.NotificationsStored.WithLabelValues(outcome).Inc()
	case isConstraint(err):
		metrics.NotificationsStored.WithLabelValues(metrics.OutcomeDropped).Inc()
		b.logger.Debug("notification already recorded", "user", b.user, "id", n.ID())
	default:
		metrics.NotificationsStored.WithLabelValues(metrics.OutcomeDropped).Inc()
		b.logger.Warn("store notification", "user", b.user, "id", n.ID(), "error", err)
	}
}

func (b *SQLiteBackend) store(ctx context.Context, n model.Notification, who []string, info string) (string, error) {
	var when int64
	err := b.db.GetContext(ctx, &when,
		`SELECT "when" FROM notifications
		 WHERE "what" = ? AND "where" = ? AND info = ? AND seen = 0
		 ORDER BY "when" DESC LIMIT 1`,
		n.What, n.Where, info,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return metrics.OutcomeCreated, b.create(ctx, n, who, info)
	}
	if err != nil {
		return "", fmt.Errorf("find unseen notification: %w", err)
	}
	return metrics.OutcomeMerged, b.merge(ctx, n.What, when, n.Where, who)
}

// merge adds actors to the notification keyed by (what, when, where). The
// existing timestamp is kept.
func (b *SQLiteBackend) merge(ctx context.Context, what string, when int64, where string, who []string) error {
	for _, actor := range who {
		_, err := b.db.ExecContext(ctx,
			`INSERT INTO notification_actors ("what", "when", "where", who) VALUES (?, ?, ?, ?)`,
			what, when, where, actor,
		)
		if err != nil && !isConstraint(err) {
			return fmt.Errorf("add actor %s: %w", actor, err)
		}
	}
	return nil
}

func (b *SQLiteBackend) create(ctx context.Context, n model.Notification, who []string, info string) error {
	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	when := n.WhenTimestamp()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO notifications ("what", "when", "where", seen, gatherer, info) VALUES (?, ?, ?, ?, ?, ?)`,
		n.What, when, n.Where, boolToInt(n.Seen), n.Gatherer, info,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	for _, actor := range who {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO notification_actors ("what", "when", "where", who) VALUES (?, ?, ?, ?)`,
			n.What, when, n.Where, actor,
		)
		if err != nil && !isConstraint(err) {
			return fmt.Errorf("insert actor %s: %w", actor, err)
		}
	}
	return tx.Commit()
}

func (b *SQLiteBackend) RemoveNotification(ctx context.Context, n model.Notification) {
	if b.db == nil {
		return
	}
	err := withRetry(ctx, func(ctx context.Context) error {
		_, err := b.db.ExecContext(ctx,
			`DELETE FROM notifications WHERE "what" = ? AND "when" = ? AND "where" = ?`,
			n.What, n.WhenTimestamp(), n.Where,
		)
		return err
	})
	if err != nil {
		b.logger.Warn("remove notification", "user", b.user, "id", n.ID(), "error", err)
	}
}

const notificationCols = `n."what", n."when", n."where", n.seen, n.gatherer, n.info, a.who`

// Rows are one per (notification, actor); they are folded back into one
// notification per key, actors in insertion order.
var hotQuery = fmt.Sprintf(`SELECT %s
		FROM (
			SELECT * FROM notifications
			ORDER BY seen ASC, "when" DESC, "what", "where"
			LIMIT %d
		) n
		LEFT JOIN notification_actors a
			ON a."what" = n."what" AND a."when" = n."when" AND a."where" = n."where"
		ORDER BY n.seen ASC, n."when" DESC, n."what", n."where", a.rowid`, notificationCols, HotLimit)

const (
	allQuery = `SELECT ` + notificationCols + `
		FROM notifications n
		JOIN notification_actors a
			ON a."what" = n."what" AND a."when" = n."when" AND a."where" = n."where"
		ORDER BY n."when" DESC, n."what", n."where", a.rowid`

	unseenQuery = `SELECT ` + notificationCols + `
		FROM notifications n
		JOIN notification_actors a
			ON a."what" = n."what" AND a."when" = n."when" AND a."where" = n."where"
		WHERE n.seen = 0
		ORDER BY n."when" DESC, n."what", n."where", a.rowid`
)

type notificationRow struct {
	What     string         `db:"what"`
	When     int64          `db:"when"`
	Where    string         `db:"where"`
	Seen     bool           `db:"seen"`
	Gatherer string         `db:"gatherer"`
	Info     sql.NullString `db:"info"`
	Who      sql.NullString `db:"who"`
}

func (r notificationRow) sameKey(o notificationRow) bool {
	return r.What == o.What && r.When == o.When && r.Where == o.Where
}

func (b *SQLiteBackend) queryNotifications(ctx context.Context, query string, args ...any) ([]model.Notification, error) {
	rows, err := b.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var (
		out      []model.Notification
		prev     notificationRow
		havePrev bool
		skip     bool
	)
	for rows.Next() {
		var r notificationRow
		if err := rows.StructScan(&r); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if havePrev && r.sameKey(prev) {
			if !skip && r.Who.Valid {
				last := &out[len(out)-1]
				last.Who = append(last.Who, r.Who.String)
			}
			continue
		}
		prev, havePrev = r, true
		n, err := b.toNotification(r)
		if err != nil {
			// A row with an unreadable payload is left out; the rest of the
			// result is still useful.
			skip = true
			b.logger.Warn("skipping unreadable notification", "user", b.user, "what", r.What, "where", r.Where, "error", err)
			continue
		}
		skip = false
		out = append(out, n)
	}
	return out, rows.Err()
}

func (b *SQLiteBackend) toNotification(r notificationRow) (model.Notification, error) {
	var info any
	if r.Info.Valid {
		// Numbers stay json.Number so the payload re-serializes to the
		// stored text.
		dec := json.NewDecoder(strings.NewReader(r.Info.String))
		dec.UseNumber()
		if err := dec.Decode(&info); err != nil {
			return model.Notification{}, fmt.Errorf("decode info: %w", err)
		}
	}
	who := []string{}
	if r.Who.Valid {
		who = append(who, r.Who.String)
	}
	return model.Notification{
		What:     r.What,
		Where:    r.Where,
		When:     time.Unix(r.When, 0).UTC(),
		Who:      who,
		User:     b.user,
		Gatherer: r.Gatherer,
		Seen:     r.Seen,
		Info:     info,
	}, nil
}

func (b *SQLiteBackend) readNotifications(ctx context.Context, name, query string) []model.Notification {
	if b.db == nil {
		return nil
	}
	ns, err := b.queryNotifications(ctx, query)
	if err != nil {
		b.logger.Warn("read notifications", "user", b.user, "query", name, "error", err)
		return nil
	}
	return ns
}

// HotNotifications returns up to HotLimit notifications, unseen first and
// newest first within each group. Notifications without actors are
// included.
func (b *SQLiteBackend) HotNotifications(ctx context.Context) []model.Notification {
	return b.readNotifications(ctx, "hot", hotQuery)
}

// AllNotifications returns every notification with at least one actor,
// newest first.
func (b *SQLiteBackend) AllNotifications(ctx context.Context) []model.Notification {
	return b.readNotifications(ctx, "all", allQuery)
}

func (b *SQLiteBackend) UnseenNotifications(ctx context.Context) []model.Notification {
	return b.readNotifications(ctx, "unseen", unseenQuery)
}

func (b *SQLiteBackend) SetSeen(ctx context.Context, path string) {
	if b.db == nil {
		return
	}
	err := withRetry(ctx, func(ctx context.Context) error {
		var err error
		if path == "" {
			_, err = b.db.ExecContext(ctx, `UPDATE notifications SET seen = 1`)
		} else {
			_, err = b.db.ExecContext(ctx, `UPDATE notifications SET seen = 1 WHERE "where" = ?`, path)
		}
		return err
	})
	if err != nil {
		b.logger.Warn("set seen", "user", b.user, "path", path, "error", err)
	}
}

func (b *SQLiteBackend) UnseenCount(ctx context.Context) int {
	if b.db == nil {
		return 0
	}
	var count int
	if err := b.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM notifications WHERE seen = 0`); err != nil {
		b.logger.Warn("count unseen", "user", b.user, "error", err)
		return 0
	}
	return count
}

// LastNotificationTime returns the time of the newest notification, or
// RetentionWindow before now when there is none or it cannot be read.
func (b *SQLiteBackend) LastNotificationTime(ctx context.Context) time.Time {
	fallback := b.now().Add(-RetentionWindow)
	if b.db == nil {
		return fallback
	}
	var last sql.NullInt64
	if err := b.db.GetContext(ctx, &last, `SELECT MAX("when") FROM notifications`); err != nil {
		b.logger.Warn("last notification time", "user", b.user, "error", err)
		return fallback
	}
	if !last.Valid {
		return fallback
	}
	return time.Unix(last.Int64, 0).UTC()
}

func (b *SQLiteBackend) Clean(ctx context.Context) {
	if b.db == nil {
		return
	}
	cutoff := b.now().Add(-RetentionWindow).Unix()
	var deleted int64
	err := withRetry(ctx, func(ctx context.Context) error {
		res, err := b.db.ExecContext(ctx, `DELETE FROM notifications WHERE "when" < ?`, cutoff)
		if err != nil {
			return err
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		b.logger.Warn("clean notifications", "user", b.user, "error", err)
		return
	}
	metrics.RetentionDeleted.Add(float64(deleted))
	b.logger.Info("cleaned notifications", "user", b.user, "deleted", deleted)
}

// SaveSubscription upserts s, or deletes it when s.Wants is nil. Unless the
// result is an explicit subscription, stored notifications under s.Where
// are removed.
func (b *SQLiteBackend) SaveSubscription(ctx context.Context, s *model.Subscription) {
	if b.db == nil || s == nil {
		return
	}
	err := withRetry(ctx, func(ctx context.Context) error {
		return b.saveSubscription(ctx, *s)
	})
	if err != nil {
		b.logger.Warn("save subscription", "user", b.user, "where", s.Where, "error", err)
		return
	}

	if s.Wanted() {
		b.events.Publish(events.Subscribed{Where: s.Where, User: b.user})
	} else {
		b.events.Publish(events.Blacklisted{Where: s.Where, User: b.user})
	}
}

func (b *SQLiteBackend) saveSubscription(ctx context.Context, s model.Subscription) error {
	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if s.Wants == nil {
		_, err = tx.ExecContext(ctx, `DELETE FROM subscriptions WHERE "where" = ?`, s.Where)
	} else {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO subscriptions ("where", wants) VALUES (?, ?)
			 ON CONFLICT ("where") DO UPDATE SET wants = excluded.wants`,
			s.Where, boolToInt(*s.Wants),
		)
	}
	if err != nil {
		return fmt.Errorf("write subscription: %w", err)
	}

	if !s.Wanted() {
		// Prefix match without LIKE, which is case-insensitive and treats
		// % and _ in paths as wildcards.
		_, err = tx.ExecContext(ctx,
			`DELETE FROM notifications WHERE substr("where", 1, length(?)) = ?`,
			s.Where, s.Where,
		)
		if err != nil {
			return fmt.Errorf("remove notifications under %s: %w", s.Where, err)
		}
	}

	return tx.Commit()
}

type subscriptionRow struct {
	Where string `db:"where"`
	Wants bool   `db:"wants"`
}

func (r subscriptionRow) toSubscription() model.Subscription {
	return model.NewSubscription(r.Where, model.Bool(r.Wants))
}

// Subscription returns the subscription for exactly where, or nil.
func (b *SQLiteBackend) Subscription(ctx context.Context, where string) *model.Subscription {
	if b.db == nil {
		return nil
	}
	var r subscriptionRow
	err := b.db.GetContext(ctx, &r, `SELECT "where", wants FROM subscriptions WHERE "where" = ?`, where)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		b.logger.Warn("get subscription", "user", b.user, "where", where, "error", err)
		return nil
	}
	s := r.toSubscription()
	return &s
}

func (b *SQLiteBackend) Subscriptions(ctx context.Context) []model.Subscription {
	if b.db == nil {
		return nil
	}
	var rows []subscriptionRow
	if err := b.db.SelectContext(ctx, &rows, `SELECT "where", wants FROM subscriptions ORDER BY "where"`); err != nil {
		b.logger.Warn("list subscriptions", "user", b.user, "error", err)
		return nil
	}
	subs := make([]model.Subscription, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.toSubscription())
	}
	return subs
}

// uniqueActors drops empty and repeated actors, keeping first appearance.
func uniqueActors(who []string) []string {
	seen := make(map[string]struct{}, len(who))
	out := make([]string, 0, len(who))
	for _, w := range who {
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
