package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common action codes produced by gatherers.
const (
	ActionCreated   = "created"
	ActionModified  = "modified"
	ActionPublished = "published"
	ActionCommented = "commented"
	ActionDeleted   = "deleted"
)

// refNamespace scopes the name-based UUIDs handed out as external references.
var refNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("whathappened:notification"))

// Notification is one kind of action at one location at one time. Who
// grows when later actions with the same what, where and info are merged
// into it while it is still unseen.
type Notification struct {
	What     string    `json:"what"`
	Where    string    `json:"where"`
	When     time.Time `json:"when"`
	Who      []string  `json:"who"`
	User     string    `json:"user,omitempty"`
	Gatherer string    `json:"gatherer"`
	Seen     bool      `json:"seen"`
	Info     any       `json:"info,omitempty"`
}

// NewNotification builds a notification truncated to second precision,
// the resolution it is stored with.
func NewNotification(what, where string, when time.Time, who []string, user, gatherer string, seen bool, info any) Notification {
	return Notification{
		What:     what,
		Where:    where,
		When:     when.Truncate(time.Second),
		Who:      who,
		User:     user,
		Gatherer: gatherer,
		Seen:     seen,
		Info:     info,
	}
}

// ID returns the display identifier, e.g. "2024-03-01-09-30-00-modified-/news/item".
func (n Notification) ID() string {
	return fmt.Sprintf("%s-%s-%s",
		n.When.UTC().Format("2006-01-02-15-04-05"),
		strings.ToLower(n.What),
		n.Where,
	)
}

// UUID returns a stable reference derived from ID, suitable for idempotent
// external links.
func (n Notification) UUID() uuid.UUID {
	return uuid.NewSHA1(refNamespace, []byte(n.ID()))
}

// WhenTimestamp is the epoch-seconds form of When used in storage keys.
func (n Notification) WhenTimestamp() int64 {
	return n.When.Unix()
}

// InfoJSON serializes Info. Two notifications carry the same info when
// their serialized forms are equal.
func (n Notification) InfoJSON() (string, error) {
	b, err := json.Marshal(n.Info)
	if err != nil {
		return "", fmt.Errorf("marshal info: %w", err)
	}
	return string(b), nil
}
