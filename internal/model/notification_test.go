package model

import (
	"testing"
	"time"
)

func TestNewNotificationTruncatesToSeconds(t *testing.T) {
	when := time.Date(2024, 3, 1, 9, 30, 0, 750_000_000, time.UTC)
	n := NewNotification("modified", "/news/item", when, []string{"bob"}, "alice", "history", false, nil)

	if n.When.Nanosecond() != 0 {
		t.Errorf("when = %v, want whole seconds", n.When)
	}
	if n.WhenTimestamp() != when.Unix() {
		t.Errorf("timestamp = %d, want %d", n.WhenTimestamp(), when.Unix())
	}
}

func TestNotificationID(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	when := time.Date(2024, 3, 1, 10, 30, 0, 0, loc)
	n := NewNotification("Modified", "/news/item", when, nil, "", "", false, nil)

	want := "2024-03-01-09-30-00-modified-/news/item"
	if got := n.ID(); got != want {
		t.Errorf("ID = %q, want %q", got, want)
	}
}

func TestNotificationUUIDIsStable(t *testing.T) {
	when := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	a := NewNotification("modified", "/a", when, []string{"bob"}, "alice", "history", false, nil)
	b := NewNotification("modified", "/a", when, []string{"carol"}, "dave", "other", true, "x")
	c := NewNotification("modified", "/b", when, []string{"bob"}, "alice", "history", false, nil)

	if a.UUID() != b.UUID() {
		t.Error("expected equal identifiers to give equal UUIDs")
	}
	if a.UUID() == c.UUID() {
		t.Error("expected different locations to give different UUIDs")
	}
	if a.UUID().Version() != 5 {
		t.Errorf("version = %d, want 5", a.UUID().Version())
	}
}

func TestInfoJSON(t *testing.T) {
	n := Notification{Info: map[string]any{"b": 1, "a": "x"}}
	got, err := n.InfoJSON()
	if err != nil {
		t.Fatalf("info json: %v", err)
	}
	if got != `{"a":"x","b":1}` {
		t.Errorf("info = %s, want sorted keys", got)
	}

	n.Info = nil
	if got, _ := n.InfoJSON(); got != "null" {
		t.Errorf("nil info = %s, want null", got)
	}

	n.Info = make(chan int)
	if _, err := n.InfoJSON(); err == nil {
		t.Error("expected error for unserializable info")
	}
}
