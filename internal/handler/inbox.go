package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/whathappened/internal/auth"
	"github.com/dukerupert/whathappened/internal/gatherer"
	"github.com/dukerupert/whathappened/internal/model"
	"github.com/dukerupert/whathappened/internal/store"
)

// InboxHandler accepts notifications pushed by external gatherers. They are
// stored on the user's next read.
type InboxHandler struct {
	inbox  *gatherer.Inbox
	logger *slog.Logger
}

func NewInboxHandler(inbox *gatherer.Inbox, logger *slog.Logger) *InboxHandler {
	return &InboxHandler{inbox: inbox, logger: logger}
}

type ingestItem struct {
	What     string     `json:"what"`
	Where    string     `json:"where"`
	When     *time.Time `json:"when"`
	Who      []string   `json:"who"`
	Gatherer string     `json:"gatherer"`
	Info     any        `json:"info"`
}

func (it ingestItem) validate() string {
	switch {
	case strings.TrimSpace(it.What) == "":
		return "what is required"
	case strings.TrimSpace(it.Where) == "":
		return "where is required"
	case len(it.Who) == 0:
		return "who must name at least one actor"
	}
	return ""
}

// Push queues a batch of notifications for the {user} path parameter.
func (h *InboxHandler) Push(w http.ResponseWriter, r *http.Request) {
	user := r.PathValue("user")
	if !store.ValidUser(user) {
		writeError(w, http.StatusBadRequest, "invalid user")
		return
	}
	if !auth.CanIngest(r.Context(), user) {
		writeError(w, http.StatusForbidden, "not allowed to push to this inbox")
		return
	}

	var items []ingestItem
	if err := decodeJSON(w, r, &items); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	for i, it := range items {
		if msg := it.validate(); msg != "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": msg, "index": i})
			return
		}
	}

	now := time.Now()
	for _, it := range items {
		when := now
		if it.When != nil {
			when = *it.When
		}
		h.inbox.Push(user, model.NewNotification(it.What, it.Where, when, it.Who, user, it.Gatherer, false, it.Info))
	}
	h.logger.Debug("inbox push", "user", user, "count", len(items), "by", auth.User(r.Context()))
	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": len(items)})
}
