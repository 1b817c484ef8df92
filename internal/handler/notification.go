package handler

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/dukerupert/whathappened/internal/auth"
	"github.com/dukerupert/whathappened/internal/feed"
	"github.com/dukerupert/whathappened/internal/model"
)

type NotificationHandler struct {
	feed   *feed.Service
	logger *slog.Logger
}

func NewNotificationHandler(f *feed.Service, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{feed: f, logger: logger}
}

// notificationView adds the display identifier and stable reference to a
// notification.
type notificationView struct {
	ID   string    `json:"id"`
	UUID uuid.UUID `json:"uuid"`
	model.Notification
}

type hotResponse struct {
	Notifications []notificationView `json:"notifications"`
	UnseenCount   int                `json:"unseen_count"`
}

func views(ns []model.Notification) []notificationView {
	out := make([]notificationView, 0, len(ns))
	for _, n := range ns {
		out = append(out, notificationView{ID: n.ID(), UUID: n.UUID(), Notification: n})
	}
	return out
}

func (h *NotificationHandler) storageError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error(op, "user", auth.User(r.Context()), "error", err)
	writeError(w, http.StatusServiceUnavailable, "storage unavailable")
}

func (h *NotificationHandler) Hot(w http.ResponseWriter, r *http.Request) {
	hot, err := h.feed.Hot(r.Context(), auth.User(r.Context()))
	if err != nil {
		h.storageError(w, r, "hot notifications", err)
		return
	}
	writeJSON(w, http.StatusOK, hotResponse{
		Notifications: views(hot.Notifications),
		UnseenCount:   hot.UnseenCount,
	})
}

func (h *NotificationHandler) All(w http.ResponseWriter, r *http.Request) {
	all, err := h.feed.All(r.Context(), auth.User(r.Context()))
	if err != nil {
		h.storageError(w, r, "all notifications", err)
		return
	}
	writeJSON(w, http.StatusOK, views(all))
}

func (h *NotificationHandler) Unseen(w http.ResponseWriter, r *http.Request) {
	unseen, err := h.feed.Unseen(r.Context(), auth.User(r.Context()))
	if err != nil {
		h.storageError(w, r, "unseen notifications", err)
		return
	}
	writeJSON(w, http.StatusOK, views(unseen))
}

// MarkSeen marks the notifications at ?path= as seen, or all of them when
// no path is given.
func (h *NotificationHandler) MarkSeen(w http.ResponseWriter, r *http.Request) {
	if err := h.feed.MarkSeen(r.Context(), auth.User(r.Context()), r.URL.Query().Get("path")); err != nil {
		h.storageError(w, r, "mark seen", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
