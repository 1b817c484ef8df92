package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/whathappened/internal/auth"
	"github.com/dukerupert/whathappened/internal/feed"
	"github.com/dukerupert/whathappened/internal/model"
)

type SubscriptionHandler struct {
	feed   *feed.Service
	logger *slog.Logger
}

func NewSubscriptionHandler(f *feed.Service, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{feed: f, logger: logger}
}

type subscriptionRequest struct {
	Where string `json:"where"`
	Wants *bool  `json:"wants"`
}

func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	subs, err := h.feed.Subscriptions(r.Context(), auth.User(r.Context()))
	if err != nil {
		h.logger.Error("list subscriptions", "user", auth.User(r.Context()), "error", err)
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	if subs == nil {
		subs = []model.Subscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

func (h *SubscriptionHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	where := r.URL.Query().Get("where")
	if where == "" {
		writeError(w, http.StatusBadRequest, "where is required")
		return
	}
	sub, err := h.feed.Subscription(r.Context(), auth.User(r.Context()), where)
	if err != nil {
		h.logger.Error("get subscription", "user", auth.User(r.Context()), "where", where, "error", err)
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	if sub == nil {
		writeError(w, http.StatusNotFound, "no subscription")
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// Save upserts a subscription. A null or missing wants removes it.
func (h *SubscriptionHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Where) == "" {
		writeError(w, http.StatusBadRequest, "where is required")
		return
	}

	sub := model.NewSubscription(req.Where, req.Wants)
	if err := h.feed.SaveSubscription(r.Context(), auth.User(r.Context()), sub); err != nil {
		h.logger.Error("save subscription", "user", auth.User(r.Context()), "where", req.Where, "error", err)
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	writeJSON(w, http.StatusOK, sub)
}
