package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/whathappened/internal/retention"
)

type AdminHandler struct {
	stores retention.Stores
	logger *slog.Logger
}

func NewAdminHandler(stores retention.Stores, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{stores: stores, logger: logger}
}

// RunRetention cleans every user store immediately.
func (h *AdminHandler) RunRetention(w http.ResponseWriter, r *http.Request) {
	n, err := retention.RunOnce(r.Context(), h.stores, h.logger)
	if err != nil {
		h.logger.Error("retention pass", "error", err)
		writeError(w, http.StatusInternalServerError, "retention failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"stores": n})
}
