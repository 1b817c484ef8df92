package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/whathappened/internal/auth"
)

// HandleWebSocket returns an HTTP handler that upgrades an authenticated
// request to a WebSocket and streams the user's subscription events.
func HandleWebSocket(hub *Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := auth.User(r.Context())
		if user == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			// The bearer token authenticates the stream, not the origin.
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Warn("websocket accept", "user", user, "error", err)
			return
		}
		defer conn.CloseNow()

		logger.Debug("websocket connected", "user", user)
		NewClient(hub, user, conn).Run(r.Context())
		logger.Debug("websocket disconnected", "user", user)
	}
}
