package realtime

import (
	"log/slog"
	"net/http"
	"time"

	ws "github.com/coder/websocket"

	"github.com/digkill/prelook/internal/auth"
)

// Handler upgrades an authenticated request and streams the account's studio events.
func Handler(hub *Hub, originPatterns []string, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, ok := auth.AccountFrom(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		// The server write timeout is sized for requests, not for a long-lived socket.
		_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: originPatterns})
		if err != nil {
			log.Warn("websocket accept failed", "email", account.Email, "err", err)
			return
		}
		NewClient(hub, conn, account.Email).Run(r.Context())
	}
}
