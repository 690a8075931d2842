package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/mirahq/mira/internal/domain"
	"github.com/mirahq/mira/internal/service"
	"github.com/mirahq/mira/internal/ws"
)

// WSHandler upgrades notification stream connections and registers them with
// the hub.
type WSHandler struct {
	auth     *service.AuthService
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler. Origin checking is delegated to the
// CORS layer in front of the router.
func NewWSHandler(auth *service.AuthService, hub *ws.Hub) *WSHandler {
	return &WSHandler{
		auth: auth,
		hub:  hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Serve authenticates the connection via the token query parameter (browser
// WebSocket clients cannot set an Authorization header), upgrades it and
// keeps it registered until the peer disconnects.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		WriteError(w, domain.ErrUnauthorized)
		return
	}

	userID, err := h.auth.ValidateToken(token)
	if err != nil {
		WriteError(w, domain.ErrUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		slog.Debug("ws upgrade failed", "user_id", userID, "error", err)
		return
	}

	h.hub.Register(userID, conn)
	defer func() {
		h.hub.Unregister(userID, conn)
		conn.Close()
	}()

	// The stream is push-only. Drain the read side so control frames are
	// processed and a closed peer is detected.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
