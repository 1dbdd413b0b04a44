package websocket

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CheckOrigin allows connections from any origin by default; tighten via
	// SetCheckOrigin before serving in production.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades HTTP requests to live-observation websocket connections.
type Handler struct {
	hub  *Hub
	auth Authenticator
}

func NewHandler(hub *Hub, auth Authenticator) *Handler {
	return &Handler{hub: hub, auth: auth}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := h.auth.Authenticate(r)
	if err != nil {
		log.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("websocket authentication failed")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("remote_addr", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	clientID := uuid.New().String()
	client := NewClient(clientID, userID, h.hub, conn)

	log.Info().Str("client_id", clientID).Str("user_id", userID).Str("remote_addr", r.RemoteAddr).
		Msg("websocket client connected")

	h.hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}

// SetCheckOrigin overrides the upgrader's origin check, e.g. to restrict it
// to a configured CORS allowlist in production.
func SetCheckOrigin(f func(r *http.Request) bool) {
	upgrader.CheckOrigin = f
}
