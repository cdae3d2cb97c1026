package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/voxchat/voxchat/internal/hub"
)

const (
	maxRoomIDBytes   = 32
	maxUsernameBytes = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// Participants are anonymous and connect from anywhere.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and runs the connection's receive loop for
// its lifetime. Both query parameters are required; a request missing either
// is rejected before the upgrade, with no room side effects.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("roomId")
	username := r.URL.Query().Get("username")
	if roomID == "" || username == "" {
		h.Error(w, http.StatusBadRequest, "roomId and username are required")
		return
	}
	if len(roomID) > maxRoomIDBytes {
		roomID = roomID[:maxRoomIDBytes]
	}
	if len(username) > maxUsernameBytes {
		username = username[:maxUsernameBytes]
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	room := h.registry.GetOrCreate(roomID)
	c := hub.NewClient(conn, username, room, h.log)

	go c.WritePump()
	room.Join(c)
	c.ReadPump()
}
