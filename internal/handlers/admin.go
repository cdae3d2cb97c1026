package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/voxchat/voxchat/internal/hub"
)

// AdminStatsResponse represents the admin stats response.
type AdminStatsResponse struct {
	Rooms      []hub.RoomSummary `json:"rooms"`
	TotalRooms int               `json:"totalRooms"`
	TotalUsers int               `json:"totalUsers"`
}

// AdminStats returns a read-only snapshot of the registry. The endpoint is
// gated by a shared secret; with no key configured it rejects everything.
func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if h.cfg.AdminKey == "" ||
		subtle.ConstantTimeCompare([]byte(key), []byte(h.cfg.AdminKey)) != 1 {
		h.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	rooms := h.registry.Snapshot()
	totalUsers := 0
	for _, rm := range rooms {
		totalUsers += len(rm.Users)
	}

	h.JSON(w, http.StatusOK, AdminStatsResponse{
		Rooms:      rooms,
		TotalRooms: len(rooms),
		TotalUsers: totalUsers,
	})
}
