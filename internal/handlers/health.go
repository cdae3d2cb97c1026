package handlers

import (
	"net/http"
	"time"
)

const version = "0.1.0"

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Rooms       int    `json:"rooms"`
	Connections int    `json:"connections"`
	Timestamp   string `json:"timestamp"`
}

// Health handles the health check endpoint. Everything lives in process
// memory, so there are no dependencies to probe; the response carries the
// registry aggregates instead.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rooms, members := h.registry.Counts()

	h.JSON(w, http.StatusOK, HealthResponse{
		Status:      "healthy",
		Version:     version,
		Rooms:       rooms,
		Connections: members,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
}
