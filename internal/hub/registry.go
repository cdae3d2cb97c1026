package hub

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxchat/voxchat/internal/metrics"
)

// RoomSummary is the read-only view of one room exposed to the admin
// endpoint.
type RoomSummary struct {
	ID           string   `json:"id"`
	Users        []string `json:"users"`
	LastActivity int64    `json:"lastActivity"` // epoch millis
}

// Registry is the process-wide table of live rooms. Insertion and removal
// are serialized by mu; every open connection belongs to exactly one room
// held here.
type Registry struct {
	log zerolog.Logger

	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewRegistry creates an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		log:   logger,
		rooms: make(map[string]*Room),
	}
}

// GetOrCreate returns the room for id, creating it on first use. Safe under
// concurrent calls for the same id; exactly one room is ever created.
func (g *Registry) GetOrCreate(id string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	rm := g.rooms[id]
	if rm == nil {
		rm = NewRoom(id)
		g.rooms[id] = rm
		metrics.RoomsActive.Set(float64(len(g.rooms)))
		g.log.Debug().Str("room", id).Msg("room created")
	}
	return rm
}

// Snapshot returns a summary of every live room. Read-only; no room's idle
// clock is touched.
func (g *Registry) Snapshot() []RoomSummary {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]RoomSummary, 0, len(g.rooms))
	for _, rm := range g.rooms {
		out = append(out, rm.Summary())
	}
	return out
}

// Counts returns the number of live rooms and the total member count across
// them.
func (g *Registry) Counts() (rooms, members int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, rm := range g.rooms {
		members += rm.Len()
	}
	return len(g.rooms), members
}

// Sweep removes every room that is empty and has been idle longer than ttl.
// A join racing the decision may see its room removed and recreated fresh;
// rooms hold no durable state, so nothing is lost.
func (g *Registry) Sweep(now time.Time, ttl time.Duration) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for id, rm := range g.rooms {
		if rm.Empty() && now.Sub(rm.LastActivity()) > ttl {
			delete(g.rooms, id)
			removed++
		}
	}
	if removed > 0 {
		metrics.RoomsSwept.Add(float64(removed))
		metrics.RoomsActive.Set(float64(len(g.rooms)))
		g.log.Info().Int("removed", removed).Int("remaining", len(g.rooms)).Msg("swept idle rooms")
	}
	return removed
}

// Run sweeps on a fixed interval until ctx is cancelled. Runs independently
// of connection traffic.
func (g *Registry) Run(ctx context.Context, ttl, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			g.Sweep(now, ttl)
		}
	}
}
