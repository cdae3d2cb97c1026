package hub

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/voxchat/voxchat/internal/metrics"
)

// Room is a named group of clients. All membership and activity state is
// guarded by mu; broadcasts snapshot the member set under a read lock and
// enqueue without ever blocking on a slow peer.
type Room struct {
	ID string

	mu           sync.RWMutex
	members      map[*Client]struct{}
	lastActivity time.Time
}

// NewRoom creates an empty room with the idle clock started now.
func NewRoom(id string) *Room {
	return &Room{
		ID:           id,
		members:      make(map[*Client]struct{}),
		lastActivity: time.Now(),
	}
}

// touch updates the activity timestamp. Callers must hold mu.
func (r *Room) touch() {
	r.lastActivity = time.Now()
}

// usernames returns the roster. Callers must hold mu.
func (r *Room) usernames() []string {
	names := make([]string, 0, len(r.members))
	for m := range r.members {
		names = append(names, m.Username)
	}
	sort.Strings(names)
	return names
}

// Join adds a client and announces it to everyone in the room, the new
// client included.
func (r *Room) Join(c *Client) {
	r.mu.Lock()
	r.members[c] = struct{}{}
	r.touch()
	users := r.usernames()
	r.broadcastLocked(SystemEvent{Type: KindSystem, Text: c.Username + " joined", Users: users})
	r.broadcastLocked(UsersEvent{Type: KindUsers, Users: users})
	r.mu.Unlock()

	metrics.ConnectionsActive.Inc()
}

// Leave removes a client and announces it to the remaining members. Removing
// a client that already left is a no-op.
func (r *Room) Leave(c *Client) {
	r.mu.Lock()
	if _, ok := r.members[c]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.members, c)
	r.touch()
	users := r.usernames()
	if len(r.members) == 0 {
		// Restart the idle clock at the moment the room emptied, not at
		// the last real activity.
		r.touch()
	}
	r.broadcastLocked(SystemEvent{Type: KindSystem, Text: c.Username + " left", Users: users})
	r.broadcastLocked(UsersEvent{Type: KindUsers, Users: users})
	r.mu.Unlock()

	metrics.ConnectionsActive.Dec()
}

// Broadcast delivers one event to every current member.
func (r *Room) Broadcast(v any) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.broadcastLocked(v)
}

// broadcastLocked serializes v once and hands it to every member's write
// pump. Callers must hold mu: enqueue never blocks, and fanning out inside
// the critical section keeps per-recipient delivery order consistent with
// the order the room processed the triggering events. Delivery is best
// effort: a member with a full or dead outbound queue has the frame dropped.
func (r *Room) broadcastLocked(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	for m := range r.members {
		m.enqueue(b)
	}
}

// relayExceptLocked is broadcastLocked minus the sender. Used for signaling
// payloads.
func (r *Room) relayExceptLocked(sender *Client, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	for m := range r.members {
		if m == sender {
			continue
		}
		m.enqueue(b)
	}
}

// Dispatch classifies one inbound frame from c and fans it out. Malformed
// frames and unknown kinds are dropped without feedback; the connection
// stays open. Any inbound frame counts as activity, parseable or not.
func (r *Room) Dispatch(c *Client, raw []byte) {
	var ev inboundEvent
	parseErr := json.Unmarshal(raw, &ev)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.touch()
	if parseErr != nil {
		return
	}

	switch ev.Type {
	case KindMessage:
		text := ev.Text
		if len(text) > MaxMessageBytes {
			text = text[:MaxMessageBytes]
		}
		metrics.EventsRelayed.WithLabelValues(KindMessage).Inc()
		r.broadcastLocked(MessageEvent{
			Type:     KindMessage,
			Text:     text,
			Username: c.Username,
			At:       time.Now().UnixMilli(),
		})
	case KindTyping:
		metrics.EventsRelayed.WithLabelValues(KindTyping).Inc()
		r.broadcastLocked(TypingEvent{Type: KindTyping, Username: c.Username, IsTyping: ev.IsTyping})
	case KindSignal:
		metrics.EventsRelayed.WithLabelValues(KindSignal).Inc()
		r.relayExceptLocked(c, SignalEvent{Type: KindSignal, From: c.Username, Signal: ev.Signal})
	default:
		// Unknown kinds are dropped.
	}
}

// Empty reports whether the room has no members.
func (r *Room) Empty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members) == 0
}

// Len returns the current member count.
func (r *Room) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// LastActivity returns the timestamp of the most recent activity.
func (r *Room) LastActivity() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastActivity
}

// Summary returns the room's state for the admin snapshot. Read-only; the
// idle clock is not touched.
func (r *Room) Summary() RoomSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RoomSummary{
		ID:           r.ID,
		Users:        r.usernames(),
		LastActivity: r.lastActivity.UnixMilli(),
	}
}
