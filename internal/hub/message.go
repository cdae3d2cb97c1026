package hub

import "encoding/json"

// Event kinds shared by both directions of the wire protocol.
const (
	KindSystem  = "system"
	KindUsers   = "users"
	KindMessage = "message"
	KindTyping  = "typing"
	KindSignal  = "signal"
)

// MaxMessageBytes is the limit applied to chat message text before fan-out.
const MaxMessageBytes = 4000

// inboundEvent is the superset of fields a client may send. The kind decides
// which fields are read; anything else is ignored.
type inboundEvent struct {
	Type     string          `json:"type"`
	Text     string          `json:"text"`
	IsTyping bool            `json:"isTyping"`
	Signal   json.RawMessage `json:"signal"`
}

// SystemEvent announces a membership change together with the current roster.
type SystemEvent struct {
	Type  string   `json:"type"`
	Text  string   `json:"text"`
	Users []string `json:"users"`
}

// UsersEvent carries the current roster.
type UsersEvent struct {
	Type  string   `json:"type"`
	Users []string `json:"users"`
}

// MessageEvent is a relayed chat message.
type MessageEvent struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Username string `json:"username"`
	At       int64  `json:"at"` // epoch millis
}

// TypingEvent is a relayed typing indicator.
type TypingEvent struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

// SignalEvent relays an opaque call-negotiation payload. The payload is never
// inspected here; it only has to be valid JSON.
type SignalEvent struct {
	Type   string          `json:"type"`
	From   string          `json:"from"`
	Signal json.RawMessage `json:"signal"`
}
