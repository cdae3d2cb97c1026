// Package voxchat provides a client for the voxchat room protocol.
package voxchat

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Event is one frame received from the server. Fields are populated
// depending on Type; Signal stays opaque.
type Event struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	Users    []string        `json:"users,omitempty"`
	Username string          `json:"username,omitempty"`
	From     string          `json:"from,omitempty"`
	IsTyping bool            `json:"isTyping,omitempty"`
	At       int64           `json:"at,omitempty"`
	Signal   json.RawMessage `json:"signal,omitempty"`
}

// Client is a connected room participant.
type Client struct {
	RoomID   string
	Username string

	conn *websocket.Conn
}

// Dial connects to a voxchat server and joins a room. baseURL may use
// http(s) or ws(s) scheme.
func Dial(baseURL, roomID, username string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if !strings.HasSuffix(u.Path, "/ws") {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	}
	q := u.Query()
	q.Set("roomId", roomID)
	q.Set("username", username)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.String(), err)
	}

	return &Client{RoomID: roomID, Username: username, conn: conn}, nil
}

// Next blocks until the next event arrives.
func (c *Client) Next() (*Event, error) {
	var ev Event
	if err := c.conn.ReadJSON(&ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// SendMessage sends a chat message to the room.
func (c *Client) SendMessage(text string) error {
	return c.conn.WriteJSON(map[string]any{"type": "message", "text": text})
}

// SendTyping sends a typing indicator.
func (c *Client) SendTyping(isTyping bool) error {
	return c.conn.WriteJSON(map[string]any{"type": "typing", "isTyping": isTyping})
}

// SendSignal relays an opaque call-negotiation payload to the other room
// members. payload must be JSON-serializable.
func (c *Client) SendSignal(payload any) error {
	return c.conn.WriteJSON(map[string]any{"type": "signal", "signal": payload})
}

// SendRaw sends an arbitrary frame. Useful for testing server behavior with
// malformed input.
func (c *Client) SendRaw(frame []byte) error {
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// Close closes the connection normally.
func (c *Client) Close() error {
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}
