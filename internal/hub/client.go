package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum frame size allowed from a peer. 64 KB leaves plenty of
	// headroom for WebRTC SDP payloads.
	maxFrameSize = 64 * 1024

	// Outbound queue depth per client.
	sendBuffer = 256
)

// Client wraps a single websocket connection for the lifetime of one
// participant in one room.
type Client struct {
	ID       uuid.UUID
	Username string

	room *Room
	conn *websocket.Conn
	log  zerolog.Logger

	send      chan []byte
	leaveOnce sync.Once
}

// NewClient wraps conn for a participant in room.
func NewClient(conn *websocket.Conn, username string, room *Room, logger zerolog.Logger) *Client {
	id := uuid.New()
	return &Client{
		ID:       id,
		Username: username,
		room:     room,
		conn:     conn,
		log: logger.With().
			Str("conn_id", id.String()).
			Str("room", room.ID).
			Str("username", username).
			Logger(),
		send: make(chan []byte, sendBuffer),
	}
}

// enqueue hands a frame to the write pump without blocking. A full queue
// means a slow or dead peer; the frame is dropped.
func (c *Client) enqueue(b []byte) {
	select {
	case c.send <- b:
	default:
	}
}

// leave removes the client from its room exactly once, no matter how many
// close paths fire.
func (c *Client) leave() {
	c.leaveOnce.Do(func() {
		c.room.Leave(c)
		close(c.send)
	})
}

// ReadPump reads frames from the connection and dispatches them until the
// transport closes, then triggers the single leave.
//
// The caller must ensure ReadPump is the only reader on the connection.
func (c *Client) ReadPump() {
	defer func() {
		c.leave()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Debug().Err(err).Msg("websocket read failed")
			}
			return
		}
		c.room.Dispatch(c, raw)
	}
}

// WritePump writes queued frames and periodic pings to the connection. It
// exits when the send queue closes or a write fails.
//
// The caller must ensure WritePump is the only writer on the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case b, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
