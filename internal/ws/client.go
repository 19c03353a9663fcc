package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// sendBufferSize bounds the per-connection outbound queue. While a spin
	// is running the room pushes a frame every 10ms, so the buffer covers a
	// couple of seconds of stalled client.
	sendBufferSize = 256

	writeWait = 10 * time.Second

	maxMessageSize = 4096
)

// Client wraps one websocket connection: a uuid for the room's fan-out set
// (spectators have no player identity) and a buffered outbound queue drained
// by a single writer goroutine.
type Client struct {
	ID   string
	conn *websocket.Conn

	send      chan []byte
	closeOnce sync.Once
	done      chan struct{}
}

// NewClient wraps an upgraded connection. The caller must run WritePump.
func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		ID:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

// Send queues an event for delivery. It never blocks: if the client's queue
// is full the frame is dropped, so one slow connection cannot stall a room
// broadcast. Safe to call after Close.
func (c *Client) Send(event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("marshal event payload")
		return
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("marshal event envelope")
		return
	}

	select {
	case <-c.done:
	case c.send <- frame:
	default:
		log.Debug().Str("client", c.ID).Str("event", event).Msg("send queue full, dropping frame")
	}
}

// WritePump drains the send queue onto the socket until Close is called or a
// write fails.
func (c *Client) WritePump() {
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Debug().Err(err).Str("client", c.ID).Msg("write failed")
				c.Close()
				return
			}
		}
	}
}

// Close shuts the connection down. Idempotent.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}
