// Package ws is the client side of the relay connection: one
// websocket per session, framed as one JSON envelope per message.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait     = 5 * time.Second
	sendQueueSize = 32
)

// Channel is one bidirectional connection to the relay. Messages it
// sends and receives are delivered in order for the lifetime of the
// connection; a close is terminal, there is no reconnect.
type Channel struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool

	onMessage func([]byte)
	onClose   func()
}

// Dial connects to {base}/ws/{roomID}/{name}. base accepts http(s) or
// ws(s) schemes.
func Dial(ctx context.Context, base, roomID, name string) (*Channel, error) {
	u, err := wsURL(base, roomID, name)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("relay dial %s: %w", u, err)
	}
	log.Info().Str("module", "adapters.ws").Str("room", roomID).Str("name", name).Msg("connected")
	return &Channel{
		conn: conn,
		send: make(chan []byte, sendQueueSize),
	}, nil
}

func wsURL(base, roomID, name string) (string, error) {
	base = strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "ws://"), strings.HasPrefix(base, "wss://"):
	default:
		return "", fmt.Errorf("relay url %q: unsupported scheme", base)
	}
	return fmt.Sprintf("%s/ws/%s/%s", base, url.PathEscape(roomID), url.PathEscape(name)), nil
}

// Bind installs the inbound handlers and starts the pumps. onMessage
// is called from a single goroutine in arrival order; onClose fires
// exactly once when the connection dies.
func (c *Channel) Bind(onMessage func([]byte), onClose func()) {
	c.onMessage = onMessage
	c.onClose = onClose
	go c.writePump()
	go c.readPump()
}

// Send marshals and queues one envelope. Sending on a closed channel
// is a silent no-op; a full queue drops the frame with a warning.
// Callers must not rely on delivery confirmation.
func (c *Channel) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("envelope marshal: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	select {
	case c.send <- data:
	default:
		log.Warn().Str("module", "adapters.ws").Msg("send queue full, frame dropped")
	}
	return nil
}

func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()
	_ = c.conn.Close()
}

func (c *Channel) writePump() {
	for data := range c.send {
		if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			log.Error().Err(err).Str("module", "adapters.ws").Msg("writePump set deadline")
			return
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Error().Err(err).Str("module", "adapters.ws").Msg("writePump write error")
			return
		}
	}
}

func (c *Channel) readPump() {
	defer func() {
		c.Close()
		if c.onClose != nil {
			c.onClose()
		}
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			log.Info().Err(err).Str("module", "adapters.ws").Msg("readPump closing")
			return
		}
		if c.onMessage != nil {
			c.onMessage(data)
		}
	}
}
