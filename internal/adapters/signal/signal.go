// Package signal is the relay's websocket face: it upgrades client
// connections, replays the room snapshot, and fans envelopes out
// through the hub.
package signal

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Rakamoosaka/kormek/internal/app"
	"github.com/Rakamoosaka/kormek/internal/config"
	"github.com/Rakamoosaka/kormek/internal/domain"
	"github.com/Rakamoosaka/kormek/internal/protocol"
)

var ErrBackpressure = errors.New("backpressure")

const sendQueueSize = 32

type Controller struct {
	Hub        *app.Hub
	limiter    *ChatRateLimiter
	readLimit  int64
	pingPeriod time.Duration
}

func NewController(hub *app.Hub, cfg *config.Config) *Controller {
	return &Controller{
		Hub:        hub,
		limiter:    NewChatRateLimiter(10, 10*time.Second),
		readLimit:  cfg.ReadLimit,
		pingPeriod: cfg.PingPeriod,
	}
}

type memberConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func (c *memberConn) TrySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- data:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *memberConn) Close() {
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

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle serves one client connection for its whole lifetime.
func (ctl *Controller) Handle(c *gin.Context) {
	roomID := c.Param("room_id")
	username := c.Param("username")
	if err := domain.ValidateUsername(username); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	log.Info().Str("module", "signal").Str("room", roomID).Str("user", username).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.readLimit > 0 {
		ws.SetReadLimit(ctl.readLimit)
	}

	conn := &memberConn{
		conn: ws,
		send: make(chan []byte, sendQueueSize),
	}

	init, err := ctl.Hub.Join(roomID, username, conn)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("room", roomID).Str("user", username).Msg("join rejected")
		_ = ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
			time.Now().Add(time.Second),
		)
		_ = ws.Close()
		return
	}

	go ctl.writePump(conn)

	// The joiner gets the snapshot; everyone else gets the roster.
	ctl.sendEnvelope(conn, init)
	ctl.broadcast(roomID, protocol.PeerEvent{
		Type:     protocol.KindPeerJoined,
		Username: username,
		Peers:    ctl.Hub.Roster(roomID),
	}, username)

	ctl.readPump(roomID, username, conn)
	ctl.disconnect(roomID, username)
}

func (ctl *Controller) disconnect(roomID, username string) {
	roster := ctl.Hub.Leave(roomID, username)
	if len(roster) == 0 {
		return
	}
	ctl.broadcast(roomID, protocol.PeerEvent{
		Type:     protocol.KindPeerLeft,
		Username: username,
		Peers:    roster,
	}, "")
}

func (ctl *Controller) broadcast(roomID string, v any, exclude string) {
	data, err := protocol.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("broadcast marshal")
		return
	}
	kicked := ctl.Hub.Broadcast(roomID, data, exclude)
	for _, name := range kicked {
		ctl.announceLeave(roomID, name)
	}
}

// announceLeave reports a member the hub already removed (kicked for
// backpressure) to the rest of the room.
func (ctl *Controller) announceLeave(roomID, username string) {
	roster := ctl.Hub.Roster(roomID)
	if len(roster) == 0 {
		return
	}
	ctl.broadcast(roomID, protocol.PeerEvent{
		Type:     protocol.KindPeerLeft,
		Username: username,
		Peers:    roster,
	}, "")
}

func (ctl *Controller) sendEnvelope(c *memberConn, v any) {
	data, err := protocol.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("envelope marshal")
		return
	}
	if err := c.TrySend(data); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("send envelope")
	}
}
