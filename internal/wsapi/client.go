// Package wsapi is the gorilla/websocket transport adapter over
// internal/events.Hub: it owns the duplex connection, translates an
// upgraded HTTP request into an events.Subscriber, and replays a recent
// history snapshot before handing the connection off to the Hub's
// steady-state fan-out (spec.md §4.9/§6).
package wsapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/runforge/runforge/internal/events"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 32
)

// upgrader performs the HTTP to WebSocket protocol upgrade. CheckOrigin
// always returns true — origin enforcement belongs to the reverse proxy
// fronting this server in production.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client represents a single connected WebSocket peer subscribed to one
// Hub topic. It owns two goroutines: readPump detects disconnection and
// answers pings; writePump serializes outgoing Envelopes onto the wire.
type Client struct {
	hub    *events.Hub
	sub    *events.Subscriber
	conn   *websocket.Conn
	logger *zap.Logger
}

// newClient upgrades the connection and returns a Client bound to a single
// topic. Replay frames, if any, should be sent on sub.Send before Run is
// called so they are delivered ahead of any live fan-out.
func newClient(hub *events.Hub, w http.ResponseWriter, r *http.Request, topic string, logger *zap.Logger) (*Client, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	sub := events.NewSubscriber(r.RemoteAddr, []string{topic}, sendBufferSize)
	return &Client{
		hub:    hub,
		sub:    sub,
		conn:   conn,
		logger: logger.With(zap.String("remote_addr", r.RemoteAddr), zap.String("topic", topic)),
	}, nil
}

// Run registers the client with the hub and blocks until the connection
// closes, running the write pump on a second goroutine.
func (c *Client) Run() {
	c.hub.Register(c.sub)
	go c.writePump()
	c.readPump()
}

// readPump reads incoming frames purely to detect disconnection and keep
// the read deadline alive via pong frames — this protocol is server-push
// only, so any application payload from the client is discarded.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c.sub)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Warn("ws: failed to set read deadline", zap.Error(err))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived,
			) {
				c.logger.Warn("ws: unexpected close", zap.Error(err))
			}
			return
		}
	}
}

// writePump is the only goroutine allowed to write to conn — gorilla's
// connections are not safe for concurrent writers.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.sub.Send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("ws: failed to set write deadline", zap.Error(err))
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env.Payload); err != nil {
				c.logger.Warn("ws: write error", zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("ws: failed to set write deadline", zap.Error(err))
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Warn("ws: ping error", zap.Error(err))
				return
			}
		}
	}
}
