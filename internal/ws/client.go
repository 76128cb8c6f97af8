package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"ratehub/internal/fanout"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 50 * time.Second
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

// ErrSendUnavailable reports that a payload could not be enqueued because
// the connection is gone or its buffer is full. Stale payloads are dropped
// rather than queued behind a slow client.
var ErrSendUnavailable = errors.New("ws: connection unavailable or send buffer full")

// subscribeMessage is the only client-to-server message: it replaces the
// connection's whole subscription set.
type subscribeMessage struct {
	Subscribe []string `json:"subscribe"`
}

// Client adapts one WebSocket connection to the fanout registry.
type Client struct {
	id       string
	conn     *websocket.Conn
	registry *fanout.Registry
	send     chan []byte
	done     chan struct{}
	once     sync.Once
	logger   zerolog.Logger
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, registry *fanout.Registry, logger zerolog.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		id:       id,
		conn:     conn,
		registry: registry,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
		logger:   logger.With().Str("component", "ws_client").Str("conn_id", id).Logger(),
	}
}

// ID implements fanout.Conn.
func (c *Client) ID() string { return c.id }

// Send enqueues a payload without blocking the caller.
func (c *Client) Send(payload []byte) error {
	select {
	case <-c.done:
		return ErrSendUnavailable
	case c.send <- payload:
		return nil
	default:
		return ErrSendUnavailable
	}
}

// Start launches the read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		c.registry.Unregister(c.id)
		_ = c.conn.Close()
	})
}

func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug().Err(err).Msg("connection closed unexpectedly")
			}
			return
		}
		c.handleMessage(payload)
	}
}

// handleMessage applies a subscription update. Payloads without a
// "subscribe" array are ignored.
func (c *Client) handleMessage(payload []byte) {
	var msg subscribeMessage
	if err := json.Unmarshal(payload, &msg); err != nil || msg.Subscribe == nil {
		c.logger.Warn().Str("payload", string(payload)).Msg("invalid subscription message format")
		return
	}
	c.registry.SetSubscriptions(c.id, msg.Subscribe)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
