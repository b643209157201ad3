package gateway

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soyeahso/funnelbot/internal/logging"
)

// ErrClientClosed is returned when sending to a closed client.
var ErrClientClosed = errors.New("client connection closed")

const (
	clientSendBuffer = 16
	clientWriteWait  = 10 * time.Second
	clientPongWait   = 60 * time.Second
	clientPingPeriod = (clientPongWait * 9) / 10
)

// Client is a UI connected to /ws. Frames are queued and written by the
// client's own goroutine so a slow browser never stalls a broadcast.
type Client struct {
	ConnID      string
	Remote      string
	Socket      *websocket.Conn
	ConnectedAt time.Time

	send   chan Frame
	mu     sync.Mutex
	closed bool
	log    *logging.Logger
}

// NewClient creates a Client and starts its writer.
func NewClient(conn *websocket.Conn, remote string, log *logging.Logger) *Client {
	c := &Client{
		ConnID:      uuid.NewString(),
		Remote:      remote,
		Socket:      conn,
		ConnectedAt: time.Now(),
		send:        make(chan Frame, clientSendBuffer),
		log:         log,
	}
	go c.writePump()
	return c
}

// Send queues frame for delivery. A full queue drops the frame.
func (c *Client) Send(frame Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return errors.New("client send queue full")
	}
}

// SendEvent queues a named event with payload.
func (c *Client) SendEvent(event string, payload any, seq int64) error {
	f, err := NewEvent(event, payload, seq)
	if err != nil {
		return err
	}
	return c.Send(f)
}

// ReadLoop discards inbound frames and answers pings until the connection
// fails. UI clients only listen.
func (c *Client) ReadLoop() error {
	c.Socket.SetReadLimit(4096)
	c.Socket.SetReadDeadline(time.Now().Add(clientPongWait))
	c.Socket.SetPongHandler(func(string) error {
		return c.Socket.SetReadDeadline(time.Now().Add(clientPongWait))
	})
	for {
		if _, _, err := c.Socket.ReadMessage(); err != nil {
			return err
		}
	}
}

// Close closes the WebSocket connection. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.send)
	return nil
}

func (c *Client) writePump() {
	ticker := time.NewTicker(clientPingPeriod)
	defer func() {
		ticker.Stop()
		c.Socket.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.Socket.SetWriteDeadline(time.Now().Add(clientWriteWait))
			if !ok {
				c.Socket.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.Socket.WriteJSON(frame); err != nil {
				c.log.Debug().Err(err).Str("connId", c.ConnID).Msg("write failed")
				return
			}
		case <-ticker.C:
			c.Socket.SetWriteDeadline(time.Now().Add(clientWriteWait))
			if err := c.Socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ClientRegistry manages connected UI clients.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	log     *logging.Logger
}

// NewClientRegistry creates an empty client registry.
func NewClientRegistry(log *logging.Logger) *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]*Client),
		log:     log,
	}
}

// Add registers a connected client.
func (r *ClientRegistry) Add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ConnID] = c
	r.log.Info().Str("connId", c.ConnID).Str("remote", c.Remote).Msg("ui client connected")
}

// Remove unregisters a client by connection ID.
func (r *ClientRegistry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, connID)
	r.log.Info().Str("connId", connID).Msg("ui client disconnected")
}

// Count returns the number of connected clients.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Broadcast queues an event for every connected client.
func (r *ClientRegistry) Broadcast(event string, payload any, seq int64) {
	frame, err := NewEvent(event, payload, seq)
	if err != nil {
		r.log.Error().Err(err).Str("event", event).Msg("encoding broadcast")
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.clients {
		if err := c.Send(frame); err != nil {
			r.log.Warn().Err(err).Str("connId", c.ConnID).Msg("broadcast send failed")
		}
	}
}

// CloseAll closes all connected clients.
func (r *ClientRegistry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.clients {
		c.Close()
		delete(r.clients, id)
	}
}
