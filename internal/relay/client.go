package relay

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/soyeahso/slotchat/internal/logging"
)

const (
	sendQueueSize = 64
	pongWait      = 60 * time.Second
	pingInterval  = pongWait * 9 / 10
)

// Client is one connected WebSocket peer. Outbound frames go through a
// bounded queue drained by a single writer goroutine.
type Client struct {
	ID        string
	Remote    string
	Connected time.Time

	conn    *websocket.Conn
	limiter *rate.Limiter
	out     chan []byte
	done    chan struct{}
	once    sync.Once
}

// newClient wraps conn. A nil limiter admits every frame; a nil conn is
// accepted for tests.
func newClient(conn *websocket.Conn, remote string, limiter *rate.Limiter) *Client {
	return &Client{
		ID:        uuid.NewString(),
		Remote:    remote,
		Connected: time.Now(),
		conn:      conn,
		limiter:   limiter,
		out:       make(chan []byte, sendQueueSize),
		done:      make(chan struct{}),
	}
}

// Enqueue hands data to the writer without blocking. It reports false when
// the client is closed or has fallen sendQueueSize frames behind.
func (c *Client) Enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.out <- data:
		return true
	default:
		return false
	}
}

// Closed reports whether Close has been called.
func (c *Client) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Allow reports whether one more inbound frame fits the client's rate.
func (c *Client) Allow() bool {
	return c.limiter == nil || c.limiter.Allow()
}

func (c *Client) read() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

// startReading applies the frame limit and keepalive deadline. Each pong
// pushes the deadline forward.
func (c *Client) startReading() {
	c.conn.SetReadLimit(maxFrameBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// writePump owns all data writes to the socket until the client closes.
func (c *Client) writePump(log *logging.Logger) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case data := <-c.out:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("connId", c.ID).Msg("write failed")
				c.Close()
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close stops the writer, says goodbye and drops the connection. Safe to
// call more than once and from any goroutine.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		if c.conn == nil {
			return
		}
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "relay closing connection"),
			time.Now().Add(time.Second))
		c.conn.Close()
	})
}

// ClientRegistry tracks connected clients by ID.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	log     *logging.Logger
}

// NewClientRegistry creates an empty registry.
func NewClientRegistry(log *logging.Logger) *ClientRegistry {
	return &ClientRegistry{clients: make(map[string]*Client), log: log}
}

func (r *ClientRegistry) Add(c *Client) {
	r.mu.Lock()
	r.clients[c.ID] = c
	r.mu.Unlock()
	r.log.Info().Str("connId", c.ID).Str("remote", c.Remote).Msg("client connected")
}

// Remove forgets the client with id. Unknown ids are ignored.
func (r *ClientRegistry) Remove(id string) {
	r.mu.Lock()
	_, ok := r.clients[id]
	delete(r.clients, id)
	r.mu.Unlock()
	if ok {
		r.log.Info().Str("connId", id).Msg("client disconnected")
	}
}

func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Broadcast queues data for every client except from. It returns how many
// clients accepted the frame and the open clients whose queue was full.
func (r *ClientRegistry) Broadcast(from string, data []byte) (queued int, slow []*Client) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, c := range r.clients {
		if id == from {
			continue
		}
		switch {
		case c.Enqueue(data):
			queued++
		case !c.Closed():
			slow = append(slow, c)
		}
	}
	return queued, slow
}

// CloseAll closes and forgets every client.
func (r *ClientRegistry) CloseAll() {
	r.mu.Lock()
	all := make([]*Client, 0, len(r.clients))
	for id, c := range r.clients {
		all = append(all, c)
		delete(r.clients, id)
	}
	r.mu.Unlock()

	for _, c := range all {
		c.Close()
	}
}
