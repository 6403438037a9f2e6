package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is one open bidirectional connection.
type Conn interface {
	// ReadMessage blocks until the next inbound frame or a read error.
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WSDialer dials WebSocket endpoints with gorilla/websocket.
type WSDialer struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// IdleTimeout bounds the silence between inbound frames. Server pings
	// count, so a live relay keeps the connection open. Zero disables it.
	IdleTimeout time.Duration
	ReadLimit   int64
	Header           http.Header
}

// Dial opens a WebSocket connection to url.
func (d *WSDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
	}
	c, resp, err := dialer.DialContext(ctx, url, d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	if d.ReadLimit > 0 {
		c.SetReadLimit(d.ReadLimit)
	}

	wc := &wsConn{conn: c, writeTimeout: d.WriteTimeout, idle: d.IdleTimeout}
	if err := wc.extend(); err != nil {
		c.Close()
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c.SetPingHandler(func(appData string) error {
		if err := wc.extend(); err != nil {
			return err
		}
		err := c.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})
	return wc, nil
}

// wsConn serializes writes; gorilla allows one concurrent writer.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	idle         time.Duration
	mu           sync.Mutex
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return data, c.extend()
}

// extend pushes the read deadline idle into the future.
func (c *wsConn) extend() error {
	if c.idle <= 0 {
		return nil
	}
	return c.conn.SetReadDeadline(time.Now().Add(c.idle))
}

func (c *wsConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.mu.Unlock()
	return c.conn.Close()
}
