package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/soyeahso/slotchat/internal/config"
	"github.com/soyeahso/slotchat/internal/logging"
)

// fakeClock records timers and fires them on demand.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	mu      sync.Mutex
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{d: d, f: f}
	c.mu.Lock()
	c.timers = append(c.timers, t)
	c.mu.Unlock()
	return t
}

// pending returns timers that are neither stopped nor fired.
func (c *fakeClock) pending() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeTimer
	for _, t := range c.timers {
		t.mu.Lock()
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
		t.mu.Unlock()
	}
	return out
}

// fire runs the oldest pending timer synchronously.
func (c *fakeClock) fire() bool {
	p := c.pending()
	if len(p) == 0 {
		return false
	}
	t := p[0]
	t.mu.Lock()
	t.fired = true
	t.mu.Unlock()
	t.f()
	return true
}

// fakeConn is an in-memory connection. Frames pushed with deliver are
// returned by ReadMessage; drop simulates a network failure.
type fakeConn struct {
	inbound chan []byte
	done    chan struct{}
	once    sync.Once

	mu       sync.Mutex
	written  [][]byte
	writeErr error
	closed   bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		done:    make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.inbound:
		return data, nil
	case <-c.done:
		return nil, errors.New("connection reset")
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.written = append(c.written, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.drop()
	return nil
}

func (c *fakeConn) drop() {
	c.once.Do(func() { close(c.done) })
}

func (c *fakeConn) deliver(data string) {
	c.inbound <- []byte(data)
}

func (c *fakeConn) writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.written...)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeDialer succeeds or fails on demand and remembers every connection.
type fakeDialer struct {
	mu    sync.Mutex
	fail  error
	dials int
	conns []*fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.fail != nil {
		return nil, d.fail
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) setFail(err error) {
	d.mu.Lock()
	d.fail = err
	d.mu.Unlock()
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func testTransportConfig() config.TransportConfig {
	return config.Defaults().Transport
}

func testManager(cfg config.TransportConfig) (*Manager, *fakeDialer, *fakeClock) {
	d := &fakeDialer{}
	c := &fakeClock{}
	m := New(cfg, logging.New(nil, "silent"), WithDialer(d), WithClock(c))
	return m, d, c
}
