// Package transport owns the single realtime connection and its reconnect
// state machine.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/soyeahso/slotchat/internal/config"
	"github.com/soyeahso/slotchat/internal/logging"
	"github.com/soyeahso/slotchat/internal/metrics"
)

// Option customizes a Manager.
type Option func(*Manager)

// WithDialer replaces the WebSocket dialer.
func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dialer = d }
}

// WithClock replaces the timer source used for reconnect delays.
func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithMetrics records state changes and reconnects.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// Manager keeps one connection alive with exponential backoff.
//
// Inbound frames are delivered one at a time, in receipt order, to the
// handler set with OnMessage. State observers run in registration order
// after every transition. Neither may call Connect or Disconnect
// synchronously.
type Manager struct {
	url     string
	giveUp  bool
	dialer  Dialer
	clock   Clock
	metrics *metrics.Metrics
	log     *logging.Logger

	// notifyMu orders transitions with their notifications.
	notifyMu sync.Mutex

	mu         sync.Mutex
	state      State
	backoff    *Backoff
	delay      time.Duration
	lastErr    error
	conn       Conn
	gen        uint64
	timer      Timer
	cancelDial context.CancelFunc
	onMessage  func([]byte)
	observers  []func(Status)

	// deliverMu is held while a frame is handed to onMessage.
	deliverMu sync.Mutex

	errs chan error
}

// New creates a Manager in the Disconnected state. Nothing is dialed until
// Connect.
func New(cfg config.TransportConfig, log *logging.Logger, opts ...Option) *Manager {
	dialer := &WSDialer{
		HandshakeTimeout: cfg.HandshakeTimeout(),
		WriteTimeout:     cfg.WriteTimeout(),
		IdleTimeout:      cfg.IdleTimeout(),
		ReadLimit:        cfg.MaxMessageBytes,
	}
	if cfg.Token != "" {
		dialer.Header = http.Header{"Authorization": []string{"Bearer " + cfg.Token}}
	}
	m := &Manager{
		url:     cfg.URL,
		giveUp:  cfg.Backoff.GiveUpEnabled(),
		dialer:  dialer,
		clock:   realClock{},
		log:     log.Sub("transport"),
		state:   Disconnected,
		backoff: NewBackoff(cfg.Backoff),
		errs:    make(chan error, 8),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnMessage sets the inbound frame handler.
func (m *Manager) OnMessage(fn func([]byte)) {
	m.mu.Lock()
	m.onMessage = fn
	m.mu.Unlock()
}

// OnStateChange registers an observer for state transitions.
func (m *Manager) OnStateChange(fn func(Status)) {
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

// Errors returns user-facing failures such as ErrGivenUp. The channel is
// buffered; errors are dropped when nobody reads it.
func (m *Manager) Errors() <-chan error { return m.errs }

// Status returns the current snapshot.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

func (m *Manager) statusLocked() Status {
	return Status{
		State:     m.state,
		Delay:     m.delay,
		Attempt:   m.backoff.Attempt(),
		LastError: m.lastErr,
	}
}

// Connect starts connecting. It returns immediately; progress is reported
// through state observers. It is a no-op while Connecting or Connected.
// A pending reconnect is cancelled and dialed now; the delay sequence
// restarts from its initial value.
func (m *Manager) Connect() {
	m.update(func() bool {
		switch m.state {
		case Connecting, Connected:
			return false
		case Reconnecting:
			m.stopTimerLocked()
		}
		m.backoff.Reset()
		m.startDialLocked()
		return true
	})
}

// Disconnect closes the connection and cancels any pending reconnect.
// When it returns, no further frame is delivered and no reconnect fires.
func (m *Manager) Disconnect() {
	var conn Conn
	m.update(func() bool {
		m.gen++
		m.stopTimerLocked()
		if m.cancelDial != nil {
			m.cancelDial()
			m.cancelDial = nil
		}
		conn = m.conn
		m.conn = nil
		m.backoff.Reset()
		m.delay = 0
		if m.state == Disconnected {
			return false
		}
		m.state = Disconnected
		return true
	})
	if conn != nil {
		_ = conn.Close()
	}
	// Wait out a delivery already in progress.
	m.deliverMu.Lock()
	m.deliverMu.Unlock()
	m.log.Info().Msg("disconnected")
}

// Send writes one frame. It fails with *NotConnectedError unless Connected
// and never buffers. A write failure is returned and also starts the
// reconnect path.
func (m *Manager) Send(data []byte) error {
	m.mu.Lock()
	if m.state != Connected || m.conn == nil {
		st := m.state
		m.mu.Unlock()
		return &NotConnectedError{State: st}
	}
	conn, gen := m.conn, m.gen
	m.mu.Unlock()

	if err := conn.WriteMessage(data); err != nil {
		m.handleError(gen, fmt.Errorf("write: %w", err))
		return fmt.Errorf("transport: send: %w", err)
	}
	return nil
}

// update applies fn under the state lock and, when it reports a change,
// notifies observers with the resulting status.
func (m *Manager) update(fn func() bool) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	changed := fn()
	st := m.statusLocked()
	observers := slices.Clone(m.observers)
	m.mu.Unlock()

	if !changed {
		return
	}
	m.metrics.SetConnectionState(int(st.State))
	for _, obs := range observers {
		obs(st)
	}
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) startDialLocked() {
	m.state = Connecting
	m.delay = 0
	m.gen++
	gen := m.gen

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelDial = cancel
	m.log.Debug().Str("url", m.url).Uint64("gen", gen).Msg("dialing")
	go m.dial(ctx, gen)
}

func (m *Manager) dial(ctx context.Context, gen uint64) {
	conn, err := m.dialer.Dial(ctx, m.url)
	if err != nil {
		m.handleError(gen, err)
		return
	}
	m.handleOpen(gen, conn)
}

func (m *Manager) handleOpen(gen uint64, conn Conn) {
	stale := false
	m.update(func() bool {
		if gen != m.gen || m.state != Connecting {
			stale = true
			return false
		}
		if m.cancelDial != nil {
			m.cancelDial()
			m.cancelDial = nil
		}
		m.conn = conn
		m.state = Connected
		m.lastErr = nil
		m.backoff.Reset()
		go m.readLoop(gen, conn)
		return true
	})
	if stale {
		_ = conn.Close()
		return
	}
	m.log.Info().Str("url", m.url).Msg("connected")
}

func (m *Manager) readLoop(gen uint64, conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			m.handleClose(gen, err)
			return
		}
		m.handleMessage(gen, data)
	}
}

func (m *Manager) handleMessage(gen uint64, data []byte) {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	m.mu.Lock()
	current := gen == m.gen && m.state == Connected
	handler := m.onMessage
	m.mu.Unlock()

	if !current || handler == nil {
		return
	}
	handler(data)
}

func (m *Manager) handleClose(gen uint64, err error) {
	m.fail(gen, fmt.Errorf("connection closed: %w", err))
}

func (m *Manager) handleError(gen uint64, err error) {
	m.fail(gen, err)
}

// fail moves a live or pending connection of generation gen into the
// reconnect path. Failures from earlier generations are ignored.
func (m *Manager) fail(gen uint64, cause error) {
	var (
		conn    Conn
		givenUp bool
		delay   time.Duration
		attempt int
		stale   bool
	)
	m.update(func() bool {
		if gen != m.gen || (m.state != Connecting && m.state != Connected) {
			stale = true
			return false
		}
		conn = m.conn
		m.conn = nil
		m.cancelDial = nil
		m.gen++
		m.lastErr = cause

		if m.giveUp && m.backoff.Capped() {
			m.state = GivenUp
			m.delay = 0
			givenUp = true
			return true
		}

		delay = m.backoff.Next()
		attempt = m.backoff.Attempt()
		m.state = Reconnecting
		m.delay = delay
		next := m.gen
		m.timer = m.clock.AfterFunc(delay, func() { m.retry(next) })
		return true
	})
	if stale {
		return
	}
	if conn != nil {
		_ = conn.Close()
	}

	if givenUp {
		m.log.Error().Err(cause).Msg("gave up reconnecting")
		select {
		case m.errs <- fmt.Errorf("%w: %w", ErrGivenUp, cause):
		default:
		}
		return
	}
	m.metrics.IncReconnect()
	m.log.Warn().Err(cause).Dur("delay", delay).Int("attempt", attempt).Msg("connection lost, reconnecting")
}

func (m *Manager) retry(gen uint64) {
	m.update(func() bool {
		if gen != m.gen || m.state != Reconnecting {
			return false
		}
		m.timer = nil
		m.startDialLocked()
		return true
	})
}
