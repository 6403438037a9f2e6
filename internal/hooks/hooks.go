// Package hooks lets users react to connection and message lifecycle events.
package hooks

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/soyeahso/slotchat/internal/logging"
)

// Event names a point in the chat or relay lifecycle.
type Event string

const (
	EventConnectionState Event = "connection_state"
	EventGivenUp         Event = "connection_given_up"
	EventMessageReceived Event = "message_received"
	EventMessageSending  Event = "message_sending"
	EventRelayStart      Event = "relay_start"
	EventRelayStop       Event = "relay_stop"
)

// Payload is what a handler sees. Command hooks receive it as JSON.
type Payload struct {
	Event Event          `json:"event"`
	At    time.Time      `json:"at"`
	Data  map[string]any `json:"data,omitempty"`
}

// Handler reacts to one event. Errors are logged and never stop the chain.
type Handler func(ctx context.Context, p Payload) error

type binding struct {
	id      uint64
	name    string
	handler Handler
}

// Manager fans events out to registered handlers. A nil *Manager accepts
// every call and does nothing.
type Manager struct {
	mu       sync.RWMutex
	bindings map[Event][]binding
	nextID   uint64
	pending  sync.WaitGroup
	closed   bool
	log      *logging.Logger
	now      func() time.Time
}

// NewManager creates an empty hook manager.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		bindings: make(map[Event][]binding),
		log:      log.Sub("hooks"),
		now:      time.Now,
	}
}

// On binds handler to event and returns a function that removes it again.
// Handlers for the same event run in the order they were bound.
func (m *Manager) On(event Event, name string, handler Handler) (off func()) {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.bindings[event] = append(m.bindings[event], binding{id: id, name: name, handler: handler})
	m.mu.Unlock()

	m.log.Debug().Str("event", string(event)).Str("handler", name).Msg("hook bound")
	return func() { m.remove(event, id) }
}

func (m *Manager) remove(event Event, id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindings[event] = slices.DeleteFunc(m.bindings[event], func(b binding) bool { return b.id == id })
}

// Bound returns how many handlers listen for event.
func (m *Manager) Bound(event Event) int {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bindings[event])
}

// Emit runs every handler for event on the calling goroutine.
func (m *Manager) Emit(ctx context.Context, event Event, data map[string]any) {
	bs := m.snapshot(event)
	if len(bs) == 0 {
		return
	}
	p := Payload{Event: event, At: m.now(), Data: data}
	for _, b := range bs {
		m.run(ctx, b, p)
	}
}

// Go runs the handlers for event in the background, still in binding order.
// After Close it does nothing.
func (m *Manager) Go(ctx context.Context, event Event, data map[string]any) {
	bs := m.snapshot(event)
	if len(bs) == 0 {
		return
	}
	p := Payload{Event: event, At: m.now(), Data: data}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.log.Debug().Str("event", string(event)).Msg("hook skipped after close")
		return
	}
	m.pending.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.pending.Done()
		for _, b := range bs {
			m.run(ctx, b, p)
		}
	}()
}

// Close stops background dispatch and blocks until handlers started by Go
// have returned or ctx ends. Emit keeps working. Calling Close again waits
// for the same handlers.
func (m *Manager) Close(ctx context.Context) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) run(ctx context.Context, b binding, p Payload) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Str("event", string(p.Event)).Str("handler", b.name).
				Str("panic", fmt.Sprint(r)).Msg("hook handler panicked")
		}
	}()
	if err := b.handler(ctx, p); err != nil {
		m.log.Warn().Err(err).Str("event", string(p.Event)).Str("handler", b.name).Msg("hook failed")
	}
}

func (m *Manager) snapshot(event Event) []binding {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.bindings[event])
}
