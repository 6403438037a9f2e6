package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/soyeahso/slotchat/internal/domain"
	"github.com/soyeahso/slotchat/internal/envelope"
	"github.com/soyeahso/slotchat/internal/logging"
	"github.com/soyeahso/slotchat/internal/transport"
)

// fakeTransport is a synchronous in-memory Transport.
type fakeTransport struct {
	mu          sync.Mutex
	state       transport.State
	sent        [][]byte
	sendErr     error
	onMessage   func([]byte)
	observers   []func(transport.Status)
	connects    int
	disconnects int
	errs        chan error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{errs: make(chan error, 1)}
}

func (f *fakeTransport) Connect() {
	f.mu.Lock()
	f.connects++
	f.mu.Unlock()
	f.setState(transport.Connected)
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	f.disconnects++
	f.mu.Unlock()
	f.setState(transport.Disconnected)
}

func (f *fakeTransport) setState(st transport.State) {
	f.mu.Lock()
	f.state = st
	obs := append([]func(transport.Status){}, f.observers...)
	f.mu.Unlock()
	for _, fn := range obs {
		fn(transport.Status{State: st})
	}
}

func (f *fakeTransport) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != transport.Connected {
		return &transport.NotConnectedError{State: f.state}
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, append([]byte(nil), data...))
	return nil
}

func (f *fakeTransport) Status() transport.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return transport.Status{State: f.state}
}

func (f *fakeTransport) OnMessage(fn func([]byte)) {
	f.mu.Lock()
	f.onMessage = fn
	f.mu.Unlock()
}

func (f *fakeTransport) OnStateChange(fn func(transport.Status)) {
	f.mu.Lock()
	f.observers = append(f.observers, fn)
	f.mu.Unlock()
}

func (f *fakeTransport) Errors() <-chan error { return f.errs }

// deliver hands raw bytes to the hub as if they came off the wire.
func (f *fakeTransport) deliver(data []byte) {
	f.mu.Lock()
	fn := f.onMessage
	f.mu.Unlock()
	fn(data)
}

func (f *fakeTransport) sentFrames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.sent...)
}

// fakeHistory serves canned backlogs. When gate is set, Fetch waits for it.
type fakeHistory struct {
	mu         sync.Mutex
	threads    map[string][]domain.Message
	fetchErr   error
	persistErr error
	persisted  map[string][]domain.Message
	fetching   chan struct{}
	gate       chan struct{}
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{
		threads:   make(map[string][]domain.Message),
		persisted: make(map[string][]domain.Message),
	}
}

func (h *fakeHistory) Fetch(ctx context.Context, threadID string) ([]domain.Message, error) {
	h.mu.Lock()
	gate, fetching := h.gate, h.fetching
	h.mu.Unlock()
	if fetching != nil {
		close(fetching)
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fetchErr != nil {
		return nil, h.fetchErr
	}
	return append([]domain.Message(nil), h.threads[threadID]...), nil
}

func (h *fakeHistory) Persist(_ context.Context, threadID string, msg domain.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.persistErr != nil {
		return h.persistErr
	}
	h.persisted[threadID] = append(h.persisted[threadID], msg)
	return nil
}

func (h *fakeHistory) persistedFor(threadID string) []domain.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.Message(nil), h.persisted[threadID]...)
}

var (
	consumer  = domain.Identity{ID: "c1", Role: domain.RoleConsumer}
	publisher = domain.Identity{ID: "u2", Role: domain.RolePublisher}
	admin     = domain.Identity{ID: "a1", Role: domain.RoleAdmin}
	t0        = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

func msgAt(sender domain.Identity, content string, offset time.Duration) domain.Message {
	return domain.Message{
		Sender:     sender.ID,
		SenderRole: sender.Role,
		Content:    content,
		Timestamp:  t0.Add(offset),
	}
}

func wire(t *testing.T, threadID string, m domain.Message) []byte {
	t.Helper()
	data, err := envelope.Encode(envelope.NewChat(threadID, m))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return data
}

func testHub() (*Hub, *fakeTransport, *fakeHistory) {
	tr := newFakeTransport()
	hist := newFakeHistory()
	return NewHub(tr, hist, logging.New(nil, "silent")), tr, hist
}
