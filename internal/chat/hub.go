// Package chat combines the transport, router, unread tracking and history
// into conversation sessions.
package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/soyeahso/slotchat/internal/domain"
	"github.com/soyeahso/slotchat/internal/envelope"
	"github.com/soyeahso/slotchat/internal/hooks"
	"github.com/soyeahso/slotchat/internal/logging"
	"github.com/soyeahso/slotchat/internal/metrics"
	"github.com/soyeahso/slotchat/internal/router"
	"github.com/soyeahso/slotchat/internal/transport"
)

const hookDrainTimeout = 2 * time.Second

// Transport is the connection the hub drives. *transport.Manager implements it.
type Transport interface {
	Connect()
	Disconnect()
	Send(data []byte) error
	Status() transport.Status
	OnMessage(fn func([]byte))
	OnStateChange(fn func(transport.Status))
	Errors() <-chan error
}

// History is the REST collaborator holding thread backlogs.
// *history.Client implements it.
type History interface {
	Fetch(ctx context.Context, threadID string) ([]domain.Message, error)
	Persist(ctx context.Context, threadID string, msg domain.Message) error
}

// HubOption customizes a Hub.
type HubOption func(*Hub)

// WithHooks emits lifecycle events to mgr.
func WithHooks(mgr *hooks.Manager) HubOption {
	return func(h *Hub) { h.hooks = mgr }
}

// WithMetrics records envelope and send outcomes.
func WithMetrics(m *metrics.Metrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

// Hub owns the process-wide connection and router. Create one per process
// and hand it to every surface.
type Hub struct {
	transport Transport
	router    *router.Router
	history   History
	hooks     *hooks.Manager
	metrics   *metrics.Metrics
	log       *logging.Logger

	mu      sync.Mutex
	started bool
}

// NewHub wires a hub around t. Nothing connects until Start.
func NewHub(t Transport, hist History, log *logging.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		transport: t,
		router:    router.New(log),
		history:   hist,
		log:       log.Sub("chat"),
	}
	for _, opt := range opts {
		opt(h)
	}
	t.OnMessage(h.handleFrame)
	t.OnStateChange(h.handleState)
	return h
}

// Start connects the transport. Calling it again is a no-op.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return
	}
	h.started = true
	h.transport.Connect()
}

// Reconnect asks the transport to connect now, restarting the backoff
// sequence. Used to recover from GivenUp.
func (h *Hub) Reconnect() {
	h.transport.Connect()
}

// Close disconnects the transport and gives hooks still running a moment
// to finish. Background hooks stay off after Close.
func (h *Hub) Close() {
	h.mu.Lock()
	h.started = false
	h.mu.Unlock()
	h.transport.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), hookDrainTimeout)
	defer cancel()
	if err := h.hooks.Close(ctx); err != nil {
		h.log.Warn().Msg("hooks still running at close")
	}
}

// Status reports the connection state.
func (h *Hub) Status() transport.Status { return h.transport.Status() }

// OnStateChange registers an observer for connection state transitions.
func (h *Hub) OnStateChange(fn func(transport.Status)) { h.transport.OnStateChange(fn) }

// Errors returns terminal connection errors such as transport.ErrGivenUp.
func (h *Hub) Errors() <-chan error { return h.transport.Errors() }

// Router exposes the thread router.
func (h *Hub) Router() *router.Router { return h.router }

// NewSurface creates an observing surface for id with its own unread state.
func (h *Hub) NewSurface(id domain.Identity) *Surface {
	return newSurface(h, id)
}

// Publish transmits a chat envelope and, once it is on the wire, delivers it
// to local subscribers. The server does not echo envelopes back to their
// sender, so other surfaces on this hub learn about it here.
func (h *Hub) Publish(env envelope.Chat) error {
	if err := h.transmit(env); err != nil {
		return err
	}
	h.router.Dispatch(env)
	return nil
}

// transmit writes env to the connection without local delivery. The
// message_sending hook fires only for envelopes that reach the write.
func (h *Hub) transmit(env envelope.Chat) error {
	data, err := envelope.Encode(env)
	if err != nil {
		return err
	}

	if st := h.transport.Status(); st.State != transport.Connected {
		h.metrics.ObserveSend(metrics.ResultRejected)
		return &transport.NotConnectedError{State: st.State}
	}
	h.hooks.Go(context.Background(), hooks.EventMessageSending, messageData(env))

	if err := h.transport.Send(data); err != nil {
		var nce *transport.NotConnectedError
		if errors.As(err, &nce) {
			h.metrics.ObserveSend(metrics.ResultRejected)
		} else {
			h.metrics.ObserveSend(metrics.ResultError)
		}
		return err
	}
	h.metrics.ObserveSend(metrics.ResultOK)
	return nil
}

func (h *Hub) handleFrame(data []byte) {
	env, err := envelope.Decode(data)
	if err != nil {
		var de *envelope.DecodeError
		reason := "unknown"
		if errors.As(err, &de) {
			reason = de.Reason
		}
		h.log.Warn().Err(err).Str("reason", reason).Int("bytes", len(data)).Msg("dropping malformed envelope")
		h.metrics.ObserveEnvelope(metrics.ResultMalformed)
		return
	}

	switch e := env.(type) {
	case envelope.Chat:
		h.metrics.ObserveEnvelope(metrics.ResultOK)
		h.log.Debug().Str("thread", e.ThreadID).Str("sender", e.Message.Sender).Msg("envelope received")
		h.hooks.Go(context.Background(), hooks.EventMessageReceived, messageData(e))
	case envelope.Unknown:
		h.metrics.ObserveEnvelope(metrics.ResultIgnored)
	}
	h.router.Dispatch(env)
}

func (h *Hub) handleState(st transport.Status) {
	ev := h.log.Info().Str("state", st.State.String())
	if st.State == transport.Reconnecting {
		ev = ev.Dur("delay", st.Delay).Int("attempt", st.Attempt)
	}
	ev.Msg("connection state")

	data := map[string]any{
		"state":   st.State.String(),
		"delayMs": st.Delay.Milliseconds(),
		"attempt": st.Attempt,
	}
	if st.LastError != nil {
		data["error"] = st.LastError.Error()
	}
	h.hooks.Go(context.Background(), hooks.EventConnectionState, data)
	if st.State == transport.GivenUp {
		h.hooks.Go(context.Background(), hooks.EventGivenUp, data)
	}
}

func messageData(c envelope.Chat) map[string]any {
	return map[string]any{
		"thread":     c.ThreadID,
		"sender":     c.Message.Sender,
		"senderRole": string(c.Message.SenderRole),
		"content":    c.Message.Content,
		"timestamp":  c.Message.Timestamp.UTC().Format(domain.TimestampLayout),
	}
}
