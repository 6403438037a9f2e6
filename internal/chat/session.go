package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/soyeahso/slotchat/internal/domain"
	"github.com/soyeahso/slotchat/internal/envelope"
	"github.com/soyeahso/slotchat/internal/router"
	"github.com/soyeahso/slotchat/internal/transport"
)

// SessionState is the load state of a session.
type SessionState int

const (
	Loading SessionState = iota
	Ready
	Closed
)

func (s SessionState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

const updateBuffer = 64

// Session presents one thread: fetched history plus live messages.
type Session struct {
	surface  *Surface
	threadID string
	sub      router.Subscription

	mu       sync.Mutex
	state    SessionState
	messages []domain.Message
	seen     map[string]struct{}
	partial  bool
	updates  chan domain.Message
}

func newSession(s *Surface, threadID string) *Session {
	sess := &Session{
		surface:  s,
		threadID: threadID,
		state:    Loading,
		seen:     make(map[string]struct{}),
		updates:  make(chan domain.Message, updateBuffer),
	}
	sess.sub = s.hub.router.Subscribe(threadID, sess.receive)
	return sess
}

// ThreadID returns the thread this session presents.
func (s *Session) ThreadID() string { return s.threadID }

// State returns the session's load state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Partial reports whether history failed to load.
func (s *Session) Partial() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.partial
}

// Messages returns a copy of the conversation in display order.
func (s *Session) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Updates delivers messages appended after the session became ready. Slow
// readers miss notifications; Messages always has the full list. The channel
// is closed by Close.
func (s *Session) Updates() <-chan domain.Message { return s.updates }

// load fetches history and merges it with live messages that arrived while
// the request was in flight.
func (s *Session) load(ctx context.Context) error {
	hist, err := s.surface.hub.history.Fetch(ctx, s.threadID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		if err != nil {
			return &HistoryError{ThreadID: s.threadID, Err: err}
		}
		return nil
	}

	live := s.messages
	if err != nil {
		s.partial = true
		s.state = Ready
		for _, m := range live {
			s.notifyLocked(m)
		}
		s.surface.log.Warn().Err(err).Str("thread", s.threadID).Msg("history unavailable, showing live messages only")
		return &HistoryError{ThreadID: s.threadID, Err: err}
	}

	merged := make([]domain.Message, 0, len(hist)+len(live))
	seen := make(map[string]struct{}, len(hist)+len(live))
	for _, m := range hist {
		k := m.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		merged = append(merged, m)
	}
	for _, m := range live {
		k := m.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		merged = append(merged, m)
		s.notifyLocked(m)
	}

	s.messages = merged
	s.seen = seen
	s.state = Ready
	s.surface.log.Debug().Str("thread", s.threadID).Int("history", len(hist)).Int("live", len(live)).Msg("session ready")
	return nil
}

func (s *Session) receive(c envelope.Chat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		return
	}
	k := c.Message.Key()
	if _, dup := s.seen[k]; dup {
		return
	}
	s.seen[k] = struct{}{}
	s.messages = append(s.messages, c.Message)
	if s.state == Ready {
		s.notifyLocked(c.Message)
	}
}

func (s *Session) notifyLocked(m domain.Message) {
	select {
	case s.updates <- m:
	default:
	}
}

// Send transmits content to the thread and stores it through the history
// endpoint. Blank content fails with ErrEmptyContent. When the connection is
// not open it fails with *transport.NotConnectedError and nothing is sent or
// stored.
//
// The history endpoint decides the outcome. A failed store returns
// *PersistError even if the live envelope went out. A stored message whose
// live write failed is still shown locally and returned with *LiveError.
func (s *Session) Send(ctx context.Context, content string) (domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return domain.Message{}, ErrEmptyContent
	}
	if s.State() == Closed {
		return domain.Message{}, ErrSessionClosed
	}

	hub := s.surface.hub
	msg := domain.NewMessage(s.surface.id, content)
	env := envelope.NewChat(s.threadID, msg)

	liveErr := hub.transmit(env)
	var nce *transport.NotConnectedError
	var ee *envelope.EncodeError
	if errors.As(liveErr, &nce) || errors.As(liveErr, &ee) {
		return domain.Message{}, liveErr
	}
	if liveErr == nil {
		hub.router.Dispatch(env)
	}

	if err := hub.history.Persist(ctx, s.threadID, msg); err != nil {
		s.surface.log.Warn().Err(err).Str("thread", s.threadID).Msg("message not persisted")
		return msg, &PersistError{ThreadID: s.threadID, Err: err}
	}
	if liveErr != nil {
		s.surface.log.Warn().Err(liveErr).Str("thread", s.threadID).Msg("live delivery failed, message persisted")
		hub.router.Dispatch(env)
		return msg, &LiveError{ThreadID: s.threadID, Err: liveErr}
	}
	return msg, nil
}

// Close unsubscribes the session. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return
	}
	s.state = Closed
	close(s.updates)
	s.mu.Unlock()

	s.surface.hub.router.Unsubscribe(s.sub)
	s.surface.detach(s)
}
