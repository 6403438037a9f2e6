package chat

import (
	"context"
	"sync"

	"github.com/soyeahso/slotchat/internal/domain"
	"github.com/soyeahso/slotchat/internal/envelope"
	"github.com/soyeahso/slotchat/internal/logging"
	"github.com/soyeahso/slotchat/internal/router"
	"github.com/soyeahso/slotchat/internal/unread"
)

// Surface is one observing context, such as the consumer's purchase list or
// the admin dashboard. It owns an unread tracker that lives and dies with it.
type Surface struct {
	hub     *Hub
	id      domain.Identity
	tracker *unread.Tracker
	log     *logging.Logger

	mu       sync.Mutex
	interest map[string]*interest
	watched  map[string]bool
	sessions map[*Session]struct{}
	closed   bool
}

// interest is the single unread-counting subscription a surface keeps per
// thread, shared by its watches and sessions.
type interest struct {
	sub  router.Subscription
	refs int
}

func newSurface(h *Hub, id domain.Identity) *Surface {
	return &Surface{
		hub:      h,
		id:       id,
		tracker:  unread.New(id.ID),
		log:      h.log.With("surface", id.String()),
		interest: make(map[string]*interest),
		watched:  make(map[string]bool),
		sessions: make(map[*Session]struct{}),
	}
}

// Identity returns the local user of this surface.
func (s *Surface) Identity() domain.Identity { return s.id }

// Watch counts unread messages for threads without opening sessions.
func (s *Surface) Watch(threadIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, id := range threadIDs {
		if id == "" || s.watched[id] {
			continue
		}
		s.watched[id] = true
		s.retainLocked(id)
	}
}

// Unwatch stops counting for threadID unless a session still holds it.
func (s *Surface) Unwatch(threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.watched[threadID] {
		return
	}
	delete(s.watched, threadID)
	s.releaseLocked(threadID)
}

// Open starts a session for threadID. When visible, the thread becomes the
// surface's active thread and its unread count is cleared.
//
// If the history fetch fails the session is still returned, together with a
// *HistoryError.
func (s *Surface) Open(ctx context.Context, threadID string, visible bool) (*Session, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSurfaceClosed
	}
	sess := newSession(s, threadID)
	s.sessions[sess] = struct{}{}
	s.retainLocked(threadID)
	s.mu.Unlock()

	if visible {
		s.tracker.SetActive(threadID)
	}

	if err := sess.load(ctx); err != nil {
		return sess, err
	}
	return sess, nil
}

// Focus makes threadID the active thread, clearing its unread count.
func (s *Surface) Focus(threadID string) {
	s.tracker.SetActive(threadID)
}

// Blur leaves the surface with no active thread.
func (s *Surface) Blur() {
	s.tracker.SetActive("")
}

// Active returns the active thread id, or "".
func (s *Surface) Active() string { return s.tracker.Active() }

// Unread returns the unread count for threadID.
func (s *Surface) Unread(threadID string) int { return s.tracker.Count(threadID) }

// UnreadCounts returns all non-zero unread counts.
func (s *Surface) UnreadCounts() map[string]int { return s.tracker.Counts() }

// TotalUnread returns the sum of unread counts.
func (s *Surface) TotalUnread() int { return s.tracker.Total() }

// Close disposes every session and watch. The unread state is discarded.
func (s *Surface) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sessions := make([]*Session, 0, len(s.sessions))
	for sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}

	s.mu.Lock()
	for id, in := range s.interest {
		s.hub.router.Unsubscribe(in.sub)
		delete(s.interest, id)
	}
	clear(s.watched)
	s.mu.Unlock()
	s.tracker.Reset()
}

func (s *Surface) retainLocked(threadID string) {
	if in, ok := s.interest[threadID]; ok {
		in.refs++
		return
	}
	sub := s.hub.router.Subscribe(threadID, func(c envelope.Chat) {
		s.tracker.RecordInbound(c.ThreadID, c.Message.Sender)
	})
	s.interest[threadID] = &interest{sub: sub, refs: 1}
}

func (s *Surface) releaseLocked(threadID string) {
	in, ok := s.interest[threadID]
	if !ok {
		return
	}
	in.refs--
	if in.refs > 0 {
		return
	}
	s.hub.router.Unsubscribe(in.sub)
	delete(s.interest, threadID)
}

// detach is called by a closing session. The active thread stays active
// while another session on this surface still presents it.
func (s *Surface) detach(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess]; !ok {
		return
	}
	delete(s.sessions, sess)
	s.releaseLocked(sess.threadID)

	for other := range s.sessions {
		if other.threadID == sess.threadID {
			return
		}
	}
	if s.tracker.Active() == sess.threadID {
		s.tracker.SetActive("")
	}
}
