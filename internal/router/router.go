// Package router fans decoded envelopes out to per-thread subscribers.
package router

import (
	"slices"
	"sync"

	"github.com/soyeahso/slotchat/internal/envelope"
	"github.com/soyeahso/slotchat/internal/logging"
)

// Handler receives chat envelopes for one thread. Handlers run on the
// delivery path and must return quickly.
type Handler func(envelope.Chat)

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	threadID string
	id       uint64
}

// ThreadID returns the thread the subscription listens on.
func (s Subscription) ThreadID() string { return s.threadID }

type subscriber struct {
	id      uint64
	handler Handler
}

// Router maps thread ids to subscribers. Safe for concurrent use.
type Router struct {
	mu     sync.RWMutex
	subs   map[string][]subscriber
	nextID uint64
	log    *logging.Logger
}

// New creates an empty router.
func New(log *logging.Logger) *Router {
	return &Router{
		subs: make(map[string][]subscriber),
		log:  log.Sub("router"),
	}
}

// Subscribe registers handler for envelopes addressed to threadID.
// Several subscriptions may exist for the same thread.
func (r *Router) Subscribe(threadID string, handler Handler) Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.subs[threadID] = append(r.subs[threadID], subscriber{id: r.nextID, handler: handler})
	r.log.Debug().Str("thread", threadID).Uint64("sub", r.nextID).Msg("subscribed")
	return Subscription{threadID: threadID, id: r.nextID}
}

// Unsubscribe removes exactly one subscription. Unknown or already removed
// subscriptions are ignored.
func (r *Router) Unsubscribe(sub Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.subs[sub.threadID]
	i := slices.IndexFunc(subs, func(s subscriber) bool { return s.id == sub.id })
	if i < 0 {
		return
	}
	// Clone so a Dispatch holding the old slice is unaffected.
	subs = slices.Delete(slices.Clone(subs), i, i+1)
	if len(subs) == 0 {
		delete(r.subs, sub.threadID)
	} else {
		r.subs[sub.threadID] = subs
	}
}

// Dispatch delivers env to every subscriber of its thread in registration
// order. Envelopes of unknown kinds are logged and dropped.
func (r *Router) Dispatch(env envelope.Envelope) {
	switch e := env.(type) {
	case envelope.Chat:
		r.dispatchChat(e)
	case *envelope.Chat:
		if e != nil {
			r.dispatchChat(*e)
		}
	case envelope.Unknown:
		r.log.Debug().Str("type", e.Type).Int("bytes", len(e.Raw)).Msg("ignoring envelope of unknown kind")
	default:
		r.log.Warn().Msgf("ignoring unsupported envelope %T", env)
	}
}

func (r *Router) dispatchChat(c envelope.Chat) {
	r.mu.RLock()
	subs := r.subs[c.ThreadID]
	r.mu.RUnlock()

	if len(subs) == 0 {
		r.log.Trace().Str("thread", c.ThreadID).Msg("no subscribers")
		return
	}
	for _, s := range subs {
		s.handler(c)
	}
}

// Count returns the number of subscriptions for threadID.
func (r *Router) Count(threadID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[threadID])
}

// Threads returns the ids of threads with at least one subscription.
func (r *Router) Threads() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	threads := make([]string, 0, len(r.subs))
	for id := range r.subs {
		threads = append(threads, id)
	}
	slices.Sort(threads)
	return threads
}
