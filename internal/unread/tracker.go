// Package unread counts inbound messages per thread for one observing surface.
package unread

import "sync"

// Tracker holds unread counts for one surface. Trackers are independent:
// the consumer view and the admin view each own one.
type Tracker struct {
	mu      sync.Mutex
	localID string
	active  string
	counts  map[string]int
}

// New creates a tracker for the local identity localID. Messages sent by
// localID never count as unread.
func New(localID string) *Tracker {
	return &Tracker{
		localID: localID,
		counts:  make(map[string]int),
	}
}

// RecordInbound registers one inbound message and reports whether the
// thread's count was incremented.
func (t *Tracker) RecordInbound(threadID, senderID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if threadID == "" || senderID == t.localID || threadID == t.active {
		return false
	}
	t.counts[threadID]++
	return true
}

// SetActive marks threadID as the one being viewed and zeroes its count.
// The previously active thread keeps its count. An empty id means no
// thread is active.
func (t *Tracker) SetActive(threadID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = threadID
	if threadID != "" {
		delete(t.counts, threadID)
	}
}

// Active returns the active thread id, or "".
func (t *Tracker) Active() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Count returns the unread count for threadID.
func (t *Tracker) Count(threadID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[threadID]
}

// Counts returns a copy of all non-zero counts.
func (t *Tracker) Counts() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}

// Total returns the sum of all counts.
func (t *Tracker) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, v := range t.counts {
		n += v
	}
	return n
}

// Reset clears every count and the active thread.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = ""
	clear(t.counts)
}
