package notify

import (
	"context"
	"sync"
	"sync/atomic"
)

// Hub is an in-process registry of listeners. A listener registers for one
// job, or for every job with an empty job id, and reads messages from its
// subscription until it closes it.
type Hub struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscription is a listener's end of the hub.
type Subscription struct {
	hub     *Hub
	jobID   string
	c       chan Message
	once    sync.Once
	dropped atomic.Int64
}

// Register adds a listener with room for buffer pending messages.
func (h *Hub) Register(jobID string, buffer int) *Subscription {
	s := &Subscription{hub: h, jobID: jobID, c: make(chan Message, max(1, buffer))}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Notify never blocks. A message that does not fit a listener's buffer is
// dropped for that listener.
func (h *Hub) Notify(_ context.Context, msg Message) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		if s.jobID != "" && s.jobID != msg.JobID {
			continue
		}
		select {
		case s.c <- msg:
		default:
			s.dropped.Add(1)
		}
	}
	return nil
}

// Len returns the number of registered listeners.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// C returns the message channel. It is closed by Close.
func (s *Subscription) C() <-chan Message {
	return s.c
}

// Dropped returns how many messages did not fit the buffer.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Close unregisters the listener. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		s.hub.mu.Unlock()
		close(s.c)
	})
}
