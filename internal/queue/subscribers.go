package queue

import (
	"slices"
	"sync"

	"github.com/osmike/pacer/internal/domain"
)

// Subscription is the handle of a persistent subscriber. Identity is by pointer.
type Subscription struct {
	fn domain.SubscriberFn
}

// SubscriberSet is an insertion-ordered set of subscriptions, safe for
// concurrent Add/Remove while another goroutine iterates a snapshot.
type SubscriberSet struct {
	mu    sync.Mutex
	order []*Subscription
	index map[*Subscription]int
}

// NewSubscriberSet creates an empty set.
func NewSubscriberSet() *SubscriberSet {
	return &SubscriberSet{index: make(map[*Subscription]int)}
}

// Add registers fn and returns its handle. Nil functions return nil.
func (s *SubscriberSet) Add(fn domain.SubscriberFn) *Subscription {
	if fn == nil {
		return nil
	}
	sub := &Subscription{fn: fn}
	s.mu.Lock()
	s.index[sub] = len(s.order)
	s.order = append(s.order, sub)
	s.mu.Unlock()
	return sub
}

// Remove unregisters sub and reports whether it was present.
// A snapshot taken before the call still contains sub.
func (s *SubscriberSet) Remove(sub *Subscription) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[sub]
	if !ok {
		return false
	}
	delete(s.index, sub)
	s.order = slices.Delete(s.order, i, i+1)
	for j := i; j < len(s.order); j++ {
		s.index[s.order[j]] = j
	}
	return true
}

// Contains reports whether sub is registered.
func (s *SubscriberSet) Contains(sub *Subscription) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[sub]
	return ok
}

// Len returns the number of subscriptions.
func (s *SubscriberSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Snapshot returns the subscriber functions in insertion order.
func (s *SubscriberSet) Snapshot() []domain.SubscriberFn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.SubscriberFn, len(s.order))
	for i, sub := range s.order {
		out[i] = sub.fn
	}
	return out
}
