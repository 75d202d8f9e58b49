// Package events provides ordered synchronous event streams.
//
// Unlike a channel-based bus, a Stream invokes every subscriber callback
// in registration order, synchronously, within the Emit call. Consumers
// that need asynchronous delivery should bridge a Stream onto the
// application bus instead of blocking inside a callback.
package events

import "sync"

// Stream is one event kind with an ordered set of subscriber callbacks.
// The zero value is not usable; construct with NewStream.
type Stream[T any] struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscriber[T]
	closed bool
}

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

func NewStream[T any]() *Stream[T] {
	return &Stream[T]{}
}

// Subscribe registers fn and returns a cancel function. Callbacks are
// invoked in registration order. Subscribing on a closed stream is a
// no-op whose cancel function does nothing.
func (s *Stream[T]) Subscribe(fn func(T)) func() {
	if fn == nil {
		return func() {}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return func() {}
	}

	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber[T]{id: id, fn: fn})

	return func() { s.unsubscribe(id) }
}

func (s *Stream[T]) unsubscribe(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.subs {
		if sub.id == id {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)

			return
		}
	}
}

// Emit calls every subscriber with v, in registration order, before
// returning. Subscribers registered during an Emit do not observe the
// in-flight event.
func (s *Stream[T]) Emit(v T) {
	s.mu.Lock()
	if s.closed || len(s.subs) == 0 {
		s.mu.Unlock()

		return
	}
	subs := make([]subscriber[T], len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(v)
	}
}

// Len reports the number of registered subscribers.
func (s *Stream[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.subs)
}

// Close detaches all subscribers. Emit and Subscribe become no-ops.
func (s *Stream[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.subs = nil
}
