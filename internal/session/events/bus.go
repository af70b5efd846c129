// Package events carries session lifecycle broadcasts to interested
// consumers, chiefly the UI shell. Its one job is to let a consumer
// tell a forced logout (session died under us) apart from a
// user-initiated sign-out, which never produces an event.
package events

import (
	"sync"
	"time"

	"github.com/parleychat/parley/pkg/idx"
)

// Kind identifies the session transition an Event describes.
type Kind string

const (
	// KindSignedOutForced means the session collapsed without a direct
	// user action: the backend rejected the credential or renewal was
	// exhausted. The UI should show a "session expired, please sign in
	// again" state.
	KindSignedOutForced Kind = "signed_out_forced"
)

// Event is a single session lifecycle broadcast.
type Event struct {
	ID     idx.ID
	Kind   Kind
	Reason string
	At     time.Time
}

// Handler consumes events. Handlers run on a per-subscriber goroutine,
// never on the publisher's.
type Handler func(Event)

// Bus is a one-to-many broadcast. Publishing never blocks on
// subscriber work; each subscriber sees events from one publisher in
// publish order, at least once.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]*subscriber
	nextID int
	closed bool
}

type subscriber struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Event
	stopped bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Subscribe registers a handler and returns an unsubscribe function.
// Unsubscribing lets the subscriber drain queued events before its
// delivery goroutine exits.
func (b *Bus) Subscribe(handler Handler) (unsubscribe func()) {
	sub := &subscriber{}
	sub.cond = sync.NewCond(&sub.mu)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if !b.closed {
		b.subs[id] = sub
	}
	closed := b.closed
	b.mu.Unlock()

	if closed {
		return func() {}
	}

	go sub.deliver(handler)

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		sub.stop()
	}
}

// Publish broadcasts an event of the given kind to every current
// subscriber and returns without waiting on any of them.
func (b *Bus) Publish(kind Kind, reason string) {
	ev := Event{
		ID:     idx.New(),
		Kind:   kind,
		Reason: reason,
		At:     time.Now().UTC(),
	}

	b.mu.Lock()
	targets := make([]*subscriber, 0, len(b.subs))
	for _, sub := range b.subs {
		targets = append(targets, sub)
	}
	b.mu.Unlock()

	for _, sub := range targets {
		sub.enqueue(ev)
	}
}

// Close stops every subscriber after its queue drains. Publishing or
// subscribing after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[int]*subscriber)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
}

func (s *subscriber) enqueue(ev Event) {
	s.mu.Lock()
	if !s.stopped {
		s.queue = append(s.queue, ev)
	}
	s.mu.Unlock()
	s.cond.Signal()
}

func (s *subscriber) stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cond.Signal()
}

// deliver drains the queue in order, invoking the handler outside the
// lock so a slow handler never blocks publishers.
func (s *subscriber) deliver(handler Handler) {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.stopped {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.stopped {
			s.mu.Unlock()
			return
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		handler(ev)
	}
}
