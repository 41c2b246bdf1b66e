package session

import (
	"sync"

	"github.com/rs/zerolog/log"
)

type EventKind string

const (
	SignedIn       EventKind = "SIGNED_IN"
	SignedOut      EventKind = "SIGNED_OUT"
	TokenRefreshed EventKind = "TOKEN_REFRESHED"
)

// Event is an authentication state change. Session is nil for SignedOut.
type Event struct {
	Kind     EventKind
	Identity Identity
	Session  *Session
}

// Bus fans auth events out to the subscribers of the event's identity.
type Bus struct {
	mu   sync.Mutex
	subs map[Identity]map[*Subscription]struct{}
}

func NewBus() *Bus {
	return &Bus{
		subs: make(map[Identity]map[*Subscription]struct{}),
	}
}

// Subscription holds at most one undelivered event, the latest one. A pending
// SignedOut is never replaced.
type Subscription struct {
	C <-chan Event

	identity Identity
	c        chan Event
	bus      *Bus
	once     sync.Once
}

// Subscribe registers a listener for one identity. Callers must Close the
// subscription when the screen that opened it goes away.
func (b *Bus) Subscribe(identity Identity) *Subscription {
	c := make(chan Event, 1)
	sub := &Subscription{C: c, identity: identity, c: c, bus: b}
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[identity]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subs[identity] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Publish never blocks.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[e.Identity] {
		sub.offer(e)
	}
}

// offer must be called with the bus lock held; Publish is the only sender,
// so the send after draining cannot block.
func (s *Subscription) offer(e Event) {
	select {
	case pending := <-s.c:
		if pending.Kind == SignedOut {
			e = pending
		}
		log.Debug().Str("identity", string(e.Identity)).Str("kind", string(pending.Kind)).Msg("coalescing undelivered auth event")
	default:
	}
	s.c <- e
}

func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, set := range b.subs {
		n += len(set)
	}
	return n
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		set := s.bus.subs[s.identity]
		delete(set, s)
		if len(set) == 0 {
			delete(s.bus.subs, s.identity)
		}
		close(s.c)
	})
}
