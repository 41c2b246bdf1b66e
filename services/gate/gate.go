// Package gate decides which top level screen a client shows: sign in,
// onboarding, or home. The decision is always recomputed from the auth
// session and the avatar record; it is never patched from earlier results.
package gate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"engame/services/record"
	"engame/services/session"
)

type State string

const (
	Unauthenticated   State = "Unauthenticated"
	PendingOnboarding State = "AuthenticatedPendingOnboarding"
	Onboarded         State = "AuthenticatedOnboarded"
)

type Decision struct {
	State    State            `json:"state"`
	Identity session.Identity `json:"identity,omitempty"`
	AvatarID string           `json:"avatarId,omitempty"`
	// Retryable is set when the record lookup failed for a reason other
	// than a missing record. The state is still PendingOnboarding, but the
	// client should offer a retry before starting onboarding.
	Retryable   bool   `json:"retryable,omitempty"`
	LookupError string `json:"lookupError,omitempty"`
}

// Decide maps a session and the result of its record lookup to a screen
// state. A nil session never looks at the record.
func Decide(s *session.Session, avatar *record.Avatar, lookupErr error) Decision {
	if s == nil {
		return Decision{State: Unauthenticated}
	}
	d := Decision{State: PendingOnboarding, Identity: s.Identity}
	if lookupErr != nil {
		if !errors.Is(lookupErr, record.ErrNotFound) {
			d.Retryable = true
			d.LookupError = lookupErr.Error()
		}
		return d
	}
	if ref := avatar.Reference(); ref != "" {
		d.State = Onboarded
		d.AvatarID = ref
	}
	return d
}

// ValidTransition reports whether moving between two states is part of the
// normal lifecycle. Sign out is allowed from anywhere; onboarding never
// regresses.
func ValidTransition(from, to State) bool {
	if from == "" || from == to || to == Unauthenticated {
		return true
	}
	switch from {
	case Unauthenticated:
		return to == PendingOnboarding || to == Onboarded
	case PendingOnboarding:
		return to == Onboarded
	}
	return false
}

type Gate struct {
	records record.Store
	bus     *session.Bus
	timeout time.Duration

	mu      sync.Mutex
	watches map[session.Identity]map[*Watch]struct{}
}

// New builds a Gate. timeout bounds each record lookup; zero means no
// deadline beyond the caller's context.
func New(records record.Store, bus *session.Bus, timeout time.Duration) *Gate {
	return &Gate{
		records: records,
		bus:     bus,
		timeout: timeout,
		watches: make(map[session.Identity]map[*Watch]struct{}),
	}
}

func (g *Gate) Evaluate(ctx context.Context, s *session.Session) Decision {
	if s == nil {
		return Decide(nil, nil, nil)
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	avatar, err := g.records.Get(ctx, s)
	if err != nil && !errors.Is(err, record.ErrNotFound) {
		slog.With("error", err.Error()).With("identity", string(s.Identity)).Warn("avatar record lookup failed")
	}
	return Decide(s, avatar, err)
}

// Recheck re-evaluates the identity right away, without waiting for an auth
// event, and pushes the result to every open watch for it. Watches that
// started an evaluation before this one keep the Recheck result.
func (g *Gate) Recheck(ctx context.Context, s *session.Session) Decision {
	if s == nil {
		return g.Evaluate(ctx, s)
	}
	g.mu.Lock()
	targets := make(map[*Watch]uint64, len(g.watches[s.Identity]))
	for w := range g.watches[s.Identity] {
		targets[w] = 0
	}
	g.mu.Unlock()
	for w := range targets {
		targets[w] = w.begin()
	}
	d := g.Evaluate(ctx, s)
	for w, seq := range targets {
		w.deliver(d, seq)
	}
	return d
}

func (g *Gate) register(w *Watch) {
	g.mu.Lock()
	defer g.mu.Unlock()
	set, ok := g.watches[w.identity]
	if !ok {
		set = make(map[*Watch]struct{})
		g.watches[w.identity] = set
	}
	set[w] = struct{}{}
}

func (g *Gate) unregister(w *Watch) {
	g.mu.Lock()
	defer g.mu.Unlock()
	set := g.watches[w.identity]
	delete(set, w)
	if len(set) == 0 {
		delete(g.watches, w.identity)
	}
}

// Watching returns the number of open watches for an identity.
func (g *Gate) Watching(identity session.Identity) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.watches[identity])
}
