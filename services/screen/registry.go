// Package screen keeps per-mount state for screens that need something to
// survive between two requests, such as the anonymous avatar api token issued
// when the onboarding screen opens and reused when the user confirms.
package screen

import (
	"errors"
	"sync"
	"time"

	"engame/services/session"

	"github.com/google/uuid"
)

var (
	ErrNotMounted = errors.New("screen is not mounted")
	ErrForbidden  = errors.New("screen belongs to another user")
)

type mount[T any] struct {
	identity  session.Identity
	value     T
	expiresAt time.Time
}

// Registry holds mounts of one screen kind. Mounts expire after ttl.
type Registry[T any] struct {
	mu     sync.Mutex
	mounts map[string]*mount[T]
	ttl    time.Duration
	now    func() time.Time
}

func NewRegistry[T any](ttl time.Duration) *Registry[T] {
	return &Registry[T]{
		mounts: make(map[string]*mount[T]),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Mount stores value for identity and returns the mount id.
func (r *Registry[T]) Mount(identity session.Identity, value T) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweep()
	id := uuid.NewString()
	r.mounts[id] = &mount[T]{
		identity:  identity,
		value:     value,
		expiresAt: r.now().Add(r.ttl),
	}
	return id
}

// Get returns the mounted value if it exists, has not expired and belongs to
// identity.
func (r *Registry[T]) Get(id string, identity session.Identity) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var zero T
	m, ok := r.mounts[id]
	if !ok || r.expired(m) {
		return zero, ErrNotMounted
	}
	if m.identity != identity {
		return zero, ErrForbidden
	}
	return m.value, nil
}

// Alive reports whether the mount is still present. Handlers check it before
// acting on a result that arrived after a slow remote call.
func (r *Registry[T]) Alive(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.mounts[id]
	return ok && !r.expired(m)
}

// Unmount removes the mount. Unknown ids are ignored.
func (r *Registry[T]) Unmount(id string, identity session.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.mounts[id]
	if !ok {
		return nil
	}
	if m.identity != identity {
		return ErrForbidden
	}
	delete(r.mounts, id)
	return nil
}

// UnmountAll drops every mount of identity, used on sign out.
func (r *Registry[T]) UnmountAll(identity session.Identity) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, m := range r.mounts {
		if m.identity == identity {
			delete(r.mounts, id)
			n++
		}
	}
	return n
}

func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweep()
	return len(r.mounts)
}

func (r *Registry[T]) expired(m *mount[T]) bool {
	return r.ttl > 0 && !r.now().Before(m.expiresAt)
}

// sweep must be called with r.mu held.
func (r *Registry[T]) sweep() {
	for id, m := range r.mounts {
		if r.expired(m) {
			delete(r.mounts, id)
		}
	}
}
