package record

import (
	"context"
	"errors"
	"sync"
	"time"

	"engame/services/session"
)

var (
	ErrNotFound = errors.New("avatar record not found")
	ErrConflict = errors.New("avatar record already exists")
)

// Avatar is the single row kept per identity. URL holds the external avatar
// id, not a URL; the column name comes from the hosted table.
type Avatar struct {
	ID        string    `json:"id" firestore:"id" structs:"id"`
	URL       string    `json:"url" firestore:"url" structs:"url"`
	CreatedAt time.Time `json:"createdAt,omitempty" firestore:"createdAt" structs:"createdAt,omitnested"`
}

// Reference is the external avatar id or "" when there is no usable record.
func (a *Avatar) Reference() string {
	if a == nil {
		return ""
	}
	return a.URL
}

// Store reads and writes avatar records. The session is passed so hosted
// stores can authorize the call as the user; the key is always its Identity.
type Store interface {
	// Get returns ErrNotFound when the identity has no record. Any other
	// error is a transport or backend failure.
	Get(ctx context.Context, s *session.Session) (*Avatar, error)
	// Insert writes the record once. It returns ErrConflict when a record
	// already exists for the identity.
	Insert(ctx context.Context, s *session.Session, reference string) error
}

type memoryStore struct {
	mu      sync.Mutex
	records map[session.Identity]Avatar
	now     func() time.Time
}

var _ Store = (*memoryStore)(nil)

func NewMemoryStore() Store {
	return &memoryStore{
		records: make(map[session.Identity]Avatar),
		now:     time.Now,
	}
}

func (m *memoryStore) Get(_ context.Context, s *session.Session) (*Avatar, error) {
	if s == nil {
		return nil, session.ErrNoSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.records[s.Identity]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *memoryStore) Insert(_ context.Context, s *session.Session, reference string) error {
	if s == nil {
		return session.ErrNoSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[s.Identity]; ok {
		return ErrConflict
	}
	m.records[s.Identity] = Avatar{
		ID:        string(s.Identity),
		URL:       reference,
		CreatedAt: m.now(),
	}
	return nil
}
