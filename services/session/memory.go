package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const memoryTokenTTL = time.Hour

type memoryUser struct {
	identity     Identity
	email        string
	passwordHash []byte
}

// MemoryBackend is an in-process auth backend used for local development and
// tests. Tokens are real HS256 JWTs so the rest of the stack treats them the
// same way as hosted ones.
type MemoryBackend struct {
	mu      sync.Mutex
	users   map[string]*memoryUser
	refresh map[string]Identity
	revoked map[string]struct{}
	tokens  *Tokens

	// RequireConfirmation makes SignUp behave like a backend with email
	// confirmation enabled: no session is returned.
	RequireConfirmation bool
}

var _ Backend = (*MemoryBackend)(nil)

func NewMemoryBackend(tokens *Tokens) *MemoryBackend {
	return &MemoryBackend{
		users:   make(map[string]*memoryUser),
		refresh: make(map[string]Identity),
		revoked: make(map[string]struct{}),
		tokens:  tokens,
	}
}

func (m *MemoryBackend) Current(_ context.Context, accessToken string) (*Session, error) {
	m.mu.Lock()
	_, revoked := m.revoked[accessToken]
	m.mu.Unlock()
	if revoked {
		return nil, ErrInvalidToken
	}
	return m.tokens.Verify(accessToken)
}

func (m *MemoryBackend) SignIn(_ context.Context, email, password string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok || bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)) != nil {
		return nil, &AuthError{Status: http.StatusBadRequest, Code: "invalid_grant", Message: "Invalid login credentials"}
	}
	return m.issue(u)
}

func (m *MemoryBackend) SignUp(_ context.Context, email, password string) (*SignUpResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[email]; ok {
		return nil, &AuthError{Status: http.StatusUnprocessableEntity, Code: "user_already_exists", Message: "User already registered"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &memoryUser{
		identity:     Identity(uuid.NewString()),
		email:        email,
		passwordHash: hash,
	}
	m.users[email] = u
	if m.RequireConfirmation {
		return &SignUpResult{ConfirmationRequired: true}, nil
	}
	sess, err := m.issue(u)
	if err != nil {
		return nil, err
	}
	return &SignUpResult{Session: sess}, nil
}

func (m *MemoryBackend) SignOut(_ context.Context, accessToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[accessToken] = struct{}{}
	return nil
}

func (m *MemoryBackend) Refresh(_ context.Context, refreshToken string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.refresh[refreshToken]
	if !ok {
		return nil, &AuthError{Status: http.StatusBadRequest, Code: "refresh_token_not_found", Message: "Invalid Refresh Token"}
	}
	delete(m.refresh, refreshToken)
	for _, u := range m.users {
		if u.identity == identity {
			return m.issue(u)
		}
	}
	return nil, &AuthError{Status: http.StatusBadRequest, Code: "user_not_found", Message: "User not found"}
}

// issue must be called with m.mu held.
func (m *MemoryBackend) issue(u *memoryUser) (*Session, error) {
	expiresAt := m.tokens.now().Add(memoryTokenTTL).Truncate(time.Second)
	access, err := m.tokens.Sign(u.identity, u.email, expiresAt)
	if err != nil {
		return nil, err
	}
	refresh := uuid.NewString()
	m.refresh[refresh] = u.identity
	return &Session{
		Identity:     u.identity,
		Email:        u.email,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	}, nil
}
