package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Identity is the opaque user id issued by the auth backend.
type Identity string

type Session struct {
	Identity     Identity  `json:"identity"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type SignUpResult struct {
	// Session is nil when the backend wants the address confirmed first.
	Session              *Session
	ConfirmationRequired bool
}

var (
	ErrNoSession          = errors.New("user not authenticated")
	ErrMissingCredentials = errors.New("email and password are required")
	ErrInvalidToken       = errors.New("invalid access token")
)

// AuthError is a rejection reported by the auth backend, bad credentials or
// an unconfirmed address for example.
type AuthError struct {
	Status  int
	Code    string
	Message string
}

func (a *AuthError) Error() string {
	if a.Code == "" {
		return a.Message
	}
	return fmt.Sprintf("%s: %s", a.Code, a.Message)
}

// Backend is the hosted authentication service.
type Backend interface {
	Current(ctx context.Context, accessToken string) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string) (*SignUpResult, error)
	SignOut(ctx context.Context, accessToken string) error
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
}

// Service performs auth transitions against a Backend and announces each
// successful one on the Bus.
type Service interface {
	Current(ctx context.Context, accessToken string) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string) (*SignUpResult, error)
	SignOut(ctx context.Context, s *Session) error
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	Events() *Bus
}

type service struct {
	backend Backend
	bus     *Bus
}

var _ Service = (*service)(nil)

func NewService(backend Backend, bus *Bus) Service {
	return &service{
		backend: backend,
		bus:     bus,
	}
}

func (s *service) Events() *Bus {
	return s.bus
}

func (s *service) Current(ctx context.Context, accessToken string) (*Session, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, ErrNoSession
	}
	return s.backend.Current(ctx, accessToken)
}

func (s *service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	sess, err := s.backend.SignIn(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return nil, err
	}
	s.bus.Publish(Event{Kind: SignedIn, Identity: sess.Identity, Session: sess})
	return sess, nil
}

func (s *service) SignUp(ctx context.Context, email, password string) (*SignUpResult, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	result, err := s.backend.SignUp(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return nil, err
	}
	if result.Session != nil {
		s.bus.Publish(Event{Kind: SignedIn, Identity: result.Session.Identity, Session: result.Session})
	}
	return result, nil
}

// SignOut ends the session. The sign-out event is published even when the
// backend call fails so every watcher drops to the sign-in screen.
func (s *service) SignOut(ctx context.Context, sess *Session) error {
	if sess == nil {
		return ErrNoSession
	}
	err := s.backend.SignOut(ctx, sess.AccessToken)
	if err != nil {
		slog.With("error", err.Error()).Warn("backend sign out failed")
	}
	s.bus.Publish(Event{Kind: SignedOut, Identity: sess.Identity})
	return err
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, ErrNoSession
	}
	sess, err := s.backend.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	s.bus.Publish(Event{Kind: TokenRefreshed, Identity: sess.Identity, Session: sess})
	return sess, nil
}
