package session

import (
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/jwa"
	"github.com/lestrrat-go/jwx/jwt"
)

const (
	emailClaim = "email"
	roleClaim  = "role"

	authenticatedRole = "authenticated"
)

// Tokens signs and verifies HS256 access tokens shaped like the ones the
// hosted backend issues: sub is the identity, plus email and role claims.
type Tokens struct {
	secret []byte
	now    func() time.Time
}

func NewTokens(secret string) *Tokens {
	return &Tokens{
		secret: []byte(secret),
		now:    time.Now,
	}
}

func (t *Tokens) Sign(identity Identity, email string, expiresAt time.Time) (string, error) {
	tok := jwt.New()
	if err := tok.Set(jwt.SubjectKey, string(identity)); err != nil {
		return "", err
	}
	if err := tok.Set(jwt.IssuedAtKey, t.now()); err != nil {
		return "", err
	}
	if err := tok.Set(jwt.ExpirationKey, expiresAt); err != nil {
		return "", err
	}
	if err := tok.Set(jwt.AudienceKey, authenticatedRole); err != nil {
		return "", err
	}
	if err := tok.Set(emailClaim, email); err != nil {
		return "", err
	}
	if err := tok.Set(roleClaim, authenticatedRole); err != nil {
		return "", err
	}
	signed, err := jwt.Sign(tok, jwa.HS256, t.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return string(signed), nil
}

// Verify checks the signature and expiry and returns the session the token
// describes. The refresh token is unknown at this point and left empty.
func (t *Tokens) Verify(accessToken string) (*Session, error) {
	tok, err := jwt.Parse(
		[]byte(accessToken),
		jwt.WithVerify(jwa.HS256, t.secret),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(t.now)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err.Error())
	}
	if tok.Subject() == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrInvalidToken)
	}
	sess := &Session{
		Identity:    Identity(tok.Subject()),
		AccessToken: accessToken,
		ExpiresAt:   tok.Expiration(),
	}
	if v, ok := tok.Get(emailClaim); ok {
		if email, ok := v.(string); ok {
			sess.Email = email
		}
	}
	return sess, nil
}
