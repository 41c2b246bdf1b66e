package validator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"engame/services/session"

	"github.com/getkin/kin-openapi/openapi3filter"
	middleware "github.com/oapi-codegen/gin-middleware"
)

type key string

const sessionKey key = "session"

const BearerAuth = "bearerAuth"

var (
	ErrNoAuthHeader      = errors.New("Authorization header is missing")
	ErrInvalidAuthHeader = errors.New("Authorization header is malformed")
)

// Resolver turns an access token into the session it belongs to.
type Resolver interface {
	Current(ctx context.Context, accessToken string) (*session.Session, error)
}

// FromContext returns the session the authenticator stored for this request.
// ctx is the gin context of the request.
func FromContext(ctx context.Context) (*session.Session, bool) {
	s, ok := ctx.Value(string(sessionKey)).(*session.Session)
	return s, ok && s != nil
}

// GetJWSFromRequest extracts a JWS string from an Authorization: Bearer <jws> header
func GetJWSFromRequest(req *http.Request) (string, error) {
	authHdr := req.Header.Get("Authorization")
	if authHdr == "" {
		return "", ErrNoAuthHeader
	}
	prefix := "Bearer "
	if !strings.HasPrefix(authHdr, prefix) {
		return "", ErrInvalidAuthHeader
	}
	return strings.TrimPrefix(authHdr, prefix), nil
}

type Authenticator struct {
	Sessions Resolver
}

// Authenticate resolves the bearer token through the auth backend and puts
// the session on the gin context for the handlers.
func (a Authenticator) Authenticate(ctx context.Context, input *openapi3filter.AuthenticationInput) error {
	if input.SecuritySchemeName != BearerAuth {
		return fmt.Errorf("security scheme %s != '%s'", input.SecuritySchemeName, BearerAuth)
	}

	jws, err := GetJWSFromRequest(input.RequestValidationInput.Request)
	if err != nil {
		return fmt.Errorf("getting jws: %w", err)
	}

	s, err := a.Sessions.Current(ctx, jws)
	if err != nil {
		return fmt.Errorf("resolving session: %w", err)
	}

	gCtx := middleware.GetGinContext(ctx)
	if gCtx == nil {
		return errors.New("missing gin context")
	}
	gCtx.Set(string(sessionKey), s)
	return nil
}
