package validator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"engame/services/session"

	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/gin-gonic/gin"
	middleware "github.com/oapi-codegen/gin-middleware"
)

type fakeResolver map[string]*session.Session

func (f fakeResolver) Current(_ context.Context, token string) (*session.Session, error) {
	s, ok := f[token]
	if !ok {
		return nil, session.ErrInvalidToken
	}
	return s, nil
}

func TestGetJWSFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{"missing", "", "", ErrNoAuthHeader},
		{"basic auth", "Basic abc", "", ErrInvalidAuthHeader},
		{"bearer", "Bearer abc.def.ghi", "abc.def.ghi", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			got, err := GetJWSFromRequest(req)
			if !errors.Is(err, tt.wantErr) || got != tt.want {
				t.Errorf("GetJWSFromRequest() = %q, %v; want %q, %v", got, err, tt.want, tt.wantErr)
			}
		})
	}
}

func authInput(scheme, header string) (*openapi3filter.AuthenticationInput, *gin.Context, context.Context) {
	gin.SetMode(gin.TestMode)
	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = req
	ctx := context.WithValue(context.Background(), middleware.GinContextKey, c)
	input := &openapi3filter.AuthenticationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{Request: req},
		SecuritySchemeName:     scheme,
	}
	return input, c, ctx
}

func TestAuthenticate(t *testing.T) {
	u1 := &session.Session{Identity: "U1", AccessToken: "good"}
	auth := Authenticator{Sessions: fakeResolver{"good": u1}}

	input, c, ctx := authInput(BearerAuth, "Bearer good")
	if err := auth.Authenticate(ctx, input); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	got, ok := FromContext(c)
	if !ok || got != u1 {
		t.Errorf("FromContext() = %v, %v", got, ok)
	}

	input, c, ctx = authInput(BearerAuth, "Bearer bad")
	if err := auth.Authenticate(ctx, input); !errors.Is(err, session.ErrInvalidToken) {
		t.Errorf("Authenticate() with bad token error = %v", err)
	}
	if _, ok := FromContext(c); ok {
		t.Errorf("session stored for a bad token")
	}

	input, _, ctx = authInput("apiKey", "Bearer good")
	if err := auth.Authenticate(ctx, input); err == nil {
		t.Errorf("Authenticate() accepted another scheme")
	}
}
