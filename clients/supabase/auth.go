package supabase

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"engame/services/session"
)

var _ session.Backend = (*Client)(nil)

type user struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         *user  `json:"user"`

	// Sign up with email confirmation enabled answers with the bare user.
	ID    string `json:"id"`
	Email string `json:"email"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *Client) toSession(t *tokenResponse) (*session.Session, error) {
	if t.AccessToken == "" || t.User == nil || t.User.ID == "" {
		return nil, fmt.Errorf("auth response has no session")
	}
	expiresAt := time.Unix(t.ExpiresAt, 0)
	if t.ExpiresAt == 0 {
		expiresAt = c.now().Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return &session.Session{
		Identity:     session.Identity(t.User.ID),
		Email:        t.User.Email,
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}

func (c *Client) Current(ctx context.Context, accessToken string) (*session.Session, error) {
	if c.tokens != nil {
		return c.tokens.Verify(accessToken)
	}
	u := &user{}
	responseError := &authErrorResponse{}
	resp, err := c.request(accessToken).
		SetContext(ctx).
		SetResult(u).
		SetError(responseError).
		Get(authPath + "/user")
	if err != nil {
		return nil, fmt.Errorf("fetch current user: %w", err)
	}
	if resp.IsError() {
		if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
			return nil, fmt.Errorf("%w: %s", session.ErrInvalidToken, responseError.toAuthError(resp.StatusCode()).Error())
		}
		return nil, responseError.toAuthError(resp.StatusCode())
	}
	if u.ID == "" {
		return nil, session.ErrNoSession
	}
	return &session.Session{
		Identity:    session.Identity(u.ID),
		Email:       u.Email,
		AccessToken: accessToken,
	}, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*session.Session, error) {
	response := &tokenResponse{}
	responseError := &authErrorResponse{}
	resp, err := c.request("").
		SetContext(ctx).
		SetQueryParam("grant_type", "password").
		SetBody(credentials{Email: email, Password: password}).
		SetResult(response).
		SetError(responseError).
		Post(authPath + "/token")
	if err != nil {
		slog.With("error", err.Error()).Error("Error signing in")
		return nil, fmt.Errorf("sign in: %w", err)
	}
	if resp.IsError() {
		return nil, responseError.toAuthError(resp.StatusCode())
	}
	return c.toSession(response)
}

func (c *Client) SignUp(ctx context.Context, email, password string) (*session.SignUpResult, error) {
	response := &tokenResponse{}
	responseError := &authErrorResponse{}
	resp, err := c.request("").
		SetContext(ctx).
		SetBody(credentials{Email: email, Password: password}).
		SetResult(response).
		SetError(responseError).
		Post(authPath + "/signup")
	if err != nil {
		slog.With("error", err.Error()).Error("Error signing up")
		return nil, fmt.Errorf("sign up: %w", err)
	}
	if resp.IsError() {
		return nil, responseError.toAuthError(resp.StatusCode())
	}
	if response.AccessToken == "" {
		return &session.SignUpResult{ConfirmationRequired: true}, nil
	}
	sess, err := c.toSession(response)
	if err != nil {
		return nil, err
	}
	return &session.SignUpResult{Session: sess}, nil
}

func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	responseError := &authErrorResponse{}
	resp, err := c.request(accessToken).
		SetContext(ctx).
		SetError(responseError).
		Post(authPath + "/logout")
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	if resp.IsError() {
		return responseError.toAuthError(resp.StatusCode())
	}
	return nil
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*session.Session, error) {
	response := &tokenResponse{}
	responseError := &authErrorResponse{}
	resp, err := c.request("").
		SetContext(ctx).
		SetQueryParam("grant_type", "refresh_token").
		SetBody(map[string]string{"refresh_token": refreshToken}).
		SetResult(response).
		SetError(responseError).
		Post(authPath + "/token")
	if err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	if resp.IsError() {
		return nil, responseError.toAuthError(resp.StatusCode())
	}
	return c.toSession(response)
}
