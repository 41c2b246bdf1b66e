package supabase

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"engame/services/session"

	"github.com/go-resty/resty/v2"
)

const (
	authPath   = "/auth/v1"
	restPath   = "/rest/v1"
	avatarPath = restPath + "/avatar"
)

type Config struct {
	// AnonKey is the public project key sent as the apikey header.
	AnonKey string
	// ServiceKey, when set, authorizes record calls instead of the user's
	// own token and bypasses row level security.
	ServiceKey string
	// JWTSecret, when set, lets Current verify access tokens locally
	// instead of asking the auth server.
	JWTSecret string
}

// Client talks to a hosted Supabase project: GoTrue for auth and PostgREST
// for the avatar table.
type Client struct {
	http       *resty.Client
	anonKey    string
	serviceKey string
	tokens     *session.Tokens
	now        func() time.Time
}

func NewClient(client *resty.Client, cfg Config) *Client {
	c := &Client{
		http:       client,
		anonKey:    cfg.AnonKey,
		serviceKey: cfg.ServiceKey,
		now:        time.Now,
	}
	if cfg.JWTSecret != "" {
		c.tokens = session.NewTokens(cfg.JWTSecret)
	}
	return c
}

// NewRestyClient builds the shared HTTP client for a project URL.
func NewRestyClient(projectURL string, timeout time.Duration) *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimRight(projectURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "engame-backend")
}

func (c *Client) request(bearer string) *resty.Request {
	r := c.http.R().SetHeader("apikey", c.anonKey)
	if bearer == "" {
		bearer = c.anonKey
	}
	return r.SetAuthToken(bearer)
}

// authErrorResponse covers both GoTrue error shapes: the OAuth style
// {error, error_description} and the newer {error_code, msg}.
type authErrorResponse struct {
	ErrorType        string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (a *authErrorResponse) toAuthError(status int) *session.AuthError {
	e := &session.AuthError{Status: status}
	switch {
	case a.ErrorCode != "" || a.Msg != "":
		e.Code, e.Message = a.ErrorCode, a.Msg
	case a.ErrorType != "" || a.ErrorDescription != "":
		e.Code, e.Message = a.ErrorType, a.ErrorDescription
	default:
		e.Message = a.Message
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

// restErrorResponse is PostgREST's error body.
type restErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (r *restErrorResponse) Error() string {
	if r.Code == "" {
		return r.Message
	}
	return fmt.Sprintf("%s: %s", r.Code, r.Message)
}
